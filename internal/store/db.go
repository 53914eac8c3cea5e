package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PingRetryDelay is the first backoff between connection attempts. Tests shrink it.
var PingRetryDelay = 500 * time.Millisecond

const pingAttempts = 5

// Open connects to Postgres, retrying the initial ping with exponential
// backoff so the service can start alongside its database container.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(25)

	delay := PingRetryDelay
	for attempt := 1; ; attempt++ {
		err = db.PingContext(ctx)
		if err == nil {
			return db, nil
		}
		if attempt >= pingAttempts {
			break
		}
		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, fmt.Errorf("ping db: %w", ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}
	_ = db.Close()
	return nil, fmt.Errorf("ping db after %d attempts: %w", pingAttempts, err)
}
