package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/app"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/blob"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/email"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/export"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/gitrepo"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/mailbridge"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/search"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/session"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/store"
)

// wiring holds everything a command builds from the configuration. close
// releases it in reverse order.
type wiring struct {
	db      *sql.DB
	store   *store.PostgresStore
	search  *search.Service
	objects blob.Store
	service *app.Service
	closers []func()
}

func (r *wiring) close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

// openDatabase connects and applies pending migrations.
func openDatabase(ctx context.Context) (*sql.DB, error) {
	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	applied, err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations failed: %w", err)
	}
	if len(applied) > 0 {
		logger.Info("migrations applied", zap.Strings("versions", applied))
	}
	return db, nil
}

// buildWiring wires the service with every optional backend that is
// configured: Redis sessions, Meilisearch, MinIO and SMTP.
func buildWiring(ctx context.Context) (*wiring, error) {
	db, err := openDatabase(ctx)
	if err != nil {
		return nil, err
	}
	w := &wiring{db: db, store: store.NewPostgresStore(db)}
	w.closers = append(w.closers, func() { _ = db.Close() })

	var sessions session.Store
	if cfg.RedisURL != "" {
		redisStore, err := session.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			w.close()
			return nil, fmt.Errorf("redis connection failed: %w", err)
		}
		w.closers = append(w.closers, func() { _ = redisStore.Close() })
		sessions = redisStore
		logger.Info("using redis for session storage")
	} else {
		logger.Info("using postgres for session storage")
	}

	var meili *search.Meili
	if cfg.MeiliURL != "" {
		meili = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger)
		w.closers = append(w.closers, meili.Close)
	}
	w.search = search.NewService(meili, search.NewPgFTS(db), logger)
	w.closers = append(w.closers, w.search.Wait)

	if cfg.BlobEndpoint != "" {
		objects, err := blob.NewMinio(ctx, blob.MinioConfig{
			Endpoint:  cfg.BlobEndpoint,
			AccessKey: cfg.BlobAccessKey,
			SecretKey: cfg.BlobSecretKey,
			Bucket:    cfg.BlobBucket,
			UseSSL:    cfg.BlobUseSSL,
		})
		if err != nil {
			w.close()
			return nil, fmt.Errorf("object storage failed: %w", err)
		}
		w.objects = objects
	} else {
		objects, err := blob.NewDir(cfg.UploadsDir)
		if err != nil {
			w.close()
			return nil, fmt.Errorf("uploads dir failed: %w", err)
		}
		w.objects = objects
	}

	if err := os.MkdirAll(cfg.KnowledgeDir, 0o755); err != nil {
		w.close()
		return nil, fmt.Errorf("failed to create knowledge dir: %w", err)
	}

	w.service = app.New(cfg, app.Deps{
		Store:    w.store,
		Sessions: sessions,
		Search:   w.search,
		History:  gitrepo.New(cfg.KnowledgeDir),
		Export:   export.NewService(),
		Objects:  w.objects,
		Mailer: email.NewService(email.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
		}),
	}, logger)
	return w, nil
}

// newPoller builds the IMAP poller. Threads it touches are reindexed
// through the service.
func (r *wiring) newPoller() *mailbridge.Poller {
	dialer := mailbridge.NewIMAPDialer(mailbridge.IMAPConfig{
		Host:     cfg.IMAPHost,
		Port:     cfg.IMAPPort,
		Username: cfg.IMAPUsername,
		Password: cfg.IMAPPassword,
		Mailbox:  cfg.IMAPMailbox,
	})
	bridge := mailbridge.NewBridge(r.store, blob.NewAttacher(r.objects, r.store), mailbridge.Options{
		MailboxAddress: firstNonEmpty(cfg.IMAPUsername, cfg.SMTPFrom),
		DefaultOrgID:   cfg.MailDefaultOrgID,
		OnThread:       r.service.MailThreadHook,
	}, logger.Named("mailbridge"))
	return mailbridge.NewPoller(dialer, bridge, cfg.MailPollInterval, logger.Named("mailbridge"))
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
