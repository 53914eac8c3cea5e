package mailbridge

import (
	"bytes"
	"context"
	"time"

	"go.uber.org/zap"
)

// Processor files one parsed message. *Bridge implements it.
type Processor interface {
	Process(ctx context.Context, msg Incoming) (Result, error)
}

// Stats summarises one poll cycle.
type Stats struct {
	Fetched   int
	Processed int
	Skipped   int
	Failed    int
}

// Poller runs a poll cycle every interval until its context ends.
type Poller struct {
	dialer    Dialer
	processor Processor
	interval  time.Duration
	logger    *zap.Logger
}

func NewPoller(dialer Dialer, processor Processor, interval time.Duration, logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{dialer: dialer, processor: processor, interval: interval, logger: logger}
}

// Run polls immediately and then on every tick. Cycle errors are logged and
// the next tick retries. It returns nil once ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("mail poller started", zap.Duration("interval", p.interval))
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		stats, err := p.PollOnce(ctx)
		switch {
		case ctx.Err() != nil:
			p.logger.Info("mail poller stopped")
			return nil
		case err != nil:
			p.logger.Warn("mail poll failed", zap.Error(err))
		case stats.Fetched > 0:
			p.logger.Info("mail poll finished",
				zap.Int("fetched", stats.Fetched),
				zap.Int("processed", stats.Processed),
				zap.Int("skipped", stats.Skipped),
				zap.Int("failed", stats.Failed))
		}

		select {
		case <-ctx.Done():
			p.logger.Info("mail poller stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// PollOnce opens a session, files every unseen message and marks the
// finished ones seen. Messages whose storage failed stay unseen.
func (p *Poller) PollOnce(ctx context.Context) (Stats, error) {
	var stats Stats
	mailbox, err := p.dialer.Dial(ctx)
	if err != nil {
		return stats, err
	}
	defer func() {
		if err := mailbox.Logout(); err != nil {
			p.logger.Debug("imap logout", zap.Error(err))
		}
	}()

	raw, err := mailbox.FetchUnseen(ctx)
	if err != nil {
		return stats, err
	}
	stats.Fetched = len(raw)

	seen := make([]uint32, 0, len(raw))
	for _, item := range raw {
		if ctx.Err() != nil {
			break
		}
		msg, err := Parse(bytes.NewReader(item.Body))
		if err != nil {
			p.logger.Warn("skip unparsable message", zap.Uint32("uid", item.UID), zap.Error(err))
			stats.Skipped++
			seen = append(seen, item.UID)
			continue
		}

		result, err := p.processor.Process(ctx, msg)
		if err != nil {
			p.logger.Error("store inbound message",
				zap.Uint32("uid", item.UID),
				zap.String("message_id", msg.MessageID),
				zap.Error(err))
			stats.Failed++
			continue
		}
		seen = append(seen, item.UID)
		switch result.Outcome {
		case OutcomeCreated, OutcomeAppended:
			stats.Processed++
			p.logger.Info("inbound message filed",
				zap.String("outcome", string(result.Outcome)),
				zap.String("communication_id", result.CommunicationID),
				zap.String("from", msg.FromAddress))
		default:
			stats.Skipped++
			p.logger.Info("inbound message skipped",
				zap.String("outcome", string(result.Outcome)),
				zap.String("message_id", msg.MessageID),
				zap.String("from", msg.FromAddress))
		}
	}

	if err := mailbox.MarkSeen(context.WithoutCancel(ctx), seen); err != nil {
		return stats, err
	}
	return stats, nil
}
