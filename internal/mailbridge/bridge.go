package mailbridge

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/blob"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/store"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/tracker"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/util"
)

// Store is the part of the database the bridge reads and writes.
type Store interface {
	CommunicationMessageExists(ctx context.Context, emailMessageID string) (bool, error)
	GetOrganizationByEmail(ctx context.Context, email string) (store.Organization, error)
	FindCommunicationByEmailMessageIDs(ctx context.Context, orgID string, messageIDs []string) (store.Communication, error)
	ListCommunicationsByClientEmail(ctx context.Context, orgID, email string) ([]store.Communication, error)
	CreateCommunication(ctx context.Context, item store.Communication, first store.CommunicationMessage) (store.Communication, store.CommunicationMessage, error)
	AppendCommunicationMessage(ctx context.Context, message store.CommunicationMessage, status string) (store.CommunicationMessage, error)
}

// FileSaver stores attachments of an accepted message.
type FileSaver interface {
	Save(ctx context.Context, orgID, ownerType, ownerID, uploadedBy string, files []blob.File) ([]store.Attachment, error)
}

type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeAppended  Outcome = "appended"
	OutcomeOwnMail   Outcome = "own_mail"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeNoTenant  Outcome = "no_tenant"
)

type Result struct {
	Outcome         Outcome
	CommunicationID string
	OrganizationID  string
}

type Options struct {
	// MailboxAddress is the bridge's own address; mail from it is ignored.
	MailboxAddress string
	// DefaultOrgID receives mail whose recipients match no organization.
	DefaultOrgID string
	// OnThread is called after a thread was created or extended.
	OnThread func(ctx context.Context, orgID, communicationID string)
}

// Bridge files inbound messages into communication threads.
type Bridge struct {
	store  Store
	files  FileSaver
	opts   Options
	logger *zap.Logger
	now    func() time.Time
}

func NewBridge(st Store, files FileSaver, opts Options, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.MailboxAddress = strings.ToLower(strings.TrimSpace(opts.MailboxAddress))
	return &Bridge{store: st, files: files, opts: opts, logger: logger, now: time.Now}
}

// Process stores one message. A returned error means the message should be
// retried on the next cycle; every Result is final.
func (b *Bridge) Process(ctx context.Context, msg Incoming) (Result, error) {
	if b.opts.MailboxAddress != "" && strings.EqualFold(msg.FromAddress, b.opts.MailboxAddress) {
		return Result{Outcome: OutcomeOwnMail}, nil
	}

	if msg.MessageID != "" {
		exists, err := b.store.CommunicationMessageExists(ctx, msg.MessageID)
		if err != nil {
			return Result{}, err
		}
		if exists {
			return Result{Outcome: OutcomeDuplicate}, nil
		}
	}

	orgID, err := b.resolveTenant(ctx, msg.Recipients)
	if err != nil {
		return Result{}, err
	}
	if orgID == "" {
		return Result{Outcome: OutcomeNoTenant}, nil
	}

	thread, found, err := b.findThread(ctx, orgID, msg)
	if err != nil {
		return Result{}, err
	}

	createdAt := msg.Date
	if createdAt.IsZero() {
		createdAt = b.now()
	}
	entry := store.CommunicationMessage{
		ID:             util.NewID(),
		Author:         msg.FromAddress,
		AuthorType:     tracker.AuthorClient,
		Text:           ExtractReply(msg.Text),
		EmailMessageID: msg.MessageID,
		CreatedAt:      createdAt,
	}

	result := Result{OrganizationID: orgID}
	if found {
		entry.CommunicationID = thread.ID
		status := ""
		if thread.Status == tracker.CommunicationClosed {
			status = tracker.CommunicationOpen
		}
		if _, err := b.store.AppendCommunicationMessage(ctx, entry, status); err != nil {
			return Result{}, fmt.Errorf("append to communication %s: %w", thread.ID, err)
		}
		result.Outcome = OutcomeAppended
		result.CommunicationID = thread.ID
	} else {
		subject := msg.Subject
		if strings.TrimSpace(subject) == "" {
			subject = NoSubject
		}
		clientName := msg.FromName
		if clientName == "" {
			clientName = msg.FromAddress
		}
		created, _, err := b.store.CreateCommunication(ctx, store.Communication{
			ID:             util.NewID(),
			OrganizationID: orgID,
			ClientName:     clientName,
			ClientEmail:    msg.FromAddress,
			Subject:        subject,
			Status:         tracker.CommunicationNew,
		}, entry)
		if err != nil {
			return Result{}, fmt.Errorf("create communication: %w", err)
		}
		result.Outcome = OutcomeCreated
		result.CommunicationID = created.ID
	}

	b.saveAttachments(ctx, orgID, result.CommunicationID, msg)
	if b.opts.OnThread != nil {
		b.opts.OnThread(ctx, orgID, result.CommunicationID)
	}
	return result, nil
}

// resolveTenant picks the organization addressed in To/Cc, then the default.
func (b *Bridge) resolveTenant(ctx context.Context, recipients []string) (string, error) {
	for _, addr := range recipients {
		org, err := b.store.GetOrganizationByEmail(ctx, addr)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("resolve organization for %s: %w", addr, err)
		}
		return org.ID, nil
	}
	return b.opts.DefaultOrgID, nil
}

func (b *Bridge) findThread(ctx context.Context, orgID string, msg Incoming) (store.Communication, bool, error) {
	if ids := msg.ThreadIDs(); len(ids) > 0 {
		thread, err := b.store.FindCommunicationByEmailMessageIDs(ctx, orgID, ids)
		if err == nil {
			return thread, true, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return store.Communication{}, false, fmt.Errorf("match by message id: %w", err)
		}
	}

	candidates, err := b.store.ListCommunicationsByClientEmail(ctx, orgID, msg.FromAddress)
	if err != nil {
		return store.Communication{}, false, err
	}
	thread, ok := MatchThread(candidates, msg.Subject)
	return thread, ok, nil
}

// MatchThread returns the first candidate whose normalized subject equals the
// normalized subject given. Candidates are expected most recent first.
func MatchThread(candidates []store.Communication, subject string) (store.Communication, bool) {
	want := NormalizeSubject(subject)
	for _, candidate := range candidates {
		if NormalizeSubject(candidate.Subject) == want {
			return candidate, true
		}
	}
	return store.Communication{}, false
}

func (b *Bridge) saveAttachments(ctx context.Context, orgID, communicationID string, msg Incoming) {
	if b.files == nil || len(msg.Attachments) == 0 {
		return
	}
	files := make([]blob.File, 0, len(msg.Attachments))
	for _, att := range msg.Attachments {
		files = append(files, blob.File{
			Name:        att.Filename,
			ContentType: att.ContentType,
			Size:        int64(len(att.Data)),
			Body:        bytes.NewReader(att.Data),
		})
	}
	if _, err := b.files.Save(ctx, orgID, store.OwnerCommunication, communicationID, msg.FromAddress, files); err != nil {
		b.logger.Warn("store inbound attachments",
			zap.String("communication_id", communicationID),
			zap.String("message_id", msg.MessageID),
			zap.Error(err))
	}
}
