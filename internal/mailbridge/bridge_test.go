package mailbridge

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/blob"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/store"
)

// memoryStore keeps communications in memory, most recently updated first on listing.
type memoryStore struct {
	orgs     map[string]store.Organization
	comms    []store.Communication
	messages []store.CommunicationMessage
	failNext error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{orgs: map[string]store.Organization{
		"support@acme.example": {ID: "org-acme", Name: "Acme", Email: "support@acme.example"},
	}}
}

func (m *memoryStore) CommunicationMessageExists(ctx context.Context, id string) (bool, error) {
	for _, msg := range m.messages {
		if msg.EmailMessageID == id {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryStore) GetOrganizationByEmail(ctx context.Context, email string) (store.Organization, error) {
	if org, ok := m.orgs[strings.ToLower(email)]; ok {
		return org, nil
	}
	return store.Organization{}, sql.ErrNoRows
}

func (m *memoryStore) FindCommunicationByEmailMessageIDs(ctx context.Context, orgID string, ids []string) (store.Communication, error) {
	for i := len(m.messages) - 1; i >= 0; i-- {
		for _, id := range ids {
			if m.messages[i].EmailMessageID == id {
				for _, comm := range m.comms {
					if comm.ID == m.messages[i].CommunicationID && comm.OrganizationID == orgID {
						return comm, nil
					}
				}
			}
		}
	}
	return store.Communication{}, sql.ErrNoRows
}

func (m *memoryStore) ListCommunicationsByClientEmail(ctx context.Context, orgID, email string) ([]store.Communication, error) {
	var out []store.Communication
	for i := len(m.comms) - 1; i >= 0; i-- {
		if m.comms[i].OrganizationID == orgID && strings.EqualFold(m.comms[i].ClientEmail, email) {
			out = append(out, m.comms[i])
		}
	}
	return out, nil
}

func (m *memoryStore) CreateCommunication(ctx context.Context, item store.Communication, first store.CommunicationMessage) (store.Communication, store.CommunicationMessage, error) {
	if err := m.takeFailure(); err != nil {
		return store.Communication{}, store.CommunicationMessage{}, err
	}
	first.CommunicationID = item.ID
	m.comms = append(m.comms, item)
	m.messages = append(m.messages, first)
	return item, first, nil
}

func (m *memoryStore) AppendCommunicationMessage(ctx context.Context, msg store.CommunicationMessage, status string) (store.CommunicationMessage, error) {
	if err := m.takeFailure(); err != nil {
		return store.CommunicationMessage{}, err
	}
	for i := range m.comms {
		if m.comms[i].ID != msg.CommunicationID {
			continue
		}
		if status != "" {
			m.comms[i].Status = status
		}
		// keep the slice ordered by update time
		comm := m.comms[i]
		m.comms = append(append(m.comms[:i:i], m.comms[i+1:]...), comm)
		m.messages = append(m.messages, msg)
		return msg, nil
	}
	return store.CommunicationMessage{}, sql.ErrNoRows
}

func (m *memoryStore) takeFailure() error {
	err := m.failNext
	m.failNext = nil
	return err
}

func (m *memoryStore) messagesOf(commID string) []store.CommunicationMessage {
	var out []store.CommunicationMessage
	for _, msg := range m.messages {
		if msg.CommunicationID == commID {
			out = append(out, msg)
		}
	}
	return out
}

type savedFiles struct {
	ownerID string
	names   []string
	err     error
}

func (s *savedFiles) Save(ctx context.Context, orgID, ownerType, ownerID, uploadedBy string, files []blob.File) ([]store.Attachment, error) {
	s.ownerID = ownerID
	for _, f := range files {
		data, _ := io.ReadAll(f.Body)
		s.names = append(s.names, f.Name+":"+string(data))
	}
	return nil, s.err
}

func newTestBridge(st *memoryStore, files FileSaver, defaultOrg string) *Bridge {
	b := NewBridge(st, files, Options{MailboxAddress: "Support@Acme.example", DefaultOrgID: defaultOrg}, nil)
	b.now = func() time.Time { return time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC) }
	return b
}

func TestBridgeCreatesThenAppends(t *testing.T) {
	ctx := context.Background()
	st := newMemoryStore()
	var notified []string
	b := newTestBridge(st, nil, "")
	b.opts.OnThread = func(ctx context.Context, orgID, commID string) { notified = append(notified, orgID+"/"+commID) }

	first, err := b.Process(ctx, Incoming{
		MessageID:   "m1@client",
		FromName:    "Dana",
		FromAddress: "dana@client.example",
		Recipients:  []string{"support@acme.example"},
		Subject:     "Broken login",
		Text:        "It fails",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, first.Outcome)
	assert.Equal(t, "org-acme", first.OrganizationID)
	require.Len(t, st.comms, 1)
	assert.Equal(t, "Dana", st.comms[0].ClientName)
	assert.Equal(t, "new", st.comms[0].Status)
	assert.Equal(t, time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC), st.messages[0].CreatedAt)
	assert.Equal(t, "client", st.messages[0].AuthorType)

	second, err := b.Process(ctx, Incoming{
		MessageID:   "m2@client",
		FromAddress: "DANA@client.example",
		Recipients:  []string{"support@acme.example"},
		Subject:     "RE: [Acme] broken   LOGIN",
		Text:        "Still failing\n\nOn Mon, Support wrote:\n> fixed?",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAppended, second.Outcome)
	assert.Equal(t, first.CommunicationID, second.CommunicationID)

	msgs := st.messagesOf(first.CommunicationID)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Still failing", msgs[1].Text)
	assert.Equal(t, []string{"org-acme/" + first.CommunicationID, "org-acme/" + first.CommunicationID}, notified)
}

func TestBridgeMatchesByReferencesFirst(t *testing.T) {
	ctx := context.Background()
	st := newMemoryStore()
	b := newTestBridge(st, nil, "")

	st.comms = append(st.comms, store.Communication{ID: "c-old", OrganizationID: "org-acme", ClientEmail: "dana@client.example", Subject: "Original", Status: "closed"})
	st.messages = append(st.messages, store.CommunicationMessage{ID: "x", CommunicationID: "c-old", EmailMessageID: "staff-reply@acme"})

	res, err := b.Process(ctx, Incoming{
		MessageID:   "m3@client",
		InReplyTo:   []string{"staff-reply@acme"},
		FromAddress: "dana@client.example",
		Recipients:  []string{"support@acme.example"},
		Subject:     "completely different subject",
		Text:        "thanks",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAppended, res.Outcome)
	assert.Equal(t, "c-old", res.CommunicationID)
	assert.Equal(t, "in_progress", st.comms[len(st.comms)-1].Status, "a closed thread reopens")
}

func TestBridgeSkips(t *testing.T) {
	ctx := context.Background()
	st := newMemoryStore()
	b := newTestBridge(st, nil, "")

	res, err := b.Process(ctx, Incoming{FromAddress: "support@acme.example", Subject: "loop"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeOwnMail, res.Outcome)

	res, err = b.Process(ctx, Incoming{FromAddress: "x@y.z", Recipients: []string{"nobody@else.example"}, Subject: "hi"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoTenant, res.Outcome)

	_, err = b.Process(ctx, Incoming{MessageID: "dup@y", FromAddress: "x@y.z", Recipients: []string{"support@acme.example"}, Subject: "hi"})
	require.NoError(t, err)
	res, err = b.Process(ctx, Incoming{MessageID: "dup@y", FromAddress: "x@y.z", Recipients: []string{"support@acme.example"}, Subject: "hi"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, res.Outcome)
	assert.Len(t, st.comms, 1)
}

func TestBridgeDefaultOrganizationAndPlaceholders(t *testing.T) {
	st := newMemoryStore()
	b := newTestBridge(st, nil, "org-default")

	res, err := b.Process(context.Background(), Incoming{FromAddress: "anon@x.example", Recipients: []string{"other@x.example"}})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, res.Outcome)
	assert.Equal(t, "org-default", st.comms[0].OrganizationID)
	assert.Equal(t, NoSubject, st.comms[0].Subject)
	assert.Equal(t, "anon@x.example", st.comms[0].ClientName)
	assert.Equal(t, NoText, st.messages[0].Text)

	res, err = b.Process(context.Background(), Incoming{MessageID: "second@x", FromAddress: "anon@x.example", Recipients: []string{"other@x.example"}, Text: "again"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAppended, res.Outcome, "a second subjectless mail joins the placeholder thread")
	assert.Len(t, st.comms, 1)
}

func TestBridgeStorageErrorIsReturned(t *testing.T) {
	st := newMemoryStore()
	st.failNext = errors.New("db down")
	b := newTestBridge(st, nil, "")

	_, err := b.Process(context.Background(), Incoming{MessageID: "m@x", FromAddress: "a@b.example", Recipients: []string{"support@acme.example"}, Subject: "s"})
	require.Error(t, err)
	assert.Empty(t, st.comms)
}

func TestBridgeAttachmentsAreSavedAndFailuresTolerated(t *testing.T) {
	st := newMemoryStore()
	files := &savedFiles{err: errors.New("bucket offline")}
	b := newTestBridge(st, files, "")

	res, err := b.Process(context.Background(), Incoming{
		FromAddress: "a@b.example",
		Recipients:  []string{"support@acme.example"},
		Subject:     "scan",
		Attachments: []Attachment{{Filename: "scan.pdf", ContentType: "application/pdf", Data: []byte("PDF")}},
	})
	require.NoError(t, err)
	assert.Equal(t, res.CommunicationID, files.ownerID)
	assert.Equal(t, []string{"scan.pdf:PDF"}, files.names)
}

func TestMatchThread(t *testing.T) {
	candidates := []store.Communication{
		{ID: "newest", Subject: "Other"},
		{ID: "recent", Subject: "Re: Invoice"},
		{ID: "older", Subject: "invoice"},
	}
	got, ok := MatchThread(candidates, "FW: invoice")
	require.True(t, ok)
	assert.Equal(t, "recent", got.ID)

	_, ok = MatchThread(candidates, "unrelated")
	assert.False(t, ok)
}
