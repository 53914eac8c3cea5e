package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/blob"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/email"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/search"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/store"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/tracker"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/util"
)

const staffActor = "Staff"

type CommunicationInput struct {
	ClientName  string `json:"clientName"`
	ClientEmail string `json:"clientEmail"`
	ClientPhone string `json:"clientPhone"`
	Subject     string `json:"subject"`
	Message     string `json:"message"`
	Status      string `json:"status"`
}

type CommentInput struct {
	Text   string `json:"text"`
	Author string `json:"author"`
}

func (s *Service) ListCommunications(ctx context.Context, session Session) ([]map[string]any, error) {
	items, err := s.store.ListCommunications(ctx, session.OrgID)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		out = append(out, communicationPayload(item))
	}
	return out, nil
}

func (s *Service) GetCommunication(ctx context.Context, session Session, communicationID string) (map[string]any, error) {
	item, err := s.getCommunication(ctx, session, communicationID)
	if err != nil {
		return nil, err
	}
	return s.communicationDetail(ctx, item)
}

// CreateCommunication opens a thread on behalf of a client. The first message
// is mailed to the client when an address is known and SMTP is configured.
func (s *Service) CreateCommunication(ctx context.Context, session Session, input CommunicationInput, files []blob.File) (map[string]any, error) {
	problems := map[string]string{}
	clientName := strings.TrimSpace(input.ClientName)
	clientEmail := strings.TrimSpace(input.ClientEmail)
	subject := strings.TrimSpace(input.Subject)
	text := strings.TrimSpace(input.Message)
	if clientName == "" {
		problems["clientName"] = "clientName is required"
	}
	if subject == "" {
		problems["subject"] = "subject is required"
	}
	if text == "" {
		problems["message"] = "message is required"
	}
	status := strings.TrimSpace(input.Status)
	if status == "" {
		status = tracker.CommunicationNew
	} else if !tracker.OneOf(tracker.CommunicationStatuses, status) {
		problems["status"] = "status must be one of " + strings.Join(tracker.CommunicationStatuses, ", ")
	}
	if len(problems) > 0 {
		return nil, validationFailed(problems)
	}

	author := clientEmail
	if author == "" {
		author = clientName
	}
	created, _, err := s.store.CreateCommunication(ctx, store.Communication{
		ID:             util.NewID(),
		OrganizationID: session.OrgID,
		ClientName:     clientName,
		ClientEmail:    clientEmail,
		ClientPhone:    strings.TrimSpace(input.ClientPhone),
		Subject:        subject,
		Status:         status,
	}, store.CommunicationMessage{
		ID:         util.NewID(),
		Author:     author,
		AuthorType: tracker.AuthorClient,
		Text:       text,
	})
	if err != nil {
		return nil, err
	}
	if _, err := s.saveFiles(ctx, session, store.OwnerCommunication, created.ID, files); err != nil {
		return nil, err
	}

	if clientEmail != "" && s.mailer.IsConfigured() {
		if _, err := s.mailer.Send(ctx, email.Message{
			To:      []string{clientEmail},
			Subject: subject,
			Text:    text,
		}); err != nil {
			s.logger.Warn("send communication email failed",
				zap.String("communication_id", created.ID), zap.Error(err))
		}
	}
	s.search.IndexCommunication(search.CommunicationRecordFrom(created))
	return s.communicationDetail(ctx, created)
}

func (s *Service) DeleteCommunication(ctx context.Context, session Session, communicationID string) error {
	item, err := s.getCommunication(ctx, session, communicationID)
	if err != nil {
		return err
	}
	attachments, err := s.store.ListAttachments(ctx, store.OwnerCommunication, item.ID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteCommunication(ctx, session.OrgID, item.ID); err != nil {
		return err
	}
	s.removeObjects(ctx, attachments)
	s.search.DeleteCommunication(item.ID)
	return nil
}

// AddInternalComment records a staff-only note. It is never mailed.
func (s *Service) AddInternalComment(ctx context.Context, session Session, communicationID string, input CommentInput) (map[string]any, error) {
	item, err := s.getCommunication(ctx, session, communicationID)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return nil, validationFailed(map[string]string{"text": "text is required"})
	}
	if _, err := s.store.AppendCommunicationMessage(ctx, store.CommunicationMessage{
		ID:              util.NewID(),
		CommunicationID: item.ID,
		Author:          firstNonBlank(input.Author, session.UserName, staffActor),
		AuthorType:      tracker.AuthorInternal,
		Text:            text,
	}, ""); err != nil {
		return nil, err
	}
	return s.reloadCommunication(ctx, session, item.ID)
}

// Reply answers the client. Files are stored on the thread and attached to
// the outgoing mail, which continues the client's last message.
func (s *Service) Reply(ctx context.Context, session Session, communicationID, text string, files []blob.File) (map[string]any, error) {
	item, err := s.getCommunication(ctx, session, communicationID)
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" && len(files) == 0 {
		return nil, domainError(http.StatusBadRequest, "EMPTY_REPLY", "Reply text or files are required", nil)
	}
	if text == "" {
		text = attachmentPlaceholder
	}

	buffered, attachments, err := bufferFiles(files)
	if err != nil {
		return nil, err
	}
	if _, err := s.saveFiles(ctx, session, store.OwnerCommunication, item.ID, buffered); err != nil {
		return nil, err
	}

	message := store.CommunicationMessage{
		ID:              util.NewID(),
		CommunicationID: item.ID,
		Author:          actorName(session, staffActor),
		AuthorType:      tracker.AuthorStaff,
		Text:            text,
	}
	if item.ClientEmail != "" && s.mailer.IsConfigured() {
		messageID, err := s.sendReply(ctx, item, text, attachments)
		if err != nil {
			s.logger.Warn("send reply email failed", zap.String("communication_id", item.ID), zap.Error(err))
		} else {
			message.EmailMessageID = messageID
		}
	}

	status := ""
	if item.Status == tracker.CommunicationNew {
		status = tracker.CommunicationOpen
	}
	if _, err := s.store.AppendCommunicationMessage(ctx, message, status); err != nil {
		return nil, err
	}
	return s.reloadCommunication(ctx, session, item.ID)
}

func (s *Service) SetCommunicationStatus(ctx context.Context, session Session, communicationID, status string) (map[string]any, error) {
	item, err := s.getCommunication(ctx, session, communicationID)
	if err != nil {
		return nil, err
	}
	status = strings.TrimSpace(status)
	if !tracker.OneOf(tracker.CommunicationStatuses, status) {
		return nil, validationFailed(map[string]string{
			"status": "status must be one of " + strings.Join(tracker.CommunicationStatuses, ", "),
		})
	}
	updated, err := s.store.SetCommunicationStatus(ctx, session.OrgID, item.ID, status)
	if err != nil {
		return nil, err
	}
	s.search.IndexCommunication(search.CommunicationRecordFrom(updated))
	return s.communicationDetail(ctx, updated)
}

// MailThreadHook reindexes a thread the mail bridge created or extended.
func (s *Service) MailThreadHook(ctx context.Context, orgID, communicationID string) {
	item, err := s.store.GetCommunication(ctx, orgID, communicationID)
	if err != nil {
		s.logger.Warn("reload mailed communication failed", zap.String("communication_id", communicationID), zap.Error(err))
		return
	}
	s.search.IndexCommunication(search.CommunicationRecordFrom(item))
}

func (s *Service) sendReply(ctx context.Context, item store.Communication, text string, attachments []email.Attachment) (string, error) {
	msg := email.Message{
		To:          []string{item.ClientEmail},
		Subject:     replySubject(item.Subject),
		Text:        text,
		Attachments: attachments,
	}
	messages, err := s.store.ListCommunicationMessages(ctx, item.ID)
	if err != nil {
		return "", err
	}
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].AuthorType == tracker.AuthorClient && messages[i].EmailMessageID != "" {
			msg.InReplyTo = messages[i].EmailMessageID
			msg.References = []string{messages[i].EmailMessageID}
			break
		}
	}
	return s.mailer.Send(ctx, msg)
}

func (s *Service) reloadCommunication(ctx context.Context, session Session, communicationID string) (map[string]any, error) {
	item, err := s.store.GetCommunication(ctx, session.OrgID, communicationID)
	if err != nil {
		return nil, err
	}
	s.search.IndexCommunication(search.CommunicationRecordFrom(item))
	return s.communicationDetail(ctx, item)
}

func (s *Service) getCommunication(ctx context.Context, session Session, communicationID string) (store.Communication, error) {
	if !util.IsID(communicationID) {
		return store.Communication{}, errNotFound()
	}
	item, err := s.store.GetCommunication(ctx, session.OrgID, communicationID)
	if err != nil {
		if isNotFound(err) {
			return store.Communication{}, errNotFound()
		}
		return store.Communication{}, err
	}
	return item, nil
}

func (s *Service) communicationDetail(ctx context.Context, item store.Communication) (map[string]any, error) {
	messages, err := s.store.ListCommunicationMessages(ctx, item.ID)
	if err != nil {
		return nil, err
	}
	files, err := s.store.ListAttachments(ctx, store.OwnerCommunication, item.ID)
	if err != nil {
		return nil, err
	}
	payload := communicationPayload(item)
	list := make([]map[string]any, 0, len(messages))
	for _, message := range messages {
		list = append(list, communicationMessagePayload(message))
	}
	payload["messages"] = list
	payload["files"] = attachmentPayloads(files)
	return payload, nil
}

// bufferFiles reads uploads into memory so the same bytes can be stored and
// mailed.
func bufferFiles(files []blob.File) ([]blob.File, []email.Attachment, error) {
	buffered := make([]blob.File, 0, len(files))
	attachments := make([]email.Attachment, 0, len(files))
	for _, file := range files {
		data, err := io.ReadAll(file.Body)
		if err != nil {
			return nil, nil, fmt.Errorf("read upload %q: %w", file.Name, err)
		}
		buffered = append(buffered, blob.File{
			Name:        file.Name,
			ContentType: file.ContentType,
			Size:        int64(len(data)),
			Body:        bytes.NewReader(data),
		})
		attachments = append(attachments, email.Attachment{
			Name:        blob.LatinName(file.Name),
			ContentType: file.ContentType,
			Data:        data,
		})
	}
	return buffered, attachments, nil
}

func replySubject(subject string) string {
	if strings.HasPrefix(strings.ToLower(subject), "re:") {
		return subject
	}
	return "Re: " + subject
}
