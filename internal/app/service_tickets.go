package app

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/blob"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/export"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/search"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/store"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/tracker"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/util"
)

// TicketInput is both the create body and the partial update body; fields
// left out of an update keep their value.
type TicketInput struct {
	Title        *string                      `json:"title"`
	Description  *string                      `json:"description"`
	Status       *string                      `json:"status"`
	Priority     *string                      `json:"priority"`
	Type         *string                      `json:"type"`
	Reporter     *string                      `json:"reporter"`
	Assignee     optional[string]             `json:"assignee"`
	Client       optional[store.TicketClient] `json:"client"`
	Labels       *[]string                    `json:"labels"`
	AutoAssign   *store.AutoAssign            `json:"autoAssign"`
	CustomFields *[]store.CustomField         `json:"customFields"`
	TimeTracking optional[store.TimeTracking] `json:"timeTracking"`
	StoryPoints  optional[int]                `json:"storyPoints"`
	DueDate      optional[string]             `json:"dueDate"`
	Sprint       optional[string]             `json:"sprint"`
	Dependencies *[]string                    `json:"dependencies"`
}

const systemActor = "system"

func (s *Service) ListTickets(ctx context.Context, session Session, filter store.TicketFilter) ([]map[string]any, error) {
	tickets, err := s.store.ListTickets(ctx, session.OrgID, filter)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(tickets))
	for _, ticket := range tickets {
		items = append(items, ticketPayload(ticket))
	}
	return items, nil
}

func (s *Service) CreateTicket(ctx context.Context, session Session, input TicketInput) (map[string]any, error) {
	problems := map[string]string{}
	ticket := store.Ticket{
		ID:             util.NewID(),
		OrganizationID: session.OrgID,
		Status:         tracker.DefaultTicketStatus,
		Priority:       tracker.DefaultPriority,
		Type:           tracker.DefaultTicketType,
		Reporter:       actorName(session, systemActor),
	}
	if input.Title == nil || strings.TrimSpace(*input.Title) == "" {
		problems["title"] = "title is required"
	}
	if input.Description == nil || strings.TrimSpace(*input.Description) == "" {
		problems["description"] = "description is required"
	}
	if input.Reporter != nil && strings.TrimSpace(*input.Reporter) != "" {
		ticket.Reporter = strings.TrimSpace(*input.Reporter)
	}
	input.Status = nil
	if err := s.applyTicketInput(ctx, session, &ticket, input, problems); err != nil {
		return nil, err
	}
	if len(problems) > 0 {
		return nil, validationFailed(problems)
	}
	if ticket.TimeTracking != nil {
		ticket.TimeTracking.Remaining = ticket.TimeTracking.Estimated
		ticket.TimeTracking.Spent = 0
	}

	var history []store.TicketHistory
	if ticket.AssigneeID == nil {
		if assignee, ok := tracker.MatchAutoAssign(ticket); ok {
			ticket.AssigneeID = &assignee
			history = append(history, store.TicketHistory{
				Field:     "assignee",
				OldValue:  nil,
				NewValue:  assignee,
				ChangedBy: ticket.Reporter,
			})
		}
	}

	key, err := tracker.NewTicketKey(ctx, s.store.TicketKeyExists)
	if err != nil {
		return nil, err
	}
	ticket.Key = key

	created, err := s.store.CreateTicket(ctx, ticket, history)
	if err != nil {
		return nil, err
	}
	s.search.IndexTicket(search.TicketRecordFrom(created))
	s.logger.Info("ticket created", zap.String("org_id", created.OrganizationID), zap.String("key", created.Key))
	return s.ticketDetail(ctx, created)
}

func (s *Service) GetTicket(ctx context.Context, session Session, idOrKey string) (map[string]any, error) {
	ticket, err := s.resolveTicket(ctx, session, idOrKey)
	if err != nil {
		return nil, err
	}
	return s.ticketDetail(ctx, ticket)
}

func (s *Service) UpdateTicket(ctx context.Context, session Session, idOrKey string, input TicketInput) (map[string]any, error) {
	before, err := s.resolveTicket(ctx, session, idOrKey)
	if err != nil {
		return nil, err
	}
	after := before
	problems := map[string]string{}
	if input.Title != nil && strings.TrimSpace(*input.Title) == "" {
		problems["title"] = "title cannot be empty"
	}
	if input.Description != nil && strings.TrimSpace(*input.Description) == "" {
		problems["description"] = "description cannot be empty"
	}
	if err := s.applyTicketInput(ctx, session, &after, input, problems); err != nil {
		return nil, err
	}
	if len(problems) > 0 {
		return nil, validationFailed(problems)
	}

	history := tracker.DiffTickets(before, after, actorName(session, systemActor))
	if len(history) == 0 {
		return s.ticketDetail(ctx, before)
	}
	updated, err := s.store.UpdateTicket(ctx, after, history)
	if err != nil {
		return nil, err
	}
	s.search.IndexTicket(search.TicketRecordFrom(updated))
	return s.ticketDetail(ctx, updated)
}

func (s *Service) AddTicketComment(ctx context.Context, session Session, idOrKey, text string) (map[string]any, error) {
	ticket, err := s.resolveTicket(ctx, session, idOrKey)
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, validationFailed(map[string]string{"text": "text is required"})
	}
	var authorID *string
	if session.UserID != "" {
		id := session.UserID
		authorID = &id
	}
	if _, err := s.store.InsertTicketComment(ctx, store.TicketComment{
		ID:         util.NewID(),
		TicketID:   ticket.ID,
		AuthorID:   authorID,
		AuthorName: actorName(session, systemActor),
		Text:       text,
	}); err != nil {
		return nil, err
	}
	return s.ticketDetail(ctx, ticket)
}

func (s *Service) AddTicketAttachments(ctx context.Context, session Session, idOrKey string, files []blob.File) (map[string]any, error) {
	ticket, err := s.resolveTicket(ctx, session, idOrKey)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, validationFailed(map[string]string{"attachments": "at least one file is required"})
	}
	if _, err := s.saveFiles(ctx, session, store.OwnerTicket, ticket.ID, files); err != nil {
		return nil, err
	}
	return s.ticketDetail(ctx, ticket)
}

func (s *Service) DeleteTicket(ctx context.Context, session Session, idOrKey string) error {
	ticket, err := s.resolveTicket(ctx, session, idOrKey)
	if err != nil {
		return err
	}
	attachments, err := s.store.ListAttachments(ctx, store.OwnerTicket, ticket.ID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteTicket(ctx, session.OrgID, ticket.ID); err != nil {
		return err
	}
	s.removeObjects(ctx, attachments)
	s.search.DeleteTicket(ticket.ID)
	return nil
}

func (s *Service) ExportTicket(ctx context.Context, session Session, idOrKey, format string) (*export.Result, error) {
	parsed, err := parseExportFormat(format)
	if err != nil {
		return nil, err
	}
	ticket, err := s.resolveTicket(ctx, session, idOrKey)
	if err != nil {
		return nil, err
	}
	comments, err := s.store.ListTicketComments(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}

	doc := export.Ticket{
		Key:              ticket.Key,
		Title:            ticket.Title,
		Description:      ticket.Description,
		Status:           ticket.Status,
		Priority:         ticket.Priority,
		Type:             ticket.Type,
		Reporter:         ticket.Reporter,
		Labels:           ticket.Labels,
		StoryPoints:      ticket.StoryPoints,
		DueDate:          ticket.DueDate,
		OrganizationName: session.OrgName,
		CreatedAt:        ticket.CreatedAt,
		UpdatedAt:        ticket.UpdatedAt,
	}
	if ticket.AssigneeID != nil {
		doc.Assignee = *ticket.AssigneeID
		if user, err := s.store.GetUserByID(ctx, *ticket.AssigneeID); err == nil {
			doc.Assignee = user.Name
		}
	}
	if ticket.Client != nil {
		doc.ClientName = ticket.Client.Name
		doc.ClientEmail = ticket.Client.Email
	}
	for _, comment := range comments {
		doc.Comments = append(doc.Comments, export.Comment{Author: comment.AuthorName, Text: comment.Text, CreatedAt: comment.CreatedAt})
	}
	result, err := s.exporter.Ticket(ctx, doc, parsed)
	if err != nil {
		return nil, exportError(err)
	}
	return result, nil
}

// resolveTicket accepts a ticket id or its ABC-12345 key. Anything outside
// the caller's organization is reported as missing.
func (s *Service) resolveTicket(ctx context.Context, session Session, idOrKey string) (store.Ticket, error) {
	idOrKey = strings.TrimSpace(idOrKey)
	var (
		ticket store.Ticket
		err    error
	)
	switch {
	case util.IsID(idOrKey):
		ticket, err = s.store.GetTicket(ctx, session.OrgID, idOrKey)
	case tracker.IsTicketKey(strings.ToUpper(idOrKey)):
		ticket, err = s.store.GetTicketByKey(ctx, session.OrgID, strings.ToUpper(idOrKey))
	default:
		return store.Ticket{}, errNotFound()
	}
	if err != nil {
		if isNotFound(err) {
			return store.Ticket{}, errNotFound()
		}
		return store.Ticket{}, err
	}
	return ticket, nil
}

func (s *Service) ticketDetail(ctx context.Context, ticket store.Ticket) (map[string]any, error) {
	comments, err := s.store.ListTicketComments(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	attachments, err := s.store.ListAttachments(ctx, store.OwnerTicket, ticket.ID)
	if err != nil {
		return nil, err
	}
	history, err := s.store.ListTicketHistory(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	payload := ticketPayload(ticket)
	payload["comments"] = ticketCommentPayloads(comments)
	payload["attachments"] = attachmentPayloads(attachments)
	payload["history"] = ticketHistoryPayloads(history)
	return payload, nil
}

// applyTicketInput copies the present fields of input onto ticket, recording
// validation problems. Only store failures are returned as errors.
func (s *Service) applyTicketInput(ctx context.Context, session Session, ticket *store.Ticket, input TicketInput, problems map[string]string) error {
	if input.Title != nil {
		ticket.Title = strings.TrimSpace(*input.Title)
	}
	if input.Description != nil {
		ticket.Description = strings.TrimSpace(*input.Description)
	}
	if input.Status != nil {
		if tracker.OneOf(tracker.TicketStatuses, *input.Status) {
			ticket.Status = *input.Status
		} else {
			problems["status"] = "status must be one of " + strings.Join(tracker.TicketStatuses, ", ")
		}
	}
	if input.Priority != nil {
		if tracker.OneOf(tracker.Priorities, *input.Priority) {
			ticket.Priority = *input.Priority
		} else {
			problems["priority"] = "priority must be one of " + strings.Join(tracker.Priorities, ", ")
		}
	}
	if input.Type != nil {
		if tracker.OneOf(tracker.TicketTypes, *input.Type) {
			ticket.Type = *input.Type
		} else {
			problems["type"] = "type must be one of " + strings.Join(tracker.TicketTypes, ", ")
		}
	}
	if input.Client.Set {
		ticket.Client = normalizeClient(input.Client.Value)
	}
	if input.Labels != nil {
		ticket.Labels = trimList(*input.Labels)
	}
	if input.AutoAssign != nil {
		rules := make([]store.AutoAssignRule, 0, len(input.AutoAssign.Rules))
		for i, rule := range input.AutoAssign.Rules {
			if !tracker.OneOf(tracker.AutoAssignConditions, rule.Condition) {
				problems["autoAssign.rules"] = "rule " + strconv.Itoa(i) + " has an unknown condition"
				continue
			}
			assignee := strings.TrimSpace(rule.Assignee)
			if assignee != "" {
				ok, err := s.isMember(ctx, session.OrgID, assignee)
				if err != nil {
					return err
				}
				if !ok {
					problems["autoAssign.rules"] = "rule " + strconv.Itoa(i) + " assignee must be a user of the organization"
					continue
				}
			}
			rules = append(rules, store.AutoAssignRule{
				Condition: rule.Condition,
				Value:     strings.TrimSpace(rule.Value),
				Assignee:  assignee,
			})
		}
		ticket.AutoAssign = store.AutoAssign{Enabled: input.AutoAssign.Enabled, Rules: rules}
	}
	if input.CustomFields != nil {
		ticket.CustomFields = *input.CustomFields
	}
	if input.TimeTracking.Set {
		ticket.TimeTracking = input.TimeTracking.Value
	}
	if input.StoryPoints.Set {
		if input.StoryPoints.Value != nil && *input.StoryPoints.Value < 0 {
			problems["storyPoints"] = "storyPoints cannot be negative"
		} else {
			ticket.StoryPoints = input.StoryPoints.Value
		}
	}
	if input.DueDate.Set {
		ticket.DueDate = parseDate(input.DueDate, "dueDate", problems)
	}
	if input.Dependencies != nil {
		deps := trimList(*input.Dependencies)
		for _, dep := range deps {
			if dep == ticket.ID || !util.IsID(dep) {
				problems["dependencies"] = "dependencies must be ids of other tickets"
			}
		}
		ticket.Dependencies = deps
	}
	if input.Assignee.Set {
		assignee := optionalID(input.Assignee)
		if assignee != nil {
			ok, err := s.isMember(ctx, session.OrgID, *assignee)
			if err != nil {
				return err
			}
			if !ok {
				problems["assignee"] = "assignee must be a user of the organization"
			}
		}
		ticket.AssigneeID = assignee
	}
	if input.Sprint.Set {
		sprintID := optionalID(input.Sprint)
		if sprintID != nil {
			if !util.IsID(*sprintID) {
				problems["sprint"] = "sprint not found"
			} else if _, err := s.store.GetSprint(ctx, session.OrgID, *sprintID); err != nil {
				if !isNotFound(err) {
					return err
				}
				problems["sprint"] = "sprint not found"
			}
		}
		ticket.SprintID = sprintID
	}
	return nil
}

// isMember reports whether userID is a user of the organization.
func (s *Service) isMember(ctx context.Context, orgID, userID string) (bool, error) {
	if !util.IsID(userID) {
		return false, nil
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return user.OrgID() == orgID, nil
}

func normalizeClient(client *store.TicketClient) *store.TicketClient {
	if client == nil {
		return nil
	}
	trimmed := store.TicketClient{
		Name:    strings.TrimSpace(client.Name),
		Email:   strings.TrimSpace(client.Email),
		Phone:   strings.TrimSpace(client.Phone),
		Company: strings.TrimSpace(client.Company),
	}
	if trimmed.IsEmpty() {
		return nil
	}
	return &trimmed
}
