package app

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/search"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/store"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/tracker"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/util"
)

type SprintInput struct {
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	StartDate   *string   `json:"startDate"`
	EndDate     *string   `json:"endDate"`
	Status      *string   `json:"status"`
	Goals       *[]string `json:"goals"`
}

func (s *Service) ListSprints(ctx context.Context, session Session) ([]map[string]any, error) {
	sprints, err := s.store.ListSprints(ctx, session.OrgID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(sprints))
	for _, sprint := range sprints {
		items = append(items, sprintPayload(sprint))
	}
	return items, nil
}

func (s *Service) GetActiveSprint(ctx context.Context, session Session) (map[string]any, error) {
	sprint, err := s.store.GetActiveSprint(ctx, session.OrgID)
	if err != nil {
		if isNotFound(err) {
			return nil, domainError(http.StatusNotFound, "NOT_FOUND", "No active sprint", nil)
		}
		return nil, err
	}
	return sprintPayload(sprint), nil
}

func (s *Service) CreateSprint(ctx context.Context, session Session, input SprintInput) (map[string]any, error) {
	problems := map[string]string{}
	sprint := store.Sprint{
		ID:             util.NewID(),
		OrganizationID: session.OrgID,
		Status:         tracker.DefaultSprintStatus,
	}
	if session.UserID != "" {
		createdBy := session.UserID
		sprint.CreatedBy = &createdBy
	}
	if input.Name == nil || strings.TrimSpace(*input.Name) == "" {
		problems["name"] = "name is required"
	}
	if input.StartDate == nil || strings.TrimSpace(*input.StartDate) == "" {
		problems["startDate"] = "startDate is required"
	}
	if input.EndDate == nil || strings.TrimSpace(*input.EndDate) == "" {
		problems["endDate"] = "endDate is required"
	}
	applySprintInput(&sprint, input, problems)
	if len(problems) > 0 {
		return nil, validationFailed(problems)
	}
	created, err := s.store.CreateSprint(ctx, sprint)
	if err != nil {
		return nil, err
	}
	return sprintPayload(created), nil
}

// UpdateSprint applies a partial update. Completing a sprint sends its
// unfinished tickets back to the backlog.
func (s *Service) UpdateSprint(ctx context.Context, session Session, sprintID string, input SprintInput) (map[string]any, error) {
	before, err := s.getSprint(ctx, session, sprintID)
	if err != nil {
		return nil, err
	}
	after := before
	problems := map[string]string{}
	if input.Name != nil && strings.TrimSpace(*input.Name) == "" {
		problems["name"] = "name cannot be empty"
	}
	applySprintInput(&after, input, problems)
	if len(problems) > 0 {
		return nil, validationFailed(problems)
	}
	completing := before.Status != tracker.SprintCompleted && after.Status == tracker.SprintCompleted
	updated, moved, err := s.store.UpdateSprint(ctx, after, completing, actorName(session, systemActor))
	if err != nil {
		return nil, err
	}
	s.reindexTickets(ctx, session.OrgID, moved)
	return sprintPayload(updated), nil
}

func (s *Service) DeleteSprint(ctx context.Context, session Session, sprintID string) error {
	if _, err := s.getSprint(ctx, session, sprintID); err != nil {
		return err
	}
	detached, err := s.store.DeleteSprint(ctx, session.OrgID, sprintID, actorName(session, systemActor))
	if err != nil {
		return err
	}
	s.reindexTickets(ctx, session.OrgID, detached)
	return nil
}

// reindexTickets refreshes search records for tickets changed in bulk.
func (s *Service) reindexTickets(ctx context.Context, orgID string, ids []string) {
	for _, id := range ids {
		ticket, err := s.store.GetTicket(ctx, orgID, id)
		if err != nil {
			s.logger.Warn("reindex ticket failed", zap.String("ticket_id", id), zap.Error(err))
			continue
		}
		s.search.IndexTicket(search.TicketRecordFrom(ticket))
	}
}

func (s *Service) SprintStats(ctx context.Context, session Session, sprintID string) (tracker.SprintStats, error) {
	sprint, err := s.getSprint(ctx, session, sprintID)
	if err != nil {
		return tracker.SprintStats{}, err
	}
	tickets, err := s.store.ListSprintTickets(ctx, sprint.ID)
	if err != nil {
		return tracker.SprintStats{}, err
	}
	return tracker.ComputeSprintStats(tickets), nil
}

func (s *Service) getSprint(ctx context.Context, session Session, sprintID string) (store.Sprint, error) {
	if !util.IsID(sprintID) {
		return store.Sprint{}, errNotFound()
	}
	sprint, err := s.store.GetSprint(ctx, session.OrgID, sprintID)
	if err != nil {
		if isNotFound(err) {
			return store.Sprint{}, errNotFound()
		}
		return store.Sprint{}, err
	}
	return sprint, nil
}

func applySprintInput(sprint *store.Sprint, input SprintInput, problems map[string]string) {
	if input.Name != nil {
		sprint.Name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		sprint.Description = strings.TrimSpace(*input.Description)
	}
	if input.Status != nil {
		if tracker.OneOf(tracker.SprintStatuses, *input.Status) {
			sprint.Status = *input.Status
		} else {
			problems["status"] = "status must be one of " + strings.Join(tracker.SprintStatuses, ", ")
		}
	}
	if input.Goals != nil {
		sprint.Goals = trimList(*input.Goals)
	}
	if value, ok := sprintDate(input.StartDate, "startDate", problems); ok {
		sprint.StartDate = value
	}
	if value, ok := sprintDate(input.EndDate, "endDate", problems); ok {
		sprint.EndDate = value
	}
	if _, bad := problems["startDate"]; bad {
		return
	}
	if _, bad := problems["endDate"]; bad {
		return
	}
	if !sprint.StartDate.IsZero() && !sprint.EndDate.IsZero() && sprint.EndDate.Before(sprint.StartDate) {
		problems["endDate"] = "endDate must not be before startDate"
	}
}

func sprintDate(value *string, field string, problems map[string]string) (time.Time, bool) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return time.Time{}, false
	}
	parsed, err := parseRFC3339(strings.TrimSpace(*value))
	if err != nil {
		problems[field] = field + " must be an RFC 3339 timestamp or YYYY-MM-DD date"
		return time.Time{}, false
	}
	return parsed.UTC(), true
}
