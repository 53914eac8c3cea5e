package app

import (
	"context"
	"net/http"
	"strings"

	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/blob"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/store"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/tracker"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/util"
)

type TaskInput struct {
	Title       *string          `json:"title"`
	Description *string          `json:"description"`
	Status      *string          `json:"status"`
	Priority    *string          `json:"priority"`
	Author      *string          `json:"author"`
	Assignee    *string          `json:"assignee"`
	Tags        *[]string        `json:"tags"`
	DueDate     optional[string] `json:"dueDate"`
}

type TaskCommentInput struct {
	Author   string   `json:"author"`
	Text     string   `json:"text"`
	Mentions []string `json:"mentions"`
}

const attachmentPlaceholder = "[Attachment]"

func (s *Service) ListTasks(ctx context.Context, session Session, filter store.TaskFilter) ([]map[string]any, error) {
	tasks, err := s.store.ListTasks(ctx, session.OrgID, filter)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(tasks))
	for _, task := range tasks {
		items = append(items, taskPayload(task))
	}
	return items, nil
}

func (s *Service) GetTask(ctx context.Context, session Session, taskID string) (map[string]any, error) {
	task, err := s.getTask(ctx, session, taskID)
	if err != nil {
		return nil, err
	}
	return s.taskDetail(ctx, task)
}

func (s *Service) CreateTask(ctx context.Context, session Session, input TaskInput, files []blob.File) (map[string]any, error) {
	problems := map[string]string{}
	task := store.Task{
		ID:             util.NewID(),
		OrganizationID: session.OrgID,
		Status:         tracker.DefaultTaskStatus,
		Priority:       tracker.DefaultPriority,
		Author:         actorName(session, systemActor),
	}
	if input.Title == nil || strings.TrimSpace(*input.Title) == "" {
		problems["title"] = "title is required"
	}
	if input.Author != nil && strings.TrimSpace(*input.Author) != "" {
		task.Author = strings.TrimSpace(*input.Author)
	}
	applyTaskInput(&task, input, problems)
	if len(problems) > 0 {
		return nil, validationFailed(problems)
	}

	created, err := s.store.CreateTask(ctx, task)
	if err != nil {
		return nil, err
	}
	if _, err := s.saveFiles(ctx, session, store.OwnerTask, created.ID, files); err != nil {
		return nil, err
	}
	return s.taskDetail(ctx, created)
}

func (s *Service) UpdateTask(ctx context.Context, session Session, taskID string, input TaskInput) (map[string]any, error) {
	before, err := s.getTask(ctx, session, taskID)
	if err != nil {
		return nil, err
	}
	after := before
	problems := map[string]string{}
	if input.Title != nil && strings.TrimSpace(*input.Title) == "" {
		problems["title"] = "title cannot be empty"
	}
	applyTaskInput(&after, input, problems)
	if len(problems) > 0 {
		return nil, validationFailed(problems)
	}
	updated, err := s.store.UpdateTask(ctx, after, tracker.DiffTasks(before, after, actorName(session, systemActor)))
	if err != nil {
		return nil, err
	}
	return s.taskDetail(ctx, updated)
}

func (s *Service) DeleteTask(ctx context.Context, session Session, taskID string) error {
	task, err := s.getTask(ctx, session, taskID)
	if err != nil {
		return err
	}
	attachments, err := s.taskAttachments(ctx, task.ID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteTask(ctx, session.OrgID, task.ID); err != nil {
		return err
	}
	s.removeObjects(ctx, attachments)
	return nil
}

// AddTaskComment stores a comment with optional files and returns the
// task's comment list.
func (s *Service) AddTaskComment(ctx context.Context, session Session, taskID string, input TaskCommentInput, files []blob.File) ([]map[string]any, error) {
	task, err := s.getTask(ctx, session, taskID)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(input.Text)
	if text == "" && len(files) == 0 {
		return nil, domainError(http.StatusBadRequest, "EMPTY_COMMENT", "Comment text or files are required", nil)
	}
	if text == "" {
		text = attachmentPlaceholder
	}
	author := strings.TrimSpace(input.Author)
	if author == "" {
		author = actorName(session, systemActor)
	}

	comment, err := s.store.InsertTaskComment(ctx, store.TaskComment{
		ID:       util.NewID(),
		TaskID:   task.ID,
		Author:   author,
		Text:     text,
		Mentions: trimList(input.Mentions),
	})
	if err != nil {
		return nil, err
	}
	if _, err := s.saveFiles(ctx, session, store.OwnerTaskComment, comment.ID, files); err != nil {
		return nil, err
	}
	if err := s.store.InsertTaskHistory(ctx, store.TaskHistory{TaskID: task.ID, Action: "commented", Author: author}); err != nil {
		return nil, err
	}
	return s.taskComments(ctx, task.ID)
}

// AddTaskAttachments stores files on the task and returns its attachments.
func (s *Service) AddTaskAttachments(ctx context.Context, session Session, taskID string, files []blob.File) ([]map[string]any, error) {
	task, err := s.getTask(ctx, session, taskID)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, validationFailed(map[string]string{"attachments": "at least one file is required"})
	}
	saved, err := s.saveFiles(ctx, session, store.OwnerTask, task.ID, files)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(saved))
	for _, item := range saved {
		names = append(names, item.OriginalName)
	}
	if err := s.store.InsertTaskHistory(ctx, store.TaskHistory{
		TaskID: task.ID,
		Action: "attachment_added",
		Author: actorName(session, systemActor),
		To:     strings.Join(names, ", "),
	}); err != nil {
		return nil, err
	}
	attachments, err := s.store.ListAttachments(ctx, store.OwnerTask, task.ID)
	if err != nil {
		return nil, err
	}
	return attachmentPayloads(attachments), nil
}

func (s *Service) getTask(ctx context.Context, session Session, taskID string) (store.Task, error) {
	if !util.IsID(taskID) {
		return store.Task{}, errNotFound()
	}
	task, err := s.store.GetTask(ctx, session.OrgID, taskID)
	if err != nil {
		if isNotFound(err) {
			return store.Task{}, errNotFound()
		}
		return store.Task{}, err
	}
	return task, nil
}

func (s *Service) taskDetail(ctx context.Context, task store.Task) (map[string]any, error) {
	attachments, err := s.store.ListAttachments(ctx, store.OwnerTask, task.ID)
	if err != nil {
		return nil, err
	}
	comments, err := s.taskComments(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	history, err := s.store.ListTaskHistory(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	payload := taskPayload(task)
	payload["attachments"] = attachmentPayloads(attachments)
	payload["comments"] = comments
	payload["history"] = taskHistoryPayloads(history)
	return payload, nil
}

// taskComments loads the comments with their attachments.
func (s *Service) taskComments(ctx context.Context, taskID string) ([]map[string]any, error) {
	comments, err := s.store.ListTaskComments(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if len(comments) > 0 {
		ids := make([]string, 0, len(comments))
		for _, comment := range comments {
			ids = append(ids, comment.ID)
		}
		attachments, err := s.store.ListAttachments(ctx, store.OwnerTaskComment, ids...)
		if err != nil {
			return nil, err
		}
		byComment := make(map[string][]store.Attachment, len(comments))
		for _, item := range attachments {
			byComment[item.OwnerID] = append(byComment[item.OwnerID], item)
		}
		for i := range comments {
			comments[i].Attachments = byComment[comments[i].ID]
		}
	}
	return taskCommentPayloads(comments), nil
}

func (s *Service) taskAttachments(ctx context.Context, taskID string) ([]store.Attachment, error) {
	own, err := s.store.ListAttachments(ctx, store.OwnerTask, taskID)
	if err != nil {
		return nil, err
	}
	comments, err := s.store.ListTaskComments(ctx, taskID)
	if err != nil || len(comments) == 0 {
		return own, err
	}
	ids := make([]string, 0, len(comments))
	for _, comment := range comments {
		ids = append(ids, comment.ID)
	}
	nested, err := s.store.ListAttachments(ctx, store.OwnerTaskComment, ids...)
	if err != nil {
		return nil, err
	}
	return append(own, nested...), nil
}

func applyTaskInput(task *store.Task, input TaskInput, problems map[string]string) {
	if input.Title != nil {
		task.Title = strings.TrimSpace(*input.Title)
	}
	if input.Description != nil {
		task.Description = strings.TrimSpace(*input.Description)
	}
	if input.Status != nil {
		if tracker.OneOf(tracker.TaskStatuses, *input.Status) {
			task.Status = *input.Status
		} else {
			problems["status"] = "status must be one of " + strings.Join(tracker.TaskStatuses, ", ")
		}
	}
	if input.Priority != nil {
		if tracker.OneOf(tracker.Priorities, *input.Priority) {
			task.Priority = *input.Priority
		} else {
			problems["priority"] = "priority must be one of " + strings.Join(tracker.Priorities, ", ")
		}
	}
	if input.Assignee != nil {
		task.Assignee = strings.TrimSpace(*input.Assignee)
	}
	if input.Tags != nil {
		task.Tags = trimList(*input.Tags)
	}
	if input.DueDate.Set {
		task.DueDate = parseDate(input.DueDate, "dueDate", problems)
	}
}
