package app

import (
	"net/http"
	"strings"

	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/store"
)

// routeSprints serves /sprints, /sprints/active, /sprints/{id} and
// /sprints/{id}/stats.
func (s *HTTPServer) routeSprints(w http.ResponseWriter, r *http.Request, session Session, parts []string) bool {
	if len(parts) == 0 || parts[0] != "sprints" {
		return false
	}

	switch {
	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			items, err := s.service.ListSprints(r.Context(), session)
			s.respond(w, r, http.StatusOK, items, err)
		case http.MethodPost:
			var input SprintInput
			if !decodeJSON(w, r, &input) {
				return true
			}
			payload, err := s.service.CreateSprint(r.Context(), session, input)
			s.respond(w, r, http.StatusCreated, payload, err)
		default:
			methodNotAllowed(w)
		}
		return true

	case len(parts) == 2 && parts[1] == "active":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return true
		}
		payload, err := s.service.GetActiveSprint(r.Context(), session)
		s.respond(w, r, http.StatusOK, payload, err)
		return true

	case len(parts) == 2:
		switch r.Method {
		case http.MethodPut:
			var input SprintInput
			if !decodeJSON(w, r, &input) {
				return true
			}
			payload, err := s.service.UpdateSprint(r.Context(), session, parts[1], input)
			s.respond(w, r, http.StatusOK, payload, err)
		case http.MethodDelete:
			s.respondDeleted(w, r, s.service.DeleteSprint(r.Context(), session, parts[1]))
		default:
			methodNotAllowed(w)
		}
		return true

	case len(parts) == 3 && parts[2] == "stats":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return true
		}
		stats, err := s.service.SprintStats(r.Context(), session, parts[1])
		s.respond(w, r, http.StatusOK, stats, err)
		return true
	}
	return false
}

// routeTasks serves /tasks, /tasks/{id} and its comments and attachments.
// Create and comment accept JSON or multipart bodies.
func (s *HTTPServer) routeTasks(w http.ResponseWriter, r *http.Request, session Session, parts []string) bool {
	if len(parts) == 0 || parts[0] != "tasks" {
		return false
	}

	switch len(parts) {
	case 1:
		switch r.Method {
		case http.MethodGet:
			q := r.URL.Query()
			filter := store.TaskFilter{
				Status:   strings.TrimSpace(q.Get("status")),
				Priority: strings.TrimSpace(q.Get("priority")),
				Assignee: strings.TrimSpace(q.Get("assignee")),
				Author:   strings.TrimSpace(q.Get("author")),
				Tag:      strings.TrimSpace(q.Get("tag")),
			}
			items, err := s.service.ListTasks(r.Context(), session, filter)
			s.respond(w, r, http.StatusOK, items, err)
		case http.MethodPost:
			var input TaskInput
			files, cleanup, ok := s.readInput(w, r, &input)
			if !ok {
				return true
			}
			defer cleanup()
			payload, err := s.service.CreateTask(r.Context(), session, input, files)
			s.respond(w, r, http.StatusCreated, payload, err)
		default:
			methodNotAllowed(w)
		}
		return true

	case 2:
		taskID := parts[1]
		switch r.Method {
		case http.MethodGet:
			payload, err := s.service.GetTask(r.Context(), session, taskID)
			s.respond(w, r, http.StatusOK, payload, err)
		case http.MethodPut:
			var input TaskInput
			if !decodeJSON(w, r, &input) {
				return true
			}
			payload, err := s.service.UpdateTask(r.Context(), session, taskID, input)
			s.respond(w, r, http.StatusOK, payload, err)
		case http.MethodDelete:
			s.respondDeleted(w, r, s.service.DeleteTask(r.Context(), session, taskID))
		default:
			methodNotAllowed(w)
		}
		return true

	case 3:
		taskID := parts[1]
		switch parts[2] {
		case "comments":
			if r.Method != http.MethodPost {
				methodNotAllowed(w)
				return true
			}
			var input TaskCommentInput
			files, cleanup, ok := s.readInput(w, r, &input)
			if !ok {
				return true
			}
			defer cleanup()
			items, err := s.service.AddTaskComment(r.Context(), session, taskID, input, files)
			s.respond(w, r, http.StatusCreated, items, err)
			return true

		case "attachments":
			if r.Method != http.MethodPost {
				methodNotAllowed(w)
				return true
			}
			form, ok := s.readUpload(w, r)
			if !ok {
				return true
			}
			defer form.close()
			items, err := s.service.AddTaskAttachments(r.Context(), session, taskID, form.files)
			s.respond(w, r, http.StatusCreated, items, err)
			return true
		}
	}
	return false
}

// routeBoards serves /boards and /boards/{id}.
func (s *HTTPServer) routeBoards(w http.ResponseWriter, r *http.Request, session Session, parts []string) bool {
	if len(parts) == 0 || parts[0] != "boards" || len(parts) > 2 {
		return false
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			items, err := s.service.ListBoards(r.Context(), session)
			s.respond(w, r, http.StatusOK, items, err)
		case http.MethodPost:
			var input BoardInput
			if !decodeJSON(w, r, &input) {
				return true
			}
			payload, err := s.service.CreateBoard(r.Context(), session, input)
			s.respond(w, r, http.StatusCreated, payload, err)
		default:
			methodNotAllowed(w)
		}
		return true
	}

	boardID := parts[1]
	switch r.Method {
	case http.MethodGet:
		payload, err := s.service.GetBoard(r.Context(), session, boardID)
		s.respond(w, r, http.StatusOK, payload, err)
	case http.MethodPut:
		var input BoardInput
		if !decodeJSON(w, r, &input) {
			return true
		}
		payload, err := s.service.UpdateBoard(r.Context(), session, boardID, input)
		s.respond(w, r, http.StatusOK, payload, err)
	case http.MethodDelete:
		s.respondDeleted(w, r, s.service.DeleteBoard(r.Context(), session, boardID))
	default:
		methodNotAllowed(w)
	}
	return true
}
