package app

import (
	"net/http"
	"strconv"
	"strings"
)

// routeCommunications serves client threads. Create and reply-with-files
// accept multipart bodies.
func (s *HTTPServer) routeCommunications(w http.ResponseWriter, r *http.Request, session Session, parts []string) bool {
	if len(parts) == 0 || parts[0] != "communications" {
		return false
	}
	ctx := r.Context()

	switch len(parts) {
	case 1:
		switch r.Method {
		case http.MethodGet:
			items, err := s.service.ListCommunications(ctx, session)
			s.respond(w, r, http.StatusOK, items, err)
		case http.MethodPost:
			var input CommunicationInput
			files, cleanup, ok := s.readInput(w, r, &input)
			if !ok {
				return true
			}
			defer cleanup()
			payload, err := s.service.CreateCommunication(ctx, session, input, files)
			s.respond(w, r, http.StatusCreated, payload, err)
		default:
			methodNotAllowed(w)
		}
		return true

	case 2:
		switch r.Method {
		case http.MethodGet:
			payload, err := s.service.GetCommunication(ctx, session, parts[1])
			s.respond(w, r, http.StatusOK, payload, err)
		case http.MethodDelete:
			s.respondDeleted(w, r, s.service.DeleteCommunication(ctx, session, parts[1]))
		default:
			methodNotAllowed(w)
		}
		return true

	case 3:
		communicationID := parts[1]
		switch parts[2] {
		case "internal-comment":
			if r.Method != http.MethodPost {
				methodNotAllowed(w)
				return true
			}
			var input CommentInput
			if !decodeJSON(w, r, &input) {
				return true
			}
			payload, err := s.service.AddInternalComment(ctx, session, communicationID, input)
			s.respond(w, r, http.StatusCreated, payload, err)
			return true

		case "replies", "reply-with-files":
			if r.Method != http.MethodPost {
				methodNotAllowed(w)
				return true
			}
			var body struct {
				Text string `json:"text"`
			}
			files, cleanup, ok := s.readInput(w, r, &body)
			if !ok {
				return true
			}
			defer cleanup()
			payload, err := s.service.Reply(ctx, session, communicationID, body.Text, files)
			s.respond(w, r, http.StatusCreated, payload, err)
			return true

		case "status":
			if r.Method != http.MethodPut {
				methodNotAllowed(w)
				return true
			}
			var body struct {
				Status string `json:"status"`
			}
			if !decodeJSON(w, r, &body) {
				return true
			}
			payload, err := s.service.SetCommunicationStatus(ctx, session, communicationID, body.Status)
			s.respond(w, r, http.StatusOK, payload, err)
			return true
		}
	}
	return false
}

func (s *HTTPServer) routeSearch(w http.ResponseWriter, r *http.Request, session Session, parts []string) bool {
	if len(parts) != 1 || parts[0] != "search" {
		return false
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return true
	}
	q := r.URL.Query()
	limit, ok := queryInt(w, q.Get("limit"), "limit")
	if !ok {
		return true
	}
	offset, ok := queryInt(w, q.Get("offset"), "offset")
	if !ok {
		return true
	}
	payload, err := s.service.Search(r.Context(), session, q.Get("q"), q.Get("type"), limit, offset)
	s.respond(w, r, http.StatusOK, payload, err)
	return true
}

// queryInt parses an optional integer parameter; empty means zero.
func queryInt(w http.ResponseWriter, raw, name string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", name+" must be an integer", nil)
		return 0, false
	}
	return value, true
}
