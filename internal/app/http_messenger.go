package app

import (
	"net/http"
)

func (s *HTTPServer) routeMessenger(w http.ResponseWriter, r *http.Request, session Session, parts []string) bool {
	if len(parts) < 2 || parts[0] != "messenger" {
		return false
	}
	ctx := r.Context()

	switch {
	case len(parts) == 2 && parts[1] == "channels":
		switch r.Method {
		case http.MethodGet:
			items, err := s.service.ListChannels(ctx, session)
			s.respond(w, r, http.StatusOK, items, err)
		case http.MethodPost:
			var input ChannelInput
			if !decodeJSON(w, r, &input) {
				return true
			}
			payload, err := s.service.CreateChannel(ctx, session, input)
			s.respond(w, r, http.StatusCreated, payload, err)
		default:
			methodNotAllowed(w)
		}
		return true

	case len(parts) == 4 && parts[1] == "channels" && parts[3] == "messages":
		switch r.Method {
		case http.MethodGet:
			items, err := s.service.ListMessages(ctx, session, parts[2])
			s.respond(w, r, http.StatusOK, items, err)
		case http.MethodPost:
			var input MessageInput
			if !decodeJSON(w, r, &input) {
				return true
			}
			payload, err := s.service.PostMessage(ctx, session, parts[2], input)
			s.respond(w, r, http.StatusCreated, payload, err)
		default:
			methodNotAllowed(w)
		}
		return true

	case len(parts) == 4 && parts[1] == "messages" && parts[3] == "replies":
		switch r.Method {
		case http.MethodGet:
			items, err := s.service.ListReplies(ctx, session, parts[2])
			s.respond(w, r, http.StatusOK, items, err)
		case http.MethodPost:
			var input MessageInput
			if !decodeJSON(w, r, &input) {
				return true
			}
			payload, err := s.service.AddReply(ctx, session, parts[2], input)
			s.respond(w, r, http.StatusCreated, payload, err)
		default:
			methodNotAllowed(w)
		}
		return true

	case len(parts) == 2 && parts[1] == "users":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return true
		}
		items, err := s.service.ListUsers(ctx, session)
		s.respond(w, r, http.StatusOK, items, err)
		return true

	case len(parts) == 3 && parts[1] == "users" && parts[2] == "search":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return true
		}
		items, err := s.service.SearchUsers(ctx, session, r.URL.Query().Get("q"))
		s.respond(w, r, http.StatusOK, items, err)
		return true

	case len(parts) == 2 && parts[1] == "dm":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return true
		}
		var body struct {
			User1 string `json:"user1"`
			User2 string `json:"user2"`
		}
		if !decodeJSON(w, r, &body) {
			return true
		}
		payload, err := s.service.OpenDirectMessage(ctx, session, body.User1, body.User2)
		s.respond(w, r, http.StatusOK, payload, err)
		return true
	}
	return false
}
