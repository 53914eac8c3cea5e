package app

import (
	"net/http"
	"strings"

	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/store"
)

func ticketFilterFromQuery(r *http.Request) store.TicketFilter {
	q := r.URL.Query()
	get := func(name string) string { return strings.TrimSpace(q.Get(name)) }
	return store.TicketFilter{
		Status:    get("status"),
		Priority:  get("priority"),
		Type:      get("type"),
		Assignee:  get("assignee"),
		Sprint:    get("sprint"),
		Client:    get("client"),
		Search:    get("search"),
		SortBy:    get("sortBy"),
		SortOrder: get("sortOrder"),
	}
}

// routeTickets serves /tickets and /tickets/{id}[/comments|/attachments|/export].
// {id} is a uuid or a ticket key.
func (s *HTTPServer) routeTickets(w http.ResponseWriter, r *http.Request, session Session, parts []string) bool {
	if len(parts) == 0 || parts[0] != "tickets" {
		return false
	}

	switch len(parts) {
	case 1:
		switch r.Method {
		case http.MethodGet:
			items, err := s.service.ListTickets(r.Context(), session, ticketFilterFromQuery(r))
			s.respond(w, r, http.StatusOK, items, err)
		case http.MethodPost:
			var input TicketInput
			if !decodeJSON(w, r, &input) {
				return true
			}
			payload, err := s.service.CreateTicket(r.Context(), session, input)
			s.respond(w, r, http.StatusCreated, payload, err)
		default:
			methodNotAllowed(w)
		}
		return true

	case 2:
		ticketID := parts[1]
		switch r.Method {
		case http.MethodGet:
			payload, err := s.service.GetTicket(r.Context(), session, ticketID)
			s.respond(w, r, http.StatusOK, payload, err)
		case http.MethodPut:
			var input TicketInput
			if !decodeJSON(w, r, &input) {
				return true
			}
			payload, err := s.service.UpdateTicket(r.Context(), session, ticketID, input)
			s.respond(w, r, http.StatusOK, payload, err)
		case http.MethodDelete:
			s.respondDeleted(w, r, s.service.DeleteTicket(r.Context(), session, ticketID))
		default:
			methodNotAllowed(w)
		}
		return true

	case 3:
		ticketID := parts[1]
		switch parts[2] {
		case "comments":
			if r.Method != http.MethodPost {
				methodNotAllowed(w)
				return true
			}
			var body struct {
				Text string `json:"text"`
			}
			if !decodeJSON(w, r, &body) {
				return true
			}
			payload, err := s.service.AddTicketComment(r.Context(), session, ticketID, body.Text)
			s.respond(w, r, http.StatusCreated, payload, err)
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
			payload, err := s.service.AddTicketAttachments(r.Context(), session, ticketID, form.files)
			s.respond(w, r, http.StatusCreated, payload, err)
			return true

		case "export":
			if r.Method != http.MethodGet {
				methodNotAllowed(w)
				return true
			}
			result, err := s.service.ExportTicket(r.Context(), session, ticketID, strings.TrimSpace(r.URL.Query().Get("format")))
			if err != nil {
				s.writeServiceError(w, r, err)
				return true
			}
			writeExport(w, result)
			return true
		}
	}
	return false
}
