package app

import (
	"net/http"
)

func (s *HTTPServer) handleOrgRegister(w http.ResponseWriter, r *http.Request, session Session) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var body struct {
		OrgName  string `json:"orgName"`
		OrgEmail string `json:"orgEmail"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	payload, err := s.service.RegisterOrganization(r.Context(), session, body.OrgName, body.OrgEmail)
	s.respond(w, r, http.StatusCreated, payload, err)
}

// routeOrg serves /org/{id} and /org/{id}/employees.
func (s *HTTPServer) routeOrg(w http.ResponseWriter, r *http.Request, session Session, parts []string) bool {
	if len(parts) < 2 || parts[0] != "org" {
		return false
	}
	orgID := parts[1]

	switch {
	case len(parts) == 2:
		switch r.Method {
		case http.MethodGet:
			payload, err := s.service.GetOrganization(r.Context(), session, orgID)
			s.respond(w, r, http.StatusOK, payload, err)
		case http.MethodPut:
			var body struct {
				Name string `json:"name"`
			}
			if !decodeJSON(w, r, &body) {
				return true
			}
			payload, err := s.service.RenameOrganization(r.Context(), session, orgID, body.Name)
			s.respond(w, r, http.StatusOK, payload, err)
		default:
			methodNotAllowed(w)
		}
		return true

	case len(parts) == 3 && parts[2] == "employees":
		switch r.Method {
		case http.MethodGet:
			items, err := s.service.ListEmployees(r.Context(), session, orgID)
			s.respond(w, r, http.StatusOK, items, err)
		case http.MethodPost:
			var body struct {
				Email string `json:"email"`
			}
			if !decodeJSON(w, r, &body) {
				return true
			}
			payload, err := s.service.AddEmployee(r.Context(), session, orgID, body.Email)
			s.respond(w, r, http.StatusCreated, payload, err)
		default:
			methodNotAllowed(w)
		}
		return true
	}
	return false
}
