package app

import (
	"net/http"
)

type credentialsBody struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	OTP      string `json:"otp"`
}

// routePublicAuth serves the auth endpoints that need no session.
func (s *HTTPServer) routePublicAuth(w http.ResponseWriter, r *http.Request, parts []string) bool {
	if len(parts) < 2 || parts[0] != "auth" {
		return false
	}
	if r.Method != http.MethodPost {
		return false
	}
	action := parts[1]
	if len(parts) > 2 {
		action = parts[1] + "/" + parts[2]
		if len(parts) == 4 {
			action += "/" + parts[3]
		}
	}

	switch action {
	case "register", "login", "admin/verify", "admin/2fa/setup", "admin/login":
		var body credentialsBody
		if !decodeJSON(w, r, &body) {
			return true
		}
		var (
			payload map[string]any
			err     error
			status  = http.StatusOK
		)
		switch action {
		case "register":
			payload, err = s.service.Register(r.Context(), body.Name, body.Email, body.Password)
			status = http.StatusCreated
		case "login":
			payload, err = s.service.Login(r.Context(), body.Email, body.Password)
		case "admin/verify":
			payload, err = s.service.AdminVerify(r.Context(), body.Email, body.Password)
		case "admin/2fa/setup":
			payload, err = s.service.AdminTwoFactorSetup(r.Context(), body.Email, body.Password)
		case "admin/login":
			payload, err = s.service.AdminLogin(r.Context(), body.Email, body.Password, body.OTP)
		}
		s.respond(w, r, status, payload, err)
		return true

	case "refresh":
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		if !decodeJSON(w, r, &body) {
			return true
		}
		payload, err := s.service.RefreshResponse(r.Context(), body.RefreshToken)
		s.respond(w, r, http.StatusOK, payload, err)
		return true

	case "logout":
		session := Session{}
		if token := bearerToken(r); token != "" {
			if parsed, err := s.service.SessionFromToken(r.Context(), token); err == nil {
				session = parsed
			}
		}
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		_ = decodeBody(r, &body)
		_ = s.service.Logout(r.Context(), session, body.RefreshToken)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return true
	}
	return false
}

// routeSessionAuth serves the endpoints a signed-in user reaches before the
// password-change and organization gates.
func (s *HTTPServer) routeSessionAuth(w http.ResponseWriter, r *http.Request, session Session, parts []string) bool {
	if len(parts) != 2 || parts[0] != "auth" {
		return false
	}
	switch parts[1] {
	case "me":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return true
		}
		payload, err := s.service.Me(r.Context(), session)
		s.respond(w, r, http.StatusOK, payload, err)
		return true

	case "change-password":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return true
		}
		var body struct {
			NewPassword string `json:"newPassword"`
		}
		if !decodeJSON(w, r, &body) {
			return true
		}
		payload, err := s.service.ChangePassword(r.Context(), session, body.NewPassword)
		s.respond(w, r, http.StatusOK, payload, err)
		return true
	}
	return false
}

// routeUsers serves /auth/user/{id}.
func (s *HTTPServer) routeUsers(w http.ResponseWriter, r *http.Request, session Session, parts []string) bool {
	if len(parts) != 3 || parts[0] != "auth" || parts[1] != "user" {
		return false
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return true
	}
	payload, err := s.service.GetUser(r.Context(), session, parts[2])
	s.respond(w, r, http.StatusOK, payload, err)
	return true
}
