package app

import (
	"net/http"
	"strings"
)

// routeKnowledge serves the knowledge base: articles, image upload, revision
// history and export.
func (s *HTTPServer) routeKnowledge(w http.ResponseWriter, r *http.Request, session Session, parts []string) bool {
	if len(parts) == 0 || parts[0] != "knowledge" {
		return false
	}
	ctx := r.Context()

	switch {
	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			items, err := s.service.ListArticles(ctx, session)
			s.respond(w, r, http.StatusOK, items, err)
		case http.MethodPost:
			var input ArticleInput
			if !decodeJSON(w, r, &input) {
				return true
			}
			payload, err := s.service.CreateArticle(ctx, session, input)
			s.respond(w, r, http.StatusCreated, payload, err)
		default:
			methodNotAllowed(w)
		}
		return true

	case len(parts) == 2 && parts[1] == "upload":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return true
		}
		form, ok := s.readUpload(w, r)
		if !ok {
			return true
		}
		defer form.close()
		if len(form.files) != 1 {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", "exactly one image is required", nil)
			return true
		}
		payload, err := s.service.UploadImage(ctx, session, form.files[0])
		s.respond(w, r, http.StatusCreated, payload, err)
		return true

	case len(parts) == 2:
		articleID := parts[1]
		switch r.Method {
		case http.MethodGet:
			payload, err := s.service.GetArticle(ctx, session, articleID)
			s.respond(w, r, http.StatusOK, payload, err)
		case http.MethodPut:
			var input ArticleInput
			if !decodeJSON(w, r, &input) {
				return true
			}
			payload, err := s.service.UpdateArticle(ctx, session, articleID, input)
			s.respond(w, r, http.StatusOK, payload, err)
		case http.MethodDelete:
			s.respondDeleted(w, r, s.service.DeleteArticle(ctx, session, articleID))
		default:
			methodNotAllowed(w)
		}
		return true

	case len(parts) == 3 && parts[2] == "export":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return true
		}
		result, err := s.service.ExportArticle(ctx, session, parts[1], strings.TrimSpace(r.URL.Query().Get("format")))
		if err != nil {
			s.writeServiceError(w, r, err)
			return true
		}
		writeExport(w, result)
		return true

	case len(parts) == 3 && parts[2] == "history":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return true
		}
		items, err := s.service.ArticleHistory(ctx, session, parts[1])
		s.respond(w, r, http.StatusOK, items, err)
		return true

	case len(parts) == 4 && parts[2] == "history":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return true
		}
		payload, err := s.service.ArticleRevision(ctx, session, parts[1], parts[3])
		s.respond(w, r, http.StatusOK, payload, err)
		return true
	}
	return false
}
