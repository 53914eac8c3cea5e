package app

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/blob"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/export"
)

const multipartMemory = 32 << 20

// fileFields are the multipart field names that carry uploads.
var fileFields = []string{"attachments", "files", "file", "image"}

// listFields are decoded as string arrays when a multipart form is mapped
// onto a JSON input; a single value may hold a comma separated list.
var listFields = map[string]bool{"tags": true, "labels": true, "mentions": true, "goals": true}

// upload is a parsed multipart request. close must be called once the
// files were consumed.
type upload struct {
	values map[string][]string
	files  []blob.File
	close  func()
}

func (u upload) value(name string) string {
	if values := u.values[name]; len(values) > 0 {
		return values[0]
	}
	return ""
}

// decode maps the form onto target. A "data" field holding JSON wins over
// individual fields.
func (u upload) decode(target any) error {
	if raw := u.value("data"); raw != "" {
		if err := json.Unmarshal([]byte(raw), target); err != nil {
			return errors.New("invalid JSON in data field")
		}
		return nil
	}
	fields := make(map[string]any, len(u.values))
	for name, values := range u.values {
		if len(values) == 0 {
			continue
		}
		if listFields[name] {
			items := make([]string, 0, len(values))
			for _, value := range values {
				for _, item := range strings.Split(value, ",") {
					if item = strings.TrimSpace(item); item != "" {
						items = append(items, item)
					}
				}
			}
			fields[name] = items
			continue
		}
		fields[name] = values[0]
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return errors.New("invalid form fields")
	}
	return nil
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

// readUpload parses a multipart body limited to uploadMaxBytes. On failure
// the error response is already written.
func (s *HTTPServer) readUpload(w http.ResponseWriter, r *http.Request) (upload, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.uploadMaxBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "Upload exceeds "+strconv.FormatInt(s.uploadMaxBytes, 10)+" bytes", nil)
			return upload{}, false
		}
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid multipart body", nil)
		return upload{}, false
	}

	form := r.MultipartForm
	opened := make([]multipart.File, 0)
	closeAll := func() {
		for _, file := range opened {
			_ = file.Close()
		}
		_ = form.RemoveAll()
	}

	files := make([]blob.File, 0)
	for _, field := range fileFields {
		for _, header := range form.File[field] {
			file, err := header.Open()
			if err != nil {
				closeAll()
				writeError(w, http.StatusBadRequest, "INVALID_BODY", "could not read uploaded file", nil)
				return upload{}, false
			}
			opened = append(opened, file)
			files = append(files, blob.File{
				Name:        header.Filename,
				ContentType: header.Header.Get("Content-Type"),
				Size:        header.Size,
				Body:        file,
			})
		}
	}
	return upload{values: form.Value, files: files, close: closeAll}, true
}

// readInput decodes a JSON or multipart body into target and returns any
// uploaded files. The returned cleanup is never nil.
func (s *HTTPServer) readInput(w http.ResponseWriter, r *http.Request, target any) ([]blob.File, func(), bool) {
	if !isMultipart(r) {
		if !decodeJSON(w, r, target) {
			return nil, func() {}, false
		}
		return nil, func() {}, true
	}
	form, ok := s.readUpload(w, r)
	if !ok {
		return nil, func() {}, false
	}
	if err := form.decode(target); err != nil {
		form.close()
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return nil, func() {}, false
	}
	return form.files, form.close, true
}

func (s *HTTPServer) handleUpload(w http.ResponseWriter, r *http.Request, key string) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		methodNotAllowed(w)
		return
	}
	body, info, err := s.service.OpenUpload(r.Context(), key)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	defer body.Close()

	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	if !inlineContentType(contentType) {
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": path.Base(key)}))
	}
	w.Header().Set("Cache-Control", "private, max-age=86400")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, body); err != nil {
		s.logger.Warn("stream upload failed", zap.String("key", key), zap.Error(err))
	}
}

// inlineContentType reports whether an upload may render in the browser.
// Scriptable image formats are downloaded like everything else.
func inlineContentType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mediaType, "image/") && mediaType != "image/svg+xml"
}

func writeExport(w http.ResponseWriter, result *export.Result) {
	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": result.Filename}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}
