package app

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/blob"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/export"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/store"
)

func (s *Service) saveFiles(ctx context.Context, session Session, ownerType, ownerID string, files []blob.File) ([]store.Attachment, error) {
	if len(files) == 0 {
		return []store.Attachment{}, nil
	}
	if s.objects == nil {
		return nil, domainError(http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "File storage is not configured", nil)
	}
	saved, err := s.files.Save(ctx, session.OrgID, ownerType, ownerID, actorName(session, "Staff"), files)
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// removeObjects deletes stored objects after their rows are gone. Failures
// only leave orphaned objects behind and are logged.
func (s *Service) removeObjects(ctx context.Context, items []store.Attachment) {
	if s.objects == nil {
		return
	}
	for _, item := range items {
		if err := s.objects.Delete(ctx, item.Filename); err != nil && !errors.Is(err, blob.ErrNotFound) {
			s.logger.Warn("delete attachment object failed", zap.String("key", item.Filename), zap.Error(err))
		}
	}
}

func parseExportFormat(format string) (export.Format, error) {
	parsed, err := export.ParseFormat(format)
	if err != nil {
		return "", domainError(http.StatusBadRequest, "UNSUPPORTED_FORMAT", "format must be pdf, docx or html", nil)
	}
	return parsed, nil
}

// exportError reports a missing converter binary as 503.
func exportError(err error) error {
	switch {
	case errors.Is(err, export.ErrPDFDependencyMissing):
		return domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "PDF export is not available on this server", nil)
	case errors.Is(err, export.ErrDOCXDependencyMissing):
		return domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "DOCX export is not available on this server", nil)
	case errors.Is(err, export.ErrUnsupportedFormat):
		return domainError(http.StatusBadRequest, "UNSUPPORTED_FORMAT", "format must be pdf, docx or html", nil)
	default:
		return err
	}
}
