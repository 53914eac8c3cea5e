package blob

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/store"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/util"
)

// File is an upload waiting to be stored.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

type AttachmentRecorder interface {
	InsertAttachments(ctx context.Context, items []store.Attachment) ([]store.Attachment, error)
}

// Attacher writes files to a Store and records them as attachment rows.
type Attacher struct {
	objects Store
	records AttachmentRecorder
}

func NewAttacher(objects Store, records AttachmentRecorder) *Attacher {
	return &Attacher{objects: objects, records: records}
}

func (a *Attacher) Objects() Store {
	return a.objects
}

// Save stores every file under the owner and inserts the rows in one batch.
// Objects already written are removed again when a later step fails.
func (a *Attacher) Save(ctx context.Context, orgID, ownerType, ownerID, uploadedBy string, files []File) ([]store.Attachment, error) {
	if len(files) == 0 {
		return []store.Attachment{}, nil
	}

	items := make([]store.Attachment, 0, len(files))
	written := make([]string, 0, len(files))
	cleanup := func() {
		for _, key := range written {
			_ = a.objects.Delete(context.WithoutCancel(ctx), key)
		}
	}

	for _, file := range files {
		contentType := strings.TrimSpace(file.ContentType)
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		key := Key(orgID, ownerType, file.Name)
		if err := a.objects.Put(ctx, key, contentType, file.Body, file.Size); err != nil {
			cleanup()
			return nil, fmt.Errorf("store %s: %w", file.Name, err)
		}
		written = append(written, key)
		items = append(items, store.Attachment{
			ID:             util.NewID(),
			OrganizationID: orgID,
			OwnerType:      ownerType,
			OwnerID:        ownerID,
			Filename:       key,
			OriginalName:   file.Name,
			ContentType:    contentType,
			Size:           file.Size,
			UploadedBy:     uploadedBy,
		})
	}

	saved, err := a.records.InsertAttachments(ctx, items)
	if err != nil {
		cleanup()
		return nil, err
	}
	return saved, nil
}
