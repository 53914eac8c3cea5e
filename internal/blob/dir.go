package blob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Dir keeps objects as files under root. The content type lives in a
// sidecar <file>.meta.json.
type Dir struct {
	root string
}

func NewDir(root string) (*Dir, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}
	return &Dir{root: root}, nil
}

type dirMeta struct {
	ContentType string `json:"contentType"`
}

func (d *Dir) path(key string) (string, error) {
	if !ValidKey(key) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(d.root, filepath.FromSlash(key)), nil
}

func (d *Dir) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error {
	target, err := d.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create object dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp object: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, body); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close object: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("move object: %w", err)
	}

	meta, err := json.Marshal(dirMeta{ContentType: contentType})
	if err != nil {
		return err
	}
	if err := os.WriteFile(target+".meta.json", meta, 0o644); err != nil {
		return fmt.Errorf("write object meta: %w", err)
	}
	return nil
}

func (d *Dir) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	target, err := d.path(key)
	if err != nil {
		return nil, ObjectInfo{}, ErrNotFound
	}
	file, err := os.Open(target)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ObjectInfo{}, ErrNotFound
	}
	if err != nil {
		return nil, ObjectInfo{}, fmt.Errorf("open object: %w", err)
	}
	stat, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, ObjectInfo{}, fmt.Errorf("stat object: %w", err)
	}

	info := ObjectInfo{Key: key, Size: stat.Size(), ContentType: "application/octet-stream"}
	if raw, err := os.ReadFile(target + ".meta.json"); err == nil {
		var meta dirMeta
		if json.Unmarshal(raw, &meta) == nil && meta.ContentType != "" {
			info.ContentType = meta.ContentType
		}
	}
	return file, info, nil
}

func (d *Dir) Delete(ctx context.Context, key string) error {
	target, err := d.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete object: %w", err)
	}
	_ = os.Remove(target + ".meta.json")
	return nil
}
