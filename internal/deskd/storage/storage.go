// Package storage persists generated HTML documents. Keys follow the
// apps/{appId}/index.html convention; Write returns the resolved reference
// the content was actually stored under, which callers record and later pass
// to Read and Delete.
package storage

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sorenmh/gendesk/internal/deskd/config"
	"github.com/sorenmh/gendesk/internal/deskd/models"
)

// MimeHTML is the content type of every generated document
const MimeHTML = "text/html; charset=utf-8"

// Storage is the content storage collaborator
type Storage interface {
	Write(ctx context.Context, key string, content []byte, mimeType string) (string, error)
	Read(ctx context.Context, ref string) ([]byte, error)
	Delete(ctx context.Context, ref string) error
	Type() string
}

// AppHTMLKey returns the canonical key of an app's document
func AppHTMLKey(appID string) string {
	return path.Join("apps", appID, "index.html")
}

// SuffixedKey derives a unique reference from a canonical key, so every write
// lands under its own name: apps/x/index.html becomes apps/x/index-<id>.html.
func SuffixedKey(key string) string {
	ext := path.Ext(key)
	base := strings.TrimSuffix(key, ext)
	return fmt.Sprintf("%s-%s%s", base, strings.ReplaceAll(uuid.New().String(), "-", "")[:12], ext)
}

// New creates the backend selected by cfg.Type
func New(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStorage(), nil
	case "local":
		return NewFileStorage(cfg.Local.Path)
	case "s3":
		return NewS3Storage(ctx, cfg.S3)
	case "git":
		return NewGitStorage(cfg.Git)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// safeJoin resolves ref below root, rejecting anything that would escape it.
func safeJoin(root, ref string) (string, error) {
	clean := path.Clean("/" + ref)
	if ref == "" || clean == "/" || strings.Contains(ref, "..") {
		return "", fmt.Errorf("%w: invalid storage reference %q", models.ErrStorage, ref)
	}
	return filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}

func storageErr(op, ref string, err error) error {
	return fmt.Errorf("%w: failed to %s %s: %v", models.ErrStorage, op, ref, err)
}

func notFound(ref string) error {
	return fmt.Errorf("content %s: %w", ref, models.ErrNotFound)
}
