package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStorage stores documents as files below a root directory
type FileStorage struct {
	root string
}

// NewFileStorage creates the root directory if needed
func NewFileStorage(root string) (*FileStorage, error) {
	if root == "" {
		return nil, fmt.Errorf("local storage path is required")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &FileStorage{root: root}, nil
}

func (f *FileStorage) Write(_ context.Context, key string, content []byte, _ string) (string, error) {
	ref := SuffixedKey(key)
	full, err := safeJoin(f.root, ref)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return "", storageErr("create directory for", ref, err)
	}

	// write then rename so readers never see a partial document
	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, content, 0644); err != nil {
		return "", storageErr("write", ref, err)
	}
	if err := os.Rename(tmp, full); err != nil {
		os.Remove(tmp)
		return "", storageErr("write", ref, err)
	}

	return ref, nil
}

func (f *FileStorage) Read(_ context.Context, ref string) ([]byte, error) {
	full, err := safeJoin(f.root, ref)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, notFound(ref)
	}
	if err != nil {
		return nil, storageErr("read", ref, err)
	}
	return data, nil
}

func (f *FileStorage) Delete(_ context.Context, ref string) error {
	full, err := safeJoin(f.root, ref)
	if err != nil {
		return err
	}

	err = os.Remove(full)
	if errors.Is(err, fs.ErrNotExist) {
		return notFound(ref)
	}
	if err != nil {
		return storageErr("delete", ref, err)
	}

	// drop the app directory once its last document is gone
	dir := filepath.Dir(full)
	if entries, err := os.ReadDir(dir); err == nil && len(entries) == 0 {
		os.Remove(dir)
	}
	return nil
}

func (f *FileStorage) Type() string { return "local" }
