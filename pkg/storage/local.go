package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
)

// LocalStore writes images below a root directory, one directory per item
type LocalStore struct {
	root string
}

// NewLocalStore creates the root directory if needed
func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &LocalStore{root: root}, nil
}

// Root returns the output directory
func (s *LocalStore) Root() string {
	return s.root
}

// Save writes r to <root>/<item>/<name> and returns "/<item>/<name>"
func (s *LocalStore) Save(ctx context.Context, itemCode, name string, r io.Reader) (ArtifactRef, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dirName := SanitizeName(itemCode)
	fileName := SanitizeName(name)
	dir := filepath.Join(s.root, dirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create item directory: %w", err)
	}

	// Write to a temporary file first so a crash never leaves a partial image
	out, err := os.CreateTemp(dir, fileName+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}
	tempFile := out.Name()

	_, err = io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to save image data: %w", err)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, filepath.Join(dir, fileName)); err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return ArtifactRef(path.Join("/", dirName, fileName)), nil
}
