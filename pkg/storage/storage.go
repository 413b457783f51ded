package storage

import (
	"context"
	"io"
	"strings"
	"unicode"
)

// ArtifactRef is the stored-location handle of one image: a relative local
// path or a remote file id
type ArtifactRef string

// Store persists one image for an item code
type Store interface {
	Save(ctx context.Context, itemCode, name string, r io.Reader) (ArtifactRef, error)
}

// SanitizeName replaces characters that are unsafe in file and folder names
// with an underscore
func SanitizeName(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	for _, r := range strings.TrimSpace(s) {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			b.WriteRune('_')
		case unicode.IsControl(r):
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}

	name := b.String()
	if name == "" || name == "." || name == ".." {
		return "_"
	}
	return name
}
