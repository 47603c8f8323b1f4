package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// FilesystemBackend writes attachment content under a root directory,
// fanned out by message id to keep directories small.
type FilesystemBackend struct {
	root    string
	baseURL string
}

// NewFilesystemBackend creates the backend and its root directory.
func NewFilesystemBackend(root, baseURL string) (*FilesystemBackend, error) {
	if root == "" {
		return nil, fmt.Errorf("storage: filesystem root required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create root: %w", err)
	}
	return &FilesystemBackend{
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// Name implements Backend.
func (b *FilesystemBackend) Name() string { return "filesystem" }

// Store implements Backend.
func (b *FilesystemBackend) Store(ctx context.Context, messageID string, obj *Object) (string, error) {
	if obj == nil || len(obj.Data) == 0 {
		return "", fmt.Errorf("storage: empty object")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	rel := filepath.Join(fanout(messageID), messageID, sanitizeFilename(obj.Filename))
	full := filepath.Join(b.root, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("storage: mkdir: %w", err)
	}
	if err := os.WriteFile(full, obj.Data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write: %w", err)
	}
	url := filepath.ToSlash(rel)
	if b.baseURL != "" {
		url = b.baseURL + "/" + url
	}
	return url, nil
}

// HealthCheck implements Backend.
func (b *FilesystemBackend) HealthCheck(ctx context.Context) error {
	info, err := os.Stat(b.root)
	if err != nil {
		return fmt.Errorf("storage: root unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("storage: root %s is not a directory", b.root)
	}
	return nil
}

func fanout(messageID string) string {
	if len(messageID) >= 2 {
		return messageID[:2]
	}
	return "00"
}

func sanitizeFilename(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	if name == "" || name == "." || name == ".." {
		return "attachment.bin"
	}
	return name
}
