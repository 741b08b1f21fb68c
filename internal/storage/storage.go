// Package storage saves recorded live-session audio and returns the URL it
// will be served from.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrUnsupportedType is returned for uploads that are not audio.
var ErrUnsupportedType = errors.New("unsupported content type")

// Storage is what the lifecycle manager depends on; main picks the
// implementation.
type Storage interface {
	Save(ctx context.Context, r io.Reader, filename, contentType string) (string, error)
}

// LocalStorage writes files under UploadDir and serves them from
// BaseURL + "/uploads/".
type LocalStorage struct {
	UploadDir string
	BaseURL   string
}

// NewLocalStorage creates uploadDir if needed.
func NewLocalStorage(uploadDir, baseURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStorage{UploadDir: uploadDir, BaseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Save stores r under a random name that keeps only the original
// extension, so client filenames never reach the filesystem.
func (s *LocalStorage) Save(ctx context.Context, r io.Reader, filename, contentType string) (string, error) {
	if contentType != "" && !isAudio(contentType) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := uuid.NewString() + strings.ToLower(filepath.Ext(filename))
	path := filepath.Join(s.UploadDir, name)

	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(dst, r); err != nil {
		dst.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write file: %w", err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close file: %w", err)
	}
	return s.BaseURL + "/uploads/" + name, nil
}

func isAudio(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	// Browser recorders label audio-only webm as video/webm.
	return strings.HasPrefix(ct, "audio/") || ct == "video/webm" || ct == "application/octet-stream"
}
