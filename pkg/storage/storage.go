package storage

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// File is what a stored blob resolves to.
type File struct {
	URL      string `json:"file_url"`
	MimeType string `json:"mime_type"`
}

// FileStorage stores attachment blobs and returns a public URL.
// Store failures wrap apperror.ErrUploadFailed.
type FileStorage interface {
	Store(ctx context.Context, r io.Reader, size int64, fileName, mimeType string) (File, error)
	Delete(ctx context.Context, fileURL string) error
}

// objectName returns a collision free name that keeps the original extension.
func objectName(folder, fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	name := uuid.NewString() + ext
	if folder == "" {
		return name
	}
	return strings.Trim(folder, "/") + "/" + name
}

func isImage(fileName string) bool {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".jpg", ".jpeg", ".png", ".bmp", ".tiff", ".gif", ".webp":
		return true
	}
	return false
}
