package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"anoa.com/forumboard/internal/entity"
	"anoa.com/forumboard/internal/modules/attachment/dto"
	"anoa.com/forumboard/pkg/apperror"
	"anoa.com/forumboard/pkg/storage"
)

type AttachmentService interface {
	UploadAttachment(ctx context.Context, file *multipart.FileHeader) (*dto.UploadAttachmentResponse, error)
	// RemoveBlobs deletes stored files best effort; failures are only logged.
	RemoveBlobs(ctx context.Context, attachments []entity.Attachment)
}

type attachmentService struct {
	fileStorage storage.FileStorage
	maxBytes    int64
	logger      *slog.Logger
}

func NewAttachmentService(fileStorage storage.FileStorage, maxBytes int64, logger *slog.Logger) AttachmentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &attachmentService{
		fileStorage: fileStorage,
		maxBytes:    maxBytes,
		logger:      logger.With("component", "attachment"),
	}
}

func (s *attachmentService) UploadAttachment(ctx context.Context, file *multipart.FileHeader) (*dto.UploadAttachmentResponse, error) {
	if file == nil {
		return nil, apperror.New(http.StatusBadRequest, "No file provided", apperror.ErrBadRequest)
	}
	if s.maxBytes > 0 && file.Size > s.maxBytes {
		return nil, apperror.New(http.StatusBadRequest, fmt.Sprintf("file exceeds the %d byte limit", s.maxBytes), apperror.ErrBadRequest)
	}
	if s.fileStorage == nil {
		return nil, apperror.New(http.StatusInternalServerError, "File upload failed: storage is not configured", apperror.ErrUploadFailed)
	}

	f, err := file.Open()
	if err != nil {
		return nil, apperror.New(http.StatusInternalServerError, "File upload failed", fmt.Errorf("open upload: %v: %w", err, apperror.ErrUploadFailed))
	}
	defer f.Close()

	mimeType, err := detectMimeType(f, file.Header.Get("Content-Type"))
	if err != nil {
		return nil, apperror.New(http.StatusInternalServerError, "File upload failed", fmt.Errorf("sniff upload: %v: %w", err, apperror.ErrUploadFailed))
	}

	stored, err := s.fileStorage.Store(ctx, f, file.Size, file.Filename, mimeType)
	if err != nil {
		s.logger.Error("upload failed", "file", file.Filename, "error", err)
		if !errors.Is(err, apperror.ErrUploadFailed) {
			err = fmt.Errorf("%w: %v", apperror.ErrUploadFailed, err)
		}
		return nil, apperror.New(http.StatusInternalServerError, "File upload failed", err)
	}

	return &dto.UploadAttachmentResponse{FileURL: stored.URL, MimeType: stored.MimeType}, nil
}

func (s *attachmentService) RemoveBlobs(ctx context.Context, attachments []entity.Attachment) {
	if s.fileStorage == nil {
		return
	}
	for _, att := range attachments {
		if err := s.fileStorage.Delete(ctx, att.FileURL); err != nil {
			s.logger.Warn("failed to delete attachment blob", "attachment_id", att.ID, "url", att.FileURL, "error", err)
		}
	}
}

// detectMimeType trusts the client header unless it is missing or generic,
// then sniffs the first 512 bytes and rewinds.
func detectMimeType(f multipart.File, declared string) (string, error) {
	declared = strings.TrimSpace(declared)
	if declared != "" && declared != "application/octet-stream" {
		return declared, nil
	}

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return http.DetectContentType(buf[:n]), nil
}
