package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"

	"anoa.com/forumboard/pkg/apperror"
	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

type cloudinaryStorage struct {
	cld    *cloudinary.Cloudinary
	folder string
}

// NewCloudinaryStorage creates a Cloudinary-backed FileStorage. With empty
// credentials it falls back to CLOUDINARY_URL from the environment.
func NewCloudinaryStorage(cloudName, apiKey, apiSecret, folder string) (FileStorage, error) {
	var (
		cld *cloudinary.Cloudinary
		err error
	)
	if cloudName != "" && apiKey != "" && apiSecret != "" {
		cld, err = cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	} else {
		cld, err = cloudinary.New()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary client: %w", err)
	}

	cld.Config.URL.Secure = true

	return &cloudinaryStorage{cld: cld, folder: folder}, nil
}

func (s *cloudinaryStorage) Store(ctx context.Context, r io.Reader, _ int64, fileName, mimeType string) (File, error) {
	if s == nil || s.cld == nil {
		return File{}, fmt.Errorf("cloudinary storage is not initialized: %w", apperror.ErrUploadFailed)
	}

	name := objectName("", fileName)
	params := uploader.UploadParams{
		Folder:       s.folder,
		PublicID:     strings.TrimSuffix(name, filepath.Ext(name)),
		Overwrite:    api.Bool(false),
		ResourceType: "auto",
	}

	// images are converted to compressed webp
	if isImage(fileName) {
		params.Format = "webp"
		params.Transformation = "q_auto"
		mimeType = "image/webp"
	}

	resp, err := s.cld.Upload.Upload(ctx, r, params)
	if err != nil {
		return File{}, fmt.Errorf("failed to upload file to cloudinary: %v: %w", err, apperror.ErrUploadFailed)
	}
	if resp.Error.Message != "" {
		return File{}, fmt.Errorf("cloudinary rejected upload: %s: %w", resp.Error.Message, apperror.ErrUploadFailed)
	}
	if resp.SecureURL == "" {
		return File{}, fmt.Errorf("cloudinary upload succeeded but secure URL is empty: %w", apperror.ErrUploadFailed)
	}

	return File{URL: resp.SecureURL, MimeType: mimeType}, nil
}

func (s *cloudinaryStorage) Delete(ctx context.Context, fileURL string) error {
	if s == nil || s.cld == nil {
		return fmt.Errorf("cloudinary storage is not initialized")
	}

	publicID := extractPublicID(fileURL)
	if publicID == "" {
		return fmt.Errorf("could not extract public ID from URL: %s", fileURL)
	}

	// Invalidate clears the CDN cache
	resp, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:   publicID,
		Invalidate: api.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("failed to delete file from cloudinary: %w", err)
	}

	if resp.Result != "ok" && resp.Result != "not found" {
		return fmt.Errorf("cloudinary destroy api returned result: %s", resp.Result)
	}

	return nil
}

// extractPublicID returns the public ID of a Cloudinary delivery URL.
// https://res.cloudinary.com/demo/image/upload/v123456789/folder/sample.jpg -> folder/sample
func extractPublicID(fileURL string) string {
	u, err := url.Parse(fileURL)
	if err != nil {
		return ""
	}

	parts := strings.Split(u.Path, "/")
	uploadIndex := -1
	for i, p := range parts {
		if p == "upload" {
			uploadIndex = i
			break
		}
	}
	if uploadIndex == -1 || uploadIndex+1 >= len(parts) {
		return ""
	}

	rest := parts[uploadIndex+1:]
	if len(rest) > 1 && isVersionSegment(rest[0]) {
		rest = rest[1:]
	}
	if len(rest) == 0 {
		return ""
	}

	withExt := strings.Join(rest, "/")
	return strings.TrimSuffix(withExt, filepath.Ext(withExt))
}

func isVersionSegment(s string) bool {
	if len(s) < 2 || s[0] != 'v' {
		return false
	}
	for _, r := range s[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
