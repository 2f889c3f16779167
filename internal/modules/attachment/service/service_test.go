package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"testing"

	"anoa.com/forumboard/internal/entity"
	"anoa.com/forumboard/pkg/apperror"
	"anoa.com/forumboard/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStorage struct {
	stored    [][]byte
	mimeTypes []string
	deleted   []string
	storeErr  error
	deleteErr error
}

func (f *fakeStorage) Store(_ context.Context, r io.Reader, _ int64, fileName, mimeType string) (storage.File, error) {
	if f.storeErr != nil {
		return storage.File{}, f.storeErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return storage.File{}, err
	}
	f.stored = append(f.stored, data)
	f.mimeTypes = append(f.mimeTypes, mimeType)
	return storage.File{URL: "https://cdn.example.com/" + fileName, MimeType: mimeType}, nil
}

func (f *fakeStorage) Delete(_ context.Context, fileURL string) error {
	f.deleted = append(f.deleted, fileURL)
	return f.deleteErr
}

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

// upload builds the file header a multipart form parse would hand to the
// handler. An empty contentType leaves the part without one.
func upload(t *testing.T, name, contentType string, data []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, name))
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(body, w.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	require.Len(t, form.File["file"], 1)
	return form.File["file"][0]
}

func TestUploadAttachmentTrustsDeclaredType(t *testing.T) {
	fs := &fakeStorage{}
	svc := NewAttachmentService(fs, 1024, nil)

	resp, err := svc.UploadAttachment(context.Background(), upload(t, "photo.webp", "image/webp", []byte("not really webp")))
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.example.com/photo.webp", resp.FileURL)
	assert.Equal(t, "image/webp", resp.MimeType)
	require.Len(t, fs.stored, 1)
	assert.Equal(t, []byte("not really webp"), fs.stored[0])
}

func TestUploadAttachmentSniffsGenericType(t *testing.T) {
	for _, declared := range []string{"", "application/octet-stream"} {
		t.Run("declared="+declared, func(t *testing.T) {
			fs := &fakeStorage{}
			svc := NewAttachmentService(fs, 1024, nil)

			resp, err := svc.UploadAttachment(context.Background(), upload(t, "pic", declared, pngHeader))
			require.NoError(t, err)

			assert.Equal(t, "image/png", resp.MimeType)
			assert.Equal(t, []string{"image/png"}, fs.mimeTypes)
			// the sniffed bytes are rewound before storing
			assert.Equal(t, pngHeader, fs.stored[0])
		})
	}
}

func TestUploadAttachmentSizeLimit(t *testing.T) {
	fs := &fakeStorage{}
	svc := NewAttachmentService(fs, 8, nil)

	_, err := svc.UploadAttachment(context.Background(), upload(t, "big.txt", "text/plain", []byte("nine byte")))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrBadRequest)
	assert.Equal(t, http.StatusBadRequest, apperror.MapErrorToStatus(err))
	assert.Empty(t, fs.stored)

	_, err = svc.UploadAttachment(context.Background(), upload(t, "ok.txt", "text/plain", []byte("eight by")))
	assert.NoError(t, err)
}

func TestUploadAttachmentNoFile(t *testing.T) {
	svc := NewAttachmentService(&fakeStorage{}, 1024, nil)

	_, err := svc.UploadAttachment(context.Background(), nil)
	assert.ErrorIs(t, err, apperror.ErrBadRequest)
	assert.Equal(t, http.StatusBadRequest, apperror.MapErrorToStatus(err))
}

func TestUploadAttachmentWithoutStorage(t *testing.T) {
	svc := NewAttachmentService(nil, 1024, nil)

	_, err := svc.UploadAttachment(context.Background(), upload(t, "a.png", "image/png", pngHeader))
	assert.ErrorIs(t, err, apperror.ErrUploadFailed)
	assert.Equal(t, http.StatusInternalServerError, apperror.MapErrorToStatus(err))
}

func TestUploadAttachmentStoreFailureHidesCause(t *testing.T) {
	fs := &fakeStorage{storeErr: errors.New("dial tcp 10.0.0.7:9000: connection refused")}
	svc := NewAttachmentService(fs, 1024, nil)

	_, err := svc.UploadAttachment(context.Background(), upload(t, "a.png", "image/png", pngHeader))
	require.Error(t, err)

	assert.Equal(t, "File upload failed", err.Error())
	assert.NotContains(t, err.Error(), "10.0.0.7")
	assert.ErrorIs(t, err, apperror.ErrUploadFailed)
	assert.Equal(t, http.StatusInternalServerError, apperror.MapErrorToStatus(err))
}

func TestRemoveBlobsDeletesEveryURL(t *testing.T) {
	fs := &fakeStorage{deleteErr: errors.New("gone already")}
	svc := NewAttachmentService(fs, 1024, nil)

	svc.RemoveBlobs(context.Background(), []entity.Attachment{
		{FileURL: "https://cdn.example.com/a.png"},
		{FileURL: "https://cdn.example.com/b.pdf"},
	})

	assert.Equal(t, []string{"https://cdn.example.com/a.png", "https://cdn.example.com/b.pdf"}, fs.deleted)
}

func TestRemoveBlobsWithoutStorage(t *testing.T) {
	svc := NewAttachmentService(nil, 1024, nil)
	assert.NotPanics(t, func() {
		svc.RemoveBlobs(context.Background(), []entity.Attachment{{FileURL: "https://cdn.example.com/a.png"}})
	})
}
