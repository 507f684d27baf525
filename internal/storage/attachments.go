package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// AttachmentPrefix namespaces ticket attachments on the disk.
const AttachmentPrefix = "tickets/"

// DefaultMaxAttachmentBytes caps a single upload.
const DefaultMaxAttachmentBytes int64 = 5 * 1024 * 1024

var allowedTypes = map[string][]string{
	".jpg":  {"image/jpeg", "image/pjpeg"},
	".jpeg": {"image/jpeg", "image/pjpeg"},
	".png":  {"image/png"},
	".pdf":  {"application/pdf"},
	".doc":  {"application/msword"},
	".docx": {"application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
}

// Upload is a file received with a ticket write.
type Upload struct {
	FileName    string
	ContentType string
	Size        int64
	Content     io.Reader
}

// AttachmentStore validates uploads and places them on a Disk.
type AttachmentStore struct {
	disk     Disk
	maxBytes int64
}

// NewAttachmentStore wraps disk. maxBytes <= 0 selects DefaultMaxAttachmentBytes.
func NewAttachmentStore(disk Disk, maxBytes int64) *AttachmentStore {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxAttachmentBytes
	}
	return &AttachmentStore{disk: disk, maxBytes: maxBytes}
}

// MaxBytes returns the per-upload cap.
func (s *AttachmentStore) MaxBytes() int64 {
	return s.maxBytes
}

// Validate checks extension, content type and size.
func (s *AttachmentStore) Validate(upload *Upload) error {
	if upload == nil {
		return nil
	}
	ext := strings.ToLower(filepath.Ext(upload.FileName))
	types, ok := allowedTypes[ext]
	if !ok {
		return invalidAttachment("The attachment must be a file of type: jpg, jpeg, png, pdf, doc, docx.")
	}
	if !contentTypeMatches(upload.ContentType, types) {
		return invalidAttachment("The attachment content type does not match its extension.")
	}
	if upload.Size > s.maxBytes {
		return invalidAttachment(fmt.Sprintf("The attachment may not be greater than %d kilobytes.", s.maxBytes/1024))
	}
	return nil
}

// Store validates upload and writes it under AttachmentPrefix. It returns the stored key.
func (s *AttachmentStore) Store(ctx context.Context, upload *Upload) (string, error) {
	if err := s.Validate(upload); err != nil {
		return "", err
	}
	key := AttachmentPrefix + uuid.NewString() + strings.ToLower(filepath.Ext(upload.FileName))
	body := io.LimitReader(upload.Content, s.maxBytes)
	if err := s.disk.Put(ctx, key, body, upload.Size, upload.ContentType); err != nil {
		return "", apperrors.NewStorageError(err)
	}
	return key, nil
}

// Remove deletes a stored attachment. Empty paths are ignored.
func (s *AttachmentStore) Remove(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}
	if err := s.disk.Delete(ctx, path); err != nil {
		return apperrors.NewStorageError(err)
	}
	return nil
}

// URL derives the public address of a stored path. Nil paths yield nil.
func (s *AttachmentStore) URL(path *string) *string {
	if path == nil || *path == "" {
		return nil
	}
	url := s.disk.URL(*path)
	return &url
}

func contentTypeMatches(contentType string, allowed []string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	if mediaType == "application/octet-stream" {
		return true
	}
	for _, candidate := range allowed {
		if mediaType == candidate {
			return true
		}
	}
	return false
}

func invalidAttachment(message string) error {
	return apperrors.NewValidationError("The given data was invalid.", map[string]any{
		"attachment": []string{message},
	})
}
