package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/luxora/storefront-api/internal/apperror"
)

const MaxImageSize = 5 << 20

var (
	allowedImageExts = map[string]bool{".jpeg": true, ".jpg": true, ".png": true, ".webp": true}
	allowedImageMIME = map[string]bool{"image/jpeg": true, "image/jpg": true, "image/png": true, "image/webp": true}
	publicIDPattern  = regexp.MustCompile(`^[0-9a-f-]{36}\.(jpeg|jpg|png|webp)$`)
)

// ImageStore persists image bytes and serves them from a public URL.
type ImageStore interface {
	Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error)
	Remove(ctx context.Context, name string) error
}

type UploadService struct {
	store ImageStore
}

func NewUploadService(store ImageStore) *UploadService {
	return &UploadService{store: store}
}

// Upload stores one image and returns its URL and public id.
func (s *UploadService) Upload(ctx context.Context, filename, contentType string, size int64, r io.Reader) (string, string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	mime, _, _ := strings.Cut(strings.ToLower(contentType), ";")
	if !allowedImageExts[ext] || !allowedImageMIME[strings.TrimSpace(mime)] {
		return "", "", apperror.BadRequest("Only image files are allowed (jpeg, jpg, png, webp)")
	}
	if size > MaxImageSize {
		return "", "", apperror.BadRequest("Image must be 5MB or smaller")
	}

	publicID := uuid.NewString() + ext
	url, err := s.store.Put(ctx, publicID, r, size, strings.TrimSpace(mime))
	if err != nil {
		return "", "", fmt.Errorf("store image: %w", err)
	}
	return url, publicID, nil
}

func (s *UploadService) Delete(ctx context.Context, publicID string) error {
	if publicID == "" {
		return apperror.BadRequest("No image ID provided")
	}
	if !publicIDPattern.MatchString(publicID) {
		return apperror.BadRequest("Invalid image ID")
	}
	if err := s.store.Remove(ctx, publicID); err != nil {
		return fmt.Errorf("remove image: %w", err)
	}
	return nil
}
