package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"shapeit/internal/models"
	"shapeit/internal/observability"
	"shapeit/internal/storage"

	_ "golang.org/x/image/webp" // Register WebP decoder
)

const DefaultMaxUploadSizeMB = 5

// ExistenceCheckFallback decides what Upload does when the blob store cannot
// tell whether a blob already exists.
type ExistenceCheckFallback int

const (
	// FallbackUploadAnyway uploads unconditionally. Re-uploading identical
	// bytes under the same name is harmless.
	FallbackUploadAnyway ExistenceCheckFallback = iota
	// FallbackFail reports the existence-check error to the caller.
	FallbackFail
)

func (f ExistenceCheckFallback) String() string {
	switch f {
	case FallbackUploadAnyway:
		return "upload_anyway"
	case FallbackFail:
		return "fail"
	default:
		return fmt.Sprintf("ExistenceCheckFallback(%d)", int(f))
	}
}

// UploadFile is one image attached to a new post.
type UploadFile struct {
	Filename    string
	ContentType string
	Content     []byte
}

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

var acceptedFilenameExts = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".webp": {},
}

// Uploader validates images and stores them content-addressed in a BlobStore.
type Uploader struct {
	store    storage.BlobStore
	maxBytes int64
	fallback ExistenceCheckFallback
}

func NewUploader(store storage.BlobStore, maxUploadSizeMB int, fallback ExistenceCheckFallback) *Uploader {
	if maxUploadSizeMB <= 0 {
		maxUploadSizeMB = DefaultMaxUploadSizeMB
	}
	return &Uploader{
		store:    store,
		maxBytes: int64(maxUploadSizeMB) * 1024 * 1024,
		fallback: fallback,
	}
}

// Upload stores f and returns its public URL. The same bytes always map to the
// same blob, so repeated uploads reuse it.
func (u *Uploader) Upload(ctx context.Context, f UploadFile) (string, error) {
	if len(f.Content) == 0 {
		return "", models.NewValidationError("Empty file")
	}
	if int64(len(f.Content)) > u.maxBytes {
		return "", models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", u.maxBytes/(1024*1024)))
	}

	detected := http.DetectContentType(f.Content)
	ext, ok := imageExtensions[detected]
	if !ok {
		return "", models.NewValidationError("Invalid image type")
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(f.Content)); err != nil {
		return "", models.NewValidationError("Invalid image file")
	}

	name := BlobName(f.Content, f.Filename, ext)

	info, err := u.store.Head(ctx, name)
	switch {
	case err == nil:
		observability.BlobUploads.WithLabelValues("reused").Inc()
		return info.URL, nil
	case errors.Is(err, storage.ErrBlobNotFound):
	default:
		if u.fallback == FallbackFail {
			observability.BlobUploads.WithLabelValues("failed").Inc()
			return "", models.NewInternalError(fmt.Errorf("blob existence check: %w", err))
		}
		observability.BlobUploads.WithLabelValues("fallback").Inc()
		slog.WarnContext(ctx, "blob existence check failed, uploading anyway",
			"blob", name, "policy", u.fallback.String(), "err", err)
	}

	info, err = u.store.Put(ctx, name, f.Content, detected)
	if err != nil {
		observability.BlobUploads.WithLabelValues("failed").Inc()
		return "", models.NewInternalError(fmt.Errorf("blob upload: %w", err))
	}
	observability.BlobUploads.WithLabelValues("stored").Inc()
	return info.URL, nil
}

// BlobName is the hex SHA-256 of content plus the filename's extension, or
// fallbackExt when the filename carries no recognised image extension.
func BlobName(content []byte, filename, fallbackExt string) string {
	sum := sha256.Sum256(content)
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := acceptedFilenameExts[ext]; !ok {
		ext = fallbackExt
	}
	return hex.EncodeToString(sum[:]) + ext
}
