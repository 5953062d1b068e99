// Package storage provides content-addressed blob storage for uploaded images.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

// ErrBlobNotFound is returned by Head when no blob has the given name.
var ErrBlobNotFound = errors.New("blob not found")

// BlobInfo describes a stored blob.
type BlobInfo struct {
	Name       string
	URL        string
	Size       int64
	UploadedAt time.Time
}

// BlobStore is a flat namespace of immutable blobs.
type BlobStore interface {
	Head(ctx context.Context, name string) (*BlobInfo, error)
	Put(ctx context.Context, name string, content []byte, contentType string) (*BlobInfo, error)
}

var blobNamePattern = regexp.MustCompile(`^[a-f0-9]{64}\.[a-z0-9]{1,5}$`)

// ValidName reports whether name is a content hash with an extension.
func ValidName(name string) bool {
	return blobNamePattern.MatchString(name)
}

// DiskStore keeps blobs as files under Root and serves them below BaseURL/media.
type DiskStore struct {
	Root    string
	BaseURL string
}

// NewDiskStore creates root if needed.
func NewDiskStore(root, baseURL string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &DiskStore{Root: root, BaseURL: baseURL}, nil
}

// URL returns the public URL of name.
func (s *DiskStore) URL(name string) string {
	return s.BaseURL + "/media/" + name
}

func (s *DiskStore) Head(ctx context.Context, name string) (*BlobInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !ValidName(name) {
		return nil, fmt.Errorf("invalid blob name %q", name)
	}

	fi, err := os.Stat(filepath.Join(s.Root, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrBlobNotFound
		}
		return nil, err
	}
	return &BlobInfo{Name: name, URL: s.URL(name), Size: fi.Size(), UploadedAt: fi.ModTime()}, nil
}

// Put writes content atomically. Writing an existing name replaces it with identical bytes.
func (s *DiskStore) Put(ctx context.Context, name string, content []byte, _ string) (*BlobInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !ValidName(name) {
		return nil, fmt.Errorf("invalid blob name %q", name)
	}

	tmp, err := os.CreateTemp(s.Root, ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("create temp blob: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		return nil, fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close blob: %w", err)
	}
	if err := os.Chmod(tmpName, 0o640); err != nil {
		return nil, fmt.Errorf("chmod blob: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.Root, name)); err != nil {
		return nil, fmt.Errorf("store blob: %w", err)
	}

	return &BlobInfo{Name: name, URL: s.URL(name), Size: int64(len(content)), UploadedAt: time.Now()}, nil
}
