// Package storage persists affiliate photos and returns a public URL for them.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrNotConfigured is returned by NoopUploader
var ErrNotConfigured = errors.New("storage: uploader not configured")

// ErrUnsupportedType is returned for bodies that are not images
var ErrUnsupportedType = errors.New("storage: unsupported content type")

// UploadInput describes one object to store
type UploadInput struct {
	Key          string
	Body         []byte
	ContentType  string
	CacheControl string
}

// UploadResult is the stored object's public location
type UploadResult struct {
	URL  string
	ETag string
}

// Uploader stores objects
type Uploader interface {
	Upload(ctx context.Context, input UploadInput) (*UploadResult, error)
}

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// PhotoKey builds the object key for an affiliate photo, sniffing the
// content type when the client did not send a usable one.
func PhotoKey(affiliateID string, body []byte, contentType string) (key, detected string, err error) {
	detected = strings.TrimSpace(strings.Split(contentType, ";")[0])
	if _, ok := imageExtensions[detected]; !ok {
		detected = http.DetectContentType(body)
	}
	ext, ok := imageExtensions[detected]
	if !ok {
		return "", detected, ErrUnsupportedType
	}
	return affiliateID + ext, detected, nil
}

// LocalUploader writes objects under a directory served at PublicBaseURL
type LocalUploader struct {
	Dir           string
	PublicBaseURL string
}

// NewLocalUploader creates the target directory if needed
func NewLocalUploader(dir, publicBaseURL string) (*LocalUploader, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("storage: failed to create %s: %w", dir, err)
	}
	return &LocalUploader{Dir: dir, PublicBaseURL: strings.TrimRight(publicBaseURL, "/")}, nil
}

// Upload writes the body atomically, replacing any previous object with the same key
func (u *LocalUploader) Upload(ctx context.Context, input UploadInput) (*UploadResult, error) {
	key := path.Clean("/" + strings.TrimSpace(input.Key))[1:]
	if key == "" || strings.Contains(key, "/") {
		return nil, errors.New("storage: invalid object key")
	}
	if len(input.Body) == 0 {
		return nil, errors.New("storage: empty body")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	target := filepath.Join(u.Dir, key)
	tmp, err := os.CreateTemp(u.Dir, ".upload-*")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(input.Body); err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return nil, err
	}

	return &UploadResult{URL: u.PublicBaseURL + "/" + key}, nil
}

// NoopUploader rejects every upload
type NoopUploader struct{}

// Upload always fails
func (NoopUploader) Upload(ctx context.Context, input UploadInput) (*UploadResult, error) {
	return nil, ErrNotConfigured
}
