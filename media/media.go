// Package media stores uploaded images on behalf of users and messages.
package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrInvalidDataURI = errors.New("media: invalid data URI")
	ErrUnsupported    = errors.New("media: unsupported content type")
	ErrNotUploaded    = errors.New("media: image must be uploaded as a data URI")
)

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Store hands image bytes to object storage and returns a public URL.
type Store interface {
	Save(ctx context.Context, r io.Reader, filename string) (string, error)
	SaveDataURI(ctx context.Context, dataURI string) (string, error)
	Delete(ctx context.Context, url string) error
}

// DiskStore writes files below dir and serves them under baseURL.
type DiskStore struct {
	dir     string
	baseURL string
	log     *logrus.Entry
}

func NewDiskStore(dir, baseURL string, log *logrus.Entry) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DiskStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/"), log: log}, nil
}

func (s *DiskStore) Dir() string { return s.dir }

func (s *DiskStore) Save(ctx context.Context, r io.Reader, filename string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".bin"
	}
	name := uuid.NewString() + ext

	dst, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, r); err != nil {
		os.Remove(dst.Name())
		return "", fmt.Errorf("write file: %w", err)
	}

	s.log.WithField("file", name).Debug("media saved")
	return s.baseURL + "/" + name, nil
}

// SaveDataURI decodes a base64 data URI such as "data:image/png;base64,...".
func (s *DiskStore) SaveDataURI(ctx context.Context, dataURI string) (string, error) {
	mime, data, err := decodeDataURI(dataURI)
	if err != nil {
		return "", err
	}
	ext, ok := extensions[mime]
	if !ok {
		return "", ErrUnsupported
	}
	return s.Save(ctx, bytes.NewReader(data), "upload"+ext)
}

// Delete removes a file previously returned by Save. URLs that do not
// belong to this store are ignored.
func (s *DiskStore) Delete(ctx context.Context, url string) error {
	if url == "" || !strings.HasPrefix(url, s.baseURL+"/") {
		return nil
	}
	name := path.Base(url)
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

// IsDataURI reports whether s looks like an inline image payload.
func IsDataURI(s string) bool {
	return strings.HasPrefix(s, "data:")
}

func decodeDataURI(s string) (string, []byte, error) {
	if !IsDataURI(s) {
		return "", nil, ErrInvalidDataURI
	}
	header, payload, ok := strings.Cut(strings.TrimPrefix(s, "data:"), ",")
	if !ok || !strings.HasSuffix(header, ";base64") {
		return "", nil, ErrInvalidDataURI
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, ErrInvalidDataURI
	}
	return strings.TrimSuffix(header, ";base64"), data, nil
}

// SaveFormFile stores the multipart image under fieldName. A missing file
// returns an empty URL and no error; a non-image extension returns
// ErrUnsupported.
func SaveFormFile(ctx context.Context, store Store, r *http.Request, fieldName string) (string, error) {
	file, header, err := r.FormFile(fieldName)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", nil
		}
		return "", err
	}
	defer file.Close()

	if !imageExtension(header.Filename) {
		return "", ErrUnsupported
	}
	return store.Save(ctx, file, header.Filename)
}

func imageExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == ".jpeg" {
		return true
	}
	for _, known := range extensions {
		if ext == known {
			return true
		}
	}
	return false
}

// Resolve turns an image field from a JSON body into a stored URL. Data URIs
// are uploaded and an empty field stays empty. Any other value must be one of
// keep, the images the caller already owns; otherwise ErrNotUploaded.
func Resolve(ctx context.Context, store Store, img string, keep ...string) (string, error) {
	if img == "" {
		return "", nil
	}
	if IsDataURI(img) {
		return store.SaveDataURI(ctx, img)
	}
	for _, k := range keep {
		if k != "" && k == img {
			return img, nil
		}
	}
	return "", ErrNotUploaded
}
