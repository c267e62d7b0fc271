package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialhub/pkg/logger"
)

func newStore(t *testing.T) *DiskStore {
	t.Helper()
	s, err := NewDiskStore(t.TempDir(), "/uploads/", logger.Discard().WithField("component", "media"))
	require.NoError(t, err)
	return s
}

func TestSaveAndDelete(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	url, err := s.Save(ctx, strings.NewReader("png-bytes"), "cat.PNG")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/uploads/"))
	assert.True(t, strings.HasSuffix(url, ".png"))

	path := filepath.Join(s.Dir(), filepath.Base(url))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	require.NoError(t, s.Delete(ctx, url))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, s.Delete(ctx, url), "deleting twice is harmless")
	assert.NoError(t, s.Delete(ctx, "https://cdn.example.com/x.png"))
}

func TestSaveDataURI(t *testing.T) {
	s := newStore(t)
	payload := base64.StdEncoding.EncodeToString([]byte("gif89a"))

	url, err := s.SaveDataURI(context.Background(), "data:image/gif;base64,"+payload)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(url, ".gif"))

	_, err = s.SaveDataURI(context.Background(), "data:text/plain;base64,"+payload)
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = s.SaveDataURI(context.Background(), "data:image/png,notbase64")
	assert.ErrorIs(t, err, ErrInvalidDataURI)

	_, err = s.SaveDataURI(context.Background(), "http://example.com/a.png")
	assert.ErrorIs(t, err, ErrInvalidDataURI)
}

func TestResolve(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := Resolve(ctx, s, "https://example.com/a.png")
	assert.ErrorIs(t, err, ErrNotUploaded)

	_, err = Resolve(ctx, s, "/uploads/someone-elses.png", "/uploads/mine.png", "")
	assert.ErrorIs(t, err, ErrNotUploaded)

	got, err := Resolve(ctx, s, "/uploads/mine.png", "/uploads/mine.png")
	require.NoError(t, err)
	assert.Equal(t, "/uploads/mine.png", got)

	got, err = Resolve(ctx, s, "")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = Resolve(ctx, s, "data:image/png;base64,"+base64.StdEncoding.EncodeToString([]byte("png")))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "/uploads/"), got)
}

func TestSaveFormFile(t *testing.T) {
	s := newStore(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("image", "photo.jpg")
	require.NoError(t, err)
	fw.Write([]byte("jpeg"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	url, err := SaveFormFile(context.Background(), s, req, "image")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(url, ".jpg"))

	url, err = SaveFormFile(context.Background(), s, req, "missing")
	require.NoError(t, err)
	assert.Empty(t, url)
}

func TestSaveFormFileRejectsNonImages(t *testing.T) {
	s := newStore(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("image", "script.sh")
	require.NoError(t, err)
	fw.Write([]byte("#!/bin/sh"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	_, err = SaveFormFile(context.Background(), s, req, "image")
	assert.ErrorIs(t, err, ErrUnsupported)
}
