package cloudinary

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeImage(t *testing.T, name string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte("\xff\xd8\xff\xe0fake-jpeg"), 0o600))
	return p
}

func newTestUploader(t *testing.T, h http.HandlerFunc) *Uploader {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	u, err := New("demo", "unsigned_preset", WithAPIBase(srv.URL))
	require.NoError(t, err)
	return u
}

func TestNew_RequiresCloudAndPreset(t *testing.T) {
	t.Parallel()

	_, err := New("", "preset")
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = New("demo", "")
	assert.ErrorIs(t, err, ErrNotConfigured)

	u, err := New("demo", "preset")
	require.NoError(t, err)
	assert.Equal(t, "https://api.cloudinary.com/v1_1/demo/image/upload", u.Endpoint())
}

func TestUpload_SendsMultipartAndReturnsSecureURL(t *testing.T) {
	t.Parallel()

	img := writeImage(t, "dish.jpg")
	u := newTestUploader(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1_1/demo/image/upload", r.URL.Path)

		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		assert.Equal(t, "unsigned_preset", r.FormValue("upload_preset"))

		file, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer file.Close()
		assert.Equal(t, "dish.jpg", header.Filename)
		assert.Equal(t, "image/jpeg", header.Header.Get("Content-Type"))
		data, _ := io.ReadAll(file)
		assert.Contains(t, string(data), "fake-jpeg")

		_ = json.NewEncoder(w).Encode(map[string]string{
			"secure_url": "https://res.cloudinary.com/demo/image/upload/v1/dish.jpg",
		})
	})

	got, err := u.Upload(context.Background(), img)
	require.NoError(t, err)
	assert.Equal(t, "https://res.cloudinary.com/demo/image/upload/v1/dish.jpg", got)
}

func TestUpload_FileURI(t *testing.T) {
	t.Parallel()

	img := writeImage(t, "photo.jpg")
	u := newTestUploader(t, func(w http.ResponseWriter, r *http.Request) {
		_, header, err := r.FormFile("file")
		if assert.NoError(t, err) {
			assert.Equal(t, "photo.jpg", header.Filename)
		}
		_, _ = w.Write([]byte(`{"secure_url":"https://cdn/photo.jpg"}`))
	})

	got, err := u.Upload(context.Background(), "file://"+filepath.ToSlash(img))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/photo.jpg", got)
}

func TestUpload_ErrorMessageFromHost(t *testing.T) {
	t.Parallel()

	img := writeImage(t, "dish.jpg")
	u := newTestUploader(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid preset"}}`))
	})

	_, err := u.Upload(context.Background(), img)
	require.Error(t, err)
	assert.Equal(t, "Invalid preset", err.Error())

	var uploadErr *UploadError
	require.ErrorAs(t, err, &uploadErr)
	assert.Equal(t, http.StatusBadRequest, uploadErr.Status)
}

func TestUpload_ErrorWithoutMessage(t *testing.T) {
	t.Parallel()

	img := writeImage(t, "dish.jpg")
	u := newTestUploader(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`<html>oops</html>`))
	})

	_, err := u.Upload(context.Background(), img)
	require.Error(t, err)
	assert.Equal(t, fallbackMessage, err.Error())
}

func TestUpload_MissingFile(t *testing.T) {
	t.Parallel()

	called := false
	u := newTestUploader(t, func(w http.ResponseWriter, r *http.Request) { called = true })

	_, err := u.Upload(context.Background(), filepath.Join(t.TempDir(), "nope.jpg"))
	require.Error(t, err)
	assert.False(t, called)

	_, err = u.Upload(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyURI)
}

func TestFileName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"/var/mobile/Containers/tmp/ABC.jpg", "ABC.jpg"},
		{"relative/img.png", "img.png"},
		{`C:\photos\cake.jpg`, "cake.jpg"},
		{"/", "image.jpg"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, fileName(tt.in), tt.in)
	}
}
