package hostedstorage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStoreValidation(t *testing.T) {
	if _, err := NewStore(Config{Bucket: "public"}); err == nil {
		t.Fatal("expected error when base URL missing")
	}
	if _, err := NewStore(Config{BaseURL: "https://storage.example.com"}); err == nil {
		t.Fatal("expected error when bucket missing")
	}
}

func TestUploadReturnsPublicURL(t *testing.T) {
	var (
		gotPath        string
		gotContentType string
		gotAuth        string
		gotBody        string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		gotAuth = r.Header.Get("Authorization")
		b, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store, err := NewStore(Config{BaseURL: srv.URL, Bucket: "public", APIKey: "secret-key"})
	require.NoError(t, err)

	url, err := store.Upload(context.Background(),
		"profile-pictures/user-1/avatar.png", "image/png", strings.NewReader("png bytes"))
	require.NoError(t, err)

	assert.Equal(t, srv.URL+"/object/public/public/profile-pictures/user-1/avatar.png", url)
	assert.Equal(t, "/object/public/profile-pictures/user-1/avatar.png", gotPath)
	assert.Equal(t, "image/png", gotContentType)
	assert.Equal(t, "Bearer secret-key", gotAuth)
	assert.Equal(t, "png bytes", gotBody)
}

func TestUploadEscapesKeySegments(t *testing.T) {
	var gotEscapedPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotEscapedPath = r.URL.EscapedPath()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store, err := NewStore(Config{BaseURL: srv.URL, Bucket: "public"})
	require.NoError(t, err)

	_, err = store.Upload(context.Background(), "dir/with space.png", "image/png", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, "/object/public/dir/with%20space.png", gotEscapedPath)
}

func TestUploadSurfacesServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	store, err := NewStore(Config{BaseURL: srv.URL, Bucket: "public"})
	require.NoError(t, err)

	_, err = store.Upload(context.Background(), "key.png", "image/png", strings.NewReader("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
}

func TestRemoveTreatsMissingObjectAsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	store, err := NewStore(Config{BaseURL: srv.URL, Bucket: "public"})
	require.NoError(t, err)

	assert.NoError(t, store.Remove(context.Background(), "gone.png"))
}
