package drive

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/puffinapp/puffin-sync/internal/common"
	"github.com/puffinapp/puffin-sync/internal/remote"
)

type staticTokens string

func (s staticTokens) ValidToken(ctx context.Context) (string, error) { return string(s), nil }

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(staticTokens("tok-123"),
		WithBaseURLs(srv.URL+"/drive/v3", srv.URL+"/upload/drive/v3"),
		WithHTTPClient(srv.Client()),
	)
}

func TestProbe_ByID_Found(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		assert.Equal(t, "/drive/v3/files/file-1", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"id":           "file-1",
			"name":         "puffin-backup.db",
			"md5Checksum":  "abc",
			"modifiedTime": "2026-08-01T10:00:00.000Z",
		})
	}))

	m, err := c.Probe(context.Background(), remote.Ref{FileID: "file-1", FileBased: true})
	require.NoError(t, err)
	assert.True(t, m.Exists)
	assert.Equal(t, "file-1", m.FileID)
	assert.Equal(t, "abc", m.Hash)
	assert.Equal(t, 2026, m.ModifiedAt.Year())
}

func TestProbe_ByID_404MeansNoBackup(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))

	m, err := c.Probe(context.Background(), remote.Ref{FileID: "gone"})
	require.NoError(t, err)
	assert.False(t, m.Exists)
}

func TestProbe_ServerErrorIsProbeError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	_, err := c.Probe(context.Background(), remote.Ref{FileID: "any"})
	require.ErrorIs(t, err, common.ErrProbe)
}

func TestProbe_UnauthorizedMapsToNotAuthenticated(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "expired", http.StatusUnauthorized)
	}))

	_, err := c.Probe(context.Background(), remote.Ref{FileID: "any"})
	require.ErrorIs(t, err, common.ErrNotAuthenticated)
}

func TestProbe_FolderSearch_ZeroMatches(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		assert.Contains(t, q, "name = 'puffin-backup.db'")
		assert.Contains(t, q, "'folder-9' in parents")
		_, _ = w.Write([]byte(`{"files":[]}`))
	}))

	m, err := c.Probe(context.Background(), remote.Ref{FolderID: "folder-9", FileName: "puffin-backup.db"})
	require.NoError(t, err)
	assert.False(t, m.Exists)
}

func TestUpload_KnownID_UpdatesInPlace(t *testing.T) {
	var gotBody string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/upload/drive/v3/files/file-1", r.URL.Path)
		assert.Equal(t, "media", r.URL.Query().Get("uploadType"))
		buf, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		gotBody = string(buf)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "file-1", "name": "puffin-backup.db", "md5Checksum": "new"})
	}))

	m, err := c.Upload(context.Background(), remote.Ref{FileID: "file-1"}, []byte("dbbytes"))
	require.NoError(t, err)
	assert.Equal(t, "dbbytes", gotBody)
	assert.Equal(t, "new", m.Hash)
}

func TestUpload_NoRemote_CreatesMultipart(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/drive/v3/files") && r.Method == http.MethodGet:
			_, _ = w.Write([]byte(`{"files":[]}`)) // folder search: nothing yet
		case r.URL.Path == "/upload/drive/v3/files" && r.Method == http.MethodPost:
			assert.Equal(t, "multipart", r.URL.Query().Get("uploadType"))
			assert.Contains(t, r.Header.Get("Content-Type"), "multipart/related")
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "created-1", "name": "puffin-backup.db"})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL)
		}
	}))

	m, err := c.Upload(context.Background(), remote.Ref{FolderID: "folder-9", FileName: "puffin-backup.db"}, []byte("dbbytes"))
	require.NoError(t, err)
	assert.Equal(t, "created-1", m.FileID)
}

func TestDownload_ResolvesAndFetches(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("alt") == "media" {
			_, _ = w.Write([]byte("remote-bytes"))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "file-1", "name": "puffin-backup.db", "md5Checksum": "h"})
	}))

	data, meta, err := c.Download(context.Background(), remote.Ref{FileID: "file-1"})
	require.NoError(t, err)
	assert.Equal(t, []byte("remote-bytes"), data)
	assert.Equal(t, "file-1", meta.FileID)
}

func TestDownload_MissingRemoteIsNotFound(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"files":[]}`))
	}))

	_, _, err := c.Download(context.Background(), remote.Ref{FolderID: "f", FileName: "puffin-backup.db"})
	require.ErrorIs(t, err, common.ErrNotFound)
}
