package drive

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMultipartBody_TwoParts(t *testing.T) {
	payload := []byte{0x00, 0x01, 0xFF, 0xFE}
	body, contentType, err := buildMultipartBody(fileMetadata{Name: "puffin-backup.db", Parents: []string{"folder-1"}}, payload)
	require.NoError(t, err)

	mediaType, params, err := mime.ParseMediaType(contentType)
	require.NoError(t, err)
	assert.Equal(t, "multipart/related", mediaType)
	require.NotEmpty(t, params["boundary"])

	r := multipart.NewReader(bytes.NewReader(body), params["boundary"])

	meta, err := r.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "application/json; charset=UTF-8", meta.Header.Get("Content-Type"))
	metaBytes, err := io.ReadAll(meta)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"puffin-backup.db","parents":["folder-1"]}`, string(metaBytes))

	data, err := r.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", data.Header.Get("Content-Type"))
	dataBytes, err := io.ReadAll(data)
	require.NoError(t, err)
	assert.Equal(t, payload, dataBytes)

	_, err = r.NextPart()
	assert.Equal(t, io.EOF, err)
}

func TestBuildMultipartBody_NoParents(t *testing.T) {
	body, contentType, err := buildMultipartBody(fileMetadata{Name: "f.db"}, []byte("x"))
	require.NoError(t, err)

	_, params, err := mime.ParseMediaType(contentType)
	require.NoError(t, err)

	r := multipart.NewReader(bytes.NewReader(body), params["boundary"])
	meta, err := r.NextPart()
	require.NoError(t, err)
	metaBytes, err := io.ReadAll(meta)
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(metaBytes), "parents"))
}
