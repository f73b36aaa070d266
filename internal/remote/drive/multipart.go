package drive

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/textproto"
)

// fileMetadata is the JSON metadata part of a multipart create request.
type fileMetadata struct {
	Name    string   `json:"name"`
	Parents []string `json:"parents,omitempty"`
}

// buildMultipartBody encodes the two-part multipart/related request body a
// Drive create upload expects: a JSON metadata part followed by the binary
// payload. Returns the body and its Content-Type (which carries the
// boundary). Pure encoding, no network.
func buildMultipartBody(meta fileMetadata, payload []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, "", fmt.Errorf("encode file metadata: %w", err)
	}

	metaPart, err := w.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"application/json; charset=UTF-8"},
	})
	if err != nil {
		return nil, "", err
	}
	if _, err := metaPart.Write(metaJSON); err != nil {
		return nil, "", err
	}

	dataPart, err := w.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"application/octet-stream"},
	})
	if err != nil {
		return nil, "", err
	}
	if _, err := dataPart.Write(payload); err != nil {
		return nil, "", err
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}

	contentType := fmt.Sprintf("multipart/related; boundary=%s", w.Boundary())
	return buf.Bytes(), contentType, nil
}
