// Package drive implements the remote.Store interface against a Drive-style
// REST API: metadata by id, folder search by name, media and multipart
// uploads, media download. Every call carries a bearer token obtained from
// the token provider.
package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/puffinapp/puffin-sync/internal/common"
	"github.com/puffinapp/puffin-sync/internal/remote"
)

const (
	defaultAPIBase    = "https://www.googleapis.com/drive/v3"
	defaultUploadBase = "https://www.googleapis.com/upload/drive/v3"

	metadataFields = "id,name,md5Checksum,modifiedTime"
)

// TokenProvider supplies a currently valid access token. Satisfied by
// *auth.Manager.
type TokenProvider interface {
	ValidToken(ctx context.Context) (string, error)
}

type Client struct {
	apiBase    string
	uploadBase string
	tokens     TokenProvider
	httpClient *http.Client
}

// Option tweaks a Client; used by tests to point at a local server.
type Option func(*Client)

func WithBaseURLs(apiBase, uploadBase string) Option {
	return func(c *Client) {
		c.apiBase = apiBase
		c.uploadBase = uploadBase
	}
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

func NewClient(tokens TokenProvider, opts ...Option) *Client {
	c := &Client{
		apiBase:    defaultAPIBase,
		uploadBase: defaultUploadBase,
		tokens:     tokens,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// fileResource mirrors the subset of the Drive file resource we request.
type fileResource struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	MD5Checksum  string `json:"md5Checksum"`
	ModifiedTime string `json:"modifiedTime"`
}

func (f *fileResource) metadata() *remote.Metadata {
	m := &remote.Metadata{Exists: true, FileID: f.ID, Name: f.Name, Hash: f.MD5Checksum}
	if t, err := time.Parse(time.RFC3339, f.ModifiedTime); err == nil {
		m.ModifiedAt = t
	}
	return m
}

func (c *Client) do(ctx context.Context, method, rawURL string, contentType string, body []byte) (*http.Response, error) {
	token, err := c.tokens.ValidToken(ctx)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return c.httpClient.Do(req)
}

// Probe implements remote.Store.
func (c *Client) Probe(ctx context.Context, ref remote.Ref) (*remote.Metadata, error) {
	if ref.FileID != "" {
		return c.probeByID(ctx, ref.FileID)
	}
	return c.searchFolder(ctx, ref)
}

func (c *Client) probeByID(ctx context.Context, fileID string) (*remote.Metadata, error) {
	u := fmt.Sprintf("%s/files/%s?fields=%s", c.apiBase, url.PathEscape(fileID), url.QueryEscape(metadataFields))

	resp, err := c.do(ctx, http.MethodGet, u, "", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: get metadata: %v", common.ErrProbe, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &remote.Metadata{Exists: false}, nil
	}
	if err := checkStatus(resp, common.ErrProbe); err != nil {
		return nil, err
	}

	var f fileResource
	if err := json.NewDecoder(resp.Body).Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: decode metadata: %v", common.ErrProbe, err)
	}
	return f.metadata(), nil
}

func (c *Client) searchFolder(ctx context.Context, ref remote.Ref) (*remote.Metadata, error) {
	query := fmt.Sprintf("name = '%s' and trashed = false", ref.FileName)
	if ref.FolderID != "" {
		query += fmt.Sprintf(" and '%s' in parents", ref.FolderID)
	}

	u := fmt.Sprintf("%s/files?q=%s&fields=%s&pageSize=10",
		c.apiBase, url.QueryEscape(query), url.QueryEscape("files("+metadataFields+")"))

	resp, err := c.do(ctx, http.MethodGet, u, "", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: search folder: %v", common.ErrProbe, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, common.ErrProbe); err != nil {
		return nil, err
	}

	var list struct {
		Files []fileResource `json:"files"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("%w: decode search result: %v", common.ErrProbe, err)
	}

	// Zero matches means no cloud backup, not a failure.
	if len(list.Files) == 0 {
		return &remote.Metadata{Exists: false}, nil
	}
	return list.Files[0].metadata(), nil
}

// Upload implements remote.Store.
func (c *Client) Upload(ctx context.Context, ref remote.Ref, data []byte) (*remote.Metadata, error) {
	target := ref.FileID
	if target == "" {
		existing, err := c.Probe(ctx, ref)
		if err != nil {
			return nil, err
		}
		if existing.Exists {
			target = existing.FileID
		}
	}

	if target != "" {
		return c.updateInPlace(ctx, target, data)
	}
	return c.createMultipart(ctx, ref, data)
}

func (c *Client) updateInPlace(ctx context.Context, fileID string, data []byte) (*remote.Metadata, error) {
	u := fmt.Sprintf("%s/files/%s?uploadType=media&fields=%s",
		c.uploadBase, url.PathEscape(fileID), url.QueryEscape(metadataFields))

	resp, err := c.do(ctx, http.MethodPatch, u, "application/octet-stream", data)
	if err != nil {
		return nil, fmt.Errorf("%w: media upload: %v", common.ErrExchange, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, common.ErrExchange); err != nil {
		return nil, err
	}

	var f fileResource
	if err := json.NewDecoder(resp.Body).Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: decode upload response: %v", common.ErrExchange, err)
	}
	return f.metadata(), nil
}

func (c *Client) createMultipart(ctx context.Context, ref remote.Ref, data []byte) (*remote.Metadata, error) {
	meta := fileMetadata{Name: ref.FileName}
	if ref.FolderID != "" {
		meta.Parents = []string{ref.FolderID}
	}

	body, contentType, err := buildMultipartBody(meta, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrExchange, err)
	}

	u := fmt.Sprintf("%s/files?uploadType=multipart&fields=%s", c.uploadBase, url.QueryEscape(metadataFields))

	resp, err := c.do(ctx, http.MethodPost, u, contentType, body)
	if err != nil {
		return nil, fmt.Errorf("%w: multipart upload: %v", common.ErrExchange, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, common.ErrExchange); err != nil {
		return nil, err
	}

	var f fileResource
	if err := json.NewDecoder(resp.Body).Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: decode create response: %v", common.ErrExchange, err)
	}
	return f.metadata(), nil
}

// Download implements remote.Store.
func (c *Client) Download(ctx context.Context, ref remote.Ref) ([]byte, *remote.Metadata, error) {
	meta, err := c.Probe(ctx, ref)
	if err != nil {
		return nil, nil, err
	}
	if !meta.Exists {
		return nil, nil, fmt.Errorf("%w: no remote backup file", common.ErrNotFound)
	}

	u := fmt.Sprintf("%s/files/%s?alt=media", c.apiBase, url.PathEscape(meta.FileID))

	resp, err := c.do(ctx, http.MethodGet, u, "", nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: media download: %v", common.ErrExchange, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, common.ErrExchange); err != nil {
		return nil, nil, err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read download body: %v", common.ErrExchange, err)
	}
	return data, meta, nil
}

// checkStatus maps a non-2xx response to the given sentinel. Auth failures
// get their own sentinel so callers can trigger re-authentication.
func checkStatus(resp *http.Response, sentinel error) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: drive api status %d: %s", common.ErrNotAuthenticated, resp.StatusCode, body)
	}
	return fmt.Errorf("%w: drive api status %d: %s", sentinel, resp.StatusCode, body)
}
