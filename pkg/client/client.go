// Package client is a typed Go client for the Docufy HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/chaitanya1-coder/docufy/pkg/api"
	"github.com/chaitanya1-coder/docufy/pkg/certificate"
)

// APIError is returned when the API responds with a non-2xx status.
type APIError struct {
	Status int
	Title  string
	Detail string
	Code   string
	Step   string
}

func (e *APIError) Error() string {
	msg := e.Detail
	if msg == "" {
		msg = e.Title
	}
	if e.Code != "" {
		return fmt.Sprintf("docufy api %d: %s (%s)", e.Status, msg, e.Code)
	}
	return fmt.Sprintf("docufy api %d: %s", e.Status, msg)
}

// Client talks to a running docufy server.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithToken sets the bearer token used for issuance and configuration.
func WithToken(token string) Option {
	return func(c *Client) { c.Token = token }
}

// WithTimeout sets the HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.HTTPClient.Timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.HTTPClient = h }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 2 * time.Minute},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Health is the server's liveness summary.
type Health struct {
	Status           string `json:"status"`
	Network          string `json:"network"`
	APIKeyConfigured bool   `json:"api_key_configured"`
	WalletConnected  bool   `json:"wallet_connected"`
}

// HashResult is the server-computed fingerprint of an upload.
type HashResult struct {
	CertificateHash string `json:"certificate_hash"`
	FileName        string `json:"file_name"`
	Size            int    `json:"size"`
}

func (c *Client) Health(ctx context.Context) (*Health, error) {
	var out Health
	if err := c.do(ctx, http.MethodGet, "/health", nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Hash(ctx context.Context, f certificate.File) (*HashResult, error) {
	var out HashResult
	if err := c.upload(ctx, "/v1/hash", f, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Verify uploads f and checks it against the wallet history. An empty
// address uses the server's connected wallet.
func (c *Client) Verify(ctx context.Context, f certificate.File, address string) (*certificate.Result, error) {
	var fields map[string]string
	if address != "" {
		fields = map[string]string{"address": address}
	}
	var out certificate.Result
	if err := c.upload(ctx, "/v1/verify", f, fields, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Issue anchors f on chain with the server's wallet. Requires a token.
func (c *Client) Issue(ctx context.Context, f certificate.File) (*certificate.Issuance, error) {
	var out certificate.Issuance
	if err := c.upload(ctx, "/v1/issue", f, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Config(ctx context.Context) (*api.ConfigView, error) {
	var out api.ConfigView
	if err := c.do(ctx, http.MethodGet, "/v1/config", nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateConfig(ctx context.Context, p api.ConfigPatch) (*api.ConfigView, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	var out api.ConfigView
	if err := c.do(ctx, http.MethodPut, "/v1/config", bytes.NewReader(b), "application/json", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) upload(ctx context.Context, path string, f certificate.File, fields map[string]string, out any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return err
		}
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, f.Name))
	ct := f.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := part.Write(f.Data); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, path, &buf, mw.FormDataContentType(), out)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		var p api.ProblemDetail
		if err := json.NewDecoder(resp.Body).Decode(&p); err == nil && p.Status != 0 {
			return &APIError{Status: resp.StatusCode, Title: p.Title, Detail: p.Detail, Code: p.Code, Step: p.Step}
		}
		return &APIError{Status: resp.StatusCode, Title: http.StatusText(resp.StatusCode)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
