package api_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaitanya1-coder/docufy/pkg/address"
	"github.com/chaitanya1-coder/docufy/pkg/api"
	"github.com/chaitanya1-coder/docufy/pkg/certificate"
	"github.com/chaitanya1-coder/docufy/pkg/config"
	"github.com/chaitanya1-coder/docufy/pkg/digest"
)

const secret = "test-secret-0123456789"

var certPDF = []byte("%PDF-1.7\n%%EOF\n\n\n")

type env struct {
	srv    *httptest.Server
	holder *config.Holder
	hits   *atomic.Int32
	addr   string
	token  string
}

// newEnv wires the real service to a fake Blockfrost whose only address
// history holds one certificate for certPDF.
func newEnv(t *testing.T, opts ...api.ServerOption) *env {
	t.Helper()
	e := &env{hits: &atomic.Int32{}}

	a, err := address.Enterprise(0, bytes.Repeat([]byte{0x42}, address.KeyHashSize))
	require.NoError(t, err)
	e.addr = a.String()

	d := digest.SumBytes(certPDF)
	chain := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		e.hits.Add(1)
		switch r.URL.Path {
		case "/network":
			_, _ = io.WriteString(w, `{"supply":{},"stake":{}}`)
		case "/addresses/" + e.addr + "/transactions":
			_, _ = io.WriteString(w, `[{"tx_hash":"aa11","tx_index":0,"block_height":42,"block_time":1746000000}]`)
		case "/txs/aa11/metadata":
			fmt.Fprintf(w, `[{"label":"674","json_metadata":{"certificate_hash":%q,"file_name":"cert.pdf","network":"preprod","version":"1.0"}}]`, d)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(chain.Close)

	cfg := config.Default()
	cfg.IndexerAPIKey = "preprodTESTKEY0123456789"
	cfg.IndexerURL = chain.URL
	e.holder = config.NewHolder(cfg)

	auth := api.NewAuthenticator(secret)
	e.token, err = auth.Token("tester", time.Hour)
	require.NoError(t, err)

	opts = append([]api.ServerOption{api.WithAuthenticator(auth)}, opts...)
	e.srv = httptest.NewServer(api.NewServer(e.holder, certificate.New(), opts...).Handler())
	t.Cleanup(e.srv.Close)
	return e
}

func upload(t *testing.T, name, contentType string, data []byte, fields map[string]string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func (e *env) do(t *testing.T, method, path, token string, body io.Reader, contentType string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, body)
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	e := newEnv(t)
	resp := e.do(t, http.MethodGet, "/health", "", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	body := decode[map[string]any](t, resp)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["api_key_configured"])
	assert.Equal(t, false, body["wallet_connected"])
}

func TestHash(t *testing.T) {
	e := newEnv(t)
	body, ct := upload(t, "cert.pdf", "application/pdf", certPDF, nil)
	resp := e.do(t, http.MethodPost, "/v1/hash", "", body, ct)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := decode[map[string]any](t, resp)
	assert.Equal(t, digest.SumBytes(certPDF).String(), got["certificate_hash"])
	assert.Equal(t, "cert.pdf", got["file_name"])
	assert.Zero(t, e.hits.Load())
}

func TestHash_RejectsNonPDF(t *testing.T) {
	e := newEnv(t)
	body, ct := upload(t, "notes.txt", "text/plain", []byte("hello"), nil)
	resp := e.do(t, http.MethodPost, "/v1/hash", "", body, ct)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))

	p := decode[api.ProblemDetail](t, resp)
	assert.Equal(t, "validation", p.Code)
	assert.Equal(t, "Only PDF files are supported", p.Detail)
	assert.Equal(t, "/v1/hash", p.Instance)
}

func TestHash_MissingFile(t *testing.T) {
	e := newEnv(t)
	resp := e.do(t, http.MethodPost, "/v1/hash", "", strings.NewReader("{}"), "application/json")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestVerify(t *testing.T) {
	e := newEnv(t)
	body, ct := upload(t, "cert.pdf", "application/pdf", certPDF, map[string]string{"address": e.addr})
	resp := e.do(t, http.MethodPost, "/v1/verify", "", body, ct)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	res := decode[certificate.Result](t, resp)
	assert.True(t, res.Valid)
	assert.Equal(t, "aa11", res.TransactionHash)
	assert.Equal(t, "cert.pdf", res.FileName)
	assert.Equal(t, int64(42), res.BlockHeight)
}

func TestVerify_PlaceholderKey(t *testing.T) {
	e := newEnv(t)
	_, err := e.holder.Update(func(c *config.Config) { c.IndexerAPIKey = "preprodYOUR_API_KEY_HERE" })
	require.NoError(t, err)

	body, ct := upload(t, "cert.pdf", "application/pdf", certPDF, map[string]string{"address": e.addr})
	resp := e.do(t, http.MethodPost, "/v1/verify", "", body, ct)
	require.Equal(t, http.StatusPreconditionFailed, resp.StatusCode)
	p := decode[api.ProblemDetail](t, resp)
	assert.Equal(t, "configuration", p.Code)
	assert.Zero(t, e.hits.Load())
}

func TestIssue_Auth(t *testing.T) {
	e := newEnv(t)

	body, ct := upload(t, "cert.pdf", "application/pdf", certPDF, nil)
	resp := e.do(t, http.MethodPost, "/v1/issue", "", body, ct)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	body, ct = upload(t, "cert.pdf", "application/pdf", certPDF, nil)
	resp = e.do(t, http.MethodPost, "/v1/issue", "not-a-jwt", body, ct)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	other, err := api.NewAuthenticator("some-other-secret").Token("tester", time.Hour)
	require.NoError(t, err)
	body, ct = upload(t, "cert.pdf", "application/pdf", certPDF, nil)
	resp = e.do(t, http.MethodPost, "/v1/issue", other, body, ct)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	body, ct = upload(t, "cert.pdf", "application/pdf", certPDF, nil)
	resp = e.do(t, http.MethodPost, "/v1/issue", e.token, body, ct)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	p := decode[api.ProblemDetail](t, resp)
	assert.Equal(t, "wallet_unavailable", p.Code)
}

func TestAuth_NoSecretFailsClosed(t *testing.T) {
	e := newEnv(t, api.WithAuthenticator(api.NewAuthenticator("")))
	resp := e.do(t, http.MethodGet, "/v1/config", e.token, nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, err := api.NewAuthenticator("").Token("x", time.Minute)
	assert.Error(t, err)
}

func TestConfig_GetAndUpdate(t *testing.T) {
	e := newEnv(t)

	resp := e.do(t, http.MethodGet, "/v1/config", e.token, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decode[api.ConfigView](t, resp)
	assert.Equal(t, config.Preprod, view.Network)
	assert.True(t, view.APIKeyConfigured)
	assert.NotContains(t, view.APIKey, "0123456789")

	patch := `{"network":"Preview","indexer_api_key":"previewNEWKEY9876543210","history_depth":80}`
	resp = e.do(t, http.MethodPut, "/v1/config", e.token, strings.NewReader(patch), "application/json")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view = decode[api.ConfigView](t, resp)
	assert.Equal(t, config.Preview, view.Network)
	assert.Equal(t, 80, view.HistoryDepth)

	cfg := e.holder.Snapshot()
	assert.Equal(t, "previewNEWKEY9876543210", cfg.IndexerAPIKey)
	assert.Equal(t, config.Preview, cfg.Network)
}

func TestConfig_RejectsBadInput(t *testing.T) {
	e := newEnv(t)
	for _, body := range []string{
		`{"network":"testnet"}`,
		`{"submit_via":"carrier-pigeon"}`,
		`{"request_timeout":"soon"}`,
		`{"unknown":1}`,
		`not json`,
	} {
		resp := e.do(t, http.MethodPut, "/v1/config", e.token, strings.NewReader(body), "application/json")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	}
	assert.Equal(t, config.Preprod, e.holder.Snapshot().Network)
}

func TestRateLimit(t *testing.T) {
	e := newEnv(t, api.WithRateLimiter(api.NewIPRateLimiter(0.001, 1)))

	resp := e.do(t, http.MethodGet, "/health", "", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = e.do(t, http.MethodGet, "/health", "", nil, "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "5", resp.Header.Get("Retry-After"))
}

func TestWriteCertificateError_Unclassified(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/x", nil)
	api.WriteCertificateError(w, r, errors.New("pq: connection refused to host=10.0.0.1"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "10.0.0.1")
}
