package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaitanya1-coder/docufy/pkg/api"
	"github.com/chaitanya1-coder/docufy/pkg/certificate"
)

var pdf = certificate.File{
	Name:        "diploma.pdf",
	ContentType: "application/pdf",
	Data:        []byte("%PDF-1.4\nhello\n%%EOF"),
}

type seen struct {
	auth    string
	address string
}

func newStub(t *testing.T) (*httptest.Server, *seen) {
	t.Helper()
	got := &seen{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok", "network": "preprod", "wallet_connected": true})
	})
	mux.HandleFunc("POST /v1/verify", func(w http.ResponseWriter, r *http.Request) {
		got.auth = r.Header.Get("Authorization")
		got.address = r.FormValue("address")
		f, fh, err := r.FormFile("file")
		require.NoError(t, err)
		data, _ := io.ReadAll(f)
		assert.Equal(t, pdf.Data, data)
		assert.Equal(t, "application/pdf", fh.Header.Get("Content-Type"))
		_ = json.NewEncoder(w).Encode(certificate.Result{
			Valid:    true,
			Message:  "Certificate verified",
			FileName: fh.Filename,
			Scanned:  3,
		})
	})
	mux.HandleFunc("POST /v1/issue", func(w http.ResponseWriter, r *http.Request) {
		got.auth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/problem+json")
		w.WriteHeader(http.StatusPaymentRequired)
		_ = json.NewEncoder(w).Encode(api.ProblemDetail{
			Status: http.StatusPaymentRequired,
			Title:  "Payment Required",
			Detail: "Insufficient funds",
			Code:   "insufficient_funds",
			Step:   "none",
		})
	})
	mux.HandleFunc("PUT /v1/config", func(w http.ResponseWriter, r *http.Request) {
		var p api.ConfigPatch
		require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		require.NotNil(t, p.HistoryDepth)
		_ = json.NewEncoder(w).Encode(api.ConfigView{Network: "preview", HistoryDepth: *p.HistoryDepth})
	})
	mux.HandleFunc("GET /v1/config", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, got
}

func TestClient_HealthAndVerify(t *testing.T) {
	srv, got := newStub(t)
	c := New(srv.URL + "/")
	ctx := context.Background()

	h, err := c.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ok", h.Status)
	assert.True(t, h.WalletConnected)

	res, err := c.Verify(ctx, pdf, "addr_test1xyz")
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, "diploma.pdf", res.FileName)
	assert.Equal(t, 3, res.Scanned)
	assert.Equal(t, "addr_test1xyz", got.address)
	assert.Empty(t, got.auth)
}

func TestClient_ProblemDetailBecomesAPIError(t *testing.T) {
	srv, got := newStub(t)
	c := New(srv.URL, WithToken("tok"))

	_, err := c.Issue(context.Background(), pdf)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusPaymentRequired, apiErr.Status)
	assert.Equal(t, "insufficient_funds", apiErr.Code)
	assert.Equal(t, "none", apiErr.Step)
	assert.Contains(t, err.Error(), "Insufficient funds")
	assert.Equal(t, "Bearer tok", got.auth)
}

func TestClient_Config(t *testing.T) {
	srv, _ := newStub(t)
	c := New(srv.URL, WithToken("tok"))
	ctx := context.Background()

	depth := 25
	view, err := c.UpdateConfig(ctx, api.ConfigPatch{HistoryDepth: &depth})
	require.NoError(t, err)
	assert.Equal(t, 25, view.HistoryDepth)

	_, err = c.Config(ctx)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "Bad Gateway", apiErr.Title)
}
