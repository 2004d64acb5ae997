package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/chaitanya1-coder/docufy/pkg/certificate"
	"github.com/chaitanya1-coder/docufy/pkg/config"
	"github.com/chaitanya1-coder/docufy/pkg/observability"
	"github.com/chaitanya1-coder/docufy/pkg/wallet"
)

const (
	multipartMemory = 32 << 20
	// A little over the file ceiling leaves room for the other form fields.
	maxBodyBytes = certificate.MaxFileSize + 1<<20
)

// Server exposes issue, verify and the configuration slot.
type Server struct {
	holder    *config.Holder
	svc       *certificate.Service
	wallet    wallet.Handle
	auth      *Authenticator
	limiter   *IPRateLimiter
	telemetry *observability.Provider
	logger    *slog.Logger
}

type ServerOption func(*Server)

// WithWallet sets the server-side wallet used by /v1/issue.
func WithWallet(h wallet.Handle) ServerOption {
	return func(s *Server) { s.wallet = h }
}

func WithAuthenticator(a *Authenticator) ServerOption {
	return func(s *Server) { s.auth = a }
}

func WithRateLimiter(l *IPRateLimiter) ServerOption {
	return func(s *Server) { s.limiter = l }
}

func WithTelemetry(p *observability.Provider) ServerOption {
	return func(s *Server) { s.telemetry = p }
}

func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewServer(holder *config.Holder, svc *certificate.Service, opts ...ServerOption) *Server {
	s := &Server{
		holder: holder,
		svc:    svc,
		logger: slog.Default().With("component", "api"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler returns the routed handler with the middleware chain applied.
// /v1/issue and /v1/config need a bearer token.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /v1/hash", s.handleHash)
	mux.HandleFunc("POST /v1/verify", s.handleVerify)
	mux.Handle("POST /v1/issue", s.auth.Require(http.HandlerFunc(s.handleIssue)))
	mux.Handle("GET /v1/config", s.auth.Require(http.HandlerFunc(s.handleGetConfig)))
	mux.Handle("PUT /v1/config", s.auth.Require(http.HandlerFunc(s.handlePutConfig)))

	var h http.Handler = mux
	if s.limiter != nil {
		h = s.limiter.Middleware(h)
	}
	if s.telemetry != nil {
		h = s.telemetry.HTTPMiddleware(h)
	}
	return RequestID(h)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	cfg := s.holder.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":             "ok",
		"network":            cfg.Network,
		"api_key_configured": cfg.CheckAPIKey() == nil,
		"wallet_connected":   s.wallet != nil,
	})
}

// readFile pulls the "file" part of a multipart upload. Oversize uploads
// are read one byte past the ceiling so validation reports them.
func readFile(w http.ResponseWriter, r *http.Request) (certificate.File, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return certificate.File{}, err
	}
	part, fh, err := r.FormFile("file")
	if err != nil {
		return certificate.File{}, err
	}
	defer func() { _ = part.Close() }()

	data, err := io.ReadAll(io.LimitReader(part, certificate.MaxFileSize+1))
	if err != nil {
		return certificate.File{}, err
	}
	return certificate.File{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func (s *Server) uploadError(w http.ResponseWriter, r *http.Request, err error) {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		WriteError(w, r, http.StatusRequestEntityTooLarge, "File size must be less than 10MB")
		return
	}
	WriteBadRequest(w, r, "Expected a multipart form with a \"file\" field")
}

func (s *Server) handleHash(w http.ResponseWriter, r *http.Request) {
	f, err := readFile(w, r)
	if err != nil {
		s.uploadError(w, r, err)
		return
	}
	d, err := certificate.Hash(f)
	if err != nil {
		WriteCertificateError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"certificate_hash": d.String(),
		"file_name":        f.Name,
		"size":             len(f.Data),
	})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	f, err := readFile(w, r)
	if err != nil {
		s.uploadError(w, r, err)
		return
	}
	res, err := s.svc.Verify(r.Context(), s.holder.Snapshot(), f, r.FormValue("address"))
	if err != nil {
		WriteCertificateError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleIssue(w http.ResponseWriter, r *http.Request) {
	f, err := readFile(w, r)
	if err != nil {
		s.uploadError(w, r, err)
		return
	}
	// A signed transaction may already be on the wire; finish even if the
	// client goes away.
	iss, err := s.svc.Issue(context.WithoutCancel(r.Context()), s.holder.Snapshot(), f, s.wallet)
	if err != nil {
		WriteCertificateError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, iss)
}

// ConfigView is the configuration as clients see it; the key is masked.
type ConfigView struct {
	Network          config.Network `json:"network"`
	NetworkName      string         `json:"network_name"`
	IndexerURL       string         `json:"indexer_url"`
	APIKey           string         `json:"api_key"`
	APIKeyConfigured bool           `json:"api_key_configured"`
	HistoryDepth     int            `json:"history_depth"`
	ProbeAPIKey      bool           `json:"probe_api_key"`
	SubmitVia        string         `json:"submit_via"`
	RequestTimeout   string         `json:"request_timeout"`
}

func viewOf(cfg config.Config) ConfigView {
	return ConfigView{
		Network:          cfg.Network,
		NetworkName:      cfg.Network.DisplayName(),
		IndexerURL:       cfg.BaseURL(),
		APIKey:           cfg.MaskedAPIKey(),
		APIKeyConfigured: cfg.CheckAPIKey() == nil,
		HistoryDepth:     cfg.Depth(),
		ProbeAPIKey:      cfg.ProbeAPIKey,
		SubmitVia:        cfg.SubmitVia,
		RequestTimeout:   cfg.Timeout().String(),
	}
}

// ConfigPatch updates the fields that are set.
type ConfigPatch struct {
	IndexerAPIKey  *string `json:"indexer_api_key"`
	Network        *string `json:"network"`
	IndexerURL     *string `json:"indexer_url"`
	HistoryDepth   *int    `json:"history_depth"`
	ProbeAPIKey    *bool   `json:"probe_api_key"`
	SubmitVia      *string `json:"submit_via"`
	RequestTimeout *string `json:"request_timeout"`
}

func (s *Server) handleGetConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, viewOf(s.holder.Snapshot()))
}

func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var p ConfigPatch
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		WriteBadRequest(w, r, "Invalid request body")
		return
	}

	var timeout time.Duration
	if p.RequestTimeout != nil {
		d, err := time.ParseDuration(*p.RequestTimeout)
		if err != nil {
			WriteBadRequest(w, r, "request_timeout must be a duration such as 30s")
			return
		}
		timeout = d
	}
	var network config.Network
	if p.Network != nil {
		n, err := config.ParseNetwork(*p.Network)
		if err != nil {
			WriteBadRequest(w, r, err.Error())
			return
		}
		network = n
	}

	cfg, err := s.holder.Update(func(c *config.Config) {
		if p.IndexerAPIKey != nil {
			c.IndexerAPIKey = *p.IndexerAPIKey
		}
		if p.Network != nil {
			c.Network = network
		}
		if p.IndexerURL != nil {
			c.IndexerURL = *p.IndexerURL
		}
		if p.HistoryDepth != nil {
			c.HistoryDepth = *p.HistoryDepth
		}
		if p.ProbeAPIKey != nil {
			c.ProbeAPIKey = *p.ProbeAPIKey
		}
		if p.SubmitVia != nil {
			c.SubmitVia = *p.SubmitVia
		}
		if p.RequestTimeout != nil {
			c.RequestTimeout = timeout
		}
	})
	if err != nil {
		WriteBadRequest(w, r, err.Error())
		return
	}
	s.logger.Info("configuration updated", "network", cfg.Network, "api_key", cfg.MaskedAPIKey())
	writeJSON(w, http.StatusOK, viewOf(cfg))
}
