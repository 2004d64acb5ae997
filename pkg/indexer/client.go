// Package indexer is a Blockfrost-compatible chain indexer client.
package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// MaxPageSize is the largest page the indexer serves.
	MaxPageSize = 100

	maxUTXOPages = 10
	maxErrorBody = 64 << 10
)

// Client talks to one indexer base URL with one project key.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    Limiter
	logger     *slog.Logger
	tracer     trace.Tracer
}

// Option configures the client.
type Option func(*Client)

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLimiter gates every request through l.
func WithLimiter(l Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTracer sets the span source.
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) {
		if t != nil {
			c.tracer = t
		}
	}
}

// New creates a client for baseURL authenticated with apiKey.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: slog.Default(),
		tracer: otel.Tracer("github.com/chaitanya1-coder/docufy/pkg/indexer"),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BaseURL returns the configured endpoint.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) do(ctx context.Context, method, path, contentType string, body []byte, out any) (err error) {
	ctx, span := c.tracer.Start(ctx, "indexer "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", routeOf(path)),
		))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &TransportError{Op: "rate limit", Err: err}
		}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("indexer: build request: %w", err)
	}
	req.Header.Set("project_id", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: method + " " + routeOf(path), Err: err}
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	c.logger.DebugContext(ctx, "indexer request",
		"method", method,
		"path", routeOf(path),
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Method: method, Path: routeOf(path)}
		var eb errorBody
		if raw, rerr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody)); rerr == nil {
			if json.Unmarshal(raw, &eb) == nil && eb.Message != "" {
				apiErr.Message = eb.Message
			} else {
				apiErr.Message = strings.TrimSpace(string(raw))
			}
		}
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportError{Op: "decode " + routeOf(path), Err: err}
	}
	return nil
}

// routeOf drops the query and identifiers so spans and logs never carry addresses.
func routeOf(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if i > 0 && len(p) > 20 {
			parts[i] = "{id}"
		}
	}
	return strings.Join(parts, "/")
}

// Probe issues the cheapest authenticated call to prove the key and endpoint work.
func (c *Client) Probe(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/network", "", nil, nil)
}

// NetworkInfo returns the /network summary.
func (c *Client) NetworkInfo(ctx context.Context) (*NetworkInfo, error) {
	var out NetworkInfo
	if err := c.do(ctx, http.MethodGet, "/network", "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddressTransactions lists up to count transactions touching addr, newest first.
// An unknown address yields an empty list; a malformed one yields ErrAddressFormat.
func (c *Client) AddressTransactions(ctx context.Context, addr string, count int) ([]TransactionSummary, error) {
	if count <= 0 || count > MaxPageSize {
		count = MaxPageSize
	}
	path := fmt.Sprintf("/addresses/%s/transactions?count=%d&order=desc", url.PathEscape(addr), count)
	var out []TransactionSummary
	err := c.do(ctx, http.MethodGet, path, "", nil, &out)
	switch {
	case err == nil:
		return out, nil
	case IsNotFound(err):
		return []TransactionSummary{}, nil
	default:
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest {
			return nil, fmt.Errorf("%w: %s", ErrAddressFormat, apiErr.Message)
		}
		return nil, err
	}
}

// TransactionMetadata returns the label map attached to txHash. The bool is
// false when the transaction carries no metadata.
func (c *Client) TransactionMetadata(ctx context.Context, txHash string) (Metadata, bool, error) {
	var entries []metadataEntry
	err := c.do(ctx, http.MethodGet, "/txs/"+url.PathEscape(txHash)+"/metadata", "", nil, &entries)
	if IsNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if len(entries) == 0 {
		return nil, false, nil
	}
	md := make(Metadata, len(entries))
	for _, e := range entries {
		md[e.Label] = e.JSONMetadata
	}
	return md, true, nil
}

// AddressUTXOs pages through every unspent output at addr.
func (c *Client) AddressUTXOs(ctx context.Context, addr string) ([]UTXO, error) {
	var all []UTXO
	for page := 1; page <= maxUTXOPages; page++ {
		path := fmt.Sprintf("/addresses/%s/utxos?count=%d&page=%d", url.PathEscape(addr), MaxPageSize, page)
		var batch []UTXO
		err := c.do(ctx, http.MethodGet, path, "", nil, &batch)
		if IsNotFound(err) {
			break
		}
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest {
				return nil, fmt.Errorf("%w: %s", ErrAddressFormat, apiErr.Message)
			}
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < MaxPageSize {
			break
		}
	}
	return all, nil
}

// LatestBlock returns the chain tip.
func (c *Client) LatestBlock(ctx context.Context) (*Block, error) {
	var out Block
	if err := c.do(ctx, http.MethodGet, "/blocks/latest", "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ProtocolParameters returns the current epoch's parameters.
func (c *Client) ProtocolParameters(ctx context.Context) (*ProtocolParameters, error) {
	var out ProtocolParameters
	if err := c.do(ctx, http.MethodGet, "/epochs/latest/parameters", "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitTx posts a signed transaction and returns its hash.
func (c *Client) SubmitTx(ctx context.Context, tx []byte) (string, error) {
	var id string
	if err := c.do(ctx, http.MethodPost, "/tx/submit", "application/cbor", tx, &id); err != nil {
		return "", err
	}
	return id, nil
}
