// Package api serves the certificate operations over HTTP for the
// presentation layer.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/chaitanya1-coder/docufy/pkg/certificate"
)

// ProblemDetail is an RFC 7807 error body. Code carries the certificate
// error class so clients can branch without parsing Detail.
type ProblemDetail struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	TraceID  string `json:"trace_id,omitempty"`
	Code     string `json:"code,omitempty"`
	Step     string `json:"step,omitempty"`
}

func (p *ProblemDetail) Error() string {
	return fmt.Sprintf("%s: %s", p.Title, p.Detail)
}

func writeProblem(w http.ResponseWriter, r *http.Request, p *ProblemDetail) {
	p.Type = fmt.Sprintf("https://docufy.app/errors/%d", p.Status)
	if p.Title == "" {
		p.Title = http.StatusText(p.Status)
	}
	if r != nil {
		p.Instance = r.URL.Path
	}
	p.TraceID = w.Header().Get("X-Request-ID")

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// WriteError writes a problem document for status.
func WriteError(w http.ResponseWriter, r *http.Request, status int, detail string) {
	writeProblem(w, r, &ProblemDetail{Status: status, Detail: detail})
}

func WriteBadRequest(w http.ResponseWriter, r *http.Request, detail string) {
	WriteError(w, r, http.StatusBadRequest, detail)
}

func WriteUnauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	if detail == "" {
		detail = "Authentication required"
	}
	WriteError(w, r, http.StatusUnauthorized, detail)
}

func WriteTooManyRequests(w http.ResponseWriter, r *http.Request, retryAfterSecs int) {
	w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfterSecs))
	WriteError(w, r, http.StatusTooManyRequests, "Rate limit exceeded. Retry after the specified interval.")
}

// WriteInternal logs err and sends a generic 500.
func WriteInternal(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("internal server error", "error", err)
	WriteError(w, r, http.StatusInternalServerError, "An unexpected error occurred. Please try again later.")
}

var classes = []struct {
	class  error
	code   string
	status int
}{
	{certificate.ErrValidation, "validation", http.StatusUnprocessableEntity},
	{certificate.ErrConfiguration, "configuration", http.StatusPreconditionFailed},
	{certificate.ErrWalletUnavailable, "wallet_unavailable", http.StatusServiceUnavailable},
	{certificate.ErrInsufficientFunds, "insufficient_funds", http.StatusPaymentRequired},
	{certificate.ErrAddressFormat, "address_format", http.StatusBadRequest},
	{certificate.ErrIndexer, "indexer", http.StatusBadGateway},
	{certificate.ErrNetwork, "network", http.StatusGatewayTimeout},
	{certificate.ErrWalletSigning, "wallet_signing", http.StatusBadGateway},
}

// WriteCertificateError maps a certificate.Error onto a problem document.
// The user-facing message becomes Detail; the cause is only logged.
func WriteCertificateError(w http.ResponseWriter, r *http.Request, err error) {
	var ce *certificate.Error
	if !errors.As(err, &ce) {
		WriteInternal(w, r, err)
		return
	}
	p := &ProblemDetail{Status: http.StatusInternalServerError, Detail: ce.Message, Step: ce.Step}
	for _, c := range classes {
		if errors.Is(ce, c.class) {
			p.Status, p.Code = c.status, c.code
			break
		}
	}
	if ce.Err != nil {
		slog.Warn("certificate request failed", "code", p.Code, "step", ce.Step, "error", ce.Err)
	}
	writeProblem(w, r, p)
}
