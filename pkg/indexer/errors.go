package indexer

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrAddressFormat is returned when the indexer rejects an address query with HTTP 400.
var ErrAddressFormat = errors.New("indexer rejected the address format")

// APIError is a non-2xx indexer response.
type APIError struct {
	Status  int
	Method  string
	Path    string
	Message string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("indexer api %d %s %s: %s", e.Status, e.Method, e.Path, msg)
}

// Unauthorized reports a rejected or exhausted project key.
func (e *APIError) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

// TransportError wraps failures that never produced an HTTP response, including timeouts.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("indexer %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is an indexer 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

type errorBody struct {
	StatusCode int    `json:"status_code"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}
