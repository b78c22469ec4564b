package talemate

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure classes backend clients distinguish.
// These can be checked with errors.Is().
var (
	// ErrPermissionDenied indicates the remote API rejected the request's
	// authorization (typically HTTP 403).
	ErrPermissionDenied = errors.New("talemate: permission denied by remote API")

	// ErrNotFound indicates the remote model or resource is missing
	// (typically HTTP 404).
	ErrNotFound = errors.New("talemate: remote model or resource not found")

	// ErrInvalidAPIKey indicates the API key is missing or unauthorized.
	ErrInvalidAPIKey = errors.New("talemate: invalid API key")

	// ErrEmptyResponse indicates the remote API answered without any choices.
	ErrEmptyResponse = errors.New("talemate: remote API returned no choices")

	// ErrGenerationFailed is the catch-all for network errors, malformed
	// responses, timeouts and other failures without a dedicated class.
	ErrGenerationFailed = errors.New("talemate: generation failed")
)

// ClientError is the error a backend client reports for a failed remote
// call. It carries the client type and, when available, the HTTP status so
// callers can branch without parsing log text.
type ClientError struct {
	ClientType string // registry tag of the client ("openai_compat", ...)
	StatusCode int    // HTTP status code, 0 when not applicable
	Message    string // message from the remote API or transport
	Err        error  // wrapped sentinel (ErrPermissionDenied, ...)
}

func (e *ClientError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("client '%s' error (status %d): %s", e.ClientType, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("client '%s' error: %s", e.ClientType, e.Message)
}

func (e *ClientError) Unwrap() error {
	return e.Err
}

// IsPermissionDenied checks whether an error is an authorization rejection.
func IsPermissionDenied(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrPermissionDenied) {
		return true
	}
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.StatusCode == 403
	}
	return false
}

// IsNotFound checks whether an error is a missing model or resource.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.StatusCode == 404
	}
	return false
}
