package core

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidCredential is returned when a platform rejects a workspace's API key
	ErrInvalidCredential = errors.New("invalid workspace credential")
	// ErrRateLimited is returned when a platform or model throttles a request
	ErrRateLimited = errors.New("rate limited")
	// ErrQuotaExhausted is returned when the classification service has no quota left
	ErrQuotaExhausted = errors.New("classification quota exhausted")
	// ErrMalformedResponse is returned when model output cannot be parsed
	ErrMalformedResponse = errors.New("malformed classifier response")
	// ErrNotFound is returned when a contact or campaign does not exist
	ErrNotFound = errors.New("not found")
	// ErrCampaignLookup is returned when campaign context cannot be resolved
	ErrCampaignLookup = errors.New("campaign lookup failed")
	// ErrInvalidWindow is returned for an unusable date window
	ErrInvalidWindow = errors.New("invalid date window")
	// ErrListTruncated is returned when a listing hits its page limit before the end
	ErrListTruncated = errors.New("listing truncated at page limit")
)

// TransientError wraps an error that is worth retrying
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transient error (HTTP %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transient error: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err should be retried
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, ErrInvalidCredential) {
		return false
	}
	var te *TransientError
	return errors.As(err, &te) || errors.Is(err, ErrRateLimited)
}

// IsTransientHTTPStatus reports whether an HTTP status code is retryable
func IsTransientHTTPStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
