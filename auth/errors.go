package auth

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrMissingConsumerKeys is returned before any network call when a consumer key is blank.
	ErrMissingConsumerKeys = errors.New("consumer keys are required before authenticating")
	// ErrAuthorizationDenied means the user declined access at the provider.
	ErrAuthorizationDenied = errors.New("authorization was denied by the user")
	// ErrUnauthorized is returned when the profile endpoint answers 401.
	ErrUnauthorized = errors.New("access token was rejected by Telldus Live")
	// ErrMissingVerifier means the manual input carried no verifier value.
	ErrMissingVerifier = errors.New("authorization code or redirect URL is required")
	// ErrVerifierNotFound means a pasted URL had no oauth_verifier parameter.
	ErrVerifierNotFound = errors.New("redirect URL missing oauth_verifier parameter")
)

// VerificationFailedError carries a non-success status or oauth_problem reported by the provider.
type VerificationFailedError struct {
	Reason string
}

func (e *VerificationFailedError) Error() string {
	return fmt.Sprintf("Telldus Live rejected the request with status %s", e.Reason)
}

// MissingFieldError is returned when a token response lacks a required field.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("OAuth response missing field %q", e.Field)
}

// HTTPStatusError describes a non-2xx response.
type HTTPStatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s failed with status %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s failed with status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// ResponseParseError wraps a failure to decode a URL-encoded token response.
type ResponseParseError struct {
	Err error
}

func (e *ResponseParseError) Error() string {
	return fmt.Sprintf("failed to parse OAuth response: %v", e.Err)
}

func (e *ResponseParseError) Unwrap() error { return e.Err }

// ListenerError is a failure of the local callback listener.
type ListenerError struct {
	Op  string
	Err error
}

func (e *ListenerError) Error() string {
	return fmt.Sprintf("callback listener %s: %v", e.Op, e.Err)
}

func (e *ListenerError) Unwrap() error { return e.Err }
