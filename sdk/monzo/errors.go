package monzo

import (
	"errors"
	"fmt"
	"net/http"
)

// AuthError represents a failure of the browser login flow.
type AuthError struct {
	// Type identifies the stage of the flow that failed.
	Type string `json:"type"`
	// Message is a human-readable description of the error.
	Message string `json:"message"`
	// Cause is the underlying error, when one exists.
	Cause error `json:"-"`
}

// Error returns a string representation of the authentication error.
func (e *AuthError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is and errors.As.
func (e *AuthError) Unwrap() error {
	return e.Cause
}

// Is matches authentication errors by Type, so errors.Is works against the
// package sentinels regardless of an attached cause.
func (e *AuthError) Is(target error) bool {
	var other *AuthError
	if !errors.As(target, &other) {
		return false
	}
	return other.Type == e.Type
}

// Common authentication error sentinels.
var (
	// ErrLoginAborted is returned when the login was cancelled before the
	// OAuth callback arrived.
	ErrLoginAborted = &AuthError{
		Type:    "login_aborted",
		Message: "Login was cancelled before the callback arrived",
	}

	// ErrStateMismatch is returned when the state parameter on the callback
	// is missing, duplicated or different from the one this attempt issued.
	ErrStateMismatch = &AuthError{
		Type:    "state_mismatch",
		Message: "OAuth state parameter did not match",
	}

	// ErrInvalidCallback is returned when the callback carried malformed or
	// incomplete parameters.
	ErrInvalidCallback = &AuthError{
		Type:    "invalid_callback",
		Message: "OAuth callback parameters were invalid",
	}

	// ErrTokenExchange is returned when swapping the authorization code for
	// an access token fails.
	ErrTokenExchange = &AuthError{
		Type:    "token_exchange_failed",
		Message: "Failed to exchange authorization code for an access token",
	}

	// ErrCallbackServer is returned when the local callback listener could
	// not be started or failed while waiting.
	ErrCallbackServer = &AuthError{
		Type:    "callback_server_failed",
		Message: "OAuth callback listener failed",
	}
)

// NewAuthError derives an authentication error from one of the sentinels,
// attaching the underlying cause.
func NewAuthError(base *AuthError, cause error) *AuthError {
	return &AuthError{
		Type:    base.Type,
		Message: base.Message,
		Cause:   cause,
	}
}

// IsAuthError reports whether err is an authentication error.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// APIErrorKind classifies API errors by the HTTP status that produced them.
type APIErrorKind string

// API error kinds, one per status code the API documents.
const (
	APIErrorBadRequest     APIErrorKind = "bad_request"
	APIErrorUnauthorized   APIErrorKind = "unauthorized"
	APIErrorForbidden      APIErrorKind = "forbidden"
	APIErrorNotFound       APIErrorKind = "not_found"
	APIErrorNotAllowed     APIErrorKind = "method_not_allowed"
	APIErrorNotAcceptable  APIErrorKind = "not_acceptable"
	APIErrorRateLimited    APIErrorKind = "too_many_requests"
	APIErrorInternalServer APIErrorKind = "internal_server_error"
	APIErrorGatewayTimeout APIErrorKind = "gateway_timeout"
	APIErrorGeneric        APIErrorKind = "api_error"
)

// apiErrorKinds maps the status codes the API documents to their kinds.
// Every other non-2xx status becomes APIErrorGeneric.
var apiErrorKinds = map[int]APIErrorKind{
	http.StatusBadRequest:          APIErrorBadRequest,
	http.StatusUnauthorized:        APIErrorUnauthorized,
	http.StatusForbidden:           APIErrorForbidden,
	http.StatusNotFound:            APIErrorNotFound,
	http.StatusMethodNotAllowed:    APIErrorNotAllowed,
	http.StatusNotAcceptable:       APIErrorNotAcceptable,
	http.StatusTooManyRequests:     APIErrorRateLimited,
	http.StatusInternalServerError: APIErrorInternalServer,
	http.StatusGatewayTimeout:      APIErrorGatewayTimeout,
}

// APIError represents a non-2xx response from the API.
type APIError struct {
	// StatusCode is the HTTP status the API responded with.
	StatusCode int `json:"status_code"`
	// Kind classifies the status code.
	Kind APIErrorKind `json:"kind"`
	// Body is the raw response body, useful for diagnostics.
	Body string `json:"body"`
}

// Error returns a string representation of the API error.
func (e *APIError) Error() string {
	return fmt.Sprintf("error fetching request: (%d): %s", e.StatusCode, e.Body)
}

// newAPIError maps a response status and body onto the error taxonomy.
func newAPIError(statusCode int, body []byte) *APIError {
	kind, ok := apiErrorKinds[statusCode]
	if !ok {
		kind = APIErrorGeneric
	}
	return &APIError{
		StatusCode: statusCode,
		Kind:       kind,
		Body:       string(body),
	}
}

// IsAPIError reports whether err is an API error, returning it when so.
func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}
