// Package oauth carries the protocol-level vocabulary of the server: the
// typed error taxonomy, client credential parsing, and redirect URI
// validation. It knows nothing about storage or HTTP frameworks.
package oauth

import (
	"errors"
	"net/http"
)

// Error is a protocol error as defined by the OAuth 2.0 specification.
// It carries the machine-readable error code sent to clients, a human
// description, and the HTTP status the error maps to at the outermost
// boundary. Services return these as ordinary error values; only the
// handler layer turns them into responses.
type Error struct {
	Code        string
	Description string
	Status      int
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Description
}

// Is lets errors.Is match any error against the taxonomy by code, so
// services can wrap an Error with fmt.Errorf("%w: ...") detail.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrInvalidRequest = &Error{
		Code:        "invalid_request",
		Description: "The request is missing a required parameter or is otherwise malformed.",
		Status:      http.StatusBadRequest,
	}
	ErrInvalidClient = &Error{
		Code:        "invalid_client",
		Description: "Client ID and client secret do not match.",
		Status:      http.StatusBadRequest,
	}
	ErrInvalidGrant = &Error{
		Code:        "invalid_grant",
		Description: "This access grant is no longer valid.",
		Status:      http.StatusBadRequest,
	}
	ErrInvalidScope = &Error{
		Code:        "invalid_scope",
		Description: "The requested scope is not supported.",
		Status:      http.StatusBadRequest,
	}
	ErrInvalidToken = &Error{
		Code:        "invalid_token",
		Description: "The access token is no longer valid.",
		Status:      http.StatusUnauthorized,
	}
	ErrExpiredToken = &Error{
		Code:        "expired_token",
		Description: "The access token has expired.",
		Status:      http.StatusUnauthorized,
	}
	ErrUnauthorizedClient = &Error{
		Code:        "unauthorized_client",
		Description: "You are not allowed to access this resource.",
		Status:      http.StatusForbidden,
	}
	ErrUnsupportedGrantType = &Error{
		Code:        "unsupported_grant_type",
		Description: "This access grant type is not supported by this server.",
		Status:      http.StatusBadRequest,
	}
	ErrUnsupportedResponseType = &Error{
		Code:        "unsupported_response_type",
		Description: "The requested response type is not supported.",
		Status:      http.StatusBadRequest,
	}
	ErrRedirectURIMismatch = &Error{
		Code:        "redirect_uri_mismatch",
		Description: "Must use the same redirect URI you registered with us.",
		Status:      http.StatusBadRequest,
	}
	ErrAccessDenied = &Error{
		Code:        "access_denied",
		Description: "The resource owner denied the request.",
		Status:      http.StatusForbidden,
	}
)

// BadRequest returns an invalid_request error with a specific description.
func BadRequest(description string) *Error {
	return &Error{
		Code:        ErrInvalidRequest.Code,
		Description: description,
		Status:      http.StatusBadRequest,
	}
}

// AsError extracts the protocol error from err, or nil if err is an
// infrastructure failure that should surface as a 5xx.
func AsError(err error) *Error {
	var perr *Error
	if errors.As(err, &perr) {
		return perr
	}
	return nil
}
