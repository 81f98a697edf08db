// ABOUTME: Error taxonomy for dispatched actions and its HTTP status mapping
// ABOUTME: Classifies adapter and resolver errors into the kinds reported to callers

package bridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/2389/hubspot-gateway/internal/credential"
	"github.com/2389/hubspot-gateway/internal/crm"
)

// Kind names an error class reported in error envelopes.
type Kind string

const (
	KindMissingCredential Kind = "MissingCredential"
	KindUnknownAction     Kind = "UnknownAction"
	KindNotFound          Kind = "NotFound"
	KindProvider          Kind = "ProviderError"
	KindMalformedRequest  Kind = "MalformedRequest"
	KindInternal          Kind = "Internal"
)

// HTTPStatus maps a kind to the status code returned by the HTTP front end.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindMissingCredential, KindUnknownAction, KindMalformedRequest:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindProvider:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified action failure.
type Error struct {
	Kind    Kind
	Message string
	// UpstreamStatus is the provider's HTTP status for KindProvider, 0 otherwise.
	UpstreamStatus int
	Err            error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// classify converts any error from the resolver, validation or an adapter into an *Error.
func classify(err error) *Error {
	var be *Error
	if errors.As(err, &be) {
		return be
	}

	var pe *crm.ProviderError
	switch {
	case errors.Is(err, credential.ErrMissingCredential):
		return &Error{
			Kind:    KindMissingCredential,
			Message: "access token required: send the " + credential.HeaderName + " header or an accessToken field",
			Err:     err,
		}
	case errors.Is(err, crm.ErrNotFound):
		return &Error{Kind: KindNotFound, Message: err.Error(), Err: err}
	case errors.As(err, &pe):
		return &Error{Kind: KindProvider, Message: pe.Error(), UpstreamStatus: pe.StatusCode, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindProvider, Message: "crm provider call timed out", Err: err}
	default:
		return &Error{Kind: KindInternal, Message: err.Error(), Err: err}
	}
}
