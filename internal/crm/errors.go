// ABOUTME: Error values surfaced by CRM adapters
// ABOUTME: ProviderError carries upstream status and message, never request credentials

package crm

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrUnsupported is returned when an adapter cannot serve an operation natively.
var ErrUnsupported = errors.New("operation not supported by adapter")

// ProviderError describes a failed call to the CRM provider: a non-2xx response or a
// transport failure (StatusCode 0).
type ProviderError struct {
	StatusCode    int
	Message       string
	Category      string
	CorrelationID string
	Err           error
}

func (e *ProviderError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("crm provider unreachable: %s", e.Message)
	}
	if e.Category != "" {
		return fmt.Sprintf("crm provider returned %d (%s): %s", e.StatusCode, e.Category, e.Message)
	}
	return fmt.Sprintf("crm provider returned %d: %s", e.StatusCode, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
