// Package fault defines the error kinds surfaced by the pipeline. Handlers
// collapse them to generic responses for end users, but the kind survives
// wrapping so logs can tell a quota failure from a bad upload.
package fault

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks missing or malformed required input, detected
	// before any collaborator is called.
	ErrValidation = errors.New("invalid input")

	// ErrFormat marks an uploaded document that could not be parsed.
	ErrFormat = errors.New("unparseable document")

	// ErrProvider marks an embedding or completion failure: auth, quota,
	// network, timeout.
	ErrProvider = errors.New("provider failure")

	// ErrStorage marks a document store failure.
	ErrStorage = errors.New("storage failure")

	// ErrUnauthorized marks a request with no valid caller identity.
	ErrUnauthorized = errors.New("unauthorized")
)

// Wrap tags err with a kind so callers can match it with errors.Is.
// Returns nil if err is nil.
func Wrap(kind, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", kind, err)
}

// Kind names the taxonomy bucket of err for structured logging.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrFormat):
		return "format"
	case errors.Is(err, ErrProvider):
		return "provider"
	case errors.Is(err, ErrStorage):
		return "storage"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	default:
		return "internal"
	}
}
