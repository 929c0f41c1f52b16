package mutation

import (
	"errors"
	"fmt"

	"github.com/joshuadavidthomas/aikeys/internal/models"
)

var (
	// ErrUnresolvableProvider means the frontend id has no backend mapping.
	ErrUnresolvableProvider = errors.New("provider not resolvable")
	// ErrMissingBackendID means a shared-scope toggle was asked for a
	// provider the backend has no row for.
	ErrMissingBackendID = errors.New("provider has no backend id")
	// ErrSharedNotPermitted means the viewer may not use or change the
	// shared credential of the provider.
	ErrSharedNotPermitted = errors.New("shared key not permitted")
	// ErrSuperseded is returned to a queued request that a newer request of
	// the same kind replaced before it was sent. It is not a failure.
	ErrSuperseded = errors.New("superseded by a newer request")
)

// ProviderError is a local error raised before any request is sent.
type ProviderError struct {
	ProviderID string
	Scope      models.Scope
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Scope != "" {
		return fmt.Sprintf("%s (%s): %v", e.ProviderID, e.Scope, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.ProviderID, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Kind names the error class for logs and metrics.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrSuperseded):
		return "superseded"
	case errors.Is(err, ErrUnresolvableProvider):
		return "unresolvable_provider"
	case errors.Is(err, ErrMissingBackendID):
		return "missing_backend_id"
	case errors.Is(err, ErrSharedNotPermitted):
		return "shared_not_permitted"
	default:
		return "remote_rejection"
	}
}

// IsLocal reports whether err was raised before any request was sent.
func IsLocal(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
