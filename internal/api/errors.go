package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound is returned for 404 responses.
var ErrNotFound = errors.New("not found")

// RemoteError is a non-success response from the admin API. Message is the
// server's own text and is meant to be shown to the user as-is.
type RemoteError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	return e.Message
}

// Detail includes the request line and status for logs.
func (e *RemoteError) Detail() string {
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

func (e *RemoteError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}
