package httpclient

import (
	"net/http"

	"github.com/google/uuid"
)

// WithHeader sets a request header.
func WithHeader(key, value string) RequestOption {
	return func(r *http.Request) {
		r.Header.Set(key, value)
	}
}

// WithBearer sets the Authorization header to "Bearer <token>". An empty
// token leaves the header unset.
func WithBearer(token string) RequestOption {
	return func(r *http.Request) {
		if token == "" {
			return
		}
		r.Header.Set("Authorization", "Bearer "+token)
	}
}

// WithRequestID tags the request with a fresh X-Request-ID unless one is
// already set.
func WithRequestID() RequestOption {
	return func(r *http.Request) {
		if r.Header.Get("X-Request-ID") != "" {
			return
		}
		r.Header.Set("X-Request-ID", uuid.NewString())
	}
}
