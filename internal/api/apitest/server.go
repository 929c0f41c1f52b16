package apitest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/joshuadavidthomas/aikeys/internal/api"
)

// Token is the bearer token NewServer accepts.
const Token = "test-token"

// NewServer serves f over HTTP under /api/ai and closes the server when the
// test ends. Requests without "Bearer Token" get a 401.
func NewServer(t testing.TB, f *Fake) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/ai/providers", func(w http.ResponseWriter, r *http.Request) {
		recs, err := f.ListProviders(r.Context())
		reply(w, recs, err)
	})
	mux.HandleFunc("GET /api/ai/personal-settings/mine", func(w http.ResponseWriter, r *http.Request) {
		recs, err := f.ListMySettings(r.Context())
		reply(w, map[string]any{"results": recs}, err)
	})
	mux.HandleFunc("GET /api/ai/models", func(w http.ResponseWriter, r *http.Request) {
		recs, err := f.ListModels(r.Context())
		reply(w, recs, err)
	})
	mux.HandleFunc("POST /api/ai/personal-settings", func(w http.ResponseWriter, r *http.Request) {
		var p api.PersonalSettingPayload
		if !decode(w, r, &p) {
			return
		}
		rec, err := f.SavePersonalSetting(r.Context(), p)
		reply(w, rec, err)
	})
	mux.HandleFunc("PATCH /api/ai/personal-settings/{id}", func(w http.ResponseWriter, r *http.Request) {
		var p api.PersonalSettingPayload
		id, ok := pathID(w, r)
		if !ok || !decode(w, r, &p) {
			return
		}
		p.ID = &id
		rec, err := f.SavePersonalSetting(r.Context(), p)
		reply(w, rec, err)
	})
	mux.HandleFunc("POST /api/ai/providers", func(w http.ResponseWriter, r *http.Request) {
		var p api.SharedKeyPayload
		if !decode(w, r, &p) {
			return
		}
		rec, err := f.SaveSharedKey(r.Context(), nil, p)
		reply(w, rec, err)
	})
	mux.HandleFunc("PATCH /api/ai/providers/{id}", func(w http.ResponseWriter, r *http.Request) {
		var p api.SharedKeyPayload
		id, ok := pathID(w, r)
		if !ok || !decode(w, r, &p) {
			return
		}
		rec, err := f.SaveSharedKey(r.Context(), &id, p)
		reply(w, rec, err)
	})
	mux.HandleFunc("PATCH /api/ai/providers/{id}/toggle", func(w http.ResponseWriter, r *http.Request) {
		var p struct {
			IsActive bool `json:"is_active"`
		}
		id, ok := pathID(w, r)
		if !ok || !decode(w, r, &p) {
			return
		}
		reply(w, map[string]bool{"is_active": p.IsActive}, f.ToggleProvider(r.Context(), id, p.IsActive))
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+Token {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Authentication credentials were not provided."})
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// BaseURL is the API root of srv.
func BaseURL(srv *httptest.Server) string {
	return srv.URL + "/api/ai"
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Invalid id."})
		return 0, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Malformed JSON: " + err.Error()})
		return false
	}
	return true
}

func reply(w http.ResponseWriter, body any, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, body)
		return
	}
	var re *api.RemoteError
	if errors.As(err, &re) {
		status := re.StatusCode
		if status == 0 {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, map[string]string{"detail": re.Message})
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": strings.TrimSpace(err.Error())})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
