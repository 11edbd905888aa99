// Package api exposes the intelligence store over two read-only surfaces:
// a JSON HTTP API and an MCP server. Neither surface mutates facts; all
// writes go through the extraction pipeline.
package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"scout/internal/storage"
)

// AppDeps holds dependencies for the HTTP API. An empty Token disables
// authentication, which is the expected mode for local single-user runs.
type AppDeps struct {
	Store *storage.Store
	Token string
}

// NewAppHandler returns the read-only HTTP API.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()
	if deps.Token != "" {
		r.Use(bearerAuth(deps.Token))
	}

	r.Get("/health", handleHealth(deps))
	r.Get("/companies", handleListCompanies(deps))
	r.Get("/companies/{id}", handleGetCompany(deps))
	r.Get("/companies/{id}/people", handleListPeople(deps))
	r.Get("/companies/{id}/events", handleListEvents(deps))
	r.Get("/companies/{id}/changes", handleListChanges(deps))
	r.Get("/evidence", handleListEvidence(deps))

	return r
}

func bearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(auth, prefix) || subtle.ConstantTimeCompare([]byte(auth[len(prefix):]), []byte(token)) != 1 {
				httpError(w, http.StatusUnauthorized, "authentication_error", "invalid or missing bearer token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func handleHealth(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Store.DB().PingContext(r.Context()); err != nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "storage unavailable: %v", err)
			return
		}
		writeJSON(w, map[string]string{"status": "ok"})
	}
}

func handleListCompanies(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 50, 500)

		companies, err := deps.Store.ListCompanies(r.Context(), limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list companies: %v", err)
			return
		}
		if companies == nil {
			companies = []storage.Company{}
		}
		writeJSON(w, companies)
	}
}

func handleGetCompany(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		company, err := deps.Store.GetCompany(r.Context(), id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "company not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get company: %v", err)
			return
		}
		writeJSON(w, company)
	}
}

func handleListPeople(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		people, err := deps.Store.ListPeople(r.Context(), id)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list people: %v", err)
			return
		}
		if people == nil {
			people = []storage.Person{}
		}
		writeJSON(w, people)
	}
}

func handleListEvents(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		events, err := deps.Store.ListEvents(r.Context(), id)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list events: %v", err)
			return
		}
		if events == nil {
			events = []storage.Event{}
		}
		writeJSON(w, events)
	}
}

func handleListChanges(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		limit := parseIntParam(r, "limit", 50, 500)

		changes, err := deps.Store.ListChanges(r.Context(), id, limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list changes: %v", err)
			return
		}
		if changes == nil {
			changes = []storage.Change{}
		}
		writeJSON(w, changes)
	}
}

func handleListEvidence(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		objectType := r.URL.Query().Get("object_type")
		objectID := r.URL.Query().Get("object_id")
		if objectType == "" || objectID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "object_type and object_id are required")
			return
		}
		if objectType != "person" && objectType != "event" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "object_type must be person or event")
			return
		}
		limit := parseIntParam(r, "limit", 20, 100)

		evidence, err := deps.Store.ListEvidence(r.Context(), objectType, objectID, limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list evidence: %v", err)
			return
		}
		if evidence == nil {
			evidence = []storage.Evidence{}
		}
		writeJSON(w, evidence)
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
