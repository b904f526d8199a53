// Package api provides HTTP handlers for the study planner API.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ashureev/studyplan/internal/auth"
	"github.com/ashureev/studyplan/internal/domain"
	"github.com/ashureev/studyplan/internal/identity"
	"github.com/ashureev/studyplan/internal/planner"
	"github.com/ashureev/studyplan/internal/store"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// MaxRequestBodySize bounds JSON request bodies (1MB).
const MaxRequestBodySize = 1 << 20

// ErrBodyTooLarge is returned by Decode when the body exceeds MaxRequestBodySize.
var ErrBodyTooLarge = errors.New("request body too large")

// Handler serves the account and study-data routes.
type Handler struct {
	repo     store.Repository
	auth     *auth.Service
	matcher  *planner.Matcher
	guard    *identity.Guard
	onLogout func(token string)
}

// NewHandler creates a Handler. onLogout, if not nil, runs after a session is
// revoked so long-lived connections bound to the token can be closed.
func NewHandler(repo store.Repository, authSvc *auth.Service, matcher *planner.Matcher, guard *identity.Guard, onLogout func(token string)) *Handler {
	if onLogout == nil {
		onLogout = func(string) {}
	}
	return &Handler{
		repo:     repo,
		auth:     authSvc,
		matcher:  matcher,
		guard:    guard,
		onLogout: onLogout,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode response", "error", err)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// WriteError maps err onto a status code and writes it as a JSON error.
// Errors outside the domain taxonomy are logged and reported generically.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ext *domain.ExternalServiceError
		mal *domain.MalformedSuggestionsError
	)
	switch {
	case errors.Is(err, ErrBodyTooLarge):
		Error(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, domain.ErrValidation):
		Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInvalidCredentials):
		Error(w, http.StatusUnauthorized, domain.ErrInvalidCredentials.Error())
	case errors.Is(err, domain.ErrUnauthenticated):
		Error(w, http.StatusUnauthorized, domain.ErrUnauthenticated.Error())
	case errors.Is(err, domain.ErrInsufficientRole):
		Error(w, http.StatusForbidden, domain.ErrInsufficientRole.Error())
	case errors.Is(err, domain.ErrSelfActionForbidden):
		Error(w, http.StatusForbidden, domain.ErrSelfActionForbidden.Error())
	case errors.Is(err, domain.ErrNotFound):
		Error(w, http.StatusNotFound, domain.ErrNotFound.Error())
	case errors.Is(err, domain.ErrConflict):
		Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrNotConfigured):
		Error(w, http.StatusPreconditionFailed, "请先配置 AI API")
	case errors.As(err, &mal):
		JSON(w, http.StatusBadGateway, map[string]string{"error": mal.Error(), "raw": mal.Raw})
	case errors.As(err, &ext):
		Error(w, http.StatusBadGateway, ext.Error())
	default:
		slog.Error("Request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", chiMiddleware.GetReqID(r.Context()),
			"error", err,
		)
		Error(w, http.StatusInternalServerError, "internal server error")
	}
}

// Decode reads a JSON body of at most MaxRequestBodySize bytes into v.
func Decode(w http.ResponseWriter, r *http.Request, v any) error {
	return decode(w, r, v, false)
}

// decodeOptional is Decode for endpoints whose body may be omitted.
func decodeOptional(w http.ResponseWriter, r *http.Request, v any) error {
	return decode(w, r, v, true)
}

func decode(w http.ResponseWriter, r *http.Request, v any, optional bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return ErrBodyTooLarge
		case errors.Is(err, io.EOF):
			if optional {
				return nil
			}
			return domain.NewValidationError("body", "request body is empty")
		default:
			return domain.NewValidationError("body", "invalid JSON: "+err.Error())
		}
	}
	return nil
}

// IDParam parses the integer URL parameter name.
func IDParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.NewValidationError(name, "must be a positive integer")
	}
	return id, nil
}

// limitParam parses an optional positive ?limit= value, capped at ceiling.
func limitParam(r *http.Request, def, ceiling int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, domain.NewValidationError("limit", "must be a positive integer")
	}
	if n > ceiling {
		n = ceiling
	}
	return n, nil
}
