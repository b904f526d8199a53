// Package identity binds the authorization gate to HTTP requests.
package identity

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/ashureev/studyplan/internal/auth"
	"github.com/ashureev/studyplan/internal/domain"
	"github.com/go-chi/chi/v5"
)

const (
	SessionHeaderName = "X-Session-Token"
	TokenQueryParam   = "session_token"
	bearerPrefix      = "Bearer "
)

type contextKey int

const (
	principalKey contextKey = iota
	tokenKey
)

// Authorizer is satisfied by *auth.Gate.
type Authorizer interface {
	Authorize(ctx context.Context, token string, reqs ...auth.Requirement) (*domain.Principal, error)
}

// ErrorWriter renders a rejection.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// RouteRequirement derives a gate requirement from the request being served.
type RouteRequirement func(r *http.Request) (auth.Requirement, error)

// Role requires the caller to hold role.
func Role(role domain.Role) RouteRequirement {
	return func(*http.Request) (auth.Requirement, error) {
		return auth.RequireRole(role), nil
	}
}

// NotSelf rejects callers whose user id equals the URL parameter param.
func NotSelf(param string) RouteRequirement {
	return func(r *http.Request) (auth.Requirement, error) {
		target, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
		if err != nil {
			return nil, domain.NewValidationError(param, "must be an integer id")
		}
		return auth.ForbidSelf(target), nil
	}
}

// Guard authorizes requests through a single gate.
type Guard struct {
	gate    Authorizer
	onError ErrorWriter
}

// NewGuard creates a Guard. Rejections are rendered by onError.
func NewGuard(gate Authorizer, onError ErrorWriter) *Guard {
	return &Guard{gate: gate, onError: onError}
}

// Protect returns middleware that runs one Authorize call per request with the
// given requirements. The token is validated before any requirement is
// resolved. On success the principal and token are stored in the request
// context.
func (g *Guard) Protect(reqs ...RouteRequirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			checks := make([]auth.Requirement, 0, len(reqs))
			for _, req := range reqs {
				checks = append(checks, bind(r, req))
			}

			token := TokenFromRequest(r)
			p, err := g.gate.Authorize(r.Context(), token, checks...)
			if err != nil {
				g.onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p, token)))
		})
	}
}

// bind defers resolving req against r until the gate applies it.
func bind(r *http.Request, req RouteRequirement) auth.Requirement {
	return func(p *domain.Principal) error {
		check, err := req(r)
		if err != nil {
			return err
		}
		return check(p)
	}
}

// WithPrincipal returns a copy of ctx carrying p and the token it came from.
func WithPrincipal(ctx context.Context, p *domain.Principal, token string) context.Context {
	ctx = context.WithValue(ctx, principalKey, p)
	return context.WithValue(ctx, tokenKey, token)
}

// PrincipalFromContext returns the authorized caller, or nil outside Protect.
func PrincipalFromContext(ctx context.Context) *domain.Principal {
	if p, ok := ctx.Value(principalKey).(*domain.Principal); ok {
		return p
	}
	return nil
}

// MustPrincipal is PrincipalFromContext for handlers mounted behind Protect.
func MustPrincipal(ctx context.Context) *domain.Principal {
	p := PrincipalFromContext(ctx)
	if p == nil {
		panic("identity: handler mounted without Protect")
	}
	return p
}

// TokenFromContext returns the session token the caller authenticated with.
func TokenFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(tokenKey).(string); ok {
		return v
	}
	return ""
}

// TokenFromRequest extracts the session token from the Authorization header,
// falling back to X-Session-Token.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); len(h) > len(bearerPrefix) && strings.EqualFold(h[:len(bearerPrefix)], bearerPrefix) {
		return strings.TrimSpace(h[len(bearerPrefix):])
	}
	return strings.TrimSpace(r.Header.Get(SessionHeaderName))
}

// IPFromRequest returns a normalized remote IP for request tracing.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
