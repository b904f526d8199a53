package auth

import (
	"context"

	"github.com/ashureev/studyplan/internal/domain"
)

// Validator resolves a bearer token to the caller's identity.
type Validator interface {
	Validate(ctx context.Context, token string) (*domain.Principal, error)
}

// Requirement is an extra check applied after the token is validated.
type Requirement func(p *domain.Principal) error

// RequireRole rejects callers whose current role is not role.
func RequireRole(role domain.Role) Requirement {
	return func(p *domain.Principal) error {
		if p.Role != role {
			return domain.ErrInsufficientRole
		}
		return nil
	}
}

// ForbidSelf rejects callers acting on their own account.
func ForbidSelf(targetUserID int64) Requirement {
	return func(p *domain.Principal) error {
		if p.UserID == targetUserID {
			return domain.ErrSelfActionForbidden
		}
		return nil
	}
}

// Gate is the single entry check for protected operations.
type Gate struct {
	sessions Validator
}

// NewGate creates a Gate backed by sessions.
func NewGate(sessions Validator) *Gate {
	return &Gate{sessions: sessions}
}

// Authorize validates token and then applies reqs in order. The first failure
// is returned and nothing after it runs.
func (g *Gate) Authorize(ctx context.Context, token string, reqs ...Requirement) (*domain.Principal, error) {
	p, err := g.sessions.Validate(ctx, token)
	if err != nil {
		return nil, err
	}
	for _, req := range reqs {
		if err := req(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Check applies reqs to an already validated principal.
func Check(p *domain.Principal, reqs ...Requirement) error {
	if p == nil {
		return domain.ErrUnauthenticated
	}
	for _, req := range reqs {
		if err := req(p); err != nil {
			return err
		}
	}
	return nil
}
