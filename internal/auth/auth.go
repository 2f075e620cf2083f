// Package auth signs staff in against the hosted auth provider, falling
// back to a local account directory, and issues the bearer sessions the API
// accepts.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/domain/settings"
)

// Source records which directory authenticated a user.
type Source string

const (
	SourceRemote Source = "remote"
	SourceLocal  Source = "local"
)

var (
	// ErrInvalidCredentials is returned when neither directory accepts the
	// email and password.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrUnauthorized is returned for missing, malformed, expired or
	// revoked session tokens.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrRejected wraps a 4xx answer from the remote provider. The
	// provider is healthy, it just said no.
	ErrRejected = errors.New("rejected by auth provider")
	// ErrRemoteUnavailable is returned when no remote provider is
	// configured.
	ErrRemoteUnavailable = errors.New("remote auth provider unavailable")
)

// Identity is an account as a directory reports it.
type Identity struct {
	ID       uuid.UUID
	Email    string
	RoleHint settings.Role
	Source   Source
	// AccessToken is the provider's own token, set for remote identities.
	AccessToken string
}

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID    uuid.UUID     `json:"user_id"`
	Email     string        `json:"email"`
	Role      settings.Role `json:"role"`
	SessionID string        `json:"session_id"`
	Source    Source        `json:"source"`
	ExpiresAt time.Time     `json:"expires_at"`
}

// HasRole reports whether the principal holds one of roles. Admins hold
// every role.
func (p *Principal) HasRole(roles ...settings.Role) bool {
	if p.Role == settings.RoleAdmin {
		return true
	}
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

type Session struct {
	Token     string    `json:"access_token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
	Principal Principal `json:"user"`
}

type principalKey struct{}

func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the caller set by the auth middleware.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}
