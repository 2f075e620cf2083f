package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/domain/settings"
)

const issuer = "purpletide-hospital-hub"

type claims struct {
	jwt.RegisteredClaims
	Email  string        `json:"email"`
	Role   settings.Role `json:"role"`
	Source Source        `json:"src"`
}

// Tokens signs and verifies HS256 session tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) (*Tokens, error) {
	if len(secret) < 32 {
		return nil, errors.New("session secret must be at least 32 bytes")
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue starts a new session for id with the given role.
func (t *Tokens) Issue(id *Identity, role settings.Role) (*Session, error) {
	now := t.now().UTC().Truncate(time.Second)
	p := Principal{
		UserID:    id.ID,
		Email:     id.Email,
		Role:      role,
		SessionID: uuid.NewString(),
		Source:    id.Source,
		ExpiresAt: now.Add(t.ttl),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   p.UserID.String(),
			ID:        p.SessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(p.ExpiresAt),
		},
		Email:  p.Email,
		Role:   p.Role,
		Source: p.Source,
	})
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return nil, fmt.Errorf("sign session: %w", err)
	}
	return &Session{Token: signed, TokenType: "bearer", ExpiresAt: p.ExpiresAt, Principal: p}, nil
}

// Parse verifies the signature and expiry of a token. Revocation is
// checked by the caller.
func (t *Tokens) Parse(raw string) (*Principal, error) {
	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	id, err := uuid.Parse(c.Subject)
	if err != nil || c.ID == "" {
		return nil, fmt.Errorf("%w: malformed subject", ErrUnauthorized)
	}
	return &Principal{
		UserID:    id,
		Email:     c.Email,
		Role:      c.Role,
		SessionID: c.ID,
		Source:    c.Source,
		ExpiresAt: c.ExpiresAt.Time,
	}, nil
}
