package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/apperror"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/domain/settings"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/infrastructure/cache"
)

// ResetTokenTTL bounds how long a local password reset link works.
const ResetTokenTTL = time.Hour

// RoleCacheTTL bounds how long a session may act on a stale role when the
// cache entry could not be dropped.
const RoleCacheTTL = 30 * time.Second

const minPasswordLength = 6

// Profiles resolves roles and creates profile rows for new accounts.
type Profiles interface {
	RoleOf(ctx context.Context, id uuid.UUID) (settings.Role, bool, error)
	EnsureProfile(ctx context.Context, id uuid.UUID, email string, role settings.Role) (*settings.Profile, error)
}

// ResetNotifier delivers a local password reset link.
type ResetNotifier func(ctx context.Context, email, link string)

type Service struct {
	remote   Remote
	local    *Directory
	tokens   *Tokens
	store    cache.Cache
	profiles Profiles
	notify   ResetNotifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewService wires the directories together. remote may be nil when no
// hosted provider is configured. store holds revoked sessions and reset
// tokens.
func NewService(remote Remote, local *Directory, tokens *Tokens, store cache.Cache, profiles Profiles, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		remote:   remote,
		local:    local,
		tokens:   tokens,
		store:    store,
		profiles: profiles,
		logger:   logger,
		now:      time.Now,
	}
	s.notify = func(_ context.Context, email, link string) {
		s.logger.Info("password reset link issued", zap.String("email", email), zap.String("link", link))
	}
	return s
}

// WithResetNotifier replaces the default, log-only reset delivery.
func (s *Service) WithResetNotifier(n ResetNotifier) *Service {
	s.notify = n
	return s
}

func validateCredentials(email, password string) error {
	v := &apperror.ValidationError{}
	v.Check(apperror.IsEmail(email), "email", "must be a valid email address")
	v.Check(len(password) >= minPasswordLength, "password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	return v.Err()
}

// SignIn tries the remote provider first and the local directory when the
// remote fails for any reason, including rejecting the credentials.
func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}

	var ident *Identity
	if s.remote != nil {
		id, err := s.remote.SignIn(ctx, email, password)
		if err == nil {
			ident = id
		} else {
			s.logger.Warn("remote sign-in failed, trying local directory",
				zap.String("email", email), zap.Error(err))
		}
	}
	if ident == nil {
		id, err := s.local.Authenticate(email, password)
		if err != nil {
			return nil, err
		}
		ident = id
	}

	role, err := s.resolveRole(ctx, ident)
	if err != nil {
		return nil, err
	}
	sess, err := s.tokens.Issue(ident, role)
	if err != nil {
		return nil, err
	}
	s.logger.Info("signed in",
		zap.String("user_id", ident.ID.String()),
		zap.String("source", string(ident.Source)),
		zap.String("role", string(role)))
	return sess, nil
}

// resolveRole prefers the stored profile. Accounts without one get a
// profile created from their role hint.
func (s *Service) resolveRole(ctx context.Context, ident *Identity) (settings.Role, error) {
	role, ok, err := s.profiles.RoleOf(ctx, ident.ID)
	if err != nil {
		return "", fmt.Errorf("resolve role: %w", err)
	}
	if ok && role.Valid() {
		return role, nil
	}
	role = ident.RoleHint
	if !role.Valid() {
		role = settings.DefaultRole
	}
	if _, err := s.profiles.EnsureProfile(ctx, ident.ID, ident.Email, role); err != nil {
		return "", err
	}
	return role, nil
}

// SignUp registers a staff account and signs it in. The local directory is
// used only when the remote provider cannot be reached; a remote refusal
// is returned to the caller.
func (s *Service) SignUp(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}

	var ident *Identity
	if s.remote != nil {
		id, err := s.remote.SignUp(ctx, email, password)
		switch {
		case err == nil:
			ident = id
		case errors.Is(err, ErrRejected):
			return nil, apperror.Conflict(err.Error())
		default:
			s.logger.Warn("remote sign-up failed, registering locally", zap.String("email", email), zap.Error(err))
		}
	}
	if ident == nil {
		id, err := s.local.Register(email, password, settings.DefaultRole)
		if err != nil {
			return nil, err
		}
		ident = id
	}

	if _, err := s.profiles.EnsureProfile(ctx, ident.ID, ident.Email, settings.DefaultRole); err != nil {
		return nil, err
	}
	return s.tokens.Issue(ident, settings.DefaultRole)
}

// SignOut revokes the session until it would have expired anyway.
func (s *Service) SignOut(ctx context.Context, p *Principal) error {
	ttl := p.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.store.Set(ctx, revokedKey(p.SessionID), []byte(p.UserID.String()), ttl); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	s.logger.Info("signed out", zap.String("user_id", p.UserID.String()))
	return nil
}

// CurrentSession verifies a bearer token and rejects revoked sessions.
func (s *Service) CurrentSession(ctx context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	p, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	_, revoked, err := s.store.Get(ctx, revokedKey(p.SessionID))
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, fmt.Errorf("%w: session revoked", ErrUnauthorized)
	}
	role, err := s.currentRole(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	if role != "" {
		p.Role = role
	}
	return p, nil
}

// currentRole reads the profile role through a short-lived cache entry.
// The role claim in the token is only the role at sign-in.
func (s *Service) currentRole(ctx context.Context, id uuid.UUID) (settings.Role, error) {
	cached, ok, err := s.store.Get(ctx, roleKey(id))
	if err != nil {
		return "", fmt.Errorf("read cached role: %w", err)
	}
	if ok {
		return settings.Role(cached), nil
	}
	role, ok, err := s.profiles.RoleOf(ctx, id)
	if err != nil {
		return "", fmt.Errorf("resolve role: %w", err)
	}
	if !ok || !role.Valid() {
		return "", nil
	}
	if err := s.store.Set(ctx, roleKey(id), []byte(role), RoleCacheTTL); err != nil {
		s.logger.Warn("role not cached", zap.String("user_id", id.String()), zap.Error(err))
	}
	return role, nil
}

// ForgetRole drops the cached role of a user so their open sessions pick
// up a role change on the next request.
func (s *Service) ForgetRole(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Delete(ctx, roleKey(id)); err != nil {
		return fmt.Errorf("forget role: %w", err)
	}
	return nil
}

// ForgotPassword starts a reset. It succeeds for unknown addresses too,
// so callers cannot probe which accounts exist.
func (s *Service) ForgotPassword(ctx context.Context, email, redirectTo string) error {
	email = normalizeEmail(email)
	v := &apperror.ValidationError{}
	v.Check(apperror.IsEmail(email), "email", "must be a valid email address")
	if redirectTo != "" {
		u, err := url.Parse(redirectTo)
		v.Check(err == nil && (u.Scheme == "http" || u.Scheme == "https"), "redirect_to", "must be an http(s) URL")
	}
	if err := v.Err(); err != nil {
		return err
	}

	if s.remote != nil {
		err := s.remote.Recover(ctx, email, redirectTo)
		if err == nil {
			return nil
		}
		s.logger.Warn("remote recovery failed, trying local directory", zap.String("email", email), zap.Error(err))
	}
	if !s.local.Has(email) {
		return nil
	}

	token, err := randomToken()
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, resetKey(token), []byte(email), ResetTokenTTL); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}
	s.notify(ctx, email, resetLink(redirectTo, token))
	return nil
}

// ResetPassword accepts a local reset token, or else treats token as a
// remote recovery access token.
func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	v := &apperror.ValidationError{}
	v.Check(token != "", "token", "is required")
	v.Check(len(password) >= minPasswordLength, "password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	if err := v.Err(); err != nil {
		return err
	}

	email, ok, err := s.store.Get(ctx, resetKey(token))
	if err != nil {
		return fmt.Errorf("look up reset token: %w", err)
	}
	if ok {
		if err := s.local.SetPassword(string(email), password); err != nil {
			return err
		}
		if err := s.store.Delete(ctx, resetKey(token)); err != nil {
			s.logger.Warn("reset token not cleared", zap.Error(err))
		}
		s.logger.Info("local password reset", zap.String("email", string(email)))
		return nil
	}

	if s.remote != nil {
		_, err := s.remote.UpdatePassword(ctx, token, password)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrRejected) {
			return err
		}
	}
	bad := &apperror.ValidationError{}
	bad.Add("token", "is invalid or has expired")
	return bad
}

func revokedKey(sessionID string) string { return "auth:revoked:" + sessionID }

func roleKey(id uuid.UUID) string { return "auth:role:" + id.String() }

// Reset tokens are stored hashed.
func resetKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "auth:reset:" + hex.EncodeToString(sum[:])
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func resetLink(redirectTo, token string) string {
	if redirectTo == "" {
		return "token=" + token
	}
	u, err := url.Parse(redirectTo)
	if err != nil {
		return "token=" + token
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}
