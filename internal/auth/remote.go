package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/domain/settings"
	"github.com/abhishek2k21/purpletide-hospital-hub/pkg/circuitbreaker"
)

// Remote is a hosted identity provider.
type Remote interface {
	SignIn(ctx context.Context, email, password string) (*Identity, error)
	SignUp(ctx context.Context, email, password string) (*Identity, error)
	Recover(ctx context.Context, email, redirectTo string) error
	UpdatePassword(ctx context.Context, accessToken, password string) (*Identity, error)
}

type RemoteConfig struct {
	// URL is the project URL; requests go to URL + "/auth/v1".
	URL     string
	APIKey  string
	Timeout time.Duration
}

// GoTrue talks to a Supabase-compatible auth API. Every call runs through
// a circuit breaker that ignores ErrRejected, so bad passwords never trip
// it.
type GoTrue struct {
	base    string
	apiKey  string
	client  *http.Client
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.Logger
}

func NewGoTrue(cfg RemoteConfig, logger *zap.Logger) (*GoTrue, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := url.ParseRequestURI(cfg.URL); err != nil {
		return nil, fmt.Errorf("auth provider url: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	bcfg := circuitbreaker.DefaultConfig("auth-provider")
	bcfg.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, ErrRejected)
	}
	breaker, err := circuitbreaker.New(bcfg, logger)
	if err != nil {
		return nil, err
	}
	return &GoTrue{
		base:    strings.TrimRight(cfg.URL, "/") + "/auth/v1",
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: breaker,
		logger:  logger,
	}, nil
}

// Breaker exposes the provider's circuit breaker for health reporting.
func (g *GoTrue) Breaker() *circuitbreaker.CircuitBreaker {
	return g.breaker
}

type goTrueUser struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

type goTrueSession struct {
	AccessToken string      `json:"access_token"`
	User        *goTrueUser `json:"user"`
}

type goTrueError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func (e goTrueError) text() string {
	for _, s := range []string{e.ErrorDescription, e.Msg, e.Message, e.Error} {
		if s != "" {
			return s
		}
	}
	return "request rejected"
}

func (g *GoTrue) SignIn(ctx context.Context, email, password string) (*Identity, error) {
	var sess goTrueSession
	err := g.call(ctx, http.MethodPost, "/token?grant_type=password", "",
		map[string]string{"email": email, "password": password}, &sess)
	if err != nil {
		return nil, err
	}
	return sess.identity("")
}

// SignUp registers a user. Projects with e-mail confirmation answer with
// the bare user instead of a session.
func (g *GoTrue) SignUp(ctx context.Context, email, password string) (*Identity, error) {
	var raw json.RawMessage
	err := g.call(ctx, http.MethodPost, "/signup", "",
		map[string]string{"email": email, "password": password}, &raw)
	if err != nil {
		return nil, err
	}
	var sess goTrueSession
	if err := json.Unmarshal(raw, &sess); err == nil && sess.User != nil {
		return sess.identity("")
	}
	var user goTrueUser
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, fmt.Errorf("decode sign-up response: %w", err)
	}
	return (&goTrueSession{User: &user}).identity("")
}

func (g *GoTrue) Recover(ctx context.Context, email, redirectTo string) error {
	path := "/recover"
	if redirectTo != "" {
		path += "?redirect_to=" + url.QueryEscape(redirectTo)
	}
	return g.call(ctx, http.MethodPost, path, "", map[string]string{"email": email}, nil)
}

func (g *GoTrue) UpdatePassword(ctx context.Context, accessToken, password string) (*Identity, error) {
	var user goTrueUser
	err := g.call(ctx, http.MethodPut, "/user", accessToken, map[string]string{"password": password}, &user)
	if err != nil {
		return nil, err
	}
	return (&goTrueSession{User: &user}).identity(accessToken)
}

func (g *GoTrue) call(ctx context.Context, method, path, bearer string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode auth request: %w", err)
	}
	return g.breaker.Run(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, method, g.base+path, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("apikey", g.apiKey)
		if bearer == "" {
			bearer = g.apiKey
		}
		req.Header.Set("Authorization", "Bearer "+bearer)

		resp, err := g.client.Do(req)
		if err != nil {
			return fmt.Errorf("auth provider %s: %w", path, err)
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return fmt.Errorf("read auth response: %w", err)
		}

		switch {
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("auth provider %s: status %d", path, resp.StatusCode)
		case resp.StatusCode >= 400:
			var e goTrueError
			_ = json.Unmarshal(data, &e)
			return fmt.Errorf("%s: %w", e.text(), ErrRejected)
		}
		if out == nil || len(data) == 0 {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode auth response: %w", err)
		}
		return nil
	})
}

func (s *goTrueSession) identity(accessToken string) (*Identity, error) {
	if s.User == nil {
		return nil, errors.New("auth provider returned no user")
	}
	id, err := uuid.Parse(s.User.ID)
	if err != nil {
		return nil, fmt.Errorf("auth provider user id %q: %w", s.User.ID, err)
	}
	if accessToken == "" {
		accessToken = s.AccessToken
	}
	ident := &Identity{
		ID:          id,
		Email:       normalizeEmail(s.User.Email),
		Source:      SourceRemote,
		AccessToken: accessToken,
	}
	if role, ok := s.User.UserMetadata["role"].(string); ok {
		ident.RoleHint = settings.Role(role)
	}
	return ident, nil
}
