// ABOUTME: Session owns ARIA credentials and the cached bearer token.
// ABOUTME: Concurrent refreshes collapse into a single token-endpoint call.

package aria

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultTokenTTL is how long a freshly issued bearer token is treated as
// valid. ARIA does not report the real token lifetime, so this is a
// conservative approximation and must stay tunable via config.
const DefaultTokenTTL = 25 * time.Minute

// Credentials identify the gateway to the ARIA token endpoint.
// They are replaced wholesale by the authenticate tool, never field by field.
type Credentials struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
}

// SessionStatus is a read-only snapshot of the session state.
type SessionStatus struct {
	BaseURL    string
	Username   string
	TokenValid bool
	ExpiresAt  time.Time
}

// SessionConfig holds configuration for a Session.
type SessionConfig struct {
	Credentials Credentials
	TokenTTL    time.Duration // defaults to DefaultTokenTTL
	HTTPClient  *http.Client  // defaults to http.DefaultClient
	Logger      *slog.Logger
}

// Session holds the ARIA credentials and the cached bearer token behind a
// single accessor. All request-executing code reaches the token through
// Token; nothing else reads or writes the cache.
type Session struct {
	httpClient *http.Client
	logger     *slog.Logger
	ttl        time.Duration

	mu        sync.RWMutex
	creds     Credentials
	token     string
	expiresAt time.Time

	refresh singleflight.Group

	now func() time.Time // test hook
}

// NewSession creates a session with the given configuration.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Credentials.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}

	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Session{
		httpClient: httpClient,
		logger:     logger,
		ttl:        ttl,
		creds:      cfg.Credentials,
		now:        time.Now,
	}, nil
}

// Token returns a valid bearer token, exchanging credentials with the token
// endpoint if the cached one is absent or expired. A cache hit performs no
// network I/O. On failure the cached state is left untouched and the error is
// an *AuthError; the caller must treat it as final for its operation.
func (s *Session) Token(ctx context.Context) (string, error) {
	if tok, ok := s.cached(); ok {
		return tok, nil
	}

	// Collapse concurrent refreshes: every caller that observed an expired
	// token shares the one in-flight exchange.
	v, err, _ := s.refresh.Do("token", func() (any, error) {
		// A caller that was queued behind the winning exchange sees the
		// fresh token here and skips its own network call.
		if tok, ok := s.cached(); ok {
			return tok, nil
		}
		return s.exchange(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// SetCredentials replaces the credentials wholesale and invalidates any
// cached token so the next call re-authenticates against the new identity.
func (s *Session) SetCredentials(creds Credentials) {
	s.mu.Lock()
	s.creds = creds
	s.token = ""
	s.expiresAt = time.Time{}
	s.mu.Unlock()

	s.logger.Info("aria credentials replaced", "base_url", creds.BaseURL, "username", creds.Username)
}

// BaseURL returns the remote system's base URL without a trailing slash.
func (s *Session) BaseURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return strings.TrimRight(s.creds.BaseURL, "/")
}

// Status reports the current session state for diagnostics.
func (s *Session) Status() SessionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SessionStatus{
		BaseURL:    strings.TrimRight(s.creds.BaseURL, "/"),
		Username:   s.creds.Username,
		TokenValid: s.token != "" && s.now().Before(s.expiresAt),
		ExpiresAt:  s.expiresAt,
	}
}

func (s *Session) cached() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" || !s.now().Before(s.expiresAt) {
		return "", false
	}
	return s.token, true
}

// exchange performs the password-grant credential exchange and stores the
// resulting token. Only called from inside the singleflight group.
func (s *Session) exchange(ctx context.Context) (string, error) {
	s.mu.RLock()
	creds := s.creds
	s.mu.RUnlock()

	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("client_id", creds.ClientID)
	form.Set("client_secret", creds.ClientSecret)
	form.Set("username", creds.Username)
	form.Set("password", creds.Password)

	endpoint := strings.TrimRight(creds.BaseURL, "/") + "/auth/token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", &AuthError{Err: fmt.Errorf("creating token request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", &AuthError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &AuthError{Err: fmt.Errorf("token endpoint returned %s", resp.Status)}
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", &AuthError{Err: fmt.Errorf("decoding token response: %w", err)}
	}
	if body.AccessToken == "" {
		return "", &AuthError{Err: errors.New("token response missing access_token")}
	}

	s.mu.Lock()
	s.token = body.AccessToken
	s.expiresAt = s.now().Add(s.ttl)
	expiresAt := s.expiresAt
	s.mu.Unlock()

	s.logger.Debug("bearer token refreshed", "expires_at", expiresAt.Format(time.RFC3339))
	return body.AccessToken, nil
}
