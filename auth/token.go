// Package auth obtains and caches the bearer token of the remote spreadsheet API.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	// SafetyMargin is how long before expiry a cached token stops being reused.
	SafetyMargin = 300 * time.Second

	tokenPath      = "/open-apis/auth/v3/tenant_access_token/internal"
	defaultTimeout = 10 * time.Second
)

// AuthError reports a failed credential exchange.
type AuthError struct {
	Code int
	Msg  string
	Err  error
}

func (e *AuthError) Error() string {
	msg := "credential exchange failed"
	if e.Code != 0 {
		msg += fmt.Sprintf(" (code %d)", e.Code)
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Config holds the application credentials and endpoint.
type Config struct {
	BaseURL   string
	AppID     string
	AppSecret string
	Timeout   time.Duration
}

// TokenManager hands out a cached token and refreshes it shortly before expiry.
// Concurrent callers may both refresh; the last one to finish wins the cache.
type TokenManager struct {
	cfg        Config
	httpClient *http.Client
	clock      clockwork.Clock
	cache      TokenCache
}

// Option customises a TokenManager.
type Option func(*TokenManager)

func WithHTTPClient(c *http.Client) Option {
	return func(m *TokenManager) { m.httpClient = c }
}

func WithClock(c clockwork.Clock) Option {
	return func(m *TokenManager) { m.clock = c }
}

func WithCache(c TokenCache) Option {
	return func(m *TokenManager) { m.cache = c }
}

// NewTokenManager builds a manager with a real clock and an in-memory cache
// unless options say otherwise.
func NewTokenManager(cfg Config, opts ...Option) *TokenManager {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	m := &TokenManager{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		clock:      clockwork.NewRealClock(),
		cache:      NewMemoryCache(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type tokenRequest struct {
	AppID     string `json:"app_id"`
	AppSecret string `json:"app_secret"`
}

type tokenResponse struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Token  string `json:"tenant_access_token"`
	Expire int64  `json:"expire"`
}

// Token returns a valid bearer token, exchanging credentials when the cached
// one is missing or within SafetyMargin of expiry.
func (m *TokenManager) Token(ctx context.Context) (string, error) {
	now := m.clock.Now()
	if cached, ok := m.cache.Get(ctx); ok && now.Before(cached.ExpiresAt.Add(-SafetyMargin)) {
		return cached.Value, nil
	}

	token, err := m.exchange(ctx)
	if err != nil {
		if clearErr := m.cache.Clear(ctx); clearErr != nil {
			slog.Warn("failed to clear token cache", "err", clearErr)
		}
		return "", err
	}
	if err := m.cache.Set(ctx, token, token.ExpiresAt.Sub(m.clock.Now())); err != nil {
		slog.Warn("failed to cache token", "err", err)
	}
	return token.Value, nil
}

// Invalidate forgets the cached token so the next call exchanges again.
func (m *TokenManager) Invalidate(ctx context.Context) {
	if err := m.cache.Clear(ctx); err != nil {
		slog.Warn("failed to clear token cache", "err", err)
	}
}

func (m *TokenManager) exchange(ctx context.Context) (Token, error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	body, err := json.Marshal(tokenRequest{AppID: m.cfg.AppID, AppSecret: m.cfg.AppSecret})
	if err != nil {
		return Token{}, &AuthError{Msg: "encode request", Err: err}
	}
	endpoint := strings.TrimRight(m.cfg.BaseURL, "/") + tokenPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Token{}, &AuthError{Msg: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return Token{}, &AuthError{Msg: "do request", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return Token{}, &AuthError{Msg: fmt.Sprintf("http %s: %s", resp.Status, strings.TrimSpace(string(b)))}
	}

	var payload tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Token{}, &AuthError{Msg: "decode response", Err: err}
	}
	if payload.Code != 0 {
		return Token{}, &AuthError{Code: payload.Code, Msg: payload.Msg}
	}
	if payload.Token == "" {
		return Token{}, &AuthError{Msg: "response carried no token"}
	}

	now := m.clock.Now()
	slog.Info("obtained spreadsheet token", "expires_in", payload.Expire)
	return Token{
		Value:     payload.Token,
		ExpiresAt: now.Add(time.Duration(payload.Expire) * time.Second),
	}, nil
}
