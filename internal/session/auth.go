// Package session tracks who is logged in and which task is open.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"github.com/aristath/testscriptgen/internal/api"
	"github.com/aristath/testscriptgen/internal/events"
	"github.com/aristath/testscriptgen/internal/logging"
)

// ErrNotAuthenticated is returned by Restore when there is no usable token.
var ErrNotAuthenticated = errors.New("not authenticated")

// AuthAPI is the subset of the backend client used for authentication.
type AuthAPI interface {
	Token(ctx context.Context, username, password string) (*api.TokenResponse, error)
	Me(ctx context.Context) (*api.User, error)
}

// TokenStore persists the bearer token.
type TokenStore interface {
	Token(ctx context.Context) (string, error)
	SetToken(ctx context.Context, token string) error
	ClearToken(ctx context.Context) error
}

// Auth owns the login state. A token that is missing, expired or rejected by
// the backend is cleared and the session reverts to unauthenticated.
type Auth struct {
	api    AuthAPI
	tokens TokenStore
	log    *logrus.Entry
	now    func() time.Time

	mu   sync.RWMutex
	user *api.User
	bus  *events.Bus
}

// NewAuth creates an Auth.
func NewAuth(client AuthAPI, tokens TokenStore, log *logrus.Entry) *Auth {
	if log == nil {
		log = logging.Component("session")
	}
	return &Auth{api: client, tokens: tokens, log: log, now: time.Now}
}

// PublishTo makes the session announce login and logout on bus.
func (a *Auth) PublishTo(bus *events.Bus) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.bus = bus
}

// User returns the logged-in user, or nil.
func (a *Auth) User() *api.User {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.user
}

// Authenticated reports whether a user profile is loaded.
func (a *Auth) Authenticated() bool {
	return a.User() != nil
}

// Restore resumes a session from the persisted token.
func (a *Auth) Restore(ctx context.Context) (*api.User, error) {
	token, err := a.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading token: %w", err)
	}
	if token == "" {
		return nil, ErrNotAuthenticated
	}

	if expired(token, a.now()) {
		a.log.Warn("stored token has expired, clearing it")
		a.invalidate(ctx)
		return nil, ErrNotAuthenticated
	}

	user, err := a.api.Me(ctx)
	if err != nil {
		if api.IsUnauthorized(err) {
			a.log.WithError(err).Warn("stored token rejected, clearing it")
			a.invalidate(ctx)
		}
		return nil, err
	}

	a.setUser(user)
	return user, nil
}

// Login exchanges credentials for a token, persists it and loads the profile.
func (a *Auth) Login(ctx context.Context, username, password string) (*api.User, error) {
	tok, err := a.api.Token(ctx, username, password)
	if err != nil {
		return nil, err
	}
	if err := a.tokens.SetToken(ctx, tok.AccessToken); err != nil {
		return nil, fmt.Errorf("saving token: %w", err)
	}

	user, err := a.api.Me(ctx)
	if err != nil {
		a.invalidate(ctx)
		return nil, err
	}

	a.setUser(user)
	a.log.WithField("user", user.Username).Info("logged in")
	return user, nil
}

// Logout forgets the token and the user.
func (a *Auth) Logout(ctx context.Context) error {
	a.setUser(nil)
	if err := a.tokens.ClearToken(ctx); err != nil {
		return fmt.Errorf("clearing token: %w", err)
	}
	return nil
}

// HandleUnauthorized drops the session when a call failed because the token
// is no longer accepted. It reports whether it did.
func (a *Auth) HandleUnauthorized(ctx context.Context, err error) bool {
	if !api.IsUnauthorized(err) {
		return false
	}
	a.log.Warn("backend rejected token, logging out")
	a.invalidate(ctx)
	return true
}

func (a *Auth) invalidate(ctx context.Context) {
	a.setUser(nil)
	if err := a.tokens.ClearToken(context.WithoutCancel(ctx)); err != nil {
		a.log.WithError(err).Error("failed to clear token")
	}
}

func (a *Auth) setUser(user *api.User) {
	a.mu.Lock()
	changed := a.user != user
	a.user = user
	bus := a.bus
	a.mu.Unlock()

	if changed && bus != nil {
		bus.Publish(events.AuthChangedEvent{User: user, Timestamp: time.Now()})
	}
}

// expired reports whether the token's exp claim is in the past. The signature
// is not checked here; the backend remains the authority. Tokens that don't
// parse as JWTs, or carry no exp, are left for the backend to judge.
func expired(token string, now time.Time) bool {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !now.Before(claims.ExpiresAt.Time)
}
