package session

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nerrad567/homytech-sync/internal/remote"
)

// Authenticator exchanges credentials for a token. *remote.Client satisfies it.
type Authenticator interface {
	Login(ctx context.Context, creds remote.Credentials) (remote.LoginResult, error)
}

// Session holds the identity used for backend calls: the display name sent
// with commands and the bearer token.
//
// The token is inspected but never verified; the backend owns the signing
// key and rejects bad tokens itself.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Session struct {
	mu        sync.RWMutex
	user      string
	token     string
	subject   string
	expiresAt time.Time
}

// New creates a session for user with an optional bearer token.
//
// Returns:
//   - *Session: The session
//   - error: ErrTokenMalformed if token is set but not a JWT
func New(user, token string) (*Session, error) {
	s := &Session{user: user}
	if token != "" {
		if err := s.adopt(token); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Login authenticates with email and password and adopts the returned
// token. The display name from the backend is used only when no user
// was configured.
func (s *Session) Login(ctx context.Context, auth Authenticator, email, password string) error {
	if email == "" || password == "" {
		return ErrNoCredentials
	}

	res, err := auth.Login(ctx, remote.Credentials{Email: email, Password: password})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}
	if err := s.adopt(res.AccessToken); err != nil {
		return err
	}

	s.mu.Lock()
	if s.user == "" {
		s.user = res.Name
	}
	s.mu.Unlock()
	return nil
}

func (s *Session) adopt(token string) error {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.subject = claims.Subject
	s.expiresAt = time.Time{}
	if claims.ExpiresAt != nil {
		s.expiresAt = claims.ExpiresAt.Time
	}
	return nil
}

// User returns the display name sent with commands. It falls back to the
// token subject.
func (s *Session) User() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user != "" {
		return s.user
	}
	return s.subject
}

// Token returns the bearer token, or "" when anonymous.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Subject returns the token's sub claim.
func (s *Session) Subject() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subject
}

// ExpiresAt returns the token expiry, or the zero time when it has none.
func (s *Session) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiresAt
}

// Authenticated reports whether a token is held.
func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

// Expired reports whether the token has an expiry at or before now.
func (s *Session) Expired(now time.Time) bool {
	exp := s.ExpiresAt()
	return !exp.IsZero() && !now.Before(exp)
}

// Header returns the handshake headers for push channels.
func (s *Session) Header() http.Header {
	h := http.Header{}
	if token := s.Token(); token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
