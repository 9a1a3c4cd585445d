// Package auth gates the destructive terminal actions (catalog edits and
// resets, sale deletion) behind one shared secret. A successful login yields
// a Session that is passed explicitly to every gated operation.
package auth

import (
	"crypto/subtle"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrUnauthorized = errors.New("unauthorized")

type Gate struct {
	secret []byte

	mu       sync.Mutex
	sessions map[string]time.Time
}

func NewGate(secret string) *Gate {
	return &Gate{
		secret:   []byte(secret),
		sessions: make(map[string]time.Time),
	}
}

// Check compares candidate with the shared secret in constant time. An
// unset secret never matches.
func (g *Gate) Check(candidate string) bool {
	if len(g.secret) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare(g.secret, []byte(candidate)) == 1
}

func (g *Gate) Login(candidate string) (Session, error) {
	if !g.Check(candidate) {
		return Session{}, ErrUnauthorized
	}
	token := uuid.NewString()
	g.mu.Lock()
	g.sessions[token] = time.Now()
	g.mu.Unlock()
	return Session{token: token, gate: g}, nil
}

// Lookup returns the live session for token.
func (g *Gate) Lookup(token string) (Session, error) {
	if token == "" || !g.active(token) {
		return Session{}, ErrUnauthorized
	}
	return Session{token: token, gate: g}, nil
}

func (g *Gate) Logout(token string) {
	g.mu.Lock()
	delete(g.sessions, token)
	g.mu.Unlock()
}

func (g *Gate) active(token string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.sessions[token]
	return ok
}

// Session is the capability required by gated operations. The zero value
// is unauthorized.
type Session struct {
	token string
	gate  *Gate
}

func (s Session) Token() string { return s.token }

// Authorized reports whether the session is still live on its gate.
func (s Session) Authorized() bool {
	return s.gate != nil && s.gate.active(s.token)
}

// Require returns ErrUnauthorized unless s is authorized.
func Require(s Session) error {
	if !s.Authorized() {
		return ErrUnauthorized
	}
	return nil
}
