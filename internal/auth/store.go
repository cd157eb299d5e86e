// Package auth handles login against the MedAI backend and local persistence
// of the resulting session.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// User is the minimal profile stored next to the token.
type User struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// Session is the authenticated state for one user.
type Session struct {
	Token    string    `json:"token"`
	User     User      `json:"user"`
	Remember bool      `json:"remember"`
	Expiry   time.Time `json:"expiry,omitempty"`
}

// Active reports whether the session holds a usable token.
func (s Session) Active() bool {
	if s.Token == "" {
		return false
	}
	if !s.Expiry.IsZero() && time.Now().After(s.Expiry) {
		return false
	}
	return true
}

// Store is the single shared session cell. Writes are last-writer-wins and
// listeners are notified synchronously before Save or Clear returns, so no
// request can race ahead with a stale token.
type Store struct {
	mu        sync.Mutex
	path      string
	session   Session
	listeners []func(Session)
}

// NewStore opens a session store persisting to path. A durable session left
// by a previous run is loaded eagerly; a corrupt or missing file simply means
// logged out.
func NewStore(path string) *Store {
	store := &Store{path: path}
	store.load()
	return store
}

func (s *Store) load() {
	if s.path == "" {
		return
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return
	}
	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return
	}
	if session.Active() {
		s.session = session
	}
}

// Token returns the current bearer token, empty when logged out or expired.
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.session.Active() {
		return ""
	}
	return s.session.Token
}

// User returns the stored profile and whether a session is active.
func (s *Store) User() (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.session.Active() {
		return User{}, false
	}
	return s.session.User, true
}

// Save replaces the session. persist selects durable storage; a
// non-persisted session lives only for this process, mirroring the
// remember-me choice at login.
func (s *Store) Save(token string, user User, persist bool) error {
	s.mu.Lock()
	session := Session{Token: token, User: user, Remember: persist}
	s.session = session
	listeners := append([]func(Session){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(session)
	}

	if !persist {
		return s.removeFile()
	}
	return s.writeFile(session)
}

// Clear wipes the session everywhere. This is the only path that resolves an
// auth-rejected call: wire it to the envelope's auth reject hook.
func (s *Store) Clear() {
	s.mu.Lock()
	s.session = Session{}
	listeners := append([]func(Session){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(Session{})
	}
	_ = s.removeFile()
}

// Subscribe registers a listener invoked synchronously on every session
// change.
func (s *Store) Subscribe(fn func(Session)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *Store) writeFile(session Session) error {
	if s.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

func (s *Store) removeFile() error {
	if s.path == "" {
		return nil
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}
