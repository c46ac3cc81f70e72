// Package session persists per-provider authentication state: tokens in a
// keyring, session metadata in a JSON file, and a runtime login state
// machine on top of both.
package session

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/spendbar/spendbar/internal/core"
)

type LoginState string

const (
	LoggedOut LoginState = "LOGGED_OUT"
	LoggingIn LoginState = "LOGGING_IN"
	LoggedIn  LoginState = "LOGGED_IN"
)

type Store struct {
	mu       sync.Mutex
	path     string
	keyring  Keyring
	sessions map[core.Provider]core.ProviderSession
	states   map[core.Provider]LoginState
}

type sessionsFile struct {
	Sessions []core.ProviderSession `json:"sessions"`
}

// NewStore loads persisted sessions and reconciles them against the
// keyring: a session claiming to be active without a stored token is stale
// state from a crash and is discarded, so session and token always agree.
func NewStore(path string, keyring Keyring) (*Store, error) {
	s := &Store{
		path:     path,
		keyring:  keyring,
		sessions: make(map[core.Provider]core.ProviderSession),
		states:   make(map[core.Provider]LoginState),
	}

	if err := s.load(); err != nil {
		return nil, err
	}

	for _, p := range core.AllProviders() {
		sess, ok := s.sessions[p]
		if !ok {
			s.states[p] = LoggedOut
			continue
		}
		if sess.IsActive && !s.hasTokenLocked(p) {
			log.Printf("[session] discarding stale active session for %s (no token in keyring)", p)
			delete(s.sessions, p)
			s.states[p] = LoggedOut
			continue
		}
		if sess.IsActive {
			s.states[p] = LoggedIn
		} else {
			s.states[p] = LoggedOut
		}
	}

	if err := s.persistLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) GetToken(p core.Provider) (string, error) {
	return s.keyring.Get(p)
}

func (s *Store) HasToken(p core.Provider) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasTokenLocked(p)
}

func (s *Store) hasTokenLocked(p core.Provider) bool {
	token, err := s.keyring.Get(p)
	return err == nil && token != ""
}

func (s *Store) SaveToken(p core.Provider, token string) error {
	if err := s.keyring.Set(p, token); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.states[p] == LoggedOut {
		s.states[p] = LoggingIn
	}
	return nil
}

func (s *Store) DeleteToken(p core.Provider) error {
	return s.keyring.Delete(p)
}

func (s *Store) LoginState(p core.Provider) LoginState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.states[p]; ok {
		return state
	}
	return LoggedOut
}

func (s *Store) Session(p core.Provider) (core.ProviderSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[p]
	return sess, ok
}

// SetSession records a successful authentication and flips the provider to
// logged-in.
func (s *Store) SetSession(sess core.ProviderSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.IsActive = true
	s.sessions[sess.Provider] = sess
	s.states[sess.Provider] = LoggedIn
	return s.persistLocked()
}

// ClearSession removes session metadata and the keyring token together.
// The two are never cleared independently.
func (s *Store) ClearSession(p core.Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, p)
	s.states[p] = LoggedOut

	if err := s.keyring.Delete(p); err != nil && err != ErrTokenNotFound {
		log.Printf("[session] deleting token for %s: %v", p, err)
	}
	return s.persistLocked()
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading sessions: %w", err)
	}

	var file sessionsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing sessions %s: %w", s.path, err)
	}
	for _, sess := range file.Sessions {
		if sess.Provider.Valid() {
			s.sessions[sess.Provider] = sess
		}
	}
	return nil
}

func (s *Store) persistLocked() error {
	var file sessionsFile
	for _, p := range core.AllProviders() {
		if sess, ok := s.sessions[p]; ok {
			file.Sessions = append(file.Sessions, sess)
		}
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating sessions dir: %w", err)
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling sessions: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("writing sessions: %w", err)
	}
	return nil
}
