package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"lockify/internal/models"
)

// Session is the identity the client acts as. The zero value is signed out.
type Session struct {
	Token string            `json:"token"`
	User  models.PublicUser `json:"user"`
}

func (s Session) SignedIn() bool {
	return s.Token != ""
}

// SessionStore persists the session as a JSON file readable only by its owner.
type SessionStore struct {
	path string

	mu      sync.Mutex
	current Session
}

func NewSessionStore(path string) *SessionStore {
	return &SessionStore{path: path}
}

// DefaultSessionPath is ~/.lockify/session.json.
func DefaultSessionPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("client.DefaultSessionPath: %w", err)
	}

	return filepath.Join(home, ".lockify", "session.json"), nil
}

// Hydrate loads the persisted session. A missing file yields a signed-out session.
func (s *SessionStore) Hydrate() (Session, error) {
	const op = "client.SessionStore.Hydrate"

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.current = Session{}
			return s.current, nil
		}

		return Session{}, fmt.Errorf("%s: %w", op, err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return Session{}, fmt.Errorf("%s: %w", op, err)
	}

	s.current = sess

	return sess, nil
}

func (s *SessionStore) Current() Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.current
}

func (s *SessionStore) Save(sess Session) error {
	const op = "client.SessionStore.Save"

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.current = sess

	return nil
}

// Clear forgets the session in memory and on disk.
func (s *SessionStore) Clear() error {
	const op = "client.SessionStore.Clear"

	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = Session{}

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
