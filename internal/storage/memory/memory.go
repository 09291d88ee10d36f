package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"lockify/internal/models"
	"lockify/internal/storage"
)

// Storage keeps accounts and entries in process memory. It is meant for
// local runs and tests and loses everything on restart.
type Storage struct {
	mu      sync.RWMutex
	users   map[string]models.User
	entries map[string]models.Entry
	seq     map[string]int64
	next    int64
}

func New() *Storage {
	return &Storage{
		users:   make(map[string]models.User),
		entries: make(map[string]models.Entry),
		seq:     make(map[string]int64),
	}
}

func (s *Storage) SaveUser(_ context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.Email]; ok {
		return storage.ErrUserExists
	}

	s.users[user.Email] = cloneUser(user)

	return nil
}

func (s *Storage) User(_ context.Context, email string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[email]
	if !ok {
		return models.User{}, storage.ErrUserNotFound
	}

	return cloneUser(u), nil
}

func (s *Storage) VerifyUserByToken(_ context.Context, token string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for email, u := range s.users {
		if u.IsVerified || u.VerificationToken != token {
			continue
		}

		u.IsVerified = true
		u.VerificationToken = ""
		s.users[email] = u

		return cloneUser(u), nil
	}

	return models.User{}, storage.ErrTokenNotFound
}

func (s *Storage) SetVerificationToken(_ context.Context, email, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[email]
	if !ok || u.IsVerified {
		return storage.ErrUserNotFound
	}

	u.VerificationToken = token
	s.users[email] = u

	return nil
}

func (s *Storage) DeleteUser(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[email]; !ok {
		return storage.ErrUserNotFound
	}

	delete(s.users, email)
	s.dropEntries(email)

	return nil
}

// DeleteUnverifiedUntil removes unverified accounts created at or before cutoff.
func (s *Storage) DeleteUnverifiedUntil(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64

	for email, u := range s.users {
		if !u.IsVerified && !u.CreatedAt.After(cutoff) {
			delete(s.users, email)
			s.dropEntries(email)
			n++
		}
	}

	return n, nil
}

func (s *Storage) SaveEntry(_ context.Context, entry models.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[entry.UserEmail]; !ok {
		return storage.ErrUserNotFound
	}

	s.next++
	s.entries[entry.ID] = entry
	s.seq[entry.ID] = s.next

	return nil
}

func (s *Storage) Entries(_ context.Context, owner string) ([]models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]models.Entry, 0)
	for _, e := range s.entries {
		if e.UserEmail == owner {
			res = append(res, e)
		}
	}

	sort.Slice(res, func(i, j int) bool {
		return s.seq[res[i].ID] < s.seq[res[j].ID]
	})

	return res, nil
}

func (s *Storage) Entry(_ context.Context, owner, id string) (models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok || e.UserEmail != owner {
		return models.Entry{}, storage.ErrEntryNotFound
	}

	return e, nil
}

func (s *Storage) UpdateEntry(
	_ context.Context,
	owner, id string,
	fields models.EntryFields,
	updatedAt time.Time,
) (models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok || e.UserEmail != owner {
		return models.Entry{}, storage.ErrEntryNotFound
	}

	e.URL = fields.URL
	e.Password = fields.Password
	e.Description = fields.Description
	e.FileUpload = fields.FileUpload
	e.UpdatedAt = updatedAt
	s.entries[id] = e

	return e, nil
}

func (s *Storage) DeleteEntry(_ context.Context, owner, id string) (models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok || e.UserEmail != owner {
		return models.Entry{}, storage.ErrEntryNotFound
	}

	delete(s.entries, id)
	delete(s.seq, id)

	return e, nil
}

func (s *Storage) DeleteEntries(_ context.Context, owner string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.dropEntries(owner), nil
}

// dropEntries must be called with mu held.
func (s *Storage) dropEntries(owner string) int64 {
	var n int64

	for id, e := range s.entries {
		if e.UserEmail == owner {
			delete(s.entries, id)
			delete(s.seq, id)
			n++
		}
	}

	return n
}

func (s *Storage) Close() {}

func cloneUser(u models.User) models.User {
	u.PassHash = append([]byte(nil), u.PassHash...)
	return u
}
