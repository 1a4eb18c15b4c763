// Package users is the credential store gating session joins. It only
// answers whether a username is known and verifies passwords for the login
// flow; it plays no part in securing the transport.
package users

import (
	"context"
	"errors"
	"sync"

	"github.com/LF-108/BestNotes/pkg/utils"
)

var (
	// ErrUsernameTaken is returned when registering an existing username.
	ErrUsernameTaken = errors.New("username already exists")
	// ErrUserNotFound is returned when authenticating an unknown username.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidPassword is returned on a failed password check.
	ErrInvalidPassword = errors.New("invalid password")
)

// Store holds user credentials.
type Store interface {
	Exists(ctx context.Context, username string) (bool, error)
	// Ensure adds the username with no password if it is unknown. Session
	// host and join flows call this so any participant name ends up in the
	// store.
	Ensure(ctx context.Context, username string) error
	// Register creates a user with a bcrypt-hashed password.
	Register(ctx context.Context, username, password string) error
	// Authenticate verifies a username/password pair.
	Authenticate(ctx context.Context, username, password string) error
}

// MemoryStore is the in-process store used when no database is configured.
type MemoryStore struct {
	mu     sync.RWMutex
	hashes map[string]string // username -> bcrypt hash, "" when added via Ensure
}

// NewMemoryStore creates an empty in-memory credential store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{hashes: make(map[string]string)}
}

// Exists reports whether the username is known.
func (s *MemoryStore) Exists(ctx context.Context, username string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.hashes[username]
	return ok, nil
}

// Ensure adds the username if it is unknown.
func (s *MemoryStore) Ensure(ctx context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.hashes[username]; !ok {
		s.hashes[username] = ""
	}
	return nil
}

// Register creates a user with a hashed password.
func (s *MemoryStore) Register(ctx context.Context, username, password string) error {
	hash, err := utils.HashPassword(password)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.hashes[username]; ok {
		return ErrUsernameTaken
	}
	s.hashes[username] = hash
	return nil
}

// Authenticate verifies a username/password pair.
func (s *MemoryStore) Authenticate(ctx context.Context, username, password string) error {
	s.mu.RLock()
	hash, ok := s.hashes[username]
	s.mu.RUnlock()
	if !ok {
		return ErrUserNotFound
	}
	if !utils.CheckPassword(password, hash) {
		return ErrInvalidPassword
	}
	return nil
}
