package identity

import (
	"context"
	"sync"
	"time"
)

// Compile-time assertion that MemStore satisfies the Store interface.
var _ Store = (*MemStore)(nil)

// MemStore is a thread-safe, in-memory implementation of [Store].
// It is suitable for development and testing.
type MemStore struct {
	mu      sync.RWMutex
	nextID  int64
	byID    map[int64]User
	byEmail map[string]int64
}

// NewMemStore returns an initialised [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{
		nextID:  1,
		byID:    make(map[int64]User),
		byEmail: make(map[string]int64),
	}
}

// Create implements [Store.Create].
func (s *MemStore) Create(_ context.Context, email, passwordHash string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[email]; exists {
		return User{}, ErrDuplicateEmail
	}

	user := User{
		ID:           s.nextID,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	s.nextID++
	s.byID[user.ID] = user
	s.byEmail[email] = user.ID
	return user, nil
}

// GetByEmail implements [Store.GetByEmail].
func (s *MemStore) GetByEmail(_ context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return User{}, ErrNotFound
	}
	return s.byID[id], nil
}

// GetByID implements [Store.GetByID].
func (s *MemStore) GetByID(_ context.Context, id int64) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byID[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}
