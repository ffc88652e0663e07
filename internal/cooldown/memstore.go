package cooldown

import (
	"context"
	"sync"
	"time"

	"github.com/listener-ai/listener/internal/safety"
)

// Compile-time assertion that MemStore satisfies the Store interface.
var _ Store = (*MemStore)(nil)

// MemOption is a functional option for configuring a [MemStore].
type MemOption func(*MemStore)

// WithClock replaces the wall clock. Tests use this to step time forward
// deterministically instead of sleeping.
func WithClock(now func() time.Time) MemOption {
	return func(s *MemStore) {
		if now != nil {
			s.now = now
		}
	}
}

// MemStore is a thread-safe, in-process implementation of [Store]. State
// lives for the process lifetime only.
//
// A single store-scoped mutex guards the expiry map. Entries hold only a
// timestamp and every operation is a brief map access, so contention across
// unrelated users is negligible; no external call ever runs under the lock.
type MemStore struct {
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	expires map[string]time.Time
}

// NewMemStore returns an initialised [MemStore] with the given cooldown
// window. Windows <= 0 fall back to [DefaultWindow].
func NewMemStore(window time.Duration, opts ...MemOption) *MemStore {
	if window <= 0 {
		window = DefaultWindow
	}
	s := &MemStore{
		window:  window,
		now:     time.Now,
		expires: make(map[string]time.Time),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Remaining implements [Store.Remaining].
func (s *MemStore) Remaining(_ context.Context, userKey string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	exp, ok := s.expires[userKey]
	if !ok {
		return 0
	}
	left := wholeSeconds(exp.Sub(s.now()))
	if left == 0 {
		delete(s.expires, userKey)
	}
	return left
}

// Apply implements [Store.Apply].
func (s *MemStore) Apply(_ context.Context, userKey string, level safety.Level) int {
	if !qualifies(level) {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.expires[userKey] = s.now().Add(s.window)
	return wholeSeconds(s.window)
}
