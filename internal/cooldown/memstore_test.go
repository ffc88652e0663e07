package cooldown_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/listener-ai/listener/internal/cooldown"
	"github.com/listener-ai/listener/internal/safety"
)

// fakeClock steps time manually.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestApplyQualifyingLevels(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	for _, level := range []safety.Level{safety.LevelElevated, safety.LevelBlocked} {
		t.Run(string(level), func(t *testing.T) {
			t.Parallel()
			clk := newFakeClock()
			s := cooldown.NewMemStore(60*time.Second, cooldown.WithClock(clk.Now))

			applied := s.Apply(ctx, "ana@example.com", level)
			if applied != 60 {
				t.Fatalf("Apply = %d, want 60", applied)
			}
			if got := s.Remaining(ctx, "ana@example.com"); got != 60 {
				t.Fatalf("Remaining right after Apply = %d, want 60", got)
			}
		})
	}
}

func TestApplyOKIsNoOp(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clk := newFakeClock()
	s := cooldown.NewMemStore(60*time.Second, cooldown.WithClock(clk.Now))

	if applied := s.Apply(ctx, "ben@example.com", safety.LevelOK); applied != 0 {
		t.Fatalf("Apply(ok) = %d, want 0", applied)
	}
	if got := s.Remaining(ctx, "ben@example.com"); got != 0 {
		t.Fatalf("Remaining after ok apply = %d, want 0", got)
	}
}

func TestApplyOKDoesNotTouchActiveCooldown(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clk := newFakeClock()
	s := cooldown.NewMemStore(60*time.Second, cooldown.WithClock(clk.Now))

	s.Apply(ctx, "cara@example.com", safety.LevelBlocked)
	clk.Advance(10 * time.Second)
	s.Apply(ctx, "cara@example.com", safety.LevelOK)

	if got := s.Remaining(ctx, "cara@example.com"); got != 50 {
		t.Fatalf("Remaining = %d, want 50 (ok must neither clear nor extend)", got)
	}
}

func TestRemainingDecreasesAndLapses(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clk := newFakeClock()
	s := cooldown.NewMemStore(60*time.Second, cooldown.WithClock(clk.Now))

	s.Apply(ctx, "dev@example.com", safety.LevelElevated)

	clk.Advance(25 * time.Second)
	if got := s.Remaining(ctx, "dev@example.com"); got != 35 {
		t.Fatalf("Remaining after 25s = %d, want 35", got)
	}

	clk.Advance(35 * time.Second)
	if got := s.Remaining(ctx, "dev@example.com"); got != 0 {
		t.Fatalf("Remaining at expiry = %d, want 0", got)
	}

	// Lapsed entries stay at zero until another qualifying apply.
	clk.Advance(time.Hour)
	if got := s.Remaining(ctx, "dev@example.com"); got != 0 {
		t.Fatalf("Remaining long after expiry = %d, want 0", got)
	}
}

func TestApplyOverwritesDoesNotStack(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clk := newFakeClock()
	s := cooldown.NewMemStore(60*time.Second, cooldown.WithClock(clk.Now))

	s.Apply(ctx, "eli@example.com", safety.LevelElevated)
	clk.Advance(40 * time.Second)
	s.Apply(ctx, "eli@example.com", safety.LevelBlocked)

	if got := s.Remaining(ctx, "eli@example.com"); got != 60 {
		t.Fatalf("Remaining after overwrite = %d, want fresh 60, not stacked", got)
	}
}

func TestDistinctUsersAreIndependent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clk := newFakeClock()
	s := cooldown.NewMemStore(60*time.Second, cooldown.WithClock(clk.Now))

	s.Apply(ctx, "fay@example.com", safety.LevelBlocked)
	if got := s.Remaining(ctx, "gus@example.com"); got != 0 {
		t.Fatalf("Remaining for unrelated user = %d, want 0", got)
	}
}

func TestConcurrentApplyAndRemaining(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := cooldown.NewMemStore(60 * time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Apply(ctx, "hot@example.com", safety.LevelBlocked)
		}()
		go func() {
			defer wg.Done()
			_ = s.Remaining(ctx, "hot@example.com")
		}()
	}
	wg.Wait()

	// Every writer set a full window; the final read must observe one.
	if got := s.Remaining(ctx, "hot@example.com"); got == 0 {
		t.Fatal("Remaining after concurrent applies = 0, want active cooldown")
	}
}

func TestZeroWindowFallsBackToDefault(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clk := newFakeClock()
	s := cooldown.NewMemStore(0, cooldown.WithClock(clk.Now))

	if applied := s.Apply(ctx, "ida@example.com", safety.LevelBlocked); applied != 60 {
		t.Fatalf("Apply with zero window = %d, want default 60", applied)
	}
}
