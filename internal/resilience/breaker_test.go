package resilience

import (
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func TestBreakerStaysClosedOnSuccess(t *testing.T) {
	t.Parallel()

	b := NewBreaker(Settings{Name: "test", MaxFailures: 3})
	for range 10 {
		if err := b.Do(func() error { return nil }); err != nil {
			t.Fatalf("Do: unexpected error: %v", err)
		}
	}
	if b.State() != StateClosed {
		t.Errorf("state = %v, want closed", b.State())
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	b := NewBreaker(Settings{Name: "test", MaxFailures: 3, ResetTimeout: time.Hour})

	for range 3 {
		if err := b.Do(func() error { return errBoom }); !errors.Is(err, errBoom) {
			t.Fatalf("Do: expected errBoom, got %v", err)
		}
	}
	if b.State() != StateOpen {
		t.Fatalf("state = %v, want open", b.State())
	}

	called := false
	err := b.Do(func() error { called = true; return nil })
	if !errors.Is(err, ErrBreakerOpen) {
		t.Fatalf("Do: expected ErrBreakerOpen, got %v", err)
	}
	if called {
		t.Error("fn ran while the breaker was open")
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	t.Parallel()

	b := NewBreaker(Settings{Name: "test", MaxFailures: 3, ResetTimeout: time.Hour})

	for range 2 {
		_ = b.Do(func() error { return errBoom })
	}
	if err := b.Do(func() error { return nil }); err != nil {
		t.Fatalf("Do: unexpected error: %v", err)
	}
	for range 2 {
		_ = b.Do(func() error { return errBoom })
	}
	if b.State() != StateClosed {
		t.Errorf("state = %v, want closed after interleaved success", b.State())
	}
}

func TestBreakerHalfOpenClosesAfterProbes(t *testing.T) {
	t.Parallel()

	b := NewBreaker(Settings{
		Name:         "test",
		MaxFailures:  1,
		ResetTimeout: time.Millisecond,
		ProbeBudget:  2,
	})

	_ = b.Do(func() error { return errBoom })
	if b.State() != StateOpen {
		t.Fatalf("state = %v, want open", b.State())
	}

	time.Sleep(5 * time.Millisecond)
	if b.State() != StateHalfOpen {
		t.Fatalf("state = %v, want half-open after reset timeout", b.State())
	}

	for range 2 {
		if err := b.Do(func() error { return nil }); err != nil {
			t.Fatalf("Do: unexpected probe error: %v", err)
		}
	}
	if b.State() != StateClosed {
		t.Errorf("state = %v, want closed after successful probes", b.State())
	}
}

func TestBreakerHalfOpenReopensOnFailedProbe(t *testing.T) {
	t.Parallel()

	b := NewBreaker(Settings{
		Name:         "test",
		MaxFailures:  1,
		ResetTimeout: time.Millisecond,
		ProbeBudget:  3,
	})

	_ = b.Do(func() error { return errBoom })
	time.Sleep(5 * time.Millisecond)

	if err := b.Do(func() error { return errBoom }); !errors.Is(err, errBoom) {
		t.Fatalf("Do: expected errBoom, got %v", err)
	}
	if err := b.Do(func() error { return nil }); !errors.Is(err, ErrBreakerOpen) {
		t.Fatalf("Do: expected ErrBreakerOpen after failed probe, got %v", err)
	}
}

func TestBreakerReset(t *testing.T) {
	t.Parallel()

	b := NewBreaker(Settings{Name: "test", MaxFailures: 1, ResetTimeout: time.Hour})
	_ = b.Do(func() error { return errBoom })
	if b.State() != StateOpen {
		t.Fatalf("state = %v, want open", b.State())
	}

	b.Reset()
	if b.State() != StateClosed {
		t.Errorf("state = %v, want closed after Reset", b.State())
	}
	if err := b.Do(func() error { return nil }); err != nil {
		t.Errorf("Do: unexpected error after Reset: %v", err)
	}
}

func TestStateString(t *testing.T) {
	t.Parallel()

	cases := map[State]string{
		StateClosed:   "closed",
		StateOpen:     "open",
		StateHalfOpen: "half-open",
		State(99):     "unknown",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}
