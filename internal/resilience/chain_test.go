package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/listener-ai/listener/pkg/provider/stt"
	sttmock "github.com/listener-ai/listener/pkg/provider/stt/mock"
	ttsmock "github.com/listener-ai/listener/pkg/provider/tts/mock"
)

func TestChainPrefersPrimary(t *testing.T) {
	t.Parallel()

	primary := &sttmock.Provider{Transcript: "from primary"}
	fallback := &sttmock.Provider{Transcript: "from fallback"}

	c := NewSTTChain(primary, "primary", Settings{})
	c.AddFallback("fallback", fallback)

	got, err := c.Transcribe(context.Background(), []byte("x"), stt.Hint{})
	if err != nil {
		t.Fatalf("Transcribe: unexpected error: %v", err)
	}
	if got != "from primary" {
		t.Errorf("transcript = %q, want primary's", got)
	}
	if fallback.Calls() != 0 {
		t.Error("fallback was called while the primary was healthy")
	}
}

func TestChainFailsOverOnError(t *testing.T) {
	t.Parallel()

	primary := &sttmock.Provider{Err: errors.New("primary down")}
	fallback := &sttmock.Provider{Transcript: "from fallback"}

	c := NewSTTChain(primary, "primary", Settings{})
	c.AddFallback("fallback", fallback)

	got, err := c.Transcribe(context.Background(), []byte("x"), stt.Hint{})
	if err != nil {
		t.Fatalf("Transcribe: unexpected error: %v", err)
	}
	if got != "from fallback" {
		t.Errorf("transcript = %q, want fallback's", got)
	}
}

func TestChainAllFailed(t *testing.T) {
	t.Parallel()

	primary := &sttmock.Provider{Err: errors.New("primary down")}
	fallback := &sttmock.Provider{Err: errors.New("fallback down")}

	c := NewSTTChain(primary, "primary", Settings{})
	c.AddFallback("fallback", fallback)

	_, err := c.Transcribe(context.Background(), []byte("x"), stt.Hint{})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("Transcribe: expected ErrAllFailed, got %v", err)
	}
}

func TestChainSkipsOpenBreaker(t *testing.T) {
	t.Parallel()

	primary := &sttmock.Provider{Err: errors.New("primary down")}
	fallback := &sttmock.Provider{Transcript: "from fallback"}

	c := NewSTTChain(primary, "primary", Settings{MaxFailures: 2, ResetTimeout: time.Hour})
	c.AddFallback("fallback", fallback)

	ctx := context.Background()
	for range 3 {
		if _, err := c.Transcribe(ctx, []byte("x"), stt.Hint{}); err != nil {
			t.Fatalf("Transcribe: unexpected error: %v", err)
		}
	}

	// Two failures tripped the primary's breaker; the third call must have
	// gone straight to the fallback.
	if primary.Calls() != 2 {
		t.Errorf("primary calls = %d, want 2", primary.Calls())
	}
	if fallback.Calls() != 3 {
		t.Errorf("fallback calls = %d, want 3", fallback.Calls())
	}
}

func TestTTSChainFailsOver(t *testing.T) {
	t.Parallel()

	primary := &ttsmock.Provider{Err: errors.New("primary down")}
	fallback := &ttsmock.Provider{Audio: []byte("fallback audio")}

	c := NewTTSChain(primary, "primary", Settings{})
	c.AddFallback("fallback", fallback)

	got, err := c.Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Synthesize: unexpected error: %v", err)
	}
	if string(got) != "fallback audio" {
		t.Errorf("audio = %q, want fallback's", got)
	}
}
