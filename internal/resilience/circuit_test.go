package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

var errFlaky = NewTransientError(errors.New("upstream 503"), 503)

func failCall(_ context.Context) (int, error) { return 0, errFlaky }
func okCall(_ context.Context) (int, error) { return 1, nil }

func TestBreaker_ClosedPassesThrough(t *testing.T) {
	b := NewBreaker("hibp", DefaultBreakerConfig())

	v, err := Call(context.Background(), b, okCall)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 1 {
		t.Errorf("expected 1, got %d", v)
	}
	if b.State() != Closed {
		t.Errorf("expected closed, got %s", b.State())
	}
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := NewBreaker("hibp", BreakerConfig{FailureThreshold: 3, CoolOff: time.Minute})

	for i := 0; i < 3; i++ {
		_, _ = Call(context.Background(), b, failCall)
	}
	if b.State() != Open {
		t.Fatalf("expected open after 3 failures, got %s", b.State())
	}

	_, err := Call(context.Background(), b, func(context.Context) (int, error) {
		t.Error("must not run while open")
		return 0, nil
	})
	if !errors.Is(err, ErrOpen) {
		t.Errorf("expected ErrOpen, got %v", err)
	}
}

func TestBreaker_NonTransientDoesNotTrip(t *testing.T) {
	b := NewBreaker("a_leads", BreakerConfig{FailureThreshold: 1})

	notFound := &StatusError{Source: "a_leads", StatusCode: 404}
	for i := 0; i < 5; i++ {
		_, _ = Call(context.Background(), b, func(context.Context) (int, error) { return 0, notFound })
	}
	if b.State() != Closed {
		t.Errorf("404s must not open the breaker, got %s", b.State())
	}
}

func TestBreaker_SuccessResetsFailures(t *testing.T) {
	b := NewBreaker("hibp", BreakerConfig{FailureThreshold: 3})

	_, _ = Call(context.Background(), b, failCall)
	_, _ = Call(context.Background(), b, failCall)
	_, _ = Call(context.Background(), b, okCall)
	_, _ = Call(context.Background(), b, failCall)
	_, _ = Call(context.Background(), b, failCall)

	if b.State() != Closed {
		t.Errorf("expected closed, got %s", b.State())
	}
}

func TestBreaker_HalfOpenRecovery(t *testing.T) {
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	b := NewBreaker("courtlistener", BreakerConfig{FailureThreshold: 1, CoolOff: 30 * time.Second})
	b.now = func() time.Time { return now }

	_, _ = Call(context.Background(), b, failCall)
	if b.State() != Open {
		t.Fatalf("expected open, got %s", b.State())
	}

	now = now.Add(31 * time.Second)
	if b.State() != HalfOpen {
		t.Fatalf("expected half-open after cool-off, got %s", b.State())
	}

	if _, err := Call(context.Background(), b, okCall); err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if b.State() != Closed {
		t.Errorf("expected closed after probe, got %s", b.State())
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	b := NewBreaker("courtlistener", BreakerConfig{FailureThreshold: 1, CoolOff: 30 * time.Second})
	b.now = func() time.Time { return now }

	_, _ = Call(context.Background(), b, failCall)
	now = now.Add(31 * time.Second)
	_, _ = Call(context.Background(), b, failCall)

	if b.State() != Open {
		t.Errorf("expected reopened, got %s", b.State())
	}
}

func TestBreakers_GetIsStable(t *testing.T) {
	bs := NewBreakers(DefaultBreakerConfig())

	var wg sync.WaitGroup
	got := make([]*Breaker, 20)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = bs.Get("hibp")
		}(i)
	}
	wg.Wait()

	for _, b := range got {
		if b != got[0] {
			t.Fatal("expected a single breaker per source")
		}
	}
	if st := bs.States()["hibp"]; st != Closed {
		t.Errorf("expected closed, got %s", st)
	}
}

func TestStateString(t *testing.T) {
	cases := map[State]string{Closed: "closed", Open: "open", HalfOpen: "half-open", State(9): "unknown"}
	for s, want := range cases {
		if s.String() != want {
			t.Errorf("State(%d).String() = %q, want %q", s, s.String(), want)
		}
	}
}
