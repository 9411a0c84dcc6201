package poll

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSatisfiedStopsLoop(t *testing.T) {
	p := New()
	var calls atomic.Int64

	h := Start(context.Background(), p, "k",
		func(context.Context) (int, error) {
			return int(calls.Add(1)), nil
		},
		func(v int) bool { return v >= 3 },
		5*time.Millisecond, time.Second,
	)

	res, err := h.Wait(context.Background())
	if err != nil {
		t.Fatalf("wait failed: %v", err)
	}
	if res.Outcome != OutcomeSatisfied {
		t.Fatalf("outcome = %s, want satisfied", res.Outcome)
	}
	if res.Ticks != 3 {
		t.Errorf("ticks = %d, want 3", res.Ticks)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("operation ran %d times, want 3", got)
	}
}

func TestTimeoutOutcome(t *testing.T) {
	p := New()

	h := Start(context.Background(), p, "k",
		func(context.Context) (bool, error) { return false, nil },
		func(v bool) bool { return v },
		5*time.Millisecond, 30*time.Millisecond,
	)

	res, err := h.Wait(context.Background())
	if err != nil {
		t.Fatalf("wait failed: %v", err)
	}
	if res.Outcome != OutcomeTimedOut {
		t.Fatalf("outcome = %s, want timed_out", res.Outcome)
	}
	if p.Active("k") {
		t.Error("loop should be deregistered after timeout")
	}
}

func TestErrorsAreNotTerminal(t *testing.T) {
	p := New()
	var calls atomic.Int64

	h := Start(context.Background(), p, "k",
		func(context.Context) (bool, error) {
			if calls.Add(1) < 3 {
				return false, errors.New("transient outage")
			}
			return true, nil
		},
		func(v bool) bool { return v },
		5*time.Millisecond, time.Second,
	)

	res, err := h.Wait(context.Background())
	if err != nil {
		t.Fatalf("wait failed: %v", err)
	}
	if res.Outcome != OutcomeSatisfied {
		t.Fatalf("outcome = %s, want satisfied after transient errors", res.Outcome)
	}
	if res.Ticks != 3 {
		t.Errorf("ticks = %d, want 3", res.Ticks)
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	p := New()

	h := Start(context.Background(), p, "k",
		func(context.Context) (bool, error) { return false, nil },
		func(v bool) bool { return v },
		5*time.Millisecond, time.Second,
	)

	p.Cancel("k")
	p.Cancel("k") // second cancel is a no-op
	h.Cancel()

	res, err := h.Wait(context.Background())
	if err != nil {
		t.Fatalf("wait failed: %v", err)
	}
	if res.Outcome != OutcomeCanceled {
		t.Fatalf("outcome = %s, want canceled", res.Outcome)
	}
}

func TestReplaceOnRestart(t *testing.T) {
	p := New()
	var firstCalls, secondCalls atomic.Int64

	first := Start(context.Background(), p, "k",
		func(context.Context) (bool, error) {
			firstCalls.Add(1)
			return false, nil
		},
		func(v bool) bool { return v },
		5*time.Millisecond, time.Second,
	)

	// Re-issuing the key replaces the first loop.
	second := Start(context.Background(), p, "k",
		func(context.Context) (bool, error) {
			secondCalls.Add(1)
			return false, nil
		},
		func(v bool) bool { return v },
		5*time.Millisecond, time.Second,
	)

	res, err := first.Wait(context.Background())
	if err != nil {
		t.Fatalf("wait failed: %v", err)
	}
	if res.Outcome != OutcomeCanceled {
		t.Fatalf("replaced loop outcome = %s, want canceled", res.Outcome)
	}

	frozen := firstCalls.Load()
	time.Sleep(30 * time.Millisecond)
	if got := firstCalls.Load(); got != frozen {
		t.Errorf("replaced loop kept running: %d -> %d calls", frozen, got)
	}
	if secondCalls.Load() == 0 {
		t.Error("replacement loop never ran")
	}
	if !p.Active("k") {
		t.Error("replacement loop should still be registered")
	}

	second.Cancel()
	if _, err := second.Wait(context.Background()); err != nil {
		t.Fatalf("wait failed: %v", err)
	}
}

func TestObservationsStream(t *testing.T) {
	p := New()
	var calls atomic.Int64

	h := Start(context.Background(), p, "k",
		func(context.Context) (int, error) {
			return int(calls.Add(1)), nil
		},
		func(v int) bool { return v >= 2 },
		5*time.Millisecond, time.Second,
	)

	var seen []int
	for obs := range h.Observations() {
		if obs.Err == nil {
			seen = append(seen, obs.Value)
		}
	}
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Errorf("observations = %v, want [1 2]", seen)
	}
}

func TestTimeoutBoundsBlockedOperation(t *testing.T) {
	p := New()
	start := time.Now()

	h := Start(context.Background(), p, "k",
		func(ctx context.Context) (bool, error) {
			// A hung transport: only the loop's own deadline frees it.
			<-ctx.Done()
			return false, ctx.Err()
		},
		func(v bool) bool { return v },
		5*time.Millisecond, 30*time.Millisecond,
	)

	res, err := h.Wait(context.Background())
	if err != nil {
		t.Fatalf("wait failed: %v", err)
	}
	if res.Outcome != OutcomeTimedOut {
		t.Fatalf("outcome = %s, want timed_out", res.Outcome)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("blocked operation stretched the budget to %v", elapsed)
	}
}

func TestIndependentPollers(t *testing.T) {
	// Generation tokens are per-Poller state; two pollers driven from
	// separate goroutines must not share any mutable internals.
	p1, p2 := New(), New()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		for _, p := range []*Poller{p1, p2} {
			wg.Add(1)
			go func(p *Poller, key string) {
				defer wg.Done()
				h := Start(context.Background(), p, key,
					func(context.Context) (bool, error) { return true, nil },
					func(v bool) bool { return v },
					time.Millisecond, time.Second,
				)
				if res, err := h.Wait(context.Background()); err != nil || res.Outcome != OutcomeSatisfied {
					t.Errorf("key %s: outcome = %s, err = %v", key, res.Outcome, err)
				}
			}(p, fmt.Sprintf("k%d", i))
		}
	}
	wg.Wait()
}

func TestParentContextCancellation(t *testing.T) {
	p := New()
	ctx, cancel := context.WithCancel(context.Background())

	h := Start(ctx, p, "k",
		func(context.Context) (bool, error) { return false, nil },
		func(v bool) bool { return v },
		5*time.Millisecond, time.Second,
	)

	cancel()
	res, err := h.Wait(context.Background())
	if err != nil {
		t.Fatalf("wait failed: %v", err)
	}
	if res.Outcome != OutcomeCanceled {
		t.Fatalf("outcome = %s, want canceled", res.Outcome)
	}
}
