// Package poll provides a generic, cancellable scheduled-retry primitive
// for reconciling against eventually-consistent sources. Loops are keyed:
// starting a new loop for a key that already has one cancels the old loop
// first, so no two loops ever generate duplicate pressure for the same
// logical question. Cadence changes are made by re-issuing Start with a
// different interval.
package poll

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Outcome is the terminal state of a polling loop.
type Outcome string

const (
	// OutcomeSatisfied: the predicate accepted an observation.
	OutcomeSatisfied Outcome = "satisfied"

	// OutcomeTimedOut: maxDuration elapsed before satisfaction.
	OutcomeTimedOut Outcome = "timed_out"

	// OutcomeCanceled: the loop was canceled, replaced, or its parent
	// context ended.
	OutcomeCanceled Outcome = "canceled"
)

// Observation is one operation invocation's result. An Err observation
// counts as "not yet satisfied", never as a terminal failure: only
// maxDuration or cancellation stop a persistently failing loop.
type Observation[T any] struct {
	Value T
	Err   error
	At    time.Time
}

// Result summarizes a finished loop.
type Result[T any] struct {
	Outcome Outcome
	Last    Observation[T]
	Ticks   int
}

// Poller owns the keyed loop registry. The zero value is not usable;
// create one with New.
type Poller struct {
	mu         sync.Mutex
	loops      map[string]*loopEntry
	genCounter uint64
	logger     *slog.Logger
}

type loopEntry struct {
	cancel context.CancelFunc
	gen    uint64
}

// Option configures a Poller.
type Option func(*Poller)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Poller) { p.logger = logger }
}

// New creates a Poller.
func New(opts ...Option) *Poller {
	p := &Poller{
		loops:  make(map[string]*loopEntry),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Cancel stops the loop for key, if any. Canceling an absent or
// already-stopped loop is a no-op, not an error.
func (p *Poller) Cancel(key string) {
	p.mu.Lock()
	entry, ok := p.loops[key]
	if ok {
		delete(p.loops, key)
	}
	p.mu.Unlock()

	if ok {
		entry.cancel()
	}
}

// CancelAll stops every running loop.
func (p *Poller) CancelAll() {
	p.mu.Lock()
	entries := make([]*loopEntry, 0, len(p.loops))
	for _, e := range p.loops {
		entries = append(entries, e)
	}
	p.loops = make(map[string]*loopEntry)
	p.mu.Unlock()

	for _, e := range entries {
		e.cancel()
	}
}

// Active reports whether a loop is currently registered for key.
func (p *Poller) Active(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.loops[key]
	return ok
}

// register installs a cancel func for key, canceling any previous loop
// (replace-on-restart), and returns the generation token for cleanup.
func (p *Poller) register(key string, cancel context.CancelFunc) uint64 {
	p.mu.Lock()
	prev := p.loops[key]
	p.genCounter++
	gen := p.genCounter
	p.loops[key] = &loopEntry{cancel: cancel, gen: gen}
	p.mu.Unlock()

	if prev != nil {
		p.logger.Debug("replacing polling loop", "key", key)
		prev.cancel()
	}
	return gen
}

// deregister removes the loop for key only if it still owns the slot.
func (p *Poller) deregister(key string, gen uint64) {
	p.mu.Lock()
	if entry, ok := p.loops[key]; ok && entry.gen == gen {
		delete(p.loops, key)
	}
	p.mu.Unlock()
}

// Handle observes one running loop.
type Handle[T any] struct {
	obs    chan Observation[T]
	done   chan Result[T]
	cancel context.CancelFunc
}

// Observations streams each operation result as it arrives. The stream
// is best-effort: slow consumers miss intermediate observations rather
// than stalling the loop. It is closed when the loop ends.
func (h *Handle[T]) Observations() <-chan Observation[T] { return h.obs }

// Cancel stops the loop. Idempotent.
func (h *Handle[T]) Cancel() { h.cancel() }

// Wait blocks until the loop reaches a terminal outcome or ctx ends.
func (h *Handle[T]) Wait(ctx context.Context) (Result[T], error) {
	select {
	case res := <-h.done:
		return res, nil
	case <-ctx.Done():
		h.cancel()
		return Result[T]{Outcome: OutcomeCanceled}, ctx.Err()
	}
}

// Start begins a polling loop for key. The operation runs immediately and
// then once per interval until isSatisfied accepts a value, maxDuration
// elapses, or the loop is canceled or replaced. The operation's context
// carries the maxDuration deadline, so a tick hung on a dead transport is
// cut off at the budget rather than stretching it. Operation errors are
// logged and treated as unsatisfied observations.
func Start[T any](
	ctx context.Context,
	p *Poller,
	key string,
	operation func(context.Context) (T, error),
	isSatisfied func(T) bool,
	interval time.Duration,
	maxDuration time.Duration,
) *Handle[T] {
	loopCtx, cancel := context.WithTimeout(ctx, maxDuration)
	gen := p.register(key, cancel)

	h := &Handle[T]{
		obs:    make(chan Observation[T], 16),
		done:   make(chan Result[T], 1),
		cancel: cancel,
	}

	go func() {
		defer p.deregister(key, gen)
		defer close(h.obs)
		defer cancel()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var last Observation[T]
		ticks := 0

		finish := func(outcome Outcome) {
			h.done <- Result[T]{Outcome: outcome, Last: last, Ticks: ticks}
		}

		// ctxOutcome distinguishes the budget elapsing from cancellation.
		ctxOutcome := func() Outcome {
			if errors.Is(loopCtx.Err(), context.DeadlineExceeded) {
				return OutcomeTimedOut
			}
			return OutcomeCanceled
		}

		for {
			value, err := operation(loopCtx)
			ticks++
			last = Observation[T]{Value: value, Err: err, At: time.Now()}

			// Drop observations nobody is draining.
			select {
			case h.obs <- last:
			default:
			}

			switch {
			case loopCtx.Err() != nil:
				finish(ctxOutcome())
				return
			case err != nil:
				p.logger.Debug("poll tick failed", "key", key, "error", err)
			case isSatisfied(value):
				finish(OutcomeSatisfied)
				return
			}

			select {
			case <-loopCtx.Done():
				finish(ctxOutcome())
				return
			case <-ticker.C:
			}
		}
	}()

	return h
}
