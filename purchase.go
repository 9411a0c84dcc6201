package paywall

import (
	"context"
	"errors"
	"time"

	"github.com/newsprint/paywall/content"
	"github.com/newsprint/paywall/entitlement"
	"github.com/newsprint/paywall/id"
	"github.com/newsprint/paywall/poll"
	"github.com/newsprint/paywall/purchase"
	"github.com/newsprint/paywall/types"
)

// attemptEntry holds one active purchase attempt and its subscribers.
// All fields are guarded by Engine.attemptMu.
type attemptEntry struct {
	key     string
	attempt *purchase.Attempt
	subs    []chan purchase.Transition
}

// RequestPurchase begins the purchase-to-confirmation pipeline for
// (viewer, content). It is rejected when the viewer is unset, when an
// attempt for the pair is already in flight, or when the viewer already
// holds access. The returned attempt is a snapshot; follow transitions
// via Subscribe. The pipeline runs in the background: submission, ledger
// confirmation polling, and for permanent licenses an additional wait
// until the gated payload itself resolves.
func (e *Engine) RequestPurchase(ctx context.Context, viewer content.Address, contentID string) (*purchase.Attempt, error) {
	if viewer.IsZero() {
		return nil, ErrViewerUnset
	}
	if e.ledger == nil {
		return nil, ErrUnavailable
	}

	item, err := e.store.GetContent(ctx, contentID)
	if err != nil {
		return nil, err
	}
	if item.MeteredPaymentRequired() {
		// Metered content is paid per request at the fetch boundary,
		// there is nothing to purchase up front.
		return nil, ErrInvalidInput
	}

	if d := e.Resolve(ctx, viewer, item); d.Granted {
		return nil, ErrAlreadyGranted
	}

	key := purchase.Key(viewer, contentID)

	e.attemptMu.Lock()
	if _, exists := e.attempts[key]; exists {
		e.attemptMu.Unlock()
		return nil, ErrAttemptInFlight
	}
	entry := &attemptEntry{
		key: key,
		attempt: &purchase.Attempt{
			ID:        id.NewAttemptID(),
			ContentID: contentID,
			Viewer:    viewer.Normalize(),
			State:     purchase.StateSubmitting,
			StartedAt: time.Now().UTC(),
		},
	}
	e.attempts[key] = entry
	snapshot := *entry.attempt
	e.attemptMu.Unlock()

	e.plugins.EmitPurchaseStarted(ctx, &snapshot)
	e.logger.Info("purchase started",
		"viewer", viewer.Normalize(),
		"content_id", contentID,
		"license_kind", item.LicenseKind,
	)

	go e.runPurchase(entry, viewer, item)

	return &snapshot, nil
}

// AttemptState returns a snapshot of the active attempt for the pair, or
// an idle placeholder when none is in flight.
func (e *Engine) AttemptState(viewer content.Address, contentID string) *purchase.Attempt {
	e.attemptMu.Lock()
	defer e.attemptMu.Unlock()

	if entry, ok := e.attempts[purchase.Key(viewer, contentID)]; ok {
		snapshot := *entry.attempt
		return &snapshot
	}
	return &purchase.Attempt{
		ContentID: contentID,
		Viewer:    viewer.Normalize(),
		State:     purchase.StateIdle,
	}
}

// Subscribe returns a channel of state transitions for the active attempt
// on (viewer, content). The channel is closed when the attempt reaches a
// terminal state. Slow consumers miss intermediate transitions rather
// than stalling the pipeline.
func (e *Engine) Subscribe(viewer content.Address, contentID string) (<-chan purchase.Transition, error) {
	e.attemptMu.Lock()
	defer e.attemptMu.Unlock()

	entry, ok := e.attempts[purchase.Key(viewer, contentID)]
	if !ok {
		return nil, ErrNotFound
	}

	ch := make(chan purchase.Transition, 16)
	entry.subs = append(entry.subs, ch)
	return ch, nil
}

// runPurchase drives one attempt from submission to a terminal state.
// Transitions within the attempt are strictly sequential.
func (e *Engine) runPurchase(entry *attemptEntry, viewer content.Address, item *content.Item) {
	// The pipeline outlives the request that started it.
	ctx := context.Background()

	txRef, err := e.ledger.SubmitPurchase(ctx, viewer, item)
	if err != nil {
		e.failAttempt(ctx, entry, classifyFailure(err), err)
		return
	}

	e.transition(ctx, entry, purchase.StateAwaitingLedgerConfirmation, func(a *purchase.Attempt) {
		a.TxRef = txRef
	})

	// Ledger settlement surfaces through the same resolver the UI uses.
	h := poll.Start(ctx, e.poller, entry.key,
		func(ctx context.Context) (*entitlement.Decision, error) {
			e.touchPoll(entry)
			return e.Resolve(ctx, viewer, item), nil
		},
		func(d *entitlement.Decision) bool { return d.Granted },
		e.pollInterval,
		e.purchaseTimeout,
	)
	if !awaitLoop(ctx, e, entry, h.Wait) {
		return
	}

	// Permanent licenses additionally wait for the gated payload itself:
	// a granted decision with no retrievable payload is not enough for
	// the content to display.
	if item.LicenseKind == content.PermanentSinglePayment {
		e.transition(ctx, entry, purchase.StateAwaitingIndexConfirmation, nil)

		h := poll.Start(ctx, e.poller, entry.key,
			func(ctx context.Context) (*content.Payload, error) {
				e.touchPoll(entry)
				return e.fetchSettling(ctx, item.ID)
			},
			func(p *content.Payload) bool { return p != nil },
			e.pollInterval,
			e.purchaseTimeout,
		)
		if !awaitLoop(ctx, e, entry, h.Wait) {
			return
		}
	}

	e.transition(ctx, entry, purchase.StateGranted, nil)

	receipt := &purchase.Receipt{
		Entity:    types.NewEntity(),
		ID:        id.NewReceiptID(),
		ContentID: item.ID,
		Viewer:    viewer.Normalize(),
		Kind:      item.LicenseKind,
		Amount:    item.Price,
		TxRef:     txRef,
		SettledAt: time.Now().UTC(),
	}
	if err := e.store.RecordReceipt(ctx, receipt); err != nil {
		e.logger.Error("failed to record receipt",
			"content_id", item.ID,
			"tx_ref", txRef,
			"error", err,
		)
		return
	}
	e.plugins.EmitPurchaseSettled(ctx, receipt)
}

// awaitLoop waits out one confirmation polling loop. It returns true when
// the loop was satisfied, and finalizes the attempt otherwise.
func awaitLoop[T any](ctx context.Context, e *Engine, entry *attemptEntry, wait func(context.Context) (poll.Result[T], error)) bool {
	res, err := wait(ctx)
	if err != nil {
		e.failAttempt(ctx, entry, purchase.CauseUnavailable, err)
		return false
	}

	switch res.Outcome {
	case poll.OutcomeSatisfied:
		return true
	case poll.OutcomeTimedOut:
		e.failAttempt(ctx, entry, purchase.CauseTimeout, ErrTimeout)
		return false
	default:
		// Canceled: shutdown or replaced. Clear the key either way.
		e.failAttempt(ctx, entry, purchase.CauseUnavailable, context.Canceled)
		return false
	}
}

// transition moves the attempt to a new state, notifies subscribers and
// plugins, and releases the registry key at terminal states.
func (e *Engine) transition(ctx context.Context, entry *attemptEntry, to purchase.State, mutate func(*purchase.Attempt)) {
	e.attemptMu.Lock()
	from := entry.attempt.State
	entry.attempt.State = to
	if mutate != nil {
		mutate(entry.attempt)
	}
	snapshot := *entry.attempt
	subs := entry.subs
	if to.Terminal() {
		delete(e.attempts, entry.key)
	}
	e.attemptMu.Unlock()

	tr := purchase.Transition{
		Attempt: snapshot,
		From:    from,
		To:      to,
		At:      time.Now().UTC(),
	}

	for _, ch := range subs {
		select {
		case ch <- tr:
		default:
		}
	}
	if to.Terminal() {
		for _, ch := range subs {
			close(ch)
		}
	}

	e.plugins.EmitPurchaseStateChanged(ctx, &tr)
	e.logger.Debug("purchase state changed",
		"viewer", snapshot.Viewer,
		"content_id", snapshot.ContentID,
		"from", from,
		"to", to,
	)
}

// failAttempt finalizes the attempt with a categorized cause.
func (e *Engine) failAttempt(ctx context.Context, entry *attemptEntry, cause purchase.FailCause, failErr error) {
	e.transition(ctx, entry, purchase.StateFailed, func(a *purchase.Attempt) {
		a.Cause = cause
		a.Err = failErr
	})

	e.attemptMu.Lock()
	snapshot := *entry.attempt
	e.attemptMu.Unlock()

	e.plugins.EmitPurchaseFailed(ctx, &snapshot, failErr)
	e.logger.Warn("purchase failed",
		"viewer", snapshot.Viewer,
		"content_id", snapshot.ContentID,
		"cause", cause,
		"error", failErr,
	)
}

func (e *Engine) touchPoll(entry *attemptEntry) {
	e.attemptMu.Lock()
	entry.attempt.LastPollAt = time.Now().UTC()
	e.attemptMu.Unlock()
}

// classifyFailure maps a submission error to its user-facing category.
func classifyFailure(err error) purchase.FailCause {
	switch {
	case errors.Is(err, ErrRejected):
		return purchase.CauseRejected
	case errors.Is(err, ErrInsufficientFunds):
		return purchase.CauseInsufficientFunds
	default:
		return purchase.CauseUnavailable
	}
}
