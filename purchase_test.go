package paywall_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	paywall "github.com/newsprint/paywall"
	"github.com/newsprint/paywall/content"
	"github.com/newsprint/paywall/purchase"
)

// fastPollOpts makes confirmation polling fast enough for tests.
func fastPollOpts(extra ...paywall.Option) []paywall.Option {
	opts := []paywall.Option{
		paywall.WithPollInterval(5 * time.Millisecond),
		paywall.WithPurchaseTimeout(2 * time.Second),
	}
	return append(opts, extra...)
}

// collectTransitions drains a subscription channel until it closes or the
// deadline expires, returning the observed state sequence.
func collectTransitions(t *testing.T, ch <-chan purchase.Transition) []purchase.State {
	t.Helper()

	var states []purchase.State
	deadline := time.After(5 * time.Second)
	for {
		select {
		case tr, ok := <-ch:
			if !ok {
				return states
			}
			states = append(states, tr.To)
		case <-deadline:
			t.Fatalf("timed out waiting for terminal transition, saw %v", states)
		}
	}
}

func TestRequestPurchaseValidation(t *testing.T) {
	ledger := &fakeLedger{submitTx: "0xtx"}
	e := newTestEngine(t, fastPollOpts(paywall.WithSources(ledger, &fakeIndex{}, nil))...)

	subItem := &content.Item{
		ID:          "post_v1",
		CreatorID:   "0xCREATOR",
		LicenseKind: content.DurationSubscription,
	}
	registerItem(t, e, subItem)

	meteredItem := &content.Item{
		ID:          "post_v2",
		CreatorID:   "0xCREATOR",
		LicenseKind: content.MeteredPerRequest,
	}
	registerItem(t, e, meteredItem)

	ctx := context.Background()

	if _, err := e.RequestPurchase(ctx, "", subItem.ID); !errors.Is(err, paywall.ErrViewerUnset) {
		t.Errorf("unset viewer: err = %v, want ErrViewerUnset", err)
	}
	if _, err := e.RequestPurchase(ctx, "0xviewer", "missing"); !errors.Is(err, paywall.ErrContentNotFound) {
		t.Errorf("unknown content: err = %v, want ErrContentNotFound", err)
	}
	if _, err := e.RequestPurchase(ctx, "0xviewer", meteredItem.ID); !errors.Is(err, paywall.ErrInvalidInput) {
		t.Errorf("metered item: err = %v, want ErrInvalidInput", err)
	}
	if _, err := e.RequestPurchase(ctx, "0xCREATOR", subItem.ID); !errors.Is(err, paywall.ErrAlreadyGranted) {
		t.Errorf("creator purchase: err = %v, want ErrAlreadyGranted", err)
	}
}

func TestRequestPurchaseNoLedgerConfigured(t *testing.T) {
	e := newTestEngine(t)

	item := &content.Item{
		ID:          "post_noledger",
		CreatorID:   "0xCREATOR",
		LicenseKind: content.DurationSubscription,
	}
	registerItem(t, e, item)

	if _, err := e.RequestPurchase(context.Background(), "0xviewer", item.ID); !errors.Is(err, paywall.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestRequestPurchaseDuplicate(t *testing.T) {
	gate := make(chan struct{})
	ledger := &fakeLedger{submitTx: "0xtx", submitGate: gate}
	e := newTestEngine(t, fastPollOpts(paywall.WithSources(ledger, &fakeIndex{}, nil))...)

	item := &content.Item{
		ID:          "post_dup",
		CreatorID:   "0xCREATOR",
		LicenseKind: content.DurationSubscription,
	}
	registerItem(t, e, item)

	ctx := context.Background()

	if _, err := e.RequestPurchase(ctx, "0xViewer", item.ID); err != nil {
		t.Fatal(err)
	}

	// Same pair, case-folded: still one attempt per (viewer, content).
	if _, err := e.RequestPurchase(ctx, "0xVIEWER", item.ID); !errors.Is(err, paywall.ErrAttemptInFlight) {
		t.Fatalf("duplicate: err = %v, want ErrAttemptInFlight", err)
	}

	ch, err := e.Subscribe("0xviewer", item.ID)
	if err != nil {
		t.Fatal(err)
	}

	// Release the submission; without a ledger record the loop times out,
	// but granting the record lets it settle.
	ledger.mu.Lock()
	ledger.expiry = time.Now().Unix() + 3600
	ledger.hasRecord = true
	ledger.mu.Unlock()
	close(gate)

	collectTransitions(t, ch)

	// Terminal state released the key: a fresh request is accepted.
	st := e.AttemptState("0xviewer", item.ID)
	if st.State != purchase.StateIdle {
		t.Fatalf("state after terminal = %q, want idle", st.State)
	}
}

func TestPurchaseInsufficientFunds(t *testing.T) {
	gate := make(chan struct{})
	ledger := &fakeLedger{submitErr: paywall.ErrInsufficientFunds, submitGate: gate}
	e := newTestEngine(t, fastPollOpts(paywall.WithSources(ledger, &fakeIndex{}, nil))...)

	item := &content.Item{
		ID:          "post_poor",
		CreatorID:   "0xCREATOR",
		LicenseKind: content.DurationSubscription,
	}
	registerItem(t, e, item)

	ctx := context.Background()
	attempt, err := e.RequestPurchase(ctx, "0xviewer", item.ID)
	if err != nil {
		t.Fatal(err)
	}
	if attempt.State != purchase.StateSubmitting {
		t.Fatalf("initial state = %q, want submitting", attempt.State)
	}

	ch, err := e.Subscribe("0xviewer", item.ID)
	if err != nil {
		t.Fatal(err)
	}
	close(gate)

	states := collectTransitions(t, ch)
	last := states[len(states)-1]
	if last != purchase.StateFailed {
		t.Fatalf("terminal state = %q, want failed", last)
	}

	// Submission failure never enters the confirmation loop.
	for _, s := range states {
		if s == purchase.StateAwaitingLedgerConfirmation {
			t.Fatal("rejected submission must not reach confirmation polling")
		}
	}

	// Failed attempts clear the registry so the viewer can retry.
	if st := e.AttemptState("0xviewer", item.ID); st.State != purchase.StateIdle {
		t.Fatalf("state after failure = %q, want idle", st.State)
	}
}

func TestPurchaseSubscriptionConfirms(t *testing.T) {
	gate := make(chan struct{})
	ledger := &fakeLedger{
		submitTx:   "0xtx_sub",
		submitGate: gate,
		expiry:     time.Now().Unix() + 3600,
		hasRecord:  true,
		grantAfter: 3,
	}
	e := newTestEngine(t, fastPollOpts(paywall.WithSources(ledger, &fakeIndex{}, nil))...)

	item := &content.Item{
		ID:          "post_confirm",
		CreatorID:   "0xCREATOR",
		LicenseKind: content.DurationSubscription,
	}
	registerItem(t, e, item)

	ctx := context.Background()
	if _, err := e.RequestPurchase(ctx, "0xviewer", item.ID); err != nil {
		t.Fatal(err)
	}

	ch, err := e.Subscribe("0xviewer", item.ID)
	if err != nil {
		t.Fatal(err)
	}
	close(gate)

	states := collectTransitions(t, ch)
	if len(states) < 2 {
		t.Fatalf("transitions = %v, want at least confirmation and granted", states)
	}
	if states[0] != purchase.StateAwaitingLedgerConfirmation {
		t.Errorf("first transition = %q, want awaiting_ledger_confirmation", states[0])
	}
	if states[len(states)-1] != purchase.StateGranted {
		t.Fatalf("terminal state = %q, want granted", states[len(states)-1])
	}

	// Subscription purchases settle on the ledger alone, never on the index.
	for _, s := range states {
		if s == purchase.StateAwaitingIndexConfirmation {
			t.Fatal("subscription purchase must not wait on the index")
		}
	}

	waitForReceipt(t, e, "0xviewer", item.ID, "0xtx_sub")
}

func TestPurchasePermanentWaitsForPayload(t *testing.T) {
	gate := make(chan struct{})
	ledger := &fakeLedger{submitTx: "0xtx_perm", submitGate: gate}
	index := &fakeIndex{granted: true, grantAfter: 2}
	payloads := &fakePayloads{body: []byte("# gated body")}
	e := newTestEngine(t, fastPollOpts(paywall.WithSources(ledger, index, payloads))...)

	item := &content.Item{
		ID:             "post_mint",
		CreatorID:      "0xCREATOR",
		LicenseKind:    content.PermanentSinglePayment,
		PayloadLocator: "ipfs://bafy.../post_mint",
	}
	registerItem(t, e, item)

	ctx := context.Background()
	if _, err := e.RequestPurchase(ctx, "0xviewer", item.ID); err != nil {
		t.Fatal(err)
	}

	ch, err := e.Subscribe("0xviewer", item.ID)
	if err != nil {
		t.Fatal(err)
	}
	close(gate)

	states := collectTransitions(t, ch)
	if states[len(states)-1] != purchase.StateGranted {
		t.Fatalf("terminal state = %q, want granted", states[len(states)-1])
	}

	sawIndexWait := false
	for _, s := range states {
		if s == purchase.StateAwaitingIndexConfirmation {
			sawIndexWait = true
		}
	}
	if !sawIndexWait {
		t.Fatalf("transitions = %v, want awaiting_index_confirmation before granted", states)
	}

	// The payload poll warmed the cache, so the fetch is served locally.
	before := atomic.LoadInt32(&payloads.calls)
	p, err := e.FetchContent(ctx, item.ID)
	if err != nil {
		t.Fatal(err)
	}
	if string(p.Body) != "# gated body" {
		t.Fatalf("payload body = %q", p.Body)
	}
	if after := atomic.LoadInt32(&payloads.calls); after != before {
		t.Fatalf("fetch after settle hit the source: %d -> %d calls", before, after)
	}

	waitForReceipt(t, e, "0xviewer", item.ID, "0xtx_perm")
}

func TestPurchasePayloadRetryIgnoresFailureTTL(t *testing.T) {
	// The payload host lags the grant: the first fetches fail. With a long
	// failure TTL the settling poll must still retry at the poll interval,
	// not once per TTL window.
	gate := make(chan struct{})
	ledger := &fakeLedger{submitTx: "0xtx_lag", submitGate: gate}
	index := &fakeIndex{granted: true, grantAfter: 1}
	payloads := &fakePayloads{body: []byte("late body"), failFirst: 2}
	e := newTestEngine(t, fastPollOpts(
		paywall.WithSources(ledger, index, payloads),
		paywall.WithFetchFailureTTL(time.Hour),
	)...)

	item := &content.Item{
		ID:             "post_lag",
		CreatorID:      "0xCREATOR",
		LicenseKind:    content.PermanentSinglePayment,
		PayloadLocator: "ipfs://bafy.../post_lag",
	}
	registerItem(t, e, item)

	ctx := context.Background()
	if _, err := e.RequestPurchase(ctx, "0xviewer", item.ID); err != nil {
		t.Fatal(err)
	}

	ch, err := e.Subscribe("0xviewer", item.ID)
	if err != nil {
		t.Fatal(err)
	}
	close(gate)

	states := collectTransitions(t, ch)
	if states[len(states)-1] != purchase.StateGranted {
		t.Fatalf("terminal state = %q, want granted despite payload lag", states[len(states)-1])
	}

	p, err := e.FetchContent(ctx, item.ID)
	if err != nil {
		t.Fatal(err)
	}
	if string(p.Body) != "late body" {
		t.Fatalf("payload body = %q", p.Body)
	}
}

func TestPurchaseConfirmationTimeout(t *testing.T) {
	ledger := &fakeLedger{submitTx: "0xtx_slow"}
	e := newTestEngine(t,
		paywall.WithSources(ledger, &fakeIndex{}, nil),
		paywall.WithPollInterval(5*time.Millisecond),
		paywall.WithPurchaseTimeout(40*time.Millisecond),
	)

	item := &content.Item{
		ID:          "post_slow",
		CreatorID:   "0xCREATOR",
		LicenseKind: content.DurationSubscription,
	}
	registerItem(t, e, item)

	ctx := context.Background()
	if _, err := e.RequestPurchase(ctx, "0xviewer", item.ID); err != nil {
		t.Fatal(err)
	}

	ch, err := e.Subscribe("0xviewer", item.ID)
	if err != nil {
		// Already terminal; acceptable for a 40ms budget.
		t.Skipf("attempt settled before subscription: %v", err)
	}

	states := collectTransitions(t, ch)
	if states[len(states)-1] != purchase.StateFailed {
		t.Fatalf("terminal state = %q, want failed", states[len(states)-1])
	}

	// No receipt is written for a failed attempt.
	receipts, err := e.ListReceipts(ctx, "0xviewer", purchase.ListOpts{ContentID: item.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(receipts) != 0 {
		t.Fatalf("receipts = %d, want 0", len(receipts))
	}
}

// waitForReceipt polls the receipt log until the settlement record appears.
// The receipt is written just after the terminal transition, so observers
// of the transition channel may race it briefly.
func waitForReceipt(t *testing.T, e *paywall.Engine, viewer content.Address, contentID, txRef string) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		receipts, err := e.ListReceipts(context.Background(), viewer, purchase.ListOpts{ContentID: contentID})
		if err != nil {
			t.Fatal(err)
		}
		if len(receipts) == 1 {
			if receipts[0].TxRef != txRef {
				t.Fatalf("receipt tx_ref = %q, want %q", receipts[0].TxRef, txRef)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("no receipt recorded after settlement")
}
