package paywall_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	paywall "github.com/newsprint/paywall"
	"github.com/newsprint/paywall/content"
	"github.com/newsprint/paywall/entitlement"
	"github.com/newsprint/paywall/store/memory"
	"github.com/newsprint/paywall/types"
)

// fakeLedger is a scriptable source.Ledger for tests.
type fakeLedger struct {
	mu sync.Mutex

	expiry    int64
	hasRecord bool
	expiryErr error

	// grantAfter delays the expiry record by N SubscriptionExpiry calls,
	// simulating ledger settlement lag.
	grantAfter int

	submitTx   string
	submitErr  error
	submitGate chan struct{}
	submits    int32
}

func (f *fakeLedger) SubscriptionExpiry(_ context.Context, _ content.Address, _ string) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.expiryErr != nil {
		return 0, false, f.expiryErr
	}
	if f.grantAfter > 0 {
		f.grantAfter--
		return 0, false, nil
	}
	return f.expiry, f.hasRecord, nil
}

func (f *fakeLedger) SubmitPurchase(_ context.Context, _ content.Address, _ *content.Item) (string, error) {
	atomic.AddInt32(&f.submits, 1)
	if f.submitGate != nil {
		<-f.submitGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return f.submitTx, nil
}

// fakeIndex is a scriptable source.Index for tests.
type fakeIndex struct {
	mu sync.Mutex

	granted bool
	err     error

	// grantAfter delays the grant by N HasPermanentGrant calls,
	// simulating subgraph indexing lag.
	grantAfter int
}

func (f *fakeIndex) HasPermanentGrant(_ context.Context, _ content.Address, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return false, f.err
	}
	if f.grantAfter > 0 {
		f.grantAfter--
		return false, nil
	}
	return f.granted, nil
}

// fakePayloads is a scriptable source.Payloads for tests.
type fakePayloads struct {
	mu sync.Mutex

	body      []byte
	err       error
	failFirst int
	delay     time.Duration
	calls     int32
}

func (f *fakePayloads) Fetch(_ context.Context, item *content.Item) (*content.Payload, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFirst > 0 {
		f.failFirst--
		return nil, errors.New("payload not yet pinned")
	}
	if f.err != nil {
		return nil, f.err
	}
	return &content.Payload{
		ContentID: item.ID,
		Body:      f.body,
		MediaType: "text/markdown",
		FetchedAt: time.Now().UTC(),
	}, nil
}

func newTestEngine(t *testing.T, opts ...paywall.Option) *paywall.Engine {
	t.Helper()
	return paywall.New(memory.New(), opts...)
}

func registerItem(t *testing.T, e *paywall.Engine, item *content.Item) {
	t.Helper()
	if item.Price.Symbol == "" {
		item.Price = types.CAMP("5")
	}
	if err := e.RegisterContent(context.Background(), item); err != nil {
		t.Fatalf("RegisterContent(%s): %v", item.ID, err)
	}
}

func TestResolveCreatorPrecedence(t *testing.T) {
	// A failing ledger must not matter: the creator check is pure metadata
	// and wins before any source is consulted.
	ledger := &fakeLedger{expiryErr: errors.New("rpc down")}
	e := newTestEngine(t, paywall.WithSources(ledger, &fakeIndex{err: errors.New("subgraph down")}, nil))

	item := &content.Item{
		ID:          "post_1",
		Title:       "Genesis",
		CreatorID:   "0xAAA",
		LicenseKind: content.DurationSubscription,
	}
	registerItem(t, e, item)

	tests := []struct {
		name    string
		viewer  content.Address
		granted bool
		reason  entitlement.Reason
	}{
		{"exact case", "0xAAA", true, entitlement.IsCreator},
		{"lowercased viewer", "0xaaa", true, entitlement.IsCreator},
		{"whitespace padded", "  0xAaA ", true, entitlement.IsCreator},
		{"different address", "0xBBB", false, entitlement.NoGrant},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := e.Resolve(context.Background(), tt.viewer, item)
			if d.Granted != tt.granted {
				t.Errorf("Granted = %v, want %v", d.Granted, tt.granted)
			}
			if d.Reason != tt.reason {
				t.Errorf("Reason = %q, want %q", d.Reason, tt.reason)
			}
		})
	}

	// The creator check also wins over the metered gate: metered content
	// denies every viewer except its creator.
	metered := &content.Item{
		ID:          "post_1_metered",
		CreatorID:   "0xAAA",
		LicenseKind: content.MeteredPerRequest,
	}
	registerItem(t, e, metered)

	t.Run("creator of metered item", func(t *testing.T) {
		d := e.Resolve(context.Background(), "0xaaa", metered)
		if !d.Granted || d.Reason != entitlement.IsCreator {
			t.Fatalf("Granted = %v Reason = %q, want creator grant", d.Granted, d.Reason)
		}
	})
}

func TestResolveSubscription(t *testing.T) {
	now := time.Now().Unix()

	tests := []struct {
		name      string
		expiry    int64
		hasRecord bool
		granted   bool
		reason    entitlement.Reason
	}{
		{"active subscription", now + 3600, true, true, entitlement.ActiveSubscription},
		{"expired subscription", now - 10, true, false, entitlement.NoGrant},
		{"no record", 0, false, false, entitlement.NoGrant},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := &fakeLedger{expiry: tt.expiry, hasRecord: tt.hasRecord}
			e := newTestEngine(t, paywall.WithSources(ledger, &fakeIndex{}, nil))

			item := &content.Item{
				ID:              "post_sub",
				CreatorID:       "0xCREATOR",
				LicenseKind:     content.DurationSubscription,
				DurationSeconds: 3600,
			}
			registerItem(t, e, item)

			d := e.Resolve(context.Background(), "0xviewer", item)
			if d.Granted != tt.granted {
				t.Errorf("Granted = %v, want %v", d.Granted, tt.granted)
			}
			if d.Reason != tt.reason {
				t.Errorf("Reason = %q, want %q", d.Reason, tt.reason)
			}
		})
	}
}

func TestResolvePermanentGrant(t *testing.T) {
	tests := []struct {
		name    string
		indexed bool
		granted bool
		reason  entitlement.Reason
	}{
		{"grant recorded", true, true, entitlement.PermanentGrantRecorded},
		{"no grant", false, false, entitlement.NoGrant},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, paywall.WithSources(&fakeLedger{}, &fakeIndex{granted: tt.indexed}, nil))

			item := &content.Item{
				ID:          "post_perm",
				CreatorID:   "0xCREATOR",
				LicenseKind: content.PermanentSinglePayment,
			}
			registerItem(t, e, item)

			d := e.Resolve(context.Background(), "0xviewer", item)
			if d.Granted != tt.granted {
				t.Errorf("Granted = %v, want %v", d.Granted, tt.granted)
			}
			if d.Reason != tt.reason {
				t.Errorf("Reason = %q, want %q", d.Reason, tt.reason)
			}
		})
	}
}

func TestResolveMeteredNeverPreGranted(t *testing.T) {
	// Even with a ledger subscription record and an index grant on file,
	// metered items always demand payment at the fetch boundary.
	ledger := &fakeLedger{expiry: time.Now().Unix() + 3600, hasRecord: true}
	e := newTestEngine(t, paywall.WithSources(ledger, &fakeIndex{granted: true}, nil))

	item := &content.Item{
		ID:          "post_metered",
		CreatorID:   "0xCREATOR",
		LicenseKind: content.MeteredPerRequest,
	}
	registerItem(t, e, item)

	d := e.Resolve(context.Background(), "0xviewer", item)
	if d.Granted {
		t.Fatal("metered content must never be pre-granted")
	}
	if d.Reason != entitlement.MeteredPaymentRequired {
		t.Fatalf("Reason = %q, want %q", d.Reason, entitlement.MeteredPaymentRequired)
	}
}

func TestResolveFailsClosed(t *testing.T) {
	tests := []struct {
		name string
		kind content.LicenseKind
	}{
		{"ledger outage", content.DurationSubscription},
		{"index outage", content.PermanentSinglePayment},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := &fakeLedger{expiryErr: errors.New("connection refused")}
			index := &fakeIndex{err: errors.New("502 bad gateway")}
			e := newTestEngine(t, paywall.WithSources(ledger, index, nil))

			item := &content.Item{
				ID:          "post_outage",
				CreatorID:   "0xCREATOR",
				LicenseKind: tt.kind,
			}
			registerItem(t, e, item)

			d := e.Resolve(context.Background(), "0xviewer", item)
			if d.Granted {
				t.Fatal("source outage must deny, not grant")
			}
			if d.Reason != entitlement.NoGrant {
				t.Fatalf("Reason = %q, want %q", d.Reason, entitlement.NoGrant)
			}
		})
	}
}

func TestResolveViewerUnset(t *testing.T) {
	e := newTestEngine(t, paywall.WithSources(&fakeLedger{}, &fakeIndex{granted: true}, nil))

	item := &content.Item{
		ID:          "post_anon",
		CreatorID:   "0xCREATOR",
		LicenseKind: content.PermanentSinglePayment,
	}
	registerItem(t, e, item)

	d := e.Resolve(context.Background(), "", item)
	if d.Granted {
		t.Fatal("anonymous viewer must not be granted")
	}
	if d.Reason != entitlement.NoGrant {
		t.Fatalf("Reason = %q, want %q", d.Reason, entitlement.NoGrant)
	}
}

func TestResolveByIDUnknownContent(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.ResolveByID(context.Background(), "0xviewer", "missing")
	if !errors.Is(err, paywall.ErrContentNotFound) {
		t.Fatalf("err = %v, want ErrContentNotFound", err)
	}
}

func TestPreviewTruncates(t *testing.T) {
	e := newTestEngine(t)

	long := strings.Repeat("a", 500)
	item := &content.Item{
		ID:          "post_preview",
		CreatorID:   "0xCREATOR",
		LicenseKind: content.PermanentSinglePayment,
		Excerpt:     long,
	}
	registerItem(t, e, item)

	got, err := e.Preview(context.Background(), item.ID)
	if err != nil {
		t.Fatal(err)
	}
	want := strings.Repeat("a", 280) + "..."
	if got != want {
		t.Fatalf("preview length = %d, want 280 runes plus ellipsis", len(got))
	}
}
