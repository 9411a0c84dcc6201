package paywall_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	paywall "github.com/newsprint/paywall"
	"github.com/newsprint/paywall/content"
)

func TestFetchContentSingleFlight(t *testing.T) {
	payloads := &fakePayloads{body: []byte("body"), delay: 20 * time.Millisecond}
	e := newTestEngine(t, paywall.WithSources(&fakeLedger{}, &fakeIndex{}, payloads))

	item := &content.Item{
		ID:             "post_flight",
		CreatorID:      "0xCREATOR",
		LicenseKind:    content.PermanentSinglePayment,
		PayloadLocator: "ipfs://bafy.../post_flight",
	}
	registerItem(t, e, item)

	const callers = 10
	var wg sync.WaitGroup
	results := make([]*content.Payload, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = e.FetchContent(context.Background(), item.ID)
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if string(results[i].Body) != "body" {
			t.Fatalf("caller %d: body = %q", i, results[i].Body)
		}
	}

	if calls := atomic.LoadInt32(&payloads.calls); calls != 1 {
		t.Fatalf("source calls = %d, want 1 for %d concurrent callers", calls, callers)
	}

	// Memoized for the process lifetime: a later call stays local.
	if _, err := e.FetchContent(context.Background(), item.ID); err != nil {
		t.Fatal(err)
	}
	if calls := atomic.LoadInt32(&payloads.calls); calls != 1 {
		t.Fatalf("source calls = %d after cached fetch, want 1", calls)
	}
}

func TestFetchContentNegativeCache(t *testing.T) {
	fetchErr := errors.New("gateway timeout")
	payloads := &fakePayloads{err: fetchErr}
	e := newTestEngine(t,
		paywall.WithSources(&fakeLedger{}, &fakeIndex{}, payloads),
		paywall.WithFetchFailureTTL(30*time.Millisecond),
	)

	item := &content.Item{
		ID:             "post_flaky",
		CreatorID:      "0xCREATOR",
		LicenseKind:    content.PermanentSinglePayment,
		PayloadLocator: "ipfs://bafy.../post_flaky",
	}
	registerItem(t, e, item)

	ctx := context.Background()

	if _, err := e.FetchContent(ctx, item.ID); !errors.Is(err, fetchErr) {
		t.Fatalf("first fetch: err = %v, want %v", err, fetchErr)
	}

	// The source recovers, but the failure is remembered for the TTL.
	payloads.mu.Lock()
	payloads.err = nil
	payloads.body = []byte("recovered")
	payloads.mu.Unlock()

	if _, err := e.FetchContent(ctx, item.ID); !errors.Is(err, fetchErr) {
		t.Fatalf("within TTL: err = %v, want remembered failure", err)
	}
	if calls := atomic.LoadInt32(&payloads.calls); calls != 1 {
		t.Fatalf("source calls = %d within TTL, want 1", calls)
	}

	time.Sleep(40 * time.Millisecond)

	p, err := e.FetchContent(ctx, item.ID)
	if err != nil {
		t.Fatalf("after TTL: %v", err)
	}
	if string(p.Body) != "recovered" {
		t.Fatalf("body = %q, want recovered payload", p.Body)
	}
}

func TestFetchContentLocatorUnset(t *testing.T) {
	e := newTestEngine(t, paywall.WithSources(&fakeLedger{}, &fakeIndex{}, &fakePayloads{}))

	item := &content.Item{
		ID:          "post_unminted",
		CreatorID:   "0xCREATOR",
		LicenseKind: content.PermanentSinglePayment,
	}
	registerItem(t, e, item)

	if _, err := e.FetchContent(context.Background(), item.ID); !errors.Is(err, paywall.ErrLocatorUnset) {
		t.Fatalf("err = %v, want ErrLocatorUnset", err)
	}
}

func TestFetchContentNoSourceConfigured(t *testing.T) {
	e := newTestEngine(t)

	item := &content.Item{
		ID:             "post_nosource",
		CreatorID:      "0xCREATOR",
		LicenseKind:    content.PermanentSinglePayment,
		PayloadLocator: "ipfs://bafy.../post_nosource",
	}
	registerItem(t, e, item)

	if _, err := e.FetchContent(context.Background(), item.ID); !errors.Is(err, paywall.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestFetchContentUnknownContent(t *testing.T) {
	e := newTestEngine(t)

	if _, err := e.FetchContent(context.Background(), "missing"); !errors.Is(err, paywall.ErrContentNotFound) {
		t.Fatalf("err = %v, want ErrContentNotFound", err)
	}
}
