package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	paywall "github.com/newsprint/paywall"
	"github.com/newsprint/paywall/access"
	"github.com/newsprint/paywall/content"
	"github.com/newsprint/paywall/entitlement"
	"github.com/newsprint/paywall/id"
	"github.com/newsprint/paywall/purchase"
	"github.com/newsprint/paywall/types"
)

func newItem(contentID string, creator content.Address, kind content.LicenseKind) *content.Item {
	return &content.Item{
		Entity:      types.NewEntity(),
		ID:          contentID,
		Title:       "t",
		CreatorID:   creator,
		LicenseKind: kind,
		Price:       types.CAMP("1"),
		PublishedAt: time.Now().UTC(),
	}
}

func TestContentRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()

	item := newItem("post_1", "0xAAA", content.DurationSubscription)
	if err := s.PutContent(ctx, item); err != nil {
		t.Fatal(err)
	}
	if err := s.PutContent(ctx, item); !errors.Is(err, paywall.ErrAlreadyExists) {
		t.Fatalf("duplicate put: err = %v, want ErrAlreadyExists", err)
	}

	got, err := s.GetContent(ctx, "post_1")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != item.ID || !got.CreatorID.Equal(item.CreatorID) {
		t.Fatalf("got = %+v", got)
	}

	// Returned items are copies, not aliases into the store.
	got.Title = "mutated"
	again, _ := s.GetContent(ctx, "post_1")
	if again.Title == "mutated" {
		t.Fatal("GetContent returned an aliased item")
	}

	if _, err := s.GetContent(ctx, "missing"); !errors.Is(err, paywall.ErrContentNotFound) {
		t.Fatalf("missing get: err = %v, want ErrContentNotFound", err)
	}
}

func TestListContentFilters(t *testing.T) {
	s := New()
	ctx := context.Background()

	for _, item := range []*content.Item{
		newItem("post_a", "0xAAA", content.DurationSubscription),
		newItem("post_b", "0xAAA", content.PermanentSinglePayment),
		newItem("post_c", "0xBBB", content.PermanentSinglePayment),
	} {
		if err := s.PutContent(ctx, item); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name string
		opts content.ListOpts
		want int
	}{
		{"all", content.ListOpts{}, 3},
		{"by creator", content.ListOpts{Creator: "0xaaa"}, 2},
		{"by kind", content.ListOpts{Kind: content.PermanentSinglePayment}, 2},
		{"creator and kind", content.ListOpts{Creator: "0xAAA", Kind: content.PermanentSinglePayment}, 1},
		{"limit", content.ListOpts{Limit: 2}, 2},
		{"offset past end", content.ListOpts{Offset: 10, Limit: 5}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListContent(ctx, tt.opts)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != tt.want {
				t.Fatalf("len = %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestSetPayloadLocator(t *testing.T) {
	s := New()
	ctx := context.Background()

	item := newItem("post_loc", "0xAAA", content.PermanentSinglePayment)
	if err := s.PutContent(ctx, item); err != nil {
		t.Fatal(err)
	}

	if err := s.SetPayloadLocator(ctx, "post_loc", "ipfs://bafy.../post_loc"); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetContent(ctx, "post_loc")
	if got.PayloadLocator != "ipfs://bafy.../post_loc" {
		t.Fatalf("locator = %q", got.PayloadLocator)
	}

	if err := s.SetPayloadLocator(ctx, "missing", "x"); !errors.Is(err, paywall.ErrContentNotFound) {
		t.Fatalf("missing: err = %v, want ErrContentNotFound", err)
	}
}

func TestReceipts(t *testing.T) {
	s := New()
	ctx := context.Background()

	r := &purchase.Receipt{
		Entity:    types.NewEntity(),
		ID:        id.NewReceiptID(),
		ContentID: "post_1",
		Viewer:    "0xviewer",
		Kind:      content.PermanentSinglePayment,
		Amount:    types.CAMP("5"),
		TxRef:     "0xtx",
		SettledAt: time.Now().UTC(),
	}
	if err := s.RecordReceipt(ctx, r); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordReceipt(ctx, r); !errors.Is(err, paywall.ErrAlreadyExists) {
		t.Fatalf("duplicate record: err = %v, want ErrAlreadyExists", err)
	}

	got, err := s.GetReceipt(ctx, r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.TxRef != "0xtx" {
		t.Fatalf("tx_ref = %q", got.TxRef)
	}

	// Viewer match is case-insensitive.
	list, err := s.ListReceipts(ctx, "0xVIEWER", purchase.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("len = %d, want 1", len(list))
	}

	list, err = s.ListReceipts(ctx, "0xviewer", purchase.ListOpts{ContentID: "other"})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Fatalf("filtered len = %d, want 0", len(list))
	}
}

func TestAccessLog(t *testing.T) {
	s := New()
	ctx := context.Background()

	base := time.Now().UTC()
	events := []*access.Event{
		{ID: id.NewAccessEventID(), ContentID: "post_1", Viewer: "0xaaa", Granted: true, Reason: entitlement.IsCreator, Timestamp: base.Add(-2 * time.Hour)},
		{ID: id.NewAccessEventID(), ContentID: "post_1", Viewer: "0xbbb", Granted: false, Reason: entitlement.NoGrant, Timestamp: base.Add(-time.Hour)},
		{ID: id.NewAccessEventID(), ContentID: "post_2", Viewer: "0xbbb", Granted: false, Reason: entitlement.NoGrant, Timestamp: base},
	}
	if err := s.IngestAccessBatch(ctx, events); err != nil {
		t.Fatal(err)
	}

	got, err := s.QueryAccess(ctx, access.QueryOpts{ContentID: "post_1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("by content: len = %d, want 2", len(got))
	}

	got, err = s.QueryAccess(ctx, access.QueryOpts{Viewer: "0xBBB", Start: base.Add(-90 * time.Minute)})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("by viewer and window: len = %d, want 2", len(got))
	}

	purged, err := s.PurgeAccess(ctx, base.Add(-90*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if purged != 1 {
		t.Fatalf("purged = %d, want 1", purged)
	}
	remaining, _ := s.QueryAccess(ctx, access.QueryOpts{})
	if len(remaining) != 2 {
		t.Fatalf("remaining = %d, want 2", len(remaining))
	}
}
