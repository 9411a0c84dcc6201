// Package memory provides an in-memory Store for tests and development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	paywall "github.com/newsprint/paywall"
	"github.com/newsprint/paywall/access"
	"github.com/newsprint/paywall/content"
	"github.com/newsprint/paywall/id"
	"github.com/newsprint/paywall/purchase"
	paywallstore "github.com/newsprint/paywall/store"
)

// compile-time interface check
var _ paywallstore.Store = (*Store)(nil)

type Store struct {
	mu sync.RWMutex

	// Content catalog
	items map[string]*content.Item

	// Receipts
	receipts map[string]*purchase.Receipt

	// Access log
	accessEvents []access.Event
}

func New() *Store {
	return &Store{
		items:        make(map[string]*content.Item),
		receipts:     make(map[string]*purchase.Receipt),
		accessEvents: make([]access.Event, 0),
	}
}

// Content catalog implementation

func (s *Store) PutContent(_ context.Context, item *content.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[item.ID]; exists {
		return paywall.ErrAlreadyExists
	}
	cp := *item
	s.items[item.ID] = &cp
	return nil
}

func (s *Store) GetContent(_ context.Context, contentID string) (*content.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if item, ok := s.items[contentID]; ok {
		cp := *item
		return &cp, nil
	}
	return nil, paywall.ErrContentNotFound
}

func (s *Store) ListContent(_ context.Context, opts content.ListOpts) ([]*content.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*content.Item, 0)
	for _, item := range s.items {
		if !opts.Creator.IsZero() && !item.CreatorID.Equal(opts.Creator) {
			continue
		}
		if opts.Kind != "" && item.LicenseKind != opts.Kind {
			continue
		}
		cp := *item
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].PublishedAt.After(result[j].PublishedAt)
	})

	return paginate(result, opts.Offset, opts.Limit), nil
}

func (s *Store) SetPayloadLocator(_ context.Context, contentID, locator string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[contentID]
	if !ok {
		return paywall.ErrContentNotFound
	}
	item.PayloadLocator = locator
	item.Touch()
	return nil
}

// Receipt implementation

func (s *Store) RecordReceipt(_ context.Context, r *purchase.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.receipts[r.ID.String()]; exists {
		return paywall.ErrAlreadyExists
	}
	cp := *r
	s.receipts[r.ID.String()] = &cp
	return nil
}

func (s *Store) GetReceipt(_ context.Context, receiptID id.ReceiptID) (*purchase.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if r, ok := s.receipts[receiptID.String()]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, paywall.ErrReceiptNotFound
}

func (s *Store) ListReceipts(_ context.Context, viewer content.Address, opts purchase.ListOpts) ([]*purchase.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*purchase.Receipt, 0)
	for _, r := range s.receipts {
		if !r.Viewer.Equal(viewer) {
			continue
		}
		if opts.ContentID != "" && r.ContentID != opts.ContentID {
			continue
		}
		cp := *r
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].SettledAt.After(result[j].SettledAt)
	})

	return paginate(result, opts.Offset, opts.Limit), nil
}

// Access log implementation

func (s *Store) IngestAccessBatch(_ context.Context, events []*access.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range events {
		s.accessEvents = append(s.accessEvents, *e)
	}
	return nil
}

func (s *Store) QueryAccess(_ context.Context, opts access.QueryOpts) ([]*access.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*access.Event, 0)
	for i := range s.accessEvents {
		e := s.accessEvents[i]
		if opts.ContentID != "" && e.ContentID != opts.ContentID {
			continue
		}
		if !opts.Viewer.IsZero() && !e.Viewer.Equal(opts.Viewer) {
			continue
		}
		if !opts.Start.IsZero() && e.Timestamp.Before(opts.Start) {
			continue
		}
		if !opts.End.IsZero() && e.Timestamp.After(opts.End) {
			continue
		}
		cp := e
		result = append(result, &cp)
	}

	return paginate(result, opts.Offset, opts.Limit), nil
}

func (s *Store) PurgeAccess(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.accessEvents[:0]
	var purged int64
	for i := range s.accessEvents {
		if s.accessEvents[i].Timestamp.Before(before) {
			purged++
			continue
		}
		kept = append(kept, s.accessEvents[i])
	}
	s.accessEvents = kept
	return purged, nil
}

// Core implementation

func (s *Store) Migrate(_ context.Context) error { return nil }
func (s *Store) Ping(_ context.Context) error    { return nil }
func (s *Store) Close() error                    { return nil }

func paginate[T any](in []*T, offset, limit int) []*T {
	start := offset
	if start > len(in) {
		start = len(in)
	}
	end := start + limit
	if limit == 0 || end > len(in) {
		end = len(in)
	}
	return in[start:end]
}
