// Package mongo implements store.Store using MongoDB via Grove ORM.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	paywall "github.com/newsprint/paywall"
	"github.com/newsprint/paywall/access"
	"github.com/newsprint/paywall/content"
	"github.com/newsprint/paywall/id"
	"github.com/newsprint/paywall/purchase"
	paywallstore "github.com/newsprint/paywall/store"
)

// Collection name constants.
const (
	colContent      = "paywall_content"
	colReceipts     = "paywall_receipts"
	colAccessEvents = "paywall_access_events"
)

// compile-time interface check
var _ paywallstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all paywall collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("paywall/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Content Store ====================

func (s *Store) PutContent(ctx context.Context, item *content.Item) error {
	m := toItemModel(item)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("paywall/mongo: put content: %w", err)
	}
	return nil
}

func (s *Store) GetContent(ctx context.Context, contentID string) (*content.Item, error) {
	var m itemModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": contentID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, paywall.ErrContentNotFound
		}
		return nil, fmt.Errorf("paywall/mongo: get content: %w", err)
	}
	return fromItemModel(&m)
}

func (s *Store) ListContent(ctx context.Context, opts content.ListOpts) ([]*content.Item, error) {
	var models []itemModel

	filter := bson.M{}
	if !opts.Creator.IsZero() {
		filter["creator_id"] = opts.Creator.Normalize().String()
	}
	if opts.Kind != "" {
		filter["license_kind"] = string(opts.Kind)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "published_at", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("paywall/mongo: list content: %w", err)
	}

	result := make([]*content.Item, len(models))
	for i := range models {
		item, err := fromItemModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = item
	}
	return result, nil
}

func (s *Store) SetPayloadLocator(ctx context.Context, contentID, locator string) error {
	t := now()
	res, err := s.mdb.NewUpdate((*itemModel)(nil)).
		Filter(bson.M{"_id": contentID}).
		Set("payload_locator", locator).
		Set("updated_at", t).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("paywall/mongo: set payload locator: %w", err)
	}
	if res.MatchedCount() == 0 {
		return paywall.ErrContentNotFound
	}
	return nil
}

// ==================== Receipt Store ====================

func (s *Store) RecordReceipt(ctx context.Context, r *purchase.Receipt) error {
	m := toReceiptModel(r)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("paywall/mongo: record receipt: %w", err)
	}
	return nil
}

func (s *Store) GetReceipt(ctx context.Context, receiptID id.ReceiptID) (*purchase.Receipt, error) {
	var m receiptModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": receiptID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, paywall.ErrReceiptNotFound
		}
		return nil, fmt.Errorf("paywall/mongo: get receipt: %w", err)
	}
	return fromReceiptModel(&m)
}

func (s *Store) ListReceipts(ctx context.Context, viewer content.Address, opts purchase.ListOpts) ([]*purchase.Receipt, error) {
	var models []receiptModel

	filter := bson.M{"viewer": viewer.Normalize().String()}
	if opts.ContentID != "" {
		filter["content_id"] = opts.ContentID
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "settled_at", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("paywall/mongo: list receipts: %w", err)
	}

	result := make([]*purchase.Receipt, len(models))
	for i := range models {
		r, err := fromReceiptModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = r
	}
	return result, nil
}

// ==================== Access Log Store ====================

func (s *Store) IngestAccessBatch(ctx context.Context, events []*access.Event) error {
	if len(events) == 0 {
		return nil
	}
	for _, e := range events {
		m := toAccessEventModel(e)
		_, err := s.mdb.NewInsert(m).Exec(ctx)
		if err != nil {
			// Skip duplicates for idempotency
			if mongo.IsDuplicateKeyError(err) {
				continue
			}
			return fmt.Errorf("paywall/mongo: ingest access event: %w", err)
		}
	}
	return nil
}

func (s *Store) QueryAccess(ctx context.Context, opts access.QueryOpts) ([]*access.Event, error) {
	var models []accessEventModel

	filter := bson.M{}
	if opts.ContentID != "" {
		filter["content_id"] = opts.ContentID
	}
	if !opts.Viewer.IsZero() {
		filter["viewer"] = opts.Viewer.Normalize().String()
	}
	if !opts.Start.IsZero() {
		if _, ok := filter["timestamp"]; !ok {
			filter["timestamp"] = bson.M{}
		}
		if ts, ok := filter["timestamp"].(bson.M); ok {
			ts["$gte"] = opts.Start
		}
	}
	if !opts.End.IsZero() {
		if _, ok := filter["timestamp"]; !ok {
			filter["timestamp"] = bson.M{}
		}
		if ts, ok := filter["timestamp"].(bson.M); ok {
			ts["$lte"] = opts.End
		}
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "timestamp", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("paywall/mongo: query access: %w", err)
	}

	result := make([]*access.Event, len(models))
	for i := range models {
		e, err := fromAccessEventModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = e
	}
	return result, nil
}

func (s *Store) PurgeAccess(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.mdb.NewDelete((*accessEventModel)(nil)).
		Filter(bson.M{"timestamp": bson.M{"$lt": before}}).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("paywall/mongo: purge access: %w", err)
	}
	return res.DeletedCount(), nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all paywall collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colContent: {
			{Keys: bson.D{{Key: "creator_id", Value: 1}}},
			{Keys: bson.D{{Key: "license_kind", Value: 1}}},
			{Keys: bson.D{{Key: "published_at", Value: -1}}},
		},
		colReceipts: {
			{Keys: bson.D{{Key: "viewer", Value: 1}, {Key: "settled_at", Value: -1}}},
			{Keys: bson.D{{Key: "viewer", Value: 1}, {Key: "content_id", Value: 1}}},
			{
				Keys:    bson.D{{Key: "tx_ref", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colAccessEvents: {
			{Keys: bson.D{{Key: "content_id", Value: 1}, {Key: "timestamp", Value: -1}}},
			{Keys: bson.D{{Key: "viewer", Value: 1}, {Key: "timestamp", Value: -1}}},
			{Keys: bson.D{{Key: "timestamp", Value: -1}}},
		},
	}
}
