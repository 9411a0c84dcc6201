// Package sqlite implements store.Store using SQLite via Grove ORM.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"github.com/xraph/grove/migrate"

	paywall "github.com/newsprint/paywall"
	"github.com/newsprint/paywall/access"
	"github.com/newsprint/paywall/content"
	"github.com/newsprint/paywall/id"
	"github.com/newsprint/paywall/purchase"
	paywallstore "github.com/newsprint/paywall/store"
)

// compile-time interface check
var _ paywallstore.Store = (*Store)(nil)

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("paywall/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("paywall/sqlite: migration failed: %w", err)
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
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetContent(ctx context.Context, contentID string) (*content.Item, error) {
	m := new(itemModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", contentID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, paywall.ErrContentNotFound
		}
		return nil, err
	}
	return fromItemModel(m)
}

func (s *Store) ListContent(ctx context.Context, opts content.ListOpts) ([]*content.Item, error) {
	var models []itemModel
	q := s.sdb.NewSelect(&models)

	if !opts.Creator.IsZero() {
		q = q.Where("creator_id = ?", opts.Creator.Normalize().String())
	}
	if opts.Kind != "" {
		q = q.Where("license_kind = ?", string(opts.Kind))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("published_at DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
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
	res, err := s.sdb.NewUpdate((*itemModel)(nil)).
		Set("payload_locator = ?", locator).
		Set("updated_at = ?", now()).
		Where("id = ?", contentID).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return paywall.ErrContentNotFound
	}
	return nil
}

// ==================== Receipt Store ====================

func (s *Store) RecordReceipt(ctx context.Context, r *purchase.Receipt) error {
	m := toReceiptModel(r)
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetReceipt(ctx context.Context, receiptID id.ReceiptID) (*purchase.Receipt, error) {
	m := new(receiptModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", receiptID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, paywall.ErrReceiptNotFound
		}
		return nil, err
	}
	return fromReceiptModel(m)
}

func (s *Store) ListReceipts(ctx context.Context, viewer content.Address, opts purchase.ListOpts) ([]*purchase.Receipt, error) {
	var models []receiptModel
	q := s.sdb.NewSelect(&models).
		Where("viewer = ?", viewer.Normalize().String())

	if opts.ContentID != "" {
		q = q.Where("content_id = ?", opts.ContentID)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("settled_at DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
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
	models := make([]accessEventModel, len(events))
	for i, e := range events {
		models[i] = *toAccessEventModel(e)
	}
	_, err := s.sdb.NewInsert(&models).Exec(ctx)
	return err
}

func (s *Store) QueryAccess(ctx context.Context, opts access.QueryOpts) ([]*access.Event, error) {
	var models []accessEventModel
	q := s.sdb.NewSelect(&models)

	if opts.ContentID != "" {
		q = q.Where("content_id = ?", opts.ContentID)
	}
	if !opts.Viewer.IsZero() {
		q = q.Where("viewer = ?", opts.Viewer.Normalize().String())
	}
	if !opts.Start.IsZero() {
		q = q.Where("timestamp >= ?", opts.Start)
	}
	if !opts.End.IsZero() {
		q = q.Where("timestamp <= ?", opts.End)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("timestamp DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
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
	res, err := s.sdb.NewDelete((*accessEventModel)(nil)).
		Where("timestamp < ?", before).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return rows, nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
