package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Paywall store (SQLite).
var Migrations = migrate.NewGroup("paywall")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_paywall_content",
			Version: "20250301000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS paywall_content (
    id               TEXT PRIMARY KEY,
    title            TEXT NOT NULL DEFAULT '',
    author           TEXT NOT NULL DEFAULT '',
    creator_id       TEXT NOT NULL DEFAULT '',
    token_id         TEXT NOT NULL DEFAULT '',
    license_kind     TEXT NOT NULL DEFAULT '',
    price_units      TEXT NOT NULL DEFAULT '0',
    price_symbol     TEXT NOT NULL DEFAULT '',
    duration_seconds INTEGER NOT NULL DEFAULT 0,
    excerpt          TEXT NOT NULL DEFAULT '',
    tags             TEXT NOT NULL DEFAULT '[]',
    published_at     TEXT NOT NULL DEFAULT (datetime('now')),
    parent_ids       TEXT NOT NULL DEFAULT '[]',
    payload_locator  TEXT NOT NULL DEFAULT '',
    created_at       TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at       TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_paywall_content_creator ON paywall_content (creator_id);
CREATE INDEX IF NOT EXISTS idx_paywall_content_kind ON paywall_content (license_kind);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS paywall_content`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_paywall_receipts",
			Version: "20250301000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS paywall_receipts (
    id            TEXT PRIMARY KEY,
    content_id    TEXT NOT NULL DEFAULT '',
    viewer        TEXT NOT NULL DEFAULT '',
    kind          TEXT NOT NULL DEFAULT '',
    amount_units  TEXT NOT NULL DEFAULT '0',
    amount_symbol TEXT NOT NULL DEFAULT '',
    tx_ref        TEXT NOT NULL DEFAULT '',
    settled_at    TEXT NOT NULL DEFAULT (datetime('now')),
    created_at    TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at    TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_paywall_receipts_viewer ON paywall_receipts (viewer);
CREATE INDEX IF NOT EXISTS idx_paywall_receipts_content ON paywall_receipts (viewer, content_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_paywall_receipts_tx ON paywall_receipts (tx_ref);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS paywall_receipts`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_paywall_access_events",
			Version: "20250301000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS paywall_access_events (
    id         TEXT PRIMARY KEY,
    content_id TEXT NOT NULL DEFAULT '',
    viewer     TEXT NOT NULL DEFAULT '',
    granted    INTEGER NOT NULL DEFAULT 0,
    reason     TEXT NOT NULL DEFAULT '',
    timestamp  TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_paywall_access_content ON paywall_access_events (content_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_paywall_access_viewer ON paywall_access_events (viewer, timestamp);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS paywall_access_events`)
				return err
			},
		},
	)
}
