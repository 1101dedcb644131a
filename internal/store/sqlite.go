package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// DefaultQuota mirrors the usual per-origin browser local storage limit.
const DefaultQuota = 5 << 20

// SQLiteBackend keeps snapshots as JSONB rows in the snapshots table
// created by the migrations package.
type SQLiteBackend struct {
	db    *sql.DB
	quota int
}

// NewSQLiteBackend wraps db. A quota <= 0 means DefaultQuota.
func NewSQLiteBackend(db *sql.DB, quota int) *SQLiteBackend {
	if quota <= 0 {
		quota = DefaultQuota
	}
	return &SQLiteBackend{db: db, quota: quota}
}

func (b *SQLiteBackend) Get(ctx context.Context, key string) ([]byte, error) {
	var data string
	err := b.db.QueryRowContext(ctx,
		`SELECT json(data) FROM snapshots WHERE key = ?`, key,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(data), nil
}

func (b *SQLiteBackend) Put(ctx context.Context, key string, blob []byte) error {
	if len(blob) > b.quota {
		return ErrQuotaExceeded
	}
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO snapshots (key, data, bytes, updated_at) VALUES (?, jsonb(?), ?, ?)
		 ON CONFLICT(key) DO UPDATE SET data = excluded.data, bytes = excluded.bytes, updated_at = excluded.updated_at`,
		key, string(blob), len(blob), time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (b *SQLiteBackend) Delete(ctx context.Context, key string) error {
	_, err := b.db.ExecContext(ctx, `DELETE FROM snapshots WHERE key = ?`, key)
	return err
}

// Check pings the database for health reporting.
func (b *SQLiteBackend) Check(ctx context.Context) error {
	return b.db.PingContext(ctx)
}
