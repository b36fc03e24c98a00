// Package history records gold price snapshots in an embedded SQLite database.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/lebanonrates/backend/internal/domain"
	_ "modernc.org/sqlite"
)

// Store implements domain.GoldHistoryRepository on SQLite
type Store struct {
	sql *sql.DB
}

var _ domain.GoldHistoryRepository = (*Store)(nil)

// Open opens or creates the history database at path and applies migrations
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)", path)
	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	sqldb.SetMaxOpenConns(1)
	sqldb.SetConnMaxLifetime(0)

	store := &Store{sql: sqldb}
	if err := store.migrate(context.Background()); err != nil {
		_ = sqldb.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.sql.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS gold_prices (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			snapshot_id TEXT NOT NULL,
			key TEXT NOT NULL,
			recorded_at INTEGER NOT NULL,
			price_lbp INTEGER NOT NULL,
			price_usd REAL,
			UNIQUE (key, recorded_at)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_gold_prices_key_time ON gold_prices(key, recorded_at);`,
		`CREATE INDEX IF NOT EXISTS idx_gold_prices_time ON gold_prices(recorded_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.sql.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate history database: %w", err)
		}
	}
	return nil
}

// Append stores every priced item of the snapshot. Re-recording the same
// snapshot is a no-op.
func (s *Store) Append(ctx context.Context, snapshot domain.GoldSnapshot) error {
	tx, err := s.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO gold_prices
		(snapshot_id, key, recorded_at, price_lbp, price_usd) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	snapshotID := uuid.NewString()
	recordedAt := snapshot.FetchedAt.UnixMilli()
	for _, item := range snapshot.Items {
		if item.PriceLBP == nil {
			continue
		}
		var usd sql.NullFloat64
		if item.PriceUSD != nil {
			usd = sql.NullFloat64{Float64: *item.PriceUSD, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, snapshotID, item.Key, recordedAt, *item.PriceLBP, usd); err != nil {
			return fmt.Errorf("failed to record %s: %w", item.Key, err)
		}
	}
	return tx.Commit()
}

// Prune deletes points recorded before the cutoff and reports how many were removed
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.sql.ExecContext(ctx, `DELETE FROM gold_prices WHERE recorded_at < ?`, before.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Series returns the points of one key recorded at or after since, oldest first
func (s *Store) Series(ctx context.Context, key string, since time.Time) ([]domain.GoldPricePoint, error) {
	rows, err := s.sql.QueryContext(ctx, `SELECT recorded_at, price_lbp, price_usd FROM gold_prices
		WHERE key = ? AND recorded_at >= ? ORDER BY recorded_at ASC`, key, since.UnixMilli())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := []domain.GoldPricePoint{}
	for rows.Next() {
		var (
			recordedAt int64
			point      = domain.GoldPricePoint{Key: key}
			usd        sql.NullFloat64
		)
		if err := rows.Scan(&recordedAt, &point.PriceLBP, &usd); err != nil {
			return nil, err
		}
		point.RecordedAt = time.UnixMilli(recordedAt).UTC()
		if usd.Valid {
			v := usd.Float64
			point.PriceUSD = &v
		}
		points = append(points, point)
	}
	return points, rows.Err()
}
