package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists one row per ledger with a version column. Writes
// are optimistic: the UPDATE only lands when the stored version still
// matches the token the caller read.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the snapshot table. Called once at startup over the
// bootstrap database/sql connection.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS ledger_snapshots (
			name       TEXT PRIMARY KEY,
			payload    JSONB NOT NULL,
			version    BIGINT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("failed to create ledger_snapshots: %w", err)
	}
	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS daily_balances (
			computed_on DATE NOT NULL,
			account     TEXT NOT NULL,
			balance     NUMERIC(14,2) NOT NULL,
			PRIMARY KEY (computed_on, account)
		)`)
	if err != nil {
		return fmt.Errorf("failed to create daily_balances: %w", err)
	}
	return nil
}

func (s *PostgresStore) Read(ctx context.Context, ledger Ledger) ([]byte, Version, error) {
	var payload []byte
	var version int64
	err := s.pool.QueryRow(ctx,
		`SELECT payload, version FROM ledger_snapshots WHERE name = $1`,
		string(ledger)).Scan(&payload, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read snapshot %s: %w", ledger, err)
	}
	return payload, Version(version), nil
}

func (s *PostgresStore) Write(ctx context.Context, ledger Ledger, snapshot []byte, expected Version) (Version, error) {
	if !KnownLedger(ledger) {
		return 0, fmt.Errorf("unknown ledger %q", ledger)
	}
	if expected == 0 {
		tag, err := s.pool.Exec(ctx,
			`INSERT INTO ledger_snapshots (name, payload, version, updated_at)
			 VALUES ($1, $2, 1, now())
			 ON CONFLICT (name) DO NOTHING`,
			string(ledger), snapshot)
		if err != nil {
			return 0, fmt.Errorf("failed to insert snapshot %s: %w", ledger, err)
		}
		if tag.RowsAffected() == 0 {
			return 0, ErrVersionConflict
		}
		return 1, nil
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE ledger_snapshots
		 SET payload = $2, version = version + 1, updated_at = now()
		 WHERE name = $1 AND version = $3`,
		string(ledger), snapshot, int64(expected))
	if err != nil {
		return 0, fmt.Errorf("failed to update snapshot %s: %w", ledger, err)
	}
	if tag.RowsAffected() == 0 {
		return 0, ErrVersionConflict
	}
	return expected + 1, nil
}
