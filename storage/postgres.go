package storage

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"phone_lister/models"
)

// PostgresArchive keeps terminal row outcomes in a shared database so posting
// history survives the process and can be queried across hosts. Optional;
// enabled by DATABASE_URL.
type PostgresArchive struct {
	pool *pgxpool.Pool
}

func NewPostgresArchive(ctx context.Context, connString string) (*PostgresArchive, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 5
	config.MinConns = 1
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	archive := &PostgresArchive{pool: pool}
	if err := archive.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return archive, nil
}

func (a *PostgresArchive) Close() {
	a.pool.Close()
}

func (a *PostgresArchive) migrate(ctx context.Context) error {
	_, err := a.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS posted_rows (
			id BIGSERIAL PRIMARY KEY,
			job_id TEXT NOT NULL,
			row_index INTEGER NOT NULL,
			platform TEXT NOT NULL,
			brand TEXT,
			model TEXT,
			memory TEXT,
			price NUMERIC,
			currency TEXT,
			quantity INTEGER,
			status TEXT NOT NULL,
			kind TEXT,
			reason TEXT,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (job_id, row_index)
		)`)
	return err
}

// ArchiveRow upserts one terminal row. Best effort: the caller has already
// answered its client by the time this runs.
func (a *PostgresArchive) ArchiveRow(ctx context.Context, jobID string, row *models.Row) {
	_, err := a.pool.Exec(ctx, `
		INSERT INTO posted_rows (job_id, row_index, platform, brand, model, memory, price, currency, quantity, status, kind, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (job_id, row_index) DO UPDATE SET
			status = EXCLUDED.status,
			kind = EXCLUDED.kind,
			reason = EXCLUDED.reason,
			recorded_at = NOW()`,
		jobID, row.Index, row.Platform,
		row.Listing.Brand, row.Listing.Model, row.Listing.Memory,
		row.Listing.Price, row.Listing.Currency, row.Listing.Quantity,
		string(row.Status), row.Kind, row.Reason)
	if err != nil {
		log.Printf("archive: row %s/%d: %v", jobID, row.Index, err)
	}
}

// RecentPlatformTimes returns when rows were archived for a platform within
// the window, oldest first, feeding the hourly rate limit across restarts.
func (a *PostgresArchive) RecentPlatformTimes(ctx context.Context, platform string, window time.Duration) ([]time.Time, error) {
	rows, err := a.pool.Query(ctx, `
		SELECT recorded_at FROM posted_rows
		WHERE platform = $1 AND recorded_at > NOW() - make_interval(secs => $2) AND status IN ('verified', 'pending_review')
		ORDER BY recorded_at`,
		platform, window.Seconds())
	if err != nil {
		return nil, fmt.Errorf("recent times: %w", err)
	}
	defer rows.Close()

	var times []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("recent times: %w", err)
		}
		times = append(times, t)
	}
	return times, rows.Err()
}
