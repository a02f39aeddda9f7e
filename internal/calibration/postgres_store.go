package calibration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// DBPool abstracts pgxpool.Pool so the store can be tested with pgxmock.
type DBPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	sqlCreateCalibration = `
        CREATE TABLE IF NOT EXISTS calibration (
            id         SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
            offset_x   INTEGER NOT NULL,
            offset_y   INTEGER NOT NULL,
            target     TEXT NOT NULL DEFAULT '',
            observed_x INTEGER NOT NULL DEFAULT 0,
            observed_y INTEGER NOT NULL DEFAULT 0,
            updated_at TIMESTAMPTZ NOT NULL
        );
    `
	sqlSelectCalibration = `
        SELECT offset_x, offset_y, target, observed_x, observed_y, updated_at
        FROM calibration
        WHERE id = 1;
    `
	sqlUpsertCalibration = `
        INSERT INTO calibration (id, offset_x, offset_y, target, observed_x, observed_y, updated_at)
        VALUES (1, $1, $2, $3, $4, $5, $6)
        ON CONFLICT (id) DO UPDATE SET
            offset_x = EXCLUDED.offset_x,
            offset_y = EXCLUDED.offset_y,
            target = EXCLUDED.target,
            observed_x = EXCLUDED.observed_x,
            observed_y = EXCLUDED.observed_y,
            updated_at = EXCLUDED.updated_at;
    `
)

// PostgresStore keeps the record as the only row of the calibration table.
type PostgresStore struct {
	pool DBPool
	log  *zap.Logger
}

// NewPostgresStore verifies the connection and creates the table if needed.
func NewPostgresStore(ctx context.Context, pool DBPool, logger *zap.Logger) (*PostgresStore, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, sqlCreateCalibration); err != nil {
		return nil, fmt.Errorf("failed to create calibration table: %w", err)
	}
	return &PostgresStore{pool: pool, log: logger.Named("calibration.postgres")}, nil
}

func (s *PostgresStore) Load(ctx context.Context) (*Record, error) {
	var rec Record
	err := s.pool.QueryRow(ctx, sqlSelectCalibration).Scan(
		&rec.DX, &rec.DY, &rec.Target, &rec.ObservedX, &rec.ObservedY, &rec.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load calibration: %w", err)
	}
	return &rec, nil
}

func (s *PostgresStore) Save(ctx context.Context, rec Record) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}
	tag, err := s.pool.Exec(ctx, sqlUpsertCalibration,
		rec.DX, rec.DY, rec.Target, rec.ObservedX, rec.ObservedY, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save calibration: %w", err)
	}
	s.log.Debug("Calibration saved.", zap.Int64("rows", tag.RowsAffected()), zap.Int("dx", rec.DX), zap.Int("dy", rec.DY))
	return nil
}
