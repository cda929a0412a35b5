// Package db provides PostgreSQL access for the survey database: pending
// Phase 3 products, ingested observation headers, and stellar activity
// measurements.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store wraps a PostgreSQL connection pool for the single-threaded paths
// (pending-dataset and ingested-filename queries). Workers use their own
// dedicated connections, see WorkerConn.
type Store struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse DSN: %w", err)
	}

	poolCfg.MaxConns = 5
	poolCfg.MinConns = 1
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close closes the connection pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// PendingDatasets returns the Phase 3 dataset identifiers whose reduced
// products have not been ingested yet, ordered by right ascension.
func (s *Store) PendingDatasets(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT dataset FROM phase3_products
		 WHERE NOT EXISTS(
		     SELECT 1 FROM obs
		     WHERE obs.date_obs = phase3_products.date_obs)
		 ORDER BY phase3_products.ra ASC`)
	if err != nil {
		return nil, fmt.Errorf("query pending datasets: %w", err)
	}
	defer rows.Close()

	var datasets []string
	for rows.Next() {
		var ds string
		if err := rows.Scan(&ds); err != nil {
			return nil, fmt.Errorf("scan dataset: %w", err)
		}
		datasets = append(datasets, ds)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending datasets: %w", err)
	}

	return datasets, nil
}

// IngestedFilenames returns every filename already ingested into obs.
func (s *Store) IngestedFilenames(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT filename FROM obs`)
	if err != nil {
		return nil, fmt.Errorf("query ingested filenames: %w", err)
	}
	defer rows.Close()

	var filenames []string
	for rows.Next() {
		var fn string
		if err := rows.Scan(&fn); err != nil {
			return nil, fmt.Errorf("scan filename: %w", err)
		}
		filenames = append(filenames, fn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ingested filenames: %w", err)
	}

	return filenames, nil
}
