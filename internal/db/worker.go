package db

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"
)

// ErrNoRV is returned by StellarRV when no header row has been ingested
// for the observation timestamp.
var ErrNoRV = errors.New("no radial velocity ingested for observation")

// Measurement is one stellar activity result. SHK and ESHK may be NaN
// when the reference radial velocity is not finite; Postgres stores NaN
// for double precision columns, so the undefined sentinel round-trips.
type Measurement struct {
	DateObs  string
	Filename string
	SHK      float64
	ESHK     float64
}

// Undefined reports whether the measurement carries the NaN sentinel.
func (m Measurement) Undefined() bool {
	return math.IsNaN(m.SHK)
}

// WorkerConn is a single database connection owned by one measurement
// worker. It is not safe for concurrent use; each worker dials its own.
type WorkerConn struct {
	conn *pgx.Conn
}

// Dial opens a dedicated worker connection.
func Dial(ctx context.Context, dsn string) (*WorkerConn, error) {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	return &WorkerConn{conn: conn}, nil
}

// Close closes the worker connection.
func (w *WorkerConn) Close(ctx context.Context) error {
	return w.conn.Close(ctx)
}

// StellarRV looks up the pipeline radial velocity for an observation
// timestamp. A NULL velocity is reported as NaN.
func (w *WorkerConn) StellarRV(ctx context.Context, dateObs string) (float64, error) {
	var rv *float64
	err := w.conn.QueryRow(ctx,
		`SELECT drs_ccf_rvc::float8 AS stellar_rv
		 FROM obs WHERE date_obs = $1::timestamp`, dateObs,
	).Scan(&rv)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNoRV
	}
	if err != nil {
		return 0, fmt.Errorf("query stellar rv for %s: %w", dateObs, err)
	}
	if rv == nil {
		return math.NaN(), nil
	}
	return *rv, nil
}

// InsertActivity inserts a measurement, keyed by observation timestamp.
// Conflicts are ignored so re-running a file is harmless.
func (w *WorkerConn) InsertActivity(ctx context.Context, m Measurement) error {
	_, err := w.conn.Exec(ctx,
		`INSERT INTO stellar_activity (date_obs, filename, s_hk, e_s_hk)
		 VALUES ($1::timestamp, $2, $3, $4)
		 ON CONFLICT DO NOTHING`,
		m.DateObs, m.Filename, m.SHK, m.ESHK)
	if err != nil {
		return fmt.Errorf("insert activity for %s: %w", m.Filename, err)
	}
	return nil
}
