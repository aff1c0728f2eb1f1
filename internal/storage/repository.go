package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	upsertSnapshotSQL = `INSERT INTO point_snapshots (
        bucket_ts,
        temperature,
        zone_setpoint,
        heating_setpoint,
        cooling_setpoint,
        system_mode,
        peak_savings,
        fan_status,
        status,
        error
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10
    )
    ON CONFLICT (bucket_ts) DO UPDATE
    SET
        temperature      = EXCLUDED.temperature,
        zone_setpoint    = EXCLUDED.zone_setpoint,
        heating_setpoint = EXCLUDED.heating_setpoint,
        cooling_setpoint = EXCLUDED.cooling_setpoint,
        system_mode      = EXCLUDED.system_mode,
        peak_savings     = EXCLUDED.peak_savings,
        fan_status       = EXCLUDED.fan_status,
        status           = EXCLUDED.status,
        error            = EXCLUDED.error;`

	listSnapshotsBetweenSQL = `SELECT
        bucket_ts,
        temperature,
        zone_setpoint,
        heating_setpoint,
        cooling_setpoint,
        system_mode,
        peak_savings,
        fan_status,
        status,
        error,
        created_at
    FROM point_snapshots
    WHERE bucket_ts >= $1
      AND bucket_ts < $2
    ORDER BY bucket_ts;`

	listRecentSnapshotsSQL = `SELECT
        bucket_ts,
        temperature,
        zone_setpoint,
        heating_setpoint,
        cooling_setpoint,
        system_mode,
        peak_savings,
        fan_status,
        status,
        error,
        created_at
    FROM point_snapshots
    ORDER BY bucket_ts DESC
    LIMIT $1;`

	markSnapshotErroredSQL = `UPDATE point_snapshots
    SET status = 'errored', error = $2
    WHERE bucket_ts = $1;`

	countSnapshotsSQL = `SELECT COUNT(*) FROM point_snapshots;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// SnapshotStore defines operations for snapshot persistence.
type SnapshotStore interface {
	UpsertSnapshot(ctx context.Context, snapshot PointSnapshot) error
	ListSnapshotsBetween(ctx context.Context, from, to time.Time) ([]PointSnapshot, error)
	ListRecentSnapshots(ctx context.Context, limit int) ([]PointSnapshot, error)
	MarkSnapshotErrored(ctx context.Context, bucket time.Time, errMsg string) error
	CountSnapshots(ctx context.Context) (int64, error)
}

// AdvisoryLocker exposes advisory lock helpers so only one replica
// polls per bucket.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to point snapshots.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// UpsertSnapshot persists or updates a polling bucket.
func (s *Store) UpsertSnapshot(ctx context.Context, snapshot PointSnapshot) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	_, execErr := pool.Exec(ctx, upsertSnapshotSQL,
		snapshot.Bucket,
		snapshot.Temperature,
		snapshot.ZoneSetpoint,
		snapshot.HeatingSetpoint,
		snapshot.CoolingSetpoint,
		snapshot.SystemMode,
		snapshot.PeakSavings,
		snapshot.FanStatus,
		snapshot.Status,
		snapshot.Error,
	)
	if execErr != nil {
		return fmt.Errorf("upsert snapshot: %w", execErr)
	}
	return nil
}

// ListSnapshotsBetween lists snapshots within a time window.
func (s *Store) ListSnapshotsBetween(ctx context.Context, from, to time.Time) ([]PointSnapshot, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSnapshotsBetweenSQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list snapshots between: %w", queryErr)
	}
	defer rows.Close()

	return collectSnapshots(rows, 0)
}

// ListRecentSnapshots lists the most recent snapshots, newest first.
func (s *Store) ListRecentSnapshots(ctx context.Context, limit int) ([]PointSnapshot, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentSnapshotsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent snapshots: %w", queryErr)
	}
	defer rows.Close()

	return collectSnapshots(rows, limit)
}

// MarkSnapshotErrored marks a bucket as errored.
func (s *Store) MarkSnapshotErrored(ctx context.Context, bucket time.Time, errMsg string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, markSnapshotErroredSQL, bucket, errMsg); execErr != nil {
		return fmt.Errorf("mark snapshot errored: %w", execErr)
	}
	return nil
}

// CountSnapshots returns the number of persisted buckets.
func (s *Store) CountSnapshots(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}

	var count int64
	if scanErr := pool.QueryRow(ctx, countSnapshotsSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count snapshots: %w", scanErr)
	}
	return count, nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and
// returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// Best effort; the connection release drops the lock anyway.
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func collectSnapshots(rows pgx.Rows, sizeHint int) ([]PointSnapshot, error) {
	snapshots := make([]PointSnapshot, 0, sizeHint)
	for rows.Next() {
		var snapshot PointSnapshot
		if err := rows.Scan(
			&snapshot.Bucket,
			&snapshot.Temperature,
			&snapshot.ZoneSetpoint,
			&snapshot.HeatingSetpoint,
			&snapshot.CoolingSetpoint,
			&snapshot.SystemMode,
			&snapshot.PeakSavings,
			&snapshot.FanStatus,
			&snapshot.Status,
			&snapshot.Error,
			&snapshot.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snapshots = append(snapshots, snapshot)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return snapshots, nil
}

var (
	_ SnapshotStore  = (*Store)(nil)
	_ AdvisoryLocker = (*Store)(nil)
)
