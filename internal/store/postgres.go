// internal/store/postgres.go
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/vitalmesh/sentinel/api/schemas"
)

const (
	querySamples = `
		SELECT device_id, metric, value, quality, recorded_at
		FROM telemetry_samples
		WHERE device_id = $1 AND metric = $2 AND recorded_at >= $3 AND recorded_at < $4
		ORDER BY recorded_at ASC`

	queryAllMetricSamples = `
		SELECT device_id, metric, value, quality, recorded_at
		FROM telemetry_samples
		WHERE device_id = $1 AND recorded_at >= $2 AND recorded_at < $3
		ORDER BY recorded_at ASC`

	queryUserDevices = `
		SELECT id, user_id, name, type, supported_metrics, status, battery_level, last_sync_at
		FROM devices
		WHERE user_id = $1 AND ($2 = '' OR id = $2)
		ORDER BY id`
)

// pgQuerier is the slice of the pgxpool API the store actually uses, kept
// narrow so pgxmock can stand in during tests.
type pgQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresStore reads telemetry and device rows via pgx.
type PostgresStore struct {
	db     pgQuerier
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresStore connects a pool to the given URL and verifies it with a
// ping before returning.
func NewPostgresStore(ctx context.Context, url string, logger *zap.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	logger.Info("Connected to postgres telemetry store")
	return &PostgresStore{db: pool, pool: pool, logger: logger.Named("store")}, nil
}

// newPostgresStoreWithDB injects a querier directly. Tests only.
func newPostgresStoreWithDB(db pgQuerier, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger.Named("store")}
}

// Query implements TelemetryStore. An empty metric selects every metric the
// device recorded in the window.
func (s *PostgresStore) Query(ctx context.Context, deviceID, metric string, from, to time.Time) ([]schemas.Sample, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if metric == "" {
		rows, err = s.db.Query(ctx, queryAllMetricSamples, deviceID, from, to)
	} else {
		rows, err = s.db.Query(ctx, querySamples, deviceID, metric, from, to)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query samples for device %s: %w", deviceID, err)
	}
	defer rows.Close()

	var samples []schemas.Sample
	for rows.Next() {
		var sample schemas.Sample
		if err := rows.Scan(&sample.DeviceID, &sample.Metric, &sample.Value, &sample.Quality, &sample.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sample row: %w", err)
		}
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sample row iteration failed: %w", err)
	}
	return samples, nil
}

// UserDevices implements DeviceRegistry.
func (s *PostgresStore) UserDevices(ctx context.Context, userID, deviceID string) ([]schemas.Device, error) {
	rows, err := s.db.Query(ctx, queryUserDevices, userID, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices for user %s: %w", userID, err)
	}
	defer rows.Close()

	var devices []schemas.Device
	for rows.Next() {
		var d schemas.Device
		if err := rows.Scan(&d.ID, &d.UserID, &d.Name, &d.Type, &d.SupportedMetrics, &d.Status, &d.BatteryLevel, &d.LastSyncAt); err != nil {
			return nil, fmt.Errorf("failed to scan device row: %w", err)
		}
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("device row iteration failed: %w", err)
	}
	return devices, nil
}

// Close releases the underlying pool.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
