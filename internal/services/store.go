package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"telemetryd/internal/database"
	"telemetryd/internal/models"
)

const (
	cacheCountKey  = "telemetry:count"
	cacheCountTTL  = 30 * time.Second
	cacheLivePref  = "telemetry:last:"
	cacheLiveTTL   = 5 * time.Minute
	defaultLatestN = 1
)

// TelemetryStore owns Reading persistence. Readings are append-only: they
// are created once via Insert and never mutated or deleted afterwards.
//
// The redis client is optional live-value plumbing: per-device last readings
// are published for dashboards and the total count is cached read-through.
// A nil client means every call goes straight to sqlite.
type TelemetryStore struct {
	db     *database.DB
	cache  *redis.Client
	logger *slog.Logger
}

// NewTelemetryStore creates a new TelemetryStore instance
func NewTelemetryStore(db *database.DB, cache *redis.Client, logger *slog.Logger) *TelemetryStore {
	return &TelemetryStore{db: db, cache: cache, logger: logger}
}

// Insert persists a validated reading and returns the assigned id.
// The write is a single statement: it either lands whole or not at all.
func (s *TelemetryStore) Insert(ctx context.Context, r *models.Reading) (string, error) {
	now := time.Now().UTC()
	r.ID = uuid.NewString()
	r.CreatedAt = now
	r.UpdatedAt = now

	var extras sql.NullString
	if len(r.Extras) > 0 {
		data, err := json.Marshal(r.Extras)
		if err != nil {
			return "", &PersistenceError{Op: "insert", Err: fmt.Errorf("encode extras: %w", err)}
		}
		extras = sql.NullString{String: string(data), Valid: true}
	}

	conn := s.db.GetConn()
	_, err := conn.ExecContext(ctx, `
		INSERT INTO readings (id, device_id, temp, hum, spo2, heart_rate, cpu_cores, flash_size_mb, free_heap, extras, timestamp, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID,
		nullString(r.DeviceID),
		nullFloat(r.Temperature),
		nullFloat(r.Humidity),
		nullFloat(r.SpO2),
		nullFloat(r.HeartRate),
		nullInt(r.CPUCores),
		nullInt(r.FlashSizeMB),
		nullInt(r.FreeHeap),
		extras,
		r.Timestamp.UnixMilli(),
		r.CreatedAt.UnixMilli(),
		r.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return "", &PersistenceError{Op: "insert", Err: err}
	}

	s.publishLiveValue(ctx, r)

	return r.ID, nil
}

// ListAll returns every stored reading ordered by timestamp descending,
// most-recent-insert-first on ties. Each call re-queries the store.
func (s *TelemetryStore) ListAll(ctx context.Context) ([]models.Reading, error) {
	return s.list(ctx, 0)
}

// ListLatest returns at most n readings in the same order as ListAll.
// n below 1 silently clamps to 1 so misbehaving firmware still gets a
// usable response.
func (s *TelemetryStore) ListLatest(ctx context.Context, n int) ([]models.Reading, error) {
	if n < 1 {
		n = defaultLatestN
	}
	return s.list(ctx, n)
}

func (s *TelemetryStore) list(ctx context.Context, limit int) ([]models.Reading, error) {
	conn := s.db.GetConn()

	query := `
		SELECT id, device_id, temp, hum, spo2, heart_rate, cpu_cores, flash_size_mb, free_heap, extras, timestamp, created_at, updated_at
		FROM readings
		ORDER BY timestamp DESC, seq DESC
	`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &PersistenceError{Op: "list", Err: err}
	}
	defer rows.Close()

	readings := make([]models.Reading, 0)

	for rows.Next() {
		var (
			r         models.Reading
			deviceID  sql.NullString
			temp      sql.NullFloat64
			hum       sql.NullFloat64
			spo2      sql.NullFloat64
			heartRate sql.NullFloat64
			cpuCores  sql.NullInt64
			flashSize sql.NullInt64
			freeHeap  sql.NullInt64
			extras    sql.NullString
			ts        int64
			createdAt int64
			updatedAt int64
		)

		err := rows.Scan(&r.ID, &deviceID, &temp, &hum, &spo2, &heartRate, &cpuCores, &flashSize, &freeHeap, &extras, &ts, &createdAt, &updatedAt)
		if err != nil {
			return nil, &PersistenceError{Op: "list", Err: fmt.Errorf("scan row: %w", err)}
		}

		r.DeviceID = deviceID.String
		r.Temperature = fromNullFloat(temp)
		r.Humidity = fromNullFloat(hum)
		r.SpO2 = fromNullFloat(spo2)
		r.HeartRate = fromNullFloat(heartRate)
		r.CPUCores = fromNullInt(cpuCores)
		r.FlashSizeMB = fromNullInt(flashSize)
		r.FreeHeap = fromNullInt(freeHeap)
		r.Timestamp = time.UnixMilli(ts).UTC()
		r.CreatedAt = time.UnixMilli(createdAt).UTC()
		r.UpdatedAt = time.UnixMilli(updatedAt).UTC()

		if extras.Valid {
			if err := json.Unmarshal([]byte(extras.String), &r.Extras); err != nil {
				return nil, &PersistenceError{Op: "list", Err: fmt.Errorf("decode extras: %w", err)}
			}
		}

		readings = append(readings, r)
	}

	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "list", Err: err}
	}

	return readings, nil
}

// Count returns the total number of stored readings. The value is cached
// read-through in redis for a short TTL when a cache client is configured.
func (s *TelemetryStore) Count(ctx context.Context) (int64, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheCountKey).Result(); err == nil {
			if n, err := strconv.ParseInt(cached, 10, 64); err == nil {
				return n, nil
			}
		}
	}

	conn := s.db.GetConn()
	var total int64
	if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM readings`).Scan(&total); err != nil {
		return 0, &PersistenceError{Op: "count", Err: err}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheCountKey, total, cacheCountTTL).Err(); err != nil {
			s.logger.Warn("count cache write failed", "error", err)
		}
	}

	return total, nil
}

// publishLiveValue mirrors the freshly inserted reading into redis for
// live dashboards and invalidates the cached count. Best effort: cache
// failures never fail the insert.
func (s *TelemetryStore) publishLiveValue(ctx context.Context, r *models.Reading) {
	if s.cache == nil {
		return
	}

	device := r.DeviceID
	if device == "" {
		device = "default"
	}

	payload, err := json.Marshal(r)
	if err != nil {
		return
	}

	pipe := s.cache.Pipeline()
	pipe.Set(ctx, cacheLivePref+device, payload, cacheLiveTTL)
	pipe.Del(ctx, cacheCountKey)
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Warn("live-value cache write failed", "device", device, "error", err)
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func fromNullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func fromNullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}
