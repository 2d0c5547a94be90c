package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"climalog/internal/apperr"
	"climalog/internal/db"
	"climalog/internal/modules/readings/types"
)

//go:embed sql/insert-reading.sql
var insertReadingSQL string

//go:embed sql/get-recent-readings.sql
var getRecentReadingsSQL string

//go:embed sql/get-readings-range.sql
var getReadingsRangeSQL string

//go:embed sql/get-latest-reading.sql
var getLatestReadingSQL string

// TimestampLayout is the persisted form of ts. It is fixed width so that
// lexical order in SQLite equals chronological order.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z"

// ReadingRepository is the Reading Store. Insert relies on the
// (device_id, ts) primary key for atomic check-and-insert: of two concurrent
// inserts of the same pair exactly one succeeds and the other returns
// apperr.ErrDuplicateKey.
type ReadingRepository interface {
	Insert(ctx context.Context, reading types.Reading) error
	QueryRecent(ctx context.Context, limit int) ([]types.Reading, error)
	QueryRange(ctx context.Context, start, end time.Time) ([]types.Reading, error)
	Latest(ctx context.Context) (types.Reading, error)
}

type repositoryImpl struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewRepository(conn *sql.DB, logger *slog.Logger) ReadingRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &repositoryImpl{db: conn, logger: logger}
}

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

func (r *repositoryImpl) Insert(ctx context.Context, reading types.Reading) error {
	if err := reading.Check(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, insertReadingSQL,
		reading.DeviceID,
		FormatTimestamp(reading.Timestamp),
		reading.Temperature,
		reading.Humidity,
	)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return apperr.DuplicateKey(fmt.Sprintf("reading for device %q at %s already exists",
				reading.DeviceID, reading.Timestamp.UTC().Format(time.RFC3339Nano)))
		}
		return apperr.StorageUnavailable("insert reading", err)
	}
	return nil
}

func (r *repositoryImpl) QueryRecent(ctx context.Context, limit int) ([]types.Reading, error) {
	if limit <= 0 {
		return []types.Reading{}, nil
	}
	rows, err := r.db.QueryContext(ctx, getRecentReadingsSQL, limit)
	if err != nil {
		return nil, apperr.StorageUnavailable("query recent readings", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.Error("close recent readings rows", "error", err)
		}
	}()
	return scanReadings(rows)
}

func (r *repositoryImpl) QueryRange(ctx context.Context, start, end time.Time) ([]types.Reading, error) {
	if end.Before(start) {
		return []types.Reading{}, nil
	}
	rows, err := r.db.QueryContext(ctx, getReadingsRangeSQL, FormatTimestamp(start), FormatTimestamp(end))
	if err != nil {
		return nil, apperr.StorageUnavailable("query readings range", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.Error("close range readings rows", "error", err)
		}
	}()
	return scanReadings(rows)
}

func (r *repositoryImpl) Latest(ctx context.Context) (types.Reading, error) {
	var (
		rec types.Reading
		ts  string
	)
	err := r.db.QueryRowContext(ctx, getLatestReadingSQL).Scan(&rec.DeviceID, &ts, &rec.Temperature, &rec.Humidity)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Reading{}, apperr.NotFound("no readings stored yet")
	}
	if err != nil {
		return types.Reading{}, apperr.StorageUnavailable("query latest reading", err)
	}
	t, err := parseTimestamp(ts)
	if err != nil {
		return types.Reading{}, apperr.StorageUnavailable("query latest reading", err)
	}
	rec.Timestamp = t
	return rec, nil
}

func scanReadings(rows *sql.Rows) ([]types.Reading, error) {
	out := []types.Reading{}
	for rows.Next() {
		var (
			rec types.Reading
			ts  string
		)
		if err := rows.Scan(&rec.DeviceID, &ts, &rec.Temperature, &rec.Humidity); err != nil {
			return nil, apperr.StorageUnavailable("scan reading", err)
		}
		t, err := parseTimestamp(ts)
		if err != nil {
			return nil, apperr.StorageUnavailable("scan reading", err)
		}
		rec.Timestamp = t
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.StorageUnavailable("iterate readings", err)
	}
	return out, nil
}

func parseTimestamp(ts string) (time.Time, error) {
	t, err := time.Parse(TimestampLayout, ts)
	if err == nil {
		return t, nil
	}
	t, err2 := time.Parse(time.RFC3339Nano, ts)
	if err2 != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w; RFC3339Nano: %w", ts, err, err2)
	}
	return t.UTC(), nil
}
