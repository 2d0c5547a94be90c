package repository

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"climalog/internal/apperr"
	"climalog/internal/config"
	"climalog/internal/db"
	"climalog/internal/migrate"
	"climalog/internal/modules/readings/types"

	_ "github.com/mattn/go-sqlite3"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	t.Cleanup(func() {
		if closeErr := conn.Close(); closeErr != nil {
			t.Fatalf("close db: %v", closeErr)
		}
	})
	if err := migrate.Run(context.Background(), conn, nil); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func at(minute int) time.Time {
	return time.Date(2025, 2, 1, 12, minute, 0, 0, time.UTC)
}

func mustInsert(t *testing.T, repo ReadingRepository, rs ...types.Reading) {
	t.Helper()
	for _, r := range rs {
		if err := repo.Insert(context.Background(), r); err != nil {
			t.Fatalf("Insert(%+v): %v", r, err)
		}
	}
}

func TestInsert_DuplicateKey(t *testing.T) {
	conn := setupTestDB(t)
	repo := NewRepository(conn, nil)
	ctx := context.Background()

	r := types.Reading{DeviceID: "esp32-1", Timestamp: at(0), Temperature: 22, Humidity: 50}
	mustInsert(t, repo, r)

	dup := r
	dup.Temperature = 30
	err := repo.Insert(ctx, dup)
	if !errors.Is(err, apperr.ErrDuplicateKey) {
		t.Fatalf("second Insert error = %v, want ErrDuplicateKey", err)
	}

	var n int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM readings WHERE device_id = ?`, "esp32-1").Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("stored %d records, want 1", n)
	}
	got, err := repo.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if got.Temperature != 22 {
		t.Errorf("duplicate overwrote stored value: temperature = %v", got.Temperature)
	}
}

func TestInsert_SameTimestampOtherDevice(t *testing.T) {
	repo := NewRepository(setupTestDB(t), nil)
	mustInsert(t, repo,
		types.Reading{DeviceID: "a", Timestamp: at(0), Temperature: 22, Humidity: 50},
		types.Reading{DeviceID: "b", Timestamp: at(0), Temperature: 23, Humidity: 51},
	)
}

func TestInsert_SubSecondTimestampsAreDistinct(t *testing.T) {
	repo := NewRepository(setupTestDB(t), nil)
	base := at(0)
	mustInsert(t, repo,
		types.Reading{DeviceID: "a", Timestamp: base, Temperature: 22, Humidity: 50},
		types.Reading{DeviceID: "a", Timestamp: base.Add(time.Millisecond), Temperature: 22, Humidity: 50},
	)
	got, err := repo.QueryRecent(context.Background(), 10)
	if err != nil {
		t.Fatalf("QueryRecent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d readings, want 2", len(got))
	}
	if !got[0].Timestamp.Equal(base.Add(time.Millisecond)) {
		t.Errorf("newest = %v, want %v", got[0].Timestamp, base.Add(time.Millisecond))
	}
}

func TestInsert_NonUTCNormalised(t *testing.T) {
	conn := setupTestDB(t)
	repo := NewRepository(conn, nil)
	loc := time.FixedZone("CET", 3600)
	local := time.Date(2025, 2, 1, 13, 0, 0, 0, loc)
	mustInsert(t, repo, types.Reading{DeviceID: "a", Timestamp: local, Temperature: 22, Humidity: 50})

	err := repo.Insert(context.Background(), types.Reading{DeviceID: "a", Timestamp: at(0), Temperature: 22, Humidity: 50})
	if !errors.Is(err, apperr.ErrDuplicateKey) {
		t.Fatalf("same instant in UTC: error = %v, want ErrDuplicateKey", err)
	}

	var ts string
	if err := conn.QueryRow(`SELECT ts FROM readings`).Scan(&ts); err != nil {
		t.Fatalf("select ts: %v", err)
	}
	if ts != "2025-02-01T12:00:00.000000000Z" {
		t.Errorf("stored ts = %q", ts)
	}
}

func TestInsert_RejectsInvalid(t *testing.T) {
	repo := NewRepository(setupTestDB(t), nil)
	tests := []struct {
		name string
		r    types.Reading
		want error
	}{
		{"empty device", types.Reading{DeviceID: " ", Timestamp: at(0), Temperature: 22, Humidity: 50}, apperr.ErrMissingField},
		{"hot", types.Reading{DeviceID: "a", Timestamp: at(0), Temperature: 50.1, Humidity: 50}, apperr.ErrOutOfRange},
		{"dry", types.Reading{DeviceID: "a", Timestamp: at(0), Temperature: 22, Humidity: 19.9}, apperr.ErrOutOfRange},
		{"nan", types.Reading{DeviceID: "a", Timestamp: at(0), Temperature: math.NaN(), Humidity: 50}, apperr.ErrOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := repo.Insert(context.Background(), tt.r)
			if !errors.Is(err, tt.want) || !errors.Is(err, apperr.ErrInvalidReading) {
				t.Errorf("Insert error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestQueryRecent(t *testing.T) {
	repo := NewRepository(setupTestDB(t), nil)
	for m := 0; m < 5; m++ {
		mustInsert(t, repo, types.Reading{DeviceID: "a", Timestamp: at(m), Temperature: 20 + float64(m), Humidity: 50})
	}

	got, err := repo.QueryRecent(context.Background(), 3)
	if err != nil {
		t.Fatalf("QueryRecent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d readings, want 3", len(got))
	}
	// Newest first: 24, 23, 22
	if got[0].Temperature != 24 || got[1].Temperature != 23 || got[2].Temperature != 22 {
		t.Errorf("order = %v %v %v", got[0].Temperature, got[1].Temperature, got[2].Temperature)
	}

	none, err := repo.QueryRecent(context.Background(), 0)
	if err != nil || len(none) != 0 {
		t.Errorf("QueryRecent(0) = %v, %v", none, err)
	}
}

func TestQueryRange_InclusiveChronological(t *testing.T) {
	repo := NewRepository(setupTestDB(t), nil)
	for _, m := range []int{30, 10, 0, 20, 40} {
		mustInsert(t, repo, types.Reading{DeviceID: "a", Timestamp: at(m), Temperature: float64(m), Humidity: 50})
	}

	got, err := repo.QueryRange(context.Background(), at(10), at(30))
	if err != nil {
		t.Fatalf("QueryRange: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d readings, want 3", len(got))
	}
	for i, want := range []float64{10, 20, 30} {
		if got[i].Temperature != want {
			t.Errorf("got[%d].Temperature = %v, want %v", i, got[i].Temperature, want)
		}
		if got[i].Timestamp.Location() != time.UTC {
			t.Errorf("got[%d].Timestamp not UTC: %v", i, got[i].Timestamp)
		}
	}

	empty, err := repo.QueryRange(context.Background(), at(30), at(10))
	if err != nil || len(empty) != 0 {
		t.Errorf("inverted range = %v, %v", empty, err)
	}
}

func TestLatest(t *testing.T) {
	repo := NewRepository(setupTestDB(t), nil)
	ctx := context.Background()

	if _, err := repo.Latest(ctx); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("Latest on empty store: error = %v, want ErrNotFound", err)
	}

	mustInsert(t, repo,
		types.Reading{DeviceID: "a", Timestamp: at(5), Temperature: 25, Humidity: 55},
		types.Reading{DeviceID: "a", Timestamp: at(1), Temperature: 21, Humidity: 51},
	)
	got, err := repo.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if !got.Timestamp.Equal(at(5)) || got.Temperature != 25 || got.Humidity != 55 || got.DeviceID != "a" {
		t.Errorf("Latest = %+v", got)
	}
}

func TestStorageUnavailable(t *testing.T) {
	conn := setupTestDB(t)
	repo := NewRepository(conn, nil)
	if _, err := conn.Exec(`DROP TABLE readings`); err != nil {
		t.Fatalf("drop: %v", err)
	}
	err := repo.Insert(context.Background(), types.Reading{DeviceID: "a", Timestamp: at(0), Temperature: 22, Humidity: 50})
	if !errors.Is(err, apperr.ErrStorageUnavailable) {
		t.Errorf("Insert error = %v, want ErrStorageUnavailable", err)
	}
	if _, err := repo.QueryRecent(context.Background(), 10); !errors.Is(err, apperr.ErrStorageUnavailable) {
		t.Errorf("QueryRecent error = %v, want ErrStorageUnavailable", err)
	}
}

func TestInsert_ConcurrentDuplicates(t *testing.T) {
	cfg := config.Config{
		SQLiteDriver:       "sqlite3",
		SQLitePath:         filepath.Join(t.TempDir(), "readings.db"),
		SQLiteMaxOpenConns: 8,
		SQLiteMaxIdleConns: 8,
	}
	conn, err := db.Open(cfg, nil)
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(conn) })
	if err := migrate.Run(context.Background(), conn, nil); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	repo := NewRepository(conn, nil)

	const workers = 8
	r := types.Reading{DeviceID: "esp32-race", Timestamp: at(0), Temperature: 22, Humidity: 50}
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		dups      int
		other     []error
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := repo.Insert(context.Background(), r)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, apperr.ErrDuplicateKey):
				dups++
			default:
				other = append(other, err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if len(other) > 0 {
		t.Fatalf("unexpected errors: %v", other)
	}
	if succeeded != 1 || dups != workers-1 {
		t.Errorf("succeeded=%d duplicates=%d, want 1 and %d", succeeded, dups, workers-1)
	}
}

var _ ReadingRepository = (*repositoryImpl)(nil)
