package migrate

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func openMemory(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		in      string
		version string
		name    string
		ok      bool
	}{
		{"0001_readings.sql", "0001", "readings", true},
		{"0042_add_index_ts.sql", "0042", "add_index_ts", true},
		{"1_short.sql", "", "", false},
		{"0001_readings.txt", "", "", false},
		{"readme.md", "", "", false},
	}
	for _, tt := range tests {
		v, n, ok := parseMigrationFilename(tt.in)
		if v != tt.version || n != tt.name || ok != tt.ok {
			t.Errorf("parseMigrationFilename(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.in, v, n, ok, tt.version, tt.name, tt.ok)
		}
	}
}

func TestRun_AppliesSchemaOnce(t *testing.T) {
	ctx := context.Background()
	db := openMemory(t)

	if err := Run(ctx, db, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := Run(ctx, db, nil); err != nil {
		t.Fatalf("second Run: %v", err)
	}

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&n); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	all, err := embedded()
	if err != nil {
		t.Fatalf("embedded: %v", err)
	}
	if n != len(all) {
		t.Errorf("schema_migrations rows = %d, want %d", n, len(all))
	}

	for _, table := range []string{"readings", "firmware"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestStatus(t *testing.T) {
	ctx := context.Background()
	db := openMemory(t)

	before, err := Status(ctx, db)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(before) < 2 {
		t.Fatalf("Status returned %d migrations, want at least 2", len(before))
	}
	for i, m := range before {
		if m.Applied {
			t.Errorf("migration %s applied before Run", m.Version)
		}
		if i > 0 && before[i-1].Version >= m.Version {
			t.Errorf("migrations not ordered: %s before %s", before[i-1].Version, m.Version)
		}
	}

	if err := Run(ctx, db, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	after, err := Status(ctx, db)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	for _, m := range after {
		if !m.Applied {
			t.Errorf("migration %s not applied after Run", m.Version)
		}
	}
}

func TestSchema_ReadingKeyAndChecks(t *testing.T) {
	ctx := context.Background()
	db := openMemory(t)
	if err := Run(ctx, db, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	const insert = `INSERT INTO readings (device_id, ts, temperature_c, humidity_pct) VALUES (?, ?, ?, ?)`
	if _, err := db.Exec(insert, "esp32", "2025-02-01T12:00:00.000000000Z", 22.0, 50.0); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := db.Exec(insert, "esp32", "2025-02-01T12:00:00.000000000Z", 23.0, 51.0); err == nil {
		t.Error("duplicate (device_id, ts) accepted")
	}
	if _, err := db.Exec(insert, "other", "2025-02-01T12:00:00.000000000Z", 23.0, 51.0); err != nil {
		t.Errorf("same ts for another device rejected: %v", err)
	}
	if _, err := db.Exec(insert, "esp32", "2025-02-01T12:01:00.000000000Z", 60.0, 50.0); err == nil {
		t.Error("temperature 60 accepted by CHECK")
	}
}
