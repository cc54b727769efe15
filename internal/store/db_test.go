package store

import (
	"path/filepath"
	"testing"
)

func TestOpenCreatesSchema(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "devlog.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	v, err := db.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != len(migrations) {
		t.Errorf("schema version = %d, want %d", v, len(migrations))
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devlog.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	db.Close()

	db, err = Open(path)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	defer db.Close()

	v, _ := db.SchemaVersion()
	if v != len(migrations) {
		t.Errorf("schema version after reopen = %d, want %d", v, len(migrations))
	}
}

func TestRunBuckets(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	bucket, err := db.GetRunBucket("daily")
	if err != nil {
		t.Fatalf("GetRunBucket: %v", err)
	}
	if bucket != "" {
		t.Errorf("bucket = %q, want empty before first run", bucket)
	}

	if err := db.SetRunBucket("daily", "2026-08-30", 1000); err != nil {
		t.Fatalf("SetRunBucket: %v", err)
	}
	bucket, _ = db.GetRunBucket("daily")
	if bucket != "2026-08-30" {
		t.Errorf("bucket = %q, want 2026-08-30", bucket)
	}

	// Upsert replaces.
	if err := db.SetRunBucket("daily", "2026-08-31", 2000); err != nil {
		t.Fatalf("SetRunBucket update: %v", err)
	}
	bucket, _ = db.GetRunBucket("daily")
	if bucket != "2026-08-31" {
		t.Errorf("bucket = %q, want 2026-08-31", bucket)
	}

	// Granularities are independent.
	bucket, _ = db.GetRunBucket("weekly")
	if bucket != "" {
		t.Errorf("weekly bucket = %q, want empty", bucket)
	}
}
