package history_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/hashpipe-gateway/internal/history"
	"github.com/nerrad567/hashpipe-gateway/internal/infrastructure/database"
	_ "github.com/nerrad567/hashpipe-gateway/migrations"
)

// setupRepository opens a temp database with the real schema applied.
func setupRepository(t *testing.T) *history.SQLiteRepository {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "history.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return history.NewSQLiteRepository(db.DB)
}

func TestRecordSnapshot(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()
	at := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

	if err := repo.RecordSnapshot(ctx, "px1", 0, map[string]string{"RA": "156.3", "OBSNAME": "CasA"}, at); err != nil {
		t.Fatalf("RecordSnapshot() error = %v", err)
	}

	entries, err := repo.GetHistory(ctx, "px1", 0, 10)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	got := entries[0]
	if got.Gateway != "px1" || got.Instance != 0 {
		t.Errorf("entry = %s/%d, want px1/0", got.Gateway, got.Instance)
	}
	if got.Fields["RA"] != "156.3" || got.Fields["OBSNAME"] != "CasA" {
		t.Errorf("Fields = %v", got.Fields)
	}
	if !got.RecordedAt.Equal(at) {
		t.Errorf("RecordedAt = %v, want %v", got.RecordedAt, at)
	}
}

func TestRecordSnapshot_Invalid(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		gateway  string
		instance int
	}{
		{"empty gateway", "", 0},
		{"negative instance", "px1", -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := repo.RecordSnapshot(ctx, tt.gateway, tt.instance, nil, time.Now())
			if !errors.Is(err, history.ErrInvalidEntry) {
				t.Errorf("RecordSnapshot() error = %v, want ErrInvalidEntry", err)
			}
		})
	}
}

func TestGetHistory_OrderAndFilter(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

	for i := range 5 {
		fields := map[string]string{"N": string(rune('a' + i))}
		if err := repo.RecordSnapshot(ctx, "px1", 1, fields, base.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatal(err)
		}
	}
	if err := repo.RecordSnapshot(ctx, "px1", 2, nil, base); err != nil {
		t.Fatal(err)
	}
	if err := repo.RecordSnapshot(ctx, "px2", 1, nil, base); err != nil {
		t.Fatal(err)
	}

	entries, err := repo.GetHistory(ctx, "px1", 1, 3)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("len(entries) = %d, want 3", len(entries))
	}
	for i, want := range []string{"e", "d", "c"} {
		if entries[i].Fields["N"] != want {
			t.Errorf("entries[%d].N = %q, want %q", i, entries[i].Fields["N"], want)
		}
	}

	entries, err = repo.GetHistory(ctx, "px1", 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || len(entries[0].Fields) != 0 {
		t.Errorf("px1/2 entries = %+v, want one empty snapshot", entries)
	}
}

func TestPrune(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

	for _, age := range []time.Duration{72 * time.Hour, 48 * time.Hour, time.Hour, 0} {
		if err := repo.RecordSnapshot(ctx, "px1", 0, nil, now.Add(-age)); err != nil {
			t.Fatal(err)
		}
	}

	deleted, err := repo.Prune(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if deleted != 2 {
		t.Errorf("Prune() deleted = %d, want 2", deleted)
	}

	entries, err := repo.GetHistory(ctx, "px1", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("remaining = %d, want 2", len(entries))
	}
}
