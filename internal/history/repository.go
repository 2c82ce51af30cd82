package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	defaultLimit = 50
	maxLimit     = 500

	// timeLayout is fixed width so recorded_at sorts lexically.
	timeLayout = "2006-01-02T15:04:05.000000000Z"
)

// ErrInvalidEntry is returned for entries missing a gateway name or with a
// negative instance id.
var ErrInvalidEntry = errors.New("history: invalid entry")

// Entry is one recorded snapshot.
type Entry struct {
	ID         int64
	Gateway    string
	Instance   int
	Fields     map[string]string
	RecordedAt time.Time
}

// SQLiteRepository stores snapshots as JSON in the snapshot_history table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository on an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// RecordSnapshot inserts one snapshot of an instance's status buffer.
func (r *SQLiteRepository) RecordSnapshot(ctx context.Context, gateway string, instance int, fields map[string]string, at time.Time) error {
	if gateway == "" || instance < 0 {
		return fmt.Errorf("%w: gateway %q instance %d", ErrInvalidEntry, gateway, instance)
	}
	if fields == nil {
		fields = map[string]string{}
	}

	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshalling fields: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		"INSERT INTO snapshot_history (gateway, instance, fields, recorded_at) VALUES (?, ?, ?, ?)",
		gateway,
		instance,
		string(fieldsJSON),
		at.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting snapshot history: %w", err)
	}
	return nil
}

// GetHistory returns recent snapshots of one instance, newest first.
// limit defaults to 50 and is capped at 500.
func (r *SQLiteRepository) GetHistory(ctx context.Context, gateway string, instance, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	limit = min(limit, maxLimit)

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, gateway, instance, fields, recorded_at
		 FROM snapshot_history
		 WHERE gateway = ? AND instance = ?
		 ORDER BY recorded_at DESC, id DESC
		 LIMIT ?`,
		gateway,
		instance,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying snapshot history: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var entry Entry
		var fieldsJSON, recordedAt string

		if err := rows.Scan(&entry.ID, &entry.Gateway, &entry.Instance, &fieldsJSON, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning snapshot history: %w", err)
		}
		if err := json.Unmarshal([]byte(fieldsJSON), &entry.Fields); err != nil {
			return nil, fmt.Errorf("unmarshalling fields: %w", err)
		}
		entry.RecordedAt, err = time.Parse(timeLayout, recordedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing recorded_at: %w", err)
		}

		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating snapshot history: %w", err)
	}

	return entries, nil
}

// Prune deletes snapshots recorded before the cutoff and reports how many
// rows went.
func (r *SQLiteRepository) Prune(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM snapshot_history WHERE recorded_at < ?",
		before.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("deleting snapshot history: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}
