package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/tubeclone/internal/model"
	"github.com/sakif/tubeclone/internal/repository"
)

var _ repository.PreferenceRepository = (*DB)(nil)

func (db *DB) HasPreference(ctx context.Context, userID string, rel model.Relation, targetID string) (bool, error) {
	var one int
	err := db.conn.QueryRowContext(ctx,
		`SELECT 1 FROM preferences WHERE user_id = ? AND relation = ? AND target_id = ?`,
		userID, string(rel), targetID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlite: checking %s %s for user %s: %w", rel, targetID, userID, err)
	}
	return true, nil
}

// AddPreference is a no-op when the row already exists.
func (db *DB) AddPreference(ctx context.Context, userID string, rel model.Relation, targetID string) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO preferences (user_id, relation, target_id, created_at)
		 VALUES (?, ?, ?, ?)`,
		userID, string(rel), targetID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: adding %s %s for user %s: %w", rel, targetID, userID, err)
	}
	return nil
}

// RemovePreference is a no-op when the row does not exist.
func (db *DB) RemovePreference(ctx context.Context, userID string, rel model.Relation, targetID string) error {
	_, err := db.conn.ExecContext(ctx,
		`DELETE FROM preferences WHERE user_id = ? AND relation = ? AND target_id = ?`,
		userID, string(rel), targetID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: removing %s %s for user %s: %w", rel, targetID, userID, err)
	}
	return nil
}

func (db *DB) ListPreferenceTargets(ctx context.Context, userID string, rel model.Relation) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT target_id FROM preferences
		 WHERE user_id = ? AND relation = ?
		 ORDER BY rowid`,
		userID, string(rel),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing %s for user %s: %w", rel, userID, err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scanning %s row: %w", rel, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating %s: %w", rel, err)
	}
	return ids, nil
}
