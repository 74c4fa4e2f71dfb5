package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/sakif/tubeclone/internal/model"
	"github.com/sakif/tubeclone/internal/repository"
)

var _ repository.HistoryRepository = (*DB)(nil)

// RecordView relies on the (user_id, video_id) primary key: INSERT OR IGNORE
// makes the existence check and the write a single statement.
func (db *DB) RecordView(ctx context.Context, userID, videoID string, at time.Time) (bool, error) {
	result, err := db.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO watch_history (user_id, video_id, watched_at) VALUES (?, ?, ?)`,
		userID, videoID, at.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: recording view of %s: %w", videoID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return n > 0, nil
}

func (db *DB) ListHistory(ctx context.Context, userID string) ([]model.HistoryEntry, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT video_id, watched_at FROM watch_history
		 WHERE user_id = ?
		 ORDER BY watched_at DESC, rowid DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing history for user %s: %w", userID, err)
	}
	defer rows.Close()

	entries := []model.HistoryEntry{}
	for rows.Next() {
		var e model.HistoryEntry
		if err := rows.Scan(&e.VideoID, &e.WatchedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning history row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating history: %w", err)
	}
	return entries, nil
}
