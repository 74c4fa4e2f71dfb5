package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sakif/tubeclone/internal/apperror"
	"github.com/sakif/tubeclone/internal/model"
	"github.com/sakif/tubeclone/internal/repository"
)

var _ repository.ReportRepository = (*DB)(nil)

func (db *DB) ListReportReasons(ctx context.Context) ([]model.ReportReason, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, label FROM report_reasons ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing report reasons: %w", err)
	}
	defer rows.Close()

	var reasons []model.ReportReason
	for rows.Next() {
		var r model.ReportReason
		if err := rows.Scan(&r.ID, &r.Label); err != nil {
			return nil, fmt.Errorf("sqlite: scanning report reason: %w", err)
		}
		reasons = append(reasons, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating report reasons: %w", err)
	}
	return reasons, nil
}

func (db *DB) GetReportReason(ctx context.Context, id string) (*model.ReportReason, error) {
	var r model.ReportReason
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, label FROM report_reasons WHERE id = ?`, id,
	).Scan(&r.ID, &r.Label)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("report reason", id)
		}
		return nil, fmt.Errorf("sqlite: getting report reason %s: %w", id, err)
	}
	return &r, nil
}

// SaveReport uses INSERT OR REPLACE on the (user_id, video_id) key, so a
// second report for the same video replaces the first.
func (db *DB) SaveReport(ctx context.Context, r *model.Report) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT OR REPLACE INTO reports
		   (user_id, video_id, video_title, channel_title, reason_id, reason_title, status, type, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.UserID,
		r.VideoID,
		r.VideoTitle,
		r.ChannelTitle,
		r.ReasonID,
		r.ReasonTitle,
		r.Status,
		r.Type,
		r.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: saving report for video %s: %w", r.VideoID, err)
	}
	return nil
}

func (db *DB) ListReports(ctx context.Context, userID string) ([]model.Report, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT user_id, video_id, video_title, channel_title, reason_id, reason_title, status, type, created_at
		 FROM reports WHERE user_id = ?
		 ORDER BY created_at DESC, rowid DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing reports for user %s: %w", userID, err)
	}
	defer rows.Close()

	reports := []model.Report{}
	for rows.Next() {
		var r model.Report
		if err := rows.Scan(
			&r.UserID, &r.VideoID, &r.VideoTitle, &r.ChannelTitle,
			&r.ReasonID, &r.ReasonTitle, &r.Status, &r.Type, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning report row: %w", err)
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating reports: %w", err)
	}
	return reports, nil
}
