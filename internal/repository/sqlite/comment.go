package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/tubeclone/internal/apperror"
	"github.com/sakif/tubeclone/internal/model"
	"github.com/sakif/tubeclone/internal/repository"
)

var _ repository.CommentRepository = (*DB)(nil)

// CreateComment inserts a comment or reply with a fresh xid and a zero like
// count. The id is returned on the struct so callers can echo it back.
func (db *DB) CreateComment(ctx context.Context, c *model.Comment) error {
	c.ID = xid.New().String()
	c.LikeCount = 0
	c.PublishedAt = time.Now().UTC()
	if c.Kind == "" {
		c.Kind = model.CommentTopLevel
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO comments (id, user_id, video_id, parent_id, kind, text, channel_id, like_count, published_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID,
		c.UserID,
		c.VideoID,
		c.ParentID,
		string(c.Kind),
		c.Text,
		c.ChannelID,
		c.LikeCount,
		c.PublishedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating comment on video %s: %w", c.VideoID, err)
	}
	return nil
}

func (db *DB) ListCommentsByVideo(ctx context.Context, userID, videoID string) ([]model.Comment, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, video_id, parent_id, kind, text, channel_id, like_count, published_at
		 FROM comments
		 WHERE user_id = ? AND video_id = ?
		 ORDER BY published_at DESC, rowid DESC`,
		userID, videoID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing comments on video %s: %w", videoID, err)
	}
	defer rows.Close()

	var comments []model.Comment
	for rows.Next() {
		var c model.Comment
		var kind string
		if err := rows.Scan(
			&c.ID, &c.UserID, &c.VideoID, &c.ParentID, &kind,
			&c.Text, &c.ChannelID, &c.LikeCount, &c.PublishedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning comment row: %w", err)
		}
		c.Kind = model.CommentKind(kind)
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating comments: %w", err)
	}
	return comments, nil
}

// UpdateCommentText re-texts one comment.
//
// With a parent id the caller may not know which reply branch was used when
// the reply was written, so the WHERE clause accepts both reply kinds. At most
// one row can match because ids are unique.
func (db *DB) UpdateCommentText(ctx context.Context, e repository.CommentEdit) error {
	query := `UPDATE comments SET text = ? WHERE user_id = ? AND id = ?`
	args := []any{e.Text, e.UserID, e.CommentID}

	if e.ParentID != "" {
		query += ` AND parent_id = ? AND kind IN (?, ?)`
		args = append(args, e.ParentID, string(model.CommentOwnReply), string(model.CommentForeignReply))
	} else {
		query += ` AND kind = ?`
		args = append(args, string(model.CommentTopLevel))
	}
	if e.VideoID != "" {
		query += ` AND video_id = ?`
		args = append(args, e.VideoID)
	}

	result, err := db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("sqlite: updating comment %s: %w", e.CommentID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("comment", e.CommentID)
	}
	return nil
}
