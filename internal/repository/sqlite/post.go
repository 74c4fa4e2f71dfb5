package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sakif/tubeclone/internal/apperror"
	"github.com/sakif/tubeclone/internal/model"
	"github.com/sakif/tubeclone/internal/repository"
)

var _ repository.PostRepository = (*DB)(nil)

// CreatePost stores a post under the id the client chose. Images and quiz
// answers go into JSON columns; they are never queried individually.
func (db *DB) CreatePost(ctx context.Context, p *model.Post) error {
	images, quiz, err := encodePostLists(p)
	if err != nil {
		return err
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO posts (id, user_id, type, text, images, quiz, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID,
		p.UserID,
		string(p.Type),
		p.Text,
		images,
		quiz,
		p.CreatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("post", p.ID)
		}
		return fmt.Errorf("sqlite: creating post %s: %w", p.ID, err)
	}
	return nil
}

func (db *DB) GetPost(ctx context.Context, userID, postID string) (*model.Post, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, type, text, images, quiz, created_at
		 FROM posts WHERE user_id = ? AND id = ?`,
		userID, postID,
	)
	p, err := scanPost(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("post", postID)
		}
		return nil, fmt.Errorf("sqlite: getting post %s: %w", postID, err)
	}
	return p, nil
}

func (db *DB) ListPosts(ctx context.Context, userID string) ([]model.Post, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, type, text, images, quiz, created_at
		 FROM posts WHERE user_id = ?
		 ORDER BY created_at DESC, rowid DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing posts for user %s: %w", userID, err)
	}
	defer rows.Close()

	posts := []model.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning post row: %w", err)
		}
		posts = append(posts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating posts: %w", err)
	}
	return posts, nil
}

func (db *DB) UpdatePostText(ctx context.Context, userID, postID, text string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE posts SET text = ? WHERE user_id = ? AND id = ?`,
		text, userID, postID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating post %s: %w", postID, err)
	}
	return requireRow(result, "post", postID)
}

func (db *DB) DeletePost(ctx context.Context, userID, postID string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM posts WHERE user_id = ? AND id = ?`,
		userID, postID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting post %s: %w", postID, err)
	}
	return requireRow(result, "post", postID)
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(s rowScanner) (*model.Post, error) {
	var p model.Post
	var typ, images, quiz string
	if err := s.Scan(&p.ID, &p.UserID, &typ, &p.Text, &images, &quiz, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.Type = model.PostType(typ)
	if err := json.Unmarshal([]byte(images), &p.Images); err != nil {
		return nil, fmt.Errorf("decoding images of post %s: %w", p.ID, err)
	}
	if err := json.Unmarshal([]byte(quiz), &p.Quiz); err != nil {
		return nil, fmt.Errorf("decoding quiz of post %s: %w", p.ID, err)
	}
	return &p, nil
}

func encodePostLists(p *model.Post) (images, quiz string, err error) {
	imgs := p.Images
	if imgs == nil {
		imgs = []string{}
	}
	answers := p.Quiz
	if answers == nil {
		answers = []model.QuizAnswer{}
	}
	ib, err := json.Marshal(imgs)
	if err != nil {
		return "", "", fmt.Errorf("sqlite: encoding images: %w", err)
	}
	qb, err := json.Marshal(answers)
	if err != nil {
		return "", "", fmt.Errorf("sqlite: encoding quiz: %w", err)
	}
	return string(ib), string(qb), nil
}

// requireRow turns "0 rows affected" into apperror.NotFound.
func requireRow(result sql.Result, resource, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}
