package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/tubeclone/internal/apperror"
	"github.com/sakif/tubeclone/internal/model"
	"github.com/sakif/tubeclone/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, email, password_hash, google_id, name, picture, sign_in_mode,
	channel_id, channel_name, channel_display_name, channel_description,
	channel_profile_url, channel_banner_url, created_at, updated_at`

// CreateUser inserts a new account.
//
// The ID is generated here unless the caller already chose one (local signup
// does, so the channel id can equal the user id in a single write). The
// UNIQUE constraint on email is the source of truth for duplicates; a
// concurrent signup with the same email loses at the INSERT, not at a
// separate SELECT.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	if user.ID == "" {
		user.ID = xid.New().String()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.GoogleID,
		user.Name,
		user.Picture,
		string(user.SignInMode),
		user.Channel.ChannelID,
		user.Channel.Name,
		user.Channel.DisplayName,
		user.Channel.Description,
		user.Channel.ProfileURL,
		user.Channel.BannerURL,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.Email)
		}
		return fmt.Errorf("sqlite: inserting user %s: %w", user.Email, err)
	}

	return nil
}

// GetUserByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}
	return u, nil
}

// UpdateChannel overwrites the whole channel profile.
func (db *DB) UpdateChannel(ctx context.Context, userID string, ch model.Channel) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE users
		 SET channel_name = ?, channel_display_name = ?, channel_description = ?,
		     channel_profile_url = ?, channel_banner_url = ?, updated_at = ?
		 WHERE id = ?`,
		ch.Name,
		ch.DisplayName,
		ch.Description,
		ch.ProfileURL,
		ch.BannerURL,
		time.Now().UTC(),
		userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating channel of user %s: %w", userID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("user", userID)
	}
	return nil
}

func scanUser(row *sql.Row) (*model.User, error) {
	var u model.User
	var mode string
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.GoogleID,
		&u.Name,
		&u.Picture,
		&mode,
		&u.Channel.ChannelID,
		&u.Channel.Name,
		&u.Channel.DisplayName,
		&u.Channel.Description,
		&u.Channel.ProfileURL,
		&u.Channel.BannerURL,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.SignInMode = model.SignInMode(mode)
	return &u, nil
}

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY failure.
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	code := se.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}
