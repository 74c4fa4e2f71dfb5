// Package repository declares the storage contracts the services depend on.
//
// Two implementations exist: sqlite (the default, a single file or :memory:)
// and firestore (the hosted document store). Every method is keyed by the
// acting user's ID; isolation between users comes from that key alone, there
// are no cross-document transactions.
package repository

import (
	"context"
	"time"

	"github.com/sakif/tubeclone/internal/model"
)

type UserRepository interface {
	// CreateUser assigns ID and timestamps. Returns apperror.ErrConflict when
	// the email is already registered.
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateChannel(ctx context.Context, userID string, channel model.Channel) error
}

// PreferenceRepository is the (user, relation, target) membership set behind
// likes, dislikes and subscriptions. Add and Remove are idempotent.
type PreferenceRepository interface {
	HasPreference(ctx context.Context, userID string, rel model.Relation, targetID string) (bool, error)
	AddPreference(ctx context.Context, userID string, rel model.Relation, targetID string) error
	RemovePreference(ctx context.Context, userID string, rel model.Relation, targetID string) error
	// ListPreferenceTargets returns bare target ids in insertion order.
	ListPreferenceTargets(ctx context.Context, userID string, rel model.Relation) ([]string, error)
}

// CommentEdit identifies a comment to re-text. With ParentID set it matches a
// reply of either kind; without, a top-level comment. VideoID narrows the
// match when given.
type CommentEdit struct {
	UserID    string
	CommentID string
	ParentID  string
	VideoID   string
	Text      string
}

type CommentRepository interface {
	// CreateComment assigns ID and PublishedAt.
	CreateComment(ctx context.Context, comment *model.Comment) error
	// ListCommentsByVideo returns every kind the user authored on the video,
	// newest first.
	ListCommentsByVideo(ctx context.Context, userID, videoID string) ([]model.Comment, error)
	// UpdateCommentText returns apperror.ErrNotFound when nothing matched.
	UpdateCommentText(ctx context.Context, edit CommentEdit) error
}

type HistoryRepository interface {
	// RecordView stores the first view of a video and reports whether a new
	// entry was written. Later views leave the original timestamp untouched.
	RecordView(ctx context.Context, userID, videoID string, at time.Time) (bool, error)
	// ListHistory is ordered by watched time, newest first.
	ListHistory(ctx context.Context, userID string) ([]model.HistoryEntry, error)
}

type ReportRepository interface {
	ListReportReasons(ctx context.Context) ([]model.ReportReason, error)
	GetReportReason(ctx context.Context, id string) (*model.ReportReason, error)
	// SaveReport overwrites any earlier report by the same user for the same video.
	SaveReport(ctx context.Context, report *model.Report) error
	ListReports(ctx context.Context, userID string) ([]model.Report, error)
}

type PostRepository interface {
	CreatePost(ctx context.Context, post *model.Post) error
	GetPost(ctx context.Context, userID, postID string) (*model.Post, error)
	// ListPosts is ordered by creation time, newest first.
	ListPosts(ctx context.Context, userID string) ([]model.Post, error)
	UpdatePostText(ctx context.Context, userID, postID, text string) error
	DeletePost(ctx context.Context, userID, postID string) error
}

// Store is everything a backend provides. cmd/server picks one at startup.
type Store interface {
	UserRepository
	PreferenceRepository
	CommentRepository
	HistoryRepository
	ReportRepository
	PostRepository
	Close() error
}

// DefaultReportReasons seeds an empty report_reasons collection.
var DefaultReportReasons = []model.ReportReason{
	{ID: "sexual_content", Label: "Sexual content"},
	{ID: "violent_content", Label: "Violent or repulsive content"},
	{ID: "hateful_content", Label: "Hateful or abusive content"},
	{ID: "harassment", Label: "Harassment or bullying"},
	{ID: "dangerous_acts", Label: "Harmful or dangerous acts"},
	{ID: "misinformation", Label: "Misinformation"},
	{ID: "child_abuse", Label: "Child abuse"},
	{ID: "terrorism", Label: "Promotes terrorism"},
	{ID: "spam", Label: "Spam or misleading"},
	{ID: "legal", Label: "Legal issue"},
	{ID: "captions", Label: "Captions issue"},
}
