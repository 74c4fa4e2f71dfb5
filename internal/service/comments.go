package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"google.golang.org/api/youtube/v3"

	"github.com/sakif/tubeclone/internal/apperror"
	"github.com/sakif/tubeclone/internal/model"
	"github.com/sakif/tubeclone/internal/repository"
)

// MaxCommentLength matches the platform's own limit.
const MaxCommentLength = 10000

// ReplyInput is a reply as the client sends it. AuthorChannelID is the
// channel of the comment being replied to.
type ReplyInput struct {
	ParentID        string
	Text            string
	AuthorChannelID string
}

// CommentEditInput identifies a comment to re-text. ParentID is set when the
// comment is a reply.
type CommentEditInput struct {
	CommentID string
	Text      string
	ParentID  string
	VideoID   string
}

// Comments is the local comment store plus the mapping of local rows into the
// platform's comment shapes, so the client renders both the same way.
type Comments struct {
	repo   repository.CommentRepository
	logger *slog.Logger
}

func NewComments(repo repository.CommentRepository, logger *slog.Logger) *Comments {
	return &Comments{repo: repo, logger: logger}
}

func validateCommentText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperror.ValidationFailed("text", "comment text is required")
	}
	if utf8.RuneCountInString(text) > MaxCommentLength {
		return "", apperror.ValidationFailed("text",
			fmt.Sprintf("comment must be %d characters or less", MaxCommentLength))
	}
	return text, nil
}

// AddTopLevel stores a new top-level comment. channelID is the channel that
// owns the video.
func (c *Comments) AddTopLevel(ctx context.Context, user *model.User, videoID, text, channelID string) (*model.Comment, error) {
	if strings.TrimSpace(videoID) == "" {
		return nil, apperror.ValidationFailed("videoId", "video ID is required")
	}
	text, err := validateCommentText(text)
	if err != nil {
		return nil, err
	}

	comment := &model.Comment{
		UserID:    user.ID,
		VideoID:   videoID,
		Kind:      model.CommentTopLevel,
		Text:      text,
		ChannelID: channelID,
	}
	if err := c.repo.CreateComment(ctx, comment); err != nil {
		return nil, fmt.Errorf("creating comment: %w", err)
	}

	c.logger.Info("comment added",
		slog.String("userID", user.ID),
		slog.String("videoID", videoID),
		slog.String("commentID", comment.ID),
	)
	return comment, nil
}

// AddReply stores a reply. A reply whose AuthorChannelID is the user's own
// channel is an own reply; anything else is filed under the foreign parent.
// The branch is decided here, once.
func (c *Comments) AddReply(ctx context.Context, user *model.User, videoID string, in ReplyInput) (*model.Comment, error) {
	if strings.TrimSpace(videoID) == "" {
		return nil, apperror.ValidationFailed("videoId", "video ID is required")
	}
	if strings.TrimSpace(in.ParentID) == "" {
		return nil, apperror.ValidationFailed("parentId", "parent comment ID is required")
	}
	text, err := validateCommentText(in.Text)
	if err != nil {
		return nil, err
	}

	kind := model.CommentForeignReply
	if in.AuthorChannelID != "" && in.AuthorChannelID == user.Channel.ChannelID {
		kind = model.CommentOwnReply
	}

	reply := &model.Comment{
		UserID:   user.ID,
		VideoID:  videoID,
		ParentID: in.ParentID,
		Kind:     kind,
		Text:     text,
	}
	if err := c.repo.CreateComment(ctx, reply); err != nil {
		return nil, fmt.Errorf("creating reply: %w", err)
	}

	c.logger.Info("reply added",
		slog.String("userID", user.ID),
		slog.String("videoID", videoID),
		slog.String("parentID", in.ParentID),
		slog.String("kind", string(kind)),
	)
	return reply, nil
}

// Edit re-texts a comment. With a ParentID both reply branches are searched,
// since the caller does not know which one the reply went to.
func (c *Comments) Edit(ctx context.Context, userID string, in CommentEditInput) error {
	if strings.TrimSpace(in.CommentID) == "" {
		return apperror.ValidationFailed("commentId", "comment ID is required")
	}
	text, err := validateCommentText(in.Text)
	if err != nil {
		return err
	}

	return c.repo.UpdateCommentText(ctx, repository.CommentEdit{
		UserID:    userID,
		CommentID: in.CommentID,
		ParentID:  in.ParentID,
		VideoID:   in.VideoID,
		Text:      text,
	})
}

// Threads loads the user's comments on a video and shapes them as platform
// comment threads, newest first.
//
// Replies whose parent is one of these threads are attached to it, and the
// thread's reply count is the number attached. Every other reply (a reply to
// someone else's comment) is returned in repliedOthers, keyed by parent id,
// for the client to merge into the external thread it belongs to.
func (c *Comments) Threads(ctx context.Context, user *model.User, videoID string) (threads []*youtube.CommentThread, repliedOthers map[string][]*youtube.Comment, err error) {
	rows, err := c.repo.ListCommentsByVideo(ctx, user.ID, videoID)
	if err != nil {
		return nil, nil, fmt.Errorf("listing comments: %w", err)
	}

	var tops []model.Comment
	replies := make(map[string][]model.Comment)
	for _, row := range rows {
		if row.Kind == model.CommentTopLevel {
			tops = append(tops, row)
			continue
		}
		replies[row.ParentID] = append(replies[row.ParentID], row)
	}

	slices.SortStableFunc(tops, func(a, b model.Comment) int {
		return b.PublishedAt.Compare(a.PublishedAt)
	})

	threads = make([]*youtube.CommentThread, 0, len(tops))
	for _, top := range tops {
		attached := replies[top.ID]
		delete(replies, top.ID)
		threads = append(threads, commentThreadFrom(top, user.Channel, attached))
	}

	repliedOthers = make(map[string][]*youtube.Comment, len(replies))
	for parentID, rs := range replies {
		repliedOthers[parentID] = commentsFrom(rs, user.Channel)
	}

	return threads, repliedOthers, nil
}

// commentThreadFrom shapes a local top-level comment like a platform thread.
// Replies are listed oldest first, as the platform does.
func commentThreadFrom(top model.Comment, ch model.Channel, replies []model.Comment) *youtube.CommentThread {
	thread := &youtube.CommentThread{
		Kind: "youtube#commentThread",
		Id:   top.ID,
		Snippet: &youtube.CommentThreadSnippet{
			VideoId:         top.VideoID,
			ChannelId:       top.ChannelID,
			TopLevelComment: commentFrom(top, ch),
			TotalReplyCount: int64(len(replies)),
			ForceSendFields: []string{"TotalReplyCount"},
		},
	}

	if len(replies) > 0 {
		ordered := slices.Clone(replies)
		slices.SortStableFunc(ordered, func(a, b model.Comment) int {
			return a.PublishedAt.Compare(b.PublishedAt)
		})
		thread.Replies = &youtube.CommentThreadReplies{Comments: commentsFrom(ordered, ch)}
	}
	return thread
}

// commentFrom shapes a local comment or reply like a platform comment. The
// author is always the user's own channel.
func commentFrom(cm model.Comment, ch model.Channel) *youtube.Comment {
	return &youtube.Comment{
		Kind: "youtube#comment",
		Id:   cm.ID,
		Snippet: &youtube.CommentSnippet{
			ChannelId:             cm.ChannelID,
			VideoId:               cm.VideoID,
			ParentId:              cm.ParentID,
			TextOriginal:          cm.Text,
			TextDisplay:           cm.Text,
			LikeCount:             cm.LikeCount,
			PublishedAt:           cm.PublishedAt.UTC().Format(time.RFC3339),
			UpdatedAt:             cm.PublishedAt.UTC().Format(time.RFC3339),
			AuthorDisplayName:     ch.DisplayName,
			AuthorProfileImageUrl: ch.ProfileURL,
			AuthorChannelId:       &youtube.CommentSnippetAuthorChannelId{Value: ch.ChannelID},
			ForceSendFields:       []string{"LikeCount"},
		},
	}
}

func commentsFrom(rows []model.Comment, ch model.Channel) []*youtube.Comment {
	out := make([]*youtube.Comment, 0, len(rows))
	for _, r := range rows {
		out = append(out, commentFrom(r, ch))
	}
	return out
}
