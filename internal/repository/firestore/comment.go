package firestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/rs/xid"
	"google.golang.org/api/iterator"

	"github.com/sakif/tubeclone/internal/apperror"
	"github.com/sakif/tubeclone/internal/model"
	"github.com/sakif/tubeclone/internal/repository"
)

// commentDoc stores its own id as a field as well as the document key so a
// snapshot decodes into a complete model.Comment.
type commentDoc struct {
	ID          string    `firestore:"id"`
	VideoID     string    `firestore:"videoId"`
	ParentID    string    `firestore:"parentId"`
	Kind        string    `firestore:"kind"`
	Text        string    `firestore:"text"`
	ChannelID   string    `firestore:"channelId"`
	LikeCount   int64     `firestore:"likeCount"`
	PublishedAt time.Time `firestore:"publishedAt"`
}

func (s *Store) CreateComment(ctx context.Context, c *model.Comment) error {
	c.ID = xid.New().String()
	c.LikeCount = 0
	c.PublishedAt = time.Now().UTC()
	if c.Kind == "" {
		c.Kind = model.CommentTopLevel
	}

	_, err := s.sub(c.UserID, colComments).Doc(c.ID).Create(ctx, commentDoc{
		ID:          c.ID,
		VideoID:     c.VideoID,
		ParentID:    c.ParentID,
		Kind:        string(c.Kind),
		Text:        c.Text,
		ChannelID:   c.ChannelID,
		LikeCount:   c.LikeCount,
		PublishedAt: c.PublishedAt,
	})
	if err != nil {
		return fmt.Errorf("firestore: creating comment on video %s: %w", c.VideoID, err)
	}
	return nil
}

func (s *Store) ListCommentsByVideo(ctx context.Context, userID, videoID string) ([]model.Comment, error) {
	iter := s.sub(userID, colComments).Where("videoId", "==", videoID).Documents(ctx)
	defer iter.Stop()

	var comments []model.Comment
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore: listing comments on video %s: %w", videoID, err)
		}
		var d commentDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, fmt.Errorf("firestore: decoding comment %s: %w", snap.Ref.ID, err)
		}
		comments = append(comments, model.Comment{
			ID:          snap.Ref.ID,
			UserID:      userID,
			VideoID:     d.VideoID,
			ParentID:    d.ParentID,
			Kind:        model.CommentKind(d.Kind),
			Text:        d.Text,
			ChannelID:   d.ChannelID,
			LikeCount:   d.LikeCount,
			PublishedAt: d.PublishedAt,
		})
	}

	sort.SliceStable(comments, func(i, j int) bool {
		return comments[i].PublishedAt.After(comments[j].PublishedAt)
	})
	return comments, nil
}

// UpdateCommentText reads the document and checks it matches the edit before
// writing, in one transaction.
func (s *Store) UpdateCommentText(ctx context.Context, e repository.CommentEdit) error {
	ref := s.sub(e.UserID, colComments).Doc(e.CommentID)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var d commentDoc
		if err := snap.DataTo(&d); err != nil {
			return err
		}
		if !editMatches(d, e) {
			return apperror.NotFound("comment", e.CommentID)
		}
		return tx.Update(ref, []firestore.Update{{Path: "text", Value: e.Text}})
	})
	if err != nil {
		if isNotFound(err) {
			return apperror.NotFound("comment", e.CommentID)
		}
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return appErr
		}
		return fmt.Errorf("firestore: updating comment %s: %w", e.CommentID, err)
	}
	return nil
}

func editMatches(d commentDoc, e repository.CommentEdit) bool {
	kind := model.CommentKind(d.Kind)
	if e.ParentID != "" {
		if !kind.IsReply() || d.ParentID != e.ParentID {
			return false
		}
	} else if kind != model.CommentTopLevel {
		return false
	}
	return e.VideoID == "" || d.VideoID == e.VideoID
}
