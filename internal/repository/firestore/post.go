package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/sakif/tubeclone/internal/apperror"
	"github.com/sakif/tubeclone/internal/model"
)

type quizAnswerDoc struct {
	Text      string `firestore:"text"`
	IsCorrect bool   `firestore:"isCorrect"`
}

type postDoc struct {
	ID        string          `firestore:"id"`
	Type      string          `firestore:"type"`
	Text      string          `firestore:"text,omitempty"`
	Images    []string        `firestore:"images,omitempty"`
	Quiz      []quizAnswerDoc `firestore:"quiz,omitempty"`
	CreatedAt time.Time       `firestore:"createdAt"`
}

func (d postDoc) toModel(userID string) model.Post {
	p := model.Post{
		ID:        d.ID,
		UserID:    userID,
		Type:      model.PostType(d.Type),
		Text:      d.Text,
		Images:    d.Images,
		CreatedAt: d.CreatedAt,
	}
	for _, a := range d.Quiz {
		p.Quiz = append(p.Quiz, model.QuizAnswer(a))
	}
	return p
}

func (s *Store) CreatePost(ctx context.Context, p *model.Post) error {
	d := postDoc{
		ID:        p.ID,
		Type:      string(p.Type),
		Text:      p.Text,
		Images:    p.Images,
		CreatedAt: p.CreatedAt.UTC(),
	}
	for _, a := range p.Quiz {
		d.Quiz = append(d.Quiz, quizAnswerDoc(a))
	}

	if _, err := s.sub(p.UserID, colPosts).Doc(p.ID).Create(ctx, d); err != nil {
		if isAlreadyExists(err) {
			return apperror.Conflict("post", p.ID)
		}
		return fmt.Errorf("firestore: creating post %s: %w", p.ID, err)
	}
	return nil
}

func (s *Store) GetPost(ctx context.Context, userID, postID string) (*model.Post, error) {
	snap, err := s.sub(userID, colPosts).Doc(postID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, apperror.NotFound("post", postID)
		}
		return nil, fmt.Errorf("firestore: getting post %s: %w", postID, err)
	}
	var d postDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, fmt.Errorf("firestore: decoding post %s: %w", postID, err)
	}
	p := d.toModel(userID)
	return &p, nil
}

func (s *Store) ListPosts(ctx context.Context, userID string) ([]model.Post, error) {
	iter := s.sub(userID, colPosts).OrderBy("createdAt", firestore.Desc).Documents(ctx)
	defer iter.Stop()

	posts := []model.Post{}
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore: listing posts: %w", err)
		}
		var d postDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, fmt.Errorf("firestore: decoding post %s: %w", snap.Ref.ID, err)
		}
		posts = append(posts, d.toModel(userID))
	}
	return posts, nil
}

// UpdatePostText fails with NotFound when the post does not exist; Update
// never creates documents.
func (s *Store) UpdatePostText(ctx context.Context, userID, postID, text string) error {
	_, err := s.sub(userID, colPosts).Doc(postID).Update(ctx, []firestore.Update{{Path: "text", Value: text}})
	if err != nil {
		if isNotFound(err) {
			return apperror.NotFound("post", postID)
		}
		return fmt.Errorf("firestore: updating post %s: %w", postID, err)
	}
	return nil
}

func (s *Store) DeletePost(ctx context.Context, userID, postID string) error {
	_, err := s.sub(userID, colPosts).Doc(postID).Delete(ctx, firestore.Exists)
	if err != nil {
		if isNotFound(err) {
			return apperror.NotFound("post", postID)
		}
		return fmt.Errorf("firestore: deleting post %s: %w", postID, err)
	}
	return nil
}
