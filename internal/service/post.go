package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sakif/tubeclone/internal/apperror"
	"github.com/sakif/tubeclone/internal/model"
	"github.com/sakif/tubeclone/internal/objectstore"
	"github.com/sakif/tubeclone/internal/repository"
)

const (
	MaxPostTextLength = 5000
	MaxPostImages     = 5
	MinQuizAnswers    = 2
	MaxQuizAnswers    = 5
)

// PostInput is a new community post. Images are data URLs; ID is the
// client-chosen UUID and is generated when empty.
type PostInput struct {
	ID     string
	Type   model.PostType
	Text   string
	Images []string
	Quiz   []model.QuizAnswer
}

// PostService manages a channel's community posts.
type PostService struct {
	repo   repository.PostRepository
	images ImageStore
	logger *slog.Logger
	now    func() time.Time
}

// NewPostService builds the service. images may be nil, in which case image
// posts are rejected.
func NewPostService(repo repository.PostRepository, images ImageStore, logger *slog.Logger) *PostService {
	return &PostService{repo: repo, images: images, logger: logger, now: time.Now}
}

func (s *PostService) Create(ctx context.Context, userID string, in PostInput) (*model.Post, error) {
	if err := validatePost(in); err != nil {
		return nil, err
	}

	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = uuid.NewString()
	} else if _, err := uuid.Parse(id); err != nil {
		return nil, apperror.ValidationFailed("id", "post ID must be a UUID")
	}

	urls, err := s.uploadImages(ctx, in.Images)
	if err != nil {
		return nil, err
	}

	post := &model.Post{
		ID:        id,
		UserID:    userID,
		Type:      in.Type,
		Text:      strings.TrimSpace(in.Text),
		Images:    urls,
		Quiz:      in.Quiz,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.CreatePost(ctx, post); err != nil {
		s.destroyImages(ctx, urls)
		return nil, err
	}

	s.logger.Info("post created",
		slog.String("userID", userID),
		slog.String("postID", post.ID),
		slog.String("type", string(post.Type)),
	)
	return post, nil
}

func validatePost(in PostInput) error {
	text := strings.TrimSpace(in.Text)
	if len([]rune(text)) > MaxPostTextLength {
		return apperror.ValidationFailed("text",
			fmt.Sprintf("post text must be %d characters or less", MaxPostTextLength))
	}

	switch in.Type {
	case model.PostText:
		if text == "" {
			return apperror.ValidationFailed("text", "post text is required")
		}
		if len(in.Images) > 0 || len(in.Quiz) > 0 {
			return apperror.ValidationFailed("type", "a text post has no images or quiz")
		}
	case model.PostImage:
		if len(in.Images) == 0 {
			return apperror.ValidationFailed("images", "at least one image is required")
		}
		if len(in.Images) > MaxPostImages {
			return apperror.ValidationFailed("images",
				fmt.Sprintf("a post can have at most %d images", MaxPostImages))
		}
	case model.PostQuiz:
		if text == "" {
			return apperror.ValidationFailed("text", "a quiz needs a question")
		}
		if len(in.Quiz) < MinQuizAnswers || len(in.Quiz) > MaxQuizAnswers {
			return apperror.ValidationFailed("quiz",
				fmt.Sprintf("a quiz needs %d to %d answers", MinQuizAnswers, MaxQuizAnswers))
		}
		correct := 0
		for _, a := range in.Quiz {
			if strings.TrimSpace(a.Text) == "" {
				return apperror.ValidationFailed("quiz", "quiz answers cannot be empty")
			}
			if a.IsCorrect {
				correct++
			}
		}
		if correct != 1 {
			return apperror.ValidationFailed("quiz", "a quiz needs exactly one correct answer")
		}
	default:
		return apperror.ValidationFailed("type", "post type must be text, image or quiz")
	}
	return nil
}

// uploadImages uploads concurrently and keeps the input order. If any upload
// fails the ones that succeeded are destroyed again.
func (s *PostService) uploadImages(ctx context.Context, dataURLs []string) ([]string, error) {
	if len(dataURLs) == 0 {
		return nil, nil
	}
	if s.images == nil {
		return nil, apperror.ValidationFailed("images", "image uploads are not configured")
	}

	urls := make([]string, len(dataURLs))
	g, gctx := errgroup.WithContext(ctx)
	for i, dataURL := range dataURLs {
		g.Go(func() error {
			u, err := s.images.Upload(gctx, objectstore.FolderPostImages, dataURL)
			if err != nil {
				return err
			}
			urls[i] = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.destroyImages(ctx, urls)
		return nil, err
	}
	return urls, nil
}

// destroyImages is cleanup after a failed create; errors are only logged.
func (s *PostService) destroyImages(ctx context.Context, urls []string) {
	for _, u := range urls {
		if u == "" {
			continue
		}
		if err := s.images.DestroyURL(ctx, objectstore.FolderPostImages, u); err != nil {
			s.logger.Warn("orphaned post image", slog.String("url", u), slog.String("error", err.Error()))
		}
	}
}

func (s *PostService) List(ctx context.Context, userID string) ([]model.Post, error) {
	posts, err := s.repo.ListPosts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing posts: %w", err)
	}
	if posts == nil {
		posts = []model.Post{}
	}
	return posts, nil
}

// EditText replaces the post's text. Nothing else about a post can change.
func (s *PostService) EditText(ctx context.Context, userID, postID, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return apperror.ValidationFailed("text", "post text is required")
	}
	if len([]rune(text)) > MaxPostTextLength {
		return apperror.ValidationFailed("text",
			fmt.Sprintf("post text must be %d characters or less", MaxPostTextLength))
	}
	return s.repo.UpdatePostText(ctx, userID, postID, text)
}

// Delete destroys the post's images, then the post. The post is kept when
// any image could not be destroyed so the delete can be retried.
func (s *PostService) Delete(ctx context.Context, userID, postID string) error {
	post, err := s.repo.GetPost(ctx, userID, postID)
	if err != nil {
		return err
	}

	if len(post.Images) > 0 {
		if s.images == nil {
			return apperror.ValidationFailed("images", "image uploads are not configured")
		}
		var errs []error
		for _, u := range post.Images {
			if err := s.images.DestroyURL(ctx, objectstore.FolderPostImages, u); err != nil {
				errs = append(errs, err)
			}
		}
		if err := errors.Join(errs...); err != nil {
			return fmt.Errorf("destroying images of post %s: %w", postID, err)
		}
	}

	if err := s.repo.DeletePost(ctx, userID, postID); err != nil {
		return err
	}

	s.logger.Info("post deleted", slog.String("userID", userID), slog.String("postID", postID))
	return nil
}
