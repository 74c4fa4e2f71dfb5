package service

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/tubeclone/internal/apperror"
	"github.com/sakif/tubeclone/internal/model"
)

func ratingState(t *testing.T, p *Preferences, userID, target string) model.Rating {
	t.Helper()
	ctx := context.Background()
	liked, err := p.repo.HasPreference(ctx, userID, model.RelationLikedVideo, target)
	if err != nil {
		t.Fatalf("HasPreference() error = %v", err)
	}
	disliked, err := p.repo.HasPreference(ctx, userID, model.RelationDislikedVideo, target)
	if err != nil {
		t.Fatalf("HasPreference() error = %v", err)
	}
	if liked && disliked {
		t.Fatalf("video %s is both liked and disliked", target)
	}
	switch {
	case liked:
		return model.RatingLike
	case disliked:
		return model.RatingDislike
	}
	return model.RatingNone
}

func TestToggleRating_TransitionTable(t *testing.T) {
	tests := []struct {
		name      string
		setup     []model.Rating
		requested model.Rating
		want      model.Rating
	}{
		{"none + like", nil, model.RatingLike, model.RatingLike},
		{"liked + like", []model.Rating{model.RatingLike}, model.RatingLike, model.RatingNone},
		{"disliked + like", []model.Rating{model.RatingDislike}, model.RatingLike, model.RatingLike},
		{"none + dislike", nil, model.RatingDislike, model.RatingDislike},
		{"disliked + dislike", []model.Rating{model.RatingDislike}, model.RatingDislike, model.RatingNone},
		{"liked + dislike", []model.Rating{model.RatingLike}, model.RatingDislike, model.RatingDislike},
		{"liked + none", []model.Rating{model.RatingLike}, model.RatingNone, model.RatingNone},
		{"disliked + none", []model.Rating{model.RatingDislike}, model.RatingNone, model.RatingNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newTestDB(t)
			user := createLocalUser(t, db, "rate@example.com")
			p := NewPreferences(db, discardLogger())
			ctx := context.Background()

			for _, r := range tt.setup {
				if _, err := p.ToggleRating(ctx, user.ID, model.TargetVideo, "v1", r); err != nil {
					t.Fatalf("setup ToggleRating() error = %v", err)
				}
			}

			got, err := p.ToggleRating(ctx, user.ID, model.TargetVideo, "v1", tt.requested)
			if err != nil {
				t.Fatalf("ToggleRating() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ToggleRating() = %q, want %q", got, tt.want)
			}
			if state := ratingState(t, p, user.ID, "v1"); state != tt.want {
				t.Errorf("stored state = %q, want %q", state, tt.want)
			}
		})
	}
}

// Folding any sequence through the table must match the stored state and
// never leave both markers set.
func TestToggleRating_SequenceFoldsLeftToRight(t *testing.T) {
	db := newTestDB(t)
	user := createLocalUser(t, db, "fold@example.com")
	p := NewPreferences(db, discardLogger())
	ctx := context.Background()

	step := func(cur, req model.Rating) model.Rating {
		if req == model.RatingNone || cur == req {
			return model.RatingNone
		}
		return req
	}

	seq := []model.Rating{
		model.RatingLike, model.RatingDislike, model.RatingDislike, model.RatingLike,
		model.RatingLike, model.RatingLike, model.RatingNone, model.RatingDislike, model.RatingLike,
	}
	want := model.RatingNone
	for i, r := range seq {
		want = step(want, r)
		if _, err := p.ToggleRating(ctx, user.ID, model.TargetVideo, "v1", r); err != nil {
			t.Fatalf("step %d: ToggleRating() error = %v", i, err)
		}
		if got := ratingState(t, p, user.ID, "v1"); got != want {
			t.Fatalf("step %d (%s): state = %q, want %q", i, r, got, want)
		}
	}
}

func TestToggleRating_CommentsUseTheirOwnSets(t *testing.T) {
	db := newTestDB(t)
	user := createLocalUser(t, db, "c@example.com")
	p := NewPreferences(db, discardLogger())
	ctx := context.Background()

	if _, err := p.ToggleRating(ctx, user.ID, model.TargetComment, "c1", model.RatingLike); err != nil {
		t.Fatalf("ToggleRating() error = %v", err)
	}

	ids, err := p.IDs(ctx, user.ID, model.RelationLikedComment)
	if err != nil {
		t.Fatalf("IDs() error = %v", err)
	}
	if len(ids) != 1 || ids[0] != "c1" {
		t.Errorf("liked comments = %v, want [c1]", ids)
	}
	if videos, _ := p.IDs(ctx, user.ID, model.RelationLikedVideo); len(videos) != 0 {
		t.Errorf("liked videos = %v, want none", videos)
	}
}

func TestToggleRating_Validation(t *testing.T) {
	db := newTestDB(t)
	p := NewPreferences(db, discardLogger())

	if _, err := p.ToggleRating(context.Background(), "u", model.TargetVideo, "", model.RatingLike); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("empty target: error = %v, want ErrValidation", err)
	}
	if _, err := p.ToggleRating(context.Background(), "u", model.TargetVideo, "v1", "love"); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("bad rating: error = %v, want ErrValidation", err)
	}
}

func TestParseRating(t *testing.T) {
	for _, s := range []string{"like", "dislike", "none", " like "} {
		if _, err := ParseRating(s); err != nil {
			t.Errorf("ParseRating(%q) error = %v", s, err)
		}
	}
	for _, s := range []string{"", "LIKE", "meh"} {
		if _, err := ParseRating(s); !errors.Is(err, apperror.ErrValidation) {
			t.Errorf("ParseRating(%q) error = %v, want ErrValidation", s, err)
		}
	}
}

func TestToggleSubscription_TwiceRestoresState(t *testing.T) {
	db := newTestDB(t)
	user := createLocalUser(t, db, "sub@example.com")
	p := NewPreferences(db, discardLogger())
	ctx := context.Background()

	on, err := p.ToggleSubscription(ctx, user.ID, "ch1")
	if err != nil || !on {
		t.Fatalf("first toggle = (%v, %v), want (true, nil)", on, err)
	}
	off, err := p.ToggleSubscription(ctx, user.ID, "ch1")
	if err != nil || off {
		t.Fatalf("second toggle = (%v, %v), want (false, nil)", off, err)
	}

	ids, err := p.IDs(ctx, user.ID, model.RelationSubscription)
	if err != nil {
		t.Fatalf("IDs() error = %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("subscriptions = %v, want none", ids)
	}
}
