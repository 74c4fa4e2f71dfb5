package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/tubeclone/internal/apperror"
	"github.com/sakif/tubeclone/internal/model"
	"github.com/sakif/tubeclone/internal/repository"
)

// Preferences implements the local toggles on top of the membership sets.
//
// RATING TRANSITIONS (current state, requested → result):
//
//	none     like    → liked
//	liked    like    → none
//	disliked like    → liked
//	none     dislike → disliked
//	disliked dislike → none
//	liked    dislike → disliked
//	any      none    → none
//
// A target is never in both the liked and the disliked set: the opposite
// marker is always removed before a new one is added.
type Preferences struct {
	repo   repository.PreferenceRepository
	logger *slog.Logger
}

func NewPreferences(repo repository.PreferenceRepository, logger *slog.Logger) *Preferences {
	return &Preferences{repo: repo, logger: logger}
}

// ParseRating validates a client-supplied rating.
func ParseRating(s string) (model.Rating, error) {
	r, ok := model.ParseRating(strings.TrimSpace(s))
	if !ok {
		return "", apperror.ValidationFailed("type", "rating must be like, dislike or none")
	}
	return r, nil
}

// ToggleRating applies the transition table and returns the resulting state
// (RatingNone when neither marker remains).
func (p *Preferences) ToggleRating(ctx context.Context, userID string, target model.RatingTarget, targetID string, rating model.Rating) (model.Rating, error) {
	if strings.TrimSpace(targetID) == "" {
		return "", apperror.ValidationFailed("id", "target ID is required")
	}
	if _, ok := model.ParseRating(string(rating)); !ok {
		return "", apperror.ValidationFailed("type", "rating must be like, dislike or none")
	}

	likedRel, dislikedRel := target.Relations()

	liked, err := p.repo.HasPreference(ctx, userID, likedRel, targetID)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", likedRel, err)
	}
	disliked, err := p.repo.HasPreference(ctx, userID, dislikedRel, targetID)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", dislikedRel, err)
	}

	var (
		setRel, clearRel model.Relation
		active           bool
	)
	switch rating {
	case model.RatingNone:
		if err := p.repo.RemovePreference(ctx, userID, likedRel, targetID); err != nil {
			return "", fmt.Errorf("clearing %s: %w", likedRel, err)
		}
		if err := p.repo.RemovePreference(ctx, userID, dislikedRel, targetID); err != nil {
			return "", fmt.Errorf("clearing %s: %w", dislikedRel, err)
		}
		return model.RatingNone, nil
	case model.RatingLike:
		setRel, clearRel, active = likedRel, dislikedRel, liked
	case model.RatingDislike:
		setRel, clearRel, active = dislikedRel, likedRel, disliked
	}

	if active {
		if err := p.repo.RemovePreference(ctx, userID, setRel, targetID); err != nil {
			return "", fmt.Errorf("clearing %s: %w", setRel, err)
		}
		return model.RatingNone, nil
	}

	if err := p.repo.RemovePreference(ctx, userID, clearRel, targetID); err != nil {
		return "", fmt.Errorf("clearing %s: %w", clearRel, err)
	}
	if err := p.repo.AddPreference(ctx, userID, setRel, targetID); err != nil {
		return "", fmt.Errorf("setting %s: %w", setRel, err)
	}
	return rating, nil
}

// ToggleSubscription flips the subscription and returns the new state.
func (p *Preferences) ToggleSubscription(ctx context.Context, userID, channelID string) (bool, error) {
	if strings.TrimSpace(channelID) == "" {
		return false, apperror.ValidationFailed("channelId", "channel ID is required")
	}

	subscribed, err := p.repo.HasPreference(ctx, userID, model.RelationSubscription, channelID)
	if err != nil {
		return false, fmt.Errorf("reading subscription: %w", err)
	}

	if subscribed {
		if err := p.repo.RemovePreference(ctx, userID, model.RelationSubscription, channelID); err != nil {
			return false, fmt.Errorf("removing subscription: %w", err)
		}
		return false, nil
	}

	if err := p.repo.AddPreference(ctx, userID, model.RelationSubscription, channelID); err != nil {
		return false, fmt.Errorf("adding subscription: %w", err)
	}
	return true, nil
}

// IDs returns the bare target ids of one relation, in insertion order.
func (p *Preferences) IDs(ctx context.Context, userID string, rel model.Relation) ([]string, error) {
	ids, err := p.repo.ListPreferenceTargets(ctx, userID, rel)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", rel, err)
	}
	return ids, nil
}
