package model

import "time"

// Relation names one of the per-user membership sets. A (user, relation,
// target) row existing IS the state; there is no boolean column.
type Relation string

const (
	RelationLikedVideo      Relation = "liked_video"
	RelationDislikedVideo   Relation = "disliked_video"
	RelationLikedComment    Relation = "liked_comment"
	RelationDislikedComment Relation = "disliked_comment"
	RelationSubscription    Relation = "subscription"
)

// Rating is the requested rating for a video or comment.
type Rating string

const (
	RatingLike    Rating = "like"
	RatingDislike Rating = "dislike"
	RatingNone    Rating = "none"
)

// ParseRating accepts exactly "like", "dislike" and "none".
func ParseRating(s string) (Rating, bool) {
	switch r := Rating(s); r {
	case RatingLike, RatingDislike, RatingNone:
		return r, true
	}
	return "", false
}

// RatingTarget selects which pair of relations a rating toggles.
type RatingTarget int

const (
	TargetVideo RatingTarget = iota
	TargetComment
)

// Relations returns the (liked, disliked) relations for the target.
func (t RatingTarget) Relations() (liked, disliked Relation) {
	if t == TargetComment {
		return RelationLikedComment, RelationDislikedComment
	}
	return RelationLikedVideo, RelationDislikedVideo
}

// HistoryEntry is one watched video. Only the first view is recorded.
type HistoryEntry struct {
	VideoID   string    `json:"videoId"`
	WatchedAt time.Time `json:"watchedAt"`
}
