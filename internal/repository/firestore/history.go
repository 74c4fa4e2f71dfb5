package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/sakif/tubeclone/internal/model"
)

type historyDoc struct {
	WatchedAt time.Time `firestore:"watchedAt"`
}

// RecordView uses Create, which fails with AlreadyExists when the video is
// already in the history, so the timestamp of the first view is kept.
func (s *Store) RecordView(ctx context.Context, userID, videoID string, at time.Time) (bool, error) {
	_, err := s.sub(userID, colHistory).Doc(videoID).Create(ctx, historyDoc{WatchedAt: at.UTC()})
	if err != nil {
		if isAlreadyExists(err) {
			return false, nil
		}
		return false, fmt.Errorf("firestore: recording view of %s: %w", videoID, err)
	}
	return true, nil
}

func (s *Store) ListHistory(ctx context.Context, userID string) ([]model.HistoryEntry, error) {
	iter := s.sub(userID, colHistory).OrderBy("watchedAt", firestore.Desc).Documents(ctx)
	defer iter.Stop()

	entries := []model.HistoryEntry{}
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore: listing history: %w", err)
		}
		var d historyDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, fmt.Errorf("firestore: decoding history %s: %w", snap.Ref.ID, err)
		}
		entries = append(entries, model.HistoryEntry{VideoID: snap.Ref.ID, WatchedAt: d.WatchedAt})
	}
	return entries, nil
}
