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
	"github.com/sakif/tubeclone/internal/repository"
)

type reasonDoc struct {
	Label    string `firestore:"label"`
	Position int    `firestore:"position"`
}

type reportDoc struct {
	VideoID      string    `firestore:"videoId"`
	VideoTitle   string    `firestore:"videoTitle"`
	ChannelTitle string    `firestore:"channelTitle"`
	ReasonID     string    `firestore:"reasonId"`
	ReasonTitle  string    `firestore:"reasonTitle"`
	Status       string    `firestore:"status"`
	Type         string    `firestore:"type"`
	CreatedAt    time.Time `firestore:"createdAt"`
}

// seedReportReasons writes the default reasons only when the collection is
// empty, so edits made in the console survive restarts.
func (s *Store) seedReportReasons(ctx context.Context) error {
	iter := s.client.Collection(colReportReasons).Limit(1).Documents(ctx)
	_, err := iter.Next()
	iter.Stop()
	if err == nil {
		return nil
	}
	if !errors.Is(err, iterator.Done) {
		return err
	}

	batch := s.client.Batch()
	for i, r := range repository.DefaultReportReasons {
		batch.Set(s.client.Collection(colReportReasons).Doc(r.ID), reasonDoc{Label: r.Label, Position: i})
	}
	_, err = batch.Commit(ctx)
	return err
}

func (s *Store) ListReportReasons(ctx context.Context) ([]model.ReportReason, error) {
	iter := s.client.Collection(colReportReasons).OrderBy("position", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var reasons []model.ReportReason
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore: listing report reasons: %w", err)
		}
		var d reasonDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, fmt.Errorf("firestore: decoding reason %s: %w", snap.Ref.ID, err)
		}
		reasons = append(reasons, model.ReportReason{ID: snap.Ref.ID, Label: d.Label})
	}
	return reasons, nil
}

func (s *Store) GetReportReason(ctx context.Context, id string) (*model.ReportReason, error) {
	snap, err := s.client.Collection(colReportReasons).Doc(id).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, apperror.NotFound("report reason", id)
		}
		return nil, fmt.Errorf("firestore: getting report reason %s: %w", id, err)
	}
	var d reasonDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, fmt.Errorf("firestore: decoding reason %s: %w", id, err)
	}
	return &model.ReportReason{ID: id, Label: d.Label}, nil
}

// SaveReport keys the document by video id; Set replaces an earlier report.
func (s *Store) SaveReport(ctx context.Context, r *model.Report) error {
	_, err := s.sub(r.UserID, colReports).Doc(r.VideoID).Set(ctx, reportDoc{
		VideoID:      r.VideoID,
		VideoTitle:   r.VideoTitle,
		ChannelTitle: r.ChannelTitle,
		ReasonID:     r.ReasonID,
		ReasonTitle:  r.ReasonTitle,
		Status:       r.Status,
		Type:         r.Type,
		CreatedAt:    r.CreatedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("firestore: saving report for video %s: %w", r.VideoID, err)
	}
	return nil
}

func (s *Store) ListReports(ctx context.Context, userID string) ([]model.Report, error) {
	iter := s.sub(userID, colReports).OrderBy("createdAt", firestore.Desc).Documents(ctx)
	defer iter.Stop()

	reports := []model.Report{}
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore: listing reports: %w", err)
		}
		var d reportDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, fmt.Errorf("firestore: decoding report %s: %w", snap.Ref.ID, err)
		}
		reports = append(reports, model.Report{
			UserID:       userID,
			VideoID:      d.VideoID,
			VideoTitle:   d.VideoTitle,
			ChannelTitle: d.ChannelTitle,
			ReasonID:     d.ReasonID,
			ReasonTitle:  d.ReasonTitle,
			Status:       d.Status,
			Type:         d.Type,
			CreatedAt:    d.CreatedAt,
		})
	}
	return reports, nil
}
