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

// Each relation is its own sub-collection whose document ids are the targets.
// The only field is createdAt, used to keep insertion order.
type preferenceDoc struct {
	CreatedAt time.Time `firestore:"createdAt"`
}

func (s *Store) HasPreference(ctx context.Context, userID string, rel model.Relation, targetID string) (bool, error) {
	_, err := s.sub(userID, string(rel)).Doc(targetID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("firestore: checking %s %s: %w", rel, targetID, err)
	}
	return true, nil
}

func (s *Store) AddPreference(ctx context.Context, userID string, rel model.Relation, targetID string) error {
	_, err := s.sub(userID, string(rel)).Doc(targetID).Create(ctx, preferenceDoc{CreatedAt: time.Now().UTC()})
	if err != nil && !isAlreadyExists(err) {
		return fmt.Errorf("firestore: adding %s %s: %w", rel, targetID, err)
	}
	return nil
}

// RemovePreference succeeds whether or not the document exists; Firestore
// deletes of missing documents are not errors.
func (s *Store) RemovePreference(ctx context.Context, userID string, rel model.Relation, targetID string) error {
	if _, err := s.sub(userID, string(rel)).Doc(targetID).Delete(ctx); err != nil {
		return fmt.Errorf("firestore: removing %s %s: %w", rel, targetID, err)
	}
	return nil
}

func (s *Store) ListPreferenceTargets(ctx context.Context, userID string, rel model.Relation) ([]string, error) {
	iter := s.sub(userID, string(rel)).OrderBy("createdAt", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	ids := []string{}
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore: listing %s: %w", rel, err)
		}
		ids = append(ids, snap.Ref.ID)
	}
	return ids, nil
}
