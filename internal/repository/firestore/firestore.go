// Package firestore implements the repository interfaces on Cloud Firestore.
//
// Layout:
//
//	users/{userId}                          account + channel map
//	users/{userId}/{relation}/{targetId}    liked_video, subscription, ...
//	users/{userId}/comments/{commentId}     all comment kinds, "kind" field
//	users/{userId}/history/{videoId}
//	users/{userId}/reportedVideos/{videoId}
//	users/{userId}/posts/{postId}
//	report_reasons/{reasonId}
//
// Reads that need ordering within a filter sort in memory so the backend runs
// without composite indexes.
package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/sakif/tubeclone/internal/repository"
)

var _ repository.Store = (*Store)(nil)

const (
	colUsers         = "users"
	colComments      = "comments"
	colHistory       = "history"
	colReports       = "reportedVideos"
	colPosts         = "posts"
	colReportReasons = "report_reasons"
)

type Store struct {
	client *firestore.Client
}

// New connects through the Firebase Admin SDK. credentialsFile may be empty
// to use Application Default Credentials; FIRESTORE_EMULATOR_HOST is honoured
// by the client library.
func New(ctx context.Context, projectID, credentialsFile string) (*Store, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore: initializing firebase app: %w", err)
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("firestore: creating client: %w", err)
	}

	s := NewFromClient(client)
	if err := s.seedReportReasons(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("firestore: seeding report reasons: %w", err)
	}
	return s, nil
}

func NewFromClient(client *firestore.Client) *Store {
	return &Store{client: client}
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) user(userID string) *firestore.DocumentRef {
	return s.client.Collection(colUsers).Doc(userID)
}

func (s *Store) sub(userID, collection string) *firestore.CollectionRef {
	return s.user(userID).Collection(collection)
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func isAlreadyExists(err error) bool {
	return status.Code(err) == codes.AlreadyExists
}
