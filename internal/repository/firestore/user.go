package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/rs/xid"
	"google.golang.org/api/iterator"

	"github.com/sakif/tubeclone/internal/apperror"
	"github.com/sakif/tubeclone/internal/model"
)

type channelDoc struct {
	ChannelID   string `firestore:"channelId"`
	Name        string `firestore:"name"`
	DisplayName string `firestore:"displayName"`
	Description string `firestore:"description"`
	ProfileURL  string `firestore:"profileUrl"`
	BannerURL   string `firestore:"bannerUrl"`
}

type userDoc struct {
	Email        string     `firestore:"email"`
	PasswordHash string     `firestore:"passwordHash"`
	GoogleID     string     `firestore:"googleId"`
	Name         string     `firestore:"name"`
	Picture      string     `firestore:"picture"`
	SignInMode   string     `firestore:"signInMode"`
	Channel      channelDoc `firestore:"channel"`
	CreatedAt    time.Time  `firestore:"createdAt"`
	UpdatedAt    time.Time  `firestore:"updatedAt"`
}

func toChannelDoc(c model.Channel) channelDoc {
	return channelDoc(c)
}

func (d userDoc) toModel(id string) *model.User {
	return &model.User{
		ID:           id,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		GoogleID:     d.GoogleID,
		Name:         d.Name,
		Picture:      d.Picture,
		SignInMode:   model.SignInMode(d.SignInMode),
		Channel:      model.Channel(d.Channel),
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

var errEmailTaken = errors.New("email taken")

// CreateUser checks the email and creates the document in one transaction,
// so two concurrent signups for the same address cannot both succeed.
func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	if user.ID == "" {
		user.ID = xid.New().String()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	doc := userDoc{
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		GoogleID:     user.GoogleID,
		Name:         user.Name,
		Picture:      user.Picture,
		SignInMode:   string(user.SignInMode),
		Channel:      toChannelDoc(user.Channel),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	q := s.client.Collection(colUsers).Where("email", "==", user.Email).Limit(1)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		iter := tx.Documents(q)
		defer iter.Stop()
		if _, err := iter.Next(); err == nil {
			return errEmailTaken
		} else if !errors.Is(err, iterator.Done) {
			return err
		}
		return tx.Create(s.user(user.ID), doc)
	})
	if err != nil {
		if errors.Is(err, errEmailTaken) || isAlreadyExists(err) {
			return apperror.Conflict("user", user.Email)
		}
		return fmt.Errorf("firestore: creating user %s: %w", user.Email, err)
	}
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	snap, err := s.user(id).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("firestore: getting user %s: %w", id, err)
	}
	var d userDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, fmt.Errorf("firestore: decoding user %s: %w", id, err)
	}
	return d.toModel(snap.Ref.ID), nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	iter := s.client.Collection(colUsers).Where("email", "==", email).Limit(1).Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return nil, apperror.NotFound("user", email)
	}
	if err != nil {
		return nil, fmt.Errorf("firestore: getting user by email: %w", err)
	}
	var d userDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, fmt.Errorf("firestore: decoding user %s: %w", snap.Ref.ID, err)
	}
	return d.toModel(snap.Ref.ID), nil
}

// UpdateChannel replaces the channel map but keeps its channelId.
func (s *Store) UpdateChannel(ctx context.Context, userID string, ch model.Channel) error {
	_, err := s.user(userID).Update(ctx, []firestore.Update{
		{Path: "channel.name", Value: ch.Name},
		{Path: "channel.displayName", Value: ch.DisplayName},
		{Path: "channel.description", Value: ch.Description},
		{Path: "channel.profileUrl", Value: ch.ProfileURL},
		{Path: "channel.bannerUrl", Value: ch.BannerURL},
		{Path: "updatedAt", Value: time.Now().UTC()},
	})
	if err != nil {
		if isNotFound(err) {
			return apperror.NotFound("user", userID)
		}
		return fmt.Errorf("firestore: updating channel of user %s: %w", userID, err)
	}
	return nil
}
