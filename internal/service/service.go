// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository / Catalog     → local store and the external video platform
//
// THE CAPABILITY SPLIT:
// A user signs in either with a password (local mode) or with Google
// (federated mode). Most features exist in both modes but are backed by
// different systems: a local user's likes, comments and subscriptions live in
// our store, a Google user's live on their own YouTube account.
//
// Rather than re-checking the sign-in mode in every handler, Dispatcher.For
// picks one Capabilities implementation per request:
//
//	localCapabilities     server catalog for reads, local store for state
//	federatedCapabilities the user's own catalog client for everything
//
// Handlers only ever see the Capabilities interface.
package service

import (
	"context"

	"google.golang.org/api/youtube/v3"

	"github.com/sakif/tubeclone/internal/catalog"
	"github.com/sakif/tubeclone/internal/model"
)

// Catalog is the slice of the external platform the services call.
// *catalog.Client and *catalog.Cached both satisfy it.
type Catalog interface {
	PopularVideos(ctx context.Context, pageToken string) (*youtube.VideoListResponse, error)
	Video(ctx context.Context, videoID string) (*youtube.Video, error)
	VideosByIDs(ctx context.Context, ids []string) (*youtube.VideoListResponse, error)
	LikedVideos(ctx context.Context, pageToken string) (*youtube.VideoListResponse, error)
	SearchVideos(ctx context.Context, q catalog.SearchQuery) (*youtube.SearchListResponse, error)

	Channel(ctx context.Context, channelID string) (*youtube.Channel, error)
	ChannelsByIDs(ctx context.Context, ids []string) ([]*youtube.Channel, error)
	UploadsPlaylistID(ctx context.Context, channelID string) (string, error)
	ChannelSections(ctx context.Context, channelID string) ([]*youtube.ChannelSection, error)
	PlaylistItems(ctx context.Context, playlistID, pageToken string, limit int64) (*youtube.PlaylistItemListResponse, error)

	CommentThreads(ctx context.Context, videoID, order string) (*youtube.CommentThreadListResponse, error)
	InsertComment(ctx context.Context, videoID, text string) (*youtube.CommentThread, error)
	InsertReply(ctx context.Context, parentID, text string) (*youtube.Comment, error)
	UpdateComment(ctx context.Context, commentID, text string) (*youtube.Comment, error)

	RateVideo(ctx context.Context, videoID string, rating model.Rating) error
	RateComment(ctx context.Context, commentID string, rating model.Rating) error

	MySubscriptions(ctx context.Context) (*youtube.SubscriptionListResponse, error)
	FindSubscription(ctx context.Context, channelID string) (string, error)
	Subscribe(ctx context.Context, channelID string) error
	Unsubscribe(ctx context.Context, subscriptionID string) error

	ActivityVideoIDs(ctx context.Context) ([]string, error)
}

// UserCatalogFunc builds a Catalog that acts as the Google user owning
// accessToken. It must fail with apperror.ErrUnauthenticated when the token
// is empty.
type UserCatalogFunc func(ctx context.Context, accessToken string) (Catalog, error)

// ImageStore is where uploaded images go. *objectstore.Store satisfies it.
type ImageStore interface {
	Upload(ctx context.Context, folder, dataURL string) (string, error)
	DestroyURL(ctx context.Context, folder, rawURL string) error
}
