package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/api/youtube/v3"

	"github.com/sakif/tubeclone/internal/apperror"
	"github.com/sakif/tubeclone/internal/catalog"
	"github.com/sakif/tubeclone/internal/model"
	"github.com/sakif/tubeclone/internal/objectstore"
	"github.com/sakif/tubeclone/internal/repository"
)

// ProfileInput is a channel profile edit. ProfileURL and BannerURL are either
// the currently stored URL (unchanged), a data URL (replace) or empty
// (remove).
type ProfileInput struct {
	Name        string
	DisplayName string
	Description string
	ProfileURL  string
	BannerURL   string
}

// ChannelService serves public channel pages from the server catalog and
// edits the user's own local channel profile.
type ChannelService struct {
	catalog Catalog
	users   repository.UserRepository
	images  ImageStore
	logger  *slog.Logger
}

// NewChannelService builds the service. images may be nil, in which case
// profile edits that need an upload are rejected.
func NewChannelService(catalog Catalog, users repository.UserRepository, images ImageStore, logger *slog.Logger) *ChannelService {
	return &ChannelService{catalog: catalog, users: users, images: images, logger: logger}
}

func (s *ChannelService) Channel(ctx context.Context, channelID string) (*youtube.Channel, error) {
	if strings.TrimSpace(channelID) == "" {
		return nil, apperror.ValidationFailed("channelId", "channel ID is required")
	}
	return s.catalog.Channel(ctx, channelID)
}

// ChannelsByIDs takes the comma-separated id list from the path.
func (s *ChannelService) ChannelsByIDs(ctx context.Context, rawIDs string) ([]*youtube.Channel, error) {
	seen := make(map[string]bool)
	var ids []string
	for _, id := range strings.Split(rawIDs, ",") {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, apperror.ValidationFailed("channelIds", "at least one channel ID is required")
	}
	return s.catalog.ChannelsByIDs(ctx, ids)
}

// FeaturedVideos returns the first items of the channel's first section
// that has a playlist.
func (s *ChannelService) FeaturedVideos(ctx context.Context, channelID string) (*youtube.PlaylistItemListResponse, error) {
	sections, err := s.catalog.ChannelSections(ctx, channelID)
	if err != nil {
		return nil, err
	}

	for _, sec := range sections {
		if sec.ContentDetails == nil || len(sec.ContentDetails.Playlists) == 0 {
			continue
		}
		return s.catalog.PlaylistItems(ctx, sec.ContentDetails.Playlists[0], "", catalog.FeaturedPageSize)
	}
	return nil, apperror.NotFound("featured playlist for channel", channelID)
}

// ChannelVideos pages through the channel's uploads playlist.
func (s *ChannelService) ChannelVideos(ctx context.Context, channelID, pageToken string) (*youtube.PlaylistItemListResponse, error) {
	uploads, err := s.catalog.UploadsPlaylistID(ctx, channelID)
	if err != nil {
		return nil, err
	}
	return s.catalog.PlaylistItems(ctx, uploads, pageToken, catalog.DefaultPageSize)
}

// EditProfile overwrites the text fields and reconciles each image field
// against what is stored:
//
//	incoming == stored → nothing
//	incoming empty     → destroy stored, clear
//	otherwise          → upload incoming, destroy stored (if any)
//
// Incoming images are checked before anything is uploaded. Old objects are
// only destroyed once the new channel is persisted, so a failed edit leaves
// the stored channel pointing at objects that still exist.
func (s *ChannelService) EditProfile(ctx context.Context, user *model.User, in ProfileInput) (*model.Channel, error) {
	ch := user.Channel
	ch.Name = strings.TrimSpace(in.Name)
	ch.DisplayName = strings.TrimSpace(in.DisplayName)
	ch.Description = strings.TrimSpace(in.Description)

	edits := []*imageEdit{
		{stored: ch.ProfileURL, incoming: in.ProfileURL},
		{stored: ch.BannerURL, incoming: in.BannerURL},
	}
	for _, e := range edits {
		if err := s.checkImage(e); err != nil {
			return nil, err
		}
	}

	for _, e := range edits {
		if !e.upload() {
			continue
		}
		u, err := s.images.Upload(ctx, objectstore.FolderChannelImages, e.incoming)
		if err != nil {
			s.discardUploads(ctx, edits)
			return nil, err
		}
		e.uploaded = u
	}
	ch.ProfileURL = edits[0].result()
	ch.BannerURL = edits[1].result()

	if err := s.users.UpdateChannel(ctx, user.ID, ch); err != nil {
		s.discardUploads(ctx, edits)
		return nil, fmt.Errorf("updating channel: %w", err)
	}

	for _, e := range edits {
		if !e.changed() || e.stored == "" {
			continue
		}
		if err := s.images.DestroyURL(ctx, objectstore.FolderChannelImages, e.stored); err != nil {
			s.logger.Warn("orphaned channel image",
				slog.String("url", e.stored),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.Info("channel profile edited", slog.String("userID", user.ID))
	return &ch, nil
}

// imageEdit is one image field of a profile edit.
type imageEdit struct {
	stored   string
	incoming string
	uploaded string
}

func (e *imageEdit) changed() bool { return e.incoming != e.stored }
func (e *imageEdit) upload() bool  { return e.changed() && e.incoming != "" }

func (e *imageEdit) result() string {
	if !e.changed() {
		return e.stored
	}
	return e.uploaded
}

func (s *ChannelService) checkImage(e *imageEdit) error {
	if !e.changed() {
		return nil
	}
	if s.images == nil {
		return apperror.ValidationFailed("images", "image uploads are not configured")
	}
	if e.incoming == "" {
		return nil
	}
	return objectstore.ValidateDataURL(e.incoming)
}

// discardUploads destroys what a failed edit already uploaded.
func (s *ChannelService) discardUploads(ctx context.Context, edits []*imageEdit) {
	for _, e := range edits {
		if e.uploaded == "" {
			continue
		}
		if err := s.images.DestroyURL(ctx, objectstore.FolderChannelImages, e.uploaded); err != nil {
			s.logger.Warn("orphaned channel image",
				slog.String("url", e.uploaded),
				slog.String("error", err.Error()),
			)
		}
	}
}
