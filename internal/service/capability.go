package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/api/youtube/v3"

	"github.com/sakif/tubeclone/internal/apperror"
	"github.com/sakif/tubeclone/internal/auth"
	"github.com/sakif/tubeclone/internal/catalog"
	"github.com/sakif/tubeclone/internal/model"
	"github.com/sakif/tubeclone/internal/repository"
)

// Mode names the backend a request is served from.
type Mode string

const (
	ModeLocal     Mode = "local"
	ModeFederated Mode = "federated"
)

// Capabilities is every per-user operation whose backing differs between
// local and Google accounts. Dispatcher.For returns the right one.
type Capabilities interface {
	Mode() Mode

	VideoFeed(ctx context.Context, pageToken string) (*youtube.VideoListResponse, error)
	// Video fetches one video. For local users the first view is recorded
	// in the watch history.
	Video(ctx context.Context, videoID string) (*youtube.Video, error)
	Search(ctx context.Context, query, pageToken string) (*youtube.VideoListResponse, error)
	RelevantVideos(ctx context.Context, videoID, channelID, pageToken string) (*youtube.VideoListResponse, error)
	LikedVideos(ctx context.Context, pageToken string) (*youtube.VideoListResponse, error)
	History(ctx context.Context) (*youtube.VideoListResponse, error)

	// VideoComments returns the platform's thread page. Local users get
	// their own threads prepended, newest first.
	VideoComments(ctx context.Context, videoID, order string) (*youtube.CommentThreadListResponse, error)
	AddComment(ctx context.Context, videoID, text, channelID string) (*youtube.CommentThread, error)
	AddReply(ctx context.Context, videoID string, in ReplyInput) (*youtube.Comment, error)
	// EditComment returns the updated comment when the platform sends one
	// back, nil otherwise.
	EditComment(ctx context.Context, in CommentEditInput) (*youtube.Comment, error)

	RateVideo(ctx context.Context, videoID string, rating model.Rating) error
	RateComment(ctx context.Context, commentID string, rating model.Rating) error

	// ToggleSubscription flips the subscription and reports the new state.
	ToggleSubscription(ctx context.Context, channelID string) (bool, error)
	Subscriptions(ctx context.Context) ([]*youtube.Channel, error)
}

// LocalStore is the part of repository.Store the local capabilities use.
type LocalStore interface {
	repository.PreferenceRepository
	repository.CommentRepository
	repository.HistoryRepository
}

// DispatchObserver counts dispatches per mode. telemetry.Metrics implements it.
type DispatchObserver interface {
	Dispatched(mode string)
}

type nopDispatchObserver struct{}

func (nopDispatchObserver) Dispatched(string) {}

// Dispatcher picks a Capabilities per request from the user's sign-in mode.
type Dispatcher struct {
	server      Catalog
	userCatalog UserCatalogFunc
	store       LocalStore
	prefs       *Preferences
	comments    *Comments
	subLocks    *keyedMutex
	observer    DispatchObserver
	logger      *slog.Logger
	now         func() time.Time
}

// NewDispatcher wires both implementations. observer may be nil.
func NewDispatcher(server Catalog, userCatalog UserCatalogFunc, store LocalStore, observer DispatchObserver, logger *slog.Logger) *Dispatcher {
	if observer == nil {
		observer = nopDispatchObserver{}
	}
	return &Dispatcher{
		server:      server,
		userCatalog: userCatalog,
		store:       store,
		prefs:       NewPreferences(store, logger),
		comments:    NewComments(store, logger),
		subLocks:    newKeyedMutex(),
		observer:    observer,
		logger:      logger,
		now:         time.Now,
	}
}

// For returns the capabilities for id. A Google account without a usable
// Google access token fails with apperror.ErrUnauthenticated.
func (d *Dispatcher) For(ctx context.Context, id *auth.Identity) (Capabilities, error) {
	if id == nil || id.User == nil {
		return nil, apperror.Unauthenticated("valid authentication required")
	}

	if id.User.IsGoogleSignIn() {
		cat, err := d.userCatalog(ctx, id.GoogleAccessToken)
		if err != nil {
			return nil, err
		}
		d.observer.Dispatched(string(ModeFederated))
		return &federatedCapabilities{
			catalogReads: catalogReads{cat: cat},
			user:         id.User,
			locks:        d.subLocks,
			logger:       d.logger,
		}, nil
	}

	d.observer.Dispatched(string(ModeLocal))
	return &localCapabilities{
		catalogReads: catalogReads{cat: d.server},
		user:         id.User,
		store:        d.store,
		prefs:        d.prefs,
		comments:     d.comments,
		logger:       d.logger,
		now:          d.now,
	}, nil
}

// PreferenceIDs lists the bare ids of one of the user's membership sets.
// These sets are only ever written for local users; Google users get an
// empty list.
func (d *Dispatcher) PreferenceIDs(ctx context.Context, user *model.User, rel model.Relation) ([]string, error) {
	ids, err := d.prefs.IDs(ctx, user.ID, rel)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// RepliedOtherComments maps each foreign comment the user replied to on
// videoID to those replies. No replies yields an empty map.
func (d *Dispatcher) RepliedOtherComments(ctx context.Context, user *model.User, videoID string) (map[string][]*youtube.Comment, error) {
	if strings.TrimSpace(videoID) == "" {
		return nil, apperror.ValidationFailed("videoId", "video ID is required")
	}
	_, others, err := d.comments.Threads(ctx, user, videoID)
	if err != nil {
		return nil, err
	}
	return others, nil
}

// catalogReads is the read path shared by both modes; only the Catalog
// behind it differs.
type catalogReads struct {
	cat Catalog
}

func (r catalogReads) VideoFeed(ctx context.Context, pageToken string) (*youtube.VideoListResponse, error) {
	return r.cat.PopularVideos(ctx, pageToken)
}

func (r catalogReads) Search(ctx context.Context, query, pageToken string) (*youtube.VideoListResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperror.ValidationFailed("q", "search query is required")
	}

	found, err := r.cat.SearchVideos(ctx, catalog.SearchQuery{Query: query, PageToken: pageToken})
	if err != nil {
		return nil, err
	}
	return r.resolveSearch(ctx, found, "")
}

// RelevantVideos lists other videos from the same channel.
func (r catalogReads) RelevantVideos(ctx context.Context, videoID, channelID, pageToken string) (*youtube.VideoListResponse, error) {
	if strings.TrimSpace(channelID) == "" {
		return nil, apperror.ValidationFailed("channelId", "channel ID is required")
	}

	found, err := r.cat.SearchVideos(ctx, catalog.SearchQuery{ChannelID: channelID, PageToken: pageToken})
	if err != nil {
		return nil, err
	}
	if len(searchVideoIDs(found, videoID)) == 0 {
		return nil, apperror.NotFound("relevant videos", videoID)
	}
	return r.resolveSearch(ctx, found, videoID)
}

// resolveSearch turns search hits into full videos, keeping the search
// page's token. exclude drops one id.
func (r catalogReads) resolveSearch(ctx context.Context, found *youtube.SearchListResponse, exclude string) (*youtube.VideoListResponse, error) {
	ids := searchVideoIDs(found, exclude)

	resp, err := r.videosInOrder(ctx, ids)
	if err != nil {
		return nil, err
	}
	resp.NextPageToken = found.NextPageToken
	resp.PrevPageToken = found.PrevPageToken
	return resp, nil
}

// videosInOrder batch-fetches ids and returns them in the order given. Ids
// the platform no longer knows are dropped.
func (r catalogReads) videosInOrder(ctx context.Context, ids []string) (*youtube.VideoListResponse, error) {
	if len(ids) == 0 {
		return &youtube.VideoListResponse{Kind: "youtube#videoListResponse", Items: []*youtube.Video{}}, nil
	}

	resp, err := r.cat.VideosByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*youtube.Video, len(resp.Items))
	for _, v := range resp.Items {
		byID[v.Id] = v
	}
	ordered := make([]*youtube.Video, 0, len(ids))
	for _, id := range ids {
		if v, ok := byID[id]; ok {
			ordered = append(ordered, v)
		}
	}
	resp.Items = ordered
	return resp, nil
}

func searchVideoIDs(found *youtube.SearchListResponse, exclude string) []string {
	ids := make([]string, 0, len(found.Items))
	for _, item := range found.Items {
		if item.Id == nil || item.Id.VideoId == "" || item.Id.VideoId == exclude {
			continue
		}
		ids = append(ids, item.Id.VideoId)
	}
	return ids
}

func (r catalogReads) channelsOf(ctx context.Context, ids []string) ([]*youtube.Channel, error) {
	if len(ids) == 0 {
		return []*youtube.Channel{}, nil
	}
	return r.cat.ChannelsByIDs(ctx, ids)
}

// localCapabilities reads the catalog with the server's key and keeps all
// user state in the local store.
type localCapabilities struct {
	catalogReads
	user     *model.User
	store    LocalStore
	prefs    *Preferences
	comments *Comments
	logger   *slog.Logger
	now      func() time.Time
}

func (l *localCapabilities) Mode() Mode { return ModeLocal }

func (l *localCapabilities) Video(ctx context.Context, videoID string) (*youtube.Video, error) {
	v, err := l.cat.Video(ctx, videoID)
	if err != nil {
		return nil, err
	}

	recorded, err := l.store.RecordView(ctx, l.user.ID, videoID, l.now())
	if err != nil {
		return nil, fmt.Errorf("recording view: %w", err)
	}
	if recorded {
		l.logger.Debug("history entry added", slog.String("userID", l.user.ID), slog.String("videoID", videoID))
	}
	return v, nil
}

// LikedVideos ignores pageToken: the liked set is resolved in one batch.
func (l *localCapabilities) LikedVideos(ctx context.Context, _ string) (*youtube.VideoListResponse, error) {
	ids, err := l.prefs.IDs(ctx, l.user.ID, model.RelationLikedVideo)
	if err != nil {
		return nil, err
	}
	return l.videosInOrder(ctx, ids)
}

func (l *localCapabilities) History(ctx context.Context) (*youtube.VideoListResponse, error) {
	entries, err := l.store.ListHistory(ctx, l.user.ID)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.VideoID)
	}
	return l.videosInOrder(ctx, ids)
}

// VideoComments fails as a whole when the platform fetch fails; there is no
// local-only fallback.
func (l *localCapabilities) VideoComments(ctx context.Context, videoID, order string) (*youtube.CommentThreadListResponse, error) {
	external, err := l.cat.CommentThreads(ctx, videoID, order)
	if err != nil {
		return nil, err
	}

	own, _, err := l.comments.Threads(ctx, l.user, videoID)
	if err != nil {
		return nil, err
	}

	items := make([]*youtube.CommentThread, 0, len(own)+len(external.Items))
	items = append(items, own...)
	items = append(items, external.Items...)
	external.Items = items
	return external, nil
}

func (l *localCapabilities) AddComment(ctx context.Context, videoID, text, channelID string) (*youtube.CommentThread, error) {
	c, err := l.comments.AddTopLevel(ctx, l.user, videoID, text, channelID)
	if err != nil {
		return nil, err
	}
	return commentThreadFrom(*c, l.user.Channel, nil), nil
}

func (l *localCapabilities) AddReply(ctx context.Context, videoID string, in ReplyInput) (*youtube.Comment, error) {
	c, err := l.comments.AddReply(ctx, l.user, videoID, in)
	if err != nil {
		return nil, err
	}
	return commentFrom(*c, l.user.Channel), nil
}

func (l *localCapabilities) EditComment(ctx context.Context, in CommentEditInput) (*youtube.Comment, error) {
	return nil, l.comments.Edit(ctx, l.user.ID, in)
}

func (l *localCapabilities) RateVideo(ctx context.Context, videoID string, rating model.Rating) error {
	_, err := l.prefs.ToggleRating(ctx, l.user.ID, model.TargetVideo, videoID, rating)
	return err
}

func (l *localCapabilities) RateComment(ctx context.Context, commentID string, rating model.Rating) error {
	_, err := l.prefs.ToggleRating(ctx, l.user.ID, model.TargetComment, commentID, rating)
	return err
}

func (l *localCapabilities) ToggleSubscription(ctx context.Context, channelID string) (bool, error) {
	return l.prefs.ToggleSubscription(ctx, l.user.ID, channelID)
}

func (l *localCapabilities) Subscriptions(ctx context.Context) ([]*youtube.Channel, error) {
	ids, err := l.prefs.IDs(ctx, l.user.ID, model.RelationSubscription)
	if err != nil {
		return nil, err
	}
	return l.channelsOf(ctx, ids)
}

// federatedCapabilities acts on the user's own Google account through a
// catalog client holding their access token.
type federatedCapabilities struct {
	catalogReads
	user   *model.User
	locks  *keyedMutex
	logger *slog.Logger
}

func (f *federatedCapabilities) Mode() Mode { return ModeFederated }

func (f *federatedCapabilities) Video(ctx context.Context, videoID string) (*youtube.Video, error) {
	return f.cat.Video(ctx, videoID)
}

func (f *federatedCapabilities) LikedVideos(ctx context.Context, pageToken string) (*youtube.VideoListResponse, error) {
	return f.cat.LikedVideos(ctx, pageToken)
}

// History is rebuilt from the account's activity feed.
func (f *federatedCapabilities) History(ctx context.Context) (*youtube.VideoListResponse, error) {
	ids, err := f.cat.ActivityVideoIDs(ctx)
	if err != nil {
		return nil, err
	}
	return f.videosInOrder(ctx, ids)
}

func (f *federatedCapabilities) VideoComments(ctx context.Context, videoID, order string) (*youtube.CommentThreadListResponse, error) {
	return f.cat.CommentThreads(ctx, videoID, order)
}

func (f *federatedCapabilities) AddComment(ctx context.Context, videoID, text, _ string) (*youtube.CommentThread, error) {
	if strings.TrimSpace(videoID) == "" {
		return nil, apperror.ValidationFailed("videoId", "video ID is required")
	}
	text, err := validateCommentText(text)
	if err != nil {
		return nil, err
	}
	return f.cat.InsertComment(ctx, videoID, text)
}

func (f *federatedCapabilities) AddReply(ctx context.Context, _ string, in ReplyInput) (*youtube.Comment, error) {
	if strings.TrimSpace(in.ParentID) == "" {
		return nil, apperror.ValidationFailed("parentId", "parent comment ID is required")
	}
	text, err := validateCommentText(in.Text)
	if err != nil {
		return nil, err
	}
	return f.cat.InsertReply(ctx, in.ParentID, text)
}

func (f *federatedCapabilities) EditComment(ctx context.Context, in CommentEditInput) (*youtube.Comment, error) {
	if strings.TrimSpace(in.CommentID) == "" {
		return nil, apperror.ValidationFailed("commentId", "comment ID is required")
	}
	text, err := validateCommentText(in.Text)
	if err != nil {
		return nil, err
	}
	return f.cat.UpdateComment(ctx, in.CommentID, text)
}

// RateVideo sets the rating directly; the platform does its own toggling.
func (f *federatedCapabilities) RateVideo(ctx context.Context, videoID string, rating model.Rating) error {
	if _, ok := model.ParseRating(string(rating)); !ok {
		return apperror.ValidationFailed("type", "rating must be like, dislike or none")
	}
	return f.cat.RateVideo(ctx, videoID, rating)
}

func (f *federatedCapabilities) RateComment(ctx context.Context, commentID string, rating model.Rating) error {
	if _, ok := model.ParseRating(string(rating)); !ok {
		return apperror.ValidationFailed("type", "rating must be like, dislike or none")
	}
	return f.cat.RateComment(ctx, commentID, rating)
}

// ToggleSubscription reads then writes, since the platform has no toggle.
// Calls for the same (user, channel) are serialized within this process;
// another instance can still race.
func (f *federatedCapabilities) ToggleSubscription(ctx context.Context, channelID string) (bool, error) {
	if strings.TrimSpace(channelID) == "" {
		return false, apperror.ValidationFailed("channelId", "channel ID is required")
	}

	unlock := f.locks.Lock(f.user.ID + "/" + channelID)
	defer unlock()

	subID, err := f.cat.FindSubscription(ctx, channelID)
	if err != nil {
		return false, err
	}

	if subID != "" {
		if err := f.cat.Unsubscribe(ctx, subID); err != nil {
			return false, err
		}
		f.logger.Info("unsubscribed", slog.String("userID", f.user.ID), slog.String("channelID", channelID))
		return false, nil
	}

	if err := f.cat.Subscribe(ctx, channelID); err != nil {
		return false, err
	}
	f.logger.Info("subscribed", slog.String("userID", f.user.ID), slog.String("channelID", channelID))
	return true, nil
}

func (f *federatedCapabilities) Subscriptions(ctx context.Context) ([]*youtube.Channel, error) {
	subs, err := f.cat.MySubscriptions(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(subs.Items))
	for _, s := range subs.Items {
		if s.Snippet != nil && s.Snippet.ResourceId != nil && s.Snippet.ResourceId.ChannelId != "" {
			ids = append(ids, s.Snippet.ResourceId.ChannelId)
		}
	}
	return f.channelsOf(ctx, ids)
}
