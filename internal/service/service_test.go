package service

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"google.golang.org/api/youtube/v3"

	"github.com/sakif/tubeclone/internal/apperror"
	"github.com/sakif/tubeclone/internal/auth"
	"github.com/sakif/tubeclone/internal/catalog"
	"github.com/sakif/tubeclone/internal/model"
	"github.com/sakif/tubeclone/internal/repository/sqlite"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// createLocalUser stores a password account whose channel id is its user id.
// Rows in the other tables reference it, so tests create it first.
func createLocalUser(t *testing.T, db *sqlite.DB, email string) *model.User {
	t.Helper()
	user := &model.User{
		ID:         "u-" + email,
		Email:      email,
		SignInMode: model.SignInPassword,
	}
	user.Channel = model.Channel{ChannelID: user.ID, DisplayName: "@" + email}
	if err := db.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

func googleUser() *model.User {
	return &model.User{ID: "g-1", Email: "g@example.com", SignInMode: model.SignInGoogle}
}

// fakeCatalog implements the Catalog calls the services make. Methods not
// overridden here panic through the nil embedded interface, which flags any
// unexpected call.
type fakeCatalog struct {
	Catalog

	mu       sync.Mutex
	videos   map[string]*youtube.Video
	channels map[string]*youtube.Channel
	threads  []*youtube.CommentThread
	search   *youtube.SearchListResponse
	sections []*youtube.ChannelSection
	uploads  string
	activity []string
	subs     map[string]string // channel id → subscription id
	nextSub  int

	threadsErr   error
	lastSearch   catalog.SearchQuery
	lastOrder    string
	lastPlaylist string
	lastLimit    int64
	batchCalls   int
	ratedVideos  map[string]model.Rating
	inserted     []string
	subscribes   int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		videos:      make(map[string]*youtube.Video),
		channels:    make(map[string]*youtube.Channel),
		subs:        make(map[string]string),
		ratedVideos: make(map[string]model.Rating),
	}
}

func (f *fakeCatalog) addVideo(id, title, channelTitle string) {
	f.videos[id] = &youtube.Video{Id: id, Snippet: &youtube.VideoSnippet{Title: title, ChannelTitle: channelTitle}}
}

func (f *fakeCatalog) PopularVideos(_ context.Context, pageToken string) (*youtube.VideoListResponse, error) {
	return &youtube.VideoListResponse{Items: []*youtube.Video{{Id: "popular"}}, NextPageToken: pageToken + "-next"}, nil
}

func (f *fakeCatalog) Video(_ context.Context, id string) (*youtube.Video, error) {
	v, ok := f.videos[id]
	if !ok {
		return nil, apperror.NotFound("video", id)
	}
	return v, nil
}

// VideosByIDs answers in reverse map order to make sure callers re-order.
func (f *fakeCatalog) VideosByIDs(_ context.Context, ids []string) (*youtube.VideoListResponse, error) {
	f.batchCalls++
	resp := &youtube.VideoListResponse{Items: []*youtube.Video{}}
	for i := len(ids) - 1; i >= 0; i-- {
		if v, ok := f.videos[ids[i]]; ok {
			resp.Items = append(resp.Items, v)
		}
	}
	return resp, nil
}

func (f *fakeCatalog) LikedVideos(_ context.Context, _ string) (*youtube.VideoListResponse, error) {
	return &youtube.VideoListResponse{Items: []*youtube.Video{{Id: "liked-upstream"}}}, nil
}

func (f *fakeCatalog) SearchVideos(_ context.Context, q catalog.SearchQuery) (*youtube.SearchListResponse, error) {
	f.lastSearch = q
	if f.search == nil {
		return &youtube.SearchListResponse{}, nil
	}
	return f.search, nil
}

func (f *fakeCatalog) Channel(_ context.Context, id string) (*youtube.Channel, error) {
	ch, ok := f.channels[id]
	if !ok {
		return nil, apperror.NotFound("channel", id)
	}
	return ch, nil
}

func (f *fakeCatalog) ChannelsByIDs(_ context.Context, ids []string) ([]*youtube.Channel, error) {
	out := []*youtube.Channel{}
	for _, id := range ids {
		out = append(out, &youtube.Channel{Id: id})
	}
	return out, nil
}

func (f *fakeCatalog) UploadsPlaylistID(_ context.Context, channelID string) (string, error) {
	if f.uploads == "" {
		return "", apperror.NotFound("channel", channelID)
	}
	return f.uploads, nil
}

func (f *fakeCatalog) ChannelSections(_ context.Context, _ string) ([]*youtube.ChannelSection, error) {
	return f.sections, nil
}

func (f *fakeCatalog) PlaylistItems(_ context.Context, playlistID, _ string, limit int64) (*youtube.PlaylistItemListResponse, error) {
	f.lastPlaylist = playlistID
	f.lastLimit = limit
	return &youtube.PlaylistItemListResponse{Items: []*youtube.PlaylistItem{{Id: playlistID + "-item"}}}, nil
}

func (f *fakeCatalog) CommentThreads(_ context.Context, _ string, order string) (*youtube.CommentThreadListResponse, error) {
	f.lastOrder = order
	if f.threadsErr != nil {
		return nil, f.threadsErr
	}
	return &youtube.CommentThreadListResponse{Items: append([]*youtube.CommentThread(nil), f.threads...)}, nil
}

func (f *fakeCatalog) InsertComment(_ context.Context, videoID, text string) (*youtube.CommentThread, error) {
	f.inserted = append(f.inserted, videoID+":"+text)
	return &youtube.CommentThread{Id: "yt-thread", Snippet: &youtube.CommentThreadSnippet{VideoId: videoID}}, nil
}

func (f *fakeCatalog) UpdateComment(_ context.Context, commentID, text string) (*youtube.Comment, error) {
	return &youtube.Comment{Id: commentID, Snippet: &youtube.CommentSnippet{TextOriginal: text}}, nil
}

func (f *fakeCatalog) RateVideo(_ context.Context, videoID string, rating model.Rating) error {
	f.ratedVideos[videoID] = rating
	return nil
}

func (f *fakeCatalog) MySubscriptions(_ context.Context) (*youtube.SubscriptionListResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	resp := &youtube.SubscriptionListResponse{}
	for ch, id := range f.subs {
		resp.Items = append(resp.Items, &youtube.Subscription{
			Id:      id,
			Snippet: &youtube.SubscriptionSnippet{ResourceId: &youtube.ResourceId{ChannelId: ch}},
		})
	}
	return resp, nil
}

func (f *fakeCatalog) FindSubscription(_ context.Context, channelID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs[channelID], nil
}

func (f *fakeCatalog) Subscribe(_ context.Context, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextSub++
	f.subscribes++
	f.subs[channelID] = "sub-" + strings.Repeat("x", f.nextSub)
	return nil
}

func (f *fakeCatalog) Unsubscribe(_ context.Context, subID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch, id := range f.subs {
		if id == subID {
			delete(f.subs, ch)
			return nil
		}
	}
	return apperror.Upstream("youtube", 404, "subscription not found")
}

func (f *fakeCatalog) ActivityVideoIDs(_ context.Context) ([]string, error) {
	return f.activity, nil
}

// userCatalogFor returns a UserCatalogFunc that hands out cat for any
// non-empty token.
func userCatalogFor(cat Catalog) UserCatalogFunc {
	return func(_ context.Context, token string) (Catalog, error) {
		if token == "" {
			return nil, apperror.Unauthenticated("google access token required")
		}
		return cat, nil
	}
}

// fakeImages records uploads and destroys. failUpload makes Upload fail for
// data URLs containing it.
type fakeImages struct {
	mu         sync.Mutex
	uploaded   []string
	destroyed  []string
	failUpload string
	failDelete bool
	n          int
}

func (f *fakeImages) Upload(_ context.Context, folder, dataURL string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpload != "" && strings.Contains(dataURL, f.failUpload) {
		return "", apperror.Upstream("objectstore", 0, "upload failed")
	}
	f.n++
	u := "https://cdn.test/" + folder + "/img" + strings.Repeat("i", f.n)
	f.uploaded = append(f.uploaded, u)
	return u, nil
}

func (f *fakeImages) DestroyURL(_ context.Context, _ string, rawURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete {
		return apperror.Upstream("objectstore", 0, "delete failed")
	}
	f.destroyed = append(f.destroyed, rawURL)
	return nil
}

func (f *fakeImages) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploaded) + len(f.destroyed)
}

type fakeSender struct {
	err  error
	sent []string
}

func (f *fakeSender) Send(_ context.Context, to, subject, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, to+"|"+subject)
	return nil
}

type countingObserver struct {
	mu         sync.Mutex
	dispatched map[string]int
	emailFails int
}

func (c *countingObserver) Dispatched(mode string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dispatched == nil {
		c.dispatched = make(map[string]int)
	}
	c.dispatched[mode]++
}

func (c *countingObserver) EmailFailed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emailFails++
}

func identityOf(user *model.User, googleToken string) *auth.Identity {
	return &auth.Identity{User: user, GoogleAccessToken: googleToken}
}
