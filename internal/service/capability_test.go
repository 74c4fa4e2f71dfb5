package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"google.golang.org/api/youtube/v3"

	"github.com/sakif/tubeclone/internal/apperror"
	"github.com/sakif/tubeclone/internal/model"
	"github.com/sakif/tubeclone/internal/repository/sqlite"
)

type dispatchFixture struct {
	db       *sqlite.DB
	server   *fakeCatalog
	user     *fakeCatalog
	observer *countingObserver
	d        *Dispatcher
}

func newDispatchFixture(t *testing.T) (*dispatchFixture, *model.User) {
	t.Helper()
	db := newTestDB(t)
	local := createLocalUser(t, db, "local@example.com")
	f := &dispatchFixture{
		db:       db,
		server:   newFakeCatalog(),
		user:     newFakeCatalog(),
		observer: &countingObserver{},
	}
	f.d = NewDispatcher(f.server, userCatalogFor(f.user), db, f.observer, discardLogger())
	return f, local
}

func mustFor(t *testing.T, d *Dispatcher, user *model.User, token string) Capabilities {
	t.Helper()
	caps, err := d.For(context.Background(), identityOf(user, token))
	if err != nil {
		t.Fatalf("For() error = %v", err)
	}
	return caps
}

func TestFor_PicksBackendBySignInMode(t *testing.T) {
	f, local := newDispatchFixture(t)

	if got := mustFor(t, f.d, local, "").Mode(); got != ModeLocal {
		t.Errorf("local user Mode() = %q, want local", got)
	}
	if got := mustFor(t, f.d, googleUser(), "g-token").Mode(); got != ModeFederated {
		t.Errorf("google user Mode() = %q, want federated", got)
	}
	if f.observer.dispatched["local"] != 1 || f.observer.dispatched["federated"] != 1 {
		t.Errorf("dispatch counts = %v", f.observer.dispatched)
	}
}

func TestFor_GoogleUserWithoutTokenIsUnauthenticated(t *testing.T) {
	f, _ := newDispatchFixture(t)

	_, err := f.d.For(context.Background(), identityOf(googleUser(), ""))
	if !errors.Is(err, apperror.ErrUnauthenticated) {
		t.Errorf("For() error = %v, want ErrUnauthenticated", err)
	}
	if _, err := f.d.For(context.Background(), nil); !errors.Is(err, apperror.ErrUnauthenticated) {
		t.Errorf("For(nil) error = %v, want ErrUnauthenticated", err)
	}
}

func TestVideoFeed_UsesTheModesCatalog(t *testing.T) {
	f, local := newDispatchFixture(t)
	resp, err := mustFor(t, f.d, local, "").VideoFeed(context.Background(), "p2")
	if err != nil {
		t.Fatalf("VideoFeed() error = %v", err)
	}
	if resp.NextPageToken != "p2-next" {
		t.Errorf("NextPageToken = %q, want p2-next", resp.NextPageToken)
	}

	liked, err := mustFor(t, f.d, googleUser(), "tok").LikedVideos(context.Background(), "")
	if err != nil {
		t.Fatalf("LikedVideos() error = %v", err)
	}
	if len(liked.Items) != 1 || liked.Items[0].Id != "liked-upstream" {
		t.Errorf("federated liked = %+v, want the account's own list", liked.Items)
	}
}

// Local threads come first, newest first, then the external page in its own
// order, whatever order was requested.
func TestVideoComments_LocalBeforeExternal(t *testing.T) {
	f, local := newDispatchFixture(t)
	f.server.threads = []*youtube.CommentThread{{Id: "ext-1"}, {Id: "ext-2"}}
	caps := mustFor(t, f.d, local, "")
	ctx := context.Background()

	mine, err := caps.AddComment(ctx, "v1", "mine", "UC-video")
	if err != nil {
		t.Fatalf("AddComment() error = %v", err)
	}

	for _, order := range []string{"time", "relevance"} {
		resp, err := caps.VideoComments(ctx, "v1", order)
		if err != nil {
			t.Fatalf("VideoComments(%s) error = %v", order, err)
		}
		var ids []string
		for _, th := range resp.Items {
			ids = append(ids, th.Id)
		}
		want := []string{mine.Id, "ext-1", "ext-2"}
		if len(ids) != len(want) {
			t.Fatalf("VideoComments(%s) ids = %v, want %v", order, ids, want)
		}
		for i := range want {
			if ids[i] != want[i] {
				t.Errorf("VideoComments(%s) ids = %v, want %v", order, ids, want)
				break
			}
		}
		if f.server.lastOrder != order {
			t.Errorf("order passed upstream = %q, want %q", f.server.lastOrder, order)
		}
	}
}

func TestVideoComments_ExternalFailureFailsWhole(t *testing.T) {
	f, local := newDispatchFixture(t)
	f.server.threadsErr = apperror.Upstream("youtube", 403, "commentsDisabled")

	_, err := mustFor(t, f.d, local, "").VideoComments(context.Background(), "v1", "")
	if !errors.Is(err, apperror.ErrUpstream) {
		t.Errorf("VideoComments() error = %v, want ErrUpstream", err)
	}
}

func TestVideoComments_FederatedIsExternalOnly(t *testing.T) {
	f, _ := newDispatchFixture(t)
	f.user.threads = []*youtube.CommentThread{{Id: "ext-1"}}

	resp, err := mustFor(t, f.d, googleUser(), "tok").VideoComments(context.Background(), "v1", "time")
	if err != nil {
		t.Fatalf("VideoComments() error = %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].Id != "ext-1" {
		t.Errorf("items = %+v, want only ext-1", resp.Items)
	}
}

// Two views of one video leave exactly one history entry with the first
// view's timestamp.
func TestVideo_RecordsFirstViewOnly(t *testing.T) {
	f, local := newDispatchFixture(t)
	f.server.addVideo("v1", "One", "Chan")
	ctx := context.Background()

	first := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	f.d.now = func() time.Time { return first }
	if _, err := mustFor(t, f.d, local, "").Video(ctx, "v1"); err != nil {
		t.Fatalf("Video() error = %v", err)
	}
	f.d.now = func() time.Time { return first.Add(time.Hour) }
	if _, err := mustFor(t, f.d, local, "").Video(ctx, "v1"); err != nil {
		t.Fatalf("Video() error = %v", err)
	}

	entries, err := f.db.ListHistory(ctx, local.ID)
	if err != nil {
		t.Fatalf("ListHistory() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(history) = %d, want 1", len(entries))
	}
	if !entries[0].WatchedAt.Equal(first) {
		t.Errorf("WatchedAt = %v, want %v", entries[0].WatchedAt, first)
	}
}

func TestVideo_UnknownVideoRecordsNothing(t *testing.T) {
	f, local := newDispatchFixture(t)
	ctx := context.Background()

	if _, err := mustFor(t, f.d, local, "").Video(ctx, "nope"); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("Video() error = %v, want ErrNotFound", err)
	}
	entries, _ := f.db.ListHistory(ctx, local.ID)
	if len(entries) != 0 {
		t.Errorf("history = %v, want empty", entries)
	}
}

func TestHistory_OneBatchInWatchOrder(t *testing.T) {
	f, local := newDispatchFixture(t)
	for _, id := range []string{"a", "b", "c"} {
		f.server.addVideo(id, id, "")
	}
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		f.d.now = func() time.Time { return base.Add(time.Duration(i) * time.Minute) }
		if _, err := mustFor(t, f.d, local, "").Video(ctx, id); err != nil {
			t.Fatalf("Video(%s) error = %v", id, err)
		}
	}

	f.server.batchCalls = 0
	resp, err := mustFor(t, f.d, local, "").History(ctx)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if f.server.batchCalls != 1 {
		t.Errorf("batch lookups = %d, want 1", f.server.batchCalls)
	}
	got := []string{}
	for _, v := range resp.Items {
		got = append(got, v.Id)
	}
	if len(got) != 3 || got[0] != "c" || got[2] != "a" {
		t.Errorf("history = %v, want [c b a]", got)
	}
}

func TestHistory_FederatedUsesActivity(t *testing.T) {
	f, _ := newDispatchFixture(t)
	f.user.activity = []string{"x", "y"}
	f.user.addVideo("x", "", "")
	f.user.addVideo("y", "", "")

	resp, err := mustFor(t, f.d, googleUser(), "tok").History(context.Background())
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(resp.Items) != 2 || resp.Items[0].Id != "x" {
		t.Errorf("history = %+v, want [x y]", resp.Items)
	}
}

func TestLikedVideos_LocalResolvesLikedSet(t *testing.T) {
	f, local := newDispatchFixture(t)
	f.server.addVideo("v1", "", "")
	f.server.addVideo("v2", "", "")
	caps := mustFor(t, f.d, local, "")
	ctx := context.Background()

	for _, id := range []string{"v1", "v2"} {
		if err := caps.RateVideo(ctx, id, model.RatingLike); err != nil {
			t.Fatalf("RateVideo() error = %v", err)
		}
	}

	resp, err := caps.LikedVideos(ctx, "")
	if err != nil {
		t.Fatalf("LikedVideos() error = %v", err)
	}
	if len(resp.Items) != 2 || resp.Items[0].Id != "v1" || resp.Items[1].Id != "v2" {
		t.Errorf("liked = %+v, want [v1 v2]", resp.Items)
	}

	ids, err := f.d.PreferenceIDs(ctx, local, model.RelationLikedVideo)
	if err != nil || len(ids) != 2 {
		t.Errorf("PreferenceIDs() = (%v, %v), want 2 ids", ids, err)
	}
}

func TestSearch_ResolvesHitsAndKeepsToken(t *testing.T) {
	f, local := newDispatchFixture(t)
	f.server.addVideo("v1", "", "")
	f.server.addVideo("v2", "", "")
	f.server.search = &youtube.SearchListResponse{
		NextPageToken: "next",
		Items: []*youtube.SearchResult{
			{Id: &youtube.ResourceId{VideoId: "v1"}},
			{Id: &youtube.ResourceId{VideoId: "v2"}},
		},
	}

	resp, err := mustFor(t, f.d, local, "").Search(context.Background(), " cats ", "p1")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if resp.NextPageToken != "next" {
		t.Errorf("NextPageToken = %q, want next", resp.NextPageToken)
	}
	if len(resp.Items) != 2 || resp.Items[0].Id != "v1" {
		t.Errorf("items = %+v, want [v1 v2]", resp.Items)
	}
	if f.server.lastSearch.Query != "cats" || f.server.lastSearch.PageToken != "p1" {
		t.Errorf("search query = %+v", f.server.lastSearch)
	}

	if _, err := mustFor(t, f.d, local, "").Search(context.Background(), "  ", ""); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("empty query error = %v, want ErrValidation", err)
	}
}

func TestRelevantVideos_DropsCurrentVideo(t *testing.T) {
	f, local := newDispatchFixture(t)
	f.server.addVideo("v1", "", "")
	f.server.addVideo("v2", "", "")
	f.server.search = &youtube.SearchListResponse{
		NextPageToken: "more",
		Items: []*youtube.SearchResult{
			{Id: &youtube.ResourceId{VideoId: "v1"}},
			{Id: &youtube.ResourceId{VideoId: "v2"}},
		},
	}
	caps := mustFor(t, f.d, local, "")

	resp, err := caps.RelevantVideos(context.Background(), "v1", "UC1", "")
	if err != nil {
		t.Fatalf("RelevantVideos() error = %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].Id != "v2" {
		t.Errorf("items = %+v, want [v2]", resp.Items)
	}
	if resp.NextPageToken != "more" || f.server.lastSearch.ChannelID != "UC1" {
		t.Errorf("token = %q, search = %+v", resp.NextPageToken, f.server.lastSearch)
	}

	f.server.search = &youtube.SearchListResponse{Items: []*youtube.SearchResult{{Id: &youtube.ResourceId{VideoId: "v1"}}}}
	if _, err := caps.RelevantVideos(context.Background(), "v1", "UC1", ""); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("only the current video: error = %v, want ErrNotFound", err)
	}
}

func TestToggleSubscription_Federated(t *testing.T) {
	f, _ := newDispatchFixture(t)
	caps := mustFor(t, f.d, googleUser(), "tok")
	ctx := context.Background()

	on, err := caps.ToggleSubscription(ctx, "UC1")
	if err != nil || !on {
		t.Fatalf("first toggle = (%v, %v), want (true, nil)", on, err)
	}
	chans, err := caps.Subscriptions(ctx)
	if err != nil || len(chans) != 1 || chans[0].Id != "UC1" {
		t.Fatalf("Subscriptions() = (%+v, %v), want [UC1]", chans, err)
	}

	off, err := caps.ToggleSubscription(ctx, "UC1")
	if err != nil || off {
		t.Fatalf("second toggle = (%v, %v), want (false, nil)", off, err)
	}
	if len(f.user.subs) != 0 {
		t.Errorf("subs = %v, want none", f.user.subs)
	}
}

// Concurrent toggles for the same channel are serialized, so an even number
// of them always ends unsubscribed with no double insert.
func TestToggleSubscription_FederatedSerialized(t *testing.T) {
	f, _ := newDispatchFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			caps, err := f.d.For(ctx, identityOf(googleUser(), "tok"))
			if err != nil {
				t.Errorf("For() error = %v", err)
				return
			}
			if _, err := caps.ToggleSubscription(ctx, "UC1"); err != nil {
				t.Errorf("ToggleSubscription() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if len(f.user.subs) != 0 {
		t.Errorf("subs = %v, want none after an even number of toggles", f.user.subs)
	}
	if f.user.subscribes != 5 {
		t.Errorf("subscribe calls = %d, want 5", f.user.subscribes)
	}
	if n := f.d.subLocks.len(); n != 0 {
		t.Errorf("lock entries left = %d, want 0", n)
	}
}

func TestSubscriptions_LocalReturnsChannels(t *testing.T) {
	f, local := newDispatchFixture(t)
	caps := mustFor(t, f.d, local, "")
	ctx := context.Background()

	chans, err := caps.Subscriptions(ctx)
	if err != nil || chans == nil || len(chans) != 0 {
		t.Fatalf("no subscriptions: (%v, %v), want empty list", chans, err)
	}

	if _, err := caps.ToggleSubscription(ctx, "UC9"); err != nil {
		t.Fatalf("ToggleSubscription() error = %v", err)
	}
	chans, err = caps.Subscriptions(ctx)
	if err != nil || len(chans) != 1 || chans[0].Id != "UC9" {
		t.Errorf("Subscriptions() = (%+v, %v), want [UC9]", chans, err)
	}
}

func TestRateVideo_FederatedSetsDirectly(t *testing.T) {
	f, _ := newDispatchFixture(t)
	caps := mustFor(t, f.d, googleUser(), "tok")

	for range 2 {
		if err := caps.RateVideo(context.Background(), "v1", model.RatingLike); err != nil {
			t.Fatalf("RateVideo() error = %v", err)
		}
	}
	if f.user.ratedVideos["v1"] != model.RatingLike {
		t.Errorf("rating = %q, want like (no local toggling)", f.user.ratedVideos["v1"])
	}
	if err := caps.RateVideo(context.Background(), "v1", "meh"); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("bad rating error = %v, want ErrValidation", err)
	}
}

func TestEditComment_ReturnShapePerMode(t *testing.T) {
	f, local := newDispatchFixture(t)
	ctx := context.Background()

	localCaps := mustFor(t, f.d, local, "")
	thread, err := localCaps.AddComment(ctx, "v1", "hi", "")
	if err != nil {
		t.Fatalf("AddComment() error = %v", err)
	}
	got, err := localCaps.EditComment(ctx, CommentEditInput{CommentID: thread.Id, Text: "edited", VideoID: "v1"})
	if err != nil || got != nil {
		t.Errorf("local EditComment() = (%v, %v), want (nil, nil)", got, err)
	}

	fedCaps := mustFor(t, f.d, googleUser(), "tok")
	got, err = fedCaps.EditComment(ctx, CommentEditInput{CommentID: "yt-c", Text: "edited"})
	if err != nil || got == nil || got.Snippet.TextOriginal != "edited" {
		t.Errorf("federated EditComment() = (%+v, %v)", got, err)
	}
}

func TestRepliedOtherComments(t *testing.T) {
	f, local := newDispatchFixture(t)
	caps := mustFor(t, f.d, local, "")
	ctx := context.Background()

	empty, err := f.d.RepliedOtherComments(ctx, local, "v1")
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("RepliedOtherComments() = (%v, %v), want empty map", empty, err)
	}

	if _, err := caps.AddReply(ctx, "v1", ReplyInput{ParentID: "yt-9", Text: "hey", AuthorChannelID: "UC-x"}); err != nil {
		t.Fatalf("AddReply() error = %v", err)
	}
	got, err := f.d.RepliedOtherComments(ctx, local, "v1")
	if err != nil || len(got["yt-9"]) != 1 {
		t.Errorf("RepliedOtherComments() = (%v, %v), want one reply under yt-9", got, err)
	}
}
