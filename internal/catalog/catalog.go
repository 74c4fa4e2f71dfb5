// Package catalog is the client for the external video platform (the YouTube
// Data API v3).
//
// Two flavours of Client exist:
//
//	NewServerClient  authenticates with the server's API key; public reads only
//	NewUserClient    acts on behalf of one Google user with their access token
//
// Both expose the same methods. Calls that need a user (rating, commenting,
// subscribing, "mine" listings) fail upstream when made through the server
// client; the capability layer never does that.
//
// Every failure is returned as an *apperror.AppError: a rejected user token
// becomes Unauthenticated, anything else becomes Upstream with the platform's
// status and message.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/sakif/tubeclone/internal/apperror"
	"github.com/sakif/tubeclone/internal/model"
)

// Request sizes and defaults. MaxIDsPerRequest is the platform's limit on
// the id parameter of list calls.
const (
	DefaultRegionCode   = "VN"
	DefaultPageSize     = 20
	CommentPageSize     = 100
	FeaturedPageSize    = 10
	MaxIDsPerRequest    = 50
	DefaultCommentOrder = "relevance"

	// BannerCropSuffix asks the image CDN for a desktop-width banner crop.
	BannerCropSuffix = "=w1707-fcrop64=1,00005a57ffffa5a8-k-c0xffffffff-no-nd-rj"
)

var (
	videoParts   = []string{"snippet", "statistics"}
	channelParts = []string{"snippet", "statistics", "brandingSettings"}
	threadParts  = []string{"snippet", "replies"}
)

// Config holds what both client flavours need.
type Config struct {
	APIKey     string
	RegionCode string
	// Endpoint overrides the API base URL (tests, proxies). Empty means the
	// platform's public endpoint.
	Endpoint string
}

func (c Config) region() string {
	if c.RegionCode == "" {
		return DefaultRegionCode
	}
	return c.RegionCode
}

// Client wraps a *youtube.Service.
type Client struct {
	svc        *youtube.Service
	httpClient *http.Client // set for user clients only
	regionCode string
	federated  bool
}

// NewServerClient builds the client used for every public catalog read.
func NewServerClient(ctx context.Context, cfg Config) (*Client, error) {
	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("catalog: creating server client: %w", err)
	}

	return &Client{svc: svc, regionCode: cfg.region()}, nil
}

// NewUserClient builds a client that carries the user's Google access token
// on every request. The token is not refreshed; when the platform rejects it
// calls fail with apperror.ErrUnauthenticated.
func NewUserClient(ctx context.Context, cfg Config, accessToken string) (*Client, error) {
	if accessToken == "" {
		return nil, apperror.Unauthenticated("google access token is required")
	}

	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{
				AccessToken: accessToken,
				TokenType:   "Bearer",
			}),
			Base: otelhttp.NewTransport(http.DefaultTransport),
		},
	}

	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("catalog: creating user client: %w", err)
	}

	return &Client{
		svc:        svc,
		httpClient: httpClient,
		regionCode: cfg.region(),
		federated:  true,
	}, nil
}

// PopularVideos is the home feed: the most popular chart for the region.
func (c *Client) PopularVideos(ctx context.Context, pageToken string) (*youtube.VideoListResponse, error) {
	call := c.svc.Videos.List(videoParts).
		Chart("mostPopular").
		RegionCode(c.regionCode).
		MaxResults(DefaultPageSize)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	resp, err := call.Context(ctx).Do()
	if err != nil {
		return nil, c.wrap("listing popular videos", err)
	}
	return resp, nil
}

// Video fetches one video. Returns apperror.ErrNotFound when the platform
// has no such video.
func (c *Client) Video(ctx context.Context, videoID string) (*youtube.Video, error) {
	resp, err := c.svc.Videos.List(videoParts).Id(videoID).Context(ctx).Do()
	if err != nil {
		return nil, c.wrap("getting video", err)
	}
	if len(resp.Items) == 0 {
		return nil, apperror.NotFound("video", videoID)
	}
	return resp.Items[0], nil
}

// VideosByIDs resolves ids to full videos, MaxIDsPerRequest at a time. Item
// order follows the platform's response per chunk, which is the id order.
func (c *Client) VideosByIDs(ctx context.Context, ids []string) (*youtube.VideoListResponse, error) {
	out := &youtube.VideoListResponse{Items: []*youtube.Video{}}

	for _, chunk := range chunkIDs(ids) {
		resp, err := c.svc.Videos.List(videoParts).
			Id(chunk...).
			MaxResults(int64(len(chunk))).
			Context(ctx).Do()
		if err != nil {
			return nil, c.wrap("listing videos by id", err)
		}
		out.Items = append(out.Items, resp.Items...)
	}

	return out, nil
}

// LikedVideos lists the signed-in user's liked videos. User client only.
func (c *Client) LikedVideos(ctx context.Context, pageToken string) (*youtube.VideoListResponse, error) {
	call := c.svc.Videos.List(videoParts).
		MyRating("like").
		MaxResults(DefaultPageSize)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	resp, err := call.Context(ctx).Do()
	if err != nil {
		return nil, c.wrap("listing liked videos", err)
	}
	return resp, nil
}

// SearchQuery narrows a video search. Either Query or ChannelID is normally set.
type SearchQuery struct {
	Query     string
	ChannelID string
	PageToken string
}

// SearchVideos returns one page of video search results. Results carry only
// ids and snippets; callers resolve them with VideosByIDs for statistics.
func (c *Client) SearchVideos(ctx context.Context, q SearchQuery) (*youtube.SearchListResponse, error) {
	call := c.svc.Search.List([]string{"snippet"}).
		Type("video").
		RegionCode(c.regionCode).
		MaxResults(DefaultPageSize)
	if q.Query != "" {
		call = call.Q(q.Query)
	}
	if q.ChannelID != "" {
		call = call.ChannelId(q.ChannelID)
	}
	if q.PageToken != "" {
		call = call.PageToken(q.PageToken)
	}

	resp, err := call.Context(ctx).Do()
	if err != nil {
		return nil, c.wrap("searching videos", err)
	}
	return resp, nil
}

// Channel fetches one channel with statistics and branding. The banner URL
// gets BannerCropSuffix appended. Returns apperror.ErrNotFound when absent.
func (c *Client) Channel(ctx context.Context, channelID string) (*youtube.Channel, error) {
	resp, err := c.svc.Channels.List(channelParts).Id(channelID).Context(ctx).Do()
	if err != nil {
		return nil, c.wrap("getting channel", err)
	}
	if len(resp.Items) == 0 {
		return nil, apperror.NotFound("channel", channelID)
	}

	ch := resp.Items[0]
	if ch.BrandingSettings != nil && ch.BrandingSettings.Image != nil &&
		ch.BrandingSettings.Image.BannerExternalUrl != "" {
		ch.BrandingSettings.Image.BannerExternalUrl += BannerCropSuffix
	}
	return ch, nil
}

// ChannelsByIDs resolves channel ids to snippets.
func (c *Client) ChannelsByIDs(ctx context.Context, ids []string) ([]*youtube.Channel, error) {
	out := []*youtube.Channel{}

	for _, chunk := range chunkIDs(ids) {
		resp, err := c.svc.Channels.List([]string{"snippet"}).
			Id(chunk...).
			MaxResults(int64(len(chunk))).
			Context(ctx).Do()
		if err != nil {
			return nil, c.wrap("listing channels by id", err)
		}
		out = append(out, resp.Items...)
	}

	return out, nil
}

// UploadsPlaylistID returns the id of the channel's uploads playlist.
func (c *Client) UploadsPlaylistID(ctx context.Context, channelID string) (string, error) {
	resp, err := c.svc.Channels.List([]string{"contentDetails"}).Id(channelID).Context(ctx).Do()
	if err != nil {
		return "", c.wrap("getting channel uploads", err)
	}
	if len(resp.Items) == 0 || resp.Items[0].ContentDetails == nil ||
		resp.Items[0].ContentDetails.RelatedPlaylists == nil ||
		resp.Items[0].ContentDetails.RelatedPlaylists.Uploads == "" {
		return "", apperror.NotFound("channel uploads", channelID)
	}
	return resp.Items[0].ContentDetails.RelatedPlaylists.Uploads, nil
}

// ChannelSections lists the shelves shown on a channel's home tab.
func (c *Client) ChannelSections(ctx context.Context, channelID string) ([]*youtube.ChannelSection, error) {
	resp, err := c.svc.ChannelSections.List([]string{"snippet", "contentDetails"}).
		ChannelId(channelID).
		Context(ctx).Do()
	if err != nil {
		return nil, c.wrap("listing channel sections", err)
	}
	return resp.Items, nil
}

// PlaylistItems returns one page of a playlist. A zero limit uses DefaultPageSize.
func (c *Client) PlaylistItems(ctx context.Context, playlistID, pageToken string, limit int64) (*youtube.PlaylistItemListResponse, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	call := c.svc.PlaylistItems.List([]string{"snippet", "status"}).
		PlaylistId(playlistID).
		MaxResults(limit)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	resp, err := call.Context(ctx).Do()
	if err != nil {
		return nil, c.wrap("listing playlist items", err)
	}
	return resp, nil
}

// CommentThreads returns the first page of public threads for a video. An
// empty order means DefaultCommentOrder.
func (c *Client) CommentThreads(ctx context.Context, videoID, order string) (*youtube.CommentThreadListResponse, error) {
	if order == "" {
		order = DefaultCommentOrder
	}

	resp, err := c.svc.CommentThreads.List(threadParts).
		VideoId(videoID).
		MaxResults(CommentPageSize).
		Order(order).
		Context(ctx).Do()
	if err != nil {
		return nil, c.wrap("listing comment threads", err)
	}
	return resp, nil
}

// InsertComment posts a new top-level comment as the signed-in user.
func (c *Client) InsertComment(ctx context.Context, videoID, text string) (*youtube.CommentThread, error) {
	thread := &youtube.CommentThread{
		Snippet: &youtube.CommentThreadSnippet{
			VideoId: videoID,
			TopLevelComment: &youtube.Comment{
				Snippet: &youtube.CommentSnippet{TextOriginal: text},
			},
		},
	}

	resp, err := c.svc.CommentThreads.Insert([]string{"snippet"}, thread).Context(ctx).Do()
	if err != nil {
		return nil, c.wrap("inserting comment", err)
	}
	return resp, nil
}

// InsertReply replies to any comment as the signed-in user.
func (c *Client) InsertReply(ctx context.Context, parentID, text string) (*youtube.Comment, error) {
	comment := &youtube.Comment{
		Snippet: &youtube.CommentSnippet{ParentId: parentID, TextOriginal: text},
	}

	resp, err := c.svc.Comments.Insert([]string{"snippet"}, comment).Context(ctx).Do()
	if err != nil {
		return nil, c.wrap("inserting reply", err)
	}
	return resp, nil
}

// UpdateComment re-texts a comment or reply the signed-in user wrote.
func (c *Client) UpdateComment(ctx context.Context, commentID, text string) (*youtube.Comment, error) {
	comment := &youtube.Comment{
		Id:      commentID,
		Snippet: &youtube.CommentSnippet{TextOriginal: text},
	}

	resp, err := c.svc.Comments.Update([]string{"snippet"}, comment).Context(ctx).Do()
	if err != nil {
		return nil, c.wrap("updating comment", err)
	}
	return resp, nil
}

// RateVideo sets the user's rating directly; the platform has no toggle.
func (c *Client) RateVideo(ctx context.Context, videoID string, rating model.Rating) error {
	if err := c.svc.Videos.Rate(videoID, string(rating)).Context(ctx).Do(); err != nil {
		return c.wrap("rating video", err)
	}
	return nil
}

// RateComment posts to commentThreads/rate. The generated client has no
// method for it, so the request goes through the user's HTTP client.
func (c *Client) RateComment(ctx context.Context, commentID string, rating model.Rating) error {
	if c.httpClient == nil {
		return apperror.Unauthenticated("rating comments requires a google sign-in")
	}

	q := url.Values{}
	q.Set("id", commentID)
	q.Set("rating", string(rating))
	endpoint := googleapi.ResolveRelative(c.svc.BasePath, "youtube/v3/commentThreads/rate") + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return fmt.Errorf("catalog: building comment rating request: %w", err)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return c.wrap("rating comment", err)
	}
	defer googleapi.CloseBody(res)

	if err := googleapi.CheckResponse(res); err != nil {
		return c.wrap("rating comment", err)
	}
	return nil
}

// MySubscriptions lists the channels the signed-in user subscribes to.
func (c *Client) MySubscriptions(ctx context.Context) (*youtube.SubscriptionListResponse, error) {
	resp, err := c.svc.Subscriptions.List([]string{"snippet"}).
		Mine(true).
		MaxResults(DefaultPageSize).
		Context(ctx).Do()
	if err != nil {
		return nil, c.wrap("listing subscriptions", err)
	}
	return resp, nil
}

// FindSubscription returns the subscription id linking the signed-in user to
// channelID, or "" when there is none.
func (c *Client) FindSubscription(ctx context.Context, channelID string) (string, error) {
	resp, err := c.svc.Subscriptions.List([]string{"id"}).
		ForChannelId(channelID).
		Mine(true).
		Context(ctx).Do()
	if err != nil {
		return "", c.wrap("finding subscription", err)
	}
	if len(resp.Items) == 0 {
		return "", nil
	}
	return resp.Items[0].Id, nil
}

func (c *Client) Subscribe(ctx context.Context, channelID string) error {
	sub := &youtube.Subscription{
		Snippet: &youtube.SubscriptionSnippet{
			ResourceId: &youtube.ResourceId{Kind: "youtube#channel", ChannelId: channelID},
		},
	}
	if _, err := c.svc.Subscriptions.Insert([]string{"snippet"}, sub).Context(ctx).Do(); err != nil {
		return c.wrap("subscribing", err)
	}
	return nil
}

func (c *Client) Unsubscribe(ctx context.Context, subscriptionID string) error {
	if err := c.svc.Subscriptions.Delete(subscriptionID).Context(ctx).Do(); err != nil {
		return c.wrap("unsubscribing", err)
	}
	return nil
}

// ActivityVideoIDs reduces the signed-in user's activity feed to the ids of
// the videos it mentions, most recent first, without duplicates.
func (c *Client) ActivityVideoIDs(ctx context.Context) ([]string, error) {
	resp, err := c.svc.Activities.List([]string{"contentDetails"}).
		Mine(true).
		MaxResults(MaxIDsPerRequest).
		Context(ctx).Do()
	if err != nil {
		return nil, c.wrap("listing activities", err)
	}

	seen := make(map[string]bool)
	ids := []string{}
	for _, a := range resp.Items {
		id := activityVideoID(a)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, nil
}

func activityVideoID(a *youtube.Activity) string {
	d := a.ContentDetails
	if d == nil {
		return ""
	}
	switch {
	case d.Upload != nil:
		return d.Upload.VideoId
	case d.Like != nil && d.Like.ResourceId != nil:
		return d.Like.ResourceId.VideoId
	case d.PlaylistItem != nil && d.PlaylistItem.ResourceId != nil:
		return d.PlaylistItem.ResourceId.VideoId
	case d.Recommendation != nil && d.Recommendation.ResourceId != nil:
		return d.Recommendation.ResourceId.VideoId
	}
	return ""
}

// wrap converts a platform error into the apperror taxonomy.
func (c *Client) wrap(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if c.federated && gerr.Code == http.StatusUnauthorized {
			return fmt.Errorf("catalog: %s: %w", op,
				apperror.Unauthenticated("google session expired, sign in with google again"))
		}
		return fmt.Errorf("catalog: %s: %w", op, apperror.Upstream("youtube", gerr.Code, gerr.Message))
	}
	return fmt.Errorf("catalog: %s: %w", op, apperror.Upstream("youtube", 0, err.Error()))
}

func chunkIDs(ids []string) [][]string {
	var chunks [][]string
	for len(ids) > 0 {
		n := min(len(ids), MaxIDsPerRequest)
		chunks = append(chunks, ids[:n])
		ids = ids[n:]
	}
	return chunks
}
