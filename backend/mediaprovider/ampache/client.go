package ampache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/amphora-app/amphora/backend/mediaprovider"
	"github.com/amphora-app/amphora/sharedutil"
)

const (
	apiPath = "/server/xml.server.php"

	connectTimeout = 25 * time.Second
	readTimeout    = 90 * time.Second
)

// Client speaks the Ampache XML API. Every authenticated call takes the
// token explicitly; the client itself holds no session state beyond the
// negotiated API version.
type Client struct {
	BaseURL string

	httpClient *retryablehttp.Client

	mu         sync.Mutex
	apiVersion int
	fadeTags   []string
}

func NewClient(baseURL string, fadeTags []string) *Client {
	hc := retryablehttp.NewClient()
	hc.Logger = nil
	hc.RetryMax = 1
	hc.HTTPClient = &http.Client{
		Timeout: readTimeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout: connectTimeout,
			}).DialContext,
			TLSHandshakeTimeout: connectTimeout,
		},
	}
	return &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: hc,
		fadeTags:   append([]string(nil), fadeTags...),
	}
}

// SetFadeTags replaces the tag set that marks tracks for crossfading.
// Applied to tracks decoded after the call.
func (c *Client) SetFadeTags(tags []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fadeTags = append([]string(nil), tags...)
}

func (c *Client) currentFadeTags() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fadeTags
}

// APIVersion returns the version negotiated by the last Ping or Handshake,
// or 0 if neither has succeeded yet.
func (c *Client) APIVersion() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.apiVersion
}

func (c *Client) setAPIVersion(v int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apiVersion = v
}

func (c *Client) get(ctx context.Context, params url.Values) (io.ReadCloser, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+apiPath+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("server returned status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

func actionParams(action string) url.Values {
	params := url.Values{}
	params.Set("action", action)
	return params
}

// applyLimit sets the limit parameter for a listing call. count == 0 means
// unlimited, which old broken releases cannot express at all.
func (c *Client) applyLimit(params url.Values, count int) {
	if count > 0 {
		params.Set("limit", strconv.Itoa(count))
		return
	}
	if versionOmitsLimit(c.APIVersion()) {
		return
	}
	params.Set("limit", "none")
}

// Ping asks the server for its API version without authenticating.
func (c *Client) Ping(ctx context.Context) (int, error) {
	body, err := c.get(ctx, actionParams("ping"))
	if err != nil {
		return 0, err
	}
	defer body.Close()

	fields, err := decodeFlat(body, "version", "error", "errorMessage")
	if err != nil {
		return 0, err
	}
	version, ok := fields["version"]
	if !ok {
		return 0, fmt.Errorf("%w: ping response has no version", ErrInvalidResponse)
	}
	v := ParseAPIVersion(version)
	c.setAPIVersion(v)
	return v, nil
}

// Handshake establishes a session and returns the auth token. The auth
// parameter is sha256(unixTime + sha256(password)) per the Ampache API.
func (c *Client) Handshake(ctx context.Context, user, password string) (string, error) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	passwordHash := sha256Hex(password)

	params := actionParams("handshake")
	params.Set("auth", sha256Hex(timestamp+passwordHash))
	params.Set("timestamp", timestamp)
	params.Set("version", strconv.Itoa(MinAPIVersion))
	params.Set("user", user)

	body, err := c.get(ctx, params)
	if err != nil {
		return "", err
	}
	defer body.Close()

	fields, err := decodeFlat(body, "auth", "api", "error", "errorMessage")
	if err != nil {
		return "", err
	}
	if msg, ok := serverErrorText(fields); ok {
		return "", &AuthError{Message: "handshake failed: " + msg, Retryable: false}
	}
	token, api := fields["auth"], fields["api"]
	if token == "" || api == "" {
		return "", fmt.Errorf("%w: handshake response missing auth or api", ErrInvalidResponse)
	}
	v := ParseAPIVersion(api)
	if v < MinAPIVersion {
		reported := v
		if reported == 0 {
			reported = legacyAPIVersion(api)
		}
		return "", &AuthError{
			Message:   fmt.Sprintf("server API version %d is not supported, minimum is %d", reported, MinAPIVersion),
			Retryable: false,
		}
	}
	c.setAPIVersion(v)
	return token, nil
}

// TokenTest checks whether a (possibly stale-cached) token is still live by
// issuing a one-result playlist_generate call.
func (c *Client) TokenTest(ctx context.Context, token string) (bool, error) {
	params := actionParams("playlist_generate")
	params.Set("auth", token)
	params.Set("limit", "1")
	params.Set("format", "index")

	body, err := c.get(ctx, params)
	if err != nil {
		return false, err
	}
	defer body.Close()

	fields, err := decodeFlat(body, "total_count", "error", "errorMessage")
	if err != nil {
		return false, err
	}
	if _, isErr := serverErrorText(fields); isErr {
		return false, nil
	}
	_, hasCount := fields["total_count"]
	return hasCount, nil
}

// Tracks fetches up to count tracks (0 = unlimited) for the given id and
// listing type. Song records whose stream URL fails to parse are dropped;
// the accumulated error surfaces only if every record was dropped.
func (c *Client) Tracks(ctx context.Context, token string, count int, id string, idType mediaprovider.IDType) ([]*mediaprovider.Track, error) {
	params, err := trackParams(id, idType)
	if err != nil {
		return nil, err
	}
	params.Set("auth", token)
	c.applyLimit(params, count)

	body, err := c.get(ctx, params)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	recs, err := decodeRecords(body, "song", "title", "album", "artist", "url", "art", "tag")
	if err != nil {
		return nil, err
	}
	return c.songsToTracks(recs)
}

func trackParams(id string, idType mediaprovider.IDType) (url.Values, error) {
	switch idType {
	case mediaprovider.IDTypeRandom:
		params := actionParams("playlist_generate")
		params.Set("mode", "random")
		return params, nil
	case mediaprovider.IDTypeFlagged:
		params := actionParams("playlist_generate")
		params.Set("flag", "1")
		return params, nil
	case mediaprovider.IDTypeArtist:
		params := actionParams("playlist_generate")
		params.Set("artist", id)
		return params, nil
	case mediaprovider.IDTypeAlbum:
		params := actionParams("album_songs")
		params.Set("filter", id)
		return params, nil
	case mediaprovider.IDTypePlaylist:
		params := actionParams("playlist_songs")
		params.Set("filter", id)
		return params, nil
	case mediaprovider.IDTypeSong:
		params := actionParams("song")
		params.Set("filter", id)
		return params, nil
	case mediaprovider.IDTypeRecentlyPlayed:
		return advancedSearchParams("last_play", "1", "7"), nil
	case mediaprovider.IDTypeRarelyPlayed:
		return advancedSearchParams("last_play", "0", "30"), nil
	case mediaprovider.IDTypeNeverPlayed:
		return advancedSearchParams("myplayedtimes", "2", "0"), nil
	default:
		return nil, fmt.Errorf("unknown track listing type %d", idType)
	}
}

func advancedSearchParams(rule, operator, input string) url.Values {
	params := actionParams("advanced_search")
	params.Set("operator", "and")
	params.Set("type", "song")
	params.Set("random", "1")
	params.Set("rule_1", rule)
	params.Set("rule_1_operator", operator)
	params.Set("rule_1_input", input)
	return params
}

func (c *Client) songsToTracks(recs []record) ([]*mediaprovider.Track, error) {
	fadeTags := c.currentFadeTags()
	tracks := make([]*mediaprovider.Track, 0, len(recs))
	var lastErr error
	for _, rec := range recs {
		streamURL := rec.get("url")
		if _, err := url.ParseRequestURI(streamURL); err != nil {
			lastErr = fmt.Errorf("song %s has unusable stream url: %w", rec.id, err)
			continue
		}
		track := mediaprovider.NewTrack(
			rec.id,
			rec.get("album_id"),
			rec.get("artist_id"),
			streamURL,
			rec.get("art"),
			rec.get("title"),
			rec.get("album"),
			rec.get("artist"),
			rec.tags(),
			false,
			fadeTags,
		)
		if !track.Valid() {
			lastErr = fmt.Errorf("song record %q is missing required fields", rec.id)
			continue
		}
		tracks = append(tracks, track)
	}
	if len(tracks) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return tracks, nil
}

// Albums lists all albums in the catalog.
func (c *Client) Albums(ctx context.Context, token string) ([]mediaprovider.CatalogItem, error) {
	params := actionParams("albums")
	params.Set("auth", token)
	c.applyLimit(params, 0)
	return c.catalogList(ctx, params, "album", mediaprovider.ContentTypeAlbum)
}

// Artist fetches the full record of one artist.
func (c *Client) Artist(ctx context.Context, token, id string) (mediaprovider.CatalogItem, error) {
	params := actionParams("artist")
	params.Set("auth", token)
	params.Set("filter", id)
	return c.catalogOne(ctx, params, "artist", mediaprovider.ContentTypeArtist)
}

// Album fetches the full record of one album.
func (c *Client) Album(ctx context.Context, token, id string) (mediaprovider.CatalogItem, error) {
	params := actionParams("album")
	params.Set("auth", token)
	params.Set("filter", id)
	return c.catalogOne(ctx, params, "album", mediaprovider.ContentTypeAlbum)
}

// ArtistAlbums lists an artist's albums starting at the given offset.
func (c *Client) ArtistAlbums(ctx context.Context, token, artistID string, limit, offset int) ([]mediaprovider.CatalogItem, error) {
	params := actionParams("artist_albums")
	params.Set("auth", token)
	params.Set("filter", artistID)
	if offset > 0 {
		params.Set("offset", strconv.Itoa(offset))
	}
	c.applyLimit(params, limit)
	return c.catalogList(ctx, params, "album", mediaprovider.ContentTypeAlbum)
}

// Playlists lists all playlists, smart ones included.
func (c *Client) Playlists(ctx context.Context, token string) ([]mediaprovider.CatalogItem, error) {
	params := actionParams("playlists")
	params.Set("auth", token)
	c.applyLimit(params, 0)
	return c.catalogList(ctx, params, "playlist", mediaprovider.ContentTypePlaylist)
}

// LiveStreams lists the configured radio stations.
func (c *Client) LiveStreams(ctx context.Context, token string) ([]mediaprovider.CatalogItem, error) {
	params := actionParams("live_streams")
	params.Set("auth", token)
	c.applyLimit(params, 0)
	return c.catalogList(ctx, params, "live_stream", mediaprovider.ContentTypeRadioStation)
}

// RadioTrack fetches one radio station as a playable track.
func (c *Client) RadioTrack(ctx context.Context, token, id string) (*mediaprovider.Track, error) {
	params := actionParams("live_stream")
	params.Set("auth", token)
	params.Set("filter", id)

	body, err := c.get(ctx, params)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	recs, err := decodeRecords(body, "live_stream", "name", "url", "art")
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: no live_stream record for id %s", ErrInvalidResponse, id)
	}
	rec := recs[0]
	streamURL := rec.get("url")
	if _, err := url.ParseRequestURI(streamURL); err != nil {
		return nil, fmt.Errorf("radio station %s has unusable stream url: %w", id, err)
	}
	track := mediaprovider.NewTrack(rec.id, "", "", streamURL, rec.get("art"), rec.get("name"), "", "", nil, true, nil)
	if !track.Valid() {
		return nil, fmt.Errorf("%w: live_stream record %q missing required fields", ErrInvalidResponse, id)
	}
	return track, nil
}

// RecentAlbums lists the newest albums in the catalog.
func (c *Client) RecentAlbums(ctx context.Context, token string, count int) ([]mediaprovider.CatalogItem, error) {
	params := actionParams("stats")
	params.Set("auth", token)
	params.Set("type", "album")
	params.Set("filter", "newest")
	c.applyLimit(params, count)
	return c.catalogList(ctx, params, "album", mediaprovider.ContentTypeAlbum)
}

func (c *Client) catalogList(ctx context.Context, params url.Values, recordTag string, typ mediaprovider.ContentType) ([]mediaprovider.CatalogItem, error) {
	body, err := c.get(ctx, params)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	recs, err := decodeRecords(body, recordTag, "name", "art", "artist")
	if err != nil {
		return nil, err
	}
	return sharedutil.MapSlice(recs, func(rec record) mediaprovider.CatalogItem {
		return mediaprovider.CatalogItem{
			ID:       rec.id,
			Name:     rec.get("name"),
			ArtURL:   rec.get("art"),
			ArtistID: rec.get("artist_id"),
			Type:     typ,
		}
	}), nil
}

func (c *Client) catalogOne(ctx context.Context, params url.Values, recordTag string, typ mediaprovider.ContentType) (mediaprovider.CatalogItem, error) {
	items, err := c.catalogList(ctx, params, recordTag, typ)
	if err != nil {
		return mediaprovider.CatalogItem{}, err
	}
	if len(items) == 0 {
		return mediaprovider.CatalogItem{}, fmt.Errorf("%w: no %s record in response", ErrInvalidResponse, recordTag)
	}
	return items[0], nil
}

// serverErrorText maps the two error shapes the API produces (flat <error>
// text in v4, nested <errorMessage> in v5+) to one message.
func serverErrorText(fields map[string]string) (string, bool) {
	msg, ok := fields["error"]
	if !ok {
		return "", false
	}
	if m := strings.TrimSpace(fields["errorMessage"]); m != "" {
		return m, true
	}
	return strings.TrimSpace(msg), true
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
