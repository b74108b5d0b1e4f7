package ampache

import (
	"context"
	"errors"

	"github.com/amphora-app/amphora/backend/mediaprovider"
)

// TokenSource yields a live auth token, transparently driving handshake
// and retry behind the scenes. Invalidate marks the current token stale so
// the next Token call fetches a fresh one.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

// ampacheMediaProvider adapts the token-per-call Client to the
// mediaprovider.MediaProvider surface the rest of the app consumes.
// A server-rejected call invalidates the token and is retried once.
type ampacheMediaProvider struct {
	client *Client
	tokens TokenSource
}

func NewMediaProvider(client *Client, tokens TokenSource) mediaprovider.MediaProvider {
	return &ampacheMediaProvider{client: client, tokens: tokens}
}

// withToken runs call with a live token, refreshing it once if the server
// rejects the session mid-lease.
func (p *ampacheMediaProvider) withToken(ctx context.Context, call func(token string) error) error {
	token, err := p.tokens.Token(ctx)
	if err != nil {
		return err
	}
	err = call(token)
	var serverErr *ServerError
	if !errors.As(err, &serverErr) {
		return err
	}
	p.tokens.Invalidate()
	if token, err = p.tokens.Token(ctx); err != nil {
		return err
	}
	return call(token)
}

func (p *ampacheMediaProvider) Tracks(ctx context.Context, count int, id string, idType mediaprovider.IDType) ([]*mediaprovider.Track, error) {
	var tracks []*mediaprovider.Track
	err := p.withToken(ctx, func(token string) error {
		var err error
		tracks, err = p.client.Tracks(ctx, token, count, id, idType)
		return err
	})
	return tracks, err
}

func (p *ampacheMediaProvider) Playlists(ctx context.Context) ([]mediaprovider.CatalogItem, error) {
	var items []mediaprovider.CatalogItem
	err := p.withToken(ctx, func(token string) error {
		var err error
		items, err = p.client.Playlists(ctx, token)
		return err
	})
	return items, err
}

func (p *ampacheMediaProvider) Albums(ctx context.Context) ([]mediaprovider.CatalogItem, error) {
	var items []mediaprovider.CatalogItem
	err := p.withToken(ctx, func(token string) error {
		var err error
		items, err = p.client.Albums(ctx, token)
		return err
	})
	return items, err
}

func (p *ampacheMediaProvider) Artist(ctx context.Context, id string) (mediaprovider.CatalogItem, error) {
	var item mediaprovider.CatalogItem
	err := p.withToken(ctx, func(token string) error {
		var err error
		item, err = p.client.Artist(ctx, token, id)
		return err
	})
	return item, err
}

func (p *ampacheMediaProvider) Album(ctx context.Context, id string) (mediaprovider.CatalogItem, error) {
	var item mediaprovider.CatalogItem
	err := p.withToken(ctx, func(token string) error {
		var err error
		item, err = p.client.Album(ctx, token, id)
		return err
	})
	return item, err
}

func (p *ampacheMediaProvider) ArtistAlbums(ctx context.Context, artistID string, limit, offset int) ([]mediaprovider.CatalogItem, error) {
	var items []mediaprovider.CatalogItem
	err := p.withToken(ctx, func(token string) error {
		var err error
		items, err = p.client.ArtistAlbums(ctx, token, artistID, limit, offset)
		return err
	})
	return items, err
}

func (p *ampacheMediaProvider) LiveStreams(ctx context.Context) ([]mediaprovider.CatalogItem, error) {
	var items []mediaprovider.CatalogItem
	err := p.withToken(ctx, func(token string) error {
		var err error
		items, err = p.client.LiveStreams(ctx, token)
		return err
	})
	return items, err
}

func (p *ampacheMediaProvider) RadioTrack(ctx context.Context, id string) (*mediaprovider.Track, error) {
	var track *mediaprovider.Track
	err := p.withToken(ctx, func(token string) error {
		var err error
		track, err = p.client.RadioTrack(ctx, token, id)
		return err
	})
	return track, err
}

func (p *ampacheMediaProvider) RecentAlbums(ctx context.Context, count int) ([]mediaprovider.CatalogItem, error) {
	var items []mediaprovider.CatalogItem
	err := p.withToken(ctx, func(token string) error {
		var err error
		items, err = p.client.RecentAlbums(ctx, token, count)
		return err
	})
	return items, err
}

func (p *ampacheMediaProvider) Search(ctx context.Context, q mediaprovider.SearchQuery) (mediaprovider.SearchResults, error) {
	var results mediaprovider.SearchResults
	err := p.withToken(ctx, func(token string) error {
		var err error
		results, err = p.client.Search(ctx, token, q)
		return err
	})
	return results, err
}
