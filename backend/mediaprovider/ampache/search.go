package ampache

import (
	"context"

	"github.com/amphora-app/amphora/backend/mediaprovider"
)

const (
	searchArtistLimit = 10
	searchAlbumLimit  = 36
	searchSongLimit   = 100
)

// Search runs the four sub-searches sequentially: artists, direct album
// matches, each found artist's albums, then songs. Albums reached through
// the artist sub-search accumulate in their own bucket.
func (c *Client) Search(ctx context.Context, token string, q mediaprovider.SearchQuery) (mediaprovider.SearchResults, error) {
	var results mediaprovider.SearchResults

	artistQuery := firstNonEmpty(q.Artist, q.Query)
	albumQuery := firstNonEmpty(q.Album, q.Query)
	titleQuery := firstNonEmpty(q.Title, q.Query)

	artists, err := c.searchCatalog(ctx, token, "artists", "artist", artistQuery, searchArtistLimit, mediaprovider.ContentTypeArtist)
	if err != nil {
		return results, err
	}
	results.Artists = artists

	if err := ctx.Err(); err != nil {
		return results, err
	}
	albums, err := c.searchCatalog(ctx, token, "albums", "album", albumQuery, searchAlbumLimit, mediaprovider.ContentTypeAlbum)
	if err != nil {
		return results, err
	}
	results.Albums = albums

	for _, artist := range artists {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		albums, err := c.ArtistAlbums(ctx, token, artist.ID, searchAlbumLimit, 0)
		if err != nil {
			return results, err
		}
		results.ArtistAlbums = append(results.ArtistAlbums, albums...)
	}

	if err := ctx.Err(); err != nil {
		return results, err
	}
	songs, err := c.searchSongs(ctx, token, titleQuery, searchSongLimit)
	if err != nil {
		return results, err
	}
	results.Songs = songs

	return results, nil
}

func (c *Client) searchCatalog(ctx context.Context, token, action, recordTag, query string, limit int, typ mediaprovider.ContentType) ([]mediaprovider.CatalogItem, error) {
	params := actionParams(action)
	params.Set("auth", token)
	params.Set("filter", query)
	c.applyLimit(params, limit)
	return c.catalogList(ctx, params, recordTag, typ)
}

func (c *Client) searchSongs(ctx context.Context, token, query string, limit int) ([]*mediaprovider.Track, error) {
	params := actionParams("search_songs")
	params.Set("auth", token)
	params.Set("filter", query)
	c.applyLimit(params, limit)

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

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if s != "" {
			return s
		}
	}
	return ""
}
