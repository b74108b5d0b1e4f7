package mediaprovider

import "context"

// IDType selects which server-side track listing a Tracks call targets.
type IDType int

const (
	IDTypeRandom IDType = iota
	IDTypePlaylist
	IDTypeAlbum
	IDTypeArtist
	IDTypeSong
	IDTypeFlagged
	IDTypeRecentlyPlayed
	IDTypeRarelyPlayed
	IDTypeNeverPlayed
)

// SearchQuery carries the free-text query plus optional per-field terms.
// Fields left empty fall back to Query for their sub-search.
type SearchQuery struct {
	Query  string
	Artist string
	Album  string
	Title  string
}

// MediaProvider is the server-data surface the caches, the recommendation
// engine and the playback engine are written against. The Ampache
// implementation lives in the ampache subpackage.
type MediaProvider interface {
	// Tracks fetches up to count tracks for the given id and listing type.
	// count == 0 means unlimited.
	Tracks(ctx context.Context, count int, id string, idType IDType) ([]*Track, error)

	Playlists(ctx context.Context) ([]CatalogItem, error)
	Albums(ctx context.Context) ([]CatalogItem, error)
	Artist(ctx context.Context, id string) (CatalogItem, error)
	Album(ctx context.Context, id string) (CatalogItem, error)
	ArtistAlbums(ctx context.Context, artistID string, limit, offset int) ([]CatalogItem, error)
	LiveStreams(ctx context.Context) ([]CatalogItem, error)
	RadioTrack(ctx context.Context, id string) (*Track, error)
	RecentAlbums(ctx context.Context, count int) ([]CatalogItem, error)

	Search(ctx context.Context, q SearchQuery) (SearchResults, error)
}
