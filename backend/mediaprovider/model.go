package mediaprovider

import (
	"github.com/charlievieth/strcase"
)

// A single playable track as decoded from the server's song records.
// Immutable once constructed by the decoder.
type Track struct {
	ID         string
	AlbumID    string
	ArtistID   string
	StreamURL  string
	PictureURL string
	Title      string
	Album      string
	Artist     string
	Tags       []string
	Radio      bool

	doFade bool
}

// NewTrack derives the fade flag from the track's tags against the
// configured fade tag set (e.g. Live, Medley, Nonstop).
func NewTrack(id, albumID, artistID, streamURL, pictureURL, title, album, artist string, tags []string, radio bool, fadeTags []string) *Track {
	t := &Track{
		ID:         id,
		AlbumID:    albumID,
		ArtistID:   artistID,
		StreamURL:  streamURL,
		PictureURL: pictureURL,
		Title:      title,
		Album:      album,
		Artist:     artist,
		Tags:       tags,
		Radio:      radio,
	}
	for _, tag := range tags {
		for _, fade := range fadeTags {
			if strcase.Compare(tag, fade) == 0 {
				t.doFade = true
				return t
			}
		}
	}
	return t
}

// Reports whether the track should be faded into its neighbors
// (live recordings, medleys and the like).
func (t *Track) DoFade() bool {
	return t.doFade
}

// Valid reports whether the decoder produced a playable record.
func (t *Track) Valid() bool {
	return t.ID != "" && t.StreamURL != ""
}

func (t *Track) Copy() *Track {
	new := *t
	new.Tags = append([]string(nil), t.Tags...)
	return &new
}

type ContentType int

const (
	ContentTypeArtist ContentType = iota
	ContentTypeAlbum
	ContentTypePlaylist
	ContentTypeRadioStation
)

func (c ContentType) String() string {
	switch c {
	case ContentTypeArtist:
		return "Artist"
	case ContentTypeAlbum:
		return "Album"
	case ContentTypePlaylist:
		return "Playlist"
	case ContentTypeRadioStation:
		return "Radio Station"
	default:
		return "Unknown"
	}
}

// CatalogItem is the uniform browse record for artists, albums,
// playlists and radio stations. Rebuilt on every fetch.
type CatalogItem struct {
	ID       string
	Name     string
	ArtURL   string
	ArtistID string // parent artist, where applicable
	Type     ContentType
}

// SearchResults groups the four buckets of a server search.
// ArtistAlbums holds albums found through the artist sub-search,
// distinct from direct album name matches.
type SearchResults struct {
	Songs        []*Track
	Albums       []CatalogItem
	ArtistAlbums []CatalogItem
	Artists      []CatalogItem
}

// Recommendations is the output of one recommendation pipeline run.
type Recommendations struct {
	Tracks    []*Track
	Artists   []CatalogItem
	Albums    []CatalogItem
	Playlists []CatalogItem
}
