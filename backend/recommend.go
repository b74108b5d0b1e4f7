package backend

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"strings"

	"github.com/charlievieth/strcase"
	"github.com/deluan/sanitize"

	"github.com/amphora-app/amphora/backend/mediaprovider"
	"github.com/amphora-app/amphora/sharedutil"
)

const (
	recommendedTrackCount      = 7
	recommendedAlbumsPerArtist = 2
	topTagCap                  = 3
)

// RecommendationEngine builds one mixed listening recommendation: a seven
// track blend of favorite, recently played, long-unplayed and never-played
// songs, expanded into the related artists, albums and playlists. It holds
// no cache of its own; the LibraryManager wraps it in a ResultCache.
type RecommendationEngine struct {
	playlists func() []mediaprovider.CatalogItem
	fadeTags  func() []string
}

func NewRecommendationEngine(playlists func() []mediaprovider.CatalogItem, fadeTags func() []string) *RecommendationEngine {
	return &RecommendationEngine{
		playlists: playlists,
		fadeTags:  fadeTags,
	}
}

// Build runs the full pipeline. Cancellation is checked between every
// network round-trip; a cancelled build emits nothing.
func (e *RecommendationEngine) Build(ctx context.Context, server mediaprovider.MediaProvider) (mediaprovider.Recommendations, error) {
	var rec mediaprovider.Recommendations
	if server == nil {
		return rec, errors.New("not connected to a server")
	}

	sources := []mediaprovider.IDType{
		mediaprovider.IDTypeFlagged,
		mediaprovider.IDTypeRecentlyPlayed,
		mediaprovider.IDTypeRarelyPlayed,
		mediaprovider.IDTypeNeverPlayed,
	}
	fetched := make(map[mediaprovider.IDType][]*mediaprovider.Track, len(sources))
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return mediaprovider.Recommendations{}, err
		}
		tracks, err := server.Tracks(ctx, recommendedTrackCount, "", src)
		if err != nil {
			log.Printf("recommendation source %d unavailable: %v", src, err)
			continue
		}
		fetched[src] = tracks
	}

	rec.Tracks = mergeRecommendedTracks(
		fetched[mediaprovider.IDTypeFlagged],
		fetched[mediaprovider.IDTypeRecentlyPlayed],
		fetched[mediaprovider.IDTypeRarelyPlayed],
		fetched[mediaprovider.IDTypeNeverPlayed],
	)

	if err := e.expandRelated(ctx, server, &rec); err != nil {
		return mediaprovider.Recommendations{}, err
	}
	e.matchTagPlaylists(&rec)
	return rec, nil
}

// mergeRecommendedTracks blends the four source lists into at most seven
// tracks: one never-played lead-in, long-unplayed tracks up to a third of
// the target, then favorites and recents alternating, with any remaining
// slots backfilled from the long-unplayed and never-played pools.
func mergeRecommendedTracks(favorite, recent, ancient, never []*mediaprovider.Track) []*mediaprovider.Track {
	merged := make([]*mediaprovider.Track, 0, recommendedTrackCount)
	add := func(t *mediaprovider.Track) {
		if len(merged) >= recommendedTrackCount {
			return
		}
		if sharedutil.FindTrackByID(t.ID, merged) != nil {
			return
		}
		merged = append(merged, t)
	}

	ni, ai := 0, 0
	if len(never) > 0 {
		add(never[0])
		ni = 1
	}
	for ai < len(ancient) && len(merged) < recommendedTrackCount/3 {
		add(ancient[ai])
		ai++
	}
	for fi, ri := 0, 0; fi < len(favorite) && ri < len(recent) && len(merged) < recommendedTrackCount; {
		add(favorite[fi])
		fi++
		if ri < len(recent) && len(merged) < recommendedTrackCount {
			add(recent[ri])
			ri++
		}
	}
	for (ai < len(ancient) || ni < len(never)) && len(merged) < recommendedTrackCount {
		if ai < len(ancient) {
			add(ancient[ai])
			ai++
		}
		if ni < len(never) && len(merged) < recommendedTrackCount {
			add(never[ni])
			ni++
		}
	}
	return merged
}

// expandRelated pulls the full artist and album records for each selected
// track, up to two of each new artist's albums from a random offset, and
// any cached playlist whose name contains the artist's name.
func (e *RecommendationEngine) expandRelated(ctx context.Context, server mediaprovider.MediaProvider, rec *mediaprovider.Recommendations) error {
	playlists := e.playlists()
	seenArtists := make(map[string]struct{})
	seenAlbums := make(map[string]struct{})
	addedPlaylists := make(map[string]struct{})

	for _, track := range rec.Tracks {
		if track.ArtistID != "" {
			if _, ok := seenArtists[track.ArtistID]; !ok {
				seenArtists[track.ArtistID] = struct{}{}
				if err := ctx.Err(); err != nil {
					return err
				}
				artist, err := server.Artist(ctx, track.ArtistID)
				if err != nil {
					log.Printf("error fetching artist %s: %v", track.ArtistID, err)
				} else {
					rec.Artists = append(rec.Artists, artist)

					if err := ctx.Err(); err != nil {
						return err
					}
					offset := rand.Intn(8)
					albums, err := server.ArtistAlbums(ctx, artist.ID, recommendedAlbumsPerArtist, offset)
					if err == nil && len(albums) == 0 && offset > 0 {
						if err := ctx.Err(); err != nil {
							return err
						}
						albums, err = server.ArtistAlbums(ctx, artist.ID, recommendedAlbumsPerArtist, 0)
					}
					if err != nil {
						log.Printf("error fetching albums of artist %s: %v", artist.ID, err)
					}
					for _, al := range albums {
						if _, ok := seenAlbums[al.ID]; !ok {
							seenAlbums[al.ID] = struct{}{}
							rec.Albums = append(rec.Albums, al)
						}
					}

					for _, pl := range playlists {
						if _, ok := addedPlaylists[pl.ID]; ok {
							continue
						}
						if containsFold(pl.Name, artist.Name) {
							addedPlaylists[pl.ID] = struct{}{}
							rec.Playlists = append(rec.Playlists, pl)
						}
					}
				}
			}
		}

		if track.AlbumID != "" {
			if _, ok := seenAlbums[track.AlbumID]; !ok {
				seenAlbums[track.AlbumID] = struct{}{}
				if err := ctx.Err(); err != nil {
					return err
				}
				album, err := server.Album(ctx, track.AlbumID)
				if err != nil {
					log.Printf("error fetching album %s: %v", track.AlbumID, err)
				} else {
					rec.Albums = append(rec.Albums, album)
				}
			}
		}
	}
	return nil
}

// matchTagPlaylists tallies tag frequency across the selected tracks
// (fade-marker tags excluded), takes the tags tied for the top count, and
// adds any cached playlist whose name contains one of their tokens.
func (e *RecommendationEngine) matchTagPlaylists(rec *mediaprovider.Recommendations) {
	fade := e.fadeTags()
	counts := make(map[string]int)
	display := make(map[string]string)
	var order []string
	for _, track := range rec.Tracks {
		for _, tag := range track.Tags {
			if isFadeTag(tag, fade) {
				continue
			}
			key := strings.ToLower(sanitize.Accents(tag))
			if _, ok := counts[key]; !ok {
				display[key] = tag
				order = append(order, key)
			}
			counts[key]++
		}
	}
	max := 0
	for _, n := range counts {
		if n > max {
			max = n
		}
	}
	if max == 0 {
		return
	}
	var topTags []string
	for _, key := range order {
		if counts[key] == max {
			topTags = append(topTags, display[key])
			if len(topTags) == topTagCap {
				break
			}
		}
	}

	present := make(map[string]struct{}, len(rec.Playlists))
	for _, pl := range rec.Playlists {
		present[pl.ID] = struct{}{}
	}
	for _, tag := range topTags {
		for _, token := range strings.Fields(tag) {
			for _, pl := range e.playlists() {
				if _, ok := present[pl.ID]; ok {
					continue
				}
				if containsFold(pl.Name, token) {
					present[pl.ID] = struct{}{}
					rec.Playlists = append(rec.Playlists, pl)
				}
			}
		}
	}
}

func isFadeTag(tag string, fadeTags []string) bool {
	for _, f := range fadeTags {
		if strcase.Compare(tag, f) == 0 {
			return true
		}
	}
	return false
}

// containsFold reports whether name contains sub, ignoring case and accents.
func containsFold(name, sub string) bool {
	if sub == "" {
		return false
	}
	return strcase.Contains(sanitize.Accents(name), sanitize.Accents(sub))
}
