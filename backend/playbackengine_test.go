package backend

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/amphora-app/amphora/backend/mediaprovider"
	"github.com/amphora-app/amphora/backend/player"
)

// fakeProvider serves canned track lists keyed by listing type and counts
// fetches per type.
type fakeProvider struct {
	tracks       map[mediaprovider.IDType][]*mediaprovider.Track
	radio        map[string]*mediaprovider.Track
	artistAlbums map[string][]mediaprovider.CatalogItem
	fetches      map[mediaprovider.IDType]int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		tracks:       make(map[mediaprovider.IDType][]*mediaprovider.Track),
		radio:        make(map[string]*mediaprovider.Track),
		artistAlbums: make(map[string][]mediaprovider.CatalogItem),
		fetches:      make(map[mediaprovider.IDType]int),
	}
}

func testTrack(id string) *mediaprovider.Track {
	return mediaprovider.NewTrack(id, "al"+id, "ar"+id, "http://x/stream/"+id, "", "Track "+id, "", "", nil, false, nil)
}

func testQueue(n int) []*mediaprovider.Track {
	tracks := make([]*mediaprovider.Track, n)
	for i := range tracks {
		tracks[i] = testTrack(fmt.Sprintf("q%d", i))
	}
	return tracks
}

func (f *fakeProvider) Tracks(ctx context.Context, count int, id string, idType mediaprovider.IDType) ([]*mediaprovider.Track, error) {
	f.fetches[idType]++
	tracks := f.tracks[idType]
	if count > 0 && count < len(tracks) {
		tracks = tracks[:count]
	}
	return tracks, nil
}

func (f *fakeProvider) Playlists(ctx context.Context) ([]mediaprovider.CatalogItem, error) {
	return nil, nil
}

func (f *fakeProvider) Albums(ctx context.Context) ([]mediaprovider.CatalogItem, error) {
	return nil, nil
}

func (f *fakeProvider) Artist(ctx context.Context, id string) (mediaprovider.CatalogItem, error) {
	return mediaprovider.CatalogItem{ID: id, Name: "Artist " + id, Type: mediaprovider.ContentTypeArtist}, nil
}

func (f *fakeProvider) Album(ctx context.Context, id string) (mediaprovider.CatalogItem, error) {
	return mediaprovider.CatalogItem{ID: id, Name: "Album " + id, Type: mediaprovider.ContentTypeAlbum}, nil
}

func (f *fakeProvider) ArtistAlbums(ctx context.Context, artistID string, limit, offset int) ([]mediaprovider.CatalogItem, error) {
	albums := f.artistAlbums[artistID]
	if offset >= len(albums) {
		return nil, nil
	}
	albums = albums[offset:]
	if limit > 0 && limit < len(albums) {
		albums = albums[:limit]
	}
	return albums, nil
}

func (f *fakeProvider) LiveStreams(ctx context.Context) ([]mediaprovider.CatalogItem, error) {
	return nil, nil
}

func (f *fakeProvider) RadioTrack(ctx context.Context, id string) (*mediaprovider.Track, error) {
	if tr, ok := f.radio[id]; ok {
		return tr, nil
	}
	return nil, fmt.Errorf("no radio station %s", id)
}

func (f *fakeProvider) RecentAlbums(ctx context.Context, count int) ([]mediaprovider.CatalogItem, error) {
	return nil, nil
}

func (f *fakeProvider) Search(ctx context.Context, q mediaprovider.SearchQuery) (mediaprovider.SearchResults, error) {
	return mediaprovider.SearchResults{}, nil
}

func newTestEngine(t *testing.T, provider mediaprovider.MediaProvider) (*PlaybackEngine, *player.NullPlayer, Store) {
	t.Helper()
	sm := NewServerManager("amphora-test")
	sm.Server = provider
	p := player.NewNullPlayer()
	store := NewMemoryStore()
	pe := NewPlaybackEngine(context.Background(), sm, p, store)
	return pe, p, store
}

func finishCurrent(p *player.NullPlayer) {
	p.SetTimePos(180)
	p.FinishTrack()
}

func TestAlbumPlaysThroughThenFallsBackToRandom(t *testing.T) {
	provider := newFakeProvider()
	provider.tracks[mediaprovider.IDTypeAlbum] = testQueue(5)
	provider.tracks[mediaprovider.IDTypeRandom] = []*mediaprovider.Track{testTrack("rnd")}
	pe, p, _ := newTestEngine(t, provider)

	if err := pe.PlayID(context.Background(), "album_31"); err != nil {
		t.Fatalf("PlayID: %v", err)
	}
	if pe.Mode() != PlayModeAlbum {
		t.Fatalf("mode = %s", pe.Mode())
	}
	for i := 0; i < 5; i++ {
		want := fmt.Sprintf("q%d", i)
		if got := pe.NowPlaying().ID; got != want {
			t.Fatalf("track %d: playing %q, want %q", i, got, want)
		}
		finishCurrent(p)
	}
	// past the end of the album the engine switches to random
	if pe.Mode() != PlayModeRandom {
		t.Errorf("mode after album end = %s, want Random", pe.Mode())
	}
	if got := pe.NowPlaying().ID; got != "rnd" {
		t.Errorf("playing %q after album end", got)
	}
	if n := provider.fetches[mediaprovider.IDTypeRandom]; n != 1 {
		t.Errorf("random fetches = %d, want exactly 1", n)
	}
	if n := provider.fetches[mediaprovider.IDTypeAlbum]; n != 1 {
		t.Errorf("album fetches = %d, want exactly 1", n)
	}
}

func TestArtistQueueIsCapped(t *testing.T) {
	provider := newFakeProvider()
	provider.tracks[mediaprovider.IDTypeArtist] = testQueue(20)
	pe, _, _ := newTestEngine(t, provider)

	if err := pe.PlayID(context.Background(), "artist_12"); err != nil {
		t.Fatalf("PlayID: %v", err)
	}
	if got := len(pe.ComingUp()); got != artistQueueLength {
		t.Errorf("artist queue length = %d, want %d", got, artistQueueLength)
	}
}

func TestSkipPrevious(t *testing.T) {
	provider := newFakeProvider()
	provider.tracks[mediaprovider.IDTypeAlbum] = testQueue(3)
	pe, p, _ := newTestEngine(t, provider)

	if err := pe.PlayID(context.Background(), "album_31"); err != nil {
		t.Fatalf("PlayID: %v", err)
	}
	finishCurrent(p)
	if pe.ComingUpIndex() != 1 {
		t.Fatalf("index = %d", pe.ComingUpIndex())
	}

	// past the threshold: restart the current track
	p.SetTimePos(30)
	if err := pe.SkipPrevious(); err != nil {
		t.Fatalf("SkipPrevious: %v", err)
	}
	if pe.ComingUpIndex() != 1 {
		t.Errorf("index = %d, want 1 (restart, not step back)", pe.ComingUpIndex())
	}
	if pos := p.GetStatus().TimePos; pos != 0 {
		t.Errorf("time pos = %f, want 0", pos)
	}

	// within the threshold: step back
	p.SetTimePos(1.0)
	if err := pe.SkipPrevious(); err != nil {
		t.Fatalf("SkipPrevious: %v", err)
	}
	if pe.ComingUpIndex() != 0 {
		t.Errorf("index = %d, want 0", pe.ComingUpIndex())
	}

	// at the head of the queue: no-op
	p.SetTimePos(1.0)
	if err := pe.SkipPrevious(); err != nil {
		t.Fatalf("SkipPrevious: %v", err)
	}
	if pe.ComingUpIndex() != 0 {
		t.Errorf("index = %d, want 0", pe.ComingUpIndex())
	}
}

func TestRadioNeverSkipsBack(t *testing.T) {
	provider := newFakeProvider()
	provider.radio["3"] = mediaprovider.NewTrack("3", "", "", "http://radio.example/fip", "", "FIP", "", "", nil, true, nil)
	pe, p, _ := newTestEngine(t, provider)

	if err := pe.PlayID(context.Background(), "radio_3"); err != nil {
		t.Fatalf("PlayID: %v", err)
	}
	p.SetTimePos(600)
	if err := pe.SkipPrevious(); err != nil {
		t.Fatalf("SkipPrevious: %v", err)
	}
	if pos := p.GetStatus().TimePos; pos != 600 {
		t.Errorf("radio position changed to %f", pos)
	}
}

func TestBrowseSongFallsBackToRandom(t *testing.T) {
	provider := newFakeProvider()
	provider.tracks[mediaprovider.IDTypeSong] = []*mediaprovider.Track{testTrack("s9")}
	provider.tracks[mediaprovider.IDTypeRandom] = []*mediaprovider.Track{testTrack("rnd")}
	pe, p, _ := newTestEngine(t, provider)

	if err := pe.PlayID(context.Background(), "song_s9"); err != nil {
		t.Fatalf("PlayID: %v", err)
	}
	if pe.Mode() != PlayModeBrowse {
		t.Fatalf("mode = %s", pe.Mode())
	}
	finishCurrent(p)
	if pe.Mode() != PlayModeRandom {
		t.Errorf("mode = %s, want Random after browse song ends", pe.Mode())
	}
}

func TestZeroPositionCompletionIsPlaybackError(t *testing.T) {
	provider := newFakeProvider()
	provider.tracks[mediaprovider.IDTypeAlbum] = testQueue(2)
	pe, p, _ := newTestEngine(t, provider)

	var playbackErr error
	pe.OnPlaybackError(func(err error) { playbackErr = err })

	if err := pe.PlayID(context.Background(), "album_31"); err != nil {
		t.Fatalf("PlayID: %v", err)
	}
	p.FinishTrack() // position still 0
	if playbackErr == nil {
		t.Error("zero-position completion should report a playback error")
	}
	if pe.ComingUpIndex() != 0 {
		t.Errorf("index = %d, queue must not advance on error", pe.ComingUpIndex())
	}
}

func TestPlayStatePersistsAndResumes(t *testing.T) {
	provider := newFakeProvider()
	provider.tracks[mediaprovider.IDTypePlaylist] = testQueue(5)
	pe, p, store := newTestEngine(t, provider)

	if err := pe.PlayID(context.Background(), "playlist_44"); err != nil {
		t.Fatalf("PlayID: %v", err)
	}
	finishCurrent(p)
	finishCurrent(p)
	if pe.ComingUpIndex() != 2 {
		t.Fatalf("index = %d", pe.ComingUpIndex())
	}

	// a fresh engine over the same store resumes mid-queue
	sm2 := NewServerManager("amphora-test")
	sm2.Server = provider
	pe2 := NewPlaybackEngine(context.Background(), sm2, player.NewNullPlayer(), store)
	if err := pe2.Resume(context.Background()); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if pe2.Mode() != PlayModePlaylist {
		t.Errorf("resumed mode = %s", pe2.Mode())
	}
	if pe2.ComingUpIndex() != 2 {
		t.Errorf("resumed index = %d, want 2", pe2.ComingUpIndex())
	}
}

func TestSmartPlaylistResumesAtTop(t *testing.T) {
	provider := newFakeProvider()
	provider.tracks[mediaprovider.IDTypePlaylist] = testQueue(5)
	pe, p, store := newTestEngine(t, provider)

	if err := pe.PlayID(context.Background(), "playlist_smart_21"); err != nil {
		t.Fatalf("PlayID: %v", err)
	}
	finishCurrent(p)
	finishCurrent(p)

	sm2 := NewServerManager("amphora-test")
	sm2.Server = provider
	pe2 := NewPlaybackEngine(context.Background(), sm2, player.NewNullPlayer(), store)
	if err := pe2.Resume(context.Background()); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if pe2.ComingUpIndex() != 0 {
		t.Errorf("smart playlist resumed at %d, want 0", pe2.ComingUpIndex())
	}
}

func TestLogoutClearsQueueAndSavedState(t *testing.T) {
	provider := newFakeProvider()
	provider.tracks[mediaprovider.IDTypeAlbum] = testQueue(3)

	sm := NewServerManager("amphora-test")
	sm.Server = provider
	p := player.NewNullPlayer()
	store := NewMemoryStore()
	pe := NewPlaybackEngine(context.Background(), sm, p, store)

	if err := pe.PlayID(context.Background(), "album_31"); err != nil {
		t.Fatalf("PlayID: %v", err)
	}
	sm.Logout()
	if pe.NowPlaying() != nil {
		t.Error("queue not cleared on logout")
	}
	if _, ok := store.GetInt(storeGroupPlayState, storeKeyMode); ok {
		t.Error("saved play mode not deleted on logout")
	}
}

func TestResumeIgnoresStateFromAnotherServer(t *testing.T) {
	provider := newFakeProvider()
	provider.tracks[mediaprovider.IDTypePlaylist] = testQueue(3)
	pe, p, store := newTestEngine(t, provider)
	pe.sm.ServerID = uuid.New()

	if err := pe.PlayID(context.Background(), "playlist_44"); err != nil {
		t.Fatalf("PlayID: %v", err)
	}
	finishCurrent(p)

	sm2 := NewServerManager("amphora-test")
	sm2.Server = provider
	sm2.ServerID = uuid.New()
	pe2 := NewPlaybackEngine(context.Background(), sm2, player.NewNullPlayer(), store)
	if err := pe2.Resume(context.Background()); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if pe2.NowPlaying() != nil {
		t.Error("state from another server must not be restored")
	}
}

func TestShuffleTracks(t *testing.T) {
	payload := &QueuePayload{
		Mode:       PlayModePlaylist,
		ActiveID:   "44",
		Tracks:     testQueue(20),
		StartIndex: 5,
	}
	want := make(map[string]struct{})
	for _, tr := range payload.Tracks {
		want[tr.ID] = struct{}{}
	}
	payload.ShuffleTracks()
	if payload.StartIndex != 0 {
		t.Errorf("start index = %d, want 0 after shuffle", payload.StartIndex)
	}
	if len(payload.Tracks) != len(want) {
		t.Fatalf("shuffle changed queue length to %d", len(payload.Tracks))
	}
	for _, tr := range payload.Tracks {
		if _, ok := want[tr.ID]; !ok {
			t.Fatalf("shuffle invented track %q", tr.ID)
		}
	}
}

func TestUnrecognizedID(t *testing.T) {
	provider := newFakeProvider()
	pe, _, _ := newTestEngine(t, provider)
	if err := pe.PlayID(context.Background(), "video_1"); err == nil {
		t.Error("unknown prefix should error")
	}
	if err := pe.PlayID(context.Background(), "31"); err == nil {
		t.Error("bare id should error")
	}
}
