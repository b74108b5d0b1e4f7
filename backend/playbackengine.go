package backend

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/amphora-app/amphora/backend/mediaprovider"
	"github.com/amphora-app/amphora/backend/player"
	"github.com/amphora-app/amphora/backend/util"
)

// The active play mode. Queue modes (Playlist, Album, Artist) walk a
// fetched coming-up queue; Random fetches one fresh track at a time;
// Browse plays a single chosen song or radio station.
type PlayMode int

const (
	PlayModeRandom PlayMode = iota
	PlayModePlaylist
	PlayModeAlbum
	PlayModeArtist
	PlayModeBrowse
)

func (m PlayMode) String() string {
	switch m {
	case PlayModeRandom:
		return "Random"
	case PlayModePlaylist:
		return "Playlist"
	case PlayModeAlbum:
		return "Album"
	case PlayModeArtist:
		return "Artist"
	case PlayModeBrowse:
		return "Browse"
	default:
		return "Unknown"
	}
}

const (
	// Artist mode plays a short sampler rather than the whole discography.
	artistQueueLength = 7

	// Skipping backward within the first 2.5 seconds changes track;
	// after that it restarts the current one.
	seekBackThresholdSeconds = 2.5

	// Smart playlists are generated server-side per request; a saved
	// mid-queue position in one is meaningless.
	smartPlaylistPrefix = "smart_"
)

const (
	storeGroupPlayState = "playState"
	storeKeyServerID    = "serverID"
	storeKeyMode        = "mode"
	storeKeyPlaylistID  = "playlistID"
	storeKeyAlbumID     = "albumID"
	storeKeyArtistID    = "artistID"
	storeKeyBrowseID    = "browseID"
	storeKeyQueueIndex  = "comingUpIndex"
)

// QueuePayload is the immutable result of a queue fetch. Workers produce
// payloads; the session goroutine applies them.
type QueuePayload struct {
	Mode       PlayMode
	ActiveID   string
	Tracks     []*mediaprovider.Track
	StartIndex int
}

// ShuffleTracks randomizes the fetched queue order before it is applied
// and restarts it from the top.
func (p *QueuePayload) ShuffleTracks() {
	rand.Shuffle(len(p.Tracks), func(i, j int) {
		p.Tracks[i], p.Tracks[j] = p.Tracks[j], p.Tracks[i]
	})
	p.StartIndex = 0
}

// PlaybackEngine owns the play mode, the coming-up queue, and the playback
// sink. All methods must be driven from the session goroutine; fetch
// results cross over as QueuePayloads, and player track-ended events reach
// the engine on the session goroutine per the BasePlayer contract.
type PlaybackEngine struct {
	ctx    context.Context
	sm     *ServerManager
	player player.BasePlayer
	store  Store

	mode        PlayMode
	playlistID  string
	albumID     string
	artistID    string
	browseID    string
	comingUp    []*mediaprovider.Track
	comingUpIdx int

	pausedByUser      bool
	playTimeStopwatch util.Stopwatch
	callbacksDisabled bool

	onSongChange    []func(*mediaprovider.Track)
	onPlaying       []func()
	onPaused        []func()
	onStopped       []func()
	onQueueChange   []func()
	onPlaybackError []func(error)
}

func NewPlaybackEngine(ctx context.Context, sm *ServerManager, p player.BasePlayer, store Store) *PlaybackEngine {
	pe := &PlaybackEngine{
		ctx:         ctx,
		sm:          sm,
		player:      p,
		store:       store,
		mode:        PlayModeRandom,
		comingUpIdx: -1,
	}
	p.OnPlaying(func() {
		pe.playTimeStopwatch.Start()
		pe.invokeNoArgCallbacks(pe.onPlaying)
	})
	p.OnPaused(func() {
		pe.playTimeStopwatch.Stop()
		pe.invokeNoArgCallbacks(pe.onPaused)
	})
	p.OnStopped(func() {
		pe.playTimeStopwatch.Stop()
		pe.invokeNoArgCallbacks(pe.onStopped)
	})
	p.OnTrackEnded(pe.handleTrackEnded)

	sm.OnLogout(func() {
		pe.StopAndClearQueue()
		pe.store.Delete(storeGroupPlayState, storeKeyMode)
	})
	return pe
}

func (pe *PlaybackEngine) server() mediaprovider.MediaProvider {
	return pe.sm.Server
}

// PlayID starts playback for a prefix-typed id (playlist_/album_/artist_/
// song_/radio_), fetching the new coming-up queue first.
func (pe *PlaybackEngine) PlayID(ctx context.Context, prefixedID string) error {
	payload, err := pe.FetchQueue(ctx, prefixedID)
	if err != nil {
		return err
	}
	return pe.Apply(payload)
}

// FetchQueue retrieves the track queue for a prefixed id without touching
// engine state, so it is safe to run on a worker goroutine.
func (pe *PlaybackEngine) FetchQueue(ctx context.Context, prefixedID string) (*QueuePayload, error) {
	server := pe.server()
	if server == nil {
		return nil, errors.New("not connected to a server")
	}
	kind, id, ok := splitPrefixedID(prefixedID)
	if !ok {
		return nil, fmt.Errorf("unrecognized id %q", prefixedID)
	}
	switch kind {
	case "playlist":
		tracks, err := server.Tracks(ctx, 0, id, mediaprovider.IDTypePlaylist)
		if err != nil {
			return nil, err
		}
		return &QueuePayload{Mode: PlayModePlaylist, ActiveID: id, Tracks: tracks}, nil
	case "album":
		tracks, err := server.Tracks(ctx, 0, id, mediaprovider.IDTypeAlbum)
		if err != nil {
			return nil, err
		}
		return &QueuePayload{Mode: PlayModeAlbum, ActiveID: id, Tracks: tracks}, nil
	case "artist":
		tracks, err := server.Tracks(ctx, artistQueueLength, id, mediaprovider.IDTypeArtist)
		if err != nil {
			return nil, err
		}
		return &QueuePayload{Mode: PlayModeArtist, ActiveID: id, Tracks: tracks}, nil
	case "song":
		tracks, err := server.Tracks(ctx, 0, id, mediaprovider.IDTypeSong)
		if err != nil {
			return nil, err
		}
		return &QueuePayload{Mode: PlayModeBrowse, ActiveID: prefixedID, Tracks: tracks}, nil
	case "radio":
		track, err := server.RadioTrack(ctx, id)
		if err != nil {
			return nil, err
		}
		return &QueuePayload{Mode: PlayModeBrowse, ActiveID: prefixedID, Tracks: []*mediaprovider.Track{track}}, nil
	default:
		return nil, fmt.Errorf("unrecognized id prefix %q", kind)
	}
}

// Apply installs a fetched queue and starts its first (or saved) track.
func (pe *PlaybackEngine) Apply(payload *QueuePayload) error {
	if len(payload.Tracks) == 0 {
		return errors.New("no playable tracks")
	}
	pe.mode = payload.Mode
	pe.playlistID, pe.albumID, pe.artistID, pe.browseID = "", "", "", ""
	switch payload.Mode {
	case PlayModePlaylist:
		pe.playlistID = payload.ActiveID
	case PlayModeAlbum:
		pe.albumID = payload.ActiveID
	case PlayModeArtist:
		pe.artistID = payload.ActiveID
	case PlayModeBrowse:
		pe.browseID = payload.ActiveID
	}
	pe.comingUp = payload.Tracks
	idx := payload.StartIndex
	if idx < 0 || idx >= len(payload.Tracks) {
		idx = 0
	}
	pe.comingUpIdx = idx
	pe.invokeNoArgCallbacks(pe.onQueueChange)
	return pe.playCurrent()
}

// StartRandom switches to Random mode and plays one fresh random track.
func (pe *PlaybackEngine) StartRandom(ctx context.Context) error {
	pe.mode = PlayModeRandom
	pe.playlistID, pe.albumID, pe.artistID, pe.browseID = "", "", "", ""
	return pe.playRandomTrack(ctx)
}

func (pe *PlaybackEngine) playRandomTrack(ctx context.Context) error {
	server := pe.server()
	if server == nil {
		return errors.New("not connected to a server")
	}
	tracks, err := server.Tracks(ctx, 1, "", mediaprovider.IDTypeRandom)
	if err != nil {
		return err
	}
	if len(tracks) == 0 {
		return errors.New("server returned no random track")
	}
	pe.comingUp = tracks
	pe.comingUpIdx = 0
	pe.invokeNoArgCallbacks(pe.onQueueChange)
	return pe.playCurrent()
}

// SkipNext advances within the coming-up queue. Past the end of a queue
// mode, and always after a Browse song, playback falls back to Random.
func (pe *PlaybackEngine) SkipNext(ctx context.Context) error {
	switch pe.mode {
	case PlayModeRandom:
		return pe.playRandomTrack(ctx)
	case PlayModeBrowse:
		return pe.StartRandom(ctx)
	default:
		if pe.comingUpIdx+1 < len(pe.comingUp) {
			pe.comingUpIdx++
			return pe.playCurrent()
		}
		return pe.StartRandom(ctx)
	}
}

// SkipPrevious restarts the current track when more than the threshold has
// played, otherwise steps back one queue position. Radio never skips back.
func (pe *PlaybackEngine) SkipPrevious() error {
	cur := pe.NowPlaying()
	if cur == nil || cur.Radio {
		return nil
	}
	if pe.player.GetStatus().TimePos > seekBackThresholdSeconds {
		return pe.player.SeekSeconds(0)
	}
	if pe.comingUpIdx > 0 {
		pe.comingUpIdx--
		return pe.playCurrent()
	}
	return nil
}

// NowPlaying returns the current track, or nil if the queue is empty.
func (pe *PlaybackEngine) NowPlaying() *mediaprovider.Track {
	if pe.comingUpIdx < 0 || pe.comingUpIdx >= len(pe.comingUp) {
		return nil
	}
	return pe.comingUp[pe.comingUpIdx]
}

func (pe *PlaybackEngine) Mode() PlayMode {
	return pe.mode
}

func (pe *PlaybackEngine) ComingUp() []*mediaprovider.Track {
	queue := make([]*mediaprovider.Track, len(pe.comingUp))
	for i, tr := range pe.comingUp {
		queue[i] = tr.Copy()
	}
	return queue
}

func (pe *PlaybackEngine) ComingUpIndex() int {
	return pe.comingUpIdx
}

func (pe *PlaybackEngine) Pause() error {
	pe.pausedByUser = true
	return pe.player.Pause()
}

func (pe *PlaybackEngine) Continue() error {
	pe.pausedByUser = false
	return pe.player.Continue()
}

func (pe *PlaybackEngine) IsPausedByUser() bool {
	return pe.pausedByUser
}

// StopAndClearQueue stops playback and forgets the coming-up queue.
func (pe *PlaybackEngine) StopAndClearQueue() {
	pe.player.Stop()
	pe.comingUp = nil
	pe.comingUpIdx = -1
	pe.invokeNoArgCallbacks(pe.onQueueChange)
}

func (pe *PlaybackEngine) playCurrent() error {
	track := pe.comingUp[pe.comingUpIdx]
	pe.playTimeStopwatch.Reset()
	if err := pe.player.PlayFile(track.StreamURL); err != nil {
		return err
	}
	pe.pausedByUser = false
	pe.persistPlayState()
	if !pe.callbacksDisabled {
		for _, cb := range pe.onSongChange {
			cb(track)
		}
	}
	return nil
}

// handleTrackEnded feeds natural completion back into SkipNext. A track
// that produced no play position did not actually play; that is a playback
// error, not a completion.
func (pe *PlaybackEngine) handleTrackEnded(finalPos float64) {
	played := pe.playTimeStopwatch.Elapsed()
	pe.playTimeStopwatch.Stop()
	if finalPos <= 0 {
		err := fmt.Errorf("track %q ended without playing", trackTitle(pe.NowPlaying()))
		log.Println(err)
		if !pe.callbacksDisabled {
			for _, cb := range pe.onPlaybackError {
				cb(err)
			}
		}
		return
	}
	log.Printf("track %q finished after %s", trackTitle(pe.NowPlaying()), played.Round(time.Second))
	if err := pe.SkipNext(pe.ctx); err != nil {
		log.Printf("error advancing to next track: %v", err)
	}
}

// persistPlayState writes the resume state on every successful track
// start. Smart playlists always resume at the top: their content is
// regenerated server-side per request.
func (pe *PlaybackEngine) persistPlayState() {
	idx := pe.comingUpIdx
	if pe.mode == PlayModePlaylist && strings.HasPrefix(pe.playlistID, smartPlaylistPrefix) {
		idx = 0
	}
	pe.store.SetString(storeGroupPlayState, storeKeyServerID, pe.sm.ServerID.String())
	pe.store.SetInt(storeGroupPlayState, storeKeyMode, int(pe.mode))
	pe.store.SetString(storeGroupPlayState, storeKeyPlaylistID, pe.playlistID)
	pe.store.SetString(storeGroupPlayState, storeKeyAlbumID, pe.albumID)
	pe.store.SetString(storeGroupPlayState, storeKeyArtistID, pe.artistID)
	pe.store.SetString(storeGroupPlayState, storeKeyBrowseID, pe.browseID)
	pe.store.SetInt(storeGroupPlayState, storeKeyQueueIndex, idx)
}

// Resume restores the persisted play state, if any, and restarts playback
// from the saved queue position. State saved against a different server is
// ignored.
func (pe *PlaybackEngine) Resume(ctx context.Context) error {
	modeInt, ok := pe.store.GetInt(storeGroupPlayState, storeKeyMode)
	if !ok {
		return nil
	}
	if savedServer, ok := pe.store.GetString(storeGroupPlayState, storeKeyServerID); ok &&
		savedServer != pe.sm.ServerID.String() {
		log.Printf("ignoring play state saved against server %s", savedServer)
		return nil
	}
	idx, _ := pe.store.GetInt(storeGroupPlayState, storeKeyQueueIndex)
	switch PlayMode(modeInt) {
	case PlayModePlaylist:
		id, _ := pe.store.GetString(storeGroupPlayState, storeKeyPlaylistID)
		return pe.resumeQueueMode(ctx, "playlist_"+id, idx)
	case PlayModeAlbum:
		id, _ := pe.store.GetString(storeGroupPlayState, storeKeyAlbumID)
		return pe.resumeQueueMode(ctx, "album_"+id, idx)
	case PlayModeArtist:
		id, _ := pe.store.GetString(storeGroupPlayState, storeKeyArtistID)
		return pe.resumeQueueMode(ctx, "artist_"+id, idx)
	case PlayModeBrowse:
		id, _ := pe.store.GetString(storeGroupPlayState, storeKeyBrowseID)
		return pe.PlayID(ctx, id)
	default:
		return pe.StartRandom(ctx)
	}
}

func (pe *PlaybackEngine) resumeQueueMode(ctx context.Context, prefixedID string, idx int) error {
	payload, err := pe.FetchQueue(ctx, prefixedID)
	if err != nil {
		return err
	}
	payload.StartIndex = idx
	return pe.Apply(payload)
}

func (pe *PlaybackEngine) OnSongChange(cb func(*mediaprovider.Track)) {
	pe.onSongChange = append(pe.onSongChange, cb)
}

func (pe *PlaybackEngine) OnPlaying(cb func()) {
	pe.onPlaying = append(pe.onPlaying, cb)
}

func (pe *PlaybackEngine) OnPaused(cb func()) {
	pe.onPaused = append(pe.onPaused, cb)
}

func (pe *PlaybackEngine) OnStopped(cb func()) {
	pe.onStopped = append(pe.onStopped, cb)
}

func (pe *PlaybackEngine) OnQueueChange(cb func()) {
	pe.onQueueChange = append(pe.onQueueChange, cb)
}

func (pe *PlaybackEngine) OnPlaybackError(cb func(error)) {
	pe.onPlaybackError = append(pe.onPlaybackError, cb)
}

func (pe *PlaybackEngine) invokeNoArgCallbacks(cbs []func()) {
	if pe.callbacksDisabled {
		return
	}
	for _, cb := range cbs {
		cb()
	}
}

func splitPrefixedID(id string) (kind, raw string, ok bool) {
	for _, prefix := range []string{"playlist_", "album_", "artist_", "song_", "radio_"} {
		if strings.HasPrefix(id, prefix) {
			return strings.TrimSuffix(prefix, "_"), strings.TrimPrefix(id, prefix), true
		}
	}
	return "", "", false
}

func trackTitle(t *mediaprovider.Track) string {
	if t == nil {
		return ""
	}
	return t.Title
}
