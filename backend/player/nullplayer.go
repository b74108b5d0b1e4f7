package player

import "sync"

// NullPlayer is a playback sink that produces no audio. It tracks state
// transitions and a settable position, which makes it the default sink for
// headless runs and the engine's test double.
type NullPlayer struct {
	BasePlayerCallbackImpl

	mu     sync.Mutex
	status Status
	curURL string
}

func NewNullPlayer() *NullPlayer {
	return &NullPlayer{}
}

func (p *NullPlayer) PlayFile(url string) error {
	p.mu.Lock()
	p.curURL = url
	p.status = Status{State: Playing}
	p.mu.Unlock()
	p.InvokeOnPlaying()
	return nil
}

func (p *NullPlayer) Continue() error {
	p.mu.Lock()
	if p.status.State != Paused {
		p.mu.Unlock()
		return nil
	}
	p.status.State = Playing
	p.mu.Unlock()
	p.InvokeOnPlaying()
	return nil
}

func (p *NullPlayer) Pause() error {
	p.mu.Lock()
	if p.status.State != Playing {
		p.mu.Unlock()
		return nil
	}
	p.status.State = Paused
	p.mu.Unlock()
	p.InvokeOnPaused()
	return nil
}

func (p *NullPlayer) Stop() error {
	p.mu.Lock()
	p.status = Status{State: Stopped}
	p.curURL = ""
	p.mu.Unlock()
	p.InvokeOnStopped()
	return nil
}

func (p *NullPlayer) SeekSeconds(secs float64) error {
	p.mu.Lock()
	p.status.TimePos = secs
	p.mu.Unlock()
	return nil
}

func (p *NullPlayer) GetStatus() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *NullPlayer) CurrentURL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.curURL
}

// SetTimePos fakes playback progress.
func (p *NullPlayer) SetTimePos(secs float64) {
	p.mu.Lock()
	p.status.TimePos = secs
	p.mu.Unlock()
}

// FinishTrack simulates the current track playing out to its end. The
// track-ended callback fires on the caller's goroutine, so callers must
// drive it from wherever they drive the engine.
func (p *NullPlayer) FinishTrack() {
	p.mu.Lock()
	pos := p.status.TimePos
	p.status = Status{State: Stopped}
	p.mu.Unlock()
	p.InvokeOnTrackEnded(pos)
}

func (p *NullPlayer) Destroy() {}
