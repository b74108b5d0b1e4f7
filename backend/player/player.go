package player

// The playback state (Stopped, Paused, or Playing).
type State int

const (
	Stopped State = iota
	Paused
	Playing
)

// The current status of the player.
type Status struct {
	State    State
	TimePos  float64
	Duration float64
}

// BasePlayer is the narrow playback sink the session controller drives.
// Implementations report position through GetStatus and signal state
// transitions through the event callbacks.
type BasePlayer interface {
	PlayFile(url string) error
	Continue() error
	Pause() error
	Stop() error

	SeekSeconds(secs float64) error

	GetStatus() Status

	Destroy()

	// Event API
	OnPlaying(func())
	OnPaused(func())
	OnStopped(func())
	// Invoked when the current track finishes on its own. The argument is
	// the final playback position in seconds; zero means the track never
	// actually played. The callback mutates engine state, so implementations
	// must fire it from the goroutine driving the engine: a player with its
	// own event loop must hand the event off (e.g. via Session.Post) rather
	// than invoke the callback directly.
	OnTrackEnded(func(finalPos float64))
}

type BasePlayerCallbackImpl struct {
	onPlaying    func()
	onPaused     func()
	onStopped    func()
	onTrackEnded func(float64)
}

func (p *BasePlayerCallbackImpl) OnPlaying(cb func()) {
	p.onPlaying = cb
}

func (p *BasePlayerCallbackImpl) OnPaused(cb func()) {
	p.onPaused = cb
}

func (p *BasePlayerCallbackImpl) OnStopped(cb func()) {
	p.onStopped = cb
}

func (p *BasePlayerCallbackImpl) OnTrackEnded(cb func(float64)) {
	p.onTrackEnded = cb
}

func (p *BasePlayerCallbackImpl) InvokeOnPlaying() {
	if p.onPlaying != nil {
		p.onPlaying()
	}
}

func (p *BasePlayerCallbackImpl) InvokeOnPaused() {
	if p.onPaused != nil {
		p.onPaused()
	}
}

func (p *BasePlayerCallbackImpl) InvokeOnStopped() {
	if p.onStopped != nil {
		p.onStopped()
	}
}

func (p *BasePlayerCallbackImpl) InvokeOnTrackEnded(finalPos float64) {
	if p.onTrackEnded != nil {
		p.onTrackEnded(finalPos)
	}
}
