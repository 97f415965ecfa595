// Package player is the peer-side half of the playback sync protocol. The
// server relays transport messages verbatim; all the catch-up math lives
// here: latency and buffering compensation, the join handshake with bounded
// retry, the autoplay gate, and track advancement at end of playback.
//
// The Player models the local media element. The embedding adapter drives it
// with the element's lifecycle callbacks (OnTrackReady, OnEnded,
// OnLoadFailed) and observes State/Current/Position to control the actual
// media; outbound protocol messages leave through the emit callback.
package player

import (
	"sync"
	"time"

	"github.com/unisonmedia/unison-backend/internal/models"
	"github.com/unisonmedia/unison-backend/internal/queue"
)

// State is the local transport state machine.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StatePlaying
	StatePaused
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

const (
	defaultSyncRetryInterval = 3 * time.Second
	defaultSyncMaxAttempts   = 3
	defaultAdvanceDelay      = 2 * time.Second
)

type Player struct {
	mu sync.Mutex

	senderID string
	emit     func(event string, data any)
	now      func() time.Time

	state    State
	queue    []queue.RankedSong
	current  string
	position float64
	playing  bool

	// interacted flips on the first local control action; until then the
	// host environment refuses programmatic playback, so "playing" targets
	// wait in pendingGate for a user tap.
	interacted  bool
	pendingGate *models.PlaybackState

	// pendingReady holds a sync target for a track still buffering; it is
	// re-derived (with BufferReadySlack) when the track reaches Ready.
	pendingReady *models.PlaybackState

	// pendingTrack is an announced track the local queue view does not
	// contain yet; the switch happens when the view catches up.
	pendingTrack string

	synced       bool
	syncAttempts int
	syncInterval time.Duration
	syncMax      int
	syncTimer    *time.Timer

	advanceDelay time.Duration
	advanceTimer *time.Timer
}

type Option func(*Player)

// WithClock substitutes the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Player) { p.now = now }
}

// WithSyncRetry tunes the join-handshake retry loop.
func WithSyncRetry(interval time.Duration, attempts int) Option {
	return func(p *Player) {
		p.syncInterval = interval
		p.syncMax = attempts
	}
}

// WithAdvanceDelay tunes how long a failed load waits before auto-advancing.
func WithAdvanceDelay(d time.Duration) Option {
	return func(p *Player) { p.advanceDelay = d }
}

func New(senderID string, emit func(event string, data any), opts ...Option) *Player {
	p := &Player{
		senderID: senderID,
		emit:     emit,
		now:      time.Now,

		state:        StateIdle,
		syncInterval: defaultSyncRetryInterval,
		syncMax:      defaultSyncMaxAttempts,
		advanceDelay: defaultAdvanceDelay,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Player) Current() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *Player) Position() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position
}

// PendingResume reports whether a "playing" target is being held behind the
// autoplay gate, i.e. the UI should show its one-tap resume affordance.
func (p *Player) PendingResume() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pendingGate != nil
}

// SetQueue replaces the local ranked queue view. A track change that arrived
// ahead of its queue entry is applied now that the view contains it.
func (p *Player) SetQueue(view []queue.RankedSong) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.queue = view

	if p.pendingTrack != "" && p.inQueue(p.pendingTrack) {
		track := p.pendingTrack
		p.pendingTrack = ""
		p.startLoading(track, p.pendingReady)
	}
}

// RequestSync starts the join handshake: broadcast a request, and if no
// offer arrives within the retry interval, ask again up to the attempt
// limit. The first applied offer stops the loop.
func (p *Player) RequestSync() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.synced = false
	p.syncAttempts = 1
	p.emit(models.EventRequestSync, struct{}{})
	p.scheduleSyncRetry()
}

func (p *Player) scheduleSyncRetry() {
	if p.syncTimer != nil {
		p.syncTimer.Stop()
	}
	p.syncTimer = time.AfterFunc(p.syncInterval, func() {
		p.mu.Lock()
		defer p.mu.Unlock()

		if p.synced || p.syncAttempts >= p.syncMax {
			return
		}
		p.syncAttempts++
		p.emit(models.EventRequestSync, struct{}{})
		p.scheduleSyncRetry()
	})
}

// Apply consumes a remote transport state: a relayed control action or a
// sync offer. Both carry the same shape and the same math applies; redundant
// offers are safe because the target is re-derived every time, never
// accumulated. The player's own messages are filtered out by sender id.
func (p *Player) Apply(state models.PlaybackState) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if state.SenderID == p.senderID {
		return
	}

	p.synced = true

	if state.VideoID != "" && state.VideoID != p.current {
		if p.inQueue(state.VideoID) {
			p.startLoading(state.VideoID, &state)
		} else {
			// Unknown track: hold everything until the queue view updates.
			p.pendingTrack = state.VideoID
			p.pendingReady = &state
		}
		return
	}

	if p.current == "" {
		return
	}

	if p.state == StateLoading {
		p.pendingReady = &state
		return
	}

	if state.IsPlaying && !p.interacted {
		p.pendingGate = &state
		return
	}

	p.position = CompensatedPosition(state, p.now())
	p.playing = state.IsPlaying
	if p.playing {
		p.state = StatePlaying
	} else {
		p.state = StatePaused
	}
}

// HandleTrackChange switches to the announced track. Duplicate
// announcements from slower peers converge on the same target and fall out
// as no-ops.
func (p *Player) HandleTrackChange(change models.ChangeSong) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if change.SenderID == p.senderID || change.VideoID == p.current {
		return
	}

	target := &models.PlaybackState{
		IsPlaying: true,
		Position:  0,
		VideoID:   change.VideoID,
		SenderID:  change.SenderID,
		SentAt:    change.SentAt,
	}

	if p.inQueue(change.VideoID) {
		p.startLoading(change.VideoID, target)
	} else {
		p.pendingTrack = change.VideoID
		p.pendingReady = target
	}
}

// OnTrackReady is called by the adapter when the media element finishes
// buffering. A held sync target is applied here, with the buffering slack on
// top of latency compensation.
func (p *Player) OnTrackReady() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateLoading {
		return
	}
	p.state = StateReady

	if p.pendingReady == nil {
		return
	}

	target := *p.pendingReady
	p.pendingReady = nil

	if target.IsPlaying && !p.interacted {
		p.pendingGate = &target
		return
	}

	p.position = CompensatedPosition(target, p.now())
	p.playing = target.IsPlaying
	if p.playing {
		p.position += BufferReadySlack
		p.state = StatePlaying
	} else {
		p.state = StatePaused
	}
}

// MarkInteracted records the first user gesture. A held "playing" target is
// applied now, re-deriving the position from the offer's original SentAt so
// the deferred application still lands where the sender actually is.
func (p *Player) MarkInteracted() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.interacted = true

	if p.pendingGate == nil {
		return
	}

	target := *p.pendingGate
	p.pendingGate = nil

	if p.state == StateLoading {
		p.pendingReady = &target
		return
	}

	p.position = CompensatedPosition(target, p.now())
	p.playing = true
	p.state = StatePlaying
}

// OnEnded advances to the next ranked entry and announces the change.
// Whichever peer ends first makes the announcement; the rest arrive at the
// same track either way.
func (p *Player) OnEnded() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == "" {
		return
	}
	p.state = StateEnded

	next := p.nextTrack()
	if next == "" {
		p.current = ""
		p.playing = false
		p.position = 0
		p.state = StateIdle
		return
	}

	sentAt := p.now().UnixMilli()
	p.startLoading(next, &models.PlaybackState{
		IsPlaying: true,
		VideoID:   next,
		SenderID:  p.senderID,
		SentAt:    sentAt,
	})

	p.emit(models.EventChangeSong, models.ChangeSong{
		VideoID:  next,
		SenderID: p.senderID,
		SentAt:   sentAt,
	})
}

// OnLoadFailed absorbs a track that cannot load (removed or blocked): after
// a short delay it follows the same path as a natural end of track. Never
// surfaced to other participants as an error.
func (p *Player) OnLoadFailed() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.advanceTimer != nil {
		p.advanceTimer.Stop()
	}
	p.advanceTimer = time.AfterFunc(p.advanceDelay, p.OnEnded)
}

// Play is a local control action. It counts as an interaction for the
// autoplay gate and is announced to the room.
func (p *Player) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.interacted = true
	if p.current == "" || p.state == StateLoading {
		return
	}

	p.playing = true
	p.state = StatePlaying
	p.announce()
}

func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.interacted = true
	if p.current == "" || p.state == StateLoading {
		return
	}

	p.playing = false
	p.state = StatePaused
	p.announce()
}

func (p *Player) Seek(position float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.interacted = true
	if p.current == "" || p.state == StateLoading {
		return
	}

	p.position = position
	p.announce()
}

// Skip ends the current track deliberately; it reuses the end-of-track
// advancement path.
func (p *Player) Skip() {
	p.mu.Lock()
	p.interacted = true
	p.mu.Unlock()
	p.OnEnded()
}

// Snapshot is this peer's current transport state, stamped for the wire.
// It answers provide_sync requests.
func (p *Player) Snapshot() models.PlaybackState {
	p.mu.Lock()
	defer p.mu.Unlock()

	return models.PlaybackState{
		IsPlaying: p.playing,
		Position:  p.position,
		VideoID:   p.current,
		SenderID:  p.senderID,
		SentAt:    p.now().UnixMilli(),
	}
}

// announce broadcasts the local transport state. Callers hold the lock.
func (p *Player) announce() {
	p.emit(models.EventPlaybackControls, models.PlaybackState{
		IsPlaying: p.playing,
		Position:  p.position,
		VideoID:   p.current,
		SenderID:  p.senderID,
		SentAt:    p.now().UnixMilli(),
	})
}

// startLoading switches the current track. Callers hold the lock.
func (p *Player) startLoading(videoID string, target *models.PlaybackState) {
	if p.advanceTimer != nil {
		p.advanceTimer.Stop()
		p.advanceTimer = nil
	}

	p.current = videoID
	p.state = StateLoading
	p.pendingReady = target
}

// nextTrack picks the entry after the current one in ranked order, or the
// top of the queue when the current track is no longer part of the view.
// Callers hold the lock.
func (p *Player) nextTrack() string {
	for i := range p.queue {
		if p.queue[i].VideoID == p.current {
			if i+1 < len(p.queue) {
				return p.queue[i+1].VideoID
			}
			return ""
		}
	}

	if len(p.queue) > 0 {
		return p.queue[0].VideoID
	}
	return ""
}

func (p *Player) inQueue(videoID string) bool {
	for i := range p.queue {
		if p.queue[i].VideoID == videoID {
			return true
		}
	}
	return false
}
