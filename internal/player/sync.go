package player

import (
	"time"

	"github.com/unisonmedia/unison-backend/internal/models"
)

// BufferReadySlack offsets the typical media-load-to-ready latency. It is
// added once, at the moment the track becomes ready, so buffering delay is
// never double-counted with network latency.
const BufferReadySlack = 0.3 // seconds

// CompensatedPosition derives the seek target from a received transport
// state. While playing, the sender has moved on since SentAt, so transit
// time is added; a paused position is exact and left alone.
//
// Timestamps are compared against the local wall clock. This assumes every
// peer derives SentAt from the same server-relayed clock origin; no
// peer-to-peer clock synchronization is attempted. Negative elapsed values
// (minor skew) clamp to zero, so the target never moves backwards.
func CompensatedPosition(state models.PlaybackState, now time.Time) float64 {
	if !state.IsPlaying {
		return state.Position
	}

	elapsed := now.UnixMilli() - state.SentAt
	if elapsed < 0 {
		elapsed = 0
	}
	return state.Position + float64(elapsed)/1000.0
}
