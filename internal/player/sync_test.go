package player

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/unisonmedia/unison-backend/internal/models"
)

func TestCompensatedPositionAddsTransitTime(t *testing.T) {
	now := time.UnixMilli(1_000_000)
	state := models.PlaybackState{
		IsPlaying: true,
		Position:  10,
		SentAt:    now.Add(-500 * time.Millisecond).UnixMilli(),
	}

	assert.InDelta(t, 10.5, CompensatedPosition(state, now), 0.001)
}

func TestCompensatedPositionPausedIsExact(t *testing.T) {
	now := time.UnixMilli(1_000_000)
	state := models.PlaybackState{
		IsPlaying: false,
		Position:  10,
		SentAt:    now.Add(-5 * time.Second).UnixMilli(),
	}

	assert.Equal(t, 10.0, CompensatedPosition(state, now))
}

func TestCompensatedPositionClampsClockSkew(t *testing.T) {
	now := time.UnixMilli(1_000_000)
	state := models.PlaybackState{
		IsPlaying: true,
		Position:  10,
		// Sender's stamp is slightly ahead of our clock.
		SentAt: now.Add(200 * time.Millisecond).UnixMilli(),
	}

	assert.Equal(t, 10.0, CompensatedPosition(state, now))
}

// Re-deriving the target later must yield a larger position, never a
// decreasing or negative one: redundant offers are safe to apply in any
// order.
func TestCompensatedPositionIsMonotonic(t *testing.T) {
	base := time.UnixMilli(1_000_000)
	state := models.PlaybackState{IsPlaying: true, Position: 30, SentAt: base.UnixMilli()}

	first := CompensatedPosition(state, base.Add(200*time.Millisecond))
	second := CompensatedPosition(state, base.Add(900*time.Millisecond))

	assert.Greater(t, second, first)
	assert.InDelta(t, 30.2, first, 0.001)
	assert.InDelta(t, 30.9, second, 0.001)
}
