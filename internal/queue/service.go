// Package queue implements the collaborative song queue: add/remove/vote
// against the authoritative store, the deterministic ranking rule, and the
// update signal that drives fan-out to every process serving the room.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/unisonmedia/unison-backend/internal/models"
)

// Vote directions as they appear on the wire.
const (
	VoteUp   = "upvote"
	VoteDown = "downvote"
)

var ErrInvalidVote = errors.New("vote state must be upvote or downvote")

// Store is the persistence collaborator. Implementations must make IncrVotes
// a storage-side atomic so concurrent opposite votes both land.
type Store interface {
	Entries(ctx context.Context, roomID string) ([]models.Song, error)
	// Insert adds the song unless its video id is already present.
	// It reports whether a new entry was written.
	Insert(ctx context.Context, roomID string, song models.Song) (bool, error)
	// Delete removes the entry and reports whether it existed.
	Delete(ctx context.Context, roomID, videoID string) (bool, error)
	// IncrVotes adjusts the entry's vote count by delta. It reports false
	// without error when the entry is gone (racing removal).
	IncrVotes(ctx context.Context, roomID, videoID string, delta int64) (bool, error)
}

// Notifier carries the room-keyed update signal between processes.
type Notifier interface {
	PublishQueueUpdate(ctx context.Context, roomID string) error
	// SubscribeQueueUpdates registers the handler for update signals.
	// Subscribing more than once must not duplicate delivery.
	SubscribeQueueUpdates(ctx context.Context, handler func(roomID string)) error
}

// Service coordinates queue mutations. A publish only follows a confirmed
// successful write; logical no-ops (duplicate add, remove of an absent
// entry) succeed without publishing since nothing changed.
type Service struct {
	store    Store
	notifier Notifier

	now func() time.Time
}

func NewService(store Store, notifier Notifier) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		now:      time.Now,
	}
}

// Add inserts the song with zero votes and the current add timestamp.
// Adding a video that is already queued succeeds and changes nothing.
func (s *Service) Add(ctx context.Context, roomID string, song models.Song) error {
	song.Votes = 0
	song.AddedAt = s.now().UnixMilli()

	inserted, err := s.store.Insert(ctx, roomID, song)
	if err != nil {
		return fmt.Errorf("insert queue entry: %w", err)
	}
	if !inserted {
		return nil
	}

	return s.publish(ctx, roomID)
}

// Remove deletes the entry. Removing an entry that is already gone succeeds
// and changes nothing.
func (s *Service) Remove(ctx context.Context, roomID, videoID string) error {
	deleted, err := s.store.Delete(ctx, roomID, videoID)
	if err != nil {
		return fmt.Errorf("delete queue entry: %w", err)
	}
	if !deleted {
		return nil
	}

	return s.publish(ctx, roomID)
}

// Vote moves the entry's count by exactly one in the given direction. The
// increment happens at the storage layer, never as a client-side
// read-then-write. Voting on a track that was removed in the meantime is a
// no-op.
func (s *Service) Vote(ctx context.Context, roomID, videoID, state string) error {
	var delta int64
	switch state {
	case VoteUp:
		delta = 1
	case VoteDown:
		delta = -1
	default:
		return ErrInvalidVote
	}

	applied, err := s.store.IncrVotes(ctx, roomID, videoID, delta)
	if err != nil {
		return fmt.Errorf("increment votes: %w", err)
	}
	if !applied {
		return nil
	}

	return s.publish(ctx, roomID)
}

// Ranked reads the authoritative entries and returns the recomputed ranked
// view.
func (s *Service) Ranked(ctx context.Context, roomID string) ([]RankedSong, error) {
	entries, err := s.store.Entries(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("read queue entries: %w", err)
	}
	return Rank(entries), nil
}

func (s *Service) publish(ctx context.Context, roomID string) error {
	if err := s.notifier.PublishQueueUpdate(ctx, roomID); err != nil {
		// The write is durable; the caller may retry the publish. Fan-out
		// re-reads authoritative state, so a duplicate publish is harmless.
		return fmt.Errorf("publish queue update: %w", err)
	}
	return nil
}
