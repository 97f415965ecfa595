// Package memory is the in-process twin of the valkey store. It backs unit
// tests and single-process runs; published update signals loop straight back
// to local subscribers.
package memory

import (
	"context"
	"sync"

	"github.com/unisonmedia/unison-backend/internal/models"
)

type QueueStore struct {
	mu    sync.RWMutex
	rooms map[string]map[string]models.Song

	subMu   sync.Mutex
	handler func(roomID string)
}

func NewQueueStore() *QueueStore {
	return &QueueStore{
		rooms: make(map[string]map[string]models.Song),
	}
}

func (s *QueueStore) Entries(_ context.Context, roomID string) ([]models.Song, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.rooms[roomID]
	songs := make([]models.Song, 0, len(entries))
	for _, song := range entries {
		songs = append(songs, song)
	}
	return songs, nil
}

func (s *QueueStore) Insert(_ context.Context, roomID string, song models.Song) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, ok := s.rooms[roomID]
	if !ok {
		entries = make(map[string]models.Song)
		s.rooms[roomID] = entries
	}

	if _, exists := entries[song.VideoID]; exists {
		return false, nil
	}

	entries[song.VideoID] = song
	return true, nil
}

func (s *QueueStore) Delete(_ context.Context, roomID, videoID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, ok := s.rooms[roomID]
	if !ok {
		return false, nil
	}

	if _, exists := entries[videoID]; !exists {
		return false, nil
	}

	delete(entries, videoID)
	if len(entries) == 0 {
		delete(s.rooms, roomID)
	}
	return true, nil
}

func (s *QueueStore) IncrVotes(_ context.Context, roomID, videoID string, delta int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, ok := s.rooms[roomID]
	if !ok {
		return false, nil
	}

	song, exists := entries[videoID]
	if !exists {
		return false, nil
	}

	song.Votes += delta
	entries[videoID] = song
	return true, nil
}

// PublishQueueUpdate invokes the local subscriber synchronously.
func (s *QueueStore) PublishQueueUpdate(_ context.Context, roomID string) error {
	s.subMu.Lock()
	handler := s.handler
	s.subMu.Unlock()

	if handler != nil {
		handler(roomID)
	}
	return nil
}

// SubscribeQueueUpdates registers the process-local handler. Only the first
// subscription takes effect, matching the shared channel's delivery contract.
func (s *QueueStore) SubscribeQueueUpdates(_ context.Context, handler func(roomID string)) error {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.handler == nil {
		s.handler = handler
	}
	return nil
}
