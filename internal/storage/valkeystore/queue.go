// Package valkeystore persists room queues in Valkey and carries the
// cross-process update signal over its pub/sub. Layout per room: one hash of
// video id -> JSON metadata, and a sibling hash of video id -> vote count so
// votes go through HINCRBY, an atomic at the storage layer.
package valkeystore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/valkey-io/valkey-go"

	"github.com/unisonmedia/unison-backend/internal/logger"
	"github.com/unisonmedia/unison-backend/internal/models"
)

const updatedQueueChannel = "updated_queue"

type Store struct {
	client valkey.Client

	subscribed atomic.Bool
}

// New connects to Valkey and verifies the connection with a ping.
func New(addr string) (*Store, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("connect to valkey: %w", err)
	}

	if err := client.Do(context.Background(), client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping valkey: %w", err)
	}

	return &Store{client: client}, nil
}

func queueKey(roomID string) string {
	return "roomId:" + roomID
}

func votesKey(roomID string) string {
	return "votes:" + roomID
}

// Entries returns every queue entry of the room with its current vote count.
// Malformed hash values are skipped rather than failing the whole read.
func (s *Store) Entries(ctx context.Context, roomID string) ([]models.Song, error) {
	raw, err := s.client.Do(ctx, s.client.B().Hgetall().Key(queueKey(roomID)).Build()).AsStrMap()
	if err != nil {
		return nil, fmt.Errorf("read queue hash: %w", err)
	}

	votes, err := s.client.Do(ctx, s.client.B().Hgetall().Key(votesKey(roomID)).Build()).AsStrMap()
	if err != nil {
		return nil, fmt.Errorf("read votes hash: %w", err)
	}

	songs := make([]models.Song, 0, len(raw))
	for videoID, value := range raw {
		var song models.Song
		if err := json.Unmarshal([]byte(value), &song); err != nil {
			logger.Log.Warn("[Queue] skipping malformed entry", "room", roomID, "videoId", videoID)
			continue
		}
		if count, ok := votes[videoID]; ok {
			if n, err := strconv.ParseInt(count, 10, 64); err == nil {
				song.Votes = n
			}
		}
		songs = append(songs, song)
	}

	return songs, nil
}

func (s *Store) Insert(ctx context.Context, roomID string, song models.Song) (bool, error) {
	value, err := json.Marshal(song)
	if err != nil {
		return false, fmt.Errorf("encode queue entry: %w", err)
	}

	inserted, err := s.client.Do(ctx,
		s.client.B().Hsetnx().Key(queueKey(roomID)).Field(song.VideoID).Value(string(value)).Build(),
	).AsBool()
	if err != nil {
		return false, fmt.Errorf("write queue entry: %w", err)
	}
	if !inserted {
		return false, nil
	}

	// HSETNX so a vote that raced the add is never clobbered back to zero.
	if err := s.client.Do(ctx,
		s.client.B().Hsetnx().Key(votesKey(roomID)).Field(song.VideoID).Value("0").Build(),
	).Error(); err != nil {
		return false, fmt.Errorf("init vote count: %w", err)
	}

	return true, nil
}

func (s *Store) Delete(ctx context.Context, roomID, videoID string) (bool, error) {
	removed, err := s.client.Do(ctx,
		s.client.B().Hdel().Key(queueKey(roomID)).Field(videoID).Build(),
	).AsInt64()
	if err != nil {
		return false, fmt.Errorf("delete queue entry: %w", err)
	}

	if err := s.client.Do(ctx,
		s.client.B().Hdel().Key(votesKey(roomID)).Field(videoID).Build(),
	).Error(); err != nil {
		return false, fmt.Errorf("delete vote count: %w", err)
	}

	return removed > 0, nil
}

func (s *Store) IncrVotes(ctx context.Context, roomID, videoID string, delta int64) (bool, error) {
	exists, err := s.client.Do(ctx,
		s.client.B().Hexists().Key(queueKey(roomID)).Field(videoID).Build(),
	).AsBool()
	if err != nil {
		return false, fmt.Errorf("check queue entry: %w", err)
	}
	if !exists {
		return false, nil
	}

	if err := s.client.Do(ctx,
		s.client.B().Hincrby().Key(votesKey(roomID)).Field(videoID).Increment(delta).Build(),
	).Error(); err != nil {
		return false, fmt.Errorf("increment vote count: %w", err)
	}

	return true, nil
}

// PublishQueueUpdate signals every subscribed process that the room's queue
// changed. The payload is just the room id; receivers re-read authoritative
// state.
func (s *Store) PublishQueueUpdate(ctx context.Context, roomID string) error {
	if err := s.client.Do(ctx,
		s.client.B().Publish().Channel(updatedQueueChannel).Message(roomID).Build(),
	).Error(); err != nil {
		return fmt.Errorf("publish queue update: %w", err)
	}
	return nil
}

// SubscribeQueueUpdates starts the single subscription this process holds on
// the update channel. Further calls are no-ops so delivery is never
// duplicated.
func (s *Store) SubscribeQueueUpdates(ctx context.Context, handler func(roomID string)) error {
	if !s.subscribed.CompareAndSwap(false, true) {
		return nil
	}

	go func() {
		err := s.client.Receive(ctx, s.client.B().Subscribe().Channel(updatedQueueChannel).Build(),
			func(msg valkey.PubSubMessage) {
				handler(msg.Message)
			})
		if err != nil && ctx.Err() == nil {
			logger.Log.Error("[Queue] update subscription ended", "error", err)
		}
	}()

	return nil
}

func (s *Store) Close() {
	s.client.Close()
}
