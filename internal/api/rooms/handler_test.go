package rooms_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unisonmedia/unison-backend/internal/api/rooms"
	"github.com/unisonmedia/unison-backend/internal/models"
	"github.com/unisonmedia/unison-backend/internal/queue"
	"github.com/unisonmedia/unison-backend/internal/registry"
	"github.com/unisonmedia/unison-backend/internal/storage/memory"
	"github.com/unisonmedia/unison-backend/internal/ws"
)

const (
	testSecret = "test-secret"
	testRoom   = "ABCDE"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	store := memory.NewQueueStore()
	hub := ws.NewHub()
	go hub.Run()

	handler := rooms.NewHandler(registry.New(), queue.NewService(store, store), hub, testSecret, "")
	require.NoError(t, handler.StartQueueFanout(context.Background(), store))

	router := mux.NewRouter()
	rooms.RegisterRoutes(router, handler)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func mintToken(t *testing.T, userID, name string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  userID,
		"name": name,
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func dial(t *testing.T, server *httptest.Server, userID, name string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/rooms?token=" + mintToken(t, userID, name)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	frame, err := ws.Marshal(event, data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))
}

// waitFor reads frames until the wanted event arrives, skipping unrelated
// broadcasts (roster updates and the like).
func waitFor(t *testing.T, conn *websocket.Conn, event string) json.RawMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, frame, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %q", event)

		var env ws.Envelope
		require.NoError(t, json.Unmarshal(frame, &env))
		if env.Event == event {
			return env.Data
		}
	}
}

// expectSilence asserts that no frame arrives within the window. A read
// timeout is fatal to the connection, so this must be the last read on it.
func expectSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
}

func join(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	send(t, conn, models.EventJoinRoom, map[string]string{"roomId": testRoom})
	waitFor(t, conn, models.EventJoined)
}

func TestRejectsBadToken(t *testing.T) {
	server := newTestServer(t)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/rooms?token=garbage"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)

	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestJoinBroadcastsRoster(t *testing.T) {
	server := newTestServer(t)
	conn := dial(t, server, "u1", "Alice")

	send(t, conn, models.EventJoinRoom, map[string]string{"roomId": testRoom})

	data := waitFor(t, conn, models.EventRoomParticipants)
	var roster []models.Participant
	require.NoError(t, json.Unmarshal(data, &roster))
	require.Len(t, roster, 1)
	assert.Equal(t, "u1", roster[0].UserID)
	assert.Equal(t, "Alice", roster[0].UserName)
}

func TestEventsBeforeJoinAreIgnored(t *testing.T) {
	server := newTestServer(t)
	conn := dial(t, server, "u1", "Alice")

	send(t, conn, models.EventQueueAdd, map[string]string{"videoId": "v1", "title": "early"})

	// The session still works once it joins properly, and the early add
	// never reached the queue.
	join(t, conn)

	resp, err := http.Get(server.URL + "/api/v1/queue/fetch?room_code=" + testRoom)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Queue []queue.RankedSong `json:"queue"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Empty(t, body.Queue)
}

func TestUnknownEventsAreDroppedNotFatal(t *testing.T) {
	server := newTestServer(t)
	conn := dial(t, server, "u1", "Alice")
	join(t, conn)

	send(t, conn, "telepathy", map[string]string{"mind": "read"})

	send(t, conn, models.EventSendMessage, map[string]string{"content": "still alive"})
	data := waitFor(t, conn, models.EventMessage)
	var msg models.ChatMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "still alive", msg.Content)
}

func TestQueueAddVoteFlow(t *testing.T) {
	server := newTestServer(t)
	conn := dial(t, server, "u1", "Alice")
	join(t, conn)

	send(t, conn, models.EventQueueAdd, map[string]string{
		"videoId":     "v1",
		"title":       "First Song",
		"channelName": "Channel",
		"thumbnail":   "thumb.jpg",
		"duration":    "3:21",
	})

	data := waitFor(t, conn, models.EventQueueUpdated)
	var ranked []queue.RankedSong
	require.NoError(t, json.Unmarshal(data, &ranked))
	require.Len(t, ranked, 1)
	assert.Equal(t, "v1", ranked[0].VideoID)
	assert.Equal(t, int64(0), ranked[0].Votes)
	assert.Equal(t, "Alice", ranked[0].RequestedBy)

	send(t, conn, models.EventQueueVote, map[string]string{"videoId": "v1", "voteState": "upvote"})

	data = waitFor(t, conn, models.EventQueueUpdated)
	require.NoError(t, json.Unmarshal(data, &ranked))
	require.Len(t, ranked, 1)
	assert.Equal(t, int64(1), ranked[0].Votes)
}

func TestQueueFetchREST(t *testing.T) {
	server := newTestServer(t)
	conn := dial(t, server, "u1", "Alice")
	join(t, conn)

	send(t, conn, models.EventQueueAdd, map[string]string{"videoId": "v1", "title": "First Song"})
	waitFor(t, conn, models.EventQueueUpdated)

	resp, err := http.Get(server.URL + "/api/v1/queue/fetch?room_code=" + testRoom)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Queue []queue.RankedSong `json:"queue"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Queue, 1)
	assert.Equal(t, "v1", body.Queue[0].VideoID)
}

func TestQueueFetchRejectsBadRoomCode(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Get(server.URL + "/api/v1/queue/fetch?room_code=toolongcode")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPlaybackControlsRelayExcludesSender(t *testing.T) {
	server := newTestServer(t)
	alice := dial(t, server, "u1", "Alice")
	join(t, alice)
	bob := dial(t, server, "u2", "Bob")
	join(t, bob)

	// Drain Alice's roster update from Bob's join before going quiet.
	waitFor(t, alice, models.EventRoomParticipants)

	state := models.PlaybackState{
		IsPlaying: true,
		Position:  12.5,
		VideoID:   "v1",
		SenderID:  "u1",
		SentAt:    time.Now().UnixMilli(),
	}
	send(t, alice, models.EventPlaybackControls, state)

	data := waitFor(t, bob, models.EventPlaybackControls)
	var received models.PlaybackState
	require.NoError(t, json.Unmarshal(data, &received))
	assert.Equal(t, state, received)

	expectSilence(t, alice)
}

func TestSyncHandshakeRoutesOfferToRequester(t *testing.T) {
	server := newTestServer(t)
	alice := dial(t, server, "u1", "Alice")
	join(t, alice)
	bob := dial(t, server, "u2", "Bob")
	join(t, bob)
	waitFor(t, alice, models.EventRoomParticipants)

	send(t, bob, models.EventRequestSync, struct{}{})

	data := waitFor(t, alice, models.EventProvideSync)
	var request models.ProvideSync
	require.NoError(t, json.Unmarshal(data, &request))
	require.NotEmpty(t, request.RequesterID)

	offer := models.SyncOffer{
		RequesterID: request.RequesterID,
		PlaybackState: models.PlaybackState{
			IsPlaying: true,
			Position:  42,
			VideoID:   "v1",
			SenderID:  "u1",
			SentAt:    time.Now().UnixMilli(),
		},
	}
	send(t, alice, models.EventSyncOffer, offer)

	data = waitFor(t, bob, models.EventReceiveSync)
	var received models.PlaybackState
	require.NoError(t, json.Unmarshal(data, &received))
	assert.Equal(t, offer.PlaybackState, received)
}

func TestDisconnectBroadcastsUpdatedRoster(t *testing.T) {
	server := newTestServer(t)
	alice := dial(t, server, "u1", "Alice")
	join(t, alice)
	bob := dial(t, server, "u2", "Bob")
	join(t, bob)
	waitFor(t, alice, models.EventRoomParticipants)

	bob.Close()

	data := waitFor(t, alice, models.EventRoomParticipants)
	var roster []models.Participant
	require.NoError(t, json.Unmarshal(data, &roster))
	require.Len(t, roster, 1)
	assert.Equal(t, "u1", roster[0].UserID)
}

func TestChatReachesEveryoneIncludingSender(t *testing.T) {
	server := newTestServer(t)
	alice := dial(t, server, "u1", "Alice")
	join(t, alice)
	bob := dial(t, server, "u2", "Bob")
	join(t, bob)

	send(t, alice, models.EventSendMessage, map[string]string{"content": "hello room"})

	for _, conn := range []*websocket.Conn{alice, bob} {
		data := waitFor(t, conn, models.EventMessage)
		var msg models.ChatMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		assert.Equal(t, "hello room", msg.Content)
		assert.Equal(t, "u1", msg.UserID)
	}
}
