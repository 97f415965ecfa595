package rooms

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/unisonmedia/unison-backend/internal/auth"
	"github.com/unisonmedia/unison-backend/internal/logger"
	"github.com/unisonmedia/unison-backend/internal/models"
	"github.com/unisonmedia/unison-backend/internal/queue"
	"github.com/unisonmedia/unison-backend/internal/registry"
	"github.com/unisonmedia/unison-backend/internal/ws"
)

// Room codes are short human-enterable strings, fixed at five characters.
const roomCodeLength = 5

// Store operations get a bounded wait; on expiry the acting client is told
// to retry.
const opTimeout = 5 * time.Second

const maxBufferSize = 4096

// Handler wires live sessions to the room registry, the shared queue, and
// the playback relay.
type Handler struct {
	Registry *registry.Registry
	Queue    *queue.Service
	Hub      *ws.Hub

	jwtSecret string
	upgrader  websocket.Upgrader
}

func NewHandler(reg *registry.Registry, q *queue.Service, hub *ws.Hub, jwtSecret, allowOrigin string) *Handler {
	return &Handler{
		Registry:  reg,
		Queue:     q,
		Hub:       hub,
		jwtSecret: jwtSecret,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  maxBufferSize,
			WriteBufferSize: maxBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origin == allowOrigin
			},
		},
	}
}

// ServeWS authenticates the identity token, upgrades the connection, and
// runs the session until disconnect.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.ParseIdentity(r.URL.Query().Get("token"), h.jwtSecret)
	if err != nil {
		logger.Log.Debug("[Room] rejected connection", "error", err)
		http.Error(w, "Invalid identity token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Debug("[Room] upgrade failed", "error", err)
		return
	}

	client := ws.NewClient(h.Hub, conn, identity, h.dispatch, h.disconnect)
	client.Start()

	logger.Log.Info("[Room] connected", "session", client.SessionID, "user", identity.UserID)
}

// dispatch routes one inbound event. The event set is closed: anything not
// matched here is dropped with a log line, never an error to the client.
// Every event except join_room requires a joined session; early traffic is
// ignored silently.
func (h *Handler) dispatch(c *ws.Client, env ws.Envelope) {
	if env.Event != models.EventJoinRoom && c.RoomID == "" {
		return
	}

	switch env.Event {
	case models.EventJoinRoom:
		h.joinRoom(c, env.Data)
	case models.EventQueueAdd:
		h.queueAdd(c, env.Data)
	case models.EventQueueRemove:
		h.queueRemove(c, env.Data)
	case models.EventQueueVote:
		h.queueVote(c, env.Data)
	case models.EventPlaybackControls:
		h.playbackControls(c, env.Data)
	case models.EventChangeSong:
		h.changeSong(c, env.Data)
	case models.EventRequestSync:
		h.requestSync(c)
	case models.EventSyncOffer:
		h.syncOffer(c, env.Data)
	case models.EventSendMessage:
		h.sendMessage(c, env.Data)
	default:
		logger.Log.Debug("[Room] dropping unknown event", "event", env.Event, "session", c.SessionID)
	}
}

// disconnect runs exactly once per session, after the hub forgot the
// connection. Leaving is idempotent, so a duplicate signal finds nothing.
func (h *Handler) disconnect(c *ws.Client) {
	roomID, roster, ok := h.Registry.Leave(c.SessionID)
	if !ok {
		return
	}

	h.broadcast(roomID, models.EventRoomParticipants, roster, nil)
	logger.Log.Info("[Room] left", "session", c.SessionID, "user", c.Identity.UserID, "room", roomID)
}

func (h *Handler) joinRoom(c *ws.Client, data json.RawMessage) {
	var req struct {
		RoomID string `json:"roomId"`
	}
	if err := json.Unmarshal(data, &req); err != nil || req.RoomID == "" {
		logger.Log.Debug("[Room] invalid join payload", "session", c.SessionID)
		return
	}

	if c.RoomID != "" && c.RoomID != req.RoomID {
		logger.Log.Debug("[Room] session already in a room", "session", c.SessionID, "room", c.RoomID)
		return
	}

	alreadyJoined := c.RoomID == req.RoomID
	c.RoomID = req.RoomID
	if !alreadyJoined {
		h.Hub.Register <- c
	}

	roster := h.Registry.Join(req.RoomID, c.Identity.Participant(c.SessionID))
	h.broadcast(req.RoomID, models.EventRoomParticipants, roster, nil)

	// Ack so the client can sequence its catch-up (it requests a playback
	// sync only once the join is confirmed).
	c.Emit(models.EventJoined, map[string]string{"roomId": req.RoomID})

	logger.Log.Info("[Room] joined", "session", c.SessionID, "user", c.Identity.UserID, "room", req.RoomID)
}

func (h *Handler) queueAdd(c *ws.Client, data json.RawMessage) {
	var req struct {
		VideoID     string `json:"videoId"`
		Title       string `json:"title"`
		ChannelName string `json:"channelName"`
		Thumbnail   string `json:"thumbnail"`
		Duration    string `json:"duration"`
	}
	if err := json.Unmarshal(data, &req); err != nil || req.VideoID == "" || req.Title == "" {
		c.Emit(models.EventError, map[string]string{"message": "Invalid queue entry"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	err := h.Queue.Add(ctx, c.RoomID, models.Song{
		VideoID:     req.VideoID,
		Title:       req.Title,
		ChannelName: req.ChannelName,
		Thumbnail:   req.Thumbnail,
		Duration:    req.Duration,
		RequestedBy: c.Identity.UserName,
		UserAvatar:  c.Identity.UserAvatar,
	})
	if err != nil {
		logger.Log.Error("[Queue] add failed", "room", c.RoomID, "error", err)
		c.Emit(models.EventError, map[string]string{"message": "Failed to add to queue, please retry"})
	}
}

func (h *Handler) queueRemove(c *ws.Client, data json.RawMessage) {
	var req struct {
		VideoID string `json:"videoId"`
	}
	if err := json.Unmarshal(data, &req); err != nil || req.VideoID == "" {
		c.Emit(models.EventError, map[string]string{"message": "Invalid remove request"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := h.Queue.Remove(ctx, c.RoomID, req.VideoID); err != nil {
		logger.Log.Error("[Queue] remove failed", "room", c.RoomID, "error", err)
		c.Emit(models.EventError, map[string]string{"message": "Failed to remove from queue, please retry"})
	}
}

func (h *Handler) queueVote(c *ws.Client, data json.RawMessage) {
	var req struct {
		VideoID   string `json:"videoId"`
		VoteState string `json:"voteState"`
	}
	if err := json.Unmarshal(data, &req); err != nil || req.VideoID == "" {
		c.Emit(models.EventError, map[string]string{"message": "Invalid vote request"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	err := h.Queue.Vote(ctx, c.RoomID, req.VideoID, req.VoteState)
	if errors.Is(err, queue.ErrInvalidVote) {
		c.Emit(models.EventError, map[string]string{"message": "Invalid vote request"})
		return
	}
	if err != nil {
		logger.Log.Error("[Queue] vote failed", "room", c.RoomID, "error", err)
		c.Emit(models.EventError, map[string]string{"message": "Failed to vote, please retry"})
	}
}

// playbackControls relays transport state verbatim to everyone else in the
// room. The server holds no playback state of its own; authority is wherever
// the last control action originated.
func (h *Handler) playbackControls(c *ws.Client, data json.RawMessage) {
	var state models.PlaybackState
	if err := json.Unmarshal(data, &state); err != nil {
		logger.Log.Debug("[Playback] invalid controls payload", "session", c.SessionID)
		return
	}

	h.relay(c, models.EventPlaybackControls, data)
}

func (h *Handler) changeSong(c *ws.Client, data json.RawMessage) {
	var change models.ChangeSong
	if err := json.Unmarshal(data, &change); err != nil || change.VideoID == "" {
		logger.Log.Debug("[Playback] invalid change payload", "session", c.SessionID)
		return
	}

	h.relay(c, models.EventChangeSong, data)
}

// requestSync asks the rest of the room for current playback state; whoever
// answers first wins, and redundant offers are safe for the requester to
// apply.
func (h *Handler) requestSync(c *ws.Client) {
	h.broadcast(c.RoomID, models.EventProvideSync, models.ProvideSync{
		RequesterID: c.SessionID,
	}, c)
}

// syncOffer routes a peer's answer back to the requesting session only.
func (h *Handler) syncOffer(c *ws.Client, data json.RawMessage) {
	var offer models.SyncOffer
	if err := json.Unmarshal(data, &offer); err != nil || offer.RequesterID == "" {
		logger.Log.Debug("[Playback] invalid sync offer", "session", c.SessionID)
		return
	}

	frame, err := ws.Marshal(models.EventReceiveSync, offer.PlaybackState)
	if err != nil {
		logger.Log.Error("[Playback] failed to encode sync offer", "error", err)
		return
	}
	h.Hub.Direct <- ws.DirectMessage{SessionID: offer.RequesterID, Data: frame}
}

func (h *Handler) sendMessage(c *ws.Client, data json.RawMessage) {
	var req struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(data, &req); err != nil || req.Content == "" {
		return
	}

	h.broadcast(c.RoomID, models.EventMessage, models.ChatMessage{
		UserID:     c.Identity.UserID,
		UserName:   c.Identity.UserName,
		UserAvatar: c.Identity.UserAvatar,
		Content:    req.Content,
	}, nil)
}

// StartQueueFanout subscribes this process to the shared update channel.
// On every signal the ranked view is rebuilt from authoritative state and
// pushed to local sessions, whether the mutation happened here or on
// another process.
func (h *Handler) StartQueueFanout(ctx context.Context, notifier queue.Notifier) error {
	return notifier.SubscribeQueueUpdates(ctx, func(roomID string) {
		opCtx, cancel := context.WithTimeout(ctx, opTimeout)
		defer cancel()

		ranked, err := h.Queue.Ranked(opCtx, roomID)
		if err != nil {
			logger.Log.Error("[Queue] fan-out read failed", "room", roomID, "error", err)
			return
		}

		h.broadcast(roomID, models.EventQueueUpdated, ranked, nil)
	})
}

func (h *Handler) broadcast(roomID, event string, data any, exclude *ws.Client) {
	frame, err := ws.Marshal(event, data)
	if err != nil {
		logger.Log.Error("[Room] failed to encode broadcast", "event", event, "error", err)
		return
	}
	h.Hub.Broadcast <- ws.RoomMessage{RoomID: roomID, Data: frame, Exclude: exclude}
}

// relay forwards the sender's payload bytes untouched to the rest of the
// room.
func (h *Handler) relay(c *ws.Client, event string, data json.RawMessage) {
	frame, err := ws.Marshal(event, data)
	if err != nil {
		logger.Log.Error("[Room] failed to encode relay", "event", event, "error", err)
		return
	}
	h.Hub.Broadcast <- ws.RoomMessage{RoomID: c.RoomID, Data: frame, Exclude: c}
}

// FetchQueue returns the current ranked queue so a joining client can paint
// it without waiting for the next mutation broadcast.
func (h *Handler) FetchQueue(w http.ResponseWriter, r *http.Request) {
	roomCode := r.URL.Query().Get("room_code")
	if len(roomCode) != roomCodeLength {
		http.Error(w, "Room code is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), opTimeout)
	defer cancel()

	ranked, err := h.Queue.Ranked(ctx, roomCode)
	if err != nil {
		logger.Log.Error("[Queue] fetch failed", "room", roomCode, "error", err)
		http.Error(w, "Failed to fetch queue", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"queue": ranked})
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
