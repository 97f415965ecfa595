package ws

// Hub fans frames out to the sessions connected to this process, keyed by
// room. All map mutation happens on the Run loop, so access needs no lock;
// components talk to the hub exclusively through its channels.
type Hub struct {
	rooms    map[string]map[*Client]bool
	sessions map[string]*Client

	Register   chan *Client
	Unregister chan *Client
	Broadcast  chan RoomMessage
	Direct     chan DirectMessage
}

// RoomMessage is a frame for every session in a room, minus an optional
// excluded sender.
type RoomMessage struct {
	RoomID  string
	Data    []byte
	Exclude *Client
}

// DirectMessage is a frame for one specific session.
type DirectMessage struct {
	SessionID string
	Data      []byte
}

func NewHub() *Hub {
	return &Hub{
		rooms:    make(map[string]map[*Client]bool),
		sessions: make(map[string]*Client),

		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Broadcast:  make(chan RoomMessage, 64),
		Direct:     make(chan DirectMessage, 64),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			if h.rooms[client.RoomID] == nil {
				h.rooms[client.RoomID] = make(map[*Client]bool)
			}
			h.rooms[client.RoomID][client] = true
			h.sessions[client.SessionID] = client

		case client := <-h.Unregister:
			if clients, ok := h.rooms[client.RoomID]; ok {
				delete(clients, client)
				if len(clients) == 0 {
					delete(h.rooms, client.RoomID)
				}
			}
			delete(h.sessions, client.SessionID)

		case msg := <-h.Broadcast:
			for client := range h.rooms[msg.RoomID] {
				if client == msg.Exclude {
					continue
				}
				if !client.enqueue(msg.Data) {
					// Closing re-enters the hub via Unregister, so do it off
					// the loop.
					go client.Close()
				}
			}

		case msg := <-h.Direct:
			if client, ok := h.sessions[msg.SessionID]; ok {
				if !client.enqueue(msg.Data) {
					go client.Close()
				}
			}
		}
	}
}
