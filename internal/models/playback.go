package models

// PlaybackState is the transport state one peer announces to the others.
// It is relayed verbatim and never persisted; receivers re-derive the actual
// seek target from Position and SentAt (see the player package).
type PlaybackState struct {
	IsPlaying bool    `json:"isPlaying"`
	Position  float64 `json:"position"` // seconds into the current track
	VideoID   string  `json:"videoId"`
	SenderID  string  `json:"senderId"`
	SentAt    int64   `json:"sentAt"` // epoch millis at send time
}

// ChangeSong announces that playback moved to another track, either because
// the current one ended or because someone skipped.
type ChangeSong struct {
	VideoID  string `json:"videoId"`
	SenderID string `json:"senderId"`
	SentAt   int64  `json:"sentAt"`
}

// ProvideSync asks a connected peer to answer a newcomer's sync request.
type ProvideSync struct {
	RequesterID string `json:"requesterId"`
}

// SyncOffer is a peer's answer to a sync request, routed back to the
// requester only.
type SyncOffer struct {
	RequesterID string `json:"requesterId"`
	PlaybackState
}

// ChatMessage is a room chat line, broadcast to everyone including the sender.
type ChatMessage struct {
	UserID     string `json:"userId"`
	UserName   string `json:"userName"`
	UserAvatar string `json:"userAvatar"`
	Content    string `json:"content"`
}
