package models

// Participant is one live connection inside a room. Identity is UserID;
// SessionID changes when the same user reconnects (browser refresh etc.).
type Participant struct {
	SessionID  string `json:"sessionId"`
	UserID     string `json:"userId"`
	UserName   string `json:"userName"`
	UserAvatar string `json:"userAvatar"`
}
