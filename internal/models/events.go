package models

// Wire event names. Inbound events form a closed set: the session dispatcher
// switches over these and drops anything else.
const (
	EventJoinRoom         = "join_room"
	EventJoined           = "joined"
	EventRoomParticipants = "room_participants"

	EventQueueAdd     = "queue_add"
	EventQueueRemove  = "queue_remove"
	EventQueueVote    = "queue_vote"
	EventQueueUpdated = "updated_queue"

	EventPlaybackControls = "playback_controls"
	EventChangeSong       = "change_song"

	EventRequestSync = "request_sync"
	EventProvideSync = "provide_sync"
	EventSyncOffer   = "res_provide_sync"
	EventReceiveSync = "receive_sync"

	EventSendMessage = "send_message"
	EventMessage     = "message"

	EventError = "error"
)
