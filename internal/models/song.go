package models

// Song is one entry in a room's shared queue. VideoID is the natural key:
// a room never holds two entries for the same video.
type Song struct {
	VideoID     string `json:"videoId"`
	Title       string `json:"title"`
	ChannelName string `json:"channelName"`
	Thumbnail   string `json:"thumbnail"`
	Duration    string `json:"duration"`
	RequestedBy string `json:"requestedBy"`
	UserAvatar  string `json:"userAvatar"`
	Votes       int64  `json:"votes"`
	AddedAt     int64  `json:"addedAt"` // epoch millis
}
