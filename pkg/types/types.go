package types

import "time"

// StoredPhoto is one captured photo held in the per-user cache. Exactly one
// instance exists per user; a new capture replaces the previous one.
type StoredPhoto struct {
	RequestID string
	Data      []byte
	MIMEType  string
	Filename  string
	Size      int
	UserID    string
	Timestamp time.Time
}

type LatestPhotoResp struct {
	RequestID string `json:"requestId"`
	Timestamp int64  `json:"timestamp"`
	HasPhoto  bool   `json:"hasPhoto"`
}

type ErrorResp struct {
	Error string `json:"error"`
}
