package channel

import "encoding/json"

// Frame is the envelope for every message exchanged over the push channel,
// in both directions.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Frame types. The server greets each connection with a "session" frame;
// after that the client sends room joins and refresh pulls, and the server
// sends progress updates.
const (
	FrameSession       = "session"
	FrameJoinRoom      = "join-video-room"
	FrameRequestLatest = "request-latest-progress"
	FrameProgress      = "progress-update"
)

// RoomPayload addresses a frame at a single video's room.
type RoomPayload struct {
	VideoID string `json:"videoId"`
}

// SessionPayload carries the server-assigned session id.
type SessionPayload struct {
	SessionID string `json:"sessionId"`
}

// NewFrame builds a frame with a marshaled payload.
func NewFrame(frameType string, payload interface{}) Frame {
	raw, _ := json.Marshal(payload)
	return Frame{Type: frameType, Payload: raw}
}
