package realtime

import "time"

// Frame types exchanged on the relay websocket.
const (
	frameSubscribe  = "subscribe"
	frameSubscribed = "subscribed"
	frameChange     = "change"
	frameError      = "error"
)

const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	handshakeTimeout = 10 * time.Second
	maxFrameSize     = 1 << 20
)

// frame is one JSON message on the relay websocket. The client sends a
// single subscribe frame; the server answers with subscribed or error and
// then streams change frames.
type frame struct {
	Type   string  `json:"type"`
	Filter *Filter `json:"filter,omitempty"`
	Change *Change `json:"change,omitempty"`
	Error  string  `json:"error,omitempty"`
}
