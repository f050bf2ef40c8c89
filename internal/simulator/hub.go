package simulator

import (
	"encoding/json"
	"log"

	"github.com/gorilla/websocket"

	"github.com/vrsandeep/tubeindex/internal/channel"
	"github.com/vrsandeep/tubeindex/internal/models"
)

// client is one websocket connection with a buffered outbound queue.
type client struct {
	hub       *hub
	conn      *websocket.Conn
	send      chan channel.Frame
	sessionID string
}

type joinRequest struct {
	videoID string
	c       *client
}

type latestRequest struct {
	videoID string
	c       *client
}

// hub routes progress updates to the clients joined to each video's room.
// All room state is owned by the run loop; everything else communicates
// through its channels.
type hub struct {
	join       chan joinRequest
	latest     chan latestRequest
	publish    chan models.ProgressUpdate
	unregister chan *client
	stop       chan struct{}

	rooms map[string]map[*client]bool
	last  map[string]models.ProgressUpdate
}

func newHub() *hub {
	return &hub{
		join:       make(chan joinRequest),
		latest:     make(chan latestRequest),
		publish:    make(chan models.ProgressUpdate, 64),
		unregister: make(chan *client),
		stop:       make(chan struct{}),
		rooms:      make(map[string]map[*client]bool),
		last:       make(map[string]models.ProgressUpdate),
	}
}

func (h *hub) run() {
	for {
		select {
		case req := <-h.join:
			if h.rooms[req.videoID] == nil {
				h.rooms[req.videoID] = make(map[*client]bool)
			}
			h.rooms[req.videoID][req.c] = true

		case req := <-h.latest:
			if update, ok := h.last[req.videoID]; ok {
				req.c.trySend(channel.NewFrame(channel.FrameProgress, update))
			}

		case update := <-h.publish:
			h.last[update.VideoID] = update
			for c := range h.rooms[update.VideoID] {
				c.trySend(channel.NewFrame(channel.FrameProgress, update))
			}

		case c := <-h.unregister:
			for _, room := range h.rooms {
				delete(room, c)
			}
			close(c.send)

		case <-h.stop:
			return
		}
	}
}

// trySend drops the frame rather than block the hub on a slow client.
func (c *client) trySend(f channel.Frame) {
	select {
	case c.send <- f:
	default:
		log.Printf("simulator: dropping frame for slow client %s", c.sessionID)
	}
}

func (c *client) writePump() {
	for f := range c.send {
		if err := c.conn.WriteJSON(f); err != nil {
			return
		}
	}
}

func unmarshalPayload(f channel.Frame, v interface{}) error {
	return json.Unmarshal(f.Payload, v)
}

func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.stop:
		}
		c.conn.Close()
	}()
	for {
		var f channel.Frame
		if err := c.conn.ReadJSON(&f); err != nil {
			return
		}
		var payload channel.RoomPayload
		switch f.Type {
		case channel.FrameJoinRoom:
			if err := unmarshalPayload(f, &payload); err == nil {
				c.hub.join <- joinRequest{videoID: payload.VideoID, c: c}
			}
		case channel.FrameRequestLatest:
			if err := unmarshalPayload(f, &payload); err == nil {
				c.hub.latest <- latestRequest{videoID: payload.VideoID, c: c}
			}
		}
	}
}
