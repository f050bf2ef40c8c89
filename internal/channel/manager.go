// Package channel owns the client side of the push channel: a single
// long-lived websocket connection to the server, plus a registry that routes
// incoming progress updates to per-video listeners.
package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vrsandeep/tubeindex/internal/models"
)

// Listener receives progress updates for one video id.
type Listener func(models.ProgressUpdate)

// Options tune the connection retry policy. Zero values select the defaults
// (5 attempts, 1s fixed backoff).
type Options struct {
	RetryAttempts int
	RetryBackoff  time.Duration
}

// Manager maintains the process-wide channel connection and the listener
// registry. Construct exactly one per process; no other component may own a
// second connection.
type Manager struct {
	wsURL         string
	dialer        *websocket.Dialer
	retryAttempts int
	retryBackoff  time.Duration

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	sessionID string
	attempt   chan struct{} // non-nil while a connect attempt is in flight; closed when it resolves
	listeners map[string]Listener
	closed    bool

	// gorilla connections allow one concurrent writer.
	writeMu sync.Mutex
}

// New creates a Manager for the server at the given HTTP base URL. The
// websocket endpoint is derived from it (http -> ws, https -> wss, path /ws).
func New(serverURL string, opts *Options) *Manager {
	m := &Manager{
		wsURL:         wsEndpoint(serverURL),
		dialer:        websocket.DefaultDialer,
		retryAttempts: 5,
		retryBackoff:  time.Second,
		listeners:     make(map[string]Listener),
	}
	if opts != nil {
		if opts.RetryAttempts > 0 {
			m.retryAttempts = opts.RetryAttempts
		}
		if opts.RetryBackoff > 0 {
			m.retryBackoff = opts.RetryBackoff
		}
	}
	return m
}

func wsEndpoint(serverURL string) string {
	base := strings.TrimRight(serverURL, "/")
	switch {
	case strings.HasPrefix(base, "https"):
		base = "wss" + strings.TrimPrefix(base, "https")
	case strings.HasPrefix(base, "http"):
		base = "ws" + strings.TrimPrefix(base, "http")
	}
	return base + "/ws"
}

// Connect makes the connection usable, or reports that it could not be
// within the caller's wait window. It is idempotent: an established
// connection returns true immediately, and concurrent callers share one
// in-flight attempt. When the caller's context expires first, Connect
// returns false but the retry loop keeps running; a later success is
// observable through future IsConnected calls, not by this caller.
func (m *Manager) Connect(ctx context.Context) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	if m.connected && m.conn != nil {
		m.mu.Unlock()
		return true
	}
	if m.attempt == nil {
		m.attempt = make(chan struct{})
		go m.dial(m.attempt)
	}
	attempt := m.attempt
	m.mu.Unlock()

	select {
	case <-attempt:
		return m.IsConnected()
	case <-ctx.Done():
		return false
	}
}

// dial runs one bounded retry loop. It resolves the attempt channel when the
// loop ends, successfully or not.
func (m *Manager) dial(attempt chan struct{}) {
	defer func() {
		m.mu.Lock()
		if m.attempt == attempt {
			m.attempt = nil
		}
		m.mu.Unlock()
		close(attempt)
	}()

	for i := 0; i < m.retryAttempts; i++ {
		if i > 0 {
			time.Sleep(m.retryBackoff)
		}

		conn, _, err := m.dialer.Dial(m.wsURL, nil)
		if err != nil {
			log.Printf("channel: connect attempt %d/%d failed: %v", i+1, m.retryAttempts, err)
			continue
		}

		sessionID, err := readSessionFrame(conn)
		if err != nil {
			log.Printf("channel: handshake failed: %v", err)
			conn.Close()
			continue
		}

		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			conn.Close()
			return
		}
		m.conn = conn
		m.connected = true
		m.sessionID = sessionID
		m.mu.Unlock()

		go m.readLoop(conn)
		return
	}
}

// readSessionFrame waits for the server's session greeting. The connection
// is not considered usable until it arrives.
func readSessionFrame(conn *websocket.Conn) (string, error) {
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	defer conn.SetReadDeadline(time.Time{})

	var f Frame
	if err := conn.ReadJSON(&f); err != nil {
		return "", err
	}
	if f.Type != FrameSession {
		return "", fmt.Errorf("expected %q frame, got %q", FrameSession, f.Type)
	}
	var payload SessionPayload
	if err := json.Unmarshal(f.Payload, &payload); err != nil {
		return "", err
	}
	if payload.SessionID == "" {
		return "", fmt.Errorf("server sent empty session id")
	}
	return payload.SessionID, nil
}

// readLoop is the single inbound dispatcher for one connection. Per-connection
// message ordering is preserved because all dispatch happens here.
func (m *Manager) readLoop(conn *websocket.Conn) {
	for {
		var f Frame
		if err := conn.ReadJSON(&f); err != nil {
			break
		}
		if f.Type != FrameProgress {
			continue
		}
		var update models.ProgressUpdate
		if err := json.Unmarshal(f.Payload, &update); err != nil {
			log.Printf("channel: malformed progress update: %v", err)
			continue
		}
		m.dispatch(update)
	}

	m.mu.Lock()
	if m.conn != conn {
		// A newer connection already took over.
		m.mu.Unlock()
		conn.Close()
		return
	}
	m.conn = nil
	m.connected = false
	m.sessionID = ""
	var attempt chan struct{}
	if !m.closed {
		attempt = make(chan struct{})
		m.attempt = attempt
	}
	m.mu.Unlock()
	conn.Close()

	if attempt != nil {
		log.Printf("channel: connection dropped, reconnecting")
		m.dial(attempt)
	}
}

// dispatch routes one update to its registered listener. An update with no
// listener is dropped, not buffered: delivery is at-most-once to whatever
// listener is active when the update arrives.
func (m *Manager) dispatch(update models.ProgressUpdate) {
	m.mu.Lock()
	fn, ok := m.listeners[update.VideoID]
	m.mu.Unlock()
	if !ok {
		log.Printf("channel: dropping update for %s (no listener)", update.VideoID)
		return
	}
	fn(update)
}

// IsConnected reports transport-confirmed state: the manager's flag and a
// live connection must agree.
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected && m.conn != nil
}

// SessionID returns the server-assigned session id. It is present only
// while connected.
func (m *Manager) SessionID() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected || m.conn == nil || m.sessionID == "" {
		return "", false
	}
	return m.sessionID, true
}

// RegisterListener inserts or replaces the listener for a video id
// (last-write-wins) and, when connected, joins the video's room. It returns
// false when the room join could not be sent; the caller is responsible for
// re-joining after a later successful connect.
func (m *Manager) RegisterListener(videoID string, fn Listener) bool {
	m.mu.Lock()
	if _, exists := m.listeners[videoID]; exists {
		log.Printf("channel: replacing listener for %s", videoID)
	}
	m.listeners[videoID] = fn
	conn := m.conn
	connected := m.connected
	m.mu.Unlock()

	if !connected || conn == nil {
		return false
	}
	return m.write(conn, NewFrame(FrameJoinRoom, RoomPayload{VideoID: videoID})) == nil
}

// UnregisterListener removes the listener for a video id. Removing a missing
// entry is not an error.
func (m *Manager) UnregisterListener(videoID string) {
	m.mu.Lock()
	delete(m.listeners, videoID)
	m.mu.Unlock()
}

// RequestLatestRefresh asks the server to re-send the most recent known
// status for a video. No-op when disconnected.
func (m *Manager) RequestLatestRefresh(videoID string) bool {
	m.mu.Lock()
	conn := m.conn
	connected := m.connected
	m.mu.Unlock()

	if !connected || conn == nil {
		return false
	}
	return m.write(conn, NewFrame(FrameRequestLatest, RoomPayload{VideoID: videoID})) == nil
}

func (m *Manager) write(conn *websocket.Conn, f Frame) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return conn.WriteJSON(f)
}

// Close tears the connection down and stops reconnection. Listeners are
// cleared; no callback fires after Close returns and the read loop exits.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	conn := m.conn
	m.conn = nil
	m.connected = false
	m.sessionID = ""
	m.listeners = make(map[string]Listener)
	m.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}
