package channel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vrsandeep/tubeindex/internal/models"
)

// wsTestServer is a scripted stand-in for the server side of the channel.
// It greets each connection with a session frame, records inbound frames,
// and lets tests push frames back to the client.
type wsTestServer struct {
	srv      *httptest.Server
	inbound  chan Frame
	mu       sync.Mutex
	conns    []*websocket.Conn
	upgrader websocket.Upgrader
}

func newWSTestServer(t *testing.T) *wsTestServer {
	t.Helper()
	ts := &wsTestServer{inbound: make(chan Frame, 16)}
	ts.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := ts.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ts.mu.Lock()
		ts.conns = append(ts.conns, conn)
		ts.mu.Unlock()

		conn.WriteJSON(NewFrame(FrameSession, SessionPayload{SessionID: "sess-test-1"}))
		for {
			var f Frame
			if err := conn.ReadJSON(&f); err != nil {
				return
			}
			ts.inbound <- f
		}
	}))
	t.Cleanup(ts.srv.Close)
	return ts
}

// push sends a frame from the server to the most recent client connection.
func (ts *wsTestServer) push(t *testing.T, f Frame) {
	t.Helper()
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if len(ts.conns) == 0 {
		t.Fatal("No client connection to push to")
	}
	if err := ts.conns[len(ts.conns)-1].WriteJSON(f); err != nil {
		t.Fatalf("Failed to push frame: %v", err)
	}
}

func (ts *wsTestServer) expectFrame(t *testing.T, frameType string) Frame {
	t.Helper()
	select {
	case f := <-ts.inbound:
		if f.Type != frameType {
			t.Fatalf("Expected frame type %q, got %q", frameType, f.Type)
		}
		return f
	case <-time.After(2 * time.Second):
		t.Fatalf("Timed out waiting for %q frame", frameType)
		return Frame{}
	}
}

func newTestManager(t *testing.T, serverURL string) *Manager {
	t.Helper()
	m := New(serverURL, &Options{RetryAttempts: 2, RetryBackoff: 10 * time.Millisecond})
	t.Cleanup(m.Close)
	return m
}

func TestConnect(t *testing.T) {
	t.Run("Establishes and exposes session id", func(t *testing.T) {
		ts := newWSTestServer(t)
		m := newTestManager(t, ts.srv.URL)

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if !m.Connect(ctx) {
			t.Fatal("Connect returned false")
		}
		if !m.IsConnected() {
			t.Error("IsConnected should be true after Connect")
		}
		id, ok := m.SessionID()
		if !ok || id != "sess-test-1" {
			t.Errorf("SessionID = (%q, %v), want (sess-test-1, true)", id, ok)
		}

		// Idempotent: a second call returns true without a new connection.
		if !m.Connect(ctx) {
			t.Error("Second Connect returned false")
		}
		ts.mu.Lock()
		connCount := len(ts.conns)
		ts.mu.Unlock()
		if connCount != 1 {
			t.Errorf("Expected 1 connection, got %d", connCount)
		}
	})

	t.Run("Resolves false when the server is unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close()
		m := newTestManager(t, srv.URL)

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if m.Connect(ctx) {
			t.Error("Connect should return false for an unreachable server")
		}
		if m.IsConnected() {
			t.Error("IsConnected should be false")
		}
		if _, ok := m.SessionID(); ok {
			t.Error("SessionID should be absent while disconnected")
		}
	})

	t.Run("Caller wait window expires before the retry loop", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close()
		m := New(srv.URL, &Options{RetryAttempts: 5, RetryBackoff: 500 * time.Millisecond})
		t.Cleanup(m.Close)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		start := time.Now()
		if m.Connect(ctx) {
			t.Error("Connect should return false when the wait window expires")
		}
		if elapsed := time.Since(start); elapsed > time.Second {
			t.Errorf("Connect did not honor the wait window, took %v", elapsed)
		}
	})
}

func TestListenerRegistry(t *testing.T) {
	ts := newWSTestServer(t)
	m := newTestManager(t, ts.srv.URL)

	// Registering before connect records the listener but cannot join.
	if m.RegisterListener("dQw4w9WgXcQ", func(models.ProgressUpdate) {}) {
		t.Error("RegisterListener should return false while disconnected")
	}
	if m.RequestLatestRefresh("dQw4w9WgXcQ") {
		t.Error("RequestLatestRefresh should be a no-op while disconnected")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if !m.Connect(ctx) {
		t.Fatal("Connect failed")
	}

	updates := make(chan models.ProgressUpdate, 8)
	if !m.RegisterListener("dQw4w9WgXcQ", func(u models.ProgressUpdate) { updates <- u }) {
		t.Fatal("RegisterListener should return true while connected")
	}
	f := ts.expectFrame(t, FrameJoinRoom)
	if !strings.Contains(string(f.Payload), "dQw4w9WgXcQ") {
		t.Errorf("Join frame payload missing video id: %s", f.Payload)
	}

	t.Run("Dispatches to the registered listener", func(t *testing.T) {
		ts.push(t, NewFrame(FrameProgress, models.ProgressUpdate{
			VideoID:  "dQw4w9WgXcQ",
			Stage:    models.StageTranscriptFetch,
			Message:  "Fetching transcript",
			Progress: 20,
		}))
		select {
		case u := <-updates:
			if u.Stage != models.StageTranscriptFetch || u.Progress != 20 {
				t.Errorf("Unexpected update: %+v", u)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Listener never received the update")
		}
	})

	t.Run("Drops updates for unknown video ids", func(t *testing.T) {
		ts.push(t, NewFrame(FrameProgress, models.ProgressUpdate{
			VideoID: "otherVideo0",
			Stage:   models.StageInitializing,
		}))
		select {
		case u := <-updates:
			t.Fatalf("Listener received an update for another video: %+v", u)
		case <-time.After(100 * time.Millisecond):
		}
	})

	t.Run("RequestLatestRefresh emits a pull", func(t *testing.T) {
		if !m.RequestLatestRefresh("dQw4w9WgXcQ") {
			t.Fatal("RequestLatestRefresh should succeed while connected")
		}
		ts.expectFrame(t, FrameRequestLatest)
	})

	t.Run("Unregister stops delivery", func(t *testing.T) {
		m.UnregisterListener("dQw4w9WgXcQ")
		// Removing a missing entry always succeeds.
		m.UnregisterListener("dQw4w9WgXcQ")

		ts.push(t, NewFrame(FrameProgress, models.ProgressUpdate{
			VideoID: "dQw4w9WgXcQ",
			Stage:   models.StageCompleted,
		}))
		select {
		case u := <-updates:
			t.Fatalf("Listener fired after unregistration: %+v", u)
		case <-time.After(100 * time.Millisecond):
		}
	})
}

func TestListenerReplacement(t *testing.T) {
	ts := newWSTestServer(t)
	m := newTestManager(t, ts.srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if !m.Connect(ctx) {
		t.Fatal("Connect failed")
	}

	first := make(chan models.ProgressUpdate, 1)
	second := make(chan models.ProgressUpdate, 1)
	m.RegisterListener("dQw4w9WgXcQ", func(u models.ProgressUpdate) { first <- u })
	ts.expectFrame(t, FrameJoinRoom)
	// Last write wins.
	m.RegisterListener("dQw4w9WgXcQ", func(u models.ProgressUpdate) { second <- u })
	ts.expectFrame(t, FrameJoinRoom)

	ts.push(t, NewFrame(FrameProgress, models.ProgressUpdate{
		VideoID: "dQw4w9WgXcQ",
		Stage:   models.StageChunkCreation,
	}))

	select {
	case <-second:
	case <-time.After(2 * time.Second):
		t.Fatal("Replacement listener never received the update")
	}
	select {
	case u := <-first:
		t.Fatalf("Replaced listener still received an update: %+v", u)
	case <-time.After(100 * time.Millisecond):
	}
}
