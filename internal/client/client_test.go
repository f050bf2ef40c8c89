package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vrsandeep/tubeindex/internal/models"
)

func TestProcess(t *testing.T) {
	t.Run("Acceptance response", func(t *testing.T) {
		var gotAuth string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/youtube/process" {
				t.Errorf("Unexpected path: %s", r.URL.Path)
			}
			gotAuth = r.Header.Get("Authorization")

			var req models.ProcessRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatalf("Failed to decode request: %v", err)
			}
			if req.YoutubeURL != "https://youtu.be/dQw4w9WgXcQ" || req.SocketID != "sess-1" {
				t.Errorf("Unexpected request payload: %+v", req)
			}

			json.NewEncoder(w).Encode(models.ProcessResponse{VideoID: "dQw4w9WgXcQ"})
		}))
		defer server.Close()

		c := New(server.URL, 5*time.Second)
		c.SetTokenSource(func() string { return "tok-abc" })

		resp, err := c.Process(context.Background(), models.ProcessRequest{
			YoutubeURL: "https://youtu.be/dQw4w9WgXcQ",
			Domains:    []string{"general"},
			SocketID:   "sess-1",
		})
		if err != nil {
			t.Fatalf("Process failed: %v", err)
		}
		if resp.VideoID != "dQw4w9WgXcQ" || resp.AlreadyProcessed {
			t.Errorf("Unexpected response: %+v", resp)
		}
		if gotAuth != "Bearer tok-abc" {
			t.Errorf("Expected bearer header, got %q", gotAuth)
		}
	})

	t.Run("Already processed short-circuit", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(models.ProcessResponse{
				VideoTitle:       "Some Title",
				TotalChunks:      17,
				VideoID:          "dQw4w9WgXcQ",
				AlreadyProcessed: true,
			})
		}))
		defer server.Close()

		c := New(server.URL, 5*time.Second)
		resp, err := c.Process(context.Background(), models.ProcessRequest{YoutubeURL: "x"})
		if err != nil {
			t.Fatalf("Process failed: %v", err)
		}
		if !resp.AlreadyProcessed || resp.TotalChunks != 17 {
			t.Errorf("Unexpected response: %+v", resp)
		}
	})
}

func TestErrorClassification(t *testing.T) {
	t.Run("401 is an authentication error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		c := New(server.URL, 5*time.Second)
		_, err := c.Process(context.Background(), models.ProcessRequest{})
		assertKind(t, err, models.ErrKindAuthentication)
	})

	t.Run("Non-2xx with error body is a server error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "video too long"})
		}))
		defer server.Close()

		c := New(server.URL, 5*time.Second)
		_, err := c.Process(context.Background(), models.ProcessRequest{})
		cerr := assertKind(t, err, models.ErrKindServer)
		if cerr.Message != "video too long" {
			t.Errorf("Expected server message carried through, got %q", cerr.Message)
		}
	})

	t.Run("Message field fallback", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]string{"message": "pipeline unavailable"})
		}))
		defer server.Close()

		c := New(server.URL, 5*time.Second)
		_, err := c.Process(context.Background(), models.ProcessRequest{})
		cerr := assertKind(t, err, models.ErrKindServer)
		if cerr.Message != "pipeline unavailable" {
			t.Errorf("Expected message field carried through, got %q", cerr.Message)
		}
	})

	t.Run("Client timeout is a timeout error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer server.Close()

		c := New(server.URL, 20*time.Millisecond)
		_, err := c.Process(context.Background(), models.ProcessRequest{})
		assertKind(t, err, models.ErrKindTimeout)
	})

	t.Run("Unreachable server is a network error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close() // Shut it down before the request.

		c := New(server.URL, 5*time.Second)
		_, err := c.Process(context.Background(), models.ProcessRequest{})
		assertKind(t, err, models.ErrKindNetwork)
	})
}

func assertKind(t *testing.T, err error, kind models.ErrorKind) *models.ClassifiedError {
	t.Helper()
	if err == nil {
		t.Fatal("Expected an error, got nil")
	}
	cerr, ok := err.(*models.ClassifiedError)
	if !ok {
		t.Fatalf("Expected *models.ClassifiedError, got %T: %v", err, err)
	}
	if cerr.Kind != kind {
		t.Fatalf("Expected error kind %q, got %q (%v)", kind, cerr.Kind, err)
	}
	return cerr
}
