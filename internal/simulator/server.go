// Package simulator is an in-process stand-in for the transcript indexing
// service. It serves the same HTTP and websocket contract the real backend
// does, walking a scripted pipeline for each accepted video, so the client
// stack can be exercised end to end without network access.
package simulator

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vrsandeep/tubeindex/internal/channel"
	"github.com/vrsandeep/tubeindex/internal/models"
	"github.com/vrsandeep/tubeindex/internal/yturl"
)

type processedVideo struct {
	title  string
	chunks int
}

// Server implements the simulated service. Zero-value maps are not usable;
// construct with New.
type Server struct {
	hub      *hub
	upgrader websocket.Upgrader

	mu           sync.Mutex
	stepDelay    time.Duration
	requireAuth  bool
	processed    map[string]processedVideo
	running      map[string]bool
	validTokens  map[string]bool
	rejectTokens map[string]bool
	failVideos   map[string]string
	silentVideos map[string]bool
}

// New creates a simulator whose pipeline advances one step per stepDelay.
func New(stepDelay time.Duration) *Server {
	s := &Server{
		hub:          newHub(),
		stepDelay:    stepDelay,
		processed:    make(map[string]processedVideo),
		running:      make(map[string]bool),
		validTokens:  make(map[string]bool),
		rejectTokens: make(map[string]bool),
		failVideos:   make(map[string]string),
		silentVideos: make(map[string]bool),
	}
	go s.hub.run()
	return s
}

// Close stops the hub loop. Open connections are left to their pumps.
func (s *Server) Close() {
	close(s.hub.stop)
}

// RequireAuth makes the process endpoint reject requests without a known
// bearer token.
func (s *Server) RequireAuth() {
	s.mu.Lock()
	s.requireAuth = true
	s.mu.Unlock()
}

// RejectToken marks a token as invalid for the token-validation endpoint.
func (s *Server) RejectToken(token string) {
	s.mu.Lock()
	s.rejectTokens[token] = true
	s.mu.Unlock()
}

// FailVideo scripts the pipeline for videoID to end with an ERROR update
// carrying message.
func (s *Server) FailVideo(videoID, message string) {
	s.mu.Lock()
	s.failVideos[videoID] = message
	s.mu.Unlock()
}

// SilenceVideo scripts the pipeline for videoID to accept the submission and
// then push nothing at all.
func (s *Server) SilenceVideo(videoID string) {
	s.mu.Lock()
	s.silentVideos[videoID] = true
	s.mu.Unlock()
}

// Router sets up and returns the simulator's router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Post("/api/youtube/process", s.handleProcess)
	r.Post("/api/auth/google/token", s.handleGoogleToken)
	r.Post("/api/auth/logout", s.handleLogout)
	r.Get("/ws", s.handleWS)

	return r
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req models.ProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	videoID, err := yturl.ExtractVideoID(req.YoutubeURL)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid YouTube URL")
		return
	}

	token := bearerToken(r)
	s.mu.Lock()
	authorized := token != "" && s.validTokens[token]
	needAuth := s.requireAuth
	done, already := s.processed[videoID]
	running := s.running[videoID]
	if !already && !running && (authorized || (!needAuth && token == "")) {
		s.running[videoID] = true
	}
	s.mu.Unlock()

	if (needAuth || token != "") && !authorized {
		respondWithError(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}

	if already {
		respondWithJSON(w, http.StatusOK, models.ProcessResponse{
			VideoID:          videoID,
			VideoTitle:       done.title,
			TotalChunks:      done.chunks,
			AlreadyProcessed: true,
		})
		return
	}

	// A repeat submission while the pipeline is still running just re-joins
	// the existing run; the room replays progress to the new session.
	if !running {
		go s.runPipeline(videoID)
	}
	respondWithJSON(w, http.StatusAccepted, models.ProcessResponse{VideoID: videoID})
}

func (s *Server) handleGoogleToken(w http.ResponseWriter, r *http.Request) {
	var req models.TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AccessToken == "" {
		respondWithError(w, http.StatusBadRequest, "Missing access token")
		return
	}

	s.mu.Lock()
	rejected := s.rejectTokens[req.AccessToken]
	if !rejected {
		s.validTokens[req.AccessToken] = true
	}
	s.mu.Unlock()

	if rejected {
		respondWithError(w, http.StatusUnauthorized, "Token validation failed")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	s.mu.Lock()
	delete(s.validTokens, token)
	s.mu.Unlock()
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("simulator: websocket upgrade failed: %v", err)
		return
	}

	c := &client{
		hub:       s.hub,
		conn:      conn,
		send:      make(chan channel.Frame, 16),
		sessionID: uuid.New().String(),
	}

	greeting := channel.NewFrame(channel.FrameSession, channel.SessionPayload{SessionID: c.sessionID})
	if err := conn.WriteJSON(greeting); err != nil {
		conn.Close()
		return
	}

	go c.writePump()
	c.readPump()
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to marshal response")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}
