package simulator

import (
	"fmt"
	"time"

	"github.com/vrsandeep/tubeindex/internal/models"
)

// pipelineStep is one non-terminal stage the scripted pipeline walks.
type pipelineStep struct {
	stage    models.Stage
	message  string
	progress float64
}

var pipelineSteps = []pipelineStep{
	{models.StageInitializing, "Preparing to index video", 2},
	{models.StageTranscriptFetch, "Fetching transcript", 15},
	{models.StageTranscriptProcess, "Processing transcript", 30},
	{models.StageChunkCreation, "Splitting transcript into chunks", 50},
	{models.StageChunkStorage, "Storing chunks", 95},
}

// runPipeline walks the scripted stage sequence for one video, publishing an
// update to the hub at each step. Embedding generation is expanded into one
// update per chunk so clients see the current/total counters move.
func (s *Server) runPipeline(videoID string) {
	defer func() {
		s.mu.Lock()
		delete(s.running, videoID)
		s.mu.Unlock()
	}()

	chunks := chunkCountFor(videoID)

	s.mu.Lock()
	failMsg, shouldFail := s.failVideos[videoID]
	silent := s.silentVideos[videoID]
	delay := s.stepDelay
	s.mu.Unlock()

	if silent {
		return
	}

	for _, step := range pipelineSteps {
		if step.stage == models.StageChunkStorage {
			for i := 1; i <= chunks; i++ {
				s.hub.publish <- models.ProgressUpdate{
					VideoID:  videoID,
					Stage:    models.StageEmbeddingGeneration,
					Message:  fmt.Sprintf("Embedding chunk %d of %d", i, chunks),
					Progress: 50 + 45*float64(i)/float64(chunks),
					Current:  i,
					Total:    chunks,
				}
				time.Sleep(delay)
			}
		}
		s.hub.publish <- models.ProgressUpdate{
			VideoID:  videoID,
			Stage:    step.stage,
			Message:  step.message,
			Progress: step.progress,
		}
		time.Sleep(delay)
	}

	if shouldFail {
		s.hub.publish <- models.ProgressUpdate{
			VideoID:  videoID,
			Stage:    models.StageError,
			Message:  failMsg,
			Progress: 100,
		}
		return
	}

	title := titleFor(videoID)
	s.mu.Lock()
	s.processed[videoID] = processedVideo{title: title, chunks: chunks}
	s.mu.Unlock()

	s.hub.publish <- models.ProgressUpdate{
		VideoID:    videoID,
		Stage:      models.StageCompleted,
		Message:    fmt.Sprintf("Created %d chunks.", chunks),
		Progress:   100,
		Total:      chunks,
		VideoTitle: title,
	}
}

// chunkCountFor derives a stable chunk count from the video id so repeat
// submissions report the same number.
func chunkCountFor(videoID string) int {
	sum := 0
	for _, b := range []byte(videoID) {
		sum += int(b)
	}
	return 20 + sum%30
}

func titleFor(videoID string) string {
	return "Simulated video " + videoID
}
