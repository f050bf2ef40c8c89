package models

// Stage identifies a step in the server-side indexing pipeline, in the order
// the server walks them. Completed and Error are terminal: once one of them
// has been observed for a video, later updates for it carry no meaning.
type Stage string

const (
	StageInitializing        Stage = "INITIALIZING"
	StageTranscriptFetch     Stage = "TRANSCRIPT_FETCH"
	StageTranscriptProcess   Stage = "TRANSCRIPT_PROCESS"
	StageChunkCreation       Stage = "CHUNK_CREATION"
	StageEmbeddingGeneration Stage = "EMBEDDING_GENERATION"
	StageChunkStorage        Stage = "CHUNK_STORAGE"
	StageCompleted           Stage = "COMPLETED"
	StageError               Stage = "ERROR"
)

// Terminal reports whether the stage ends the pipeline for its video.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageError
}

// ProgressUpdate is one server-pushed status event for a video, addressed by
// the video id extracted from the submitted URL.
type ProgressUpdate struct {
	VideoID  string  `json:"videoId"`
	Stage    Stage   `json:"stage"`
	Message  string  `json:"message"`
	Progress float64 `json:"progress"` // 0..100
	// Optional per-item counters for stages with sub-item granularity
	// (e.g. "embedding chunk 12 of 42").
	Current int `json:"current,omitempty"`
	Total   int `json:"total,omitempty"`
	// Set by the server on the COMPLETED update only.
	VideoTitle string `json:"videoTitle,omitempty"`
}
