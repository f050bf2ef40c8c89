package models

// ProcessRequest is the body of POST /api/youtube/process.
type ProcessRequest struct {
	YoutubeURL string   `json:"youtubeUrl"`
	Domains    []string `json:"domains"`
	// The channel session id, so the server can target pushes at the
	// session that made the request. Optional: omitted when the channel
	// is not connected.
	SocketID string `json:"socketId,omitempty"`
}

// ProcessResponse is the success payload of POST /api/youtube/process.
// When AlreadyProcessed is set the job finished before this request (a
// duplicate submission) and the payload carries the final result directly.
type ProcessResponse struct {
	VideoTitle       string `json:"videoTitle,omitempty"`
	TotalChunks      int    `json:"totalChunks,omitempty"`
	VideoID          string `json:"videoId"`
	AlreadyProcessed bool   `json:"alreadyProcessed,omitempty"`
}

// TokenRequest is the body of POST /api/auth/google/token.
type TokenRequest struct {
	AccessToken string `json:"access_token"`
}
