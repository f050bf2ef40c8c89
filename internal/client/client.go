// Package client implements the HTTP side of the indexing service contract.
// It only knows the wire contract; progress observation happens over the
// channel package.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/vrsandeep/tubeindex/internal/models"
)

// Client talks to the indexing service API.
type Client struct {
	baseURL string
	http    *http.Client
	token   func() string // returns the current bearer token, or "" when signed out
}

// New creates a Client for the given base URL. The timeout bounds every
// request issued through the client.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// SetTokenSource installs a callback that supplies the bearer token attached
// to authenticated requests. A nil source or empty token leaves requests
// unauthenticated.
func (c *Client) SetTokenSource(fn func() string) {
	c.token = fn
}

// Process submits a video for transcript extraction and indexing. The
// response either acknowledges acceptance (progress then arrives over the
// push channel) or, for an already-processed video, carries the final result
// with AlreadyProcessed set. Errors are always *models.ClassifiedError.
func (c *Client) Process(ctx context.Context, req models.ProcessRequest) (*models.ProcessResponse, error) {
	var resp models.ProcessResponse
	if err := c.post(ctx, "/api/youtube/process", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ValidateGoogleToken asks the server to validate a client-held OAuth access
// token. A nil return means the token is accepted.
func (c *Client) ValidateGoogleToken(ctx context.Context, accessToken string) error {
	return c.post(ctx, "/api/auth/google/token", models.TokenRequest{AccessToken: accessToken}, nil)
}

// Logout notifies the server of sign-out. Fire-and-forget: callers may
// ignore the returned error.
func (c *Client) Logout(ctx context.Context) error {
	return c.post(ctx, "/api/auth/logout", struct{}{}, nil)
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return models.NewError(models.ErrKindServer, fmt.Sprintf("encoding request: %v", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return models.NewError(models.ErrKindServer, fmt.Sprintf("building request: %v", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != nil {
		if tok := c.token(); tok != "" {
			httpReq.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return classifyTransport(err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode == http.StatusUnauthorized {
		return models.NewError(models.ErrKindAuthentication, "authentication required")
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return models.NewError(models.ErrKindServer, serverMessage(httpResp))
	}

	if out != nil {
		if err := json.NewDecoder(httpResp.Body).Decode(out); err != nil {
			return models.NewError(models.ErrKindServer, fmt.Sprintf("decoding response: %v", err))
		}
	}
	return nil
}

// classifyTransport maps a transport-level failure to the error taxonomy:
// deadline or timeout failures are timeouts, everything else means no
// response was received at all.
func classifyTransport(err error) *models.ClassifiedError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return models.NewError(models.ErrKindTimeout, "request timed out")
	}
	return models.NewError(models.ErrKindNetwork, fmt.Sprintf("no response received: %v", err))
}

// serverMessage extracts the error message from a non-2xx body. The server
// uses either {"error": ...} or {"message": ...}.
func serverMessage(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err == nil && len(body) > 0 {
		var payload struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if jsonErr := json.Unmarshal(body, &payload); jsonErr == nil {
			if payload.Error != "" {
				return payload.Error
			}
			if payload.Message != "" {
				return payload.Message
			}
		}
	}
	return fmt.Sprintf("server returned %s", resp.Status)
}
