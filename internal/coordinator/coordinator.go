// Package coordinator drives one submission from URL to terminal outcome.
// It races the synchronous HTTP submission against asynchronous push updates
// for the same video id and merges both into a single once-settled outcome.
package coordinator

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/vrsandeep/tubeindex/internal/channel"
	"github.com/vrsandeep/tubeindex/internal/models"
	"github.com/vrsandeep/tubeindex/internal/yturl"
)

// State is the coarse submission state. AwaitingResult additionally tracks
// the most recent pipeline stage for display.
type State string

const (
	StateIdle           State = "idle"
	StateValidating     State = "validating"
	StateSubmitting     State = "submitting"
	StateAwaitingResult State = "awaiting_result"
	StateCompleted      State = "completed"
	StateFailed         State = "failed"
)

// PushChannel is the slice of the channel manager the coordinator depends
// on. Injectable so the state machine is testable without a network.
type PushChannel interface {
	Connect(ctx context.Context) bool
	SessionID() (string, bool)
	RegisterListener(videoID string, fn channel.Listener) bool
	UnregisterListener(videoID string)
	RequestLatestRefresh(videoID string) bool
}

// Submitter issues the HTTP submission call.
type Submitter interface {
	Process(ctx context.Context, req models.ProcessRequest) (*models.ProcessResponse, error)
}

// Options tune the coordinator's two windows. Zero values select the
// defaults (5s each).
type Options struct {
	ConnectTimeout time.Duration
	QuietPeriod    time.Duration
}

// Coordinator creates submissions. It remembers the last submission so a new
// one (or teardown) can always unregister the previous listener.
type Coordinator struct {
	channel        PushChannel
	submitter      Submitter
	connectTimeout time.Duration
	quietPeriod    time.Duration

	mu   sync.Mutex
	last *Submission
}

// New creates a Coordinator.
func New(ch PushChannel, submitter Submitter, opts *Options) *Coordinator {
	c := &Coordinator{
		channel:        ch,
		submitter:      submitter,
		connectTimeout: 5 * time.Second,
		quietPeriod:    5 * time.Second,
	}
	if opts != nil {
		if opts.ConnectTimeout > 0 {
			c.connectTimeout = opts.ConnectTimeout
		}
		if opts.QuietPeriod > 0 {
			c.quietPeriod = opts.QuietPeriod
		}
	}
	return c
}

// Submit validates the URL, ensures the channel is connected, and starts the
// submission. Validation and connectivity failures are returned immediately
// as *models.ClassifiedError: no job was started. A returned Submission is
// live; use Wait or the update callback to observe it.
//
// Starting a new submission tears down the previous one's listener, so a
// discarded UI context can never receive further callbacks.
func (c *Coordinator) Submit(ctx context.Context, rawURL string, domains []string, onUpdate func(models.ProgressUpdate)) (*Submission, error) {
	c.mu.Lock()
	if c.last != nil {
		c.last.Teardown()
		c.last = nil
	}
	c.mu.Unlock()

	// Validating: no network call is made for a malformed URL.
	videoID, err := yturl.ExtractVideoID(rawURL)
	if err != nil {
		return nil, models.NewError(models.ErrKindValidation, err.Error())
	}

	connectCtx, cancel := context.WithTimeout(ctx, c.connectTimeout)
	defer cancel()
	if !c.channel.Connect(connectCtx) {
		return nil, models.NewError(models.ErrKindConnectivity, "progress channel unreachable")
	}

	s := &Submission{
		videoID:  videoID,
		url:      rawURL,
		ch:       c.channel,
		onUpdate: onUpdate,
		state:    StateSubmitting,
		stage:    models.StageInitializing,
		done:     make(chan struct{}),
	}

	// Temporary listener: its sole effect is recording that the push channel
	// has spoken for this job, which later outranks an HTTP timeout.
	c.channel.RegisterListener(videoID, func(models.ProgressUpdate) {
		s.markPushSeen()
	})

	sessionID, _ := c.channel.SessionID()
	req := models.ProcessRequest{
		YoutubeURL: rawURL,
		Domains:    domains,
		SocketID:   sessionID,
	}
	go s.runHTTP(ctx, c.submitter, req)

	// Real listener replaces the temporary one (last-write-wins) and
	// re-requests the room join.
	c.channel.RegisterListener(videoID, s.handleUpdate)

	s.mu.Lock()
	if s.state == StateSubmitting {
		s.state = StateAwaitingResult
	}
	s.quiet = time.AfterFunc(c.quietPeriod, s.quietNudge)
	s.mu.Unlock()

	c.mu.Lock()
	c.last = s
	c.mu.Unlock()
	return s, nil
}

// Teardown unregisters the last submission's listener regardless of its
// state. Safe to call repeatedly; used on component shutdown.
func (c *Coordinator) Teardown() {
	c.mu.Lock()
	last := c.last
	c.last = nil
	c.mu.Unlock()
	if last != nil {
		last.Teardown()
	}
}

// Submission is one in-flight (or finished) job observation.
type Submission struct {
	videoID  string
	url      string
	ch       PushChannel
	onUpdate func(models.ProgressUpdate)

	mu       sync.Mutex
	state    State
	stage    models.Stage
	message  string
	progress float64
	sawPush  bool
	quiet    *time.Timer

	settleOnce sync.Once
	outcome    *models.Outcome
	done       chan struct{}
}

// VideoID returns the job identifier extracted from the submitted URL.
func (s *Submission) VideoID() string { return s.videoID }

// State returns the coarse state.
func (s *Submission) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Status returns the latest displayed stage, message and progress.
func (s *Submission) Status() (models.Stage, string, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage, s.message, s.progress
}

// Outcome returns the terminal outcome, or nil before one is reached.
func (s *Submission) Outcome() *models.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome
}

// Wait blocks until the submission reaches a terminal outcome or the
// context expires. The context gives callers an overall deadline; the
// coordinator itself never times a job out while the push channel has
// spoken (see runHTTP).
func (s *Submission) Wait(ctx context.Context) (*models.Outcome, error) {
	select {
	case <-s.done:
		return s.Outcome(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done returns a channel closed when the terminal outcome settles.
func (s *Submission) Done() <-chan struct{} { return s.done }

// Teardown stops the quiet timer and unregisters the listener regardless of
// state. It does not abort the server-side job.
func (s *Submission) Teardown() {
	s.mu.Lock()
	quiet := s.quiet
	s.mu.Unlock()
	if quiet != nil {
		quiet.Stop()
	}
	s.ch.UnregisterListener(s.videoID)
}

func (s *Submission) markPushSeen() {
	s.mu.Lock()
	s.sawPush = true
	s.mu.Unlock()
}

func (s *Submission) pushSeen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sawPush
}

// runHTTP performs the submission call and applies the completion-race
// rules: an alreadyProcessed response settles success directly; a plain
// acceptance leaves completion to the push channel; a timeout is suppressed
// once any push update has been observed for this job.
func (s *Submission) runHTTP(ctx context.Context, submitter Submitter, req models.ProcessRequest) {
	resp, err := submitter.Process(ctx, req)
	if err != nil {
		cerr := classify(err)
		if cerr.Kind == models.ErrKindTimeout && s.pushSeen() {
			// The push channel has spoken for this job; it outranks a
			// failed synchronous call. The job continues server-side.
			log.Printf("coordinator: %s: HTTP timeout suppressed by push evidence", s.videoID)
			return
		}
		s.settle(&models.Outcome{Err: cerr})
		return
	}

	if resp.AlreadyProcessed {
		s.settle(&models.Outcome{
			VideoTitle:  resp.VideoTitle,
			TotalChunks: resp.TotalChunks,
			VideoID:     resp.VideoID,
		})
		return
	}
	// Acceptance only: the kickoff is fire-and-forget and the push channel
	// owns the terminal state from here.
}

// handleUpdate is the real listener. Non-terminal stages refresh the display
// without changing the coarse state; terminal stages settle the outcome.
// Anything arriving after a terminal state is a late in-flight event and is
// ignored.
func (s *Submission) handleUpdate(u models.ProgressUpdate) {
	s.mu.Lock()
	s.sawPush = true
	if s.state == StateCompleted || s.state == StateFailed {
		s.mu.Unlock()
		return
	}
	if !u.Stage.Terminal() {
		s.stage = u.Stage
		s.message = u.Message
		s.progress = u.Progress
		onUpdate := s.onUpdate
		s.mu.Unlock()
		if onUpdate != nil {
			onUpdate(u)
		}
		return
	}
	s.mu.Unlock()

	if u.Stage == models.StageError {
		s.settle(&models.Outcome{Err: models.NewError(models.ErrKindServer, u.Message)})
		return
	}
	s.settle(&models.Outcome{
		VideoTitle:  u.VideoTitle,
		TotalChunks: chunkCount(u),
		VideoID:     u.VideoID,
	})
}

// settle records the terminal outcome exactly once, whichever path got here
// first, then unregisters the listener.
func (s *Submission) settle(outcome *models.Outcome) {
	s.settleOnce.Do(func() {
		s.mu.Lock()
		if outcome.OK() {
			s.state = StateCompleted
			s.stage = models.StageCompleted
			s.progress = 100
		} else {
			s.state = StateFailed
			s.stage = models.StageError
			s.message = outcome.Err.Message
		}
		s.outcome = outcome
		quiet := s.quiet
		s.mu.Unlock()

		if quiet != nil {
			quiet.Stop()
		}
		s.ch.UnregisterListener(s.videoID)
		close(s.done)
	})
}

// quietNudge fires once, quietPeriod after submission. If the channel has
// been silent it pulls the latest known status; it never fails the job.
func (s *Submission) quietNudge() {
	s.mu.Lock()
	seen := s.sawPush
	terminal := s.state == StateCompleted || s.state == StateFailed
	s.mu.Unlock()
	if seen || terminal {
		return
	}
	log.Printf("coordinator: %s: no push update yet, requesting latest progress", s.videoID)
	s.ch.RequestLatestRefresh(s.videoID)
}

// chunkCount derives the chunk total from a COMPLETED update's counters.
func chunkCount(u models.ProgressUpdate) int {
	if u.Total > 0 {
		return u.Total
	}
	return u.Current
}

func classify(err error) *models.ClassifiedError {
	var cerr *models.ClassifiedError
	if errors.As(err, &cerr) {
		return cerr
	}
	return models.NewError(models.ErrKindNetwork, err.Error())
}
