package poller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fentz26/dockgen/internal/client"
	"github.com/fentz26/dockgen/internal/models"
	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"k8s.io/utils/clock"
)

// GenerationClient is the part of the Request Client the controller needs.
type GenerationClient interface {
	StartGeneration(ctx context.Context, repoURL, credential string) (*models.GenerationJob, error)
	FetchStatus(ctx context.Context, jobID string) (*models.GenerationStatus, error)
}

// Controller runs at most one polling session at a time.
type Controller struct {
	client   GenerationClient
	observer Observer
	config   *Config
	clock    clock.WithDelayedExecution
	logger   logr.Logger

	// startMu serializes Start so preemption and session creation pair up.
	startMu sync.Mutex

	mu          sync.Mutex
	state       State
	session     *session
	observed    Observation
	startCancel context.CancelFunc
}

// session is one polling run. All fields are guarded by Controller.mu.
type session struct {
	id        string
	job       *models.GenerationJob
	attempt   int
	startedAt time.Time

	// timer is the single outstanding wakeup; seq invalidates timers that
	// fired after being replaced or stopped.
	timer clock.Timer
	seq   uint64

	stopped bool
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	outcome Outcome
}

// Option configures a Controller.
type Option func(*Controller)

// WithConfig sets the polling configuration.
func WithConfig(cfg *Config) Option {
	return func(c *Controller) { c.config = cfg.withDefaults() }
}

// WithClock sets the clock that schedules wakeups.
func WithClock(clk clock.WithDelayedExecution) Option {
	return func(c *Controller) { c.clock = clk }
}

// WithLogger sets the logger.
func WithLogger(l logr.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// New creates a controller. observer may be nil.
func New(gc GenerationClient, observer Observer, opts ...Option) *Controller {
	c := &Controller{
		client:   gc,
		observer: observer,
		config:   DefaultConfig(),
		clock:    clock.RealClock{},
		logger:   logr.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start starts a generation for repoURL and begins polling its status.
// An active session is canceled before the start request is sent. On
// failure no session is created.
func (c *Controller) Start(ctx context.Context, repoURL, credential string) (*models.GenerationJob, error) {
	if strings.TrimSpace(repoURL) == "" || strings.TrimSpace(credential) == "" {
		return nil, fmt.Errorf("%w: repository URL and access token are required", client.ErrValidation)
	}

	c.startMu.Lock()
	defer c.startMu.Unlock()

	startCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	if s := c.session; s != nil && !s.stopped {
		c.stopLocked(s, ReasonPreempted, nil)
	}
	c.observed = Observation{}
	c.startCancel = cancel
	c.mu.Unlock()

	job, err := c.client.StartGeneration(startCtx, repoURL, credential)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.startCancel = nil
	if err == nil && startCtx.Err() != nil {
		// Stopped while the start request was in flight.
		err = startCtx.Err()
	}
	if err != nil {
		// A preempted session must not be reported as the current one.
		c.session = nil
		c.logger.Info("Generation start failed", "repo", repoURL, "error", err.Error())
		return nil, err
	}

	sctx, scancel := context.WithCancel(context.Background())
	s := &session{
		id:        uuid.New().String(),
		job:       job,
		startedAt: c.clock.Now(),
		ctx:       sctx,
		cancel:    scancel,
		done:      make(chan struct{}),
	}
	c.session = s
	c.state = StatePolling
	c.scheduleLocked(s, c.config.InitialDelay)

	c.logger.Info("Polling started", "session", s.id, "generationId", job.ID)
	return job, nil
}

// Stop cancels the active session, or an in-flight start request. It
// reports whether there was anything to stop. No status response is merged
// after Stop returns.
func (c *Controller) Stop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	stopped := false
	if c.startCancel != nil {
		c.startCancel()
		c.startCancel = nil
		stopped = true
	}
	if s := c.session; s != nil && !s.stopped {
		c.stopLocked(s, ReasonCanceled, nil)
		stopped = true
	}
	return stopped
}

// State returns the controller state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Observed returns a copy of the latest observation.
func (c *Controller) Observed() Observation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.observed.clone()
}

// Job returns the job of the current or last session. It is nil after a
// failed Start.
func (c *Controller) Job() *models.GenerationJob {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	return c.session.job
}

// Wait blocks until the current session stops and returns its outcome.
func (c *Controller) Wait(ctx context.Context) (Outcome, error) {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()
	if s == nil {
		return Outcome{}, ErrNotPolling
	}

	select {
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	case <-s.done:
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return s.outcome, nil
}

func (c *Controller) isCurrentLocked(s *session) bool {
	return c.session == s && !s.stopped
}

// scheduleLocked arms the session's single wakeup, replacing any earlier one.
func (c *Controller) scheduleLocked(s *session, d time.Duration) {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.seq++
	seq := s.seq
	// wake runs on its own goroutine so it is free to rearm the clock.
	s.timer = c.clock.AfterFunc(d, func() { go c.wake(s, seq) })
}

func (c *Controller) wake(s *session, seq uint64) {
	c.mu.Lock()
	if !c.isCurrentLocked(s) || s.seq != seq {
		c.mu.Unlock()
		return
	}
	s.timer = nil
	s.attempt++
	attempt := s.attempt
	jobID := s.job.ID
	c.mu.Unlock()

	c.logger.V(1).Info("Checking generation status", "generationId", jobID, "attempt", attempt)
	status, err := c.client.FetchStatus(s.ctx, jobID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isCurrentLocked(s) {
		c.logger.V(1).Info("Discarding status response for stopped session", "session", s.id, "attempt", attempt)
		return
	}
	now := c.clock.Now()

	if err != nil {
		c.handleFailureLocked(s, err, now)
		return
	}

	c.observed.Stage = status.Stage
	if status.IsSubstantive() {
		c.observed.Result = status.Clone()
	}

	reason, stop := c.evaluate(s, status, now)
	if !stop {
		c.scheduleLocked(s, c.config.Interval)
	}
	c.emitLocked(s, EventStatus, "", nil)
	if stop {
		c.stopLocked(s, reason, nil)
	}
}

func (c *Controller) handleFailureLocked(s *session, err error, now time.Time) {
	if errors.Is(err, client.ErrConnectionLost) {
		c.stopLocked(s, ReasonConnectionLost, err)
		return
	}

	c.logger.V(1).Info("Status check failed, will retry", "session", s.id, "attempt", s.attempt, "error", err.Error())
	if reason, stop := c.capReached(s, now); stop {
		c.stopLocked(s, reason, err)
		return
	}
	c.scheduleLocked(s, c.config.Interval)
	c.emitLocked(s, EventRetry, "", err)
}

// evaluate applies the stop conditions to a successful response. An error
// stage only ends the session once it carries a message; a stage outside
// the known set ends it immediately.
func (c *Controller) evaluate(s *session, st *models.GenerationStatus, now time.Time) (StopReason, bool) {
	switch {
	case st.HasArtifact():
		return ReasonArtifactReady, true
	case st.Stage == models.BuildStatusSuccess:
		return ReasonSucceeded, true
	case st.Stage == models.BuildStatusError && st.Error != "":
		return ReasonFailed, true
	case !st.Stage.IsKnown():
		return ReasonUnexpectedStage, true
	}
	return c.capReached(s, now)
}

func (c *Controller) capReached(s *session, now time.Time) (StopReason, bool) {
	if s.attempt >= c.config.MaxAttempts {
		return ReasonAttemptLimit, true
	}
	elapsed := now.Sub(s.startedAt)
	if elapsed > c.config.HardTimeout {
		return ReasonHardDeadline, true
	}
	if elapsed > c.config.SoftTimeout {
		return ReasonSoftDeadline, true
	}
	return "", false
}

func (c *Controller) stopLocked(s *session, reason StopReason, cause error) {
	if s.stopped {
		return
	}
	s.stopped = true
	s.seq++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.cancel()
	c.state = StateStopped

	now := c.clock.Now()
	s.outcome = Outcome{
		SessionID: s.id,
		JobID:     s.job.ID,
		Reason:    reason,
		Attempts:  s.attempt,
		Elapsed:   now.Sub(s.startedAt),
		Observed:  c.observed.clone(),
		Err:       c.outcomeErr(reason, cause),
	}

	c.logger.Info("Polling stopped", "session", s.id, "generationId", s.job.ID,
		"reason", string(reason), "attempts", s.attempt, "stage", string(c.observed.Stage))
	c.emitLocked(s, EventStopped, reason, s.outcome.Err)
	close(s.done)
}

func (c *Controller) outcomeErr(reason StopReason, cause error) error {
	switch reason {
	case ReasonConnectionLost:
		if cause != nil {
			return cause
		}
	case ReasonFailed:
		if r := c.observed.Result; r != nil && r.Error != "" {
			return fmt.Errorf("%w: %s", ErrGenerationFailed, r.Error)
		}
	case ReasonUnexpectedStage:
		return fmt.Errorf("%w: unexpected build status %q", ErrGenerationFailed, c.observed.Stage)
	}
	return reason.Err()
}

func (c *Controller) emitLocked(s *session, kind EventKind, reason StopReason, err error) {
	if c.observer == nil {
		return
	}
	c.observer.Notify(Event{
		Kind:      kind,
		SessionID: s.id,
		JobID:     s.job.ID,
		RepoURL:   s.job.RepoURL,
		Attempt:   s.attempt,
		StartedAt: s.startedAt,
		At:        c.clock.Now(),
		Observed:  c.observed.clone(),
		Reason:    reason,
		Err:       err,
	})
}
