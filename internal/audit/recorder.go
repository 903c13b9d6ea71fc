// Package audit records poll controller decisions to the session store.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"

	"github.com/fentz26/dockgen/internal/models"
	"github.com/fentz26/dockgen/internal/poller"
	"github.com/fentz26/dockgen/internal/store"
	"github.com/go-logr/logr"
)

// Decision actions.
const (
	ActionRetry = "poll.retry"
	ActionStop  = "poll.stop"
)

const queueSize = 256

// Recorder is a poller.Observer that persists retry and stop decisions and
// a session record for every stopped session. Writes happen on a background
// goroutine so Notify never blocks the controller.
type Recorder struct {
	store  *store.Store
	logger logr.Logger

	mu     sync.Mutex
	closed bool
	queue  chan poller.Event
	done   chan struct{}
}

// NewRecorder creates a recorder and starts its writer. Call Close to flush.
func NewRecorder(s *store.Store, logger logr.Logger) *Recorder {
	r := &Recorder{
		store:  s,
		logger: logger,
		queue:  make(chan poller.Event, queueSize),
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

// Notify implements poller.Observer.
func (r *Recorder) Notify(e poller.Event) {
	if e.Kind == poller.EventStatus {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- e:
	default:
		r.logger.Info("Audit queue full, dropping event", "session", e.SessionID, "kind", e.Kind.String())
	}
}

// Close stops accepting events and waits until queued ones are written.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	<-r.done
	return nil
}

func (r *Recorder) run() {
	defer close(r.done)
	for e := range r.queue {
		r.record(e)
	}
}

// pollInputs identifies the decision. The credential is never part of it.
type pollInputs struct {
	JobID   string `json:"job_id"`
	RepoURL string `json:"repo_url"`
	Attempt int    `json:"attempt"`
}

func (r *Recorder) record(e poller.Event) {
	hash := hashInputs(pollInputs{JobID: e.JobID, RepoURL: e.RepoURL, Attempt: e.Attempt})
	details := ""
	if e.Err != nil {
		details = e.Err.Error()
	}

	switch e.Kind {
	case poller.EventRetry:
		if _, err := r.store.WriteDecision(e.SessionID, ActionRetry, hash, "retry", details); err != nil {
			r.logger.Error(err, "Failed to record retry decision", "session", e.SessionID)
		}
	case poller.EventStopped:
		if _, err := r.store.WriteDecision(e.SessionID, ActionStop, hash, string(e.Reason), details); err != nil {
			r.logger.Error(err, "Failed to record stop decision", "session", e.SessionID)
		}
		if err := r.store.SaveSession(sessionRecord(e)); err != nil {
			r.logger.Error(err, "Failed to save session", "session", e.SessionID)
		}
	}
}

func sessionRecord(e poller.Event) *models.SessionRecord {
	rec := &models.SessionRecord{
		ID:         e.SessionID,
		JobID:      e.JobID,
		RepoURL:    e.RepoURL,
		StopReason: string(e.Reason),
		Stage:      e.Observed.Stage,
		Attempts:   e.Attempt,
		StartedAt:  e.StartedAt,
		StoppedAt:  e.At,
	}
	if res := e.Observed.Result; res != nil {
		rec.TechStack = res.TechStack
		rec.Dockerfile = res.Dockerfile
		rec.Error = res.Error
	}
	if rec.Error == "" && e.Err != nil {
		rec.Error = e.Err.Error()
	}
	return rec
}

// hashInputs creates a SHA256 hash of the inputs for reproducibility.
func hashInputs(inputs interface{}) string {
	data, err := json.Marshal(inputs)
	if err != nil {
		return "hash_error"
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
