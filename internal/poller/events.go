package poller

import (
	"errors"
	"time"

	"github.com/fentz26/dockgen/internal/client"
	"github.com/fentz26/dockgen/internal/models"
)

// Errors reported through stop reasons.
var (
	ErrSessionTimeout   = errors.New("generation is taking longer than expected, try again")
	ErrGenerationFailed = errors.New("generation failed")
	ErrNotPolling       = errors.New("no generation session")
)

// State is the controller lifecycle.
type State int

const (
	StateIdle State = iota
	StatePolling
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// StopReason explains why a session stopped.
type StopReason string

const (
	ReasonArtifactReady   StopReason = "artifact_ready"
	ReasonSucceeded       StopReason = "succeeded"
	ReasonFailed          StopReason = "failed"
	ReasonUnexpectedStage StopReason = "unexpected_stage"
	ReasonAttemptLimit    StopReason = "attempt_limit"
	ReasonSoftDeadline    StopReason = "soft_deadline"
	ReasonHardDeadline    StopReason = "hard_deadline"
	ReasonConnectionLost  StopReason = "connection_lost"
	ReasonCanceled        StopReason = "canceled"
	ReasonPreempted       StopReason = "preempted"
)

// IsSessionTimeout reports whether the session hit one of its caps.
func (r StopReason) IsSessionTimeout() bool {
	return r == ReasonAttemptLimit || r == ReasonSoftDeadline || r == ReasonHardDeadline
}

// Err maps the reason onto the error taxonomy. Completion and manual stops
// map to nil.
func (r StopReason) Err() error {
	switch {
	case r.IsSessionTimeout():
		return ErrSessionTimeout
	case r == ReasonConnectionLost:
		return client.ErrConnectionLost
	case r == ReasonFailed, r == ReasonUnexpectedStage:
		return ErrGenerationFailed
	}
	return nil
}

// Observation is what the controller has learned about the current job.
// Result is only replaced by responses that carry a Dockerfile, a tech
// stack or a terminal stage; Stage always follows the latest response.
type Observation struct {
	Result *models.GenerationStatus
	Stage  models.BuildStatus
}

func (o Observation) clone() Observation {
	return Observation{Result: o.Result.Clone(), Stage: o.Stage}
}

// EventKind distinguishes controller events.
type EventKind int

const (
	// EventStatus follows every merged status response.
	EventStatus EventKind = iota
	// EventRetry follows a failed status check that will be repeated.
	EventRetry
	// EventStopped is the last event of a session.
	EventStopped
)

func (k EventKind) String() string {
	switch k {
	case EventStatus:
		return "status"
	case EventRetry:
		return "retry"
	case EventStopped:
		return "stopped"
	}
	return "unknown"
}

// Event is delivered to the Observer.
type Event struct {
	Kind      EventKind
	SessionID string
	JobID     string
	RepoURL   string
	Attempt   int
	StartedAt time.Time
	At        time.Time
	Observed  Observation
	// Reason is set on EventStopped.
	Reason StopReason
	// Err is the failure behind a retry, or the terminal error on stop.
	Err error
}

// Observer receives controller events. Notify is called with the
// controller lock held: it must return promptly and must not call back
// into the Controller.
type Observer interface {
	Notify(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// Notify calls f(e).
func (f ObserverFunc) Notify(e Event) { f(e) }

type multiObserver []Observer

func (m multiObserver) Notify(e Event) {
	for _, o := range m {
		o.Notify(e)
	}
}

// Observers fans events out to every non-nil observer in order.
func Observers(obs ...Observer) Observer {
	var m multiObserver
	for _, o := range obs {
		if o != nil {
			m = append(m, o)
		}
	}
	return m
}

// Outcome summarizes a stopped session.
type Outcome struct {
	SessionID string
	JobID     string
	Reason    StopReason
	Attempts  int
	Elapsed   time.Duration
	Observed  Observation
	Err       error
}
