// Package models defines the core domain types for dockgen.
package models

import (
	"slices"
	"time"
)

// BuildStatus represents the lifecycle stage reported by the backend.
type BuildStatus string

const (
	BuildStatusPending  BuildStatus = "pending"
	BuildStatusBuilding BuildStatus = "building"
	BuildStatusSuccess  BuildStatus = "success"
	BuildStatusError    BuildStatus = "error"
)

// IsTerminal reports whether the stage ends a generation.
func (s BuildStatus) IsTerminal() bool {
	return s == BuildStatusSuccess || s == BuildStatusError
}

// IsKnown reports whether the stage is one the backend documents.
func (s BuildStatus) IsKnown() bool {
	switch s {
	case BuildStatusPending, BuildStatusBuilding, BuildStatusSuccess, BuildStatusError:
		return true
	}
	return false
}

// GenerationJob is a started generation tracked by a server-assigned ID.
type GenerationJob struct {
	ID      string `json:"id"`
	RepoURL string `json:"repo_url"`
	Message string `json:"message,omitempty"`
}

func (j *GenerationJob) String() string {
	return j.ID + " (" + j.RepoURL + ")"
}

// GenerationStatus is one immutable snapshot of a job as seen by the server.
type GenerationStatus struct {
	ID         string      `json:"id"`
	RepoURL    string      `json:"githubUrl"`
	TechStack  []string    `json:"techStack"`
	Dockerfile string      `json:"dockerfile"`
	Stage      BuildStatus `json:"buildStatus"`
	ImageID    string      `json:"imageId,omitempty"`
	Error      string      `json:"error,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}

// HasArtifact reports whether a Dockerfile was returned.
func (s *GenerationStatus) HasArtifact() bool {
	return s != nil && s.Dockerfile != ""
}

// IsSubstantive reports whether the snapshot carries enough to replace the
// previously observed result.
func (s *GenerationStatus) IsSubstantive() bool {
	if s == nil {
		return false
	}
	return s.Dockerfile != "" || len(s.TechStack) > 0 || s.Stage.IsTerminal()
}

// Clone returns a deep copy so callers never share the tech stack slice.
func (s *GenerationStatus) Clone() *GenerationStatus {
	if s == nil {
		return nil
	}
	c := *s
	c.TechStack = slices.Clone(s.TechStack)
	return &c
}

// PushResult is the server's answer to a push of the generated Dockerfile.
type PushResult struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	CommitSHA string `json:"commitSha,omitempty"`
	URL       string `json:"url,omitempty"`
}

// HistoryPage is one page of past generations.
type HistoryPage struct {
	Generations []GenerationStatus `json:"generations"`
	Page        int                `json:"page"`
	Limit       int                `json:"limit"`
	Total       int                `json:"total"`
}

// SessionRecord summarizes one local poll session.
type SessionRecord struct {
	ID         string      `json:"id"`
	JobID      string      `json:"job_id"`
	RepoURL    string      `json:"repo_url"`
	StopReason string      `json:"stop_reason"`
	Stage      BuildStatus `json:"stage"`
	Attempts   int         `json:"attempts"`
	TechStack  []string    `json:"tech_stack"`
	Dockerfile string      `json:"dockerfile,omitempty"`
	Error      string      `json:"error,omitempty"`
	StartedAt  time.Time   `json:"started_at"`
	StoppedAt  time.Time   `json:"stopped_at"`
}

// Decision is an audit record of a controller decision.
type Decision struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	Action     string    `json:"action"`
	InputsHash string    `json:"inputs_hash"`
	Outcome    string    `json:"outcome"`
	Details    string    `json:"details,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
