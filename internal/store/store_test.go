package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fentz26/dockgen/internal/models"
	"github.com/google/go-cmp/cmp"
)

func TestNew(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "nested", "test.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer s.Close()

	// Verify file was created
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}

	// Migrations are idempotent
	s2, err := New(dbPath)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	s2.Close()
}

func sampleSession(jobID string, stoppedAt time.Time) *models.SessionRecord {
	return &models.SessionRecord{
		JobID:      jobID,
		RepoURL:    "https://github.com/acme/app",
		StopReason: "artifact_ready",
		Stage:      models.BuildStatusSuccess,
		Attempts:   4,
		TechStack:  []string{"Node.js", "Express"},
		Dockerfile: "FROM node:20\nCMD [\"npm\", \"start\"]\n",
		StartedAt:  stoppedAt.Add(-7 * time.Second),
		StoppedAt:  stoppedAt,
	}
}

func TestSessionCRUD(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	now := time.Now().UTC().Truncate(time.Millisecond)
	rec := sampleSession("65f0c2a9e4b0a1b2c3d4e5f6", now)
	if err := s.SaveSession(rec); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}
	if rec.ID == "" {
		t.Fatal("SaveSession should assign an ID")
	}

	got, err := s.GetSession(rec.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got == nil {
		t.Fatal("Expected session, got nil")
	}
	timeEqual := cmp.Comparer(func(a, b time.Time) bool { return a.Equal(b) })
	if diff := cmp.Diff(rec, got, timeEqual); diff != "" {
		t.Errorf("Session mismatch (-want +got):\n%s", diff)
	}

	// Replace keeps a single row
	rec.Attempts = 5
	if err := s.SaveSession(rec); err != nil {
		t.Fatalf("SaveSession replace failed: %v", err)
	}
	list, err := s.ListSessions(0)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(list) != 1 || list[0].Attempts != 5 {
		t.Errorf("Expected one session with 5 attempts, got %+v", list)
	}

	missing, err := s.GetSession("does-not-exist")
	if err != nil {
		t.Fatalf("GetSession for missing failed: %v", err)
	}
	if missing != nil {
		t.Error("Expected nil for missing session")
	}
}

func TestSessionWithoutTechStack(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	rec := &models.SessionRecord{
		JobID:      "65f0c2a9e4b0a1b2c3d4e5f6",
		RepoURL:    "https://github.com/acme/app",
		StopReason: "connection_lost",
		Error:      "connection to the generation service was lost",
		StartedAt:  time.Now().UTC(),
		StoppedAt:  time.Now().UTC(),
	}
	if err := s.SaveSession(rec); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}
	got, err := s.GetSession(rec.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if len(got.TechStack) != 0 {
		t.Errorf("Expected empty tech stack, got %v", got.TechStack)
	}
	if got.Stage != "" {
		t.Errorf("Expected empty stage, got %q", got.Stage)
	}
	if got.Error != rec.Error {
		t.Errorf("Expected error %q, got %q", rec.Error, got.Error)
	}
}

func TestGetSessionByJobAndList(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	base := time.Now().UTC()
	older := sampleSession("job-a-00000000000000000", base.Add(-time.Hour))
	older.StopReason = "canceled"
	newer := sampleSession("job-a-00000000000000000", base)
	other := sampleSession("job-b-00000000000000000", base.Add(-time.Minute))
	for _, rec := range []*models.SessionRecord{older, newer, other} {
		if err := s.SaveSession(rec); err != nil {
			t.Fatalf("SaveSession failed: %v", err)
		}
	}

	got, err := s.GetSessionByJob("job-a-00000000000000000")
	if err != nil {
		t.Fatalf("GetSessionByJob failed: %v", err)
	}
	if got == nil || got.ID != newer.ID {
		t.Errorf("Expected most recent session %s, got %+v", newer.ID, got)
	}

	none, err := s.GetSessionByJob("unknown")
	if err != nil || none != nil {
		t.Errorf("Expected nil, nil for unknown job, got %+v, %v", none, err)
	}

	list, err := s.ListSessions(2)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("Expected 2 sessions, got %d", len(list))
	}
	if list[0].ID != newer.ID || list[1].ID != other.ID {
		t.Errorf("Unexpected order: %s, %s", list[0].ID, list[1].ID)
	}
}

func TestDecisions(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	d, err := s.WriteDecision("session-1", "poll.retry", "abc123", "timeout", "attempt 1")
	if err != nil {
		t.Fatalf("WriteDecision failed: %v", err)
	}
	if d.ID == "" {
		t.Error("Decision ID should not be empty")
	}
	if _, err := s.WriteDecision("session-1", "poll.stop", "def456", "artifact_ready", ""); err != nil {
		t.Fatalf("WriteDecision failed: %v", err)
	}
	if _, err := s.WriteDecision("session-2", "poll.stop", "0000", "canceled", ""); err != nil {
		t.Fatalf("WriteDecision failed: %v", err)
	}

	got, err := s.ListDecisions("session-1")
	if err != nil {
		t.Fatalf("ListDecisions failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 decisions, got %d", len(got))
	}
	if got[0].Action != "poll.retry" || got[1].Action != "poll.stop" {
		t.Errorf("Unexpected decision order: %s, %s", got[0].Action, got[1].Action)
	}
	if got[1].Details != "" {
		t.Errorf("Expected empty details, got %q", got[1].Details)
	}
}

func TestConcurrentWrites(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.WriteDecision("session-1", "poll.retry", "hash", "timeout", ""); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("Concurrent write failed: %v", err)
	}

	got, err := s.ListDecisions("session-1")
	if err != nil {
		t.Fatalf("ListDecisions failed: %v", err)
	}
	if len(got) != 20 {
		t.Errorf("Expected 20 decisions, got %d", len(got))
	}
}

func TestPing(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func newTestStore(t *testing.T) *Store {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return s
}
