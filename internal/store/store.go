// Package store provides SQLite-backed persistence for dockgen sessions.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fentz26/dockgen/internal/models"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// DefaultListLimit caps ListSessions when no limit is given.
const DefaultListLimit = 20

// Store provides access to the dockgen SQLite database.
type Store struct {
	db *sql.DB
}

// New creates a new Store and runs migrations.
func New(dbPath string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer at a time
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate runs idempotent schema migrations.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		job_id TEXT NOT NULL,
		repo_url TEXT NOT NULL,
		stop_reason TEXT NOT NULL,
		stage TEXT,
		attempts INTEGER NOT NULL DEFAULT 0,
		tech_stack TEXT,
		dockerfile TEXT,
		error TEXT,
		started_at DATETIME NOT NULL,
		stopped_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS decisions (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		action TEXT NOT NULL,
		inputs_hash TEXT NOT NULL,
		outcome TEXT NOT NULL,
		details TEXT,
		timestamp DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_job_id ON sessions(job_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_stopped_at ON sessions(stopped_at);
	CREATE INDEX IF NOT EXISTS idx_decisions_session_id ON decisions(session_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// --- Session Operations ---

// SaveSession inserts or replaces a session record. A record without an ID
// is assigned one.
func (s *Store) SaveSession(rec *models.SessionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	stack, err := json.Marshal(rec.TechStack)
	if err != nil {
		return fmt.Errorf("encode tech stack: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO sessions
			(id, job_id, repo_url, stop_reason, stage, attempts, tech_stack, dockerfile, error, started_at, stopped_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.JobID, rec.RepoURL, rec.StopReason, string(rec.Stage), rec.Attempts,
		string(stack), rec.Dockerfile, rec.Error, rec.StartedAt.UTC(), rec.StoppedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

const sessionColumns = `id, job_id, repo_url, stop_reason, stage, attempts, tech_stack, dockerfile, error, started_at, stopped_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row scanner) (*models.SessionRecord, error) {
	rec := &models.SessionRecord{}
	var stage, stack, dockerfile, errText sql.NullString
	if err := row.Scan(&rec.ID, &rec.JobID, &rec.RepoURL, &rec.StopReason, &stage, &rec.Attempts,
		&stack, &dockerfile, &errText, &rec.StartedAt, &rec.StoppedAt); err != nil {
		return nil, err
	}
	rec.Stage = models.BuildStatus(stage.String)
	rec.Dockerfile = dockerfile.String
	rec.Error = errText.String
	if stack.Valid && stack.String != "" {
		if err := json.Unmarshal([]byte(stack.String), &rec.TechStack); err != nil {
			return nil, fmt.Errorf("decode tech stack: %w", err)
		}
	}
	return rec, nil
}

// GetSession retrieves a session by ID. It returns nil when none exists.
func (s *Store) GetSession(id string) (*models.SessionRecord, error) {
	rec, err := scanSession(s.db.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}
	return rec, nil
}

// GetSessionByJob returns the most recent session for a generation ID.
func (s *Store) GetSessionByJob(jobID string) (*models.SessionRecord, error) {
	rec, err := scanSession(s.db.QueryRow(
		`SELECT `+sessionColumns+` FROM sessions WHERE job_id = ? ORDER BY stopped_at DESC LIMIT 1`,
		jobID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query session by job: %w", err)
	}
	return rec, nil
}

// ListSessions returns the most recently stopped sessions first.
func (s *Store) ListSessions(limit int) ([]models.SessionRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.Query(
		`SELECT `+sessionColumns+` FROM sessions ORDER BY stopped_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, *rec)
	}
	return sessions, rows.Err()
}

// --- Decision Operations ---

// WriteDecision records a controller decision for a session.
func (s *Store) WriteDecision(sessionID, action, inputsHash, outcome, details string) (*models.Decision, error) {
	d := &models.Decision{
		ID:         uuid.New().String(),
		SessionID:  sessionID,
		Action:     action,
		InputsHash: inputsHash,
		Outcome:    outcome,
		Details:    details,
		Timestamp:  time.Now().UTC(),
	}

	_, err := s.db.Exec(
		`INSERT INTO decisions (id, session_id, action, inputs_hash, outcome, details, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.SessionID, d.Action, d.InputsHash, d.Outcome, d.Details, d.Timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert decision: %w", err)
	}
	return d, nil
}

// ListDecisions returns a session's decisions in the order they were made.
func (s *Store) ListDecisions(sessionID string) ([]models.Decision, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, action, inputs_hash, outcome, details, timestamp
		FROM decisions WHERE session_id = ? ORDER BY timestamp ASC, rowid ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	var decisions []models.Decision
	for rows.Next() {
		var d models.Decision
		var details sql.NullString
		if err := rows.Scan(&d.ID, &d.SessionID, &d.Action, &d.InputsHash, &d.Outcome, &details, &d.Timestamp); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		d.Details = details.String
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}
