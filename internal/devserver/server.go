// Package devserver is a stand-in for the generation backend. Jobs advance
// through their stages on a fixed schedule and return canned output.
package devserver

import (
	"context"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fentz26/dockgen/internal/models"
	"github.com/go-logr/logr"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"k8s.io/utils/clock"
)

// Defaults for Config.
const (
	DefaultStep       = 2 * time.Second
	DefaultFailMarker = "fail"
	DefaultListenAddr = ":3001"
)

// Config controls how jobs progress.
type Config struct {
	// Step is how long a job stays in each non-terminal stage.
	Step time.Duration
	// FailMarker makes jobs whose repository URL contains it end in error.
	FailMarker string
	// Clock drives job progression.
	Clock clock.PassiveClock
}

func (c Config) withDefaults() Config {
	if c.Step <= 0 {
		c.Step = DefaultStep
	}
	if c.FailMarker == "" {
		c.FailMarker = DefaultFailMarker
	}
	if c.Clock == nil {
		c.Clock = clock.RealClock{}
	}
	return c
}

type job struct {
	id        string
	repoURL   string
	createdAt time.Time
}

// Server holds the in-memory jobs and the fiber application serving them.
type Server struct {
	cfg    Config
	logger logr.Logger
	app    *fiber.App

	mu   sync.Mutex
	jobs map[string]*job
}

// New creates a server with its routes registered.
func New(cfg Config, logger logr.Logger) *Server {
	s := &Server{
		cfg:    cfg.withDefaults(),
		logger: logger,
		jobs:   make(map[string]*job),
	}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(recover.New())
	app.Use(s.logRequest)

	app.Get("/health", s.health)

	gen := app.Group("/api").Group("/generation")
	gen.Post("/generate", s.generate)
	gen.Get("/status/:id", s.status)
	gen.Get("/history", s.history)
	gen.Post("/push-dockerfile", s.push)

	s.app = app
	return s
}

// App returns the fiber application, for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until ctx is canceled.
func (s *Server) Listen(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is canceled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		s.app.Shutdown()
	}()
	s.logger.Info("Development backend listening", "addr", ln.Addr().String())
	return s.app.Listener(ln)
}

func (s *Server) logRequest(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	s.logger.V(1).Info("Request", "method", c.Method(), "path", c.Path(),
		"status", c.Response().StatusCode(), "duration", time.Since(start).String())
	return err
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

type generateRequest struct {
	GithubURL   string `json:"githubUrl"`
	GithubToken string `json:"githubToken"`
}

func (s *Server) generate(c *fiber.Ctx) error {
	var req generateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid request body",
		})
	}
	if strings.TrimSpace(req.GithubURL) == "" || strings.TrimSpace(req.GithubToken) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "GitHub URL and token are required",
		})
	}

	j := &job{
		id:        strings.ReplaceAll(uuid.New().String(), "-", ""),
		repoURL:   strings.TrimSpace(req.GithubURL),
		createdAt: s.cfg.Clock.Now(),
	}
	s.mu.Lock()
	s.jobs[j.id] = j
	s.mu.Unlock()

	s.logger.Info("Generation started", "generationId", j.id, "repo", j.repoURL)
	return c.JSON(fiber.Map{
		"success":      true,
		"generationId": j.id,
		"message":      "Dockerfile generation started",
	})
}

func (s *Server) status(c *fiber.Ctx) error {
	s.mu.Lock()
	j, ok := s.jobs[c.Params("id")]
	s.mu.Unlock()
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"error":   "Generation not found",
		})
	}
	return c.JSON(fiber.Map{
		"success":    true,
		"generation": s.snapshot(j, s.cfg.Clock.Now()),
	})
}

func (s *Server) history(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 10)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	s.mu.Lock()
	all := make([]*job, 0, len(s.jobs))
	for _, j := range s.jobs {
		all = append(all, j)
	}
	s.mu.Unlock()
	sort.Slice(all, func(a, b int) bool {
		if all[a].createdAt.Equal(all[b].createdAt) {
			return all[a].id < all[b].id
		}
		return all[a].createdAt.After(all[b].createdAt)
	})

	now := s.cfg.Clock.Now()
	generations := []wireGeneration{}
	for i := (page - 1) * limit; i < len(all) && i < page*limit; i++ {
		generations = append(generations, s.snapshot(all[i], now))
	}
	return c.JSON(fiber.Map{
		"success":     true,
		"generations": generations,
		"pagination": fiber.Map{
			"page":  page,
			"limit": limit,
			"total": len(all),
		},
	})
}

type pushRequest struct {
	GenerationID  string `json:"generationId"`
	CommitMessage string `json:"commitMessage"`
}

func (s *Server) push(c *fiber.Ctx) error {
	var req pushRequest
	if err := c.BodyParser(&req); err != nil || req.GenerationID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Generation ID is required",
		})
	}

	s.mu.Lock()
	j, ok := s.jobs[req.GenerationID]
	s.mu.Unlock()
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"error":   "Generation not found",
		})
	}
	if s.snapshot(j, s.cfg.Clock.Now()).Dockerfile == "" {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"error":   "Dockerfile is not ready yet",
		})
	}

	sha := strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
	s.logger.Info("Dockerfile pushed", "generationId", j.id, "commit", sha, "message", req.CommitMessage)
	return c.JSON(fiber.Map{
		"success":   true,
		"message":   "Dockerfile pushed to repository",
		"commitSha": sha,
		"url":       strings.TrimSuffix(j.repoURL, ".git") + "/blob/main/Dockerfile",
	})
}

type wireGeneration struct {
	ID          string             `json:"id"`
	GithubURL   string             `json:"githubUrl"`
	TechStack   []string           `json:"techStack"`
	Dockerfile  string             `json:"dockerfile"`
	BuildStatus models.BuildStatus `json:"buildStatus"`
	ImageID     string             `json:"imageId,omitempty"`
	Error       string             `json:"error,omitempty"`
	CreatedAt   string             `json:"createdAt"`
	UpdatedAt   string             `json:"updatedAt"`
}

// snapshot derives a job's state at now: one step pending, one step
// building, then terminal.
func (s *Server) snapshot(j *job, now time.Time) wireGeneration {
	g := wireGeneration{
		ID:          j.id,
		GithubURL:   j.repoURL,
		TechStack:   []string{},
		BuildStatus: models.BuildStatusPending,
		CreatedAt:   j.createdAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:   j.createdAt.UTC().Format(time.RFC3339Nano),
	}
	step := int(now.Sub(j.createdAt) / s.cfg.Step)
	if step < 1 {
		return g
	}

	t := templateFor(j.repoURL)
	g.TechStack = append(g.TechStack, t.stack...)
	g.BuildStatus = models.BuildStatusBuilding
	g.UpdatedAt = j.createdAt.Add(s.cfg.Step).UTC().Format(time.RFC3339Nano)
	if step < 2 {
		return g
	}

	g.UpdatedAt = j.createdAt.Add(2 * s.cfg.Step).UTC().Format(time.RFC3339Nano)
	if strings.Contains(strings.ToLower(j.repoURL), strings.ToLower(s.cfg.FailMarker)) {
		g.BuildStatus = models.BuildStatusError
		g.Error = "Docker build failed: could not resolve build dependencies"
		return g
	}
	g.BuildStatus = models.BuildStatusSuccess
	g.Dockerfile = t.dockerfile
	g.ImageID = "sha256:" + j.id
	return g
}
