// Package client is the HTTP client for the Dockerfile generation API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fentz26/dockgen/internal/models"
	"github.com/go-logr/logr"
	"k8s.io/utils/clock"
)

const (
	// DefaultTimeout bounds every single HTTP call.
	DefaultTimeout = 10 * time.Second
	// DefaultStatusAttempts is how many times a status check is tried on
	// transport failure.
	DefaultStatusAttempts = 3
	// DefaultBackoff is multiplied by the attempt number between status retries.
	DefaultBackoff = time.Second
	// MinJobIDLength is the shortest generation ID accepted from the server.
	MinJobIDLength = 20
	// DefaultBaseURL is used when no API address is configured.
	DefaultBaseURL = "http://localhost:3001/api"
)

// Client wraps HTTP calls to the generation API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	attempts   int
	backoff    time.Duration
	clock      clock.Clock
	logger     logr.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithStatusRetry sets the attempt bound and base backoff for status checks.
func WithStatusRetry(attempts int, backoff time.Duration) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.attempts = attempts
		}
		if backoff >= 0 {
			c.backoff = backoff
		}
	}
}

// WithClock sets the clock used for retry backoff.
func WithClock(clk clock.Clock) Option {
	return func(c *Client) { c.clock = clk }
}

// WithLogger sets the logger.
func WithLogger(l logr.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a new API client for baseURL, e.g. http://localhost:3001/api.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		timeout:    DefaultTimeout,
		attempts:   DefaultStatusAttempts,
		backoff:    DefaultBackoff,
		clock:      clock.RealClock{},
		logger:     logr.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API base the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type generateRequest struct {
	GithubURL   string `json:"githubUrl"`
	GithubToken string `json:"githubToken"`
}

type generateResponse struct {
	Success      bool            `json:"success"`
	GenerationID json.RawMessage `json:"generationId"`
	Message      string          `json:"message"`
}

// generationID accepts the identifier as a JSON string or number.
func (r *generateResponse) generationID() string {
	raw := bytes.TrimSpace(r.GenerationID)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return string(raw)
}

// StartGeneration asks the server to start generating a Dockerfile for
// repoURL. It is never retried.
func (c *Client) StartGeneration(ctx context.Context, repoURL, credential string) (*models.GenerationJob, error) {
	repoURL = strings.TrimSpace(repoURL)
	if repoURL == "" || strings.TrimSpace(credential) == "" {
		return nil, fmt.Errorf("%w: repository URL and access token are required", ErrValidation)
	}

	body, status, err := c.send(ctx, http.MethodPost, "/generation/generate", generateRequest{
		GithubURL:   repoURL,
		GithubToken: credential,
	})
	if err != nil {
		return nil, err
	}
	if !isSuccess(status) {
		return nil, requestError(status, body, "Failed to start generation")
	}

	var resp generateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode generate response: %v", ErrInvalidResponse, err)
	}

	id := resp.generationID()
	if len(id) < MinJobIDLength {
		c.logger.Info("Rejected generation ID", "length", len(id))
		return nil, fmt.Errorf("%w: generation ID %q is shorter than %d characters", ErrInvalidResponse, id, MinJobIDLength)
	}

	c.logger.V(1).Info("Generation started", "generationId", id, "repo", repoURL)
	return &models.GenerationJob{ID: id, RepoURL: repoURL, Message: resp.Message}, nil
}

type wireGeneration struct {
	ID         string   `json:"id"`
	GithubURL  string   `json:"githubUrl"`
	TechStack  []string `json:"techStack"`
	Dockerfile string   `json:"dockerfile"`
	Status     string   `json:"buildStatus"`
	ImageID    string   `json:"imageId"`
	Error      string   `json:"error"`
	CreatedAt  string   `json:"createdAt"`
	UpdatedAt  string   `json:"updatedAt"`
}

func (g *wireGeneration) toModel() *models.GenerationStatus {
	return &models.GenerationStatus{
		ID:         g.ID,
		RepoURL:    g.GithubURL,
		TechStack:  g.TechStack,
		Dockerfile: g.Dockerfile,
		Stage:      models.BuildStatus(g.Status),
		ImageID:    g.ImageID,
		Error:      g.Error,
		CreatedAt:  parseTime(g.CreatedAt),
		UpdatedAt:  parseTime(g.UpdatedAt),
	}
}

type statusResponse struct {
	Success    bool            `json:"success"`
	Generation *wireGeneration `json:"generation"`
}

// FetchStatus returns the current snapshot of a generation. Transport
// failures are retried with a linear backoff; HTTP error responses are not.
func (c *Client) FetchStatus(ctx context.Context, jobID string) (*models.GenerationStatus, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, fmt.Errorf("%w: generation ID is required", ErrValidation)
	}
	path := "/generation/status/" + url.PathEscape(jobID)

	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		body, status, err := c.send(ctx, http.MethodGet, path, nil)
		if err == nil {
			if !isSuccess(status) {
				return nil, requestError(status, body, "Failed to fetch generation status")
			}
			return decodeStatus(body)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = err
		c.logger.V(1).Info("Status request failed", "generationId", jobID, "attempt", attempt, "error", err.Error())
		if attempt == c.attempts {
			break
		}
		if err := c.sleep(ctx, c.backoff*time.Duration(attempt)); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func decodeStatus(body []byte) (*models.GenerationStatus, error) {
	var resp statusResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode status response: %v", ErrInvalidResponse, err)
	}
	if resp.Generation == nil {
		return nil, fmt.Errorf("%w: status response has no generation", ErrInvalidResponse)
	}
	return resp.Generation.toModel(), nil
}

type pushRequest struct {
	GenerationID  string `json:"generationId"`
	CommitMessage string `json:"commitMessage,omitempty"`
}

// PushArtifact asks the server to commit the generated Dockerfile to the
// repository. It is never retried.
func (c *Client) PushArtifact(ctx context.Context, jobID, commitMessage string) (*models.PushResult, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, fmt.Errorf("%w: generation ID is required", ErrValidation)
	}

	body, status, err := c.send(ctx, http.MethodPost, "/generation/push-dockerfile", pushRequest{
		GenerationID:  jobID,
		CommitMessage: commitMessage,
	})
	if err != nil {
		return nil, err
	}
	if !isSuccess(status) {
		return nil, requestError(status, body, "Failed to push Dockerfile to repository")
	}

	result := &models.PushResult{Success: true}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return nil, fmt.Errorf("%w: decode push response: %v", ErrInvalidResponse, err)
		}
	}
	return result, nil
}

type historyResponse struct {
	Success     bool             `json:"success"`
	Generations []wireGeneration `json:"generations"`
	Data        []wireGeneration `json:"data"`
	Pagination  struct {
		Page  int `json:"page"`
		Limit int `json:"limit"`
		Total int `json:"total"`
	} `json:"pagination"`
}

// History lists past generations, newest first.
func (c *Client) History(ctx context.Context, page, limit int) (*models.HistoryPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))

	body, status, err := c.send(ctx, http.MethodGet, "/generation/history?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if !isSuccess(status) {
		return nil, requestError(status, body, "Failed to fetch generation history")
	}

	var resp historyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode history response: %v", ErrInvalidResponse, err)
	}

	items := resp.Generations
	if items == nil {
		items = resp.Data
	}
	result := &models.HistoryPage{
		Generations: make([]models.GenerationStatus, len(items)),
		Page:        page,
		Limit:       limit,
		Total:       resp.Pagination.Total,
	}
	for i := range items {
		result.Generations[i] = *items[i].toModel()
	}
	if resp.Pagination.Page > 0 {
		result.Page = resp.Pagination.Page
	}
	if resp.Pagination.Limit > 0 {
		result.Limit = resp.Pagination.Limit
	}
	return result, nil
}

// CheckHealth reports whether the backend answers its liveness probe. The
// probe lives at the server root, outside the /api prefix.
func (c *Client) CheckHealth(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(c.baseURL, "/api")+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Info("Health check failed", "error", err.Error())
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return isSuccess(resp.StatusCode)
}

// send performs one HTTP call bounded by the client timeout. The returned
// error is non-nil only for transport failures, already classified.
func (c *Client) send(ctx context.Context, method, path string, data interface{}) ([]byte, int, error) {
	var reqBody io.Reader
	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			return nil, 0, err
		}
		reqBody = bytes.NewReader(jsonData)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		return nil, 0, classifyTransport(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		return nil, 0, classifyTransport(err)
	}
	return body, resp.StatusCode, nil
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := c.clock.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C():
		return nil
	}
}

func requestError(status int, body []byte, fallback string) error {
	var payload struct {
		Error string `json:"error"`
	}
	msg := fallback
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		msg = payload.Error
	}
	return &RequestError{StatusCode: status, Message: msg}
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
