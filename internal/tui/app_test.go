package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fentz26/dockgen/internal/client"
	"github.com/fentz26/dockgen/internal/models"
	"github.com/fentz26/dockgen/internal/poller"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	starts  []string
	stops   int
	startFn func() (*models.GenerationJob, error)
}

func (g *fakeGenerator) Start(ctx context.Context, repoURL, credential string) (*models.GenerationJob, error) {
	g.starts = append(g.starts, repoURL)
	if g.startFn != nil {
		return g.startFn()
	}
	return &models.GenerationJob{ID: "65f0c2a9e4b0a1b2c3d4e5f6", RepoURL: repoURL}, nil
}

func (g *fakeGenerator) Stop() bool {
	g.stops++
	return true
}

type fakeBackend struct {
	pushed []string
	page   *models.HistoryPage
}

func (b *fakeBackend) PushArtifact(ctx context.Context, jobID, commitMessage string) (*models.PushResult, error) {
	b.pushed = append(b.pushed, jobID+":"+commitMessage)
	return &models.PushResult{Success: true, Message: "Dockerfile pushed to repository"}, nil
}

func (b *fakeBackend) History(ctx context.Context, page, limit int) (*models.HistoryPage, error) {
	return b.page, nil
}

func (b *fakeBackend) CheckHealth(ctx context.Context) bool { return true }

func newTestApp(t *testing.T, opts Options) (*App, *fakeGenerator, *fakeBackend) {
	t.Helper()
	gen := &fakeGenerator{}
	backend := &fakeBackend{}
	app := New(gen, backend, NewEvents(), opts)
	app.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return app, gen, backend
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "ctrl+p":
		return tea.KeyMsg{Type: tea.KeyCtrlP}
	case "ctrl+s":
		return tea.KeyMsg{Type: tea.KeyCtrlS}
	case "ctrl+y":
		return tea.KeyMsg{Type: tea.KeyCtrlY}
	case "ctrl+r":
		return tea.KeyMsg{Type: tea.KeyCtrlR}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// run executes cmd and feeds its message back into the app.
func run(app *App, cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	if msg := cmd(); msg != nil {
		app.Update(msg)
	}
}

func event(kind poller.EventKind, attempt int, obs poller.Observation) pollEventMsg {
	return pollEventMsg(poller.Event{Kind: kind, JobID: "65f0c2a9e4b0a1b2c3d4e5f6", Attempt: attempt, Observed: obs})
}

func TestApp_SubmitRequiresBothFields(t *testing.T) {
	app, gen, _ := newTestApp(t, Options{RepoURL: "https://github.com/acme/app"})

	_, cmd := app.Update(key("enter"))
	assert.Nil(t, cmd)
	assert.Empty(t, gen.starts)
	assert.Contains(t, app.View(), "Please provide both GitHub URL and token")
}

func TestApp_GenerationFlow(t *testing.T) {
	app, gen, backend := newTestApp(t, Options{
		RepoURL:       "https://github.com/acme/app",
		Token:         "ghp_secret",
		CommitMessage: "Add Dockerfile",
		OutputPath:    filepath.Join(t.TempDir(), "Dockerfile"),
	})

	_, cmd := app.Update(key("enter"))
	require.NotNil(t, cmd)
	assert.True(t, app.generating)
	run(app, cmd)
	assert.Equal(t, []string{"https://github.com/acme/app"}, gen.starts)
	require.NotNil(t, app.job)

	app.Update(event(poller.EventStatus, 1, poller.Observation{
		Stage:  models.BuildStatusBuilding,
		Result: &models.GenerationStatus{Stage: models.BuildStatusBuilding, TechStack: []string{"Node.js"}},
	}))
	view := app.View()
	assert.Contains(t, view, "building")
	assert.Contains(t, view, "Node.js")
	assert.NotContains(t, view, "ghp_secret")

	final := poller.Observation{
		Stage: models.BuildStatusSuccess,
		Result: &models.GenerationStatus{
			Stage:      models.BuildStatusSuccess,
			TechStack:  []string{"Node.js"},
			Dockerfile: "FROM node:20\n",
		},
	}
	app.Update(event(poller.EventStatus, 2, final))
	stopped := event(poller.EventStopped, 2, final)
	stopped.Reason = poller.ReasonArtifactReady
	app.Update(stopped)
	assert.False(t, app.generating)
	assert.Contains(t, app.View(), "Dockerfile generated")

	_, cmd = app.Update(key("ctrl+s"))
	run(app, cmd)
	data, err := os.ReadFile(app.opts.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, "FROM node:20\n", string(data))

	_, cmd = app.Update(key("ctrl+p"))
	run(app, cmd)
	assert.Equal(t, []string{"65f0c2a9e4b0a1b2c3d4e5f6:Add Dockerfile"}, backend.pushed)
	assert.Contains(t, app.View(), "pushed")
}

func TestApp_CopyUsesClipboard(t *testing.T) {
	var copied string
	orig := writeClipboard
	writeClipboard = func(s string) error { copied = s; return nil }
	defer func() { writeClipboard = orig }()

	app, _, _ := newTestApp(t, Options{})
	_, cmd := app.Update(key("ctrl+y"))
	assert.Nil(t, cmd)
	assert.Contains(t, app.View(), "No Dockerfile to copy yet")

	app.result.SetResult(&models.GenerationStatus{Dockerfile: "FROM alpine\n"})
	_, cmd = app.Update(key("ctrl+y"))
	run(app, cmd)
	assert.Equal(t, "FROM alpine\n", copied)
	assert.Contains(t, app.View(), "copied")
}

func TestApp_StopAndFailures(t *testing.T) {
	app, gen, _ := newTestApp(t, Options{RepoURL: "https://github.com/acme/app", Token: "tok"})
	_, cmd := app.Update(key("enter"))
	run(app, cmd)

	app.Update(key("esc"))
	assert.Equal(t, 1, gen.stops)
	assert.False(t, app.generating)
	assert.Contains(t, app.View(), "Generation stopped")

	// A lost connection is reported in plain words.
	_, cmd = app.Update(key("enter"))
	run(app, cmd)
	lost := event(poller.EventStopped, 1, poller.Observation{})
	lost.Reason = poller.ReasonConnectionLost
	lost.Err = fmt.Errorf("%w: connection refused", client.ErrConnectionLost)
	app.Update(lost)
	assert.Contains(t, app.View(), "backend server is not reachable")
}

func TestApp_SessionTimeoutIsNotAnError(t *testing.T) {
	app, _, _ := newTestApp(t, Options{RepoURL: "https://github.com/acme/app", Token: "tok"})
	_, cmd := app.Update(key("enter"))
	run(app, cmd)

	capped := event(poller.EventStopped, 61, poller.Observation{Stage: models.BuildStatusBuilding})
	capped.Reason = poller.ReasonSoftDeadline
	capped.Err = poller.ErrSessionTimeout
	app.Update(capped)

	assert.False(t, app.generating)
	assert.Empty(t, app.errText)
	assert.Equal(t, poller.ErrSessionTimeout.Error(), app.message)
	assert.NotContains(t, app.View(), "Error:")
}

func TestApp_StartFailure(t *testing.T) {
	app, gen, _ := newTestApp(t, Options{RepoURL: "https://github.com/acme/app", Token: "tok"})
	gen.startFn = func() (*models.GenerationJob, error) {
		return nil, &client.RequestError{StatusCode: 400, Message: "Invalid GitHub URL"}
	}
	_, cmd := app.Update(key("enter"))
	run(app, cmd)
	assert.False(t, app.generating)
	assert.Contains(t, app.View(), "Invalid GitHub URL")

	gen.startFn = func() (*models.GenerationJob, error) { return nil, context.Canceled }
	_, cmd = app.Update(key("enter"))
	run(app, cmd)
	assert.NotContains(t, app.View(), "context canceled")
}

func TestApp_IgnoresEventsFromOtherSessions(t *testing.T) {
	app, _, _ := newTestApp(t, Options{RepoURL: "https://github.com/acme/app", Token: "tok"})
	_, cmd := app.Update(key("enter"))
	run(app, cmd)

	pre := event(poller.EventStopped, 3, poller.Observation{Stage: models.BuildStatusBuilding})
	pre.Reason = poller.ReasonPreempted
	app.Update(pre)
	assert.True(t, app.generating)

	other := pollEventMsg(poller.Event{Kind: poller.EventStatus, JobID: "another-job-0000000000", Attempt: 9})
	app.Update(other)
	assert.Zero(t, app.attempt)
}

func TestApp_HistoryOpensGeneration(t *testing.T) {
	app, _, backend := newTestApp(t, Options{})
	backend.page = &models.HistoryPage{
		Page: 1, Limit: 20, Total: 1,
		Generations: []models.GenerationStatus{{
			ID:         "65f0c2a9e4b0a1b2c3d4e5f6",
			RepoURL:    "https://github.com/acme/api",
			Stage:      models.BuildStatusSuccess,
			TechStack:  []string{"Go"},
			Dockerfile: "FROM golang:1.23\n",
		}},
	}

	_, cmd := app.Update(key("ctrl+r"))
	run(app, cmd)
	assert.Equal(t, modeHistory, app.mode)
	assert.Contains(t, app.View(), "https://github.com/acme/api")

	app.Update(key("enter"))
	assert.Equal(t, modeForm, app.mode)
	require.NotNil(t, app.job)
	assert.Equal(t, "65f0c2a9e4b0a1b2c3d4e5f6", app.job.ID)
	assert.Equal(t, "FROM golang:1.23\n", app.dockerfile())
	assert.Equal(t, "https://github.com/acme/api", app.form.RepoURL())
}

func TestSuggestions(t *testing.T) {
	s := NewSuggestions()
	s.SetItems([]string{"https://github.com/acme/api", "https://github.com/acme/web", "https://github.com/acme/api", ""})

	s.Update("acme")
	require.True(t, s.IsVisible())
	sel, ok := s.Selected()
	require.True(t, ok)
	assert.Equal(t, "https://github.com/acme/api", sel)

	s.Next()
	sel, _ = s.Selected()
	assert.Equal(t, "https://github.com/acme/web", sel)
	s.Next()
	sel, _ = s.Selected()
	assert.Equal(t, "https://github.com/acme/api", sel)

	s.Update("https://github.com/acme/web")
	assert.False(t, s.IsVisible(), "an exact match needs no suggestion")

	s.Update("")
	assert.False(t, s.IsVisible())
}

func TestEvents_NeverBlocks(t *testing.T) {
	e := NewEvents()
	for i := 0; i < eventBuffer*2; i++ {
		e.Notify(poller.Event{Attempt: i})
	}
	first := poller.Event(e.listen()().(pollEventMsg))
	assert.Equal(t, eventBuffer, first.Attempt)
}

func TestDescribeError(t *testing.T) {
	assert.Equal(t, "Error: Invalid token", describeError(&client.RequestError{StatusCode: 401, Message: "Invalid token"}))
	assert.Contains(t, describeError(poller.ErrSessionTimeout), "taking longer than expected")
	assert.Equal(t, "Error: boom", describeError(errors.New("boom")))
}
