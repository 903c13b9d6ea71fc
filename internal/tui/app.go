// Package tui provides the interactive terminal UI for dockgen.
package tui

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/fentz26/dockgen/internal/client"
	"github.com/fentz26/dockgen/internal/models"
	"github.com/fentz26/dockgen/internal/poller"
)

const historyPageSize = 20

// Generator starts and stops polled generations.
type Generator interface {
	Start(ctx context.Context, repoURL, credential string) (*models.GenerationJob, error)
	Stop() bool
}

// Backend is the part of the API the UI calls directly.
type Backend interface {
	PushArtifact(ctx context.Context, jobID, commitMessage string) (*models.PushResult, error)
	History(ctx context.Context, page, limit int) (*models.HistoryPage, error)
	CheckHealth(ctx context.Context) bool
}

// SessionLister supplies recently used repositories.
type SessionLister interface {
	ListSessions(limit int) ([]models.SessionRecord, error)
}

// Options configures the App.
type Options struct {
	// RepoURL and Token prefill the form.
	RepoURL string
	Token   string
	// CommitMessage is used for pushes.
	CommitMessage string
	// OutputPath is where the Dockerfile is written.
	OutputPath string
	// Sessions feeds repository suggestions; optional.
	Sessions SessionLister
}

type mode int

const (
	modeForm mode = iota
	modeHistory
)

// App is the main TUI application model.
type App struct {
	gen     Generator
	backend Backend
	events  *Events
	opts    Options

	form        *Form
	suggestions *Suggestions
	result      *ResultModel
	history     *HistoryModel

	mode       mode
	width      int
	height     int
	online     bool
	generating bool
	job        *models.GenerationJob
	stage      models.BuildStatus
	attempt    int
	message    string
	errText    string
}

// New creates a new TUI application. events must be registered as an
// observer of the controller behind gen.
func New(gen Generator, backend Backend, events *Events, opts Options) *App {
	if opts.OutputPath == "" {
		opts.OutputPath = "Dockerfile"
	}
	return &App{
		gen:         gen,
		backend:     backend,
		events:      events,
		opts:        opts,
		form:        NewForm(opts.RepoURL, opts.Token),
		suggestions: NewSuggestions(),
		result:      NewResultModel(),
		history:     NewHistoryModel(),
		width:       80,
		height:      24,
	}
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	a.gen.Stop()
	return err
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		a.events.listen(),
		a.checkHealth(),
		a.loadRecent(),
	)
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			a.gen.Stop()
			return a, tea.Quit
		}
		if a.mode == modeHistory {
			return a, a.updateHistory(msg)
		}
		return a, a.updateForm(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.resize()

	case pollEventMsg:
		a.handleEvent(poller.Event(msg))
		return a, a.events.listen()

	case startedMsg:
		a.job = msg.job
		a.message = "Generation started: " + msg.job.ID

	case startFailedMsg:
		a.generating = false
		a.message = ""
		if errors.Is(msg.err, context.Canceled) {
			a.message = "Generation stopped"
		} else {
			a.errText = describeError(msg.err)
		}

	case actionMsg:
		a.message = msg.message
		a.errText = ""

	case errMsg:
		a.message = ""
		a.errText = describeError(msg.err)

	case healthMsg:
		a.online = msg.online

	case historyMsg:
		a.history.SetPage(msg.page)

	case recentMsg:
		a.suggestions.SetItems(msg.urls)
	}

	return a, a.form.Update(msg)
}

func (a *App) updateForm(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		if a.suggestions.IsVisible() {
			a.suggestions.Hide()
			return nil
		}
		if a.generating && a.gen.Stop() {
			a.generating = false
			a.message = "Generation stopped"
		}
		return nil

	case "tab", "enter":
		if sel, ok := a.suggestions.Selected(); ok && a.form.Focused() == fieldRepo {
			a.form.SetRepoURL(sel)
			a.suggestions.Hide()
			return nil
		}
		if msg.String() == "tab" {
			a.form.Next()
			a.suggestions.Hide()
			return nil
		}
		return a.submit()

	case "shift+tab":
		a.form.Prev()
		a.suggestions.Hide()
		return nil

	case "up":
		if a.suggestions.IsVisible() {
			a.suggestions.Prev()
		} else {
			a.result.ScrollUp()
		}
		return nil

	case "down":
		if a.suggestions.IsVisible() {
			a.suggestions.Next()
		} else {
			a.result.ScrollDown()
		}
		return nil

	case "ctrl+y":
		if df := a.dockerfile(); df != "" {
			return a.copyCmd(df)
		}
		a.errText = "No Dockerfile to copy yet"
		return nil

	case "ctrl+s":
		if df := a.dockerfile(); df != "" {
			return a.writeCmd(df)
		}
		a.errText = "No Dockerfile to save yet"
		return nil

	case "ctrl+p":
		if a.job == nil || a.dockerfile() == "" || a.generating {
			a.errText = "Nothing to push yet"
			return nil
		}
		a.message = "Pushing Dockerfile..."
		a.errText = ""
		return a.pushCmd(a.job.ID)

	case "ctrl+r":
		a.mode = modeHistory
		a.form.Blur()
		a.suggestions.Hide()
		a.history.loading = true
		return a.fetchHistory(1)
	}

	cmd := a.form.Update(msg)
	if a.form.Focused() == fieldRepo {
		a.suggestions.Update(a.form.RepoURL())
	}
	return cmd
}

func (a *App) updateHistory(msg tea.KeyMsg) tea.Cmd {
	if !a.history.Filtering() {
		switch msg.String() {
		case "esc":
			a.mode = modeForm
			return a.form.Focus()
		case "enter":
			if g, ok := a.history.Selected(); ok && !a.generating {
				a.job = &models.GenerationJob{ID: g.ID, RepoURL: g.RepoURL}
				a.stage = g.Stage
				a.attempt = 0
				a.result.SetResult(g)
				a.form.SetRepoURL(g.RepoURL)
				a.message = "Loaded generation " + g.ID
				a.errText = ""
			}
			a.mode = modeForm
			return a.form.Focus()
		}
	}
	return a.history.Update(msg)
}

func (a *App) submit() tea.Cmd {
	repoURL, token := a.form.RepoURL(), a.form.Token()
	if repoURL == "" || token == "" {
		a.errText = "Please provide both GitHub URL and token"
		return nil
	}
	a.generating = true
	a.job = nil
	a.stage = ""
	a.attempt = 0
	a.result.SetResult(nil)
	a.errText = ""
	a.message = "Starting generation..."
	return a.startCmd(repoURL, token)
}

func (a *App) handleEvent(e poller.Event) {
	if e.Kind == poller.EventStopped && e.Reason == poller.ReasonPreempted {
		return
	}
	if a.job != nil && e.JobID != a.job.ID {
		return
	}

	a.attempt = e.Attempt
	a.stage = e.Observed.Stage
	if r := e.Observed.Result; r != nil && !sameResult(a.result.Result(), r) {
		a.result.SetResult(r)
	}

	switch e.Kind {
	case poller.EventRetry:
		a.message = fmt.Sprintf("Status check %d failed, retrying", e.Attempt)
	case poller.EventStopped:
		a.generating = false
		a.message = ""
		a.errText = ""
		switch {
		case e.Reason == poller.ReasonArtifactReady || e.Reason == poller.ReasonSucceeded:
			a.message = "✓ Dockerfile generated"
		case e.Reason == poller.ReasonCanceled:
			a.message = "Generation stopped"
		case e.Reason.IsSessionTimeout():
			// Informational: the job may still finish on the server.
			a.message = poller.ErrSessionTimeout.Error()
		case e.Err != nil:
			a.errText = describeError(e.Err)
		}
	}
}

func (a *App) dockerfile() string {
	if r := a.result.Result(); r != nil {
		return r.Dockerfile
	}
	return ""
}

func (a *App) resize() {
	resultHeight := a.height - 16
	if resultHeight < 5 {
		resultHeight = 5
	}
	a.result.SetSize(a.width-2, resultHeight)
	a.history.SetSize(a.width, a.height-4)
}

// View implements tea.Model
func (a *App) View() string {
	var b strings.Builder

	backend := onlineStyle.Render("● API")
	if !a.online {
		backend = offlineStyle.Render("○ API")
	}
	b.WriteString(titleStyle.Render("🐳 DockGen") + "  " + backend + "\n")
	b.WriteString(strings.Repeat("─", max(a.width, 1)) + "\n")

	if a.mode == modeHistory {
		b.WriteString(a.history.View())
		b.WriteString("\n")
		b.WriteString(statusBarStyle.Width(a.width).Render(" ↑↓:nav | /:filter | Enter:open | Esc:back | Ctrl+C:quit"))
		return b.String()
	}

	b.WriteString(a.form.View(a.width))
	if a.suggestions.IsVisible() {
		b.WriteString(a.suggestions.Render(a.width) + "\n")
	}

	b.WriteString(a.progressLine() + "\n")
	b.WriteString(a.result.View())
	b.WriteString("\n")

	switch {
	case a.errText != "":
		b.WriteString(errorStyle.Render(a.errText))
	case a.message != "":
		b.WriteString(messageStyle.Render(a.message))
	}
	b.WriteString("\n")

	status := " Enter:generate | Tab:field | Esc:stop | ^Y:copy | ^S:save | ^P:push | ^R:history | ^C:quit"
	b.WriteString(statusBarStyle.Width(a.width).Render(status))
	return b.String()
}

func (a *App) progressLine() string {
	if !a.generating && a.stage == "" {
		return helpStyle.Render("Enter a repository and token, then press Enter.")
	}
	line := formatStage(a.stage)
	if a.attempt > 0 {
		line += labelStyle.Render(fmt.Sprintf("  check %d", a.attempt))
	}
	if a.generating {
		line = "⏳ Generating...  " + line
	}
	return line
}

func sameResult(a, b *models.GenerationStatus) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Dockerfile == b.Dockerfile && a.Error == b.Error && slices.Equal(a.TechStack, b.TechStack)
}

// describeError turns client and controller errors into a single line.
func describeError(err error) string {
	var reqErr *client.RequestError
	switch {
	case errors.As(err, &reqErr):
		return "Error: " + reqErr.Message
	case errors.Is(err, client.ErrConnectionLost):
		return "Error: backend server is not reachable, please start it and try again"
	case errors.Is(err, poller.ErrSessionTimeout):
		return "Error: " + poller.ErrSessionTimeout.Error()
	}
	return "Error: " + err.Error()
}
