package tui

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/fentz26/dockgen/internal/models"
)

const actionTimeout = 30 * time.Second

// writeClipboard is swapped out in tests.
var writeClipboard = clipboard.WriteAll

type startedMsg struct {
	job *models.GenerationJob
}

type startFailedMsg struct {
	err error
}

type actionMsg struct {
	message string
}

type errMsg struct {
	err error
}

type healthMsg struct {
	online bool
}

type historyMsg struct {
	page *models.HistoryPage
}

type recentMsg struct {
	urls []string
}

func (a *App) startCmd(repoURL, token string) tea.Cmd {
	return func() tea.Msg {
		job, err := a.gen.Start(context.Background(), repoURL, token)
		if err != nil {
			return startFailedMsg{err}
		}
		return startedMsg{job}
	}
}

func (a *App) copyCmd(dockerfile string) tea.Cmd {
	return func() tea.Msg {
		if err := writeClipboard(dockerfile); err != nil {
			return errMsg{fmt.Errorf("copy to clipboard: %w", err)}
		}
		return actionMsg{"✓ Dockerfile copied to clipboard"}
	}
}

func (a *App) writeCmd(dockerfile string) tea.Cmd {
	path := a.opts.OutputPath
	return func() tea.Msg {
		if err := os.WriteFile(path, []byte(dockerfile), 0o644); err != nil {
			return errMsg{fmt.Errorf("write %s: %w", path, err)}
		}
		return actionMsg{"✓ Wrote " + path}
	}
}

func (a *App) pushCmd(jobID string) tea.Cmd {
	message := a.opts.CommitMessage
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		res, err := a.backend.PushArtifact(ctx, jobID, message)
		if err != nil {
			return errMsg{err}
		}
		if res.Message != "" {
			return actionMsg{"✓ " + res.Message}
		}
		return actionMsg{"✓ Dockerfile pushed to repository"}
	}
}

func (a *App) checkHealth() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		return healthMsg{online: a.backend.CheckHealth(ctx)}
	}
}

func (a *App) fetchHistory(page int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		p, err := a.backend.History(ctx, page, historyPageSize)
		if err != nil {
			return errMsg{err}
		}
		return historyMsg{p}
	}
}

func (a *App) loadRecent() tea.Cmd {
	if a.opts.Sessions == nil {
		return nil
	}
	return func() tea.Msg {
		sessions, err := a.opts.Sessions.ListSessions(50)
		if err != nil {
			return nil
		}
		urls := make([]string, 0, len(sessions))
		for _, s := range sessions {
			urls = append(urls, s.RepoURL)
		}
		return recentMsg{urls}
	}
}
