package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fentz26/dockgen/internal/audit"
	"github.com/fentz26/dockgen/internal/gitremote"
	"github.com/fentz26/dockgen/internal/poller"
	"github.com/fentz26/dockgen/internal/tui"
	"github.com/spf13/cobra"
)

var (
	tuiRepo  string
	tuiToken string
	tuiOut   string
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive TUI",
	RunE:  runTUI,
}

func init() {
	tuiCmd.Flags().StringVar(&tuiRepo, "repo", "", "Prefill the repository URL (default: origin of the current repository)")
	tuiCmd.Flags().StringVar(&tuiToken, "token", "", "Prefill the GitHub token (default: $GITHUB_TOKEN)")
	tuiCmd.Flags().StringVarP(&tuiOut, "out", "o", "Dockerfile", "Path used when saving the Dockerfile")
}

func runTUI(cmd *cobra.Command, args []string) error {
	// Logging to the terminal would corrupt the UI.
	logPath := filepath.Join(filepath.Dir(cfg.DBPath), "tui.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0o700); err != nil {
		return err
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer logFile.Close()
	l := newLogger(logFile, cfg.Verbosity)

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()
	recorder := audit.NewRecorder(s, l.WithName("audit"))
	defer recorder.Close()

	repo := tuiRepo
	if repo == "" {
		// The form is simply left empty outside a repository.
		repo, _ = gitremote.OriginURL(".")
	}
	token := tuiToken
	if token == "" {
		token = cfg.Token
	}

	events := tui.NewEvents()
	cl := newClient(l)
	ctrl := newController(cl, poller.Observers(events, recorder), l)

	app := tui.New(ctrl, cl, events, tui.Options{
		RepoURL:       repo,
		Token:         token,
		CommitMessage: cfg.CommitMessage,
		OutputPath:    tuiOut,
		Sessions:      s,
	})
	if err := app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
