package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fentz26/dockgen/internal/audit"
	"github.com/fentz26/dockgen/internal/gitremote"
	"github.com/fentz26/dockgen/internal/models"
	"github.com/fentz26/dockgen/internal/poller"
	"github.com/spf13/cobra"
)

var (
	genRepo    string
	genToken   string
	genOut     string
	genPush    bool
	genMessage string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a Dockerfile for a GitHub repository",
	Long: `Starts a generation and polls its status until the Dockerfile is ready,
the job fails or the session times out. Without --repo the origin remote of
the current git repository is used.`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVar(&genRepo, "repo", "", "GitHub repository URL (default: origin of the current repository)")
	generateCmd.Flags().StringVar(&genToken, "token", "", "GitHub access token (default: $GITHUB_TOKEN)")
	generateCmd.Flags().StringVarP(&genOut, "out", "o", "", "Write the Dockerfile to this path instead of stdout")
	generateCmd.Flags().BoolVar(&genPush, "push", false, "Push the Dockerfile to the repository when ready")
	generateCmd.Flags().StringVarP(&genMessage, "message", "m", "", "Commit message used with --push")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	repo, err := resolveRepo(genRepo)
	if err != nil {
		return err
	}
	token := genToken
	if token == "" {
		token = cfg.Token
	}
	if token == "" {
		return errors.New("a GitHub token is required: pass --token or set GITHUB_TOKEN")
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()
	recorder := audit.NewRecorder(s, logger.WithName("audit"))
	defer recorder.Close()

	cl := newClient(logger)
	ctrl := newController(cl, poller.Observers(&progressPrinter{w: cmd.ErrOrStderr()}, recorder), logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.ErrOrStderr(), "Generating Dockerfile for %s\n", repo)
	job, err := ctrl.Start(ctx, repo, token)
	if err != nil {
		return fmt.Errorf("starting generation: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Generation ID: %s\n", job.ID)

	go func() {
		<-ctx.Done()
		ctrl.Stop()
	}()

	out, err := ctrl.Wait(context.Background())
	if err != nil {
		return err
	}

	switch out.Reason {
	case poller.ReasonArtifactReady, poller.ReasonSucceeded:
	case poller.ReasonCanceled:
		return errors.New("generation stopped")
	default:
		return out.Err
	}

	result := out.Observed.Result
	if !result.HasArtifact() {
		return errors.New("generation finished without a Dockerfile")
	}
	if len(result.TechStack) > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "Tech stack: %s\n", strings.Join(result.TechStack, ", "))
	}

	if err := writeDockerfile(cmd.OutOrStdout(), cmd.ErrOrStderr(), genOut, result.Dockerfile); err != nil {
		return err
	}

	if genPush {
		msg := genMessage
		if msg == "" {
			msg = cfg.CommitMessage
		}
		res, err := cl.PushArtifact(context.Background(), job.ID, msg)
		if err != nil {
			return fmt.Errorf("pushing Dockerfile: %w", err)
		}
		printPush(cmd.ErrOrStderr(), res)
	}
	return nil
}

// resolveRepo returns repo, or the origin of the working directory's
// repository when repo is empty.
func resolveRepo(repo string) (string, error) {
	if repo != "" {
		return repo, nil
	}
	origin, err := gitremote.OriginURL(".")
	if err != nil {
		return "", fmt.Errorf("no --repo given: %w", err)
	}
	return origin, nil
}

func writeDockerfile(stdout, stderr io.Writer, path, content string) error {
	if path == "" || path == "-" {
		_, err := io.WriteString(stdout, content)
		return err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing Dockerfile: %w", err)
	}
	fmt.Fprintf(stderr, "Dockerfile written to %s\n", path)
	return nil
}

func printPush(w io.Writer, res *models.PushResult) {
	fmt.Fprintln(w, "✓ Dockerfile pushed")
	if res.CommitSHA != "" {
		fmt.Fprintf(w, "Commit: %s\n", res.CommitSHA)
	}
	if res.URL != "" {
		fmt.Fprintf(w, "URL:    %s\n", res.URL)
	}
}

// progressPrinter writes one line per stage change or retry.
type progressPrinter struct {
	w     io.Writer
	stage models.BuildStatus
}

func (p *progressPrinter) Notify(e poller.Event) {
	switch e.Kind {
	case poller.EventStatus:
		if e.Observed.Stage == p.stage {
			return
		}
		p.stage = e.Observed.Stage
		line := fmt.Sprintf("[%d] %s", e.Attempt, e.Observed.Stage)
		if r := e.Observed.Result; r != nil && len(r.TechStack) > 0 {
			line += " (" + strings.Join(r.TechStack, ", ") + ")"
		}
		fmt.Fprintln(p.w, line)
	case poller.EventRetry:
		fmt.Fprintf(p.w, "[%d] status check failed, retrying: %v\n", e.Attempt, e.Err)
	case poller.EventStopped:
		if e.Reason != poller.ReasonPreempted {
			fmt.Fprintf(p.w, "Stopped after %d checks (%s)\n", e.Attempt, e.Reason)
		}
	}
}
