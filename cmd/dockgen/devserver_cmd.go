package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fentz26/dockgen/internal/devserver"
	"github.com/spf13/cobra"
)

var (
	devListen     string
	devStep       time.Duration
	devFailMarker string
)

var devserverCmd = &cobra.Command{
	Use:   "devserver",
	Short: "Run a local generation API for development",
	Long: `Serves the generation API on a local port. Jobs move from pending to
building to success on a fixed schedule and get a Dockerfile picked from the
repository name. Repositories whose URL contains the fail marker end in error.`,
	RunE: runDevserver,
}

func init() {
	devserverCmd.Flags().StringVar(&devListen, "listen", devserver.DefaultListenAddr, "Listen address")
	devserverCmd.Flags().DurationVar(&devStep, "step", devserver.DefaultStep, "Time spent in each build stage")
	devserverCmd.Flags().StringVar(&devFailMarker, "fail-marker", devserver.DefaultFailMarker, "Repository URL substring that makes a job fail")
}

func runDevserver(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := devserver.New(devserver.Config{
		Step:       devStep,
		FailMarker: devFailMarker,
	}, logger.WithName("devserver"))

	if err := srv.Listen(ctx, devListen); err != nil {
		return err
	}
	logger.Info("Shutdown complete")
	return nil
}
