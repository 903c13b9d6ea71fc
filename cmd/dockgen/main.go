package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/fentz26/dockgen/internal/client"
	"github.com/fentz26/dockgen/internal/config"
	"github.com/fentz26/dockgen/internal/poller"
	"github.com/fentz26/dockgen/internal/store"
	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "dockgen",
	Short: "DockGen - AI Dockerfile generator CLI",
	Long:  `DockGen asks the generation API to write a Dockerfile for a GitHub repository and follows the job until it is ready.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup(cmd)
	},
	SilenceUsage: true,
	// No RunE - defaults to showing help when no subcommand is provided
}

var (
	apiAddr    string
	configPath string
	envFile    string
	verbosity  int

	cfg    *config.Config
	logger logr.Logger = logr.Discard()
)

func init() {
	rootCmd.PersistentFlags().StringVar(&apiAddr, "api", client.DefaultBaseURL, "Generation API base URL")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.dockgen/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Env file (default ./.env)")
	rootCmd.PersistentFlags().IntVarP(&verbosity, "verbose", "v", 0, "Log verbosity")

	// Add subcommands
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(devserverCmd)
	rootCmd.AddCommand(configCmd)
}

// setup loads the configuration and applies flag overrides.
func setup(cmd *cobra.Command) error {
	boot := newLogger(os.Stderr, verbosity)

	opts := config.Options{
		Path:    configPath,
		EnvFile: envFile,
		Logger:  boot,
	}
	if cmd == configInitCmd {
		// init creates the file, so it may not exist yet.
		if _, err := os.Stat(configPath); err != nil {
			opts.Path = ""
		}
	}
	loaded, err := config.Load(opts)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("api") {
		loaded.APIURL = apiAddr
	}
	if cmd.Flags().Changed("verbose") {
		loaded.Verbosity = verbosity
	}
	if err := loaded.Validate(); err != nil {
		return err
	}

	cfg = loaded
	logger = newLogger(os.Stderr, cfg.Verbosity)
	return nil
}

func newLogger(w io.Writer, v int) logr.Logger {
	stdr.SetVerbosity(v)
	return stdr.New(log.New(w, "", log.LstdFlags))
}

func newClient(l logr.Logger) *client.Client {
	return client.New(cfg.APIURL,
		client.WithTimeout(cfg.RequestTimeout),
		client.WithStatusRetry(cfg.StatusRetries, cfg.RetryBackoff),
		client.WithLogger(l.WithName("client")),
	)
}

func newController(cl *client.Client, observer poller.Observer, l logr.Logger) *poller.Controller {
	return poller.New(cl, observer,
		poller.WithConfig(&cfg.Poll),
		poller.WithLogger(l.WithName("poller")),
	)
}

func openStore() (*store.Store, error) {
	s, err := store.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening session store: %w", err)
	}
	return s, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
