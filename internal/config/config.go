// Package config loads dockgen settings from a YAML file, a .env file and
// the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fentz26/dockgen/internal/client"
	"github.com/fentz26/dockgen/internal/poller"
	"github.com/go-logr/logr"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultCommitMessage is used when pushing without an explicit message.
const DefaultCommitMessage = "Add Dockerfile generated by DockGen AI"

// Environment variables.
const (
	EnvAPIURL         = "DOCKGEN_API_URL"
	EnvDBPath         = "DOCKGEN_DB"
	EnvRequestTimeout = "DOCKGEN_REQUEST_TIMEOUT"
	EnvStatusRetries  = "DOCKGEN_STATUS_RETRIES"
	EnvRetryBackoff   = "DOCKGEN_RETRY_BACKOFF"
	EnvInitialDelay   = "DOCKGEN_POLL_INITIAL_DELAY"
	EnvPollInterval   = "DOCKGEN_POLL_INTERVAL"
	EnvMaxAttempts    = "DOCKGEN_POLL_MAX_ATTEMPTS"
	EnvSoftTimeout    = "DOCKGEN_POLL_SOFT_TIMEOUT"
	EnvHardTimeout    = "DOCKGEN_POLL_HARD_TIMEOUT"
	EnvCommitMessage  = "DOCKGEN_COMMIT_MESSAGE"
	EnvVerbosity      = "DOCKGEN_VERBOSITY"
	EnvToken          = "GITHUB_TOKEN"
)

// Config holds dockgen settings.
type Config struct {
	// APIURL is the generation API base, including the /api prefix.
	APIURL string `yaml:"api_url"`
	// DBPath is the local session history database.
	DBPath string `yaml:"db_path"`
	// RequestTimeout bounds every HTTP call.
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// StatusRetries is how many times one status check is attempted.
	StatusRetries int `yaml:"status_retries"`
	// RetryBackoff is multiplied by the attempt number between retries.
	RetryBackoff time.Duration `yaml:"retry_backoff"`
	// Poll is the polling schedule.
	Poll poller.Config `yaml:"poll"`
	// CommitMessage is the default message for pushed Dockerfiles.
	CommitMessage string `yaml:"commit_message"`
	// Verbosity is the log level; 0 logs lifecycle only.
	Verbosity int `yaml:"verbosity"`

	// Token comes from GITHUB_TOKEN only and is never written back.
	Token string `yaml:"-"`
}

// Options controls where Load looks.
type Options struct {
	// Path is an explicit config file; it must exist when set.
	Path string
	// EnvFile is an explicit .env file; it must exist when set.
	EnvFile string
	// Getenv replaces os.Getenv, for tests.
	Getenv func(string) string
	Logger logr.Logger
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		APIURL:         client.DefaultBaseURL,
		DBPath:         filepath.Join(homeDir(), ".dockgen", "dockgen.db"),
		RequestTimeout: client.DefaultTimeout,
		StatusRetries:  client.DefaultStatusAttempts,
		RetryBackoff:   client.DefaultBackoff,
		Poll:           *poller.DefaultConfig(),
		CommitMessage:  DefaultCommitMessage,
	}
}

// DefaultPath returns ~/.dockgen/config.yaml.
func DefaultPath() string {
	return filepath.Join(homeDir(), ".dockgen", "config.yaml")
}

// Load builds the configuration. Later sources win: defaults, the YAML
// file, the .env file, then the process environment.
func Load(opts Options) (*Config, error) {
	if opts.Getenv == nil {
		opts.Getenv = os.Getenv
	}
	if opts.Logger.GetSink() == nil {
		opts.Logger = logr.Discard()
	}

	cfg := Default()

	path := opts.Path
	if path == "" {
		path = DefaultPath()
	}
	if err := cfg.readFile(path, opts.Path != ""); err != nil {
		return nil, err
	}

	dotenv, err := readEnvFile(opts.EnvFile)
	if err != nil {
		return nil, err
	}
	lookup := func(key string) string {
		if v := opts.Getenv(key); v != "" {
			return v
		}
		return dotenv[key]
	}
	cfg.applyEnv(lookup, opts.Logger)
	cfg.DBPath = expandHome(cfg.DBPath)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) readFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

func readEnvFile(path string) (map[string]string, error) {
	required := path != ""
	if path == "" {
		path = ".env"
	}
	env, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading env file: %w", err)
	}
	return env, nil
}

func (c *Config) applyEnv(lookup func(string) string, log logr.Logger) {
	if v := lookup(EnvAPIURL); v != "" {
		c.APIURL = v
	}
	if v := lookup(EnvDBPath); v != "" {
		c.DBPath = v
	}
	if v := lookup(EnvCommitMessage); v != "" {
		c.CommitMessage = v
	}
	if v := lookup(EnvToken); v != "" {
		c.Token = v
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{EnvRequestTimeout, &c.RequestTimeout},
		{EnvRetryBackoff, &c.RetryBackoff},
		{EnvInitialDelay, &c.Poll.InitialDelay},
		{EnvPollInterval, &c.Poll.Interval},
		{EnvSoftTimeout, &c.Poll.SoftTimeout},
		{EnvHardTimeout, &c.Poll.HardTimeout},
	}
	for _, d := range durations {
		v := lookup(d.key)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil || parsed <= 0 {
			log.Info("Ignoring invalid duration", "variable", d.key, "value", v)
			continue
		}
		*d.dst = parsed
	}

	ints := []struct {
		key string
		dst *int
		min int
	}{
		{EnvStatusRetries, &c.StatusRetries, 1},
		{EnvMaxAttempts, &c.Poll.MaxAttempts, 1},
		{EnvVerbosity, &c.Verbosity, 0},
	}
	for _, i := range ints {
		v := lookup(i.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n < i.min {
			log.Info("Ignoring invalid number", "variable", i.key, "value", v)
			continue
		}
		*i.dst = n
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIURL) == "" {
		return fmt.Errorf("api_url is required")
	}
	if !strings.HasPrefix(c.APIURL, "http://") && !strings.HasPrefix(c.APIURL, "https://") {
		return fmt.Errorf("api_url %q must start with http:// or https://", c.APIURL)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive")
	}
	if c.StatusRetries < 1 {
		return fmt.Errorf("status_retries must be at least 1")
	}
	if c.Poll.Interval <= 0 || c.Poll.InitialDelay <= 0 {
		return fmt.Errorf("poll delays must be positive")
	}
	if c.Poll.MaxAttempts < 1 {
		return fmt.Errorf("poll.max_attempts must be at least 1")
	}
	if c.Poll.SoftTimeout > c.Poll.HardTimeout {
		return fmt.Errorf("poll.soft_timeout must not exceed poll.hard_timeout")
	}
	return nil
}

// Save writes the configuration to a YAML file, creating parent directories
// if needed. The token is never written.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

func expandHome(p string) string {
	if p == "~" {
		return homeDir()
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(homeDir(), p[2:])
	}
	return p
}
