package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fentz26/dockgen/internal/client"
	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	cfg, err := Load(Options{
		Path:    "",
		EnvFile: writeFile(t, dir, ".env", ""),
		Getenv:  envMap(nil),
	})
	require.NoError(t, err)

	assert.Equal(t, client.DefaultBaseURL, cfg.APIURL)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 3, cfg.StatusRetries)
	assert.Equal(t, time.Second, cfg.Poll.InitialDelay)
	assert.Equal(t, 2*time.Second, cfg.Poll.Interval)
	assert.Equal(t, 150, cfg.Poll.MaxAttempts)
	assert.Equal(t, 2*time.Minute, cfg.Poll.SoftTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Poll.HardTimeout)
	assert.Equal(t, DefaultCommitMessage, cfg.CommitMessage)
	assert.Equal(t, filepath.Join(dir, ".dockgen", "dockgen.db"), cfg.DBPath)
	assert.Empty(t, cfg.Token)
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
api_url: https://yaml.example.com/api
commit_message: from yaml
poll:
  interval: 5s
  max_attempts: 40
`)
	envFile := writeFile(t, dir, ".env", `
DOCKGEN_API_URL=https://dotenv.example.com/api
DOCKGEN_POLL_MAX_ATTEMPTS=20
GITHUB_TOKEN=ghp_from_dotenv
`)

	cfg, err := Load(Options{
		Path:    path,
		EnvFile: envFile,
		Getenv: envMap(map[string]string{
			EnvAPIURL: "https://env.example.com/api",
		}),
	})
	require.NoError(t, err)

	assert.Equal(t, "https://env.example.com/api", cfg.APIURL)
	assert.Equal(t, 20, cfg.Poll.MaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.Poll.Interval)
	assert.Equal(t, "from yaml", cfg.CommitMessage)
	assert.Equal(t, "ghp_from_dotenv", cfg.Token)
	// Unset fields keep their defaults.
	assert.Equal(t, time.Second, cfg.Poll.InitialDelay)
}

func TestLoad_InvalidEnvIsIgnored(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(Options{
		Path:    writeFile(t, dir, "config.yaml", "request_timeout: 4s\n"),
		EnvFile: writeFile(t, dir, ".env", ""),
		Getenv: envMap(map[string]string{
			EnvRequestTimeout: "soon",
			EnvMaxAttempts:    "-3",
			EnvPollInterval:   "0s",
			EnvStatusRetries:  "5",
		}),
		Logger: testr.New(t),
	})
	require.NoError(t, err)

	assert.Equal(t, 4*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 150, cfg.Poll.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Poll.Interval)
	assert.Equal(t, 5, cfg.StatusRetries)
}

func TestLoad_MissingFiles(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(Options{Path: filepath.Join(dir, "missing.yaml"), Getenv: envMap(nil)})
	assert.Error(t, err, "an explicit config path must exist")

	_, err = Load(Options{
		Path:    writeFile(t, dir, "config.yaml", ""),
		EnvFile: filepath.Join(dir, "missing.env"),
		Getenv:  envMap(nil),
	})
	assert.Error(t, err, "an explicit env file must exist")
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(Options{
		Path:    writeFile(t, dir, "config.yaml", "poll: [unterminated\n"),
		EnvFile: writeFile(t, dir, ".env", ""),
		Getenv:  envMap(nil),
	})
	assert.ErrorContains(t, err, "parsing config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty api url", func(c *Config) { c.APIURL = "" }},
		{"api url without scheme", func(c *Config) { c.APIURL = "localhost:3001/api" }},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }},
		{"no retries", func(c *Config) { c.StatusRetries = 0 }},
		{"zero interval", func(c *Config) { c.Poll.Interval = 0 }},
		{"no attempts", func(c *Config) { c.Poll.MaxAttempts = 0 }},
		{"soft above hard", func(c *Config) { c.Poll.SoftTimeout = 10 * time.Minute }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, Default().Validate())
}

func TestSave_RoundTripOmitsToken(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	cfg := Default()
	cfg.APIURL = "https://dockgen.example.com/api"
	cfg.Poll.Interval = 3 * time.Second
	cfg.Token = "ghp_secret"
	require.NoError(t, Save(path, cfg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "ghp_secret")

	loaded, err := Load(Options{Path: path, EnvFile: writeFile(t, dir, ".env", ""), Getenv: envMap(nil)})
	require.NoError(t, err)
	assert.Equal(t, "https://dockgen.example.com/api", loaded.APIURL)
	assert.Equal(t, 3*time.Second, loaded.Poll.Interval)
	assert.Empty(t, loaded.Token)

	assert.Error(t, Save(path, nil))
}

func TestExpandHome(t *testing.T) {
	home := homeDir()
	assert.Equal(t, filepath.Join(home, "data", "x.db"), expandHome("~/data/x.db"))
	assert.Equal(t, "/tmp/x.db", expandHome("/tmp/x.db"))
}
