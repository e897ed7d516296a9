// Package config holds the settings every tool operation receives.
//
// Values come from the process environment and may be overridden by
// command-line flags. A *Config is passed explicitly to each operation.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// RepoPath is the local working tree all paths are relative to.
	RepoPath string
	// RemoteHost, Repo ("owner/name"), User and Token locate the remote.
	RemoteHost string
	Repo       string
	User       string
	Token      string
	// RemoteOverride, when set, is used as the remote verbatim
	// (a local path or a URL carrying its own credentials).
	RemoteOverride string

	DefaultBranch string

	// MaxFileSize is the largest file ReadFile returns in full, in bytes.
	MaxFileSize int64
	// PreviewLimit caps the preview of a file larger than MaxFileSize.
	PreviewLimit int
	// MaxContentDisplay truncates raw tool input echoed to the log.
	MaxContentDisplay int
	// ListLimit caps issue, match and summary listings.
	ListLimit int

	CommandTimeout time.Duration
	TestTimeout    time.Duration
	InstallTimeout time.Duration

	OpenAIKey     string
	OpenAIModel   string
	MaxIterations int

	// HistoryDB is the sqlite file invocations are recorded to. Empty disables history.
	HistoryDB string
}

func Default() *Config {
	return &Config{
		RepoPath:          "local_repo",
		RemoteHost:        "github.com",
		DefaultBranch:     "main",
		MaxFileSize:       50000,
		PreviewLimit:      5000,
		MaxContentDisplay: 1000,
		ListLimit:         10,
		CommandTimeout:    60 * time.Second,
		TestTimeout:       120 * time.Second,
		InstallTimeout:    300 * time.Second,
		OpenAIModel:       "gpt-4o",
		MaxIterations:     5,
	}
}

// Load reads the configuration from getenv, typically os.Getenv.
func Load(getenv func(string) string) (*Config, error) {
	cfg := Default()
	setString := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	setString(&cfg.RepoPath, "LOCAL_REPO_PATH")
	setString(&cfg.RemoteHost, "GITHUB_HOST")
	setString(&cfg.Repo, "GITHUB_REPO")
	setString(&cfg.User, "GITHUB_USER")
	setString(&cfg.Token, "GITHUB_TOKEN")
	setString(&cfg.RemoteOverride, "GIT_REMOTE_URL")
	setString(&cfg.DefaultBranch, "DEFAULT_BRANCH")
	setString(&cfg.OpenAIKey, "OPENAI_API_KEY")
	setString(&cfg.OpenAIModel, "OPENAI_MODEL")
	setString(&cfg.HistoryDB, "GITAGENT_HISTORY_DB")

	if v := strings.TrimSpace(getenv("MAX_FILE_SIZE")); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid MAX_FILE_SIZE %q: %w", v, err)
		}
		cfg.MaxFileSize = n
	}
	if v := strings.TrimSpace(getenv("COMMAND_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid COMMAND_TIMEOUT %q: %w", v, err)
		}
		cfg.CommandTimeout = d
	}
	return cfg, nil
}

// Validate checks the settings that every operation relies on.
// Remote settings are checked separately by RequireRemote.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.RepoPath) == "" {
		errs = append(errs, errors.New("repository path is empty"))
	}
	if c.MaxFileSize <= 0 {
		errs = append(errs, fmt.Errorf("max file size must be positive, got %d", c.MaxFileSize))
	}
	if c.PreviewLimit <= 0 {
		errs = append(errs, fmt.Errorf("preview limit must be positive, got %d", c.PreviewLimit))
	}
	if c.ListLimit <= 0 {
		errs = append(errs, fmt.Errorf("list limit must be positive, got %d", c.ListLimit))
	}
	if c.DefaultBranch == "" {
		errs = append(errs, errors.New("default branch is empty"))
	}
	return errors.Join(errs...)
}

// RequireRemote reports which remote settings are missing.
func (c *Config) RequireRemote() error {
	if c.RemoteOverride != "" {
		return nil
	}
	var missing []string
	if c.Repo == "" {
		missing = append(missing, "GITHUB_REPO")
	}
	if c.User == "" {
		missing = append(missing, "GITHUB_USER")
	}
	if c.Token == "" {
		missing = append(missing, "GITHUB_TOKEN")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing remote settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Root returns the absolute repository path.
func (c *Config) Root() string {
	abs, err := filepath.Abs(c.RepoPath)
	if err != nil {
		return filepath.Clean(c.RepoPath)
	}
	return abs
}

// RemoteURL is the credentialed https URL of the remote repository.
// It must never be logged; use RedactedRemoteURL.
func (c *Config) RemoteURL() string {
	if c.RemoteOverride != "" {
		return c.RemoteOverride
	}
	u := url.URL{Scheme: "https", Host: c.RemoteHost, Path: "/" + c.Repo + ".git"}
	if c.User != "" && c.Token != "" {
		u.User = url.UserPassword(c.User, c.Token)
	}
	return u.String()
}

func (c *Config) RedactedRemoteURL() string {
	return c.Redact(c.RemoteURL())
}

// Redact masks the token wherever it occurs in s.
func (c *Config) Redact(s string) string {
	if c.Token == "" {
		return s
	}
	return strings.ReplaceAll(s, c.Token, "[REDACTED]")
}

// Environ is the process environment with the token exported for
// collaborators such as gh.
func (c *Config) Environ() []string {
	env := os.Environ()
	if c.Token != "" {
		env = append(env, "GITHUB_TOKEN="+c.Token, "GH_TOKEN="+c.Token)
	}
	return env
}
