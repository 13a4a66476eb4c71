package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/chatopsdesk/chatopsdesk/pkg/anthropic"
	"github.com/chatopsdesk/chatopsdesk/pkg/github"
)

// Secrets are credentials for the external services. They use their
// conventional unprefixed names.
type Secrets struct {
	AnthropicAPIKey  string `envconfig:"ANTHROPIC_API_KEY"`
	AnthropicModel   string `envconfig:"ANTHROPIC_MODEL"`
	AnthropicBaseURL string `envconfig:"ANTHROPIC_BASE_URL"`

	GitHubPAT         string `envconfig:"GITHUB_PAT"`
	GitHubOwner       string `envconfig:"GITHUB_OWNER"`
	GitHubRepo        string `envconfig:"GITHUB_REPO"`
	GitHubDefaultBase string `envconfig:"GITHUB_DEFAULT_BASE" default:"main"`
	GitHubAPIURL      string `envconfig:"GITHUB_API_URL"`
}

const (
	RequiredGitHubPAT   = "GITHUB_PAT (repo scope)"
	RequiredGitHubOwner = "GITHUB_OWNER"
	RequiredGitHubRepo  = "GITHUB_REPO"
	RequiredAnthropic   = "ANTHROPIC_API_KEY"
)

// MissingForMerge names every unset secret the pr-to-main flow needs, in a
// fixed order.
func (s Secrets) MissingForMerge() []string {
	var missing []string
	if s.GitHubPAT == "" {
		missing = append(missing, RequiredGitHubPAT)
	}
	if s.GitHubOwner == "" {
		missing = append(missing, RequiredGitHubOwner)
	}
	if s.GitHubRepo == "" {
		missing = append(missing, RequiredGitHubRepo)
	}
	return missing
}

func (s Secrets) MissingForChat() []string {
	if s.AnthropicAPIKey == "" {
		return []string{RequiredAnthropic}
	}
	return nil
}

func (s Secrets) Model() string {
	if s.AnthropicModel == "" {
		return anthropic.DefaultModel
	}
	return s.AnthropicModel
}

func (s Secrets) GitHubBaseURL() string {
	if s.GitHubAPIURL == "" {
		return github.DefaultBaseURL
	}
	return s.GitHubAPIURL
}

// SecretStore holds the current Secrets and refreshes them from a dotenv
// file. Variables already present in the process environment take
// precedence over the file and are never touched by a reload.
type SecretStore struct {
	path string

	mu       sync.RWMutex
	current  Secrets
	fileKeys map[string]struct{}
}

// DebounceInterval is how long Watch waits after the last file event before
// reloading.
const DebounceInterval = 100 * time.Millisecond

// LoadSecrets applies the dotenv file at path and returns a store holding
// the resulting secrets. A missing file is not an error.
func LoadSecrets(path string) (*SecretStore, error) {
	s := &SecretStore{
		path:     path,
		fileKeys: make(map[string]struct{}),
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Snapshot returns a copy of the current secrets.
func (s *SecretStore) Snapshot() Secrets {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *SecretStore) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := godotenv.Read(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	// Keys that a previous load took from the file but the file no longer has.
	for key := range s.fileKeys {
		if _, ok := values[key]; !ok {
			_ = os.Unsetenv(key)
			delete(s.fileKeys, key)
		}
	}
	for key, value := range values {
		if _, fromFile := s.fileKeys[key]; !fromFile {
			if _, set := os.LookupEnv(key); set {
				continue
			}
		}
		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("failed to set %s: %w", key, err)
		}
		s.fileKeys[key] = struct{}{}
	}

	var secrets Secrets
	if err := envconfig.Process("", &secrets); err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}
	s.current = secrets
	return nil
}

// Watch reloads the secrets whenever the dotenv file changes, until ctx is
// done. The parent directory is watched so that editors which save by
// rename are seen.
func (s *SecretStore) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(s.path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", s.path, err)
	}
	watchDir := filepath.Dir(abs)
	name := filepath.Base(abs)
	if err := watcher.Add(watchDir); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", watchDir, err)
	}
	slog.Debug("watching dotenv file", "path", abs)

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(DebounceInterval, func() {
				if err := s.Reload(); err != nil {
					slog.Error("failed to reload secrets", "path", abs, "error", err)
					return
				}
				slog.Info("secrets reloaded", "path", abs)
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("fsnotify error", "error", err)

		case <-ctx.Done():
			return nil
		}
	}
}
