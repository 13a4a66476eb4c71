package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secretKeys = []string{
	"ANTHROPIC_API_KEY", "ANTHROPIC_MODEL", "ANTHROPIC_BASE_URL",
	"GITHUB_PAT", "GITHUB_OWNER", "GITHUB_REPO", "GITHUB_DEFAULT_BASE", "GITHUB_API_URL",
}

// clearSecrets unsets every secret for the duration of the test and
// restores the previous values afterwards.
func clearSecrets(t *testing.T) {
	t.Helper()
	for _, key := range secretKeys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func writeDotenv(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestLoadEnv_Defaults(t *testing.T) {
	env, err := LoadEnv()
	require.NoError(t, err)
	assert.Equal(t, "3000", env.HTTPPort)
	assert.Equal(t, 2*time.Minute, env.TaskTimeout)
	assert.Equal(t, 5*time.Millisecond, env.TaskStartDelay)
	assert.Equal(t, "memory", env.StorageEnv.Type)
}

func TestLoadEnv_Overrides(t *testing.T) {
	t.Setenv("CHATOPS_HTTP_PORT", "8080")
	t.Setenv("CHATOPS_TASK_TIMEOUT", "0")
	t.Setenv("CHATOPS_LOG_LEVEL", "warn")

	env, err := LoadEnv()
	require.NoError(t, err)
	assert.Equal(t, ":8080", env.Addr())
	assert.Zero(t, env.TaskTimeout)
	assert.Equal(t, "WARN", env.SlogLevel().String())
}

func TestSecrets_MissingForMerge(t *testing.T) {
	assert.Equal(t,
		[]string{RequiredGitHubPAT, RequiredGitHubOwner, RequiredGitHubRepo},
		Secrets{}.MissingForMerge())
	assert.Equal(t,
		[]string{RequiredGitHubOwner},
		Secrets{GitHubPAT: "p", GitHubRepo: "r"}.MissingForMerge())
	assert.Empty(t, Secrets{GitHubPAT: "p", GitHubOwner: "o", GitHubRepo: "r"}.MissingForMerge())
}

func TestSecrets_Defaults(t *testing.T) {
	s := Secrets{}
	assert.Equal(t, "claude-3-opus-20240229", s.Model())
	assert.Equal(t, "https://api.github.com", s.GitHubBaseURL())
	assert.Equal(t, []string{RequiredAnthropic}, s.MissingForChat())
}

func TestLoadSecrets_MissingFile(t *testing.T) {
	clearSecrets(t)
	store, err := LoadSecrets(filepath.Join(t.TempDir(), ".env"))
	require.NoError(t, err)
	assert.Equal(t, "main", store.Snapshot().GitHubDefaultBase)
	assert.Empty(t, store.Snapshot().GitHubPAT)
}

func TestLoadSecrets_RealEnvWins(t *testing.T) {
	clearSecrets(t)
	t.Setenv("GITHUB_OWNER", "from-env")
	path := filepath.Join(t.TempDir(), ".env")
	writeDotenv(t, path, "GITHUB_OWNER=from-file\nGITHUB_REPO=widgets\n")

	store, err := LoadSecrets(path)
	require.NoError(t, err)
	snap := store.Snapshot()
	assert.Equal(t, "from-env", snap.GitHubOwner)
	assert.Equal(t, "widgets", snap.GitHubRepo)
}

func TestSecretStore_Reload(t *testing.T) {
	clearSecrets(t)
	path := filepath.Join(t.TempDir(), ".env")
	writeDotenv(t, path, "GITHUB_PAT=one\nGITHUB_REPO=widgets\n")

	store, err := LoadSecrets(path)
	require.NoError(t, err)
	assert.Equal(t, "one", store.Snapshot().GitHubPAT)

	writeDotenv(t, path, "GITHUB_PAT=two\n")
	require.NoError(t, store.Reload())
	snap := store.Snapshot()
	assert.Equal(t, "two", snap.GitHubPAT)
	assert.Empty(t, snap.GitHubRepo, "keys removed from the file are dropped")
}

func TestSecretStore_Watch(t *testing.T) {
	clearSecrets(t)
	path := filepath.Join(t.TempDir(), ".env")
	writeDotenv(t, path, "ANTHROPIC_API_KEY=old\n")

	store, err := LoadSecrets(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- store.Watch(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Give the watcher a moment to register before writing.
	time.Sleep(50 * time.Millisecond)
	writeDotenv(t, path, "ANTHROPIC_API_KEY=new\n")

	assert.Eventually(t, func() bool {
		return store.Snapshot().AnthropicAPIKey == "new"
	}, 5*time.Second, 20*time.Millisecond)
}
