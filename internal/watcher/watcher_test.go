package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mizuki-ao/geminigate/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func startWatcher(t *testing.T, configPath string) (*Watcher, chan *config.Config) {
	t.Helper()

	reloaded := make(chan *config.Config, 8)
	w, err := NewWatcher(configPath, func(cfg *config.Config) {
		reloaded <- cfg
	})
	require.NoError(t, err)

	initial, err := config.LoadConfig(configPath)
	require.NoError(t, err)
	w.SetConfig(initial)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, w.Start(ctx))
	t.Cleanup(func() { _ = w.Stop() })

	return w, reloaded
}

func waitForReload(t *testing.T, reloaded chan *config.Config) *config.Config {
	t.Helper()
	select {
	case cfg := <-reloaded:
		return cfg
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config reload")
		return nil
	}
}

func TestWatcherReloadsOnChange(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	writeConfigFile(t, configPath, "port: 8080\n")

	_, reloaded := startWatcher(t, configPath)

	writeConfigFile(t, configPath, "port: 9090\nrequest-log: true\n")

	cfg := waitForReload(t, reloaded)
	assert.Equal(t, 9090, cfg.Port)
	assert.True(t, cfg.RequestLog)
}

func TestWatcherSkipsUnchangedContent(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	writeConfigFile(t, configPath, "port: 8080\n")

	_, reloaded := startWatcher(t, configPath)

	writeConfigFile(t, configPath, "port: 9090\n")
	waitForReload(t, reloaded)

	// Rewriting identical content must not trigger a second reload.
	writeConfigFile(t, configPath, "port: 9090\n")

	select {
	case <-reloaded:
		t.Fatal("expected no reload for unchanged content")
	case <-time.After(500 * time.Millisecond):
	}
}

func TestWatcherKeepsWatchingAfterParseError(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	writeConfigFile(t, configPath, "port: 8080\n")

	_, reloaded := startWatcher(t, configPath)

	writeConfigFile(t, configPath, "port: [unterminated\n")

	select {
	case <-reloaded:
		t.Fatal("expected no reload for invalid config")
	case <-time.After(500 * time.Millisecond):
	}

	writeConfigFile(t, configPath, "port: 7070\n")

	cfg := waitForReload(t, reloaded)
	assert.Equal(t, 7070, cfg.Port)
}
