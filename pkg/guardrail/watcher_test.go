package guardrail

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// replaceFile swaps path atomically so the watcher never sees a partial file.
func replaceFile(t *testing.T, path, content string) {
	t.Helper()
	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, []byte(content), 0600))
	require.NoError(t, os.Rename(tmp, path))
}

func TestWatcher_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("off_topic_terms: [weather]\n"), 0600))

	g := newTestGuardrail()
	w, err := NewWatcher(g, WatcherConfig{Path: path, Debounce: 10 * time.Millisecond})
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	assert.Equal(t, ViolationOutOfScope, g.Check("read my horoscope weather", "").ViolationType)
	assert.True(t, g.Check("read my horoscope", "").IsSafe)

	replaceFile(t, path, "off_topic_terms: [horoscope]\n")

	assert.Eventually(t, func() bool {
		return g.Check("read my horoscope", "").ViolationType == ViolationOutOfScope
	}, 5*time.Second, 20*time.Millisecond)
}

func TestWatcher_BadReloadKeepsRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("off_topic_terms: [horoscope]\n"), 0600))

	g := newTestGuardrail()
	reloaded := make(chan error, 4)
	w, err := NewWatcher(g, WatcherConfig{
		Path:     path,
		Debounce: 10 * time.Millisecond,
		OnReload: func(_ *RuleSet, err error) { reloaded <- err },
	})
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	replaceFile(t, path, "off_topic_terms: {")

	select {
	case err := <-reloaded:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("rule file was not reloaded")
	}
	assert.Equal(t, ViolationOutOfScope, g.Check("read my horoscope", "").ViolationType)
}

func TestNewWatcher_MissingFile(t *testing.T) {
	_, err := NewWatcher(newTestGuardrail(), WatcherConfig{Path: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
}
