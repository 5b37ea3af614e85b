package guardrail

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watcher reloads a YAML rule file into a Guardrail whenever it changes.
// The parent directory is watched so editors that replace the file by rename
// are picked up.
type Watcher struct {
	watcher   *fsnotify.Watcher
	guardrail *Guardrail
	path      string
	debounce  time.Duration
	onReload  func(*RuleSet, error)

	done     chan struct{}
	stopOnce sync.Once
	timerMu  sync.Mutex
	timer    *time.Timer
}

// WatcherConfig holds configuration for NewWatcher.
type WatcherConfig struct {
	Path     string
	Debounce time.Duration
	// OnReload, when set, is called after every reload attempt.
	OnReload func(*RuleSet, error)
}

// NewWatcher loads cfg.Path into g once and prepares to watch it.
func NewWatcher(g *Guardrail, cfg WatcherConfig) (*Watcher, error) {
	if cfg.Path == "" {
		return nil, errors.New("rule file path is required")
	}
	if cfg.Debounce == 0 {
		cfg.Debounce = 100 * time.Millisecond
	}

	rs, err := LoadRuleSet(cfg.Path)
	if err != nil {
		return nil, err
	}
	if err := g.SetRuleSet(rs); err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return &Watcher{
		watcher:   fw,
		guardrail: g,
		path:      filepath.Clean(cfg.Path),
		debounce:  cfg.Debounce,
		onReload:  cfg.OnReload,
		done:      make(chan struct{}),
	}, nil
}

// Start begins watching.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch rule file: %w", err)
	}
	go w.eventLoop()

	log.Info().Str("path", w.path).Msg("Guardrail rule watcher started")
	return nil
}

// Stop stops watching and cancels a pending reload.
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() {
		close(w.done)
	})

	w.timerMu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timerMu.Unlock()

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	log.Info().Msg("Guardrail rule watcher stopped")
	return nil
}

func (w *Watcher) eventLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.scheduleReload()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("Guardrail watcher error")

		case <-w.done:
			return
		}
	}
}

// scheduleReload coalesces bursts of events into one reload.
func (w *Watcher) scheduleReload() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case <-w.done:
			return
		default:
			w.reload()
		}
	})
}

func (w *Watcher) reload() {
	rs, err := LoadRuleSet(w.path)
	if err == nil {
		err = w.guardrail.SetRuleSet(rs)
	}

	if err != nil {
		// keep serving the previous rule set
		log.Error().Err(err).Str("path", w.path).Msg("Failed to reload guardrail rules")
	} else {
		log.Info().Str("path", w.path).Msg("Guardrail rules reloaded")
	}

	if w.onReload != nil {
		w.onReload(rs, err)
	}
}
