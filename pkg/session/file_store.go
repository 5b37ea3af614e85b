package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

const fileStoreExt = ".json"

// FileStore writes one JSON document per session under a directory.
// Writes go to a temp file first and are renamed into place.
type FileStore struct {
	dir string
	mu  sync.RWMutex
}

// NewFileStore creates dir if needed and returns a store rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("session directory is required")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}
	log.Info().Str("dir", dir).Msg("File session store initialized")
	return &FileStore{dir: dir}, nil
}

func (f *FileStore) path(id string) string {
	return filepath.Join(f.dir, id+fileStoreExt)
}

func (f *FileStore) Save(_ context.Context, s *Session) error {
	if err := ValidateID(s.ID); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	tmp, err := os.CreateTemp(f.dir, s.ID+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write session: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, f.path(s.ID)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move session into place: %w", err)
	}
	return nil
}

func (f *FileStore) Load(_ context.Context, id string) (*Session, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	f.mu.RLock()
	data, err := os.ReadFile(f.path(id))
	f.mu.RUnlock()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", id, err)
	}
	return &s, nil
}

func (f *FileStore) Delete(_ context.Context, id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// List decodes every record when f has a field set; an empty filter only
// reads the directory.
func (f *FileStore) List(ctx context.Context, filter Filter) ([]string, error) {
	f.mu.RLock()
	entries, err := os.ReadDir(f.dir)
	f.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}

	unfiltered := filter.UserID == nil && filter.IsExpired == nil
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, fileStoreExt) {
			continue
		}
		id := strings.TrimSuffix(name, fileStoreExt)
		if unfiltered {
			ids = append(ids, id)
			continue
		}

		s, err := f.Load(ctx, id)
		if err != nil {
			log.Warn().Err(err).Str("session_id", id).Msg("Skipping unreadable session file")
			continue
		}
		if filter.Matches(s) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *FileStore) Close() error { return nil }
