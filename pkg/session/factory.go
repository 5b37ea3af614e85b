package session

import (
	"context"
	"fmt"
	"path/filepath"
	"time"
)

// StoreOptions selects and configures a Store backend.
type StoreOptions struct {
	// Backend is one of memory, file, sqlite, postgres, redis.
	Backend       string
	Dir           string
	SQLitePath    string
	PostgresDSN   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration
}

// NewStore builds the configured backend wrapped with metrics.
func NewStore(ctx context.Context, opts StoreOptions) (Store, error) {
	var (
		store Store
		err   error
	)

	switch opts.Backend {
	case "", "memory":
		store = NewMemoryStore()
	case "file":
		store, err = NewFileStore(opts.Dir)
	case "sqlite":
		path := opts.SQLitePath
		if path == "" && opts.Dir != "" {
			path = filepath.Join(opts.Dir, "sessions.db")
		}
		store, err = NewSQLiteStore(path)
	case "postgres":
		store, err = NewPostgresStore(ctx, opts.PostgresDSN)
	case "redis":
		store, err = NewRedisStore(ctx, RedisOptions{
			Addr:     opts.RedisAddr,
			Password: opts.RedisPassword,
			DB:       opts.RedisDB,
			TTL:      opts.TTL,
		})
	default:
		return nil, fmt.Errorf("unknown session store %q", opts.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s session store: %w", opts.Backend, err)
	}

	backend := opts.Backend
	if backend == "" {
		backend = "memory"
	}
	return Instrument(backend, store), nil
}
