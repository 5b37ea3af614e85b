package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const (
	DefaultSweepSchedule = "@every 1h"
	DefaultMaxAgeHours   = 24
)

// Sweeper runs Manager.ExpireStale on a cron schedule.
type Sweeper struct {
	manager     *Manager
	schedule    string
	maxAgeHours int

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewSweeper creates a sweeper; empty schedule and non-positive maxAgeHours
// fall back to the defaults.
func NewSweeper(manager *Manager, schedule string, maxAgeHours int) *Sweeper {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	if maxAgeHours <= 0 {
		maxAgeHours = DefaultMaxAgeHours
	}
	return &Sweeper{
		manager:     manager,
		schedule:    schedule,
		maxAgeHours: maxAgeHours,
	}
}

// Start registers the job and starts the scheduler.
func (s *Sweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("sweeper is already running")
	}

	c := cron.New()
	if _, err := c.AddFunc(s.schedule, s.sweep); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}
	c.Start()

	s.cron = c
	s.running = true

	log.Info().
		Str("schedule", s.schedule).
		Int("max_age_hours", s.maxAgeHours).
		Msg("Session sweeper started")
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (s *Sweeper) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return errors.New("sweeper is not running")
	}

	<-s.cron.Stop().Done()
	s.running = false

	log.Info().Msg("Session sweeper stopped")
	return nil
}

// RunOnce performs a single sweep immediately.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	return s.manager.ExpireStale(ctx, s.maxAgeHours)
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if _, err := s.RunOnce(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to expire stale sessions")
	}
}
