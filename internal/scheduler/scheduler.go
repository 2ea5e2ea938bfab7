// Package scheduler runs the periodic AIRAC rollover check.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/zapponejosh/airac-api/internal/airac"
)

// Publisher receives the effective cycle on every check and reports whether
// it changed since the previous check.
type Publisher interface {
	SetCurrent(c airac.Cycle) bool
}

// RolloverScheduler checks on a cron schedule (UTC) which cycle is
// effective and logs when a new one has started.
type RolloverScheduler struct {
	cronEngine *cron.Cron
	spec       string
	publisher  Publisher
	logger     *slog.Logger
	now        func() time.Time
}

// New creates a scheduler for the given 5-field cron spec.
func New(spec string, publisher Publisher, logger *slog.Logger) *RolloverScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RolloverScheduler{
		cronEngine: cron.New(cron.WithLocation(time.UTC)),
		spec:       spec,
		publisher:  publisher,
		logger:     logger,
		now:        time.Now,
	}
}

// Start runs one check immediately, then schedules the rest.
func (s *RolloverScheduler) Start() error {
	s.logger.Info("starting rollover scheduler", slog.String("spec", s.spec))

	if _, err := s.cronEngine.AddFunc(s.spec, func() { s.Check() }); err != nil {
		return fmt.Errorf("add rollover job %q: %w", s.spec, err)
	}

	s.Check()
	s.cronEngine.Start()
	return nil
}

// Stop halts the scheduler and returns a context that is done once any
// running check has finished.
func (s *RolloverScheduler) Stop() context.Context {
	s.logger.Info("stopping rollover scheduler")
	return s.cronEngine.Stop()
}

// Check publishes the cycle effective now and returns it.
func (s *RolloverScheduler) Check() airac.Cycle {
	c := airac.CurrentAt(s.now())

	if s.publisher.SetCurrent(c) {
		s.logger.Info("airac cycle rollover", slog.Any("cycle", c))
	} else {
		s.logger.Debug("airac cycle unchanged", slog.Any("cycle", c))
	}
	return c
}
