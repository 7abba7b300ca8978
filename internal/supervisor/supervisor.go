// Package supervisor runs the background sweeps: the stale sweep that
// warns on and eventually auto-fails overrunning tasks, and the purge
// sweep that trims old terminal tasks. Both are goroutine loops owned by
// the serve command and stopped on shutdown.
package supervisor

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dotcommander/sparkq/internal/core"
	"github.com/dotcommander/sparkq/internal/models"
)

// Options configure the supervisor loops.
type Options struct {
	// SweepInterval is how often running tasks are checked for staleness.
	SweepInterval time.Duration
	// PurgeInterval is how often the terminal-task purge runs.
	PurgeInterval time.Duration
	// Retention is how long terminal tasks are kept after finishing.
	Retention time.Duration
}

const defaultPurgeInterval = time.Hour

// Supervisor owns the background sweep goroutines.
type Supervisor struct {
	core   *core.Core
	logger *slog.Logger
	opts   Options

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// New builds a supervisor around a core. Zero intervals get defaults.
func New(c *core.Core, logger *slog.Logger, opts Options) *Supervisor {
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = time.Minute
	}
	if opts.PurgeInterval <= 0 {
		opts.PurgeInterval = defaultPurgeInterval
	}
	return &Supervisor{
		core:   c,
		logger: logger,
		opts:   opts,
		stop:   make(chan struct{}),
	}
}

// Start launches the sweep loops. Call Stop to shut them down.
func (s *Supervisor) Start() {
	s.wg.Add(2)
	go s.staleLoop()
	go s.purgeLoop()
	s.logger.Info("supervisor started",
		"sweep_interval", s.opts.SweepInterval.String(),
		"purge_interval", s.opts.PurgeInterval.String(),
		"retention", s.opts.Retention.String())
}

// Stop halts the loops and waits for in-flight sweeps to finish.
func (s *Supervisor) Stop() {
	s.once.Do(func() { close(s.stop) })
	s.wg.Wait()
}

func (s *Supervisor) staleLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.SweepStale()
		}
	}
}

func (s *Supervisor) purgeLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.opts.PurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.SweepPurge()
		}
	}
}

// SweepStale examines every running task once. A task past its timeout
// gets one stale warning; a task past twice its timeout is auto-failed.
// A task that blows straight past both thresholds between sweeps is
// warned and failed in the same pass, in that order.
func (s *Supervisor) SweepStale() {
	tasks, err := s.core.ListRunning()
	if err != nil {
		s.logger.Error("stale sweep: listing running tasks failed", "error", err)
		return
	}

	now := s.core.Clock().Now()
	for _, t := range tasks {
		if t.StartedAt == nil {
			continue
		}
		elapsed := now.Sub(*t.StartedAt)
		timeout := time.Duration(t.TimeoutSeconds) * time.Second

		if elapsed <= timeout {
			continue
		}

		if t.StaleWarnedAt == nil {
			if err := s.core.MarkStaleWarned(t.ID); err != nil {
				s.logger.Error("stale sweep: warn failed", "task_id", t.ID, "error", err)
				continue
			}
			s.logger.Warn("task running past timeout",
				"task_id", t.ID, "friendly_id", t.FriendlyID,
				"elapsed", elapsed.Round(time.Second).String(),
				"timeout", timeout.String())
		}

		if elapsed > 2*timeout {
			reason := fmt.Sprintf("auto-failed: exceeded %s timeout (ran %s)",
				timeout, elapsed.Round(time.Second))
			if _, err := s.core.AutoFail(t.ID, reason); err != nil {
				// A worker finishing first turns this into a precondition
				// error; that race resolving either way is fine.
				if models.IsKind(err, models.KindPrecondition) {
					continue
				}
				s.logger.Error("stale sweep: auto-fail failed", "task_id", t.ID, "error", err)
				continue
			}
			s.logger.Warn("task auto-failed",
				"task_id", t.ID, "friendly_id", t.FriendlyID,
				"elapsed", elapsed.Round(time.Second).String())
		}
	}
}

// SweepPurge deletes terminal tasks older than the retention window.
func (s *Supervisor) SweepPurge() {
	if s.opts.Retention <= 0 {
		return
	}
	purged, err := s.core.PurgeOlderThan(s.opts.Retention)
	if err != nil {
		s.logger.Error("purge sweep failed", "error", err)
		return
	}
	if purged > 0 {
		s.logger.Info("purged terminal tasks", "count", purged)
	}
}
