// Package runner drives one queue as an OS process. It holds the
// per-queue advisory lock, polls the control server for the queue head,
// claims it, and streams each claim descriptor to stdout as one JSON
// line for the wrapping worker to consume. The runner never executes
// tools itself.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dotcommander/sparkq/internal/client"
	"github.com/dotcommander/sparkq/internal/lockfile"
	"github.com/dotcommander/sparkq/internal/models"
)

// Mode selects how long the runner keeps claiming.
type Mode string

// Runner modes.
const (
	// ModeOnce claims at most one task, prints it, and exits.
	ModeOnce Mode = "once"
	// ModeDrain claims until the queue is empty, then exits.
	ModeDrain Mode = "drain"
	// ModeWatch claims forever, sleeping the poll interval when idle.
	ModeWatch Mode = "watch"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeOnce, ModeDrain, ModeWatch:
		return Mode(s), nil
	default:
		return "", models.Validationf("unknown runner mode: %s (want once, drain, or watch)", s)
	}
}

// ErrLockHeld marks the lock-contention exit path (exit code 2).
var ErrLockHeld = errors.New("runner lock held by another process")

// Options configure a runner.
type Options struct {
	QueueName    string
	Mode         Mode
	PollInterval time.Duration
	// Stdout receives claim descriptors, one JSON document per line.
	Stdout io.Writer
	// Instructions (and other human-facing text) go to stderr via the logger.
	Logger *slog.Logger
}

// Runner claims tasks from a single queue.
type Runner struct {
	api      *client.Client
	opts     Options
	queue    *models.Queue
	lock     *lockfile.Lock
	workerID string
}

// New resolves the queue by name and prepares a runner. The lock is not
// taken yet; Run acquires it.
func New(api *client.Client, opts Options) (*Runner, error) {
	if opts.QueueName == "" {
		return nil, models.Validationf("queue name is required")
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}

	queue, err := api.GetQueueByName(opts.QueueName)
	if err != nil {
		return nil, err
	}

	host, err := os.Hostname()
	if err != nil {
		host = "local"
	}

	return &Runner{
		api:      api,
		opts:     opts,
		queue:    queue,
		workerID: fmt.Sprintf("%s/%s", host, queue.Name),
	}, nil
}

// LockPath returns the per-queue lock location in the OS temp dir.
func LockPath(queueID string) string {
	return filepath.Join(os.TempDir(), "sparkq-runner-"+queueID+".lock")
}

// Run acquires the queue lock and executes the configured mode until
// done or ctx is cancelled. Returns ErrLockHeld when another live
// runner owns the queue.
func (r *Runner) Run(ctx context.Context) error {
	lock, err := lockfile.Acquire(LockPath(r.queue.ID))
	if err != nil {
		var held *lockfile.HeldError
		if errors.As(err, &held) {
			return fmt.Errorf("%w: queue %s pid %d", ErrLockHeld, r.queue.Name, held.PID)
		}
		return err
	}
	r.lock = lock
	defer r.lock.Release()

	r.opts.Logger.Info("runner started",
		"queue", r.queue.Name, "queue_id", r.queue.ID,
		"mode", string(r.opts.Mode), "worker_id", r.workerID)
	if r.queue.Instructions != "" {
		r.opts.Logger.Info("queue instructions", "instructions", r.queue.Instructions)
	}

	switch r.opts.Mode {
	case ModeOnce:
		_, err := r.claimOne(ctx)
		return err
	case ModeDrain:
		return r.drain(ctx)
	case ModeWatch:
		return r.watch(ctx)
	default:
		return models.Validationf("unknown runner mode: %s", r.opts.Mode)
	}
}

// claimOne peeks the queue head and tries to claim it. Returns
// (false, nil) when the queue is empty. A claim conflict means another
// claimer won the head; the caller re-polls.
func (r *Runner) claimOne(ctx context.Context) (bool, error) {
	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		head, err := r.api.Peek(r.queue.ID)
		if err != nil {
			return false, err
		}
		if head == nil {
			return false, nil
		}

		desc, err := r.api.Claim(head.ID)
		if err != nil {
			if models.IsKind(err, models.KindConflict) {
				r.opts.Logger.Debug("lost claim race, re-polling", "task_id", head.ID)
				continue
			}
			return false, err
		}

		if err := r.emit(desc); err != nil {
			return false, err
		}
		r.opts.Logger.Info("task claimed",
			"task_id", desc.ID, "friendly_id", desc.FriendlyID,
			"tool", desc.ToolName, "attempt", desc.Attempts)
		return true, nil
	}
}

func (r *Runner) drain(ctx context.Context) error {
	for {
		claimed, err := r.claimOne(ctx)
		if err != nil {
			return err
		}
		if !claimed {
			r.opts.Logger.Info("queue drained", "queue", r.queue.Name)
			return nil
		}
	}
}

func (r *Runner) watch(ctx context.Context) error {
	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()

	for {
		claimed, err := r.claimOne(ctx)
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil
		case err != nil:
			// Fatal for this tick only: log, sleep, keep watching.
			r.opts.Logger.Error("claim attempt failed", "queue", r.queue.Name, "error", err)
		case claimed:
			// Something was claimed; try again immediately.
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// emit writes one claim descriptor as a JSON line on stdout.
func (r *Runner) emit(desc *models.ClaimDescriptor) error {
	b, err := json.Marshal(desc)
	if err != nil {
		return fmt.Errorf("encode claim descriptor: %w", err)
	}
	if _, err := fmt.Fprintln(r.opts.Stdout, string(b)); err != nil {
		return fmt.Errorf("write claim descriptor: %w", err)
	}
	return nil
}

// Queue returns the resolved queue.
func (r *Runner) Queue() *models.Queue { return r.queue }

// WorkerID identifies this runner instance in logs.
func (r *Runner) WorkerID() string { return r.workerID }
