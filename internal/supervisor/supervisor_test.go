package supervisor

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/sparkq/internal/app"
	"github.com/dotcommander/sparkq/internal/clock"
	"github.com/dotcommander/sparkq/internal/core"
	"github.com/dotcommander/sparkq/internal/models"
	"github.com/dotcommander/sparkq/internal/store"
	"github.com/dotcommander/sparkq/internal/tools"
)

var sweepStart = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func setupSupervisor(t *testing.T, retention time.Duration) (*Supervisor, *core.Core, *clock.Fake) {
	t.Helper()
	db, err := store.InitDBWithPath(filepath.Join(t.TempDir(), "sup-test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	settings := app.Settings{
		Tools: map[string]app.ToolSettings{"run-script": {TaskClass: "MEDIUM_SCRIPT"}},
	}.Effective()

	fake := clock.NewFake(sweepStart)
	c := core.New(db, fake, tools.NewResolver(settings))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sup := New(c, logger, Options{Retention: retention})
	return sup, c, fake
}

func claimedTask(t *testing.T, c *core.Core, timeoutSeconds int) *models.Task {
	t.Helper()
	session, err := c.CreateSession("sweep-session-"+t.Name(), "")
	require.NoError(t, err)
	queue, err := c.CreateQueue(session.ID, "sweep-queue-"+t.Name(), "")
	require.NoError(t, err)
	task, err := c.Enqueue(core.EnqueueParams{
		QueueID:        queue.ID,
		ToolName:       "run-script",
		TimeoutSeconds: timeoutSeconds,
	})
	require.NoError(t, err)
	_, err = c.Claim(task.ID)
	require.NoError(t, err)
	return task
}

func TestSweepStale_WarnsBeforeFailing(t *testing.T) {
	sup, c, fake := setupSupervisor(t, 0)
	task := claimedTask(t, c, 10)

	// Past the timeout but not past twice the timeout: warn only.
	fake.Advance(11 * time.Second)
	sup.SweepStale()

	got, err := c.GetTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusRunning, got.Status)
	require.NotNil(t, got.StaleWarnedAt)

	// Second tick past twice the timeout: auto-fail.
	fake.Advance(10 * time.Second)
	sup.SweepStale()

	got, err = c.GetTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusFailed, got.Status)
	assert.Contains(t, got.Error, "timeout")
	assert.Equal(t, 1, got.Attempts)

	events, err := c.TaskEvents(task.ID, 0)
	require.NoError(t, err)
	kinds := make([]string, len(events))
	for i, e := range events {
		kinds[i] = e.Kind
	}
	assert.Contains(t, kinds, models.EventKindTaskStaleWarn)
	assert.Equal(t, models.EventKindTaskAutoFailed, kinds[len(kinds)-1])
}

func TestSweepStale_WarnAndFailInOnePass(t *testing.T) {
	sup, c, fake := setupSupervisor(t, 0)
	task := claimedTask(t, c, 1)

	// Blown straight past both thresholds between sweeps.
	fake.Advance(3 * time.Second)
	sup.SweepStale()

	got, err := c.GetTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusFailed, got.Status)
	require.NotNil(t, got.StaleWarnedAt, "the warning is recorded even when the fail lands in the same pass")
}

func TestSweepStale_FreshTasksUntouched(t *testing.T) {
	sup, c, fake := setupSupervisor(t, 0)
	task := claimedTask(t, c, 120)

	fake.Advance(30 * time.Second)
	sup.SweepStale()

	got, err := c.GetTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusRunning, got.Status)
	assert.Nil(t, got.StaleWarnedAt)
}

func TestSweepPurge(t *testing.T) {
	sup, c, fake := setupSupervisor(t, 3*24*time.Hour)
	task := claimedTask(t, c, 60)

	_, err := c.Complete(task.ID, "done", nil)
	require.NoError(t, err)

	// Not old enough yet.
	fake.Advance(24 * time.Hour)
	sup.SweepPurge()
	_, err = c.GetTask(task.ID)
	require.NoError(t, err)

	// Past retention.
	fake.Advance(9 * 24 * time.Hour)
	sup.SweepPurge()
	_, err = c.GetTask(task.ID)
	assert.True(t, models.IsKind(err, models.KindNotFound))
}

func TestStartStop(t *testing.T) {
	sup, _, _ := setupSupervisor(t, time.Hour)
	sup.Start()
	sup.Stop()
	// Stop is idempotent.
	sup.Stop()
}
