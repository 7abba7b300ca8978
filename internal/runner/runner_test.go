package runner

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/sparkq/internal/app"
	"github.com/dotcommander/sparkq/internal/client"
	"github.com/dotcommander/sparkq/internal/clock"
	"github.com/dotcommander/sparkq/internal/core"
	"github.com/dotcommander/sparkq/internal/lockfile"
	"github.com/dotcommander/sparkq/internal/models"
	"github.com/dotcommander/sparkq/internal/server"
	"github.com/dotcommander/sparkq/internal/store"
	"github.com/dotcommander/sparkq/internal/tools"
)

func setupControlServer(t *testing.T) (*client.Client, *core.Core) {
	t.Helper()
	db, err := store.InitDBWithPath(filepath.Join(t.TempDir(), "runner-test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	settings := app.Settings{
		Tools: map[string]app.ToolSettings{"run-script": {TaskClass: "MEDIUM_SCRIPT"}},
	}.Effective()

	fake := clock.NewFake(time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC))
	c := core.New(db, fake, tools.NewResolver(settings))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := server.New(c, logger, server.Options{Version: "test"})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return client.New(ts.URL), c
}

func seedRunnerQueue(t *testing.T, c *core.Core, queueName string, tasks int) *models.Queue {
	t.Helper()
	session, err := c.CreateSession("runner-session-"+t.Name(), "")
	require.NoError(t, err)
	queue, err := c.CreateQueue(session.ID, queueName, "read the docs first")
	require.NoError(t, err)
	for i := 0; i < tasks; i++ {
		_, err := c.Enqueue(core.EnqueueParams{QueueID: queue.ID, ToolName: "run-script"})
		require.NoError(t, err)
	}
	return queue
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseMode(t *testing.T) {
	for _, valid := range []string{"once", "drain", "watch"} {
		mode, err := ParseMode(valid)
		require.NoError(t, err)
		assert.Equal(t, Mode(valid), mode)
	}
	_, err := ParseMode("forever")
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindValidation))
}

func TestRunner_UnknownQueue(t *testing.T) {
	api, _ := setupControlServer(t)

	_, err := New(api, Options{QueueName: "no-such-queue", Mode: ModeOnce, Logger: discardLogger()})
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindNotFound))
}

func TestRunner_OnceClaimsOneTask(t *testing.T) {
	api, c := setupControlServer(t)
	queue := seedRunnerQueue(t, c, "once-queue", 2)

	var out bytes.Buffer
	r, err := New(api, Options{
		QueueName: queue.Name,
		Mode:      ModeOnce,
		Stdout:    &out,
		Logger:    discardLogger(),
	})
	require.NoError(t, err)

	require.NoError(t, r.Run(context.Background()))

	lines := nonEmptyLines(t, &out)
	require.Len(t, lines, 1)

	var desc models.ClaimDescriptor
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &desc))
	assert.Equal(t, models.TaskStatusRunning, desc.Status)
	assert.Equal(t, queue.ID, desc.Queue.ID)

	counts, err := c.CountByStatus(queue.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Running)
	assert.Equal(t, 1, counts.Queued)
}

func TestRunner_DrainClaimsEverything(t *testing.T) {
	api, c := setupControlServer(t)
	queue := seedRunnerQueue(t, c, "drain-queue", 3)

	var out bytes.Buffer
	r, err := New(api, Options{
		QueueName: queue.Name,
		Mode:      ModeDrain,
		Stdout:    &out,
		Logger:    discardLogger(),
	})
	require.NoError(t, err)

	require.NoError(t, r.Run(context.Background()))

	lines := nonEmptyLines(t, &out)
	assert.Len(t, lines, 3)

	counts, err := c.CountByStatus(queue.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, counts.Running)
	assert.Equal(t, 0, counts.Queued)
}

func TestRunner_OnceOnEmptyQueueExitsClean(t *testing.T) {
	api, c := setupControlServer(t)
	queue := seedRunnerQueue(t, c, "empty-runner-queue", 0)

	var out bytes.Buffer
	r, err := New(api, Options{
		QueueName: queue.Name,
		Mode:      ModeOnce,
		Stdout:    &out,
		Logger:    discardLogger(),
	})
	require.NoError(t, err)

	require.NoError(t, r.Run(context.Background()))
	assert.Empty(t, nonEmptyLines(t, &out))
}

func TestRunner_LockContention(t *testing.T) {
	api, c := setupControlServer(t)
	queue := seedRunnerQueue(t, c, "locked-queue", 1)

	// A competing holder already owns the queue lock.
	held, err := lockfile.Acquire(LockPath(queue.ID))
	require.NoError(t, err)
	defer held.Release()

	r, err := New(api, Options{
		QueueName: queue.Name,
		Mode:      ModeOnce,
		Stdout:    &bytes.Buffer{},
		Logger:    discardLogger(),
	})
	require.NoError(t, err)

	err = r.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLockHeld))
}

func TestRunner_WatchStopsOnCancel(t *testing.T) {
	api, c := setupControlServer(t)
	queue := seedRunnerQueue(t, c, "watch-queue", 1)

	var out bytes.Buffer
	r, err := New(api, Options{
		QueueName:    queue.Name,
		Mode:         ModeWatch,
		PollInterval: 10 * time.Millisecond,
		Stdout:       &out,
		Logger:       discardLogger(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	// Give the watcher a moment to claim the seeded task, then stop it.
	require.Eventually(t, func() bool {
		counts, err := c.CountByStatus(queue.ID)
		return err == nil && counts.Running == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch mode did not stop on cancel")
	}

	assert.Len(t, nonEmptyLines(t, &out), 1)
}

func nonEmptyLines(t *testing.T, buf *bytes.Buffer) []string {
	t.Helper()
	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(buf.Bytes()))
	for sc.Scan() {
		if sc.Text() != "" {
			lines = append(lines, sc.Text())
		}
	}
	require.NoError(t, sc.Err())
	return lines
}
