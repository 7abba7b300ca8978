package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEffectiveDefaults(t *testing.T) {
	s := Settings{}.Effective()

	assert.Equal(t, "127.0.0.1", s.Server.Host)
	assert.Equal(t, 8475, s.Server.Port)
	assert.Equal(t, "wal", s.Database.Mode)
	assert.Equal(t, 7, s.Purge.OlderThanDays)
	assert.Equal(t, 5, s.QueueRunner.PollInterval)
	assert.Equal(t, 60, s.QueueRunner.AutoFailIntervalSeconds)

	assert.Equal(t, 30, s.TaskClasses["FAST_SCRIPT"].Timeout)
	assert.Equal(t, 120, s.TaskClasses["MEDIUM_SCRIPT"].Timeout)
	assert.Equal(t, 300, s.TaskClasses["LLM_LITE"].Timeout)
	assert.Equal(t, 900, s.TaskClasses["LLM_HEAVY"].Timeout)
	assert.NotNil(t, s.Tools)
}

func TestEffectiveClamps(t *testing.T) {
	s := Settings{
		Server: ServerSettings{Port: 99999},
		Purge:  PurgeSettings{OlderThanDays: 100000},
		QueueRunner: QueueRunnerSettings{
			PollInterval:            -1,
			AutoFailIntervalSeconds: -1,
		},
	}.Effective()

	assert.Equal(t, 8475, s.Server.Port)
	assert.Equal(t, 3650, s.Purge.OlderThanDays)
	assert.Equal(t, 5, s.QueueRunner.PollInterval)
	assert.Equal(t, 60, s.QueueRunner.AutoFailIntervalSeconds)
}

func TestEffectiveKeepsExplicitValues(t *testing.T) {
	s := Settings{
		Server: ServerSettings{Host: "0.0.0.0", Port: 9000},
		Purge:  PurgeSettings{OlderThanDays: 30},
		TaskClasses: map[string]TaskClassSettings{
			"MEDIUM_SCRIPT": {Timeout: 240},
			"CUSTOM":        {Timeout: 15},
		},
	}.Effective()

	assert.Equal(t, "0.0.0.0", s.Server.Host)
	assert.Equal(t, 9000, s.Server.Port)
	assert.Equal(t, 30, s.Purge.OlderThanDays)
	assert.Equal(t, 240, s.TaskClasses["MEDIUM_SCRIPT"].Timeout)
	assert.Equal(t, 15, s.TaskClasses["CUSTOM"].Timeout)
	// Built-ins not mentioned in config still get defaults.
	assert.Equal(t, 900, s.TaskClasses["LLM_HEAVY"].Timeout)
}

func TestServerURLPrecedence(t *testing.T) {
	s := Settings{}.Effective()
	assert.Equal(t, "http://127.0.0.1:8475", s.ServerURL())

	s.Server.URL = "http://queue.internal:9999"
	assert.Equal(t, "http://queue.internal:9999", s.ServerURL())

	t.Setenv("SPARKQ_SERVER_URL", "http://env-wins:1234")
	assert.Equal(t, "http://env-wins:1234", s.ServerURL())
}

func TestDurationAccessors(t *testing.T) {
	s := Settings{
		Purge: PurgeSettings{OlderThanDays: 3},
		QueueRunner: QueueRunnerSettings{
			PollInterval:            10,
			AutoFailIntervalSeconds: 90,
		},
	}.Effective()

	assert.Equal(t, 10*time.Second, s.PollIntervalDuration())
	assert.Equal(t, 90*time.Second, s.AutoFailInterval())
	assert.Equal(t, 72*time.Hour, s.Retention())
}

func TestLoadSettingsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  host: 10.0.0.1
  port: 7000
purge:
  older_than_days: 14
tools:
  llm-opus:
    task_class: LLM_HEAVY
    timeout: 600
`), 0600))

	s, err := loadSettingsFile(path)
	require.NoError(t, err)
	s = s.Effective()

	assert.Equal(t, "10.0.0.1", s.Server.Host)
	assert.Equal(t, 7000, s.Server.Port)
	assert.Equal(t, 14, s.Purge.OlderThanDays)
	assert.Equal(t, "LLM_HEAVY", s.Tools["llm-opus"].TaskClass)
	assert.Equal(t, 600, s.Tools["llm-opus"].Timeout)
}

func TestLoadSettingsFileErrors(t *testing.T) {
	_, err := loadSettingsFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("server: [not a map"), 0600))
	_, err = loadSettingsFile(bad)
	assert.ErrorContains(t, err, "parse")
}

func TestGetDBPathPrecedence(t *testing.T) {
	t.Cleanup(func() { SetDBPathOverride("") })

	t.Setenv("SPARKQ_DB_PATH", "/tmp/env.db")
	path, err := GetDBPath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/env.db", path)

	SetDBPathOverride("/tmp/flag.db")
	path, err = GetDBPath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/flag.db", path, "the flag override beats the environment")
}

func TestEnsureDBDir(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "data", "sparkq.db")
	dir, err := EnsureDBDir(dbPath)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
