package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings represents configuration loaded from config.yaml.
// Field names match the snake_case YAML keys recognized by sparkq.
type Settings struct {
	Server      ServerSettings               `yaml:"server"`
	Database    DatabaseSettings             `yaml:"database"`
	Purge       PurgeSettings                `yaml:"purge"`
	QueueRunner QueueRunnerSettings          `yaml:"queue_runner"`
	TaskClasses map[string]TaskClassSettings `yaml:"task_classes"`
	Tools       map[string]ToolSettings      `yaml:"tools"`
}

// ServerSettings controls the local bind address of the control server.
// URL, when set, overrides the address runners and CLI clients dial.
type ServerSettings struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	URL  string `yaml:"url"`
}

// DatabaseSettings controls the storage file and journaling mode.
type DatabaseSettings struct {
	Path string `yaml:"path"`
	Mode string `yaml:"mode"`
}

// PurgeSettings controls the retention threshold for terminal tasks.
type PurgeSettings struct {
	OlderThanDays int `yaml:"older_than_days"`
}

// QueueRunnerSettings controls runner polling and the supervisor period.
type QueueRunnerSettings struct {
	PollInterval            int `yaml:"poll_interval"`
	AutoFailIntervalSeconds int `yaml:"auto_fail_interval_seconds"`
}

// TaskClassSettings carries the default timeout (seconds) for a class.
type TaskClassSettings struct {
	Timeout int `yaml:"timeout"`
}

// ToolSettings maps a tool name to its task class and optional per-tool
// timeout override.
type ToolSettings struct {
	TaskClass string `yaml:"task_class"`
	Timeout   int    `yaml:"timeout"`
}

const (
	defaultHost             = "127.0.0.1"
	defaultPort             = 8475
	defaultPurgeDays        = 7
	defaultPollInterval     = 5
	defaultAutoFailInterval = 60
)

// DefaultTaskClassTimeouts are the built-in class timeouts (seconds),
// used when config.yaml does not override them. MEDIUM_SCRIPT doubles as
// the sentinel fallback for unknown classes (see tools.Resolver).
var DefaultTaskClassTimeouts = map[string]int{
	"FAST_SCRIPT":   30,
	"MEDIUM_SCRIPT": 120,
	"LLM_LITE":      300,
	"LLM_HEAVY":     900,
}

// Effective returns settings with defaults applied and obvious nonsense
// clamped. The zero Settings value yields a fully usable configuration.
func (s Settings) Effective() Settings {
	if s.Server.Host == "" {
		s.Server.Host = defaultHost
	}
	if s.Server.Port <= 0 || s.Server.Port > 65535 {
		s.Server.Port = defaultPort
	}
	if s.Database.Mode == "" {
		s.Database.Mode = "wal"
	}
	if s.Purge.OlderThanDays <= 0 {
		s.Purge.OlderThanDays = defaultPurgeDays
	}
	if s.Purge.OlderThanDays > 3650 {
		s.Purge.OlderThanDays = 3650
	}
	if s.QueueRunner.PollInterval <= 0 {
		s.QueueRunner.PollInterval = defaultPollInterval
	}
	if s.QueueRunner.AutoFailIntervalSeconds <= 0 {
		s.QueueRunner.AutoFailIntervalSeconds = defaultAutoFailInterval
	}
	if s.TaskClasses == nil {
		s.TaskClasses = map[string]TaskClassSettings{}
	}
	for class, timeout := range DefaultTaskClassTimeouts {
		if tc, ok := s.TaskClasses[class]; !ok || tc.Timeout <= 0 {
			s.TaskClasses[class] = TaskClassSettings{Timeout: timeout}
		}
	}
	if s.Tools == nil {
		s.Tools = map[string]ToolSettings{}
	}
	return s
}

// ServerURL returns the base URL clients dial, preferring server.url then
// the SPARKQ_SERVER_URL environment variable, then host:port.
func (s Settings) ServerURL() string {
	if v := os.Getenv("SPARKQ_SERVER_URL"); v != "" {
		return v
	}
	if s.Server.URL != "" {
		return s.Server.URL
	}
	return fmt.Sprintf("http://%s:%d", s.Server.Host, s.Server.Port)
}

// PollIntervalDuration returns the runner watch-mode sleep.
func (s Settings) PollIntervalDuration() time.Duration {
	return time.Duration(s.QueueRunner.PollInterval) * time.Second
}

// AutoFailInterval returns the supervisor stale-loop period.
func (s Settings) AutoFailInterval() time.Duration {
	return time.Duration(s.QueueRunner.AutoFailIntervalSeconds) * time.Second
}

// Retention returns the purge-loop retention window.
func (s Settings) Retention() time.Duration {
	return time.Duration(s.Purge.OlderThanDays) * 24 * time.Hour
}

// settingsOnce, settings, settingsErr implement the sync.Once lazy-load
// singleton for config. The mutex-protected overrides support CLI flags
// (--db-path, --config) that must win over file and environment lookup.
//
//nolint:gochecknoglobals // sync.Once singleton + RWMutex overrides are intentional process-wide state
var (
	settingsOnce sync.Once
	settings     Settings
	settingsErr  error

	overrideMu         sync.RWMutex
	dbPathOverride     string
	configPathOverride string
)

// SetDBPathOverride sets a process-wide database path override.
// Intended for CLI flag support (--db-path).
func SetDBPathOverride(path string) {
	overrideMu.Lock()
	dbPathOverride = path
	overrideMu.Unlock()
}

// SetConfigPathOverride points settings loading at an explicit file.
// Intended for CLI flag support (--config).
func SetConfigPathOverride(path string) {
	overrideMu.Lock()
	configPathOverride = path
	overrideMu.Unlock()
}

func getDBPathOverride() string {
	overrideMu.RLock()
	defer overrideMu.RUnlock()
	return dbPathOverride
}

func getConfigPathOverride() string {
	overrideMu.RLock()
	defer overrideMu.RUnlock()
	return configPathOverride
}

// LoadSettings loads configuration once using the documented lookup order.
// Lookup order (first found wins):
// 1) --config override
// 2) ~/.config/sparkq/config.yaml
// 3) /etc/sparkq/config.yaml
// 4) ./config.yaml (lowest priority; allows repo-local overrides)
// Defaults are applied via Effective. Environment variables are handled
// separately (SPARKQ_DB_PATH, SPARKQ_SERVER_URL).
func LoadSettings() (Settings, error) {
	settingsOnce.Do(func() {
		settings, settingsErr = loadSettingsOnce()
		settings = settings.Effective()
	})
	return settings, settingsErr
}

func loadSettingsOnce() (Settings, error) {
	if override := getConfigPathOverride(); override != "" {
		return loadSettingsFile(override)
	}

	dir, err := ConfigDir()
	if err != nil {
		return Settings{}, err
	}

	candidates := []string{
		filepath.Join(dir, "config.yaml"),
		filepath.Join(string(os.PathSeparator), "etc", "sparkq", "config.yaml"),
		"config.yaml",
	}
	for _, path := range candidates {
		s, err := loadSettingsFile(path)
		if err == nil {
			return s, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return Settings{}, err
		}
	}
	return Settings{}, nil
}

func loadSettingsFile(path string) (Settings, error) {
	b, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the documented lookup order or an explicit flag
	if err != nil {
		return Settings{}, err
	}

	var s Settings
	if err := yaml.Unmarshal(b, &s); err != nil {
		return Settings{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return s, nil
}

// GetDBPath resolves the database file location.
// Precedence: --db-path flag > SPARKQ_DB_PATH > database.path > default.
func GetDBPath() (string, error) {
	if override := getDBPathOverride(); override != "" {
		return override, nil
	}
	if env := os.Getenv("SPARKQ_DB_PATH"); env != "" {
		return env, nil
	}
	if s, err := LoadSettings(); err == nil && s.Database.Path != "" {
		return expandHome(s.Database.Path)
	}

	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "sparkq.db"), nil
}

// DataDir returns the directory holding the durable store and server.lock.
func DataDir() (string, error) {
	dbPath, err := GetDBPath()
	if err != nil {
		return "", err
	}
	return filepath.Dir(dbPath), nil
}

// EnsureDBDir creates the parent directory for the database file.
func EnsureDBDir(dbPath string) (string, error) {
	dir := filepath.Dir(dbPath)
	if dir == "" || dir == "." {
		return dir, nil
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", err
	}
	return dir, nil
}

func expandHome(path string) (string, error) {
	if len(path) < 2 || path[0] != '~' || path[1] != os.PathSeparator {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, path[2:]), nil
}
