package app

import (
	"os"
	"path/filepath"
)

// ConfigDir returns ~/.config/sparkq/ on all platforms.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "sparkq"), nil
}

// EnsureConfigDir creates the config directory and default config.yaml if missing.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}

	configFile := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return os.WriteFile(configFile, []byte(defaultConfig), 0600)
	}
	return nil
}

const defaultConfig = `# sparkq configuration
# Run: sparkq --help

server:
  host: 127.0.0.1
  port: 8475

# Optional: override the SQLite database location.
# Can also be set via SPARKQ_DB_PATH or --db-path.
# database:
#   path: ~/.config/sparkq/sparkq.db
#   mode: wal

purge:
  older_than_days: 7

queue_runner:
  poll_interval: 5
  auto_fail_interval_seconds: 60

task_classes:
  FAST_SCRIPT:
    timeout: 30
  MEDIUM_SCRIPT:
    timeout: 120
  LLM_LITE:
    timeout: 300
  LLM_HEAVY:
    timeout: 900

tools:
  llm-sonnet:
    task_class: LLM_LITE
  llm-opus:
    task_class: LLM_HEAVY
  run-script:
    task_class: MEDIUM_SCRIPT
`
