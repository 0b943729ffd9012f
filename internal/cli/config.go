package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/mesh-intelligence/nitrate/internal/paths"
	"github.com/mesh-intelligence/nitrate/internal/tasks"
	"github.com/mesh-intelligence/nitrate/pkg/types"
)

// Config keys.
const (
	cfgKeyBackend    = "backend"
	cfgKeyDataDir    = "data_dir"
	cfgKeyLogLevel   = "log_level"
	cfgKeyLogFormat  = "log_format"
	cfgKeyHTTPAddr   = "http.addr"
	cfgKeyInstance   = "instance"
	cfgKeyAsyncMode  = "async.mode"
	cfgKeyRedisAddr  = "redis.addr"
	cfgKeyRedisQueue = "redis.queue"
	cfgKeyBaseURL    = "base_url"
	cfgKeyUser       = "user"
	cfgKeyBusy       = "sqlite.busy_timeout"
)

// envPrefix maps http.addr to NITRATE_HTTP_ADDR and so on.
const envPrefix = "NITRATE"

// defaultConfigYAML is written to config.yaml on first run.
const defaultConfigYAML = `# nitrate configuration

backend: sqlite

sqlite:
  busy_timeout: 5s

# Data directory (overridden by --data-dir)
# data_dir:

log_level: warn
log_format: console

# Username commands act as when --as is not given
# user:

http:
  addr: ":8080"

base_url: http://localhost:8080
instance: default

async:
  # disabled, goroutine or queue
  mode: disabled

redis:
  # addr: localhost:6379
  # queue: nitrate:default:tasks
`

// loadConfig reads config.yaml from configDir, writing the default file
// first if the directory or file is missing.
func loadConfig(configDir string) (*viper.Viper, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("create config directory: %w", err)
	}
	path := filepath.Join(configDir, paths.ConfigFileName)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(path, []byte(defaultConfigYAML), 0o644); err != nil {
			return nil, fmt.Errorf("write default config: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyBackend, types.BackendSQLite)
	v.SetDefault(cfgKeyBusy, types.DefaultBusyTimeout)
	v.SetDefault(cfgKeyLogLevel, "warn")
	v.SetDefault(cfgKeyLogFormat, "console")
	v.SetDefault(cfgKeyHTTPAddr, ":8080")
	v.SetDefault(cfgKeyInstance, "default")
	v.SetDefault(cfgKeyAsyncMode, string(tasks.ModeDisabled))
	v.SetDefault(cfgKeyBaseURL, "http://localhost:8080")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// storeConfig is the backend configuration for Attach.
func (e *env) storeConfig() types.Config {
	return types.Config{
		Backend:     e.config.GetString(cfgKeyBackend),
		DataDir:     e.dirs.Data,
		BusyTimeout: e.config.GetDuration(cfgKeyBusy),
	}
}

// queueKey is the Redis list tasks are pushed to.
func (e *env) queueKey() string {
	if q := e.config.GetString(cfgKeyRedisQueue); q != "" {
		return q
	}
	return tasks.QueueKey(e.config.GetString(cfgKeyInstance))
}
