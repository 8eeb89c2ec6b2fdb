package config

// Config is the full on-disk configuration for the site daemon.
//
// All durations are Go duration strings (e.g. "500ms", "30s", "1h").
// Files may be JSON or YAML; YAML is coerced to JSON before strict decoding.
type Config struct {
	Logging LoggingConfig `json:"logging"`
	Server  ServerConfig  `json:"server"`

	// Storage controls the persistence layer job bodies read and write.
	// If omitted, storage is disabled and jobs that need it fail their runs.
	Storage *StorageConfig `json:"storage,omitempty"`

	Cache *CacheConfig `json:"cache,omitempty"`

	// Background controls the in-process task scheduler.
	Background BackgroundConfig `json:"background"`

	GitHub *GitHubConfig `json:"github,omitempty"`
}

type LoggingConfig struct {
	Level   string            `json:"level,omitempty"`
	Console bool              `json:"console"`
	File    LoggingFileConfig `json:"file,omitempty"`
}

type LoggingFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// ServerConfig controls the HTTP surface (admin triggers, metrics, reads).
//
// Security note:
//   - Prefer binding to localhost for admin-only deployments.
//   - Token, when set, is required as a bearer token on /admin/* routes.
type ServerConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`  // default: "127.0.0.1:8080"
	Token   string `json:"token,omitempty"` // optional bearer token (do not log)

	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`

	// Debug mounts /debug/pprof on the same listener.
	Debug bool `json:"debug,omitempty"`
}

// StorageConfig controls the SQLite persistence layer.
//
// Driver values:
//   - "sqlite": SQLite database file
//   - "" or "none": storage disabled
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

type CacheConfig struct {
	DefaultTTL string `json:"default_ttl,omitempty"` // default: "5m"
}

// BackgroundConfig controls the task scheduler core.
//
// Defaults (when fields are omitted/zero):
//   - poll_interval: "30s"
//   - error_backoff: "60s"
//   - stop_timeout:  "10s"
//
// Intervals overrides the per-job recurrence period, keyed by job name
// (garden_growth, weather, github_sync).
type BackgroundConfig struct {
	Enabled      bool              `json:"enabled"`
	PollInterval string            `json:"poll_interval,omitempty"`
	ErrorBackoff string            `json:"error_backoff,omitempty"`
	StopTimeout  string            `json:"stop_timeout,omitempty"`
	Intervals    map[string]string `json:"intervals,omitempty"`
}

// GitHubConfig configures the repository sync job.
type GitHubConfig struct {
	Username   string `json:"username"`
	Token      string `json:"token,omitempty"` // optional; raises the API rate limit
	Timeout    string `json:"timeout,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}
