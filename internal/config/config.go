package config

import "time"

// Config holds runtime settings for the JobPort CLI.
//
// Fields:
//   - ServerBaseURL: base URL of the JobPort HTTP API.
//   - LocalDBPath: path of the SQLite file holding local client state.
//   - RequestTimeout: per-request deadline for API calls.
//   - OnlineCheckInterval: how often the client probes server reachability.
//
// Units: RequestTimeout and OnlineCheckInterval are time.Durations
// (e.g., 3*time.Second).
type Config struct {
	ServerBaseURL       string
	LocalDBPath         string
	RequestTimeout      time.Duration
	OnlineCheckInterval time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerBaseURL = "http://127.0.0.1:8080"
	c.LocalDBPath = "jobport.db"
	c.RequestTimeout = 10 * time.Second
	c.OnlineCheckInterval = 3 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
