// Package config provides 12-factor configuration management for aptools.
//
// Configuration is loaded from environment variables with sensible defaults.
// An optional YAML or TOML file can be overlaid on top.
//
// Configuration Sections:
//   - Server: host HTTP server settings (port, host)
//   - Page: page runtime listen address, target origin and host URL
//   - Replay: replay endpoint, timeout and delays
//   - UI: status client host, page and refresh interval
//   - Logging: log level and output format
//   - RateLimit: per-IP rate limiting of the host API
//
// Example Usage:
//
//	cfg, err := config.LoadFile("aptools.yaml")
//	fmt.Printf("Server running on %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//
// Environment Variables:
//   - PORT, HOST
//   - PAGE_ID, PAGE_LISTEN, PAGE_TARGET_ORIGIN, PAGE_HOST_URL
//   - REPLAY_BASE_URL, REPLAY_TIMEOUT, REPLAY_RELOAD_DELAY, REPLAY_SYNTHETIC_DELAY
//   - UI_HOST_URL, UI_PAGE_ID, UI_TARGET_HOST, UI_INTERVAL
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
package config
