// Package config provides 12-factor configuration for the service.
//
// Configuration is loaded from environment variables with sensible defaults.
//
// Configuration Sections:
//   - Server: HTTP server settings (host, port)
//   - Logging: log level and output format
//   - Security: script file access policy
//   - Remote: instance discovery and command transport
//   - RateLimit: per-IP rate limiting
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("listening on %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//
// Environment Variables:
//   - CADBRIDGE_HOST, CADBRIDGE_PORT
//   - CADBRIDGE_LOG_LEVEL, CADBRIDGE_LOG_DEV
//   - CADBRIDGE_SECURITY, CADBRIDGE_BLOCKED_PATHS, CADBRIDGE_ALLOWED_WRITE_PATHS
//   - CADBRIDGE_SCAN_PORT_START, CADBRIDGE_SCAN_PORT_END
//   - CADBRIDGE_ADDON_NAMESPACE, CADBRIDGE_PROBE_TIMEOUT, CADBRIDGE_COMMAND_TIMEOUT
//   - CADBRIDGE_RATE_LIMIT_RPS, CADBRIDGE_RATE_LIMIT_BURST, CADBRIDGE_RATE_LIMIT_ENABLED
package config
