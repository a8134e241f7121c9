// Package main is the entry point for the aptools host.
//
// The host keeps one relay per connected page, shows each page's badge and
// answers status queries for the active page.
//
//	Page runtime ──ws──▶ Host ◀──http── Status client
//
// The server provides:
//   - Websocket endpoint pages connect to (/pages/connect)
//   - REST API for page state and badges
//   - Prometheus metrics (/metrics)
//   - Per-IP rate limiting of the REST API
//
// Configuration:
//   - Environment variables (12-factor)
//   - Optional YAML or TOML file (-config)
//   - CLI flags (override both)
//
// Usage:
//
//	./server -port 8000
//	./server -config aptools.yaml -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
