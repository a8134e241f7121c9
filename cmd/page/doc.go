// Package main runs one page instance.
//
// The page serves the target site through a local reverse proxy whose
// transport carries the progress interceptor, and stays connected to the
// host over a websocket. The replay action is exposed under /_aptools.
//
// Usage:
//
//	./page -target https://apclassroom.collegeboard.org -host http://127.0.0.1:8000
//	curl -X POST 'http://127.0.0.1:8080/_aptools/replay?duration=300'
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
