// Package main is the status view: it polls the host for the active page's
// state once a second and prints the script, video and mode lines.
//
// Usage:
//
//	./status -host http://127.0.0.1:8000
//	./status -page 3f0c... -once
package main
