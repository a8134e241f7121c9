// Package http provides the host's REST API.
//
// Endpoints:
//   - Health: / and /health
//   - Pages: /pages, /pages/:id/focus
//   - Status: /pages/:id/state (GET_STATE), /pages/:id/badge
//
// A page id of "active" addresses the most recently connected or focused
// page.
//
// Example Usage:
//
//	handlers := http.NewHandlers(pages)
//	router.GET("/pages/:id/state", handlers.GetState)
package http
