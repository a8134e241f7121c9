// Package types provides data structures shared by the page, relay and UI
// contexts.
//
// Core Types:
//   - Snapshot: reduced session projection sent across context boundaries
//   - PageID, Page: identity of a connected page instance
//
// Example Usage:
//
//	id := "42"
//	snap := types.Snapshot{Initialized: true, VideoID: &id}
//	if snap.HasTarget() { ... }
package types
