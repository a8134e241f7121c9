// Package registry tracks the page instances connected to the host.
//
// Each registered page gets its own relay actor and its own indicator on the
// badge board. The most recently connected or focused page is the active
// one; status clients that do not name a page are served the active page.
//
// Components:
//   - Manager: page registration, lookup, message delivery and teardown
//
// Features:
//   - Page ids generated with uuid when the page does not bring one
//   - One relay per page, stopped when the page disconnects
//   - State updates applied to the originating page's indicator only
//   - Active page tracking with automatic fallback on close
//
// Example Usage:
//
//	pages := registry.NewManager(badge.NewBoard()).WithLogger(logger)
//	entry, err := pages.Open(ctx, "", pagePort)
//	err = pages.Deliver(entry.ID(), protocol.StateChanged{State: snap})
//	ps, err := pages.Query(ctx, registry.ActivePage)
package registry
