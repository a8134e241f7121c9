// Package ui renders the status view of a page.
//
// The view has three labeled fields (script status, target id, mode) and
// two fallbacks: NotRunning when the page cannot be reached, and
// NotOnTarget when the page is on another site. A Poller refreshes the view
// on a fixed interval until its context ends.
//
// Example Usage:
//
//	src := ui.NewHTTPSource("http://127.0.0.1:8000", "active")
//	poller := ui.NewPoller(src, ui.NewTextRenderer(os.Stdout), "apclassroom.collegeboard.org")
//	err := poller.Run(ctx)
package ui
