// Package relay bridges one page context to the host.
//
// Each Relay is a single-goroutine actor owning the cached snapshot of its
// page. Snapshots arriving from the page replace the cache and are forwarded
// to the host sink; status queries are answered from the cache immediately
// while a fresh snapshot is requested from the page in the background.
//
// Example Usage:
//
//	r := relay.New(pageID, pagePort, sink).WithLogger(logger)
//	go r.Run(ctx)
//	_ = r.Send(protocol.StateChanged{State: snap})
//	snap, err := r.Query(ctx)
package relay
