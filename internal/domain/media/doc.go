// Package media finds the duration of the media playing on a page.
//
// The page runtime has no live media element to ask, so probes work from
// what is available: a duration handed in by the caller, or the last HTML
// document the proxy served.
//
// Features:
//   - StaticProbe for caller-supplied durations
//   - DocumentProbe scanning video elements, player attributes, inline
//     iframe documents and duration meta tags
//   - Charset detection before parsing
//   - ChainProbe to try several probes in order
//
// Example Usage:
//
//	store := media.NewDocumentStore()
//	probe := media.ChainProbe{media.StaticProbe(0), media.NewDocumentProbe(store)}
//	seconds, err := probe.Duration(ctx)
package media
