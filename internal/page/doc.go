// Package page is the page-context runtime.
//
// A Runtime owns the session machine of one page instance together with the
// intercepting HTTP client and the replayer. It publishes every snapshot on
// its outbound port and answers fetch requests arriving from the relay.
//
// The runtime is exposed to a browser as a local reverse proxy in front of
// the target site. Every proxied request passes through the interceptor,
// top-level documents drive navigation and media probing, and two control
// endpoints stand in for the on-page button:
//
//	POST /_aptools/replay[?duration=SECONDS]
//	GET  /_aptools/state
//	POST /_aptools/navigate?url=URL
package page
