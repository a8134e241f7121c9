// Package ws carries protocol messages between a page runtime and the host
// over a websocket.
//
// The host endpoint upgrades GET /pages/connect, registers the page with the
// registry (starting its relay) and pumps frames into it until the page
// disconnects. The page side dials the same endpoint and gets a Conn usable
// as the runtime's outbound port.
//
// Frames are JSON envelopes produced by protocol.Encode. The first frame the
// host sends is a Hello carrying the page id it registered.
package ws
