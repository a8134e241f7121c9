// Package server assembles the host process: the page registry with its
// badge board, the websocket endpoint pages dial, and the status API.
package server
