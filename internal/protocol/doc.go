// Package protocol defines the typed messages exchanged between the page,
// relay and UI contexts.
//
// Every message is a variant of the Message tagged union. On the wire a
// message is a JSON envelope whose "type" field carries the variant tag:
//
//	AP_TOOLS_STATE      page  → relay   StateChanged{state}
//	AP_TOOLS_GET_STATE  relay → page    FetchState{}
//	STATE_UPDATE        relay → host    StateUpdate{pageId, state}
//	GET_STATE           UI    → relay   GetState{}
//	STATE_REPLY         relay → UI      StateReply{state}
//	PAGE_LOADING        page  → host    PageLoading{pageId, url}
//	HELLO               page  → host    Hello{pageId, url}
//
// Delivery through a Port is fire-and-forget: a receiver that is not ready
// causes Send to fail, and callers are expected to drop the message.
package protocol
