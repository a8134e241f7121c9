package protocol

import (
	"github.com/GriffinCanCode/aptools/internal/shared/types"
)

// Kind is the wire tag of a message variant.
type Kind string

const (
	KindStateChanged Kind = "AP_TOOLS_STATE"
	KindFetchState   Kind = "AP_TOOLS_GET_STATE"
	KindStateUpdate  Kind = "STATE_UPDATE"
	KindGetState     Kind = "GET_STATE"
	KindStateReply   Kind = "STATE_REPLY"
	KindPageLoading  Kind = "PAGE_LOADING"
	KindHello        Kind = "HELLO"
)

// Message is implemented by every variant of the protocol.
type Message interface {
	Kind() Kind
	isMessage()
}

// StateChanged carries a fresh snapshot out of the page context.
type StateChanged struct {
	State types.Snapshot
}

// FetchState asks the page context to broadcast its snapshot.
type FetchState struct{}

// StateUpdate forwards a snapshot to the host, scoped to the originating page.
type StateUpdate struct {
	PageID types.PageID
	State  types.Snapshot
}

// GetState is a UI query for the cached snapshot.
type GetState struct{}

// StateReply answers GetState.
type StateReply struct {
	State types.Snapshot
}

// PageLoading announces that a page instance began a fresh load.
type PageLoading struct {
	PageID types.PageID
	URL    string
}

// Hello is the first message a page sends after connecting.
type Hello struct {
	PageID types.PageID
	URL    string
}

func (StateChanged) Kind() Kind { return KindStateChanged }
func (FetchState) Kind() Kind   { return KindFetchState }
func (StateUpdate) Kind() Kind  { return KindStateUpdate }
func (GetState) Kind() Kind     { return KindGetState }
func (StateReply) Kind() Kind   { return KindStateReply }
func (PageLoading) Kind() Kind  { return KindPageLoading }
func (Hello) Kind() Kind        { return KindHello }

func (StateChanged) isMessage() {}
func (FetchState) isMessage()   {}
func (StateUpdate) isMessage()  {}
func (GetState) isMessage()     {}
func (StateReply) isMessage()   {}
func (PageLoading) isMessage()  {}
func (Hello) isMessage()        {}
