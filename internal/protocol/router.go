package protocol

import (
	"errors"
	"fmt"
)

var ErrUnhandled = errors.New("no handler for message")

// Router dispatches messages to per-variant handlers. A nil handler means the
// receiving context does not accept that variant.
type Router struct {
	OnStateChanged func(StateChanged)
	OnFetchState   func(FetchState)
	OnStateUpdate  func(StateUpdate)
	OnGetState     func(GetState)
	OnStateReply   func(StateReply)
	OnPageLoading  func(PageLoading)
	OnHello        func(Hello)
}

// Dispatch runs the handler for msg to completion.
func (r *Router) Dispatch(msg Message) error {
	switch m := msg.(type) {
	case StateChanged:
		return call(r.OnStateChanged, m)
	case FetchState:
		return call(r.OnFetchState, m)
	case StateUpdate:
		return call(r.OnStateUpdate, m)
	case GetState:
		return call(r.OnGetState, m)
	case StateReply:
		return call(r.OnStateReply, m)
	case PageLoading:
		return call(r.OnPageLoading, m)
	case Hello:
		return call(r.OnHello, m)
	default:
		return fmt.Errorf("%w: %T", ErrUnknownMessage, msg)
	}
}

func call[M Message](fn func(M), msg M) error {
	if fn == nil {
		return fmt.Errorf("%w: %s", ErrUnhandled, msg.Kind())
	}
	fn(msg)
	return nil
}
