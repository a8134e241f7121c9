package protocol

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/aptools/internal/shared/types"
)

var ErrUnknownMessage = errors.New("unknown message type")

type envelope struct {
	Type   Kind            `json:"type"`
	PageID types.PageID    `json:"pageId,omitempty"`
	URL    string          `json:"url,omitempty"`
	State  *types.Snapshot `json:"state,omitempty"`
}

// Encode serializes a message into its JSON envelope.
func Encode(msg Message) ([]byte, error) {
	env := envelope{Type: msg.Kind()}

	switch m := msg.(type) {
	case StateChanged:
		env.State = &m.State
	case FetchState, GetState:
	case StateUpdate:
		env.PageID = m.PageID
		env.State = &m.State
	case StateReply:
		env.State = &m.State
	case PageLoading:
		env.PageID = m.PageID
		env.URL = m.URL
	case Hello:
		env.PageID = m.PageID
		env.URL = m.URL
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownMessage, msg)
	}

	return sonic.Marshal(env)
}

// Decode parses a JSON envelope into its message variant. A missing state
// decodes as the zero snapshot.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := sonic.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode message: %w", err)
	}

	var state types.Snapshot
	if env.State != nil {
		state = *env.State
	}

	switch env.Type {
	case KindStateChanged:
		return StateChanged{State: state}, nil
	case KindFetchState:
		return FetchState{}, nil
	case KindStateUpdate:
		return StateUpdate{PageID: env.PageID, State: state}, nil
	case KindGetState:
		return GetState{}, nil
	case KindStateReply:
		return StateReply{State: state}, nil
	case KindPageLoading:
		return PageLoading{PageID: env.PageID, URL: env.URL}, nil
	case KindHello:
		return Hello{PageID: env.PageID, URL: env.URL}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, env.Type)
	}
}
