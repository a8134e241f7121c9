package session

import (
	"maps"

	"github.com/GriffinCanCode/aptools/internal/shared/types"
)

// Payload is a captured request body. Fields is set when the body parsed as
// a JSON object; anything else is kept verbatim in Raw.
type Payload struct {
	Fields map[string]any `json:"fields,omitempty"`
	Raw    string         `json:"raw,omitempty"`
}

// Structured reports whether the body parsed as a JSON object.
func (p Payload) Structured() bool {
	return p.Fields != nil
}

// Empty reports whether nothing was captured.
func (p Payload) Empty() bool {
	return p.Fields == nil && p.Raw == ""
}

func (p Payload) clone() Payload {
	return Payload{Fields: cloneFields(p.Fields), Raw: p.Raw}
}

// Capture is the metadata stored from the first matched request of a cycle.
type Capture struct {
	TargetID string
	Headers  map[string]string
	Payload  Payload
}

// State is a copy of the full session, page-local only.
type State struct {
	Phase    Phase             `json:"phase"`
	TargetID string            `json:"target_id,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
	Payload  Payload           `json:"payload"`
}

// Snapshot projects the state for other contexts.
func (s State) Snapshot() types.Snapshot {
	snap := types.Snapshot{
		Initialized: true,
		Blocking:    s.Phase == PhaseLocked,
	}
	if s.TargetID != "" {
		id := s.TargetID
		snap.VideoID = &id
	}
	return snap
}

func (s State) clone() State {
	out := s
	if s.Headers != nil {
		out.Headers = maps.Clone(s.Headers)
	}
	out.Payload = s.Payload.clone()
	return out
}

// cloneFields deep-copies nested maps and slices decoded from JSON.
func cloneFields(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneFields(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
