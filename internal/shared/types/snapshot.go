package types

// Snapshot is the reduced, externally visible projection of a page session.
// It crosses context boundaries and never carries captured headers or payload.
type Snapshot struct {
	Initialized bool    `json:"initialized"`
	VideoID     *string `json:"videoId"`
	Blocking    bool    `json:"blocking"`
}

// HasTarget reports whether a target id is present.
func (s Snapshot) HasTarget() bool {
	return s.VideoID != nil && *s.VideoID != ""
}

// Target returns the target id or an empty string.
func (s Snapshot) Target() string {
	if s.VideoID == nil {
		return ""
	}
	return *s.VideoID
}

// Equal compares two snapshots by value.
func (s Snapshot) Equal(o Snapshot) bool {
	return s.Initialized == o.Initialized && s.Blocking == o.Blocking && s.Target() == o.Target()
}
