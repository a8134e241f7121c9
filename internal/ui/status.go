package ui

import (
	"strings"

	"github.com/GriffinCanCode/aptools/internal/shared/types"
)

// Tone is the visual class of a field.
type Tone string

const (
	ToneNone     Tone = ""
	ToneActive   Tone = "active"
	ToneInactive Tone = "inactive"
	ToneReady    Tone = "ready"
	ToneLoading  Tone = "loading"
	ToneBlocking Tone = "blocking"
)

const placeholder = "—"

// Field is one labeled value of the view.
type Field struct {
	Value string `json:"value"`
	Tone  Tone   `json:"tone"`
}

// Status is the rendered view.
type Status struct {
	Script   Field `json:"script"`
	Target   Field `json:"target"`
	Mode     Field `json:"mode"`
	OnTarget bool  `json:"onTarget"`
}

// Render builds the view for a snapshot.
func Render(s types.Snapshot) Status {
	st := Status{OnTarget: true}

	if s.Initialized {
		st.Script = Field{"Active", ToneActive}
	} else {
		st.Script = Field{"Not Running", ToneInactive}
	}

	if s.HasTarget() {
		st.Target = Field{s.Target(), ToneReady}
	} else {
		st.Target = Field{"Waiting...", ToneLoading}
	}

	switch {
	case s.Blocking:
		st.Mode = Field{"Blocking", ToneBlocking}
	case s.HasTarget():
		st.Mode = Field{"Ready", ToneReady}
	default:
		st.Mode = Field{"Monitoring", ToneLoading}
	}
	return st
}

// NotRunning is shown when the page does not answer.
func NotRunning() Status {
	return Status{
		Script:   Field{"Not Running", ToneInactive},
		Target:   Field{placeholder, ToneNone},
		Mode:     Field{placeholder, ToneNone},
		OnTarget: true,
	}
}

// NotOnTarget is shown when the page is not on the target site.
func NotOnTarget() Status {
	return Status{OnTarget: false}
}

// OnTarget reports whether pageURL belongs to the target site.
func OnTarget(pageURL, host string) bool {
	return host == "" || strings.Contains(pageURL, host)
}
