package replay

import (
	"errors"
	"maps"
	"math"
	"math/rand/v2"
	"strings"

	"golang.org/x/net/http/httpguts"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/GriffinCanCode/aptools/internal/domain/session"
)

const (
	// PlayheadComplete marks the playhead at the end of the media.
	PlayheadComplete = "1.0000"

	// RawPayloadField holds a captured body that was not a JSON object.
	RawPayloadField = "raw_payload"

	defaultContentType = "application/json"

	// MaxDuration caps the watched series at one day of media.
	MaxDuration = 24 * 60 * 60
)

var ErrDurationUnavailable = errors.New("could not get video duration, make sure the video is loaded")

// excludedHeaders are connection-specific and never replayed.
var excludedHeaders = map[string]struct{}{
	"content-length": {},
	"host":           {},
	"connection":     {},
	"origin":         {},
	"referer":        {},
}

// WatchedSeconds returns one entry per started second of duration, each a
// 1 or 2 drawn from src. A nil src uses the global generator. Durations
// above MaxDuration are rejected.
func WatchedSeconds(duration float64, src rand.Source) ([]int, error) {
	if math.IsNaN(duration) || math.IsInf(duration, 0) || duration <= 0 || duration > MaxDuration {
		return nil, ErrDurationUnavailable
	}

	coin := distuv.Bernoulli{P: 0.5, Src: src}
	n := int(math.Ceil(duration))
	out := make([]int, n)
	for i := range out {
		out[i] = 1 + int(coin.Rand())
	}
	return out, nil
}

// BuildPayload merges the captured payload with the watched series and the
// completion marker. A non-object payload travels under RawPayloadField.
func BuildPayload(p session.Payload, watched []int) map[string]any {
	body := make(map[string]any, len(p.Fields)+3)
	maps.Copy(body, p.Fields)
	if !p.Structured() && p.Raw != "" {
		body[RawPayloadField] = p.Raw
	}
	body["watched_seconds"] = watched
	body["playhead_position"] = PlayheadComplete
	return body
}

// FilterHeaders drops connection-specific and malformed headers from a
// captured set and ensures a content type is present.
func FilterHeaders(captured map[string]string) map[string]string {
	out := make(map[string]string, len(captured)+1)
	hasContentType := false

	for name, value := range captured {
		lower := strings.ToLower(name)
		if _, skip := excludedHeaders[lower]; skip {
			continue
		}
		if !httpguts.ValidHeaderFieldName(name) || !httpguts.ValidHeaderFieldValue(value) {
			continue
		}
		if lower == "content-type" {
			hasContentType = true
		}
		out[name] = value
	}

	if !hasContentType {
		out["Content-Type"] = defaultContentType
	}
	return out
}
