package media

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var ErrNoDuration = errors.New("no media duration found")

// maxDuration is the longest duration a probe reports, in seconds.
const maxDuration = 24 * 60 * 60

// Probe reports a media duration in seconds.
type Probe interface {
	Duration(ctx context.Context) (float64, error)
}

// StaticProbe reports a fixed duration. Zero means unknown.
type StaticProbe float64

func (p StaticProbe) Duration(context.Context) (float64, error) {
	if !valid(float64(p)) {
		return 0, ErrNoDuration
	}
	return math.Ceil(float64(p)), nil
}

// ChainProbe returns the first duration any of its probes finds.
type ChainProbe []Probe

func (c ChainProbe) Duration(ctx context.Context) (float64, error) {
	var errs []error
	for _, p := range c {
		if p == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		d, err := p.Duration(ctx)
		if err == nil && valid(d) {
			return d, nil
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return 0, ErrNoDuration
	}
	return 0, fmt.Errorf("%w: %w", ErrNoDuration, errors.Join(errs...))
}

func valid(d float64) bool {
	return d > 0 && d <= maxDuration && !math.IsNaN(d)
}

// parseSeconds accepts plain seconds ("93.4") and clock forms ("1:33", "01:01:33").
func parseSeconds(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if d, err := strconv.ParseFloat(s, 64); err == nil {
		return d, valid(d)
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, false
	}
	total := 0.0
	for _, part := range parts {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil || v < 0 {
			return 0, false
		}
		total = total*60 + v
	}
	return total, valid(total)
}

type durationKey struct{}

// WithDuration attaches a caller-supplied duration to ctx.
func WithDuration(ctx context.Context, seconds float64) context.Context {
	return context.WithValue(ctx, durationKey{}, seconds)
}

// ContextProbe reports the duration attached with WithDuration.
type ContextProbe struct{}

func (ContextProbe) Duration(ctx context.Context) (float64, error) {
	d, ok := ctx.Value(durationKey{}).(float64)
	if !ok {
		return 0, ErrNoDuration
	}
	return StaticProbe(d).Duration(ctx)
}
