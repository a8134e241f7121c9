package replay

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"

	"github.com/GriffinCanCode/aptools/internal/domain/session"
	"github.com/GriffinCanCode/aptools/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/aptools/internal/shared/id"
)

const (
	DefaultBaseURL     = "https://apc-api-production.collegeboard.org"
	DefaultReloadDelay = 500 * time.Millisecond
	DefaultTimeout     = 30 * time.Second

	progressPath = "/fym/common/videos/{targetId}/progress/"
)

var ErrReplayInFlight = errors.New("replay already in progress")

// Outcome is the result of a trigger.
type Outcome int

const (
	OutcomeNoop Outcome = iota
	OutcomeReset
	OutcomeLocked
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNoop:
		return "noop"
	case OutcomeReset:
		return "reset"
	case OutcomeLocked:
		return "locked"
	default:
		return "unknown"
	}
}

// HTTPError is a non-2xx answer from the progress endpoint.
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP %d", e.Status)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
}

// Options configures a Replayer.
type Options struct {
	BaseURL     string
	Timeout     time.Duration
	ReloadDelay time.Duration
	Jar         http.CookieJar
	Transport   http.RoundTripper
	Random      rand.Source
}

// Replayer drives the replay action for one page.
type Replayer struct {
	machine  *session.Machine
	probe    MediaProbe
	overlay  Overlay
	reloader Reloader

	client      *resty.Client
	reloadDelay time.Duration
	random      rand.Source
	inFlight    atomic.Bool
	sanitizer   *bluemonday.Policy

	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// NewReplayer creates a replayer. Zero option fields take defaults.
func NewReplayer(machine *session.Machine, probe MediaProbe, opts Options) (*Replayer, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.ReloadDelay <= 0 {
		opts.ReloadDelay = DefaultReloadDelay
	}
	if opts.Jar == nil {
		jar, err := NewJar()
		if err != nil {
			return nil, err
		}
		opts.Jar = jar
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetRetryCount(0).
		SetCookieJar(opts.Jar).
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal)
	if opts.Transport != nil {
		client.SetTransport(opts.Transport)
	}

	return &Replayer{
		machine:     machine,
		probe:       probe,
		overlay:     NoOverlay{},
		reloader:    ReloaderFunc(func() {}),
		client:      client,
		reloadDelay: opts.ReloadDelay,
		random:      opts.Random,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      zap.NewNop(),
	}, nil
}

// NewJar creates the cookie jar shared by the page client and the replayer.
func NewJar() (*cookiejar.Jar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	return jar, nil
}

// WithLogger sets the logger.
func (r *Replayer) WithLogger(logger *zap.Logger) *Replayer {
	if logger != nil {
		r.logger = logger
		r.client.SetLogger(logger.Sugar())
	}
	return r
}

// WithMetrics sets the metrics collector.
func (r *Replayer) WithMetrics(metrics *monitoring.Metrics) *Replayer {
	r.metrics = metrics
	return r
}

// WithOverlay sets the overlay dismissed after a successful replay.
func (r *Replayer) WithOverlay(overlay Overlay) *Replayer {
	if overlay != nil {
		r.overlay = overlay
	}
	return r
}

// WithReloader sets the reloader scheduled after a successful replay.
func (r *Replayer) WithReloader(reloader Reloader) *Replayer {
	if reloader != nil {
		r.reloader = reloader
	}
	return r
}

// Trigger runs the replay action for the current phase.
func (r *Replayer) Trigger(ctx context.Context) (Outcome, error) {
	if !r.inFlight.CompareAndSwap(false, true) {
		return OutcomeNoop, ErrReplayInFlight
	}
	defer r.inFlight.Store(false)

	state := r.machine.State()
	switch state.Phase {
	case session.PhaseLocked:
		if err := r.machine.Reset(); err != nil {
			return OutcomeNoop, err
		}
		r.logger.Info("Unlocked session", zap.String("target_id", state.TargetID))
		r.metrics.RecordReplay(OutcomeReset.String(), 0)
		return OutcomeReset, nil
	case session.PhaseCaptured:
		return r.replay(ctx, state)
	default:
		return OutcomeNoop, nil
	}
}

func (r *Replayer) replay(ctx context.Context, state session.State) (Outcome, error) {
	timer := monitoring.NewTimer(r.metrics)
	logger := r.logger.With(
		zap.String("replay_id", id.NewReplayID().String()),
		zap.String("target_id", state.TargetID),
	)

	duration, err := r.probe.Duration(ctx)
	if err != nil {
		timer.Stop("no_duration")
		return OutcomeNoop, fmt.Errorf("%w: %v", ErrDurationUnavailable, err)
	}
	watched, err := WatchedSeconds(duration, r.random)
	if err != nil {
		timer.Stop("no_duration")
		return OutcomeNoop, err
	}

	resp, err := r.client.R().
		SetContext(ctx).
		SetHeaders(FilterHeaders(state.Headers)).
		SetPathParam("targetId", state.TargetID).
		SetBody(BuildPayload(state.Payload, watched)).
		Post(progressPath)
	if err != nil {
		timer.Stop("transport_error")
		logger.Error("Replay request failed", zap.Error(err))
		return OutcomeNoop, fmt.Errorf("replay request failed: %w", err)
	}
	if !resp.IsSuccess() {
		timer.Stop("http_error")
		httpErr := &HTTPError{
			Status:  resp.StatusCode(),
			Message: strings.TrimSpace(r.sanitizer.Sanitize(resp.String())),
		}
		logger.Warn("Replay rejected", zap.Int("status", httpErr.Status))
		return OutcomeNoop, httpErr
	}

	if err := r.machine.Lock(); err != nil {
		timer.Stop("lost_capture")
		return OutcomeNoop, err
	}
	timer.Stop(OutcomeLocked.String())
	logger.Info("Replay accepted", zap.Int("watched_seconds", len(watched)))

	if present, err := r.overlay.Dismiss(ctx); err != nil {
		logger.Debug("Overlay dismissal failed", zap.Error(err))
	} else if present {
		logger.Debug("Dismissed overlay")
	}
	time.AfterFunc(r.reloadDelay, r.reloader.Reload)

	return OutcomeLocked, nil
}
