package intercept

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/aptools/internal/domain/session"
	"github.com/GriffinCanCode/aptools/internal/infrastructure/monitoring"
)

// DefaultSyntheticDelay models network latency for suppressed requests.
const DefaultSyntheticDelay = 10 * time.Millisecond

type mirrorKey struct{}

// WithHeaderMirror attaches header names exactly as the caller set them.
func WithHeaderMirror(ctx context.Context, headers map[string]string) context.Context {
	return context.WithValue(ctx, mirrorKey{}, headers)
}

// HeaderMirror returns the verbatim headers attached to ctx, if any.
func HeaderMirror(ctx context.Context) (map[string]string, bool) {
	h, ok := ctx.Value(mirrorKey{}).(map[string]string)
	return h, ok
}

// Interceptor is the page-side transport decorator.
type Interceptor struct {
	next    http.RoundTripper
	machine *session.Machine
	delay   time.Duration
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// New wraps next. A nil next uses http.DefaultTransport.
func New(next http.RoundTripper, machine *session.Machine) *Interceptor {
	if next == nil {
		next = http.DefaultTransport
	}
	return &Interceptor{
		next:    next,
		machine: machine,
		delay:   DefaultSyntheticDelay,
		logger:  zap.NewNop(),
	}
}

// WithLogger sets the logger.
func (i *Interceptor) WithLogger(logger *zap.Logger) *Interceptor {
	if logger != nil {
		i.logger = logger
	}
	return i
}

// WithMetrics sets the metrics collector.
func (i *Interceptor) WithMetrics(metrics *monitoring.Metrics) *Interceptor {
	i.metrics = metrics
	return i
}

// WithSyntheticDelay sets the delay before a suppressed request completes.
func (i *Interceptor) WithSyntheticDelay(d time.Duration) *Interceptor {
	if d >= 0 {
		i.delay = d
	}
	return i
}

// RoundTrip implements http.RoundTripper.
func (i *Interceptor) RoundTrip(req *http.Request) (*http.Response, error) {
	id, ok := MatchRequest(req)
	if !ok {
		return i.next.RoundTrip(req)
	}

	switch i.machine.Phase() {
	case session.PhaseLocked:
		i.logger.Info("Suppressed progress request", zap.String("target_id", id))
		i.metrics.RecordIntercept("suppressed")
		return i.synthesize(req)
	case session.PhaseIdle:
		forward, err := i.capture(req, id)
		if forward == nil {
			return nil, err
		}
		if err != nil {
			i.logger.Warn("Failed to capture progress request", zap.String("target_id", id), zap.Error(err))
		}
		req = forward
	}

	i.metrics.RecordIntercept("forwarded")
	return i.next.RoundTrip(req)
}

// capture snapshots req into the session and returns a clone whose body can
// still be sent.
func (i *Interceptor) capture(req *http.Request, id string) (*http.Request, error) {
	var body []byte
	if req.Body != nil && req.Body != http.NoBody {
		data, err := io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
		body = data
	}

	forward := req.Clone(req.Context())
	if body != nil {
		forward.Body = io.NopCloser(bytes.NewReader(body))
		forward.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
		forward.ContentLength = int64(len(body))
	}

	headers, ok := HeaderMirror(req.Context())
	if !ok {
		headers = flattenHeaders(req.Header)
	}

	captured, err := i.machine.Capture(session.Capture{
		TargetID: id,
		Headers:  headers,
		Payload:  ParsePayload(body),
	})
	if err != nil {
		return forward, err
	}
	if captured {
		i.metrics.RecordIntercept("captured")
	}
	return forward, nil
}

// synthesize completes a suppressed request without touching the network.
func (i *Interceptor) synthesize(req *http.Request) (*http.Response, error) {
	if req.Body != nil {
		req.Body.Close()
	}

	timer := time.NewTimer(i.delay)
	defer timer.Stop()

	select {
	case <-req.Context().Done():
		return nil, req.Context().Err()
	case <-timer.C:
	}

	body := []byte("{}")
	return &http.Response{
		Status:        "200 OK",
		StatusCode:    http.StatusOK,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        http.Header{"Content-Type": {"application/json"}},
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}, nil
}

// ParsePayload decodes a JSON object body; anything else is kept as raw text.
func ParsePayload(body []byte) session.Payload {
	if len(bytes.TrimSpace(body)) == 0 {
		return session.Payload{}
	}

	var fields map[string]any
	if err := sonic.Unmarshal(body, &fields); err == nil && fields != nil {
		return session.Payload{Fields: fields}
	}
	return session.Payload{Raw: string(body)}
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}
