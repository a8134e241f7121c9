package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/aptools/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/aptools/internal/shared/types"
)

// ActivePage addresses the most recently connected page.
const ActivePage = "active"

const maxResponseSize = 1 << 20

// ErrHostUnreachable wraps failures to reach the host at all.
var ErrHostUnreachable = errors.New("host unreachable")

// HTTPSource queries the host for a page's state.
type HTTPSource struct {
	client  *retryablehttp.Client
	breaker *resilience.Breaker
	baseURL string
	pageID  string
}

// NewHostBreaker opens after three unreachable queries in a row and probes
// the host again after timeout.
func NewHostBreaker(timeout time.Duration) *resilience.Breaker {
	return resilience.New("host", resilience.Settings{
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
}

// NewHTTPSource creates a source for pageID on the host at baseURL.
func NewHTTPSource(baseURL, pageID string) *HTTPSource {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = 50 * time.Millisecond
	client.RetryWaitMax = 200 * time.Millisecond
	client.HTTPClient.Timeout = 2 * time.Second
	client.Logger = nil

	if pageID == "" {
		pageID = ActivePage
	}
	return &HTTPSource{
		client:  client,
		breaker: NewHostBreaker(5 * time.Second),
		baseURL: strings.TrimRight(baseURL, "/"),
		pageID:  pageID,
	}
}

// WithLogger routes client retry logs to logger.
func (s *HTTPSource) WithLogger(logger *zap.Logger) *HTTPSource {
	if logger != nil {
		s.client.Logger = leveled{logger.Sugar()}
	}
	return s
}

// WithRetries sets how many times a failed query is retried.
func (s *HTTPSource) WithRetries(n int) *HTTPSource {
	if n >= 0 {
		s.client.RetryMax = n
	}
	return s
}

// WithBreaker replaces the host breaker. Nil disables it.
func (s *HTTPSource) WithBreaker(b *resilience.Breaker) *HTTPSource {
	s.breaker = b
	return s
}

// FetchState queries the host. While the host breaker is open it fails
// fast with resilience.ErrCircuitOpen.
func (s *HTTPSource) FetchState(ctx context.Context) (types.PageState, error) {
	if s.breaker == nil {
		return s.fetch(ctx)
	}

	// Only an unreachable host counts against the breaker.
	var answered error
	ps, err := resilience.Call(s.breaker, func() (types.PageState, error) {
		ps, err := s.fetch(ctx)
		if err != nil && !errors.Is(err, ErrHostUnreachable) {
			answered = err
			return ps, nil
		}
		return ps, err
	})
	if err != nil {
		return types.PageState{}, err
	}
	return ps, answered
}

func (s *HTTPSource) fetch(ctx context.Context) (types.PageState, error) {
	endpoint := s.baseURL + "/pages/" + url.PathEscape(s.pageID) + "/state"
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return types.PageState{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return types.PageState{}, fmt.Errorf("%w: %v", ErrHostUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return types.PageState{}, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return types.PageState{}, fmt.Errorf("state query returned HTTP %d", resp.StatusCode)
	}

	var reply struct {
		PageID types.PageID    `json:"pageId"`
		URL    string          `json:"url"`
		State  *types.Snapshot `json:"state"`
	}
	if err := sonic.Unmarshal(body, &reply); err != nil {
		return types.PageState{}, fmt.Errorf("failed to decode state: %w", err)
	}
	if reply.State == nil {
		return types.PageState{}, ErrNoState
	}

	return types.PageState{PageID: reply.PageID, URL: reply.URL, State: *reply.State}, nil
}

// leveled adapts a sugared zap logger to retryablehttp.LeveledLogger.
type leveled struct {
	s *zap.SugaredLogger
}

func (l leveled) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l leveled) Info(msg string, kv ...interface{})  { l.s.Infow(msg, kv...) }
func (l leveled) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l leveled) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }
