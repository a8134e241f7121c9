package replay

import (
	"context"
	"errors"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/aptools/internal/domain/session"
	"github.com/GriffinCanCode/aptools/internal/testutil"
)

type received struct {
	path    string
	headers http.Header
	body    map[string]any
}

func progressServer(t *testing.T, status int, reply string) (*httptest.Server, <-chan received, *atomic.Int32) {
	t.Helper()
	calls := &atomic.Int32{}
	got := make(chan received, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		data, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = sonic.Unmarshal(data, &body)
		got <- received{path: r.URL.Path, headers: r.Header.Clone(), body: body}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv, got, calls
}

func newReplayer(t *testing.T, m *session.Machine, probe MediaProbe, baseURL string) *Replayer {
	t.Helper()
	r, err := NewReplayer(m, probe, Options{
		BaseURL:     baseURL,
		ReloadDelay: 5 * time.Millisecond,
		Random:      rand.NewPCG(1, 2),
	})
	require.NoError(t, err)
	return r
}

func TestTriggerReplaysCapture(t *testing.T) {
	srv, got, calls := progressServer(t, http.StatusOK, `{}`)

	m, rec := testutil.CapturedMachine(t, "12345",
		map[string]string{
			"X-CSRFToken":    "abc",
			"Origin":         "https://apclassroom.collegeboard.org",
			"Content-Length": "42",
		},
		map[string]any{"session": "s1", "playhead_position": "0.1200"})

	overlay := new(testutil.MockOverlay)
	overlay.On("Dismiss", mock.Anything).Return(true, nil).Once()

	reloaded := make(chan struct{}, 1)
	r := newReplayer(t, m, testutil.NewMockMediaProbe(t, 3.2), srv.URL).
		WithOverlay(overlay).
		WithReloader(ReloaderFunc(func() { reloaded <- struct{}{} }))

	outcome, err := r.Trigger(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeLocked, outcome)
	assert.Equal(t, session.PhaseLocked, m.Phase())
	assert.EqualValues(t, 1, calls.Load())

	req := <-got
	assert.Equal(t, "/fym/common/videos/12345/progress/", req.path)
	assert.Equal(t, "abc", req.headers.Get("X-CSRFToken"))
	assert.Empty(t, req.headers.Get("Origin"))
	assert.Equal(t, "application/json", req.headers.Get("Content-Type"))

	assert.Equal(t, "s1", req.body["session"])
	assert.Equal(t, PlayheadComplete, req.body["playhead_position"])
	watched, ok := req.body["watched_seconds"].([]any)
	require.True(t, ok)
	assert.Len(t, watched, 4)
	for _, v := range watched {
		assert.Contains(t, []float64{1, 2}, v)
	}

	snap, ok := rec.Last()
	require.True(t, ok)
	assert.True(t, snap.Blocking)
	assert.Equal(t, "12345", snap.Target())

	select {
	case <-reloaded:
	case <-time.After(time.Second):
		t.Fatal("reload was not scheduled")
	}
	overlay.AssertExpectations(t)
}

func TestTriggerHTTPFailureKeepsCapture(t *testing.T) {
	srv, _, calls := progressServer(t, http.StatusForbidden, `<p>Forbidden</p>`)
	m, _ := testutil.CapturedMachine(t, "7", nil, nil)

	reloads := &atomic.Int32{}
	r := newReplayer(t, m, testutil.NewMockMediaProbe(t, 10), srv.URL).
		WithReloader(ReloaderFunc(func() { reloads.Add(1) }))

	outcome, err := r.Trigger(context.Background())
	require.Error(t, err)
	assert.Equal(t, OutcomeNoop, outcome)

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusForbidden, httpErr.Status)
	assert.Equal(t, "Forbidden", httpErr.Message)
	assert.Equal(t, "HTTP 403: Forbidden", httpErr.Error())

	assert.Equal(t, session.PhaseCaptured, m.Phase())
	assert.EqualValues(t, 1, calls.Load())

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, reloads.Load())
}

func TestTriggerTransportFailure(t *testing.T) {
	srv, _, _ := progressServer(t, http.StatusOK, `{}`)
	base := srv.URL
	srv.Close()

	m, _ := testutil.CapturedMachine(t, "7", nil, nil)
	r := newReplayer(t, m, testutil.NewMockMediaProbe(t, 10), base)

	_, err := r.Trigger(context.Background())
	require.Error(t, err)
	assert.Equal(t, session.PhaseCaptured, m.Phase())
}

func TestTriggerLockedResetsWithoutNetwork(t *testing.T) {
	srv, _, calls := progressServer(t, http.StatusOK, `{}`)
	m, rec := testutil.CapturedMachine(t, "9", nil, nil)
	require.NoError(t, m.Lock())

	r := newReplayer(t, m, testutil.NewMockMediaProbe(t, 10), srv.URL)
	outcome, err := r.Trigger(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeReset, outcome)
	assert.Equal(t, session.PhaseIdle, m.Phase())
	assert.Zero(t, calls.Load())

	snap, _ := rec.Last()
	assert.False(t, snap.Blocking)
	assert.False(t, snap.HasTarget())
}

func TestTriggerIdleIsNoop(t *testing.T) {
	srv, _, calls := progressServer(t, http.StatusOK, `{}`)
	m := session.NewMachine(nil)

	r := newReplayer(t, m, testutil.NewMockMediaProbe(t, 10), srv.URL)
	outcome, err := r.Trigger(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoop, outcome)
	assert.Zero(t, calls.Load())
}

func TestTriggerDurationUnavailable(t *testing.T) {
	tests := []struct {
		name     string
		duration float64
		err      error
	}{
		{"zero", 0, nil},
		{"negative", -3, nil},
		{"nan", math.NaN(), nil},
		{"probe error", 0, errors.New("no media element")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _, calls := progressServer(t, http.StatusOK, `{}`)
			m, _ := testutil.CapturedMachine(t, "5", nil, nil)

			probe := new(testutil.MockMediaProbe)
			probe.On("Duration", mock.Anything).Return(tt.duration, tt.err)

			r := newReplayer(t, m, probe, srv.URL)
			_, err := r.Trigger(context.Background())
			assert.ErrorIs(t, err, ErrDurationUnavailable)
			assert.Equal(t, session.PhaseCaptured, m.Phase())
			assert.Zero(t, calls.Load())
		})
	}
}

func TestTriggerInFlightGuard(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	calls := &atomic.Int32{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		close(entered)
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m, _ := testutil.CapturedMachine(t, "11", nil, nil)
	r := newReplayer(t, m, testutil.NewMockMediaProbe(t, 2), srv.URL)

	done := make(chan error, 1)
	go func() {
		_, err := r.Trigger(context.Background())
		done <- err
	}()
	<-entered

	_, err := r.Trigger(context.Background())
	assert.ErrorIs(t, err, ErrReplayInFlight)

	close(release)
	require.NoError(t, <-done)
	assert.EqualValues(t, 1, calls.Load())
	assert.Equal(t, session.PhaseLocked, m.Phase())
}

func TestTriggerSendsJarCookies(t *testing.T) {
	srv, got, _ := progressServer(t, http.StatusOK, `{}`)

	jar, err := NewJar()
	require.NoError(t, err)
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	jar.SetCookies(u, []*http.Cookie{{Name: "sessionid", Value: "xyz"}})

	m, _ := testutil.CapturedMachine(t, "3", nil, nil)
	r, err := NewReplayer(m, testutil.NewMockMediaProbe(t, 1), Options{BaseURL: srv.URL, Jar: jar})
	require.NoError(t, err)

	_, err = r.Trigger(context.Background())
	require.NoError(t, err)

	req := <-got
	c, err := (&http.Request{Header: req.headers}).Cookie("sessionid")
	require.NoError(t, err)
	assert.Equal(t, "xyz", c.Value)
}

func TestWatchedSeconds(t *testing.T) {
	tests := []struct {
		duration float64
		want     int
	}{
		{0.2, 1},
		{1, 1},
		{3.2, 4},
		{90, 90},
		{90.01, 91},
		{MaxDuration, MaxDuration},
	}

	src := rand.NewPCG(7, 7)
	for _, tt := range tests {
		got, err := WatchedSeconds(tt.duration, src)
		require.NoError(t, err)
		assert.Len(t, got, tt.want)
		for _, v := range got {
			assert.True(t, v == 1 || v == 2, "unexpected entry %d", v)
		}
	}

	for _, bad := range []float64{0, -1, math.NaN(), math.Inf(1), MaxDuration + 0.5, 1e10, 1e19} {
		_, err := WatchedSeconds(bad, nil)
		assert.ErrorIs(t, err, ErrDurationUnavailable)
	}
}

func TestWatchedSecondsUsesBothValues(t *testing.T) {
	got, err := WatchedSeconds(200, rand.NewPCG(3, 4))
	require.NoError(t, err)
	assert.Contains(t, got, 1)
	assert.Contains(t, got, 2)
}

func TestBuildPayload(t *testing.T) {
	fields := map[string]any{"session": "s1", "watched_seconds": []int{9}}
	body := BuildPayload(session.Payload{Fields: fields}, []int{1, 2})

	assert.Equal(t, "s1", body["session"])
	assert.Equal(t, []int{1, 2}, body["watched_seconds"])
	assert.Equal(t, PlayheadComplete, body["playhead_position"])
	assert.Equal(t, []int{9}, fields["watched_seconds"], "captured payload must not be modified")

	raw := BuildPayload(session.Payload{Raw: "a=1&b=2"}, []int{1})
	assert.Equal(t, "a=1&b=2", raw[RawPayloadField])
	assert.Len(t, raw, 3)

	empty := BuildPayload(session.Payload{}, []int{2})
	assert.Len(t, empty, 2)
	assert.NotContains(t, empty, RawPayloadField)
}

func TestFilterHeaders(t *testing.T) {
	tests := []struct {
		name string
		in   map[string]string
		want map[string]string
	}{
		{
			name: "drops connection headers in any case",
			in: map[string]string{
				"content-LENGTH": "10",
				"HOST":           "x",
				"Connection":     "keep-alive",
				"origin":         "o",
				"Referer":        "r",
				"X-CSRFToken":    "t",
			},
			want: map[string]string{"X-CSRFToken": "t", "Content-Type": "application/json"},
		},
		{
			name: "keeps existing content type",
			in:   map[string]string{"content-type": "text/plain"},
			want: map[string]string{"content-type": "text/plain"},
		},
		{
			name: "drops invalid names and values",
			in:   map[string]string{"Bad Name": "v", "X-Ok": "line\nbreak", "Accept": "*/*"},
			want: map[string]string{"Accept": "*/*", "Content-Type": "application/json"},
		},
		{
			name: "nil input",
			in:   nil,
			want: map[string]string{"Content-Type": "application/json"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterHeaders(tt.in))
		})
	}
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "noop", OutcomeNoop.String())
	assert.Equal(t, "reset", OutcomeReset.String())
	assert.Equal(t, "locked", OutcomeLocked.String())
	assert.Equal(t, "unknown", Outcome(9).String())
}
