package page

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/aptools/internal/domain/session"
	"github.com/GriffinCanCode/aptools/internal/protocol"
	"github.com/GriffinCanCode/aptools/internal/shared/types"
)

const lessonHTML = `<html><body><video duration="3.4"></video>` +
	`<button data-test-id="modal-close-button">x</button></body></html>`

type harness struct {
	rt        *Runtime
	port      *protocol.ChanPort
	page      *httptest.Server
	upstream  *atomic.Int32
	replays   *atomic.Int32
	replayErr *atomic.Int32
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := &harness{
		port:      protocol.NewChanPort(128),
		upstream:  &atomic.Int32{},
		replays:   &atomic.Int32{},
		replayErr: &atomic.Int32{},
	}

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.upstream.Add(1)
		switch {
		case r.URL.Path == "/lesson":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = io.WriteString(w, lessonHTML)
		case r.URL.Path == "/gzipped":
			w.Header().Set("Content-Type", "text/html")
			w.Header().Set("Content-Encoding", "gzip")
			gz := gzip.NewWriter(w)
			_, _ = io.WriteString(gz, `<video data-duration="8"></video>`)
			_ = gz.Close()
		case r.URL.Path == "/untyped":
			w.Header()["Content-Type"] = nil
			_, _ = io.WriteString(w, untypedHTML)
		case r.URL.Path == "/blob":
			w.Header()["Content-Type"] = nil
			_, _ = w.Write([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"))
		default:
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"ok":true}`)
		}
	}))
	t.Cleanup(upstream.Close)

	replaySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.replays.Add(1)
		if code := h.replayErr.Load(); code != 0 {
			w.WriteHeader(int(code))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(replaySrv.Close)

	rt, err := NewRuntime(Options{
		PageID:         "tab-1",
		ReplayBaseURL:  replaySrv.URL,
		ReloadDelay:    5 * time.Millisecond,
		SyntheticDelay: time.Millisecond,
	})
	require.NoError(t, err)
	rt.Attach(h.port)
	h.rt = rt

	target, err := url.Parse(upstream.URL)
	require.NoError(t, err)
	h.page = httptest.NewServer(NewHandler(rt, target))
	t.Cleanup(h.page.Close)
	return h
}

func (h *harness) post(t *testing.T, path, body string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, h.page.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-CSRFToken", "tok")
	return h.do(t, req)
}

func (h *harness) get(t *testing.T, path string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, h.page.URL+path, nil)
	require.NoError(t, err)
	return h.do(t, req)
}

func (h *harness) do(t *testing.T, req *http.Request) (int, string) {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(data)
}

// drain returns every message currently queued on the port.
func (h *harness) drain() []protocol.Message {
	var out []protocol.Message
	for {
		select {
		case msg := <-h.port.C():
			out = append(out, msg)
		default:
			return out
		}
	}
}

func lastState(t *testing.T, msgs []protocol.Message) types.Snapshot {
	t.Helper()
	for i := len(msgs) - 1; i >= 0; i-- {
		if m, ok := msgs[i].(protocol.StateChanged); ok {
			return m.State
		}
	}
	t.Fatal("no state broadcast")
	return types.Snapshot{}
}

func TestAttachAnnounces(t *testing.T) {
	h := newHarness(t)
	msgs := h.drain()
	require.Len(t, msgs, 2)
	assert.Equal(t, protocol.Hello{PageID: "tab-1"}, msgs[0])
	assert.Equal(t, types.Snapshot{Initialized: true}, lastState(t, msgs))
}

func TestCaptureReplaySuppressCycle(t *testing.T) {
	h := newHarness(t)
	h.drain()

	// Capture
	status, body := h.post(t, "/api/videos/12345/progress/", `{"session":"s1","playhead_position":"0.1"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, `{"ok":true}`, body)
	assert.EqualValues(t, 1, h.upstream.Load())

	state := h.rt.Machine().State()
	assert.Equal(t, session.PhaseCaptured, state.Phase)
	assert.Equal(t, "12345", state.TargetID)
	assert.Equal(t, "tok", state.Headers["X-Csrftoken"])
	assert.Equal(t, "s1", state.Payload.Fields["session"])
	snap := lastState(t, h.drain())
	assert.Equal(t, "12345", snap.Target())
	assert.False(t, snap.Blocking)

	// Replay
	status, body = h.post(t, ControlPrefix+"/replay?duration=3", "")
	require.Equal(t, http.StatusOK, status, body)
	assert.Contains(t, body, `"outcome":"locked"`)
	assert.EqualValues(t, 1, h.replays.Load())
	assert.Equal(t, session.PhaseLocked, h.rt.Machine().Phase())
	assert.True(t, lastState(t, h.drain()).Blocking)

	// Suppress
	status, body = h.post(t, "/api/videos/12345/progress", `{"session":"s1"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, `{}`, body)
	assert.EqualValues(t, 1, h.upstream.Load(), "locked progress request must not reach the network")

	// Unlock
	status, body = h.post(t, ControlPrefix+"/replay", "")
	require.Equal(t, http.StatusOK, status, body)
	assert.Contains(t, body, `"outcome":"reset"`)
	assert.Equal(t, session.PhaseIdle, h.rt.Machine().Phase())
	assert.EqualValues(t, 1, h.replays.Load())
}

func TestReplayFailureKeepsCapture(t *testing.T) {
	h := newHarness(t)
	h.replayErr.Store(http.StatusInternalServerError)

	h.post(t, "/videos/9/progress/", `{}`)
	require.Equal(t, session.PhaseCaptured, h.rt.Machine().Phase())

	status, body := h.post(t, ControlPrefix+"/replay?duration=10", "")
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Contains(t, body, "Failed: 500")
	assert.Equal(t, session.PhaseCaptured, h.rt.Machine().Phase())
	assert.Equal(t, "9", h.rt.Machine().Snapshot().Target())
}

func TestReplayWithoutDuration(t *testing.T) {
	h := newHarness(t)
	h.post(t, "/videos/9/progress/", `{}`)

	status, body := h.post(t, ControlPrefix+"/replay", "")
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Contains(t, body, "could not get video duration")
	assert.Zero(t, h.replays.Load())

	status, _ = h.post(t, ControlPrefix+"/replay?duration=abc", "")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestDocumentLoadDrivesProbeAndNavigation(t *testing.T) {
	h := newHarness(t)
	h.drain()

	status, body := h.get(t, "/lesson")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, lessonHTML, body, "document must reach the client unchanged")

	msgs := h.drain()
	require.NotEmpty(t, msgs)
	loading, ok := msgs[0].(protocol.PageLoading)
	require.True(t, ok)
	assert.Equal(t, types.PageID("tab-1"), loading.PageID)
	assert.True(t, strings.HasSuffix(loading.URL, "/lesson"))
	assert.True(t, strings.HasSuffix(h.rt.URL(), "/lesson"))

	present, err := NewDocumentOverlay(h.rt.Documents()).Dismiss(context.Background())
	require.NoError(t, err)
	assert.True(t, present)

	h.post(t, "/videos/5/progress/", `{}`)
	status, body = h.post(t, ControlPrefix+"/replay", "")
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, session.PhaseLocked, h.rt.Machine().Phase())
}

func TestGzipDocument(t *testing.T) {
	h := newHarness(t)

	req, err := http.NewRequest(http.MethodGet, h.page.URL+"/gzipped", nil)
	require.NoError(t, err)
	req.Header.Set("Accept-Encoding", "gzip")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	gz, err := gzip.NewReader(resp.Body)
	require.NoError(t, err)
	data, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Equal(t, `<video data-duration="8"></video>`, string(data))

	doc, _ := h.rt.Documents().Latest()
	assert.Equal(t, `<video data-duration="8"></video>`, string(doc))
}

const untypedHTML = `<!DOCTYPE html><html><body><video data-duration="12"></video></body></html>`

func TestUntypedResponsesAreSniffed(t *testing.T) {
	h := newHarness(t)

	status, _ := h.get(t, "/blob")
	assert.Equal(t, http.StatusOK, status)
	doc, _ := h.rt.Documents().Latest()
	assert.Empty(t, doc, "binary body is not a document")

	status, body := h.get(t, "/untyped")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, untypedHTML, body)
	doc, _ = h.rt.Documents().Latest()
	assert.Equal(t, untypedHTML, string(doc))
}

func TestNavigationResetsCapture(t *testing.T) {
	h := newHarness(t)
	h.rt.Navigate("https://apclassroom.collegeboard.org/a")
	h.post(t, "/videos/5/progress/", `{}`)
	require.Equal(t, session.PhaseCaptured, h.rt.Machine().Phase())

	status, body := h.post(t, ControlPrefix+"/navigate?url="+url.QueryEscape("https://apclassroom.collegeboard.org/b"), "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"reset":true`)
	assert.Equal(t, session.PhaseIdle, h.rt.Machine().Phase())

	status, _ = h.post(t, ControlPrefix+"/navigate", "")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestDocumentReloadClearsCapture(t *testing.T) {
	h := newHarness(t)

	status, _ := h.get(t, "/lesson")
	require.Equal(t, http.StatusOK, status)
	h.post(t, "/videos/42/progress/", `{}`)
	require.Equal(t, session.PhaseCaptured, h.rt.Machine().Phase())
	h.drain()

	status, _ = h.get(t, "/lesson")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, session.PhaseIdle, h.rt.Machine().Phase())
	assert.False(t, lastState(t, h.drain()).HasTarget())

	h.post(t, "/videos/43/progress/", `{}`)
	assert.Equal(t, "43", h.rt.Machine().Snapshot().Target(), "a fresh document captures again")
}

func TestDocumentReloadKeepsLock(t *testing.T) {
	h := newHarness(t)
	h.get(t, "/lesson")
	h.post(t, "/videos/42/progress/", `{}`)
	status, body := h.post(t, ControlPrefix+"/replay?duration=2", "")
	require.Equal(t, http.StatusOK, status, body)

	h.get(t, "/lesson")
	assert.Equal(t, session.PhaseLocked, h.rt.Machine().Phase())
	assert.Equal(t, "42", h.rt.Machine().Snapshot().Target())
}

func TestHandleCapturesVerbatimHeaders(t *testing.T) {
	h := newHarness(t)

	req := h.rt.NewHandle()
	loaded := make(chan struct{})
	req.OnLoad = func() { close(loaded) }
	req.Open(http.MethodPost, h.page.URL+"/videos/8/progress/")
	require.NoError(t, req.SetHeader("X-CSRFToken", "tok"))
	require.NoError(t, req.Send(context.Background(), []byte(`{"session":"s8"}`)))

	select {
	case <-loaded:
	case <-time.After(2 * time.Second):
		t.Fatal("request did not complete")
	}
	assert.Equal(t, http.StatusOK, req.Status())
	assert.Equal(t, `{"ok":true}`, req.ResponseText())

	state := h.rt.Machine().State()
	assert.Equal(t, "8", state.TargetID)
	assert.Equal(t, "tok", state.Headers["X-CSRFToken"])
	assert.Equal(t, "s8", state.Payload.Fields["session"])
}

func TestStateEndpointAndFetch(t *testing.T) {
	h := newHarness(t)
	h.post(t, "/videos/77/progress/", `{}`)
	h.drain()

	status, body := h.get(t, ControlPrefix+"/state")
	require.Equal(t, http.StatusOK, status)
	var ps types.PageState
	require.NoError(t, sonic.Unmarshal([]byte(body), &ps))
	assert.Equal(t, types.PageID("tab-1"), ps.PageID)
	assert.Equal(t, "77", ps.State.Target())

	require.NoError(t, h.rt.Handle(protocol.FetchState{}))
	assert.Equal(t, "77", lastState(t, h.drain()).Target())

	assert.ErrorIs(t, h.rt.Handle(protocol.GetState{}), protocol.ErrUnhandled)
}

func TestRunHandlesInbound(t *testing.T) {
	h := newHarness(t)
	h.drain()

	in := make(chan protocol.Message, 1)
	in <- protocol.FetchState{}
	close(in)
	require.NoError(t, h.rt.Run(context.Background(), in))
	assert.Len(t, h.drain(), 1)
}

func TestReloadAnnouncesLoading(t *testing.T) {
	h := newHarness(t)
	h.post(t, "/videos/1/progress/", `{}`)
	h.drain()

	status, _ := h.post(t, ControlPrefix+"/replay?duration=2", "")
	require.Equal(t, http.StatusOK, status)

	require.Eventually(t, func() bool {
		for _, m := range h.drain() {
			if _, ok := m.(protocol.PageLoading); ok {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, session.PhaseLocked, h.rt.Machine().Phase(), "lock survives the reload")
}

func TestDecode(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, _ = gz.Write([]byte("hello"))
	require.NoError(t, gz.Close())

	out, err := decode("gzip", buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "hello", string(out))

	out, err = decode("", []byte("plain"))
	require.NoError(t, err)
	assert.Equal(t, "plain", string(out))

	_, err = decode("br", []byte("x"))
	assert.Error(t, err)
}
