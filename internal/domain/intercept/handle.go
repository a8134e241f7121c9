package intercept

import (
	"bytes"
	"context"
	"errors"
	"io"
	"maps"
	"net/http"
	"sync"
)

var (
	ErrNotOpened   = errors.New("request handle not opened")
	ErrAlreadySent = errors.New("request handle already sent")
)

// ReadyState mirrors the lifecycle of a browser request object.
type ReadyState int

const (
	StateUnsent ReadyState = iota
	StateOpened
	StateHeadersReceived
	StateLoading
	StateDone
)

// Handle is a request object with open / setHeader / send semantics. It
// records method, URL and every header set on it, then sends through the
// client asynchronously and reports completion through callbacks.
type Handle struct {
	client *http.Client

	// Callbacks run on the sending goroutine once the exchange finishes.
	OnReadyStateChange func()
	OnLoad             func()
	OnError            func(err error)

	mu           sync.Mutex
	method       string
	url          string
	headers      map[string]string
	readyState   ReadyState
	status       int
	responseText string
	err          error
	done         chan struct{}
}

// NewHandle creates a handle that sends through client.
func NewHandle(client *http.Client) *Handle {
	if client == nil {
		client = http.DefaultClient
	}
	return &Handle{client: client}
}

// Open records the method and URL for a later Send.
func (h *Handle) Open(method, url string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.method = method
	h.url = url
	h.headers = make(map[string]string)
	h.readyState = StateOpened
	h.status = 0
	h.responseText = ""
	h.err = nil
	h.done = nil
}

// SetHeader mirrors a request header under the name exactly as given.
func (h *Handle) SetHeader(name, value string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.readyState != StateOpened || h.done != nil {
		return ErrNotOpened
	}
	h.headers[name] = value
	return nil
}

// Headers returns the mirrored headers.
func (h *Handle) Headers() map[string]string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return maps.Clone(h.headers)
}

// Send dispatches the request without waiting for the response.
func (h *Handle) Send(ctx context.Context, body []byte) error {
	h.mu.Lock()
	if h.done != nil {
		h.mu.Unlock()
		return ErrAlreadySent
	}
	if h.readyState != StateOpened {
		h.mu.Unlock()
		return ErrNotOpened
	}

	headers := maps.Clone(h.headers)
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(WithHeaderMirror(ctx, headers), h.method, h.url, reader)
	if err != nil {
		h.mu.Unlock()
		return err
	}
	for name, value := range headers {
		req.Header.Set(name, value)
	}

	done := make(chan struct{})
	h.done = done
	h.mu.Unlock()

	go h.exchange(req, done)
	return nil
}

func (h *Handle) exchange(req *http.Request, done chan struct{}) {
	defer close(done)

	resp, err := h.client.Do(req)
	var text []byte
	if err == nil {
		text, err = io.ReadAll(resp.Body)
		resp.Body.Close()
	}

	h.mu.Lock()
	h.readyState = StateDone
	h.err = err
	if err == nil {
		h.status = resp.StatusCode
		h.responseText = string(text)
	}
	onChange, onLoad, onError := h.OnReadyStateChange, h.OnLoad, h.OnError
	h.mu.Unlock()

	if onChange != nil {
		onChange()
	}
	if err != nil {
		if onError != nil {
			onError(err)
		}
		return
	}
	if onLoad != nil {
		onLoad()
	}
}

// Done is closed after the completion callbacks have run.
func (h *Handle) Done() <-chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.done
}

// ReadyState returns the current lifecycle state.
func (h *Handle) ReadyState() ReadyState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.readyState
}

// Status returns the response status code, 0 before completion.
func (h *Handle) Status() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// ResponseText returns the response body as text.
func (h *Handle) ResponseText() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.responseText
}

// Err returns the transport error of the last exchange, if any.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}
