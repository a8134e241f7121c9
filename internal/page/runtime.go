package page

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/aptools/internal/domain/intercept"
	"github.com/GriffinCanCode/aptools/internal/domain/media"
	"github.com/GriffinCanCode/aptools/internal/domain/replay"
	"github.com/GriffinCanCode/aptools/internal/domain/session"
	"github.com/GriffinCanCode/aptools/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/aptools/internal/protocol"
	"github.com/GriffinCanCode/aptools/internal/shared/types"
)

// Options configures a Runtime. Zero durations take package defaults.
type Options struct {
	PageID         types.PageID
	ReplayBaseURL  string
	ReplayTimeout  time.Duration
	ReloadDelay    time.Duration
	SyntheticDelay time.Duration

	// Transport is the network transport beneath the interceptor.
	Transport http.RoundTripper
	// ReplayTransport is used for the replay request; nil uses the default.
	ReplayTransport http.RoundTripper

	Logger  *zap.Logger
	Metrics *monitoring.Metrics
}

// Runtime is the page-context runtime of one page instance.
type Runtime struct {
	id          types.PageID
	machine     *session.Machine
	interceptor *intercept.Interceptor
	client      *http.Client
	replayer    *replay.Replayer
	documents   *media.DocumentStore
	router      *protocol.Router

	mu   sync.RWMutex
	port protocol.Port
	url  string

	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// NewRuntime creates an Idle runtime with no outbound port attached.
func NewRuntime(opts Options) (*Runtime, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("page_id", string(opts.PageID)))

	rt := &Runtime{
		id:        opts.PageID,
		documents: media.NewDocumentStore(),
		port:      protocol.Discard,
		logger:    logger,
		metrics:   opts.Metrics,
	}

	rt.machine = session.NewMachine(session.NotifierFunc(rt.publish)).WithLogger(logger)

	interceptor := intercept.New(opts.Transport, rt.machine).
		WithLogger(logger).
		WithMetrics(opts.Metrics)
	if opts.SyntheticDelay > 0 {
		interceptor.WithSyntheticDelay(opts.SyntheticDelay)
	}
	rt.interceptor = interceptor

	jar, err := replay.NewJar()
	if err != nil {
		return nil, err
	}
	rt.client = &http.Client{Transport: interceptor, Jar: jar}

	probe := media.ChainProbe{media.ContextProbe{}, media.NewDocumentProbe(rt.documents)}
	replayer, err := replay.NewReplayer(rt.machine, probe, replay.Options{
		BaseURL:     opts.ReplayBaseURL,
		Timeout:     opts.ReplayTimeout,
		ReloadDelay: opts.ReloadDelay,
		Jar:         jar,
		Transport:   opts.ReplayTransport,
	})
	if err != nil {
		return nil, err
	}
	rt.replayer = replayer.
		WithLogger(logger).
		WithMetrics(opts.Metrics).
		WithOverlay(NewDocumentOverlay(rt.documents)).
		WithReloader(replay.ReloaderFunc(rt.reload))

	rt.router = &protocol.Router{
		OnFetchState: func(protocol.FetchState) { rt.machine.Broadcast() },
	}
	return rt, nil
}

// ID returns the page instance id.
func (rt *Runtime) ID() types.PageID {
	return rt.id
}

// Machine returns the session machine.
func (rt *Runtime) Machine() *session.Machine {
	return rt.machine
}

// NewHandle returns a request object sending through the interceptor. Header
// names set on it are captured exactly as given.
func (rt *Runtime) NewHandle() *intercept.Handle {
	return intercept.NewHandle(rt.client)
}

// Transport returns the intercepting transport.
func (rt *Runtime) Transport() http.RoundTripper {
	return rt.interceptor
}

// Documents returns the store of served documents.
func (rt *Runtime) Documents() *media.DocumentStore {
	return rt.documents
}

// URL returns the last URL the page navigated to.
func (rt *Runtime) URL() string {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.url
}

// State returns the page's current snapshot with its URL.
func (rt *Runtime) State() types.PageState {
	return types.PageState{PageID: rt.id, URL: rt.URL(), State: rt.machine.Snapshot()}
}

// Attach sets the outbound port and announces the page on it.
func (rt *Runtime) Attach(port protocol.Port) {
	if port == nil {
		port = protocol.Discard
	}
	rt.mu.Lock()
	rt.port = port
	rt.mu.Unlock()

	rt.send(protocol.Hello{PageID: rt.id, URL: rt.URL()})
	rt.machine.Broadcast()
}

// Handle processes one inbound message.
func (rt *Runtime) Handle(msg protocol.Message) error {
	rt.metrics.RecordMessage("inbound", string(msg.Kind()))
	return rt.router.Dispatch(msg)
}

// Run handles inbound messages until in is closed or ctx is done.
func (rt *Runtime) Run(ctx context.Context, in <-chan protocol.Message) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-in:
			if !ok {
				return nil
			}
			if err := rt.Handle(msg); err != nil {
				rt.logger.Debug("Ignored message", zap.String("type", string(msg.Kind())), zap.Error(err))
			}
		}
	}
}

// Trigger runs the replay action. A positive duration overrides probing.
func (rt *Runtime) Trigger(ctx context.Context, duration float64) (replay.Outcome, error) {
	if duration > 0 {
		ctx = media.WithDuration(ctx, duration)
	}
	return rt.replayer.Trigger(ctx)
}

// Navigate records an in-page navigation.
func (rt *Runtime) Navigate(url string) bool {
	rt.setURL(url)
	return rt.machine.Navigate(url)
}

// DocumentLoaded records a full document load: the host clears the page's
// indicator, a held capture is dropped and the page re-announces its state.
func (rt *Runtime) DocumentLoaded(url string, body []byte) {
	rt.documents.Remember(url, body)
	rt.send(protocol.PageLoading{PageID: rt.id, URL: url})
	rt.setURL(url)
	rt.machine.Reload(url)
	rt.machine.Broadcast()
}

func (rt *Runtime) reload() {
	url := rt.URL()
	rt.logger.Info("Reloading page", zap.String("url", url))
	rt.send(protocol.PageLoading{PageID: rt.id, URL: url})
	rt.machine.Broadcast()
}

func (rt *Runtime) setURL(url string) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.url = url
}

// publish runs under the machine lock; send never blocks.
func (rt *Runtime) publish(snap types.Snapshot) {
	rt.send(protocol.StateChanged{State: snap})
}

func (rt *Runtime) send(msg protocol.Message) {
	rt.mu.RLock()
	port := rt.port
	rt.mu.RUnlock()

	if err := port.Send(msg); err != nil {
		rt.metrics.RecordDrop(string(msg.Kind()))
		rt.logger.Debug("Message dropped", zap.String("type", string(msg.Kind())), zap.Error(err))
		return
	}
	rt.metrics.RecordMessage("outbound", string(msg.Kind()))
}
