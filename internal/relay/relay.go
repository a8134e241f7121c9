package relay

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/aptools/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/aptools/internal/protocol"
	"github.com/GriffinCanCode/aptools/internal/shared/types"
)

const (
	// DefaultInitialFetchDelay is how long after start the relay asks the
	// page for its snapshot.
	DefaultInitialFetchDelay = 100 * time.Millisecond

	inboxSize = 64
)

var ErrStopped = errors.New("relay stopped")

type request struct {
	msg   protocol.Message
	reply chan types.Snapshot
}

// Relay is the per-page actor.
type Relay struct {
	pageID types.PageID
	page   protocol.Port
	sink   protocol.Port

	inbox   chan request
	done    chan struct{}
	started atomic.Bool
	cached  atomic.Pointer[types.Snapshot]

	initialFetchDelay time.Duration
	logger            *zap.Logger
	metrics           *monitoring.Metrics
}

// New creates a relay for pageID. page receives fetch requests; sink
// receives state updates.
func New(pageID types.PageID, page, sink protocol.Port) *Relay {
	if page == nil {
		page = protocol.Discard
	}
	if sink == nil {
		sink = protocol.Discard
	}
	r := &Relay{
		pageID:            pageID,
		page:              page,
		sink:              sink,
		inbox:             make(chan request, inboxSize),
		done:              make(chan struct{}),
		initialFetchDelay: DefaultInitialFetchDelay,
		logger:            zap.NewNop(),
	}
	r.cached.Store(&types.Snapshot{})
	return r
}

// WithLogger sets the logger.
func (r *Relay) WithLogger(logger *zap.Logger) *Relay {
	if logger != nil {
		r.logger = logger.With(zap.String("page_id", string(r.pageID)))
	}
	return r
}

// WithMetrics sets the metrics collector.
func (r *Relay) WithMetrics(metrics *monitoring.Metrics) *Relay {
	r.metrics = metrics
	return r
}

// WithInitialFetchDelay sets the delay before the first fetch request. A
// negative delay disables it.
func (r *Relay) WithInitialFetchDelay(d time.Duration) *Relay {
	r.initialFetchDelay = d
	return r
}

// PageID returns the page this relay serves.
func (r *Relay) PageID() types.PageID {
	return r.pageID
}

// Cached returns the last snapshot received from the page.
func (r *Relay) Cached() types.Snapshot {
	return *r.cached.Load()
}

// Send delivers a message from the page without waiting for it to be
// handled.
func (r *Relay) Send(msg protocol.Message) error {
	select {
	case <-r.done:
		return protocol.ErrPortClosed
	default:
	}

	select {
	case r.inbox <- request{msg: msg}:
		return nil
	default:
		r.metrics.RecordDrop(string(msg.Kind()))
		return protocol.ErrPortFull
	}
}

// Query answers a status query with the cached snapshot.
func (r *Relay) Query(ctx context.Context) (types.Snapshot, error) {
	req := request{msg: protocol.GetState{}, reply: make(chan types.Snapshot, 1)}

	select {
	case r.inbox <- req:
	case <-r.done:
		return types.Snapshot{}, ErrStopped
	case <-ctx.Done():
		return types.Snapshot{}, ctx.Err()
	}

	select {
	case snap := <-req.reply:
		return snap, nil
	case <-r.done:
		return types.Snapshot{}, ErrStopped
	case <-ctx.Done():
		return types.Snapshot{}, ctx.Err()
	}
}

// Done is closed once Run returns.
func (r *Relay) Done() <-chan struct{} {
	return r.done
}

// Run processes messages until ctx is cancelled. It may be called once.
func (r *Relay) Run(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return errors.New("relay already running")
	}
	defer close(r.done)

	var initial <-chan time.Time
	if r.initialFetchDelay >= 0 {
		timer := time.NewTimer(r.initialFetchDelay)
		defer timer.Stop()
		initial = timer.C
	}

	cache := types.Snapshot{}
	var reply chan types.Snapshot

	router := &protocol.Router{
		OnStateChanged: func(m protocol.StateChanged) {
			cache = m.State
			snap := cache
			r.cached.Store(&snap)
			r.forward(protocol.StateUpdate{PageID: r.pageID, State: cache}, r.sink)
		},
		OnGetState: func(protocol.GetState) {
			r.metrics.IncRelayQueries()
			r.forward(protocol.FetchState{}, r.page)
			if reply != nil {
				reply <- cache
			}
		},
	}

	r.logger.Debug("Relay started")
	for {
		select {
		case <-ctx.Done():
			r.logger.Debug("Relay stopped")
			return ctx.Err()
		case <-initial:
			initial = nil
			r.forward(protocol.FetchState{}, r.page)
		case req := <-r.inbox:
			reply = req.reply
			r.metrics.RecordMessage("inbound", string(req.msg.Kind()))
			if err := router.Dispatch(req.msg); err != nil {
				r.logger.Debug("Ignored message", zap.String("type", string(req.msg.Kind())), zap.Error(err))
			}
			reply = nil
		}
	}
}

// forward sends msg and swallows delivery failures.
func (r *Relay) forward(msg protocol.Message, port protocol.Port) {
	if err := port.Send(msg); err != nil {
		r.metrics.RecordDrop(string(msg.Kind()))
		r.logger.Debug("Message dropped", zap.String("type", string(msg.Kind())), zap.Error(err))
		return
	}
	r.metrics.RecordMessage("outbound", string(msg.Kind()))
}
