package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/aptools/internal/domain/badge"
	"github.com/GriffinCanCode/aptools/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/aptools/internal/protocol"
	"github.com/GriffinCanCode/aptools/internal/relay"
	"github.com/GriffinCanCode/aptools/internal/shared/types"
)

// ActivePage resolves to the active page in lookups.
const ActivePage types.PageID = "active"

var (
	ErrPageNotFound = errors.New("page not found")
	ErrPageExists   = errors.New("page already connected")
)

// Entry is a registered page with its relay.
type Entry struct {
	page   types.Page
	relay  *relay.Relay
	cancel context.CancelFunc
}

// ID returns the page id.
func (e *Entry) ID() types.PageID {
	return e.page.ID
}

// Relay returns the page's relay.
func (e *Entry) Relay() *relay.Relay {
	return e.relay
}

// Manager orchestrates connected pages
type Manager struct {
	mu       sync.RWMutex
	pages    map[types.PageID]*Entry // Protected by mu
	activeID *types.PageID           // Protected by mu

	board             *badge.Board
	router            *protocol.Router
	initialFetchDelay time.Duration
	logger            *zap.Logger
	metrics           *monitoring.Metrics
}

// NewManager creates a new page manager
func NewManager(board *badge.Board) *Manager {
	if board == nil {
		board = badge.NewBoard()
	}
	m := &Manager{
		pages:             make(map[types.PageID]*Entry),
		board:             board,
		initialFetchDelay: relay.DefaultInitialFetchDelay,
		logger:            zap.NewNop(),
	}
	m.router = &protocol.Router{
		OnStateUpdate: func(u protocol.StateUpdate) { m.board.Apply(u) },
		OnPageLoading: func(l protocol.PageLoading) { m.loading(l.PageID, l.URL) },
	}
	return m
}

// WithMetrics adds metrics tracking to the manager
func (m *Manager) WithMetrics(metrics *monitoring.Metrics) *Manager {
	m.metrics = metrics
	return m
}

// WithLogger sets the logger
func (m *Manager) WithLogger(logger *zap.Logger) *Manager {
	if logger != nil {
		m.logger = logger
	}
	return m
}

// WithInitialFetchDelay sets the initial fetch delay of new relays
func (m *Manager) WithInitialFetchDelay(d time.Duration) *Manager {
	m.initialFetchDelay = d
	return m
}

// Board returns the badge board
func (m *Manager) Board() *badge.Board {
	return m.board
}

// Open registers a page and starts its relay. An empty id is generated.
// The relay runs until ctx is done or the page is closed.
func (m *Manager) Open(ctx context.Context, id types.PageID, page protocol.Port) (*Entry, error) {
	if id == "" {
		id = types.PageID(uuid.New().String())
	}
	if id == ActivePage {
		return nil, fmt.Errorf("reserved page id %q", id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.pages[id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrPageExists, id)
	}

	runCtx, cancel := context.WithCancel(ctx)
	r := relay.New(id, page, m).
		WithLogger(m.logger).
		WithMetrics(m.metrics).
		WithInitialFetchDelay(m.initialFetchDelay)
	go func() { _ = r.Run(runCtx) }()

	entry := &Entry{
		page:   types.Page{ID: id, ConnectedAt: time.Now()},
		relay:  r,
		cancel: cancel,
	}
	m.pages[id] = entry
	m.activeID = &id
	m.metrics.IncPages()

	m.logger.Info("Page connected", zap.String("page_id", string(id)))
	return entry, nil
}

// Send implements protocol.Port for relays forwarding to the host.
func (m *Manager) Send(msg protocol.Message) error {
	return m.router.Dispatch(msg)
}

// Deliver routes a message coming from a page.
func (m *Manager) Deliver(id types.PageID, msg protocol.Message) error {
	entry, ok := m.lookup(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrPageNotFound, id)
	}
	id = entry.ID()

	switch msg := msg.(type) {
	case protocol.StateChanged:
		return entry.relay.Send(msg)
	case protocol.Hello:
		m.setURL(id, msg.URL)
		return nil
	case protocol.PageLoading:
		m.loading(id, msg.URL)
		return nil
	default:
		return fmt.Errorf("%w: %s from page", protocol.ErrUnhandled, msg.Kind())
	}
}

// Query asks a page's relay for its cached snapshot.
func (m *Manager) Query(ctx context.Context, id types.PageID) (types.PageState, error) {
	entry, ok := m.lookup(id)
	if !ok {
		return types.PageState{}, fmt.Errorf("%w: %s", ErrPageNotFound, id)
	}
	snap, err := entry.relay.Query(ctx)
	if err != nil {
		return types.PageState{}, err
	}

	m.mu.RLock()
	page := entry.page
	m.mu.RUnlock()
	return types.PageState{PageID: page.ID, URL: page.URL, State: snap}, nil
}

// Get retrieves a page by id
func (m *Manager) Get(id types.PageID) (types.Page, bool) {
	entry, ok := m.lookup(id)
	if !ok {
		return types.Page{}, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return entry.page, true
}

// List returns all pages in connection order
func (m *Manager) List() []types.Page {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pages := make([]types.Page, 0, len(m.pages))
	for _, e := range m.pages {
		pages = append(pages, e.page)
	}
	sort.Slice(pages, func(i, j int) bool {
		if pages[i].ConnectedAt.Equal(pages[j].ConnectedAt) {
			return pages[i].ID < pages[j].ID
		}
		return pages[i].ConnectedAt.Before(pages[j].ConnectedAt)
	})
	return pages
}

// Focus makes a page the active one
func (m *Manager) Focus(id types.PageID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.pages[id]; !ok {
		return false
	}
	m.activeID = &id
	return true
}

// Close stops a page's relay and forgets it
func (m *Manager) Close(id types.PageID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.pages[id]
	if !ok {
		return false
	}
	entry.cancel()
	delete(m.pages, id)
	m.board.Remove(id)
	m.metrics.DecPages()

	// Fall back to the most recently connected page
	if m.activeID != nil && *m.activeID == id {
		m.activeID = nil
		var latest *Entry
		for _, e := range m.pages {
			if latest == nil || e.page.ConnectedAt.After(latest.page.ConnectedAt) {
				latest = e
			}
		}
		if latest != nil {
			next := latest.page.ID
			m.activeID = &next
		}
	}

	m.logger.Info("Page disconnected", zap.String("page_id", string(id)))
	return true
}

// Stats returns manager statistics
func (m *Manager) Stats() types.Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var active *types.PageID
	if m.activeID != nil {
		id := *m.activeID
		active = &id
	}
	return types.Stats{TotalPages: len(m.pages), ActivePageID: active}
}

func (m *Manager) lookup(id types.PageID) (*Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if id == ActivePage {
		if m.activeID == nil {
			return nil, false
		}
		id = *m.activeID
	}
	e, ok := m.pages[id]
	return e, ok
}

func (m *Manager) setURL(id types.PageID, url string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.pages[id]; ok && url != "" {
		e.page.URL = url
	}
}

func (m *Manager) loading(id types.PageID, url string) {
	m.setURL(id, url)
	m.board.Loading(id)
}
