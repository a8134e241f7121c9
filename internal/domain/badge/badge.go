// Package badge maps session snapshots to the toolbar indicator of each page.
package badge

import (
	"sort"
	"sync"

	"github.com/GriffinCanCode/aptools/internal/protocol"
	"github.com/GriffinCanCode/aptools/internal/shared/types"
)

const (
	ColorInactive = "#888888"
	ColorBlocking = "#f44336"
	ColorReady    = "#4CAF50"
)

// Indicator is the glyph and background color shown for a page.
type Indicator struct {
	Text  string `json:"text"`
	Color string `json:"color"`
}

// Cleared is shown for pages with no running script.
var Cleared = Indicator{Text: "", Color: ColorInactive}

// Present maps a snapshot to its indicator. Blocking wins over a target.
func Present(s types.Snapshot) Indicator {
	switch {
	case !s.Initialized:
		return Cleared
	case s.Blocking:
		return Indicator{Text: "🔒", Color: ColorBlocking}
	case s.HasTarget():
		return Indicator{Text: "✓", Color: ColorReady}
	default:
		return Indicator{Text: "...", Color: ColorInactive}
	}
}

// Board holds the indicator of every page instance.
type Board struct {
	mu    sync.RWMutex
	pages map[types.PageID]Indicator
}

// NewBoard creates an empty board.
func NewBoard() *Board {
	return &Board{pages: make(map[types.PageID]Indicator)}
}

// Apply updates the indicator of the page the update came from.
func (b *Board) Apply(u protocol.StateUpdate) Indicator {
	ind := Present(u.State)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pages[u.PageID] = ind
	return ind
}

// Loading clears the indicator of a page that started a fresh load.
func (b *Board) Loading(id types.PageID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pages[id] = Cleared
}

// Remove forgets a page.
func (b *Board) Remove(id types.PageID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.pages, id)
}

// Indicator returns the indicator of a page. Unknown pages are cleared.
func (b *Board) Indicator(id types.PageID) Indicator {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if ind, ok := b.pages[id]; ok {
		return ind
	}
	return Cleared
}

// Pages lists the pages on the board in id order.
func (b *Board) Pages() []types.PageID {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := make([]types.PageID, 0, len(b.pages))
	for id := range b.pages {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
