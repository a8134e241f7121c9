package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/aptools/internal/domain/badge"
	"github.com/GriffinCanCode/aptools/internal/protocol"
	"github.com/GriffinCanCode/aptools/internal/shared/types"
	"github.com/GriffinCanCode/aptools/internal/testutil"
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(badge.NewBoard()).WithInitialFetchDelay(-1)
}

func TestOpenGeneratesID(t *testing.T) {
	m := newManager(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	entry, err := m.Open(ctx, "", nil)
	require.NoError(t, err)
	assert.Len(t, string(entry.ID()), 36)

	_, err = m.Open(ctx, entry.ID(), nil)
	assert.ErrorIs(t, err, ErrPageExists)

	_, err = m.Open(ctx, ActivePage, nil)
	assert.Error(t, err)
}

func TestDeliverUpdatesOriginatingPageOnly(t *testing.T) {
	m := newManager(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := m.Open(ctx, "a", nil)
	require.NoError(t, err)
	_, err = m.Open(ctx, "b", nil)
	require.NoError(t, err)

	snap := types.Snapshot{Initialized: true, VideoID: testutil.Ptr("5")}
	require.NoError(t, m.Deliver("a", protocol.StateChanged{State: snap}))

	require.Eventually(t, func() bool {
		return m.Board().Indicator("a").Text == "✓"
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, badge.Cleared, m.Board().Indicator("b"))

	ps, err := m.Query(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "5", ps.State.Target())

	require.NoError(t, m.Deliver("a", protocol.PageLoading{PageID: "a", URL: "https://x/y"}))
	assert.Equal(t, badge.Cleared, m.Board().Indicator("a"))
	page, ok := m.Get("a")
	require.True(t, ok)
	assert.Equal(t, "https://x/y", page.URL)

	assert.ErrorIs(t, m.Deliver("zzz", protocol.StateChanged{}), ErrPageNotFound)
	assert.ErrorIs(t, m.Deliver("a", protocol.GetState{}), protocol.ErrUnhandled)
}

func TestQueryRefreshesPage(t *testing.T) {
	m := newManager(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	port := protocol.NewChanPort(4)
	_, err := m.Open(ctx, "a", port)
	require.NoError(t, err)

	_, err = m.Query(ctx, ActivePage)
	require.NoError(t, err)
	select {
	case msg := <-port.C():
		assert.Equal(t, protocol.FetchState{}, msg)
	case <-time.After(time.Second):
		t.Fatal("page was not asked for fresh state")
	}
}

func TestActivePage(t *testing.T) {
	m := newManager(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := m.Query(ctx, ActivePage)
	assert.ErrorIs(t, err, ErrPageNotFound)

	_, err = m.Open(ctx, "a", nil)
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	_, err = m.Open(ctx, "b", nil)
	require.NoError(t, err)
	assert.Equal(t, types.PageID("b"), *m.Stats().ActivePageID)

	require.NoError(t, m.Deliver(ActivePage, protocol.Hello{PageID: "b", URL: "https://b"}))
	page, _ := m.Get("b")
	assert.Equal(t, "https://b", page.URL)

	assert.True(t, m.Focus("a"))
	assert.False(t, m.Focus("zzz"))
	assert.Equal(t, types.PageID("a"), *m.Stats().ActivePageID)

	assert.True(t, m.Close("a"))
	assert.False(t, m.Close("a"))
	assert.Equal(t, types.PageID("b"), *m.Stats().ActivePageID)
	assert.Equal(t, 1, m.Stats().TotalPages)

	pages := m.List()
	require.Len(t, pages, 1)
	assert.Equal(t, types.PageID("b"), pages[0].ID)
}

func TestCloseStopsRelay(t *testing.T) {
	m := newManager(t)
	entry, err := m.Open(context.Background(), "a", nil)
	require.NoError(t, err)

	m.Close("a")
	select {
	case <-entry.Relay().Done():
	case <-time.After(time.Second):
		t.Fatal("relay still running")
	}
}
