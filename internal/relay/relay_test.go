package relay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/aptools/internal/protocol"
	"github.com/GriffinCanCode/aptools/internal/shared/types"
	"github.com/GriffinCanCode/aptools/internal/testutil"
)

func start(t *testing.T, r *Relay) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = r.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-r.Done()
	})
}

func receive(t *testing.T, p *protocol.ChanPort) protocol.Message {
	t.Helper()
	select {
	case msg := <-p.C():
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message received")
		return nil
	}
}

func TestRelayInitialState(t *testing.T) {
	r := New("p1", nil, nil).WithInitialFetchDelay(-1)
	start(t, r)

	snap, err := r.Query(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.Snapshot{}, snap)
	assert.False(t, snap.Initialized)
	assert.Nil(t, snap.VideoID)
}

func TestRelayForwardsAndReplaces(t *testing.T) {
	sink := protocol.NewChanPort(8)
	r := New("p1", nil, sink).WithInitialFetchDelay(-1)
	start(t, r)

	first := types.Snapshot{Initialized: true, VideoID: testutil.Ptr("1"), Blocking: true}
	require.NoError(t, r.Send(protocol.StateChanged{State: first}))
	assert.Equal(t, protocol.StateUpdate{PageID: "p1", State: first}, receive(t, sink))

	second := types.Snapshot{Initialized: true}
	require.NoError(t, r.Send(protocol.StateChanged{State: second}))
	assert.Equal(t, protocol.StateUpdate{PageID: "p1", State: second}, receive(t, sink))

	snap, err := r.Query(context.Background())
	require.NoError(t, err)
	assert.Equal(t, second, snap, "cache is replaced, never merged")
	assert.Equal(t, second, r.Cached())
}

func TestRelayQueryAnswersFromCacheAndRefreshes(t *testing.T) {
	page := protocol.NewChanPort(8)
	r := New("p1", page, nil).WithInitialFetchDelay(-1)
	start(t, r)

	snap := types.Snapshot{Initialized: true, VideoID: testutil.Ptr("42")}
	require.NoError(t, r.Send(protocol.StateChanged{State: snap}))

	got, err := r.Query(context.Background())
	require.NoError(t, err)
	assert.Equal(t, snap, got)
	assert.Equal(t, protocol.FetchState{}, receive(t, page))
}

func TestRelayQueryWithClosedPage(t *testing.T) {
	page := protocol.NewChanPort(1)
	page.Close()
	sink := protocol.NewChanPort(1)
	sink.Close()

	r := New("p1", page, sink).WithInitialFetchDelay(-1)
	start(t, r)

	require.NoError(t, r.Send(protocol.StateChanged{State: types.Snapshot{Initialized: true}}))
	snap, err := r.Query(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.Initialized)
}

func TestRelayInitialFetch(t *testing.T) {
	page := protocol.NewChanPort(1)
	r := New("p1", page, nil).WithInitialFetchDelay(5 * time.Millisecond)
	start(t, r)

	assert.Equal(t, protocol.FetchState{}, receive(t, page))
}

func TestRelayStopped(t *testing.T) {
	r := New("p1", nil, nil).WithInitialFetchDelay(-1)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = r.Run(ctx) }()
	cancel()
	<-r.Done()

	assert.ErrorIs(t, r.Send(protocol.StateChanged{}), protocol.ErrPortClosed)
	_, err := r.Query(context.Background())
	assert.ErrorIs(t, err, ErrStopped)
	assert.Error(t, r.Run(context.Background()))
}

func TestRelayQueryContext(t *testing.T) {
	r := New("p1", nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Query(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
