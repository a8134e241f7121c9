// Package testutil provides mocks and fixtures shared by package tests.
package testutil

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/aptools/internal/domain/session"
	"github.com/GriffinCanCode/aptools/internal/shared/types"
)

// MockMediaProbe is a mock implementation of replay.MediaProbe.
type MockMediaProbe struct {
	mock.Mock
}

// Duration mocks the Duration method.
func (m *MockMediaProbe) Duration(ctx context.Context) (float64, error) {
	args := m.Called(ctx)
	return args.Get(0).(float64), args.Error(1)
}

// MockOverlay is a mock implementation of replay.Overlay.
type MockOverlay struct {
	mock.Mock
}

// Dismiss mocks the Dismiss method.
func (m *MockOverlay) Dismiss(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

// NewMockMediaProbe creates a probe that reports duration.
func NewMockMediaProbe(t *testing.T, duration float64) *MockMediaProbe {
	t.Helper()
	m := new(MockMediaProbe)
	m.On("Duration", mock.Anything).Return(duration, nil).Maybe()
	return m
}

// Recorder collects every snapshot a machine broadcasts.
type Recorder struct {
	mu    sync.Mutex
	snaps []types.Snapshot
}

// Notify implements session.Notifier.
func (r *Recorder) Notify(snap types.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, snap)
}

// Snapshots returns a copy of the recorded snapshots.
func (r *Recorder) Snapshots() []types.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.Snapshot(nil), r.snaps...)
}

// Last returns the most recent snapshot.
func (r *Recorder) Last() (types.Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.snaps) == 0 {
		return types.Snapshot{}, false
	}
	return r.snaps[len(r.snaps)-1], true
}

// CapturedMachine returns a machine already holding a capture for targetID.
func CapturedMachine(t *testing.T, targetID string, headers map[string]string, fields map[string]any) (*session.Machine, *Recorder) {
	t.Helper()
	rec := &Recorder{}
	m := session.NewMachine(rec)
	ok, err := m.Capture(session.Capture{
		TargetID: targetID,
		Headers:  headers,
		Payload:  session.Payload{Fields: fields},
	})
	require.NoError(t, err)
	require.True(t, ok)
	return m, rec
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
