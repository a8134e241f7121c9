package session

import (
	"errors"
	"maps"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/aptools/internal/shared/types"
)

var (
	ErrInvalidTransition = errors.New("invalid session transition")
	ErrInvalidCapture    = errors.New("capture requires a target id")
)

// Notifier receives the snapshot produced by every committed transition.
// Notify runs while the machine is locked: it must not block and must not
// call back into the machine.
type Notifier interface {
	Notify(snap types.Snapshot)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(snap types.Snapshot)

// Notify calls f(snap).
func (f NotifierFunc) Notify(snap types.Snapshot) {
	f(snap)
}

// Machine is the single authoritative session state of a page.
type Machine struct {
	mu       sync.Mutex
	state    State
	lastURL  string
	notifier Notifier
	logger   *zap.Logger
}

// NewMachine creates an Idle machine.
func NewMachine(notifier Notifier) *Machine {
	return &Machine{
		state:    State{Phase: PhaseIdle},
		notifier: notifier,
		logger:   zap.NewNop(),
	}
}

// WithLogger attaches a logger for transition events.
func (m *Machine) WithLogger(logger *zap.Logger) *Machine {
	if logger != nil {
		m.logger = logger
	}
	return m
}

// transact applies fn to a copy of the state. A change is committed and
// broadcast before the lock is released; an error or no-op commits nothing.
func (m *Machine) transact(fn func(s *State) (bool, error)) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.state.clone()
	changed, err := fn(&next)
	if err != nil || !changed {
		return false, err
	}

	m.state = next
	if m.notifier != nil {
		m.notifier.Notify(next.Snapshot())
	}
	return true, nil
}

// Capture stores the first matched request of a cycle. It returns false
// without touching the state when a capture is already held.
func (m *Machine) Capture(c Capture) (bool, error) {
	if c.TargetID == "" {
		return false, ErrInvalidCapture
	}

	captured, err := m.transact(func(s *State) (bool, error) {
		if s.Phase != PhaseIdle {
			return false, nil
		}
		s.Phase = PhaseCaptured
		s.TargetID = c.TargetID
		s.Headers = maps.Clone(c.Headers)
		if s.Headers == nil {
			s.Headers = map[string]string{}
		}
		s.Payload = c.Payload.clone()
		return true, nil
	})
	if captured {
		m.logger.Info("Captured progress request",
			zap.String("target_id", c.TargetID),
			zap.Int("headers", len(c.Headers)),
			zap.Bool("structured", c.Payload.Structured()),
		)
	}
	return captured, err
}

// Lock moves a captured session into the post-replay lock.
func (m *Machine) Lock() error {
	_, err := m.transact(func(s *State) (bool, error) {
		if s.Phase != PhaseCaptured {
			return false, transitionError(s.Phase, PhaseLocked)
		}
		s.Phase = PhaseLocked
		return true, nil
	})
	if err == nil {
		m.logger.Info("Session locked")
	}
	return err
}

// Reset releases the lock and clears the capture.
func (m *Machine) Reset() error {
	_, err := m.transact(func(s *State) (bool, error) {
		if s.Phase != PhaseLocked {
			return false, transitionError(s.Phase, PhaseIdle)
		}
		*s = State{Phase: PhaseIdle}
		return true, nil
	})
	if err == nil {
		m.logger.Info("Session reset, watching for a new target")
	}
	return err
}

// Navigate records a client-side route change. A new URL clears the capture
// unless the session is locked. The first URL seen only primes the tracker.
func (m *Machine) Navigate(url string) bool {
	cleared, _ := m.transact(func(s *State) (bool, error) {
		if m.lastURL == "" {
			m.lastURL = url
			return false, nil
		}
		if url == m.lastURL {
			return false, nil
		}
		m.lastURL = url
		if s.Phase != PhaseCaptured {
			return false, nil
		}
		*s = State{Phase: PhaseIdle}
		return true, nil
	})
	if cleared {
		m.logger.Debug("Navigation cleared session", zap.String("url", url))
	}
	return cleared
}

// Reload starts a fresh document at url. A held capture is dropped even when
// the URL is unchanged; a locked session stays locked.
func (m *Machine) Reload(url string) bool {
	cleared, _ := m.transact(func(s *State) (bool, error) {
		m.lastURL = url
		if s.Phase != PhaseCaptured {
			return false, nil
		}
		*s = State{Phase: PhaseIdle}
		return true, nil
	})
	if cleared {
		m.logger.Debug("Document reload cleared session", zap.String("url", url))
	}
	return cleared
}

// Broadcast re-sends the current snapshot, e.g. in answer to a fetch request.
func (m *Machine) Broadcast() types.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.state.Snapshot()
	if m.notifier != nil {
		m.notifier.Notify(snap)
	}
	return snap
}

// State returns a deep copy of the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Phase
}

// Snapshot returns the current external projection.
func (m *Machine) Snapshot() types.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Snapshot()
}

func transitionError(from, to Phase) error {
	return &TransitionError{From: from, To: to}
}

// TransitionError reports a rejected transition. It matches
// ErrInvalidTransition under errors.Is.
type TransitionError struct {
	From Phase
	To   Phase
}

func (e *TransitionError) Error() string {
	return "invalid session transition " + e.From.String() + " -> " + e.To.String()
}

// Is lets errors.Is match ErrInvalidTransition.
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
