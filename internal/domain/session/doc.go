// Package session holds the authoritative capture/replay state of one page.
//
// The Machine is the single writer of the session. Every transition runs as
// one transaction (validate → apply → snapshot → notify) so observers on the
// page side never see a mutation without its broadcast.
//
// Phases:
//
//	Idle ──capture──▶ Captured ──lock──▶ Locked ──reset──▶ Idle
//	  ▲                   │
//	  └────navigate───────┘
//
// Navigation clears a capture unless the session is Locked; the lock is only
// released by an explicit Reset.
//
// Example Usage:
//
//	m := session.NewMachine(session.NotifierFunc(func(s types.Snapshot) {
//	    port.Send(protocol.StateChanged{State: s})
//	}))
//	ok, err := m.Capture(session.Capture{TargetID: "42", Headers: h, Payload: p})
package session
