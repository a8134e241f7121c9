package protocol

import (
	"errors"
	"sync"
)

var (
	ErrPortClosed = errors.New("port closed")
	ErrPortFull   = errors.New("port receiver not ready")
)

// Port delivers messages to another context without waiting for it.
type Port interface {
	Send(msg Message) error
}

// PortFunc adapts a function to Port.
type PortFunc func(msg Message) error

// Send calls f(msg).
func (f PortFunc) Send(msg Message) error {
	return f(msg)
}

// Discard is a Port that drops everything.
var Discard Port = PortFunc(func(Message) error { return nil })

// ChanPort is an in-memory Port backed by a buffered channel.
type ChanPort struct {
	mu     sync.RWMutex
	ch     chan Message
	closed bool
}

// NewChanPort creates a port holding up to size undelivered messages.
func NewChanPort(size int) *ChanPort {
	return &ChanPort{ch: make(chan Message, size)}
}

// Send enqueues msg, failing instead of blocking when the buffer is full.
func (p *ChanPort) Send(msg Message) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPortClosed
	}
	select {
	case p.ch <- msg:
		return nil
	default:
		return ErrPortFull
	}
}

// C returns the receive side of the port.
func (p *ChanPort) C() <-chan Message {
	return p.ch
}

// Close stops the port. Pending messages can still be drained from C.
func (p *ChanPort) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.closed {
		p.closed = true
		close(p.ch)
	}
}
