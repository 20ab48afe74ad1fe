package simnet

import (
	"sync"
	"sync/atomic"
)

// streamController tracks the single-consumer attachment slot for the payment
// event stream and the cooperative cancellation signal for the attachment
// that currently holds it.
//
// Lifecycle: Detached -> Attached -> Detached. Detach re-arms the slot, so a
// fresh consumer can attach after a previous stream ended; only while a
// consumer holds the slot do further attach attempts fail.
type streamController struct {
	mu       sync.Mutex
	attached bool
	cancel   chan struct{}

	active atomic.Bool
}

// attach claims the consumer slot. It returns the cancellation channel for
// this attachment and false if another consumer already holds the slot.
func (s *streamController) attach() (<-chan struct{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.attached {
		return nil, false
	}
	s.attached = true
	s.cancel = make(chan struct{})
	s.active.Store(true)
	return s.cancel, true
}

// detach releases the slot. Runs on the stream's termination path regardless
// of how it ended, so isActive never reports a dead consumer.
func (s *streamController) detach() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attached = false
	s.cancel = nil
	s.active.Store(false)
}

// cancelAttached raises the cancellation signal for the current attachment.
// No-op when no consumer is attached or the signal was already raised.
func (s *streamController) cancelAttached() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.attached || s.cancel == nil {
		return
	}
	select {
	case <-s.cancel:
	default:
		close(s.cancel)
	}
}

// isActive reports whether a consumer currently holds the stream
func (s *streamController) isActive() bool {
	return s.active.Load()
}
