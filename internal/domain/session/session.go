// Package session manages long-lived protocol streams and the registry
// that maps opaque session identifiers to them.
package session

import (
	"errors"
	"sync"
)

// ErrClosed is returned when sending on a session that has been closed.
var ErrClosed = errors.New("session closed")

// State tracks a session through its lifecycle. CLOSED is terminal: a closed
// session identifier is never reused or reopened.
type State int

const (
	// Establishing is the window between accepting the stream-open request
	// and the transport reporting ready.
	Establishing State = iota
	// Open is the steady state where the session accepts tagged messages.
	Open
	// Closed is entered on transport disconnect or explicit termination.
	Closed
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case Establishing:
		return "establishing"
	case Open:
		return "open"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// frameBuffer is the per-session outbound channel capacity. A slow consumer
// beyond this depth gets frames dropped with an error to the submitter.
const frameBuffer = 100

// Session is one long-lived stream. Protocol responses are delivered through
// Send and drained by the transport goroutine via Frames. The registry owns
// the session; the router borrows it per message and never retains it.
type Session struct {
	// ID is the opaque identifier, unique for the process lifetime.
	ID string

	mu     sync.Mutex
	state  State
	frames chan []byte
	once   sync.Once
}

func newSession(id string) *Session {
	return &Session{
		ID:     id,
		state:  Establishing,
		frames: make(chan []byte, frameBuffer),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// MarkOpen transitions Establishing -> Open. A no-op in any other state.
func (s *Session) MarkOpen() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Establishing {
		s.state = Open
	}
}

// Send queues a frame for delivery down the stream. Returns ErrClosed if the
// session is closed, or an error if the outbound buffer is full (the frame is
// dropped rather than blocking the submitter).
func (s *Session) Send(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Closed {
		return ErrClosed
	}
	select {
	case s.frames <- frame:
		return nil
	default:
		return errors.New("session outbound buffer full")
	}
}

// Frames returns the outbound frame channel. It is closed when the session
// closes, which terminates the transport's event loop.
func (s *Session) Frames() <-chan []byte {
	return s.frames
}

// Close transitions the session to Closed and closes the frame channel.
// Idempotent.
func (s *Session) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.state = Closed
		close(s.frames)
		s.mu.Unlock()
	})
}
