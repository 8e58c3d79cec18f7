// Package callback implements the local helper server that completes browser
// based OAuth logins. A Coordinator binds a loopback port, hands the
// authorization redirect's query parameters to the waiting goroutine and
// supports cooperative cancellation from any other goroutine.
package callback

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// ErrCancelled is returned by Wait when Cancel ended the handshake before a
// callback arrived.
var ErrCancelled = errors.New("callback wait cancelled")

// ErrBadCallback is returned by Wait when the captured redirect carried a
// query string that could not be parsed.
var ErrBadCallback = errors.New("malformed callback query")

// handshakeState tracks the coordinator through its life cycle. Transitions
// only move away from handshakePending and only under the coordinator mutex.
type handshakeState int

const (
	handshakePending handshakeState = iota
	handshakeCompleted
	handshakeCancelled
)

// Coordinator owns a callback Listener and runs the poll loop that waits for
// the OAuth redirect. A Coordinator serves exactly one handshake: once it
// reaches a terminal state it discards further captures and must not be
// reused. A failed or cancelled login starts over with a new Coordinator.
type Coordinator struct {
	// listener is the bound loopback listener polled by Wait
	listener *Listener
	// mu guards state, path and closed
	mu sync.Mutex
	// state is the handshake life cycle position
	state handshakeState
	// path is the raw path and query of the first captured request
	path string
	// closed records that the listener socket has been released
	closed bool
}

// NewCoordinator binds the callback listener on 127.0.0.1 at the given port.
// Binding happens here, before any browser is launched, so a redirect can
// never race an unbound socket. A pollTimeout of zero selects
// DefaultPollTimeout.
//
// Parameters:
//   - port: The local TCP port the OAuth redirect URI points at
//   - pollTimeout: The accept deadline for each poll of the wait loop
//
// Returns:
//   - *Coordinator: A coordinator ready for Wait
//   - error: An error if the port could not be bound
func NewCoordinator(port int, pollTimeout time.Duration) (*Coordinator, error) {
	c := &Coordinator{}
	listener, err := NewListener(port, pollTimeout, c)
	if err != nil {
		return nil, err
	}
	c.listener = listener
	return c, nil
}

// Capture records the redirect path of the first answered request and marks
// the handshake completed. Captures arriving after the handshake finished,
// by completion or by cancellation, are discarded.
func (c *Coordinator) Capture(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != handshakePending {
		log.Debugf("Discarding callback for finished handshake: %s", path)
		return
	}
	c.path = path
	c.state = handshakeCompleted
}

// Cancel aborts a pending handshake. It is safe to call from any goroutine
// while another goroutine blocks in Wait, and it is a no-op once the
// handshake has completed or was already cancelled.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != handshakePending {
		return
	}
	c.state = handshakeCancelled
}

// Wait runs the accept loop on the caller's goroutine until the handshake
// reaches a terminal state, then returns the parsed query parameters of the
// captured redirect. It returns ErrCancelled when Cancel won the race and
// ErrBadCallback when the redirect query could not be parsed.
//
// The coordinator mutex is held only between polls, never across the
// blocking accept, so a concurrent Cancel is observed within one poll
// interval.
//
// Returns:
//   - url.Values: The callback query parameters, keyed by parameter name
//   - error: ErrCancelled, ErrBadCallback or a listener failure
func (c *Coordinator) Wait() (url.Values, error) {
	for {
		c.mu.Lock()
		state := c.state
		c.mu.Unlock()
		if state != handshakePending {
			break
		}
		if err := c.listener.Poll(); err != nil {
			return nil, fmt.Errorf("callback listener failed: %w", err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case handshakeCancelled:
		return nil, ErrCancelled
	case handshakeCompleted:
		parsed, err := url.Parse(c.path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadCallback, err)
		}
		values, err := url.ParseQuery(parsed.RawQuery)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadCallback, err)
		}
		return values, nil
	default:
		panic("callback: wait loop exited while handshake still pending")
	}
}

// Close releases the listener socket. It is idempotent and must be called
// once Wait has returned; closing while Wait is still polling makes Wait
// report a listener failure.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.listener.Close()
}

// Port reports the local port the listener is bound to.
func (c *Coordinator) Port() int {
	addr, ok := c.listener.Addr().(*net.TCPAddr)
	if !ok {
		return 0
	}
	return addr.Port
}
