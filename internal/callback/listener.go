package callback

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultPollTimeout is the accept deadline used when the caller does not
// supply one. It bounds how long a cancellation can go unnoticed.
const DefaultPollTimeout = 200 * time.Millisecond

// ackBody is written in response to every request that reaches the listener,
// whatever its method or path. The browser tab showing it is the user's cue
// to return to the application.
const ackBody = "Done. Please go back to the app."

// Sink receives the raw path of each request the listener answers.
// The coordinator implements it; the indirection keeps the listener free of
// handshake state and lets tests observe captures directly.
type Sink interface {
	Capture(path string)
}

// Listener answers OAuth redirect requests on the loopback interface.
// It accepts at most one connection per Poll call, bounded by a deadline, so
// the owner can check for cancellation between polls.
type Listener struct {
	// ln is the bound loopback socket
	ln *net.TCPListener
	// sink receives the path of every answered request
	sink Sink
	// pollTimeout bounds a single accept and the serving of one request
	pollTimeout time.Duration
}

// NewListener binds the callback port on 127.0.0.1 and returns a listener
// that reports answered requests to sink. The socket is live once NewListener
// returns, so the authorization URL may be opened immediately afterwards.
//
// Parameters:
//   - port: The local TCP port to bind
//   - pollTimeout: The accept deadline for a single Poll; zero or negative
//     selects DefaultPollTimeout
//   - sink: The recipient of captured request paths
//
// Returns:
//   - *Listener: The bound listener
//   - error: An error if the port could not be bound
func NewListener(port int, pollTimeout time.Duration, sink Sink) (*Listener, error) {
	if pollTimeout <= 0 {
		pollTimeout = DefaultPollTimeout
	}
	addr := &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port}
	ln, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to bind callback port %d: %w", port, err)
	}
	return &Listener{ln: ln, sink: sink, pollTimeout: pollTimeout}, nil
}

// Addr returns the address the listener is bound to.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Close releases the listener socket.
func (l *Listener) Close() error {
	return l.ln.Close()
}

// Poll waits up to the poll timeout for one inbound connection and serves it.
// Returning without having served anything is the normal idle case; the
// caller decides whether to poll again.
//
// Returns:
//   - error: An error if accepting failed for a reason other than the
//     deadline, nil otherwise
func (l *Listener) Poll() error {
	if err := l.ln.SetDeadline(time.Now().Add(l.pollTimeout)); err != nil {
		return fmt.Errorf("failed to arm accept deadline: %w", err)
	}
	conn, err := l.ln.Accept()
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil
		}
		return fmt.Errorf("accept failed: %w", err)
	}
	l.serveConn(conn)
	return nil
}

// serveConn reads a single HTTP request from conn, acknowledges it and hands
// the raw path to the sink. The acknowledgement is written before the capture
// so the browser is never left waiting on downstream work. Requests that
// cannot be parsed are dropped without reaching the sink.
func (l *Listener) serveConn(conn net.Conn) {
	defer func() { _ = conn.Close() }()

	// The poll deadline bounds the accept only; bound the request exchange
	// too so a stalled client cannot block the wait loop.
	_ = conn.SetDeadline(time.Now().Add(l.pollTimeout))

	req, err := http.ReadRequest(bufio.NewReader(conn))
	if err != nil {
		log.Debugf("Dropping unreadable callback request: %v", err)
		return
	}

	resp := &http.Response{
		StatusCode:    http.StatusOK,
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        http.Header{"Content-Type": []string{"text/plain; charset=utf-8"}},
		Body:          io.NopCloser(strings.NewReader(ackBody)),
		ContentLength: int64(len(ackBody)),
		Close:         true,
	}
	if errWrite := resp.Write(conn); errWrite != nil {
		log.Debugf("Failed to write callback acknowledgement: %v", errWrite)
	}

	l.sink.Capture(req.RequestURI)
}
