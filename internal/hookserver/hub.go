package hookserver

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	readTimeout          = 60 * time.Second
	writeTimeout         = 10 * time.Second
	heartbeatInterval    = 30 * time.Second
	maxInboundMessageLen = 1 << 20
	subscriberSendBuffer = 16
)

var errHubStopped = errors.New("hookserver: hub stopped")

// Hub fans received events out to connected websocket subscribers.
// Subscribers are listen-only; anything they send is discarded.
type Hub struct {
	upgrader websocket.Upgrader

	mu          sync.Mutex
	subscribers map[*subscriber]struct{}
	stopped     bool
}

// NewHub builds an empty hub ready to accept upgrades.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		subscribers: make(map[*subscriber]struct{}),
	}
}

// Upgrade turns an HTTP request into a websocket subscription.
func (h *Hub) Upgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("websocket upgrade failed: %v", err)
		return
	}
	s := newSubscriber(conn, h)

	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		s.cleanup(errHubStopped)
		return
	}
	h.subscribers[s] = struct{}{}
	count := len(h.subscribers)
	h.mu.Unlock()

	log.Debugf("websocket subscriber connected, %d active", count)
	go s.run()
}

// Broadcast sends the payload to every subscriber. Subscribers whose send
// queue is full are dropped rather than allowed to stall the hub.
func (h *Hub) Broadcast(payload []byte) {
	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.subscribers))
	for s := range h.subscribers {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		select {
		case s.send <- payload:
		default:
			log.Warn("websocket subscriber too slow, dropping connection")
			s.cleanup(errors.New("send queue full"))
		}
	}
}

// SubscriberCount reports the number of connected subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Stop disconnects every subscriber and rejects future upgrades.
func (h *Hub) Stop() {
	h.mu.Lock()
	h.stopped = true
	subs := make([]*subscriber, 0, len(h.subscribers))
	for s := range h.subscribers {
		subs = append(subs, s)
	}
	h.subscribers = make(map[*subscriber]struct{})
	h.mu.Unlock()

	for _, s := range subs {
		s.cleanup(errHubStopped)
	}
}

func (h *Hub) remove(s *subscriber) {
	h.mu.Lock()
	delete(h.subscribers, s)
	h.mu.Unlock()
}

type subscriber struct {
	conn      *websocket.Conn
	hub       *Hub
	send      chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newSubscriber(conn *websocket.Conn, hub *Hub) *subscriber {
	s := &subscriber{
		conn:   conn,
		hub:    hub,
		send:   make(chan []byte, subscriberSendBuffer),
		closed: make(chan struct{}),
	}
	conn.SetReadLimit(maxInboundMessageLen)
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})
	return s
}

// run drives both pumps; it returns when the connection dies.
func (s *subscriber) run() {
	go s.writePump()
	s.readPump()
}

// readPump discards inbound frames and detects the peer going away.
func (s *subscriber) readPump() {
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			s.cleanup(err)
			return
		}
	}
}

func (s *subscriber) writePump() {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.closed:
			return
		case payload := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.cleanup(err)
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeTimeout)); err != nil {
				s.cleanup(err)
				return
			}
		}
	}
}

func (s *subscriber) cleanup(cause error) {
	s.closeOnce.Do(func() {
		close(s.closed)
		_ = s.conn.Close()
		s.hub.remove(s)
		if cause != nil && !errors.Is(cause, errHubStopped) && !websocket.IsCloseError(cause, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			log.Debugf("websocket subscriber closed: %v", cause)
		}
	})
}
