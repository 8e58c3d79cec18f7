// Package hookserver implements the local webhook receiver. It accepts
// event deliveries from the webhook system, tags each one with a delivery
// ID, optionally strips account details, relays events to websocket
// subscribers and forwards them to a configured HTTP endpoint.
package hookserver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"golang.org/x/sync/errgroup"

	"github.com/monzokit/monzokit/internal/config"
	"github.com/monzokit/monzokit/internal/logging"
)

const (
	maxEventSize     = 1 << 20
	forwardQueueSize = 64
	forwardTimeout   = 10 * time.Second
	shutdownTimeout  = 5 * time.Second
)

// redactedPaths are the payload fields stripped when redaction is on.
var redactedPaths = []string{
	"data.account_number",
	"data.sort_code",
	"data.counterparty.account_number",
	"data.counterparty.sort_code",
}

// relaySettings are the hot-reloadable parts of the configuration.
type relaySettings struct {
	forwardURL string
	redact     bool
}

// delivery is one received event queued for forwarding.
type delivery struct {
	id        string
	eventType string
	payload   []byte
}

// Server receives webhook deliveries on a local address.
type Server struct {
	addr       string
	path       string
	configPath string

	engine     *gin.Engine
	hub        *Hub
	forward    chan delivery
	settings   atomic.Pointer[relaySettings]
	httpClient *http.Client
}

// New builds a receiver from the webhook section of the configuration.
// configPath enables hot reloading of the forward and redaction settings;
// pass the empty string to disable it.
func New(cfg *config.Config, configPath string) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		addr:       cfg.Webhook.Address,
		path:       cfg.Webhook.Path,
		configPath: configPath,
		hub:        NewHub(),
		forward:    make(chan delivery, forwardQueueSize),
		httpClient: &http.Client{Timeout: forwardTimeout},
	}
	s.settings.Store(&relaySettings{
		forwardURL: cfg.Webhook.ForwardURL,
		redact:     cfg.Webhook.Redact,
	})

	engine := gin.New()
	engine.Use(logging.GinLogrusLogger(), logging.GinLogrusRecovery())
	engine.POST(s.path, s.handleEvent)
	engine.GET("/healthz", s.handleHealth)
	engine.GET("/ws", s.handleSocket)
	s.engine = engine
	return s
}

// Handler exposes the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	log.WithField("port", ln.Addr().(*net.TCPAddr).Port).Infof("Webhook receiver listening on %s, events at %s", ln.Addr(), s.path)

	httpServer := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if errServe := httpServer.Serve(ln); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			return errServe
		}
		return nil
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case d := <-s.forward:
				s.deliver(gctx, d)
			}
		}
	})
	if s.configPath != "" {
		g.Go(func() error {
			return s.watchConfig(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		s.hub.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) handleHealth(c *gin.Context) {
	logging.SkipGinRequestLogging(c)
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"subscribers": s.hub.SubscriberCount(),
	})
}

func (s *Server) handleSocket(c *gin.Context) {
	logging.SkipGinRequestLogging(c)
	s.hub.Upgrade(c.Writer, c.Request)
}

func (s *Server) handleEvent(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxEventSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}
	if len(body) > maxEventSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "event too large"})
		return
	}
	if !gjson.ValidBytes(body) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON"})
		return
	}
	eventType := gjson.GetBytes(body, "type").String()
	if eventType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing event type"})
		return
	}

	settings := s.settings.Load()
	if settings.redact {
		body = redactEvent(body)
	}

	deliveryID := uuid.NewString()
	log.WithFields(log.Fields{
		"request_id": logging.GetGinRequestID(c),
		"webhook":    eventType,
		"delivery":   deliveryID,
	}).Info("Received webhook event")

	s.hub.Broadcast(buildEnvelope(deliveryID, eventType, body))

	if settings.forwardURL != "" {
		select {
		case s.forward <- delivery{id: deliveryID, eventType: eventType, payload: body}:
		default:
			log.WithField("delivery", deliveryID).Warn("forward queue full, dropping event")
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "delivery_id": deliveryID})
}

// buildEnvelope wraps an event in the frame relayed to subscribers.
func buildEnvelope(deliveryID, eventType string, event []byte) []byte {
	envelope := []byte(`{}`)
	envelope, _ = sjson.SetBytes(envelope, "delivery_id", deliveryID)
	envelope, _ = sjson.SetBytes(envelope, "type", eventType)
	envelope, _ = sjson.SetBytes(envelope, "received_at", time.Now().UTC().Format(time.RFC3339Nano))
	envelope, _ = sjson.SetRawBytes(envelope, "event", event)
	return envelope
}

// redactEvent strips account numbers and sort codes from the payload.
func redactEvent(event []byte) []byte {
	for _, path := range redactedPaths {
		if !gjson.GetBytes(event, path).Exists() {
			continue
		}
		redacted, err := sjson.DeleteBytes(event, path)
		if err != nil {
			log.WithError(err).Warnf("failed to redact %s", path)
			continue
		}
		event = redacted
	}
	return event
}

// deliver forwards one event to the configured endpoint.
func (s *Server) deliver(ctx context.Context, d delivery) {
	settings := s.settings.Load()
	if settings.forwardURL == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, forwardTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, settings.forwardURL, bytes.NewReader(d.payload))
	if err != nil {
		log.WithError(err).WithField("delivery", d.id).Warn("failed to build forward request")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Monzokit-Delivery", d.id)
	req.Header.Set("X-Monzokit-Event", d.eventType)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		log.WithError(err).WithField("delivery", d.id).Warn("failed to forward event")
		return
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusMultipleChoices {
		log.WithFields(log.Fields{
			"delivery": d.id,
			"status":   resp.StatusCode,
		}).Warn("forward target rejected event")
		return
	}
	log.WithField("delivery", d.id).Debug("event forwarded")
}
