package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"wabot/internal/domain"
	"wabot/internal/metrics"
)

const (
	streamMinBackoff = time.Second
	streamMaxBackoff = 30 * time.Second
)

// StreamConfig configures the gateway event stream client.
type StreamConfig struct {
	// URL is the ws:// or wss:// endpoint of the gateway's event feed.
	URL string
	// Token is sent as a bearer header on the handshake when non-empty.
	Token string

	Metrics *metrics.MetricsCollector
	Logger  *slog.Logger
}

// Stream pulls events over a websocket instead of waiting for webhook
// posts, for gateways that push their feed. Dropped connections are
// redialed with exponential backoff; events missed while disconnected
// are gone, the gateway keeps no replay buffer.
type Stream struct {
	url        string
	token      string
	bus        EventPublisher
	logger     *slog.Logger
	minBackoff time.Duration

	connected *metrics.Gauge
	received  *metrics.Counter
}

// NewStream wires the stream client; Start actually dials.
func NewStream(cfg StreamConfig, bus EventPublisher) *Stream {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewMetricsCollector()
	}
	return &Stream{
		url:        cfg.URL,
		token:      cfg.Token,
		bus:        bus,
		logger:     cfg.Logger,
		minBackoff: streamMinBackoff,
		connected:  cfg.Metrics.Gauge("wabot_stream_connected", "Whether the gateway event stream is connected.", ""),
		received:   cfg.Metrics.Counter("wabot_stream_events_total", "Events received over the stream.", ""),
	}
}

// Start dials and reads until ctx is cancelled. Every drop or failed
// dial waits out the current backoff before the next attempt; a
// successful dial resets it.
func (s *Stream) Start(ctx context.Context) error {
	if s.url == "" {
		return fmt.Errorf("stream: url not configured")
	}

	backoff := s.minBackoff
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, err := s.dial(ctx)
		if err != nil {
			s.logger.Warn("stream dial failed", "url", s.url, "error", err)
			if !s.wait(ctx, backoff) {
				return ctx.Err()
			}
			backoff = min(backoff*2, streamMaxBackoff)
			continue
		}

		s.logger.Info("stream connected", "url", s.url)
		s.connected.Set(1)
		backoff = s.minBackoff

		s.readLoop(ctx, conn)
		s.connected.Set(0)

		if ctx.Err() == nil {
			s.logger.Warn("stream disconnected, redialing")
			if !s.wait(ctx, backoff) {
				return ctx.Err()
			}
		}
	}
}

func (s *Stream) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	var header http.Header
	if s.token != "" {
		header = http.Header{"Authorization": {"Bearer " + s.token}}
	}
	conn, resp, err := dialer.DialContext(ctx, s.url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", s.url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", s.url, err)
	}
	return conn, nil
}

// readLoop consumes frames until the connection drops or ctx is
// cancelled. Cancellation closes the conn to unblock the read.
func (s *Stream) readLoop(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("stream read failed", "error", err)
			}
			return
		}

		var ev domain.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			s.logger.Warn("stream frame is not an event", "error", err)
			continue
		}
		if ev.From == "" {
			s.logger.Warn("stream event without a sender dropped")
			continue
		}

		ev.Channel = "stream"
		ev.RequestID = uuid.NewString()
		ev.ReceivedAt = time.Now()
		s.bus.Publish(ev)
		s.received.Inc()
	}
}

// wait sleeps for d or until ctx is cancelled, reporting whether the
// caller should continue.
func (s *Stream) wait(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
