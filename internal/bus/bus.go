package bus

import (
	"log/slog"
	"sync"
	"time"

	"wabot/internal/domain"
)

const publishTimeout = 10 * time.Second

// InMemoryBus carries inbound events from the intake layers (webhook
// server, gateway stream) to the agent loop. One producer side may have
// several goroutines; there is exactly one consumer.
type InMemoryBus struct {
	events chan domain.Event
	mu     sync.RWMutex
	closed bool
	logger *slog.Logger
}

// New creates a new InMemoryBus with the given buffer size.
func New(bufferSize int, logger *slog.Logger) *InMemoryBus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &InMemoryBus{
		events: make(chan domain.Event, bufferSize),
		logger: logger,
	}
}

// Publish blocks up to 10 seconds if the bus is full instead of dropping.
func (b *InMemoryBus) Publish(ev domain.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		b.logger.Warn("attempted to publish to closed bus")
		return
	}

	select {
	case b.events <- ev:
	default:
		// Bus full — wait with timeout instead of dropping
		b.logger.Warn("event bus full, waiting...", "channel", ev.Channel, "from", ev.From)
		timer := time.NewTimer(publishTimeout)
		defer timer.Stop()
		select {
		case b.events <- ev:
			b.logger.Info("event delivered after wait", "channel", ev.Channel)
		case <-timer.C:
			b.logger.Error("event dropped: bus full for 10s",
				"channel", ev.Channel,
				"from", ev.From,
			)
		}
	}
}

func (b *InMemoryBus) Events() <-chan domain.Event {
	return b.events
}

func (b *InMemoryBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.closed {
		b.closed = true
		close(b.events)
	}
}
