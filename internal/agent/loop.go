// Package agent is the dispatch core: it consumes inbound events and
// drives each one through normalize, preprocess hooks, validate,
// tokenize, and then exactly one terminal branch: a document handler, a
// command dispatch, or the natural-language resolver.
package agent

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"wabot/internal/domain"
	"wabot/internal/metrics"
	"wabot/internal/persona"
	"wabot/internal/plugin"
)

const (
	defaultConcurrency     = 8
	defaultModelTimeout    = 30 * time.Second
	defaultMaxHistoryPairs = 5
)

// LoopConfig carries the loop's collaborators. Zero values get sensible
// defaults where one exists; Model may stay nil to disable the resolver.
type LoopConfig struct {
	Events   <-chan domain.Event
	Registry *plugin.Registry
	Settings domain.SettingsStore
	History  domain.HistoryStore
	Gateway  domain.Gateway
	Model    domain.ModelClient
	Personas *persona.Library
	Persona  string
	Metrics  *metrics.MetricsCollector
	Logger   *slog.Logger

	// Concurrency bounds how many messages are in flight at once;
	// messages from unrelated senders never wait on each other's model
	// or gateway calls below that bound.
	Concurrency int

	// Debug restricts the deployment to admin senders.
	Debug bool

	ModelTimeout    time.Duration
	MaxHistoryPairs int

	// DefaultZone renders prompt clocks for senders whose phone region
	// did not resolve to a timezone.
	DefaultZone *time.Location
}

// Loop owns one message pipeline per inbound event. All collaborators
// are read-only after construction; per-message state lives on the
// Message itself, so concurrent pipelines share nothing mutable.
type Loop struct {
	events   <-chan domain.Event
	registry *plugin.Registry
	settings domain.SettingsStore
	history  domain.HistoryStore
	gateway  domain.Gateway
	model    domain.ModelClient
	personas *persona.Library
	persona  string
	logger   *slog.Logger

	concurrency     int
	debug           bool
	modelTimeout    time.Duration
	maxHistoryPairs int
	defaultZone     *time.Location

	received      *metrics.Counter
	commands      *metrics.Counter
	chats         *metrics.Counter
	documents     *metrics.Counter
	dropped       *metrics.Counter
	replies       *metrics.Counter
	sendFails     *metrics.Counter
	resolverFails *metrics.Counter
	inflight      *metrics.Gauge
	latency       *metrics.Histogram
}

// NewLoop wires a Loop from cfg, applying defaults for anything unset.
func NewLoop(cfg LoopConfig) *Loop {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Registry == nil {
		cfg.Registry = plugin.NewRegistry()
	}
	if cfg.Personas == nil {
		cfg.Personas = persona.NewLibrary(cfg.Logger)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewMetricsCollector()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.ModelTimeout <= 0 {
		cfg.ModelTimeout = defaultModelTimeout
	}
	if cfg.MaxHistoryPairs <= 0 {
		cfg.MaxHistoryPairs = defaultMaxHistoryPairs
	}
	if cfg.DefaultZone == nil {
		cfg.DefaultZone = time.UTC
	}

	return &Loop{
		events:   cfg.Events,
		registry: cfg.Registry,
		settings: cfg.Settings,
		history:  cfg.History,
		gateway:  cfg.Gateway,
		model:    cfg.Model,
		personas: cfg.Personas,
		persona:  cfg.Persona,
		logger:   cfg.Logger,

		concurrency:     cfg.Concurrency,
		debug:           cfg.Debug,
		modelTimeout:    cfg.ModelTimeout,
		maxHistoryPairs: cfg.MaxHistoryPairs,
		defaultZone:     cfg.DefaultZone,

		received:      cfg.Metrics.Counter("wabot_events_total", "Inbound events received.", ""),
		commands:      cfg.Metrics.Counter("wabot_commands_total", "Messages dispatched as structured commands.", ""),
		chats:         cfg.Metrics.Counter("wabot_chats_total", "Messages handled as free-form chat.", ""),
		documents:     cfg.Metrics.Counter("wabot_documents_total", "Typed documents routed to handlers.", ""),
		dropped:       cfg.Metrics.Counter("wabot_dropped_total", "Messages dropped by validation or tokenization.", ""),
		replies:       cfg.Metrics.Counter("wabot_replies_total", "Outbound replies sent.", ""),
		sendFails:     cfg.Metrics.Counter("wabot_send_errors_total", "Outbound sends that failed.", ""),
		resolverFails: cfg.Metrics.Counter("wabot_resolver_errors_total", "Resolver cycles that degraded to an apology.", ""),
		inflight:      cfg.Metrics.Gauge("wabot_inflight_messages", "Messages currently in the pipeline.", ""),
		latency: cfg.Metrics.Histogram("wabot_message_seconds", "End-to-end message handling time.", "",
			[]float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}),
	}
}

// Run consumes events until ctx is cancelled or the channel closes. Each
// event runs in its own goroutine behind a semaphore, so a message
// blocked on the model or the gateway never stalls unrelated senders.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("message loop started", "concurrency", l.concurrency)

	sem := make(chan struct{}, l.concurrency)
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("message loop stopped")
			return ctx.Err()
		case ev, ok := <-l.events:
			if !ok {
				l.logger.Info("event channel closed")
				return nil
			}
			sem <- struct{}{}
			go func(ev domain.Event) {
				defer func() { <-sem }()
				l.processEvent(ctx, ev)
			}(ev)
		}
	}
}

// processEvent drives one event through the pipeline. Every path ends
// here: drops are logged, user-facing errors become replies, and at most
// one send of msg.Outgoing happens per cycle. Document handlers and
// console re-dispatches perform their own sends.
func (l *Loop) processEvent(ctx context.Context, ev domain.Event) {
	start := time.Now()
	l.received.Inc()
	l.inflight.Inc()
	defer func() {
		l.inflight.Dec()
		l.latency.Observe(time.Since(start).Seconds())
	}()

	msg := normalize(ev)
	log := l.logger.With(
		"request_id", msg.RequestID,
		"sender", msg.Sender,
		"scope", msg.Scope)

	// Hooks observe every message before routing, whatever the path.
	for _, p := range l.registry.Hooks() {
		p.Preprocess(ctx, msg)
	}

	if msg.DocumentType != "" {
		l.handleDocument(ctx, msg, log)
		return
	}

	if err := l.validate(ctx, msg); err != nil {
		l.drop(log, "validation", err)
		return
	}
	if err := l.tokenize(ctx, msg); err != nil {
		l.drop(log, "tokenization", err)
		return
	}

	if msg.Arguments != nil {
		l.commands.Inc()
		log.Info("command received", "command", msg.Arguments[0], "tier", msg.Tier)
		if err := l.dispatch(ctx, msg); err != nil {
			l.commandError(msg, err, log)
		}
	} else {
		l.chats.Inc()
		log.Info("chat received")
		l.resolve(ctx, msg)
	}

	if msg.Outgoing != "" {
		l.send(ctx, msg)
	}
}

// handleDocument routes a typed document straight to its handler; there
// is no text path, no validation, and no reply from the loop itself.
func (l *Loop) handleDocument(ctx context.Context, msg *domain.Message, log *slog.Logger) {
	l.documents.Inc()

	p, ok := l.registry.DocumentHandler(msg.DocumentType)
	if !ok {
		l.dropped.Inc()
		log.Warn("no handler for document type", "document_type", msg.DocumentType)
		return
	}

	log.Info("document received", "document_type", msg.DocumentType, "handler", p.Name)
	if _, err := p.Handle(ctx, msg); err != nil {
		log.Error("document handler failed", "handler", p.Name, "error", err)
	}
}

// commandError converts the user-facing dispatch failures into replies;
// everything else is logged and dropped.
func (l *Loop) commandError(msg *domain.Message, err error, log *slog.Logger) {
	switch {
	case errors.Is(err, ErrSenderNotAdmin):
		msg.Outgoing = notAdminReply()
	case errors.Is(err, ErrCommandNotFound):
		msg.Outgoing = commandNotFoundReply(msg.Arguments[0], msg.Prefix())
	default:
		log.Error("command failed", "command", msg.Arguments[0], "error", err)
	}
}

func (l *Loop) drop(log *slog.Logger, stage string, err error) {
	l.dropped.Inc()
	if silentDrop(err) {
		log.Debug("message dropped", "stage", stage, "reason", err)
		return
	}
	log.Error("pipeline failed", "stage", stage, "error", err)
}

func (l *Loop) send(ctx context.Context, msg *domain.Message) {
	if err := l.gateway.SendMessage(ctx, msg.Destination(), msg.Outgoing); err != nil {
		l.sendFails.Inc()
		l.logger.Error("send failed",
			"request_id", msg.RequestID,
			"to", msg.Destination(),
			"error", err)
		return
	}
	l.replies.Inc()
}
