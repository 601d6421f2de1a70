// Package channel holds the inbound transports: the webhook intake
// server the chat gateway posts to, and the optional websocket stream
// that pulls events from the gateway instead.
package channel

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"wabot/internal/domain"
	"wabot/internal/metrics"
)

// maxBodySize caps inbound webhook bodies at 1MB.
const maxBodySize = 1 << 20

// EventPublisher is the bus side the intake layers need.
type EventPublisher interface {
	Publish(ev domain.Event)
}

// IntakeConfig configures the inbound webhook HTTP server.
type IntakeConfig struct {
	Host string
	Port int
	// Secret enables HMAC-SHA256 signature checks when non-empty.
	Secret string

	// AdminID and ClassroomGroupID shape the synthesized sender
	// addresses on the classroom and reminder routes.
	AdminID          string
	ClassroomGroupID string

	// MetricsEndpoint mounts the Prometheus exposition handler when
	// non-empty.
	MetricsEndpoint string

	Metrics *metrics.MetricsCollector
	Logger  *slog.Logger
}

// Intake accepts the gateway's message webhooks plus the classroom and
// reminder pushes, turning each into an Event on the bus. It never
// replies with content; acceptance is always 202 and the pipeline's
// answer travels through the gateway client.
type Intake struct {
	host            string
	port            int
	secret          string
	adminID         string
	classroomGroup  string
	metricsEndpoint string

	bus     EventPublisher
	logger  *slog.Logger
	metrics *metrics.MetricsCollector
	server  *http.Server

	accepted *metrics.Counter
	rejected *metrics.Counter
}

// NewIntake wires the intake server; Start actually binds the port.
func NewIntake(cfg IntakeConfig, bus EventPublisher) *Intake {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewMetricsCollector()
	}
	return &Intake{
		host:            cfg.Host,
		port:            cfg.Port,
		secret:          cfg.Secret,
		adminID:         cfg.AdminID,
		classroomGroup:  cfg.ClassroomGroupID,
		metricsEndpoint: cfg.MetricsEndpoint,
		bus:             bus,
		logger:          cfg.Logger,
		metrics:         cfg.Metrics,
		accepted:        cfg.Metrics.Counter("wabot_intake_accepted_total", "Webhook posts accepted onto the bus.", ""),
		rejected:        cfg.Metrics.Counter("wabot_intake_rejected_total", "Webhook posts rejected before the bus.", ""),
	}
}

// Start runs the HTTP server until ctx is cancelled, then drains it.
func (i *Intake) Start(ctx context.Context) error {
	i.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", i.host, i.port),
		Handler:           i.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	i.logger.Info("intake server starting", "addr", i.server.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := i.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		i.logger.Info("intake server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return i.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("intake server: %w", err)
	}
}

func (i *Intake) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/whatsapp", i.handleWhatsApp)
	mux.HandleFunc("/api/classroom", i.handleClassroom)
	mux.HandleFunc("/api/reminder", i.handleReminder)
	mux.HandleFunc("/healthz", i.handleHealth)
	if i.metricsEndpoint != "" {
		mux.HandleFunc(i.metricsEndpoint, i.metrics.Handler())
	}
	return mux
}

// readBody enforces the method, the size cap and the signature check
// shared by every POST route. A nil return means the response is
// already written.
func (i *Intake) readBody(rw http.ResponseWriter, r *http.Request) []byte {
	if r.Method != http.MethodPost {
		http.Error(rw, "Method Not Allowed", http.StatusMethodNotAllowed)
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		i.rejected.Inc()
		http.Error(rw, "Bad Request", http.StatusBadRequest)
		return nil
	}
	defer r.Body.Close()

	if i.secret != "" {
		sig := r.Header.Get("X-Signature-256")
		if sig == "" {
			i.rejected.Inc()
			http.Error(rw, "Missing signature", http.StatusUnauthorized)
			return nil
		}
		if !verifyHMAC(body, i.secret, sig) {
			i.rejected.Inc()
			http.Error(rw, "Invalid signature", http.StatusForbidden)
			return nil
		}
	}
	return body
}

// handleWhatsApp takes the gateway's raw message webhook: a from address
// plus a text, media or document body.
func (i *Intake) handleWhatsApp(rw http.ResponseWriter, r *http.Request) {
	body := i.readBody(rw, r)
	if body == nil {
		return
	}

	var ev domain.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		i.rejected.Inc()
		http.Error(rw, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if ev.From == "" {
		i.rejected.Inc()
		http.Error(rw, "from is required", http.StatusBadRequest)
		return
	}

	i.publish(rw, ev, "webhook")
}

// handleClassroom takes a classroom push: the body is the document
// itself. The event is addressed from the first admin into the class
// group, which is where the update lands.
func (i *Intake) handleClassroom(rw http.ResponseWriter, r *http.Request) {
	body := i.readBody(rw, r)
	if body == nil {
		return
	}

	if !json.Valid(body) {
		i.rejected.Inc()
		http.Error(rw, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if i.classroomGroup == "" {
		i.rejected.Inc()
		http.Error(rw, "classroom group not configured", http.StatusServiceUnavailable)
		return
	}

	ev := domain.Event{
		From:         fmt.Sprintf("%s@s.whatsapp.net in %s@g.us", i.adminID, i.classroomGroup),
		Document:     json.RawMessage(body),
		DocumentType: domain.DocTypeClassroom,
	}
	i.publish(rw, ev, "classroom")
}

// reminderPush is the body an external reminders service delivers when
// scheduled reminders fire.
type reminderPush struct {
	RemindersNotified []json.RawMessage `json:"reminders_notified"`
}

// handleReminder has two shapes. A push body carries fired reminders,
// each forwarded as its own document event addressed by the sender in
// its notes. An empty body is a manual trigger: one bare reminder event
// makes the handler drain whatever is due in the store.
func (i *Intake) handleReminder(rw http.ResponseWriter, r *http.Request) {
	body := i.readBody(rw, r)
	if body == nil {
		return
	}

	var push reminderPush
	if len(body) > 0 {
		if err := json.Unmarshal(body, &push); err != nil {
			i.rejected.Inc()
			http.Error(rw, "Invalid JSON", http.StatusBadRequest)
			return
		}
	}

	if len(push.RemindersNotified) == 0 {
		ev := domain.Event{
			From:         i.adminID + "@s.whatsapp.net",
			DocumentType: domain.DocTypeReminder,
		}
		i.publish(rw, ev, "reminder")
		return
	}

	// Services redeliver; identical entries in one push collapse.
	seen := make(map[string]struct{}, len(push.RemindersNotified))
	published := 0
	for _, entry := range push.RemindersNotified {
		key := string(entry)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		from, ok := i.reminderAddress(entry)
		if !ok {
			i.logger.Warn("reminder entry without a usable sender", "entry_len", len(entry))
			continue
		}
		ev := domain.Event{
			From:         from,
			Document:     entry,
			DocumentType: domain.DocTypeReminder,
			Channel:      "reminder",
			RequestID:    uuid.NewString(),
			ReceivedAt:   time.Now(),
		}
		i.bus.Publish(ev)
		published++
	}

	i.accepted.Add(int64(published))
	rw.WriteHeader(http.StatusAccepted)
	json.NewEncoder(rw).Encode(map[string]any{
		"status":    "accepted",
		"published": published,
	})
}

// reminderAddress pulls the destination out of a fired reminder's notes.
// A sender matching the class group id addresses the group; anything
// else is a direct send.
func (i *Intake) reminderAddress(entry json.RawMessage) (string, bool) {
	var meta struct {
		Notes string `json:"notes"`
	}
	if err := json.Unmarshal(entry, &meta); err != nil || meta.Notes == "" {
		return "", false
	}
	var notes struct {
		Sender string `json:"sender"`
	}
	if err := json.Unmarshal([]byte(meta.Notes), &notes); err != nil || notes.Sender == "" {
		return "", false
	}

	if notes.Sender == i.classroomGroup {
		return fmt.Sprintf("%s@s.whatsapp.net in %s@g.us", i.adminID, notes.Sender), true
	}
	return notes.Sender + "@s.whatsapp.net", true
}

func (i *Intake) handleHealth(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "application/json")
	json.NewEncoder(rw).Encode(map[string]string{"status": "ok"})
}

func (i *Intake) publish(rw http.ResponseWriter, ev domain.Event, channel string) {
	ev.Channel = channel
	ev.RequestID = uuid.NewString()
	ev.ReceivedAt = time.Now()

	i.logger.Info("event accepted",
		"channel", channel,
		"request_id", ev.RequestID,
		"document_type", ev.DocumentType)

	i.bus.Publish(ev)
	i.accepted.Inc()

	rw.WriteHeader(http.StatusAccepted)
	json.NewEncoder(rw).Encode(map[string]string{"status": "accepted"})
}

// verifyHMAC verifies the HMAC-SHA256 signature of the body.
func verifyHMAC(body []byte, secret, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
