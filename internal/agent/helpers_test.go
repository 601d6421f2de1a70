package agent

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"wabot/internal/domain"
	"wabot/internal/plugin"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type sent struct {
	Kind string
	To   string
	Text string
}

type fakeGateway struct {
	mu   sync.Mutex
	out  []sent
	fail bool
}

func (g *fakeGateway) record(kind, to, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail {
		return errors.New("gateway down")
	}
	g.out = append(g.out, sent{Kind: kind, To: to, Text: text})
	return nil
}

func (g *fakeGateway) SendMessage(_ context.Context, to, text string) error {
	return g.record("message", to, text)
}

func (g *fakeGateway) SendLink(_ context.Context, to, caption, link string) error {
	return g.record("link", to, caption+" "+link)
}

func (g *fakeGateway) SendFile(_ context.Context, to, path, caption string) error {
	return g.record("file", to, caption)
}

func (g *fakeGateway) SendImage(_ context.Context, to, path, caption string) error {
	return g.record("image", to, caption)
}

func (g *fakeGateway) SendAudio(_ context.Context, to, path, caption string) error {
	return g.record("audio", to, caption)
}

func (g *fakeGateway) SendVideo(_ context.Context, to, path, caption string) error {
	return g.record("video", to, caption)
}

func (g *fakeGateway) SendMedia(_ context.Context, to, path, mimeType, caption string) error {
	return g.record("media", to, caption)
}

func (g *fakeGateway) all() []sent {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]sent(nil), g.out...)
}

type fakeSettings struct {
	mu        sync.Mutex
	admins    map[string]bool
	blacklist map[string]bool
	marker    string
	values    map[string]string
}

func newFakeSettings(admins ...string) *fakeSettings {
	s := &fakeSettings{
		admins:    make(map[string]bool),
		blacklist: make(map[string]bool),
		marker:    "admin",
		values:    make(map[string]string),
	}
	for _, a := range admins {
		s.admins[a] = true
	}
	return s
}

func (s *fakeSettings) AdminIDs(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.admins))
	for id := range s.admins {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *fakeSettings) IsAdmin(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.admins[id], nil
}

func (s *fakeSettings) BlacklistIDs(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.blacklist))
	for id := range s.blacklist {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *fakeSettings) IsBlacklisted(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blacklist[id], nil
}

func (s *fakeSettings) AddBlacklist(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blacklist[id] = true
	return nil
}

func (s *fakeSettings) RemoveBlacklist(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	present := s.blacklist[id]
	delete(s.blacklist, id)
	return present, nil
}

func (s *fakeSettings) AdminMarker(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.marker, nil
}

func (s *fakeSettings) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	if !ok {
		return "", domain.ErrSettingNotFound
	}
	return v, nil
}

func (s *fakeSettings) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *fakeSettings) All(context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out, nil
}

type fakeHistory struct {
	mu         sync.Mutex
	exchanges  []domain.Exchange
	failLoad   bool
	failAppend bool
}

func (h *fakeHistory) Append(_ context.Context, ex domain.Exchange) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failAppend {
		return errors.New("append failed")
	}
	h.exchanges = append(h.exchanges, ex)
	return nil
}

func (h *fakeHistory) LastPairs(_ context.Context, sender, group string, n int) ([]domain.Exchange, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failLoad {
		return nil, errors.New("load failed")
	}
	var keyed []domain.Exchange
	for _, ex := range h.exchanges {
		if ex.Sender == sender && ex.Group == group {
			keyed = append(keyed, ex)
		}
	}
	if len(keyed) > n {
		keyed = keyed[len(keyed)-n:]
	}
	return keyed, nil
}

func (h *fakeHistory) all() []domain.Exchange {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.Exchange(nil), h.exchanges...)
}

type fakeModel struct {
	mu         sync.Mutex
	response   string
	err        error
	calls      int
	lastSystem string
	lastMsgs   []domain.ModelMessage
}

func (m *fakeModel) Complete(_ context.Context, system string, msgs []domain.ModelMessage) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastSystem = system
	m.lastMsgs = append([]domain.ModelMessage(nil), msgs...)
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

// testEnv bundles a Loop with its fakes for pipeline tests.
type testEnv struct {
	loop     *Loop
	gateway  *fakeGateway
	settings *fakeSettings
	history  *fakeHistory
	model    *fakeModel
	registry *plugin.Registry
}

func newTestEnv(t *testing.T, admins ...string) *testEnv {
	t.Helper()
	env := &testEnv{
		gateway:  &fakeGateway{},
		settings: newFakeSettings(admins...),
		history:  &fakeHistory{},
		model:    &fakeModel{response: `{"chat": "ok"}`},
		registry: plugin.NewRegistry(),
	}
	env.loop = NewLoop(LoopConfig{
		Registry:    env.registry,
		Settings:    env.settings,
		History:     env.history,
		Gateway:     env.gateway,
		Model:       env.model,
		Logger:      testLogger(),
		DefaultZone: time.UTC,
	})
	return env
}

// countingPlugin registers a plugin that records its invocations.
type countingPlugin struct {
	mu    sync.Mutex
	calls int
	last  *domain.Message
}

func (c *countingPlugin) handle(_ context.Context, msg *domain.Message) (plugin.Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.last = msg
	msg.Outgoing = "handled"
	return plugin.OutcomeHandled, nil
}

func (c *countingPlugin) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func chatEvent(from, text string) domain.Event {
	return domain.Event{
		From:       from,
		Message:    &domain.TextPayload{ID: "wamid.1", Text: text},
		Channel:    "webhook",
		RequestID:  "req-1",
		ReceivedAt: time.Now(),
	}
}
