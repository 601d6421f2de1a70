package plugin

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"wabot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type sent struct {
	Kind string // message | link | file | image | audio | video
	To   string
	Text string // body or caption
	Path string
	Mime string
}

type fakeGateway struct {
	mu   sync.Mutex
	sent []sent
	fail bool
}

func (g *fakeGateway) record(s sent) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail {
		return errors.New("gateway down")
	}
	g.sent = append(g.sent, s)
	return nil
}

func (g *fakeGateway) all() []sent {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]sent(nil), g.sent...)
}

func (g *fakeGateway) SendMessage(ctx context.Context, to, text string) error {
	return g.record(sent{Kind: "message", To: to, Text: text})
}

func (g *fakeGateway) SendLink(ctx context.Context, to, caption, link string) error {
	return g.record(sent{Kind: "link", To: to, Text: caption, Path: link})
}

func (g *fakeGateway) SendFile(ctx context.Context, to, path, caption string) error {
	return g.record(sent{Kind: "file", To: to, Text: caption, Path: path})
}

func (g *fakeGateway) SendImage(ctx context.Context, to, path, caption string) error {
	return g.record(sent{Kind: "image", To: to, Text: caption, Path: path})
}

func (g *fakeGateway) SendAudio(ctx context.Context, to, path, caption string) error {
	return g.record(sent{Kind: "audio", To: to, Text: caption, Path: path})
}

func (g *fakeGateway) SendVideo(ctx context.Context, to, path, caption string) error {
	return g.record(sent{Kind: "video", To: to, Text: caption, Path: path})
}

func (g *fakeGateway) SendMedia(ctx context.Context, to, path, mimeType, caption string) error {
	return g.record(sent{Kind: "media", To: to, Text: caption, Path: path, Mime: mimeType})
}

type fakeSettings struct {
	admins    map[string]bool
	blacklist map[string]bool
	marker    string
	values    map[string]string
}

func newFakeSettings() *fakeSettings {
	return &fakeSettings{
		admins:    make(map[string]bool),
		blacklist: make(map[string]bool),
		marker:    "admin",
		values:    make(map[string]string),
	}
}

func (f *fakeSettings) AdminIDs(ctx context.Context) ([]string, error) {
	return sortedKeys(f.admins), nil
}

func (f *fakeSettings) IsAdmin(ctx context.Context, id string) (bool, error) {
	return f.admins[id], nil
}

func (f *fakeSettings) BlacklistIDs(ctx context.Context) ([]string, error) {
	return sortedKeys(f.blacklist), nil
}

func (f *fakeSettings) IsBlacklisted(ctx context.Context, id string) (bool, error) {
	return f.blacklist[id], nil
}

func (f *fakeSettings) AddBlacklist(ctx context.Context, id string) error {
	f.blacklist[id] = true
	return nil
}

func (f *fakeSettings) RemoveBlacklist(ctx context.Context, id string) (bool, error) {
	if !f.blacklist[id] {
		return false, nil
	}
	delete(f.blacklist, id)
	return true, nil
}

func (f *fakeSettings) AdminMarker(ctx context.Context) (string, error) {
	return f.marker, nil
}

func (f *fakeSettings) Get(ctx context.Context, key string) (string, error) {
	v, ok := f.values[key]
	if !ok {
		return "", domain.ErrSettingNotFound
	}
	return v, nil
}

func (f *fakeSettings) Set(ctx context.Context, key, value string) error {
	f.values[key] = value
	return nil
}

func (f *fakeSettings) All(ctx context.Context) (map[string]string, error) {
	out := make(map[string]string, len(f.values))
	for k, v := range f.values {
		out[k] = v
	}
	return out, nil
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type fakeReminders struct {
	added   []domain.Reminder
	due     []domain.Reminder
	claimed map[int64]bool
}

func newFakeReminders() *fakeReminders {
	return &fakeReminders{claimed: make(map[int64]bool)}
}

func (f *fakeReminders) AddReminder(ctx context.Context, r domain.Reminder) error {
	f.added = append(f.added, r)
	return nil
}

func (f *fakeReminders) DueReminders(ctx context.Context, now time.Time) ([]domain.Reminder, error) {
	return f.due, nil
}

func (f *fakeReminders) ClaimReminder(ctx context.Context, id int64) (bool, error) {
	if f.claimed[id] {
		return false, nil
	}
	f.claimed[id] = true
	return true, nil
}

func adminMsg(args ...string) *domain.Message {
	return &domain.Message{
		SenderID:  "923001234567@s.whatsapp.net",
		Sender:    "923001234567",
		Scope:     domain.ScopeDirect,
		Tier:      domain.TierAdmin,
		Arguments: args,
	}
}
