package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"wabot/internal/domain"
	"wabot/internal/plugin"
)

func TestResolve_ChatOnly(t *testing.T) {
	env := newTestEnv(t)
	counter := &countingPlugin{}
	env.registry.MustRegister(&plugin.Plugin{
		Name: "settings", Tier: domain.TierStandard, Description: "settings",
		Handle: counter.handle,
	})
	env.model.response = `{"chat": "hi"}`

	env.loop.processEvent(context.Background(), chatEvent("923001234567:12@s.whatsapp.net", "hello?"))

	sends := env.gateway.all()
	if len(sends) != 1 || sends[0].Text != "hi" {
		t.Fatalf("sends = %v, want exactly one %q", sends, "hi")
	}
	if counter.count() != 0 {
		t.Errorf("dispatcher ran %d times, want 0", counter.count())
	}
	hist := env.history.all()
	if len(hist) != 1 {
		t.Fatalf("history rows = %d, want 1", len(hist))
	}
	if hist[0].Inbound != "hello?" || hist[0].Outbound != `{"chat":"hi"}` {
		t.Errorf("persisted = %q / %q", hist[0].Inbound, hist[0].Outbound)
	}
}

func TestResolve_ConsoleOnly(t *testing.T) {
	env := newTestEnv(t)
	counter := &countingPlugin{}
	env.registry.MustRegister(&plugin.Plugin{
		Name: "settings", Tier: domain.TierStandard, Description: "settings",
		Handle: counter.handle,
	})
	env.model.response = `{"console": "settings -g all"}`

	env.loop.processEvent(context.Background(), chatEvent("923001234567:12@s.whatsapp.net", "show me the settings"))

	if counter.count() != 1 {
		t.Fatalf("settings plugin calls = %d, want 1", counter.count())
	}
	wantArgs := []string{"settings", "-g", "all"}
	if got := counter.last.Arguments; len(got) != 3 || got[0] != wantArgs[0] || got[1] != wantArgs[1] || got[2] != wantArgs[2] {
		t.Errorf("Arguments = %v, want %v", got, wantArgs)
	}
	sends := env.gateway.all()
	if len(sends) != 1 || sends[0].Text != "handled" {
		t.Errorf("sends = %v, want only the re-dispatched command's reply", sends)
	}
	hist := env.history.all()
	if len(hist) != 1 || hist[0].Outbound != `{"console":"settings -g all"}` {
		t.Errorf("history = %+v", hist)
	}
}

func TestResolve_BothFieldsConsoleSendsFirst(t *testing.T) {
	env := newTestEnv(t)
	counter := &countingPlugin{}
	env.registry.MustRegister(&plugin.Plugin{
		Name: "settings", Tier: domain.TierStandard, Description: "settings",
		Handle: counter.handle,
	})
	env.model.response = `{"console": "settings", "chat": "done, have a look"}`

	env.loop.processEvent(context.Background(), chatEvent("923001234567:12@s.whatsapp.net", "fix it"))

	sends := env.gateway.all()
	if len(sends) != 2 {
		t.Fatalf("sends = %v, want console reply then chat reply", sends)
	}
	if sends[0].Text != "handled" || sends[1].Text != "done, have a look" {
		t.Errorf("send order = [%q, %q]", sends[0].Text, sends[1].Text)
	}
	if len(env.history.all()) != 1 {
		t.Errorf("history rows = %d, want 1", len(env.history.all()))
	}
}

func TestResolve_MalformedResponseApologizes(t *testing.T) {
	env := newTestEnv(t)
	env.model.response = "I am afraid I cannot help with that."

	env.loop.processEvent(context.Background(), chatEvent("923001234567:12@s.whatsapp.net", "hm"))

	sends := env.gateway.all()
	if len(sends) != 1 || sends[0].Text != apologyReply {
		t.Fatalf("sends = %v, want the apology", sends)
	}
	hist := env.history.all()
	if len(hist) != 1 || !strings.Contains(hist[0].Outbound, "Sorry, I could not process") {
		t.Errorf("apology not persisted: %+v", hist)
	}
	if env.loop.resolverFails.Value() != 1 {
		t.Errorf("resolverFails = %d, want 1", env.loop.resolverFails.Value())
	}
}

func TestResolve_ModelErrorApologizes(t *testing.T) {
	env := newTestEnv(t)
	env.model.err = errors.New("upstream 500")

	env.loop.processEvent(context.Background(), chatEvent("923001234567:12@s.whatsapp.net", "hm"))

	sends := env.gateway.all()
	if len(sends) != 1 || sends[0].Text != apologyReply {
		t.Errorf("sends = %v, want the apology", sends)
	}
}

func TestResolve_UnknownFieldIsFailure(t *testing.T) {
	env := newTestEnv(t)
	env.model.response = `{"chat": "hi", "tool": "shell"}`

	env.loop.processEvent(context.Background(), chatEvent("923001234567:12@s.whatsapp.net", "hm"))

	sends := env.gateway.all()
	if len(sends) != 1 || sends[0].Text != apologyReply {
		t.Errorf("sends = %v, want the apology for an unexpected shape", sends)
	}
}

func TestResolve_FencedAndEmbeddedJSON(t *testing.T) {
	cases := []struct {
		name, response, want string
	}{
		{"fenced", "```json\n{\"chat\": \"fenced\"}\n```", "fenced"},
		{"prose", "Sure!\n{\"chat\": \"embedded\"}\nHope that helps.", "embedded"},
		{"plain", `{"chat": "plain"}`, "plain"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.model.response = tc.response

			env.loop.processEvent(context.Background(), chatEvent("923001234567:12@s.whatsapp.net", "hi"))

			sends := env.gateway.all()
			if len(sends) != 1 || sends[0].Text != tc.want {
				t.Errorf("sends = %v, want %q", sends, tc.want)
			}
		})
	}
}

func TestResolve_DisabledSendsStaticGreeting(t *testing.T) {
	env := newTestEnv(t)
	env.loop.model = nil

	env.loop.processEvent(context.Background(), chatEvent("923001234567:12@s.whatsapp.net", "hello"))

	want := "Hello, I am a bot. Use `/help` (or `/admin help` if you are an admin) to see available commands."
	sends := env.gateway.all()
	if len(sends) != 1 || sends[0].Text != want {
		t.Errorf("sends = %v, want the greeting", sends)
	}
	if len(env.history.all()) != 0 {
		t.Errorf("greeting must not persist history, got %d rows", len(env.history.all()))
	}
}

func TestResolve_MediaNoteAppended(t *testing.T) {
	env := newTestEnv(t)
	env.model.response = `{"chat": "got it"}`
	ev := chatEvent("923001234567:12@s.whatsapp.net", "")
	ev.Image = &domain.MediaPayload{Caption: "check this", MimeType: "image/jpeg", MediaPath: "/m/1.jpg"}

	env.loop.processEvent(context.Background(), ev)

	sends := env.gateway.all()
	want := "got it\n_(attachment received: image/jpeg)_"
	if len(sends) != 1 || sends[0].Text != want {
		t.Errorf("sends = %v, want %q", sends, want)
	}
}

func TestResolve_ContextWindowChronological(t *testing.T) {
	env := newTestEnv(t)
	base := time.Now().Add(-time.Hour)
	for i, word := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		env.history.exchanges = append(env.history.exchanges, domain.Exchange{
			Sender:    "923001234567",
			Group:     "",
			Inbound:   word + "-in",
			Outbound:  fmt.Sprintf(`{"chat":"%s-out"}`, word),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	env.model.response = `{"chat": "ok"}`

	env.loop.processEvent(context.Background(), chatEvent("923001234567:12@s.whatsapp.net", "latest"))

	msgs := env.model.lastMsgs
	if len(msgs) != 11 {
		t.Fatalf("context turns = %d, want 5 pairs plus the inbound text", len(msgs))
	}
	if msgs[0].Content != "c-in" || msgs[0].Role != domain.RoleUser {
		t.Errorf("oldest turn = %+v, want the third exchange", msgs[0])
	}
	if msgs[1].Content != `{"chat":"c-out"}` || msgs[1].Role != domain.RoleAssistant {
		t.Errorf("assistant turn = %+v", msgs[1])
	}
	if msgs[10].Content != "latest" || msgs[10].Role != domain.RoleUser {
		t.Errorf("final turn = %+v, want the current message", msgs[10])
	}
}

func TestResolve_SystemPromptCarriesCatalog(t *testing.T) {
	env := newTestEnv(t)
	env.registry.MustRegister(plugin.NewPing())
	env.model.response = `{"chat": "ok"}`

	env.loop.processEvent(context.Background(), chatEvent("923001234567:12@s.whatsapp.net", "hi"))

	sys := env.model.lastSystem
	if !strings.Contains(sys, "Available commands:") || !strings.Contains(sys, "ping") {
		t.Errorf("system prompt misses the catalog:\n%s", sys)
	}
	if !strings.Contains(sys, "timezone") {
		t.Errorf("system prompt misses the clock section:\n%s", sys)
	}
	if !strings.Contains(sys, `"console"`) || !strings.Contains(sys, `"chat"`) {
		t.Errorf("system prompt misses the response contract:\n%s", sys)
	}
}

func TestResolve_ConsoleAdminCommandFromNonAdmin(t *testing.T) {
	env := newTestEnv(t)
	env.model.response = `{"console": "admin settings -g all"}`

	env.loop.processEvent(context.Background(), chatEvent("923009999999:12@s.whatsapp.net", "change the marker"))

	sends := env.gateway.all()
	if len(sends) != 1 || sends[0].Text != notAdminReply() {
		t.Errorf("sends = %v, want the not-admin reply", sends)
	}
}

func TestResolve_ConsoleChatterIsDropped(t *testing.T) {
	env := newTestEnv(t)
	// A directive that tokenizes to free-form chat must not re-enter the
	// resolver; nothing is sent for it.
	env.model.response = `{"console": ".bot.hello there"}`

	env.loop.processEvent(context.Background(), chatEvent("923001234567:12@s.whatsapp.net", "hi"))

	if sends := env.gateway.all(); len(sends) != 0 {
		t.Errorf("sends = %v, want none", sends)
	}
	if len(env.history.all()) != 1 {
		t.Errorf("history rows = %d, want the exchange persisted anyway", len(env.history.all()))
	}
}

func TestParseResolution_EmptyObjectAllowed(t *testing.T) {
	res, err := parseResolution(`{}`)
	if err != nil {
		t.Fatalf("parseResolution: %v", err)
	}
	if res.Console != "" || res.Chat != "" {
		t.Errorf("res = %+v, want empty fields", res)
	}
}

func TestParseResolution_RejectsNonObjects(t *testing.T) {
	for _, raw := range []string{`"just a string"`, `[1,2]`, "no json at all", ""} {
		if _, err := parseResolution(raw); err == nil {
			t.Errorf("parseResolution(%q) succeeded, want error", raw)
		}
	}
}
