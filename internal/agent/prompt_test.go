package agent

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestSystemPrompt_ClockInSenderZone(t *testing.T) {
	if _, err := time.LoadLocation("Asia/Karachi"); err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	env := newTestEnv(t)
	msg := directMsg("923001234567", "hi")
	msg.Timezone = "Asia/Karachi"

	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	sys := env.loop.systemPrompt(context.Background(), msg, now)

	if !strings.Contains(sys, "The sender's timezone is Asia/Karachi.") {
		t.Errorf("prompt misses the zone:\n%s", sys)
	}
	// 10:00 UTC is 15:00 in Karachi.
	if !strings.Contains(sys, "Monday, 2 March 2026 15:00") {
		t.Errorf("prompt misses the local clock:\n%s", sys)
	}
}

func TestSystemPrompt_FallsBackToDefaultZone(t *testing.T) {
	env := newTestEnv(t)
	msg := directMsg("unknown", "hi")

	sys := env.loop.systemPrompt(context.Background(), msg, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	if !strings.Contains(sys, "The sender's timezone is UTC.") {
		t.Errorf("prompt misses the fallback zone:\n%s", sys)
	}
}

func TestSystemPrompt_PersonaLeads(t *testing.T) {
	env := newTestEnv(t)
	msg := directMsg("923001234567", "hi")

	sys := env.loop.systemPrompt(context.Background(), msg, time.Now())
	if !strings.HasPrefix(sys, "You are a helpful WhatsApp assistant") {
		t.Errorf("prompt must open with the persona:\n%s", sys)
	}
}
