package bus

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"wabot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPublishSubscribe(t *testing.T) {
	b := New(4, testLogger())
	defer b.Close()

	b.Publish(domain.Event{From: "123@s.whatsapp.net", Channel: "webhook"})

	select {
	case ev := <-b.Events():
		if ev.From != "123@s.whatsapp.net" {
			t.Errorf("from = %q", ev.From)
		}
		if ev.Channel != "webhook" {
			t.Errorf("channel = %q", ev.Channel)
		}
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}

func TestPublish_PreservesOrder(t *testing.T) {
	b := New(8, testLogger())
	defer b.Close()

	for _, from := range []string{"a", "b", "c"} {
		b.Publish(domain.Event{From: from})
	}
	for _, want := range []string{"a", "b", "c"} {
		ev := <-b.Events()
		if ev.From != want {
			t.Errorf("got %q, want %q", ev.From, want)
		}
	}
}

func TestPublish_AfterCloseDoesNotPanic(t *testing.T) {
	b := New(1, testLogger())
	b.Close()
	b.Publish(domain.Event{From: "late"}) // must not panic
}

func TestClose_Idempotent(t *testing.T) {
	b := New(1, testLogger())
	b.Close()
	b.Close() // must not panic

	if _, open := <-b.Events(); open {
		t.Error("events channel should be closed")
	}
}
