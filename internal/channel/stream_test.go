package channel

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"wabot/internal/domain"
)

var testUpgrader = websocket.Upgrader{}

type chanBus struct {
	ch chan domain.Event
}

func (b *chanBus) Publish(ev domain.Event) { b.ch <- ev }

func newTestStream(url string) (*Stream, *chanBus) {
	bus := &chanBus{ch: make(chan domain.Event, 16)}
	s := NewStream(StreamConfig{URL: url, Logger: testChannelLogger()}, bus)
	s.minBackoff = 10 * time.Millisecond
	return s, bus
}

func waitEvent(t *testing.T, bus *chanBus) domain.Event {
	t.Helper()
	select {
	case ev := <-bus.ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a stream event")
		return domain.Event{}
	}
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestStream_PublishesEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(`{"from":"628111","message":{"id":"m1","text":"hi"}}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"from":"628222 in 120200@g.us","message":{"id":"m2","text":"yo"}}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	s, bus := newTestStream(wsURL(srv))
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Start(ctx) }()

	ev := waitEvent(t, bus)
	if ev.From != "628111" {
		t.Errorf("from = %q", ev.From)
	}
	if ev.Channel != "stream" {
		t.Errorf("channel = %q, want stream", ev.Channel)
	}
	if ev.RequestID == "" {
		t.Error("request id not stamped")
	}
	if ev.ReceivedAt.IsZero() {
		t.Error("received at not stamped")
	}

	if ev = waitEvent(t, bus); ev.From != "628222 in 120200@g.us" {
		t.Errorf("second from = %q", ev.From)
	}

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Start returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}

func TestStream_SkipsMalformedFrames(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"message":{"text":"no sender"}}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"from":"628111","message":{"text":"real"}}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	s, bus := newTestStream(wsURL(srv))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Start(ctx)

	ev := waitEvent(t, bus)
	if ev.Message == nil || ev.Message.Text != "real" {
		t.Errorf("expected only the valid frame, got %+v", ev)
	}
	select {
	case extra := <-bus.ch:
		t.Errorf("unexpected extra event: %+v", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestStream_RedialsAfterDrop(t *testing.T) {
	var conns atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns.Add(1)
		conn.WriteMessage(websocket.TextMessage, []byte(`{"from":"628111","message":{"text":"tick"}}`))
		conn.Close()
	}))
	defer srv.Close()

	s, bus := newTestStream(wsURL(srv))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Start(ctx)

	waitEvent(t, bus)
	waitEvent(t, bus)
	if got := conns.Load(); got < 2 {
		t.Errorf("connections = %d, want at least 2", got)
	}
}

func TestStream_SendsBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer stream-token" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(`{"from":"628111","message":{"text":"authed"}}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	bus := &chanBus{ch: make(chan domain.Event, 16)}
	s := NewStream(StreamConfig{URL: wsURL(srv), Token: "stream-token", Logger: testChannelLogger()}, bus)
	s.minBackoff = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Start(ctx)

	if ev := waitEvent(t, bus); ev.Message == nil || ev.Message.Text != "authed" {
		t.Errorf("event = %+v", ev)
	}
}

func TestStream_RequiresURL(t *testing.T) {
	s := NewStream(StreamConfig{Logger: testChannelLogger()}, &chanBus{ch: make(chan domain.Event, 1)})
	if err := s.Start(context.Background()); err == nil {
		t.Error("expected an error for a missing url")
	}
}
