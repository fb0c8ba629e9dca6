package progress

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Show(evt Event) {
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
}

func (r *recorder) kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Kind, 0, len(r.events))
	for _, evt := range r.events {
		out = append(out, evt.Kind)
	}
	return out
}

func TestChannelDeliversToAttachedSurfaces(t *testing.T) {
	ch := NewChannel("Tesserae", nil)
	rec := &recorder{}
	detach := ch.Attach(rec)

	ch.Update("Ensure application directory exists")
	ch.Update("Launch mongod in the background")
	detach()
	ch.Update("dropped")

	if got := rec.kinds(); len(got) != 2 || got[0] != KindUpdate {
		t.Fatalf("unexpected events %v", got)
	}
	if rec.events[1].Text != "Launch mongod in the background" {
		t.Fatalf("text = %q", rec.events[1].Text)
	}
}

func TestChannelErrorIsTerminalAndSingle(t *testing.T) {
	ch := NewChannel("Tesserae", nil)
	rec := &recorder{}
	ch.Attach(rec)

	if !ch.Error("Could not connect to mongod", "connection refused") {
		t.Fatal("first error should be delivered")
	}
	if ch.Error("mongod exited unexpectedly", "code 1") {
		t.Fatal("second error should be suppressed")
	}
	if !ch.Failed() {
		t.Fatal("channel should report failure")
	}
	if len(rec.events) != 1 {
		t.Fatalf("got %d events, want 1", len(rec.events))
	}
	evt := rec.events[0]
	if evt.Kind != KindError || evt.Detail != "connection refused" {
		t.Fatalf("unexpected event %+v", evt)
	}
	want := []string{"Tesserae failed to initialize", "You may close this window to end Tesserae"}
	if len(evt.Notices) != 2 || evt.Notices[0] != want[0] || evt.Notices[1] != want[1] {
		t.Fatalf("notices = %v", evt.Notices)
	}
}

func TestChannelWithoutSurface(t *testing.T) {
	ch := NewChannel("", nil)
	ch.Update("nobody listening")
	if !ch.Error("boom", "") {
		t.Fatal("error should still be recorded without a surface")
	}
}

func TestHubReplaysBacklog(t *testing.T) {
	hub := NewHub(3)
	for _, text := range []string{"one", "two", "three", "four"} {
		hub.Publish(Event{Kind: KindUpdate, Text: text})
	}
	events, next, err := hub.Fetch(context.Background(), 0, false)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(events) != 3 || events[0].Text != "two" || events[0].Sequence != 2 {
		t.Fatalf("unexpected backlog %+v", events)
	}
	if next != 4 || hub.Last() != 4 {
		t.Fatalf("next = %d", next)
	}
	events, _, _ = hub.Fetch(context.Background(), 3, false)
	if len(events) != 1 || events[0].Text != "four" {
		t.Fatalf("unexpected tail %+v", events)
	}
	events, _, _ = hub.Fetch(context.Background(), 4, false)
	if len(events) != 0 {
		t.Fatalf("expected no events, got %+v", events)
	}
}

func TestHubWaitWakesOnPublish(t *testing.T) {
	hub := NewHub(8)
	done := make(chan []Event, 1)
	go func() {
		events, _, _ := hub.Fetch(context.Background(), 0, true)
		done <- events
	}()
	time.Sleep(20 * time.Millisecond)
	hub.Show(Event{Kind: KindUpdate, Text: "ready"})
	select {
	case events := <-done:
		if len(events) != 1 || events[0].Text != "ready" {
			t.Fatalf("unexpected events %+v", events)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waiter not woken")
	}
}

func TestHubWaitHonorsContext(t *testing.T) {
	hub := NewHub(8)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, _, err := hub.Fetch(ctx, 0, true)
	if err == nil {
		t.Fatal("expected context error")
	}
}

func TestTerminalPrintsErrorWithNotices(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf)
	ch := NewChannel("Tesserae", nil)
	ch.Attach(term)

	ch.Update("Ensure mongod is installed")
	ch.Error("mongod refused to start", "exec: no such file")
	ch.Update("after error")
	term.Close()
	ch.Update("after close")

	want := strings.Join([]string{
		"Ensure mongod is installed",
		"mongod refused to start",
		"exec: no such file",
		"Tesserae failed to initialize",
		"You may close this window to end Tesserae",
		"after error",
	}, "\n") + "\n"
	if buf.String() != want {
		t.Fatalf("terminal output:\n%s\nwant:\n%s", buf.String(), want)
	}
}
