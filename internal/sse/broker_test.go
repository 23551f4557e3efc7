package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/noteservice"
)

// collect reads frames from c until no frame arrives for quiet.
func collect(c *client, quiet time.Duration) []string {
	var frames []string
	for {
		select {
		case msg, ok := <-c.out:
			if !ok {
				return frames
			}
			frames = append(frames, string(msg))
		case <-time.After(quiet):
			return frames
		}
	}
}

func named(frames []string, event string) []string {
	var out []string
	for _, f := range frames {
		if strings.Contains(f, "event: "+event+"\n") {
			out = append(out, f)
		}
	}
	return out
}

func mustSubscribe(t *testing.T, b *Broker) *client {
	t.Helper()
	c, ok := b.subscribe()
	if !ok {
		t.Fatal("subscribe on a running broker failed")
	}
	return c
}

func TestNotify_NoteEventCarriesSummary(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	c := mustSubscribe(t, b)

	n := models.NewNote("n1", "Groceries", "milk, eggs", []byte{0x89, 'P', 'N', 'G'}, time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	n.IsPinned = true
	b.Notify(noteservice.Event{Kind: noteservice.EventNotePinned, ID: n.ID, Note: &n})

	frames := named(collect(c, 100*time.Millisecond), noteservice.EventNotePinned)
	if len(frames) != 1 {
		t.Fatalf("pinned frames = %v", frames)
	}
	f := frames[0]
	for _, want := range []string{`"id":"n1"`, `"title":"Groceries"`, `"isPinned":true`, `"hasImage":true`, `"createdAt":"2024-05-01T09:00:00Z"`} {
		if !strings.Contains(f, want) {
			t.Errorf("frame %q missing %s", f, want)
		}
	}
	if strings.Contains(f, "milk") || strings.Contains(f, "imageData") {
		t.Errorf("frame leaks content or image bytes: %q", f)
	}
}

func TestNotify_Payloads(t *testing.T) {
	cases := []struct {
		name string
		ev   noteservice.Event
		want string
	}{
		{"deleted", noteservice.Event{Kind: noteservice.EventNoteDeleted, ID: "gone"}, `data: {"id":"gone"}`},
		{"reloaded", noteservice.Event{Kind: noteservice.EventNotesReloaded, Count: 7}, `data: {"total":7}`},
		{"dark mode on", noteservice.Event{Kind: noteservice.EventPreferencesUpdated, DarkMode: true}, `data: {"isDarkMode":true}`},
		{"dark mode off", noteservice.Event{Kind: noteservice.EventPreferencesUpdated}, `data: {"isDarkMode":false}`},
		{"updated without note", noteservice.Event{Kind: noteservice.EventNoteUpdated, ID: "n2"}, `data: {"id":"n2"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := NewBroker(time.Hour)
			defer b.Close()
			c := mustSubscribe(t, b)

			b.Notify(tc.ev)
			frames := named(collect(c, 100*time.Millisecond), tc.ev.Kind)
			if len(frames) != 1 || !strings.Contains(frames[0], tc.want) {
				t.Errorf("frames = %q, want one containing %s", frames, tc.want)
			}
		})
	}
}

func TestNotify_FramesAreNumbered(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	c := mustSubscribe(t, b)

	b.Notify(noteservice.Event{Kind: noteservice.EventNoteDeleted, ID: "a"})
	b.Notify(noteservice.Event{Kind: noteservice.EventNoteDeleted, ID: "b"})

	frames := collect(c, 100*time.Millisecond)
	// deleted a, notes.changed, deleted b (changed for b is held back by the throttle)
	if len(frames) != 3 {
		t.Fatalf("frames = %q", frames)
	}
	for i, f := range frames {
		want := "id: " + string(rune('1'+i)) + "\n"
		if !strings.HasPrefix(f, want) {
			t.Errorf("frame %d = %q, want prefix %q", i, f, want)
		}
	}
}

func TestChangedIsCoalesced(t *testing.T) {
	b := NewBroker(150 * time.Millisecond)
	defer b.Close()
	c := mustSubscribe(t, b)

	n := models.NewNote("n1", "t", "c", nil, time.Now())
	for _, kind := range []string{noteservice.EventNoteCreated, noteservice.EventNoteUpdated, noteservice.EventNotePinned} {
		b.Notify(noteservice.Event{Kind: kind, ID: n.ID, Note: &n})
	}

	frames := collect(c, 400*time.Millisecond)
	if got := len(frames) - len(named(frames, ChangedEvent)); got != 3 {
		t.Errorf("note frames = %d, want 3", got)
	}
	changed := named(frames, ChangedEvent)
	if len(changed) != 2 {
		t.Fatalf("notes.changed frames = %d, want a leading and a trailing one", len(changed))
	}
	if !strings.HasSuffix(frames[len(frames)-1], "event: "+ChangedEvent+"\ndata: {}\n\n") {
		t.Errorf("last frame should be the trailing notes.changed, got %q", frames[len(frames)-1])
	}
}

func TestSlowClientDoesNotStallOthers(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	_ = mustSubscribe(t, b) // never read, its buffer fills after clientBuffer frames
	fast := mustSubscribe(t, b)

	for i := 0; i < 3*clientBuffer; i++ {
		b.Notify(noteservice.Event{Kind: noteservice.EventNoteDeleted, ID: "x"})
		select {
		case <-fast.out:
		case <-time.After(time.Second):
			t.Fatalf("frame %d not delivered: a stalled client blocked the others", i)
		}
		if i == 0 {
			<-fast.out // leading notes.changed
		}
	}
	if b.Clients() != 2 {
		t.Errorf("clients = %d, want 2", b.Clients())
	}
}

func TestServeHTTP_StreamsAndCleansUp(t *testing.T) {
	b := NewBroker(time.Hour)
	b.heartbeat = 20 * time.Millisecond
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	waitFor(t, func() bool { return b.Clients() == 1 })
	b.Notify(noteservice.Event{Kind: noteservice.EventPreferencesUpdated, DarkMode: true})
	time.Sleep(60 * time.Millisecond)
	cancel()
	<-done

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
	body := w.Body.String()
	for _, want := range []string{"retry: 3000\n\n", "event: preferences.updated\ndata: {\"isDarkMode\":true}", ": ping\n\n"} {
		if !strings.Contains(body, want) {
			t.Errorf("stream missing %q:\n%s", want, body)
		}
	}
	waitFor(t, func() bool { return b.Clients() == 0 })
}

func TestCloseEndsStreams(t *testing.T) {
	b := NewBroker(time.Hour)
	c := mustSubscribe(t, b)

	b.Close()
	b.Close()

	select {
	case _, ok := <-c.out:
		if ok {
			t.Fatal("client channel should be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("client channel not closed")
	}
	if b.Clients() != 0 {
		t.Error("closed broker reports clients")
	}
	if _, ok := b.subscribe(); ok {
		t.Error("subscribe after close should fail")
	}
	b.Notify(noteservice.Event{Kind: noteservice.EventNoteDeleted, ID: "x"})

	w := httptest.NewRecorder()
	b.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/events", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("stream on closed broker = %d, want 503", w.Code)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met within 1s")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
