// Package sse streams Quill's change events to browsers as Server-Sent Events.
//
// Every service event is forwarded under its own name with a small JSON
// payload describing the new state. Clients that only want to know "refetch
// the list" can listen for notes.changed instead, which is coalesced so a
// burst of edits produces one leading and at most one trailing message per
// throttle window.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/starford/quill/internal/noteservice"
)

// ChangedEvent is the coalesced "something changed" event.
const ChangedEvent = "notes.changed"

const (
	defaultThrottle  = 2 * time.Second
	defaultHeartbeat = 25 * time.Second
	clientBuffer     = 64
	retryMillis      = 3000
)

// noteSummary is the note payload sent with note events. Content and image
// bytes stay on the REST side; clients fetch them when they need them.
type noteSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	IsPinned     bool      `json:"isPinned"`
	HasImage     bool      `json:"hasImage"`
	CreatedAt    time.Time `json:"createdAt"`
	LastModified time.Time `json:"lastModified"`
}

type idPayload struct {
	ID string `json:"id"`
}

type reloadPayload struct {
	Total int `json:"total"`
}

type preferencesPayload struct {
	IsDarkMode bool `json:"isDarkMode"`
}

// payloadFor builds the data line for ev.
func payloadFor(ev noteservice.Event) any {
	switch ev.Kind {
	case noteservice.EventNoteCreated, noteservice.EventNoteUpdated, noteservice.EventNotePinned:
		if ev.Note == nil {
			return idPayload{ID: ev.ID}
		}
		return noteSummary{
			ID:           ev.Note.ID,
			Title:        ev.Note.Title,
			IsPinned:     ev.Note.IsPinned,
			HasImage:     ev.Note.HasImage(),
			CreatedAt:    ev.Note.CreatedAt,
			LastModified: ev.Note.LastModified,
		}
	case noteservice.EventNoteDeleted:
		return idPayload{ID: ev.ID}
	case noteservice.EventNotesReloaded:
		return reloadPayload{Total: ev.Count}
	case noteservice.EventPreferencesUpdated:
		return preferencesPayload{IsDarkMode: ev.DarkMode}
	default:
		return struct{}{}
	}
}

// client is one connected stream.
type client struct {
	out chan []byte
}

// offer queues msg without blocking. A client that cannot keep up misses
// messages; notes.changed tells it to refetch.
func (c *client) offer(msg []byte) {
	select {
	case c.out <- msg:
	default:
	}
}

// Broker fans service events out to SSE clients. One goroutine owns the
// client set, the frame counter and the notes.changed throttle; everything
// else talks to it over channels.
type Broker struct {
	throttle  time.Duration
	heartbeat time.Duration

	events chan noteservice.Event
	join   chan *client
	leave  chan *client
	count  chan chan int

	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// NewBroker starts a broker. throttle is the minimum spacing of
// notes.changed; zero or less means two seconds.
func NewBroker(throttle time.Duration) *Broker {
	if throttle <= 0 {
		throttle = defaultThrottle
	}
	b := &Broker{
		throttle:  throttle,
		heartbeat: defaultHeartbeat,
		events:    make(chan noteservice.Event, 256),
		join:      make(chan *client),
		leave:     make(chan *client),
		count:     make(chan chan int),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	go b.loop()
	return b
}

func (b *Broker) loop() {
	defer close(b.stopped)

	clients := make(map[*client]struct{})
	var (
		seq      uint64
		lastSent time.Time
		trailing *time.Timer
		dueC     <-chan time.Time
	)

	send := func(name string, data any) {
		body, err := json.Marshal(data)
		if err != nil {
			return
		}
		seq++
		msg := encodeFrame(seq, name, body)
		for c := range clients {
			c.offer(msg)
		}
	}
	changed := func(now time.Time) {
		lastSent = now
		send(ChangedEvent, struct{}{})
	}

	for {
		select {
		case <-b.done:
			if trailing != nil {
				trailing.Stop()
			}
			for c := range clients {
				close(c.out)
			}
			return

		case c := <-b.join:
			clients[c] = struct{}{}

		case c := <-b.leave:
			if _, ok := clients[c]; ok {
				delete(clients, c)
				close(c.out)
			}

		case reply := <-b.count:
			reply <- len(clients)

		case ev := <-b.events:
			send(ev.Kind, payloadFor(ev))
			now := time.Now()
			wait := b.throttle - now.Sub(lastSent)
			switch {
			case wait <= 0:
				changed(now)
			case dueC == nil:
				trailing = time.NewTimer(wait)
				dueC = trailing.C
			}

		case now := <-dueC:
			dueC = nil
			changed(now)
		}
	}
}

func encodeFrame(seq uint64, name string, data []byte) []byte {
	return []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", seq, name, data))
}

// Notify forwards a service event to every client. It has the signature
// noteservice.Service.Subscribe expects and never blocks on slow clients.
func (b *Broker) Notify(ev noteservice.Event) {
	select {
	case <-b.done:
		return
	default:
	}
	select {
	case b.events <- ev:
	case <-b.stopped:
	}
}

// Clients returns the number of connected streams.
func (b *Broker) Clients() int {
	reply := make(chan int, 1)
	select {
	case b.count <- reply:
		return <-reply
	case <-b.stopped:
		return 0
	}
}

// Close disconnects every client and stops the broker. It is safe to call
// more than once.
func (b *Broker) Close() {
	b.closeOnce.Do(func() { close(b.done) })
	<-b.stopped
}

func (b *Broker) subscribe() (*client, bool) {
	c := &client{out: make(chan []byte, clientBuffer)}
	select {
	case b.join <- c:
		return c, true
	case <-b.stopped:
		return nil, false
	}
}

func (b *Broker) unsubscribe(c *client) {
	select {
	case b.leave <- c:
	case <-b.stopped:
	}
}

// ServeHTTP streams events to one client (GET /api/events) until the request
// ends or the broker closes. Idle streams get a comment line every heartbeat
// so proxies keep them open.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	c, ok := b.subscribe()
	if !ok {
		http.Error(w, "event stream closed", http.StatusServiceUnavailable)
		return
	}
	defer b.unsubscribe(c)

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "retry: %d\n\n", retryMillis)
	flusher.Flush()

	ping := time.NewTicker(b.heartbeat)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ping.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case msg, open := <-c.out:
			if !open {
				return
			}
			if _, err := w.Write(msg); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
