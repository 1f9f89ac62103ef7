// Package sse streams sync events to HTTP clients as Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Event is one SSE message.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Status summarizes the last sync cycle. It is sent as "sync.status".
type Status struct {
	Notes   int `json:"notes"`
	Pending int `json:"pending"`
}

type fileEvent struct {
	kind     string
	filename string
}

// Event types derived from engine file events.
var fileEventTypes = map[string]string{
	"updated": "note.updated",
	"deleted": "note.deleted",
	"sent":    "note.sent",
}

// Broker fans events out to connected clients.
//
// A single event loop owns the client set, the throttle timestamp and the
// latest status; public methods talk to it over channels.
type Broker struct {
	activityMin time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	fileEventCh   chan fileEvent
	statusCh      chan Status
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker. A "sync.activity" event follows file events
// at most once per activityThrottle.
func NewBroker(activityThrottle time.Duration) *Broker {
	if activityThrottle <= 0 {
		activityThrottle = 2 * time.Second
	}

	b := &Broker{
		activityMin:   activityThrottle,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		fileEventCh:   make(chan fileEvent, 256),
		statusCh:      make(chan Status, 16),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var (
		lastActivity time.Time
		status       *Status
	)

	encode := func(event Event) []byte {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return nil
		}
		return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload))
	}
	broadcast := func(event Event) {
		raw := encode(event)
		if raw == nil {
			return
		}
		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Slow client; drop rather than stall the loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}
			// New clients start from the latest status.
			if status != nil {
				ch <- encode(Event{Type: "sync.status", Data: *status})
			}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case st := <-b.statusCh:
			if status != nil && *status == st {
				continue
			}
			status = &st
			broadcast(Event{Type: "sync.status", Data: st})

		case ev := <-b.fileEventCh:
			typ, ok := fileEventTypes[ev.kind]
			if !ok {
				continue
			}
			broadcast(Event{Type: typ, Data: map[string]string{"filename": ev.filename}})

			now := time.Now()
			if now.Sub(lastActivity) >= b.activityMin {
				lastActivity = now
				broadcast(Event{Type: "sync.activity", Data: map[string]string{}})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close stops the event loop and closes every client channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}
	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}
	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to every client.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishFileEvent relays an engine file event. Its signature matches
// engine.EventCallback.
func (b *Broker) PublishFileEvent(kind, filename string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.fileEventCh <- fileEvent{kind: kind, filename: filename}:
	case <-b.stopped:
	}
}

// PublishStatus reports the state after a sync cycle. A status equal to the
// previous one is not repeated.
func (b *Broker) PublishStatus(notes, pending int) {
	if b.closed.Load() {
		return
	}
	select {
	case b.statusCh <- Status{Notes: notes, Pending: pending}:
	case <-b.stopped:
	}
}

// ServeHTTP streams events to one client (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
