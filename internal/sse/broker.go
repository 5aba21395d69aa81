// Package sse implements a Server-Sent Events broker for real-time updates.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type sessionEventReq struct {
	kind string
	id   string
	data any
}

type tutorialEventReq struct {
	kind string
	path string
}

// Broker manages SSE client connections and broadcasts events.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable state
// (clients and per-session throttle state). Public methods communicate with this
// loop through channels, so no mutexes are required.
//
// session.updated events are throttled per session: at most one per interval
// is sent immediately, later ones within the interval are coalesced and the
// latest is flushed when the interval ends.
type Broker struct {
	updateMin time.Duration

	subscribeCh     chan chan []byte
	unsubscribeCh   chan chan []byte
	publishCh       chan Event
	sessionEventCh  chan sessionEventReq
	tutorialEventCh chan tutorialEventReq
	countReqCh      chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// DefaultUpdateThrottle applies when NewBroker gets a non-positive interval.
const DefaultUpdateThrottle = 100 * time.Millisecond

// NewBroker creates a new SSE broker with the given session update throttle.
func NewBroker(updateThrottle time.Duration) *Broker {
	if updateThrottle <= 0 {
		updateThrottle = DefaultUpdateThrottle
	}

	b := &Broker{
		updateMin:       updateThrottle,
		subscribeCh:     make(chan chan []byte),
		unsubscribeCh:   make(chan chan []byte),
		publishCh:       make(chan Event, 256),
		sessionEventCh:  make(chan sessionEventReq, 256),
		tutorialEventCh: make(chan tutorialEventReq, 256),
		countReqCh:      make(chan chan int),
		stopCh:          make(chan struct{}),
		stopped:         make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	lastUpdate := make(map[string]time.Time)
	pending := make(map[string]any)
	var flushTimer *time.Timer
	var flushCh <-chan time.Time

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		msg := fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload)
		raw := []byte(msg)

		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking broker loop.
			}
		}
	}

	scheduleFlush := func() {
		if flushTimer == nil {
			flushTimer = time.NewTimer(b.updateMin)
			flushCh = flushTimer.C
		} else if len(pending) == 1 {
			flushTimer.Reset(b.updateMin)
		}
	}

	for {
		select {
		case <-b.stopCh:
			if flushTimer != nil {
				flushTimer.Stop()
			}
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case req := <-b.sessionEventCh:
			switch req.kind {
			case "created":
				broadcast(Event{Type: "session.created", Data: req.data})
			case "deleted":
				delete(pending, req.id)
				delete(lastUpdate, req.id)
				broadcast(Event{Type: "session.deleted", Data: map[string]string{"id": req.id}})
			case "updated":
				now := time.Now()
				if _, queued := pending[req.id]; !queued && now.Sub(lastUpdate[req.id]) >= b.updateMin {
					lastUpdate[req.id] = now
					broadcast(Event{Type: "session.updated", Data: req.data})
					continue
				}
				pending[req.id] = req.data
				scheduleFlush()
			}

		case <-flushCh:
			now := time.Now()
			for id, data := range pending {
				lastUpdate[id] = now
				broadcast(Event{Type: "session.updated", Data: data})
			}
			clear(pending)

		case req := <-b.tutorialEventCh:
			data := map[string]string{"path": req.path}
			switch req.kind {
			case "updated":
				broadcast(Event{Type: "tutorial.updated", Data: data})
			case "deleted":
				broadcast(Event{Type: "tutorial.deleted", Data: data})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel.
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

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishSessionEvent publishes a session change. kind is one of
// "created", "updated", "deleted"; data is the JSON payload.
func (b *Broker) PublishSessionEvent(kind, id string, data any) {
	if b.closed.Load() {
		return
	}
	select {
	case b.sessionEventCh <- sessionEventReq{kind: kind, id: id, data: data}:
	case <-b.stopped:
	}
}

// PublishTutorialEvent publishes a tutorial index change.
func (b *Broker) PublishTutorialEvent(kind, path string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.tutorialEventCh <- tutorialEventReq{kind: kind, path: path}:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
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
