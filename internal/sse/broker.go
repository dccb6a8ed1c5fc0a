// Package sse streams relay activity to browsers as Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/raido/internal/models"
)

// Event types.
const (
	TypeSnapshotPublished = "snapshot.published"
	TypeMetadataLoaded    = "metadata.loaded"
	TypeMetadataMissing   = "metadata.missing"
	TypeMetadataEvicted   = "metadata.evicted"
	TypeStreamTerminated  = "stream.terminated"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// SnapshotSummary is the payload of snapshot.published.
type SnapshotSummary struct {
	Registration string          `json:"registration"`
	Model        string          `json:"model"`
	Position     models.Position `json:"position"`
	GroundSpeed  float32         `json:"ground_speed_kts"`
	Traffic      int             `json:"traffic"`
	At           time.Time       `json:"at"`
}

// Summarize reduces a snapshot to the fields streamed to clients.
func Summarize(s models.Snapshot, at time.Time) SnapshotSummary {
	return SnapshotSummary{
		Registration: s.User.Registration,
		Model:        s.User.Model,
		Position:     s.User.Position,
		GroundSpeed:  s.User.GroundSpeedKts,
		Traffic:      len(s.AI),
		At:           at,
	}
}

// Broker manages SSE client connections and broadcasts events.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable state
// (clients + snapshot throttle timestamp). Public methods communicate with this
// loop through channels, so no mutexes are required.
type Broker struct {
	snapshotMin time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	snapshotCh    chan SnapshotSummary
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
	dropped atomic.Uint64
}

// NewBroker creates a broker that forwards at most one snapshot event per
// snapshotThrottle.
func NewBroker(snapshotThrottle time.Duration) *Broker {
	if snapshotThrottle <= 0 {
		snapshotThrottle = time.Second
	}

	b := &Broker{
		snapshotMin:   snapshotThrottle,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		snapshotCh:    make(chan SnapshotSummary, 1),
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
	var lastSnapshot time.Time

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload))

		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking broker loop.
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

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case sum := <-b.snapshotCh:
			if sum.At.Sub(lastSnapshot) < b.snapshotMin {
				b.dropped.Add(1)
				continue
			}
			lastSnapshot = sum.At
			broadcast(Event{Type: TypeSnapshotPublished, Data: sum})

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

// PublishSnapshot offers a published snapshot to the throttled stream. It
// never blocks: if the loop is busy the snapshot is dropped.
func (b *Broker) PublishSnapshot(s models.Snapshot) {
	if b.closed.Load() {
		return
	}
	select {
	case b.snapshotCh <- Summarize(s, time.Now()):
	default:
		b.dropped.Add(1)
	}
}

// PublishMetadata reports the outcome of a model file load.
func (b *Broker) PublishMetadata(path string, found bool) {
	typ := TypeMetadataMissing
	if found {
		typ = TypeMetadataLoaded
	}
	b.Publish(Event{Type: typ, Data: map[string]string{"path": path}})
}

// PublishEvicted reports a cache entry dropped to make room.
func (b *Broker) PublishEvicted(key string) {
	b.Publish(Event{Type: TypeMetadataEvicted, Data: map[string]string{"key": key}})
}

// PublishTerminated announces the end of the frame stream.
func (b *Broker) PublishTerminated() {
	b.Publish(Event{Type: TypeStreamTerminated, Data: map[string]string{}})
}

// Dropped counts snapshot events skipped by throttling or back-pressure.
func (b *Broker) Dropped() uint64 { return b.dropped.Load() }

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
