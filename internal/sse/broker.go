// Package sse implements a Server-Sent Events broker for live memo updates.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/echolog/internal/auth"
	"github.com/starford/echolog/internal/linker"
)

// Event types published by the broker.
const (
	MemoCreated  = "memo.created"
	MemoUpdated  = "memo.updated"
	MemoDeleted  = "memo.deleted"
	MemoLinked   = "memo.linked"
	GraphUpdated = "graph.updated"
)

// Event represents an SSE event to broadcast. An empty Owner reaches every
// client; otherwise only that owner's clients receive it.
type Event struct {
	Owner string `json:"-"`
	Type  string `json:"type"`
	Data  any    `json:"data"`
}

type client struct {
	owner string
	ch    chan []byte
}

type memoEventReq struct {
	owner string
	kind  string
	data  any
}

// Broker manages SSE client connections and broadcasts events.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable state
// (clients + per-owner graph throttle timestamps). Public methods communicate
// with this loop through channels, so no mutexes are required.
type Broker struct {
	graphMin time.Duration

	subscribeCh   chan client
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	memoEventCh   chan memoEventReq
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker with the given graph throttle interval.
func NewBroker(graphThrottle time.Duration) *Broker {
	if graphThrottle <= 0 {
		graphThrottle = 2 * time.Second
	}

	b := &Broker{
		graphMin:      graphThrottle,
		subscribeCh:   make(chan client),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		memoEventCh:   make(chan memoEventReq, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]string)
	lastGraph := make(map[string]time.Time)

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload))

		for ch, owner := range clients {
			if event.Owner != "" && owner != event.Owner {
				continue
			}
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

		case c := <-b.subscribeCh:
			clients[c.ch] = c.owner

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case req := <-b.memoEventCh:
			broadcast(Event{Owner: req.owner, Type: req.kind, Data: req.data})

			now := time.Now()
			if now.Sub(lastGraph[req.owner]) >= b.graphMin {
				lastGraph[req.owner] = now
				broadcast(Event{Owner: req.owner, Type: GraphUpdated, Data: map[string]string{}})
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

// Subscribe adds a client for owner and returns its channel.
func (b *Broker) Subscribe(owner string) chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- client{owner: owner, ch: ch}:
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

// Publish sends an event to the matching clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishMemoEvent publishes a memo change for owner followed by a throttled
// graph.updated event.
func (b *Broker) PublishMemoEvent(owner, kind, id string) {
	b.publishMemo(owner, kind, map[string]string{"id": id})
}

func (b *Broker) publishMemo(owner, kind string, data any) {
	if b.closed.Load() {
		return
	}
	select {
	case b.memoEventCh <- memoEventReq{owner: owner, kind: kind, data: data}:
	case <-b.stopped:
	}
}

// TaskQueued implements linker.Observer.
func (b *Broker) TaskQueued(linker.TaskKind) {}

// TaskDropped implements linker.Observer.
func (b *Broker) TaskDropped(linker.TaskKind, string) {}

// TaskDone announces a successful relink to the memo's owner.
func (b *Broker) TaskDone(t linker.Task, neighbors []linker.Neighbor, _ time.Duration, err error) {
	if err != nil || t.Kind != linker.KindRelink {
		return
	}
	ids := make([]string, len(neighbors))
	for i, n := range neighbors {
		ids[i] = n.ID
	}
	b.publishMemo(t.Memo.OwnerID, MemoLinked, map[string]any{"id": t.ID, "related_memo_ids": ids})
}

var _ linker.Observer = (*Broker)(nil)

// ServeHTTP is the SSE endpoint handler (GET /api/events). Clients only see
// events for the owner resolved by the auth middleware.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	owner, _ := auth.OwnerFrom(r.Context())

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe(owner)
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
