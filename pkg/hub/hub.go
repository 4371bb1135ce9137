package hub

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Hub maintains the set of active clients and broadcasts messages to them.
// Retained messages are replayed, in first-publish order, to clients that
// connect later, so a reloaded overlay page catches up with the scene.
type Hub struct {
	name   string
	logger *slog.Logger

	clients    map[*Client]bool
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	retainMu sync.Mutex // guards retained and order
	retained map[string]Message
	order    []string

	mu      sync.RWMutex // guards clients for ClientCount
	running atomic.Bool
	dropped atomic.Int64
}

// New creates a hub. Call Run before registering clients.
func New(name string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		name:       name,
		logger:     logger.With("hub", name),
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		retained:   make(map[string]Message),
	}
}

// Run is the hub's main loop. It returns when ctx ends, after closing every
// client's send queue. Run must be called at most once.
func (h *Hub) Run(ctx context.Context) {
	h.running.Store(true)
	defer h.running.Store(false)
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			count := len(h.clients)
			h.mu.Unlock()

			for _, msg := range h.snapshot() {
				h.deliver(c, msg)
			}
			h.logger.Info("client connected", "clients", count)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client disconnected", "clients", count)

		case msg := <-h.broadcast:
			h.mu.RLock()
			targets := make([]*Client, 0, len(h.clients))
			for c := range h.clients {
				targets = append(targets, c)
			}
			h.mu.RUnlock()
			for _, c := range targets {
				h.deliver(c, msg)
			}
		}
	}
}

// deliver queues msg for c, dropping c if its queue is full. Only Run calls it.
func (h *Hub) deliver(c *Client, msg Message) {
	select {
	case c.send <- msg:
	default:
		h.mu.Lock()
		if _, ok := h.clients[c]; ok {
			delete(h.clients, c)
			close(c.send)
		}
		h.mu.Unlock()
		h.logger.Warn("dropped slow client")
	}
}

// Broadcast sends msg to all connected clients.
func (h *Hub) Broadcast(msg Message) {
	h.enqueue(msg)
}

// Publish broadcasts msg and retains it under key, replacing any earlier
// message with the same key. The retained copy is kept even when the live
// broadcast is dropped.
func (h *Hub) Publish(key string, msg Message) {
	h.retain(key, msg)
	h.enqueue(msg)
}

func (h *Hub) retain(key string, msg Message) {
	h.retainMu.Lock()
	defer h.retainMu.Unlock()
	if _, ok := h.retained[key]; !ok {
		h.order = append(h.order, key)
	}
	h.retained[key] = msg
}

// snapshot returns the retained messages in first-publish order.
func (h *Hub) snapshot() []Message {
	h.retainMu.Lock()
	defer h.retainMu.Unlock()
	msgs := make([]Message, 0, len(h.order))
	for _, key := range h.order {
		msgs = append(msgs, h.retained[key])
	}
	return msgs
}

func (h *Hub) enqueue(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.dropped.Add(1)
		h.logger.Warn("broadcast queue full, dropping message")
	}
}

// BroadcastJSON encodes and broadcasts v.
func (h *Hub) BroadcastJSON(v any) error {
	msg, err := Encode(v)
	if err != nil {
		return err
	}
	h.Broadcast(msg)
	return nil
}

// PublishJSON encodes v, broadcasts it and retains it under key.
func (h *Hub) PublishJSON(key string, v any) error {
	msg, err := Encode(v)
	if err != nil {
		return err
	}
	h.Publish(key, msg)
	return nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many broadcasts were discarded because the queue was full.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// IsRunning returns whether Run is active.
func (h *Hub) IsRunning() bool {
	return h.running.Load()
}
