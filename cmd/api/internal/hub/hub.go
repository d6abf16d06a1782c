package hub

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/alexlondon07/cryptostream/cmd/api/internal/repository"
)

// ClientInterface is one connected alert-stream subscriber.
type ClientInterface interface {
	ID() string
	SendBytes(b []byte)
	Close()
}

// Hub fans published alerts out to every connected websocket client. Unlike
// a per-symbol subscription model, the alert stream is a single firehose:
// alerts are rare enough that client-side filtering is fine.
type Hub struct {
	feed   repository.AlertFeed
	logger *zap.Logger

	mu      sync.RWMutex
	clients map[ClientInterface]bool
}

func NewHub(feed repository.AlertFeed, logger *zap.Logger) *Hub {
	return &Hub{
		feed:    feed,
		logger:  logger,
		clients: make(map[ClientInterface]bool),
	}
}

// Run blocks, pumping the alert feed into connected clients until ctx ends.
func (h *Hub) Run(ctx context.Context) {
	h.feed.RunPubSub(ctx, h.Broadcast)
}

func (h *Hub) Register(client ClientInterface) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = true
	h.logger.Debug("Client registered", zap.String("client", client.ID()), zap.Int("clients", len(h.clients)))
}

func (h *Hub) Unregister(client ClientInterface) {
	h.mu.Lock()
	_, ok := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()

	if ok {
		client.Close()
		h.logger.Debug("Client unregistered", zap.String("client", client.ID()))
	}
}

func (h *Hub) Broadcast(symbol string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		client.SendBytes(payload)
	}
}

// Shutdown disconnects every client.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		client.Close()
		delete(h.clients, client)
	}
}
