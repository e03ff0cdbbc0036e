package alert_feed

import (
	"context"
	"fmt"

	"github.com/okieraised/power-alert-relay/internal/infrastructure/log"
	"github.com/okieraised/power-alert-relay/internal/models"
)

const broadcastBuffer = 64

// Hub fans emitted alert events out to every connected websocket client.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan models.AlertEvent
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	logger     *log.Logger
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan models.AlertEvent, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     log.Component("alert_feed"),
	}
}

// Register hands c to the hub loop. After shutdown the client is closed instead.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.close()
	}
}

func (h *Hub) unregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Publish queues an event for broadcast. It never blocks; events are dropped when the hub is saturated.
func (h *Hub) Publish(evt models.AlertEvent) {
	select {
	case h.broadcast <- evt:
	default:
		h.logger.Warn(fmt.Sprintf("Alert feed buffer is full, dropping %s event for topic [%s]", evt.Kind, evt.Topic))
	}
}

func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("Starting alert feed hub")
	go func() {
		for {
			select {
			case client := <-h.register:
				h.addClient(client)
			case client := <-h.unregister:
				h.removeClient(client)
			case evt := <-h.broadcast:
				h.fanOut(evt)
			case <-ctx.Done():
				h.logger.Info("Shutting down alert feed hub")
				close(h.done)
				for client := range h.clients {
					h.removeClient(client)
				}
				return
			}
		}
	}()
}

func (h *Hub) addClient(client *Client) {
	if _, ok := h.clients[client]; ok {
		return
	}
	h.clients[client] = true
	h.logger.Debug(fmt.Sprintf("Registered alert feed client [%s], %d connected", client.ID.String(), len(h.clients)))
}

func (h *Hub) removeClient(client *Client) {
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
		h.logger.Debug(fmt.Sprintf("Alert feed client [%s] disconnected", client.ID.String()))
	}
}

func (h *Hub) fanOut(evt models.AlertEvent) {
	for client := range h.clients {
		select {
		case client.send <- evt:
		default:
			h.removeClient(client)
		}
	}
}
