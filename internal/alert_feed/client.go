package alert_feed

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/okieraised/power-alert-relay/internal/models"
	"github.com/pkg/errors"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 << 10
	sendBuffer     = 16
)

// Client is one websocket subscriber of the alert feed. It only receives;
// inbound frames are read solely to service pongs and detect disconnects.
type Client struct {
	ID      uuid.UUID
	conn    *websocket.Conn
	send    chan models.AlertEvent
	hub     *Hub
	writeMu sync.Mutex
	closed  chan struct{}
	once    sync.Once
}

func NewClient(id uuid.UUID, conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		ID:     id,
		conn:   conn,
		send:   make(chan models.AlertEvent, sendBuffer),
		hub:    hub,
		closed: make(chan struct{}),
	}
}

// Serve runs the read, write, and ping loops until the connection ends.
func (c *Client) Serve() {
	go c.pingLoop()
	go c.writeLoop()
	c.readLoop()
}

func (c *Client) readLoop() {
	defer func() {
		c.hub.unregisterClient(c)
		c.close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.hub.logger.Info(errors.Wrap(err, "failed to set read deadline").Error())
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Info(errors.Wrap(err, "alert feed client read failed").Error())
			}
			return
		}
	}
}

func (c *Client) writeLoop() {
	for {
		select {
		case evt, ok := <-c.send:
			if !ok {
				_ = c.safeWrite(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				c.close()
				return
			}
			if err := c.writeJSON(evt); err != nil {
				c.hub.logger.Info(errors.Wrap(err, "failed to send alert event").Error())
				c.close()
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *Client) safeWrite(msgType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(msgType, data)
}

func (c *Client) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(v)
}

func (c *Client) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.safeWrite(websocket.PingMessage, nil); err != nil {
				c.hub.logger.Info(errors.Wrap(err, fmt.Sprintf("alert feed client [%s] ping error", c.ID.String())).Error())
				c.close()
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *Client) close() {
	c.once.Do(func() {
		close(c.closed)
		_ = c.conn.Close()
	})
}
