package realtime

import (
	"time"

	"github.com/gorilla/websocket"

	"edugame/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
)

// Client is one websocket watching a leaderboard slice
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	Subject models.Subject
	Grade   int
}

// NewClient wraps an upgraded connection
func NewClient(hub *Hub, conn *websocket.Conn, subject models.Subject, grade int) *Client {
	return &Client{
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, 16),
		Subject: subject,
		Grade:   grade,
	}
}

// ReadPump drains incoming frames so pongs and close frames are processed.
// Watchers never send anything meaningful.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.WithError(err).Warn("leaderboard websocket closed unexpectedly")
			}
			return
		}
	}
}

// WritePump sends queued messages and keeps the connection alive with pings
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
