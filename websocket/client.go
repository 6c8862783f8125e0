package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"weatherfit/models"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 256
)

// Client is one active connection from the hub's point of view. The
// interface keeps the hub independent of the underlying socket so tests can
// drive it with in-memory clients. Room and user assignment are only
// touched from the hub goroutine.
type Client interface {
	UserID() string
	SetUserID(string)
	Room() string
	SetRoom(string)
	Send() chan<- models.Envelope
	Close()
}

type wsClient struct {
	conn    *websocket.Conn
	manager *Manager

	userID string
	room   string

	send      chan models.Envelope
	closeOnce sync.Once
}

func newWSClient(conn *websocket.Conn, manager *Manager, userID string) *wsClient {
	return &wsClient{
		conn:    conn,
		manager: manager,
		userID:  userID,
		send:    make(chan models.Envelope, sendBuffer),
	}
}

func (c *wsClient) UserID() string               { return c.userID }
func (c *wsClient) SetUserID(id string)          { c.userID = id }
func (c *wsClient) Room() string                 { return c.room }
func (c *wsClient) SetRoom(room string)          { c.room = room }
func (c *wsClient) Send() chan<- models.Envelope { return c.send }

func (c *wsClient) Close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

func (c *wsClient) readPump() {
	defer func() {
		c.manager.UnregisterCh <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("❌ WebSocket read error: %v", err)
			}
			break
		}

		var env models.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Printf("❌ WebSocket envelope unmarshal error: %v", err)
			continue
		}

		c.manager.InboundCh <- Inbound{From: c, Env: env}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(env); err != nil {
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
