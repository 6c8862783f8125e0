package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"weatherfit/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Inbound is an envelope read from one client, tagged with its origin.
type Inbound struct {
	From Client
	Env  models.Envelope
}

// Manager is the ephemeral bus: it groups connections by room and relays
// message and typing envelopes to the other sockets currently in the same
// room. Nothing here is persisted; a client that was not connected when an
// envelope went out catches up through the durable subscription instead.
//
// All state is owned by the Run goroutine; other goroutines talk to it
// through the channels only.
type Manager struct {
	clients map[Client]bool
	rooms   map[string]map[Client]bool

	RegisterCh   chan Client
	UnregisterCh chan Client
	InboundCh    chan Inbound

	bridge     Publisher
	bridgeCh   chan BridgeFrame
	instanceID string
}

func NewManager() *Manager {
	return &Manager{
		clients:      make(map[Client]bool),
		rooms:        make(map[string]map[Client]bool),
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		InboundCh:    make(chan Inbound),
		bridgeCh:     make(chan BridgeFrame, sendBuffer),
		instanceID:   uuid.NewString(),
	}
}

// SetBridge attaches the cross-instance publisher. Must be called before
// Run starts.
func (m *Manager) SetBridge(bridge Publisher) {
	m.bridge = bridge
}

// DeliverBridge hands a frame received from another hub instance to the
// Run loop. Frames published by this instance are dropped there.
func (m *Manager) DeliverBridge(frame BridgeFrame) {
	m.bridgeCh <- frame
}

// Broadcast injects a server-originated envelope into a room, locally and
// across the bridge. Unlike client relays there is no sender socket to
// exclude.
func (m *Manager) Broadcast(roomID string, env models.Envelope) {
	m.bridgeCh <- BridgeFrame{Room: roomID, Env: env}

	if m.bridge != nil {
		frame := BridgeFrame{Origin: m.instanceID, Room: roomID, Env: env}
		go func() {
			if err := m.bridge.Publish(context.Background(), frame); err != nil {
				log.Printf("❌ Bridge publish failed: %v", err)
			}
		}()
	}
}

func (m *Manager) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case client := <-m.RegisterCh:
			m.clients[client] = true
			log.Printf("✅ WebSocket client registered. Total clients: %d", len(m.clients))

		case client := <-m.UnregisterCh:
			m.drop(client)
			log.Printf("❌ WebSocket client unregistered. Total clients: %d", len(m.clients))

		case in := <-m.InboundCh:
			m.handle(in)

		case frame := <-m.bridgeCh:
			if frame.Origin != m.instanceID {
				m.fanOut(frame.Room, nil, frame.Env)
			}
		}
	}
}

func (m *Manager) handle(in Inbound) {
	switch in.Env.Type {
	case models.EnvRegister:
		var p models.RegisterPayload
		if err := json.Unmarshal(in.Env.Payload, &p); err != nil || p.UserID == "" {
			return
		}
		in.From.SetUserID(p.UserID)

	case models.EnvJoinRoom:
		var ref models.RoomRef
		if err := json.Unmarshal(in.Env.Payload, &ref); err != nil || ref.RoomID == "" {
			return
		}
		m.join(in.From, ref.RoomID)

	case models.EnvLeaveRoom:
		m.leave(in.From)

	case models.EnvSend:
		var p models.MessagePayload
		if err := json.Unmarshal(in.Env.Payload, &p); err != nil {
			return
		}
		// Clients only broadcast into the room they joined.
		if p.RoomID == "" || p.RoomID != in.From.Room() {
			return
		}
		m.relay(p.RoomID, in.From, models.Envelope{Type: models.EnvReceive, Payload: in.Env.Payload})

	case models.EnvTyping:
		var sig models.TypingSignal
		if err := json.Unmarshal(in.Env.Payload, &sig); err != nil {
			return
		}
		if sig.RoomID == "" || sig.RoomID != in.From.Room() {
			return
		}
		m.relay(sig.RoomID, in.From, in.Env)
	}
}

func (m *Manager) join(client Client, roomID string) {
	if client.Room() == roomID {
		return
	}
	m.leave(client)

	if m.rooms[roomID] == nil {
		m.rooms[roomID] = make(map[Client]bool)
	}
	m.rooms[roomID][client] = true
	client.SetRoom(roomID)
}

func (m *Manager) leave(client Client) {
	roomID := client.Room()
	if roomID == "" {
		return
	}
	if members := m.rooms[roomID]; members != nil {
		delete(members, client)
		if len(members) == 0 {
			delete(m.rooms, roomID)
		}
	}
	client.SetRoom("")
}

func (m *Manager) drop(client Client) {
	if !m.clients[client] {
		return
	}
	m.leave(client)
	delete(m.clients, client)
	client.Close()
}

// relay fans an envelope out locally and mirrors it to the other hub
// instances through the bridge.
func (m *Manager) relay(roomID string, from Client, env models.Envelope) {
	m.fanOut(roomID, from, env)

	if m.bridge != nil {
		frame := BridgeFrame{Origin: m.instanceID, Room: roomID, Env: env}
		go func() {
			if err := m.bridge.Publish(context.Background(), frame); err != nil {
				log.Printf("❌ Bridge publish failed: %v", err)
			}
		}()
	}
}

// fanOut delivers env to every client in the room except the sender. A
// client whose buffer is full is dropped rather than allowed to stall the
// room.
func (m *Manager) fanOut(roomID string, except Client, env models.Envelope) {
	for client := range m.rooms[roomID] {
		if client == except {
			continue
		}
		select {
		case client.Send() <- env:
		default:
			m.drop(client)
		}
	}
}

// RoomSize reports how many clients are currently joined to the room.
// Queried from the Run goroutine's state, so only safe for tests and the
// loop itself.
func (m *Manager) RoomSize(roomID string) int {
	return len(m.rooms[roomID])
}

// ConnectedClients reports the current client count.
func (m *Manager) ConnectedClients() int {
	return len(m.clients)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Handler upgrades HTTP requests to hub connections. auth maps the token
// query parameter to a user id.
func Handler(m *Manager, auth func(token string) (string, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			log.Printf("❌ WebSocket connection rejected: no token provided")
			http.Error(w, "Token required", http.StatusUnauthorized)
			return
		}

		userID, err := auth(token)
		if err != nil {
			log.Printf("❌ WebSocket connection rejected: %v", err)
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("❌ WebSocket upgrade failed: %v", err)
			return
		}

		client := newWSClient(conn, m, userID)
		m.RegisterCh <- client

		welcome, err := models.NewEnvelope(models.EnvConnected, models.RegisterPayload{UserID: userID})
		if err == nil {
			client.send <- welcome
		}

		go client.writePump()
		go client.readPump()
	}
}
