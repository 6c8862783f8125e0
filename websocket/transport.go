package websocket

import (
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"weatherfit/models"

	"github.com/gorilla/websocket"
)

// ErrDisconnected is returned for bus sends attempted without a live
// connection. Callers treat the bus as a latency shortcut only, so the
// durable write still proceeds.
var ErrDisconnected = errors.New("transport disconnected")

const (
	dialTimeout      = 10 * time.Second
	reconnectBase    = time.Second
	reconnectCeiling = 30 * time.Second
)

// Transport is the client side of the ephemeral bus for one open room. It
// dials the configured endpoint, registers the user, joins the room, and
// keeps reconnecting with capped backoff until closed; after every
// reconnect it re-emits register and join-room. Connection state is pushed
// through the status callback.
type Transport struct {
	endpoint string
	userID   string
	userName string
	roomID   string

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool

	onMessage func(models.MessagePayload)
	onTyping  func(models.TypingSignal)
	onStatus  func(bool)

	done      chan struct{}
	closeOnce sync.Once
}

func NewTransport(endpoint, userID, userName, roomID string) *Transport {
	return &Transport{
		endpoint: endpoint,
		userID:   userID,
		userName: userName,
		roomID:   roomID,
		done:     make(chan struct{}),
	}
}

// Callback setters; call before Start.
func (t *Transport) OnMessage(fn func(models.MessagePayload)) { t.onMessage = fn }
func (t *Transport) OnTyping(fn func(models.TypingSignal))    { t.onTyping = fn }
func (t *Transport) OnStatus(fn func(bool))                   { t.onStatus = fn }

// Start runs the connect loop in the background.
func (t *Transport) Start() {
	go t.run()
}

func (t *Transport) run() {
	backoff := reconnectBase

	for {
		select {
		case <-t.done:
			return
		default:
		}

		dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
		conn, _, err := dialer.Dial(t.endpoint, nil)
		if err != nil {
			log.Printf("[transport] Dial failed: %v (retrying in %s)", err, backoff)
			select {
			case <-t.done:
				return
			case <-time.After(backoff):
			}
			if backoff *= 2; backoff > reconnectCeiling {
				backoff = reconnectCeiling
			}
			continue
		}
		backoff = reconnectBase

		t.mu.Lock()
		t.conn = conn
		t.connected = true
		t.mu.Unlock()

		t.announce()
		t.notifyStatus(true)

		t.readLoop(conn)

		t.mu.Lock()
		t.connected = false
		t.conn = nil
		t.mu.Unlock()
		t.notifyStatus(false)
	}
}

// announce registers the user and joins the room; sent on every (re)connect.
func (t *Transport) announce() {
	reg, err := models.NewEnvelope(models.EnvRegister, models.RegisterPayload{UserID: t.userID})
	if err == nil {
		t.write(reg)
	}
	join, err := models.NewEnvelope(models.EnvJoinRoom, models.RoomRef{RoomID: t.roomID})
	if err == nil {
		t.write(join)
	}
}

func (t *Transport) readLoop(conn *websocket.Conn) {
	for {
		var env models.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			select {
			case <-t.done:
			default:
				log.Printf("[transport] Connection lost: %v", err)
			}
			conn.Close()
			return
		}

		switch env.Type {
		case models.EnvReceive:
			var p models.MessagePayload
			if err := json.Unmarshal(env.Payload, &p); err != nil {
				continue
			}
			if t.onMessage != nil {
				t.onMessage(p)
			}
		case models.EnvTyping:
			var sig models.TypingSignal
			if err := json.Unmarshal(env.Payload, &sig); err != nil {
				continue
			}
			if t.onTyping != nil {
				t.onTyping(sig)
			}
		}
	}
}

// Connected reports the current link state.
func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

// SendMessage broadcasts a message envelope to the peers in the room.
// Best-effort: persistence is the caller's separate durable append.
func (t *Transport) SendMessage(p models.MessagePayload) error {
	env, err := models.NewEnvelope(models.EnvSend, p)
	if err != nil {
		return err
	}
	return t.write(env)
}

// SendTyping broadcasts an ephemeral typing signal.
func (t *Transport) SendTyping(sig models.TypingSignal) error {
	env, err := models.NewEnvelope(models.EnvTyping, sig)
	if err != nil {
		return err
	}
	return t.write(env)
}

func (t *Transport) write(env models.Envelope) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.connected || t.conn == nil {
		return ErrDisconnected
	}
	t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return t.conn.WriteJSON(env)
}

func (t *Transport) notifyStatus(connected bool) {
	if t.onStatus != nil {
		t.onStatus(connected)
	}
}

// Close leaves the room and shuts the connection down. Safe to call more
// than once.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		if leave, err := models.NewEnvelope(models.EnvLeaveRoom, models.RoomRef{RoomID: t.roomID}); err == nil {
			t.write(leave)
		}
		close(t.done)

		t.mu.Lock()
		if t.conn != nil {
			t.conn.Close()
			t.conn = nil
		}
		t.connected = false
		t.mu.Unlock()
	})
	return nil
}
