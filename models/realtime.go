package models

import "encoding/json"

// Socket envelope types. The names mirror the events the web client emits.
const (
	EnvRegister  = "register"
	EnvJoinRoom  = "join-room"
	EnvLeaveRoom = "leave-room"
	EnvSend      = "send-message"
	EnvReceive   = "receive-message"
	EnvTyping    = "typing"
	EnvConnected = "connected"
)

// Envelope is the frame exchanged over the ephemeral bus. Payload shape
// depends on Type. Delivery is best-effort; nothing on the bus is the
// system of record.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope marshals payload into an envelope of the given type.
func NewEnvelope(envType string, payload interface{}) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: envType, Payload: raw}, nil
}

// MessagePayload mirrors Message with hex-string IDs for the wire.
type MessagePayload struct {
	ID          string `json:"id"`
	RoomID      string `json:"roomId"`
	SenderID    string `json:"senderId"`
	SenderName  string `json:"senderName"`
	SenderPhoto string `json:"senderPhoto"`
	Body        string `json:"message"`
	Timestamp   int64  `json:"timestamp"`
}

// WireMessage converts a durable message to its bus representation.
func WireMessage(m Message) MessagePayload {
	return MessagePayload{
		ID:          m.ID.Hex(),
		RoomID:      m.RoomID.Hex(),
		SenderID:    m.SenderID.Hex(),
		SenderName:  m.SenderName,
		SenderPhoto: m.SenderPhoto,
		Body:        m.Body,
		Timestamp:   m.Timestamp,
	}
}

// TypingSignal is transient and last-write-wins per sender per room.
// A receiver clears the indicator on IsTyping=false or after its own
// inactivity window; the signal is never persisted.
type TypingSignal struct {
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	IsTyping bool   `json:"isTyping"`
}

// RoomRef is the payload of join-room and leave-room envelopes.
type RoomRef struct {
	RoomID string `json:"roomId"`
}

// RegisterPayload announces the connected user to the hub.
type RegisterPayload struct {
	UserID string `json:"userId"`
}
