// Package chat orchestrates one user's chat surfaces: the per-room session
// controller, the room list with its unread badge, and the UI-state owner
// that keeps at most one surface visible. Everything is wired through
// narrow collaborator interfaces so the durable store, the identity
// service and the socket bus stay replaceable.
package chat

import (
	"context"
	"errors"

	"weatherfit/identity"
	"weatherfit/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrRecipientUnavailable is a policy state, not a transport failure:
	// the other participant deleted their account, so sends are refused.
	ErrRecipientUnavailable = errors.New("recipient is no longer available")

	ErrSessionClosed = errors.New("chat session is closed")
	ErrEmptyMessage  = errors.New("message body is empty")
)

// RoomDirectory maps participant pairs to rooms and streams a user's room
// list. Implemented by store.Service.
type RoomDirectory interface {
	GetOrCreateRoom(ctx context.Context, self, other models.Participant) (primitive.ObjectID, error)
	GetRoom(ctx context.Context, roomID primitive.ObjectID) (models.Room, error)
	SubscribeRooms(ctx context.Context, userID primitive.ObjectID, fn func([]models.Room)) (func(), error)
}

// MessageLog is the authoritative per-room message store. Implemented by
// store.Service.
type MessageLog interface {
	Append(ctx context.Context, msg models.Message) (models.Message, error)
	SubscribeMessages(ctx context.Context, roomID primitive.ObjectID, fn func([]models.Message)) (func(), error)
	MarkRead(ctx context.Context, roomID, readerID primitive.ObjectID) error
}

// PeerResolver masks deleted accounts. Implemented by identity.Resolver.
type PeerResolver interface {
	ResolveOtherParticipant(ctx context.Context, room models.Room, selfID primitive.ObjectID) (identity.Peer, error)
}

// Transport is the client side of the ephemeral bus for one room.
// Implemented by websocket.Transport. Callbacks must be set before Start.
type Transport interface {
	Start()
	Connected() bool
	OnMessage(fn func(models.MessagePayload))
	OnTyping(fn func(models.TypingSignal))
	OnStatus(fn func(bool))
	SendMessage(p models.MessagePayload) error
	SendTyping(sig models.TypingSignal) error
	Close() error
}

// TransportFactory opens a bus connection scoped to one room; the session
// owns its lifecycle.
type TransportFactory func(roomID primitive.ObjectID) Transport
