package store

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

// opTimeout bounds every single store operation.
const opTimeout = 10 * time.Second

var (
	ErrSelfChat       = errors.New("cannot open a chat room with yourself")
	ErrNotParticipant = errors.New("user is not a participant of the room")
)

// Service is the durable side of the chat subsystem: the room directory and
// the per-room append-only message log, both backed by MongoDB. Realtime
// subscriptions use change streams, so the deployment needs a replica set.
type Service struct {
	rooms    *mongo.Collection
	messages *mongo.Collection
}

func NewService(rooms, messages *mongo.Collection) *Service {
	return &Service{rooms: rooms, messages: messages}
}

// nowMillis is the send-time clock. Timestamps are assigned here, not by
// callers, so messages written through one process are monotonic per room.
var nowMillis = func() int64 {
	return time.Now().UnixMilli()
}
