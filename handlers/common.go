package handlers

import (
	"weatherfit/identity"
	"weatherfit/store"
	"weatherfit/websocket"

	"github.com/SherClockHolmes/webpush-go"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Shared dependencies across all handler files, injected from main.
var chatStore *store.Service
var wsManager *websocket.Manager
var resolver *identity.Resolver
var vapidPrivateKey string

// PushSubscription struct for push notifications
type PushSubscription struct {
	ID     primitive.ObjectID   `bson:"_id,omitempty"`
	UserID primitive.ObjectID   `bson:"userId"`
	Sub    webpush.Subscription `bson:"sub"`
}

// SetStore sets the durable room/message store
func SetStore(s *store.Service) {
	chatStore = s
}

// SetWebSocketManager sets the global WebSocket manager
func SetWebSocketManager(manager *websocket.Manager) {
	wsManager = manager
}

// SetResolver sets the identity resolution adapter
func SetResolver(r *identity.Resolver) {
	resolver = r
}

// SetVAPIDPrivateKey sets the VAPID private key
func SetVAPIDPrivateKey(key string) {
	vapidPrivateKey = key
}
