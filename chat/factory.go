package chat

import (
	"weatherfit/models"
	"weatherfit/websocket"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BusTransportFactory builds per-room bus connections against the hub at
// endpoint (the SOCKET_URL setting), registering self and joining the room
// on every connect. This is the production TransportFactory handed to
// NewShell.
func BusTransportFactory(endpoint string, self models.Participant) TransportFactory {
	return func(roomID primitive.ObjectID) Transport {
		return websocket.NewTransport(endpoint, self.ID.Hex(), self.Name, roomID.Hex())
	}
}
