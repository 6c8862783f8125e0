package store

import (
	"testing"

	"weatherfit/models"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestRoomWithPeer(t *testing.T) {
	self := primitive.NewObjectID()
	bob := primitive.NewObjectID()
	carol := primitive.NewObjectID()

	withBob := models.Room{
		ID:           primitive.NewObjectID(),
		Participants: []primitive.ObjectID{self, bob},
	}
	withCarol := models.Room{
		ID:           primitive.NewObjectID(),
		Participants: []primitive.ObjectID{self, carol},
	}
	rooms := []models.Room{withBob, withCarol}

	found, ok := roomWithPeer(rooms, bob)
	assert.True(t, ok)
	assert.Equal(t, withBob.ID, found.ID)

	found, ok = roomWithPeer(rooms, carol)
	assert.True(t, ok)
	assert.Equal(t, withCarol.ID, found.ID)

	_, ok = roomWithPeer(rooms, primitive.NewObjectID())
	assert.False(t, ok, "no room exists with that peer yet, caller creates one")

	_, ok = roomWithPeer(nil, bob)
	assert.False(t, ok)
}
