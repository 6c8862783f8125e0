package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestSurfacesExclusivity(t *testing.T) {
	s := NewSurfaces()

	listOpen, active := s.Visible()
	assert.False(t, listOpen)
	assert.True(t, active.IsZero())

	s.OpenList()
	listOpen, active = s.Visible()
	assert.True(t, listOpen)
	assert.True(t, active.IsZero())

	roomID := primitive.NewObjectID()
	s.OpenRoom(roomID)
	listOpen, active = s.Visible()
	assert.False(t, listOpen, "opening a room hides the list")
	assert.Equal(t, roomID, active)
}

func TestSurfacesCloseRoomReturnsToList(t *testing.T) {
	s := NewSurfaces()
	s.OpenRoom(primitive.NewObjectID())

	s.CloseRoom()
	listOpen, active := s.Visible()
	assert.True(t, listOpen, "leaving a room navigates back to the list")
	assert.True(t, active.IsZero())
}

func TestSurfacesCloseAll(t *testing.T) {
	s := NewSurfaces()
	s.OpenRoom(primitive.NewObjectID())

	s.CloseAll()
	listOpen, active := s.Visible()
	assert.False(t, listOpen)
	assert.True(t, active.IsZero())
}
