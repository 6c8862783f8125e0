package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func testRoom(a, b primitive.ObjectID) Room {
	return Room{
		ID:           primitive.NewObjectID(),
		Participants: []primitive.ObjectID{a, b},
		ParticipantNames: map[string]string{
			a.Hex(): "Alice",
			b.Hex(): "Bob",
		},
		ParticipantPhotos: map[string]string{
			a.Hex(): "https://example.com/alice.png",
			b.Hex(): "https://example.com/bob.png",
		},
		UnreadCount: map[string]int64{
			a.Hex(): 0,
			b.Hex(): 3,
		},
	}
}

func TestRoomValidate(t *testing.T) {
	a := primitive.NewObjectID()
	b := primitive.NewObjectID()

	room := testRoom(a, b)
	assert.NoError(t, room.Validate())

	solo := room
	solo.Participants = []primitive.ObjectID{a}
	assert.Error(t, solo.Validate(), "a room needs exactly two participants")

	dup := room
	dup.Participants = []primitive.ObjectID{a, a}
	assert.Error(t, dup.Validate(), "a user cannot chat with themselves")

	negative := testRoom(a, b)
	negative.UnreadCount[b.Hex()] = -1
	assert.Error(t, negative.Validate())
}

func TestRoomOther(t *testing.T) {
	a := primitive.NewObjectID()
	b := primitive.NewObjectID()
	room := testRoom(a, b)

	other, ok := room.Other(a)
	assert.True(t, ok)
	assert.Equal(t, b, other)

	other, ok = room.Other(b)
	assert.True(t, ok)
	assert.Equal(t, a, other)

	_, ok = room.Other(primitive.NewObjectID())
	assert.False(t, ok, "a stranger has no counterpart in the room")
}

func TestRoomUnreadFor(t *testing.T) {
	a := primitive.NewObjectID()
	b := primitive.NewObjectID()
	room := testRoom(a, b)

	assert.Equal(t, int64(0), room.UnreadFor(a))
	assert.Equal(t, int64(3), room.UnreadFor(b))

	// Unknown users and corrupt negative counters both read as zero.
	assert.Equal(t, int64(0), room.UnreadFor(primitive.NewObjectID()))
	room.UnreadCount[a.Hex()] = -5
	assert.Equal(t, int64(0), room.UnreadFor(a))
}

func TestRoomSnapshots(t *testing.T) {
	a := primitive.NewObjectID()
	b := primitive.NewObjectID()
	room := testRoom(a, b)

	assert.Equal(t, "Alice", room.NameOf(a))
	assert.Equal(t, "https://example.com/bob.png", room.PhotoOf(b))
	assert.Empty(t, room.NameOf(primitive.NewObjectID()))
}
