package identity_test

import (
	"context"
	"errors"
	"testing"

	"weatherfit/identity"
	"weatherfit/models"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakeFinder serves profiles from a map; absent IDs behave like deleted
// accounts.
type fakeFinder struct {
	profiles map[primitive.ObjectID]*models.User
	err      error
}

func (f *fakeFinder) FindProfile(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.profiles[userID], nil
}

func pairRoom(a, b primitive.ObjectID) models.Room {
	return models.Room{
		ID:           primitive.NewObjectID(),
		Participants: []primitive.ObjectID{a, b},
		ParticipantNames: map[string]string{
			a.Hex(): "Alice",
			b.Hex(): "Bob (snapshot)",
		},
		ParticipantPhotos: map[string]string{
			b.Hex(): "https://example.com/bob-old.png",
		},
	}
}

func TestResolveOtherParticipant_Live(t *testing.T) {
	a := primitive.NewObjectID()
	b := primitive.NewObjectID()
	finder := &fakeFinder{profiles: map[primitive.ObjectID]*models.User{
		b: {ID: b, Name: "Bob", Avatar: "https://example.com/bob.png"},
	}}
	r := identity.NewResolver(finder)

	peer, err := r.ResolveOtherParticipant(context.Background(), pairRoom(a, b), a)
	assert.NoError(t, err)
	assert.Equal(t, b, peer.ID)
	assert.Equal(t, "Bob", peer.Name, "live profile wins over the room snapshot")
	assert.Equal(t, "https://example.com/bob.png", peer.Photo)
	assert.False(t, peer.IsDeleted)
}

func TestResolveOtherParticipant_Deleted(t *testing.T) {
	a := primitive.NewObjectID()
	b := primitive.NewObjectID()
	finder := &fakeFinder{profiles: map[primitive.ObjectID]*models.User{}}
	r := identity.NewResolver(finder)

	peer, err := r.ResolveOtherParticipant(context.Background(), pairRoom(a, b), a)
	assert.NoError(t, err)
	assert.True(t, peer.IsDeleted)
	assert.Equal(t, identity.WithdrawnName, peer.Name,
		"deleted account must be masked even though the room still holds a name snapshot")
	assert.Empty(t, peer.Photo, "photo is suppressed, not served from the snapshot")
}

func TestResolveOtherParticipant_SnapshotFallback(t *testing.T) {
	a := primitive.NewObjectID()
	b := primitive.NewObjectID()
	// Profile exists but carries no display fields.
	finder := &fakeFinder{profiles: map[primitive.ObjectID]*models.User{
		b: {ID: b},
	}}
	r := identity.NewResolver(finder)

	peer, err := r.ResolveOtherParticipant(context.Background(), pairRoom(a, b), a)
	assert.NoError(t, err)
	assert.False(t, peer.IsDeleted)
	assert.Equal(t, "Bob (snapshot)", peer.Name)
	assert.Equal(t, "https://example.com/bob-old.png", peer.Photo)
}

func TestResolveOtherParticipant_NotInRoom(t *testing.T) {
	a := primitive.NewObjectID()
	b := primitive.NewObjectID()
	r := identity.NewResolver(&fakeFinder{})

	_, err := r.ResolveOtherParticipant(context.Background(), pairRoom(a, b), primitive.NewObjectID())
	assert.ErrorIs(t, err, identity.ErrNotInRoom)
}

func TestResolveOtherParticipant_FinderError(t *testing.T) {
	a := primitive.NewObjectID()
	b := primitive.NewObjectID()
	boom := errors.New("users collection unavailable")
	r := identity.NewResolver(&fakeFinder{err: boom})

	_, err := r.ResolveOtherParticipant(context.Background(), pairRoom(a, b), a)
	assert.ErrorIs(t, err, boom, "lookup failures propagate, they are not treated as deletion")
}

func TestExists(t *testing.T) {
	alive := primitive.NewObjectID()
	gone := primitive.NewObjectID()
	r := identity.NewResolver(&fakeFinder{profiles: map[primitive.ObjectID]*models.User{
		alive: {ID: alive, Name: "Alice"},
	}})

	ok, err := r.Exists(context.Background(), alive)
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.Exists(context.Background(), gone)
	assert.NoError(t, err)
	assert.False(t, ok)
}
