package chat

import (
	"context"
	"errors"
	"sync"
	"testing"

	"weatherfit/identity"
	"weatherfit/models"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// mapResolver resolves per-peer, so rooms with different partners can get
// different liveness answers in one list.
type mapResolver struct {
	mu    sync.Mutex
	peers map[primitive.ObjectID]identity.Peer
	errs  map[primitive.ObjectID]error
}

func (r *mapResolver) ResolveOtherParticipant(ctx context.Context, room models.Room, selfID primitive.ObjectID) (identity.Peer, error) {
	otherID, ok := room.Other(selfID)
	if !ok {
		return identity.Peer{}, identity.ErrNotInRoom
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.errs[otherID]; err != nil {
		return identity.Peer{}, err
	}
	return r.peers[otherID], nil
}

func listRoom(self, peer primitive.ObjectID, peerName, lastMsg string, at, unread int64) models.Room {
	return models.Room{
		ID:           primitive.NewObjectID(),
		Participants: []primitive.ObjectID{self, peer},
		ParticipantNames: map[string]string{
			peer.Hex(): peerName,
		},
		LastMessage:   lastMsg,
		LastMessageAt: at,
		UnreadCount:   map[string]int64{self.Hex(): unread},
	}
}

func TestAggregatorBadgeAndEntries(t *testing.T) {
	self := primitive.NewObjectID()
	bob := primitive.NewObjectID()
	carol := primitive.NewObjectID()

	directory := &fakeDirectory{}
	resolver := &mapResolver{peers: map[primitive.ObjectID]identity.Peer{
		bob:   {ID: bob, Name: "Bob", Photo: "bob.png"},
		carol: {ID: carol, Name: "Carol"},
	}}

	agg := NewAggregator(self, directory, resolver)

	var mu sync.Mutex
	var observedBadge int64
	agg.OnChange(func(badge int64, entries []ListEntry) {
		mu.Lock()
		observedBadge = badge
		mu.Unlock()
	})

	assert.NoError(t, agg.Start(context.Background()))

	directory.emitRooms([]models.Room{
		listRoom(self, bob, "Bob", "see you", 200, 2),
		listRoom(self, carol, "Carol", "thanks!", 100, 3),
	})

	assert.Equal(t, int64(5), agg.BadgeCount(), "badge is the sum across rooms")
	mu.Lock()
	assert.Equal(t, int64(5), observedBadge)
	mu.Unlock()

	entries := agg.Entries()
	assert.Len(t, entries, 2)
	assert.Equal(t, "Bob", entries[0].PeerName)
	assert.Equal(t, "see you", entries[0].LastMessage)
	assert.Equal(t, int64(2), entries[0].Unread)
	assert.Equal(t, "Carol", entries[1].PeerName)
}

func TestAggregatorMasksDeletedPeer(t *testing.T) {
	self := primitive.NewObjectID()
	gone := primitive.NewObjectID()

	directory := &fakeDirectory{}
	resolver := &mapResolver{peers: map[primitive.ObjectID]identity.Peer{
		gone: {ID: gone, Name: identity.WithdrawnName, IsDeleted: true},
	}}

	agg := NewAggregator(self, directory, resolver)
	assert.NoError(t, agg.Start(context.Background()))

	directory.emitRooms([]models.Room{
		listRoom(self, gone, "Old Name", "bye", 100, 1),
	})

	entries := agg.Entries()
	assert.Len(t, entries, 1)
	assert.Equal(t, identity.WithdrawnName, entries[0].PeerName,
		"the cached snapshot must not leak through the list row")
	assert.True(t, entries[0].PeerDeleted)
	assert.Equal(t, int64(1), entries[0].Unread, "unread from a deleted peer still counts")
}

func TestAggregatorFallsBackOnResolverFailure(t *testing.T) {
	self := primitive.NewObjectID()
	bob := primitive.NewObjectID()

	directory := &fakeDirectory{}
	resolver := &mapResolver{
		peers: map[primitive.ObjectID]identity.Peer{},
		errs:  map[primitive.ObjectID]error{bob: errors.New("lookup timeout")},
	}

	agg := NewAggregator(self, directory, resolver)
	assert.NoError(t, agg.Start(context.Background()))

	directory.emitRooms([]models.Room{
		listRoom(self, bob, "Bob (snapshot)", "hi", 100, 0),
	})

	entries := agg.Entries()
	assert.Len(t, entries, 1, "a failed lookup degrades to the snapshot, the row is not dropped")
	assert.Equal(t, "Bob (snapshot)", entries[0].PeerName)
	assert.False(t, entries[0].PeerDeleted)
}

func TestAggregatorUpdatesReplacePrevious(t *testing.T) {
	self := primitive.NewObjectID()
	bob := primitive.NewObjectID()

	directory := &fakeDirectory{}
	resolver := &mapResolver{peers: map[primitive.ObjectID]identity.Peer{
		bob: {ID: bob, Name: "Bob"},
	}}

	agg := NewAggregator(self, directory, resolver)
	assert.NoError(t, agg.Start(context.Background()))

	directory.emitRooms([]models.Room{listRoom(self, bob, "Bob", "hi", 100, 4)})
	assert.Equal(t, int64(4), agg.BadgeCount())

	// Reading the room zeroes the counter in the next directory event.
	directory.emitRooms([]models.Room{listRoom(self, bob, "Bob", "hi", 100, 0)})
	assert.Equal(t, int64(0), agg.BadgeCount())
}

func TestAggregatorStartStop(t *testing.T) {
	self := primitive.NewObjectID()
	directory := &fakeDirectory{}
	agg := NewAggregator(self, directory, &mapResolver{})

	assert.NoError(t, agg.Start(context.Background()))
	assert.NoError(t, agg.Start(context.Background()), "second start is a no-op")

	agg.Stop()
	directory.mu.Lock()
	cancelled := directory.cancelled
	directory.mu.Unlock()
	assert.True(t, cancelled)
}

func TestAggregatorStartFailure(t *testing.T) {
	self := primitive.NewObjectID()
	directory := &fakeDirectory{subErr: errors.New("change stream unavailable")}
	agg := NewAggregator(self, directory, &mapResolver{})

	assert.Error(t, agg.Start(context.Background()))

	// A failed start leaves the aggregator restartable.
	directory.subErr = nil
	assert.NoError(t, agg.Start(context.Background()))
}
