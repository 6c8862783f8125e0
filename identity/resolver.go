package identity

import (
	"context"
	"errors"
	"time"

	"weatherfit/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithdrawnName is the sentinel shown instead of a deleted account's name.
// Historical message snapshots keep the original name; only the live
// rendering surfaces (header, sender label) are masked.
const WithdrawnName = "Withdrawn member"

// FallbackAvatar replaces missing or suppressed profile photos.
const FallbackAvatar = "https://upload.wikimedia.org/wikipedia/commons/8/89/Portrait_Placeholder.png"

var ErrNotInRoom = errors.New("user is not a participant of the room")

// ProfileFinder is the narrow view of the user-profile service the chat
// subsystem needs. FindProfile returns (nil, nil) when the account no
// longer exists.
type ProfileFinder interface {
	FindProfile(ctx context.Context, userID primitive.ObjectID) (*models.User, error)
}

// Peer is the resolved identity of a room's other participant.
type Peer struct {
	ID        primitive.ObjectID
	Name      string
	Photo     string
	IsDeleted bool
}

// Resolver answers liveness questions about participants. Liveness is
// checked per call, not cached: an account can be deleted at any time after
// the room was created.
type Resolver struct {
	finder ProfileFinder
}

func NewResolver(finder ProfileFinder) *Resolver {
	return &Resolver{finder: finder}
}

// Exists reports whether the user's profile document is still live.
func (r *Resolver) Exists(ctx context.Context, userID primitive.ObjectID) (bool, error) {
	user, err := r.finder.FindProfile(ctx, userID)
	if err != nil {
		return false, err
	}
	return user != nil, nil
}

// ResolveOtherParticipant picks the non-self participant of the room and
// resolves their current identity. A deleted account yields the withdrawn
// sentinel with the photo suppressed, regardless of the display snapshots
// still cached on the room document.
func (r *Resolver) ResolveOtherParticipant(ctx context.Context, room models.Room, selfID primitive.ObjectID) (Peer, error) {
	otherID, ok := room.Other(selfID)
	if !ok {
		return Peer{}, ErrNotInRoom
	}

	user, err := r.finder.FindProfile(ctx, otherID)
	if err != nil {
		return Peer{}, err
	}

	if user == nil {
		return Peer{
			ID:        otherID,
			Name:      WithdrawnName,
			Photo:     "",
			IsDeleted: true,
		}, nil
	}

	name := user.Name
	if name == "" {
		name = room.NameOf(otherID)
	}
	photo := user.Avatar
	if photo == "" {
		photo = room.PhotoOf(otherID)
	}

	return Peer{ID: otherID, Name: name, Photo: photo}, nil
}

// MongoFinder reads profiles straight from the users collection.
type MongoFinder struct {
	users *mongo.Collection
}

func NewMongoFinder(users *mongo.Collection) *MongoFinder {
	return &MongoFinder{users: users}
}

func (f *MongoFinder) FindProfile(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var user models.User
	err := f.users.FindOne(ctx, bson.M{"_id": userID}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
