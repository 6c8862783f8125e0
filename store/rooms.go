package store

import (
	"context"
	"log"

	"weatherfit/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// GetOrCreateRoom returns the room shared by self and other, creating it on
// first contact. The store only answers single-field array-membership
// queries, so we fetch self's rooms and pick the one containing the peer in
// process. Two truly concurrent first contacts can each miss the other's
// insert and create a duplicate room; there is no compound uniqueness
// constraint to prevent that, so the race is accepted and documented.
func (s *Service) GetOrCreateRoom(ctx context.Context, self, other models.Participant) (primitive.ObjectID, error) {
	if self.ID == other.ID {
		return primitive.NilObjectID, ErrSelfChat
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	cursor, err := s.rooms.Find(ctx, bson.M{"participants": self.ID})
	if err != nil {
		return primitive.NilObjectID, err
	}

	var rooms []models.Room
	if err := cursor.All(ctx, &rooms); err != nil {
		return primitive.NilObjectID, err
	}

	if existing, ok := roomWithPeer(rooms, other.ID); ok {
		return existing.ID, nil
	}

	now := nowMillis()
	room := models.Room{
		ID:           primitive.NewObjectID(),
		Participants: []primitive.ObjectID{self.ID, other.ID},
		ParticipantNames: map[string]string{
			self.ID.Hex():  self.Name,
			other.ID.Hex(): other.Name,
		},
		ParticipantPhotos: map[string]string{
			self.ID.Hex():  self.Photo,
			other.ID.Hex(): other.Photo,
		},
		LastMessage:   "",
		LastMessageAt: now,
		UnreadCount: map[string]int64{
			self.ID.Hex():  0,
			other.ID.Hex(): 0,
		},
		CreatedAt: now,
	}

	if _, err := s.rooms.InsertOne(ctx, room); err != nil {
		return primitive.NilObjectID, err
	}

	return room.ID, nil
}

// roomWithPeer picks the room that also contains peer from a user's rooms.
func roomWithPeer(rooms []models.Room, peer primitive.ObjectID) (models.Room, bool) {
	for _, r := range rooms {
		if r.Has(peer) {
			return r, true
		}
	}
	return models.Room{}, false
}

// GetRoom loads and validates a single room.
func (s *Service) GetRoom(ctx context.Context, roomID primitive.ObjectID) (models.Room, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var room models.Room
	if err := s.rooms.FindOne(ctx, bson.M{"_id": roomID}).Decode(&room); err != nil {
		return models.Room{}, err
	}
	if err := room.Validate(); err != nil {
		return models.Room{}, err
	}
	return room, nil
}

// ListRooms returns all rooms containing userID ordered by last activity,
// newest first. Rooms that fail shape validation are skipped, not fatal.
func (s *Service) ListRooms(ctx context.Context, userID primitive.ObjectID) ([]models.Room, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "lastMessageAt", Value: -1}})
	cursor, err := s.rooms.Find(ctx, bson.M{"participants": userID}, opts)
	if err != nil {
		return nil, err
	}

	var raw []models.Room
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, err
	}

	rooms := make([]models.Room, 0, len(raw))
	for _, r := range raw {
		if err := r.Validate(); err != nil {
			log.Printf("[store] Skipping malformed room: %v", err)
			continue
		}
		rooms = append(rooms, r)
	}
	return rooms, nil
}

// SubscribeRooms streams the user's room list: one snapshot immediately,
// then a fresh full snapshot on every mutation of any of their rooms. The
// returned function cancels the subscription.
func (s *Service) SubscribeRooms(ctx context.Context, userID primitive.ObjectID, fn func([]models.Room)) (func(), error) {
	watchCtx, cancel := context.WithCancel(ctx)

	pipeline := []bson.M{
		{"$match": bson.M{"fullDocument.participants": userID}},
	}
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
	stream, err := s.rooms.Watch(watchCtx, pipeline, opts)
	if err != nil {
		cancel()
		return nil, err
	}

	go func() {
		defer stream.Close(context.Background())

		if rooms, err := s.ListRooms(watchCtx, userID); err == nil {
			fn(rooms)
		} else if watchCtx.Err() == nil {
			log.Printf("[store] Initial room snapshot failed: %v", err)
		}

		for stream.Next(watchCtx) {
			rooms, err := s.ListRooms(watchCtx, userID)
			if err != nil {
				if watchCtx.Err() == nil {
					log.Printf("[store] Room re-query failed: %v", err)
				}
				continue
			}
			fn(rooms)
		}
		if err := stream.Err(); err != nil && watchCtx.Err() == nil {
			log.Printf("[store] Room change stream closed: %v", err)
		}
	}()

	return cancel, nil
}

// IncrementUnread bumps the recipient's counter with a store-side $inc.
// Both participants can send concurrently, so the counter is never computed
// read-then-write in this process.
func (s *Service) IncrementUnread(ctx context.Context, roomID, recipientID primitive.ObjectID) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := s.rooms.UpdateByID(ctx, roomID, bson.M{
		"$inc": bson.M{"unreadCount." + recipientID.Hex(): 1},
	})
	return err
}

// ResetUnread zeroes the reader's counter. Setting an already-zero counter
// is a no-op, so redundant invocations are harmless.
func (s *Service) ResetUnread(ctx context.Context, roomID, readerID primitive.ObjectID) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := s.rooms.UpdateByID(ctx, roomID, bson.M{
		"$set": bson.M{"unreadCount." + readerID.Hex(): 0},
	})
	return err
}
