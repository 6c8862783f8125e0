package store

import (
	"context"
	"log"

	"weatherfit/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Append writes one entry to the room's log and touches the room document
// (preview, activity time, recipient unread). The caller may pre-assign the
// message ID so an optimistic copy can later be matched against the durable
// list; timestamp and isRead are always assigned here. A failed room touch
// is logged and swallowed: the message itself is already durable.
func (s *Service) Append(ctx context.Context, msg models.Message) (models.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var room models.Room
	err := s.rooms.FindOne(ctx, bson.M{"_id": msg.RoomID, "participants": msg.SenderID}).Decode(&room)
	if err == mongo.ErrNoDocuments {
		return models.Message{}, ErrNotParticipant
	}
	if err != nil {
		return models.Message{}, err
	}

	recipient, ok := room.Other(msg.SenderID)
	if !ok {
		return models.Message{}, ErrNotParticipant
	}

	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	msg.Timestamp = nowMillis()
	msg.IsRead = false

	if _, err := s.messages.InsertOne(ctx, msg); err != nil {
		return models.Message{}, err
	}

	_, err = s.rooms.UpdateByID(ctx, msg.RoomID, bson.M{
		"$set": bson.M{
			"lastMessage":   msg.Body,
			"lastMessageAt": msg.Timestamp,
		},
		"$inc": bson.M{"unreadCount." + recipient.Hex(): 1},
	})
	if err != nil {
		// Not critical, the message was already saved
		log.Printf("[store] Room update after append failed: %v", err)
	}

	return msg, nil
}

// ListMessages returns the room's full log ordered by timestamp. Insertion
// id breaks same-millisecond ties so the order is total.
func (s *Service) ListMessages(ctx context.Context, roomID primitive.ObjectID) ([]models.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{
		{Key: "timestamp", Value: 1},
		{Key: "_id", Value: 1},
	})
	cursor, err := s.messages.Find(ctx, bson.M{"roomId": roomID}, opts)
	if err != nil {
		return nil, err
	}

	var msgs []models.Message
	if err := cursor.All(ctx, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// SubscribeMessages streams the room's ordered log: one snapshot on
// subscribe, then the complete re-queried list after every append or read
// flag update. Subscribers get whole lists, never deltas; the durable
// stream is the authoritative render source.
func (s *Service) SubscribeMessages(ctx context.Context, roomID primitive.ObjectID, fn func([]models.Message)) (func(), error) {
	watchCtx, cancel := context.WithCancel(ctx)

	pipeline := []bson.M{
		{"$match": bson.M{"fullDocument.roomId": roomID}},
	}
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
	stream, err := s.messages.Watch(watchCtx, pipeline, opts)
	if err != nil {
		cancel()
		return nil, err
	}

	go func() {
		defer stream.Close(context.Background())

		if msgs, err := s.ListMessages(watchCtx, roomID); err == nil {
			fn(msgs)
		} else if watchCtx.Err() == nil {
			log.Printf("[store] Initial message snapshot failed: %v", err)
		}

		for stream.Next(watchCtx) {
			msgs, err := s.ListMessages(watchCtx, roomID)
			if err != nil {
				if watchCtx.Err() == nil {
					log.Printf("[store] Message re-query failed: %v", err)
				}
				continue
			}
			fn(msgs)
		}
		if err := stream.Err(); err != nil && watchCtx.Err() == nil {
			log.Printf("[store] Message change stream closed: %v", err)
		}
	}()

	return cancel, nil
}

// MarkRead flags every message in the room not sent by the reader as read
// and zeroes the reader's unread counter. The batch is not atomic: a
// partial failure leaves some messages unread and the caller re-invokes on
// the next render pass. Flagging an already-read message changes nothing,
// so the whole operation is idempotent.
func (s *Service) MarkRead(ctx context.Context, roomID, readerID primitive.ObjectID) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := s.messages.UpdateMany(
		ctx,
		bson.M{
			"roomId":   roomID,
			"senderId": bson.M{"$ne": readerID},
			"isRead":   false,
		},
		bson.M{"$set": bson.M{"isRead": true}},
	)
	if err != nil {
		return err
	}

	return s.ResetUnread(ctx, roomID, readerID)
}
