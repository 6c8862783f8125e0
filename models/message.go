package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Message is one entry in a room's append-only log. Sender name and photo
// are snapshots taken at send time and are never rewritten, even after the
// sender deletes their account. IsRead transitions false to true only.
type Message struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RoomID      primitive.ObjectID `bson:"roomId" json:"roomId"`
	SenderID    primitive.ObjectID `bson:"senderId" json:"senderId"`
	SenderName  string             `bson:"senderName" json:"senderName"`
	SenderPhoto string             `bson:"senderPhoto" json:"senderPhoto"`
	Body        string             `bson:"message" json:"message"`
	Timestamp   int64              `bson:"timestamp" json:"timestamp"` // epoch-ms
	IsRead      bool               `bson:"isRead" json:"isRead"`
}
