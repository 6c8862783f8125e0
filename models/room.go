package models

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Room is a durable two-party chat context. Exactly one room should exist
// per unordered pair of participants; creation is find-or-create. Map fields
// are keyed by participant ID hex.
type Room struct {
	ID                primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Participants      []primitive.ObjectID `bson:"participants" json:"participants"`
	ParticipantNames  map[string]string    `bson:"participantNames" json:"participantNames"`
	ParticipantPhotos map[string]string    `bson:"participantPhotos" json:"participantPhotos"`
	LastMessage       string               `bson:"lastMessage" json:"lastMessage"`
	LastMessageAt     int64                `bson:"lastMessageAt" json:"lastMessageAt"`
	UnreadCount       map[string]int64     `bson:"unreadCount" json:"unreadCount"`
	CreatedAt         int64                `bson:"createdAt,omitempty" json:"createdAt,omitempty"`
}

// Participant is the display snapshot captured on room creation and on
// every message send.
type Participant struct {
	ID    primitive.ObjectID
	Name  string
	Photo string
}

// Validate checks the shape of a room decoded from the store.
func (r *Room) Validate() error {
	if len(r.Participants) != 2 {
		return fmt.Errorf("room %s: expected 2 participants, got %d", r.ID.Hex(), len(r.Participants))
	}
	if r.Participants[0] == r.Participants[1] {
		return fmt.Errorf("room %s: duplicate participant %s", r.ID.Hex(), r.Participants[0].Hex())
	}
	for userID, n := range r.UnreadCount {
		if n < 0 {
			return fmt.Errorf("room %s: negative unread count %d for %s", r.ID.Hex(), n, userID)
		}
	}
	return nil
}

// Has reports whether userID is one of the two participants.
func (r *Room) Has(userID primitive.ObjectID) bool {
	for _, p := range r.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// Other returns the participant that is not selfID. The boolean is false
// when selfID is not a participant of the room.
func (r *Room) Other(selfID primitive.ObjectID) (primitive.ObjectID, bool) {
	if !r.Has(selfID) {
		return primitive.NilObjectID, false
	}
	for _, p := range r.Participants {
		if p != selfID {
			return p, true
		}
	}
	return primitive.NilObjectID, false
}

// UnreadFor returns the unread counter for userID, clamped at zero.
func (r *Room) UnreadFor(userID primitive.ObjectID) int64 {
	n := r.UnreadCount[userID.Hex()]
	if n < 0 {
		return 0
	}
	return n
}

// NameOf returns the display-name snapshot stored for userID.
func (r *Room) NameOf(userID primitive.ObjectID) string {
	return r.ParticipantNames[userID.Hex()]
}

// PhotoOf returns the photo snapshot stored for userID.
func (r *Room) PhotoOf(userID primitive.ObjectID) string {
	return r.ParticipantPhotos[userID.Hex()]
}
