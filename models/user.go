package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// User is the slice of the profile document the chat subsystem reads.
// Account lifecycle belongs to the auth service; here a missing document
// simply means the account was deleted.
type User struct {
	ID     primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name   string             `bson:"name" json:"name"`
	Avatar string             `bson:"avatar" json:"avatar"`
}
