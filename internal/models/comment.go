package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Comment struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	DocumentID  primitive.ObjectID `bson:"document_id" json:"document_id"`
	AuthorID    string             `bson:"author_id" json:"author_id"`
	AuthorEmail string             `bson:"author_email" json:"author_email"`
	Text        string             `bson:"text" json:"text"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
}
