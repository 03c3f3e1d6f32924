package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AccessEntry is one grant on a document's access list. Stored entries come
// in two shapes: plain email strings written by early versions of the app,
// and structured {email, canSave, addedAt} documents. Both must decode
// forever; Legacy marks the string shape, which never carries save rights.
type AccessEntry struct {
	Email   string    `bson:"email" json:"email"`
	CanSave bool      `bson:"canSave" json:"can_save"`
	AddedAt time.Time `bson:"addedAt,omitempty" json:"added_at,omitempty"`
	Legacy  bool      `bson:"-" json:"-"`
}

// UnmarshalBSONValue normalizes both stored shapes into an AccessEntry.
func (e *AccessEntry) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	switch t {
	case bsontype.String:
		rv := bson.RawValue{Type: t, Value: data}
		s, ok := rv.StringValueOK()
		if !ok {
			return fmt.Errorf("invalid string access entry")
		}
		*e = AccessEntry{Email: s, Legacy: true}
		return nil
	case bsontype.EmbeddedDocument:
		var raw struct {
			Email   string    `bson:"email"`
			CanSave bool      `bson:"canSave"`
			AddedAt time.Time `bson:"addedAt"`
		}
		if err := bson.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("decode access entry: %w", err)
		}
		*e = AccessEntry{Email: raw.Email, CanSave: raw.CanSave, AddedAt: raw.AddedAt}
		return nil
	default:
		return fmt.Errorf("unexpected access entry type %s", t)
	}
}

type Document struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Filename    string             `bson:"filename" json:"filename"`
	URL         string             `bson:"url" json:"url"`
	StoragePath string             `bson:"storage_path" json:"storage_path"`
	OwnerID     string             `bson:"owner_id" json:"owner_id"`
	IsPublic    bool               `bson:"is_public" json:"is_public"`
	AllowSave   bool               `bson:"allow_save" json:"allow_save"`
	AccessUsers []AccessEntry      `bson:"access_users,omitempty" json:"access_users,omitempty"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}
