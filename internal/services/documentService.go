package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"pdfvault/internal/access"
	"pdfvault/internal/db"
	"pdfvault/internal/httperr"
	"pdfvault/internal/mailer"
	"pdfvault/internal/models"
	"pdfvault/internal/storage"
)

var shareMail *mailer.Mailer

// InitDocuments wires the mail dispatch used for share notifications.
func InitDocuments(m *mailer.Mailer) { shareMail = m }

func objectName(id primitive.ObjectID, filename string) string {
	return fmt.Sprintf("%s_%s", id.Hex(), filename)
}

// UploadPDF stores the uploaded file and its metadata record. The blob write
// and the metadata insert run in parallel so upload latency is
// max(minio, mongo), not their sum.
func UploadPDF(c *fiber.Ctx, userID string) (models.Document, error) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return models.Document{}, httperr.BadRequest("failed to retrieve file")
	}
	if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".pdf") {
		return models.Document{}, httperr.BadRequest("only PDF files are accepted")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return models.Document{}, httperr.BadRequest("failed to open file")
	}
	defer file.Close()

	fileBytes, err := io.ReadAll(file)
	if err != nil {
		return models.Document{}, httperr.BadRequest("failed to read file")
	}

	docID := primitive.NewObjectID()
	object := objectName(docID, fileHeader.Filename)

	doc := models.Document{
		ID:          docID,
		Filename:    fileHeader.Filename,
		URL:         fmt.Sprintf("http://%s/%s/%s", storage.MinioClient.EndpointURL().Host, storage.Bucket(), object),
		StoragePath: object,
		OwnerID:     userID,
		CreatedAt:   time.Now(),
	}

	minioResultChan := make(chan error, 1)
	mongoResultChan := make(chan error, 1)

	go func() {
		minioResultChan <- storage.PutPDF(context.Background(), object,
			bytes.NewReader(fileBytes), int64(len(fileBytes)), "application/pdf")
	}()

	go func() {
		_, err := db.GetCollection("documents").InsertOne(context.Background(), doc)
		mongoResultChan <- err
	}()

	minioErr := <-minioResultChan
	mongoErr := <-mongoResultChan

	if minioErr != nil {
		return models.Document{}, httperr.Upstream("failed to store file", minioErr)
	}
	if mongoErr != nil {
		// Roll back the orphaned blob.
		go func() {
			if err := storage.RemovePDF(context.Background(), object); err != nil {
				log.Printf("orphan cleanup failed for %s: %v", object, err)
			}
		}()
		return models.Document{}, httperr.Upstream("failed to save document metadata", mongoErr)
	}

	return doc, nil
}

// GetDocument fetches a record by id. A missing document is NotFound,
// distinct from a permission denial.
func GetDocument(ctx context.Context, id string) (*models.Document, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, httperr.BadRequest("invalid document ID")
	}

	var doc models.Document
	err = db.GetCollection("documents").FindOne(ctx, bson.M{"_id": objID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, httperr.NotFound("document not found")
	}
	if err != nil {
		return nil, httperr.Upstream("failed to load document", err)
	}
	return &doc, nil
}

// EvaluateDocumentAccess loads the current record and runs the permission
// evaluator over it. Decisions are never cached; the access list may have
// changed since the caller's last request.
func EvaluateDocumentAccess(ctx context.Context, id string, caller access.Caller) (*models.Document, access.Decision, error) {
	doc, err := GetDocument(ctx, id)
	if err != nil {
		return nil, access.Decision{}, err
	}
	return doc, access.Evaluate(doc, caller), nil
}

// ListDashboard returns the caller's own documents and those shared with
// their email. The shared query matches both access-entry shapes.
func ListDashboard(ctx context.Context, userID, email string) (owned, shared []models.Document, err error) {
	collection := db.GetCollection("documents")

	cursor, err := collection.Find(ctx, bson.M{"owner_id": userID})
	if err != nil {
		return nil, nil, httperr.Upstream("failed to list documents", err)
	}
	if err = cursor.All(ctx, &owned); err != nil {
		return nil, nil, httperr.Upstream("failed to decode documents", err)
	}

	sharedFilter := bson.M{
		"owner_id": bson.M{"$ne": userID},
		"$or": []bson.M{
			{"access_users": email},       // legacy bare-string entries
			{"access_users.email": email}, // structured entries
		},
	}
	cursor, err = collection.Find(ctx, sharedFilter)
	if err != nil {
		return nil, nil, httperr.Upstream("failed to list shared documents", err)
	}
	if err = cursor.All(ctx, &shared); err != nil {
		return nil, nil, httperr.Upstream("failed to decode shared documents", err)
	}

	return owned, shared, nil
}

func requireOwner(ctx context.Context, id, userID string) (*models.Document, error) {
	doc, err := GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.OwnerID != userID {
		return nil, httperr.Forbidden("only the owner can manage this document")
	}
	return doc, nil
}

// ShareDocument grants an email access to the document and emails a
// notification. Re-sharing an already-listed email replaces its entry.
func ShareDocument(ctx context.Context, id, ownerID, email string, canSave bool) error {
	doc, err := requireOwner(ctx, id, ownerID)
	if err != nil {
		return err
	}

	entries := make([]models.AccessEntry, 0, len(doc.AccessUsers)+1)
	for _, e := range doc.AccessUsers {
		if e.Email != email {
			entries = append(entries, e)
		}
	}
	entries = append(entries, models.AccessEntry{Email: email, CanSave: canSave, AddedAt: time.Now()})

	_, err = db.GetCollection("documents").UpdateOne(ctx,
		bson.M{"_id": doc.ID},
		bson.M{"$set": bson.M{"access_users": entries, "updated_at": time.Now()}},
	)
	if err != nil {
		return httperr.Upstream("failed to update access list", err)
	}

	if shareMail != nil {
		// Notification failure does not undo the grant.
		go func() {
			body := fmt.Sprintf("<p>A document (<b>%s</b>) has been shared with you.</p>", doc.Filename)
			if err := shareMail.Send(email, "A document was shared with you", body); err != nil {
				log.Printf("share notification to %s failed: %v", email, err)
			}
		}()
	}

	return nil
}

// RevokeAccess removes an email from the access list, whichever shape its
// entry has. The remaining entries are rewritten in structured form.
func RevokeAccess(ctx context.Context, id, ownerID, email string) error {
	doc, err := requireOwner(ctx, id, ownerID)
	if err != nil {
		return err
	}

	entries := make([]models.AccessEntry, 0, len(doc.AccessUsers))
	for _, e := range doc.AccessUsers {
		if e.Email != email {
			entries = append(entries, e)
		}
	}
	if len(entries) == len(doc.AccessUsers) {
		return httperr.NotFound("email is not on the access list")
	}

	_, err = db.GetCollection("documents").UpdateOne(ctx,
		bson.M{"_id": doc.ID},
		bson.M{"$set": bson.M{"access_users": entries, "updated_at": time.Now()}},
	)
	if err != nil {
		return httperr.Upstream("failed to update access list", err)
	}
	return nil
}

// SetPublicSharing toggles the public-share flag and its save default.
func SetPublicSharing(ctx context.Context, id, ownerID string, enabled, allowSave bool) error {
	doc, err := requireOwner(ctx, id, ownerID)
	if err != nil {
		return err
	}

	_, err = db.GetCollection("documents").UpdateOne(ctx,
		bson.M{"_id": doc.ID},
		bson.M{"$set": bson.M{"is_public": enabled, "allow_save": allowSave, "updated_at": time.Now()}},
	)
	if err != nil {
		return httperr.Upstream("failed to update sharing settings", err)
	}
	return nil
}

// DeleteDocument removes the blob and the record in parallel, owner only.
func DeleteDocument(ctx context.Context, id, ownerID string) error {
	doc, err := requireOwner(ctx, id, ownerID)
	if err != nil {
		return err
	}

	minioDeleteChan := make(chan error, 1)
	mongoDeleteChan := make(chan error, 1)

	go func() {
		minioDeleteChan <- storage.RemovePDF(context.Background(), doc.StoragePath)
	}()
	go func() {
		_, err := db.GetCollection("documents").DeleteOne(context.Background(), bson.M{"_id": doc.ID})
		mongoDeleteChan <- err
	}()

	minioErr := <-minioDeleteChan
	mongoErr := <-mongoDeleteChan

	if minioErr != nil && mongoErr != nil {
		return httperr.Upstream("failed to delete document", errors.Join(minioErr, mongoErr))
	}
	if minioErr != nil {
		return httperr.Upstream("failed to delete document from storage", minioErr)
	}
	if mongoErr != nil {
		return httperr.Upstream("failed to delete document record", mongoErr)
	}
	return nil
}

// SaveCopy creates an independent copy owned by the caller. The copy starts
// private with an empty access list; later revocations on the original do
// not reach it.
func SaveCopy(ctx context.Context, doc *models.Document, caller access.Caller) (models.Document, error) {
	copyID := primitive.NewObjectID()
	object := objectName(copyID, doc.Filename)

	if err := storage.CopyPDF(ctx, doc.StoragePath, object); err != nil {
		return models.Document{}, httperr.Upstream("failed to copy file", err)
	}

	copyDoc := models.Document{
		ID:          copyID,
		Filename:    doc.Filename,
		URL:         fmt.Sprintf("http://%s/%s/%s", storage.MinioClient.EndpointURL().Host, storage.Bucket(), object),
		StoragePath: object,
		OwnerID:     caller.UID,
		CreatedAt:   time.Now(),
	}

	_, err := db.GetCollection("documents").InsertOne(ctx, copyDoc)
	if err != nil {
		go func() {
			if rmErr := storage.RemovePDF(context.Background(), object); rmErr != nil {
				log.Printf("orphan cleanup failed for %s: %v", object, rmErr)
			}
		}()
		return models.Document{}, httperr.Upstream("failed to save document copy", err)
	}

	return copyDoc, nil
}

// PresignDocument returns a time-boxed storage URL for the proxy to wrap.
func PresignDocument(ctx context.Context, doc *models.Document, expiry time.Duration) (string, error) {
	u, err := storage.PresignPDF(ctx, doc.StoragePath, expiry)
	if err != nil {
		return "", httperr.Upstream("failed to generate download link", err)
	}
	return u.String(), nil
}

// ListComments returns a document's comments, oldest first.
func ListComments(ctx context.Context, docID primitive.ObjectID) ([]models.Comment, error) {
	cursor, err := db.GetCollection("comments").Find(ctx, bson.M{"document_id": docID})
	if err != nil {
		return nil, httperr.Upstream("failed to list comments", err)
	}

	var comments []models.Comment
	if err = cursor.All(ctx, &comments); err != nil {
		return nil, httperr.Upstream("failed to decode comments", err)
	}
	return comments, nil
}

// AddComment appends a comment from a caller who holds view access.
func AddComment(ctx context.Context, docID primitive.ObjectID, caller access.Caller, text string) (models.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Comment{}, httperr.BadRequest("comment text is required")
	}

	comment := models.Comment{
		ID:          primitive.NewObjectID(),
		DocumentID:  docID,
		AuthorID:    caller.UID,
		AuthorEmail: caller.Email,
		Text:        text,
		CreatedAt:   time.Now(),
	}

	_, err := db.GetCollection("comments").InsertOne(ctx, comment)
	if err != nil {
		return models.Comment{}, httperr.Upstream("failed to save comment", err)
	}
	return comment, nil
}
