package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/smbilal1/Huts-And-Farms-AI-sub002/pkg/config"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const emailCollectionName = "Email_evidence"

// MongoEmailSource reads payment emails deposited by the upstream provider
// poller into a shared collection. Items stay until explicitly consumed, so a
// crash between pull and persistence re-delivers rather than loses evidence.
type MongoEmailSource struct {
	collection *mongo.Collection
}

type emailDoc struct {
	ID         string    `bson:"_id"`
	Provider   string    `bson:"provider"`
	Subject    string    `bson:"subject"`
	Body       string    `bson:"body"`
	ReceivedAt time.Time `bson:"received_at"`
	Consumed   bool      `bson:"consumed"`
}

func NewMongoEmailSource(cfg *config.Config) *MongoEmailSource {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &MongoEmailSource{
		collection: db.Collection(emailCollectionName),
	}
}

func (s *MongoEmailSource) FetchUnconsumed(ctx context.Context, providerFilter string, maxResults int) ([]RawEmail, error) {
	filter := bson.M{"consumed": bson.M{"$ne": true}}
	if providerFilter != "" {
		filter["provider"] = providerFilter
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "received_at", Value: 1}}).
		SetLimit(int64(maxResults))

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unconsumed emails: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []emailDoc
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode emails: %w", err)
	}

	emails := make([]RawEmail, 0, len(docs))
	for _, d := range docs {
		emails = append(emails, RawEmail{
			ID:         d.ID,
			Provider:   d.Provider,
			Subject:    d.Subject,
			Body:       d.Body,
			ReceivedAt: d.ReceivedAt,
		})
	}
	return emails, nil
}

// Parse extracts payment fields from the structured body the upstream poller
// deposited. The email message id stands in as provenance when the provider
// payload carries none.
func (s *MongoEmailSource) Parse(email RawEmail) (*PaymentFields, error) {
	var fields PaymentFields
	if err := json.Unmarshal([]byte(email.Body), &fields); err != nil {
		return nil, fmt.Errorf("malformed evidence payload in email %s: %w", email.ID, err)
	}
	if fields.ProvenanceID == "" {
		fields.ProvenanceID = email.ID
	}
	if fields.Amount <= 0 {
		return nil, fmt.Errorf("email %s carries no positive payment amount", email.ID)
	}
	return &fields, nil
}

func (s *MongoEmailSource) MarkConsumed(ctx context.Context, id string) error {
	_, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"consumed":    true,
			"consumed_at": time.Now().UTC(),
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to mark email %s consumed: %w", id, err)
	}
	return nil
}
