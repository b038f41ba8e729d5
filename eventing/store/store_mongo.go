package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nexacart/order-events/eventing/envelope"
)

// MongoStore is the Order service's event store backend, grounded on
// the collection-per-aggregate idiom of the teacher's order store.
type MongoStore struct {
	collection *mongo.Collection
}

// NewMongoStore opens the "events" collection in database "orders" and
// ensures the unique eventId index and secondary orderId index exist.
func NewMongoStore(ctx context.Context, client *mongo.Client) (*MongoStore, error) {
	collection := client.Database("orders").Collection("events")

	_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "eventId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "payload.orderId", Value: 1}}},
		{Keys: bson.D{{Key: "occurredAt", Value: 1}, {Key: "eventId", Value: 1}}},
	})
	if err != nil {
		return nil, fmt.Errorf("ensure event store indexes: %w", err)
	}

	return &MongoStore{collection: collection}, nil
}

func toMongoDoc(env *envelope.Envelope) (bson.M, error) {
	var payload bson.M
	if err := bson.UnmarshalExtJSON(env.Payload, true, &payload); err != nil {
		return nil, fmt.Errorf("decode payload for bson: %w", err)
	}
	return bson.M{
		"eventId":       env.EventID,
		"type":          env.Type,
		"version":       env.Version,
		"occurredAt":    env.OccurredAt,
		"producer":      env.Producer,
		"correlationId": env.CorrelationID,
		"payload":       payload,
	}, nil
}

func fromMongoDoc(doc bson.M) (*envelope.Envelope, error) {
	payloadRaw, err := json.Marshal(doc["payload"])
	if err != nil {
		return nil, fmt.Errorf("re-encode payload: %w", err)
	}
	var occurredAt time.Time
	switch v := doc["occurredAt"].(type) {
	case primitive.DateTime:
		occurredAt = v.Time()
	case time.Time:
		occurredAt = v
	}
	return &envelope.Envelope{
		EventID:       stringField(doc, "eventId"),
		Type:          stringField(doc, "type"),
		Version:       intField(doc, "version"),
		OccurredAt:    occurredAt,
		Producer:      stringField(doc, "producer"),
		CorrelationID: stringField(doc, "correlationId"),
		Payload:       payloadRaw,
	}, nil
}

func (s *MongoStore) Append(ctx context.Context, env *envelope.Envelope) error {
	doc, err := toMongoDoc(env)
	if err != nil {
		return err
	}
	_, err = s.collection.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

func (s *MongoStore) FindByEventID(ctx context.Context, eventID string) (*envelope.Envelope, error) {
	var doc bson.M
	err := s.collection.FindOne(ctx, bson.M{"eventId": eventID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find event by id: %w", err)
	}
	return fromMongoDoc(doc)
}

func (s *MongoStore) Find(ctx context.Context, filter Filter) ([]*envelope.Envelope, error) {
	query := bson.M{}
	if filter.Type != "" {
		query["type"] = filter.Type
	}
	if filter.OrderID != "" {
		query["payload.orderId"] = filter.OrderID
	}
	occurredAtRange := bson.M{}
	if !filter.From.IsZero() {
		occurredAtRange["$gte"] = filter.From
	}
	if !filter.To.IsZero() {
		occurredAtRange["$lte"] = filter.To
	}
	if len(occurredAtRange) > 0 {
		query["occurredAt"] = occurredAtRange
	}

	opts := options.Find().SetSort(bson.D{{Key: "occurredAt", Value: 1}, {Key: "eventId", Value: 1}})
	cursor, err := s.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("find events: %w", err)
	}
	defer cursor.Close(ctx)

	var results []*envelope.Envelope
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		env, err := fromMongoDoc(doc)
		if err != nil {
			return nil, err
		}
		results = append(results, env)
	}
	return results, cursor.Err()
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.collection.Database().Client().Ping(ctx, nil)
}

func (s *MongoStore) Close() error {
	return nil
}

func stringField(doc bson.M, key string) string {
	v, _ := doc[key].(string)
	return v
}

func intField(doc bson.M, key string) int {
	switch v := doc[key].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
