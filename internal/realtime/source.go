package realtime

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Stream is the cursor side of a change stream. *mongo.ChangeStream
// satisfies it.
type Stream interface {
	Next(ctx context.Context) bool
	Decode(val interface{}) error
	Err() error
	Close(ctx context.Context) error
}

// Source opens change streams.
type Source interface {
	Watch(ctx context.Context, q Query) (Stream, error)
}

// Query selects the documents of one collection a subscriber cares about.
// Match is written against document fields; deletes always pass because
// the removed document is no longer available to match on.
type Query struct {
	Collection string
	Match      bson.D
}

// Pipeline is the change stream aggregation for q.
func (q Query) Pipeline() mongo.Pipeline {
	if len(q.Match) == 0 {
		return mongo.Pipeline{}
	}
	fields := make(bson.D, 0, len(q.Match))
	for _, e := range q.Match {
		key := e.Key
		if !strings.HasPrefix(key, "$") {
			key = "fullDocument." + key
		}
		fields = append(fields, bson.E{Key: key, Value: e.Value})
	}
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: "operationType", Value: "delete"}},
			fields,
		}}}}},
	}
}

// MongoSource watches collections of one database.
type MongoSource struct {
	db *mongo.Database
}

func NewMongoSource(db *mongo.Database) *MongoSource {
	return &MongoSource{db: db}
}

func (s *MongoSource) Watch(ctx context.Context, q Query) (Stream, error) {
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
	cs, err := s.db.Collection(q.Collection).Watch(ctx, q.Pipeline(), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to watch %s: %w", q.Collection, err)
	}
	return cs, nil
}
