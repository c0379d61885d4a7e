package intake

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrNotFound = errors.New("submission not found")

// Repository defines persistence operations for intake submissions.
// Submissions are append-only: there is no update operation.
type Repository interface {
	Insert(ctx context.Context, s *Submission) error
	GetByID(ctx context.Context, id string) (*Submission, error)
	Find(ctx context.Context, filter bson.M, limit, skip int64) ([]*Submission, error)
	Count(ctx context.Context, filter bson.M) (int64, error)
}

// MongoRepository implements Repository using MongoDB
type MongoRepository struct {
	col *mongo.Collection
}

// NewMongoRepository creates a new repository for the given collection
func NewMongoRepository(col *mongo.Collection) *MongoRepository {
	for _, keys := range []bson.D{
		{{Key: "companyCodes", Value: 1}},
		{{Key: "sourceUserId", Value: 1}},
		{{Key: "createdAt", Value: -1}},
	} {
		_, _ = col.Indexes().CreateOne(context.Background(), mongo.IndexModel{Keys: keys})
	}
	return &MongoRepository{col: col}
}

// Insert is a single atomic document write; there is no partial-commit
// state for a submission.
func (r *MongoRepository) Insert(ctx context.Context, s *Submission) error {
	now := time.Now().UTC()
	if s.ID == "" {
		s.ID = primitive.NewObjectID().Hex()
	}
	s.CreatedAt = now
	s.UpdatedAt = now
	_, err := r.col.InsertOne(ctx, s)
	return err
}

func (r *MongoRepository) GetByID(ctx context.Context, id string) (*Submission, error) {
	var s Submission
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&s); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *MongoRepository) Find(ctx context.Context, filter bson.M, limit, skip int64) ([]*Submission, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(skip).
		SetLimit(limit)
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*Submission{}
	for cur.Next(ctx) {
		var s Submission
		if err := cur.Decode(&s); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, cur.Err()
}

func (r *MongoRepository) Count(ctx context.Context, filter bson.M) (int64, error) {
	return r.col.CountDocuments(ctx, filter)
}
