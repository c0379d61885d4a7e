package studies

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound = errors.New("study not found")
	ErrExists   = errors.New("study exists")
)

// Repository defines persistence operations for the trial catalog.
type Repository interface {
	FindRecruiting(ctx context.Context) ([]*ClinicalStudy, error)
	List(ctx context.Context) ([]*ClinicalStudy, error)
	GetByID(ctx context.Context, id string) (*ClinicalStudy, error)
	Insert(ctx context.Context, s *ClinicalStudy) error
	Update(ctx context.Context, id string, set bson.M) (*ClinicalStudy, error)
	Delete(ctx context.Context, id string) error
}

// MongoRepository implements Repository using MongoDB
type MongoRepository struct {
	col *mongo.Collection
}

// NewMongoRepository creates a new repository for the given collection
func NewMongoRepository(col *mongo.Collection) *MongoRepository {
	idx := mongo.IndexModel{Keys: bson.D{{Key: "protocolo", Value: 1}}, Options: options.Index().SetUnique(true)}
	_, _ = col.Indexes().CreateOne(context.Background(), idx)
	return &MongoRepository{col: col}
}

// FindRecruiting returns the matchable catalog snapshot. The matcher still
// re-checks the folded status; the query only narrows the read.
func (r *MongoRepository) FindRecruiting(ctx context.Context) ([]*ClinicalStudy, error) {
	filter := bson.M{"estado_protocolo": primitive.Regex{Pattern: Recruiting, Options: "i"}}
	return r.find(ctx, filter)
}

func (r *MongoRepository) List(ctx context.Context) ([]*ClinicalStudy, error) {
	return r.find(ctx, bson.M{})
}

func (r *MongoRepository) find(ctx context.Context, filter bson.M) ([]*ClinicalStudy, error) {
	cur, err := r.col.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*ClinicalStudy{}
	for cur.Next(ctx) {
		var s ClinicalStudy
		if err := cur.Decode(&s); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, cur.Err()
}

func (r *MongoRepository) GetByID(ctx context.Context, id string) (*ClinicalStudy, error) {
	var s ClinicalStudy
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&s); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *MongoRepository) Insert(ctx context.Context, s *ClinicalStudy) error {
	count, err := r.col.CountDocuments(ctx, bson.M{"protocolo": s.Protocolo})
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrExists
	}
	now := time.Now().UTC()
	if s.ID == "" {
		s.ID = primitive.NewObjectID().Hex()
	}
	s.CreatedAt = now
	s.UpdatedAt = now
	_, err = r.col.InsertOne(ctx, s)
	return err
}

func (r *MongoRepository) Update(ctx context.Context, id string, set bson.M) (*ClinicalStudy, error) {
	set["updatedAt"] = time.Now().UTC()
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var s ClinicalStudy
	err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&s)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *MongoRepository) Delete(ctx context.Context, id string) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
