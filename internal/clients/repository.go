package clients

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/filtroclientes/api/internal/models"
)

var ErrNotFound = errors.New("client not found")

// Repository defines persistence operations for machine clients.
type Repository interface {
	GetByClientID(ctx context.Context, clientID string) (*models.Client, error)
	Insert(ctx context.Context, c *models.Client) error
	List(ctx context.Context) ([]*models.Client, error)
	Update(ctx context.Context, clientID string, set bson.M) (*models.Client, error)
	Delete(ctx context.Context, clientID string) error
}

// MongoRepository implements Repository using MongoDB
type MongoRepository struct {
	col *mongo.Collection
}

// NewMongoRepository creates a new repository for the given collection
func NewMongoRepository(col *mongo.Collection) *MongoRepository {
	idx := mongo.IndexModel{Keys: bson.D{{Key: "clientId", Value: 1}}, Options: options.Index().SetUnique(true)}
	_, _ = col.Indexes().CreateOne(context.Background(), idx)
	return &MongoRepository{col: col}
}

func (r *MongoRepository) GetByClientID(ctx context.Context, clientID string) (*models.Client, error) {
	var c models.Client
	if err := r.col.FindOne(ctx, bson.M{"clientId": clientID}).Decode(&c); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *MongoRepository) Insert(ctx context.Context, c *models.Client) error {
	now := time.Now().UTC()
	if c.ID == "" {
		c.ID = primitive.NewObjectID().Hex()
	}
	c.CreatedAt = now
	c.UpdatedAt = now
	_, err := r.col.InsertOne(ctx, c)
	return err
}

func (r *MongoRepository) List(ctx context.Context) ([]*models.Client, error) {
	cur, err := r.col.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*models.Client{}
	for cur.Next(ctx) {
		var c models.Client
		if err := cur.Decode(&c); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, cur.Err()
}

func (r *MongoRepository) Update(ctx context.Context, clientID string, set bson.M) (*models.Client, error) {
	set["updatedAt"] = time.Now().UTC()
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var c models.Client
	err := r.col.FindOneAndUpdate(ctx, bson.M{"clientId": clientID}, bson.M{"$set": set}, opts).Decode(&c)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *MongoRepository) Delete(ctx context.Context, clientID string) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"clientId": clientID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
