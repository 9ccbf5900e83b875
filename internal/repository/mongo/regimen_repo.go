// internal/repository/mongo/regimen_repo.go
package mongo

import (
	"coachshare/backend/internal/domain"
	"coachshare/backend/internal/repository"
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const regimenCollectionName = "regimens"

// mongoRegimenRepository implements repository.RegimenRepository
type mongoRegimenRepository struct {
	collection *mongo.Collection
}

// NewMongoRegimenRepository creates a new Regimen repository.
func NewMongoRegimenRepository(db *mongo.Database) repository.RegimenRepository {
	return &mongoRegimenRepository{
		collection: db.Collection(regimenCollectionName),
	}
}

// Create inserts a new regimen.
func (r *mongoRegimenRepository) Create(ctx context.Context, regimen *domain.Regimen) (primitive.ObjectID, error) {
	if regimen.CreatedBy == primitive.NilObjectID || regimen.RegimenID == "" || regimen.Name == "" {
		return primitive.NilObjectID, errors.New("regimen requires createdBy, id, and name")
	}
	regimen.ID = primitive.NewObjectID()
	if regimen.AssignedTo == nil {
		regimen.AssignedTo = []primitive.ObjectID{}
	}
	now := time.Now().UTC()
	regimen.CreatedAt = now
	regimen.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, regimen)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted regimen ID")
	}
	return insertedID, nil
}

func (r *mongoRegimenRepository) findOne(ctx context.Context, filter bson.M) (*domain.Regimen, error) {
	var regimen domain.Regimen
	err := r.collection.FindOne(ctx, filter).Decode(&regimen)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &regimen, nil
}

// GetByID retrieves a single regimen by its store ID.
func (r *mongoRegimenRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Regimen, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// GetByRef resolves a regimen by its UUID, falling back to the hex store id.
func (r *mongoRegimenRepository) GetByRef(ctx context.Context, ref string) (*domain.Regimen, error) {
	if ref == "" {
		return nil, repository.ErrNotFound
	}
	filter := bson.M{"id": ref}
	if oid, err := primitive.ObjectIDFromHex(ref); err == nil {
		filter = bson.M{"$or": bson.A{bson.M{"id": ref}, bson.M{"_id": oid}}}
	}
	return r.findOne(ctx, filter)
}

func (r *mongoRegimenRepository) list(ctx context.Context, filter bson.M) ([]domain.Regimen, error) {
	// Newest first
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	return decodeAll[domain.Regimen](ctx, cursor)
}

func (r *mongoRegimenRepository) ListByCreator(ctx context.Context, coachID primitive.ObjectID) ([]domain.Regimen, error) {
	return r.list(ctx, bson.M{"createdBy": coachID})
}

func (r *mongoRegimenRepository) ListAssignedTo(ctx context.Context, athleteID primitive.ObjectID) ([]domain.Regimen, error) {
	return r.list(ctx, bson.M{"assignedTo": athleteID})
}

func (r *mongoRegimenRepository) ListAll(ctx context.Context) ([]domain.Regimen, error) {
	return r.list(ctx, bson.M{})
}

// Update modifies the plan content. createdBy and assignedTo are never touched here.
func (r *mongoRegimenRepository) Update(ctx context.Context, id, coachID primitive.ObjectID, patch repository.RegimenUpdate) error {
	filter := bson.M{"_id": id, "createdBy": coachID}
	updateDoc := bson.M{
		"$set": bson.M{
			"name":        patch.Name,
			"description": patch.Description,
			"days":        patch.Days,
			"updatedAt":   time.Now().UTC(),
		},
	}
	result, err := r.collection.UpdateOne(ctx, filter, updateDoc)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound // Missing or not owned by this coach
	}
	return nil
}

func (r *mongoRegimenRepository) setOp(ctx context.Context, id primitive.ObjectID, op string, athleteID primitive.ObjectID) error {
	update := bson.M{
		op:     bson.M{"assignedTo": athleteID},
		"$set": bson.M{"updatedAt": time.Now().UTC()},
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *mongoRegimenRepository) AddAssignee(ctx context.Context, id, athleteID primitive.ObjectID) error {
	return r.setOp(ctx, id, "$addToSet", athleteID)
}

func (r *mongoRegimenRepository) RemoveAssignee(ctx context.Context, id, athleteID primitive.ObjectID) error {
	return r.setOp(ctx, id, "$pull", athleteID)
}

// RemoveAssigneeFromAll pulls the athlete from every regimen's assignedTo set.
func (r *mongoRegimenRepository) RemoveAssigneeFromAll(ctx context.Context, athleteID primitive.ObjectID) (int64, error) {
	result, err := r.collection.UpdateMany(ctx,
		bson.M{"assignedTo": athleteID},
		bson.M{
			"$pull": bson.M{"assignedTo": athleteID},
			"$set":  bson.M{"updatedAt": time.Now().UTC()},
		},
	)
	if err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}

func (r *mongoRegimenRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureRegimenIndexes creates necessary indexes. Call during startup.
func EnsureRegimenIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "createdBy", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "assignedTo", Value: 1}},
			Options: options.Index(),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
