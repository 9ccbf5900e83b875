// internal/repository/mongo/workout_log_repo.go
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

const workoutLogCollectionName = "workout_logs"

// mongoWorkoutLogRepository implements repository.WorkoutLogRepository
type mongoWorkoutLogRepository struct {
	collection *mongo.Collection
}

// NewMongoWorkoutLogRepository creates a new WorkoutLog repository.
func NewMongoWorkoutLogRepository(db *mongo.Database) repository.WorkoutLogRepository {
	return &mongoWorkoutLogRepository{
		collection: db.Collection(workoutLogCollectionName),
	}
}

// Create inserts a new workout log.
func (r *mongoWorkoutLogRepository) Create(ctx context.Context, log *domain.WorkoutLog) (primitive.ObjectID, error) {
	if log.AthleteID == primitive.NilObjectID || log.RegimenID == "" {
		return primitive.NilObjectID, errors.New("workout log requires athleteId and regimenId")
	}
	log.ID = primitive.NewObjectID()
	if log.SharedWith == nil {
		log.SharedWith = []primitive.ObjectID{}
	}
	now := time.Now().UTC()
	log.CreatedAt = now
	log.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, log)
	if err != nil {
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted workout log ID")
	}
	return insertedID, nil
}

// GetByID retrieves a single workout log by its ID.
func (r *mongoWorkoutLogRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.WorkoutLog, error) {
	var log domain.WorkoutLog
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&log)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &log, nil
}

func (r *mongoWorkoutLogRepository) find(ctx context.Context, filter bson.M, sort bson.D) ([]domain.WorkoutLog, error) {
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, err
	}
	return decodeAll[domain.WorkoutLog](ctx, cursor)
}

var newestFirst = bson.D{{Key: "createdAt", Value: -1}}

func (r *mongoWorkoutLogRepository) ListByAthlete(ctx context.Context, athleteID primitive.ObjectID) ([]domain.WorkoutLog, error) {
	return r.find(ctx, bson.M{"athleteId": athleteID}, newestFirst)
}

func (r *mongoWorkoutLogRepository) ListSharedWith(ctx context.Context, coachID primitive.ObjectID) ([]domain.WorkoutLog, error) {
	return r.find(ctx, bson.M{"sharedWith": coachID}, newestFirst)
}

func (r *mongoWorkoutLogRepository) ListAll(ctx context.Context) ([]domain.WorkoutLog, error) {
	return r.find(ctx, bson.M{}, bson.D{{Key: "_id", Value: 1}})
}

// ListCompletedByAthlete returns completed logs ordered by completion, oldest first.
func (r *mongoWorkoutLogRepository) ListCompletedByAthlete(ctx context.Context, athleteID primitive.ObjectID) ([]domain.WorkoutLog, error) {
	sort := bson.D{{Key: "completedAt", Value: 1}, {Key: "createdAt", Value: 1}}
	return r.find(ctx, bson.M{"athleteId": athleteID, "completed": true}, sort)
}

func (r *mongoWorkoutLogRepository) ListByRegimenRefs(ctx context.Context, refs []string) ([]domain.WorkoutLog, error) {
	if len(refs) == 0 {
		return []domain.WorkoutLog{}, nil
	}
	return r.find(ctx, bson.M{"regimenId": bson.M{"$in": refs}}, bson.D{{Key: "_id", Value: 1}})
}

// Update changes the athlete-editable fields. The owner filter keeps other users out.
func (r *mongoWorkoutLogRepository) Update(ctx context.Context, id, athleteID primitive.ObjectID, patch repository.WorkoutLogUpdate) error {
	set := bson.M{
		"completed":  patch.Completed,
		"notes":      patch.Notes,
		"sharedWith": patch.SharedWith,
		"updatedAt":  time.Now().UTC(),
	}
	update := bson.M{"$set": set}
	unset := bson.M{}
	if patch.CompletedAt != nil {
		set["completedAt"] = *patch.CompletedAt
	} else {
		unset["completedAt"] = ""
	}
	if patch.Effort != nil {
		set["effort"] = *patch.Effort
	} else {
		unset["effort"] = ""
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	return r.updateOwned(ctx, id, athleteID, update)
}

func (r *mongoWorkoutLogRepository) SetSharedWith(ctx context.Context, id, athleteID primitive.ObjectID, coachIDs []primitive.ObjectID) error {
	update := bson.M{"$set": bson.M{"sharedWith": coachIDs, "updatedAt": time.Now().UTC()}}
	return r.updateOwned(ctx, id, athleteID, update)
}

func (r *mongoWorkoutLogRepository) updateOwned(ctx context.Context, id, athleteID primitive.ObjectID, update bson.M) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id, "athleteId": athleteID}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// RemoveCoachFromShared strips a coach from every log's sharedWith set.
func (r *mongoWorkoutLogRepository) RemoveCoachFromShared(ctx context.Context, coachID primitive.ObjectID) (int64, error) {
	result, err := r.collection.UpdateMany(ctx,
		bson.M{"sharedWith": coachID},
		bson.M{"$pull": bson.M{"sharedWith": coachID}, "$set": bson.M{"updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}

// DistinctRegimenRefs returns every distinct non-empty regimenId referenced by a log.
func (r *mongoWorkoutLogRepository) DistinctRegimenRefs(ctx context.Context) ([]string, error) {
	values, err := r.collection.Distinct(ctx, "regimenId", bson.M{})
	if err != nil {
		return nil, err
	}
	refs := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok && s != "" {
			refs = append(refs, s)
		}
	}
	return refs, nil
}

func (r *mongoWorkoutLogRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *mongoWorkoutLogRepository) deleteMany(ctx context.Context, filter bson.M) (int64, error) {
	result, err := r.collection.DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

func (r *mongoWorkoutLogRepository) DeleteByRegimenRefs(ctx context.Context, refs []string) (int64, error) {
	if len(refs) == 0 {
		return 0, nil
	}
	return r.deleteMany(ctx, bson.M{"regimenId": bson.M{"$in": refs}})
}

func (r *mongoWorkoutLogRepository) DeleteByAthlete(ctx context.Context, athleteID primitive.ObjectID) (int64, error) {
	return r.deleteMany(ctx, bson.M{"athleteId": athleteID})
}

// EnsureWorkoutLogIndexes creates necessary indexes. Call during startup.
func EnsureWorkoutLogIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "athleteId", Value: 1}, {Key: "completedAt", Value: 1}},
			Options: options.Index(),
		},
		{
			// Orphan detection and regimen cascades
			Keys:    bson.D{{Key: "regimenId", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "sharedWith", Value: 1}},
			Options: options.Index(),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
