package mongo

import (
	"coachshare/backend/internal/domain"
	"coachshare/backend/internal/repository"
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const userCollectionName = "users"

// mongoUserRepository implements the repository.UserRepository interface using MongoDB.
type mongoUserRepository struct {
	collection *mongo.Collection
}

// NewMongoUserRepository creates a new instance of mongoUserRepository.
// It expects a connected *mongo.Database instance.
func NewMongoUserRepository(db *mongo.Database) repository.UserRepository {
	return &mongoUserRepository{
		collection: db.Collection(userCollectionName),
	}
}

// Create inserts a new user into the database.
func (r *mongoUserRepository) Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error) {
	if user.Email == "" || user.Role == "" {
		return primitive.NilObjectID, errors.New("user email and role are required")
	}

	user.ID = primitive.NewObjectID()
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}
	return insertedID, nil
}

func (r *mongoUserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var user domain.User
	err := r.collection.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetByEmail retrieves a user by their email address, case-insensitively.
func (r *mongoUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))})
}

// GetByID retrieves a user by their MongoDB ObjectID.
func (r *mongoUserRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// GetByIDs retrieves every user whose id is in ids. Missing ids are skipped.
func (r *mongoUserRepository) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]domain.User, error) {
	if len(ids) == 0 {
		return []domain.User{}, nil
	}
	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	return decodeAll[domain.User](ctx, cursor)
}

func (r *mongoUserRepository) GetByInviteToken(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, repository.ErrNotFound
	}
	return r.findOne(ctx, bson.M{"inviteToken": token})
}

func (r *mongoUserRepository) GetByResetToken(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, repository.ErrNotFound
	}
	return r.findOne(ctx, bson.M{"resetToken": token})
}

// ListByRole returns all users with the given role, oldest first.
func (r *mongoUserRepository) ListByRole(ctx context.Context, role domain.Role) ([]domain.User, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"role": role}, findOptions)
	if err != nil {
		return nil, err
	}
	return decodeAll[domain.User](ctx, cursor)
}

// updateOne runs update against a single user and maps a zero match to ErrNotFound.
func (r *mongoUserRepository) updateOne(ctx context.Context, filter, update bson.M) error {
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	// ModifiedCount is 0 when the set already held the value, which is fine.
	return nil
}

// primarySetter returns the $set / $unset fragments for a primary coach change.
func primarySetter(link repository.CoachLink, set bson.M) bson.M {
	if link.Primary != nil {
		set["primaryCoachId"] = *link.Primary
		set["coachId"] = *link.Primary
		return nil
	}
	if link.ClearPrimary {
		return bson.M{"primaryCoachId": "", "coachId": ""}
	}
	return nil
}

// AddCoachToAthlete adds the coach to the athlete's coaches set, optionally moving the primary pointer.
func (r *mongoUserRepository) AddCoachToAthlete(ctx context.Context, link repository.CoachLink) error {
	set := bson.M{"updatedAt": time.Now().UTC()}
	unset := primarySetter(link, set)
	update := bson.M{
		"$addToSet": bson.M{"coaches": link.CoachID},
		"$set":      set,
	}
	if unset != nil {
		update["$unset"] = unset
	}
	return r.updateOne(ctx, bson.M{"_id": link.AthleteID, "role": domain.RoleAthlete}, update)
}

// RemoveCoachFromAthlete pulls the coach from the athlete's coaches set in the same write as the primary change.
func (r *mongoUserRepository) RemoveCoachFromAthlete(ctx context.Context, link repository.CoachLink) error {
	set := bson.M{"updatedAt": time.Now().UTC()}
	unset := primarySetter(link, set)
	update := bson.M{
		"$pull": bson.M{"coaches": link.CoachID},
		"$set":  set,
	}
	if unset != nil {
		update["$unset"] = unset
	}
	return r.updateOne(ctx, bson.M{"_id": link.AthleteID, "role": domain.RoleAthlete}, update)
}

// SetPrimaryCoach sets (or, with nil, clears) primaryCoachId and its legacy coachId mirror.
func (r *mongoUserRepository) SetPrimaryCoach(ctx context.Context, athleteID primitive.ObjectID, coachID *primitive.ObjectID) error {
	var update bson.M
	if coachID == nil {
		update = bson.M{
			"$unset": bson.M{"primaryCoachId": "", "coachId": ""},
			"$set":   bson.M{"updatedAt": time.Now().UTC()},
		}
	} else {
		update = bson.M{"$set": bson.M{
			"primaryCoachId": *coachID,
			"coachId":        *coachID,
			"updatedAt":      time.Now().UTC(),
		}}
	}
	return r.updateOne(ctx, bson.M{"_id": athleteID, "role": domain.RoleAthlete}, update)
}

// AddAthleteToCoach adds an athlete's ID to a coach's athletes set.
func (r *mongoUserRepository) AddAthleteToCoach(ctx context.Context, coachID, athleteID primitive.ObjectID) error {
	update := bson.M{
		"$addToSet": bson.M{"athletes": athleteID}, // $addToSet prevents duplicates
		"$set":      bson.M{"updatedAt": time.Now().UTC()},
	}
	return r.updateOne(ctx, bson.M{"_id": coachID, "role": domain.RoleCoach}, update)
}

func (r *mongoUserRepository) RemoveAthleteFromCoach(ctx context.Context, coachID, athleteID primitive.ObjectID) error {
	update := bson.M{
		"$pull": bson.M{"athletes": athleteID},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	}
	return r.updateOne(ctx, bson.M{"_id": coachID, "role": domain.RoleCoach}, update)
}

func (r *mongoUserRepository) AddRegimenToAthlete(ctx context.Context, athleteID, regimenID primitive.ObjectID) error {
	update := bson.M{
		"$addToSet": bson.M{"regimens": regimenID},
		"$set":      bson.M{"updatedAt": time.Now().UTC()},
	}
	return r.updateOne(ctx, bson.M{"_id": athleteID, "role": domain.RoleAthlete}, update)
}

func (r *mongoUserRepository) RemoveRegimenFromAthlete(ctx context.Context, athleteID, regimenID primitive.ObjectID) error {
	update := bson.M{
		"$pull": bson.M{"regimens": regimenID},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	}
	return r.updateOne(ctx, bson.M{"_id": athleteID, "role": domain.RoleAthlete}, update)
}

// RemoveRegimenFromAllAthletes pulls the regimen from every athlete holding it.
func (r *mongoUserRepository) RemoveRegimenFromAllAthletes(ctx context.Context, regimenID primitive.ObjectID) (int64, error) {
	result, err := r.collection.UpdateMany(ctx,
		bson.M{"regimens": regimenID},
		bson.M{
			"$pull": bson.M{"regimens": regimenID},
			"$set":  bson.M{"updatedAt": time.Now().UTC()},
		},
	)
	if err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}

// tokenUpdate sets token fields, or unsets them when token is empty.
func tokenUpdate(tokenField, expiresField, token string, expires *time.Time) bson.M {
	if token == "" {
		return bson.M{
			"$unset": bson.M{tokenField: "", expiresField: ""},
			"$set":   bson.M{"updatedAt": time.Now().UTC()},
		}
	}
	set := bson.M{tokenField: token, "updatedAt": time.Now().UTC()}
	if expires != nil {
		set[expiresField] = *expires
	}
	return bson.M{"$set": set}
}

func (r *mongoUserRepository) SetInviteToken(ctx context.Context, id primitive.ObjectID, token string, expires *time.Time) error {
	return r.updateOne(ctx, bson.M{"_id": id}, tokenUpdate("inviteToken", "inviteTokenExpires", token, expires))
}

func (r *mongoUserRepository) SetResetToken(ctx context.Context, id primitive.ObjectID, token string, expires *time.Time) error {
	return r.updateOne(ctx, bson.M{"_id": id}, tokenUpdate("resetToken", "resetTokenExpires", token, expires))
}

// CompleteInvitation stores the chosen credentials and clears the invitation.
func (r *mongoUserRepository) CompleteInvitation(ctx context.Context, id primitive.ObjectID, name, passwordHash string) error {
	update := bson.M{
		"$set": bson.M{
			"name":         name,
			"passwordHash": passwordHash,
			"updatedAt":    time.Now().UTC(),
		},
		"$unset": bson.M{"inviteToken": "", "inviteTokenExpires": "", "pending": ""},
	}
	return r.updateOne(ctx, bson.M{"_id": id}, update)
}

// UpdatePassword replaces the password hash and clears any reset token.
func (r *mongoUserRepository) UpdatePassword(ctx context.Context, id primitive.ObjectID, passwordHash string) error {
	update := bson.M{
		"$set":   bson.M{"passwordHash": passwordHash, "updatedAt": time.Now().UTC()},
		"$unset": bson.M{"resetToken": "", "resetTokenExpires": ""},
	}
	return r.updateOne(ctx, bson.M{"_id": id}, update)
}

func (r *mongoUserRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureUserIndexes creates necessary indexes for the users collection.
// Call this once during application startup.
func EnsureUserIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "role", Value: 1}},
			Options: options.Index(),
		},
		{
			// Reverse lookups used by reconciliation and cascades
			Keys:    bson.D{{Key: "coaches", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "regimens", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "inviteToken", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "resetToken", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
