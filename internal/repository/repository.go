package repository

import (
	"coachshare/backend/internal/domain"
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Error constants for repository layer
var (
	ErrNotFound  = RepositoryError("not found")
	ErrDuplicate = RepositoryError("duplicate key")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// CoachLink describes one write to the athlete side of a coach-athlete link.
type CoachLink struct {
	AthleteID primitive.ObjectID
	CoachID   primitive.ObjectID
	// Primary, when non-nil, becomes primaryCoachId and the legacy coachId.
	Primary *primitive.ObjectID
	// ClearPrimary unsets primaryCoachId and coachId. Ignored when Primary is set.
	ClearPrimary bool
}

// UserRepository defines the interface for interacting with user data.
// Relationship sets are only ever changed with set-add / set-remove semantics.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
	GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]domain.User, error)
	GetByInviteToken(ctx context.Context, token string) (*domain.User, error)
	GetByResetToken(ctx context.Context, token string) (*domain.User, error)
	ListByRole(ctx context.Context, role domain.Role) ([]domain.User, error)

	// Athlete side of the coach link.
	AddCoachToAthlete(ctx context.Context, link CoachLink) error
	RemoveCoachFromAthlete(ctx context.Context, link CoachLink) error
	SetPrimaryCoach(ctx context.Context, athleteID primitive.ObjectID, coachID *primitive.ObjectID) error

	// Coach side of the coach link.
	AddAthleteToCoach(ctx context.Context, coachID, athleteID primitive.ObjectID) error
	RemoveAthleteFromCoach(ctx context.Context, coachID, athleteID primitive.ObjectID) error

	// Athlete side of the regimen assignment link.
	AddRegimenToAthlete(ctx context.Context, athleteID, regimenID primitive.ObjectID) error
	RemoveRegimenFromAthlete(ctx context.Context, athleteID, regimenID primitive.ObjectID) error
	RemoveRegimenFromAllAthletes(ctx context.Context, regimenID primitive.ObjectID) (int64, error)

	SetInviteToken(ctx context.Context, id primitive.ObjectID, token string, expires *time.Time) error
	SetResetToken(ctx context.Context, id primitive.ObjectID, token string, expires *time.Time) error
	CompleteInvitation(ctx context.Context, id primitive.ObjectID, name, passwordHash string) error
	UpdatePassword(ctx context.Context, id primitive.ObjectID, passwordHash string) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// RegimenUpdate holds the mutable fields of a regimen.
type RegimenUpdate struct {
	Name        string
	Description string
	Days        []domain.RegimenDay
}

// RegimenRepository defines the interface for interacting with regimen data.
type RegimenRepository interface {
	Create(ctx context.Context, regimen *domain.Regimen) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Regimen, error)
	// GetByRef resolves either the UUID or the hex store id.
	GetByRef(ctx context.Context, ref string) (*domain.Regimen, error)
	ListByCreator(ctx context.Context, coachID primitive.ObjectID) ([]domain.Regimen, error)
	ListAssignedTo(ctx context.Context, athleteID primitive.ObjectID) ([]domain.Regimen, error)
	ListAll(ctx context.Context) ([]domain.Regimen, error)
	// Update applies the patch only when coachID owns the regimen.
	Update(ctx context.Context, id, coachID primitive.ObjectID, patch RegimenUpdate) error
	AddAssignee(ctx context.Context, id, athleteID primitive.ObjectID) error
	RemoveAssignee(ctx context.Context, id, athleteID primitive.ObjectID) error
	RemoveAssigneeFromAll(ctx context.Context, athleteID primitive.ObjectID) (int64, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// WorkoutLogUpdate holds the fields an athlete may change on a log.
type WorkoutLogUpdate struct {
	Completed   bool
	CompletedAt *time.Time
	Notes       string
	Effort      *int
	SharedWith  []primitive.ObjectID
}

// WorkoutLogRepository defines the interface for interacting with workout logs.
type WorkoutLogRepository interface {
	Create(ctx context.Context, log *domain.WorkoutLog) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.WorkoutLog, error)
	ListByAthlete(ctx context.Context, athleteID primitive.ObjectID) ([]domain.WorkoutLog, error)
	ListSharedWith(ctx context.Context, coachID primitive.ObjectID) ([]domain.WorkoutLog, error)
	ListAll(ctx context.Context) ([]domain.WorkoutLog, error)
	// ListCompletedByAthlete returns completed logs sorted by completion time, oldest first.
	ListCompletedByAthlete(ctx context.Context, athleteID primitive.ObjectID) ([]domain.WorkoutLog, error)
	ListByRegimenRefs(ctx context.Context, refs []string) ([]domain.WorkoutLog, error)
	// Update applies the patch only when athleteID owns the log.
	Update(ctx context.Context, id, athleteID primitive.ObjectID, patch WorkoutLogUpdate) error
	SetSharedWith(ctx context.Context, id, athleteID primitive.ObjectID, coachIDs []primitive.ObjectID) error
	RemoveCoachFromShared(ctx context.Context, coachID primitive.ObjectID) (int64, error)
	DistinctRegimenRefs(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	DeleteByRegimenRefs(ctx context.Context, refs []string) (int64, error)
	DeleteByAthlete(ctx context.Context, athleteID primitive.ObjectID) (int64, error)
}

// NotificationRepository defines the interface for stored notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) (primitive.ObjectID, error)
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]domain.Notification, error)
	MarkRead(ctx context.Context, id, userID primitive.ObjectID) error
	MarkAllRead(ctx context.Context, userID primitive.ObjectID) (int64, error)
	DeleteByUser(ctx context.Context, userID primitive.ObjectID) (int64, error)
}
