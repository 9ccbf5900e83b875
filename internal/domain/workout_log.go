package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WorkoutLog is an athlete's record of completing one regimen day.
type WorkoutLog struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	AthleteID   primitive.ObjectID   `bson:"athleteId" json:"athleteId"` // Owner, immutable
	RegimenID   string               `bson:"regimenId" json:"regimenId"` // Weak reference: regimen UUID or store id
	DayID       string               `bson:"dayId" json:"dayId"`
	Completed   bool                 `bson:"completed" json:"completed"`
	CompletedAt *time.Time           `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	Notes       string               `bson:"notes,omitempty" json:"notes,omitempty"`
	Effort      *int                 `bson:"effort,omitempty" json:"effort,omitempty"` // Perceived effort 1-10
	SharedWith  []primitive.ObjectID `bson:"sharedWith" json:"sharedWith"`             // Never contains AthleteID
	CreatedAt   time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// IsSharedWith reports whether the log has been shared with coachID.
func (l *WorkoutLog) IsSharedWith(coachID primitive.ObjectID) bool {
	return ContainsID(l.SharedWith, coachID)
}

// CompletionTime returns the time the workout counts as completed.
func (l *WorkoutLog) CompletionTime() time.Time {
	if l.CompletedAt != nil {
		return *l.CompletedAt
	}
	return l.CreatedAt
}
