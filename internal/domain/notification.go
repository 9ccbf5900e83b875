package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationType classifies notification records.
type NotificationType string

const (
	NotificationCoachLinked     NotificationType = "coach_linked"
	NotificationCoachRemoved    NotificationType = "coach_removed"
	NotificationRegimenAssigned NotificationType = "regimen_assigned"
	NotificationRegimenRemoved  NotificationType = "regimen_unassigned"
	NotificationWorkoutShared   NotificationType = "workout_shared"
)

// Notification is a message stored for a user and optionally pushed in real time.
type Notification struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	User      primitive.ObjectID `bson:"user" json:"user"`
	Title     string             `bson:"title" json:"title"`
	Message   string             `bson:"message" json:"message"`
	Type      NotificationType   `bson:"type" json:"type"`
	RelatedID string             `bson:"relatedId,omitempty" json:"relatedId,omitempty"`
	Read      bool               `bson:"read" json:"read"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}
