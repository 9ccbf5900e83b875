package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role type to distinguish between user roles
type Role string

// Define constants for roles
const (
	RoleAdmin   Role = "admin"
	RoleCoach   Role = "coach"
	RoleAthlete Role = "athlete"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleCoach, RoleAthlete:
		return true
	}
	return false
}

// User represents a user in the system (a Coach, an Athlete or an Admin).
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"`    // Stored lower-case, unique
	PasswordHash string             `bson:"passwordHash" json:"-"` // Never expose this via JSON
	Role         Role               `bson:"role" json:"role"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`

	// --- Coach-specific ---
	// Athletes coached by this user.
	Athletes []primitive.ObjectID `bson:"athletes,omitempty" json:"athletes,omitempty"`

	// --- Athlete-specific ---
	// CoachID is the legacy single-coach field. It mirrors PrimaryCoachID.
	CoachID        *primitive.ObjectID  `bson:"coachId,omitempty" json:"coachId,omitempty"`
	PrimaryCoachID *primitive.ObjectID  `bson:"primaryCoachId,omitempty" json:"primaryCoachId,omitempty"`
	Coaches        []primitive.ObjectID `bson:"coaches,omitempty" json:"coaches,omitempty"`
	Regimens       []primitive.ObjectID `bson:"regimens,omitempty" json:"regimens,omitempty"`

	// --- Token fields for email flows ---
	InviteToken        string     `bson:"inviteToken,omitempty" json:"-"`
	InviteTokenExpires *time.Time `bson:"inviteTokenExpires,omitempty" json:"-"`
	ResetToken         string     `bson:"resetToken,omitempty" json:"-"`
	ResetTokenExpires  *time.Time `bson:"resetTokenExpires,omitempty" json:"-"`
	Pending            bool       `bson:"pending,omitempty" json:"pending,omitempty"` // Invited, has not set a password yet
}

func (u *User) IsCoach() bool {
	return u.Role == RoleCoach
}

func (u *User) IsAthlete() bool {
	return u.Role == RoleAthlete
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// HasCoach reports whether coachID is in the athlete's coaches set.
func (u *User) HasCoach(coachID primitive.ObjectID) bool {
	return ContainsID(u.Coaches, coachID)
}

// HasAthlete reports whether athleteID is in the coach's athletes set.
func (u *User) HasAthlete(athleteID primitive.ObjectID) bool {
	return ContainsID(u.Athletes, athleteID)
}

// HasRegimen reports whether regimenID is assigned to the athlete.
func (u *User) HasRegimen(regimenID primitive.ObjectID) bool {
	return ContainsID(u.Regimens, regimenID)
}

// ContainsID reports whether id is present in ids.
func ContainsID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

// RemoveID returns ids without any occurrence of id. The input slice is not modified.
func RemoveID(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, candidate := range ids {
		if candidate != id {
			out = append(out, candidate)
		}
	}
	return out
}

// AddID appends id to ids unless it is already present (set-add semantics).
func AddID(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	if ContainsID(ids, id) {
		return ids
	}
	return append(ids, id)
}
