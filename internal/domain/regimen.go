// internal/domain/regimen.go
package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Regimen represents a multi-day training plan authored by a coach.
// It is addressable both by its store id and by the UUID in RegimenID.
type Regimen struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty" json:"_id"`
	RegimenID   string               `bson:"id" json:"id"`               // UUID v4 generated on creation
	CreatedBy   primitive.ObjectID   `bson:"createdBy" json:"createdBy"` // Owning coach, immutable
	AssignedTo  []primitive.ObjectID `bson:"assignedTo" json:"assignedTo"`
	Name        string               `bson:"name" json:"name"`
	Description string               `bson:"description,omitempty" json:"description,omitempty"`
	Days        []RegimenDay         `bson:"days,omitempty" json:"days,omitempty"`
	CreatedAt   time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// RegimenDay is one training day within a regimen.
type RegimenDay struct {
	ID          string  `bson:"id" json:"id"`
	Title       string  `bson:"title" json:"title"`
	Description string  `bson:"description,omitempty" json:"description,omitempty"`
	Distance    float64 `bson:"distance,omitempty" json:"distance,omitempty"`     // Optional target distance
	TargetTime  string  `bson:"targetTime,omitempty" json:"targetTime,omitempty"` // Optional, "MM:SS.ms" or seconds
}

// IsAssignedTo reports whether athleteID is in the regimen's assignedTo set.
func (r *Regimen) IsAssignedTo(athleteID primitive.ObjectID) bool {
	return ContainsID(r.AssignedTo, athleteID)
}

// HasDay reports whether the regimen contains a day with the given id.
func (r *Regimen) HasDay(dayID string) bool {
	for _, d := range r.Days {
		if d.ID == dayID {
			return true
		}
	}
	return false
}

// RefIDs returns every identifier a workout log may use to reference this regimen.
func (r *Regimen) RefIDs() []string {
	refs := []string{r.ID.Hex()}
	if r.RegimenID != "" {
		refs = append(refs, r.RegimenID)
	}
	return refs
}
