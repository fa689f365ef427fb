// internal/domain/models/trip.go
package models

import "time"

// Trip status values.
const (
	TripStatusActive   = "active"
	TripStatusInactive = "inactive"
)

// Trip is a shared expense-tracking context with members and a date range.
//
// OwnerID and MemberCount are denormalized from trip_members. Readers must
// tolerate them lagging behind the membership collection.
type Trip struct {
	ID               string    `bson:"_id" json:"id"`
	Name             string    `bson:"name" json:"name"`
	Description      string    `bson:"description,omitempty" json:"description,omitempty"`
	StartDate        time.Time `bson:"start_date" json:"start_date"`
	EndDate          time.Time `bson:"end_date" json:"end_date"`
	Status           string    `bson:"status" json:"status"` // active | inactive
	Currency         string    `bson:"currency" json:"currency"`
	CustomCurrencies []string  `bson:"custom_currencies,omitempty" json:"custom_currencies,omitempty"`
	CreatedBy        string    `bson:"created_by" json:"created_by"`
	OwnerID          string    `bson:"owner_id,omitempty" json:"owner_id,omitempty"`
	MemberCount      *int      `bson:"member_count,omitempty" json:"member_count,omitempty"`
	CreatedAt        time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time `bson:"updated_at" json:"updated_at"`
}
