// internal/domain/models/tripinvite.go
package models

import "time"

// TripInvite is a pending membership for someone who has not signed in yet.
// It is claimed by email at the invitee's first login and then deleted.
type TripInvite struct {
	ID          string    `bson:"_id" json:"id"`
	TripID      string    `bson:"trip_id" json:"trip_id"`
	Email       string    `bson:"email" json:"email"`
	EmailCI     string    `bson:"email_ci" json:"-"`
	Role        string    `bson:"role" json:"role"`
	DisplayName string    `bson:"display_name,omitempty" json:"display_name,omitempty"`
	InvitedBy   string    `bson:"invited_by" json:"invited_by"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
}
