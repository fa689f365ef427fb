// internal/domain/models/tripmember.go
package models

import "time"

// Trip roles.
const (
	RoleOwner  = "owner"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)

// ValidRole reports whether r is one of the trip roles.
func ValidRole(r string) bool {
	switch r {
	case RoleOwner, RoleEditor, RoleViewer:
		return true
	}
	return false
}

// TripMember binds a user to a trip with a role.
// One document per (trip_id, user_id). Legacy records may carry a derived
// email-based identifier in UserID until the login reconciler migrates them.
type TripMember struct {
	ID          string    `bson:"_id" json:"id"` // "<trip_id>:<user_id>"
	TripID      string    `bson:"trip_id" json:"trip_id"`
	UserID      string    `bson:"user_id" json:"user_id"`
	Role        string    `bson:"role" json:"role"` // owner | editor | viewer
	DisplayName string    `bson:"display_name" json:"display_name"`
	Email       string    `bson:"email" json:"email"`
	PhotoURL    string    `bson:"photo_url,omitempty" json:"photo_url,omitempty"`
	JoinedAt    time.Time `bson:"joined_at" json:"joined_at"`
	AddedBy     string    `bson:"added_by" json:"added_by"`
	UpdatedAt   time.Time `bson:"updated_at" json:"updated_at"`
	UpdatedBy   string    `bson:"updated_by,omitempty" json:"updated_by,omitempty"`
}

// MemberKey builds the document id for a membership record.
func MemberKey(tripID, userID string) string {
	return tripID + ":" + userID
}
