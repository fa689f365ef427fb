// internal/domain/models/user.go
package models

import "time"

// User status values.
const (
	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
)

// DeletedUserName replaces the display name of purged accounts.
const DeletedUserName = "Deleted User"

// User is keyed by the identity provider's stable id. Admin-provisioned users
// are stored under a surrogate id with Provisioned set until their first login
// re-keys them.
type User struct {
	ID          string `bson:"_id" json:"id"`
	Email       string `bson:"email" json:"email"`
	EmailCI     string `bson:"email_ci" json:"-"`
	DisplayName string `bson:"display_name" json:"display_name"`
	PhotoURL    string `bson:"photo_url,omitempty" json:"photo_url,omitempty"`
	IsAdmin     bool   `bson:"is_admin" json:"is_admin"`
	Status      string `bson:"status" json:"status"` // active | inactive
	Provisioned bool   `bson:"provisioned,omitempty" json:"provisioned,omitempty"`
	CreatedBy   string `bson:"created_by,omitempty" json:"created_by,omitempty"`

	CreatedAt         time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `bson:"updated_at" json:"updated_at"`
	LastLoginAt       *time.Time `bson:"last_login_at,omitempty" json:"last_login_at,omitempty"`
	DeleteRequestedAt *time.Time `bson:"delete_requested_at,omitempty" json:"delete_requested_at,omitempty"`
	DeletedAt         *time.Time `bson:"deleted_at,omitempty" json:"deleted_at,omitempty"`
}
