// internal/domain/models/notification.go
package models

import "time"

// Notification types.
const (
	NotifyExpenseAdded      = "expense_added"
	NotifyExpenseUpdated    = "expense_updated"
	NotifyExpenseDeleted    = "expense_deleted"
	NotifyMemberAdded       = "trip_member_added"
	NotifyMemberRemoved     = "trip_member_removed"
	NotifyMemberRoleChanged = "trip_member_role_changed"
)

// Notification is one message addressed to one recipient.
// Only IsRead changes after insert. DedupKey is unique when present so a
// redelivered event cannot produce a second copy.
type Notification struct {
	ID          string    `bson:"_id" json:"id"`
	UserID      string    `bson:"user_id" json:"user_id"`
	Type        string    `bson:"type" json:"type"`
	TripID      string    `bson:"trip_id" json:"trip_id"`
	TripName    string    `bson:"trip_name" json:"trip_name"` // snapshot at creation
	RelatedID   string    `bson:"related_id" json:"related_id"`
	RelatedName string    `bson:"related_name" json:"related_name"`
	Message     string    `bson:"message" json:"message"`
	IsRead      bool      `bson:"is_read" json:"is_read"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
	ActorID     string    `bson:"actor_id" json:"actor_id"`
	ActorName   string    `bson:"actor_name" json:"actor_name"`
	ActorEmail  string    `bson:"actor_email,omitempty" json:"actor_email,omitempty"`
	DedupKey    string    `bson:"dedup_key,omitempty" json:"-"`
}

// NotificationStats summarizes a recipient's notifications.
type NotificationStats struct {
	Total  int            `json:"total"`
	Unread int            `json:"unread"`
	ByType map[string]int `json:"by_type"`
	ByTrip map[string]int `json:"by_trip"`
}
