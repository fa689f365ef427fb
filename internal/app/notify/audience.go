package notify

import (
	"context"

	"github.com/dalemusser/tripledger/internal/domain/models"
)

// MemberLister reads a trip's membership records.
type MemberLister interface {
	ListByTrip(ctx context.Context, tripID string) ([]models.TripMember, error)
}

// Recipient is one member who should hear about an event.
type Recipient struct {
	UserID      string
	DisplayName string
	Email       string
}

// Resolver computes notification audiences.
type Resolver struct {
	members MemberLister
}

func NewResolver(members MemberLister) *Resolver {
	return &Resolver{members: members}
}

// Resolve returns every member of the trip except excludedUserID, at most
// once per user id. Order is not significant.
func (r *Resolver) Resolve(ctx context.Context, tripID, excludedUserID string) ([]Recipient, error) {
	members, err := r.members.ListByTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}
	out := make([]Recipient, 0, len(members))
	seen := make(map[string]bool, len(members))
	for _, m := range members {
		if m.UserID == "" || m.UserID == excludedUserID || seen[m.UserID] {
			continue
		}
		seen[m.UserID] = true
		out = append(out, Recipient{UserID: m.UserID, DisplayName: m.DisplayName, Email: m.Email})
	}
	return out, nil
}
