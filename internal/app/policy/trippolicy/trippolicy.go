// internal/app/policy/trippolicy/trippolicy.go
package trippolicy

import (
	"context"
	"errors"

	tripmemberstore "github.com/dalemusser/tripledger/internal/app/store/tripmembers"
	tripstore "github.com/dalemusser/tripledger/internal/app/store/trips"
	"github.com/dalemusser/tripledger/internal/app/system/auth"
	"github.com/dalemusser/tripledger/internal/domain/models"
)

var (
	// ErrNoTrip means the trip does not exist.
	ErrNoTrip = errors.New("trip not found")
	// ErrNotMember means the user is neither a member nor an admin. Handlers
	// answer it like ErrNoTrip so trip ids cannot be enumerated.
	ErrNotMember = errors.New("not a member of this trip")
)

// TripGetter loads a trip by id.
type TripGetter interface {
	GetByID(ctx context.Context, id string) (models.Trip, error)
}

// MemberGetter loads one membership.
type MemberGetter interface {
	Get(ctx context.Context, tripID, userID string) (models.TripMember, error)
}

// Access is what the current user may do on one trip.
type Access struct {
	Trip    models.Trip
	Member  *models.TripMember
	IsAdmin bool
	UserID  string
}

// Role returns the user's trip role, or "" for non-members.
func (a Access) Role() string {
	if a.Member == nil {
		return ""
	}
	return a.Member.Role
}

// IsOwner reports ownership by membership role, or by the denormalized
// owner/creator fields for trips whose owner record is still missing.
func (a Access) IsOwner() bool {
	if a.Role() == models.RoleOwner {
		return true
	}
	return a.UserID != "" && (a.Trip.OwnerID == a.UserID || (a.Trip.OwnerID == "" && a.Trip.CreatedBy == a.UserID))
}

// CanRead: any member, the owner, or an admin.
func (a Access) CanRead() bool {
	return a.IsAdmin || a.Member != nil || a.IsOwner()
}

// CanWrite: owners, editors and admins. Viewers are read only.
func (a Access) CanWrite() bool {
	return a.IsAdmin || a.IsOwner() || a.Role() == models.RoleEditor
}

// CanManage covers membership changes, status changes and deletion.
func (a Access) CanManage() bool {
	return a.IsAdmin || a.IsOwner()
}

// Load resolves u's access to tripID. It returns ErrNoTrip for unknown trips
// and ErrNotMember when u may not even read it.
func Load(ctx context.Context, trips TripGetter, members MemberGetter, u *auth.SessionUser, tripID string) (Access, error) {
	t, err := trips.GetByID(ctx, tripID)
	if err != nil {
		if errors.Is(err, tripstore.ErrNotFound) {
			return Access{}, ErrNoTrip
		}
		return Access{}, err
	}

	a := Access{Trip: t, IsAdmin: u.IsAdmin, UserID: u.ID}
	m, err := members.Get(ctx, tripID, u.ID)
	switch {
	case err == nil:
		a.Member = &m
	case errors.Is(err, tripmemberstore.ErrNotFound):
	default:
		return Access{}, err
	}

	if !a.CanRead() {
		return a, ErrNotMember
	}
	return a, nil
}
