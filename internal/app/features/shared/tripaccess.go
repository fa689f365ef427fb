// internal/app/features/shared/tripaccess.go
package shared

import (
	"errors"
	"net/http"

	apierrors "github.com/dalemusser/tripledger/internal/app/features/errors"
	"github.com/dalemusser/tripledger/internal/app/policy/trippolicy"
	"github.com/dalemusser/tripledger/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// TripAccess resolves the signed-in user's access to the {tripID} route
// parameter. On failure it has already written the response and ok is false.
// Non-members get the same 404 as unknown trips.
func TripAccess(w http.ResponseWriter, r *http.Request, trips trippolicy.TripGetter, members trippolicy.MemberGetter, errLog *apierrors.ErrorLogger) (trippolicy.Access, *auth.SessionUser, bool) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		apierrors.Unauthorized(w)
		return trippolicy.Access{}, nil, false
	}
	tripID := chi.URLParam(r, "tripID")
	if tripID == "" {
		apierrors.BadRequest(w, "trip id is required")
		return trippolicy.Access{}, nil, false
	}

	a, err := trippolicy.Load(r.Context(), trips, members, u, tripID)
	switch {
	case err == nil:
		return a, u, true
	case errors.Is(err, trippolicy.ErrNoTrip), errors.Is(err, trippolicy.ErrNotMember):
		apierrors.NotFound(w, "trip not found")
	default:
		errLog.LogServerError(w, r, "load trip access", err, "could not load trip")
	}
	return trippolicy.Access{}, nil, false
}
