// internal/app/features/members/routes.go
package members

import (
	"github.com/dalemusser/tripledger/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes is mounted at /api/trips/{tripID}/members.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)

	r.Get("/", h.ServeList)
	r.Post("/", h.HandleAdd)
	r.Delete("/invites", h.HandleRevokeInvite)
	r.Patch("/{userID}", h.HandleChangeRole)
	r.Delete("/{userID}", h.HandleRemove)
	return r
}
