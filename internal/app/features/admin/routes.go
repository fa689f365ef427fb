// internal/app/features/admin/routes.go
package admin

import (
	"github.com/dalemusser/tripledger/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireAdmin)

	r.Post("/resync-photos", h.HandleResyncPhotos)
	r.Post("/users", h.HandleProvisionUser)
	r.Post("/sweep", h.HandleSweep)
	return r
}
