// internal/app/features/account/routes.go
package account

import (
	"github.com/dalemusser/tripledger/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)

	r.Get("/", h.ServeAccount)
	r.Post("/deletion", h.HandleRequestDeletion)
	r.Delete("/deletion", h.HandleCancelDeletion)
	return r
}
