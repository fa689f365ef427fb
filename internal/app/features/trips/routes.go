// internal/app/features/trips/routes.go
package trips

import (
	"github.com/dalemusser/tripledger/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)

	r.Get("/", h.ServeList)
	r.Post("/", h.HandleCreate)

	r.Get("/{tripID}", h.ServeTrip)
	r.Patch("/{tripID}", h.HandleUpdate)
	r.Post("/{tripID}/status", h.HandleStatus)
	r.Delete("/{tripID}", h.HandleDelete)
	return r
}
