// internal/app/features/notifications/routes.go
package notifications

import (
	"github.com/dalemusser/tripledger/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)

	r.Get("/", h.ServeList)
	r.Get("/unread", h.ServeUnread)
	r.Get("/stats", h.ServeStats)
	r.Get("/ws", h.Push.ServeWS)

	r.Post("/read-all", h.HandleMarkAllRead)
	r.Post("/{id}/read", h.HandleMarkRead)

	r.Delete("/read", h.HandleDeleteRead)
	r.Delete("/trips/{tripID}", h.HandleDeleteByTrip)
	r.Delete("/{id}", h.HandleDelete)
	return r
}
