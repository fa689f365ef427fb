// internal/app/features/expenses/routes.go
package expenses

import (
	"github.com/dalemusser/tripledger/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes is mounted at /api/trips/{tripID}/expenses.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)

	r.Get("/", h.ServeList)
	r.Post("/", h.HandleCreate)
	r.Get("/{expenseID}", h.ServeExpense)
	r.Put("/{expenseID}", h.HandleUpdate)
	r.Delete("/{expenseID}", h.HandleDelete)
	return r
}
