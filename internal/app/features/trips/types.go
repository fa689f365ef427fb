package trips

import (
	"time"

	"github.com/dalemusser/tripledger/internal/domain/models"
)

// tripInput is the body of create and update requests. Nil fields are left
// unchanged on update.
type tripInput struct {
	Name             *string    `json:"name"`
	Description      *string    `json:"description"`
	StartDate        *time.Time `json:"start_date"`
	EndDate          *time.Time `json:"end_date"`
	Currency         *string    `json:"currency"`
	CustomCurrencies []string   `json:"custom_currencies"`
}

type statusInput struct {
	Status string `json:"status"`
}

// tripView is a trip plus the caller's role on it.
type tripView struct {
	models.Trip
	Role string `json:"role,omitempty"`
}

type listResponse struct {
	Trips []tripView `json:"trips"`
}
