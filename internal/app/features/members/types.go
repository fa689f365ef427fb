package members

import "github.com/dalemusser/tripledger/internal/domain/models"

type addInput struct {
	Email       string `json:"email"`
	Role        string `json:"role"`
	DisplayName string `json:"display_name"`
}

type roleInput struct {
	Role string `json:"role"`
}

type listResponse struct {
	Members []models.TripMember `json:"members"`
	Invites []models.TripInvite `json:"invites,omitempty"`
}

// addResponse carries either the new membership or, for someone without an
// account yet, the pending invite.
type addResponse struct {
	Member *models.TripMember `json:"member,omitempty"`
	Invite *models.TripInvite `json:"invite,omitempty"`
}
