package notify

import (
	"fmt"
	"strconv"

	"github.com/dalemusser/tripledger/internal/domain/models"
)

// defaultActor stands in for a missing actor name.
const defaultActor = "Someone"

// MessageData carries the fields a template may interpolate. Fields a type
// does not use are ignored.
type MessageData struct {
	ActorName   string
	ExpenseItem string
	Amount      float64
	Currency    string
	MemberName  string
	TripName    string
	NewRole     string
}

// Synthesize renders the message for a notification type. It never fails;
// unknown types get a generic message.
func Synthesize(kind string, d MessageData) string {
	actor := d.ActorName
	if actor == "" {
		actor = defaultActor
	}

	switch kind {
	case models.NotifyExpenseAdded:
		return fmt.Sprintf(`%s added expense item "%s" (%s %s)`, actor, d.ExpenseItem, formatAmount(d.Amount), d.Currency)
	case models.NotifyExpenseUpdated:
		return fmt.Sprintf(`%s updated expense item "%s"`, actor, d.ExpenseItem)
	case models.NotifyExpenseDeleted:
		return fmt.Sprintf(`%s deleted expense item "%s"`, actor, d.ExpenseItem)
	case models.NotifyMemberAdded:
		return fmt.Sprintf(`%s was added to trip "%s"`, d.MemberName, d.TripName)
	case models.NotifyMemberRemoved:
		return fmt.Sprintf("%s was removed from the trip", d.MemberName)
	case models.NotifyMemberRoleChanged:
		return fmt.Sprintf("%s's role was changed to %s", d.MemberName, d.NewRole)
	default:
		return fmt.Sprintf("%s performed an action on the trip", actor)
	}
}

// formatAmount prints the shortest exact decimal: 500, 12.5, 0.1.
func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
