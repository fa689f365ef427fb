package notify

import "github.com/dalemusser/tripledger/internal/domain/models"

// Kind names a trigger: which record changed and how.
type Kind string

const (
	ExpenseCreated    Kind = "expense_created"
	ExpenseUpdated    Kind = "expense_updated"
	ExpenseDeleted    Kind = "expense_deleted"
	MemberAdded       Kind = "member_added"
	MemberRemoved     Kind = "member_removed"
	MemberRoleChanged Kind = "member_role_changed"
)

// Actor is who caused an event. A zero Actor means unknown.
type Actor struct {
	ID    string
	Name  string
	Email string
}

// SystemActor is used when a removal cannot be attributed to a user.
var SystemActor = Actor{ID: "system", Name: "System"}

// Event is one mutation to dispatch. Expense holds the created, updated or
// removed expense; Member the created, removed or re-roled membership.
type Event struct {
	Kind     Kind
	Expense  models.Expense
	Member   models.TripMember
	PrevRole string
	Actor    Actor
}

// TripID returns the trip the event belongs to.
func (e Event) TripID() string {
	switch e.Kind {
	case ExpenseCreated, ExpenseUpdated, ExpenseDeleted:
		return e.Expense.TripID
	default:
		return e.Member.TripID
	}
}
