package triggers

import (
	"github.com/dalemusser/tripledger/internal/app/notify"
	"github.com/dalemusser/tripledger/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
)

// Watched collections.
const (
	ExpensesCollection    = "expenses"
	TripMembersCollection = "trip_members"
)

// changeEvent is the subset of a change stream document the watcher reads.
type changeEvent struct {
	OperationType            string   `bson:"operationType"`
	FullDocument             bson.Raw `bson:"fullDocument,omitempty"`
	FullDocumentBeforeChange bson.Raw `bson:"fullDocumentBeforeChange,omitempty"`
	UpdateDescription        struct {
		UpdatedFields bson.M `bson:"updatedFields"`
	} `bson:"updateDescription"`
}

func (c changeEvent) updated(field string) bool {
	_, ok := c.UpdateDescription.UpdatedFields[field]
	return ok
}

// skipReason explains why a change produced no event. Empty means an event
// was produced.
type skipReason string

const (
	skipNone        skipReason = ""
	skipIgnored     skipReason = "ignored"
	skipNoDocument  skipReason = "no_document"
	skipNoPreImage  skipReason = "no_preimage"
	skipUndecodable skipReason = "undecodable"
)

// toEvent converts a change on coll into a dispatchable event.
//
// Expense updates count only when updated_at moved, so maintenance writes
// that leave it alone (anonymizing a deleted submitter) stay silent.
// Membership updates count only when the role changed.
func toEvent(coll string, c changeEvent) (notify.Event, skipReason) {
	switch coll {
	case ExpensesCollection:
		return expenseEvent(c)
	case TripMembersCollection:
		return memberEvent(c)
	}
	return notify.Event{}, skipIgnored
}

func expenseEvent(c changeEvent) (notify.Event, skipReason) {
	switch c.OperationType {
	case "insert":
		var e models.Expense
		if r := decode(c.FullDocument, &e); r != skipNone {
			return notify.Event{}, r
		}
		return notify.Event{Kind: notify.ExpenseCreated, Expense: e}, skipNone

	case "update", "replace":
		if c.OperationType == "update" && !c.updated("updated_at") {
			return notify.Event{}, skipIgnored
		}
		var e models.Expense
		if r := decode(c.FullDocument, &e); r != skipNone {
			return notify.Event{}, r
		}
		if c.OperationType == "replace" && len(c.FullDocumentBeforeChange) > 0 {
			var before models.Expense
			if decode(c.FullDocumentBeforeChange, &before) == skipNone && before.UpdatedAt.Equal(e.UpdatedAt) {
				return notify.Event{}, skipIgnored
			}
		}
		return notify.Event{Kind: notify.ExpenseUpdated, Expense: e}, skipNone

	case "delete":
		if len(c.FullDocumentBeforeChange) == 0 {
			return notify.Event{}, skipNoPreImage
		}
		var e models.Expense
		if r := decode(c.FullDocumentBeforeChange, &e); r != skipNone {
			return notify.Event{}, r
		}
		return notify.Event{Kind: notify.ExpenseDeleted, Expense: e}, skipNone
	}
	return notify.Event{}, skipIgnored
}

func memberEvent(c changeEvent) (notify.Event, skipReason) {
	switch c.OperationType {
	case "insert":
		var m models.TripMember
		if r := decode(c.FullDocument, &m); r != skipNone {
			return notify.Event{}, r
		}
		return notify.Event{Kind: notify.MemberAdded, Member: m}, skipNone

	case "update":
		if !c.updated("role") {
			return notify.Event{}, skipIgnored
		}
		var m models.TripMember
		if r := decode(c.FullDocument, &m); r != skipNone {
			return notify.Event{}, r
		}
		ev := notify.Event{Kind: notify.MemberRoleChanged, Member: m}
		if len(c.FullDocumentBeforeChange) > 0 {
			var before models.TripMember
			if decode(c.FullDocumentBeforeChange, &before) == skipNone {
				ev.PrevRole = before.Role
			}
		}
		return ev, skipNone

	case "delete":
		if len(c.FullDocumentBeforeChange) == 0 {
			return notify.Event{}, skipNoPreImage
		}
		var m models.TripMember
		if r := decode(c.FullDocumentBeforeChange, &m); r != skipNone {
			return notify.Event{}, r
		}
		return notify.Event{Kind: notify.MemberRemoved, Member: m}, skipNone
	}
	return notify.Event{}, skipIgnored
}

func decode(raw bson.Raw, v interface{}) skipReason {
	if len(raw) == 0 {
		return skipNoDocument
	}
	if err := bson.Unmarshal(raw, v); err != nil {
		return skipUndecodable
	}
	return skipNone
}
