package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dalemusser/tripledger/internal/app/system/htmlsanitize"
	"github.com/dalemusser/tripledger/internal/app/system/metrics"
	"github.com/dalemusser/tripledger/internal/domain/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// TripGetter loads the trip an event belongs to.
type TripGetter interface {
	GetByID(ctx context.Context, id string) (models.Trip, error)
}

// UserGetter looks up the actor of a member-added event.
type UserGetter interface {
	GetByID(ctx context.Context, id string) (models.User, error)
}

// Inserter stores one notification. inserted is false when a notification
// with the same dedup key already exists.
type Inserter interface {
	Insert(ctx context.Context, n models.Notification) (inserted bool, err error)
}

// maxParallelWrites bounds concurrent notification inserts per event.
const maxParallelWrites = 16

// Result reports the outcome of one dispatch.
type Result struct {
	Aborted    bool // trip missing or unreadable; nothing was written
	Recipients int
	Delivered  int
	Duplicates int
	Failed     int
}

// Dispatcher turns expense and membership mutations into notifications.
type Dispatcher struct {
	trips    TripGetter
	users    UserGetter
	resolver *Resolver
	sink     Inserter
	log      *zap.Logger
	now      func() time.Time
}

func NewDispatcher(trips TripGetter, members MemberLister, users UserGetter, sink Inserter, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		trips:    trips,
		users:    users,
		resolver: NewResolver(members),
		sink:     sink,
		log:      log,
		now:      time.Now,
	}
}

// Dispatch routes ev to the handler for its kind.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) (Result, error) {
	switch ev.Kind {
	case ExpenseCreated:
		return d.ExpenseCreated(ctx, ev.Expense)
	case ExpenseUpdated:
		return d.ExpenseUpdated(ctx, ev.Expense, ev.Actor)
	case ExpenseDeleted:
		return d.ExpenseDeleted(ctx, ev.Expense, ev.Actor)
	case MemberAdded:
		return d.MemberAdded(ctx, ev.Member)
	case MemberRemoved:
		return d.MemberRemoved(ctx, ev.Member, ev.Actor)
	case MemberRoleChanged:
		return d.MemberRoleChanged(ctx, ev.Member, ev.PrevRole, ev.Actor)
	}
	return Result{}, fmt.Errorf("unknown event kind %q", ev.Kind)
}

// ExpenseCreated notifies every member except the submitter.
func (d *Dispatcher) ExpenseCreated(ctx context.Context, e models.Expense) (Result, error) {
	actor := Actor{ID: e.SubmittedBy, Name: e.SubmittedByName, Email: e.SubmittedByEmail}
	return d.expense(ctx, models.NotifyExpenseAdded, e, actor, "created")
}

// ExpenseUpdated notifies every member except whoever made the edit.
func (d *Dispatcher) ExpenseUpdated(ctx context.Context, e models.Expense, actor Actor) (Result, error) {
	if actor.ID == "" {
		actor = editorOf(e)
	}
	return d.expense(ctx, models.NotifyExpenseUpdated, e, actor, versionOf(e.UpdatedAt))
}

// ExpenseDeleted notifies every member except the deleter. When the deleter
// is unknown the last editor (or submitter) is assumed.
func (d *Dispatcher) ExpenseDeleted(ctx context.Context, e models.Expense, actor Actor) (Result, error) {
	if actor.ID == "" {
		actor = editorOf(e)
	}
	return d.expense(ctx, models.NotifyExpenseDeleted, e, actor, "deleted")
}

func editorOf(e models.Expense) Actor {
	if e.UpdatedBy != "" {
		return Actor{ID: e.UpdatedBy, Name: e.UpdatedByName, Email: e.UpdatedByEmail}
	}
	return Actor{ID: e.SubmittedBy, Name: e.SubmittedByName, Email: e.SubmittedByEmail}
}

func (d *Dispatcher) expense(ctx context.Context, kind string, e models.Expense, actor Actor, version string) (Result, error) {
	trip, ok := d.loadTrip(ctx, e.TripID, kind)
	if !ok {
		return Result{Aborted: true}, nil
	}
	recipients, err := d.resolver.Resolve(ctx, trip.ID, actor.ID)
	if err != nil {
		return Result{}, fmt.Errorf("resolve audience for trip %s: %w", trip.ID, err)
	}

	item := htmlsanitize.PlainText(e.Item)
	msg := Synthesize(kind, MessageData{
		ActorName:   htmlsanitize.PlainText(actor.Name),
		ExpenseItem: item,
		Amount:      e.Amount,
		Currency:    e.Currency,
	})
	tmpl := d.base(kind, trip, actor)
	tmpl.RelatedID = e.ID
	tmpl.RelatedName = item
	tmpl.Message = msg

	return d.fanOut(ctx, tmpl, recipients, e.ID, version)
}

// MemberAdded tells the new member they joined. A creator adding
// themselves produces nothing.
func (d *Dispatcher) MemberAdded(ctx context.Context, m models.TripMember) (Result, error) {
	kind := models.NotifyMemberAdded
	if m.UserID == m.AddedBy {
		d.log.Debug("member added themselves, no notification",
			zap.String("trip_id", m.TripID),
			zap.String("user_id", m.UserID))
		return Result{}, nil
	}

	trip, ok := d.loadTrip(ctx, m.TripID, kind)
	if !ok {
		return Result{Aborted: true}, nil
	}

	actor := Actor{ID: m.AddedBy}
	if u, err := d.users.GetByID(ctx, m.AddedBy); err == nil {
		actor.Name, actor.Email = u.DisplayName, u.Email
	} else {
		d.log.Debug("actor lookup failed", zap.String("actor_id", m.AddedBy), zap.Error(err))
	}
	if actor.Name == "" {
		actor.Name = defaultActor
	}

	name := htmlsanitize.PlainText(m.DisplayName)
	tmpl := d.base(kind, trip, actor)
	tmpl.RelatedID = m.UserID
	tmpl.RelatedName = name
	tmpl.Message = Synthesize(kind, MessageData{MemberName: name, TripName: tmpl.TripName})

	recipients := []Recipient{{UserID: m.UserID, DisplayName: m.DisplayName, Email: m.Email}}
	return d.fanOut(ctx, tmpl, recipients, models.MemberKey(m.TripID, m.UserID), versionOf(m.JoinedAt))
}

// MemberRemoved notifies the remaining members except the remover.
func (d *Dispatcher) MemberRemoved(ctx context.Context, m models.TripMember, actor Actor) (Result, error) {
	kind := models.NotifyMemberRemoved
	if actor.ID == "" {
		actor = SystemActor
	}
	trip, ok := d.loadTrip(ctx, m.TripID, kind)
	if !ok {
		return Result{Aborted: true}, nil
	}
	recipients, err := d.resolver.Resolve(ctx, trip.ID, actor.ID)
	if err != nil {
		return Result{}, fmt.Errorf("resolve audience for trip %s: %w", trip.ID, err)
	}
	recipients = without(recipients, m.UserID)

	name := htmlsanitize.PlainText(m.DisplayName)
	tmpl := d.base(kind, trip, actor)
	tmpl.RelatedID = m.UserID
	tmpl.RelatedName = name
	tmpl.Message = Synthesize(kind, MessageData{MemberName: name})

	return d.fanOut(ctx, tmpl, recipients, models.MemberKey(m.TripID, m.UserID), "removed:"+versionOf(m.JoinedAt))
}

// MemberRoleChanged notifies every member except the actor, including the
// member whose role changed. m is the record after the change.
func (d *Dispatcher) MemberRoleChanged(ctx context.Context, m models.TripMember, prevRole string, actor Actor) (Result, error) {
	kind := models.NotifyMemberRoleChanged
	if prevRole != "" && prevRole == m.Role {
		return Result{}, nil
	}
	if actor.ID == "" {
		actor = Actor{ID: m.UpdatedBy}
	}
	trip, ok := d.loadTrip(ctx, m.TripID, kind)
	if !ok {
		return Result{Aborted: true}, nil
	}
	if actor.Name == "" && actor.ID != "" {
		if u, err := d.users.GetByID(ctx, actor.ID); err == nil {
			actor.Name, actor.Email = u.DisplayName, u.Email
		}
	}
	recipients, err := d.resolver.Resolve(ctx, trip.ID, actor.ID)
	if err != nil {
		return Result{}, fmt.Errorf("resolve audience for trip %s: %w", trip.ID, err)
	}

	name := htmlsanitize.PlainText(m.DisplayName)
	tmpl := d.base(kind, trip, actor)
	tmpl.RelatedID = m.UserID
	tmpl.RelatedName = name
	tmpl.Message = Synthesize(kind, MessageData{MemberName: name, NewRole: m.Role})

	return d.fanOut(ctx, tmpl, recipients, models.MemberKey(m.TripID, m.UserID), versionOf(m.UpdatedAt)+":"+m.Role)
}

// loadTrip fetches the owning trip. Any failure aborts the dispatch; it is
// logged and not returned because no caller awaits a trigger.
func (d *Dispatcher) loadTrip(ctx context.Context, tripID, kind string) (models.Trip, bool) {
	trip, err := d.trips.GetByID(ctx, tripID)
	if err != nil {
		d.log.Warn("trip not loadable, dropping event",
			zap.String("trip_id", tripID),
			zap.String("type", kind),
			zap.Error(err))
		metrics.DispatchAborted.WithLabelValues("trip_missing").Inc()
		return models.Trip{}, false
	}
	return trip, true
}

func (d *Dispatcher) base(kind string, trip models.Trip, actor Actor) models.Notification {
	return models.Notification{
		Type:       kind,
		TripID:     trip.ID,
		TripName:   htmlsanitize.PlainText(trip.Name),
		ActorID:    actor.ID,
		ActorName:  actor.Name,
		ActorEmail: actor.Email,
	}
}

// fanOut writes one copy of tmpl per recipient in parallel. A failed write
// does not stop the others and nothing already written is rolled back.
func (d *Dispatcher) fanOut(ctx context.Context, tmpl models.Notification, recipients []Recipient, sourceID, version string) (Result, error) {
	start := d.now()
	res := Result{Recipients: len(recipients)}
	if len(recipients) == 0 {
		return res, nil
	}

	var (
		mu   sync.Mutex
		errs []error
		g    errgroup.Group
	)
	g.SetLimit(maxParallelWrites)

	for _, r := range recipients {
		n := tmpl
		n.ID = uuid.NewString()
		n.UserID = r.UserID
		n.CreatedAt = start.UTC()
		n.DedupKey = dedupKey(sourceID, tmpl.Type, version, r.UserID)

		g.Go(func() error {
			inserted, err := d.sink.Insert(ctx, n)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				res.Failed++
				errs = append(errs, fmt.Errorf("notify %s: %w", n.UserID, err))
				metrics.NotificationsWritten.WithLabelValues(n.Type, "failed").Inc()
			case !inserted:
				res.Duplicates++
				metrics.NotificationsWritten.WithLabelValues(n.Type, "duplicate").Inc()
			default:
				res.Delivered++
				metrics.NotificationsWritten.WithLabelValues(n.Type, "delivered").Inc()
			}
			return nil
		})
	}
	_ = g.Wait()
	metrics.DispatchDuration.WithLabelValues(tmpl.Type).Observe(time.Since(start).Seconds())

	fields := []zap.Field{
		zap.String("type", tmpl.Type),
		zap.String("trip_id", tmpl.TripID),
		zap.String("related_id", tmpl.RelatedID),
		zap.Int("recipients", res.Recipients),
		zap.Int("delivered", res.Delivered),
		zap.Int("duplicates", res.Duplicates),
		zap.Int("failed", res.Failed),
	}
	if res.Failed > 0 {
		err := errors.Join(errs...)
		d.log.Error("notification fan-out partially failed", append(fields, zap.Error(err))...)
		return res, fmt.Errorf("%d of %d notifications failed: %w", res.Failed, res.Recipients, err)
	}
	d.log.Info("notifications dispatched", fields...)
	return res, nil
}

func without(rs []Recipient, userID string) []Recipient {
	out := rs[:0]
	for _, r := range rs {
		if r.UserID != userID {
			out = append(out, r)
		}
	}
	return out
}
