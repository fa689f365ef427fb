// Package reconcile brings a user's trip memberships in line with their
// verified identity at login.
package reconcile

import (
	"context"
	"slices"
	"strings"

	"github.com/dalemusser/tripledger/internal/app/system/metrics"
	"github.com/dalemusser/tripledger/internal/app/system/normalize"
	"github.com/dalemusser/tripledger/internal/domain/models"
	"go.uber.org/zap"
)

// Identity is the signed-in user as vouched for by the identity provider.
type Identity struct {
	UserID      string
	Email       string
	DisplayName string
	PhotoURL    string

	// ProviderEmail is the email exactly as the identity provider returned
	// it. Legacy derived ids were built from the address as typed, so both
	// spellings are tried.
	ProviderEmail string
}

// derivedIDs lists the legacy keys id's memberships may still be stored under.
func derivedIDs(id Identity) []string {
	var out []string
	for _, email := range []string{normalize.Email(id.Email), strings.TrimSpace(id.ProviderEmail)} {
		if email == "" {
			continue
		}
		d := normalize.DerivedID(email)
		if d == id.UserID || slices.Contains(out, d) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Store is the persistence the reconciler needs. Each mutating method must be
// atomic for its one trip and report whether it changed anything.
type Store interface {
	InvitesFor(ctx context.Context, email string) ([]models.TripInvite, error)
	ClaimInvite(ctx context.Context, inv models.TripInvite, id Identity) (bool, error)

	MembershipsOf(ctx context.Context, userID string) ([]models.TripMember, error)
	HasMembership(ctx context.Context, tripID, userID string) (bool, error)
	MigrateMembership(ctx context.Context, legacy models.TripMember, id Identity) (bool, error)

	TripsCreatedBy(ctx context.Context, userID string) ([]models.Trip, error)
	BackfillOwner(ctx context.Context, trip models.Trip, id Identity) (bool, error)
}

// Report counts what one run did.
type Report struct {
	InvitesClaimed int `json:"invites_claimed"`
	Migrated       int `json:"migrated"`
	Orphaned       int `json:"orphaned"`
	Backfilled     int `json:"backfilled"`
	Failed         int `json:"failed"`
}

// Changed reports whether the run wrote anything.
func (r Report) Changed() bool {
	return r.InvitesClaimed+r.Migrated+r.Backfilled > 0
}

type Reconciler struct {
	store Store
	log   *zap.Logger
}

func New(store Store, log *zap.Logger) *Reconciler {
	return &Reconciler{store: store, log: log}
}

// Run performs the invite claim, legacy migration and owner backfill passes.
// A failure on one trip is logged and counted; the remaining trips and passes
// still run. Running again with the same identity changes nothing.
func (rc *Reconciler) Run(ctx context.Context, id Identity) Report {
	var rep Report
	log := rc.log.With(zap.String("user_id", id.UserID))

	if id.UserID == "" {
		log.Warn("reconcile called without a user id")
		return rep
	}

	if id.Email != "" {
		rc.claimInvites(ctx, log, id, &rep)
		rc.migrate(ctx, log, id, &rep)
	}
	rc.backfill(ctx, log, id, &rep)

	metrics.ReconcileActions.WithLabelValues("claimed").Add(float64(rep.InvitesClaimed))
	metrics.ReconcileActions.WithLabelValues("migrated").Add(float64(rep.Migrated))
	metrics.ReconcileActions.WithLabelValues("orphaned").Add(float64(rep.Orphaned))
	metrics.ReconcileActions.WithLabelValues("backfilled").Add(float64(rep.Backfilled))
	metrics.ReconcileActions.WithLabelValues("failed").Add(float64(rep.Failed))

	if rep.Changed() || rep.Orphaned > 0 || rep.Failed > 0 {
		log.Info("memberships reconciled",
			zap.Int("invites_claimed", rep.InvitesClaimed),
			zap.Int("migrated", rep.Migrated),
			zap.Int("orphaned", rep.Orphaned),
			zap.Int("backfilled", rep.Backfilled),
			zap.Int("failed", rep.Failed))
	}
	return rep
}

func (rc *Reconciler) claimInvites(ctx context.Context, log *zap.Logger, id Identity, rep *Report) {
	invites, err := rc.store.InvitesFor(ctx, normalize.Email(id.Email))
	if err != nil {
		log.Error("list invites failed", zap.Error(err))
		rep.Failed++
		return
	}
	for _, inv := range invites {
		claimed, err := rc.store.ClaimInvite(ctx, inv, id)
		if err != nil {
			log.Error("claim invite failed",
				zap.String("trip_id", inv.TripID),
				zap.String("invite_id", inv.ID),
				zap.Error(err))
			rep.Failed++
			continue
		}
		if claimed {
			rep.InvitesClaimed++
		}
	}
}

func (rc *Reconciler) migrate(ctx context.Context, log *zap.Logger, id Identity, rep *Report) {
	for _, derived := range derivedIDs(id) {
		rc.migrateFrom(ctx, log, id, derived, rep)
	}
}

func (rc *Reconciler) migrateFrom(ctx context.Context, log *zap.Logger, id Identity, derived string, rep *Report) {
	legacy, err := rc.store.MembershipsOf(ctx, derived)
	if err != nil {
		log.Error("list legacy memberships failed", zap.String("derived_id", derived), zap.Error(err))
		rep.Failed++
		return
	}
	for _, m := range legacy {
		tlog := log.With(zap.String("trip_id", m.TripID), zap.String("derived_id", derived))

		exists, err := rc.store.HasMembership(ctx, m.TripID, id.UserID)
		if err != nil {
			tlog.Error("membership lookup failed", zap.Error(err))
			rep.Failed++
			continue
		}
		if exists {
			// The real record wins; the legacy one stays for manual cleanup.
			tlog.Warn("legacy membership left orphaned, real membership already exists")
			rep.Orphaned++
			continue
		}

		moved, err := rc.store.MigrateMembership(ctx, m, id)
		if err != nil {
			tlog.Error("migrate membership failed", zap.Error(err))
			rep.Failed++
			continue
		}
		if moved {
			rep.Migrated++
		} else {
			rep.Orphaned++
		}
	}
}

func (rc *Reconciler) backfill(ctx context.Context, log *zap.Logger, id Identity, rep *Report) {
	trips, err := rc.store.TripsCreatedBy(ctx, id.UserID)
	if err != nil {
		log.Error("list created trips failed", zap.Error(err))
		rep.Failed++
		return
	}
	for _, t := range trips {
		added, err := rc.store.BackfillOwner(ctx, t, id)
		if err != nil {
			log.Error("owner backfill failed", zap.String("trip_id", t.ID), zap.Error(err))
			rep.Failed++
			continue
		}
		if added {
			rep.Backfilled++
		}
	}
}
