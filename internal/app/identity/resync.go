package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/dalemusser/tripledger/internal/domain/models"
	"go.uber.org/zap"
)

// ProfileLookup is implemented by *Directory.
type ProfileLookup interface {
	Lookup(ctx context.Context, userID string) (Profile, error)
}

// UserStore lists accounts and records their photo.
type UserStore interface {
	ListActive(ctx context.Context) ([]models.User, error)
	UpdatePhotoURL(ctx context.Context, id, url string) error
}

// MemberStore refreshes the photo copied onto memberships.
type MemberStore interface {
	UpdateProfile(ctx context.Context, userID, displayName, email, photoURL string) error
}

// ResyncResult counts users whose photo changed and users left alone.
type ResyncResult struct {
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

type Resyncer struct {
	lookup  ProfileLookup
	users   UserStore
	members MemberStore
	log     *zap.Logger
}

func NewResyncer(lookup ProfileLookup, users UserStore, members MemberStore, log *zap.Logger) *Resyncer {
	return &Resyncer{lookup: lookup, users: users, members: members, log: log}
}

// Run copies each active user's directory photo onto the user and their
// memberships. Users whose lookup fails, who have no photo, or whose photo is
// unchanged are skipped. Only a failure to list users is returned.
func (r *Resyncer) Run(ctx context.Context) (ResyncResult, error) {
	var res ResyncResult

	users, err := r.users.ListActive(ctx)
	if err != nil {
		return res, fmt.Errorf("list users: %w", err)
	}

	for _, u := range users {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		p, err := r.lookup.Lookup(ctx, u.ID)
		if err != nil {
			if !errors.Is(err, ErrUnknownUser) {
				r.log.Warn("profile lookup failed", zap.String("user_id", u.ID), zap.Error(err))
			}
			res.Skipped++
			continue
		}
		if p.PhotoURL == "" || p.PhotoURL == u.PhotoURL {
			res.Skipped++
			continue
		}
		if err := r.users.UpdatePhotoURL(ctx, u.ID, p.PhotoURL); err != nil {
			r.log.Error("update user photo failed", zap.String("user_id", u.ID), zap.Error(err))
			res.Skipped++
			continue
		}
		if err := r.members.UpdateProfile(ctx, u.ID, "", "", p.PhotoURL); err != nil {
			r.log.Warn("update membership photos failed", zap.String("user_id", u.ID), zap.Error(err))
		}
		res.Updated++
	}

	r.log.Info("photo resync finished", zap.Int("updated", res.Updated), zap.Int("skipped", res.Skipped))
	return res, nil
}
