// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dalemusser/tripledger/internal/app/store/audit"
	"go.uber.org/zap"
)

// Config selects where each category goes.
// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off".
type Config struct {
	Auth    string
	Account string
	Admin   string
}

// Logger writes audit events to the audit store and to zap.
// A nil *Logger is a valid no-op.
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{store: store, zapLog: zapLog, config: config}
}

func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

func userAgent(r *http.Request) string {
	if r == nil {
		return ""
	}
	return r.UserAgent()
}

func (l *Logger) setting(category string) string {
	var v string
	switch category {
	case audit.CategoryAuth:
		v = l.config.Auth
	case audit.CategoryAccount:
		v = l.config.Account
	case audit.CategoryAdmin:
		v = l.config.Admin
	}
	if v == "" {
		return "all"
	}
	return v
}

// Log records e according to the category's setting.
func (l *Logger) Log(ctx context.Context, e audit.Event) {
	if l == nil {
		return
	}
	mode := l.setting(e.Category)
	if mode == "off" {
		return
	}

	if mode == "all" || mode == "log" {
		fields := []zap.Field{
			zap.Bool("audit", true),
			zap.String("category", e.Category),
			zap.String("event_type", e.EventType),
			zap.Bool("success", e.Success),
		}
		if e.UserID != "" {
			fields = append(fields, zap.String("user_id", e.UserID))
		}
		if e.ActorID != "" {
			fields = append(fields, zap.String("actor_id", e.ActorID))
		}
		if e.FailureReason != "" {
			fields = append(fields, zap.String("failure_reason", e.FailureReason))
		}
		for k, v := range e.Details {
			fields = append(fields, zap.String("detail_"+k, v))
		}
		if e.Success {
			l.zapLog.Info("audit event", fields...)
		} else {
			l.zapLog.Warn("audit event", fields...)
		}
	}

	if (mode == "all" || mode == "db") && l.store != nil {
		if err := l.store.Log(ctx, e); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", e.EventType))
		}
	}
}

func (l *Logger) LoginSuccess(ctx context.Context, r *http.Request, userID, email string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLoginSuccess,
		UserID:    userID,
		IP:        clientIP(r),
		UserAgent: userAgent(r),
		Success:   true,
		Details:   map[string]string{"email": email},
	})
}

func (l *Logger) LoginFailed(ctx context.Context, r *http.Request, reason string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventLoginFailed,
		IP:            clientIP(r),
		UserAgent:     userAgent(r),
		FailureReason: reason,
	})
}

func (l *Logger) Logout(ctx context.Context, r *http.Request, userID string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLogout,
		UserID:    userID,
		IP:        clientIP(r),
		Success:   true,
	})
}

// MembershipReconciled records a login-time repair that changed something.
func (l *Logger) MembershipReconciled(ctx context.Context, userID string, claimed, migrated, orphaned, backfilled, failed int) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventMembershipReconciled,
		UserID:    userID,
		Success:   failed == 0,
		Details: map[string]string{
			"invites_claimed": strconv.Itoa(claimed),
			"migrated":        strconv.Itoa(migrated),
			"orphaned":        strconv.Itoa(orphaned),
			"backfilled":      strconv.Itoa(backfilled),
			"failed":          strconv.Itoa(failed),
		},
	})
}

func (l *Logger) DeletionRequested(ctx context.Context, r *http.Request, userID string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAccount,
		EventType: audit.EventDeletionRequested,
		UserID:    userID,
		ActorID:   userID,
		IP:        clientIP(r),
		Success:   true,
	})
}

func (l *Logger) DeletionCanceled(ctx context.Context, r *http.Request, userID string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAccount,
		EventType: audit.EventDeletionCanceled,
		UserID:    userID,
		ActorID:   userID,
		IP:        clientIP(r),
		Success:   true,
	})
}

// AccountPurged is written by the sweeper, so there is no request.
func (l *Logger) AccountPurged(ctx context.Context, userID string, trips int, err error) {
	e := audit.Event{
		Category:  audit.CategoryAccount,
		EventType: audit.EventAccountPurged,
		UserID:    userID,
		ActorID:   "system",
		Success:   err == nil,
		Details:   map[string]string{"trips": strconv.Itoa(trips)},
	}
	if err != nil {
		e.FailureReason = err.Error()
	}
	l.Log(ctx, e)
}

func (l *Logger) PhotosResynced(ctx context.Context, r *http.Request, actorID string, updated, skipped int) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventPhotosResynced,
		ActorID:   actorID,
		IP:        clientIP(r),
		Success:   true,
		Details: map[string]string{
			"updated": strconv.Itoa(updated),
			"skipped": strconv.Itoa(skipped),
		},
	})
}

func (l *Logger) UserProvisioned(ctx context.Context, r *http.Request, actorID, userID, email string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventUserProvisioned,
		UserID:    userID,
		ActorID:   actorID,
		IP:        clientIP(r),
		Success:   true,
		Details:   map[string]string{"email": email},
	})
}
