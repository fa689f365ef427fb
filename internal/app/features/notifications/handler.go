// internal/app/features/notifications/handler.go
package notifications

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	apierrors "github.com/dalemusser/tripledger/internal/app/features/errors"
	notificationstore "github.com/dalemusser/tripledger/internal/app/store/notifications"
	"github.com/dalemusser/tripledger/internal/app/system/auth"
	"github.com/dalemusser/tripledger/internal/app/system/timeouts"
	"github.com/dalemusser/tripledger/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const maxLimit = 200

// Store is the subset of the notification store the handlers use.
type Store interface {
	List(ctx context.Context, userID string, limit int) ([]models.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	Delete(ctx context.Context, userID, id string) error
	DeleteAllRead(ctx context.Context, userID string) (int64, error)
	DeleteByTrip(ctx context.Context, userID, tripID string) (int64, error)
	Stats(ctx context.Context, userID string) (models.NotificationStats, error)
	Watch(ctx context.Context, userID string, limit int, fn func([]models.Notification)) error
}

// Handler serves /api/notifications. Every call acts on the signed-in
// user's own notifications only.
type Handler struct {
	Store  Store
	Push   *Hub
	ErrLog *apierrors.ErrorLogger
	Log    *zap.Logger
}

func NewHandler(db *mongo.Database, errLog *apierrors.ErrorLogger, logger *zap.Logger) *Handler {
	st := notificationstore.New(db)
	return &Handler{
		Store:  st,
		Push:   NewHub(st, logger),
		ErrLog: errLog,
		Log:    logger,
	}
}

type listResponse struct {
	Notifications []models.Notification `json:"notifications"`
	Unread        int64                 `json:"unread"`
}

type countResponse struct {
	Count int64 `json:"count"`
}

func limitParam(r *http.Request) int {
	n, err := strconv.Atoi(query.Get(r, "limit"))
	if err != nil || n <= 0 {
		return notificationstore.DefaultLimit
	}
	if n > maxLimit {
		return maxLimit
	}
	return n
}

// ServeList handles GET /api/notifications?limit=.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		apierrors.Unauthorized(w)
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "list notifications")
	defer cancel()

	list, err := h.Store.List(ctx, u.ID, limitParam(r))
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list notifications", err, "could not load notifications")
		return
	}
	unread, err := h.Store.UnreadCount(ctx, u.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "count unread", err, "could not load notifications")
		return
	}
	if list == nil {
		list = []models.Notification{}
	}
	apierrors.JSON(w, http.StatusOK, listResponse{Notifications: list, Unread: unread})
}

// ServeUnread handles GET /api/notifications/unread.
func (h *Handler) ServeUnread(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		apierrors.Unauthorized(w)
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "count unread")
	defer cancel()

	n, err := h.Store.UnreadCount(ctx, u.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "count unread", err, "could not count notifications")
		return
	}
	apierrors.JSON(w, http.StatusOK, countResponse{Count: n})
}

// ServeStats handles GET /api/notifications/stats.
func (h *Handler) ServeStats(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		apierrors.Unauthorized(w)
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "notification stats")
	defer cancel()

	st, err := h.Store.Stats(ctx, u.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "notification stats", err, "could not load notification stats")
		return
	}
	apierrors.JSON(w, http.StatusOK, st)
}

// HandleMarkRead handles POST /api/notifications/{id}/read.
func (h *Handler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	h.one(w, r, "mark notification read", h.Store.MarkRead)
}

// HandleDelete handles DELETE /api/notifications/{id}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	h.one(w, r, "delete notification", h.Store.Delete)
}

func (h *Handler) one(w http.ResponseWriter, r *http.Request, op string, fn func(ctx context.Context, userID, id string) error) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		apierrors.Unauthorized(w)
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, op)
	defer cancel()

	if err := fn(ctx, u.ID, chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, notificationstore.ErrNotFound) {
			apierrors.NotFound(w, "notification not found")
			return
		}
		h.ErrLog.LogServerError(w, r, op, err, "could not update notification")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleMarkAllRead handles POST /api/notifications/read-all.
func (h *Handler) HandleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	h.bulk(w, r, "mark all read", h.Store.MarkAllRead)
}

// HandleDeleteRead handles DELETE /api/notifications/read.
func (h *Handler) HandleDeleteRead(w http.ResponseWriter, r *http.Request) {
	h.bulk(w, r, "delete read notifications", h.Store.DeleteAllRead)
}

// HandleDeleteByTrip handles DELETE /api/notifications/trips/{tripID}.
func (h *Handler) HandleDeleteByTrip(w http.ResponseWriter, r *http.Request) {
	tripID := chi.URLParam(r, "tripID")
	h.bulk(w, r, "delete trip notifications", func(ctx context.Context, userID string) (int64, error) {
		return h.Store.DeleteByTrip(ctx, userID, tripID)
	})
}

func (h *Handler) bulk(w http.ResponseWriter, r *http.Request, op string, fn func(ctx context.Context, userID string) (int64, error)) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		apierrors.Unauthorized(w)
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, op)
	defer cancel()

	n, err := fn(ctx, u.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, op, err, "could not update notifications")
		return
	}
	apierrors.JSON(w, http.StatusOK, countResponse{Count: n})
}
