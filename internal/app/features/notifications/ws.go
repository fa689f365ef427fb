// internal/app/features/notifications/ws.go
package notifications

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	apierrors "github.com/dalemusser/tripledger/internal/app/features/errors"
	notificationstore "github.com/dalemusser/tripledger/internal/app/store/notifications"
	"github.com/dalemusser/tripledger/internal/app/system/auth"
	"github.com/dalemusser/tripledger/internal/domain/models"
	"github.com/olahol/melody"
	"go.uber.org/zap"
)

const (
	keyUserID = "user_id"
	keyCancel = "cancel"

	defaultPollEvery = 30 * time.Second
)

// Feed is what a push subscription reads from.
type Feed interface {
	List(ctx context.Context, userID string, limit int) ([]models.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
	Watch(ctx context.Context, userID string, limit int, fn func([]models.Notification)) error
}

// Hub pushes each connected user's newest notifications over a websocket.
// The list is re-sent whenever it changes. Without change streams (a
// standalone MongoDB) it is re-sent every PollEvery instead.
type Hub struct {
	m         *melody.Melody
	feed      Feed
	log       *zap.Logger
	PollEvery time.Duration
}

type pushMessage struct {
	Type          string                `json:"type"`
	Notifications []models.Notification `json:"notifications"`
	Unread        int64                 `json:"unread"`
}

func NewHub(feed Feed, log *zap.Logger) *Hub {
	m := melody.New()
	m.Config.MaxMessageSize = 4096
	m.Config.PingPeriod = 30 * time.Second
	m.Config.PongWait = 60 * time.Second

	h := &Hub{m: m, feed: feed, log: log, PollEvery: defaultPollEvery}
	m.HandleConnect(h.connect)
	m.HandleDisconnect(h.disconnect)
	m.HandleError(func(s *melody.Session, err error) {
		uid, _ := s.Get(keyUserID)
		log.Debug("notification socket error", zap.Any("user_id", uid), zap.Error(err))
	})
	return h
}

// ServeWS handles GET /api/notifications/ws.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		apierrors.Unauthorized(w)
		return
	}
	if err := h.m.HandleRequestWithKeys(w, r, map[string]interface{}{keyUserID: u.ID}); err != nil {
		h.log.Warn("notification socket upgrade failed", zap.String("user_id", u.ID), zap.Error(err))
	}
}

// Close disconnects every subscriber.
func (h *Hub) Close() error {
	return h.m.Close()
}

func (h *Hub) connect(s *melody.Session) {
	v, _ := s.Get(keyUserID)
	uid, _ := v.(string)
	if uid == "" {
		_ = s.Close()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.Set(keyCancel, cancel)
	go h.subscribe(ctx, s, uid)
}

func (h *Hub) disconnect(s *melody.Session) {
	if v, ok := s.Get(keyCancel); ok {
		if cancel, ok := v.(context.CancelFunc); ok {
			cancel()
		}
	}
}

func (h *Hub) subscribe(ctx context.Context, s *melody.Session, uid string) {
	err := h.feed.Watch(ctx, uid, notificationstore.DefaultLimit, func(list []models.Notification) {
		h.send(ctx, s, uid, list)
	})
	if err == nil || ctx.Err() != nil {
		return
	}
	h.log.Info("notification watch unavailable, polling",
		zap.String("user_id", uid),
		zap.Duration("every", h.PollEvery),
		zap.Error(err))

	t := time.NewTicker(h.PollEvery)
	defer t.Stop()
	for {
		list, err := h.feed.List(ctx, uid, notificationstore.DefaultLimit)
		if err == nil {
			h.send(ctx, s, uid, list)
		} else if ctx.Err() == nil {
			h.log.Warn("poll notifications", zap.String("user_id", uid), zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func (h *Hub) send(ctx context.Context, s *melody.Session, uid string, list []models.Notification) {
	if s.IsClosed() {
		return
	}
	unread, err := h.feed.UnreadCount(ctx, uid)
	if err != nil {
		h.log.Warn("count unread for push", zap.String("user_id", uid), zap.Error(err))
	}
	if list == nil {
		list = []models.Notification{}
	}
	b, err := json.Marshal(pushMessage{Type: "notifications", Notifications: list, Unread: unread})
	if err != nil {
		h.log.Error("encode notification push", zap.Error(err))
		return
	}
	if err := s.Write(b); err != nil {
		h.log.Debug("notification push dropped", zap.String("user_id", uid), zap.Error(err))
	}
}
