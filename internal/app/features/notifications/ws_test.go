package notifications

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/tripledger/internal/app/system/auth"
	"github.com/dalemusser/tripledger/internal/domain/models"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type fakeFeed struct {
	list     []models.Notification
	watchErr error
}

func (f *fakeFeed) List(context.Context, string, int) ([]models.Notification, error) {
	return f.list, nil
}

func (f *fakeFeed) UnreadCount(context.Context, string) (int64, error) {
	var n int64
	for _, x := range f.list {
		if !x.IsRead {
			n++
		}
	}
	return n, nil
}

func (f *fakeFeed) Watch(ctx context.Context, _ string, _ int, fn func([]models.Notification)) error {
	if f.watchErr != nil {
		return f.watchErr
	}
	fn(f.list)
	<-ctx.Done()
	return nil
}

func dial(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, auth.WithTestUser(r, &auth.SessionUser{ID: "uid-alice"}))
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readPush(t *testing.T, conn *websocket.Conn) pushMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg pushMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read push: %v", err)
	}
	return msg
}

func TestHub_PushesOnSubscribe(t *testing.T) {
	feed := &fakeFeed{list: []models.Notification{
		{ID: "n1", UserID: "uid-alice"},
		{ID: "n2", UserID: "uid-alice", IsRead: true},
	}}
	hub := NewHub(feed, zap.NewNop())
	defer hub.Close()

	msg := readPush(t, dial(t, hub))
	if msg.Type != "notifications" || len(msg.Notifications) != 2 || msg.Unread != 1 {
		t.Errorf("push = %+v", msg)
	}
}

func TestHub_FallsBackToPolling(t *testing.T) {
	feed := &fakeFeed{
		list:     []models.Notification{{ID: "n1", UserID: "uid-alice"}},
		watchErr: errors.New("change streams not supported"),
	}
	hub := NewHub(feed, zap.NewNop())
	hub.PollEvery = 20 * time.Millisecond
	defer hub.Close()

	conn := dial(t, hub)
	for i := 0; i < 2; i++ {
		if msg := readPush(t, conn); len(msg.Notifications) != 1 {
			t.Errorf("poll %d: %d notifications, want 1", i, len(msg.Notifications))
		}
	}
}

func TestHub_RequiresUser(t *testing.T) {
	hub := NewHub(&fakeFeed{}, zap.NewNop())
	defer hub.Close()

	rec := httptest.NewRecorder()
	hub.ServeWS(rec, httptest.NewRequest("GET", "/api/notifications/ws", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}
