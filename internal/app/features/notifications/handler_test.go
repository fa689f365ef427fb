package notifications_test

import (
	"net/http"
	"testing"

	apierrors "github.com/dalemusser/tripledger/internal/app/features/errors"
	"github.com/dalemusser/tripledger/internal/app/features/notifications"
	"github.com/dalemusser/tripledger/internal/domain/models"
	"github.com/dalemusser/tripledger/internal/testutil"
	"go.uber.org/zap"
)

var (
	alice = testutil.TestUser{ID: "uid-alice", Name: "Alice", Email: "alice@example.com"}
	bob   = testutil.TestUser{ID: "uid-bob", Name: "Bob", Email: "bob@example.com"}
)

func newTestHandler(t *testing.T) (*notifications.Handler, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	return notifications.NewHandler(db, apierrors.NewErrorLogger(logger), logger), testutil.NewFixtures(t, db)
}

type countResp struct {
	Count int64 `json:"count"`
}

func TestServeList_OwnNotificationsOnly(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx.CreateNotification(ctx, alice.ID, "trip-1", false)
	fx.CreateNotification(ctx, alice.ID, "trip-1", true)
	fx.CreateNotification(ctx, bob.ID, "trip-1", false)

	rec := testutil.NewRecorder()
	h.ServeList(rec, testutil.NewAuthenticatedRequest("GET", "/api/notifications?limit=10", alice))
	rec.AssertStatus(t, http.StatusOK)

	var resp struct {
		Notifications []models.Notification `json:"notifications"`
		Unread        int64                 `json:"unread"`
	}
	rec.DecodeJSON(t, &resp)
	if len(resp.Notifications) != 2 || resp.Unread != 1 {
		t.Errorf("got %d notifications, %d unread; want 2 and 1", len(resp.Notifications), resp.Unread)
	}
	for _, n := range resp.Notifications {
		if n.UserID != alice.ID {
			t.Errorf("leaked notification for %s", n.UserID)
		}
	}
}

func TestHandleMarkRead_OtherUsersNotification(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	mine := fx.CreateNotification(ctx, alice.ID, "trip-1", false)
	theirs := fx.CreateNotification(ctx, bob.ID, "trip-1", false)

	rec := testutil.NewRecorder()
	req := testutil.WithChiURLParam(testutil.NewAuthenticatedRequest("POST", "/api/notifications/"+theirs.ID+"/read", alice), "id", theirs.ID)
	h.HandleMarkRead(rec, req)
	rec.AssertStatus(t, http.StatusNotFound)

	rec = testutil.NewRecorder()
	req = testutil.WithChiURLParam(testutil.NewAuthenticatedRequest("POST", "/api/notifications/"+mine.ID+"/read", alice), "id", mine.ID)
	h.HandleMarkRead(rec, req)
	rec.AssertStatus(t, http.StatusNoContent)

	rec = testutil.NewRecorder()
	h.ServeUnread(rec, testutil.NewAuthenticatedRequest("GET", "/api/notifications/unread", alice))
	var c countResp
	rec.DecodeJSON(t, &c)
	if c.Count != 0 {
		t.Errorf("unread = %d, want 0", c.Count)
	}
}

func TestBulkOperations(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	for i := 0; i < 5; i++ {
		fx.CreateNotification(ctx, alice.ID, "trip-1", false)
	}
	fx.CreateNotification(ctx, alice.ID, "trip-2", true)
	fx.CreateNotification(ctx, alice.ID, "trip-2", true)

	rec := testutil.NewRecorder()
	h.HandleMarkAllRead(rec, testutil.NewAuthenticatedRequest("POST", "/api/notifications/read-all", alice))
	rec.AssertStatus(t, http.StatusOK)
	var marked countResp
	rec.DecodeJSON(t, &marked)
	if marked.Count != 5 {
		t.Errorf("marked = %d, want 5", marked.Count)
	}

	rec = testutil.NewRecorder()
	req := testutil.WithChiURLParam(testutil.NewAuthenticatedRequest("DELETE", "/api/notifications/trips/trip-2", alice), "tripID", "trip-2")
	h.HandleDeleteByTrip(rec, req)
	var byTrip countResp
	rec.DecodeJSON(t, &byTrip)
	if byTrip.Count != 2 {
		t.Errorf("deleted by trip = %d, want 2", byTrip.Count)
	}

	rec = testutil.NewRecorder()
	h.HandleDeleteRead(rec, testutil.NewAuthenticatedRequest("DELETE", "/api/notifications/read", alice))
	var deleted countResp
	rec.DecodeJSON(t, &deleted)
	if deleted.Count != 5 {
		t.Errorf("deleted read = %d, want 5", deleted.Count)
	}
}

func TestServeStats(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx.CreateNotification(ctx, alice.ID, "trip-1", false)
	fx.CreateNotification(ctx, alice.ID, "trip-2", true)

	rec := testutil.NewRecorder()
	h.ServeStats(rec, testutil.NewAuthenticatedRequest("GET", "/api/notifications/stats", alice))
	rec.AssertStatus(t, http.StatusOK)

	var st models.NotificationStats
	rec.DecodeJSON(t, &st)
	if st.Total != 2 || st.Unread != 1 || st.ByTrip["trip-1"] != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestUnauthenticated(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := testutil.NewRecorder()
	h.ServeList(rec, testutil.NewRequest("GET", "/api/notifications"))
	rec.AssertStatus(t, http.StatusUnauthorized)
}
