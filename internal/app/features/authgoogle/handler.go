// internal/app/features/authgoogle/handler.go
package authgoogle

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dalemusser/tripledger/internal/app/reconcile"
	"github.com/dalemusser/tripledger/internal/app/store/oauthstate"
	tripmemberstore "github.com/dalemusser/tripledger/internal/app/store/tripmembers"
	userstore "github.com/dalemusser/tripledger/internal/app/store/users"
	"github.com/dalemusser/tripledger/internal/app/system/auditlog"
	"github.com/dalemusser/tripledger/internal/app/system/auth"
	"github.com/dalemusser/tripledger/internal/app/system/normalize"
	"github.com/dalemusser/tripledger/internal/app/system/timeouts"
	"github.com/dalemusser/tripledger/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/urlutil"
	"github.com/gorilla/securecookie"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	stateTTL         = 10 * time.Minute
	userInfoEndpoint = "https://www.googleapis.com/oauth2/v2/userinfo"
	defaultLanding   = "/"
	loginErrorRoute  = "/?login_error="
)

// Handler handles Google OAuth sign-in and the login-time membership sync.
type Handler struct {
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
	AuditLog   *auditlog.Logger
	StateStore *oauthstate.Store
	Users      *userstore.Store
	Members    *tripmemberstore.Store
	Reconciler *reconcile.Reconciler

	ClientID     string
	ClientSecret string
	RedirectURL  string

	// adminEmails get the admin flag in their session regardless of the
	// stored user.
	adminEmails map[string]bool

	// fetchUser exchanges an authorization code for the signed-in profile.
	fetchUser func(ctx context.Context, code string) (*googleUserInfo, error)
}

func NewHandler(
	sessionMgr *auth.SessionManager,
	audit *auditlog.Logger,
	stateStore *oauthstate.Store,
	users *userstore.Store,
	members *tripmemberstore.Store,
	reconciler *reconcile.Reconciler,
	clientID, clientSecret, baseURL string,
	adminEmails []string,
	logger *zap.Logger,
) *Handler {
	h := &Handler{
		Log:          logger,
		SessionMgr:   sessionMgr,
		AuditLog:     audit,
		StateStore:   stateStore,
		Users:        users,
		Members:      members,
		Reconciler:   reconciler,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  baseURL + "/auth/google/callback",
		adminEmails:  map[string]bool{},
	}
	for _, e := range adminEmails {
		if e = normalize.Email(e); e != "" {
			h.adminEmails[e] = true
		}
	}
	h.fetchUser = h.exchangeAndFetch
	return h
}

func (h *Handler) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     h.ClientID,
		ClientSecret: h.ClientSecret,
		RedirectURL:  h.RedirectURL,
		Scopes: []string{
			"openid",
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: google.Endpoint,
	}
}

// IsConfigured returns true if Google OAuth is configured.
func (h *Handler) IsConfigured() bool {
	return h.ClientID != "" && h.ClientSecret != ""
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /auth/google                                                             |
| Redirects to Google's consent screen.                                        |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	if !h.IsConfigured() {
		h.Log.Warn("Google OAuth not configured")
		http.Redirect(w, r, loginErrorRoute+"google_not_configured", http.StatusSeeOther)
		return
	}

	state, err := generateState()
	if err != nil {
		h.Log.Error("failed to generate OAuth state", zap.Error(err))
		http.Redirect(w, r, loginErrorRoute+"internal", http.StatusSeeOther)
		return
	}
	returnURL := query.Get(r, "return")

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()
	if err := h.StateStore.Save(ctx, state, returnURL, time.Now().UTC().Add(stateTTL)); err != nil {
		h.Log.Error("failed to save OAuth state", zap.Error(err))
		http.Redirect(w, r, loginErrorRoute+"internal", http.StatusSeeOther)
		return
	}

	url := h.oauth2Config().AuthCodeURL(state)
	h.Log.Debug("initiating Google OAuth flow", zap.String("return_url", returnURL))
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /auth/google/callback                                                    |
| Validates state, fetches the profile, syncs the user and their trip          |
| memberships, then signs them in.                                             |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.Log.Warn("Google OAuth error",
			zap.String("error", errParam),
			zap.String("description", r.URL.Query().Get("error_description")))
		h.AuditLog.LoginFailed(ctx, r, "provider_denied")
		http.Redirect(w, r, loginErrorRoute+"google_denied", http.StatusSeeOther)
		return
	}

	state := r.URL.Query().Get("state")
	if state == "" {
		h.Log.Warn("missing OAuth state parameter")
		http.Redirect(w, r, loginErrorRoute+"invalid_state", http.StatusSeeOther)
		return
	}

	sctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	returnURL, valid, err := h.StateStore.Consume(sctx, state)
	cancel()
	if err != nil {
		h.Log.Error("failed to validate OAuth state", zap.Error(err))
		http.Redirect(w, r, loginErrorRoute+"internal", http.StatusSeeOther)
		return
	}
	if !valid {
		h.Log.Warn("invalid or expired OAuth state")
		h.AuditLog.LoginFailed(ctx, r, "invalid_state")
		http.Redirect(w, r, loginErrorRoute+"invalid_state", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Redirect(w, r, loginErrorRoute+"invalid_code", http.StatusSeeOther)
		return
	}

	gu, err := h.fetchUser(ctx, code)
	if err != nil {
		h.Log.Error("failed to fetch Google user", zap.Error(err))
		h.AuditLog.LoginFailed(ctx, r, "user_info")
		http.Redirect(w, r, loginErrorRoute+"user_info", http.StatusSeeOther)
		return
	}
	if gu.ID == "" || gu.Email == "" || !gu.EmailVerified {
		h.Log.Warn("Google account without a verified email", zap.String("google_id", gu.ID))
		h.AuditLog.LoginFailed(ctx, r, "email_unverified")
		http.Redirect(w, r, loginErrorRoute+"email_unverified", http.StatusSeeOther)
		return
	}

	u, err := h.syncUser(ctx, gu)
	if err != nil {
		h.Log.Error("login sync failed", zap.String("google_id", gu.ID), zap.Error(err))
		http.Redirect(w, r, loginErrorRoute+"internal", http.StatusSeeOther)
		return
	}
	if u.DeletedAt != nil {
		h.AuditLog.LoginFailed(ctx, r, "account_deleted")
		http.Redirect(w, r, loginErrorRoute+"account_deleted", http.StatusSeeOther)
		return
	}

	su := auth.SessionUser{
		ID:       u.ID,
		Name:     u.DisplayName,
		Email:    u.Email,
		PhotoURL: u.PhotoURL,
		IsAdmin:  u.IsAdmin || h.adminEmails[u.EmailCI],
	}
	if err := h.SessionMgr.SignIn(w, r, su); err != nil {
		h.Log.Error("save session failed", zap.Error(err), zap.String("user_id", u.ID))
		http.Redirect(w, r, loginErrorRoute+"session", http.StatusSeeOther)
		return
	}

	h.AuditLog.LoginSuccess(ctx, r, u.ID, u.Email)
	h.Log.Info("user logged in via Google OAuth", zap.String("user_id", u.ID))

	http.Redirect(w, r, urlutil.SafeReturn(returnURL, "", defaultLanding), http.StatusSeeOther)
}

// syncUser records the login, refreshes the profile copied onto memberships
// and reconciles memberships with the verified identity. Reconciliation
// problems are logged; they never block the login.
func (h *Handler) syncUser(ctx context.Context, gu *googleUserInfo) (models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Long())
	defer cancel()

	u, err := h.Users.SyncLogin(ctx, userstore.Identity{
		ID:          gu.ID,
		Email:       gu.Email,
		DisplayName: gu.Name,
		PhotoURL:    gu.Picture,
	})
	if err != nil {
		return models.User{}, err
	}
	if u.DeletedAt != nil {
		return u, nil
	}

	if h.Reconciler != nil {
		rep := h.Reconciler.Run(ctx, reconcile.Identity{
			UserID:        u.ID,
			Email:         u.Email,
			DisplayName:   u.DisplayName,
			PhotoURL:      u.PhotoURL,
			ProviderEmail: gu.Email,
		})
		if rep.Changed() || rep.Orphaned > 0 || rep.Failed > 0 {
			h.AuditLog.MembershipReconciled(ctx, u.ID, rep.InvitesClaimed, rep.Migrated, rep.Orphaned, rep.Backfilled, rep.Failed)
		}
	}

	if h.Members != nil {
		if err := h.Members.UpdateProfile(ctx, u.ID, u.DisplayName, u.Email, u.PhotoURL); err != nil {
			h.Log.Warn("refresh membership profile failed", zap.String("user_id", u.ID), zap.Error(err))
		}
	}
	return u, nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Google profile                                                               |
*─────────────────────────────────────────────────────────────────────────────*/

type googleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func (h *Handler) exchangeAndFetch(ctx context.Context, code string) (*googleUserInfo, error) {
	cfg := h.oauth2Config()
	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	return fetchGoogleUserInfo(ctx, cfg.Client(ctx, token), userInfoEndpoint)
}

func fetchGoogleUserInfo(ctx context.Context, client *http.Client, endpoint string) (*googleUserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode user info: %w", err)
	}
	return &info, nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Helpers                                                                      |
*─────────────────────────────────────────────────────────────────────────────*/

var errShortKey = errors.New("random key generation failed")

// generateState returns an unguessable URL-safe state token.
func generateState() (string, error) {
	b := securecookie.GenerateRandomKey(32)
	if b == nil {
		return "", errShortKey
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
