// Package identity reads user profiles from the identity provider's
// directory and keeps stored photo URLs in step with it.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2/clientcredentials"
)

// ErrUnknownUser means the directory has no profile for the id.
var ErrUnknownUser = errors.New("identity provider has no such user")

// Profile is the directory's view of one user.
type Profile struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	PhotoURL    string `json:"photo_url"`
}

// Config describes the directory endpoint. ProfileURL contains "{id}", which
// is replaced by the escaped user id.
type Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	ProfileURL   string
}

// Configured reports whether every required field is set.
func (c Config) Configured() bool {
	return c.TokenURL != "" && c.ClientID != "" && c.ClientSecret != "" && strings.Contains(c.ProfileURL, "{id}")
}

// Directory looks up profiles with a client-credentials token.
type Directory struct {
	client     *http.Client
	profileURL string
}

// NewDirectory returns a Directory whose HTTP client fetches and refreshes
// tokens on its own. ctx bounds token fetches, not the client's lifetime.
func NewDirectory(ctx context.Context, cfg Config) *Directory {
	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       cfg.Scopes,
	}
	return &Directory{client: cc.Client(ctx), profileURL: cfg.ProfileURL}
}

// Lookup fetches one profile.
func (d *Directory) Lookup(ctx context.Context, userID string) (Profile, error) {
	u := strings.ReplaceAll(d.profileURL, "{id}", url.PathEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Profile{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return Profile{}, fmt.Errorf("profile lookup: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Profile{}, ErrUnknownUser
	case resp.StatusCode != http.StatusOK:
		return Profile{}, fmt.Errorf("profile lookup: unexpected status %d", resp.StatusCode)
	}

	var p Profile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return Profile{}, fmt.Errorf("decode profile: %w", err)
	}
	if p.ID == "" {
		p.ID = userID
	}
	return p, nil
}
