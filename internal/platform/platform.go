// Package platform implements the "connect an account" capability for each
// supported network behind a single interface, replacing the per-platform
// copy/paste this flow tends to grow.
package platform

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// ConnStatus is what the dashboard shows for one network's connect card.
type ConnStatus struct {
	Platform    string     `json:"platform"`
	Connected   bool       `json:"connected"`
	AccountName *string    `json:"accountName,omitempty"`
	DevMode     bool       `json:"devMode"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

// Connector is the capability surface per network: status, OAuth connect
// (login URL + code exchange), disconnect, and a dev-mode stub that
// fabricates a token for local testing instead of performing real OAuth.
type Connector interface {
	Name() string
	LoginURL(state string) string
	Connect(ctx context.Context, db *sql.DB, code string) error
	Status(ctx context.Context, db *sql.DB) (ConnStatus, error)
	Disconnect(ctx context.Context, db *sql.DB) error
	DevModeConnect(ctx context.Context, db *sql.DB) error
}

// Endpoints describes one network's OAuth and API surface. Client id/secret
// come from env (PAGEDECK_<NAME>_CLIENT_ID / _CLIENT_SECRET).
type Endpoints struct {
	AuthURL  string
	TokenURL string
	Scopes   []string

	// APIBase is the network's JSON API origin.
	APIBase string
	// ProfilePath returns the connected account's display name.
	ProfilePath string
	// PagesPath, when set, lists the account's pages/profiles to import.
	PagesPath string
}

var endpoints = map[string]Endpoints{
	"facebook": {
		AuthURL:     "https://www.facebook.com/v18.0/dialog/oauth",
		TokenURL:    "https://graph.facebook.com/v18.0/oauth/access_token",
		Scopes:      []string{"pages_manage_posts", "pages_read_engagement", "read_insights"},
		APIBase:     "https://graph.facebook.com/v18.0",
		ProfilePath: "/me?fields=name",
		PagesPath:   "/me/accounts?fields=id,name,access_token,picture{url}",
	},
	"instagram": {
		AuthURL:     "https://www.facebook.com/v18.0/dialog/oauth",
		TokenURL:    "https://graph.facebook.com/v18.0/oauth/access_token",
		Scopes:      []string{"instagram_basic", "instagram_content_publish", "instagram_manage_insights"},
		APIBase:     "https://graph.facebook.com/v18.0",
		ProfilePath: "/me?fields=name",
		PagesPath:   "/me/accounts?fields=id,name,access_token,picture{url}",
	},
	"threads": {
		AuthURL:     "https://threads.net/oauth/authorize",
		TokenURL:    "https://graph.threads.net/oauth/access_token",
		Scopes:      []string{"threads_basic", "threads_content_publish"},
		APIBase:     "https://graph.threads.net/v1.0",
		ProfilePath: "/me?fields=username",
	},
	"tiktok": {
		AuthURL:     "https://www.tiktok.com/v2/auth/authorize/",
		TokenURL:    "https://open.tiktokapis.com/v2/oauth/token/",
		Scopes:      []string{"user.info.basic", "video.publish"},
		APIBase:     "https://open.tiktokapis.com/v2",
		ProfilePath: "/user/info/?fields=display_name",
	},
	"x": {
		AuthURL:     "https://twitter.com/i/oauth2/authorize",
		TokenURL:    "https://api.twitter.com/2/oauth2/token",
		Scopes:      []string{"tweet.read", "tweet.write", "users.read", "offline.access"},
		APIBase:     "https://api.twitter.com/2",
		ProfilePath: "/users/me",
	},
}

// oauthConfig assembles the oauth2 config for a platform from env.
func oauthConfig(name string, ep Endpoints) *oauth2.Config {
	prefix := "PAGEDECK_" + strings.ToUpper(name) + "_"
	redirect := strings.TrimSpace(os.Getenv(prefix + "REDIRECT_URL"))
	if redirect == "" {
		origin := strings.TrimSpace(os.Getenv("PUBLIC_ORIGIN"))
		if origin == "" {
			origin = "http://localhost:18911"
		}
		redirect = origin + "/api/auth/" + name
	}
	return &oauth2.Config{
		ClientID:     os.Getenv(prefix + "CLIENT_ID"),
		ClientSecret: os.Getenv(prefix + "CLIENT_SECRET"),
		RedirectURL:  redirect,
		Scopes:       ep.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  ep.AuthURL,
			TokenURL: ep.TokenURL,
		},
	}
}

// All returns the connectors in display order.
func All() []Connector {
	names := []string{"facebook", "instagram", "threads", "tiktok", "x"}
	out := make([]Connector, 0, len(names))
	for _, n := range names {
		out = append(out, newConnector(n, endpoints[n]))
	}
	return out
}

// Lookup resolves a connector by platform name.
func Lookup(name string) (Connector, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	ep, ok := endpoints[name]
	if !ok {
		return nil, false
	}
	return newConnector(name, ep), true
}

// APIBaseFor returns a network's JSON API origin, or "" for an unknown name.
func APIBaseFor(name string) string {
	ep, ok := endpoints[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return ""
	}
	return ep.APIBase
}

// DevModeEnabled gates the fabricated-token connect path.
func DevModeEnabled() bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv("DEV_MODE")), "true")
}
