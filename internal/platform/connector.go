package platform

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/pagedeck/pagedeck/backend/internal/apiclient"
)

// connector is the one implementation behind every network; the differences
// live entirely in Endpoints.
type connector struct {
	name string
	ep   Endpoints

	oauth *oauth2.Config
	// api is swappable in tests (points at APIBase in production).
	api *apiclient.Client
}

func newConnector(name string, ep Endpoints) *connector {
	return &connector{
		name:  name,
		ep:    ep,
		oauth: oauthConfig(name, ep),
		api:   apiclient.New(ep.APIBase),
	}
}

func (c *connector) Name() string { return c.name }

func (c *connector) LoginURL(state string) string {
	return c.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

func (c *connector) Status(ctx context.Context, db *sql.DB) (ConnStatus, error) {
	st := ConnStatus{Platform: c.name}
	var token string
	err := db.QueryRowContext(ctx, `
		SELECT access_token, account_name, dev_mode, expires_at
		  FROM public.platform_connections
		 WHERE platform = $1
	`, c.name).Scan(&token, &st.AccountName, &st.DevMode, &st.ExpiresAt)
	if err == sql.ErrNoRows {
		return st, nil
	}
	if err != nil {
		return st, err
	}
	st.Connected = strings.TrimSpace(token) != ""
	return st, nil
}

func (c *connector) Connect(ctx context.Context, db *sql.DB, code string) error {
	if strings.TrimSpace(code) == "" {
		return fmt.Errorf("missing authorization code")
	}
	tok, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("%s token exchange failed: %w", c.name, err)
	}

	accountName, err := c.fetchAccountName(ctx, tok.AccessToken)
	if err != nil {
		// Token is valid even if the profile lookup hiccups; keep connecting.
		log.Printf("[Platform] profile lookup failed platform=%s err=%v", c.name, err)
	}

	var expires *time.Time
	if !tok.Expiry.IsZero() {
		e := tok.Expiry.UTC()
		expires = &e
	}
	if err := c.storeConnection(ctx, db, tok.AccessToken, accountName, false, expires); err != nil {
		return err
	}

	if c.ep.PagesPath != "" {
		if err := c.importPages(ctx, db, tok.AccessToken); err != nil {
			log.Printf("[Platform] page import failed platform=%s err=%v", c.name, err)
		}
	}
	return nil
}

func (c *connector) Disconnect(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM public.platform_connections WHERE platform = $1`, c.name); err != nil {
		return err
	}
	_, err := db.ExecContext(ctx, `DELETE FROM public.pages WHERE platform = $1`, c.name)
	return err
}

// DevModeConnect fabricates a token and a stub page so the rest of the
// dashboard is exercisable without real OAuth credentials.
func (c *connector) DevModeConnect(ctx context.Context, db *sql.DB) error {
	if !DevModeEnabled() {
		return fmt.Errorf("dev mode connect is disabled (set DEV_MODE=true)")
	}
	token := "dev_" + randHex(16)
	name := "Dev " + strings.Title(c.name) + " Account"
	if err := c.storeConnection(ctx, db, token, &name, true, nil); err != nil {
		return err
	}
	pageID := "dev_" + c.name + "_page"
	_, err := db.ExecContext(ctx, `
		INSERT INTO public.pages (page_id, platform, name, access_token, avatar, connected_at)
		VALUES ($1, $2, $3, $4, NULL, NOW())
		ON CONFLICT (page_id) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			connected_at = NOW()
	`, pageID, c.name, name, token)
	return err
}

func (c *connector) storeConnection(ctx context.Context, db *sql.DB, token string, accountName *string, devMode bool, expires *time.Time) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO public.platform_connections (platform, access_token, account_name, dev_mode, expires_at, connected_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (platform) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			account_name = EXCLUDED.account_name,
			dev_mode = EXCLUDED.dev_mode,
			expires_at = EXCLUDED.expires_at,
			connected_at = NOW()
	`, c.name, token, accountName, devMode, expires)
	return err
}

func (c *connector) fetchAccountName(ctx context.Context, token string) (*string, error) {
	if c.ep.ProfilePath == "" {
		return nil, nil
	}
	raw, err := c.apiGet(ctx, c.ep.ProfilePath, token)
	if err != nil {
		return nil, err
	}
	var profile struct {
		Name     string `json:"name"`
		Username string `json:"username"`
		Data     struct {
			User struct {
				DisplayName string `json:"display_name"`
			} `json:"user"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &profile); err != nil {
		return nil, err
	}
	name := profile.Name
	if name == "" {
		name = profile.Username
	}
	if name == "" {
		name = profile.Data.User.DisplayName
	}
	if name == "" {
		return nil, nil
	}
	return &name, nil
}

func (c *connector) importPages(ctx context.Context, db *sql.DB, token string) error {
	raw, err := c.apiGet(ctx, c.ep.PagesPath, token)
	if err != nil {
		return err
	}
	var parsed struct {
		Data []struct {
			ID          string `json:"id"`
			Name        string `json:"name"`
			AccessToken string `json:"access_token"`
			Picture     struct {
				Data struct {
					URL string `json:"url"`
				} `json:"data"`
			} `json:"picture"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return err
	}
	for _, p := range parsed.Data {
		if p.ID == "" {
			continue
		}
		pageToken := p.AccessToken
		if pageToken == "" {
			pageToken = token
		}
		var avatar *string
		if u := strings.TrimSpace(p.Picture.Data.URL); u != "" {
			avatar = &u
		}
		if _, err := db.ExecContext(ctx, `
			INSERT INTO public.pages (page_id, platform, name, access_token, avatar, connected_at)
			VALUES ($1, $2, $3, $4, $5, NOW())
			ON CONFLICT (page_id) DO UPDATE SET
				name = EXCLUDED.name,
				access_token = EXCLUDED.access_token,
				avatar = EXCLUDED.avatar
		`, p.ID, c.name, p.Name, pageToken, avatar); err != nil {
			log.Printf("[Platform] page upsert failed platform=%s pageId=%s err=%v", c.name, p.ID, err)
		}
	}
	return nil
}

func (c *connector) apiGet(ctx context.Context, path, token string) (json.RawMessage, error) {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return c.api.Request(ctx, "GET", path+sep+"access_token="+token, nil)
}

func randHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return hex.EncodeToString([]byte(time.Now().UTC().Format("20060102150405.000")))[:2*n]
	}
	return hex.EncodeToString(b)
}
