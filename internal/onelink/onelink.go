// Package onelink generates AppsFlyer-style tracking URLs by substituting a
// saved parameter preset into a base deep-link template.
package onelink

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/pagedeck/pagedeck/backend/internal/models"
)

// DefaultBaseURL is used when ONELINK_BASE_URL is not configured.
const DefaultBaseURL = "https://go.onelink.me/app"

// Generate builds the tracking URL for a field preset. Required parameters
// (platform, campaign code) must be present; empty optional parameters are
// omitted from the query string. A missing material id is filled with a
// fresh uuid so two generations never collide.
func Generate(baseURL string, f models.OnelinkField) (string, error) {
	base := strings.TrimSpace(baseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid onelink base url %q: %w", base, err)
	}

	platform := strings.TrimSpace(f.Platform)
	campaign := strings.TrimSpace(f.CampaignCode)
	if platform == "" {
		return "", fmt.Errorf("platform is required")
	}
	if campaign == "" {
		return "", fmt.Errorf("campaignCode is required")
	}
	material := strings.TrimSpace(f.MaterialID)
	if material == "" {
		material = uuid.NewString()
	}

	q := u.Query()
	q.Set("pid", platform)
	q.Set("c", campaign)
	q.Set("af_ad_id", material)
	setOptional(q, "af_adset", f.AdSet)
	setOptional(q, "af_ad", f.AdName)
	setOptional(q, "af_audience", f.Audience)
	setOptional(q, "af_creative_size", f.CreativeSize)
	setOptional(q, "af_placement", f.Placement)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func setOptional(q url.Values, key string, v *string) {
	if v == nil {
		return
	}
	if s := strings.TrimSpace(*v); s != "" {
		q.Set(key, s)
	}
}
