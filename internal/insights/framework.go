package insights

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

type Provider interface {
	Name() string
	// SyncPage refreshes post and page analytics counters for a single page.
	// Implementations should respect the provided limiter and use ConsumeRequests() for quota accounting.
	SyncPage(ctx context.Context, db *sql.DB, pageID string, client *http.Client, limiter *rate.Limiter, logger *log.Logger) (fetched int, upserted int, err error)
}

type Runner struct {
	DB     *sql.DB
	Client *http.Client
	Logger *log.Logger
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	DailyRequestsMax  int64 // 0 means unlimited
}

func DefaultRateLimits() map[string]RateLimitConfig {
	// Conservative defaults; override via env per platform to match each network's quota policy.
	return map[string]RateLimitConfig{
		"facebook":  {RequestsPerSecond: 1, Burst: 2, DailyRequestsMax: 0},
		"instagram": {RequestsPerSecond: 1, Burst: 2, DailyRequestsMax: 0},
		"threads":   {RequestsPerSecond: 1, Burst: 2, DailyRequestsMax: 0},
		"tiktok":    {RequestsPerSecond: 1, Burst: 2, DailyRequestsMax: 0},
		"x":         {RequestsPerSecond: 1, Burst: 1, DailyRequestsMax: 0},
	}
}

func rateLimitFromEnv(platform string, def RateLimitConfig) RateLimitConfig {
	// Env vars, e.g.:
	// INSIGHT_SYNC_FACEBOOK_RPS=0.5
	// INSIGHT_SYNC_FACEBOOK_BURST=2
	// INSIGHT_SYNC_FACEBOOK_DAILY_MAX=10000
	prefix := "INSIGHT_SYNC_" + strings.ToUpper(platform) + "_"
	if v := os.Getenv(prefix + "RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			def.RequestsPerSecond = f
		}
	}
	if v := os.Getenv(prefix + "BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			def.Burst = n
		}
	}
	if v := os.Getenv(prefix + "DAILY_MAX"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			def.DailyRequestsMax = n
		}
	}
	return def
}

func (r *Runner) EnsureDefaults() {
	if r.Client == nil {
		r.Client = &http.Client{Timeout: 20 * time.Second}
	}
	if r.Logger == nil {
		r.Logger = log.Default()
	}
}

func (r *Runner) limiterForPlatform(platform string) (*rate.Limiter, RateLimitConfig) {
	cfg := DefaultRateLimits()[platform]
	cfg = rateLimitFromEnv(platform, cfg)
	lim := rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
	return lim, cfg
}

// ConsumeRequests implements basic daily quota tracking. It returns ok=false when the daily max would be exceeded.
func ConsumeRequests(ctx context.Context, db *sql.DB, platform string, add int64, dailyMax int64) (ok bool, used int64, err error) {
	if add <= 0 {
		return true, 0, nil
	}
	day := time.Now().UTC().Format("2006-01-02")
	id := fmt.Sprintf("%s:%s", platform, day)
	query := `
		INSERT INTO public.insight_sync_usage (id, platform, day, requests_used, last_updated_at)
		VALUES ($1, $2, $3::date, $4, NOW())
		ON CONFLICT (platform, day) DO UPDATE SET
		  requests_used = public.insight_sync_usage.requests_used + EXCLUDED.requests_used,
		  last_updated_at = NOW()
		RETURNING requests_used
	`
	var newUsed int64
	if err := db.QueryRowContext(ctx, query, id, platform, day, add).Scan(&newUsed); err != nil {
		return false, 0, err
	}
	if dailyMax > 0 && newUsed > dailyMax {
		return false, newUsed, nil
	}
	return true, newUsed, nil
}
