package insights

import (
	"context"
	"log"
	"time"
)

type ProviderRunResult struct {
	Platform string `json:"platform"`
	PageID   string `json:"pageId"`
	Fetched  int    `json:"fetched"`
	Upserted int    `json:"upserted"`
	Skipped  bool   `json:"skipped,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Error    string `json:"error,omitempty"`
}

// SyncPageNow does an on-demand analytics refresh of one page across providers.
func (r *Runner) SyncPageNow(ctx context.Context, pageID string, providers []Provider) []ProviderRunResult {
	r.EnsureDefaults()
	out := make([]ProviderRunResult, 0, len(providers))
	for _, p := range providers {
		name := p.Name()
		lim, cfg := r.limiterForPlatform(name)
		start := time.Now()
		r.Logger.Printf("[InsightSync] start platform=%s pageId=%s", name, pageID)

		// One request "budget" for the sync attempt itself; providers account for their internal calls too.
		if r.DB != nil && cfg.DailyRequestsMax > 0 {
			ok, used, err := ConsumeRequests(ctx, r.DB, name, 1, cfg.DailyRequestsMax)
			if err != nil {
				out = append(out, ProviderRunResult{Platform: name, PageID: pageID, Error: err.Error()})
				r.Logger.Printf("[InsightSync] quota check failed platform=%s pageId=%s err=%v", name, pageID, err)
				continue
			}
			if !ok {
				out = append(out, ProviderRunResult{Platform: name, PageID: pageID, Skipped: true, Reason: "daily_quota_exceeded"})
				r.Logger.Printf("[InsightSync] quota exceeded platform=%s pageId=%s used=%d max=%d", name, pageID, used, cfg.DailyRequestsMax)
				continue
			}
		}

		fetched, upserted, err := p.SyncPage(ctx, r.DB, pageID, r.Client, lim, r.Logger)
		if err != nil {
			out = append(out, ProviderRunResult{Platform: name, PageID: pageID, Fetched: fetched, Upserted: upserted, Error: err.Error()})
			r.Logger.Printf("[InsightSync] error platform=%s pageId=%s fetched=%d upserted=%d dur=%s err=%v", name, pageID, fetched, upserted, time.Since(start), err)
			continue
		}
		out = append(out, ProviderRunResult{Platform: name, PageID: pageID, Fetched: fetched, Upserted: upserted})
		r.Logger.Printf("[InsightSync] done platform=%s pageId=%s fetched=%d upserted=%d dur=%s", name, pageID, fetched, upserted, time.Since(start))
	}
	return out
}

// SyncAll refreshes analytics for every connected page of the provider's platform.
func (r *Runner) SyncAll(ctx context.Context, provider Provider) []ProviderRunResult {
	r.EnsureDefaults()
	if r.DB == nil {
		return nil
	}
	name := provider.Name()
	rows, err := r.DB.QueryContext(ctx, `SELECT page_id FROM public.pages WHERE platform = $1`, name)
	if err != nil {
		r.Logger.Printf("[InsightSync] list pages failed platform=%s err=%v", name, err)
		return nil
	}
	defer rows.Close()

	out := make([]ProviderRunResult, 0, 8)
	for rows.Next() {
		var pageID string
		if err := rows.Scan(&pageID); err != nil {
			continue
		}
		out = append(out, r.SyncPageNow(ctx, pageID, []Provider{provider})...)
	}
	return out
}

// StartProviderWorker runs a periodic analytics refresh loop for a single platform.
func (r *Runner) StartProviderWorker(ctx context.Context, provider Provider, interval time.Duration) {
	r.EnsureDefaults()
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	name := provider.Name()
	_, cfg := r.limiterForPlatform(name)
	r.Logger.Printf("[InsightWorker] started platform=%s interval=%s rps=%.3f burst=%d dailyMax=%d", name, interval, cfg.RequestsPerSecond, cfg.Burst, cfg.DailyRequestsMax)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	run := func() {
		results := r.SyncAll(ctx, provider)
		r.Logger.Printf("[InsightWorker] sweep complete platform=%s pages=%d", name, len(results))
	}

	run()
	for {
		select {
		case <-ctx.Done():
			if r.Logger == nil {
				log.Default().Printf("[InsightWorker] stopped platform=%s err=%v", name, ctx.Err())
			} else {
				r.Logger.Printf("[InsightWorker] stopped platform=%s err=%v", name, ctx.Err())
			}
			return
		case <-ticker.C:
			run()
		}
	}
}
