package insights

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// graphProvider pulls per-post and per-page counters from a Graph-API-style
// endpoint. The five platforms differ only in origin and field names.
type graphProvider struct {
	platform string
	apiBase  string
	// fields requested per post object.
	postFields string
}

func NewFacebookProvider() Provider {
	return &graphProvider{
		platform:   "facebook",
		apiBase:    "https://graph.facebook.com/v18.0",
		postFields: "likes.summary(true),comments.summary(true),shares,insights.metric(post_impressions,post_impressions_unique)",
	}
}

func NewInstagramProvider() Provider {
	return &graphProvider{
		platform:   "instagram",
		apiBase:    "https://graph.facebook.com/v18.0",
		postFields: "like_count,comments_count,insights.metric(impressions,reach)",
	}
}

func NewThreadsProvider() Provider {
	return &graphProvider{
		platform:   "threads",
		apiBase:    "https://graph.threads.net/v1.0",
		postFields: "likes,replies,reposts,views",
	}
}

func NewTikTokProvider() Provider {
	return &graphProvider{
		platform:   "tiktok",
		apiBase:    "https://open.tiktokapis.com/v2",
		postFields: "like_count,comment_count,share_count,view_count",
	}
}

func NewXProvider() Provider {
	return &graphProvider{
		platform:   "x",
		apiBase:    "https://api.twitter.com/2",
		postFields: "public_metrics",
	}
}

// AllProviders returns one provider per supported platform, in display order.
func AllProviders() []Provider {
	return []Provider{
		NewFacebookProvider(),
		NewInstagramProvider(),
		NewThreadsProvider(),
		NewTikTokProvider(),
		NewXProvider(),
	}
}

func (p *graphProvider) Name() string { return p.platform }

// postMetrics is the superset of counter shapes the platforms return; only
// some fields are set for any given network.
type postMetrics struct {
	Likes struct {
		Summary struct {
			TotalCount int64 `json:"total_count"`
		} `json:"summary"`
	} `json:"likes"`
	Comments struct {
		Summary struct {
			TotalCount int64 `json:"total_count"`
		} `json:"summary"`
	} `json:"comments"`
	Shares struct {
		Count int64 `json:"count"`
	} `json:"shares"`
	Insights struct {
		Data []struct {
			Name   string `json:"name"`
			Values []struct {
				Value int64 `json:"value"`
			} `json:"values"`
		} `json:"data"`
	} `json:"insights"`

	LikeCount     int64 `json:"like_count"`
	CommentsCount int64 `json:"comments_count"`
	CommentCount  int64 `json:"comment_count"`
	ShareCount    int64 `json:"share_count"`
	ViewCount     int64 `json:"view_count"`
	Replies       int64 `json:"replies"`
	Reposts       int64 `json:"reposts"`
	Views         int64 `json:"views"`

	PublicMetrics struct {
		LikeCount       int64 `json:"like_count"`
		ReplyCount      int64 `json:"reply_count"`
		RetweetCount    int64 `json:"retweet_count"`
		ImpressionCount int64 `json:"impression_count"`
	} `json:"public_metrics"`
}

func (m postMetrics) flatten() (likes, comments, shares, views, reach int64) {
	likes = m.Likes.Summary.TotalCount + m.LikeCount + m.PublicMetrics.LikeCount
	comments = m.Comments.Summary.TotalCount + m.CommentsCount + m.CommentCount + m.Replies + m.PublicMetrics.ReplyCount
	shares = m.Shares.Count + m.ShareCount + m.Reposts + m.PublicMetrics.RetweetCount
	views = m.ViewCount + m.Views + m.PublicMetrics.ImpressionCount
	for _, d := range m.Insights.Data {
		if len(d.Values) == 0 {
			continue
		}
		switch d.Name {
		case "post_impressions", "impressions":
			views += d.Values[0].Value
		case "post_impressions_unique", "reach":
			reach += d.Values[0].Value
		}
	}
	if reach == 0 {
		reach = views
	}
	return
}

func (p *graphProvider) SyncPage(ctx context.Context, db *sql.DB, pageID string, client *http.Client, limiter *rate.Limiter, logger *log.Logger) (int, int, error) {
	if db == nil {
		return 0, 0, fmt.Errorf("db is nil")
	}
	l := logger
	if l == nil {
		l = log.Default()
	}
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}

	var token string
	if err := db.QueryRowContext(ctx, `SELECT access_token FROM public.pages WHERE page_id = $1 AND platform = $2`, pageID, p.platform).Scan(&token); err != nil {
		if err == sql.ErrNoRows {
			return 0, 0, nil
		}
		return 0, 0, err
	}
	if strings.TrimSpace(token) == "" {
		return 0, 0, nil
	}

	// Published posts with a remote id are the ones that have counters to pull.
	rows, err := db.QueryContext(ctx, `
		SELECT id, external_post_id
		  FROM public.posts
		 WHERE page_id = $1
		   AND status = 'published'
		   AND external_post_id IS NOT NULL
		 ORDER BY published_at DESC
		 LIMIT 50
	`, pageID)
	if err != nil {
		return 0, 0, err
	}
	defer rows.Close()

	type target struct{ localID, remoteID string }
	targets := make([]target, 0, 50)
	for rows.Next() {
		var t target
		if err := rows.Scan(&t.localID, &t.remoteID); err != nil {
			return 0, 0, err
		}
		targets = append(targets, t)
	}
	if err := rows.Err(); err != nil {
		return 0, 0, err
	}

	fetched := 0
	upserted := 0
	var pageLikes, pageComments, pageShares, pageViews, pageReach int64

	for _, t := range targets {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return fetched, upserted, err
			}
		}

		var m postMetrics
		if strings.HasPrefix(token, "dev_") {
			// Dev-mode tokens never hit the network; fabricate stable counters
			// so local dashboards have data.
			m.LikeCount = int64(len(t.remoteID)) * 3
			m.CommentCount = int64(len(t.remoteID))
			m.ViewCount = int64(len(t.remoteID)) * 20
		} else {
			raw, err := p.fetchPost(ctx, client, t.remoteID, token)
			if err != nil {
				l.Printf("[InsightSync] fetch failed platform=%s pageId=%s postId=%s err=%v", p.platform, pageID, t.remoteID, err)
				continue
			}
			if err := json.Unmarshal(raw, &m); err != nil {
				l.Printf("[InsightSync] parse failed platform=%s postId=%s err=%v", p.platform, t.remoteID, err)
				continue
			}
		}
		fetched++

		likes, comments, shares, views, reach := m.flatten()
		pageLikes += likes
		pageComments += comments
		pageShares += shares
		pageViews += views
		pageReach += reach

		// Counters are read-mostly aggregates; last write wins.
		if _, err := db.ExecContext(ctx, `
			INSERT INTO public.post_analytics (post_id, likes, comments, shares, views, reach, last_updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW())
			ON CONFLICT (post_id) DO UPDATE SET
				likes = EXCLUDED.likes,
				comments = EXCLUDED.comments,
				shares = EXCLUDED.shares,
				views = EXCLUDED.views,
				reach = EXCLUDED.reach,
				last_updated_at = NOW()
		`, t.localID, likes, comments, shares, views, reach); err != nil {
			l.Printf("[InsightSync] upsert failed platform=%s postId=%s err=%v", p.platform, t.localID, err)
			continue
		}
		upserted++
	}

	if fetched > 0 {
		if _, err := db.ExecContext(ctx, `
			INSERT INTO public.page_analytics (page_id, likes, comments, shares, views, reach, last_updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW())
			ON CONFLICT (page_id) DO UPDATE SET
				likes = EXCLUDED.likes,
				comments = EXCLUDED.comments,
				shares = EXCLUDED.shares,
				views = EXCLUDED.views,
				reach = EXCLUDED.reach,
				last_updated_at = NOW()
		`, pageID, pageLikes, pageComments, pageShares, pageViews, pageReach); err != nil {
			l.Printf("[InsightSync] page upsert failed platform=%s pageId=%s err=%v", p.platform, pageID, err)
		}
	}

	l.Printf("[InsightSync] page done platform=%s pageId=%s fetched=%d upserted=%d", p.platform, pageID, fetched, upserted)
	return fetched, upserted, nil
}

func (p *graphProvider) fetchPost(ctx context.Context, client *http.Client, remoteID, token string) ([]byte, error) {
	q := url.Values{}
	q.Set("fields", p.postFields)
	q.Set("access_token", token)
	reqURL := fmt.Sprintf("%s/%s?%s", p.apiBase, url.PathEscape(remoteID), q.Encode())

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	res, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("%s_non_2xx status=%d body=%s", p.platform, res.StatusCode, truncate(string(body), 600))
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
