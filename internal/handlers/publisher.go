package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pagedeck/pagedeck/backend/internal/apiclient"
	"github.com/pagedeck/pagedeck/backend/internal/models"
	"github.com/pagedeck/pagedeck/backend/internal/platform"
)

// publishPost pushes one claimed post to its page's network and returns the
// remote post id. Dev-mode pages (dev_ tokens) fabricate the remote id so the
// full pipeline works without real credentials.
func (h *Handler) publishPost(ctx context.Context, postID, pageID string) (string, error) {
	var plat, token string
	err := h.db.QueryRowContext(ctx, `
		SELECT platform, COALESCE(access_token, '')
		  FROM public.pages
		 WHERE page_id = $1`, pageID).Scan(&plat, &token)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("page %s is not connected", pageID)
	}
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", fmt.Errorf("page %s has no access token", pageID)
	}

	var content sql.NullString
	var platformContent []byte
	var enabled []byte
	if err := h.db.QueryRowContext(ctx, `
		SELECT content, COALESCE(platform_content, '{}'::jsonb), COALESCE(platform_enabled, '{}'::jsonb)
		  FROM public.posts
		 WHERE id = $1`, postID).Scan(&content, &platformContent, &enabled); err != nil {
		return "", err
	}

	enabledMap := map[string]bool{}
	_ = json.Unmarshal(enabled, &enabledMap)
	if v, present := enabledMap[plat]; present && !v {
		return "", fmt.Errorf("platform %s is disabled for this post", plat)
	}

	// Per-platform content overrides the shared body when set.
	message := strings.TrimSpace(content.String)
	overrides := map[string]string{}
	_ = json.Unmarshal(platformContent, &overrides)
	if o := strings.TrimSpace(overrides[plat]); o != "" {
		message = o
	}
	if message == "" {
		return "", fmt.Errorf("empty_content")
	}

	if strings.HasPrefix(token, "dev_") {
		return "dev_post_" + randHex(12), nil
	}

	api := apiclient.New(platform.APIBaseFor(plat))
	path := fmt.Sprintf("/%s/feed?access_token=%s", url.PathEscape(pageID), url.QueryEscape(token))
	raw, err := api.Request(ctx, http.MethodPost, path, map[string]any{"message": message})
	if err != nil {
		return "", err
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &out); err != nil || strings.TrimSpace(out.ID) == "" {
		return "", fmt.Errorf("publish response had no post id (body starts %q)", truncate(string(raw), 120))
	}
	return out.ID, nil
}

// markPublished records a successful remote publish.
func (h *Handler) markPublished(ctx context.Context, postID, externalID string) error {
	_, err := h.db.ExecContext(ctx, `
		UPDATE public.posts
		   SET status = $2,
		       external_post_id = $3,
		       published_at = NOW(),
		       last_publish_error = NULL,
		       updated_at = NOW()
		 WHERE id = $1`, postID, models.PostStatusPublished, externalID)
	return err
}

// markPublishFailed records the failure verbatim. The claim stamp stays set
// so the post is not retried until an edit clears the publish state; a failed
// publish is never flipped to success by anything but a real remote publish.
func (h *Handler) markPublishFailed(ctx context.Context, postID string, cause error) {
	_, err := h.db.ExecContext(ctx, `
		UPDATE public.posts
		   SET status = $2,
		       last_publish_error = $3,
		       updated_at = NOW()
		 WHERE id = $1`, postID, models.PostStatusPublishFailed, truncate(cause.Error(), 300))
	if err != nil {
		log.Printf("[SchedPublisher] mark_failed postId=%s err=%v", postID, err)
	}
}

// processDueScheduledPostsOnce claims due scheduled posts and publishes them.
//
// Claiming sets publish_claimed_at so concurrent instances never publish the
// same post twice.
func (h *Handler) processDueScheduledPostsOnce(ctx context.Context, limit int) (int, error) {
	if h == nil || h.db == nil {
		return 0, nil
	}
	if limit <= 0 {
		limit = 25
	}

	type cand struct {
		id        string
		pageID    string
		scheduled time.Time
	}

	rows, err := h.db.QueryContext(ctx, `
		SELECT id, page_id, scheduled_time
		  FROM public.posts
		 WHERE status = $1
		   AND scheduled_time IS NOT NULL
		   AND scheduled_time <= NOW()
		   AND publish_claimed_at IS NULL
		 ORDER BY scheduled_time ASC
		 LIMIT $2
	`, models.PostStatusScheduled, limit)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	cands := make([]cand, 0)
	for rows.Next() {
		var c cand
		if err := rows.Scan(&c.id, &c.pageID, &c.scheduled); err != nil {
			return 0, err
		}
		cands = append(cands, c)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(cands) == 0 {
		return 0, nil
	}

	published := 0
	for _, c := range cands {
		log.Printf("[SchedPublisher] candidate postId=%s pageId=%s scheduled=%s",
			c.id, c.pageID, c.scheduled.UTC().Format(time.RFC3339))

		// Claim atomically so only one instance proceeds.
		res, err := h.db.ExecContext(ctx, `
			UPDATE public.posts
			   SET publish_claimed_at = NOW(),
			       last_publish_error = NULL,
			       updated_at = NOW()
			 WHERE id = $1
			   AND status = $2
			   AND scheduled_time IS NOT NULL
			   AND scheduled_time <= NOW()
			   AND publish_claimed_at IS NULL
		`, c.id, models.PostStatusScheduled)
		if err != nil {
			log.Printf("[SchedPublisher] claim_failed postId=%s err=%v", c.id, err)
			continue
		}
		if n, _ := res.RowsAffected(); n == 0 {
			log.Printf("[SchedPublisher] claim_skipped postId=%s reason=not_due_or_already_claimed", c.id)
			continue
		}

		externalID, err := h.publishPost(ctx, c.id, c.pageID)
		if err != nil {
			h.markPublishFailed(ctx, c.id, err)
			log.Printf("[SchedPublisher] publish_failed postId=%s pageId=%s err=%v", c.id, c.pageID, err)
			h.emitBroadcast(realtimeEvent{Type: "post.updated", PostID: c.id, PageID: c.pageID, Status: models.PostStatusPublishFailed})
			continue
		}
		if err := h.markPublished(ctx, c.id, externalID); err != nil {
			log.Printf("[SchedPublisher] mark_published postId=%s err=%v", c.id, err)
			continue
		}

		published++
		log.Printf("[SchedPublisher] published postId=%s pageId=%s externalId=%s", c.id, c.pageID, externalID)
		h.emitBroadcast(realtimeEvent{Type: "post.updated", PostID: c.id, PageID: c.pageID, Status: models.PostStatusPublished})
	}

	return published, nil
}

// StartScheduledPostsWorker runs a periodic poller that publishes due
// scheduled posts. Wire it from main behind an env gate.
func (h *Handler) StartScheduledPostsWorker(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	log.Printf("[SchedPublisher] worker started interval=%s", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Log a lightweight summary periodically even when nothing is due.
	sweepCount := 0
	sweepStats := func() (due int, next sql.NullTime) {
		if h == nil || h.db == nil {
			return 0, sql.NullTime{}
		}
		_ = h.db.QueryRowContext(ctx, `
			SELECT COUNT(*)
			  FROM public.posts
			 WHERE status = $1
			   AND scheduled_time IS NOT NULL
			   AND scheduled_time <= NOW()
			   AND publish_claimed_at IS NULL
		`, models.PostStatusScheduled).Scan(&due)
		_ = h.db.QueryRowContext(ctx, `
			SELECT MIN(scheduled_time)
			  FROM public.posts
			 WHERE status = $1
			   AND scheduled_time IS NOT NULL
			   AND scheduled_time > NOW()
		`, models.PostStatusScheduled).Scan(&next)
		return due, next
	}

	run := func() {
		sweepCount++
		limit := 25
		backoffs := []time.Duration{700 * time.Millisecond, 1500 * time.Millisecond, 3 * time.Second}
		var n int
		var err error
		for attempt := 0; attempt < len(backoffs)+1; attempt++ {
			// Timebox each sweep attempt.
			sweepCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
			n, err = h.processDueScheduledPostsOnce(sweepCtx, limit)
			cancel()
			if err == nil {
				break
			}
			if strings.Contains(strings.ToLower(err.Error()), "out of memory") && limit > 5 {
				limit = 5
			}
			if attempt < len(backoffs) {
				log.Printf("[SchedPublisher] sweep error attempt=%d/%d limit=%d err=%v", attempt+1, len(backoffs)+1, limit, err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(backoffs[attempt]):
				}
				continue
			}
		}
		if err != nil {
			log.Printf("[SchedPublisher] sweep error final limit=%d err=%v", limit, err)
			return
		}
		if n > 0 {
			log.Printf("[SchedPublisher] published=%d", n)
			return
		}
		// Every ~10 sweeps, print a summary so "nothing happening" is diagnosable.
		if sweepCount%10 == 0 {
			due, next := sweepStats()
			nextStr := ""
			if next.Valid {
				nextStr = next.Time.UTC().Format(time.RFC3339)
			}
			log.Printf("[SchedPublisher] sweep ok published=0 due=%d next=%s", due, nextStr)
		}
	}

	run()
	for {
		select {
		case <-ctx.Done():
			log.Printf("[SchedPublisher] worker stopped err=%v", ctx.Err())
			return
		case <-ticker.C:
			run()
		}
	}
}

// PublishNowPost publishes a draft or scheduled post immediately, skipping
// the schedule. POST /api/posts/{id}/publish-now
func (h *Handler) PublishNowPost(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(pathVar(r, "id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "post id is required")
		return
	}

	var pageID, status string
	err := h.db.QueryRowContext(r.Context(), `
		SELECT page_id, status FROM public.posts WHERE id = $1`, id).Scan(&pageID, &status)
	if err == sql.ErrNoRows {
		writeError(w, http.StatusNotFound, "post not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	switch status {
	case models.PostStatusDraft, models.PostStatusScheduled:
	case models.PostStatusPublished:
		writeError(w, http.StatusConflict, "post is already published")
		return
	default:
		writeError(w, http.StatusConflict, "post is in a failed publish state; edit it first")
		return
	}

	// Claim against concurrent worker sweeps.
	res, err := h.db.ExecContext(r.Context(), `
		UPDATE public.posts
		   SET publish_claimed_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND publish_claimed_at IS NULL`, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		writeError(w, http.StatusConflict, "post publish is already in progress")
		return
	}

	externalID, err := h.publishPost(r.Context(), id, pageID)
	if err != nil {
		h.markPublishFailed(r.Context(), id, err)
		h.emitBroadcast(realtimeEvent{Type: "post.updated", PostID: id, PageID: pageID, Status: models.PostStatusPublishFailed})
		writeError(w, http.StatusBadGateway, "publish failed: "+err.Error())
		return
	}
	if err := h.markPublished(r.Context(), id, externalID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.emitBroadcast(realtimeEvent{Type: "post.updated", PostID: id, PageID: pageID, Status: models.PostStatusPublished})

	row := h.db.QueryRow(`SELECT `+postColumns+` FROM public.posts WHERE id = $1`, id)
	out, err := scanPost(row)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}
