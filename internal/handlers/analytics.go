package handlers

import (
	"database/sql"
	"log"
	"net/http"
	"strings"

	"github.com/pagedeck/pagedeck/backend/internal/insights"
	"github.com/pagedeck/pagedeck/backend/internal/models"
)

// GetPostAnalytics returns the stored per-post counters. A post that has
// never been synced gets a zero row rather than a 404 so the dashboard can
// render immediately after publish.
func (h *Handler) GetPostAnalytics(w http.ResponseWriter, r *http.Request) {
	postID := strings.TrimSpace(pathVar(r, "id"))
	if postID == "" {
		writeError(w, http.StatusBadRequest, "post id is required")
		return
	}

	var a models.PostAnalytics
	err := h.db.QueryRow(`
		SELECT post_id, likes, comments, shares, views, reach, last_updated_at
		  FROM public.post_analytics
		 WHERE post_id = $1`, postID).
		Scan(&a.PostID, &a.Likes, &a.Comments, &a.Shares, &a.Views, &a.Reach, &a.LastUpdatedAt)
	if err == sql.ErrNoRows {
		writeJSON(w, http.StatusOK, models.PostAnalytics{PostID: postID})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// GetPageAnalytics returns the page-level aggregate counters.
func (h *Handler) GetPageAnalytics(w http.ResponseWriter, r *http.Request) {
	pageID := strings.TrimSpace(pathVar(r, "pageId"))
	if pageID == "" {
		writeError(w, http.StatusBadRequest, "pageId is required")
		return
	}

	var a models.PageAnalytics
	err := h.db.QueryRow(`
		SELECT page_id, likes, comments, shares, views, reach, last_updated_at
		  FROM public.page_analytics
		 WHERE page_id = $1`, pageID).
		Scan(&a.PageID, &a.Likes, &a.Comments, &a.Shares, &a.Views, &a.Reach, &a.LastUpdatedAt)
	if err == sql.ErrNoRows {
		writeJSON(w, http.StatusOK, models.PageAnalytics{PageID: pageID})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// SyncAnalytics triggers an on-demand refresh. Body: {"pageId": "..."}
// refreshes one page across all known networks; an empty body refreshes
// every connected page.
func (h *Handler) SyncAnalytics(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PageID string `json:"pageId"`
	}
	_ = decodeJSON(r, &req)

	runner := &insights.Runner{DB: h.db, Client: http.DefaultClient, Logger: log.Default()}
	providers := insights.AllProviders()

	var results []insights.ProviderRunResult
	if pageID := strings.TrimSpace(req.PageID); pageID != "" {
		// Only run the provider matching the page's platform.
		var platform string
		err := h.db.QueryRow(`SELECT platform FROM public.pages WHERE page_id = $1`, pageID).Scan(&platform)
		if err == sql.ErrNoRows {
			writeError(w, http.StatusNotFound, "page not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		for _, p := range providers {
			if p.Name() == platform {
				results = runner.SyncPageNow(r.Context(), pageID, []insights.Provider{p})
				break
			}
		}
	} else {
		for _, p := range providers {
			results = append(results, runner.SyncAll(r.Context(), p)...)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "results": results})
}
