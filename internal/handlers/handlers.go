package handlers

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/pagedeck/pagedeck/backend/internal/middleware"
	"github.com/pagedeck/pagedeck/backend/internal/models"
	"github.com/pagedeck/pagedeck/backend/internal/schedule"
)

type Handler struct {
	db    *sql.DB
	rt    *realtimeHub
	guard *middleware.SessionGuard
}

func New(db *sql.DB) *Handler {
	return &Handler{db: db, rt: newRealtimeHub(), guard: middleware.NewSessionGuard()}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// CreateSession issues the signed session cookie. The operator token is a
// single shared secret (OPERATOR_TOKEN); this dashboard has no user accounts.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Operator string `json:"operator"`
		Token    string `json:"token"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	operator := strings.TrimSpace(req.Operator)
	if operator == "" {
		writeError(w, http.StatusBadRequest, "operator is required")
		return
	}
	if h.guard.Secret != "" && req.Token != operatorToken() {
		writeError(w, http.StatusUnauthorized, "invalid operator token")
		return
	}
	http.SetCookie(w, h.guard.IssueCookie(operator))
	writeJSON(w, http.StatusOK, map[string]string{"operator": operator})
}

// ListPages returns every connected account page.
func (h *Handler) ListPages(w http.ResponseWriter, r *http.Request) {
	rows, err := h.db.Query(`
		SELECT page_id, platform, name, avatar, connected_at
		  FROM public.pages
		 ORDER BY connected_at ASC
	`)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer rows.Close()

	pages := []models.Page{}
	for rows.Next() {
		var p models.Page
		if err := rows.Scan(&p.PageID, &p.Platform, &p.Name, &p.Avatar, &p.ConnectedAt); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		pages = append(pages, p)
	}
	if err := rows.Err(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, pages)
}

// postRequest is the post compose form as submitted. Scheduling arrives as
// the raw sub-fields so the cross-field rules can run server-side on every
// create and update.
type postRequest struct {
	ID       *string `json:"id"`
	Content  *string `json:"content"`
	Status   *string `json:"status"`
	Category *string `json:"category"`

	SchedulePost bool   `json:"schedulePost"`
	ScheduleDate string `json:"scheduleDate"`
	ScheduleTime string `json:"scheduleTime"`
	EndDate      string `json:"endDate"`
	EndTime      string `json:"endTime"`

	MediaURL  *string             `json:"mediaUrl"`
	MediaType *string             `json:"mediaType"`
	Link      *models.LinkPreview `json:"link"`

	PlatformContent map[string]string `json:"platformContent"`
	PlatformEnabled map[string]bool   `json:"platformEnabled"`
}

// normalizeSchedule folds the other ways a client expresses scheduling intent
// (status "scheduled", any schedule sub-field) into the SchedulePost flag, so
// validation and status derivation see a single signal. Without this a
// status:"scheduled" body missing the flag would be stored as a silent draft.
func (req *postRequest) normalizeSchedule() {
	if req.Status != nil && *req.Status == models.PostStatusScheduled {
		req.SchedulePost = true
	}
	if strings.TrimSpace(req.ScheduleDate) != "" || strings.TrimSpace(req.ScheduleTime) != "" ||
		strings.TrimSpace(req.EndDate) != "" || strings.TrimSpace(req.EndTime) != "" {
		req.SchedulePost = true
	}
}

func (req *postRequest) scheduleInput() schedule.Input {
	return schedule.Input{
		SchedulePost: req.SchedulePost,
		ScheduleDate: req.ScheduleDate,
		ScheduleTime: req.ScheduleTime,
		EndDate:      req.EndDate,
		EndTime:      req.EndTime,
	}
}

// composeSchedule turns the validated raw fields into timestamps.
func (req *postRequest) composeSchedule() (scheduledTime, endTime *time.Time, err error) {
	if !req.SchedulePost {
		return nil, nil, nil
	}
	start, err := schedule.Compose(req.ScheduleDate, req.ScheduleTime)
	if err != nil {
		return nil, nil, err
	}
	scheduledTime = &start
	if strings.TrimSpace(req.EndDate) != "" {
		end, err := schedule.Compose(req.EndDate, req.EndTime)
		if err != nil {
			return nil, nil, err
		}
		endTime = &end
	}
	return scheduledTime, endTime, nil
}

func validCategory(c string) bool {
	switch c {
	case models.PostCategoryPromotion, models.PostCategoryEvent, models.PostCategoryAnnouncement:
		return true
	}
	return false
}

// validatePlatformMaps rejects keys outside the fixed platform set. The maps
// used to be free-form; they are validated at the boundary now.
// hasEnabledPlatform reports whether the enabled map leaves anything to
// publish to. An absent map means "all platforms", which counts.
func hasEnabledPlatform(enabled map[string]bool) bool {
	if len(enabled) == 0 {
		return true
	}
	for _, on := range enabled {
		if on {
			return true
		}
	}
	return false
}

func validatePlatformMaps(content map[string]string, enabled map[string]bool) error {
	for k := range content {
		if !models.IsPlatform(k) {
			return fmt.Errorf("platformContent has unknown platform %q", k)
		}
	}
	for k := range enabled {
		if !models.IsPlatform(k) {
			return fmt.Errorf("platformEnabled has unknown platform %q", k)
		}
	}
	return nil
}

// isForeignKeyViolation reports a Postgres 23503, which on the posts table
// means the referenced page is not connected.
func isForeignKeyViolation(err error) bool {
	pqe, ok := err.(*pq.Error)
	return ok && pqe.Code == "23503"
}

const postColumns = `id, external_post_id, page_id, content, status, category,
	       scheduled_time, end_time, media_url, media_type,
	       link_url, link_title, link_description, link_image,
	       COALESCE(platform_content, '{}'::jsonb), COALESCE(platform_enabled, '{}'::jsonb),
	       last_publish_error, published_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (models.Post, error) {
	var p models.Post
	var content, enabled []byte
	err := row.Scan(
		&p.ID, &p.ExternalPostID, &p.PageID, &p.Content, &p.Status, &p.Category,
		&p.ScheduledTime, &p.EndTime, &p.MediaURL, &p.MediaType,
		&p.Link.URL, &p.Link.Title, &p.Link.Description, &p.Link.Image,
		&content, &enabled,
		&p.LastPublishError, &p.PublishedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return p, err
	}
	if len(content) > 0 {
		_ = json.Unmarshal(content, &p.PlatformContent)
	}
	if len(enabled) > 0 {
		_ = json.Unmarshal(enabled, &p.PlatformEnabled)
	}
	return p, nil
}

// ListPostsForPage lists a page's posts, optionally filtered by status.
func (h *Handler) ListPostsForPage(w http.ResponseWriter, r *http.Request) {
	pageID := strings.TrimSpace(pathVar(r, "pageId"))
	if pageID == "" {
		writeError(w, http.StatusBadRequest, "pageId is required")
		return
	}
	status := strings.TrimSpace(r.URL.Query().Get("status"))
	limit := 200

	var rows *sql.Rows
	var err error
	if status != "" {
		rows, err = h.db.Query(
			`SELECT `+postColumns+`
			 FROM public.posts
			 WHERE page_id = $1 AND status = $2
			 ORDER BY created_at DESC
			 LIMIT $3`,
			pageID, status, limit,
		)
	} else {
		rows, err = h.db.Query(
			`SELECT `+postColumns+`
			 FROM public.posts
			 WHERE page_id = $1
			 ORDER BY created_at DESC
			 LIMIT $2`,
			pageID, limit,
		)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer rows.Close()

	posts := []models.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// CreatePostForPage creates a draft or scheduled post owned by a page.
func (h *Handler) CreatePostForPage(w http.ResponseWriter, r *http.Request) {
	pageID := strings.TrimSpace(pathVar(r, "pageId"))
	if pageID == "" {
		writeError(w, http.StatusBadRequest, "pageId is required")
		return
	}

	var req postRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.normalizeSchedule()

	if req.Status != nil {
		switch *req.Status {
		case "", models.PostStatusDraft, models.PostStatusScheduled:
		default:
			writeError(w, http.StatusBadRequest, "publish status is set by the publisher, not the client")
			return
		}
	}
	if res := schedule.Validate(req.scheduleInput()); !res.Valid() {
		writeFieldErrors(w, res.Errors)
		return
	}
	if req.Category != nil && !validCategory(*req.Category) {
		writeError(w, http.StatusBadRequest, "invalid category")
		return
	}
	if err := validatePlatformMaps(req.PlatformContent, req.PlatformEnabled); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.SchedulePost && !hasEnabledPlatform(req.PlatformEnabled) {
		writeError(w, http.StatusBadRequest, "at least one platform must be enabled to schedule")
		return
	}

	hasContent := req.Content != nil && strings.TrimSpace(*req.Content) != ""
	hasMedia := req.MediaURL != nil && strings.TrimSpace(*req.MediaURL) != ""
	if !hasContent && !hasMedia {
		writeError(w, http.StatusBadRequest, "content or media is required")
		return
	}

	scheduledTime, endTime, err := req.composeSchedule()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	status := models.PostStatusDraft
	if req.SchedulePost {
		status = models.PostStatusScheduled
	}

	id := ""
	if req.ID != nil {
		id = strings.TrimSpace(*req.ID)
	}
	if id == "" {
		id = randHex(16)
	}

	contentJSON, enabledJSON := marshalPlatformMaps(req.PlatformContent, req.PlatformEnabled)
	var link models.LinkPreview
	if req.Link != nil {
		link = *req.Link
	}

	row := h.db.QueryRow(`
		INSERT INTO public.posts
		  (id, page_id, content, status, category, scheduled_time, end_time,
		   media_url, media_type, link_url, link_title, link_description, link_image,
		   platform_content, platform_enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14::jsonb, $15::jsonb, NOW(), NOW())
		RETURNING `+postColumns,
		id, pageID, req.Content, status, req.Category, scheduledTime, endTime,
		req.MediaURL, req.MediaType, link.URL, link.Title, link.Description, link.Image,
		contentJSON, enabledJSON,
	)
	out, err := scanPost(row)
	if isForeignKeyViolation(err) {
		writeError(w, http.StatusNotFound, "page not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// GetPost fetches one post by id.
func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(pathVar(r, "id"))
	row := h.db.QueryRow(`SELECT `+postColumns+` FROM public.posts WHERE id = $1`, id)
	out, err := scanPost(row)
	if err == sql.ErrNoRows {
		writeError(w, http.StatusNotFound, "post not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// UpdatePost applies a partial update. Scheduling fields are re-validated as
// a whole whenever any of them (or the schedulePost flag) changes. The
// published and publish_failed statuses are system-owned: a client cannot set
// them directly, and a failed remote publish is never forced to success from
// the outside.
func (h *Handler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(pathVar(r, "id"))
	if id == "" {
		id = strings.TrimSpace(pathVar(r, "postId"))
	}
	if id == "" {
		writeError(w, http.StatusBadRequest, "post id is required")
		return
	}

	var req postRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.normalizeSchedule()

	if req.Status != nil {
		switch *req.Status {
		case models.PostStatusDraft, models.PostStatusScheduled:
		case models.PostStatusPublished, models.PostStatusPublishFailed:
			writeError(w, http.StatusBadRequest, "publish status is set by the publisher, not the client")
			return
		default:
			writeError(w, http.StatusBadRequest, "invalid status")
			return
		}
	}
	if req.Category != nil && *req.Category != "" && !validCategory(*req.Category) {
		writeError(w, http.StatusBadRequest, "invalid category")
		return
	}
	if err := validatePlatformMaps(req.PlatformContent, req.PlatformEnabled); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.SchedulePost && req.PlatformEnabled != nil && !hasEnabledPlatform(req.PlatformEnabled) {
		writeError(w, http.StatusBadRequest, "at least one platform must be enabled to schedule")
		return
	}

	// After normalizeSchedule the flag covers every way a request can touch
	// the schedule, so a lone end field is validated instead of silently
	// unscheduling the post.
	var scheduledTime, endTime *time.Time
	var statusArg *string
	if req.SchedulePost {
		if res := schedule.Validate(req.scheduleInput()); !res.Valid() {
			writeFieldErrors(w, res.Errors)
			return
		}
		var err error
		scheduledTime, endTime, err = req.composeSchedule()
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s := models.PostStatusScheduled
		statusArg = &s
	} else if req.Status != nil {
		statusArg = req.Status
	}

	var contentJSONArg, enabledJSONArg any
	if req.PlatformContent != nil || req.PlatformEnabled != nil {
		cj, ej := marshalPlatformMaps(req.PlatformContent, req.PlatformEnabled)
		if req.PlatformContent != nil {
			contentJSONArg = cj
		}
		if req.PlatformEnabled != nil {
			enabledJSONArg = ej
		}
	}
	var link models.LinkPreview
	if req.Link != nil {
		link = *req.Link
	}

	// A content/schedule change invalidates any previous publish failure.
	clearPublishState := req.Content != nil || req.SchedulePost || statusArg != nil

	row := h.db.QueryRow(`
		UPDATE public.posts
		SET
			content = COALESCE($2, content),
			status = COALESCE($3, status),
			category = COALESCE($4, category),
			scheduled_time = CASE WHEN $5 THEN $6 ELSE scheduled_time END,
			end_time = CASE WHEN $5 THEN $7 ELSE end_time END,
			media_url = COALESCE($8, media_url),
			media_type = COALESCE($9, media_type),
			link_url = COALESCE($10, link_url),
			link_title = COALESCE($11, link_title),
			link_description = COALESCE($12, link_description),
			link_image = COALESCE($13, link_image),
			platform_content = COALESCE($14::jsonb, platform_content),
			platform_enabled = COALESCE($15::jsonb, platform_enabled),
			last_publish_error = CASE WHEN $16 THEN NULL ELSE last_publish_error END,
			publish_claimed_at = CASE WHEN $16 THEN NULL ELSE publish_claimed_at END,
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+postColumns,
		id, req.Content, statusArg, req.Category, req.SchedulePost, scheduledTime, endTime,
		req.MediaURL, req.MediaType, link.URL, link.Title, link.Description, link.Image,
		contentJSONArg, enabledJSONArg, clearPublishState,
	)
	out, err := scanPost(row)
	if err == sql.ErrNoRows {
		writeError(w, http.StatusNotFound, "post not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// DeletePost removes one post.
func (h *Handler) DeletePost(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(pathVar(r, "id"))
	if id == "" {
		id = strings.TrimSpace(pathVar(r, "postId"))
	}
	if id == "" {
		writeError(w, http.StatusBadRequest, "post id is required")
		return
	}
	res, err := h.db.Exec(`DELETE FROM public.posts WHERE id = $1`, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		writeError(w, http.StatusNotFound, "post not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func marshalPlatformMaps(content map[string]string, enabled map[string]bool) (string, string) {
	if content == nil {
		content = map[string]string{}
	}
	if enabled == nil {
		enabled = map[string]bool{}
	}
	cj, _ := json.Marshal(content)
	ej, _ := json.Marshal(enabled)
	return string(cj), string(ej)
}
