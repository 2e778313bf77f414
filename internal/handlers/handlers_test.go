package handlers

import (
	"bytes"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/mux"
	"github.com/lib/pq"
)

var postCols = []string{
	"id", "external_post_id", "page_id", "content", "status", "category",
	"scheduled_time", "end_time", "media_url", "media_type",
	"link_url", "link_title", "link_description", "link_image",
	"platform_content", "platform_enabled",
	"last_publish_error", "published_at", "created_at", "updated_at",
}

func postRow(id, pageID, content, status string) []driverValue {
	now := time.Now().UTC()
	return []driverValue{
		id, nil, pageID, content, status, nil,
		nil, nil, nil, nil,
		nil, nil, nil, nil,
		[]byte(`{}`), []byte(`{}`),
		nil, nil, now, now,
	}
}

// driverValue aliases driver.Value so row fixtures can be spread into
// sqlmock's AddRow.
type driverValue = driver.Value

func TestHealth_OK(t *testing.T) {
	h := New(nil)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)

	h.Health(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
	var out map[string]bool
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode json: %v body=%q", err, rr.Body.String())
	}
	if out["ok"] != true {
		t.Fatalf("expected ok=true got %#v", out)
	}
}

func TestCreateSession_RequiresOperator(t *testing.T) {
	h := New(nil)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/session", bytes.NewBufferString(`{"operator":"  "}`))

	h.CreateSession(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d body=%q", rr.Code, rr.Body.String())
	}
}

func TestCreateSession_SetsCookie(t *testing.T) {
	h := New(nil)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/session", bytes.NewBufferString(`{"operator":"alex"}`))

	h.CreateSession(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%q", rr.Code, rr.Body.String())
	}
	found := false
	for _, c := range rr.Result().Cookies() {
		if c.Name == "pd_session" && strings.Contains(c.Value, "alex") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected pd_session cookie, got %v", rr.Result().Cookies())
	}
}

func TestListPages_Empty(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer func() { _ = db.Close() }()

	h := New(db)
	mock.ExpectQuery(`SELECT page_id, platform, name, avatar, connected_at`).
		WillReturnRows(sqlmock.NewRows([]string{"page_id", "platform", "name", "avatar", "connected_at"}))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/pages", nil)

	h.ListPages(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%q", rr.Code, rr.Body.String())
	}
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Fatalf("expected empty array got %q", rr.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}

func TestCreatePostForPage_ScheduleValidationErrors(t *testing.T) {
	h := New(nil)
	body := `{"content":"hello","schedulePost":true,"scheduleDate":"","scheduleTime":""}`
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/pages/p1/posts", bytes.NewBufferString(body))
	req = mux.SetURLVars(req, map[string]string{"pageId": "p1"})

	h.CreatePostForPage(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d body=%q", rr.Code, rr.Body.String())
	}
	var out struct {
		Message string            `json:"message"`
		Errors  map[string]string `json:"errors"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode json: %v body=%q", err, rr.Body.String())
	}
	if out.Errors["scheduleDate"] == "" || out.Errors["scheduleTime"] == "" {
		t.Fatalf("expected scheduleDate and scheduleTime errors, got %#v", out.Errors)
	}
}

func TestCreatePostForPage_LoneEndTimeFlagsOnlyMissingField(t *testing.T) {
	h := New(nil)
	body := `{"content":"hello","schedulePost":true,"scheduleDate":"2026-09-01","scheduleTime":"10:00","endTime":"12:00"}`
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/pages/p1/posts", bytes.NewBufferString(body))
	req = mux.SetURLVars(req, map[string]string{"pageId": "p1"})

	h.CreatePostForPage(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d body=%q", rr.Code, rr.Body.String())
	}
	var out struct {
		Errors map[string]string `json:"errors"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if out.Errors["endDate"] == "" {
		t.Fatalf("expected endDate error, got %#v", out.Errors)
	}
	if out.Errors["endTime"] != "" {
		t.Fatalf("endTime was provided and must not be flagged, got %#v", out.Errors)
	}
}

func TestCreatePostForPage_ScheduledStatusEntersScheduleRules(t *testing.T) {
	h := New(nil)
	// status "scheduled" without the schedulePost flag must not slip through
	// as a stored draft; the incomplete schedule is rejected instead.
	body := `{"content":"Later","status":"scheduled","scheduleDate":"2026-09-01"}`
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/pages/p1/posts", bytes.NewBufferString(body))
	req = mux.SetURLVars(req, map[string]string{"pageId": "p1"})

	h.CreatePostForPage(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d body=%q", rr.Code, rr.Body.String())
	}
	var out struct {
		Errors map[string]string `json:"errors"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode json: %v body=%q", err, rr.Body.String())
	}
	if out.Errors["scheduleTime"] == "" {
		t.Fatalf("expected scheduleTime error, got %#v", out.Errors)
	}
}

func TestCreatePostForPage_LoneEndTimeWithoutFlagIsRejected(t *testing.T) {
	h := New(nil)
	body := `{"content":"Later","status":"draft","endTime":"18:00"}`
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/pages/p1/posts", bytes.NewBufferString(body))
	req = mux.SetURLVars(req, map[string]string{"pageId": "p1"})

	h.CreatePostForPage(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d body=%q", rr.Code, rr.Body.String())
	}
	var out struct {
		Errors map[string]string `json:"errors"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if out.Errors["endDate"] == "" {
		t.Fatalf("expected endDate error, got %#v", out.Errors)
	}
}

func TestCreatePostForPage_RequiresContentOrMedia(t *testing.T) {
	h := New(nil)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/pages/p1/posts", bytes.NewBufferString(`{}`))
	req = mux.SetURLVars(req, map[string]string{"pageId": "p1"})

	h.CreatePostForPage(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d body=%q", rr.Code, rr.Body.String())
	}
}

func TestCreatePostForPage_RejectsUnknownPlatformKey(t *testing.T) {
	h := New(nil)
	body := `{"content":"hi","platformEnabled":{"myspace":true}}`
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/pages/p1/posts", bytes.NewBufferString(body))
	req = mux.SetURLVars(req, map[string]string{"pageId": "p1"})

	h.CreatePostForPage(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d body=%q", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "myspace") {
		t.Fatalf("expected the unknown key to be named, got %q", rr.Body.String())
	}
}

func TestCreatePostForPage_ScheduledNeedsAnEnabledPlatform(t *testing.T) {
	h := New(nil)
	body := `{"content":"hi","schedulePost":true,"scheduleDate":"2026-09-01","scheduleTime":"10:00",` +
		`"platformEnabled":{"facebook":false,"instagram":false}}`
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/pages/p1/posts", bytes.NewBufferString(body))
	req = mux.SetURLVars(req, map[string]string{"pageId": "p1"})

	h.CreatePostForPage(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d body=%q", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "at least one platform") {
		t.Fatalf("unexpected body %q", rr.Body.String())
	}
}

func TestCreatePostForPage_RejectsClientPublishStatus(t *testing.T) {
	h := New(nil)
	body := `{"content":"hi","status":"published"}`
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/pages/p1/posts", bytes.NewBufferString(body))
	req = mux.SetURLVars(req, map[string]string{"pageId": "p1"})

	h.CreatePostForPage(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d body=%q", rr.Code, rr.Body.String())
	}
}

func TestCreatePostForPage_DraftSuccess(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer func() { _ = db.Close() }()

	h := New(db)
	mock.ExpectQuery(`INSERT INTO public\.posts`).
		WillReturnRows(sqlmock.NewRows(postCols).AddRow(postRow("post1", "p1", "hello", "draft")...))

	body := `{"content":"hello"}`
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/pages/p1/posts", bytes.NewBufferString(body))
	req = mux.SetURLVars(req, map[string]string{"pageId": "p1"})

	h.CreatePostForPage(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%q", rr.Code, rr.Body.String())
	}
	var out map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode json: %v body=%q", err, rr.Body.String())
	}
	if out["status"] != "draft" {
		t.Fatalf("expected status=draft got %#v", out["status"])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}

func TestCreatePostForPage_UnknownPageIs404(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer func() { _ = db.Close() }()

	h := New(db)
	mock.ExpectQuery(`INSERT INTO public\.posts`).
		WillReturnError(&pq.Error{Code: "23503", Constraint: "posts_page_id_fkey"})

	body := `{"content":"hello"}`
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/pages/ghost/posts", bytes.NewBufferString(body))
	req = mux.SetURLVars(req, map[string]string{"pageId": "ghost"})

	h.CreatePostForPage(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d body=%q", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "page not found") {
		t.Fatalf("unexpected body %q", rr.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}

func TestCreatePostForPage_ScheduledGetsScheduledStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer func() { _ = db.Close() }()

	h := New(db)
	mock.ExpectQuery(`INSERT INTO public\.posts`).
		WillReturnRows(sqlmock.NewRows(postCols).AddRow(postRow("post1", "p1", "hello", "scheduled")...))

	body := `{"content":"hello","schedulePost":true,"scheduleDate":"2026-09-01","scheduleTime":"10:00"}`
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/pages/p1/posts", bytes.NewBufferString(body))
	req = mux.SetURLVars(req, map[string]string{"pageId": "p1"})

	h.CreatePostForPage(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%q", rr.Code, rr.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}

func TestGetPost_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer func() { _ = db.Close() }()

	h := New(db)
	mock.ExpectQuery(`SELECT .* FROM public\.posts WHERE id`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/posts/missing", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "missing"})

	h.GetPost(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d body=%q", rr.Code, rr.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}

func TestUpdatePost_RejectsClientPublishStatus(t *testing.T) {
	h := New(nil)
	for _, status := range []string{"published", "publish_failed"} {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPut, "/api/posts/post1", bytes.NewBufferString(`{"status":"`+status+`"}`))
		req = mux.SetURLVars(req, map[string]string{"id": "post1"})

		h.UpdatePost(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Fatalf("status %q: expected 400 got %d body=%q", status, rr.Code, rr.Body.String())
		}
	}
}

func TestUpdatePost_ScheduleRevalidatedOnPartialChange(t *testing.T) {
	h := New(nil)
	// Touching any schedule field re-runs the whole cross-field check.
	body := `{"schedulePost":true,"scheduleDate":"2026-09-01"}`
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/posts/post1", bytes.NewBufferString(body))
	req = mux.SetURLVars(req, map[string]string{"id": "post1"})

	h.UpdatePost(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d body=%q", rr.Code, rr.Body.String())
	}
	var out struct {
		Errors map[string]string `json:"errors"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if out.Errors["scheduleTime"] == "" {
		t.Fatalf("expected scheduleTime error, got %#v", out.Errors)
	}
}

func TestUpdatePost_LoneEndDateDoesNotUnschedule(t *testing.T) {
	h := New(nil)
	// A partial edit carrying only an end field must not silently wipe the
	// stored schedule; the request is rejected before any UPDATE runs.
	body := `{"endDate":"2026-09-02"}`
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/api/posts/post1", bytes.NewBufferString(body))
	req = mux.SetURLVars(req, map[string]string{"id": "post1"})

	h.UpdatePost(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d body=%q", rr.Code, rr.Body.String())
	}
	var out struct {
		Errors map[string]string `json:"errors"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if out.Errors["endTime"] == "" {
		t.Fatalf("expected endTime error, got %#v", out.Errors)
	}
}

func TestDeletePost_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer func() { _ = db.Close() }()

	h := New(db)
	mock.ExpectExec(`DELETE FROM public\.posts`).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/posts/missing", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "missing"})

	h.DeletePost(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d body=%q", rr.Code, rr.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}
