package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/mux"
)

func TestProcessDueScheduledPosts_NothingDue(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer func() { _ = db.Close() }()

	h := New(db)
	mock.ExpectQuery(`SELECT id, page_id, scheduled_time`).
		WithArgs("scheduled", 25).
		WillReturnRows(sqlmock.NewRows([]string{"id", "page_id", "scheduled_time"}))

	n, err := h.processDueScheduledPostsOnce(context.Background(), 0)
	if err != nil {
		t.Fatalf("processDueScheduledPostsOnce: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 published, got %d", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}

func TestProcessDueScheduledPosts_DevTokenPublishes(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer func() { _ = db.Close() }()

	h := New(db)
	due := time.Now().Add(-time.Minute)

	mock.ExpectQuery(`SELECT id, page_id, scheduled_time`).
		WithArgs("scheduled", 25).
		WillReturnRows(sqlmock.NewRows([]string{"id", "page_id", "scheduled_time"}).
			AddRow("post1", "page1", due))

	// Claim succeeds.
	mock.ExpectExec(`UPDATE public\.posts`).
		WithArgs("post1", "scheduled").
		WillReturnResult(sqlmock.NewResult(0, 1))

	// publishPost loads the page token, then the post body.
	mock.ExpectQuery(`SELECT platform, COALESCE\(access_token, ''\)`).
		WithArgs("page1").
		WillReturnRows(sqlmock.NewRows([]string{"platform", "access_token"}).
			AddRow("facebook", "dev_abc123"))
	mock.ExpectQuery(`SELECT content, COALESCE\(platform_content`).
		WithArgs("post1").
		WillReturnRows(sqlmock.NewRows([]string{"content", "platform_content", "platform_enabled"}).
			AddRow("hello world", []byte(`{}`), []byte(`{}`)))

	// Success path records the fabricated remote id.
	mock.ExpectExec(`UPDATE public\.posts`).
		WithArgs("post1", "published", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := h.processDueScheduledPostsOnce(context.Background(), 25)
	if err != nil {
		t.Fatalf("processDueScheduledPostsOnce: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 published, got %d", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}

func TestProcessDueScheduledPosts_EmptyContentFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer func() { _ = db.Close() }()

	h := New(db)
	due := time.Now().Add(-time.Minute)

	mock.ExpectQuery(`SELECT id, page_id, scheduled_time`).
		WithArgs("scheduled", 25).
		WillReturnRows(sqlmock.NewRows([]string{"id", "page_id", "scheduled_time"}).
			AddRow("post1", "page1", due))
	mock.ExpectExec(`UPDATE public\.posts`).
		WithArgs("post1", "scheduled").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT platform, COALESCE\(access_token, ''\)`).
		WithArgs("page1").
		WillReturnRows(sqlmock.NewRows([]string{"platform", "access_token"}).
			AddRow("facebook", "dev_abc123"))
	mock.ExpectQuery(`SELECT content, COALESCE\(platform_content`).
		WithArgs("post1").
		WillReturnRows(sqlmock.NewRows([]string{"content", "platform_content", "platform_enabled"}).
			AddRow(nil, []byte(`{}`), []byte(`{}`)))

	// Failure records publish_failed with the cause; the post stays claimed.
	mock.ExpectExec(`UPDATE public\.posts`).
		WithArgs("post1", "publish_failed", "empty_content").
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := h.processDueScheduledPostsOnce(context.Background(), 25)
	if err != nil {
		t.Fatalf("processDueScheduledPostsOnce: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 published, got %d", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}

func TestProcessDueScheduledPosts_ClaimLostSkips(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer func() { _ = db.Close() }()

	h := New(db)
	due := time.Now().Add(-time.Minute)

	mock.ExpectQuery(`SELECT id, page_id, scheduled_time`).
		WithArgs("scheduled", 25).
		WillReturnRows(sqlmock.NewRows([]string{"id", "page_id", "scheduled_time"}).
			AddRow("post1", "page1", due))
	// Another instance claimed it between the scan and the update.
	mock.ExpectExec(`UPDATE public\.posts`).
		WithArgs("post1", "scheduled").
		WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := h.processDueScheduledPostsOnce(context.Background(), 25)
	if err != nil {
		t.Fatalf("processDueScheduledPostsOnce: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 published, got %d", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}

func TestPublishNow_AlreadyPublished(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer func() { _ = db.Close() }()

	h := New(db)
	mock.ExpectQuery(`SELECT page_id, status FROM public\.posts`).
		WithArgs("post1").
		WillReturnRows(sqlmock.NewRows([]string{"page_id", "status"}).AddRow("page1", "published"))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/posts/post1/publish-now", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "post1"})

	h.PublishNowPost(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d body=%q", rr.Code, rr.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}

func TestPublishNow_FailedStateNeedsEdit(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer func() { _ = db.Close() }()

	h := New(db)
	mock.ExpectQuery(`SELECT page_id, status FROM public\.posts`).
		WithArgs("post1").
		WillReturnRows(sqlmock.NewRows([]string{"page_id", "status"}).AddRow("page1", "publish_failed"))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/posts/post1/publish-now", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "post1"})

	h.PublishNowPost(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d body=%q", rr.Code, rr.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}
