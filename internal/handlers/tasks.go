package handlers

import (
	"database/sql"
	"net/http"
	"strings"
	"time"

	"github.com/pagedeck/pagedeck/backend/internal/middleware"
	"github.com/pagedeck/pagedeck/backend/internal/models"
)

// taskBoard parameterizes the two task tables; the marketing and operations
// boards are identical except for their table and category set.
type taskBoard struct {
	table      string
	categories []string
}

var (
	marketingBoard = taskBoard{table: "public.marketing_tasks", categories: models.MarketingCategories}
	operationBoard = taskBoard{table: "public.operation_tasks", categories: models.OperationCategories}
)

type taskRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Content     *string    `json:"content"`
	Status      *string    `json:"status"`
	Category    *string    `json:"category"`
	Priority    *string    `json:"priority"`
	StartTime   *time.Time `json:"startTime"`
	EndTime     *time.Time `json:"endTime"`
}

func validTaskStatus(s string) bool {
	switch s {
	case models.TaskStatusTodo, models.TaskStatusInProgress, models.TaskStatusReview, models.TaskStatusDone:
		return true
	}
	return false
}

func validTaskPriority(p string) bool {
	switch p {
	case models.TaskPriorityLow, models.TaskPriorityNormal, models.TaskPriorityHigh:
		return true
	}
	return false
}

func (b taskBoard) validCategory(c string) bool {
	for _, cat := range b.categories {
		if cat == c {
			return true
		}
	}
	return false
}

const taskColumns = `id, title, description, content, status, category, priority,
	       start_time, end_time, created_by, created_at, updated_at`

func scanTask(row rowScanner) (models.Task, error) {
	var t models.Task
	err := row.Scan(
		&t.ID, &t.Title, &t.Description, &t.Content, &t.Status, &t.Category, &t.Priority,
		&t.StartTime, &t.EndTime, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt,
	)
	return t, err
}

func (h *Handler) listTasks(w http.ResponseWriter, r *http.Request, board taskBoard) {
	rows, err := h.db.Query(
		`SELECT ` + taskColumns + ` FROM ` + board.table + ` ORDER BY start_time ASC LIMIT 500`,
	)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *Handler) createTask(w http.ResponseWriter, r *http.Request, board taskBoard) {
	var req taskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	fields := map[string]string{}
	if req.Title == nil || strings.TrimSpace(*req.Title) == "" {
		fields["title"] = "title is required"
	}
	if req.StartTime == nil {
		fields["startTime"] = "start time is required"
	}
	if req.EndTime == nil {
		fields["endTime"] = "end time is required"
	}
	if req.StartTime != nil && req.EndTime != nil && req.EndTime.Before(*req.StartTime) {
		fields["endTime"] = "end time must not be before the start time"
	}
	if req.Category == nil || !board.validCategory(*req.Category) {
		fields["category"] = "invalid category"
	}
	if len(fields) > 0 {
		writeFieldErrors(w, fields)
		return
	}

	status := models.TaskStatusTodo
	if req.Status != nil {
		status = *req.Status
	}
	if !validTaskStatus(status) {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}
	priority := models.TaskPriorityNormal
	if req.Priority != nil {
		priority = *req.Priority
	}
	if !validTaskPriority(priority) {
		writeError(w, http.StatusBadRequest, "invalid priority")
		return
	}

	var createdBy *string
	if op := middleware.Operator(r.Context()); op != "" {
		createdBy = &op
	}

	id := randHex(16)
	row := h.db.QueryRow(`
		INSERT INTO `+board.table+`
		  (id, title, description, content, status, category, priority, start_time, end_time, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		RETURNING `+taskColumns,
		id, strings.TrimSpace(*req.Title), req.Description, req.Content, status, *req.Category, priority,
		req.StartTime, req.EndTime, createdBy,
	)
	out, err := scanTask(row)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) updateTask(w http.ResponseWriter, r *http.Request, board taskBoard) {
	id := strings.TrimSpace(pathVar(r, "id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "task id is required")
		return
	}

	var req taskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.Status != nil && !validTaskStatus(*req.Status) {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}
	if req.Priority != nil && !validTaskPriority(*req.Priority) {
		writeError(w, http.StatusBadRequest, "invalid priority")
		return
	}
	if req.Category != nil && !board.validCategory(*req.Category) {
		writeError(w, http.StatusBadRequest, "invalid category")
		return
	}
	if req.StartTime != nil && req.EndTime != nil && req.EndTime.Before(*req.StartTime) {
		writeFieldErrors(w, map[string]string{"endTime": "end time must not be before the start time"})
		return
	}

	// The window invariant must also hold against the stored half when only
	// one boundary changes.
	if (req.StartTime == nil) != (req.EndTime == nil) {
		var start, end time.Time
		err := h.db.QueryRow(`SELECT start_time, end_time FROM `+board.table+` WHERE id = $1`, id).Scan(&start, &end)
		if err == sql.ErrNoRows {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if req.StartTime != nil && end.Before(*req.StartTime) {
			writeFieldErrors(w, map[string]string{"startTime": "start time must not be after the end time"})
			return
		}
		if req.EndTime != nil && req.EndTime.Before(start) {
			writeFieldErrors(w, map[string]string{"endTime": "end time must not be before the start time"})
			return
		}
	}

	row := h.db.QueryRow(`
		UPDATE `+board.table+`
		SET
			title = COALESCE($2, title),
			description = COALESCE($3, description),
			content = COALESCE($4, content),
			status = COALESCE($5, status),
			category = COALESCE($6, category),
			priority = COALESCE($7, priority),
			start_time = COALESCE($8, start_time),
			end_time = COALESCE($9, end_time),
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+taskColumns,
		id, req.Title, req.Description, req.Content, req.Status, req.Category, req.Priority,
		req.StartTime, req.EndTime,
	)
	out, err := scanTask(row)
	if err == sql.ErrNoRows {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) deleteTask(w http.ResponseWriter, r *http.Request, board taskBoard) {
	id := strings.TrimSpace(pathVar(r, "id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "task id is required")
		return
	}
	res, err := h.db.Exec(`DELETE FROM `+board.table+` WHERE id = $1`, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) ListMarketingTasks(w http.ResponseWriter, r *http.Request) {
	h.listTasks(w, r, marketingBoard)
}
func (h *Handler) CreateMarketingTask(w http.ResponseWriter, r *http.Request) {
	h.createTask(w, r, marketingBoard)
}
func (h *Handler) UpdateMarketingTask(w http.ResponseWriter, r *http.Request) {
	h.updateTask(w, r, marketingBoard)
}
func (h *Handler) DeleteMarketingTask(w http.ResponseWriter, r *http.Request) {
	h.deleteTask(w, r, marketingBoard)
}

func (h *Handler) ListOperationTasks(w http.ResponseWriter, r *http.Request) {
	h.listTasks(w, r, operationBoard)
}
func (h *Handler) CreateOperationTask(w http.ResponseWriter, r *http.Request) {
	h.createTask(w, r, operationBoard)
}
func (h *Handler) UpdateOperationTask(w http.ResponseWriter, r *http.Request) {
	h.updateTask(w, r, operationBoard)
}
func (h *Handler) DeleteOperationTask(w http.ResponseWriter, r *http.Request) {
	h.deleteTask(w, r, operationBoard)
}
