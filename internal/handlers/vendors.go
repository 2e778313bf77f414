package handlers

import (
	"database/sql"
	"net/http"
	"strings"

	"github.com/pagedeck/pagedeck/backend/internal/models"
)

const vendorColumns = `id, name, contact, phone, email, notes, created_at, updated_at`

func scanVendor(row rowScanner) (models.Vendor, error) {
	var v models.Vendor
	err := row.Scan(&v.ID, &v.Name, &v.Contact, &v.Phone, &v.Email, &v.Notes, &v.CreatedAt, &v.UpdatedAt)
	return v, err
}

func (h *Handler) ListVendors(w http.ResponseWriter, r *http.Request) {
	rows, err := h.db.Query(`SELECT ` + vendorColumns + ` FROM public.vendors ORDER BY name ASC LIMIT 500`)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer rows.Close()

	vendors := []models.Vendor{}
	for rows.Next() {
		v, err := scanVendor(rows)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		vendors = append(vendors, v)
	}
	if err := rows.Err(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, vendors)
}

func (h *Handler) CreateVendor(w http.ResponseWriter, r *http.Request) {
	var req models.Vendor
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeFieldErrors(w, map[string]string{"name": "name is required"})
		return
	}
	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = randHex(16)
	}
	row := h.db.QueryRow(`
		INSERT INTO public.vendors (id, name, contact, phone, email, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING `+vendorColumns,
		id, strings.TrimSpace(req.Name), req.Contact, req.Phone, req.Email, req.Notes,
	)
	out, err := scanVendor(row)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) UpdateVendor(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(pathVar(r, "id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "vendor id is required")
		return
	}
	var req struct {
		Name    *string `json:"name"`
		Contact *string `json:"contact"`
		Phone   *string `json:"phone"`
		Email   *string `json:"email"`
		Notes   *string `json:"notes"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	row := h.db.QueryRow(`
		UPDATE public.vendors
		SET
			name = COALESCE($2, name),
			contact = COALESCE($3, contact),
			phone = COALESCE($4, phone),
			email = COALESCE($5, email),
			notes = COALESCE($6, notes),
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+vendorColumns,
		id, req.Name, req.Contact, req.Phone, req.Email, req.Notes,
	)
	out, err := scanVendor(row)
	if err == sql.ErrNoRows {
		writeError(w, http.StatusNotFound, "vendor not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) DeleteVendor(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(pathVar(r, "id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "vendor id is required")
		return
	}
	res, err := h.db.Exec(`DELETE FROM public.vendors WHERE id = $1`, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		writeError(w, http.StatusNotFound, "vendor not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
