package handlers

import (
	"database/sql"
	"net/http"
	"os"
	"strings"

	"github.com/pagedeck/pagedeck/backend/internal/models"
	"github.com/pagedeck/pagedeck/backend/internal/onelink"
)

const onelinkColumns = `id, platform, campaign_code, material_id, ad_set, ad_name,
	       audience, creative_size, placement, created_at, updated_at`

func scanOnelinkField(row rowScanner) (models.OnelinkField, error) {
	var f models.OnelinkField
	err := row.Scan(
		&f.ID, &f.Platform, &f.CampaignCode, &f.MaterialID, &f.AdSet, &f.AdName,
		&f.Audience, &f.CreativeSize, &f.Placement, &f.CreatedAt, &f.UpdatedAt,
	)
	return f, err
}

func (h *Handler) ListOnelinkFields(w http.ResponseWriter, r *http.Request) {
	rows, err := h.db.Query(`SELECT ` + onelinkColumns + ` FROM public.onelink_fields ORDER BY created_at DESC LIMIT 500`)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer rows.Close()

	fields := []models.OnelinkField{}
	for rows.Next() {
		f, err := scanOnelinkField(rows)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		fields = append(fields, f)
	}
	if err := rows.Err(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, fields)
}

func (h *Handler) CreateOnelinkField(w http.ResponseWriter, r *http.Request) {
	var req models.OnelinkField
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	fields := map[string]string{}
	if strings.TrimSpace(req.Platform) == "" {
		fields["platform"] = "platform is required"
	}
	if strings.TrimSpace(req.CampaignCode) == "" {
		fields["campaignCode"] = "campaign code is required"
	}
	if len(fields) > 0 {
		writeFieldErrors(w, fields)
		return
	}

	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = randHex(16)
	}
	row := h.db.QueryRow(`
		INSERT INTO public.onelink_fields
		  (id, platform, campaign_code, material_id, ad_set, ad_name, audience, creative_size, placement, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		RETURNING `+onelinkColumns,
		id, strings.TrimSpace(req.Platform), strings.TrimSpace(req.CampaignCode), strings.TrimSpace(req.MaterialID),
		req.AdSet, req.AdName, req.Audience, req.CreativeSize, req.Placement,
	)
	out, err := scanOnelinkField(row)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) UpdateOnelinkField(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(pathVar(r, "id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "field id is required")
		return
	}
	var req struct {
		Platform     *string `json:"platform"`
		CampaignCode *string `json:"campaignCode"`
		MaterialID   *string `json:"materialId"`
		AdSet        *string `json:"adSet"`
		AdName       *string `json:"adName"`
		Audience     *string `json:"audience"`
		CreativeSize *string `json:"creativeSize"`
		Placement    *string `json:"placement"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	row := h.db.QueryRow(`
		UPDATE public.onelink_fields
		SET
			platform = COALESCE($2, platform),
			campaign_code = COALESCE($3, campaign_code),
			material_id = COALESCE($4, material_id),
			ad_set = COALESCE($5, ad_set),
			ad_name = COALESCE($6, ad_name),
			audience = COALESCE($7, audience),
			creative_size = COALESCE($8, creative_size),
			placement = COALESCE($9, placement),
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+onelinkColumns,
		id, req.Platform, req.CampaignCode, req.MaterialID, req.AdSet, req.AdName,
		req.Audience, req.CreativeSize, req.Placement,
	)
	out, err := scanOnelinkField(row)
	if err == sql.ErrNoRows {
		writeError(w, http.StatusNotFound, "field not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) DeleteOnelinkField(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(pathVar(r, "id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "field id is required")
		return
	}
	res, err := h.db.Exec(`DELETE FROM public.onelink_fields WHERE id = $1`, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		writeError(w, http.StatusNotFound, "field not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// GenerateOnelink produces a tracking URL either from a saved field preset
// (fieldId) or from inline parameters.
func (h *Handler) GenerateOnelink(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FieldID string `json:"fieldId"`
		models.OnelinkField
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	field := req.OnelinkField
	if strings.TrimSpace(req.FieldID) != "" {
		row := h.db.QueryRow(`SELECT `+onelinkColumns+` FROM public.onelink_fields WHERE id = $1`, strings.TrimSpace(req.FieldID))
		var err error
		field, err = scanOnelinkField(row)
		if err == sql.ErrNoRows {
			writeError(w, http.StatusNotFound, "field not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	url, err := onelink.Generate(os.Getenv("ONELINK_BASE_URL"), field)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}
