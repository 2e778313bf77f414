package handlers

import (
	"net/http"
	"os"
	"strings"

	"github.com/pagedeck/pagedeck/backend/internal/platform"
)

func operatorToken() string {
	return strings.TrimSpace(os.Getenv("OPERATOR_TOKEN"))
}

func (h *Handler) connectorFromPath(w http.ResponseWriter, r *http.Request) (platform.Connector, bool) {
	name := strings.TrimSpace(pathVar(r, "platform"))
	c, ok := platform.Lookup(name)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown platform")
		return nil, false
	}
	return c, true
}

// PlatformStatus reports whether a network is connected and under which account.
func (h *Handler) PlatformStatus(w http.ResponseWriter, r *http.Request) {
	c, ok := h.connectorFromPath(w, r)
	if !ok {
		return
	}
	st, err := c.Status(r.Context(), h.db)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// PlatformLoginURL hands the client the OAuth authorization URL to redirect to.
func (h *Handler) PlatformLoginURL(w http.ResponseWriter, r *http.Request) {
	c, ok := h.connectorFromPath(w, r)
	if !ok {
		return
	}
	state := strings.TrimSpace(r.URL.Query().Get("state"))
	if state == "" {
		state = randHex(12)
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": c.LoginURL(state), "state": state})
}

// PlatformConnect finishes the OAuth flow with the authorization code.
func (h *Handler) PlatformConnect(w http.ResponseWriter, r *http.Request) {
	c, ok := h.connectorFromPath(w, r)
	if !ok {
		return
	}
	var req struct {
		Code string `json:"code"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := c.Connect(r.Context(), h.db, req.Code); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	st, err := c.Status(r.Context(), h.db)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// PlatformDisconnect drops the stored token and the platform's pages.
func (h *Handler) PlatformDisconnect(w http.ResponseWriter, r *http.Request) {
	c, ok := h.connectorFromPath(w, r)
	if !ok {
		return
	}
	if err := c.Disconnect(r.Context(), h.db); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// PlatformDevConnect fabricates a local-testing token instead of real OAuth.
func (h *Handler) PlatformDevConnect(w http.ResponseWriter, r *http.Request) {
	c, ok := h.connectorFromPath(w, r)
	if !ok {
		return
	}
	if err := c.DevModeConnect(r.Context(), h.db); err != nil {
		writeError(w, http.StatusForbidden, err.Error())
		return
	}
	st, err := c.Status(r.Context(), h.db)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}
