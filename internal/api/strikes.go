package api

import (
	"net/http"

	"github.com/wardenlabs/gamewarden/internal/enforce"
)

// StrikeHandler receives strike-count change notifications from the
// moderation system and hands them to the enforcement engine.
type StrikeHandler struct {
	engine *enforce.Engine
}

func NewStrikeHandler(engine *enforce.Engine) *StrikeHandler {
	return &StrikeHandler{engine: engine}
}

func (h *StrikeHandler) Notify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID      string `json:"user_id"`
		ActiveCount int    `json:"active_count"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.ActiveCount < 0 {
		writeError(w, http.StatusBadRequest, "user_id and active_count required")
		return
	}

	out, err := h.engine.HandleStrikeChange(r.Context(), guildID(r), req.UserID, req.ActiveCount)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "enforcement failed")
		return
	}
	writeJSON(w, http.StatusOK, out)
}
