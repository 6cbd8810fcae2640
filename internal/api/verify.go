package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wardenlabs/gamewarden/internal/manager"
	"github.com/wardenlabs/gamewarden/internal/rcon"
	"github.com/wardenlabs/gamewarden/internal/store"
	"github.com/wardenlabs/gamewarden/internal/verify"
)

type VerifyHandler struct {
	store   *store.Store
	service *verify.Service
	manager *manager.Manager
}

func NewVerifyHandler(st *store.Store, svc *verify.Service, mgr *manager.Manager) *VerifyHandler {
	return &VerifyHandler{store: st, service: svc, manager: mgr}
}

// Create opens a challenge for a chat-platform user. With deliver set and a
// target player online, the code is whispered to them on the guild's
// default server.
func (h *VerifyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID         string `json:"user_id"`
		Game           string `json:"game"`
		TargetPlayerID string `json:"target_player_id"`
		Deliver        bool   `json:"deliver"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id required")
		return
	}
	switch req.Game {
	case store.GameEvrima, store.GamePathOfTitans:
	default:
		writeError(w, http.StatusBadRequest, "unknown game type")
		return
	}

	gid := guildID(r)
	if err := h.store.EnsureGuild(r.Context(), gid); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to register guild")
		return
	}

	rule, err := h.store.GetRule(r.Context(), gid)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load rule")
		return
	}
	if !rule.VerificationEnabled {
		writeError(w, http.StatusConflict, "verification disabled for this guild")
		return
	}

	ch, err := h.service.Create(r.Context(), gid, req.UserID, req.Game, req.TargetPlayerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create challenge")
		return
	}

	delivered := false
	if req.Deliver && req.TargetPlayerID != "" {
		user := requestUser(r)
		msg := fmt.Sprintf("Your verification code is %s. Type it in game chat.", ch.Code)
		if _, err := h.manager.ExecuteDefault(r.Context(), gid, user.Username,
			rcon.DirectMessage(req.TargetPlayerID, msg)); err == nil {
			delivered = true
		}
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"challenge": ch,
		"delivered": delivered,
	})
}

func (h *VerifyHandler) Get(w http.ResponseWriter, r *http.Request) {
	ch, err := h.store.GetChallenge(r.Context(), guildID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "challenge not found")
		return
	}
	writeJSON(w, http.StatusOK, ch)
}

// Attempt settles a code against an asserted identity. Normally codes
// arrive through game chat; this endpoint covers manual settlement by
// moderation tooling.
func (h *VerifyHandler) Attempt(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code       string `json:"code"`
		PlayerID   string `json:"player_id"`
		PlayerName string `json:"player_name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Code == "" || req.PlayerID == "" {
		writeError(w, http.StatusBadRequest, "code and player_id required")
		return
	}

	ch, err := h.service.Consume(r.Context(), guildID(r), req.Code, req.PlayerID, req.PlayerName)
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ch)
}
