package api

import (
	"net/http"
	"strconv"

	"github.com/wardenlabs/gamewarden/internal/store"
)

// GuildConfigHandler serves the per-guild enforcement rule, channel routing
// table and command audit log.
type GuildConfigHandler struct {
	store *store.Store
}

func NewGuildConfigHandler(st *store.Store) *GuildConfigHandler {
	return &GuildConfigHandler{store: st}
}

func (h *GuildConfigHandler) GetRule(w http.ResponseWriter, r *http.Request) {
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
	writeJSON(w, http.StatusOK, rule)
}

func (h *GuildConfigHandler) PutRule(w http.ResponseWriter, r *http.Request) {
	var rule store.EnforcementRule
	if err := decodeJSON(r, &rule); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if rule.AutoKickThreshold <= 0 || rule.AutoBanThreshold <= 0 {
		writeError(w, http.StatusBadRequest, "thresholds must be positive")
		return
	}
	if rule.VerificationTimeoutMinutes <= 0 {
		writeError(w, http.StatusBadRequest, "verification timeout must be positive")
		return
	}

	rule.GuildID = guildID(r)
	if err := h.store.EnsureGuild(r.Context(), rule.GuildID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to register guild")
		return
	}
	if err := h.store.SaveRule(r.Context(), &rule); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save rule")
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (h *GuildConfigHandler) GetChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := h.store.GetLogChannels(r.Context(), guildID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load channels")
		return
	}
	writeJSON(w, http.StatusOK, channels)
}

func (h *GuildConfigHandler) PutChannels(w http.ResponseWriter, r *http.Request) {
	var channels store.LogChannels
	if err := decodeJSON(r, &channels); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	channels.GuildID = guildID(r)
	if err := h.store.EnsureGuild(r.Context(), channels.GuildID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to register guild")
		return
	}
	if err := h.store.SaveLogChannels(r.Context(), &channels); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save channels")
		return
	}
	writeJSON(w, http.StatusOK, channels)
}

func (h *GuildConfigHandler) Audit(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	recs, err := h.store.ListAudit(r.Context(), guildID(r), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load audit log")
		return
	}
	if recs == nil {
		recs = []*store.CommandAuditRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}
