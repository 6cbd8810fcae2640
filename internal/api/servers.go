package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wardenlabs/gamewarden/internal/manager"
	"github.com/wardenlabs/gamewarden/internal/population"
	"github.com/wardenlabs/gamewarden/internal/rcon"
	"github.com/wardenlabs/gamewarden/internal/store"
)

type ServerHandler struct {
	store   *store.Store
	manager *manager.Manager
	sampler *population.Sampler
}

func NewServerHandler(st *store.Store, mgr *manager.Manager, sampler *population.Sampler) *ServerHandler {
	return &ServerHandler{store: st, manager: mgr, sampler: sampler}
}

type serverRequest struct {
	Name     string `json:"name"`
	Protocol string `json:"protocol"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Password string `json:"password"`
	IsActive *bool  `json:"is_active,omitempty"`
}

func (req *serverRequest) validate() string {
	if req.Name == "" || req.Host == "" || req.Port <= 0 || req.Port > 65535 {
		return "name, host and port required"
	}
	switch store.Protocol(req.Protocol) {
	case store.ProtocolSource, store.ProtocolEvrima:
		return ""
	}
	return "protocol must be source or evrima"
}

func (h *ServerHandler) List(w http.ResponseWriter, r *http.Request) {
	servers, err := h.store.ListServers(r.Context(), guildID(r), false)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list servers")
		return
	}
	if servers == nil {
		servers = []*store.GameServer{}
	}
	writeJSON(w, http.StatusOK, servers)
}

func (h *ServerHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req serverRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if req.Password == "" {
		writeError(w, http.StatusBadRequest, "password required")
		return
	}

	gid := guildID(r)
	if err := h.store.EnsureGuild(r.Context(), gid); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to register guild")
		return
	}

	srv := &store.GameServer{
		GuildID:  gid,
		Name:     req.Name,
		Protocol: store.Protocol(req.Protocol),
		Host:     req.Host,
		Port:     req.Port,
		Password: req.Password,
	}
	if err := h.store.AddServer(r.Context(), srv); err != nil {
		writeError(w, http.StatusConflict, "server name already in use")
		return
	}
	writeJSON(w, http.StatusCreated, srv)
}

func (h *ServerHandler) Get(w http.ResponseWriter, r *http.Request) {
	srv, err := h.store.GetServer(r.Context(), guildID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "server not found")
		return
	}
	writeJSON(w, http.StatusOK, srv)
}

func (h *ServerHandler) Update(w http.ResponseWriter, r *http.Request) {
	srv, err := h.store.GetServer(r.Context(), guildID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "server not found")
		return
	}

	var req serverRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	srv.Name = req.Name
	srv.Protocol = store.Protocol(req.Protocol)
	srv.Host = req.Host
	srv.Port = req.Port
	if req.Password != "" {
		srv.Password = req.Password
	}
	if req.IsActive != nil {
		srv.IsActive = *req.IsActive
	}
	if err := h.store.UpdateServer(r.Context(), srv); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update server")
		return
	}

	// Drop the cached session so the next command uses the new details.
	h.manager.Invalidate(srv.ID)
	writeJSON(w, http.StatusOK, srv)
}

func (h *ServerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.DeleteServer(r.Context(), guildID(r), id); err != nil {
		writeError(w, http.StatusNotFound, "server not found")
		return
	}
	h.manager.Invalidate(id)
	writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
}

// Test runs a throwaway query command to confirm the server is reachable
// and the password accepted.
func (h *ServerHandler) Test(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)
	out, err := h.manager.Execute(r.Context(), guildID(r), chi.URLParam(r, "id"), user.Username, rcon.ListPlayers())
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "response": out})
}

var commandKinds = map[rcon.Kind]bool{
	rcon.CmdKick: true, rcon.CmdBan: true, rcon.CmdUnban: true,
	rcon.CmdAnnounce: true, rcon.CmdDirectMessage: true,
	rcon.CmdListPlayers: true, rcon.CmdPlayerData: true,
	rcon.CmdSave: true, rcon.CmdServerInfo: true,
	rcon.CmdWipeCorpses: true, rcon.CmdUpdatePlayables: true,
	rcon.CmdToggleWhitelist: true, rcon.CmdWhitelistAdd: true, rcon.CmdWhitelistRemove: true,
	rcon.CmdToggleGlobalChat: true, rcon.CmdToggleHumans: true,
	rcon.CmdToggleAI: true, rcon.CmdDisableAIClasses: true, rcon.CmdAIDensity: true,
	rcon.CmdRaw: true,
}

// Command executes one remote-console command on a server.
func (h *ServerHandler) Command(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind   string `json:"kind"`
		Target string `json:"target"`
		Text   string `json:"text"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	kind := rcon.Kind(req.Kind)
	if !commandKinds[kind] {
		writeError(w, http.StatusBadRequest, "unknown command kind")
		return
	}

	user := requestUser(r)
	cmd := rcon.Command{Kind: kind, Target: req.Target, Text: req.Text}
	out, err := h.manager.Execute(r.Context(), guildID(r), chi.URLParam(r, "id"), user.Username, cmd)
	if err != nil {
		status := http.StatusBadGateway
		switch {
		case errors.Is(err, store.ErrNotFound):
			status = http.StatusNotFound
		case errors.Is(err, manager.ErrServerInactive):
			status = http.StatusConflict
		case errors.Is(err, rcon.ErrUnsupported):
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"response": out})
}

// Players returns the latest population sample, taking a fresh one when the
// sampler has none yet.
func (h *ServerHandler) Players(w http.ResponseWriter, r *http.Request) {
	srv, err := h.store.GetServer(r.Context(), guildID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "server not found")
		return
	}

	if sample := h.sampler.Latest(srv.ID); sample != nil {
		writeJSON(w, http.StatusOK, sample)
		return
	}
	sample, err := h.sampler.SampleServer(r.Context(), srv)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sample)
}

func guildID(r *http.Request) string {
	return chi.URLParam(r, "guildID")
}
