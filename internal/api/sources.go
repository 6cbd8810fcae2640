package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wardenlabs/gamewarden/internal/store"
)

type SourceHandler struct {
	store *store.Store
}

func NewSourceHandler(st *store.Store) *SourceHandler {
	return &SourceHandler{store: st}
}

type sourceRequest struct {
	ServerID      string `json:"server_id"`
	Name          string `json:"name"`
	Game          string `json:"game"`
	Host          string `json:"host"`
	Port          int    `json:"port"`
	Username      string `json:"username"`
	Password      string `json:"password"`
	ChatLogPath   string `json:"chat_log_path"`
	KillLogPath   string `json:"kill_log_path"`
	AdminLogPath  string `json:"admin_log_path"`
	AdminListPath string `json:"admin_list_path"`
	IsActive      *bool  `json:"is_active,omitempty"`
}

func (req *sourceRequest) validate() string {
	if req.Name == "" || req.Host == "" || req.Username == "" {
		return "name, host and username required"
	}
	switch req.Game {
	case store.GameEvrima, store.GamePathOfTitans:
	default:
		return "unknown game type"
	}
	if req.ChatLogPath == "" && req.KillLogPath == "" && req.AdminLogPath == "" {
		return "at least one log path required"
	}
	return ""
}

func (h *SourceHandler) List(w http.ResponseWriter, r *http.Request) {
	sources, err := h.store.ListSources(r.Context(), guildID(r), false)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list sources")
		return
	}
	if sources == nil {
		sources = []*store.SftpSource{}
	}
	writeJSON(w, http.StatusOK, sources)
}

func (h *SourceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req sourceRequest
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

	src := &store.SftpSource{
		GuildID:       gid,
		ServerID:      req.ServerID,
		Name:          req.Name,
		Game:          req.Game,
		Host:          req.Host,
		Port:          req.Port,
		Username:      req.Username,
		Password:      req.Password,
		ChatLogPath:   req.ChatLogPath,
		KillLogPath:   req.KillLogPath,
		AdminLogPath:  req.AdminLogPath,
		AdminListPath: req.AdminListPath,
	}
	if err := h.store.AddSource(r.Context(), src); err != nil {
		writeError(w, http.StatusConflict, "source name already in use")
		return
	}
	writeJSON(w, http.StatusCreated, src)
}

func (h *SourceHandler) Get(w http.ResponseWriter, r *http.Request) {
	src, err := h.store.GetSource(r.Context(), guildID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "source not found")
		return
	}
	writeJSON(w, http.StatusOK, src)
}

func (h *SourceHandler) Update(w http.ResponseWriter, r *http.Request) {
	src, err := h.store.GetSource(r.Context(), guildID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "source not found")
		return
	}

	var req sourceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	src.ServerID = req.ServerID
	src.Name = req.Name
	src.Game = req.Game
	src.Host = req.Host
	src.Port = req.Port
	src.Username = req.Username
	if req.Password != "" {
		src.Password = req.Password
	}
	src.ChatLogPath = req.ChatLogPath
	src.KillLogPath = req.KillLogPath
	src.AdminLogPath = req.AdminLogPath
	src.AdminListPath = req.AdminListPath
	if req.IsActive != nil {
		src.IsActive = *req.IsActive
	}
	if err := h.store.UpdateSource(r.Context(), src); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update source")
		return
	}
	writeJSON(w, http.StatusOK, src)
}

func (h *SourceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteSource(r.Context(), guildID(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusNotFound, "source not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
}
