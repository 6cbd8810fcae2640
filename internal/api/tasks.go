package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wardenlabs/gamewarden/internal/scheduler"
	"github.com/wardenlabs/gamewarden/internal/store"
)

type TaskHandler struct {
	store *store.Store
}

func NewTaskHandler(st *store.Store) *TaskHandler {
	return &TaskHandler{store: st}
}

var taskActions = map[string]bool{
	scheduler.ActionSave:        true,
	scheduler.ActionAnnounce:    true,
	scheduler.ActionRestartWarn: true,
	scheduler.ActionWipeCorpses: true,
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.store.ListTasks(r.Context(), guildID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}
	if tasks == nil {
		tasks = []*store.ScheduledTask{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ServerID string `json:"server_id"`
		Name     string `json:"name"`
		CronExpr string `json:"cron_expr"`
		Action   string `json:"action"`
		Payload  string `json:"payload"`
		Enabled  *bool  `json:"enabled"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ServerID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "server_id and name required")
		return
	}
	if !taskActions[req.Action] {
		writeError(w, http.StatusBadRequest, "unknown task action")
		return
	}
	if _, err := scheduler.Parse(req.CronExpr); err != nil {
		writeError(w, http.StatusBadRequest, "invalid cron expression: "+err.Error())
		return
	}

	gid := guildID(r)
	if _, err := h.store.GetServer(r.Context(), gid, req.ServerID); err != nil {
		writeError(w, http.StatusNotFound, "server not found")
		return
	}

	task := &store.ScheduledTask{
		GuildID:  gid,
		ServerID: req.ServerID,
		Name:     req.Name,
		CronExpr: req.CronExpr,
		Action:   req.Action,
		Payload:  req.Payload,
		Enabled:  req.Enabled == nil || *req.Enabled,
	}
	if err := h.store.AddTask(r.Context(), task); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create task")
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteTask(r.Context(), guildID(r), chi.URLParam(r, "taskID")); err != nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
}
