package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskboard-api/internal/model"
	"github.com/BuzzLyutic/taskboard-api/internal/repo"
	"github.com/BuzzLyutic/taskboard-api/internal/service"
	"github.com/BuzzLyutic/taskboard-api/pkg/respond"
)

type TaskHandler struct {
	service *service.LifecycleService
	logger  *zap.Logger
}

func NewTaskHandler(srv *service.LifecycleService, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		service: srv,
		logger:  logger,
	}
}

func (h *TaskHandler) Register(r chi.Router) {
	r.Route("/api/tasks", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Patch("/{id}", h.Update)
		r.Post("/{id}/claim", h.Claim)
		r.Post("/{id}/release", h.Release)
		r.Post("/{id}/complete", h.Complete)
		r.Get("/{id}/events", h.Events)
	})
	r.Get("/api/stats", h.Stats)
	r.Get("/api/rules/executions", h.Executions)
}

// transitionRequest — ожидаемая версия строки для CAS
type transitionRequest struct {
	Version int `json:"version"`
}

type updateRequest struct {
	Version     int     `json:"version"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Priority    *int    `json:"priority,omitempty"`
	TypeID      *int64  `json:"type_id,omitempty"`
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {

	if r.ContentLength == 0 {
		respond.Error(w, r, http.StatusBadRequest, "empty request body")
		return
	}

	var req model.Task
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode json", zap.Error(err))
		respond.Error(w, r, http.StatusBadRequest, fmt.Sprintf("invalid json: %v", err))
		return
	}

	if req.OrgID == 0 {
		req.OrgID = 1
	}
	if req.ProjectID == 0 {
		req.ProjectID = 1
	}
	if actor, err := actorID(r); err == nil {
		req.CreatedBy = actor
	}

	idempKey := r.Header.Get("Idempotency-Key")
	res, err := h.service.Create(r.Context(), req, idempKey)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/tasks/%d", res.Task.ID))
	respond.JSON(w, r, http.StatusCreated, res.Task)
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)

	task, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, task)
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	var filter model.TaskFilter
	if status := r.URL.Query().Get("status"); status != "" {
		s := model.Status(status)
		if !s.Valid() {
			respond.Error(w, r, http.StatusBadRequest, "invalid status")
			return
		}
		filter.Status = &s
	}
	if project := r.URL.Query().Get("project_id"); project != "" {
		p, err := strconv.ParseInt(project, 10, 64)
		if err != nil {
			respond.Error(w, r, http.StatusBadRequest, "invalid project_id")
			return
		}
		filter.ProjectID = &p
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	tasks, err := h.service.List(r.Context(), filter, limit)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, tasks)
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)

	actor, err := actorID(r)
	if err != nil {
		respond.Error(w, r, http.StatusBadRequest, "missing or invalid X-Actor-ID")
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, r, http.StatusBadRequest, "invalid json")
		return
	}

	patch := model.TaskPatch{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		TypeID:      req.TypeID,
	}

	task, err := h.service.Update(r.Context(), id, req.Version, actor, patch)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}

	respond.JSON(w, r, http.StatusOK, task)
}

func (h *TaskHandler) Claim(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Claim)
}

func (h *TaskHandler) Release(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Release)
}

func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Complete)
}

type transitionOp func(ctx context.Context, id int64, expectedVersion int, actor int64) (service.TransitionResult, error)

// transition — общий путь claim/release/complete: версия из тела,
// актор из заголовка, успех возвращает обновленную строку с новой версией
func (h *TaskHandler) transition(w http.ResponseWriter, r *http.Request, op transitionOp) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)

	actor, err := actorID(r)
	if err != nil {
		respond.Error(w, r, http.StatusBadRequest, "missing or invalid X-Actor-ID")
		return
	}

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, r, http.StatusBadRequest, "invalid json")
		return
	}

	res, err := op(r.Context(), id, req.Version, actor)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}

	respond.JSON(w, r, http.StatusOK, res.Task)
}

func (h *TaskHandler) Events(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	events, err := h.service.Events(r.Context(), id, limit)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, events)
}

func (h *TaskHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetStats(r.Context())
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, stats)
}

func (h *TaskHandler) Executions(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	executions, err := h.service.Executions(r.Context(), limit)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, executions)
}

func actorID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.Header.Get("X-Actor-ID"), 10, 64)
}

func (h *TaskHandler) handleErrors(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repo.ErrorNotFound):
		respond.Error(w, r, http.StatusNotFound, "not found")
	case errors.Is(err, repo.ErrorConflict):
		// Не раскрываем, какое именно предусловие не прошло
		respond.Error(w, r, http.StatusConflict, "version mismatch or invalid state")
	case errors.Is(err, service.ErrValidation):
		respond.Error(w, r, http.StatusBadRequest, "validation error")
	default:
		h.logger.Error("internal error", zap.Error(err))
		respond.Error(w, r, http.StatusInternalServerError, "internal error")
	}
}
