package tasks

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/AleksGin/business-manager/internal/shared"
)

// Handler wires HTTP endpoints for tasks.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers task routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleCreate)
	r.Get("/", h.handleList)
	r.Get("/mine", h.handleMine)
	r.Get("/overdue", h.handleOverdue)
	r.Get("/report", h.handleStatusReport)
	r.Get("/{uuid}", h.handleGet)
	r.Delete("/{uuid}", h.handleDelete)
	r.Post("/{uuid}/assign", h.handleAssign)
	r.Post("/{uuid}/status", h.handleChangeStatus)
}

// TaskResponse is the wire shape of a task.
type TaskResponse struct {
	UUID         string     `json:"uuid"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Status       string     `json:"status"`
	TeamUUID     string     `json:"team_uuid"`
	CreatorUUID  string     `json:"creator_uuid"`
	AssigneeUUID *uuid.UUID `json:"assignee_uuid,omitempty"`
	DueDate      *time.Time `json:"due_date,omitempty"`
}

func toResponse(t *Task) TaskResponse {
	return TaskResponse{
		UUID:         t.UUID.String(),
		Title:        t.Title,
		Description:  t.Description,
		Status:       string(t.Status),
		TeamUUID:     t.TeamUUID.String(),
		CreatorUUID:  t.CreatorUUID.String(),
		AssigneeUUID: t.AssigneeUUID,
		DueDate:      t.DueDate,
	}
}

func toResponses(list []Task) []TaskResponse {
	out := make([]TaskResponse, len(list))
	for i := range list {
		out[i] = toResponse(&list[i])
	}
	return out
}

type createTaskRequest struct {
	Title        string     `json:"title" validate:"required"`
	Description  string     `json:"description"`
	TeamUUID     string     `json:"team_uuid" validate:"required,uuid"`
	AssigneeUUID *string    `json:"assignee_uuid" validate:"omitempty,uuid"`
	DueDate      *time.Time `json:"due_date"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		shared.WriteError(w, shared.ErrInvalidToken)
		return
	}
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		shared.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	teamUUID, _ := uuid.Parse(req.TeamUUID)
	in := CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		TeamUUID:    teamUUID,
		DueDate:     req.DueDate,
	}
	if req.AssigneeUUID != nil {
		assigneeUUID, _ := uuid.Parse(*req.AssigneeUUID)
		in.AssigneeUUID = &assigneeUUID
	}
	task, err := h.service.Create(r.Context(), actor.UUID, in)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toResponse(task))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		shared.WriteError(w, shared.ErrInvalidToken)
		return
	}
	teamUUID, err := uuid.Parse(r.URL.Query().Get("team"))
	if err != nil {
		shared.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "team query parameter is required"})
		return
	}
	var status *Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		st := Status(raw)
		if !st.Valid() {
			shared.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown status"})
			return
		}
		status = &st
	}
	page := pageFromQuery(r)
	list, err := h.service.ListForTeam(r.Context(), actor.UUID, teamUUID, page, status)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponses(list))
}

func (h *Handler) handleMine(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		shared.WriteError(w, shared.ErrInvalidToken)
		return
	}
	list, err := h.service.ListMine(r.Context(), actor.UUID, pageFromQuery(r))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponses(list))
}

func (h *Handler) handleOverdue(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		shared.WriteError(w, shared.ErrInvalidToken)
		return
	}
	teamUUID, err := uuid.Parse(r.URL.Query().Get("team"))
	if err != nil {
		shared.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "team query parameter is required"})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := h.service.Overdue(r.Context(), actor.UUID, teamUUID, limit)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponses(list))
}

func (h *Handler) handleStatusReport(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		shared.WriteError(w, shared.ErrInvalidToken)
		return
	}
	teamUUID, err := uuid.Parse(r.URL.Query().Get("team"))
	if err != nil {
		shared.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "team query parameter is required"})
		return
	}
	report, err := h.service.StatusReport(r.Context(), actor.UUID, teamUUID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	actor, taskUUID, ok := h.actorAndTask(w, r)
	if !ok {
		return
	}
	task, err := h.service.Get(r.Context(), actor.UUID, taskUUID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponse(task))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	actor, taskUUID, ok := h.actorAndTask(w, r)
	if !ok {
		return
	}
	deleted, err := h.service.Delete(r.Context(), actor.UUID, taskUUID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if !deleted {
		shared.WriteError(w, shared.ErrNotFound)
		return
	}
	shared.WriteJSON(w, http.StatusNoContent, nil)
}

type assignTaskRequest struct {
	AssigneeUUID string `json:"assignee_uuid" validate:"required,uuid"`
}

func (h *Handler) handleAssign(w http.ResponseWriter, r *http.Request) {
	actor, taskUUID, ok := h.actorAndTask(w, r)
	if !ok {
		return
	}
	var req assignTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		shared.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	assigneeUUID, _ := uuid.Parse(req.AssigneeUUID)
	task, err := h.service.Assign(r.Context(), actor.UUID, taskUUID, assigneeUUID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponse(task))
}

type changeStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=OPEN IN_PROGRESS COMPLETED"`
}

func (h *Handler) handleChangeStatus(w http.ResponseWriter, r *http.Request) {
	actor, taskUUID, ok := h.actorAndTask(w, r)
	if !ok {
		return
	}
	var req changeStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		shared.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	task, err := h.service.ChangeStatus(r.Context(), actor.UUID, taskUUID, Status(req.Status))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponse(task))
}

func (h *Handler) actorAndTask(w http.ResponseWriter, r *http.Request) (shared.Actor, uuid.UUID, bool) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		shared.WriteError(w, shared.ErrInvalidToken)
		return shared.Actor{}, uuid.Nil, false
	}
	taskUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		shared.WriteError(w, shared.ErrNotFound)
		return shared.Actor{}, uuid.Nil, false
	}
	return actor, taskUUID, true
}

func pageFromQuery(r *http.Request) shared.Page {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	return shared.NormalizePage(limit, offset)
}
