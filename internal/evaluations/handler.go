package evaluations

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/AleksGin/business-manager/internal/shared"
)

// Handler wires HTTP endpoints for evaluations.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers evaluation routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleCreate)
	r.Get("/given", h.handleGiven)
	r.Get("/received/{user}", h.handleReceived)
	r.Get("/average/{user}", h.handleAverage)
	r.Get("/{uuid}", h.handleGet)
	r.Patch("/{uuid}", h.handleUpdate)
	r.Delete("/{uuid}", h.handleDelete)
}

// EvaluationResponse is the wire shape of an evaluation.
type EvaluationResponse struct {
	UUID          string `json:"uuid"`
	TaskUUID      string `json:"task_uuid"`
	TeamUUID      string `json:"team_uuid"`
	EvaluatorUUID string `json:"evaluator_uuid"`
	EvaluatedUUID string `json:"evaluated_uuid"`
	Score         int    `json:"score"`
	Comment       string `json:"comment"`
}

func toResponse(e *Evaluation) EvaluationResponse {
	return EvaluationResponse{
		UUID:          e.UUID.String(),
		TaskUUID:      e.TaskUUID.String(),
		TeamUUID:      e.TeamUUID.String(),
		EvaluatorUUID: e.EvaluatorUUID.String(),
		EvaluatedUUID: e.EvaluatedUUID.String(),
		Score:         int(e.Score),
		Comment:       e.Comment,
	}
}

func toResponses(list []Evaluation) []EvaluationResponse {
	out := make([]EvaluationResponse, len(list))
	for i := range list {
		out[i] = toResponse(&list[i])
	}
	return out
}

type createEvaluationRequest struct {
	TaskUUID string `json:"task_uuid" validate:"required,uuid"`
	Score    int    `json:"score" validate:"required,min=1,max=5"`
	Comment  string `json:"comment"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		shared.WriteError(w, shared.ErrInvalidToken)
		return
	}
	var req createEvaluationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		shared.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	taskUUID, _ := uuid.Parse(req.TaskUUID)
	eval, err := h.service.Create(r.Context(), actor.UUID, CreateEvaluationInput{
		TaskUUID: taskUUID,
		Score:    Score(req.Score),
		Comment:  req.Comment,
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toResponse(eval))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	actor, evalUUID, ok := h.actorAndEval(w, r)
	if !ok {
		return
	}
	eval, err := h.service.Get(r.Context(), actor.UUID, evalUUID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponse(eval))
}

type updateEvaluationRequest struct {
	Score   int     `json:"score" validate:"required,min=1,max=5"`
	Comment *string `json:"comment"`
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	actor, evalUUID, ok := h.actorAndEval(w, r)
	if !ok {
		return
	}
	var req updateEvaluationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		shared.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	eval, err := h.service.Update(r.Context(), actor.UUID, evalUUID, Score(req.Score), req.Comment)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponse(eval))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	actor, evalUUID, ok := h.actorAndEval(w, r)
	if !ok {
		return
	}
	deleted, err := h.service.Delete(r.Context(), actor.UUID, evalUUID)
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

func (h *Handler) handleReceived(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		shared.WriteError(w, shared.ErrInvalidToken)
		return
	}
	userUUID, err := uuid.Parse(chi.URLParam(r, "user"))
	if err != nil {
		shared.WriteError(w, shared.ErrNotFound)
		return
	}
	list, err := h.service.Received(r.Context(), actor.UUID, userUUID, pageFromQuery(r))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponses(list))
}

func (h *Handler) handleGiven(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		shared.WriteError(w, shared.ErrInvalidToken)
		return
	}
	list, err := h.service.Given(r.Context(), actor.UUID, pageFromQuery(r))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponses(list))
}

func (h *Handler) handleAverage(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		shared.WriteError(w, shared.ErrInvalidToken)
		return
	}
	userUUID, err := uuid.Parse(chi.URLParam(r, "user"))
	if err != nil {
		shared.WriteError(w, shared.ErrNotFound)
		return
	}
	avg, hasAny, err := h.service.AverageScore(r.Context(), actor.UUID, userUUID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"user_uuid":     userUUID.String(),
		"average_score": avg,
		"has_scores":    hasAny,
	})
}

func (h *Handler) actorAndEval(w http.ResponseWriter, r *http.Request) (shared.Actor, uuid.UUID, bool) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		shared.WriteError(w, shared.ErrInvalidToken)
		return shared.Actor{}, uuid.Nil, false
	}
	evalUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		shared.WriteError(w, shared.ErrNotFound)
		return shared.Actor{}, uuid.Nil, false
	}
	return actor, evalUUID, true
}

func pageFromQuery(r *http.Request) shared.Page {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	return shared.NormalizePage(limit, offset)
}
