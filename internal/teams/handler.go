package teams

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/AleksGin/business-manager/internal/shared"
	"github.com/AleksGin/business-manager/internal/users"
)

// Handler wires HTTP endpoints for teams and membership.
type Handler struct {
	logger     *slog.Logger
	service    *Service
	membership *MembershipManager
	validate   *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, membership *MembershipManager) *Handler {
	return &Handler{
		logger:     logger,
		service:    service,
		membership: membership,
		validate:   validator.New(),
	}
}

// MountRoutes registers team routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleCreate)
	r.Get("/", h.handleList)
	r.Post("/join", h.handleJoinByCode)
	r.Get("/{uuid}", h.handleGet)
	r.Patch("/{uuid}", h.handleUpdate)
	r.Delete("/{uuid}", h.handleDelete)
	r.Get("/{uuid}/members", h.handleMembers)
	r.Post("/{uuid}/members", h.handleAddMember)
	r.Delete("/{uuid}/members/{user}", h.handleRemoveMember)
	r.Post("/{uuid}/transfer", h.handleTransferOwnership)
	r.Post("/{uuid}/invite", h.handleGenerateInvite)
}

// TeamResponse is the wire shape of a team.
type TeamResponse struct {
	UUID        string `json:"uuid"`
	Name        string `json:"name"`
	Description string `json:"description"`
	OwnerUUID   string `json:"owner_uuid"`
}

func toResponse(t *Team) TeamResponse {
	return TeamResponse{
		UUID:        t.UUID.String(),
		Name:        t.Name,
		Description: t.Description,
		OwnerUUID:   t.OwnerUUID.String(),
	}
}

type createTeamRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		shared.WriteError(w, shared.ErrInvalidToken)
		return
	}
	var req createTeamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		shared.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	team, err := h.service.Create(r.Context(), actor.UUID, CreateTeamInput{Name: req.Name, Description: req.Description})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toResponse(team))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		shared.WriteError(w, shared.ErrInvalidToken)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	list, err := h.service.List(r.Context(), actor.UUID, shared.NormalizePage(limit, offset))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	out := make([]TeamResponse, len(list))
	for i := range list {
		out[i] = toResponse(&list[i])
	}
	shared.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	actor, teamUUID, ok := h.actorAndTeam(w, r)
	if !ok {
		return
	}
	team, err := h.service.Get(r.Context(), actor.UUID, teamUUID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponse(team))
}

type updateTeamRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	actor, teamUUID, ok := h.actorAndTeam(w, r)
	if !ok {
		return
	}
	var req updateTeamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	team, err := h.service.Update(r.Context(), actor.UUID, teamUUID, UpdateTeamInput{Name: req.Name, Description: req.Description})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponse(team))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	actor, teamUUID, ok := h.actorAndTeam(w, r)
	if !ok {
		return
	}
	deleted, err := h.service.Delete(r.Context(), actor.UUID, teamUUID)
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

func (h *Handler) handleMembers(w http.ResponseWriter, r *http.Request) {
	actor, teamUUID, ok := h.actorAndTeam(w, r)
	if !ok {
		return
	}
	members, err := h.service.Members(r.Context(), actor.UUID, teamUUID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	out := make([]users.UserResponse, len(members))
	for i := range members {
		out[i] = users.ToResponse(&members[i])
	}
	shared.WriteJSON(w, http.StatusOK, out)
}

type memberRequest struct {
	UserUUID string `json:"user_uuid" validate:"required,uuid"`
}

func (h *Handler) handleAddMember(w http.ResponseWriter, r *http.Request) {
	actor, teamUUID, ok := h.actorAndTeam(w, r)
	if !ok {
		return
	}
	var req memberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		shared.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	userUUID, _ := uuid.Parse(req.UserUUID)
	if err := h.membership.AddUserToTeam(r.Context(), actor.UUID, teamUUID, userUUID); err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]string{"status": "member added"})
}

func (h *Handler) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	actor, teamUUID, ok := h.actorAndTeam(w, r)
	if !ok {
		return
	}
	userUUID, err := uuid.Parse(chi.URLParam(r, "user"))
	if err != nil {
		shared.WriteError(w, shared.ErrNotFound)
		return
	}
	if err := h.membership.RemoveUserFromTeam(r.Context(), actor.UUID, teamUUID, userUUID); err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]string{"status": "member removed"})
}

func (h *Handler) handleTransferOwnership(w http.ResponseWriter, r *http.Request) {
	actor, teamUUID, ok := h.actorAndTeam(w, r)
	if !ok {
		return
	}
	var req memberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		shared.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	newOwnerUUID, _ := uuid.Parse(req.UserUUID)
	if err := h.membership.TransferOwnership(r.Context(), actor.UUID, teamUUID, newOwnerUUID); err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]string{"status": "ownership transferred"})
}

func (h *Handler) handleGenerateInvite(w http.ResponseWriter, r *http.Request) {
	actor, teamUUID, ok := h.actorAndTeam(w, r)
	if !ok {
		return
	}
	code, err := h.membership.GenerateInviteCode(r.Context(), actor.UUID, teamUUID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, map[string]string{"invite_code": code})
}

type joinTeamRequest struct {
	Code string `json:"code" validate:"required"`
}

func (h *Handler) handleJoinByCode(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		shared.WriteError(w, shared.ErrInvalidToken)
		return
	}
	var req joinTeamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		shared.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	team, err := h.membership.JoinTeamByCode(r.Context(), actor.UUID, req.Code)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponse(team))
}

func (h *Handler) actorAndTeam(w http.ResponseWriter, r *http.Request) (shared.Actor, uuid.UUID, bool) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		shared.WriteError(w, shared.ErrInvalidToken)
		return shared.Actor{}, uuid.Nil, false
	}
	teamUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		shared.WriteError(w, shared.ErrNotFound)
		return shared.Actor{}, uuid.Nil, false
	}
	return actor, teamUUID, true
}
