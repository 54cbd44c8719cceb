package users

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/AleksGin/business-manager/internal/rbac"
	"github.com/AleksGin/business-manager/internal/shared"
)

// Handler wires HTTP endpoints for user management.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
	}
}

// MountRoutes registers user routes on the provided router. All routes
// assume the auth middleware already placed the actor in context.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleQuery)
	r.Post("/", h.handleCreate)
	r.Get("/without-team", h.handleWithoutTeam)
	r.Get("/{uuid}", h.handleGet)
	r.Patch("/{uuid}", h.handleUpdate)
	r.Delete("/{uuid}", h.handleDelete)
	r.Post("/{uuid}/role", h.handleAssignRole)
	r.Delete("/{uuid}/role", h.handleRemoveRole)
	r.Post("/{uuid}/activate", h.handleActivate)
	r.Post("/{uuid}/deactivate", h.handleDeactivate)
}

// UserResponse is the wire shape of a user.
type UserResponse struct {
	UUID       string     `json:"uuid"`
	Email      string     `json:"email"`
	Name       string     `json:"name"`
	Surname    string     `json:"surname"`
	Gender     string     `json:"gender"`
	BirthDate  string     `json:"birth_date"`
	Role       string     `json:"role"`
	TeamUUID   *uuid.UUID `json:"team_uuid,omitempty"`
	IsActive   bool       `json:"is_active"`
	IsVerified bool       `json:"is_verified"`
}

// ToResponse converts a domain user to its wire shape.
func ToResponse(u *User) UserResponse {
	return UserResponse{
		UUID:       u.UUID.String(),
		Email:      u.Email,
		Name:       u.Name,
		Surname:    u.Surname,
		Gender:     string(u.Gender),
		BirthDate:  u.BirthDate.Format("2006-01-02"),
		Role:       string(u.Role),
		TeamUUID:   u.TeamUUID,
		IsActive:   u.IsActive,
		IsVerified: u.IsVerified,
	}
}

type createUserRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Name      string `json:"name" validate:"required"`
	Surname   string `json:"surname" validate:"required"`
	Gender    string `json:"gender" validate:"required,oneof=MALE FEMALE"`
	BirthDate string `json:"birth_date" validate:"required"`
	Password  string `json:"password" validate:"required,min=8"`
	Role      string `json:"role" validate:"omitempty,oneof=EMPLOYEE MANAGER ADMIN"`
	TeamUUID  string `json:"team_uuid" validate:"omitempty,uuid"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		shared.WriteError(w, shared.ErrInvalidToken)
		return
	}

	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		shared.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	birthDate, err := time.Parse("2006-01-02", req.BirthDate)
	if err != nil {
		shared.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid birth_date"})
		return
	}

	in := CreateUserInput{
		Email:     req.Email,
		Name:      req.Name,
		Surname:   req.Surname,
		Gender:    Gender(req.Gender),
		BirthDate: birthDate,
		Password:  req.Password,
		Role:      rbac.Role(req.Role),
	}
	if req.TeamUUID != "" {
		teamUUID, err := uuid.Parse(req.TeamUUID)
		if err != nil {
			shared.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid team_uuid"})
			return
		}
		in.TeamUUID = &teamUUID
	}

	user, err := h.service.CreateUser(r.Context(), &actor.UUID, in)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, ToResponse(user))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		shared.WriteError(w, shared.ErrInvalidToken)
		return
	}
	targetUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		shared.WriteError(w, shared.ErrNotFound)
		return
	}
	user, err := h.service.GetByUUID(r.Context(), actor.UUID, targetUUID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, ToResponse(user))
}

func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		shared.WriteError(w, shared.ErrInvalidToken)
		return
	}

	if email := r.URL.Query().Get("email"); email != "" {
		user, err := h.service.GetByEmail(r.Context(), actor.UUID, email)
		if err != nil {
			shared.WriteError(w, err)
			return
		}
		shared.WriteJSON(w, http.StatusOK, ToResponse(user))
		return
	}

	req := QueryUsersRequest{
		Page:        shared.NormalizePage(queryInt(r, "limit"), queryInt(r, "offset")),
		SearchQuery: r.URL.Query().Get("q"),
		ExcludeTeam: r.URL.Query().Get("exclude_team") == "true",
	}
	if raw := r.URL.Query().Get("team_uuid"); raw != "" {
		teamUUID, err := uuid.Parse(raw)
		if err != nil {
			shared.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid team_uuid"})
			return
		}
		req.TeamUUID = &teamUUID
	}

	list, err := h.service.Query(r.Context(), actor.UUID, req)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponses(list))
}

func (h *Handler) handleWithoutTeam(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		shared.WriteError(w, shared.ErrInvalidToken)
		return
	}
	page := shared.NormalizePage(queryInt(r, "limit"), queryInt(r, "offset"))
	list, err := h.service.WithoutTeam(r.Context(), actor.UUID, page)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponses(list))
}

type updateUserRequest struct {
	Name      *string `json:"name"`
	Surname   *string `json:"surname"`
	Gender    *string `json:"gender" validate:"omitempty,oneof=MALE FEMALE"`
	BirthDate *string `json:"birth_date"`
	Role      *string `json:"role" validate:"omitempty,oneof=EMPLOYEE MANAGER ADMIN"`
	TeamUUID  *string `json:"team_uuid" validate:"omitempty,uuid"`
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		shared.WriteError(w, shared.ErrInvalidToken)
		return
	}
	targetUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		shared.WriteError(w, shared.ErrNotFound)
		return
	}

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		shared.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	in := UpdateUserInput{Name: req.Name, Surname: req.Surname}
	if req.Gender != nil {
		gender := Gender(*req.Gender)
		in.Gender = &gender
	}
	if req.BirthDate != nil {
		birthDate, err := time.Parse("2006-01-02", *req.BirthDate)
		if err != nil {
			shared.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid birth_date"})
			return
		}
		in.BirthDate = &birthDate
	}
	if req.Role != nil {
		role := rbac.Role(*req.Role)
		in.Role = &role
	}
	if req.TeamUUID != nil {
		teamUUID, err := uuid.Parse(*req.TeamUUID)
		if err != nil {
			shared.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid team_uuid"})
			return
		}
		in.TeamUUID = &teamUUID
	}

	user, err := h.service.Update(r.Context(), actor.UUID, targetUUID, in)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, ToResponse(user))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		shared.WriteError(w, shared.ErrInvalidToken)
		return
	}
	targetUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		shared.WriteError(w, shared.ErrNotFound)
		return
	}
	deleted, err := h.service.Delete(r.Context(), actor.UUID, targetUUID)
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

type assignRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=EMPLOYEE MANAGER ADMIN"`
}

func (h *Handler) handleAssignRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		shared.WriteError(w, shared.ErrInvalidToken)
		return
	}
	targetUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		shared.WriteError(w, shared.ErrNotFound)
		return
	}
	var req assignRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		shared.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := h.service.AssignRole(r.Context(), actor.UUID, targetUUID, rbac.Role(req.Role)); err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]string{"status": "role assigned"})
}

func (h *Handler) handleRemoveRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		shared.WriteError(w, shared.ErrInvalidToken)
		return
	}
	targetUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		shared.WriteError(w, shared.ErrNotFound)
		return
	}
	if err := h.service.RemoveRole(r.Context(), actor.UUID, targetUUID); err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]string{"status": "role removed"})
}

func (h *Handler) handleActivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *Handler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		shared.WriteError(w, shared.ErrInvalidToken)
		return
	}
	targetUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		shared.WriteError(w, shared.ErrNotFound)
		return
	}
	if active {
		err = h.service.Activate(r.Context(), actor.UUID, targetUUID)
	} else {
		err = h.service.Deactivate(r.Context(), actor.UUID, targetUUID)
	}
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func toResponses(list []User) []UserResponse {
	out := make([]UserResponse, len(list))
	for i := range list {
		out[i] = ToResponse(&list[i])
	}
	return out
}

func queryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return n
}
