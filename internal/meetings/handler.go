package meetings

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

// Handler wires HTTP endpoints for meetings.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers meeting routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleCreate)
	r.Get("/", h.handleList)
	r.Get("/mine", h.handleMine)
	r.Get("/upcoming", h.handleUpcoming)
	r.Get("/{uuid}", h.handleGet)
	r.Delete("/{uuid}", h.handleDelete)
	r.Post("/{uuid}/participants", h.handleAddParticipant)
	r.Delete("/{uuid}/participants/{user}", h.handleRemoveParticipant)
}

// MeetingResponse is the wire shape of a meeting.
type MeetingResponse struct {
	UUID         string      `json:"uuid"`
	Title        string      `json:"title"`
	Description  string      `json:"description"`
	TeamUUID     string      `json:"team_uuid"`
	CreatorUUID  string      `json:"creator_uuid"`
	StartTime    time.Time   `json:"start_time"`
	EndTime      time.Time   `json:"end_time"`
	Participants []uuid.UUID `json:"participants"`
}

func toResponse(m *Meeting) MeetingResponse {
	return MeetingResponse{
		UUID:         m.UUID.String(),
		Title:        m.Title,
		Description:  m.Description,
		TeamUUID:     m.TeamUUID.String(),
		CreatorUUID:  m.CreatorUUID.String(),
		StartTime:    m.StartTime,
		EndTime:      m.EndTime,
		Participants: m.Participants,
	}
}

func toResponses(list []Meeting) []MeetingResponse {
	out := make([]MeetingResponse, len(list))
	for i := range list {
		out[i] = toResponse(&list[i])
	}
	return out
}

type createMeetingRequest struct {
	Title        string    `json:"title" validate:"required"`
	Description  string    `json:"description"`
	TeamUUID     string    `json:"team_uuid" validate:"required,uuid"`
	StartTime    time.Time `json:"start_time" validate:"required"`
	EndTime      time.Time `json:"end_time" validate:"required"`
	Participants []string  `json:"participants" validate:"dive,uuid"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		shared.WriteError(w, shared.ErrInvalidToken)
		return
	}
	var req createMeetingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		shared.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	teamUUID, _ := uuid.Parse(req.TeamUUID)
	in := CreateMeetingInput{
		Title:       req.Title,
		Description: req.Description,
		TeamUUID:    teamUUID,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
	}
	for _, raw := range req.Participants {
		p, _ := uuid.Parse(raw)
		in.Participants = append(in.Participants, p)
	}
	meeting, err := h.service.Create(r.Context(), actor.UUID, in)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toResponse(meeting))
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
	list, err := h.service.ListForTeam(r.Context(), actor.UUID, teamUUID, pageFromQuery(r))
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

func (h *Handler) handleUpcoming(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		shared.WriteError(w, shared.ErrInvalidToken)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := h.service.Upcoming(r.Context(), actor.UUID, limit)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponses(list))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	actor, meetingUUID, ok := h.actorAndMeeting(w, r)
	if !ok {
		return
	}
	meeting, err := h.service.Get(r.Context(), actor.UUID, meetingUUID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponse(meeting))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	actor, meetingUUID, ok := h.actorAndMeeting(w, r)
	if !ok {
		return
	}
	deleted, err := h.service.Delete(r.Context(), actor.UUID, meetingUUID)
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

type participantRequest struct {
	UserUUID string `json:"user_uuid" validate:"required,uuid"`
}

func (h *Handler) handleAddParticipant(w http.ResponseWriter, r *http.Request) {
	actor, meetingUUID, ok := h.actorAndMeeting(w, r)
	if !ok {
		return
	}
	var req participantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		shared.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	userUUID, _ := uuid.Parse(req.UserUUID)
	if err := h.service.AddParticipant(r.Context(), actor.UUID, meetingUUID, userUUID); err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]string{"status": "participant added"})
}

func (h *Handler) handleRemoveParticipant(w http.ResponseWriter, r *http.Request) {
	actor, meetingUUID, ok := h.actorAndMeeting(w, r)
	if !ok {
		return
	}
	userUUID, err := uuid.Parse(chi.URLParam(r, "user"))
	if err != nil {
		shared.WriteError(w, shared.ErrNotFound)
		return
	}
	if err := h.service.RemoveParticipant(r.Context(), actor.UUID, meetingUUID, userUUID); err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]string{"status": "participant removed"})
}

func (h *Handler) actorAndMeeting(w http.ResponseWriter, r *http.Request) (shared.Actor, uuid.UUID, bool) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		shared.WriteError(w, shared.ErrInvalidToken)
		return shared.Actor{}, uuid.Nil, false
	}
	meetingUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		shared.WriteError(w, shared.ErrNotFound)
		return shared.Actor{}, uuid.Nil, false
	}
	return actor, meetingUUID, true
}

func pageFromQuery(r *http.Request) shared.Page {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	return shared.NormalizePage(limit, offset)
}
