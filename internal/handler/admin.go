package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/secret-santa/internal/model"
	"github.com/sakif/secret-santa/internal/repository"
	"github.com/sakif/secret-santa/internal/service"
)

// AdminHandler serves participant management and the dashboard.
// Pairing and gift administration live on PairingHandler and GiftHandler.
type AdminHandler struct {
	participants *service.ParticipantService
	stats        *service.StatsService
	logger       *slog.Logger
}

func NewAdminHandler(participants *service.ParticipantService, stats *service.StatsService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{participants: participants, stats: stats, logger: logger}
}

type createUserRequest struct {
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	Department string     `json:"department"`
	Role       model.Role `json:"role"`
}

type updateUserRequest struct {
	Name       *string     `json:"name"`
	Email      *string     `json:"email"`
	Department *string     `json:"department"`
	Role       *model.Role `json:"role"`
	Active     *bool       `json:"isActive"`
}

// HandleListUsers returns every participant, active or not.
//
// HTTP: GET /api/admin/users
func (h *AdminHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.participants.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// HandleCreateUser registers a participant.
//
// HTTP: POST /api/admin/users
func (h *AdminHandler) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.participants.Create(r.Context(), service.NewParticipant{
		Name:       req.Name,
		Email:      req.Email,
		Department: req.Department,
		Role:       req.Role,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// HandleUpdateUser applies a partial edit.
//
// HTTP: PUT /api/admin/users/{id}
//
// URL PARAMETERS:
// chi.URLParam(r, "id") extracts {id} from the matched route pattern.
func (h *AdminHandler) HandleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.participants.Update(r.Context(), chi.URLParam(r, "id"), repository.ParticipantUpdate{
		Name:       req.Name,
		Email:      req.Email,
		Department: req.Department,
		Role:       req.Role,
		Active:     req.Active,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleDeleteUser deactivates a participant. Nothing is ever hard-deleted.
//
// HTTP: DELETE /api/admin/users/{id}
func (h *AdminHandler) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.participants.Deactivate(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "User deactivated successfully"})
}

// HandleStats returns the admin dashboard.
//
// HTTP: GET /api/admin/stats
func (h *AdminHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	s, err := h.stats.Get(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}
