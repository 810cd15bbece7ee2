package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/secret-santa/internal/auth"
	"github.com/sakif/secret-santa/internal/service"
)

// UserHandler serves the participant's own profile and the directory.
type UserHandler struct {
	participants *service.ParticipantService
	logger       *slog.Logger
}

func NewUserHandler(participants *service.ParticipantService, logger *slog.Logger) *UserHandler {
	return &UserHandler{participants: participants, logger: logger}
}

type profileRequest struct {
	Name       *string `json:"name"`
	Department *string `json:"department"`
}

// HandleMe returns the signed-in participant.
//
// HTTP: GET /api/users/me
func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	me, err := h.participants.Get(r.Context(), p.ParticipantID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, me)
}

// HandleUpdateMe edits the signed-in participant's name and department.
//
// HTTP: PUT /api/users/me   {"name": "...", "department": "..."}
func (h *UserHandler) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req profileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	me, err := h.participants.UpdateProfile(r.Context(), p.ParticipantID, req.Name, req.Department)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, me)
}

// HandleDirectory lists every active participant's public identity.
//
// HTTP: GET /api/users
func (h *UserHandler) HandleDirectory(w http.ResponseWriter, r *http.Request) {
	dir, err := h.participants.Directory(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dir)
}

// principal returns the signed-in participant, answering 401 itself if the
// route was mounted without RequireAuth.
func principal(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "valid authentication required"})
	}
	return p, ok
}
