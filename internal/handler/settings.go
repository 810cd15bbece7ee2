package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/secret-santa/internal/service"
)

// SettingsHandler serves the event settings.
type SettingsHandler struct {
	settings *service.SettingsService
	logger   *slog.Logger
}

func NewSettingsHandler(settings *service.SettingsService, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{settings: settings, logger: logger}
}

// settingsRequest is a partial update. Omitted fields are left alone; an
// explicit null giftSubmissionDeadline clears the deadline.
type settingsRequest struct {
	RevealDate             *time.Time          `json:"revealDate"`
	RevealLocked           *bool               `json:"revealLocked"`
	GiftSubmissionDeadline optional[time.Time] `json:"giftSubmissionDeadline"`
	MaxParticipants        *int                `json:"maxParticipants"`
}

// HandleGet returns the settings, creating them with defaults on first use.
//
// HTTP: GET /api/settings
func (h *SettingsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	st, err := h.settings.Get(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleUpdate applies an admin edit.
//
// HTTP: PUT /api/admin/settings
func (h *SettingsHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	upd := service.SettingsUpdate{
		RevealDate:      req.RevealDate,
		RevealLocked:    req.RevealLocked,
		MaxParticipants: req.MaxParticipants,
	}
	if req.GiftSubmissionDeadline.Set {
		if req.GiftSubmissionDeadline.Value == nil {
			upd.ClearDeadline = true
		} else {
			upd.GiftSubmissionDeadline = req.GiftSubmissionDeadline.Value
		}
	}

	st, err := h.settings.Update(r.Context(), upd)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
