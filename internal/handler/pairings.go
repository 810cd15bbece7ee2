package handler

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sakif/secret-santa/internal/export"
	"github.com/sakif/secret-santa/internal/service"
)

// PairingHandler serves assignments, the reveal, and pairing administration.
type PairingHandler struct {
	pairings *service.PairingService
	reveal   *service.RevealService
	logger   *slog.Logger
}

func NewPairingHandler(pairings *service.PairingService, reveal *service.RevealService, logger *slog.Logger) *PairingHandler {
	return &PairingHandler{pairings: pairings, reveal: reveal, logger: logger}
}

// HandleMyAssignment answers "who do I give to?".
//
// HTTP: GET /api/pairings/my-assignment
func (h *PairingHandler) HandleMyAssignment(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	a, err := h.pairings.MyAssignment(r.Context(), p.ParticipantID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// HandleReveal answers "who was my Secret Santa?".
//
// HTTP: GET /api/pairings/reveal
//
// While the reveal is locked this is a 403 whose details carry the reveal
// date, so the client can show a countdown.
func (h *PairingHandler) HandleReveal(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	res, err := h.reveal.Reveal(r.Context(), p.ParticipantID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleStatus returns the lock flags plus the caller's progress.
//
// HTTP: GET /api/pairings/status
func (h *PairingHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	st, err := h.pairings.Status(r.Context(), p.ParticipantID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleGenerate creates the pairings and emails every giver.
//
// HTTP: POST /api/admin/generate-pairings
func (h *PairingHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	res, err := h.pairings.Generate(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// HandleList returns every pairing with both identities.
//
// HTTP: GET /api/admin/pairings
func (h *PairingHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.pairings.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// HandleReset deletes the pairings and unlocks generation.
//
// HTTP: DELETE /api/admin/pairings
func (h *PairingHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	if err := h.pairings.Reset(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "All pairings deleted and unlocked"})
}

// HandleValidate reports whether the stored pairings still cover the
// active participants.
//
// HTTP: GET /api/admin/pairings/validate
func (h *PairingHandler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	report, err := h.pairings.Validate(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// HandleExport downloads the pairings as CSV.
//
// HTTP: GET /api/admin/export-pairings
//
// The CSV is built in memory first so a failure can still become a proper
// JSON error instead of a half-written download.
func (h *PairingHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.pairings.Export(r.Context(), &buf); err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Warn("writing CSV export", slog.String("error", err.Error()))
	}
}

// HandleSendRevealReminders emails every active participant.
//
// HTTP: POST /api/admin/send-reveal-reminders
func (h *PairingHandler) HandleSendRevealReminders(w http.ResponseWriter, r *http.Request) {
	res, err := h.pairings.SendRevealReminders(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
