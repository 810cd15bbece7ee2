package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/secret-santa/internal/service"
)

// multipartOverhead is room for the text fields and multipart framing on top
// of the image itself.
const multipartOverhead = 1 << 20

// GiftHandler serves gift submission and the admin gift list.
type GiftHandler struct {
	gifts          *service.GiftService
	maxUploadBytes int64
	logger         *slog.Logger
}

func NewGiftHandler(gifts *service.GiftService, maxUploadBytes int64, logger *slog.Logger) *GiftHandler {
	return &GiftHandler{gifts: gifts, maxUploadBytes: maxUploadBytes, logger: logger}
}

// HandleSubmit creates or replaces the caller's gift.
//
// HTTP: POST /api/gifts/submit   multipart/form-data: giftName, message, giftImage
//
// The body is capped with http.MaxBytesReader before parsing, so an
// oversized upload is cut off instead of being buffered to disk.
// The image store applies the exact size limit.
func (h *GiftHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooBig *http.MaxBytesError
		msg := "Invalid multipart form"
		if errors.As(err, &tooBig) {
			msg = "Upload is too large"
		}
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: msg, Field: "giftImage"})
		return
	}
	defer r.MultipartForm.RemoveAll()

	in := service.Submission{
		Name:    r.FormValue("giftName"),
		Message: r.FormValue("message"),
	}

	// A missing file is left nil; the service reports it as a validation error.
	if f, _, err := r.FormFile("giftImage"); err == nil {
		defer f.Close()
		in.Image = f
	}

	gift, created, err := h.gifts.Submit(r.Context(), p.ParticipantID, in)
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, gift)
}

// HandleMyGift returns the caller's gift.
//
// HTTP: GET /api/gifts/my-gift
func (h *GiftHandler) HandleMyGift(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	gift, err := h.gifts.Get(r.Context(), p.ParticipantID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, gift)
}

// HandleDeleteMyGift removes the caller's gift.
//
// HTTP: DELETE /api/gifts/my-gift
func (h *GiftHandler) HandleDeleteMyGift(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	if err := h.gifts.Delete(r.Context(), p.ParticipantID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Gift deleted successfully"})
}

// HandleList returns every gift with its giver.
//
// HTTP: GET /api/admin/gifts
func (h *GiftHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.gifts.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
