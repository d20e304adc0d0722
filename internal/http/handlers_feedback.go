package httpx

import (
	"errors"
	"net/http"

	"github.com/courselens/courselens-api/internal/domain/model"
	"github.com/courselens/courselens-api/internal/service"
)

// FeedbackHandlers provides HTTP handlers for student-owned feedback.
type FeedbackHandlers struct {
	Svc *service.FeedbackService
}

// Create submits feedback for a course as the signed-in student.
// POST /api/feedback.
func (h *FeedbackHandlers) Create(w http.ResponseWriter, r *http.Request) {
	sess, ok := GetUserSessionFromContext(r.Context())
	if !ok {
		writeSessionMissing(w)
		return
	}

	var req model.CreateFeedbackRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	fb, err := h.Svc.Submit(r.Context(), sess.Identity.ID, req)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, fb)
}

// ListMine returns the signed-in student's feedback with course details.
// GET /api/feedback.
func (h *FeedbackHandlers) ListMine(w http.ResponseWriter, r *http.Request) {
	sess, ok := GetUserSessionFromContext(r.Context())
	if !ok {
		writeSessionMissing(w)
		return
	}

	items, err := h.Svc.ListMine(r.Context(), sess.Identity.ID)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"feedback": items})
}

// Update edits one of the signed-in student's feedback entries.
// PUT /api/feedback/{id}.
func (h *FeedbackHandlers) Update(w http.ResponseWriter, r *http.Request) {
	sess, ok := GetUserSessionFromContext(r.Context())
	if !ok {
		writeSessionMissing(w)
		return
	}

	var req model.UpdateFeedbackRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	fb, err := h.Svc.Update(r.Context(), sess.Identity.ID, r.PathValue("id"), req)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, fb)
}

// Delete removes one of the signed-in student's feedback entries.
// DELETE /api/feedback/{id}.
func (h *FeedbackHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	sess, ok := GetUserSessionFromContext(r.Context())
	if !ok {
		writeSessionMissing(w)
		return
	}

	if err := h.Svc.Delete(r.Context(), sess.Identity.ID, r.PathValue("id")); err != nil {
		WriteAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeSessionMissing(w http.ResponseWriter) {
	WriteError(w, ErrorParams{
		Code:    http.StatusUnauthorized,
		ErrCode: "authentication_required",
		Err:     errors.New("authentication required"),
	})
}
