package httpx

import (
	"net/http"

	"github.com/courselens/courselens-api/internal/domain/model"
	"github.com/courselens/courselens-api/internal/service"
)

// maxPictureUploadBytes bounds profile picture uploads.
const maxPictureUploadBytes = 5 << 20 // 5 MiB

// ProfileHandlers provides HTTP handlers for the signed-in student's profile.
type ProfileHandlers struct {
	Svc *service.ProfileService
}

// Get returns the student's profile, creating it on first access.
// GET /api/profile.
func (h *ProfileHandlers) Get(w http.ResponseWriter, r *http.Request) {
	sess, ok := GetUserSessionFromContext(r.Context())
	if !ok {
		writeSessionMissing(w)
		return
	}

	profile, err := h.Svc.GetOrCreate(r.Context(), sess.Identity)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, profile)
}

// Update edits the student's profile fields.
// PUT /api/profile.
func (h *ProfileHandlers) Update(w http.ResponseWriter, r *http.Request) {
	sess, ok := GetUserSessionFromContext(r.Context())
	if !ok {
		writeSessionMissing(w)
		return
	}

	var req model.UpsertProfileRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	profile, err := h.Svc.Update(r.Context(), sess.Identity.ID, req)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, profile)
}

// UploadPicture accepts a multipart profile picture and stores it.
// POST /api/profile/picture with form field "picture".
func (h *ProfileHandlers) UploadPicture(w http.ResponseWriter, r *http.Request) {
	sess, ok := GetUserSessionFromContext(r.Context())
	if !ok {
		writeSessionMissing(w)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxPictureUploadBytes)
	if err := r.ParseMultipartForm(maxPictureUploadBytes); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_upload", Err: err})
		return
	}

	file, header, err := r.FormFile("picture")
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_upload", Err: err})
		return
	}
	defer file.Close() //nolint:errcheck // read-only temp file

	profile, err := h.Svc.UploadPicture(
		r.Context(),
		sess.Identity.ID,
		header.Filename,
		header.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, profile)
}
