package httpx

import (
	"net/http"

	"github.com/courselens/courselens-api/internal/domain/model"
	"github.com/courselens/courselens-api/internal/service"
)

// CourseHandlers provides HTTP handlers for course browsing and admin CRUD.
type CourseHandlers struct {
	Svc *service.CourseService
}

// List returns the courses open for feedback.
// GET /api/courses.
func (h *CourseHandlers) List(w http.ResponseWriter, r *http.Request) {
	courses, err := h.Svc.ListForStudents(r.Context())
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"courses": courses})
}

// AdminList returns every course, active or not.
// GET /api/admin/courses.
func (h *CourseHandlers) AdminList(w http.ResponseWriter, r *http.Request) {
	courses, err := h.Svc.ListAll(r.Context())
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"courses": courses})
}

// Get returns one course.
// GET /api/admin/courses/{id}.
func (h *CourseHandlers) Get(w http.ResponseWriter, r *http.Request) {
	course, err := h.Svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, course)
}

// Create adds a course.
// POST /api/admin/courses.
func (h *CourseHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateCourseRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	course, err := h.Svc.Create(r.Context(), req)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, course)
}

// Update edits a course.
// PUT /api/admin/courses/{id}.
func (h *CourseHandlers) Update(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateCourseRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	course, err := h.Svc.Update(r.Context(), r.PathValue("id"), req)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, course)
}

// Delete removes a course and, via the cascade, its feedback.
// DELETE /api/admin/courses/{id}.
func (h *CourseHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.Delete(r.Context(), r.PathValue("id")); err != nil {
		WriteAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
