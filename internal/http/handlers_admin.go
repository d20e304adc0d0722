package httpx

import (
	"net/http"

	"github.com/courselens/courselens-api/internal/domain/model"
	"github.com/courselens/courselens-api/internal/service"
)

const (
	defaultAdminListLimit = 50
	maxAdminListLimit     = 200
)

// AdminHandlers provides HTTP handlers for the admin dashboard: analytics,
// the feedback browser, the student roster, and moderation actions.
type AdminHandlers struct {
	Analytics *service.AnalyticsService
	Feedback  *service.FeedbackService
	Accounts  *service.AccountService
}

// Overview returns the dashboard headline numbers and the per-course chart.
// GET /api/admin/overview.
func (h *AdminHandlers) Overview(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Analytics.Overview(r.Context())
	if err != nil {
		WriteAppError(w, err)
		return
	}
	buckets, err := h.Analytics.CourseBuckets(r.Context())
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"stats":   stats,
		"courses": buckets,
	})
}

// ListFeedback returns all feedback with author and course details.
// GET /api/admin/feedback?course_id=&rating=&q=&limit=&offset=.
func (h *AdminHandlers) ListFeedback(w http.ResponseWriter, r *http.Request) {
	limit, offset := ParseLimitOffset(r, defaultAdminListLimit, maxAdminListLimit)
	opts := model.FeedbackListOptions{
		CourseID: optionalString(r, "course_id"),
		Rating:   optionalInt(r, "rating"),
		Q:        optionalString(r, "q"),
		Limit:    limit,
		Offset:   offset,
	}

	items, err := h.Feedback.ListAll(r.Context(), opts)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"feedback": items,
		"limit":    limit,
		"offset":   offset,
	})
}

// ListStudents returns the roster with per-student feedback summaries.
// GET /api/admin/students?q=&blocked=&limit=&offset=.
func (h *AdminHandlers) ListStudents(w http.ResponseWriter, r *http.Request) {
	limit, offset := ParseLimitOffset(r, defaultAdminListLimit, maxAdminListLimit)
	opts := model.StudentListOptions{
		Q:       optionalString(r, "q"),
		Blocked: optionalBool(r, "blocked"),
		Limit:   limit,
		Offset:  offset,
	}

	students, err := h.Analytics.StudentDetails(r.Context(), opts)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"students": students,
		"limit":    limit,
		"offset":   offset,
	})
}

// GetStudent returns one student's profile plus feedback summary and recents.
// GET /api/admin/students/{id}.
func (h *AdminHandlers) GetStudent(w http.ResponseWriter, r *http.Request) {
	detail, err := h.Analytics.StudentDetail(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, detail)
}

type blockRequest struct {
	Blocked bool `json:"blocked"`
}

// BlockStudent flips a student's blocked flag. Blocking also revokes the
// student's live sessions.
// POST /api/admin/students/{id}/block.
func (h *AdminHandlers) BlockStudent(w http.ResponseWriter, r *http.Request) {
	var req blockRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	if err := h.Accounts.SetBlocked(r.Context(), r.PathValue("id"), req.Blocked); err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"blocked": req.Blocked})
}

// DeleteStudent permanently removes a student's account: profile, role,
// feedback, identity, and sessions. A failure after the dependent deletes
// surfaces as an inconsistency error for manual remediation.
// DELETE /api/admin/students/{id}.
func (h *AdminHandlers) DeleteStudent(w http.ResponseWriter, r *http.Request) {
	if err := h.Accounts.DeleteAccount(r.Context(), r.PathValue("id")); err != nil {
		WriteAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
