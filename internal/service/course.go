package service

import (
	"context"

	"github.com/courselens/courselens-api/internal/domain/model"
	"github.com/courselens/courselens-api/internal/ports"
)

// CourseService manages the course catalog. Students see active courses only;
// admins manage the full catalog.
type CourseService struct {
	repo ports.CourseRepository
}

// NewCourseService constructs a CourseService.
func NewCourseService(repo ports.CourseRepository) *CourseService {
	return &CourseService{repo: repo}
}

// ListForStudents returns active courses.
func (s *CourseService) ListForStudents(ctx context.Context) ([]model.Course, error) {
	return s.repo.List(ctx, model.CourseListOptions{ActiveOnly: true})
}

// ListAll returns the full catalog, deactivated courses included.
func (s *CourseService) ListAll(ctx context.Context) ([]model.Course, error) {
	return s.repo.List(ctx, model.CourseListOptions{})
}

// Get returns one course by ID.
func (s *CourseService) Get(ctx context.Context, id string) (model.Course, error) {
	return s.repo.Get(ctx, id)
}

// Create adds a course to the catalog.
func (s *CourseService) Create(ctx context.Context, in model.CreateCourseRequest) (model.Course, error) {
	return s.repo.Create(ctx, in)
}

// Update applies non-nil fields of in to a course.
func (s *CourseService) Update(ctx context.Context, id string, in model.UpdateCourseRequest) (model.Course, error) {
	return s.repo.Update(ctx, id, in)
}

// Delete removes a course and, via the schema, its feedback.
func (s *CourseService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}
