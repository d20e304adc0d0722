package service

import (
	"context"

	"github.com/courselens/courselens-api/internal/domain/model"
	apperrors "github.com/courselens/courselens-api/internal/errors"
	"github.com/courselens/courselens-api/internal/ports"
)

// FeedbackService manages student course feedback. Students own their rows;
// the detailed admin listing lives here too.
type FeedbackService struct {
	repo    ports.FeedbackRepository
	courses ports.CourseRepository
}

// NewFeedbackService constructs a FeedbackService.
func NewFeedbackService(repo ports.FeedbackRepository, courses ports.CourseRepository) *FeedbackService {
	return &FeedbackService{repo: repo, courses: courses}
}

// Submit records feedback from one student for an active course.
func (s *FeedbackService) Submit(ctx context.Context, userID string, in model.CreateFeedbackRequest) (model.Feedback, error) {
	if err := in.Validate(); err != nil {
		return model.Feedback{}, err
	}

	course, err := s.courses.Get(ctx, in.CourseID)
	if err != nil {
		return model.Feedback{}, err
	}
	if !course.IsActive {
		return model.Feedback{}, apperrors.ValidationField("course_id", "course is not accepting feedback")
	}

	return s.repo.Create(ctx, userID, in)
}

// ListMine returns one student's feedback with course details.
func (s *FeedbackService) ListMine(ctx context.Context, userID string) ([]model.FeedbackWithCourse, error) {
	return s.repo.ListByUser(ctx, userID)
}

// ListAll returns the joined admin listing with optional filters.
func (s *FeedbackService) ListAll(ctx context.Context, opts model.FeedbackListOptions) ([]model.FeedbackDetail, error) {
	return s.repo.ListDetailed(ctx, opts)
}

// Update edits a feedback row. Only the owning student may edit.
func (s *FeedbackService) Update(ctx context.Context, userID, id string, in model.UpdateFeedbackRequest) (model.Feedback, error) {
	if err := in.Validate(); err != nil {
		return model.Feedback{}, err
	}
	if err := s.requireOwner(ctx, userID, id); err != nil {
		return model.Feedback{}, err
	}
	if in.CourseID != nil {
		course, err := s.courses.Get(ctx, *in.CourseID)
		if err != nil {
			return model.Feedback{}, err
		}
		if !course.IsActive {
			return model.Feedback{}, apperrors.ValidationField("course_id", "course is not accepting feedback")
		}
	}
	return s.repo.Update(ctx, id, in)
}

// Delete removes a feedback row. Only the owning student may delete.
func (s *FeedbackService) Delete(ctx context.Context, userID, id string) error {
	if err := s.requireOwner(ctx, userID, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (s *FeedbackService) requireOwner(ctx context.Context, userID, id string) error {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if existing.UserID != userID {
		return apperrors.Forbidden("feedback belongs to another user")
	}
	return nil
}
