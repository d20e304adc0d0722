package ports

import (
	"context"

	"github.com/courselens/courselens-api/internal/domain/model"
)

// CourseRepository persists the course catalog.
type CourseRepository interface {
	Create(ctx context.Context, in model.CreateCourseRequest) (model.Course, error)
	Get(ctx context.Context, id string) (model.Course, error)
	List(ctx context.Context, opts model.CourseListOptions) ([]model.Course, error)
	Update(ctx context.Context, id string, in model.UpdateCourseRequest) (model.Course, error)
	Delete(ctx context.Context, id string) error
}

// FeedbackRepository persists student feedback and serves the joined
// listings behind the student and admin views.
type FeedbackRepository interface {
	Create(ctx context.Context, userID string, in model.CreateFeedbackRequest) (model.Feedback, error)
	Get(ctx context.Context, id string) (model.Feedback, error)
	ListByUser(ctx context.Context, userID string) ([]model.FeedbackWithCourse, error)
	ListDetailed(ctx context.Context, opts model.FeedbackListOptions) ([]model.FeedbackDetail, error)
	Update(ctx context.Context, id string, in model.UpdateFeedbackRequest) (model.Feedback, error)
	Delete(ctx context.Context, id string) error

	// DeleteByUser removes all of one student's feedback and returns how
	// many rows were removed. Used by account deletion.
	DeleteByUser(ctx context.Context, userID string) (int, error)

	// RecentByUser returns the student's most recent feedback with course
	// details, newest first, capped at limit.
	RecentByUser(ctx context.Context, userID string, limit int) ([]model.FeedbackWithCourse, error)
}

// StatsRepository serves the read-only aggregates behind the admin dashboard.
// Averages are raw; callers round for display.
type StatsRepository interface {
	CountStudents(ctx context.Context) (int, error)
	CountCourses(ctx context.Context) (int, error)
	FeedbackSummary(ctx context.Context) (count int, avg float64, err error)
	FeedbackSummaryByUser(ctx context.Context, userID string) (count int, avg float64, err error)
	CourseRatingBuckets(ctx context.Context) ([]model.CourseRatingBucket, error)
}
