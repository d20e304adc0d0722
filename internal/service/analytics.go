package service

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/courselens/courselens-api/internal/domain/model"
	"github.com/courselens/courselens-api/internal/ports"
)

// recentFeedbackLimit caps the per-student feedback preview on the dashboard.
const recentFeedbackLimit = 5

// studentDetailConcurrency bounds parallel per-student queries when building
// the full roster detail.
const studentDetailConcurrency = 8

// AnalyticsService serves the admin dashboard aggregates.
type AnalyticsService struct {
	stats    ports.StatsRepository
	profiles ports.ProfileDirectory
	feedback ports.FeedbackRepository
}

// NewAnalyticsService constructs an AnalyticsService.
func NewAnalyticsService(stats ports.StatsRepository, profiles ports.ProfileDirectory, feedback ports.FeedbackRepository) *AnalyticsService {
	return &AnalyticsService{stats: stats, profiles: profiles, feedback: feedback}
}

// Overview returns the dashboard headline numbers. The independent aggregates
// are fetched concurrently.
func (s *AnalyticsService) Overview(ctx context.Context) (model.OverviewStats, error) {
	var out model.OverviewStats

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.stats.CountStudents(ctx)
		out.TotalStudents = n
		return err
	})
	g.Go(func() error {
		n, err := s.stats.CountCourses(ctx)
		out.TotalCourses = n
		return err
	})
	g.Go(func() error {
		count, avg, err := s.stats.FeedbackSummary(ctx)
		out.TotalFeedbacks = count
		out.AverageRating = model.RoundRating(avg)
		return err
	})

	if err := g.Wait(); err != nil {
		return model.OverviewStats{}, err
	}
	return out, nil
}

// CourseBuckets returns the per-course ratings chart data with display-rounded
// averages.
func (s *AnalyticsService) CourseBuckets(ctx context.Context) ([]model.CourseRatingBucket, error) {
	buckets, err := s.stats.CourseRatingBuckets(ctx)
	if err != nil {
		return nil, err
	}
	for i := range buckets {
		buckets[i].AverageRating = model.RoundRating(buckets[i].AverageRating)
	}
	return buckets, nil
}

// StudentDetail returns one student's profile with their feedback summary and
// most recent entries.
func (s *AnalyticsService) StudentDetail(ctx context.Context, userID string) (model.StudentDetail, error) {
	profile, err := s.profiles.GetByUser(ctx, userID)
	if err != nil {
		return model.StudentDetail{}, err
	}
	return s.detailFor(ctx, profile)
}

// StudentDetails returns the admin roster with per-student summaries,
// fetched concurrently with bounded parallelism.
func (s *AnalyticsService) StudentDetails(ctx context.Context, opts model.StudentListOptions) ([]model.StudentDetail, error) {
	profiles, err := s.profiles.List(ctx, opts)
	if err != nil {
		return nil, err
	}

	details := make([]model.StudentDetail, len(profiles))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(studentDetailConcurrency)
	for i, p := range profiles {
		g.Go(func() error {
			d, err := s.detailFor(ctx, p)
			if err != nil {
				return err
			}
			details[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return details, nil
}

func (s *AnalyticsService) detailFor(ctx context.Context, profile model.Profile) (model.StudentDetail, error) {
	detail := model.StudentDetail{Profile: profile}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		count, avg, err := s.stats.FeedbackSummaryByUser(ctx, profile.UserID)
		detail.FeedbackCount = count
		detail.AverageRating = model.RoundRating(avg)
		return err
	})
	g.Go(func() error {
		recent, err := s.feedback.RecentByUser(ctx, profile.UserID, recentFeedbackLimit)
		detail.RecentFeedbacks = recent
		return err
	})

	if err := g.Wait(); err != nil {
		return model.StudentDetail{}, err
	}
	return detail, nil
}
