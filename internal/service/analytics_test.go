package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/courselens/courselens-api/internal/domain/model"
	mocks "github.com/courselens/courselens-api/internal/mocks"
	authmocks "github.com/courselens/courselens-api/internal/mocks/auth"
)

func TestAnalyticsService_Overview(t *testing.T) {
	ctrl := gomock.NewController(t)
	stats := mocks.NewMockStatsRepository(ctrl)
	svc := NewAnalyticsService(stats, authmocks.NewFakeProfileDirectory(), mocks.NewMockFeedbackRepository(ctrl))

	stats.EXPECT().CountStudents(gomock.Any()).Return(12, nil)
	stats.EXPECT().CountCourses(gomock.Any()).Return(4, nil)
	stats.EXPECT().FeedbackSummary(gomock.Any()).Return(37, 4.2666, nil)

	out, err := svc.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, out.TotalStudents)
	assert.Equal(t, 4, out.TotalCourses)
	assert.Equal(t, 37, out.TotalFeedbacks)
	assert.InDelta(t, 4.3, out.AverageRating, 0.0001)
}

func TestAnalyticsService_OverviewPropagatesErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	stats := mocks.NewMockStatsRepository(ctrl)
	svc := NewAnalyticsService(stats, authmocks.NewFakeProfileDirectory(), mocks.NewMockFeedbackRepository(ctrl))

	stats.EXPECT().CountStudents(gomock.Any()).Return(0, errors.New("db down")).MaxTimes(1)
	stats.EXPECT().CountCourses(gomock.Any()).Return(4, nil).MaxTimes(1)
	stats.EXPECT().FeedbackSummary(gomock.Any()).Return(0, 0.0, nil).MaxTimes(1)

	_, err := svc.Overview(context.Background())
	require.Error(t, err)
}

func TestAnalyticsService_CourseBucketsRoundsAverages(t *testing.T) {
	ctrl := gomock.NewController(t)
	stats := mocks.NewMockStatsRepository(ctrl)
	svc := NewAnalyticsService(stats, authmocks.NewFakeProfileDirectory(), mocks.NewMockFeedbackRepository(ctrl))

	stats.EXPECT().CourseRatingBuckets(gomock.Any()).Return([]model.CourseRatingBucket{
		{CourseCode: "CS101", CourseName: "Intro", AverageRating: 4.4499, FeedbackCount: 9},
		{CourseCode: "CS201", CourseName: "Algorithms", AverageRating: 3.55, FeedbackCount: 2},
	}, nil)

	out, err := svc.CourseBuckets(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.InDelta(t, 4.4, out[0].AverageRating, 0.0001)
	assert.InDelta(t, 3.6, out[1].AverageRating, 0.0001)
}

func TestAnalyticsService_StudentDetail(t *testing.T) {
	ctrl := gomock.NewController(t)
	stats := mocks.NewMockStatsRepository(ctrl)
	feedback := mocks.NewMockFeedbackRepository(ctrl)
	profiles := authmocks.NewFakeProfileDirectory()
	svc := NewAnalyticsService(stats, profiles, feedback)

	_, err := profiles.Create(context.Background(), "user-1", "A Student", "a@example.com")
	require.NoError(t, err)

	stats.EXPECT().FeedbackSummaryByUser(gomock.Any(), "user-1").Return(3, 3.6667, nil)
	feedback.EXPECT().RecentByUser(gomock.Any(), "user-1", recentFeedbackLimit).
		Return([]model.FeedbackWithCourse{
			{Feedback: model.Feedback{ID: "fb-1", Rating: 4}, CourseCode: "CS101"},
		}, nil)

	out, err := svc.StudentDetail(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "A Student", out.Name)
	assert.Equal(t, 3, out.FeedbackCount)
	assert.InDelta(t, 3.7, out.AverageRating, 0.0001)
	require.Len(t, out.RecentFeedbacks, 1)
	assert.Equal(t, "CS101", out.RecentFeedbacks[0].CourseCode)
}
