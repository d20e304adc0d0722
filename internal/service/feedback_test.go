package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/courselens/courselens-api/internal/domain/model"
	apperrors "github.com/courselens/courselens-api/internal/errors"
	"github.com/courselens/courselens-api/internal/mocks"
)

func TestFeedbackService_Submit(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockFeedbackRepository(ctrl)
	courses := mocks.NewMockCourseRepository(ctrl)
	svc := NewFeedbackService(repo, courses)

	in := model.CreateFeedbackRequest{CourseID: "course-1", Rating: 4, Message: "solid content"}
	courses.EXPECT().Get(gomock.Any(), "course-1").
		Return(model.Course{ID: "course-1", IsActive: true}, nil)
	repo.EXPECT().Create(gomock.Any(), "user-1", in).
		Return(model.Feedback{ID: "fb-1", UserID: "user-1", CourseID: "course-1", Rating: 4}, nil)

	out, err := svc.Submit(context.Background(), "user-1", in)
	require.NoError(t, err)
	assert.Equal(t, "fb-1", out.ID)
}

func TestFeedbackService_SubmitRejectsInactiveCourse(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockFeedbackRepository(ctrl)
	courses := mocks.NewMockCourseRepository(ctrl)
	svc := NewFeedbackService(repo, courses)

	courses.EXPECT().Get(gomock.Any(), "course-1").
		Return(model.Course{ID: "course-1", IsActive: false}, nil)

	_, err := svc.Submit(context.Background(), "user-1", model.CreateFeedbackRequest{
		CourseID: "course-1", Rating: 3, Message: "hm",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestFeedbackService_SubmitRejectsInvalidRating(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := NewFeedbackService(mocks.NewMockFeedbackRepository(ctrl), mocks.NewMockCourseRepository(ctrl))

	_, err := svc.Submit(context.Background(), "user-1", model.CreateFeedbackRequest{
		CourseID: "course-1", Rating: 6, Message: "too good",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, "rating", apperrors.GetField(err))
}

func TestFeedbackService_UpdateRequiresOwnership(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockFeedbackRepository(ctrl)
	svc := NewFeedbackService(repo, mocks.NewMockCourseRepository(ctrl))

	repo.EXPECT().Get(gomock.Any(), "fb-1").
		Return(model.Feedback{ID: "fb-1", UserID: "someone-else"}, nil)

	rating := 2
	_, err := svc.Update(context.Background(), "user-1", "fb-1", model.UpdateFeedbackRequest{Rating: &rating})
	require.Error(t, err)
	assert.True(t, apperrors.IsForbidden(err))
}

func TestFeedbackService_DeleteOwnRow(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockFeedbackRepository(ctrl)
	svc := NewFeedbackService(repo, mocks.NewMockCourseRepository(ctrl))

	repo.EXPECT().Get(gomock.Any(), "fb-1").
		Return(model.Feedback{ID: "fb-1", UserID: "user-1"}, nil)
	repo.EXPECT().Delete(gomock.Any(), "fb-1").Return(nil)

	require.NoError(t, svc.Delete(context.Background(), "user-1", "fb-1"))
}

func TestCourseService_ListForStudents(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockCourseRepository(ctrl)
	svc := NewCourseService(repo)

	repo.EXPECT().List(gomock.Any(), model.CourseListOptions{ActiveOnly: true}).
		Return([]model.Course{{ID: "course-1", IsActive: true}}, nil)

	out, err := svc.ListForStudents(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "course-1", out[0].ID)
}
