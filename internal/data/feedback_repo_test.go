package data

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courselens/courselens-api/internal/domain/model"
	apperrors "github.com/courselens/courselens-api/internal/errors"
	"github.com/courselens/courselens-api/internal/testutil"
)

func createTestCourse(t *testing.T, db *sql.DB, name string) model.Course {
	t.Helper()
	cr := NewCourseRepo(db)
	c, err := cr.Create(context.Background(), model.CreateCourseRequest{
		Name: name,
		Code: fmt.Sprintf("CRS-%d", time.Now().UnixNano()),
	})
	require.NoError(t, err)
	return c
}

func createTestProfile(t *testing.T, db *sql.DB, userID, name, email string) model.Profile {
	t.Helper()
	pr := NewProfileRepo(db)
	p, err := pr.Create(context.Background(), userID, name, email)
	require.NoError(t, err)
	return p
}

func TestFeedbackRepo_Create_Get_Update_Delete(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithTestDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewFeedbackRepo(db)

		course := createTestCourse(t, db, "Distributed Systems")

		// create
		fb, err := repo.Create(ctx, "user-1", model.CreateFeedbackRequest{
			CourseID: course.ID,
			Rating:   4,
			Message:  "  Great pacing.  ",
		})
		require.NoError(t, err)
		require.NotEmpty(t, fb.ID)
		assert.Equal(t, "user-1", fb.UserID)
		assert.Equal(t, 4, fb.Rating)
		assert.Equal(t, "Great pacing.", fb.Message)
		assert.NotZero(t, fb.CreatedAt)

		// get by id
		got, err := repo.Get(ctx, fb.ID)
		require.NoError(t, err)
		assert.Equal(t, fb.Message, got.Message)

		// list by author joins the course
		byUser, err := repo.ListByUser(ctx, "user-1")
		require.NoError(t, err)
		require.Len(t, byUser, 1)
		assert.Equal(t, course.Name, byUser[0].CourseName)
		assert.Equal(t, course.Code, byUser[0].CourseCode)

		// update rating and message
		updated, err := repo.Update(ctx, fb.ID, model.UpdateFeedbackRequest{
			Rating:  testutil.IntPtr(2),
			Message: testutil.StringPtr("Second half dragged."),
		})
		require.NoError(t, err)
		assert.Equal(t, 2, updated.Rating)
		assert.Equal(t, "Second half dragged.", updated.Message)

		// delete
		require.NoError(t, repo.Delete(ctx, fb.ID))
		_, err = repo.Get(ctx, fb.ID)
		assert.True(t, apperrors.IsNotFound(err))
		err = repo.Delete(ctx, fb.ID)
		assert.True(t, apperrors.IsNotFound(err))
	})
}

func TestFeedbackRepo_CreateValidatesInput(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithTestDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewFeedbackRepo(db)
		course := createTestCourse(t, db, "Compilers")

		_, err := repo.Create(ctx, "user-1", model.CreateFeedbackRequest{
			CourseID: course.ID,
			Rating:   6,
			Message:  "off the scale",
		})
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))
		assert.Equal(t, "rating", apperrors.GetField(err))

		_, err = repo.Create(ctx, "user-1", model.CreateFeedbackRequest{
			CourseID: course.ID,
			Rating:   3,
		})
		require.Error(t, err)
		assert.Equal(t, "message", apperrors.GetField(err))
	})
}

func TestFeedbackRepo_CreateUnknownCourse(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithTestDB(t, func(db *sql.DB) {
		repo := NewFeedbackRepo(db)

		_, err := repo.Create(context.Background(), "user-1", model.CreateFeedbackRequest{
			CourseID: "00000000-0000-0000-0000-000000000000",
			Rating:   3,
			Message:  "no such course",
		})
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeForeignKey, apperrors.GetCode(err))
	})
}

func TestFeedbackRepo_ListDetailedFilters(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithTestDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewFeedbackRepo(db)

		course := createTestCourse(t, db, "Databases")
		other := createTestCourse(t, db, "Networks")
		createTestProfile(t, db, "user-1", "Ada Lovelace", "ada@example.com")

		_, err := repo.Create(ctx, "user-1", model.CreateFeedbackRequest{
			CourseID: course.ID, Rating: 5, Message: "query planner lectures were excellent",
		})
		require.NoError(t, err)
		_, err = repo.Create(ctx, "user-2", model.CreateFeedbackRequest{
			CourseID: other.ID, Rating: 2, Message: "too much packet tracing",
		})
		require.NoError(t, err)

		// filter by course
		rows, err := repo.ListDetailed(ctx, model.FeedbackListOptions{CourseID: &course.ID})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, course.Code, rows[0].CourseCode)
		assert.Equal(t, "Ada Lovelace", rows[0].UserName)
		assert.Equal(t, "ada@example.com", rows[0].UserEmail)

		// filter by rating
		rows, err = repo.ListDetailed(ctx, model.FeedbackListOptions{Rating: testutil.IntPtr(2)})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		// user-2 has no profile row; author fields fall back to empty
		assert.Empty(t, rows[0].UserName)

		// substring match on message
		rows, err = repo.ListDetailed(ctx, model.FeedbackListOptions{Q: testutil.StringPtr("PLANNER")})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, 5, rows[0].Rating)
	})
}

func TestFeedbackRepo_DeleteByUser(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithTestDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewFeedbackRepo(db)
		course := createTestCourse(t, db, "Operating Systems")

		for i, msg := range []string{"first", "second"} {
			_, err := repo.Create(ctx, "user-1", model.CreateFeedbackRequest{
				CourseID: course.ID, Rating: i + 1, Message: msg,
			})
			require.NoError(t, err)
		}
		_, err := repo.Create(ctx, "user-2", model.CreateFeedbackRequest{
			CourseID: course.ID, Rating: 5, Message: "keeper",
		})
		require.NoError(t, err)

		n, err := repo.DeleteByUser(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		gone, err := repo.ListByUser(ctx, "user-1")
		require.NoError(t, err)
		assert.Empty(t, gone)

		kept, err := repo.ListByUser(ctx, "user-2")
		require.NoError(t, err)
		assert.Len(t, kept, 1)

		n, err = repo.DeleteByUser(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})
}
