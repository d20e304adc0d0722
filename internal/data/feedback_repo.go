package data

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/courselens/courselens-api/internal/data/pgxutil"
	"github.com/courselens/courselens-api/internal/domain/model"
	apperrors "github.com/courselens/courselens-api/internal/errors"
)

// FeedbackRepo provides database operations for student course feedback.
type FeedbackRepo struct {
	DB *sql.DB
}

// NewFeedbackRepo creates a new FeedbackRepo.
func NewFeedbackRepo(db *sql.DB) *FeedbackRepo {
	return &FeedbackRepo{DB: db}
}

const (
	feedbackColumns = `id, user_id, course_id, rating, message, created_at, updated_at`

	feedbackGetQuery = `
		SELECT ` + feedbackColumns + `
		FROM feedback
		WHERE id = $1`

	feedbackByUserQuery = `
		SELECT f.id, f.user_id, f.course_id, f.rating, f.message, f.created_at, f.updated_at,
		       c.name AS course_name, c.code AS course_code
		FROM feedback f
		JOIN courses c ON c.id = f.course_id
		WHERE f.user_id = $1
		ORDER BY f.created_at DESC`

	feedbackRecentByUserQuery = feedbackByUserQuery + `
		LIMIT $2`
)

// Create inserts feedback from one student for one course.
func (r *FeedbackRepo) Create(ctx context.Context, userID string, in model.CreateFeedbackRequest) (model.Feedback, error) {
	if err := in.Validate(); err != nil {
		return model.Feedback{}, err
	}

	var out model.Feedback
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO feedback (user_id, course_id, rating, message)
			VALUES ($1, $2, $3, $4)
			RETURNING `+feedbackColumns,
			userID,
			in.CourseID,
			in.Rating,
			strings.TrimSpace(in.Message),
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Feedback])
		return err
	}); err != nil {
		return model.Feedback{}, apperrors.MapDBError(err)
	}
	return out, nil
}

// Get retrieves one feedback row by ID.
func (r *FeedbackRepo) Get(ctx context.Context, id string) (model.Feedback, error) {
	var out model.Feedback
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, feedbackGetQuery, id)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Feedback])
		return err
	}); err != nil {
		return model.Feedback{}, apperrors.MapDBError(err)
	}
	return out, nil
}

// ListByUser returns one student's feedback with course details, newest first.
func (r *FeedbackRepo) ListByUser(ctx context.Context, userID string) ([]model.FeedbackWithCourse, error) {
	return r.collectWithCourse(ctx, feedbackByUserQuery, userID)
}

// RecentByUser returns the student's most recent feedback, capped at limit.
func (r *FeedbackRepo) RecentByUser(ctx context.Context, userID string, limit int) ([]model.FeedbackWithCourse, error) {
	if limit <= 0 {
		limit = 5
	}
	return r.collectWithCourse(ctx, feedbackRecentByUserQuery, userID, limit)
}

func (r *FeedbackRepo) collectWithCourse(ctx context.Context, query string, args ...any) ([]model.FeedbackWithCourse, error) {
	var out []model.FeedbackWithCourse
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.FeedbackWithCourse])
		return err
	}); err != nil {
		return nil, fmt.Errorf("list feedback: %w", apperrors.MapDBError(err))
	}
	return out, nil
}

// ListDetailed returns feedback joined with course and author details for the
// admin dashboard, with optional filters.
func (r *FeedbackRepo) ListDetailed(ctx context.Context, opts model.FeedbackListOptions) ([]model.FeedbackDetail, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := max(opts.Offset, 0)

	where := make([]string, 0, 3)
	args := make([]any, 0, 5)
	nextIdx := func() int { return len(args) + 1 }

	if opts.CourseID != nil && strings.TrimSpace(*opts.CourseID) != "" {
		where = append(where, fmt.Sprintf("f.course_id = $%d", nextIdx()))
		args = append(args, strings.TrimSpace(*opts.CourseID))
	}
	if opts.Rating != nil {
		where = append(where, fmt.Sprintf("f.rating = $%d", nextIdx()))
		args = append(args, *opts.Rating)
	}
	if opts.Q != nil && strings.TrimSpace(*opts.Q) != "" {
		where = append(where, fmt.Sprintf("f.message ILIKE $%d", nextIdx()))
		args = append(args, "%"+strings.TrimSpace(*opts.Q)+"%")
	}

	query := `
		SELECT f.id, f.user_id, f.course_id, f.rating, f.message, f.created_at, f.updated_at,
		       c.name AS course_name, c.code AS course_code,
		       COALESCE(p.name, '') AS user_name,
		       COALESCE(p.email, '') AS user_email,
		       p.profile_picture_url
		FROM feedback f
		JOIN courses c ON c.id = f.course_id
		LEFT JOIN profiles p ON p.user_id = f.user_id`
	if len(where) > 0 {
		query += "\n\t\tWHERE " + strings.Join(where, " AND ")
	}
	args = append(args, limit, offset)
	query += "\n\t\tORDER BY f.created_at DESC" +
		"\n\t\tLIMIT $" + strconv.Itoa(len(args)-1) + " OFFSET $" + strconv.Itoa(len(args))

	var out []model.FeedbackDetail
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.FeedbackDetail])
		return err
	}); err != nil {
		return nil, fmt.Errorf("list detailed feedback: %w", apperrors.MapDBError(err))
	}
	return out, nil
}

// Update applies non-nil fields of in to a feedback row.
func (r *FeedbackRepo) Update(ctx context.Context, id string, in model.UpdateFeedbackRequest) (model.Feedback, error) {
	if err := in.Validate(); err != nil {
		return model.Feedback{}, err
	}

	setParts := make([]string, 0, 3)
	args := make([]any, 0, 4)
	nextIdx := func() int { return len(args) + 1 }

	if in.CourseID != nil {
		setParts = append(setParts, fmt.Sprintf("course_id = $%d", nextIdx()))
		args = append(args, strings.TrimSpace(*in.CourseID))
	}
	if in.Rating != nil {
		setParts = append(setParts, fmt.Sprintf("rating = $%d", nextIdx()))
		args = append(args, *in.Rating)
	}
	if in.Message != nil {
		setParts = append(setParts, fmt.Sprintf("message = $%d", nextIdx()))
		args = append(args, strings.TrimSpace(*in.Message))
	}

	query := feedbackGetQuery
	if len(setParts) > 0 {
		args = append(args, id)
		query = "UPDATE feedback SET " + strings.Join(setParts, ", ") +
			", updated_at = now() WHERE id = $" + strconv.Itoa(len(args)) +
			" RETURNING " + feedbackColumns
	} else {
		args = []any{id}
	}

	var out model.Feedback
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Feedback])
		return err
	}); err != nil {
		return model.Feedback{}, apperrors.MapDBError(err)
	}
	return out, nil
}

// Delete removes a feedback row by ID.
func (r *FeedbackRepo) Delete(ctx context.Context, id string) error {
	var affected int64
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, err := conn.Exec(ctx, `DELETE FROM feedback WHERE id = $1`, id)
		if err != nil {
			return err
		}
		affected = ct.RowsAffected()
		return nil
	}); err != nil {
		return apperrors.MapDBError(err)
	}
	if affected == 0 {
		return apperrors.NotFound("feedback not found")
	}
	return nil
}

// DeleteByUser removes all feedback left by one student.
func (r *FeedbackRepo) DeleteByUser(ctx context.Context, userID string) (int, error) {
	var affected int64
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, err := conn.Exec(ctx, `DELETE FROM feedback WHERE user_id = $1`, userID)
		if err != nil {
			return err
		}
		affected = ct.RowsAffected()
		return nil
	}); err != nil {
		return 0, apperrors.MapDBError(err)
	}
	return int(affected), nil
}
