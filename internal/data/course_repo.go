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

// CourseRepo provides database operations for the course catalog.
type CourseRepo struct {
	DB *sql.DB
}

// NewCourseRepo creates a new CourseRepo.
func NewCourseRepo(db *sql.DB) *CourseRepo {
	return &CourseRepo{DB: db}
}

const (
	courseColumns = `id, name, code, description, is_active, created_at, updated_at`

	courseGetQuery = `
		SELECT ` + courseColumns + `
		FROM courses
		WHERE id = $1`

	courseListQuery = `
		SELECT ` + courseColumns + `
		FROM courses
		ORDER BY name ASC`

	courseListActiveQuery = `
		SELECT ` + courseColumns + `
		FROM courses
		WHERE is_active = true
		ORDER BY name ASC`
)

// Create inserts a new course.
func (r *CourseRepo) Create(ctx context.Context, in model.CreateCourseRequest) (model.Course, error) {
	if err := in.Validate(); err != nil {
		return model.Course{}, err
	}

	// Matches the DB default when unspecified.
	isActive := true
	if in.IsActive != nil {
		isActive = *in.IsActive
	}

	var out model.Course
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO courses (name, code, description, is_active)
			VALUES ($1, $2, $3, $4)
			RETURNING `+courseColumns,
			strings.TrimSpace(in.Name),
			strings.TrimSpace(in.Code),
			in.Description,
			isActive,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Course])
		return err
	}); err != nil {
		return model.Course{}, apperrors.MapDBError(err)
	}
	return out, nil
}

// Get retrieves a course by ID.
func (r *CourseRepo) Get(ctx context.Context, id string) (model.Course, error) {
	var out model.Course
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, courseGetQuery, id)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Course])
		return err
	}); err != nil {
		return model.Course{}, apperrors.MapDBError(err)
	}
	return out, nil
}

// List retrieves courses, optionally restricted to active ones.
func (r *CourseRepo) List(ctx context.Context, opts model.CourseListOptions) ([]model.Course, error) {
	query := courseListQuery
	if opts.ActiveOnly {
		query = courseListActiveQuery
	}

	var out []model.Course
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.Course])
		return err
	}); err != nil {
		return nil, fmt.Errorf("list courses: %w", apperrors.MapDBError(err))
	}
	return out, nil
}

// Update applies non-nil fields of in to a course.
func (r *CourseRepo) Update(ctx context.Context, id string, in model.UpdateCourseRequest) (model.Course, error) {
	if err := in.Validate(); err != nil {
		return model.Course{}, err
	}

	setClause, args := buildCourseUpdateClause(in)
	query := courseGetQuery
	if setClause != "" {
		args = append(args, id)
		query = "UPDATE courses SET " + setClause +
			", updated_at = now() WHERE id = $" + strconv.Itoa(len(args)) +
			" RETURNING " + courseColumns
	} else {
		args = []any{id}
	}

	var out model.Course
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Course])
		return err
	}); err != nil {
		return model.Course{}, apperrors.MapDBError(err)
	}
	return out, nil
}

func buildCourseUpdateClause(in model.UpdateCourseRequest) (string, []any) {
	setParts := make([]string, 0, 4)
	args := make([]any, 0, 4)
	nextIdx := func() int { return len(args) + 1 }

	if in.Name != nil {
		setParts = append(setParts, fmt.Sprintf("name = $%d", nextIdx()))
		args = append(args, strings.TrimSpace(*in.Name))
	}
	if in.Code != nil {
		setParts = append(setParts, fmt.Sprintf("code = $%d", nextIdx()))
		args = append(args, strings.TrimSpace(*in.Code))
	}
	if in.Description != nil {
		setParts = append(setParts, fmt.Sprintf("description = $%d", nextIdx()))
		args = append(args, *in.Description)
	}
	if in.IsActive != nil {
		setParts = append(setParts, fmt.Sprintf("is_active = $%d", nextIdx()))
		args = append(args, *in.IsActive)
	}

	if len(setParts) == 0 {
		return "", nil
	}
	return strings.Join(setParts, ", "), args
}

// Delete removes a course by ID. Feedback on the course is removed by the
// schema's ON DELETE CASCADE.
func (r *CourseRepo) Delete(ctx context.Context, id string) error {
	var affected int64
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, err := conn.Exec(ctx, `DELETE FROM courses WHERE id = $1`, id)
		if err != nil {
			return err
		}
		affected = ct.RowsAffected()
		return nil
	}); err != nil {
		return apperrors.MapDBError(err)
	}
	if affected == 0 {
		return apperrors.NotFound("course not found")
	}
	return nil
}
