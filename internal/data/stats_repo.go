package data

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/courselens/courselens-api/internal/data/pgxutil"
	"github.com/courselens/courselens-api/internal/domain/model"
	apperrors "github.com/courselens/courselens-api/internal/errors"
)

// StatsRepo serves the read-only aggregates behind the admin dashboard.
type StatsRepo struct {
	DB *sql.DB
}

// NewStatsRepo creates a new StatsRepo.
func NewStatsRepo(db *sql.DB) *StatsRepo {
	return &StatsRepo{DB: db}
}

// CountStudents returns the number of student profiles.
func (r *StatsRepo) CountStudents(ctx context.Context) (int, error) {
	return r.countQuery(ctx, `SELECT COUNT(*) FROM profiles`)
}

// CountCourses returns the number of courses in the catalog.
func (r *StatsRepo) CountCourses(ctx context.Context) (int, error) {
	return r.countQuery(ctx, `SELECT COUNT(*) FROM courses`)
}

func (r *StatsRepo) countQuery(ctx context.Context, query string) (int, error) {
	var n int
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		return conn.QueryRow(ctx, query).Scan(&n)
	}); err != nil {
		return 0, fmt.Errorf("count: %w", apperrors.MapDBError(err))
	}
	return n, nil
}

// FeedbackSummary returns the total feedback count and the raw (unrounded)
// average rating, 0 when there is no feedback.
func (r *StatsRepo) FeedbackSummary(ctx context.Context) (count int, avg float64, err error) {
	err = pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		return conn.QueryRow(ctx,
			`SELECT COUNT(*), COALESCE(AVG(rating), 0) FROM feedback`,
		).Scan(&count, &avg)
	})
	if err != nil {
		return 0, 0, fmt.Errorf("feedback summary: %w", apperrors.MapDBError(err))
	}
	return count, avg, nil
}

// FeedbackSummaryByUser returns one student's feedback count and raw average.
func (r *StatsRepo) FeedbackSummaryByUser(ctx context.Context, userID string) (count int, avg float64, err error) {
	err = pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		return conn.QueryRow(ctx,
			`SELECT COUNT(*), COALESCE(AVG(rating), 0) FROM feedback WHERE user_id = $1`, userID,
		).Scan(&count, &avg)
	})
	if err != nil {
		return 0, 0, fmt.Errorf("feedback summary by user: %w", apperrors.MapDBError(err))
	}
	return count, avg, nil
}

// CourseRatingBuckets returns one chart bar per course that has feedback,
// ordered by course code. Averages are raw; the service rounds for display.
func (r *StatsRepo) CourseRatingBuckets(ctx context.Context) ([]model.CourseRatingBucket, error) {
	var out []model.CourseRatingBucket
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT c.code AS course_code,
			       c.name AS course_name,
			       AVG(f.rating) AS average_rating,
			       COUNT(f.id)::int AS feedback_count
			FROM courses c
			JOIN feedback f ON f.course_id = c.id
			GROUP BY c.id, c.code, c.name
			ORDER BY c.code ASC`)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.CourseRatingBucket])
		return err
	}); err != nil {
		return nil, fmt.Errorf("course rating buckets: %w", apperrors.MapDBError(err))
	}
	return out, nil
}
