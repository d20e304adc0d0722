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

// ProfileRepo provides database operations for student profiles.
type ProfileRepo struct {
	DB *sql.DB
}

// NewProfileRepo creates a new ProfileRepo.
func NewProfileRepo(db *sql.DB) *ProfileRepo {
	return &ProfileRepo{DB: db}
}

const (
	profileColumns = `id, user_id, name, email, phone, date_of_birth, address,
		profile_picture_url, is_blocked, created_at, updated_at`

	profileGetByUserQuery = `
		SELECT ` + profileColumns + `
		FROM profiles
		WHERE user_id = $1`
)

// GetByUser retrieves the profile for an identity.
func (r *ProfileRepo) GetByUser(ctx context.Context, userID string) (model.Profile, error) {
	var out model.Profile
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, profileGetByUserQuery, userID)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Profile])
		return err
	}); err != nil {
		return model.Profile{}, apperrors.MapDBError(err)
	}
	return out, nil
}

// Create inserts a fresh profile for an identity.
func (r *ProfileRepo) Create(ctx context.Context, userID, name, email string) (model.Profile, error) {
	var out model.Profile
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO profiles (user_id, name, email)
			VALUES ($1, $2, $3)
			RETURNING `+profileColumns,
			userID,
			strings.TrimSpace(name),
			strings.TrimSpace(email),
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Profile])
		return err
	}); err != nil {
		return model.Profile{}, apperrors.MapDBError(err)
	}
	return out, nil
}

// Update applies the caller-editable fields to an existing profile.
func (r *ProfileRepo) Update(ctx context.Context, userID string, in model.UpsertProfileRequest) (model.Profile, error) {
	if err := in.Validate(); err != nil {
		return model.Profile{}, err
	}

	setParts := make([]string, 0, 4)
	args := make([]any, 0, 5)
	nextIdx := func() int { return len(args) + 1 }

	setParts = append(setParts, fmt.Sprintf("name = $%d", nextIdx()))
	args = append(args, strings.TrimSpace(in.Name))
	if in.Phone != nil {
		setParts = append(setParts, fmt.Sprintf("phone = $%d", nextIdx()))
		args = append(args, *in.Phone)
	}
	if in.DateOfBirth != nil {
		setParts = append(setParts, fmt.Sprintf("date_of_birth = $%d", nextIdx()))
		args = append(args, *in.DateOfBirth)
	}
	if in.Address != nil {
		setParts = append(setParts, fmt.Sprintf("address = $%d", nextIdx()))
		args = append(args, *in.Address)
	}

	args = append(args, userID)
	query := "UPDATE profiles SET " + strings.Join(setParts, ", ") +
		", updated_at = now() WHERE user_id = $" + strconv.Itoa(len(args)) +
		" RETURNING " + profileColumns

	var out model.Profile
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Profile])
		return err
	}); err != nil {
		return model.Profile{}, apperrors.MapDBError(err)
	}
	return out, nil
}

// SetPictureURL records the public URL of an uploaded profile picture.
func (r *ProfileRepo) SetPictureURL(ctx context.Context, userID, url string) (model.Profile, error) {
	var out model.Profile
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			UPDATE profiles
			SET profile_picture_url = $2, updated_at = now()
			WHERE user_id = $1
			RETURNING `+profileColumns,
			userID, url,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Profile])
		return err
	}); err != nil {
		return model.Profile{}, apperrors.MapDBError(err)
	}
	return out, nil
}

// SetBlocked flips the moderation flag for an identity.
func (r *ProfileRepo) SetBlocked(ctx context.Context, userID string, blocked bool) error {
	var affected int64
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, err := conn.Exec(ctx, `
			UPDATE profiles
			SET is_blocked = $2, updated_at = now()
			WHERE user_id = $1`,
			userID, blocked,
		)
		if err != nil {
			return err
		}
		affected = ct.RowsAffected()
		return nil
	}); err != nil {
		return apperrors.MapDBError(err)
	}
	if affected == 0 {
		return apperrors.NotFound("profile not found")
	}
	return nil
}

// List returns profiles matching the admin roster filters, newest first.
func (r *ProfileRepo) List(ctx context.Context, opts model.StudentListOptions) ([]model.Profile, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := max(opts.Offset, 0)

	where := make([]string, 0, 2)
	args := make([]any, 0, 4)
	nextIdx := func() int { return len(args) + 1 }

	if opts.Q != nil && strings.TrimSpace(*opts.Q) != "" {
		q := "%" + strings.TrimSpace(*opts.Q) + "%"
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR email ILIKE $%d)", nextIdx(), nextIdx()+1))
		args = append(args, q, q)
	}
	if opts.Blocked != nil {
		where = append(where, fmt.Sprintf("is_blocked = $%d", nextIdx()))
		args = append(args, *opts.Blocked)
	}

	query := "SELECT " + profileColumns + " FROM profiles"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, limit, offset)
	query += " ORDER BY created_at DESC LIMIT $" + strconv.Itoa(len(args)-1) +
		" OFFSET $" + strconv.Itoa(len(args))

	var out []model.Profile
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.Profile])
		return err
	}); err != nil {
		return nil, fmt.Errorf("list profiles: %w", apperrors.MapDBError(err))
	}
	return out, nil
}

// Delete removes an identity's profile. Missing profiles are not an error.
func (r *ProfileRepo) Delete(ctx context.Context, userID string) error {
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, `DELETE FROM profiles WHERE user_id = $1`, userID)
		return err
	}); err != nil {
		return apperrors.MapDBError(err)
	}
	return nil
}
