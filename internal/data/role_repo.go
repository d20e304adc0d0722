package data

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/courselens/courselens-api/internal/data/pgxutil"
	domainauth "github.com/courselens/courselens-api/internal/domain/auth"
	apperrors "github.com/courselens/courselens-api/internal/errors"
)

// RoleRepo is the durable role directory over the user_roles table.
type RoleRepo struct {
	DB *sql.DB
}

// NewRoleRepo creates a new RoleRepo.
func NewRoleRepo(db *sql.DB) *RoleRepo {
	return &RoleRepo{DB: db}
}

// LookupRole returns the stored role for an identity. A missing assignment is
// reported as found == false, not as an error.
func (r *RoleRepo) LookupRole(ctx context.Context, userID string) (domainauth.Role, bool, error) {
	var raw string
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		return conn.QueryRow(ctx,
			`SELECT role FROM user_roles WHERE user_id = $1`, userID,
		).Scan(&raw)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domainauth.RoleNone, false, nil
		}
		return domainauth.RoleNone, false, apperrors.MapDBError(err)
	}

	role, ok := domainauth.ParseRole(raw)
	if !ok {
		// The CHECK constraint makes this unreachable short of manual edits.
		return domainauth.RoleNone, false, apperrors.Internalf("unknown role %q for user %s", raw, userID)
	}
	return role, true, nil
}

// UpsertRole records a role assignment, replacing any existing one.
func (r *RoleRepo) UpsertRole(ctx context.Context, userID string, role domainauth.Role) error {
	if _, ok := domainauth.ParseRole(string(role)); !ok {
		return apperrors.ValidationField("role", "unknown role")
	}
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, `
			INSERT INTO user_roles (user_id, role)
			VALUES ($1, $2)
			ON CONFLICT (user_id) DO UPDATE SET role = EXCLUDED.role, updated_at = now()`,
			userID, string(role),
		)
		return err
	}); err != nil {
		return apperrors.MapDBError(err)
	}
	return nil
}

// DeleteRole removes an identity's role assignment. Missing assignments are
// not an error.
func (r *RoleRepo) DeleteRole(ctx context.Context, userID string) error {
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, userID)
		return err
	}); err != nil {
		return apperrors.MapDBError(err)
	}
	return nil
}
