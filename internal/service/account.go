package service

import (
	"context"
	"fmt"
	"log/slog"

	apperrors "github.com/courselens/courselens-api/internal/errors"
	"github.com/courselens/courselens-api/internal/ports"
)

// AccountService carries the privileged moderation operations: blocking
// students and deleting accounts outright.
type AccountService struct {
	profiles   ports.ProfileDirectory
	roles      ports.RoleDirectory
	feedback   ports.FeedbackRepository
	sessions   ports.SessionStore
	identities ports.IdentityAdmin
	ops        ports.OpsNotifier
	logger     *slog.Logger
}

// AccountServiceOptions groups dependencies for AccountService.
type AccountServiceOptions struct {
	Profiles   ports.ProfileDirectory
	Roles      ports.RoleDirectory
	Feedback   ports.FeedbackRepository
	Sessions   ports.SessionStore
	Identities ports.IdentityAdmin
	// Ops is optional; nil drops operator alerts (they are still logged).
	Ops    ports.OpsNotifier
	Logger *slog.Logger
}

// NewAccountService constructs an AccountService.
func NewAccountService(opts AccountServiceOptions) *AccountService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountService{
		profiles:   opts.Profiles,
		roles:      opts.Roles,
		feedback:   opts.Feedback,
		sessions:   opts.Sessions,
		identities: opts.Identities,
		ops:        opts.Ops,
		logger:     logger,
	}
}

// SetBlocked flips a student's moderation flag. Blocking also revokes every
// live session, so the block takes effect immediately, not at next sign-in.
func (s *AccountService) SetBlocked(ctx context.Context, userID string, blocked bool) error {
	if err := s.profiles.SetBlocked(ctx, userID, blocked); err != nil {
		return err
	}
	if !blocked {
		return nil
	}

	n, err := s.sessions.DeleteByUser(ctx, userID)
	if err != nil {
		// The flag is durable; the stale session dies at expiry anyway.
		s.logger.WarnContext(ctx, "account: session revocation failed after block",
			"user_id", userID, "err", err)
		return nil
	}
	s.logger.InfoContext(ctx, "account: blocked user", "user_id", userID, "sessions_revoked", n)
	return nil
}

// DeleteAccount permanently removes a student: profile, role assignment, and
// feedback first, then the identity at the auth backend, then any live
// sessions. Dependent-record failures are logged and skipped so one bad row
// cannot strand an account, mirroring a manual cleanup. A failed identity
// deletion AFTER dependent rows were removed is different: the account
// half-exists, nothing rolls it back, and an operator has to finish the job,
// so it alerts and returns a distinct error.
func (s *AccountService) DeleteAccount(ctx context.Context, userID string) error {
	if err := s.profiles.Delete(ctx, userID); err != nil && !apperrors.IsNotFound(err) {
		s.logger.ErrorContext(ctx, "account: profile delete failed", "user_id", userID, "err", err)
	}
	if err := s.roles.DeleteRole(ctx, userID); err != nil {
		s.logger.ErrorContext(ctx, "account: role delete failed", "user_id", userID, "err", err)
	}
	if n, err := s.feedback.DeleteByUser(ctx, userID); err != nil {
		s.logger.ErrorContext(ctx, "account: feedback delete failed", "user_id", userID, "err", err)
	} else if n > 0 {
		s.logger.InfoContext(ctx, "account: removed feedback", "user_id", userID, "count", n)
	}

	if err := s.identities.DeleteIdentity(ctx, userID); err != nil && !apperrors.IsNotFound(err) {
		detail := fmt.Sprintf("identity %s could not be deleted after its dependent records were removed: %v", userID, err)
		s.logger.ErrorContext(ctx, "account: FATAL INCONSISTENCY, identity delete failed after cascade",
			"user_id", userID, "err", err)
		if s.ops != nil {
			if alertErr := s.ops.Alert(ctx, "account deletion left inconsistent state", detail); alertErr != nil {
				s.logger.ErrorContext(ctx, "account: ops alert failed", "user_id", userID, "err", alertErr)
			}
		}
		return apperrors.Wrap(err, apperrors.ErrCodeInconsistent,
			"account deletion incomplete; manual remediation required")
	}

	if _, err := s.sessions.DeleteByUser(ctx, userID); err != nil {
		s.logger.WarnContext(ctx, "account: session revocation failed after delete",
			"user_id", userID, "err", err)
	}
	return nil
}
