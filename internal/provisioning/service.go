// Package provisioning implements the privileged mutations of the platform:
// user creation, estate assignment, deactivation and permission editing. Every
// operation consults the decision engine before touching storage and writes an
// audit record for the outcome, including denials and rollback attempts.
package provisioning

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/estateline/estateline/internal/accounts"
	"github.com/estateline/estateline/internal/audit"
	"github.com/estateline/estateline/internal/authz"
	"github.com/estateline/estateline/internal/identity"
	"github.com/estateline/estateline/internal/platform/db"
	"github.com/estateline/estateline/internal/shared"
)

// IdentityAdmin is the identity provider's admin surface used for account
// lifecycle, including the compensating delete.
type IdentityAdmin interface {
	CreateAccount(ctx context.Context, email, password string) (identity.Account, error)
	DeleteAccount(ctx context.Context, id string) error
}

// StorePort is the account store surface the service mutates through.
type StorePort interface {
	InsertProfile(ctx context.Context, p accounts.Profile) (accounts.Profile, error)
	DeleteProfile(ctx context.Context, userID string) error
	SetActive(ctx context.Context, userID string, active bool) (accounts.Profile, error)
	UpdateRole(ctx context.Context, userID string, role authz.Role) (accounts.Profile, error)
	InsertGrant(ctx context.Context, g accounts.Grant) (bool, error)
	ReplacePermissions(ctx context.Context, userID string, caps authz.CapabilitySet, estateIDs []string, grantedBy string) error
}

// Locker serializes mutations per target user.
type Locker interface {
	Acquire(ctx context.Context, userID string) (func(), error)
}

// ReconcileEnqueuer schedules a permission re-application after an ambiguous
// commit.
type ReconcileEnqueuer interface {
	EnqueuePermissionReconcile(ctx context.Context, userID string, caps authz.CapabilitySet, estateIDs []string, grantedBy string) error
}

// DecisionObserver counts decision outcomes for monitoring.
type DecisionObserver interface {
	ObserveDecision(allowed bool, reason string)
}

// Service coordinates the privileged operations.
type Service struct {
	identity  IdentityAdmin
	store     StorePort
	locker    Locker
	sink      audit.Sink
	reconcile ReconcileEnqueuer
	observer  DecisionObserver
	logger    *slog.Logger
}

// NewService constructs a Service. All collaborators are required except
// reconcile, which may be nil when no worker is deployed.
func NewService(idp IdentityAdmin, store StorePort, locker Locker, sink audit.Sink, reconcile ReconcileEnqueuer, logger *slog.Logger) *Service {
	return &Service{identity: idp, store: store, locker: locker, sink: sink, reconcile: reconcile, logger: logger}
}

// WithObserver attaches a decision observer.
func (s *Service) WithObserver(obs DecisionObserver) *Service {
	s.observer = obs
	return s
}

// CreateUserInput carries the fields of a user creation request.
type CreateUserInput struct {
	Email    string
	Password string
	FullName string
	Role     authz.Role
}

// CreatedUser pairs the stored profile with the email as confirmed by the
// identity provider.
type CreatedUser struct {
	Profile accounts.Profile
	Email   string
}

// CreateUser provisions an identity-provider account and its profile row.
// If the profile insert fails after the account exists, the account is
// deleted again before returning; an orphaned identity record is never left
// behind silently.
func (s *Service) CreateUser(ctx context.Context, caller authz.Caller, in CreateUserInput) (CreatedUser, error) {
	if err := s.authorize(ctx, caller, authz.ActionCreate, "user.create", ""); err != nil {
		return CreatedUser{}, err
	}
	if !in.Role.Valid() {
		return CreatedUser{}, shared.NewValidationError("role", "must be one of super_admin, co_admin, estate_user")
	}

	account, err := s.identity.CreateAccount(ctx, in.Email, in.Password)
	if err != nil {
		s.record(ctx, caller.ID, "user.create", "", audit.OutcomeFailed, map[string]any{"step": "identity"})
		return CreatedUser{}, err
	}

	profile, err := s.store.InsertProfile(ctx, accounts.Profile{
		ID:       account.ID,
		FullName: strings.TrimSpace(in.FullName),
		Role:     in.Role,
	})
	if err != nil {
		s.compensateCreate(ctx, caller.ID, account.ID)
		return CreatedUser{}, shared.NewUpstreamError("create user", err)
	}

	s.record(ctx, caller.ID, "user.create", profile.ID, audit.OutcomeSuccess, map[string]any{"role": string(profile.Role)})
	return CreatedUser{Profile: profile, Email: account.Email}, nil
}

// compensateCreate undoes a failed CreateUser: the profile row first (the
// insert error may have been ambiguous, so the row can exist anyway), then
// the identity account. A failed rollback is its own audited outcome so the
// orphan is at least discoverable.
func (s *Service) compensateCreate(ctx context.Context, actorID, accountID string) {
	// The rollback must run even when the original request deadline already
	// fired (a timed-out insert still counts as a failure to undo).
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.store.DeleteProfile(ctx, accountID); err != nil {
		s.logger.Error("create user rollback: delete profile", slog.String("account_id", accountID), slog.Any("error", err))
	}
	if err := s.identity.DeleteAccount(ctx, accountID); err != nil {
		s.logger.Error("create user rollback failed", slog.String("account_id", accountID), slog.Any("error", err))
		s.record(ctx, actorID, "user.create", accountID, audit.OutcomeRollbackFailed, map[string]any{"step": "profile"})
		return
	}
	s.record(ctx, actorID, "user.create", accountID, audit.OutcomeRolledBack, map[string]any{"step": "profile"})
}

// AssignEstate adds one estate access grant to the target user. Assigning an
// already granted estate is a no-op success.
func (s *Service) AssignEstate(ctx context.Context, caller authz.Caller, targetUserID, estateID string) error {
	if err := s.authorize(ctx, caller, authz.ActionAssign, "user.assign_estate", targetUserID); err != nil {
		return err
	}

	release, err := s.locker.Acquire(ctx, targetUserID)
	if err != nil {
		return err
	}
	defer release()

	inserted, err := s.store.InsertGrant(ctx, accounts.Grant{
		UserID:    targetUserID,
		EstateID:  estateID,
		GrantedBy: caller.ID,
	})
	if err != nil {
		s.record(ctx, caller.ID, "user.assign_estate", targetUserID, audit.OutcomeFailed, map[string]any{"estate_id": estateID})
		return shared.NewUpstreamError("assign estate", err)
	}
	s.record(ctx, caller.ID, "user.assign_estate", targetUserID, audit.OutcomeSuccess, map[string]any{
		"estate_id": estateID,
		"inserted":  inserted,
	})
	return nil
}

// DeactivateUser flips the target's is_active flag to false. The profile and
// any grants remain; the inactive rule in the decision engine blocks all
// further actions.
func (s *Service) DeactivateUser(ctx context.Context, caller authz.Caller, targetUserID string) (accounts.Profile, error) {
	if err := s.authorize(ctx, caller, authz.ActionDeactivate, "user.deactivate", targetUserID); err != nil {
		return accounts.Profile{}, err
	}

	release, err := s.locker.Acquire(ctx, targetUserID)
	if err != nil {
		return accounts.Profile{}, err
	}
	defer release()

	profile, err := s.store.SetActive(ctx, targetUserID, false)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return accounts.Profile{}, err
		}
		s.record(ctx, caller.ID, "user.deactivate", targetUserID, audit.OutcomeFailed, nil)
		return accounts.Profile{}, shared.NewUpstreamError("deactivate user", err)
	}
	s.record(ctx, caller.ID, "user.deactivate", targetUserID, audit.OutcomeSuccess, nil)
	return profile, nil
}

// EditPermissions replaces the target's capability set and estate grant set
// wholesale, as one transactional unit. An ambiguous commit surfaces as
// ErrPartialPermissionUpdate and schedules a reconciliation that re-applies
// the same absolute state.
func (s *Service) EditPermissions(ctx context.Context, caller authz.Caller, targetUserID string, caps authz.CapabilitySet, estateIDs []string) error {
	if err := s.authorize(ctx, caller, authz.ActionUpdate, "user.permissions_edit", targetUserID); err != nil {
		return err
	}

	release, err := s.locker.Acquire(ctx, targetUserID)
	if err != nil {
		return err
	}
	defer release()

	err = s.store.ReplacePermissions(ctx, targetUserID, caps, estateIDs, caller.ID)
	var commitErr *db.CommitError
	switch {
	case err == nil:
		s.record(ctx, caller.ID, "user.permissions_edit", targetUserID, audit.OutcomeSuccess, map[string]any{"estate_count": len(estateIDs)})
		return nil
	case errors.As(err, &commitErr):
		s.logger.Error("permission update commit ambiguous", slog.String("target", targetUserID), slog.Any("error", err))
		s.record(ctx, caller.ID, "user.permissions_edit", targetUserID, audit.OutcomeFailed, map[string]any{"partial": true})
		if s.reconcile != nil {
			if enqErr := s.reconcile.EnqueuePermissionReconcile(ctx, targetUserID, caps, estateIDs, caller.ID); enqErr != nil {
				s.logger.Error("enqueue permission reconcile", slog.String("target", targetUserID), slog.Any("error", enqErr))
			}
		}
		return shared.ErrPartialPermissionUpdate
	default:
		s.record(ctx, caller.ID, "user.permissions_edit", targetUserID, audit.OutcomeFailed, nil)
		return shared.NewUpstreamError("edit permissions", err)
	}
}

// UpdateRole overwrites the target's role. Demoting a co_admin deletes their
// capability row, so a later promotion starts from a blank set.
func (s *Service) UpdateRole(ctx context.Context, caller authz.Caller, targetUserID string, role authz.Role) (accounts.Profile, error) {
	if err := s.authorize(ctx, caller, authz.ActionUpdate, "user.role_edit", targetUserID); err != nil {
		return accounts.Profile{}, err
	}
	if !role.Valid() {
		return accounts.Profile{}, shared.NewValidationError("role", "must be one of super_admin, co_admin, estate_user")
	}

	release, err := s.locker.Acquire(ctx, targetUserID)
	if err != nil {
		return accounts.Profile{}, err
	}
	defer release()

	profile, err := s.store.UpdateRole(ctx, targetUserID, role)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return accounts.Profile{}, err
		}
		s.record(ctx, caller.ID, "user.role_edit", targetUserID, audit.OutcomeFailed, nil)
		return accounts.Profile{}, shared.NewUpstreamError("update role", err)
	}
	s.record(ctx, caller.ID, "user.role_edit", targetUserID, audit.OutcomeSuccess, map[string]any{"role": string(role)})
	return profile, nil
}

// authorize runs the decision engine for a user-account action and audits a
// denial before surfacing it.
func (s *Service) authorize(ctx context.Context, caller authz.Caller, action authz.Action, auditAction, targetID string) error {
	decision := authz.Decide(caller, action, authz.Resource{Type: authz.ResourceUserAccount})
	if s.observer != nil {
		s.observer.ObserveDecision(decision.Allowed, decision.Reason)
	}
	if decision.Allowed {
		return nil
	}
	s.record(ctx, caller.ID, auditAction, targetID, audit.OutcomeDenied, map[string]any{"reason": decision.Reason})
	return &shared.AuthzError{
		Reason:  decision.Reason,
		Message: "Forbidden: You do not have permission to perform this action.",
	}
}

func (s *Service) record(ctx context.Context, actorID, action, entityID, outcome string, meta map[string]any) {
	entry := audit.Entry{
		ActorID:  actorID,
		Action:   action,
		Entity:   "user_account",
		EntityID: entityID,
		Outcome:  outcome,
		Meta:     meta,
	}
	if err := s.sink.Record(ctx, entry); err != nil {
		s.logger.Error("audit record", slog.String("action", action), slog.Any("error", err))
	}
}
