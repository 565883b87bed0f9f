// Package service implements the identity directory: registration, password
// login and account status changes driven by account approvals.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"housing/internal/identity/models"
	workflowmodels "housing/internal/workflow/models"
	"housing/pkg/domain"
	dErrors "housing/pkg/domain-errors"
	"housing/pkg/email"
	"housing/pkg/platform/sentinel"
	"housing/pkg/requestcontext"
	"housing/pkg/secrets"
)

const minPasswordLength = 8

type Store interface {
	Create(ctx context.Context, rec *models.Record) error
	FindByID(ctx context.Context, id domain.IdentityID) (*models.Record, error)
	FindByEmail(ctx context.Context, email string) (*models.Record, error)
	Delete(ctx context.Context, id domain.IdentityID) error
	Execute(ctx context.Context, id domain.IdentityID, validate func(*models.Record) error, mutate func(*models.Record)) (*models.Record, error)
}

// ApprovalOpener opens the AccountApproval request for a new registrant.
type ApprovalOpener interface {
	OpenAccountApproval(ctx context.Context, identityID domain.IdentityID) (*workflowmodels.Request, error)
}

type Service struct {
	store     Store
	approvals ApprovalOpener
	logger    *slog.Logger

	dummyOnce sync.Once
	dummyHash string
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithApprovalOpener(opener ApprovalOpener) Option {
	return func(s *Service) {
		s.approvals = opener
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AttachApprovals sets the approval opener after construction. The workflow
// engine and the directory depend on each other, so main wires one of the
// two edges late.
func (s *Service) AttachApprovals(opener ApprovalOpener) {
	s.approvals = opener
}

type RegisterRequest struct {
	DisplayName   string `json:"displayName"`
	Email         string `json:"email"`
	Password      string `json:"password"`
	Role          string `json:"role"`
	StudentNumber string `json:"studentNumber,omitempty"`
}

// Register creates a pending identity and opens its AccountApproval. If the
// approval cannot be opened the identity is removed again, so the email stays
// free for a retry.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*domain.Identity, *workflowmodels.Request, error) {
	addr, err := email.Normalize(req.Email)
	if err != nil {
		return nil, nil, err
	}
	role, err := domain.ParseRole(strings.TrimSpace(req.Role))
	if err != nil {
		return nil, nil, err
	}
	if len(req.Password) < minPasswordLength {
		return nil, nil, dErrors.New(dErrors.CodeValidation, "password must be at least 8 characters")
	}
	if role == domain.RoleStudent && strings.TrimSpace(req.StudentNumber) == "" {
		return nil, nil, dErrors.New(dErrors.CodeValidation, "student number is required")
	}
	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = email.DeriveDisplayName(addr)
	}

	hash, err := secrets.Hash(req.Password)
	if err != nil {
		return nil, nil, err
	}
	rec, err := models.NewRecord(domain.NewIdentityID(), displayName, addr, role, req.StudentNumber, hash, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, nil, err
	}

	if err := s.store.Create(ctx, rec); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, nil, dErrors.New(dErrors.CodeConflict, "email is already registered")
		}
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create identity")
	}

	var approval *workflowmodels.Request
	if s.approvals != nil {
		approval, err = s.approvals.OpenAccountApproval(ctx, rec.ID)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to open account approval",
				"identity_id", rec.ID.String(), "error", err)
			if delErr := s.store.Delete(ctx, rec.ID); delErr != nil {
				s.logger.ErrorContext(ctx, "failed to remove identity without approval",
					"identity_id", rec.ID.String(), "error", delErr)
			}
			return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to open account approval")
		}
	}

	s.logger.InfoContext(ctx, "identity registered",
		"identity_id", rec.ID.String(),
		"role", role.String(),
	)
	identity := rec.Identity
	return &identity, approval, nil
}

// EnsureAdministrator creates an approved administrator unless the email is
// already registered, in which case the existing identity is returned as is.
func (s *Service) EnsureAdministrator(ctx context.Context, emailAddr, password string) (*domain.Identity, error) {
	addr, err := email.Normalize(emailAddr)
	if err != nil {
		return nil, err
	}
	if rec, err := s.store.FindByEmail(ctx, addr); err == nil {
		identity := rec.Identity
		return &identity, nil
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load identity")
	}
	if len(password) < minPasswordLength {
		return nil, dErrors.New(dErrors.CodeValidation, "password must be at least 8 characters")
	}
	hash, err := secrets.Hash(password)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	rec, err := models.NewRecord(domain.NewIdentityID(), email.DeriveDisplayName(addr), addr, domain.RoleAdministrator, "", hash, now)
	if err != nil {
		return nil, err
	}
	if err := rec.ApplyStatus(domain.AccountApproved, now); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, rec); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create administrator")
	}
	s.logger.InfoContext(ctx, "bootstrap administrator created", "identity_id", rec.ID.String())
	identity := rec.Identity
	return &identity, nil
}

var errBadCredentials = dErrors.New(dErrors.CodeUnauthorized, "invalid email or password")

// Authenticate checks a password login. Unknown email and wrong password are
// indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, emailAddr, password string) (*domain.Identity, error) {
	addr, err := email.Normalize(emailAddr)
	if err != nil {
		return nil, errBadCredentials
	}
	rec, err := s.store.FindByEmail(ctx, addr)
	if errors.Is(err, sentinel.ErrNotFound) {
		// Burn comparable time so response latency does not reveal registrations.
		_ = secrets.Verify(password, s.dummy())
		return nil, errBadCredentials
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load identity")
	}
	if err := secrets.Verify(password, rec.PasswordHash); err != nil {
		if dErrors.HasCode(err, dErrors.CodeUnauthorized) {
			s.logger.WarnContext(ctx, "failed login", "identity_id", rec.ID.String())
			return nil, errBadCredentials
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify password")
	}
	identity := rec.Identity
	return &identity, nil
}

func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = secrets.Hash("not-a-real-password")
	})
	return s.dummyHash
}

// ResolveIdentity returns the current public view of an identity.
func (s *Service) ResolveIdentity(ctx context.Context, id domain.IdentityID) (domain.Identity, error) {
	rec, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return domain.Identity{}, dErrors.New(dErrors.CodeNotFound, "identity not found")
		}
		return domain.Identity{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load identity")
	}
	return rec.Identity, nil
}

// SetAccountStatus records the outcome of an AccountApproval.
func (s *Service) SetAccountStatus(ctx context.Context, id domain.IdentityID, status domain.AccountStatus) error {
	now := requestcontext.Now(ctx)
	_, err := s.store.Execute(ctx, id,
		func(rec *models.Record) error {
			if !rec.CanTransitionTo(status) {
				return dErrors.New(dErrors.CodeInvalidTransition,
					"account cannot move from "+rec.AccountStatus.String()+" to "+status.String())
			}
			return nil
		},
		func(rec *models.Record) {
			_ = rec.ApplyStatus(status, now)
		},
	)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "identity not found")
		}
		if dErrors.HasCode(err, dErrors.CodeInvalidTransition) {
			return err
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update account status")
	}
	s.logger.InfoContext(ctx, "account status changed",
		"identity_id", id.String(),
		"status", status.String(),
	)
	return nil
}
