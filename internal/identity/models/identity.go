package models

import (
	"strings"
	"time"

	"housing/pkg/domain"
	dErrors "housing/pkg/domain-errors"
)

// Record is an identity as kept by the directory, including password
// material that never leaves this package's consumers.
type Record struct {
	domain.Identity
	StudentNumber string
	PasswordHash  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewRecord builds a freshly registered identity. Every new account starts
// pending approval.
func NewRecord(id domain.IdentityID, displayName, email string, role domain.Role, studentNumber, passwordHash string, now time.Time) (*Record, error) {
	if id.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "identity id is required")
	}
	if !role.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid role")
	}
	if strings.TrimSpace(displayName) == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "display name is required")
	}
	if role == domain.RoleStudent && strings.TrimSpace(studentNumber) == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "student number is required for students")
	}
	if passwordHash == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "password hash is required")
	}
	return &Record{
		Identity: domain.Identity{
			ID:            id,
			DisplayName:   strings.TrimSpace(displayName),
			Email:         email,
			Role:          role,
			AccountStatus: domain.AccountPendingApproval,
		},
		StudentNumber: strings.TrimSpace(studentNumber),
		PasswordHash:  passwordHash,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// CanTransitionTo reports whether an account status move is allowed.
// Only pending accounts are decided; suspension has no entry point yet.
func (r *Record) CanTransitionTo(next domain.AccountStatus) bool {
	if r.AccountStatus == next {
		return true
	}
	return r.AccountStatus == domain.AccountPendingApproval &&
		(next == domain.AccountApproved || next == domain.AccountRejected)
}

// ApplyStatus moves the account to next, enforcing CanTransitionTo.
func (r *Record) ApplyStatus(next domain.AccountStatus, now time.Time) error {
	if !r.CanTransitionTo(next) {
		return dErrors.New(dErrors.CodeInvalidTransition,
			"account cannot move from "+r.AccountStatus.String()+" to "+next.String())
	}
	r.AccountStatus = next
	r.UpdatedAt = now
	return nil
}
