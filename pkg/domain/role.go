package domain

import dErrors "housing/pkg/domain-errors"

// Role is the closed set of identity classes sharing the portal.
// Invariant: only the three declared values are valid. Construct via
// ParseRole at trust boundaries; direct casting bypasses validation.
type Role string

const (
	RoleStudent        Role = "student"
	RoleAdministrator  Role = "administrator"
	RoleServiceManager Role = "service_manager"
)

// Roles lists every valid role in a stable order.
func Roles() []Role {
	return []Role{RoleStudent, RoleAdministrator, RoleServiceManager}
}

// ParseRole rejects anything outside the enum, including empty input and
// case variants.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "invalid role")
	}
	return r, nil
}

func (r Role) IsValid() bool {
	switch r {
	case RoleStudent, RoleAdministrator, RoleServiceManager:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

// IsPrivileged reports whether the role can decide on requests by default.
func (r Role) IsPrivileged() bool {
	return r == RoleAdministrator || r == RoleServiceManager
}

// AccountStatus tracks whether an identity may use the portal beyond the
// login and landing areas.
type AccountStatus string

const (
	AccountPendingApproval AccountStatus = "pending_approval"
	AccountApproved        AccountStatus = "approved"
	AccountRejected        AccountStatus = "rejected"
	AccountSuspended       AccountStatus = "suspended"
)

func ParseAccountStatus(s string) (AccountStatus, error) {
	st := AccountStatus(s)
	switch st {
	case AccountPendingApproval, AccountApproved, AccountRejected, AccountSuspended:
		return st, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "invalid account status")
}

func (s AccountStatus) String() string { return string(s) }

// Area is a logical region of the application. Areas are declared by the
// access policy table.
type Area string

func (a Area) String() string { return string(a) }

// Actor is the identity performing an operation, as re-derived from a valid
// session. Services must never build one from caller-supplied input.
type Actor struct {
	ID   IdentityID
	Role Role
}
