package service

import (
	"housing/internal/workflow/models"
	"housing/pkg/domain"
)

// Authority maps a request kind to the roles allowed to decide it.
type Authority map[models.Kind]map[domain.Role]struct{}

func roleSet(roles ...domain.Role) map[domain.Role]struct{} {
	set := make(map[domain.Role]struct{}, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

// DefaultAuthority lets administrators and service managers decide every kind.
func DefaultAuthority() Authority {
	return Authority{
		models.KindAccountApproval: roleSet(domain.RoleAdministrator, domain.RoleServiceManager),
		models.KindProfileChange:   roleSet(domain.RoleAdministrator, domain.RoleServiceManager),
		models.KindRoomBooking:     roleSet(domain.RoleAdministrator, domain.RoleServiceManager),
	}
}

// AdminOnlyProfileChanges is DefaultAuthority with profile changes scoped to
// administrators.
func AdminOnlyProfileChanges() Authority {
	a := DefaultAuthority()
	a[models.KindProfileChange] = roleSet(domain.RoleAdministrator)
	return a
}

// CanDecide reports whether role may approve or reject requests of kind.
// Unknown kinds have no deciders.
func (a Authority) CanDecide(kind models.Kind, role domain.Role) bool {
	roles, ok := a[kind]
	if !ok {
		return false
	}
	_, ok = roles[role]
	return ok
}
