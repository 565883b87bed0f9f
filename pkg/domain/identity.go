package domain

// Identity is the public view of an authenticated principal: what a session
// credential carries and what services may read. Password material lives
// only in the identity directory.
type Identity struct {
	ID            IdentityID    `json:"id"`
	DisplayName   string        `json:"displayName"`
	Email         string        `json:"email"`
	Role          Role          `json:"role"`
	AccountStatus AccountStatus `json:"accountStatus"`
}

// IsApproved reports whether the account may reach anything beyond the
// public areas.
func (i Identity) IsApproved() bool {
	return i.AccountStatus == AccountApproved
}

// Actor returns the acting principal for service calls.
func (i Identity) Actor() Actor {
	return Actor{ID: i.ID, Role: i.Role}
}
