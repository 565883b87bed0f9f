package models

import (
	"time"

	"housing/pkg/domain"
)

type Kind string

const (
	KindAccountApproval Kind = "account_approval"
	KindProfileChange   Kind = "profile_change"
	KindRoomBooking     Kind = "room_booking"
)

func Kinds() []Kind {
	return []Kind{KindAccountApproval, KindProfileChange, KindRoomBooking}
}

func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	switch k {
	case KindAccountApproval, KindProfileChange, KindRoomBooking:
		return k, nil
	}
	return "", &ValidationError{Field: "kind", Reason: "unknown request kind"}
}

type Status string

const (
	StatusPending                 Status = "pending"
	StatusApproved                Status = "approved"
	StatusRejected                Status = "rejected"
	StatusCancelled               Status = "cancelled"
	StatusApprovedAwaitingPayment Status = "approved_awaiting_payment"
	StatusConfirmed               Status = "confirmed"
)

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	switch st {
	case StatusPending, StatusApproved, StatusRejected, StatusCancelled,
		StatusApprovedAwaitingPayment, StatusConfirmed:
		return st, nil
	}
	return "", &ValidationError{Field: "status", Reason: "unknown request status"}
}

// IsTerminal reports whether no further transition is defined.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusCancelled, StatusConfirmed:
		return true
	}
	return false
}

type Action string

const (
	ActionApprove        Action = "approve"
	ActionReject         Action = "reject"
	ActionCancel         Action = "cancel"
	ActionConfirmPayment Action = "confirm_payment"
	ActionExpire         Action = "expire"
)

// PaymentWindowExpired is the rejection reason recorded by lazy expiry.
const PaymentWindowExpired = "payment window expired"

type AccountApproval struct {
	IdentityID domain.IdentityID `json:"identityId"`
}

type ProfileChange struct {
	StudentID      domain.IdentityID `json:"studentId"`
	ProposedFields map[string]string `json:"proposedFields"`
}

type RoomBooking struct {
	StudentID        domain.IdentityID  `json:"studentId"`
	ResidencyID      domain.ResidencyID `json:"residencyId"`
	RequestedRoomRef string             `json:"requestedRoomRef"`
	AssignedRoomRef  string             `json:"assignedRoomRef,omitempty"`
	PaymentDeadline  *time.Time         `json:"paymentDeadline,omitempty"`
}

// Payload is the kind-specific part of a request. Exactly one field is set
// and it matches Request.Kind.
type Payload struct {
	AccountApproval *AccountApproval `json:"accountApproval,omitempty"`
	ProfileChange   *ProfileChange   `json:"profileChange,omitempty"`
	RoomBooking     *RoomBooking     `json:"roomBooking,omitempty"`
}

// Request is an approvable request. Version increases by one on every
// stored transition and is the compare-and-swap token.
type Request struct {
	ID              domain.RequestID   `json:"id"`
	Kind            Kind               `json:"kind"`
	Status          Status             `json:"status"`
	OwnerID         domain.IdentityID  `json:"ownerId"`
	Payload         Payload            `json:"payload"`
	CreatedAt       time.Time          `json:"createdAt"`
	DecidedAt       *time.Time         `json:"decidedAt,omitempty"`
	DecidedBy       *domain.IdentityID `json:"decidedBy,omitempty"`
	RejectionReason string             `json:"rejectionReason,omitempty"`
	PaymentRef      string             `json:"paymentRef,omitempty"`
	Notes           string             `json:"notes,omitempty"`
	Version         int64              `json:"version"`
	UpdatedAt       time.Time          `json:"updatedAt"`
}

// NewAccountApproval opens the approval implied by a registration. The
// registrant owns it.
func NewAccountApproval(id domain.RequestID, identityID domain.IdentityID, now time.Time) *Request {
	return newRequest(id, KindAccountApproval, identityID, Payload{
		AccountApproval: &AccountApproval{IdentityID: identityID},
	}, now)
}

func NewProfileChange(id domain.RequestID, studentID domain.IdentityID, fields map[string]string, now time.Time) *Request {
	copied := make(map[string]string, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	return newRequest(id, KindProfileChange, studentID, Payload{
		ProfileChange: &ProfileChange{StudentID: studentID, ProposedFields: copied},
	}, now)
}

func NewRoomBooking(id domain.RequestID, studentID domain.IdentityID, residencyID domain.ResidencyID, roomRef string, now time.Time) *Request {
	return newRequest(id, KindRoomBooking, studentID, Payload{
		RoomBooking: &RoomBooking{StudentID: studentID, ResidencyID: residencyID, RequestedRoomRef: roomRef},
	}, now)
}

func newRequest(id domain.RequestID, kind Kind, owner domain.IdentityID, payload Payload, now time.Time) *Request {
	return &Request{
		ID:        id,
		Kind:      kind,
		Status:    StatusPending,
		OwnerID:   owner,
		Payload:   payload,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}
}

// Clone returns a deep copy so stores and callers never share mutable state.
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	c := *r
	if r.DecidedAt != nil {
		t := *r.DecidedAt
		c.DecidedAt = &t
	}
	if r.DecidedBy != nil {
		id := *r.DecidedBy
		c.DecidedBy = &id
	}
	if p := r.Payload.AccountApproval; p != nil {
		cp := *p
		c.Payload.AccountApproval = &cp
	}
	if p := r.Payload.ProfileChange; p != nil {
		cp := *p
		cp.ProposedFields = make(map[string]string, len(p.ProposedFields))
		for k, v := range p.ProposedFields {
			cp.ProposedFields[k] = v
		}
		c.Payload.ProfileChange = &cp
	}
	if p := r.Payload.RoomBooking; p != nil {
		cp := *p
		if p.PaymentDeadline != nil {
			t := *p.PaymentDeadline
			cp.PaymentDeadline = &t
		}
		c.Payload.RoomBooking = &cp
	}
	return &c
}

// PaymentExpired reports whether an awaiting-payment booking is at or past
// its deadline.
func (r *Request) PaymentExpired(now time.Time) bool {
	if r.Kind != KindRoomBooking || r.Status != StatusApprovedAwaitingPayment {
		return false
	}
	rb := r.Payload.RoomBooking
	if rb == nil || rb.PaymentDeadline == nil {
		return false
	}
	return !now.Before(*rb.PaymentDeadline)
}

// IsOpenRoomBooking reports whether the request counts against a student's
// single open booking.
func (r *Request) IsOpenRoomBooking() bool {
	return r.Kind == KindRoomBooking &&
		(r.Status == StatusPending || r.Status == StatusApprovedAwaitingPayment)
}

// Filter selects requests in List. Zero fields match everything.
type Filter struct {
	Kind    Kind
	Status  Status
	OwnerID domain.IdentityID
}

func (f Filter) Matches(r *Request) bool {
	if f.Kind != "" && r.Kind != f.Kind {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if !f.OwnerID.IsNil() && r.OwnerID != f.OwnerID {
		return false
	}
	return true
}
