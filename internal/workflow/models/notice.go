package models

import (
	"time"

	"housing/pkg/domain"
)

type NoticeType string

const (
	NoticeDecided          NoticeType = "decided"
	NoticeCancelled        NoticeType = "cancelled"
	NoticeExpired          NoticeType = "expired"
	NoticePaymentConfirmed NoticeType = "payment_confirmed"
)

// Notice tells a request's owner that the request changed state.
type Notice struct {
	Type            NoticeType        `json:"type"`
	RequestID       domain.RequestID  `json:"requestId"`
	Kind            Kind              `json:"kind"`
	Status          Status            `json:"status"`
	RecipientID     domain.IdentityID `json:"recipientId"`
	RejectionReason string            `json:"rejectionReason,omitempty"`
	Notes           string            `json:"notes,omitempty"`
	OccurredAt      time.Time         `json:"occurredAt"`
}

func NewNotice(t NoticeType, r *Request, at time.Time) Notice {
	return Notice{
		Type:            t,
		RequestID:       r.ID,
		Kind:            r.Kind,
		Status:          r.Status,
		RecipientID:     r.OwnerID,
		RejectionReason: r.RejectionReason,
		Notes:           r.Notes,
		OccurredAt:      at,
	}
}

// PaymentRequest asks the billing collaborator to collect payment for an
// approved room booking.
type PaymentRequest struct {
	RequestID       domain.RequestID   `json:"requestId"`
	StudentID       domain.IdentityID  `json:"studentId"`
	ResidencyID     domain.ResidencyID `json:"residencyId"`
	AssignedRoomRef string             `json:"assignedRoomRef"`
	Deadline        time.Time          `json:"deadline"`
}
