package httptransport

import (
	"strings"

	"housing/internal/workflow/models"
	"housing/pkg/domain"
	dErrors "housing/pkg/domain-errors"
)

const (
	maxEmailLength       = 255
	maxDisplayNameLength = 100
	maxRoomRefLength     = 32
	maxReasonLength      = 500
	maxProfileFields     = 20
	maxFieldValueLength  = 200
)

// SignupRequest is the body of POST /auth/signup.
type SignupRequest struct {
	DisplayName   string `json:"displayName"`
	Email         string `json:"email"`
	Password      string `json:"password"`
	Role          string `json:"role"`
	StudentNumber string `json:"studentNumber,omitempty"`
}

func (r *SignupRequest) Validate() error {
	r.Email = strings.TrimSpace(r.Email)
	r.DisplayName = strings.TrimSpace(r.DisplayName)
	r.Role = strings.TrimSpace(r.Role)
	r.StudentNumber = strings.TrimSpace(r.StudentNumber)
	switch {
	case r.Email == "":
		return dErrors.New(dErrors.CodeValidation, "email is required")
	case len(r.Email) > maxEmailLength:
		return dErrors.New(dErrors.CodeValidation, "email is too long")
	case r.Password == "":
		return dErrors.New(dErrors.CodeValidation, "password is required")
	case r.Role == "":
		return dErrors.New(dErrors.CodeValidation, "role is required")
	case len(r.DisplayName) > maxDisplayNameLength:
		return dErrors.New(dErrors.CodeValidation, "display name is too long")
	}
	return nil
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *LoginRequest) Validate() error {
	r.Email = strings.TrimSpace(r.Email)
	if r.Email == "" || r.Password == "" {
		return dErrors.New(dErrors.CodeValidation, "email and password are required")
	}
	if len(r.Email) > maxEmailLength {
		return dErrors.New(dErrors.CodeValidation, "email is too long")
	}
	return nil
}

// RoomBookingRequest is the body of POST /requests/room-bookings.
type RoomBookingRequest struct {
	ResidencyID string `json:"residencyId"`
	RoomRef     string `json:"roomRef"`

	residencyID domain.ResidencyID
}

func (r *RoomBookingRequest) Validate() error {
	id, err := domain.ParseResidencyID(strings.TrimSpace(r.ResidencyID))
	if err != nil {
		return err
	}
	r.residencyID = id
	r.RoomRef = strings.TrimSpace(r.RoomRef)
	if r.RoomRef == "" {
		return dErrors.New(dErrors.CodeValidation, "roomRef is required")
	}
	if len(r.RoomRef) > maxRoomRefLength {
		return dErrors.New(dErrors.CodeValidation, "roomRef is too long")
	}
	return nil
}

// ProfileChangeRequest is the body of POST /requests/profile-changes.
type ProfileChangeRequest struct {
	Fields map[string]string `json:"fields"`
}

func (r *ProfileChangeRequest) Validate() error {
	if len(r.Fields) == 0 {
		return dErrors.New(dErrors.CodeValidation, "fields are required")
	}
	if len(r.Fields) > maxProfileFields {
		return dErrors.New(dErrors.CodeValidation, "too many fields")
	}
	cleaned := make(map[string]string, len(r.Fields))
	for k, v := range r.Fields {
		k = strings.TrimSpace(k)
		if k == "" {
			return dErrors.New(dErrors.CodeValidation, "field names cannot be blank")
		}
		if len(v) > maxFieldValueLength {
			return dErrors.New(dErrors.CodeValidation, "field "+k+" is too long")
		}
		cleaned[k] = strings.TrimSpace(v)
	}
	r.Fields = cleaned
	return nil
}

// DecisionRequest is the body of POST /requests/{id}/decision.
// Version is the request version the decider last read. When present, a
// request that has changed since is refused as stale.
type DecisionRequest struct {
	Action          string `json:"action"`
	Version         int64  `json:"version,omitempty"`
	Reason          string `json:"reason,omitempty"`
	AssignedRoomRef string `json:"assignedRoomRef,omitempty"`
	Notes           string `json:"notes,omitempty"`

	action models.Action
}

func (r *DecisionRequest) Validate() error {
	switch a := models.Action(strings.TrimSpace(r.Action)); a {
	case models.ActionApprove, models.ActionReject, models.ActionCancel:
		r.action = a
	default:
		return &models.ValidationError{Field: "action", Reason: "must be approve, reject or cancel"}
	}
	if len(r.Reason) > maxReasonLength || len(r.Notes) > maxReasonLength {
		return dErrors.New(dErrors.CodeValidation, "reason and notes are limited to 500 characters")
	}
	if r.Version < 0 {
		return &models.ValidationError{Field: "version", Reason: "cannot be negative"}
	}
	if len(strings.TrimSpace(r.AssignedRoomRef)) > maxRoomRefLength {
		return dErrors.New(dErrors.CodeValidation, "assignedRoomRef is too long")
	}
	return nil
}

// PaymentConfirmationRequest is the body of POST /billing/payments.
type PaymentConfirmationRequest struct {
	RequestID  string `json:"requestId"`
	PaymentRef string `json:"paymentRef"`

	requestID domain.RequestID
}

func (r *PaymentConfirmationRequest) Validate() error {
	id, err := domain.ParseRequestID(strings.TrimSpace(r.RequestID))
	if err != nil {
		return err
	}
	r.requestID = id
	r.PaymentRef = strings.TrimSpace(r.PaymentRef)
	return nil
}
