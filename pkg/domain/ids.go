package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "housing/pkg/domain-errors"
)

// Typed identifiers keep identity, request and residency IDs from being mixed
// up at compile time. Construct them with the Parse* functions at trust
// boundaries; the zero value is the nil UUID.
type (
	IdentityID  uuid.UUID
	RequestID   uuid.UUID
	ResidencyID uuid.UUID
	SessionID   uuid.UUID
)

func parseUUID(kind, s string) (uuid.UUID, error) {
	if strings.TrimSpace(s) == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, kind+" is required")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, "invalid "+kind)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, kind+" cannot be nil")
	}
	return parsed, nil
}

func ParseIdentityID(s string) (IdentityID, error) {
	u, err := parseUUID("identity id", s)
	return IdentityID(u), err
}

func ParseRequestID(s string) (RequestID, error) {
	u, err := parseUUID("request id", s)
	return RequestID(u), err
}

func ParseResidencyID(s string) (ResidencyID, error) {
	u, err := parseUUID("residency id", s)
	return ResidencyID(u), err
}

func ParseSessionID(s string) (SessionID, error) {
	u, err := parseUUID("session id", s)
	return SessionID(u), err
}

func NewIdentityID() IdentityID   { return IdentityID(uuid.New()) }
func NewRequestID() RequestID     { return RequestID(uuid.New()) }
func NewResidencyID() ResidencyID { return ResidencyID(uuid.New()) }
func NewSessionID() SessionID     { return SessionID(uuid.New()) }

func (id IdentityID) String() string  { return uuid.UUID(id).String() }
func (id RequestID) String() string   { return uuid.UUID(id).String() }
func (id ResidencyID) String() string { return uuid.UUID(id).String() }
func (id SessionID) String() string   { return uuid.UUID(id).String() }

func (id IdentityID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id RequestID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id ResidencyID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id SessionID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }

// MarshalText/UnmarshalText let typed IDs travel through JSON and YAML as
// canonical UUID strings.
func (id IdentityID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *IdentityID) UnmarshalText(b []byte) error {
	parsed, err := ParseIdentityID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id RequestID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *RequestID) UnmarshalText(b []byte) error {
	parsed, err := ParseRequestID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id ResidencyID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *ResidencyID) UnmarshalText(b []byte) error {
	parsed, err := ParseResidencyID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
