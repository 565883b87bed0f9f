package models

import (
	"fmt"

	"housing/pkg/domain"
	dErrors "housing/pkg/domain-errors"
)

// InvalidTransitionError reports an action attempted from a status that has
// no such outgoing transition.
type InvalidTransitionError struct {
	Kind      Kind
	From      Status
	Attempted Action
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s a %s request in status %s", e.Attempted, e.Kind, e.From)
}

func (e *InvalidTransitionError) DomainCode() dErrors.Code { return dErrors.CodeInvalidTransition }

// StaleStateError is returned to the loser of a concurrent transition. The
// caller should re-read the request before deciding anything else. Current is
// the status the winner left behind, when it could be read.
type StaleStateError struct {
	RequestID domain.RequestID
	Expected  Status
	Current   Status
}

func (e *StaleStateError) Error() string {
	if e.Current != "" {
		return fmt.Sprintf("request %s is no longer %s (now %s); re-read before retrying", e.RequestID, e.Expected, e.Current)
	}
	return fmt.Sprintf("request %s is no longer %s; re-read before retrying", e.RequestID, e.Expected)
}

func (e *StaleStateError) DomainCode() dErrors.Code { return dErrors.CodeStaleState }

// ForbiddenError reports a missing authority or ownership.
type ForbiddenError struct {
	Reason string
}

func (e *ForbiddenError) Error() string { return "forbidden: " + e.Reason }

func (e *ForbiddenError) DomainCode() dErrors.Code { return dErrors.CodeForbidden }

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

func (e *ValidationError) DomainCode() dErrors.Code { return dErrors.CodeValidation }
