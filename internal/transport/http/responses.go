package httptransport

import (
	"errors"
	"net/http"
	"time"

	"housing/internal/gateway"
	"housing/internal/workflow/models"
	"housing/pkg/domain"
	dErrors "housing/pkg/domain-errors"
	"housing/pkg/platform/httputil"
)

type SignupResponse struct {
	Identity          domain.Identity  `json:"identity"`
	ApprovalRequestID domain.RequestID `json:"approvalRequestId,omitempty"`
}

type LoginResponse struct {
	SessionKey string          `json:"sessionKey"`
	Identity   domain.Identity `json:"identity"`
	HomeArea   domain.Area     `json:"homeArea"`
	ExpiresAt  time.Time       `json:"expiresAt"`
	Device     string          `json:"device"`
}

type SessionResponse struct {
	Authenticated bool             `json:"authenticated"`
	Identity      *domain.Identity `json:"identity,omitempty"`
	HomeArea      domain.Area      `json:"homeArea,omitempty"`
	ExpiresAt     *time.Time       `json:"expiresAt,omitempty"`
}

type NavigateResponse struct {
	Path     string           `json:"path"`
	Decision gateway.Decision `json:"decision"`
}

// TransitionResponse answers decision, cancel and payment calls.
type TransitionResponse struct {
	NewStatus models.Status   `json:"newStatus"`
	Request   *models.Request `json:"request"`
}

// TransitionErrorResponse is the error envelope of decision, cancel and
// payment calls. NewStatus is set when the failure reveals the request's
// current status, so the caller can re-read without another call.
type TransitionErrorResponse struct {
	httputil.ErrorBody
	NewStatus models.Status `json:"newStatus,omitempty"`
}

type ListResponse struct {
	Requests []*models.Request `json:"requests"`
	Count    int               `json:"count"`
}

func toTransition(req *models.Request) *TransitionResponse {
	return &TransitionResponse{NewStatus: req.Status, Request: req}
}

// writeTransitionError writes err, adding the request's status when err is a
// lost race or a refused transition.
func writeTransitionError(w http.ResponseWriter, err error) {
	status, ok := statusOf(err)
	if !ok {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, dErrors.ToHTTPStatus(dErrors.CodeOf(err)), TransitionErrorResponse{
		ErrorBody: httputil.ErrorFor(err),
		NewStatus: status,
	})
}

func statusOf(err error) (models.Status, bool) {
	var stale *models.StaleStateError
	if errors.As(err, &stale) && stale.Current != "" {
		return stale.Current, true
	}
	var invalid *models.InvalidTransitionError
	if errors.As(err, &invalid) {
		return invalid.From, true
	}
	return "", false
}

func toList(reqs []*models.Request) *ListResponse {
	if reqs == nil {
		reqs = []*models.Request{}
	}
	return &ListResponse{Requests: reqs, Count: len(reqs)}
}
