package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"housing/internal/platform/middleware"
	workflowservice "housing/internal/workflow/service"
	dErrors "housing/pkg/domain-errors"
	"housing/pkg/platform/httputil"
	"housing/pkg/requestcontext"
)

// HeaderBillingToken authenticates the billing collaborator.
const HeaderBillingToken = "X-Billing-Token"

// BillingHandler receives payment confirmations from the billing
// collaborator. It is the only caller allowed to confirm a booking.
type BillingHandler struct {
	workflow WorkflowService
	token    string
	logger   *slog.Logger
}

func NewBillingHandler(workflow WorkflowService, token string, logger *slog.Logger) *BillingHandler {
	return &BillingHandler{workflow: workflow, token: token, logger: logger}
}

func (h *BillingHandler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireServiceToken(HeaderBillingToken, h.token, h.logger))
		r.Post("/billing/payments", h.handleConfirmPayment)
	})
}

func (h *BillingHandler) handleConfirmPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	req, ok := httputil.DecodeAndPrepare[PaymentConfirmationRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	confirmed, err := h.workflow.ConfirmPayment(ctx, workflowservice.PaymentConfirmation{
		RequestID:  req.requestID,
		PaymentRef: req.PaymentRef,
	})
	if err != nil {
		level := slog.LevelWarn
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			level = slog.LevelError
		}
		h.logger.Log(ctx, level, "payment confirmation failed",
			"request_id", requestID,
			"workflow_request_id", req.RequestID,
			"error", err,
		)
		writeTransitionError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toTransition(confirmed))
}
