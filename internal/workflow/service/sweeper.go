package service

import (
	"context"
	"time"

	"housing/internal/workflow/models"
	dErrors "housing/pkg/domain-errors"
)

// SweepExpired reads every awaiting-payment booking through the lazy expiry
// path so owners are notified even when nobody opens the request. It writes
// nothing the read path would not, and returns how many bookings expired.
func (e *Engine) SweepExpired(ctx context.Context) (int, error) {
	reqs, err := e.store.List(ctx, models.Filter{
		Kind:   models.KindRoomBooking,
		Status: models.StatusApprovedAwaitingPayment,
	})
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list awaiting bookings")
	}
	expired := 0
	for _, req := range reqs {
		settled, err := e.settle(ctx, req)
		if err != nil {
			e.logger.WarnContext(ctx, "expiry sweep skipped request", "request_id", req.ID.String(), "error", err)
			continue
		}
		if settled.Status != req.Status {
			expired++
		}
	}
	return expired, nil
}

// RunSweeper calls SweepExpired every interval until ctx is cancelled.
func (e *Engine) RunSweeper(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := e.SweepExpired(ctx)
			if err != nil {
				e.logger.ErrorContext(ctx, "expiry sweep failed", "error", err)
				continue
			}
			if n > 0 {
				e.logger.InfoContext(ctx, "expiry sweep completed", "expired", n)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
