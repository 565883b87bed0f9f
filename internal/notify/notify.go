// Package notify delivers workflow notices to students and payment requests
// to the billing collaborator. Sinks are best effort: a failed delivery is
// reported to the caller but never undoes a committed transition.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"housing/internal/workflow/models"
)

// Sink receives both kinds of outbound signal.
type Sink interface {
	Notify(ctx context.Context, notice models.Notice) error
	PaymentRequired(ctx context.Context, req models.PaymentRequest) error
}

// LogNotifier writes every signal to the structured log. It is the default
// sink and the fallback when no broker is configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, notice models.Notice) error {
	n.logger.InfoContext(ctx, "student notice",
		"type", string(notice.Type),
		"request_id", notice.RequestID.String(),
		"kind", string(notice.Kind),
		"status", string(notice.Status),
		"recipient_id", notice.RecipientID.String(),
	)
	return nil
}

func (n *LogNotifier) PaymentRequired(ctx context.Context, req models.PaymentRequest) error {
	n.logger.InfoContext(ctx, "payment required",
		"request_id", req.RequestID.String(),
		"student_id", req.StudentID.String(),
		"room", req.AssignedRoomRef,
		"deadline", req.Deadline,
	)
	return nil
}

// Multi fans a signal out to every sink in parallel and joins their errors.
type Multi struct {
	sinks []Sink
}

func NewMulti(sinks ...Sink) *Multi {
	return &Multi{sinks: sinks}
}

func (m *Multi) Notify(ctx context.Context, notice models.Notice) error {
	return m.fanOut(ctx, func(ctx context.Context, s Sink) error {
		return s.Notify(ctx, notice)
	})
}

func (m *Multi) PaymentRequired(ctx context.Context, req models.PaymentRequest) error {
	return m.fanOut(ctx, func(ctx context.Context, s Sink) error {
		return s.PaymentRequired(ctx, req)
	})
}

func (m *Multi) fanOut(ctx context.Context, call func(context.Context, Sink) error) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	for _, sink := range m.sinks {
		sink := sink
		g.Go(func() error {
			if err := call(ctx, sink); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}
