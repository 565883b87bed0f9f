package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"housing/internal/workflow/models"
	"housing/pkg/domain"
	"housing/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// PostgresStore keeps requests in the approvable_requests table. Transitions
// are conditional UPDATEs on (id, status, version).
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const requestColumns = `id, kind, status, owner_id, payload, version, created_at, decided_at, decided_by, rejection_reason, payment_ref, notes, updated_at`

func (s *PostgresStore) Create(ctx context.Context, req *models.Request) error {
	payload, err := json.Marshal(req.Payload)
	if err != nil {
		return fmt.Errorf("encode request payload: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO approvable_requests (`+requestColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		uuid.UUID(req.ID), string(req.Kind), string(req.Status), uuid.UUID(req.OwnerID), payload, req.Version,
		req.CreatedAt, req.DecidedAt, decidedBy(req), nullText(req.RejectionReason),
		nullText(req.PaymentRef), nullText(req.Notes), req.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert request: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id domain.RequestID) (*models.Request, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM approvable_requests WHERE id = $1`, uuid.UUID(id))
	return scanRequest(row)
}

func (s *PostgresStore) List(ctx context.Context, filter models.Filter) ([]*models.Request, error) {
	var (
		where []string
		args  []any
	)
	if filter.Kind != "" {
		args = append(args, string(filter.Kind))
		where = append(where, fmt.Sprintf("kind = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if !filter.OwnerID.IsNil() {
		args = append(args, uuid.UUID(filter.OwnerID))
		where = append(where, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	query := `SELECT ` + requestColumns + ` FROM approvable_requests`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Request, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CompareAndSwap(ctx context.Context, next *models.Request, expectedStatus models.Status, expectedVersion int64) error {
	payload, err := json.Marshal(next.Payload)
	if err != nil {
		return fmt.Errorf("encode request payload: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE approvable_requests
		SET status = $2, payload = $3, version = $4, decided_at = $5, decided_by = $6,
		    rejection_reason = $7, payment_ref = $8, notes = $9, updated_at = $10
		WHERE id = $1 AND status = $11 AND version = $12`,
		uuid.UUID(next.ID), string(next.Status), payload, expectedVersion+1, next.DecidedAt, decidedBy(next),
		nullText(next.RejectionReason), nullText(next.PaymentRef), nullText(next.Notes), next.UpdatedAt,
		string(expectedStatus), expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrStale
	}
	next.Version = expectedVersion + 1
	return nil
}

func scanRequest(row pgx.Row) (*models.Request, error) {
	var (
		req                          models.Request
		id, owner                    uuid.UUID
		kind, status                 string
		payload                      []byte
		decidedAt                    *time.Time
		decider                      *uuid.UUID
		rejection, paymentRef, notes *string
	)
	err := row.Scan(&id, &kind, &status, &owner, &payload, &req.Version, &req.CreatedAt,
		&decidedAt, &decider, &rejection, &paymentRef, &notes, &req.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan request: %w", err)
	}

	req.ID = domain.RequestID(id)
	req.OwnerID = domain.IdentityID(owner)
	if req.Kind, err = models.ParseKind(kind); err != nil {
		return nil, errors.Join(sentinel.ErrCorrupt, err)
	}
	if req.Status, err = models.ParseStatus(status); err != nil {
		return nil, errors.Join(sentinel.ErrCorrupt, err)
	}
	if err := json.Unmarshal(payload, &req.Payload); err != nil {
		return nil, errors.Join(sentinel.ErrCorrupt, err)
	}
	req.DecidedAt = decidedAt
	if decider != nil {
		d := domain.IdentityID(*decider)
		req.DecidedBy = &d
	}
	req.RejectionReason = deref(rejection)
	req.PaymentRef = deref(paymentRef)
	req.Notes = deref(notes)
	return &req, nil
}

func decidedBy(r *models.Request) *uuid.UUID {
	if r.DecidedBy == nil {
		return nil
	}
	u := uuid.UUID(*r.DecidedBy)
	return &u
}

func nullText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
