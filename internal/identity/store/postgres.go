package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"housing/internal/identity/models"
	"housing/pkg/domain"
	"housing/pkg/platform/sentinel"
	"housing/pkg/platform/tx"
)

const uniqueViolation = "23505"

// PostgresStore persists identities through database/sql and lib/pq.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const identityColumns = `id, display_name, email, role, account_status, student_number, password_hash, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, rec *models.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO identities (`+identityColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID.String(), rec.DisplayName, rec.Email, string(rec.Role), string(rec.AccountStatus),
		nullString(rec.StudentNumber), rec.PasswordHash, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert identity: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.IdentityID) (*models.Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+identityColumns+` FROM identities WHERE id = $1`, id.String())
	return scanRecord(row)
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+identityColumns+` FROM identities WHERE email = $1`, email)
	return scanRecord(row)
}

func (s *PostgresStore) Delete(ctx context.Context, id domain.IdentityID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM identities WHERE id = $1`, id.String()); err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	return nil
}

// Execute applies validate and mutate to the row inside a transaction holding
// a row lock.
func (s *PostgresStore) Execute(ctx context.Context, id domain.IdentityID, validate func(*models.Record) error, mutate func(*models.Record)) (*models.Record, error) {
	var out *models.Record
	err := tx.Run(ctx, s.db, tx.DefaultTimeout, func(ctx context.Context, sqlTx *sql.Tx) error {
		row := sqlTx.QueryRowContext(ctx, `SELECT `+identityColumns+` FROM identities WHERE id = $1 FOR UPDATE`, id.String())
		rec, err := scanRecord(row)
		if err != nil {
			return err
		}
		if err := validate(rec); err != nil {
			return err
		}
		mutate(rec)

		if _, err := sqlTx.ExecContext(ctx, `
			UPDATE identities SET display_name = $2, account_status = $3, updated_at = $4
			WHERE id = $1`,
			rec.ID.String(), rec.DisplayName, string(rec.AccountStatus), rec.UpdatedAt,
		); err != nil {
			return fmt.Errorf("update identity: %w", err)
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.Record, error) {
	var (
		rec           models.Record
		id            string
		role, status  string
		studentNumber sql.NullString
	)
	err := row.Scan(&id, &rec.DisplayName, &rec.Email, &role, &status, &studentNumber,
		&rec.PasswordHash, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan identity: %w", err)
	}

	if rec.ID, err = domain.ParseIdentityID(id); err != nil {
		return nil, errors.Join(sentinel.ErrCorrupt, err)
	}
	if rec.Role, err = domain.ParseRole(role); err != nil {
		return nil, errors.Join(sentinel.ErrCorrupt, err)
	}
	if rec.AccountStatus, err = domain.ParseAccountStatus(status); err != nil {
		return nil, errors.Join(sentinel.ErrCorrupt, err)
	}
	rec.StudentNumber = studentNumber.String
	return &rec, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
