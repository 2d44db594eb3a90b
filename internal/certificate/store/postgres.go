package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"attesta/internal/certificate/models"
	"attesta/pkg/platform/sentinel"
	"attesta/pkg/requestcontext"
)

// Postgres persists certificates in PostgreSQL. Compare-and-swap rides on a
// conditional UPDATE, so concurrent transitions on the same row cannot both
// succeed regardless of how many service replicas run.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

const certColumns = `id, public_number, title, description, category,
	subject_id, subject_name, subject_email, subject_national_id,
	training_id, training_title, training_instructor, training_hours,
	completion_date, evidence_digest, score, passed,
	status, integrity_digest, issued_at, valid_until, validation_url, qr_payload,
	revocation_reason, revoked_at, notes, created_at, updated_at`

func (s *Postgres) Create(ctx context.Context, cert *models.Certificate) error {
	if cert == nil {
		return fmt.Errorf("certificate is required")
	}
	now := requestcontext.Now(ctx)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create: %w", err)
	}
	defer tx.Rollback(ctx)

	if cert.PublicNumber == "" {
		number, err := s.allocateNumber(ctx, tx, now.Year())
		if err != nil {
			return err
		}
		cert.PublicNumber = number
	} else {
		if err := s.reserveNumber(ctx, tx, cert.PublicNumber); err != nil {
			return err
		}
	}

	cert.Status = models.StatusPending
	cert.CreatedAt = now
	cert.UpdatedAt = now

	_, err = tx.Exec(ctx, `
		INSERT INTO certificates (`+certColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28)`,
		cert.ID, cert.PublicNumber, cert.Title, cert.Description, string(cert.Category),
		cert.Subject.ID, cert.Subject.Name, cert.Subject.Email, cert.Subject.NationalID,
		cert.Training.ID, cert.Training.Title, cert.Training.Instructor, cert.Training.Hours,
		cert.CompletionDate, cert.EvidenceDigest, cert.Score, cert.Passed,
		string(cert.Status), cert.IntegrityDigest, cert.IssuedAt, cert.ValidUntil, cert.ValidationURL, cert.QRPayload,
		cert.RevocationReason, cert.RevokedAt, cert.Notes, cert.CreatedAt, cert.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert certificate: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create: %w", err)
	}
	return nil
}

// allocateNumber draws from the sequence until it finds a slot not already
// taken by a caller-supplied number.
func (s *Postgres) allocateNumber(ctx context.Context, tx pgx.Tx, year int) (string, error) {
	for {
		var seq int64
		if err := tx.QueryRow(ctx, `SELECT nextval('certificate_number_seq')`).Scan(&seq); err != nil {
			return "", fmt.Errorf("allocate public number: %w", err)
		}
		number := fmt.Sprintf("CERT-%d-%d", year, seq)
		tag, err := tx.Exec(ctx,
			`INSERT INTO certificate_numbers (public_number) VALUES ($1) ON CONFLICT DO NOTHING`, number)
		if err != nil {
			return "", fmt.Errorf("reserve public number: %w", err)
		}
		if tag.RowsAffected() == 1 {
			return number, nil
		}
	}
}

func (s *Postgres) reserveNumber(ctx context.Context, tx pgx.Tx, number string) error {
	_, err := tx.Exec(ctx, `INSERT INTO certificate_numbers (public_number) VALUES ($1)`, number)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("public number %s: %w", number, sentinel.ErrConflict)
		}
		return fmt.Errorf("reserve public number: %w", err)
	}
	return nil
}

func (s *Postgres) Get(ctx context.Context, id uuid.UUID) (*models.Certificate, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+certColumns+` FROM certificates WHERE id = $1`, id)
	cert, err := scanCertificate(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("certificate %s: %w", id, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("get certificate: %w", err)
	}
	return cert, nil
}

func (s *Postgres) FindByPublicNumber(ctx context.Context, number string) (*models.Certificate, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+certColumns+` FROM certificates WHERE public_number = $1`, number)
	cert, err := scanCertificate(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("certificate %s: %w", number, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find certificate by public number: %w", err)
	}
	return cert, nil
}

func (s *Postgres) List(ctx context.Context) ([]*models.Certificate, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+certColumns+` FROM certificates ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list certificates: %w", err)
	}
	defer rows.Close()

	var out []*models.Certificate
	for rows.Next() {
		cert, err := scanCertificate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan certificate: %w", err)
		}
		out = append(out, cert)
	}
	return out, rows.Err()
}

func (s *Postgres) CompareAndSwapStatus(ctx context.Context, id uuid.UUID, expected, next models.Status, patch models.StatusPatch) (*models.Certificate, error) {
	if !models.CanTransition(expected, next) {
		return nil, fmt.Errorf("transition %s -> %s: %w", expected, next, sentinel.ErrInvalidState)
	}

	now := requestcontext.Now(ctx)
	row := s.pool.QueryRow(ctx, `
		UPDATE certificates SET
			status            = $3,
			integrity_digest  = CASE WHEN $3 = 'ISSUED'  THEN $4 ELSE integrity_digest  END,
			issued_at         = CASE WHEN $3 = 'ISSUED'  THEN $5 ELSE issued_at         END,
			valid_until       = CASE WHEN $3 = 'ISSUED'  THEN $6 ELSE valid_until       END,
			validation_url    = CASE WHEN $3 = 'ISSUED'  THEN $7 ELSE validation_url    END,
			qr_payload        = CASE WHEN $3 = 'ISSUED'  THEN $8 ELSE qr_payload        END,
			revocation_reason = CASE WHEN $3 = 'REVOKED' THEN $9 ELSE revocation_reason END,
			revoked_at        = CASE WHEN $3 = 'REVOKED' THEN $10 ELSE revoked_at       END,
			updated_at        = $11
		WHERE id = $1 AND status = $2
		RETURNING `+certColumns,
		id, string(expected), string(next),
		patch.IntegrityDigest, patch.IssuedAt, patch.ValidUntil, patch.ValidationURL, patch.QRPayload,
		patch.RevocationReason, patch.RevokedAt, now,
	)
	cert, err := scanCertificate(row)
	if err == nil {
		return cert, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("compare-and-swap status: %w", err)
	}

	// No row matched: either the certificate is gone or another writer won.
	current, getErr := s.Get(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	return nil, fmt.Errorf("status is %s, expected %s: %w", current.Status, expected, sentinel.ErrInvalidState)
}

func (s *Postgres) UpdateNotes(ctx context.Context, id uuid.UUID, notes string) (*models.Certificate, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE certificates SET notes = $2, updated_at = $3
		WHERE id = $1 AND status <> 'REVOKED'
		RETURNING `+certColumns,
		id, notes, requestcontext.Now(ctx),
	)
	cert, err := scanCertificate(row)
	if err == nil {
		return cert, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("update notes: %w", err)
	}
	if _, getErr := s.Get(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, fmt.Errorf("notes are frozen after revocation: %w", sentinel.ErrInvalidState)
}

func (s *Postgres) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM certificates WHERE id = $1 AND status = 'PENDING'`, id)
	if err != nil {
		return fmt.Errorf("delete certificate: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	if _, getErr := s.Get(ctx, id); getErr != nil {
		return getErr
	}
	return fmt.Errorf("only pending certificates can be deleted: %w", sentinel.ErrInvalidState)
}

func scanCertificate(row pgx.Row) (*models.Certificate, error) {
	var (
		cert     models.Certificate
		category string
		status   string
	)
	err := row.Scan(
		&cert.ID, &cert.PublicNumber, &cert.Title, &cert.Description, &category,
		&cert.Subject.ID, &cert.Subject.Name, &cert.Subject.Email, &cert.Subject.NationalID,
		&cert.Training.ID, &cert.Training.Title, &cert.Training.Instructor, &cert.Training.Hours,
		&cert.CompletionDate, &cert.EvidenceDigest, &cert.Score, &cert.Passed,
		&status, &cert.IntegrityDigest, &cert.IssuedAt, &cert.ValidUntil, &cert.ValidationURL, &cert.QRPayload,
		&cert.RevocationReason, &cert.RevokedAt, &cert.Notes, &cert.CreatedAt, &cert.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	cert.Category = models.Category(category)
	cert.Status = models.Status(status)
	return &cert, nil
}
