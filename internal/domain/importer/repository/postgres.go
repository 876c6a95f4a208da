package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxPool abstracts the subset of pgxpool.Pool used by the repository to allow mocking in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

var _ PgxPool = (*pgxpool.Pool)(nil)

// PostgresImportRepository implements ImportRepository using PostgreSQL
type PostgresImportRepository struct {
	pgpool PgxPool
}

// NewPostgresImportRepository creates a new PostgreSQL-backed import repository
func NewPostgresImportRepository(pgpool PgxPool) *PostgresImportRepository {
	return &PostgresImportRepository{pgpool: pgpool}
}

const getProfileByFingerprintQuery = `
	SELECT id, user_id, fingerprint, bank_name, skip_rows, date_format,
	       date_col, desc_col, amount_col, debit_col, credit_col,
	       is_european_format, created_at, updated_at
	FROM bank_profiles
	WHERE fingerprint = $1 AND (user_id = $2 OR user_id IS NULL)
	ORDER BY user_id NULLS LAST
	LIMIT 1
`

// GetProfileByFingerprint looks up a bank profile by its layout fingerprint.
// User-specific profiles win over global templates.
func (r *PostgresImportRepository) GetProfileByFingerprint(ctx context.Context, fingerprint string, userID *uuid.UUID) (*BankProfile, error) {
	var p BankProfile
	err := r.pgpool.QueryRow(ctx, getProfileByFingerprintQuery, fingerprint, userID).Scan(
		&p.ID, &p.UserID, &p.Fingerprint, &p.BankName,
		&p.SkipRows, &p.DateFormat,
		&p.DateCol, &p.DescCol, &p.AmountCol, &p.DebitCol, &p.CreditCol,
		&p.IsEuropeanFormat, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile by fingerprint: %w", err)
	}

	return &p, nil
}

const createProfileQuery = `
	INSERT INTO bank_profiles (
		id, user_id, fingerprint, bank_name, skip_rows, date_format,
		date_col, desc_col, amount_col, debit_col, credit_col, is_european_format
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
`

// CreateProfile inserts a new bank profile
func (r *PostgresImportRepository) CreateProfile(ctx context.Context, profile *BankProfile) error {
	if profile.ID == uuid.Nil {
		profile.ID = uuid.New()
	}

	_, err := r.pgpool.Exec(ctx, createProfileQuery,
		profile.ID, profile.UserID, profile.Fingerprint, profile.BankName,
		profile.SkipRows, profile.DateFormat,
		profile.DateCol, profile.DescCol, profile.AmountCol,
		profile.DebitCol, profile.CreditCol, profile.IsEuropeanFormat,
	)
	if err != nil {
		return fmt.Errorf("failed to create bank profile: %w", err)
	}

	return nil
}

const updateProfileQuery = `
	UPDATE bank_profiles SET
		bank_name = $2, skip_rows = $3, date_format = $4,
		date_col = $5, desc_col = $6, amount_col = $7,
		debit_col = $8, credit_col = $9, is_european_format = $10,
		updated_at = NOW()
	WHERE id = $1
`

// UpdateProfile updates an existing bank profile
func (r *PostgresImportRepository) UpdateProfile(ctx context.Context, profile *BankProfile) error {
	_, err := r.pgpool.Exec(ctx, updateProfileQuery,
		profile.ID, profile.BankName, profile.SkipRows, profile.DateFormat,
		profile.DateCol, profile.DescCol, profile.AmountCol,
		profile.DebitCol, profile.CreditCol, profile.IsEuropeanFormat,
	)
	if err != nil {
		return fmt.Errorf("failed to update bank profile: %w", err)
	}

	return nil
}

const listProfilesQuery = `
	SELECT id, user_id, fingerprint, bank_name, skip_rows, date_format,
	       date_col, desc_col, amount_col, debit_col, credit_col,
	       is_european_format, created_at, updated_at
	FROM bank_profiles
	WHERE user_id = $1 OR user_id IS NULL
	ORDER BY created_at DESC
`

// ListProfiles returns all profiles visible to a user (including global templates)
func (r *PostgresImportRepository) ListProfiles(ctx context.Context, userID uuid.UUID) ([]*BankProfile, error) {
	rows, err := r.pgpool.Query(ctx, listProfilesQuery, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bank profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*BankProfile
	for rows.Next() {
		var p BankProfile
		err := rows.Scan(
			&p.ID, &p.UserID, &p.Fingerprint, &p.BankName,
			&p.SkipRows, &p.DateFormat,
			&p.DateCol, &p.DescCol, &p.AmountCol, &p.DebitCol, &p.CreditCol,
			&p.IsEuropeanFormat, &p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bank profile: %w", err)
		}
		profiles = append(profiles, &p)
	}

	return profiles, nil
}

const createImportJobQuery = `
	INSERT INTO import_jobs (id, user_id, account_id, file_name, status, rows_total)
	VALUES ($1, $2, $3, $4, $5, $6)
`

// CreateImportJob creates a new import job
func (r *PostgresImportRepository) CreateImportJob(ctx context.Context, job *ImportJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}

	_, err := r.pgpool.Exec(ctx, createImportJobQuery,
		job.ID, job.UserID, job.AccountID, job.FileName, job.Status, job.RowsTotal,
	)
	if err != nil {
		return fmt.Errorf("failed to create import job: %w", err)
	}

	return nil
}

const getImportJobQuery = `
	SELECT id, user_id, account_id, file_name, status, error_message,
	       rows_total, rows_imported, rows_skipped, rows_duplicate,
	       requested_at, finished_at
	FROM import_jobs WHERE id = $1
`

// GetImportJobByID retrieves an import job by ID
func (r *PostgresImportRepository) GetImportJobByID(ctx context.Context, id uuid.UUID) (*ImportJob, error) {
	var job ImportJob
	err := r.pgpool.QueryRow(ctx, getImportJobQuery, id).Scan(
		&job.ID, &job.UserID, &job.AccountID, &job.FileName, &job.Status, &job.ErrorMessage,
		&job.RowsTotal, &job.RowsImported, &job.RowsSkipped, &job.RowsDuplicate,
		&job.RequestedAt, &job.FinishedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get import job: %w", err)
	}

	return &job, nil
}

const finishImportJobQuery = `
	UPDATE import_jobs SET
		status = $2, rows_imported = $3, rows_skipped = $4, rows_duplicate = $5,
		error_message = $6, finished_at = NOW(), rows_total = $3 + $4 + $5
	WHERE id = $1
`

// FinishImportJob marks an import job as complete
func (r *PostgresImportRepository) FinishImportJob(ctx context.Context, id uuid.UUID, status string, rowsImported, rowsSkipped, rowsDuplicate int, errorMessage *string) error {
	_, err := r.pgpool.Exec(ctx, finishImportJobQuery,
		id, status, rowsImported, rowsSkipped, rowsDuplicate, errorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to finish import job: %w", err)
	}
	return nil
}

// BulkInsertMovements inserts movements efficiently via COPY.
func (r *PostgresImportRepository) BulkInsertMovements(ctx context.Context, userID uuid.UUID, accountID *uuid.UUID, jobID uuid.UUID, movements []*StoredMovement) (int, error) {
	if len(movements) == 0 {
		return 0, nil
	}

	columns := []string{"id", "user_id", "account_id", "import_job_id", "posted_at", "description", "amount_cents", "duplicate_hash", "original_row"}

	copyCount, err := r.pgpool.CopyFrom(ctx,
		pgx.Identifier{"movements"},
		columns,
		pgx.CopyFromSlice(len(movements), func(i int) ([]any, error) {
			m := movements[i]
			return []any{
				uuid.New(),
				userID,
				accountID,
				jobID,
				m.Date,
				m.Description,
				m.AmountCents,
				m.DuplicateHash,
				m.OriginalRow,
			}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to bulk insert movements: %w", err)
	}

	return int(copyCount), nil
}

const existingHashesQuery = `
	SELECT DISTINCT duplicate_hash
	FROM movements
	WHERE user_id = $1
	  AND ($2::uuid IS NULL OR account_id = $2)
	  AND duplicate_hash = ANY($3)
`

// ExistingHashes reports which of the given content hashes are already
// persisted for the user, so repeat imports of the same statement are
// flagged even across files.
func (r *PostgresImportRepository) ExistingHashes(ctx context.Context, userID uuid.UUID, accountID *uuid.UUID, hashes []string) (map[string]bool, error) {
	if len(hashes) == 0 {
		return map[string]bool{}, nil
	}

	rows, err := r.pgpool.Query(ctx, existingHashesQuery, userID, accountID, hashes)
	if err != nil {
		return nil, fmt.Errorf("failed to query existing hashes: %w", err)
	}
	defer rows.Close()

	existing := make(map[string]bool)
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("failed to scan hash: %w", err)
		}
		existing[h] = true
	}

	return existing, nil
}
