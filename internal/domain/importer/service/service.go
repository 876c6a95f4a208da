// Package service provides the statement import orchestration logic:
// layout detection, profile matching, row parsing, duplicate detection,
// and batched persistence.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/inmofin/inmofin/internal/domain/importer/dedup"
	"github.com/inmofin/inmofin/internal/domain/importer/grid"
	"github.com/inmofin/inmofin/internal/domain/importer/normalizer"
	"github.com/inmofin/inmofin/internal/domain/importer/repository"
	"github.com/inmofin/inmofin/internal/domain/importer/sniffer"
)

var (
	// ErrMappingRejected is returned when so many rows fail normalization that
	// the column mapping itself is suspect; the caller should fall back to
	// manual mapping instead of importing a sliver of the file.
	ErrMappingRejected = errors.New("majority of rows failed to parse; mapping rejected")

	// ErrInvalidMapping is returned when a mapping does not reference usable
	// columns. Column suggestions mark undetected columns with -1, so a
	// suggestion echoed back unreviewed lands here rather than in parsing.
	ErrInvalidMapping = errors.New("column mapping is incomplete")
)

const importBatchSize = 500

// ColumnMapping defines how grid columns map to movement fields.
type ColumnMapping struct {
	DateCol          int
	DescCol          int
	AmountCol        int // For single amount column
	DebitCol         int // For separate debit/credit
	CreditCol        int // For separate debit/credit
	IsDoubleEntry    bool
	IsEuropeanFormat bool
	DateFormat       string
}

// Validate checks that every column the mapping needs points at a real
// index. Bounds against the actual row width are checked per row.
func (m ColumnMapping) Validate() error {
	if m.DateCol < 0 || m.DescCol < 0 {
		return fmt.Errorf("%w: date and description columns are required", ErrInvalidMapping)
	}
	if m.IsDoubleEntry {
		if m.DebitCol < 0 || m.CreditCol < 0 {
			return fmt.Errorf("%w: debit and credit columns are required", ErrInvalidMapping)
		}
		return nil
	}
	if m.AmountCol < 0 {
		return fmt.Errorf("%w: amount column is required", ErrInvalidMapping)
	}
	return nil
}

// AnalyzeResult describes an uploaded file before import.
type AnalyzeResult struct {
	Layout      *sniffer.Layout
	Suggestions *sniffer.ColumnSuggestions

	ProfileFound bool
	Profile      *repository.BankProfile

	// CanAutoImport is set when either a stored profile matched the
	// fingerprint or column suggestions are confident on their own.
	CanAutoImport bool

	// FallbackRequired signals that the caller must present manual mapping.
	FallbackRequired bool
}

// ImportResult summarizes a completed import run.
type ImportResult struct {
	JobID          uuid.UUID
	RowsTotal      int
	RowsImported   int
	RowsSkipped    int
	RowsDuplicate  int
	DuplicateStats dedup.Stats
	Warnings       []string
}

// ImportService orchestrates file analysis and import operations
type ImportService struct {
	repo   repository.ImportRepository
	logger *slog.Logger
}

// NewImportService creates a new import service
func NewImportService(repo repository.ImportRepository, logger *slog.Logger) *ImportService {
	return &ImportService{
		repo:   repo,
		logger: logger,
	}
}

// Analyze inspects an uploaded file: detects the header row, matches the
// fingerprint against stored bank profiles, and suggests a column mapping.
func (s *ImportService) Analyze(ctx context.Context, userID uuid.UUID, filename string, fileData []byte) (*AnalyzeResult, error) {
	cells, err := grid.FromFile(filename, fileData)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	layout, err := sniffer.DetectLayout(cells)
	if err == sniffer.ErrNoHeadersFound {
		// No structural header; the layout may still be a known profile if
		// the first non-blank row fingerprints to a saved mapping.
		return s.analyzeWithoutHeaders(ctx, userID, cells)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to analyze file: %w", err)
	}

	suggestions := sniffer.SuggestColumns(layout.Headers)

	profile, err := s.repo.GetProfileByFingerprint(ctx, layout.Fingerprint, &userID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up bank profile: %w", err)
	}

	return &AnalyzeResult{
		Layout:           layout,
		Suggestions:      suggestions,
		ProfileFound:     profile != nil,
		Profile:          profile,
		CanAutoImport:    profile != nil || !suggestions.FallbackRequired,
		FallbackRequired: profile == nil && suggestions.FallbackRequired,
	}, nil
}

func (s *ImportService) analyzeWithoutHeaders(ctx context.Context, userID uuid.UUID, cells [][]string) (*AnalyzeResult, error) {
	for i, row := range cells {
		if sniffer.IsBlankRow(row) {
			continue
		}
		fingerprint := sniffer.Fingerprint(row)
		profile, err := s.repo.GetProfileByFingerprint(ctx, fingerprint, &userID)
		if err != nil {
			return nil, fmt.Errorf("failed to look up bank profile: %w", err)
		}
		layout := &sniffer.Layout{
			HeaderRow:   i,
			SkipRows:    i,
			Headers:     row,
			Fingerprint: fingerprint,
		}
		return &AnalyzeResult{
			Layout:           layout,
			Suggestions:      sniffer.SuggestColumns(row),
			ProfileFound:     profile != nil,
			Profile:          profile,
			CanAutoImport:    profile != nil,
			FallbackRequired: profile == nil,
		}, nil
	}
	return nil, sniffer.ErrNoHeadersFound
}

// SaveProfile persists a manually supplied column mapping keyed by the
// layout fingerprint, so future imports of the same layout auto-match.
func (s *ImportService) SaveProfile(ctx context.Context, userID uuid.UUID, fingerprint, bankName string, skipRows int, mapping ColumnMapping) (*repository.BankProfile, error) {
	bankNamePtr := &bankName
	if bankName == "" {
		bankNamePtr = nil
	}

	var amountCol, debitCol, creditCol *int
	if mapping.IsDoubleEntry {
		debitCol = &mapping.DebitCol
		creditCol = &mapping.CreditCol
	} else {
		amountCol = &mapping.AmountCol
	}

	profile := &repository.BankProfile{
		UserID:           &userID,
		Fingerprint:      fingerprint,
		BankName:         bankNamePtr,
		SkipRows:         skipRows,
		DateFormat:       mapping.DateFormat,
		DateCol:          mapping.DateCol,
		DescCol:          mapping.DescCol,
		AmountCol:        amountCol,
		DebitCol:         debitCol,
		CreditCol:        creditCol,
		IsEuropeanFormat: mapping.IsEuropeanFormat,
	}

	if err := s.repo.CreateProfile(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// ListProfiles returns the user's saved profiles plus global templates.
func (s *ImportService) ListProfiles(ctx context.Context, userID uuid.UUID) ([]*repository.BankProfile, error) {
	return s.repo.ListProfiles(ctx, userID)
}

// GetJob returns a past import job, or nil when unknown.
func (s *ImportService) GetJob(ctx context.Context, jobID uuid.UUID) (*repository.ImportJob, error) {
	return s.repo.GetImportJobByID(ctx, jobID)
}

// MappingFromProfile rehydrates a stored profile into a usable mapping.
func MappingFromProfile(p *repository.BankProfile) ColumnMapping {
	m := ColumnMapping{
		DateCol:          p.DateCol,
		DescCol:          p.DescCol,
		AmountCol:        -1,
		DebitCol:         -1,
		CreditCol:        -1,
		IsEuropeanFormat: p.IsEuropeanFormat,
		DateFormat:       p.DateFormat,
	}
	if p.DebitCol != nil && p.CreditCol != nil {
		m.DebitCol = *p.DebitCol
		m.CreditCol = *p.CreditCol
		m.IsDoubleEntry = true
	} else if p.AmountCol != nil {
		m.AmountCol = *p.AmountCol
	}
	return m
}

// Import runs the full pipeline over an uploaded file: parse rows in file
// order, flag duplicates (within the batch and against stored movements),
// and persist survivors in batches under an import job.
func (s *ImportService) Import(ctx context.Context, userID uuid.UUID, accountID *uuid.UUID, filename string, fileData []byte, skipRows int, mapping ColumnMapping) (*ImportResult, error) {
	cells, err := grid.FromFile(filename, fileData)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	movements, warnings, err := s.ParseMovements(cells, skipRows, mapping)
	if err != nil {
		return nil, err
	}

	movements = dedup.DetectDuplicates(movements)
	stats := dedup.GetStats(movements)

	// Cross-file dedup: movements already persisted count as duplicates too
	hashes := make([]string, 0, len(movements))
	for _, m := range movements {
		hashes = append(hashes, m.DuplicateHash)
	}
	existing, err := s.repo.ExistingHashes(ctx, userID, accountID, hashes)
	if err != nil {
		return nil, fmt.Errorf("failed to check stored duplicates: %w", err)
	}

	job := &repository.ImportJob{
		UserID:    userID,
		AccountID: accountID,
		FileName:  filename,
		Status:    "running",
		RowsTotal: len(movements),
	}
	if err := s.repo.CreateImportJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create import job: %w", err)
	}

	imported := 0
	duplicates := 0
	batch := make([]*repository.StoredMovement, 0, importBatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := s.repo.BulkInsertMovements(ctx, userID, accountID, job.ID, batch)
		if err != nil {
			return err
		}
		imported += n
		batch = batch[:0]
		return nil
	}

	var insertErr error
	for _, m := range movements {
		if m.IsDuplicate || existing[m.DuplicateHash] {
			duplicates++
			continue
		}
		batch = append(batch, &repository.StoredMovement{
			Date:          m.Date,
			Description:   m.Description,
			AmountCents:   m.AmountCents,
			DuplicateHash: m.DuplicateHash,
			OriginalRow:   m.OriginalRow,
		})
		if len(batch) >= importBatchSize {
			if insertErr = flush(); insertErr != nil {
				break
			}
		}
	}
	if insertErr == nil {
		insertErr = flush()
	}

	skipped := len(warnings)

	if insertErr != nil {
		errMsg := insertErr.Error()
		if err := s.repo.FinishImportJob(ctx, job.ID, "failed", imported, skipped, duplicates, &errMsg); err != nil {
			s.logger.Warn("failed to mark import job failed", "job_id", job.ID, "error", err)
		}
		return nil, fmt.Errorf("failed to insert movements: %w", insertErr)
	}

	if err := s.repo.FinishImportJob(ctx, job.ID, "succeeded", imported, skipped, duplicates, nil); err != nil {
		s.logger.Warn("failed to finish import job", "job_id", job.ID, "error", err)
	}

	return &ImportResult{
		JobID:          job.ID,
		RowsTotal:      len(movements) + skipped,
		RowsImported:   imported,
		RowsSkipped:    skipped,
		RowsDuplicate:  duplicates,
		DuplicateStats: stats,
		Warnings:       warnings,
	}, nil
}

// ParseMovements converts data rows into movements using the resolved
// mapping, eagerly and in file order. Blank rows are ignored. A row that
// fails normalization is skipped with a warning; if failed rows outnumber
// parsed ones, the whole import is rejected so the caller can request
// fallback mapping.
func (s *ImportService) ParseMovements(cells [][]string, skipRows int, mapping ColumnMapping) ([]dedup.Movement, []string, error) {
	if err := mapping.Validate(); err != nil {
		return nil, nil, err
	}

	var movements []dedup.Movement
	var warnings []string

	start := skipRows + 1 // data begins after the header row
	if start > len(cells) {
		return nil, nil, fmt.Errorf("file has no data rows")
	}

	for i := start; i < len(cells); i++ {
		row := cells[i]
		if sniffer.IsBlankRow(row) {
			continue
		}

		m, err := parseRow(row, mapping, i+1)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("row %d: %v", i+1, err))
			if s.logger != nil {
				s.logger.Warn("skipping unparseable row", "row", i+1, "error", err)
			}
			continue
		}
		movements = append(movements, m)
	}

	if len(warnings) > len(movements) {
		return nil, warnings, ErrMappingRejected
	}

	return movements, warnings, nil
}

// parseRow converts a single grid row into a movement.
func parseRow(row []string, mapping ColumnMapping, rowNum int) (dedup.Movement, error) {
	maxCol := len(row) - 1
	if mapping.DateCol > maxCol || mapping.DescCol > maxCol {
		return dedup.Movement{}, fmt.Errorf("column index out of bounds")
	}

	date, err := normalizer.ParseDate(row[mapping.DateCol], mapping.DateFormat, nil)
	if err != nil {
		return dedup.Movement{}, fmt.Errorf("invalid date %q: %w", row[mapping.DateCol], err)
	}

	description := normalizer.CleanDescription(row[mapping.DescCol])
	if description == "" {
		return dedup.Movement{}, fmt.Errorf("empty description")
	}

	var amountCents int64
	if mapping.IsDoubleEntry {
		if mapping.DebitCol > maxCol || mapping.CreditCol > maxCol {
			return dedup.Movement{}, fmt.Errorf("debit/credit column index out of bounds")
		}
		amountCents, err = normalizer.NormalizeDebitCredit(row[mapping.DebitCol], row[mapping.CreditCol], mapping.IsEuropeanFormat)
	} else {
		if mapping.AmountCol > maxCol {
			return dedup.Movement{}, fmt.Errorf("amount column index out of bounds")
		}
		amountCents, err = normalizer.ParseAmount(row[mapping.AmountCol], mapping.IsEuropeanFormat)
	}
	if err != nil {
		return dedup.Movement{}, fmt.Errorf("invalid amount: %w", err)
	}

	return dedup.Movement{
		Date:        date,
		AmountCents: amountCents,
		Description: description,
		OriginalRow: rowNum,
	}, nil
}
