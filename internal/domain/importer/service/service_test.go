package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/inmofin/inmofin/internal/domain/importer/repository"
)

const spanishCSV = `Banco Ejemplo S.A.
Cuenta;ES91 2100 0418 4502 0005 1332
Fecha;Concepto;Importe;Saldo
02/01/2024;Compra Mercadona;-45,23;954,77
03/01/2024;Recibo Luz;-60,10;894,67
;;;
05/01/2024;Transferencia recibida;1.500,00;2.394,67
`

var spanishMapping = ColumnMapping{
	DateCol:          0,
	DescCol:          1,
	AmountCol:        2,
	DebitCol:         -1,
	CreditCol:        -1,
	IsEuropeanFormat: true,
	DateFormat:       "DD/MM/YYYY",
}

func newTestService(repo repository.ImportRepository) *ImportService {
	return NewImportService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestParseMovements_OrderAndBlankRows(t *testing.T) {
	svc := newTestService(nil)

	cells := mustGrid(t, spanishCSV)
	movements, warnings, err := svc.ParseMovements(cells, 2, spanishMapping)
	if err != nil {
		t.Fatalf("ParseMovements failed: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if len(movements) != 3 {
		t.Fatalf("expected 3 movements, got %d", len(movements))
	}

	if movements[0].Description != "Compra Mercadona" || movements[0].AmountCents != -4523 {
		t.Errorf("unexpected first movement: %+v", movements[0])
	}
	if movements[2].AmountCents != 150000 {
		t.Errorf("expected 1.500,00 -> 150000 cents, got %d", movements[2].AmountCents)
	}
	if movements[0].OriginalRow >= movements[2].OriginalRow {
		t.Error("movements must preserve file order")
	}
}

func TestParseMovements_BadRowsSkippedWithWarnings(t *testing.T) {
	data := strings.Join([]string{
		"Fecha;Concepto;Importe",
		"02/01/2024;Compra;-45,23",
		"no-es-fecha;Otro;-1,00",
		"03/01/2024;Recibo;-60,10",
		"04/01/2024;Sin importe;abc",
	}, "\n")

	svc := newTestService(nil)
	movements, warnings, err := svc.ParseMovements(mustGrid(t, data), 0, spanishMapping)
	if err != nil {
		t.Fatalf("ParseMovements failed: %v", err)
	}
	if len(movements) != 2 {
		t.Fatalf("expected 2 movements, got %d", len(movements))
	}
	if len(warnings) != 2 {
		t.Fatalf("expected 2 warnings, got %v", warnings)
	}
	if !strings.Contains(warnings[0], "invalid date") {
		t.Errorf("unexpected first warning: %s", warnings[0])
	}
	if !strings.Contains(warnings[1], "invalid amount") {
		t.Errorf("unexpected second warning: %s", warnings[1])
	}
}

func TestParseMovements_MajorityFailureRejectsImport(t *testing.T) {
	data := strings.Join([]string{
		"Fecha;Concepto;Importe",
		"xx;A;1,00",
		"yy;B;2,00",
		"zz;C;3,00",
		"02/01/2024;D;4,00",
	}, "\n")

	svc := newTestService(nil)
	_, _, err := svc.ParseMovements(mustGrid(t, data), 0, spanishMapping)
	if err != ErrMappingRejected {
		t.Fatalf("expected ErrMappingRejected, got %v", err)
	}
}

func TestParseMovements_IncompleteMappingRejected(t *testing.T) {
	svc := newTestService(nil)
	cells := mustGrid(t, spanishCSV)

	// A column suggestion with an undetected amount column keeps -1; echoing
	// it back must fail validation instead of indexing past the row.
	cases := map[string]ColumnMapping{
		"missing amount":      {DateCol: 0, DescCol: 1, AmountCol: -1, DebitCol: -1, CreditCol: -1},
		"missing date":        {DateCol: -1, DescCol: 1, AmountCol: 2, DebitCol: -1, CreditCol: -1},
		"missing description": {DateCol: 0, DescCol: -1, AmountCol: 2, DebitCol: -1, CreditCol: -1},
		"missing debit":       {DateCol: 0, DescCol: 1, AmountCol: -1, DebitCol: -1, CreditCol: 3, IsDoubleEntry: true},
	}
	for name, mapping := range cases {
		if _, _, err := svc.ParseMovements(cells, 2, mapping); !errors.Is(err, ErrInvalidMapping) {
			t.Errorf("%s: expected ErrInvalidMapping, got %v", name, err)
		}
	}
}

func TestImport_IncompleteProfileMappingCreatesNoJob(t *testing.T) {
	// A stored profile may have amount, debit, and credit columns all unset;
	// rehydrating it yields a mapping with no amount source.
	profile := &repository.BankProfile{
		DateCol:    0,
		DescCol:    1,
		DateFormat: "DD/MM/YYYY",
	}
	mapping := MappingFromProfile(profile)

	repo := &fakeImportRepo{}
	svc := newTestService(repo)

	_, err := svc.Import(context.Background(), uuid.New(), nil, "extracto.csv", []byte(spanishCSV), 2, mapping)
	if !errors.Is(err, ErrInvalidMapping) {
		t.Fatalf("expected ErrInvalidMapping, got %v", err)
	}
	if len(repo.jobs) != 0 {
		t.Errorf("no import job should be created for a rejected mapping, got %d", len(repo.jobs))
	}
}

func TestImport_FlagsAndSkipsDuplicates(t *testing.T) {
	var builder strings.Builder
	builder.WriteString("Fecha;Concepto;Importe\n")
	for i := 0; i < 48; i++ {
		builder.WriteString(fmt.Sprintf("02/01/2024;Movimiento %d;-%d,00\n", i, i+1))
	}
	// Two exact duplicates of earlier rows
	builder.WriteString("02/01/2024;Movimiento 3;-4,00\n")
	builder.WriteString("02/01/2024;Movimiento 7;-8,00\n")

	repo := &fakeImportRepo{}
	svc := newTestService(repo)

	result, err := svc.Import(context.Background(), uuid.New(), nil, "extracto.csv", []byte(builder.String()), 0, spanishMapping)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	if result.RowsImported != 48 {
		t.Errorf("expected 48 imported, got %d", result.RowsImported)
	}
	if result.RowsDuplicate != 2 {
		t.Errorf("expected 2 duplicates, got %d", result.RowsDuplicate)
	}
	if result.DuplicateStats.DuplicateGroups != 2 || result.DuplicateStats.Unique != 46 {
		t.Errorf("unexpected duplicate stats: %+v", result.DuplicateStats)
	}
	if got := repo.insertedCount(); got != 48 {
		t.Errorf("expected 48 persisted movements, got %d", got)
	}
	if repo.finishStatus != "succeeded" {
		t.Errorf("expected succeeded job, got %q", repo.finishStatus)
	}
}

func TestImport_SkipsHashesAlreadyStored(t *testing.T) {
	data := strings.Join([]string{
		"Fecha;Concepto;Importe",
		"02/01/2024;Compra Mercadona;-45,23",
		"03/01/2024;Recibo Luz;-60,10",
	}, "\n")

	repo := &fakeImportRepo{}
	svc := newTestService(repo)
	userID := uuid.New()

	// First import persists both rows
	first, err := svc.Import(context.Background(), userID, nil, "enero.csv", []byte(data), 0, spanishMapping)
	if err != nil {
		t.Fatalf("first Import failed: %v", err)
	}
	if first.RowsImported != 2 {
		t.Fatalf("expected 2 imported, got %d", first.RowsImported)
	}

	// Re-importing the same file finds every hash already stored
	second, err := svc.Import(context.Background(), userID, nil, "enero-otra-vez.csv", []byte(data), 0, spanishMapping)
	if err != nil {
		t.Fatalf("second Import failed: %v", err)
	}
	if second.RowsImported != 0 {
		t.Errorf("expected 0 imported on re-import, got %d", second.RowsImported)
	}
	if second.RowsDuplicate != 2 {
		t.Errorf("expected 2 duplicates on re-import, got %d", second.RowsDuplicate)
	}
}

func TestAnalyze_MatchesStoredProfile(t *testing.T) {
	repo := &fakeImportRepo{}
	svc := newTestService(repo)
	userID := uuid.New()

	first, err := svc.Analyze(context.Background(), userID, "extracto.csv", []byte(spanishCSV))
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if first.ProfileFound {
		t.Fatal("no profile should exist yet")
	}
	if first.Layout.SkipRows != 2 {
		t.Fatalf("expected 2 skip rows, got %d", first.Layout.SkipRows)
	}
	// Recognizable Spanish headers: suggestions alone allow auto-import
	if !first.CanAutoImport || first.FallbackRequired {
		t.Errorf("expected confident suggestions: %+v", first)
	}

	if _, err := svc.SaveProfile(context.Background(), userID, first.Layout.Fingerprint, "Banco Ejemplo", first.Layout.SkipRows, spanishMapping); err != nil {
		t.Fatalf("SaveProfile failed: %v", err)
	}

	second, err := svc.Analyze(context.Background(), userID, "extracto-feb.csv", []byte(spanishCSV))
	if err != nil {
		t.Fatalf("second Analyze failed: %v", err)
	}
	if !second.ProfileFound || !second.CanAutoImport {
		t.Errorf("expected stored profile to match: %+v", second)
	}

	mapping := MappingFromProfile(second.Profile)
	if mapping.AmountCol != spanishMapping.AmountCol || !mapping.IsEuropeanFormat {
		t.Errorf("profile round-trip lost mapping fields: %+v", mapping)
	}
}

func TestAnalyze_FallbackForUnknownLayout(t *testing.T) {
	data := strings.Join([]string{
		"Alpha;Beta;Gamma;Delta",
		"1;2;3;4",
		"5;6;7;8",
	}, "\n")

	repo := &fakeImportRepo{}
	svc := newTestService(repo)

	result, err := svc.Analyze(context.Background(), uuid.New(), "raro.csv", []byte(data))
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if !result.FallbackRequired {
		t.Errorf("expected FallbackRequired for unknown layout: %+v", result)
	}
	if result.CanAutoImport {
		t.Error("unknown layout must not auto-import")
	}
}

func mustGrid(t *testing.T, data string) [][]string {
	t.Helper()
	var rows [][]string
	for _, line := range strings.Split(strings.TrimRight(data, "\n"), "\n") {
		rows = append(rows, strings.Split(line, ";"))
	}
	return rows
}

// fakeImportRepo is an in-memory ImportRepository for service tests.
type fakeImportRepo struct {
	mu           sync.Mutex
	profiles     []*repository.BankProfile
	jobs         map[uuid.UUID]*repository.ImportJob
	movements    []*repository.StoredMovement
	finishStatus string
}

func (f *fakeImportRepo) GetProfileByFingerprint(ctx context.Context, fingerprint string, userID *uuid.UUID) (*repository.BankProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.profiles {
		if p.Fingerprint == fingerprint {
			return p, nil
		}
	}
	return nil, nil
}

func (f *fakeImportRepo) CreateProfile(ctx context.Context, profile *repository.BankProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if profile.ID == uuid.Nil {
		profile.ID = uuid.New()
	}
	f.profiles = append(f.profiles, profile)
	return nil
}

func (f *fakeImportRepo) UpdateProfile(ctx context.Context, profile *repository.BankProfile) error {
	return nil
}

func (f *fakeImportRepo) ListProfiles(ctx context.Context, userID uuid.UUID) ([]*repository.BankProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*repository.BankProfile(nil), f.profiles...), nil
}

func (f *fakeImportRepo) CreateImportJob(ctx context.Context, job *repository.ImportJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if f.jobs == nil {
		f.jobs = make(map[uuid.UUID]*repository.ImportJob)
	}
	f.jobs[job.ID] = job
	return nil
}

func (f *fakeImportRepo) GetImportJobByID(ctx context.Context, id uuid.UUID) (*repository.ImportJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.jobs[id], nil
}

func (f *fakeImportRepo) FinishImportJob(ctx context.Context, id uuid.UUID, status string, rowsImported, rowsSkipped, rowsDuplicate int, errorMessage *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finishStatus = status
	return nil
}

func (f *fakeImportRepo) BulkInsertMovements(ctx context.Context, userID uuid.UUID, accountID *uuid.UUID, jobID uuid.UUID, movements []*repository.StoredMovement) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.movements = append(f.movements, movements...)
	return len(movements), nil
}

func (f *fakeImportRepo) ExistingHashes(ctx context.Context, userID uuid.UUID, accountID *uuid.UUID, hashes []string) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := make(map[string]bool, len(f.movements))
	for _, m := range f.movements {
		stored[m.DuplicateHash] = true
	}
	existing := make(map[string]bool)
	for _, h := range hashes {
		if stored[h] {
			existing[h] = true
		}
	}
	return existing, nil
}

func (f *fakeImportRepo) insertedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.movements)
}
