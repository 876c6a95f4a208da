// Package validate checks business-rule invariants for treasury records
// (ingresos, gastos, CAPEX) before they are persisted. All validators are
// pure functions: hard errors block persistence, warnings do not.
package validate

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	// taxToleranceCents is the allowed drift between base+IVA and total.
	taxToleranceCents = 2

	// highValueCents flags unusually large amounts for review.
	highValueCents = 1_000_000 // 10.000,00 EUR

	// staleDateYears flags dates suspiciously far in the past.
	staleDateYears = 10
)

// RecordKind identifies which validator applies to a treasury record.
type RecordKind string

const (
	KindIngreso RecordKind = "ingreso"
	KindGasto   RecordKind = "gasto"
	KindCAPEX   RecordKind = "capex"
)

// OriginType describes where a record points; some origins require a
// linked entity ID.
type OriginType string

const (
	OriginProperty OriginType = "property"
	OriginAccount  OriginType = "account"
	OriginPersonal OriginType = "personal"
)

// CAPEX AEAT categories amortized over multiple years.
var capexCategories = map[string]bool{
	"Mejora":     true,
	"Mobiliario": true,
}

// Record is a partial treasury record under validation. Cents fields are
// zero when absent; pointer fields distinguish absent from zero where the
// distinction matters.
type Record struct {
	Kind        RecordKind
	Concept     string
	Date        time.Time
	AmountCents int64 // total amount, always positive for valid records
	BaseCents   int64 // taxable base, optional
	TaxCents    int64 // IVA, optional
	Category    string
	Origin      OriginType
	PropertyID  *uuid.UUID
	AccountID   *uuid.UUID
}

// Result carries the outcome of validating one record. Error and warning
// order is deterministic; validating the same record twice yields identical
// lists.
type Result struct {
	IsValid  bool     `json:"is_valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// BatchSummary aggregates validation over a batch of records.
type BatchSummary struct {
	Total   int      `json:"total"`
	Valid   int      `json:"valid"`
	Invalid int      `json:"invalid"`
	Warned  int      `json:"warned"`
	Results []Result `json:"results"`
}

// ValidateIngreso checks an income record.
func ValidateIngreso(r Record) Result {
	res := Result{}
	requireCommon(&res, r)
	requireLinkedEntity(&res, r)
	warnCommon(&res, r)
	res.IsValid = len(res.Errors) == 0
	return res
}

// ValidateGasto checks a regular expense record.
func ValidateGasto(r Record) Result {
	res := Result{}
	requireCommon(&res, r)
	requireLinkedEntity(&res, r)
	checkBasePlusTax(&res, r)
	if capexCategories[r.Category] {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("categoría %q es de CAPEX; considere registrarlo como inversión", r.Category))
	}
	warnCommon(&res, r)
	res.IsValid = len(res.Errors) == 0
	return res
}

// ValidateCAPEX checks a capital-expenditure record. CAPEX must always be
// tied to a property: the improvement amortizes against it.
func ValidateCAPEX(r Record) Result {
	res := Result{}
	requireCommon(&res, r)
	if r.PropertyID == nil {
		res.Errors = append(res.Errors, "CAPEX requiere un inmueble asociado")
	}
	checkBasePlusTax(&res, r)
	if r.Category != "" && !capexCategories[r.Category] {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("categoría %q no es una categoría CAPEX habitual", r.Category))
	}
	warnCommon(&res, r)
	res.IsValid = len(res.Errors) == 0
	return res
}

// ValidateBatch runs the appropriate validator per record and aggregates a
// summary of total/valid/invalid/warned counts.
func ValidateBatch(records []Record) BatchSummary {
	summary := BatchSummary{Total: len(records), Results: make([]Result, 0, len(records))}

	for _, r := range records {
		var res Result
		switch r.Kind {
		case KindIngreso:
			res = ValidateIngreso(r)
		case KindGasto:
			res = ValidateGasto(r)
		case KindCAPEX:
			res = ValidateCAPEX(r)
		default:
			res = Result{Errors: []string{fmt.Sprintf("tipo de registro desconocido: %q", r.Kind)}}
		}

		if res.IsValid {
			summary.Valid++
		} else {
			summary.Invalid++
		}
		if len(res.Warnings) > 0 {
			summary.Warned++
		}
		summary.Results = append(summary.Results, res)
	}

	return summary
}

func requireCommon(res *Result, r Record) {
	if r.Concept == "" {
		res.Errors = append(res.Errors, "el concepto es obligatorio")
	}
	if r.Date.IsZero() {
		res.Errors = append(res.Errors, "la fecha es obligatoria")
	}
	if r.AmountCents <= 0 {
		res.Errors = append(res.Errors, "el importe debe ser mayor que cero")
	}
}

func requireLinkedEntity(res *Result, r Record) {
	switch r.Origin {
	case OriginProperty:
		if r.PropertyID == nil {
			res.Errors = append(res.Errors, "falta el inmueble asociado al registro")
		}
	case OriginAccount:
		if r.AccountID == nil {
			res.Errors = append(res.Errors, "falta la cuenta asociada al registro")
		}
	}
}

// checkBasePlusTax verifies base + IVA ≈ total when both components are
// present. Divergence beyond the tolerance blocks persistence.
func checkBasePlusTax(res *Result, r Record) {
	if r.BaseCents == 0 && r.TaxCents == 0 {
		return
	}

	diff := r.BaseCents + r.TaxCents - r.AmountCents
	if diff < 0 {
		diff = -diff
	}
	if diff > taxToleranceCents {
		res.Errors = append(res.Errors, fmt.Sprintf(
			"el total (%d) no cuadra con base+IVA (%d): diferencia de %d céntimos",
			r.AmountCents, r.BaseCents+r.TaxCents, diff))
	}
}

func warnCommon(res *Result, r Record) {
	if r.AmountCents > highValueCents {
		res.Warnings = append(res.Warnings, "importe inusualmente alto; revise antes de guardar")
	}
	if !r.Date.IsZero() && time.Since(r.Date) > staleDateYears*365*24*time.Hour {
		res.Warnings = append(res.Warnings, "la fecha es muy antigua; compruebe que es correcta")
	}
}
