package validate

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func validGasto() Record {
	propertyID := uuid.New()
	return Record{
		Kind:        KindGasto,
		Concept:     "Reparación caldera",
		Date:        time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		AmountCents: 4910,
		BaseCents:   4058,
		TaxCents:    852,
		Category:    "Reparación y Conservación",
		Origin:      OriginProperty,
		PropertyID:  &propertyID,
	}
}

func TestValidateGasto_ExactBasePlusTaxPasses(t *testing.T) {
	// 40,58 + 8,52 = 49,10 exactly
	res := ValidateGasto(validGasto())
	if !res.IsValid {
		t.Fatalf("expected valid record, errors: %v", res.Errors)
	}
	if len(res.Warnings) != 0 {
		t.Fatalf("expected zero warnings, got %v", res.Warnings)
	}
}

func TestValidateGasto_BasePlusTaxMismatchFails(t *testing.T) {
	r := validGasto()
	r.AmountCents = 15000
	r.BaseCents = 10000
	r.TaxCents = 4000 // sum 14000, diff 1000

	res := ValidateGasto(r)
	if res.IsValid {
		t.Fatal("expected invalid record")
	}
	found := false
	for _, e := range res.Errors {
		if strings.Contains(e, "no cuadra con base+IVA") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected base+IVA mismatch error, got %v", res.Errors)
	}
}

func TestValidateGasto_WithinTolerancePasses(t *testing.T) {
	r := validGasto()
	r.TaxCents = 850 // sum 4908, diff 2 cents

	res := ValidateGasto(r)
	if !res.IsValid {
		t.Fatalf("2-cent drift should pass, errors: %v", res.Errors)
	}
}

func TestValidateGasto_NonPositiveAmount(t *testing.T) {
	r := validGasto()
	r.AmountCents = 0
	r.BaseCents = 0
	r.TaxCents = 0

	res := ValidateGasto(r)
	if res.IsValid {
		t.Fatal("zero amount must be invalid")
	}
}

func TestValidateGasto_MissingLinkedProperty(t *testing.T) {
	r := validGasto()
	r.PropertyID = nil

	res := ValidateGasto(r)
	if res.IsValid {
		t.Fatal("property-origin record without property must be invalid")
	}
}

func TestValidateGasto_CapexCategoryWarns(t *testing.T) {
	r := validGasto()
	r.Category = "Mejora"

	res := ValidateGasto(r)
	if !res.IsValid {
		t.Fatalf("category mismatch must not block: %v", res.Errors)
	}
	if len(res.Warnings) == 0 {
		t.Error("expected CAPEX-category warning")
	}
}

func TestValidateIngreso(t *testing.T) {
	accountID := uuid.New()
	r := Record{
		Kind:        KindIngreso,
		Concept:     "Alquiler marzo",
		Date:        time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		AmountCents: 95000,
		Origin:      OriginAccount,
		AccountID:   &accountID,
	}

	res := ValidateIngreso(r)
	if !res.IsValid {
		t.Fatalf("expected valid ingreso, errors: %v", res.Errors)
	}

	r.AccountID = nil
	if res := ValidateIngreso(r); res.IsValid {
		t.Fatal("account-origin ingreso without account must be invalid")
	}

	r.Origin = OriginPersonal
	if res := ValidateIngreso(r); !res.IsValid {
		t.Fatalf("personal ingreso needs no linked entity: %v", res.Errors)
	}
}

func TestValidateCAPEX(t *testing.T) {
	r := validGasto()
	r.Kind = KindCAPEX
	r.Category = "Mejora"

	res := ValidateCAPEX(r)
	if !res.IsValid {
		t.Fatalf("expected valid CAPEX, errors: %v", res.Errors)
	}

	r.PropertyID = nil
	if res := ValidateCAPEX(r); res.IsValid {
		t.Fatal("CAPEX without property must be invalid")
	}
}

func TestValidateCAPEX_NonCapexCategoryWarns(t *testing.T) {
	r := validGasto()
	r.Kind = KindCAPEX
	r.Category = "Suministros"

	res := ValidateCAPEX(r)
	if !res.IsValid {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	if len(res.Warnings) == 0 {
		t.Error("expected non-CAPEX category warning")
	}
}

func TestValidation_Warnings(t *testing.T) {
	r := validGasto()
	r.AmountCents = 2_000_000
	r.BaseCents = 0
	r.TaxCents = 0

	res := ValidateGasto(r)
	if !res.IsValid {
		t.Fatalf("high value must warn, not block: %v", res.Errors)
	}
	if len(res.Warnings) == 0 {
		t.Error("expected high-value warning")
	}

	r = validGasto()
	r.Date = time.Date(2005, 1, 1, 0, 0, 0, 0, time.UTC)
	res = ValidateGasto(r)
	if !res.IsValid || len(res.Warnings) == 0 {
		t.Errorf("stale date must warn, not block: %+v", res)
	}
}

func TestValidation_Idempotent(t *testing.T) {
	r := validGasto()
	r.AmountCents = 15000
	r.BaseCents = 10000
	r.TaxCents = 4000

	first := ValidateGasto(r)
	second := ValidateGasto(r)

	if len(first.Errors) != len(second.Errors) {
		t.Fatal("error lists differ across runs")
	}
	for i := range first.Errors {
		if first.Errors[i] != second.Errors[i] {
			t.Errorf("error %d differs: %q vs %q", i, first.Errors[i], second.Errors[i])
		}
	}
}

func TestValidateBatch(t *testing.T) {
	good := validGasto()
	bad := validGasto()
	bad.Concept = ""
	warned := validGasto()
	warned.Category = "Mejora"

	ingreso := Record{
		Kind:        KindIngreso,
		Concept:     "Alquiler",
		Date:        time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		AmountCents: 90000,
		Origin:      OriginPersonal,
	}

	summary := ValidateBatch([]Record{good, bad, warned, ingreso})

	if summary.Total != 4 {
		t.Errorf("expected total 4, got %d", summary.Total)
	}
	if summary.Valid != 3 || summary.Invalid != 1 {
		t.Errorf("unexpected valid/invalid: %d/%d", summary.Valid, summary.Invalid)
	}
	if summary.Warned != 1 {
		t.Errorf("expected 1 warned, got %d", summary.Warned)
	}
	if len(summary.Results) != 4 {
		t.Errorf("expected per-record results, got %d", len(summary.Results))
	}
}

func TestValidateBatch_UnknownKind(t *testing.T) {
	summary := ValidateBatch([]Record{{Kind: "otro"}})
	if summary.Invalid != 1 {
		t.Errorf("unknown kind must be invalid: %+v", summary)
	}
}
