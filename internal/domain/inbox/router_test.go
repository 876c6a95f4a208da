package inbox

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/inmofin/inmofin/internal/domain/treasury/validate"
)

func invoiceItem() *Item {
	date := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	return &Item{
		ID:        uuid.New(),
		FileName:  "factura.pdf",
		OCRStatus: StatusOK,
		Extracted: Extracted{
			Kind:        KindInvoice,
			Provider:    "Fontanería García SL",
			IssueDate:   &date,
			AmountCents: 4910,
			BaseCents:   4058,
			TaxCents:    852,
			RawText:     "Factura por reparación de caldera",
		},
	}
}

func TestRoute_NoAssignmentRequiresManual(t *testing.T) {
	result := Route(invoiceItem(), Assignment{})

	if result.Success {
		t.Fatal("routing without assignment must fail")
	}
	if !result.RequiresManualAssignment {
		t.Error("expected RequiresManualAssignment")
	}
}

func TestRoute_InvoiceToProperty(t *testing.T) {
	propertyID := uuid.New()
	result := Route(invoiceItem(), Assignment{PropertyID: &propertyID})

	if !result.Success {
		t.Fatalf("expected success: %+v", result)
	}
	if result.Destination.Scope != ScopeProperty || result.Destination.Section != "fiscal" {
		t.Errorf("unexpected destination: %+v", result.Destination)
	}
	// 40,58 + 8,52 = 49,10 exactly: no warnings
	if len(result.Warnings) != 0 {
		t.Errorf("expected no warnings, got %v", result.Warnings)
	}
	if result.FiscalEntry == nil || result.TreasuryEntry == nil {
		t.Fatal("invoice routing must produce fiscal and treasury entries")
	}
	if result.FiscalEntry.Kind != validate.KindGasto {
		t.Errorf("plain repair should be a gasto, got %s", result.FiscalEntry.Kind)
	}
}

func TestRoute_InvoiceBaseTaxDivergenceWarns(t *testing.T) {
	item := invoiceItem()
	item.Extracted.TaxCents = 900 // sum 4958, total 4910

	propertyID := uuid.New()
	result := Route(item, Assignment{PropertyID: &propertyID})

	if !result.Success {
		t.Fatalf("divergence must warn, not fail: %+v", result)
	}
	if len(result.Warnings) != 1 {
		t.Errorf("expected one warning, got %v", result.Warnings)
	}
}

func TestRoute_InvoiceMissingFields(t *testing.T) {
	item := invoiceItem()
	item.Extracted.Provider = ""
	item.Extracted.AmountCents = 0

	propertyID := uuid.New()
	result := Route(item, Assignment{PropertyID: &propertyID})

	if result.Success {
		t.Fatal("invoice without amount/provider must not route")
	}
	if len(result.MissingFields) != 2 {
		t.Errorf("expected amount and provider missing, got %v", result.MissingFields)
	}
}

func TestRoute_InvoiceReformIsCapex(t *testing.T) {
	item := invoiceItem()
	item.Extracted.RawText = "Reforma integral de cocina"
	item.Extracted.AmountCents = 850000
	item.Extracted.BaseCents = 0
	item.Extracted.TaxCents = 0

	propertyID := uuid.New()
	result := Route(item, Assignment{PropertyID: &propertyID})

	if !result.Success {
		t.Fatalf("expected success: %+v", result)
	}
	if result.Destination.Category != CategoryMejora {
		t.Errorf("expected Mejora, got %s", result.Destination.Category)
	}
	if result.FiscalEntry.Kind != validate.KindCAPEX {
		t.Errorf("Mejora must produce a CAPEX entry, got %s", result.FiscalEntry.Kind)
	}
}

func TestRoute_ContractPersonalRequiresManual(t *testing.T) {
	item := invoiceItem()
	item.Extracted.Kind = KindContract

	result := Route(item, Assignment{IsPersonal: true})

	if result.Success {
		t.Fatal("personal contract must not route")
	}
	if !result.RequiresManualAssignment {
		t.Error("expected RequiresManualAssignment for personal contract")
	}
}

func TestRoute_ContractToProperty(t *testing.T) {
	item := invoiceItem()
	item.Extracted.Kind = KindContract

	propertyID := uuid.New()
	result := Route(item, Assignment{PropertyID: &propertyID})

	if !result.Success {
		t.Fatalf("expected success: %+v", result)
	}
	if result.Destination.Section != "archive" || result.Destination.Scope != ScopeProperty {
		t.Errorf("unexpected destination: %+v", result.Destination)
	}
}

func TestRoute_BankStatementNeedsAccount(t *testing.T) {
	item := invoiceItem()
	item.Extracted.Kind = KindBankStatement

	result := Route(item, Assignment{IsPersonal: true})
	if result.Success || !result.RequiresManualAssignment {
		t.Errorf("statement without account must require manual assignment: %+v", result)
	}

	accountID := uuid.New()
	result = Route(item, Assignment{IsPersonal: true, AccountID: &accountID})
	if !result.Success || result.Destination.Section != "treasury" {
		t.Errorf("statement with account must route to treasury: %+v", result)
	}
}

func TestRoute_OtherArchivesWithoutValidation(t *testing.T) {
	item := invoiceItem()
	item.Extracted = Extracted{Kind: KindOther}

	result := Route(item, Assignment{IsPersonal: true})
	if !result.Success {
		t.Fatalf("expected archive success: %+v", result)
	}
	if result.Destination.Scope != ScopePersonal || result.Destination.Section != "archive" {
		t.Errorf("unexpected destination: %+v", result.Destination)
	}
}

func TestClassifyInvoice(t *testing.T) {
	tests := []struct {
		text     string
		amount   int64
		expected string
	}{
		{"reforma integral del baño", 50000, CategoryMejora},
		{"compra de sofá y colchón", 80000, CategoryMobiliario},
		{"revisión anual caldera", 12000, CategoryReparacion},
		{"obra civil", 10000, CategoryMejora},
		{"pintura y pequeños arreglos", 500000, CategoryMejora}, // over threshold
	}

	for _, tc := range tests {
		if got := ClassifyInvoice(tc.text, tc.amount); got != tc.expected {
			t.Errorf("ClassifyInvoice(%q, %d) = %s, want %s", tc.text, tc.amount, got, tc.expected)
		}
	}
}
