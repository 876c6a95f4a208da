package inbox

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/inmofin/inmofin/internal/domain/treasury/validate"
)

// AEAT expense categories.
const (
	CategoryMejora     = "Mejora"
	CategoryMobiliario = "Mobiliario"
	CategoryReparacion = "Reparación y Conservación"
)

// 3.000,00 EUR and up defaults to Mejora.
const categoryThresholdCents = 300_000

// Keyword tables for invoice classification. Editable heuristics; a miss
// falls through to Reparación y Conservación.
var (
	mejoraKeywords = []string{
		"reforma", "ampliacion", "ampliación", "obra", "instalacion nueva",
		"instalación nueva", "rehabilitacion", "rehabilitación",
	}
	mobiliarioKeywords = []string{
		"mueble", "mobiliario", "electrodomestico", "electrodoméstico",
		"sofa", "sofá", "colchon", "colchón", "armario", "nevera", "lavadora",
	}
)

// Assignment is the user's explicit filing decision for a document.
type Assignment struct {
	PropertyID *uuid.UUID
	AccountID  *uuid.UUID
	IsPersonal bool
}

// Destination describes where a routed document was filed.
type Destination struct {
	Scope      Scope      `json:"scope"`
	PropertyID *uuid.UUID `json:"property_id,omitempty"`
	AccountID  *uuid.UUID `json:"account_id,omitempty"`
	Section    string     `json:"section"` // "fiscal", "treasury", "archive"
	Category   string     `json:"category,omitempty"`
}

// RoutingResult is the outcome of routing one inbox item.
type RoutingResult struct {
	Success                  bool         `json:"success"`
	Destination              *Destination `json:"destination,omitempty"`
	Message                  string       `json:"message"`
	Warnings                 []string     `json:"warnings,omitempty"`
	MissingFields            []string     `json:"missing_fields,omitempty"`
	RequiresManualAssignment bool         `json:"requires_manual_assignment,omitempty"`

	// Side effects for the caller to persist.
	FiscalEntry   *validate.Record `json:"-"`
	TreasuryEntry *validate.Record `json:"-"`
}

// Route decides the filing destination and side effects for an inbox item.
// The assignment must name a property or declare the document personal;
// otherwise routing is refused with RequiresManualAssignment.
func Route(item *Item, assignment Assignment) RoutingResult {
	if assignment.PropertyID == nil && !assignment.IsPersonal {
		return RoutingResult{
			Message:                  "el documento necesita un destino: inmueble o personal",
			RequiresManualAssignment: true,
		}
	}

	switch item.Extracted.Kind {
	case KindInvoice:
		return routeInvoice(item, assignment)
	case KindContract:
		return routeContract(item, assignment)
	case KindBankStatement:
		return routeBankStatement(item, assignment)
	default:
		return routeArchive(item, assignment)
	}
}

func routeInvoice(item *Item, assignment Assignment) RoutingResult {
	ex := item.Extracted

	var missing []string
	if ex.AmountCents == 0 {
		missing = append(missing, "amount")
	}
	if ex.Provider == "" {
		missing = append(missing, "provider")
	}
	if ex.IssueDate == nil {
		missing = append(missing, "date")
	}
	if len(missing) > 0 {
		return RoutingResult{
			Message:       "la factura no tiene todos los campos necesarios",
			MissingFields: missing,
		}
	}

	category := ClassifyInvoice(ex.RawText+" "+ex.Provider, ex.AmountCents)

	var warnings []string
	if ex.BaseCents != 0 || ex.TaxCents != 0 {
		diff := ex.BaseCents + ex.TaxCents - ex.AmountCents
		if diff < 0 {
			diff = -diff
		}
		// Divergence is a warning, not an error: OCR bases are unreliable
		if diff > 2 {
			warnings = append(warnings, fmt.Sprintf(
				"base+IVA (%d) no cuadra con el total (%d)", ex.BaseCents+ex.TaxCents, ex.AmountCents))
		}
	}

	scope := ScopePersonal
	if assignment.PropertyID != nil {
		scope = ScopeProperty
	}

	dest := &Destination{
		Scope:      scope,
		PropertyID: assignment.PropertyID,
		Section:    "fiscal",
		Category:   category,
	}

	fiscalKind := validate.KindGasto
	if category == CategoryMejora || category == CategoryMobiliario {
		fiscalKind = validate.KindCAPEX
	}

	origin := validate.OriginPersonal
	if assignment.PropertyID != nil {
		origin = validate.OriginProperty
	}

	fiscal := &validate.Record{
		Kind:        fiscalKind,
		Concept:     ex.Provider,
		Date:        *ex.IssueDate,
		AmountCents: ex.AmountCents,
		BaseCents:   ex.BaseCents,
		TaxCents:    ex.TaxCents,
		Category:    category,
		Origin:      origin,
		PropertyID:  assignment.PropertyID,
	}

	treasury := &validate.Record{
		Kind:        validate.KindGasto,
		Concept:     ex.Provider,
		Date:        *ex.IssueDate,
		AmountCents: ex.AmountCents,
		Origin:      origin,
		PropertyID:  assignment.PropertyID,
		AccountID:   assignment.AccountID,
	}

	return RoutingResult{
		Success:       true,
		Destination:   dest,
		Message:       fmt.Sprintf("factura archivada como %s", category),
		Warnings:      warnings,
		FiscalEntry:   fiscal,
		TreasuryEntry: treasury,
	}
}

// routeContract requires a concrete property: contracts never file under
// the personal scope.
func routeContract(item *Item, assignment Assignment) RoutingResult {
	if assignment.PropertyID == nil {
		return RoutingResult{
			Message:                  "un contrato debe asociarse a un inmueble concreto",
			RequiresManualAssignment: true,
		}
	}

	return RoutingResult{
		Success: true,
		Destination: &Destination{
			Scope:      ScopeProperty,
			PropertyID: assignment.PropertyID,
			Section:    "archive",
		},
		Message: "contrato archivado en el inmueble",
	}
}

// routeBankStatement requires a resolved target account to create movements.
func routeBankStatement(item *Item, assignment Assignment) RoutingResult {
	if assignment.AccountID == nil {
		return RoutingResult{
			Message:                  "el extracto necesita una cuenta de destino",
			RequiresManualAssignment: true,
		}
	}

	scope := ScopePersonal
	if assignment.PropertyID != nil {
		scope = ScopeProperty
	}

	return RoutingResult{
		Success: true,
		Destination: &Destination{
			Scope:      scope,
			PropertyID: assignment.PropertyID,
			AccountID:  assignment.AccountID,
			Section:    "treasury",
		},
		Message: "extracto listo para importar movimientos",
	}
}

// routeArchive files anything unrecognized under the assigned scope with no
// further validation.
func routeArchive(item *Item, assignment Assignment) RoutingResult {
	scope := ScopePersonal
	if assignment.PropertyID != nil {
		scope = ScopeProperty
	}

	return RoutingResult{
		Success: true,
		Destination: &Destination{
			Scope:      scope,
			PropertyID: assignment.PropertyID,
			Section:    "archive",
		},
		Message: "documento archivado",
	}
}

// ClassifyInvoice picks an AEAT category from keyword and amount
// heuristics: improvement keywords or a high amount mean Mejora, furniture
// keywords mean Mobiliario, everything else Reparación y Conservación.
func ClassifyInvoice(text string, amountCents int64) string {
	lower := strings.ToLower(text)

	for _, kw := range mejoraKeywords {
		if strings.Contains(lower, kw) {
			return CategoryMejora
		}
	}
	for _, kw := range mobiliarioKeywords {
		if strings.Contains(lower, kw) {
			return CategoryMobiliario
		}
	}
	if amountCents >= categoryThresholdCents {
		return CategoryMejora
	}

	return CategoryReparacion
}
