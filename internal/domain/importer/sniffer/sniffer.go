// Package sniffer locates the header row of an uploaded bank statement and
// fingerprints its layout so a saved profile can be matched on re-import.
package sniffer

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"unicode"
)

// Synonym dictionary for semantic column matching (Spanish first, plus
// English and Portuguese variants seen in the wild). Editable heuristics,
// not a guaranteed-correct classifier.
var (
	dateSynonyms = []string{
		"fecha", "fecha operacion", "fecha operación", "f. valor", "fecha valor",
		"data mov", "data valor", "date",
	}
	descSynonyms = []string{
		"concepto", "descripcion", "descripción", "descrição", "descricao",
		"description", "merchant", "detalle",
	}
	amountSynonyms = []string{
		"importe", "importe (€)", "amount", "valor", "montante", "cantidad",
	}
	debitSynonyms = []string{
		"cargo", "cargos", "débito", "debito", "debit", "pagos",
	}
	creditSynonyms = []string{
		"abono", "abonos", "crédito", "credito", "credit", "ingresos",
	}
	balanceSynonyms = []string{
		"saldo", "balance", "saldo disponible",
	}
)

const (
	// minHeaderScore is the confidence floor below which a row is not
	// accepted as a header row and fallback mapping is requested.
	minHeaderScore = 0.5

	// maxScanRows bounds the downward scan past logo/free-text noise.
	maxScanRows = 25
)

var (
	ErrEmptyFile      = errors.New("file is empty")
	ErrNoHeadersFound = errors.New("could not find data headers")
)

// Layout describes the detected structure of an uploaded statement grid.
type Layout struct {
	HeaderRow   int        // Row index of the detected header row
	SkipRows    int        // Noise rows before the header (== HeaderRow)
	Headers     []string   // Trimmed header cell text
	Confidence  float64    // Header-row score in [0,1]
	Fingerprint string     // SHA256 hash of normalized header text set
	SampleRows  [][]string // First few data rows for preview
}

// ColumnSuggestions provides auto-detected column indices; -1 means not found.
type ColumnSuggestions struct {
	DateCol       int
	DescCol       int
	AmountCol     int
	DebitCol      int
	CreditCol     int
	IsDoubleEntry bool

	// FallbackRequired is set when the scorer's confidence is below the
	// acceptance floor; the caller should present manual mapping.
	FallbackRequired bool
}

// DetectLayout scans the grid downward for the row that most looks like a
// set of column headers. Leading free-text rows (bank logos, account
// metadata) score low and are skipped; the first row at or above the
// confidence floor wins.
func DetectLayout(grid [][]string) (*Layout, error) {
	if len(grid) == 0 {
		return nil, ErrEmptyFile
	}

	bestRow := -1
	bestScore := 0.0

	limit := len(grid)
	if limit > maxScanRows {
		limit = maxScanRows
	}

	for i := 0; i < limit; i++ {
		score := scoreHeaderRow(grid[i])
		if score > bestScore {
			bestScore = score
			bestRow = i
		}
		if score >= minHeaderScore {
			bestRow = i
			bestScore = score
			break
		}
	}

	if bestRow < 0 || bestScore < minHeaderScore {
		return nil, ErrNoHeadersFound
	}

	headers := make([]string, len(grid[bestRow]))
	for i, h := range grid[bestRow] {
		headers[i] = strings.TrimSpace(h)
	}

	return &Layout{
		HeaderRow:   bestRow,
		SkipRows:    bestRow,
		Headers:     headers,
		Confidence:  bestScore,
		Fingerprint: Fingerprint(headers),
		SampleRows:  sampleRows(grid, bestRow+1, 5),
	}, nil
}

// scoreHeaderRow rates how header-like a row is: the fraction of non-blank
// cells that match a known column synonym, zeroed for rows with fewer than
// two usable cells.
func scoreHeaderRow(row []string) float64 {
	nonBlank := 0
	matched := 0

	for _, cell := range row {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		nonBlank++
		if matchesAnySynonym(cell) {
			matched++
		}
	}

	if nonBlank < 2 {
		return 0
	}

	return float64(matched) / float64(nonBlank)
}

func matchesAnySynonym(cell string) bool {
	h := strings.ToLower(strings.TrimSpace(cell))
	for _, group := range [][]string{
		dateSynonyms, descSynonyms, amountSynonyms,
		debitSynonyms, creditSynonyms, balanceSynonyms,
	} {
		for _, syn := range group {
			if strings.Contains(h, syn) {
				return true
			}
		}
	}
	return false
}

// SuggestColumns attempts to auto-match columns based on header names.
func SuggestColumns(headers []string) *ColumnSuggestions {
	suggestions := &ColumnSuggestions{
		DateCol:   -1,
		DescCol:   -1,
		AmountCol: -1,
		DebitCol:  -1,
		CreditCol: -1,
	}

	for i, header := range headers {
		h := strings.ToLower(strings.TrimSpace(header))
		if h == "" {
			continue
		}

		if suggestions.DateCol == -1 && containsAny(h, dateSynonyms) {
			suggestions.DateCol = i
		}
		if suggestions.DescCol == -1 && containsAny(h, descSynonyms) {
			suggestions.DescCol = i
		}
		if suggestions.DebitCol == -1 && containsAny(h, debitSynonyms) {
			suggestions.DebitCol = i
		}
		if suggestions.CreditCol == -1 && containsAny(h, creditSynonyms) {
			suggestions.CreditCol = i
		}
		if suggestions.AmountCol == -1 && containsAny(h, amountSynonyms) {
			suggestions.AmountCol = i
		}
	}

	suggestions.IsDoubleEntry = suggestions.DebitCol != -1 && suggestions.CreditCol != -1

	hasAmount := suggestions.AmountCol != -1 || suggestions.IsDoubleEntry
	suggestions.FallbackRequired = suggestions.DateCol == -1 || suggestions.DescCol == -1 || !hasAmount

	return suggestions
}

func containsAny(h string, synonyms []string) bool {
	for _, syn := range synonyms {
		if strings.Contains(h, syn) {
			return true
		}
	}
	return false
}

// Fingerprint creates a stable hash from header names. Two files with the
// same layout fingerprint identically regardless of casing or punctuation,
// which is how saved bank profiles are recognized on repeat imports.
func Fingerprint(headers []string) string {
	var normalized []string
	for _, h := range headers {
		clean := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return unicode.ToLower(r)
			}
			return -1
		}, h)
		if clean != "" {
			normalized = append(normalized, clean)
		}
	}

	joined := strings.Join(normalized, "|")
	hash := sha256.Sum256([]byte(joined))
	return hex.EncodeToString(hash[:])
}

// sampleRows returns up to maxRows non-blank data rows after the header.
func sampleRows(grid [][]string, start, maxRows int) [][]string {
	var rows [][]string
	for i := start; i < len(grid) && len(rows) < maxRows; i++ {
		if IsBlankRow(grid[i]) {
			continue
		}
		rows = append(rows, grid[i])
	}
	return rows
}

// IsBlankRow reports whether every cell in the row is empty or whitespace.
// Blank rows inside the data region are ignored, not treated as termination.
func IsBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
