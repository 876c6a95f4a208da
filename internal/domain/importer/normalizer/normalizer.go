// Package normalizer handles regional money and date parsing.
// Converts Spanish-locale bank statement values into canonical representations.
package normalizer

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	ErrInvalidAmount = errors.New("invalid amount format")
	ErrInvalidDate   = errors.New("invalid date format")
)

// ParseAmount converts a string amount to cents (int64).
// Supports both European (1.234,56) and American (1,234.56) formats.
// A blank cell parses to zero; anything malformed is an explicit error,
// never a silent zero.
func ParseAmount(raw string, isEuropean bool) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}

	// Keep digits, comma, period, and minus; drops currency symbols and spaces
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) || r == ',' || r == '.' || r == '-' {
			return r
		}
		return -1
	}, raw)

	if cleaned == "" || cleaned == "-" {
		return 0, ErrInvalidAmount
	}

	isNegative := strings.HasPrefix(cleaned, "-")
	cleaned = strings.TrimPrefix(cleaned, "-")
	if strings.Contains(cleaned, "-") {
		return 0, ErrInvalidAmount
	}

	if isEuropean {
		// European: 1.234,56 -> 1234.56
		// Thousands separators stripped before the decimal comma converts
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	} else {
		// American: 1,234.56 -> 1234.56
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}

	val, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}

	cents := int64(math.Round(val * 100))
	if isNegative {
		cents = -cents
	}

	return cents, nil
}

// NormalizeDebitCredit merges separate debit and credit columns into a single
// signed amount. Debit = negative (money out), Credit = positive (money in).
func NormalizeDebitCredit(debitStr, creditStr string, isEuropean bool) (int64, error) {
	debitStr = strings.TrimSpace(debitStr)
	creditStr = strings.TrimSpace(creditStr)

	if debitStr != "" {
		amount, err := ParseAmount(debitStr, isEuropean)
		if err != nil {
			return 0, err
		}
		if amount > 0 {
			amount = -amount
		}
		return amount, nil
	}

	if creditStr != "" {
		amount, err := ParseAmount(creditStr, isEuropean)
		if err != nil {
			return 0, err
		}
		if amount < 0 {
			amount = -amount
		}
		return amount, nil
	}

	return 0, nil
}

// Common date formats used by Spanish and European banks
var dateFormats = []string{
	// European (DD/MM/YYYY variants)
	"02/01/2006",
	"02-01-2006",
	"02.01.2006",
	"2/1/2006",
	"2-1-2006",

	// ISO (YYYY-MM-DD)
	"2006-01-02",
	"2006/01/02",

	// With time
	"02/01/2006 15:04",
	"02-01-2006 15:04",
	"2006-01-02 15:04:05",
}

// ParseDate attempts to parse a date using the preferred format first,
// then all known formats.
func ParseDate(raw string, preferredFormat string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, ErrInvalidDate
	}

	if loc == nil {
		loc = time.UTC
	}

	if preferredFormat != "" {
		goFormat := convertDateFormat(preferredFormat)
		if t, err := time.ParseInLocation(goFormat, raw, loc); err == nil {
			return t, nil
		}
	}

	for _, format := range dateFormats {
		if t, err := time.ParseInLocation(format, raw, loc); err == nil {
			return t, nil
		}
	}

	return time.Time{}, ErrInvalidDate
}

// ISODate renders a date in canonical yyyy-mm-dd form.
func ISODate(t time.Time) string {
	return t.Format("2006-01-02")
}

// convertDateFormat converts user-friendly format strings to Go layout
// e.g., "DD/MM/YYYY" -> "02/01/2006"
func convertDateFormat(format string) string {
	replacements := map[string]string{
		"YYYY": "2006",
		"YY":   "06",
		"MM":   "01",
		"DD":   "02",
		"HH":   "15",
		"mm":   "04",
		"ss":   "05",
	}

	result := format
	for pattern, goFmt := range replacements {
		result = strings.ReplaceAll(result, pattern, goFmt)
	}
	return result
}

// DetectDateFormat attempts to guess the date format from sample data
func DetectDateFormat(samples []string) string {
	if len(samples) == 0 {
		return "DD/MM/YYYY"
	}

	sample := strings.TrimSpace(samples[0])

	ddmmyyyyPattern := regexp.MustCompile(`^\d{1,2}[-/]\d{1,2}[-/]\d{4}$`)
	isoPattern := regexp.MustCompile(`^\d{4}[-/]\d{1,2}[-/]\d{1,2}$`)

	if isoPattern.MatchString(sample) {
		if strings.Contains(sample, "/") {
			return "YYYY/MM/DD"
		}
		return "YYYY-MM-DD"
	}

	if ddmmyyyyPattern.MatchString(sample) {
		if strings.Contains(sample, "/") {
			return "DD/MM/YYYY"
		}
		return "DD-MM-YYYY"
	}

	return "DD/MM/YYYY"
}

// DetectNumberFormat guesses whether sample amounts use the European
// decimal comma. A comma followed by exactly two trailing digits wins.
func DetectNumberFormat(samples []string) bool {
	europeanPattern := regexp.MustCompile(`\d,\d{2}$`)
	americanPattern := regexp.MustCompile(`\d\.\d{2}$`)

	for _, s := range samples {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if europeanPattern.MatchString(s) {
			return true
		}
		if americanPattern.MatchString(s) {
			return false
		}
	}
	return true
}

var (
	accentStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	punctPattern   = regexp.MustCompile(`[^\p{L}\p{N} ]+`)
	spacePattern   = regexp.MustCompile(`\s+`)
)

// NormalizeDescription canonicalizes merchant/concept text: lowercase,
// accents stripped, punctuation and runs of whitespace collapsed to single
// spaces. Two cosmetically different renderings of the same concept
// normalize to the same string, which is what the duplicate hash relies on.
func NormalizeDescription(raw string) string {
	result := strings.ToLower(strings.TrimSpace(raw))

	if stripped, _, err := transform.String(accentStripper, result); err == nil {
		result = stripped
	}

	result = punctPattern.ReplaceAllString(result, " ")
	result = spacePattern.ReplaceAllString(result, " ")

	return strings.TrimSpace(result)
}

// CleanDescription trims and collapses whitespace without losing case or
// accents. Used for the stored description; NormalizeDescription is for
// hashing only.
func CleanDescription(raw string) string {
	result := strings.TrimSpace(raw)
	result = spacePattern.ReplaceAllString(result, " ")
	return result
}
