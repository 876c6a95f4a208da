// Package dedup flags repeated movements inside an import batch.
//
// Two movements are the same logical transaction when date, amount, and the
// normalized description hash identically; matching is by exact hash only,
// so near-duplicates that differ by a cent never merge.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/inmofin/inmofin/internal/domain/importer/normalizer"
)

// Movement is a parsed statement row as seen by the detector.
type Movement struct {
	Date          time.Time
	AmountCents   int64
	Description   string
	OriginalRow   int
	IsDuplicate   bool
	DuplicateHash string
}

// Stats summarizes duplicate detection over a batch.
type Stats struct {
	Total           int // All movements in the batch
	Duplicates      int // Movements flagged as repeats of an earlier one
	Unique          int // Hashes appearing exactly once
	DuplicateGroups int // Distinct hashes appearing two or more times
}

// Hash computes the content hash of a movement. It is a pure function of
// (date, amount, normalized description): identical logical movements hash
// identically regardless of which file or row they came from.
func Hash(date time.Time, amountCents int64, description string) string {
	data := fmt.Sprintf("%s|%d|%s",
		normalizer.ISODate(date),
		amountCents,
		normalizer.NormalizeDescription(description),
	)
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

// DetectDuplicates annotates each movement with its hash and flags every
// movement whose hash already appeared earlier in the list. The input order
// is preserved; the first occurrence of each hash is never flagged.
func DetectDuplicates(movements []Movement) []Movement {
	seen := make(map[string]bool, len(movements))
	out := make([]Movement, len(movements))

	for i, m := range movements {
		h := Hash(m.Date, m.AmountCents, m.Description)
		m.DuplicateHash = h
		m.IsDuplicate = seen[h]
		seen[h] = true
		out[i] = m
	}

	return out
}

// RemoveDuplicates returns only the first occurrence of each hash, in
// original order.
func RemoveDuplicates(movements []Movement) []Movement {
	seen := make(map[string]bool, len(movements))
	out := make([]Movement, 0, len(movements))

	for _, m := range movements {
		h := Hash(m.Date, m.AmountCents, m.Description)
		if seen[h] {
			continue
		}
		seen[h] = true
		m.DuplicateHash = h
		out = append(out, m)
	}

	return out
}

// GetStats counts totals, flagged duplicates, unique movements, and distinct
// duplicate groups for a batch.
func GetStats(movements []Movement) Stats {
	counts := make(map[string]int, len(movements))
	for _, m := range movements {
		counts[Hash(m.Date, m.AmountCents, m.Description)]++
	}

	stats := Stats{Total: len(movements)}
	for _, n := range counts {
		if n == 1 {
			stats.Unique++
		} else {
			stats.DuplicateGroups++
			stats.Duplicates += n - 1
		}
	}

	return stats
}
