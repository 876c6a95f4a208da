package loans

import (
	"errors"
	"testing"
	"time"
)

func TestAmortizeClosesBalanceToZero(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	sched, err := Amortize(15_000_000, 3.5, 240, start)
	if err != nil {
		t.Fatalf("Amortize returned error: %v", err)
	}

	if len(sched.Rows) != 240 {
		t.Fatalf("expected 240 rows, got %d", len(sched.Rows))
	}
	last := sched.Rows[len(sched.Rows)-1]
	if last.BalanceCents != 0 {
		t.Errorf("final balance = %d, want 0", last.BalanceCents)
	}
}

func TestAmortizePrincipalSumsToLoan(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	sched, err := Amortize(10_000_000, 2.9, 120, start)
	if err != nil {
		t.Fatalf("Amortize returned error: %v", err)
	}

	var principal int64
	for _, row := range sched.Rows {
		principal += row.PrincipalCents
		if row.PaymentCents != row.InterestCents+row.PrincipalCents {
			t.Errorf("period %d: payment %d != interest %d + principal %d",
				row.Period, row.PaymentCents, row.InterestCents, row.PrincipalCents)
		}
	}
	if principal != sched.PrincipalCents {
		t.Errorf("principal paid = %d, want %d", principal, sched.PrincipalCents)
	}
	if sched.TotalPaidCents != sched.PrincipalCents+sched.TotalInterestCents {
		t.Errorf("total paid %d != principal %d + interest %d",
			sched.TotalPaidCents, sched.PrincipalCents, sched.TotalInterestCents)
	}
}

func TestAmortizeBalanceMonotonicallyDecreases(t *testing.T) {
	sched, err := Amortize(5_000_000, 4.25, 60, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Amortize returned error: %v", err)
	}

	prev := sched.PrincipalCents
	for _, row := range sched.Rows {
		if row.BalanceCents >= prev {
			t.Errorf("period %d: balance %d did not decrease from %d", row.Period, row.BalanceCents, prev)
		}
		prev = row.BalanceCents
	}
}

func TestAmortizeZeroRateIsStraightLine(t *testing.T) {
	sched, err := Amortize(1_200_000, 0, 12, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Amortize returned error: %v", err)
	}

	if sched.TotalInterestCents != 0 {
		t.Errorf("zero-rate loan accrued interest: %d", sched.TotalInterestCents)
	}
	for _, row := range sched.Rows {
		if row.PrincipalCents != 100_000 {
			t.Errorf("period %d: principal %d, want 100000", row.Period, row.PrincipalCents)
		}
	}
	if sched.Rows[11].BalanceCents != 0 {
		t.Errorf("final balance = %d, want 0", sched.Rows[11].BalanceCents)
	}
}

func TestAmortizePaymentDates(t *testing.T) {
	start := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	sched, err := Amortize(600_000, 5, 6, start)
	if err != nil {
		t.Fatalf("Amortize returned error: %v", err)
	}

	if got := sched.Rows[0].Date; !got.Equal(time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("first payment date = %v", got)
	}
	if got := sched.Rows[5].Date; !got.Equal(time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("last payment date = %v", got)
	}
}

func TestAmortizeInvalidInputs(t *testing.T) {
	tests := []struct {
		name      string
		principal int64
		rate      float64
		months    int
		wantErr   error
	}{
		{"zero principal", 0, 3, 12, ErrInvalidPrincipal},
		{"negative principal", -100, 3, 12, ErrInvalidPrincipal},
		{"zero months", 100_000, 3, 0, ErrInvalidTerm},
		{"negative rate", 100_000, -1, 12, ErrNegativeRate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Amortize(tt.principal, tt.rate, tt.months, time.Now())
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}
