// Package loans computes amortization schedules for mortgage and
// personal loans using the French (constant payment) method.
package loans

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidPrincipal = errors.New("principal must be positive")
	ErrInvalidTerm      = errors.New("term must be at least one month")
	ErrNegativeRate     = errors.New("annual rate cannot be negative")
)

// Row is one period of an amortization schedule. Money values are euro
// cents.
type Row struct {
	Period         int       `json:"period"`
	Date           time.Time `json:"date"`
	PaymentCents   int64     `json:"payment_cents"`
	InterestCents  int64     `json:"interest_cents"`
	PrincipalCents int64     `json:"principal_cents"`
	BalanceCents   int64     `json:"balance_cents"`
}

// Schedule is a complete amortization plan.
type Schedule struct {
	PrincipalCents     int64   `json:"principal_cents"`
	AnnualRate         float64 `json:"annual_rate"`
	Months             int     `json:"months"`
	PaymentCents       int64   `json:"payment_cents"`
	TotalInterestCents int64   `json:"total_interest_cents"`
	TotalPaidCents     int64   `json:"total_paid_cents"`
	Rows               []Row   `json:"rows"`
}

var hundred = decimal.NewFromInt(100)

// Amortize builds a French-method schedule. annualRate is a percentage
// (3.5 means 3.5% nominal annual, compounded monthly). The final payment
// absorbs rounding so the balance closes to exactly zero.
func Amortize(principalCents int64, annualRate float64, months int, start time.Time) (*Schedule, error) {
	if principalCents <= 0 {
		return nil, ErrInvalidPrincipal
	}
	if months < 1 {
		return nil, ErrInvalidTerm
	}
	if annualRate < 0 {
		return nil, ErrNegativeRate
	}

	principal := decimal.NewFromInt(principalCents)
	monthlyRate := decimal.NewFromFloat(annualRate).Div(hundred).Div(decimal.NewFromInt(12))

	var payment decimal.Decimal
	if monthlyRate.IsZero() {
		// Straight-line: no interest, equal principal installments.
		payment = principal.Div(decimal.NewFromInt(int64(months))).Round(0)
	} else {
		// payment = P * r / (1 - (1+r)^-n)
		one := decimal.NewFromInt(1)
		factor := one.Add(monthlyRate).Pow(decimal.NewFromInt(int64(months)))
		payment = principal.Mul(monthlyRate).Mul(factor).Div(factor.Sub(one)).Round(0)
	}

	sched := &Schedule{
		PrincipalCents: principalCents,
		AnnualRate:     annualRate,
		Months:         months,
		PaymentCents:   payment.IntPart(),
		Rows:           make([]Row, 0, months),
	}

	balance := principal
	for period := 1; period <= months; period++ {
		interest := balance.Mul(monthlyRate).Round(0)
		principalPart := payment.Sub(interest)
		rowPayment := payment

		if period == months {
			// Last installment pays off whatever is left.
			principalPart = balance
			rowPayment = balance.Add(interest)
		} else if principalPart.GreaterThan(balance) {
			principalPart = balance
			rowPayment = balance.Add(interest)
		}

		balance = balance.Sub(principalPart)

		sched.Rows = append(sched.Rows, Row{
			Period:         period,
			Date:           start.AddDate(0, period, 0),
			PaymentCents:   rowPayment.IntPart(),
			InterestCents:  interest.IntPart(),
			PrincipalCents: principalPart.IntPart(),
			BalanceCents:   balance.IntPart(),
		})

		sched.TotalInterestCents += interest.IntPart()
		sched.TotalPaidCents += rowPayment.IntPart()
	}

	return sched, nil
}
