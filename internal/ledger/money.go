package ledger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Cents is an amount of money in integer cents.
type Cents int64

// MaxContributionCents bounds a single contribution ($1,000,000,000.00).
const MaxContributionCents Cents = 100_000_000_000

// ErrInvalidAmount is returned for amounts that cannot be accepted as a contribution.
var ErrInvalidAmount = errors.New("invalid amount")

var hundred = decimal.NewFromInt(100)

// ParseCents converts a decimal currency string ("12.34", "10", "0.005") into
// cents. Rounding happens exactly once, half-up to the nearest cent: "12.345"
// becomes 1235. Negative values parse but fail ValidateContribution.
func ParseCents(s string) (Cents, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidAmount, s, err)
	}
	return fromDecimal(d)
}

func fromDecimal(d decimal.Decimal) (Cents, error) {
	// decimal rounds half away from zero, which is half-up for the
	// non-negative amounts that survive validation.
	c := d.Mul(hundred).Round(0)
	limit := decimal.NewFromInt(int64(MaxContributionCents))
	if c.Abs().GreaterThan(limit) {
		return 0, fmt.Errorf("%w: %s exceeds %s", ErrInvalidAmount, d.String(), limit.Div(hundred).StringFixed(2))
	}
	return Cents(c.IntPart()), nil
}

// ValidateContribution reports whether c is an acceptable contribution amount.
func ValidateContribution(c Cents) error {
	if c <= 0 {
		return fmt.Errorf("%w: amount must be positive, got %d cents", ErrInvalidAmount, c)
	}
	if c > MaxContributionCents {
		return fmt.Errorf("%w: amount %d cents exceeds maximum %d", ErrInvalidAmount, c, MaxContributionCents)
	}
	return nil
}

// Decimal returns the amount in currency units.
func (c Cents) Decimal() decimal.Decimal {
	return decimal.New(int64(c), -2)
}

// String formats the amount with two decimals, e.g. "12.00".
func (c Cents) String() string {
	return c.Decimal().StringFixed(2)
}

// SubFloor subtracts d from c, flooring the result at zero.
func (c Cents) SubFloor(d Cents) Cents {
	if d >= c {
		return 0
	}
	return c - d
}
