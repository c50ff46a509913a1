package oddsmath

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// BetterPrice reports whether a is strictly more favorable to the bettor than b.
// In American odds a larger signed integer always pays more:
// +150 > +100 > -110 > -150.
func BetterPrice(a, b int) bool {
	return a > b
}

// AmericanToDecimal converts American odds to decimal odds
// American +150 → Decimal 2.50
// American -150 → Decimal 1.67
func AmericanToDecimal(american int) (float64, error) {
	if american == 0 {
		return 0, fmt.Errorf("invalid American odds: cannot be 0")
	}
	if american > 0 {
		return (float64(american) / 100.0) + 1.0, nil
	}
	return (100.0 / float64(-american)) + 1.0, nil
}

// FormatAmerican renders a price with an explicit sign (+120, -110)
func FormatAmerican(american int) string {
	if american > 0 {
		return "+" + strconv.Itoa(american)
	}
	return strconv.Itoa(american)
}

// FormatPercent renders a fraction as a percentage with two decimals
// 0.024 → "2.40%"
func FormatPercent(fraction float64) string {
	return decimal.NewFromFloat(fraction).Shift(2).StringFixed(2) + "%"
}

// RoundToNearestCent rounds a probability to the nearest 0.01%
func RoundToNearestCent(probability float64) float64 {
	rounded, _ := decimal.NewFromFloat(probability).Round(4).Float64()
	return rounded
}
