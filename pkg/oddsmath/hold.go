package oddsmath

// Hold returns the bookmaker margin of a two-way market from the implied
// probabilities of both sides.
//
// Example:
// Side A: -110 (52.38% implied) | Side B: -110 (52.38% implied)
// Hold: 0.0476
//
// A negative hold means the two prices together favor the bettor.
func Hold(prob1, prob2 float64) float64 {
	return prob1 + prob2 - 1.0
}

// IsSoftMarket reports whether a hold value is bettor-favorable
func IsSoftMarket(hold float64) bool {
	return hold < 0
}
