package common

import (
	"fmt"
	"math"
)

// Round1 rounds v to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// FormatSigned renders a delta with an explicit sign and one decimal,
// e.g. "+3.0", "-1.5". Zero renders as "+0.0".
func FormatSigned(v float64) string {
	r := Round1(v)
	if r == 0 {
		// also folds -0.0
		return "+0.0"
	}
	return fmt.Sprintf("%+.1f", r)
}

// IsUp reports whether a delta is drawn as rising; zero counts as up.
func IsUp(delta float64) bool {
	return Round1(delta) >= 0
}
