package util

import "math"

// Round2 rounds money amounts to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Round1 rounds aggregate ratings to one decimal.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
