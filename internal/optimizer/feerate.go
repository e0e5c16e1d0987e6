package optimizer

import "math"

// Feerate returns the marginal feerate when TT leaves use fraction x of each block.
// Callers must keep x < 1. A zero base feerate stays zero even where
// (1-x)^ex underflows.
func Feerate(fe, ex, x float64) float64 {
	if fe == 0 {
		return 0
	}
	return fe / math.Pow(1-x, ex)
}

// FeerateDerivative returns d/dx of Feerate.
func FeerateDerivative(fe, ex, x float64) float64 {
	if fe == 0 {
		return 0
	}
	return fe * ex / math.Pow(1-x, ex+1)
}
