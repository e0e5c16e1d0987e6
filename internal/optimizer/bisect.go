package optimizer

// Bisect narrows [low, high] for a fixed number of iterations.
// At each midpoint, tooHigh reports whether the boundary lies to the left;
// if so high moves to the midpoint, otherwise low does.
// Returns the midpoint evaluated on the final iteration, or low if iterations < 1.
func Bisect(low, high float64, iterations int, tooHigh func(x float64) bool) float64 {
	x := low
	for i := 0; i < iterations; i++ {
		x = (low + high) / 2
		if tooHigh(x) {
			high = x
		} else {
			low = x
		}
	}
	return x
}
