package seating

const (
	lcgMultiplier = 9301
	lcgIncrement  = 49297
	lcgModulus    = 233280
)

// lcg is the seeded generator behind Shuffle. Same seed, same sequence.
type lcg struct {
	state int64
}

func newLCG(seed int64) *lcg {
	state := seed % lcgModulus
	if state < 0 {
		state += lcgModulus
	}
	return &lcg{state: state}
}

// next returns a value in [0, 1).
func (g *lcg) next() float64 {
	g.state = (g.state*lcgMultiplier + lcgIncrement) % lcgModulus
	return float64(g.state) / lcgModulus
}

// Shuffle returns a seeded Fisher-Yates permutation of items, walking from the last element
// backward. The input slice is left untouched.
func Shuffle[T any](items []T, seed int64) []T {
	out := append([]T(nil), items...)
	rng := newLCG(seed)
	for i := len(out) - 1; i > 0; i-- {
		j := int(rng.next() * float64(i+1))
		out[i], out[j] = out[j], out[i]
	}
	return out
}
