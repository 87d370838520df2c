package controlpoint

import "math"

// PREDEFINED_DIVISORS are the beat snap divisors offered by the editor.
var PREDEFINED_DIVISORS = []int{1, 2, 3, 4, 6, 8, 12, 16}

// a later divisor has to be closer by more than this to win
const snapLeniency = 1e-7

// ClosestSnappedTime snaps t to the 1/divisor beat grid of the timing point
// active at t.
func (tl *Timeline) ClosestSnappedTime(t float64, divisor int) float64 {
	return tl.ClosestSnappedTimeFrom(t, divisor, t)
}

// ClosestSnappedTimeFrom is ClosestSnappedTime using the timing point active
// at reference instead of at t.
func (tl *Timeline) ClosestSnappedTimeFrom(t float64, divisor int, reference float64) float64 {
	if divisor < 1 {
		panicf("controlpoint: beat divisor must be positive, got %d", divisor)
	}
	return snappedTime(tl.TimingPointAt(reference), t, divisor)
}

// ClosestBeatDivisor returns the predefined divisor whose grid lies closest
// to t.
func (tl *Timeline) ClosestBeatDivisor(t float64) int {
	return tl.ClosestBeatDivisorFrom(t, t)
}

func (tl *Timeline) ClosestBeatDivisorFrom(t float64, reference float64) int {
	tp := tl.TimingPointAt(reference)
	closest, closestDist := PREDEFINED_DIVISORS[0], math.MaxFloat64
	for _, divisor := range PREDEFINED_DIVISORS {
		dist := math.Abs(t - snappedTime(tp, t, divisor))
		if closestDist-dist > snapLeniency {
			closest, closestDist = divisor, dist
		}
	}
	return closest
}

// snappedTime leaves t alone when the timing point has no usable beat length.
func snappedTime(tp *Timing, t float64, divisor int) float64 {
	if !(tp.BeatLength > 0) || math.IsInf(tp.BeatLength, 0) {
		return t
	}
	beat := tp.BeatLength / float64(divisor)
	// math.Round rounds half away from zero
	beats := math.Round((t - tp.Time()) / beat)
	return tp.Time() + beats*beat
}
