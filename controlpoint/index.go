package controlpoint

import (
	"math"
	"slices"
)

// Index holds the points of one kind sorted by strictly increasing time.
// It is only mutated by the owning Timeline.
type Index[P Point] struct {
	points  []P
	neutral P
}

func newIndex[P Point](neutral P) Index[P] {
	return Index[P]{neutral: neutral}
}

func (x *Index[P]) Len() int { return len(x.points) }

// Points returns the backing slice. Callers must not modify it.
func (x *Index[P]) Points() []P { return x.points }

// First returns the earliest point, or false when the index is empty.
func (x *Index[P]) First() (P, bool) {
	if len(x.points) == 0 {
		var zero P
		return zero, false
	}
	return x.points[0], true
}

// At returns the point active at t, or the neutral default when t is before
// every point.
func (x *Index[P]) At(t float64) P {
	if i := floorIndex(x.points, t); i >= 0 {
		return x.points[i]
	}
	return x.neutral
}

// AtOr is At with pre returned instead of the neutral default when t is
// before the first point. An empty index still yields the neutral default.
func (x *Index[P]) AtOr(t float64, pre P) P {
	if len(x.points) == 0 {
		return x.neutral
	}
	if i := floorIndex(x.points, t); i >= 0 {
		return x.points[i]
	}
	return pre
}

// floorIndex returns the index of the last point whose time does not exceed t,
// or -1 when there is none. NaN precedes every point.
func floorIndex[P Point](list []P, t float64) int {
	n := len(list)
	if n == 0 || math.IsNaN(t) || t < list[0].Time() {
		return -1
	}
	if t >= list[n-1].Time() {
		return n - 1
	}

	// the last element is already ruled out above
	l, r := 0, n-2
	for l <= r {
		pivot := l + (r-l)>>1
		pt := list[pivot].Time()
		switch {
		case pt < t:
			l = pivot + 1
		case pt > t:
			r = pivot - 1
		default:
			return pivot
		}
	}
	// list[l] is the first point after t, and l >= 1 since list[0] <= t
	return l - 1
}

// insert places p in time order. A point already at p's time is the caller's
// responsibility to remove first.
func (x *Index[P]) insert(p P) {
	i, _ := slices.BinarySearchFunc(x.points, p.Time(), func(e P, t float64) int {
		return compareTime(e.Time(), t)
	})
	x.points = slices.Insert(x.points, i, p)
}

// remove deletes p by identity and reports whether it was present.
func (x *Index[P]) remove(p P) bool {
	i, found := slices.BinarySearchFunc(x.points, p.Time(), func(e P, t float64) int {
		return compareTime(e.Time(), t)
	})
	if !found || Point(x.points[i]) != Point(p) {
		return false
	}
	x.points = slices.Delete(x.points, i, i+1)
	return true
}

func (x *Index[P]) clear() {
	clear(x.points)
	x.points = x.points[:0]
}

func compareTime(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
