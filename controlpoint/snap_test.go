package controlpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClosestSnappedTime(t *testing.T) {
	tl := New()
	tl.Add(100, &Timing{BeatLength: 500, Meter: 4})

	assert.Equal(t, 600.0, tl.ClosestSnappedTime(640, 1))
	assert.Equal(t, 600.0, tl.ClosestSnappedTime(640, 2))
	assert.Equal(t, 725.0, tl.ClosestSnappedTime(700, 4))
	// halfway rounds away from the timing point
	assert.Equal(t, 225.0, tl.ClosestSnappedTime(162.5, 4))
	assert.Equal(t, -25.0, tl.ClosestSnappedTime(37.5, 4))
	assert.Equal(t, -25.0, tl.ClosestSnappedTime(-25, 4), "grid extends before the first timing point")
}

func TestClosestSnappedTimeFromReference(t *testing.T) {
	tl := New()
	tl.Add(0, &Timing{BeatLength: 500, Meter: 4})
	tl.Add(1000, &Timing{BeatLength: 300, Meter: 4})

	assert.Equal(t, 1150.0, tl.ClosestSnappedTime(1210, 2))
	assert.Equal(t, 1250.0, tl.ClosestSnappedTimeFrom(1210, 2, 0))
}

func TestClosestSnappedTimeRejectsBadDivisor(t *testing.T) {
	tl := New()
	assert.Panics(t, func() { tl.ClosestSnappedTime(0, 0) })
}

func TestClosestBeatDivisor(t *testing.T) {
	tl := New()
	tl.Add(0, &Timing{BeatLength: 480, Meter: 4})

	assert.Equal(t, 1, tl.ClosestBeatDivisor(960))
	assert.Equal(t, 2, tl.ClosestBeatDivisor(240))
	assert.Equal(t, 3, tl.ClosestBeatDivisor(160))
	assert.Equal(t, 4, tl.ClosestBeatDivisor(120))
	assert.Equal(t, 6, tl.ClosestBeatDivisor(80))
	assert.Equal(t, 16, tl.ClosestBeatDivisor(30))
}

func TestSnapWithoutUsableBeatLength(t *testing.T) {
	tl := New()
	tl.ForceAdd(0, &Timing{BeatLength: 0, Meter: 4})

	assert.Equal(t, 640.0, tl.ClosestSnappedTime(640, 4))
	assert.Equal(t, 1, tl.ClosestBeatDivisor(640))

	tl.ForceAdd(0, &Timing{BeatLength: -300, Meter: 4})
	assert.Equal(t, 640.0, tl.ClosestSnappedTime(640, 2))
	assert.Contains(t, PREDEFINED_DIVISORS, tl.ClosestBeatDivisor(640))
}
