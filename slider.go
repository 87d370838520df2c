package main

import (
	"math"

	"cpinfo/controlpoint"
)

// SliderDifficulty holds the beatmap-wide values slider timing depends on.
type SliderDifficulty struct {
	SliderMultiplier float64
	SliderTickRate   float64
}

type SliderTiming struct {
	BeatLength     float64
	SliderVelocity float64

	SpanDuration float64 // one pass along the path
	Spans        int
	TicksPerSpan int
	TickInterval float64
	EndTime      float64
}

// SliderTimingAt resolves the control points active at start and derives the
// slider's span length and tick layout from them.
func SliderTimingAt(
	tl *controlpoint.Timeline,
	start float64,
	length float64,
	slides int,
	diff SliderDifficulty,
) SliderTiming {
	beatLength := tl.TimingPointAt(start).BeatLength
	sv := max(0.1, tl.DifficultyPointAt(start).SliderVelocity)
	slides = max(1, slides)

	spanDuration := length / (diff.SliderMultiplier * 100 * sv) * beatLength
	ticks := max(0, int(math.Floor((spanDuration-min(36, spanDuration/2))/beatLength*diff.SliderTickRate)))

	return SliderTiming{
		BeatLength:     beatLength,
		SliderVelocity: sv,
		SpanDuration:   spanDuration,
		Spans:          slides,
		TicksPerSpan:   ticks,
		TickInterval:   beatLength / diff.SliderTickRate,
		EndTime:        start + float64(slides)*spanDuration,
	}
}
