package store

import "cpinfo/controlpoint"

// pointRow is the flattened, kind-tagged form of a control point. Columns that
// do not apply to the row's kind stay zero.
type pointRow struct {
	Time           float64
	Kind           int
	BeatLength     float64
	Meter          int
	SliderVelocity float64
	SampleSet      string
	Volume         int
	CustomIndex    int
	EffectFlags    int
}

func rowFor(t float64, p controlpoint.Point) pointRow {
	r := pointRow{Time: t, Kind: int(p.Kind())}
	switch p := p.(type) {
	case *controlpoint.Timing:
		r.BeatLength = p.BeatLength
		r.Meter = p.Meter
	case *controlpoint.Difficulty:
		r.SliderVelocity = p.SliderVelocity
	case *controlpoint.Sample:
		r.SampleSet = p.SampleSet
		r.Volume = p.Volume
		r.CustomIndex = p.CustomIndex
	case *controlpoint.Effect:
		r.EffectFlags = int(p.Flags)
	}
	return r
}

// point returns nil for a kind this build does not know.
func (r pointRow) point() controlpoint.Point {
	if r.Kind < 0 || r.Kind > int(controlpoint.KindEffect) {
		return nil
	}
	switch controlpoint.Kind(r.Kind) {
	case controlpoint.KindTiming:
		return &controlpoint.Timing{BeatLength: r.BeatLength, Meter: r.Meter}
	case controlpoint.KindDifficulty:
		return &controlpoint.Difficulty{SliderVelocity: r.SliderVelocity}
	case controlpoint.KindSample:
		return &controlpoint.Sample{SampleSet: r.SampleSet, Volume: r.Volume, CustomIndex: r.CustomIndex}
	case controlpoint.KindEffect:
		return &controlpoint.Effect{Flags: controlpoint.EffectFlags(r.EffectFlags)}
	}
	return nil
}
