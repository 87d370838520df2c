package controlpoint

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requireSynced checks that the per-kind indexes are exactly the kind-filtered
// projection of the groups.
func requireSynced(t *testing.T, tl *Timeline) {
	t.Helper()

	var timing []*Timing
	var difficulty []*Difficulty
	var sample []*Sample
	var effect []*Effect
	for i, g := range tl.Groups() {
		if i > 0 {
			require.Less(t, tl.Groups()[i-1].Time(), g.Time(), "groups out of order")
		}
		for _, p := range g.Points() {
			require.Equal(t, g.Time(), p.Time())
			switch p := p.(type) {
			case *Timing:
				timing = append(timing, p)
			case *Difficulty:
				difficulty = append(difficulty, p)
			case *Sample:
				sample = append(sample, p)
			case *Effect:
				effect = append(effect, p)
			}
		}
	}
	require.Equal(t, timing, nilIfEmpty(tl.TimingPoints()))
	require.Equal(t, difficulty, nilIfEmpty(tl.DifficultyPoints()))
	require.Equal(t, sample, nilIfEmpty(tl.SamplePoints()))
	require.Equal(t, effect, nilIfEmpty(tl.EffectPoints()))
	require.Len(t, tl.AllControlPoints(), len(timing)+len(difficulty)+len(sample)+len(effect))
}

func nilIfEmpty[P any](s []P) []P {
	if len(s) == 0 {
		return nil
	}
	return s
}

func TestEmptyTimelineDefaults(t *testing.T) {
	tl := New()

	assert.Equal(t, DEFAULT_BEAT_LENGTH, tl.TimingPointAt(0).BeatLength)
	assert.Equal(t, DEFAULT_METER, tl.TimingPointAt(0).Meter)
	assert.Equal(t, DEFAULT_SLIDER_VELOCITY, tl.DifficultyPointAt(123).SliderVelocity)
	assert.Equal(t, DEFAULT_SAMPLE_SET, tl.SamplePointAt(-50).SampleSet)
	assert.Equal(t, 0, tl.SamplePointAt(-50).Volume)
	assert.False(t, tl.EffectPointAt(1e9).Kiai())
	assert.Empty(t, tl.Groups())
	assert.Empty(t, tl.AllControlPoints())
}

func TestPrePointFallbackByKind(t *testing.T) {
	tl := New()
	timing := &Timing{BeatLength: 500, Meter: 4}
	difficulty := &Difficulty{SliderVelocity: 2}
	sample := &Sample{SampleSet: "soft", Volume: 60}
	effect := &Effect{Flags: EffectKiai}
	require.True(t, tl.Add(100, timing))
	require.True(t, tl.Add(100, difficulty))
	require.True(t, tl.Add(100, sample))
	require.True(t, tl.Add(100, effect))

	// timing and sample extend backwards, the others fall back to defaults
	assert.Same(t, timing, tl.TimingPointAt(50))
	assert.Same(t, sample, tl.SamplePointAt(50))
	assert.Same(t, defaultDifficulty, tl.DifficultyPointAt(50))
	assert.Same(t, defaultEffect, tl.EffectPointAt(50))

	assert.Same(t, timing, tl.TimingPointAt(100))
	assert.Same(t, difficulty, tl.DifficultyPointAt(100))
	assert.Same(t, timing, tl.TimingPointAt(1000))
	assert.Same(t, effect, tl.EffectPointAt(1000))

	require.Len(t, tl.Groups(), 1)
	assert.Equal(t, 4, tl.Groups()[0].Len())
	requireSynced(t, tl)
}

func TestAddRedundantIsNoop(t *testing.T) {
	tl := New()
	before := testutil.ToFloat64(addsTotal.WithLabelValues("difficulty", "redundant"))

	require.True(t, tl.Add(0, &Difficulty{SliderVelocity: 1.5}))
	assert.False(t, tl.Add(500, &Difficulty{SliderVelocity: 1.5}))
	assert.Len(t, tl.Groups(), 1)
	assert.Nil(t, tl.GroupAt(500, false))

	assert.Equal(t, before+1, testutil.ToFloat64(addsTotal.WithLabelValues("difficulty", "redundant")))
	requireSynced(t, tl)
}

func TestAddEquivalentToDefaultIsNoop(t *testing.T) {
	tl := New()
	assert.False(t, tl.Add(0, &Difficulty{SliderVelocity: DEFAULT_SLIDER_VELOCITY}))
	assert.False(t, tl.Add(0, &Effect{}))
	assert.False(t, tl.Add(0, &Sample{SampleSet: DEFAULT_SAMPLE_SET}))
	assert.Empty(t, tl.Groups())
}

func TestAddFullVolumeSampleToEmptyTimeline(t *testing.T) {
	tl := New()
	p := &Sample{SampleSet: DEFAULT_SAMPLE_SET, Volume: DEFAULT_SAMPLE_VOLUME}

	require.True(t, tl.Add(0, p))
	assert.Same(t, p, tl.SamplePointAt(0))
	assert.Equal(t, []*Sample{p}, tl.SamplePoints())
	requireSynced(t, tl)
}

func TestForceAddBypassesRedundancy(t *testing.T) {
	tl := New()
	tl.ForceAdd(0, &Difficulty{SliderVelocity: 1})
	tl.ForceAdd(500, &Difficulty{SliderVelocity: 1})

	assert.Len(t, tl.Groups(), 2)
	assert.Len(t, tl.DifficultyPoints(), 2)
	requireSynced(t, tl)
}

func TestAddSameKindSameTimeReplaces(t *testing.T) {
	tl := New()
	first := &Difficulty{SliderVelocity: 1.5}
	second := &Difficulty{SliderVelocity: 0.5}
	require.True(t, tl.Add(1000, first))
	require.True(t, tl.Add(1000, second))

	require.Len(t, tl.Groups(), 1)
	assert.Same(t, second, tl.Groups()[0].Get(KindDifficulty))
	require.Len(t, tl.DifficultyPoints(), 1)
	assert.Same(t, second, tl.DifficultyPoints()[0])
	assert.Same(t, second, tl.DifficultyPointAt(1000))
	requireSynced(t, tl)
}

func TestAddMovesPointAlreadyInTimeline(t *testing.T) {
	tl := New()
	p := &Timing{BeatLength: 400, Meter: 4}
	tl.ForceAdd(100, p)
	tl.ForceAdd(300, p)

	assert.Nil(t, tl.GroupAt(100, false), "emptied group is dropped")
	require.Len(t, tl.TimingPoints(), 1)
	assert.Equal(t, 300.0, p.Time())
	requireSynced(t, tl)

	tl.ForceAdd(300, p)
	assert.Len(t, tl.Groups(), 1)
	requireSynced(t, tl)
}

func TestAddMovesAttachedPointWithoutRedundancyCheck(t *testing.T) {
	tl := New()
	p := &Difficulty{SliderVelocity: 2}
	tl.ForceAdd(100, p)

	assert.True(t, tl.Add(500, p))
	assert.Equal(t, 500.0, p.Time())
	assert.Nil(t, tl.GroupAt(100, false))
	assert.Same(t, defaultDifficulty, tl.DifficultyPointAt(300))
	assert.Same(t, p, tl.DifficultyPointAt(600))
	requireSynced(t, tl)

	assert.False(t, tl.Add(500, p), "already at that time")
	assert.Len(t, tl.Groups(), 1)
}

func TestGroupAt(t *testing.T) {
	tl := New()
	assert.Nil(t, tl.GroupAt(100, false))
	assert.Empty(t, tl.Groups())

	g := tl.GroupAt(100, true)
	require.NotNil(t, g)
	assert.Equal(t, 100.0, g.Time())
	assert.Zero(t, g.Len())
	assert.Same(t, g, tl.GroupAt(100, true))
	assert.Same(t, g, tl.GroupAt(100, false))

	tl.GroupAt(50, true)
	tl.GroupAt(75, true)
	times := make([]float64, 0, 3)
	for _, g := range tl.Groups() {
		times = append(times, g.Time())
	}
	assert.Equal(t, []float64{50, 75, 100}, times)
}

func TestRemoveLastPointDropsGroup(t *testing.T) {
	tl := New()
	timing := &Timing{BeatLength: 500, Meter: 4}
	effect := &Effect{Flags: EffectKiai}
	tl.Add(0, timing)
	tl.Add(0, effect)

	require.True(t, tl.Remove(effect))
	require.Len(t, tl.Groups(), 1)
	assert.Empty(t, tl.EffectPoints())

	require.True(t, tl.Remove(timing))
	assert.Empty(t, tl.Groups())
	assert.Empty(t, tl.TimingPoints())
	assert.False(t, tl.Remove(timing), "already removed")
	assert.False(t, tl.Remove(nil))
	requireSynced(t, tl)
}

func TestRemoveIgnoresForeignPoint(t *testing.T) {
	tl := New()
	tl.Add(0, &Timing{BeatLength: 500, Meter: 4})
	assert.False(t, tl.Remove(&Timing{BeatLength: 500, Meter: 4}))
	assert.Len(t, tl.TimingPoints(), 1)
}

func TestRemoveGroup(t *testing.T) {
	tl := New()
	tl.Add(0, &Timing{BeatLength: 500, Meter: 4})
	tl.Add(1000, &Timing{BeatLength: 250, Meter: 4})
	tl.Add(1000, &Sample{SampleSet: "drum", Volume: 80})
	g := tl.GroupAt(1000, false)
	require.NotNil(t, g)

	assert.True(t, tl.RemoveGroup(g))
	assert.Zero(t, g.Len())
	assert.Len(t, tl.Groups(), 1)
	assert.Len(t, tl.TimingPoints(), 1)
	assert.Empty(t, tl.SamplePoints())
	assert.False(t, tl.RemoveGroup(g))
	assert.False(t, tl.RemoveGroup(nil))
	requireSynced(t, tl)
}

func TestClear(t *testing.T) {
	tl := New()
	tl.Add(0, &Timing{BeatLength: 500, Meter: 4})
	tl.Add(10, &Difficulty{SliderVelocity: 2})
	tl.Add(20, &Sample{SampleSet: "soft", Volume: 50})
	tl.Add(30, &Effect{Flags: EffectKiai})

	tl.Clear()
	assert.Empty(t, tl.Groups())
	assert.Empty(t, tl.AllControlPoints())
	assert.Same(t, defaultTiming, tl.TimingPointAt(100))
	requireSynced(t, tl)
}

func TestSimilarPointAt(t *testing.T) {
	tl := New()
	sample := &Sample{SampleSet: "soft", Volume: 30}
	tl.Add(200, sample)

	assert.Same(t, sample, tl.SimilarPointAt(300, &Sample{}))
	assert.Equal(t, Point(defaultDifficulty), tl.SimilarPointAt(300, &Difficulty{}))
	assert.Nil(t, tl.SimilarPointAt(300, nil))
}

func TestAllControlPointsOrder(t *testing.T) {
	tl := New()
	effect := &Effect{Flags: EffectKiai}
	timing := &Timing{BeatLength: 300, Meter: 3}
	difficulty := &Difficulty{SliderVelocity: 0.75}
	tl.Add(500, effect)
	tl.Add(0, timing)
	tl.Add(500, difficulty)

	assert.Equal(t, []Point{timing, difficulty, effect}, tl.AllControlPoints())
}

func TestSyncUnderMixedEdits(t *testing.T) {
	tl := New()
	var added []Point
	for i := range 60 {
		tm := float64((i * 37) % 23 * 100)
		var p Point
		switch i % 4 {
		case 0:
			p = &Timing{BeatLength: float64(300 + i), Meter: 4}
		case 1:
			p = &Difficulty{SliderVelocity: float64(i) / 10}
		case 2:
			p = &Sample{SampleSet: "soft", Volume: i}
		default:
			p = &Effect{Flags: EffectFlags(i % 2)}
		}
		if tl.Add(tm, p) {
			added = append(added, p)
		}
		requireSynced(t, tl)
	}
	for i, p := range added {
		if i%3 == 0 {
			tl.Remove(p)
			requireSynced(t, tl)
		}
	}
	for i, g := range tl.Groups() {
		if i%2 == 0 {
			tl.RemoveGroup(g)
			break
		}
	}
	requireSynced(t, tl)
}

func TestClone(t *testing.T) {
	tl := New()
	timing := &Timing{BeatLength: 500, Meter: 4}
	tl.Add(0, timing)
	tl.Add(100, &Effect{Flags: EffectKiai})
	tl.GroupAt(900, true)

	c := tl.Clone()
	require.Len(t, c.Groups(), 3)
	assert.NotSame(t, timing, c.TimingPointAt(0))
	assert.True(t, timing.EquivalentTo(c.TimingPointAt(0)))
	requireSynced(t, c)

	c.Clear()
	assert.Len(t, tl.Groups(), 3)
	assert.Same(t, timing, tl.TimingPointAt(0))
}

func TestCloneAndRestoreAreNotCountedAsAdds(t *testing.T) {
	added := func() float64 {
		return testutil.ToFloat64(addsTotal.WithLabelValues("effect", "added"))
	}
	tl := New()
	before := added()
	tl.Add(100, &Effect{Flags: EffectKiai})
	require.Equal(t, before+1, added())

	c := tl.Clone()
	c.Restore(200, &Effect{Flags: EffectOmitFirstBarLine})
	assert.Equal(t, before+1, added())
	assert.Len(t, c.EffectPoints(), 2)
	requireSynced(t, c)
}

func TestAddNilPanics(t *testing.T) {
	tl := New()
	assert.Panics(t, func() { tl.Add(0, nil) })
	assert.Panics(t, func() { tl.ForceAdd(0, nil) })
}
