package controlpoint

import (
	"fmt"
	"strings"
)

const (
	DEFAULT_BEAT_LENGTH     = 1000.0
	DEFAULT_METER           = 4
	DEFAULT_SLIDER_VELOCITY = 1.0
	DEFAULT_SAMPLE_SET      = "normal"

	// volume for newly placed sample points; the neutral sample is silent
	DEFAULT_SAMPLE_VOLUME = 100
)

// ---------- kinds ----------

type Kind uint8

const (
	KindTiming Kind = iota
	KindDifficulty
	KindSample
	KindEffect

	kindCount = iota
)

var kindNames = [kindCount]string{"timing", "difficulty", "sample", "effect"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind accepts the lowercase kind names produced by Kind.String.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range kindNames {
		if name == s {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown control point kind %q", s)
}

type EffectFlags uint8

const (
	EffectKiai             EffectFlags = 1 << 0 // 1
	EffectOmitFirstBarLine EffectFlags = 1 << 3 // 8
)

// ---------- points ----------

// Point is a timestamped change to one property category. The set of
// implementations is closed: Timing, Difficulty, Sample and Effect.
type Point interface {
	Time() float64
	Kind() Kind
	// EquivalentTo reports whether other is the same kind with an identical
	// payload. Time is not compared.
	EquivalentTo(other Point) bool

	setTime(t float64)
}

type base struct{ time float64 }

func (b *base) Time() float64     { return b.time }
func (b *base) setTime(t float64) { b.time = t }

// Timing sets tempo and meter.
type Timing struct {
	base
	BeatLength float64 // ms per beat
	Meter      int
}

func (*Timing) Kind() Kind { return KindTiming }

func (p *Timing) EquivalentTo(other Point) bool {
	o, ok := other.(*Timing)
	return ok && o != nil && p.BeatLength == o.BeatLength && p.Meter == o.Meter
}

// BPM converts the beat length to beats per minute.
func (p *Timing) BPM() float64 { return 60000 / p.BeatLength }

// Difficulty sets the slider velocity multiplier.
type Difficulty struct {
	base
	SliderVelocity float64
}

func (*Difficulty) Kind() Kind { return KindDifficulty }

func (p *Difficulty) EquivalentTo(other Point) bool {
	o, ok := other.(*Difficulty)
	return ok && o != nil && p.SliderVelocity == o.SliderVelocity
}

// Sample sets the hitsound bank and volume.
type Sample struct {
	base
	SampleSet   string
	Volume      int
	CustomIndex int
}

func (*Sample) Kind() Kind { return KindSample }

func (p *Sample) EquivalentTo(other Point) bool {
	o, ok := other.(*Sample)
	return ok && o != nil &&
		p.SampleSet == o.SampleSet &&
		p.Volume == o.Volume &&
		p.CustomIndex == o.CustomIndex
}

type Effect struct {
	base
	Flags EffectFlags
}

func (*Effect) Kind() Kind { return KindEffect }

func (p *Effect) EquivalentTo(other Point) bool {
	o, ok := other.(*Effect)
	return ok && o != nil && p.Flags == o.Flags
}

func (p *Effect) Kiai() bool             { return p.Flags&EffectKiai != 0 }
func (p *Effect) OmitFirstBarLine() bool { return p.Flags&EffectOmitFirstBarLine != 0 }

// Neutral values returned when no point of a kind is in scope. Shared, never mutate.
var (
	defaultTiming     = &Timing{BeatLength: DEFAULT_BEAT_LENGTH, Meter: DEFAULT_METER}
	defaultDifficulty = &Difficulty{SliderVelocity: DEFAULT_SLIDER_VELOCITY}
	defaultSample     = &Sample{SampleSet: DEFAULT_SAMPLE_SET}
	defaultEffect     = &Effect{}
)

// clonePoint returns an unattached copy of p with the same time and payload.
func clonePoint(p Point) Point {
	switch p := p.(type) {
	case *Timing:
		c := *p
		return &c
	case *Difficulty:
		c := *p
		return &c
	case *Sample:
		c := *p
		return &c
	case *Effect:
		c := *p
		return &c
	}
	return nil
}

func panicf(format string, a ...any) {
	panic(fmt.Sprintf(format, a...))
}
