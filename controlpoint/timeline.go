// Package controlpoint indexes the timed control points of a beatmap and
// resolves which point of each kind is in effect at a given time.
//
// A Timeline keeps two views of the same points: groups, one per distinct
// time, and one Index per kind sorted by time. Every edit goes through the
// Timeline so both views change together. A Timeline is not safe for
// concurrent use; wrap it in a Shared when it crosses goroutines.
package controlpoint

import (
	"log/slog"
	"math"
	"slices"
)

type Timeline struct {
	groups []*Group

	timing     Index[*Timing]
	difficulty Index[*Difficulty]
	sample     Index[*Sample]
	effect     Index[*Effect]

	logger *slog.Logger
}

type Option func(*Timeline)

// WithLogger routes group lifecycle logging to l.
func WithLogger(l *slog.Logger) Option {
	return func(tl *Timeline) {
		if l != nil {
			tl.logger = l
		}
	}
}

func New(opts ...Option) *Timeline {
	tl := &Timeline{
		timing:     newIndex(defaultTiming),
		difficulty: newIndex(defaultDifficulty),
		sample:     newIndex(defaultSample),
		effect:     newIndex(defaultEffect),
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(tl)
	}
	return tl
}

// ---------- queries ----------

// TimingPointAt returns the timing point active at t. Times before the first
// timing point resolve to that first point.
func (tl *Timeline) TimingPointAt(t float64) *Timing {
	first, _ := tl.timing.First()
	return tl.timing.AtOr(t, first)
}

func (tl *Timeline) DifficultyPointAt(t float64) *Difficulty {
	return tl.difficulty.At(t)
}

// SamplePointAt returns the sample point active at t. Like timing, the first
// sample point also covers the time before it.
func (tl *Timeline) SamplePointAt(t float64) *Sample {
	first, _ := tl.sample.First()
	return tl.sample.AtOr(t, first)
}

func (tl *Timeline) EffectPointAt(t float64) *Effect {
	return tl.effect.At(t)
}

// SimilarPointAt returns the point of ref's kind active at t, or nil when ref
// is not one of the known kinds.
func (tl *Timeline) SimilarPointAt(t float64, ref Point) Point {
	switch ref.(type) {
	case *Timing:
		return tl.TimingPointAt(t)
	case *Difficulty:
		return tl.DifficultyPointAt(t)
	case *Sample:
		return tl.SamplePointAt(t)
	case *Effect:
		return tl.EffectPointAt(t)
	}
	return nil
}

// Groups returns the groups sorted by time. Callers must not modify the slice.
func (tl *Timeline) Groups() []*Group { return tl.groups }

func (tl *Timeline) TimingPoints() []*Timing         { return tl.timing.Points() }
func (tl *Timeline) DifficultyPoints() []*Difficulty { return tl.difficulty.Points() }
func (tl *Timeline) SamplePoints() []*Sample         { return tl.sample.Points() }
func (tl *Timeline) EffectPoints() []*Effect         { return tl.effect.Points() }

// AllControlPoints flattens the groups in time order, kind order within a group.
func (tl *Timeline) AllControlPoints() []Point {
	n := tl.timing.Len() + tl.difficulty.Len() + tl.sample.Len() + tl.effect.Len()
	out := make([]Point, 0, n)
	for _, g := range tl.groups {
		out = g.appendPoints(out)
	}
	return out
}

// ---------- edits ----------

// Add inserts p at time t unless the point already active at t for p's kind
// is equivalent to it. A point already in the timeline is moved to t without
// the equivalence check. It reports whether the timeline changed.
func (tl *Timeline) Add(t float64, p Point) bool {
	if p == nil {
		panicf("controlpoint: nil point added at %v", t)
	}
	if g := tl.owner(p); g != nil {
		if g.time == t {
			return false
		}
		tl.ForceAdd(t, p)
		return true
	}
	if existing := tl.SimilarPointAt(t, p); existing != nil && existing.EquivalentTo(p) {
		addsTotal.WithLabelValues(p.Kind().String(), "redundant").Inc()
		return false
	}
	tl.ForceAdd(t, p)
	return true
}

// ForceAdd inserts p at time t without the redundancy check. A point of the
// same kind already at t is replaced. If p is already part of this timeline
// it is moved.
func (tl *Timeline) ForceAdd(t float64, p Point) {
	if result := tl.place(t, p); result != "" {
		addsTotal.WithLabelValues(p.Kind().String(), result).Inc()
	}
}

// Restore is ForceAdd for rebuilding a timeline from a saved copy. It is not
// counted as an edit.
func (tl *Timeline) Restore(t float64, p Point) {
	tl.place(t, p)
}

// place does the work of ForceAdd. It returns the adds_total result label, or
// "" when p was already at t.
func (tl *Timeline) place(t float64, p Point) string {
	if p == nil {
		panicf("controlpoint: nil point added at %v", t)
	}
	if math.IsNaN(t) {
		panicf("controlpoint: %s point added at NaN time", p.Kind())
	}

	if g := tl.owner(p); g != nil {
		if g.time == t {
			return ""
		}
		tl.detach(g, p)
	}

	g := tl.GroupAt(t, true)
	result := "added"
	if old := g.Get(p.Kind()); old != nil {
		g.unset(old)
		tl.indexRemove(old)
		result = "replaced"
	}
	p.setTime(t)
	g.set(p)
	tl.indexInsert(p)
	return result
}

// GroupAt returns the group at exactly time t. When none exists it returns
// nil, or creates an empty one if create is set.
func (tl *Timeline) GroupAt(t float64, create bool) *Group {
	i, found := tl.searchGroup(t)
	if found {
		return tl.groups[i]
	}
	if !create {
		return nil
	}
	if math.IsNaN(t) {
		panicf("controlpoint: group created at NaN time")
	}
	g := newGroup(t)
	tl.groups = slices.Insert(tl.groups, i, g)
	groupsTotal.WithLabelValues("created").Inc()
	tl.logger.Debug("control point group created", slog.Float64("time", t))
	return g
}

// Remove takes p out of its group and index. A group left empty is removed.
func (tl *Timeline) Remove(p Point) bool {
	if p == nil {
		return false
	}
	g := tl.owner(p)
	if g == nil {
		return false
	}
	tl.detach(g, p)
	return true
}

// RemoveGroup removes g and all of its points.
func (tl *Timeline) RemoveGroup(g *Group) bool {
	if g == nil {
		return false
	}
	i, found := tl.searchGroup(g.time)
	if !found || tl.groups[i] != g {
		return false
	}
	for _, p := range g.points {
		if p != nil {
			g.unset(p)
			tl.indexRemove(p)
		}
	}
	tl.deleteGroupAt(i)
	return true
}

// Clear drops every group and point.
func (tl *Timeline) Clear() {
	if len(tl.groups) > 0 {
		groupsTotal.WithLabelValues("removed").Add(float64(len(tl.groups)))
		tl.logger.Debug("control point timeline cleared", slog.Int("groups", len(tl.groups)))
	}
	clear(tl.groups)
	tl.groups = tl.groups[:0]
	tl.timing.clear()
	tl.difficulty.clear()
	tl.sample.clear()
	tl.effect.clear()
}

// Clone returns an independent copy with copies of every point, rebuilt by
// replaying the groups.
func (tl *Timeline) Clone() *Timeline {
	c := New(WithLogger(tl.logger))
	for _, g := range tl.groups {
		c.GroupAt(g.time, true)
		for _, p := range g.points {
			if p != nil {
				c.place(g.time, clonePoint(p))
			}
		}
	}
	return c
}

// ---------- internals ----------

func (tl *Timeline) searchGroup(t float64) (int, bool) {
	return slices.BinarySearchFunc(tl.groups, t, func(g *Group, t float64) int {
		return compareTime(g.time, t)
	})
}

// owner returns the group holding p, or nil when p is not in this timeline.
func (tl *Timeline) owner(p Point) *Group {
	g := tl.GroupAt(p.Time(), false)
	if g == nil || !g.contains(p) {
		return nil
	}
	return g
}

func (tl *Timeline) detach(g *Group, p Point) {
	g.unset(p)
	tl.indexRemove(p)
	if g.Len() > 0 {
		return
	}
	if i, found := tl.searchGroup(g.time); found && tl.groups[i] == g {
		tl.deleteGroupAt(i)
	}
}

func (tl *Timeline) deleteGroupAt(i int) {
	t := tl.groups[i].time
	tl.groups = slices.Delete(tl.groups, i, i+1)
	groupsTotal.WithLabelValues("removed").Inc()
	tl.logger.Debug("control point group removed", slog.Float64("time", t))
}

func (tl *Timeline) indexInsert(p Point) {
	switch p := p.(type) {
	case *Timing:
		tl.timing.insert(p)
	case *Difficulty:
		tl.difficulty.insert(p)
	case *Sample:
		tl.sample.insert(p)
	case *Effect:
		tl.effect.insert(p)
	}
}

func (tl *Timeline) indexRemove(p Point) {
	var removed bool
	switch p := p.(type) {
	case *Timing:
		removed = tl.timing.remove(p)
	case *Difficulty:
		removed = tl.difficulty.remove(p)
	case *Sample:
		removed = tl.sample.remove(p)
	case *Effect:
		removed = tl.effect.remove(p)
	}
	if removed {
		removalsTotal.WithLabelValues(p.Kind().String()).Inc()
	}
}
