package controlpoint

// Group is every control point that takes effect at one time, at most one
// per kind. Groups are created and mutated only through their Timeline.
type Group struct {
	time   float64
	points [kindCount]Point
	count  int
}

func newGroup(t float64) *Group {
	return &Group{time: t}
}

func (g *Group) Time() float64 { return g.time }

// Len is the number of points in the group.
func (g *Group) Len() int { return g.count }

// Get returns the point of the given kind, or nil.
func (g *Group) Get(kind Kind) Point {
	if int(kind) >= kindCount {
		return nil
	}
	return g.points[kind]
}

// Points returns the group's points in kind order.
func (g *Group) Points() []Point {
	out := make([]Point, 0, g.count)
	return g.appendPoints(out)
}

func (g *Group) appendPoints(out []Point) []Point {
	for _, p := range g.points {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

// set stores p in its kind slot and returns the point it replaced, if any.
func (g *Group) set(p Point) (replaced Point) {
	k := p.Kind()
	replaced = g.points[k]
	g.points[k] = p
	if replaced == nil {
		g.count++
	}
	return replaced
}

// unset removes p if it occupies its kind slot.
func (g *Group) unset(p Point) bool {
	k := p.Kind()
	if g.points[k] != p {
		return false
	}
	g.points[k] = nil
	g.count--
	return true
}

func (g *Group) contains(p Point) bool {
	return g.points[p.Kind()] == p
}
