package controlpoint

// BPMMaximum is the BPM of the shortest beat length among the timing points.
func (tl *Timeline) BPMMaximum() float64 {
	pts := tl.timing.Points()
	if len(pts) == 0 {
		return defaultTiming.BPM()
	}
	shortest := pts[0]
	for _, p := range pts[1:] {
		if p.BeatLength < shortest.BeatLength {
			shortest = p
		}
	}
	return shortest.BPM()
}

// BPMMinimum is the BPM of the longest beat length among the timing points.
func (tl *Timeline) BPMMinimum() float64 {
	pts := tl.timing.Points()
	if len(pts) == 0 {
		return defaultTiming.BPM()
	}
	longest := pts[0]
	for _, p := range pts[1:] {
		if p.BeatLength > longest.BeatLength {
			longest = p
		}
	}
	return longest.BPM()
}

// BPMMode is the BPM of the most common beat length. Ties go to the beat
// length that appears first in time.
func (tl *Timeline) BPMMode() float64 {
	pts := tl.timing.Points()
	if len(pts) == 0 {
		return defaultTiming.BPM()
	}
	counts := make(map[float64]int, len(pts))
	for _, p := range pts {
		counts[p.BeatLength]++
	}
	best, bestCount := pts[0], 0
	for _, p := range pts {
		if c := counts[p.BeatLength]; c > bestCount {
			best, bestCount = p, c
		}
	}
	return best.BPM()
}
