package racetrack

import "math"

// SegmentLengths returns the Euclidean length of every segment of p.
func SegmentLengths(p Path) []float64 {
	if len(p) < 2 {
		return nil
	}
	lengths := make([]float64, len(p)-1)
	for i := 0; i < len(p)-1; i++ {
		lengths[i] = math.Hypot(p[i+1].X-p[i].X, p[i+1].Y-p[i].Y)
	}
	return lengths
}

// TotalLength is the sum of all segment lengths of p.
func TotalLength(p Path) float64 {
	var total float64
	for _, l := range SegmentLengths(p) {
		total += l
	}
	return total
}

// PointAt returns the point at the given fractional distance along p.
// The second result is false when p has fewer than two points, in which
// case there is nothing to render. progress is expected in [0,1]; callers
// clamp it with Progress.
func PointAt(progress float64, p Path) (PathPoint, bool) {
	if len(p) < 2 {
		return PathPoint{}, false
	}

	lengths := SegmentLengths(p)
	var total float64
	for _, l := range lengths {
		total += l
	}
	if total == 0 {
		return p[0], true
	}

	target := total * progress
	var current float64
	for i, l := range lengths {
		if current+l >= target {
			if l == 0 {
				return p[i], true
			}
			ratio := (target - current) / l
			return PathPoint{
				X: p[i].X + (p[i+1].X-p[i].X)*ratio,
				Y: p[i].Y + (p[i+1].Y-p[i].Y)*ratio,
			}, true
		}
		current += l
	}

	// Float rounding can leave target just past the accumulated length.
	return p[len(p)-1], true
}

// DistanceAt returns the distance walked along p for the given progress.
func DistanceAt(progress float64, p Path) float64 {
	return TotalLength(p) * progress
}
