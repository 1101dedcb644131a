package racetrack

// PathDraft is an in-progress path built by clicking on the map editor.
// It is committed separately; edits never touch the live state.
type PathDraft struct {
	points Path
}

// NewDraft starts a draft from an existing path.
func NewDraft(p Path) *PathDraft {
	return &PathDraft{points: append(Path{}, p...)}
}

// AddClick records a click at pixel (px, py) on a canvas of the given size
// as percentage coordinates. Clicks on an empty canvas are ignored.
func (d *PathDraft) AddClick(px, py, width, height float64) bool {
	if width <= 0 || height <= 0 {
		return false
	}
	d.Add(PathPoint{X: px / width * 100, Y: py / height * 100})
	return true
}

func (d *PathDraft) Add(p PathPoint) {
	d.points = append(d.points, p)
}

func (d *PathDraft) Clear() {
	d.points = Path{}
}

func (d *PathDraft) Len() int { return len(d.points) }

// Points returns a copy of the drafted path.
func (d *PathDraft) Points() Path {
	return append(Path{}, d.points...)
}

// Valid reports whether every point lies inside the map bounds.
func (p Path) Valid() bool {
	for _, pt := range p {
		// Written so that NaN fails.
		if !(pt.X >= 0 && pt.X <= 100 && pt.Y >= 0 && pt.Y <= 100) {
			return false
		}
	}
	return true
}
