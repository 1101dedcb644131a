package racetrack

import (
	"math"
	"testing"
)

func TestPathDraft(t *testing.T) {
	live := Path{{10, 10}}
	d := NewDraft(live)

	if !d.AddClick(400, 200, 800, 400) {
		t.Fatal("AddClick on a sized canvas returned false")
	}
	if d.AddClick(1, 1, 0, 400) {
		t.Error("AddClick on a zero-width canvas returned true")
	}

	got := d.Points()
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[1] != (PathPoint{X: 50, Y: 50}) {
		t.Errorf("click point = %+v, want {50 50}", got[1])
	}
	if len(live) != 1 {
		t.Errorf("draft mutated the live path: %v", live)
	}

	d.Clear()
	if d.Len() != 0 {
		t.Errorf("after Clear len = %d, want 0", d.Len())
	}
}

func TestPathValid(t *testing.T) {
	tests := []struct {
		name string
		path Path
		want bool
	}{
		{"empty", Path{}, true},
		{"inside", Path{{0, 0}, {100, 100}}, true},
		{"negative", Path{{-1, 0}}, false},
		{"too large", Path{{50, 100.5}}, false},
		{"nan", Path{{math.NaN(), 1}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.path.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}
