package ingest

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/antonholmquist/jason"

	"github.com/playperu/racetrack/internal/racetrack"
)

// ErrNoTeams is returned for a payload without any team entries.
var ErrNoTeams = errors.New("feed contains no teams")

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// ValidColor reports whether c is a #rgb or #rrggbb color.
func ValidColor(c string) bool { return hexColor.MatchString(c) }

// ParseStructured decodes a JSON feed that is either an array of teams or
// an object with a "teams" array. The result replaces the team list; icons
// are carried over from existing teams with the same id.
func ParseStructured(body []byte, existing []racetrack.Team) ([]racetrack.Team, error) {
	root, err := jason.NewValueFromBytes(body)
	if err != nil {
		return nil, fmt.Errorf("decoding json: %w", err)
	}

	entries, err := teamEntries(root)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrNoTeams
	}

	byID := make(map[string]racetrack.Team, len(existing))
	for _, t := range existing {
		byID[t.ID] = t
	}

	teams := make([]racetrack.Team, 0, len(entries))
	for i, e := range entries {
		obj, err := e.Object()
		if err != nil {
			return nil, fmt.Errorf("team %d: not an object", i+1)
		}

		t := racetrack.Team{
			ID:     entryID(obj, i+1),
			Color:  racetrack.DefaultTeamColor,
			Points: entryPoints(obj),
		}
		prev, known := byID[t.ID]

		if name, err := obj.GetString("name"); err == nil {
			t.Name = strings.TrimSpace(name)
		}
		if t.Name == "" {
			t.Name = prev.Name
		}
		if t.Name == "" {
			t.Name = "Team " + strconv.Itoa(i+1)
		}

		if color, err := obj.GetString("color"); err == nil && ValidColor(strings.TrimSpace(color)) {
			t.Color = strings.TrimSpace(color)
		}
		if known {
			t.Icon = prev.Icon
		}
		teams = append(teams, t)
	}
	return teams, nil
}

func teamEntries(root *jason.Value) ([]*jason.Value, error) {
	if arr, err := root.Array(); err == nil {
		return arr, nil
	}
	obj, err := root.Object()
	if err != nil {
		return nil, errors.New("expected a team array or an object with teams")
	}
	v, err := obj.GetValue("teams")
	if err != nil {
		return nil, errors.New("object has no teams field")
	}
	arr, err := v.Array()
	if err != nil {
		return nil, errors.New("teams field is not an array")
	}
	return arr, nil
}

func entryID(obj *jason.Object, index int) string {
	v, err := obj.GetValue("id")
	if err != nil {
		return strconv.Itoa(index)
	}
	if s, err := v.String(); err == nil && strings.TrimSpace(s) != "" {
		return strings.TrimSpace(s)
	}
	if n, err := v.Number(); err == nil {
		return n.String()
	}
	return strconv.Itoa(index)
}

// entryPoints reads "points", falling back to "score" when points is absent
// or null. Anything that is not a finite number counts as zero.
func entryPoints(obj *jason.Object) int {
	for _, key := range []string{"points", "score"} {
		v, err := obj.GetValue(key)
		if err != nil || v.Null() == nil {
			continue
		}
		return toPoints(v)
	}
	return 0
}

func toPoints(v *jason.Value) int {
	var f float64
	if n, err := v.Number(); err == nil {
		parsed, err := n.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	} else if s, err := v.String(); err == nil {
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0
		}
		f = parsed
	} else {
		return 0
	}

	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0
	}
	if f >= math.MaxInt32 {
		return math.MaxInt32
	}
	return int(f)
}
