package racetrack

import (
	"math"
	"sort"
)

// Progress converts a score into a normalized progress clamped to [0,1].
// A config without positive total race points yields 0.
func Progress(points int, cfg Config) float64 {
	total := cfg.TotalRacePoints()
	if total <= 0 || math.IsNaN(total) {
		return 0
	}
	return math.Max(0, math.Min(1, float64(points)/total))
}

// Position places a team on the state's path.
func Position(t Team, s *AppState) (PathPoint, bool) {
	return PointAt(Progress(t.Points, s.Config), s.Map.Path)
}

// Standing is one leaderboard row.
type Standing struct {
	Rank     int        `json:"rank"`
	Team     Team       `json:"team"`
	Progress float64    `json:"progress"`
	Position *PathPoint `json:"position"`
	Leader   bool       `json:"leader"`
}

// Board is the ranked view consumed by the renderer.
type Board struct {
	AdventureName   string     `json:"adventureName"`
	TotalRacePoints float64    `json:"totalRacePoints"`
	HasPath         bool       `json:"hasPath"`
	Standings       []Standing `json:"standings"`
	Champion        *Standing  `json:"champion"`
}

// Standings ranks teams by points, highest first. Ties keep team order.
func Standings(s *AppState) Board {
	teams := append([]Team(nil), s.Teams...)
	sort.SliceStable(teams, func(i, j int) bool {
		return teams[i].Points > teams[j].Points
	})

	b := Board{
		AdventureName:   s.Config.AdventureName,
		TotalRacePoints: s.Config.TotalRacePoints(),
		HasPath:         len(s.Map.Path) >= 2,
		Standings:       make([]Standing, len(teams)),
	}
	for i, t := range teams {
		st := Standing{
			Rank:     i + 1,
			Team:     t,
			Progress: Progress(t.Points, s.Config),
			Leader:   i == 0,
		}
		if pos, ok := PointAt(st.Progress, s.Map.Path); ok {
			st.Position = &pos
		}
		b.Standings[i] = st
	}

	if len(b.Standings) > 0 && b.Standings[0].Team.Points > 0 {
		champ := b.Standings[0]
		b.Champion = &champ
	}
	return b
}
