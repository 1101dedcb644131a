// Package racetrack defines the core domain types of the race tracker and
// the pure functions that place teams on the map.
package racetrack

// Version is the running snapshot version. A persisted snapshot carrying a
// different tag is discarded on load.
const Version = "1.1"

// Default configuration values, also used as fallbacks for invalid input.
const (
	DefaultPointsPerStretch = 10000
	DefaultTotalGoals       = 10
	DefaultAdventureName    = "Bear's Hankel Race"
	DefaultTeamColor        = "#ffffff"
)

type Team struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Color  string `json:"color"`
	Icon   string `json:"icon"`
	Points int    `json:"points"`
}

// PathPoint is a position in percent of the map image bounds.
type PathPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Path []PathPoint

type Map struct {
	Image string `json:"image"`
	Path  Path   `json:"path"`
}

type Config struct {
	SourceURL        string  `json:"sourceUrl"`
	PointsPerStretch float64 `json:"pointsPerStretch"`
	TotalGoals       int     `json:"totalGoals"`
	AdventureName    string  `json:"adventureName"`
}

// TotalRacePoints is the score at which a team reaches the end of the path.
func (c Config) TotalRacePoints() float64 {
	return c.PointsPerStretch * float64(c.TotalGoals)
}

type AppState struct {
	Version string `json:"version"`
	Teams   []Team `json:"teams"`
	Map     Map    `json:"map"`
	Config  Config `json:"config"`
}

// Default returns a fresh snapshot stamped with the running version.
func Default() *AppState {
	return &AppState{
		Version: Version,
		Teams: []Team{
			{ID: "red", Name: "Red Team", Color: "#ef4444"},
			{ID: "yellow", Name: "Yellow Team", Color: "#eab308"},
			{ID: "teal", Name: "Teal Team", Color: "#14b8a6"},
			{ID: "green", Name: "Green Team", Color: "#22c55e"},
		},
		Map: Map{Path: Path{}},
		Config: Config{
			PointsPerStretch: DefaultPointsPerStretch,
			TotalGoals:       DefaultTotalGoals,
			AdventureName:    DefaultAdventureName,
		},
	}
}

// Clone returns a deep copy of s.
func (s *AppState) Clone() *AppState {
	c := *s
	c.Teams = append([]Team(nil), s.Teams...)
	c.Map.Path = append(Path{}, s.Map.Path...)
	return &c
}

// Team returns the index of the team with the given id, or -1.
func (s *AppState) Team(id string) int {
	for i := range s.Teams {
		if s.Teams[i].ID == id {
			return i
		}
	}
	return -1
}
