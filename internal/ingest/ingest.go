// Package ingest turns a remote score feed into the tracker's team list.
//
// Two feed shapes are understood: delimited text with "name, score" rows,
// which updates known teams in place, and JSON (an array of teams or an
// object with a "teams" array), which replaces the team list.
package ingest

import (
	"bytes"
	"fmt"
	"mime"
	"strings"

	"github.com/playperu/racetrack/internal/racetrack"
)

type Format string

const (
	FormatTabular    Format = "tabular"
	FormatStructured Format = "structured"
)

// Result is the outcome of one ingestion cycle.
type Result struct {
	Format  Format
	Teams   []racetrack.Team
	Updated bool
}

// Options tune parsing.
type Options struct {
	// Delimiter separates cells in tabular feeds. Zero means comma.
	Delimiter rune
}

// Detect infers the feed format from the content type, then the body.
func Detect(contentType string, body []byte) Format {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		if mt == "application/json" || strings.HasSuffix(mt, "+json") {
			return FormatStructured
		}
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '{') {
		return FormatStructured
	}
	return FormatTabular
}

// Apply parses feed against the current teams. It never mutates teams.
func Apply(feed Feed, teams []racetrack.Team, opts Options) (Result, error) {
	format := Detect(feed.ContentType, feed.Body)

	switch format {
	case FormatStructured:
		next, err := ParseStructured(feed.Body, teams)
		if err != nil {
			return Result{Format: format}, fmt.Errorf("parsing structured feed: %w", err)
		}
		return Result{Format: format, Teams: next, Updated: !sameTeams(teams, next)}, nil
	default:
		next, updated, err := ParseTabular(string(feed.Body), teams, opts.Delimiter)
		if err != nil {
			return Result{Format: format}, fmt.Errorf("parsing tabular feed: %w", err)
		}
		return Result{Format: format, Teams: next, Updated: updated}, nil
	}
}

func sameTeams(a, b []racetrack.Team) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
