package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/playperu/racetrack/internal/racetrack"
)

// scorePattern matches the first run of digits, keeping comma thousands
// groups together so "1,234 pts" reads as 1234.
var scorePattern = regexp.MustCompile(`\d{1,3}(?:,\d{3})+|\d+`)

var (
	leadGroup   = regexp.MustCompile(`^\d{1,3}$`)
	pureGroup   = regexp.MustCompile(`^\d{3}$`)
	closedGroup = regexp.MustCompile(`^\d{3}\D`)
)

// row is one parsed record. spaced[i] reports whether whitespace preceded
// cell i in the raw text.
type row struct {
	cells  []string
	spaced []bool
}

// ParseTabular matches delimited rows against teams by name and returns a
// copy of teams with updated points. For each team the first row whose
// first cell contains the team name (case-insensitive) wins, even when a
// later row would also match. The score is read from the second cell.
// Teams without a usable score keep theirs.
func ParseTabular(text string, teams []racetrack.Team, delim rune) ([]racetrack.Team, bool, error) {
	if delim == 0 {
		delim = ','
	}

	rows, err := readRows(text, delim)
	if err != nil {
		return nil, false, err
	}

	out := append([]racetrack.Team(nil), teams...)
	updated := false
	for i := range out {
		name := strings.ToLower(strings.TrimSpace(out[i].Name))
		if name == "" {
			continue
		}

		r, ok := firstMatch(rows, name)
		if !ok || len(r.cells) < 2 {
			continue
		}
		score, ok := parseScore(scoreCell(r, delim))
		if !ok || score == out[i].Points {
			continue
		}
		out[i].Points = score
		updated = true
	}
	return out, updated, nil
}

func readRows(text string, delim rune) ([]row, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delim
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	starts := lineStarts(text)
	var rows []row
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading rows: %w", err)
		}

		spaced := make([]bool, len(rec))
		for i := 1; i < len(rec); i++ {
			line, col := r.FieldPos(i)
			if line < 1 || line > len(starts) {
				continue
			}
			off := starts[line-1] + col - 1
			spaced[i] = off > 0 && off <= len(text) && unicode.IsSpace(rune(text[off-1]))
		}
		rows = append(rows, row{cells: rec, spaced: spaced})
	}
}

func lineStarts(text string) []int {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

func firstMatch(rows []row, lowerName string) (row, bool) {
	for _, r := range rows {
		if len(r.cells) > 0 && strings.Contains(strings.ToLower(r.cells[0]), lowerName) {
			return r, true
		}
	}
	return row{}, false
}

// scoreCell returns the second cell. With a comma delimiter an unquoted
// "1,234 pts" arrives split into "1" and "234 pts"; such thousands groups
// are glued back when they follow without whitespace and either end in a
// non-digit suffix or the score cell itself was separated by a space.
// "Red,500,250" therefore reads 500 and "Red, 1,234" reads 1234.
func scoreCell(r row, delim rune) string {
	first := r.cells[1]
	if delim != ',' || !leadGroup.MatchString(first) {
		return first
	}

	j := 2
	for j < len(r.cells) && !r.spaced[j] && pureGroup.MatchString(r.cells[j]) {
		j++
	}
	switch {
	case j < len(r.cells) && !r.spaced[j] && closedGroup.MatchString(r.cells[j]):
		return strings.Join(r.cells[1:j+1], ",")
	case r.spaced[1] && j > 2:
		return strings.Join(r.cells[1:j], ",")
	}
	return first
}

func parseScore(s string) (int, bool) {
	m := scorePattern.FindString(s)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m, ",", ""))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
