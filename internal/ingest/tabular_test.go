package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playperu/racetrack/internal/racetrack"
)

func teams(names ...string) []racetrack.Team {
	out := make([]racetrack.Team, len(names))
	for i, n := range names {
		out[i] = racetrack.Team{ID: n, Name: n, Points: 7}
	}
	return out
}

func TestParseTabular(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		teams       []racetrack.Team
		want        []int
		wantUpdated bool
	}{
		{
			name:        "thousands separator",
			text:        "Red Team, 1,234 pts\n",
			teams:       teams("Red Team"),
			want:        []int{1234},
			wantUpdated: true,
		},
		{
			name:  "row without digits leaves score",
			text:  "Red Team, n/a\n",
			teams: teams("Red Team"),
			want:  []int{7},
		},
		{
			name:        "case insensitive substring of first cell",
			text:        "Team,Score\nthe RED TEAM (north),500\n",
			teams:       teams("Red Team"),
			want:        []int{500},
			wantUpdated: true,
		},
		{
			name:        "unmatched teams untouched",
			text:        "Blue,10\n",
			teams:       teams("Red", "Blue"),
			want:        []int{7, 10},
			wantUpdated: true,
		},
		{
			name:        "first matching row wins for prefix names",
			text:        "Red Knights,300\nRed,100\n",
			teams:       teams("Red"),
			want:        []int{300},
			wantUpdated: true,
		},
		{
			name:  "first match without score does not fall through",
			text:  "Red,\nRed,100\n",
			teams: teams("Red"),
			want:  []int{7},
		},
		{
			name:  "unchanged score is not an update",
			text:  "Red,7\n",
			teams: teams("Red"),
			want:  []int{7},
		},
		{
			name:        "quoted cells and CRLF",
			text:        "\"Red\",\"2,500\"\r\n\"Blue\",\"40\"\r\n",
			teams:       teams("Red", "Blue"),
			want:        []int{2500, 40},
			wantUpdated: true,
		},
		{
			name:        "extra columns after score",
			text:        "Red, 500, 3, 2024\n",
			teams:       teams("Red"),
			want:        []int{500},
			wantUpdated: true,
		},
		{
			name:        "separate numeric column is not a thousands group",
			text:        "Red Team,500,250\n",
			teams:       teams("Red Team"),
			want:        []int{500},
			wantUpdated: true,
		},
		{
			name:        "spaced columns stay separate",
			text:        "Red Team, 42, 100\n",
			teams:       teams("Red Team"),
			want:        []int{42},
			wantUpdated: true,
		},
		{
			name:        "unspaced thousands with suffix",
			text:        "Red Team,1,234 pts\n",
			teams:       teams("Red Team"),
			want:        []int{1234},
			wantUpdated: true,
		},
		{
			name:        "spaced score with bare thousands",
			text:        "Red Team, 1,234\n",
			teams:       teams("Red Team"),
			want:        []int{1234},
			wantUpdated: true,
		},
		{
			name:        "millions with suffix",
			text:        "Red Team,1,234,567 pts,extra\n",
			teams:       teams("Red Team"),
			want:        []int{1234567},
			wantUpdated: true,
		},
		{
			name:  "overflowing number ignored",
			text:  "Red,99999999999999999999999\n",
			teams: teams("Red"),
			want:  []int{7},
		},
		{
			name:  "empty team name never matches",
			text:  "anything,5\n",
			teams: []racetrack.Team{{ID: "x", Points: 7}},
			want:  []int{7},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, updated, err := ParseTabular(tt.text, tt.teams, ',')
			require.NoError(t, err)
			require.Len(t, got, len(tt.want))
			for i, w := range tt.want {
				assert.Equal(t, w, got[i].Points, "team %s", got[i].Name)
			}
			assert.Equal(t, tt.wantUpdated, updated)
		})
	}
}

func TestParseTabularDoesNotMutateInput(t *testing.T) {
	in := teams("Red")
	_, _, err := ParseTabular("Red,900\n", in, ',')
	require.NoError(t, err)
	assert.Equal(t, 7, in[0].Points)
}

func TestParseTabularTabDelimited(t *testing.T) {
	got, updated, err := ParseTabular("Red\t1,500\nBlue\t20\n", teams("Red", "Blue"), '\t')
	require.NoError(t, err)
	assert.True(t, updated)
	assert.Equal(t, 1500, got[0].Points)
	assert.Equal(t, 20, got[1].Points)
}

func TestParseTabularSemicolonKeepsThousandsInCell(t *testing.T) {
	got, updated, err := ParseTabular("Red;1,234;500\n", teams("Red"), ';')
	require.NoError(t, err)
	assert.True(t, updated)
	assert.Equal(t, 1234, got[0].Points)
}
