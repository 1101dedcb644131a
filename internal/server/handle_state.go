package server

import (
	"encoding/hex"
	"encoding/json"
	"net/http"

	"golang.org/x/crypto/blake2b"

	"github.com/playperu/racetrack/internal/racetrack"
	"github.com/playperu/racetrack/internal/tracker"
)

// handleState returns the full snapshot. The ETag lets a polling renderer
// skip re-downloading large embedded images.
func handleState(tr *tracker.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := json.Marshal(tr.State())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		sum := blake2b.Sum256(data)
		etag := `"` + hex.EncodeToString(sum[:16]) + `"`
		w.Header().Set("ETag", etag)
		w.Header().Set("Cache-Control", "no-cache")

		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(append(data, '\n'))
	}
}

func handleStandings(tr *tracker.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, tr.Standings())
	}
}

// MutationResponse is returned by every endpoint that changes the state.
type MutationResponse struct {
	State        *racetrack.AppState `json:"state"`
	ImageCleared bool                `json:"imageCleared,omitempty"`
	Warning      string              `json:"warning,omitempty"`
	Error        string              `json:"error,omitempty"`
}
