package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/racetrack/internal/racetrack"
	"github.com/playperu/racetrack/internal/store"
	"github.com/playperu/racetrack/internal/tracker"
)

// MapPathRequest commits the path editor. Either Points (percent) or
// Clicks (pixels on a Width x Height canvas) are given.
type MapPathRequest struct {
	Points racetrack.Path `json:"points,omitempty"`
	Clicks racetrack.Path `json:"clicks,omitempty"`
	Width  float64        `json:"width,omitempty"`
	Height float64        `json:"height,omitempty"`
}

func handleUpdateConfig(logger *slog.Logger, tr *tracker.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req tracker.ConfigPatch
		if err := readJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		rep, err := tr.UpdateConfig(r.Context(), req)
		writeMutation(w, logger, tr, rep, err)
	}
}

func handleUpdateTeam(logger *slog.Logger, tr *tracker.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req tracker.TeamPatch
		if err := readJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		rep, err := tr.UpdateTeam(r.Context(), chi.URLParam(r, "id"), req)
		writeMutation(w, logger, tr, rep, err)
	}
}

func handleMapPath(logger *slog.Logger, tr *tracker.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req MapPathRequest
		if err := readJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		draft := racetrack.NewDraft(req.Points)
		if len(req.Clicks) > 0 {
			for _, c := range req.Clicks {
				if !draft.AddClick(c.X, c.Y, req.Width, req.Height) {
					writeError(w, http.StatusBadRequest, "width and height are required with clicks")
					return
				}
			}
		}

		rep, err := tr.SetPath(r.Context(), draft.Points())
		writeMutation(w, logger, tr, rep, err)
	}
}

func handleReset(logger *slog.Logger, tr *tracker.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep, err := tr.Reset(r.Context())
		writeMutation(w, logger, tr, rep, err)
	}
}

func handleRefresh(tr *tracker.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := tr.Refresh(r.Context())
		if err != nil {
			writeError(w, http.StatusBadGateway, "refresh failed: "+err.Error())
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// writeMutation maps a tracker result onto the response. A failed save is
// reported with 507 but still carries the in-memory state and the warning.
func writeMutation(w http.ResponseWriter, logger *slog.Logger, tr *tracker.Tracker, rep store.SaveReport, err error) {
	resp := MutationResponse{
		ImageCleared: rep.ImageCleared,
		Warning:      rep.Warning,
	}

	switch {
	case err == nil:
		resp.State = tr.State()
		writeJSON(w, http.StatusOK, resp)
	case errors.Is(err, tracker.ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, tracker.ErrTeamNotFound):
		writeError(w, http.StatusNotFound, "team not found")
	case errors.Is(err, store.ErrCannotSave):
		resp.State = tr.State()
		resp.Error = "cannot save state"
		writeJSON(w, http.StatusInsufficientStorage, resp)
	default:
		logger.Error("mutation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
