package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/racetrack/internal/imaging"
	"github.com/playperu/racetrack/internal/tracker"
)

// handleMapImage accepts a multipart "image" field, shrinks it and stores
// it as the map background.
func handleMapImage(logger *slog.Logger, tr *tracker.Tracker, opts imaging.Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxMapUploadBytes)
		if err := r.ParseMultipartForm(multipartMemoryBuffer); err != nil {
			writeError(w, http.StatusBadRequest, "invalid upload")
			return
		}
		defer r.MultipartForm.RemoveAll()

		file, hdr, err := r.FormFile("image")
		if err != nil {
			writeError(w, http.StatusBadRequest, "image field is required")
			return
		}
		defer file.Close()

		img, err := imaging.Compress(file, opts)
		if errors.Is(err, imaging.ErrTooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "image dimensions too large")
			return
		}
		if errors.Is(err, imaging.ErrNotImage) {
			writeError(w, http.StatusUnsupportedMediaType, "file is not a supported image")
			return
		}
		if err != nil {
			logger.Error("compressing map image failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		logger.Info("map image compressed",
			"file", hdr.Filename,
			"upload_bytes", hdr.Size,
			"stored_bytes", img.Bytes,
			"width", img.Width,
			"height", img.Height,
		)

		rep, err := tr.SetMapImage(r.Context(), img.DataURL)
		writeMutation(w, logger, tr, rep, err)
	}
}

// handleTeamIcon accepts a multipart "icon" field and stores it verbatim as
// a data URL on the team.
func handleTeamIcon(logger *slog.Logger, tr *tracker.Tracker, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+64<<10)
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			writeError(w, http.StatusRequestEntityTooLarge, "icon too large or invalid upload")
			return
		}
		defer r.MultipartForm.RemoveAll()

		file, _, err := r.FormFile("icon")
		if err != nil {
			writeError(w, http.StatusBadRequest, "icon field is required")
			return
		}
		defer file.Close()

		blob, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid upload")
			return
		}
		if int64(len(blob)) > maxBytes {
			writeError(w, http.StatusRequestEntityTooLarge, "icon too large")
			return
		}

		dataURL, err := imaging.DataURL(blob)
		if err != nil {
			writeError(w, http.StatusUnsupportedMediaType, "file is not an image")
			return
		}

		rep, err := tr.UpdateTeam(r.Context(), chi.URLParam(r, "id"), tracker.TeamPatch{Icon: &dataURL})
		writeMutation(w, logger, tr, rep, err)
	}
}
