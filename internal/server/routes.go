package server

import (
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"
	"golang.org/x/time/rate"

	"github.com/playperu/racetrack/internal/handler/health"
	"github.com/playperu/racetrack/internal/imaging"
	"github.com/playperu/racetrack/internal/racetrack"
	"github.com/playperu/racetrack/internal/tracker"
)

// Deps are the collaborators the HTTP layer calls into.
type Deps struct {
	Tracker *tracker.Tracker
	Broker  *Broker
	Checks  map[string]health.Checker

	Images       imaging.Options
	IconMaxBytes int64
	// RefreshRate limits manual refreshes; zero means one per second.
	RefreshRate rate.Limit
	SPADir      string
}

const (
	defaultIconMaxBytes   = 512 << 10
	maxMapUploadBytes     = 20 << 20
	defaultRefreshRate    = rate.Limit(1)
	defaultRefreshBurst   = 3
	multipartMemoryBuffer = 8 << 20
)

func addRoutes(r chi.Router, logger *slog.Logger, deps Deps) {
	if deps.IconMaxBytes <= 0 {
		deps.IconMaxBytes = defaultIconMaxBytes
	}
	if deps.RefreshRate <= 0 {
		deps.RefreshRate = defaultRefreshRate
	}
	tr := deps.Tracker

	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("Race Tracker API", "/openapi.json", "/docs"))
	r.Mount("/healthz", health.NewHandler(logger, racetrack.Version, deps.Checks).Routes())
	r.Get("/ws/standings", handleWSStandings(logger, tr, deps.Broker))

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", handleState(tr))
		r.Get("/standings", handleStandings(tr))
		r.Get("/events", handleEvents(tr, deps.Broker))

		r.Put("/config", handleUpdateConfig(logger, tr))
		r.Put("/teams/{id}", handleUpdateTeam(logger, tr))
		r.Post("/teams/{id}/icon", handleTeamIcon(logger, tr, deps.IconMaxBytes))
		r.Post("/map/image", handleMapImage(logger, tr, deps.Images))
		r.Put("/map/path", handleMapPath(logger, tr))
		r.Post("/reset", handleReset(logger, tr))

		r.With(rateLimit(rate.NewLimiter(deps.RefreshRate, defaultRefreshBurst))).
			Post("/refresh", handleRefresh(tr))
	})

	if deps.SPADir != "" {
		if info, err := os.Stat(deps.SPADir); err == nil && info.IsDir() {
			logger.Info("serving SPA", "dir", deps.SPADir)
			r.NotFound(handleSPA(deps.SPADir))
		}
	}
}
