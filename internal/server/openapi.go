package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/playperu/racetrack/internal/handler/health"
	"github.com/playperu/racetrack/internal/racetrack"
	"github.com/playperu/racetrack/internal/tracker"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

type teamIDPath struct {
	ID string `path:"id"`
}

type mapImageUpload struct {
	Image []byte `formData:"image" contentType:"image/*"`
}

type teamIconUpload struct {
	teamIDPath
	Icon []byte `formData:"icon" contentType:"image/*"`
}

type teamUpdate struct {
	teamIDPath
	tracker.TeamPatch
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "Race Tracker API"
	r.Spec.Info.Version = racetrack.Version
	r.Spec.Info.WithDescription("Standings, race map and settings for the race score tracker.")

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Returns the health status of the snapshot store.")
	getHealthz.AddRespStructure(health.Report{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(health.Report{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	// GET /api/state
	getState, _ := r.NewOperationContext(http.MethodGet, "/api/state")
	getState.SetSummary("Get state")
	getState.SetDescription("Returns the full snapshot. Supports If-None-Match with the returned ETag.")
	getState.AddRespStructure(racetrack.AppState{}, openapi.WithHTTPStatus(http.StatusOK))
	getState.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusNotModified))
	_ = r.AddOperation(getState)

	// GET /api/standings
	getStandings, _ := r.NewOperationContext(http.MethodGet, "/api/standings")
	getStandings.SetSummary("Get standings")
	getStandings.SetDescription("Teams ranked by points with their progress and position on the map path.")
	getStandings.AddRespStructure(racetrack.Board{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(getStandings)

	// GET /api/events
	getEvents, _ := r.NewOperationContext(http.MethodGet, "/api/events")
	getEvents.SetSummary("SSE event stream")
	getEvents.SetDescription("Server-Sent Events: \"state\" carries standings, \"warning\" carries storage warnings.")
	getEvents.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("text/event-stream"))
	_ = r.AddOperation(getEvents)

	// GET /ws/standings
	getWS, _ := r.NewOperationContext(http.MethodGet, "/ws/standings")
	getWS.SetSummary("WebSocket standings")
	getWS.SetDescription("Upgrades to a WebSocket that pushes standings after every change.")
	getWS.AddRespStructure(WSMessage{}, openapi.WithHTTPStatus(http.StatusSwitchingProtocols))
	_ = r.AddOperation(getWS)

	// PUT /api/config
	putConfig, _ := r.NewOperationContext(http.MethodPut, "/api/config")
	putConfig.SetSummary("Update settings")
	putConfig.SetDescription("Changes the feed URL, points per stretch, total goals or adventure name.")
	putConfig.AddReqStructure(tracker.ConfigPatch{})
	putConfig.AddRespStructure(MutationResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	putConfig.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	putConfig.AddRespStructure(MutationResponse{}, openapi.WithHTTPStatus(http.StatusInsufficientStorage))
	_ = r.AddOperation(putConfig)

	// PUT /api/teams/{id}
	putTeam, _ := r.NewOperationContext(http.MethodPut, "/api/teams/{id}")
	putTeam.SetSummary("Update team")
	putTeam.SetDescription("Changes a team's name, color or icon.")
	putTeam.AddReqStructure(teamUpdate{})
	putTeam.AddRespStructure(MutationResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	putTeam.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	putTeam.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	putTeam.AddRespStructure(MutationResponse{}, openapi.WithHTTPStatus(http.StatusInsufficientStorage))
	_ = r.AddOperation(putTeam)

	// POST /api/teams/{id}/icon
	postIcon, _ := r.NewOperationContext(http.MethodPost, "/api/teams/{id}/icon")
	postIcon.SetSummary("Upload team icon")
	postIcon.SetDescription("Stores the uploaded image as the team icon (multipart field \"icon\").")
	postIcon.AddReqStructure(teamIconUpload{})
	postIcon.AddRespStructure(MutationResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postIcon.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusRequestEntityTooLarge))
	postIcon.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnsupportedMediaType))
	_ = r.AddOperation(postIcon)

	// POST /api/map/image
	postMap, _ := r.NewOperationContext(http.MethodPost, "/api/map/image")
	postMap.SetSummary("Upload map image")
	postMap.SetDescription("Downscales and re-encodes the uploaded map background (multipart field \"image\").")
	postMap.AddReqStructure(mapImageUpload{})
	postMap.AddRespStructure(MutationResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postMap.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusRequestEntityTooLarge))
	postMap.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnsupportedMediaType))
	postMap.AddRespStructure(MutationResponse{}, openapi.WithHTTPStatus(http.StatusInsufficientStorage))
	_ = r.AddOperation(postMap)

	// PUT /api/map/path
	putPath, _ := r.NewOperationContext(http.MethodPut, "/api/map/path")
	putPath.SetSummary("Save map path")
	putPath.SetDescription("Commits the path editor, given as percent points or as canvas clicks.")
	putPath.AddReqStructure(MapPathRequest{})
	putPath.AddRespStructure(MutationResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	putPath.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(putPath)

	// POST /api/refresh
	postRefresh, _ := r.NewOperationContext(http.MethodPost, "/api/refresh")
	postRefresh.SetSummary("Refresh scores")
	postRefresh.SetDescription("Fetches the score feed now instead of waiting for the next poll.")
	postRefresh.AddRespStructure(tracker.RefreshResult{}, openapi.WithHTTPStatus(http.StatusOK))
	postRefresh.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadGateway))
	postRefresh.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusTooManyRequests))
	_ = r.AddOperation(postRefresh)

	// POST /api/reset
	postReset, _ := r.NewOperationContext(http.MethodPost, "/api/reset")
	postReset.SetSummary("Reset")
	postReset.SetDescription("Discards all teams, map and settings and restores the defaults.")
	postReset.AddRespStructure(MutationResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(postReset)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
