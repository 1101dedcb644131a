// Package tracker owns the single race state. Every change goes through
// Mutate, which applies the change to a copy, persists it through the
// snapshot store and only then publishes it.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/playperu/racetrack/internal/ingest"
	"github.com/playperu/racetrack/internal/racetrack"
	"github.com/playperu/racetrack/internal/store"
)

var (
	ErrTeamNotFound = errors.New("team not found")
	ErrInvalid      = errors.New("invalid input")
)

// Event types published to the Notifier.
const (
	EventState   = "state"
	EventWarning = "warning"
)

type Event struct {
	Type    string `json:"type"`
	Warning string `json:"warning,omitempty"`
}

// Notifier receives an event after every committed change.
type Notifier interface {
	Publish(Event)
}

// Fetcher downloads the score feed.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (ingest.Feed, error)
}

type Options struct {
	// Delimiter for tabular feeds; zero means comma.
	Delimiter rune
	Notifier  Notifier
}

type Tracker struct {
	store   *store.Store
	fetcher Fetcher
	logger  *slog.Logger
	opts    Options

	mu         sync.Mutex
	state      *racetrack.AppState
	appliedSeq uint64

	fetchSeq atomic.Uint64
	group    singleflight.Group
}

// New loads the persisted snapshot and returns a tracker around it. A fresh
// default state is persisted straight away.
func New(ctx context.Context, st *store.Store, fetcher Fetcher, logger *slog.Logger, opts Options) (*Tracker, error) {
	state, info, err := st.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading state: %w", err)
	}

	t := &Tracker{
		store:   st,
		fetcher: fetcher,
		logger:  logger,
		opts:    opts,
		state:   state,
	}

	if info.Fresh {
		logger.Info("starting from default state", "reason", info.Reason)
		if _, err := st.Save(ctx, t.state); err != nil {
			logger.Error("persisting default state failed", "error", err)
		}
	}
	return t, nil
}

// State returns a copy of the current state.
func (t *Tracker) State() *racetrack.AppState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Clone()
}

// Standings returns the ranked board for the renderer.
func (t *Tracker) Standings() racetrack.Board {
	return racetrack.Standings(t.State())
}

// Mutate applies fn to a copy of the state and persists the result. When fn
// fails nothing changes. When the save fails entirely the whole change,
// map image included, is kept in memory so the dashboard keeps showing it,
// and the save error is returned.
func (t *Tracker) Mutate(ctx context.Context, fn func(*racetrack.AppState) error) (store.SaveReport, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mutateLocked(ctx, fn)
}

func (t *Tracker) mutateLocked(ctx context.Context, fn func(*racetrack.AppState) error) (store.SaveReport, error) {
	next := t.state.Clone()
	if err := fn(next); err != nil {
		return store.SaveReport{}, err
	}

	image := next.Map.Image
	rep, err := t.store.Save(ctx, next)
	if errors.Is(err, store.ErrCannotSave) {
		// Nothing was written, so the image dropped for the retry stays.
		next.Map.Image = image
		rep.ImageCleared = false
	}
	t.state = next
	t.publish(Event{Type: EventState})
	if rep.Warning != "" {
		t.publish(Event{Type: EventWarning, Warning: rep.Warning})
	}
	if err != nil {
		return rep, fmt.Errorf("persisting state: %w", err)
	}
	return rep, nil
}

func (t *Tracker) publish(e Event) {
	if t.opts.Notifier != nil {
		t.opts.Notifier.Publish(e)
	}
}

// ConfigPatch carries the settings fields to change; nil means unchanged.
type ConfigPatch struct {
	SourceURL        *string  `json:"sourceUrl,omitempty"`
	PointsPerStretch *float64 `json:"pointsPerStretch,omitempty"`
	TotalGoals       *int     `json:"totalGoals,omitempty"`
	AdventureName    *string  `json:"adventureName,omitempty"`
}

// UpdateConfig applies p. Non-positive numbers fall back to the defaults.
func (t *Tracker) UpdateConfig(ctx context.Context, p ConfigPatch) (store.SaveReport, error) {
	if p.SourceURL != nil {
		u := strings.TrimSpace(*p.SourceURL)
		if u != "" && !isHTTPURL(u) {
			return store.SaveReport{}, fmt.Errorf("%w: sourceUrl must be an http or https URL", ErrInvalid)
		}
		p.SourceURL = &u
	}

	return t.Mutate(ctx, func(s *racetrack.AppState) error {
		if p.SourceURL != nil {
			s.Config.SourceURL = *p.SourceURL
		}
		if p.PointsPerStretch != nil {
			s.Config.PointsPerStretch = *p.PointsPerStretch
			if !(s.Config.PointsPerStretch > 0) {
				s.Config.PointsPerStretch = racetrack.DefaultPointsPerStretch
			}
		}
		if p.TotalGoals != nil {
			s.Config.TotalGoals = *p.TotalGoals
			if s.Config.TotalGoals <= 0 {
				s.Config.TotalGoals = racetrack.DefaultTotalGoals
			}
		}
		if p.AdventureName != nil {
			s.Config.AdventureName = strings.TrimSpace(*p.AdventureName)
		}
		return nil
	})
}

// TeamPatch carries the team fields a user may edit; nil means unchanged.
type TeamPatch struct {
	Name  *string `json:"name,omitempty"`
	Color *string `json:"color,omitempty"`
	Icon  *string `json:"icon,omitempty"`
}

func (t *Tracker) UpdateTeam(ctx context.Context, id string, p TeamPatch) (store.SaveReport, error) {
	if p.Name != nil {
		n := strings.TrimSpace(*p.Name)
		if n == "" {
			return store.SaveReport{}, fmt.Errorf("%w: name must not be empty", ErrInvalid)
		}
		p.Name = &n
	}
	if p.Color != nil && !ingest.ValidColor(*p.Color) {
		return store.SaveReport{}, fmt.Errorf("%w: color must be #rgb or #rrggbb", ErrInvalid)
	}
	if p.Icon != nil && !validIcon(*p.Icon) {
		return store.SaveReport{}, fmt.Errorf("%w: icon must be an http(s) URL, a relative path or an image data URL", ErrInvalid)
	}

	return t.Mutate(ctx, func(s *racetrack.AppState) error {
		i := s.Team(id)
		if i < 0 {
			return ErrTeamNotFound
		}
		if p.Name != nil {
			s.Teams[i].Name = *p.Name
		}
		if p.Color != nil {
			s.Teams[i].Color = *p.Color
		}
		if p.Icon != nil {
			s.Teams[i].Icon = *p.Icon
		}
		return nil
	})
}

// SetMapImage replaces the map background with an encoded image.
func (t *Tracker) SetMapImage(ctx context.Context, dataURL string) (store.SaveReport, error) {
	if dataURL != "" && !strings.HasPrefix(dataURL, "data:image/") {
		return store.SaveReport{}, fmt.Errorf("%w: map image must be an image data URL", ErrInvalid)
	}
	return t.Mutate(ctx, func(s *racetrack.AppState) error {
		s.Map.Image = dataURL
		return nil
	})
}

// SetPath commits an edited path.
func (t *Tracker) SetPath(ctx context.Context, p racetrack.Path) (store.SaveReport, error) {
	if !p.Valid() {
		return store.SaveReport{}, fmt.Errorf("%w: path coordinates must be within 0-100", ErrInvalid)
	}
	return t.Mutate(ctx, func(s *racetrack.AppState) error {
		s.Map.Path = append(racetrack.Path{}, p...)
		return nil
	})
}

// Reset discards everything and stores the default state.
func (t *Tracker) Reset(ctx context.Context) (store.SaveReport, error) {
	return t.Mutate(ctx, func(s *racetrack.AppState) error {
		*s = *racetrack.Default()
		return nil
	})
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func validIcon(raw string) bool {
	if raw == "" || strings.HasPrefix(raw, "data:image/") {
		return true
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "":
		return true
	case "http", "https":
		return u.Host != ""
	}
	return false
}
