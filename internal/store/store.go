// Package store persists the tracker state as a single versioned snapshot.
//
// The snapshot lives under one key in a Backend with a byte quota, the
// server-side analogue of browser local storage. A snapshot written by a
// different version is discarded on load; there is no migration path.
// When a save does not fit, the map background image (the only large
// field) is dropped and the save retried once.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/playperu/racetrack/internal/racetrack"
)

// DefaultKey is the storage key of the snapshot.
const DefaultKey = "raceTrackerState"

var (
	ErrNotFound      = errors.New("snapshot not found")
	ErrQuotaExceeded = errors.New("storage quota exceeded")
	ErrCannotSave    = errors.New("cannot save state")
)

const (
	warnImageCleared = "Storage is full: the map image was removed so the race data could be saved. Upload a smaller image."
	warnCannotSave   = "Storage is full even without the map image: changes are not saved. Fix this manually by removing large team icons or resetting."
)

// Backend stores opaque blobs by key.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Put returns ErrQuotaExceeded when blob does not fit.
	Put(ctx context.Context, key string, blob []byte) error
	Delete(ctx context.Context, key string) error
}

// LoadInfo explains where a loaded state came from.
type LoadInfo struct {
	// Fresh is true when the default snapshot was returned.
	Fresh bool
	// Reason is set when Fresh: "missing", "version" or "corrupt".
	Reason        string
	StoredVersion string
}

// SaveReport describes a completed save.
type SaveReport struct {
	ImageCleared bool   `json:"imageCleared"`
	Warning      string `json:"warning,omitempty"`
}

// SaveError is returned when a snapshot could not be persisted at all.
// It wraps ErrCannotSave.
type SaveError struct {
	Warning string
	Err     error
}

func (e *SaveError) Error() string { return fmt.Sprintf("%v: %v", ErrCannotSave, e.Err) }

func (e *SaveError) Unwrap() []error { return []error{ErrCannotSave, e.Err} }

type Store struct {
	backend Backend
	key     string
	version string
	logger  *slog.Logger
}

// New creates a store for the running racetrack.Version.
func New(backend Backend, logger *slog.Logger) *Store {
	return &Store{
		backend: backend,
		key:     DefaultKey,
		version: racetrack.Version,
		logger:  logger,
	}
}

// WithVersion returns a copy of s that stamps and checks version instead.
func (s *Store) WithVersion(version string) *Store {
	c := *s
	c.version = version
	return &c
}

// Load returns the persisted state, or a fresh default when there is none,
// when it was written by another version, or when it cannot be decoded.
func (s *Store) Load(ctx context.Context) (*racetrack.AppState, LoadInfo, error) {
	blob, err := s.backend.Get(ctx, s.key)
	if errors.Is(err, ErrNotFound) {
		return s.fresh(), LoadInfo{Fresh: true, Reason: "missing"}, nil
	}
	if err != nil {
		return nil, LoadInfo{}, fmt.Errorf("reading snapshot: %w", err)
	}

	var st racetrack.AppState
	if err := json.Unmarshal(blob, &st); err != nil {
		s.logger.Warn("discarding undecodable snapshot", "key", s.key, "error", err)
		return s.fresh(), LoadInfo{Fresh: true, Reason: "corrupt"}, nil
	}
	if st.Version != s.version {
		s.logger.Info("resetting state to default",
			"stored_version", st.Version,
			"running_version", s.version,
		)
		return s.fresh(), LoadInfo{Fresh: true, Reason: "version", StoredVersion: st.Version}, nil
	}
	if st.Map.Path == nil {
		st.Map.Path = racetrack.Path{}
	}
	return &st, LoadInfo{StoredVersion: st.Version}, nil
}

// Save persists the whole state. On a quota failure it clears
// state.Map.Image in place and retries once; the caller's state therefore
// reflects what was (or would have been) stored.
func (s *Store) Save(ctx context.Context, state *racetrack.AppState) (SaveReport, error) {
	state.Version = s.version

	err := s.put(ctx, state)
	if err == nil {
		return SaveReport{}, nil
	}
	if !errors.Is(err, ErrQuotaExceeded) {
		return SaveReport{}, fmt.Errorf("saving snapshot: %w", err)
	}

	s.logger.Warn("snapshot exceeds storage quota, retrying without map image",
		"key", s.key,
		"image_bytes", len(state.Map.Image),
	)
	state.Map.Image = ""

	if err := s.put(ctx, state); err != nil {
		s.logger.Error("snapshot still does not fit", "key", s.key, "error", err)
		return SaveReport{ImageCleared: true, Warning: warnCannotSave}, &SaveError{Warning: warnCannotSave, Err: err}
	}
	return SaveReport{ImageCleared: true, Warning: warnImageCleared}, nil
}

// Reset replaces the stored snapshot with a fresh default and returns it.
func (s *Store) Reset(ctx context.Context) (*racetrack.AppState, SaveReport, error) {
	st := s.fresh()
	rep, err := s.Save(ctx, st)
	return st, rep, err
}

func (s *Store) put(ctx context.Context, state *racetrack.AppState) error {
	blob, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	return s.backend.Put(ctx, s.key, blob)
}

func (s *Store) fresh() *racetrack.AppState {
	st := racetrack.Default()
	st.Version = s.version
	return st
}
