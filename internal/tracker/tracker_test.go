package tracker

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/playperu/racetrack/internal/ingest"
	"github.com/playperu/racetrack/internal/racetrack"
	"github.com/playperu/racetrack/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Publish(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

// feedFunc adapts a function to Fetcher.
type feedFunc func(ctx context.Context, url string) (ingest.Feed, error)

func (f feedFunc) Fetch(ctx context.Context, url string) (ingest.Feed, error) { return f(ctx, url) }

func csvFeed(body string) feedFunc {
	return func(context.Context, string) (ingest.Feed, error) {
		return ingest.Feed{ContentType: "text/csv", Body: []byte(body)}, nil
	}
}

func newTracker(t *testing.T, backend store.Backend, f Fetcher) (*Tracker, *recorder) {
	t.Helper()
	rec := &recorder{}
	tr, err := New(context.Background(), store.New(backend, slog.Default()), f, slog.Default(), Options{Notifier: rec})
	require.NoError(t, err)
	return tr, rec
}

func ptr[T any](v T) *T { return &v }

func TestNewPersistsDefault(t *testing.T) {
	backend := store.NewMemoryBackend(0)
	tr, _ := newTracker(t, backend, csvFeed(""))

	assert.Equal(t, racetrack.Default(), tr.State())
	_, err := backend.Get(context.Background(), store.DefaultKey)
	assert.NoError(t, err)
}

func TestMutatePersistsAndNotifies(t *testing.T) {
	ctx := context.Background()
	backend := store.NewMemoryBackend(0)
	tr, rec := newTracker(t, backend, csvFeed(""))

	_, err := tr.UpdateTeam(ctx, "red", TeamPatch{Name: ptr("  Crimson "), Color: ptr("#aa0000"), Icon: ptr("https://cdn.example.com/car.gif")})
	require.NoError(t, err)

	st := tr.State()
	assert.Equal(t, "Crimson", st.Teams[0].Name)
	assert.Equal(t, "#aa0000", st.Teams[0].Color)
	assert.Equal(t, []string{EventState}, rec.types())

	// A second tracker over the same backend sees the change.
	again, _ := newTracker(t, backend, csvFeed(""))
	assert.Equal(t, "Crimson", again.State().Teams[0].Name)
}

func TestUpdateTeamValidation(t *testing.T) {
	ctx := context.Background()
	tr, rec := newTracker(t, store.NewMemoryBackend(0), csvFeed(""))

	tests := []struct {
		name  string
		id    string
		patch TeamPatch
		want  error
	}{
		{"unknown team", "purple", TeamPatch{Name: ptr("P")}, ErrTeamNotFound},
		{"blank name", "red", TeamPatch{Name: ptr("   ")}, ErrInvalid},
		{"bad color", "red", TeamPatch{Color: ptr("red")}, ErrInvalid},
		{"script icon", "red", TeamPatch{Icon: ptr("javascript:alert(1)")}, ErrInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tr.UpdateTeam(ctx, tt.id, tt.patch)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, rec.types())
	assert.Equal(t, racetrack.Default(), tr.State())
}

func TestUpdateConfig(t *testing.T) {
	ctx := context.Background()
	tr, _ := newTracker(t, store.NewMemoryBackend(0), csvFeed(""))

	_, err := tr.UpdateConfig(ctx, ConfigPatch{
		SourceURL:        ptr(" https://docs.example.com/pub?output=csv "),
		PointsPerStretch: ptr(0.0),
		TotalGoals:       ptr(-3),
		AdventureName:    ptr("Grand Tour"),
	})
	require.NoError(t, err)

	cfg := tr.State().Config
	assert.Equal(t, "https://docs.example.com/pub?output=csv", cfg.SourceURL)
	assert.InDelta(t, racetrack.DefaultPointsPerStretch, cfg.PointsPerStretch, 0)
	assert.Equal(t, racetrack.DefaultTotalGoals, cfg.TotalGoals)
	assert.Equal(t, "Grand Tour", cfg.AdventureName)

	_, err = tr.UpdateConfig(ctx, ConfigPatch{SourceURL: ptr("ftp://nope")})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestSetPathAndReset(t *testing.T) {
	ctx := context.Background()
	tr, _ := newTracker(t, store.NewMemoryBackend(0), csvFeed(""))

	d := racetrack.NewDraft(nil)
	d.AddClick(0, 0, 800, 600)
	d.AddClick(800, 600, 800, 600)
	_, err := tr.SetPath(ctx, d.Points())
	require.NoError(t, err)
	assert.Equal(t, racetrack.Path{{X: 0, Y: 0}, {X: 100, Y: 100}}, tr.State().Map.Path)

	_, err = tr.SetPath(ctx, racetrack.Path{{X: 101, Y: 0}})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = tr.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, racetrack.Default(), tr.State())
}

func TestSetMapImageQuotaDegrades(t *testing.T) {
	ctx := context.Background()
	tr, rec := newTracker(t, store.NewMemoryBackend(4096), csvFeed(""))

	rep, err := tr.SetMapImage(ctx, "data:image/jpeg;base64,"+strings.Repeat("A", 8192))
	require.NoError(t, err)
	assert.True(t, rep.ImageCleared)
	assert.Empty(t, tr.State().Map.Image)
	assert.Equal(t, []string{EventState, EventWarning}, rec.types())

	_, err = tr.SetMapImage(ctx, "https://example.com/map.png")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestMutateCannotSaveKeepsChange(t *testing.T) {
	ctx := context.Background()
	tr, rec := newTracker(t, store.NewMemoryBackend(4096), csvFeed(""))

	icon := "data:image/gif;base64," + strings.Repeat("G", 8192)
	rep, err := tr.UpdateTeam(ctx, "teal", TeamPatch{Icon: &icon})
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrCannotSave)
	assert.NotEmpty(t, rep.Warning)
	assert.Equal(t, icon, tr.State().Teams[2].Icon)
	assert.Contains(t, rec.types(), EventWarning)
}

func TestMutateCannotSaveKeepsMapImage(t *testing.T) {
	ctx := context.Background()
	tr, _ := newTracker(t, store.NewMemoryBackend(4096), csvFeed(""))

	icon := "data:image/gif;base64," + strings.Repeat("G", 8192)
	_, err := tr.UpdateTeam(ctx, "teal", TeamPatch{Icon: &icon})
	require.ErrorIs(t, err, store.ErrCannotSave)

	img := "data:image/jpeg;base64," + strings.Repeat("J", 2048)
	rep, err := tr.SetMapImage(ctx, img)
	require.ErrorIs(t, err, store.ErrCannotSave)
	assert.False(t, rep.ImageCleared)
	assert.NotEmpty(t, rep.Warning)
	assert.Equal(t, img, tr.State().Map.Image)
}

func TestRefreshSurvivesCallerCancel(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	feed := feedFunc(func(ctx context.Context, _ string) (ingest.Feed, error) {
		close(started)
		select {
		case <-release:
		case <-ctx.Done():
			return ingest.Feed{}, ctx.Err()
		}
		return ingest.Feed{Body: []byte("Red Team,77\n")}, nil
	})
	tr, _ := newTracker(t, store.NewMemoryBackend(0), feed)
	_, err := tr.UpdateConfig(context.Background(), ConfigPatch{SourceURL: ptr("https://example.com/s.csv")})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := tr.Refresh(ctx)
		errc <- err
	}()
	<-started

	// The caller gives up; the shared fetch keeps going for everyone else.
	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)
	close(release)

	require.Eventually(t, func() bool {
		return tr.State().Teams[0].Points == 77
	}, 2*time.Second, 5*time.Millisecond)
}

func TestRefreshTabular(t *testing.T) {
	ctx := context.Background()
	tr, rec := newTracker(t, store.NewMemoryBackend(0), csvFeed("Red Team, 1,234 pts\nTeal Team,n/a\n"))

	res, err := tr.Refresh(ctx)
	require.NoError(t, err)
	assert.True(t, res.Skipped, "no source configured")

	_, err = tr.UpdateConfig(ctx, ConfigPatch{SourceURL: ptr("https://example.com/s.csv")})
	require.NoError(t, err)

	res, err = tr.Refresh(ctx)
	require.NoError(t, err)
	assert.True(t, res.Updated)
	assert.Equal(t, ingest.FormatTabular, res.Format)

	st := tr.State()
	assert.Equal(t, 1234, st.Teams[0].Points)
	assert.Equal(t, 0, st.Teams[2].Points)
	assert.Len(t, st.Teams, 4)
	assert.Equal(t, []string{EventState, EventState}, rec.types())

	// Same feed again changes nothing and publishes nothing.
	res, err = tr.Refresh(ctx)
	require.NoError(t, err)
	assert.False(t, res.Updated)
	assert.Len(t, rec.types(), 2)
}

func TestRefreshStructuredKeepsIcons(t *testing.T) {
	ctx := context.Background()
	feed := feedFunc(func(context.Context, string) (ingest.Feed, error) {
		return ingest.Feed{ContentType: "application/json", Body: []byte(`{"teams":[{"id":"red","name":"Red","points":50},{"id":"blue","name":"Blue"}]}`)}, nil
	})
	tr, _ := newTracker(t, store.NewMemoryBackend(0), feed)

	_, err := tr.UpdateTeam(ctx, "red", TeamPatch{Icon: ptr("red.gif")})
	require.NoError(t, err)
	_, err = tr.UpdateConfig(ctx, ConfigPatch{SourceURL: ptr("https://example.com/s.json")})
	require.NoError(t, err)

	_, err = tr.Refresh(ctx)
	require.NoError(t, err)

	st := tr.State()
	require.Len(t, st.Teams, 2)
	assert.Equal(t, "red.gif", st.Teams[0].Icon)
	assert.Equal(t, 50, st.Teams[0].Points)
	assert.Equal(t, "blue", st.Teams[1].ID)
}

func TestRefreshFailureIsNoop(t *testing.T) {
	ctx := context.Background()
	calls := 0
	feed := feedFunc(func(context.Context, string) (ingest.Feed, error) {
		calls++
		if calls == 1 {
			return ingest.Feed{}, errors.New("network down")
		}
		return ingest.Feed{ContentType: "application/json", Body: []byte("{broken")}, nil
	})
	tr, _ := newTracker(t, store.NewMemoryBackend(0), feed)
	_, err := tr.UpdateTeam(ctx, "red", TeamPatch{Name: ptr("Red Team")})
	require.NoError(t, err)
	_, err = tr.UpdateConfig(ctx, ConfigPatch{SourceURL: ptr("https://example.com/s")})
	require.NoError(t, err)
	before := tr.State()

	_, err = tr.Refresh(ctx)
	assert.Error(t, err)
	_, err = tr.Refresh(ctx)
	assert.Error(t, err)

	assert.Equal(t, before, tr.State())
}

func TestRefreshDropsStaleCompletion(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	started := make(chan struct{})

	feed := feedFunc(func(_ context.Context, url string) (ingest.Feed, error) {
		if strings.Contains(url, "old") {
			close(started)
			<-release
			return ingest.Feed{Body: []byte("Red Team,111\n")}, nil
		}
		return ingest.Feed{Body: []byte("Red Team,222\n")}, nil
	})
	tr, _ := newTracker(t, store.NewMemoryBackend(0), feed)
	_, err := tr.UpdateConfig(ctx, ConfigPatch{SourceURL: ptr("https://example.com/old")})
	require.NoError(t, err)

	done := make(chan RefreshResult)
	go func() {
		res, _ := tr.Refresh(ctx)
		done <- res
	}()
	<-started

	_, err = tr.UpdateConfig(ctx, ConfigPatch{SourceURL: ptr("https://example.com/new")})
	require.NoError(t, err)
	res, err := tr.Refresh(ctx)
	require.NoError(t, err)
	assert.True(t, res.Updated)

	close(release)
	old := <-done
	assert.True(t, old.Stale)
	assert.Equal(t, 222, tr.State().Teams[0].Points)
}

func TestRunPollsUntilCancelled(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	feed := feedFunc(func(context.Context, string) (ingest.Feed, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return ingest.Feed{Body: []byte("Red Team,5\n")}, nil
	})
	tr, _ := newTracker(t, store.NewMemoryBackend(0), feed)
	_, err := tr.UpdateConfig(context.Background(), ConfigPatch{SourceURL: ptr("https://example.com/s")})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- tr.Run(ctx, 10*time.Millisecond) }()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls >= 3
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	assert.NoError(t, <-errc)
	assert.Equal(t, 5, tr.State().Teams[0].Points)
}
