package tracker

import (
	"context"
	"time"

	"github.com/playperu/racetrack/internal/ingest"
	"github.com/playperu/racetrack/internal/racetrack"
)

// DefaultPollInterval is how often the score feed is polled.
const DefaultPollInterval = 5 * time.Second

// RefreshResult reports what one ingestion cycle did.
type RefreshResult struct {
	Skipped bool          `json:"skipped"`
	Stale   bool          `json:"stale"`
	Updated bool          `json:"updated"`
	Format  ingest.Format `json:"format,omitempty"`
}

// Refresh runs one ingestion cycle against the configured source. Concurrent
// refreshes of the same URL share a single fetch, which runs detached from
// any one caller's cancellation and is bounded by the fetcher's own timeout.
// A caller whose ctx ends stops waiting without aborting the shared fetch.
// A completion that lands after a newer fetch was applied, or after the
// source URL changed, is dropped. Errors leave the state untouched; they are
// returned only so the caller can report them.
func (t *Tracker) Refresh(ctx context.Context) (RefreshResult, error) {
	t.mu.Lock()
	src := t.state.Config.SourceURL
	t.mu.Unlock()

	if src == "" {
		return RefreshResult{Skipped: true}, nil
	}

	shared := context.WithoutCancel(ctx)
	ch := t.group.DoChan(src, func() (any, error) {
		return t.refresh(shared, src)
	})

	select {
	case <-ctx.Done():
		return RefreshResult{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return RefreshResult{}, res.Err
		}
		return res.Val.(RefreshResult), nil
	}
}

func (t *Tracker) refresh(ctx context.Context, src string) (RefreshResult, error) {
	seq := t.fetchSeq.Add(1)
	logger := t.logger.With("source", src, "seq", seq)

	feed, err := t.fetcher.Fetch(ctx, src)
	if err != nil {
		logger.Warn("fetching scores failed", "error", err)
		return RefreshResult{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if seq < t.appliedSeq || t.state.Config.SourceURL != src {
		logger.Debug("dropping stale feed", "applied_seq", t.appliedSeq)
		return RefreshResult{Stale: true}, nil
	}

	res, err := ingest.Apply(feed, t.state.Teams, ingest.Options{Delimiter: t.opts.Delimiter})
	if err != nil {
		logger.Warn("parsing scores failed", "error", err)
		return RefreshResult{Format: res.Format}, err
	}
	t.appliedSeq = seq

	out := RefreshResult{Format: res.Format, Updated: res.Updated}
	if !res.Updated {
		return out, nil
	}

	if _, err := t.mutateLocked(ctx, func(s *racetrack.AppState) error {
		s.Teams = res.Teams
		return nil
	}); err != nil {
		logger.Error("saving scores failed", "error", err)
		return out, err
	}
	logger.Info("scores updated", "format", res.Format, "teams", len(res.Teams))
	return out, nil
}

// Run refreshes immediately and then every interval until ctx is done.
func (t *Tracker) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		// Failures are already logged; the next tick retries.
		_, _ = t.Refresh(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
