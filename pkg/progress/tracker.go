package progress

import (
	"context"
	"fmt"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/google/uuid"
)

//go:generate moq -out ../scheduler/mocks/sink.go -pkg mocks -skip-ensure -fmt goimports . Sink

// Sink receives progress of a run
type Sink interface {
	Start(ctx context.Context, total int) (runID string, err error)
	Current(ctx context.Context, source string) error
	Apply(ctx context.Context, d Delta) error
	Finish(ctx context.Context) error
}

// Tracker is a Sink writing into a Store
type Tracker struct {
	store Store
	now   func() time.Time
}

// NewTracker makes a tracker over store
func NewTracker(store Store) *Tracker {
	return &Tracker{store: store, now: time.Now}
}

// Start resets the state for a new run with a fresh run id
func (t *Tracker) Start(ctx context.Context, total int) (string, error) {
	runID := uuid.NewString()
	now := t.now().UTC()
	err := t.store.Update(ctx, func(s *State) error {
		*s = State{
			RunID:        runID,
			StartTime:    now,
			UpdatedAt:    now,
			SourcesTotal: total,
			SourceStats:  map[string]SourceStat{},
			Categories:   map[string]int{},
			RecentErrors: []ErrorEntry{},
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("reset progress: %w", err)
	}
	return runID, nil
}

// Current records the source being processed
func (t *Tracker) Current(ctx context.Context, source string) error {
	now := t.now().UTC()
	return t.store.Update(ctx, func(s *State) error {
		s.CurrentSource = source
		s.UpdatedAt = now
		return nil
	})
}

// Apply adds a delta, negative increments are rejected
func (t *Tracker) Apply(ctx context.Context, d Delta) error {
	if err := d.Validate(); err != nil {
		return err
	}
	now := t.now().UTC()
	return t.store.Update(ctx, func(s *State) error {
		s.apply(d, now)
		return nil
	})
}

// Finish marks the run complete
func (t *Tracker) Finish(ctx context.Context) error {
	now := t.now().UTC()
	return t.store.Update(ctx, func(s *State) error {
		s.Finished = true
		s.CurrentSource = ""
		s.UpdatedAt = now
		lgr.Printf("[DEBUG] progress finished: %d/%d sources, %d saved", s.SourcesProcessed, s.SourcesTotal, s.NewsSaved)
		return nil
	})
}

// View loads the state and derives the observer view
func (t *Tracker) View(ctx context.Context, topN int) (View, error) {
	st, err := t.store.Load(ctx)
	if err != nil {
		return View{}, err
	}
	return NewView(st, t.now().UTC(), topN), nil
}
