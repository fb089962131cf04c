package reviewer

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/codeGROOVE-dev/pull-review/pkg/types"
)

// BlameSource looks up historical authorship for one changed file.
// Implementations may block; they are called concurrently for different files.
type BlameSource interface {
	BlameForFile(ctx context.Context, file types.ChangedFile) ([]types.BlameEntry, error)
}

// BlameFunc adapts a function to BlameSource.
type BlameFunc func(ctx context.Context, file types.ChangedFile) ([]types.BlameEntry, error)

// BlameForFile calls f.
func (f BlameFunc) BlameForFile(ctx context.Context, file types.ChangedFile) ([]types.BlameEntry, error) {
	return f(ctx, file)
}

// blameTally accumulates blame weight per login.
type blameTally struct {
	weights map[string]int
	entries map[string][]types.BlameEntry
	order   []string // logins in first-encounter order
}

func newBlameTally() *blameTally {
	return &blameTally{
		weights: make(map[string]int),
		entries: make(map[string][]types.BlameEntry),
	}
}

func (t *blameTally) add(e types.BlameEntry) {
	if _, ok := t.entries[e.Login]; !ok {
		t.order = append(t.order, e.Login)
	}
	t.weights[e.Login] += *e.Count
	t.entries[e.Login] = append(t.entries[e.Login], e)
}

// authors returns the number of distinct logins seen, before any eligibility filtering.
func (t *blameTally) authors() int {
	return len(t.order)
}

// aggregateBlame looks up blame for every file concurrently and sums it per login.
// The first failed or malformed lookup cancels the others and fails the call.
func (s *Selector) aggregateBlame(ctx context.Context, src BlameSource, files []types.ChangedFile) (*blameTally, error) {
	results := make([][]types.BlameEntry, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, file := range files {
		g.Go(func() error {
			entries, err := src.BlameForFile(gctx, file)
			if err != nil {
				return fmt.Errorf("blame lookup for %s: %w", file.Filename, err)
			}
			for j, e := range entries {
				if err := validateBlameEntry(e); err != nil {
					return fmt.Errorf("%w: %s entry %d: %w", ErrMissingBlameData, file.Filename, j, err)
				}
			}
			results[i] = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Summed in file order so that first-encounter order is stable.
	t := newBlameTally()
	for i, entries := range results {
		for _, e := range entries {
			t.add(e)
		}
		s.logger.DebugContext(ctx, "Aggregated blame for file", "file", files[i].Filename, "entries", len(entries))
	}
	return t, nil
}

func validateBlameEntry(e types.BlameEntry) error {
	switch {
	case e.Login == "":
		return fmt.Errorf("login is required")
	case e.Count == nil:
		return fmt.Errorf("count is required for %s", e.Login)
	case *e.Count < 0:
		return fmt.Errorf("count must not be negative for %s", e.Login)
	case e.Age == nil:
		return fmt.Errorf("age is required for %s", e.Login)
	}
	return nil
}
