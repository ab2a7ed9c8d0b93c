// Package sweep builds lookup tables for a range of buy prices in parallel.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/talgya/stalk-market/internal/market"
)

// Store receives every table a sweep builds. *persistence.DB satisfies it.
type Store interface {
	SaveTable(runID string, t market.Table) error
	SaveMeta(key, value string) error
}

// Summary describes one completed sweep.
type Summary struct {
	RunID        string                   `json:"run_id"`
	Lo           int                      `json:"lo"`
	Hi           int                      `json:"hi"`
	Tables       map[int]market.Table     `json:"-"`
	Combinations [market.PatternCount]int `json:"combinations"`
	Elapsed      time.Duration            `json:"elapsed"`
}

// Total returns the number of combinations across every table built.
func (s *Summary) Total() int {
	n := 0
	for _, c := range s.Combinations {
		n += c
	}
	return n
}

// Build enumerates tables for every buy price in [lo, hi] with at most
// workers builds in flight. A nil store keeps the tables in memory only.
// The first store error cancels the remaining builds.
func Build(ctx context.Context, lo, hi, workers int, store Store) (*Summary, error) {
	if err := market.ValidateBuy(lo); err != nil {
		return nil, err
	}
	if err := market.ValidateBuy(hi); err != nil {
		return nil, err
	}
	if lo > hi {
		return nil, fmt.Errorf("sweep: empty range %d..%d", lo, hi)
	}
	if workers < 1 {
		workers = 1
	}

	start := time.Now()
	sum := &Summary{
		RunID:  uuid.NewString(),
		Lo:     lo,
		Hi:     hi,
		Tables: make(map[int]market.Table, hi-lo+1),
	}
	slog.Info("sweep starting", "run_id", sum.RunID, "lo", lo, "hi", hi, "workers", workers)

	var mu sync.Mutex
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for buy := lo; buy <= hi; buy++ {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			t := market.BuildTable(buy)
			if store != nil {
				if err := store.SaveTable(sum.RunID, t); err != nil {
					return fmt.Errorf("save table %d: %w", buy, err)
				}
			}

			mu.Lock()
			defer mu.Unlock()
			sum.Tables[buy] = t
			for _, p := range market.Patterns {
				sum.Combinations[p] += t.Trees[p].Combinations()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("sweep %s: %w", sum.RunID, err)
	}

	if store != nil {
		if err := store.SaveMeta("last_run", sum.RunID); err != nil {
			return nil, fmt.Errorf("save run id: %w", err)
		}
	}

	sum.Elapsed = time.Since(start)
	slog.Info("sweep complete",
		"run_id", sum.RunID,
		"tables", len(sum.Tables),
		"combinations", humanize.Comma(int64(sum.Total())),
		"elapsed", sum.Elapsed.Round(time.Millisecond),
	)
	return sum, nil
}
