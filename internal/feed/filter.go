// Package feed filters community content for compliance before it renders:
// age-restricted items stay hidden until the viewer passes the age gate,
// region-blocked items never show in a blocked region, and items whose
// moderation status cannot be confirmed are dropped rather than shown.
package feed

import (
	"context"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds the parallel availability lookups per request.
const DefaultConcurrency = 8

// Item is one feed entry as delivered by the content backend, carrying the
// moderation attributes the filter needs.
type Item struct {
	ID             string   `json:"id"`
	AgeRestricted  bool     `json:"ageRestricted"`
	BlockedRegions []string `json:"blockedRegions,omitempty"`
}

// AvailabilityChecker answers whether an item is still live: not deleted,
// not taken down by moderation, not withdrawn by its author.
type AvailabilityChecker interface {
	Available(ctx context.Context, itemID string) (bool, error)
}

// Viewer captures the compliance attributes of whoever is looking at the
// feed.
type Viewer struct {
	AgeVerified bool
	Region      string
}

// Filter applies the moderation rules.
type Filter struct {
	checker     AvailabilityChecker
	concurrency int
	logger      *slog.Logger
}

// Option configures the Filter.
type Option func(*Filter)

func WithLogger(logger *slog.Logger) Option {
	return func(f *Filter) {
		f.logger = logger
	}
}

func WithConcurrency(n int) Option {
	return func(f *Filter) {
		if n > 0 {
			f.concurrency = n
		}
	}
}

func NewFilter(checker AvailabilityChecker, opts ...Option) *Filter {
	f := &Filter{
		checker:     checker,
		concurrency: DefaultConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Visible returns the items the viewer may see, in input order. The
// synchronous age and region rules run first; surviving items are then
// checked for availability concurrently. An availability error drops the
// item - unconfirmed content is treated as unavailable.
func (f *Filter) Visible(ctx context.Context, viewer Viewer, items []Item) ([]Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	keep := make([]bool, len(items))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)

	for i, item := range items {
		if item.AgeRestricted && !viewer.AgeVerified {
			continue
		}
		if slices.Contains(item.BlockedRegions, viewer.Region) {
			continue
		}
		if f.checker == nil {
			keep[i] = true
			continue
		}
		g.Go(func() error {
			available, err := f.checker.Available(ctx, item.ID)
			if err != nil {
				f.logger.Warn("availability check failed, hiding item",
					"item_id", item.ID, "error", err)
				return nil
			}
			keep[i] = available
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	visible := make([]Item, 0, len(items))
	for i, item := range items {
		if keep[i] {
			visible = append(visible, item)
		}
	}
	return visible, nil
}
