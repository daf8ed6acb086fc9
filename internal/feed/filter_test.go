package feed

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChecker struct {
	mu          sync.Mutex
	unavailable map[string]bool
	failing     map[string]bool
	calls       int
}

func (c *stubChecker) Available(_ context.Context, itemID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.failing[itemID] {
		return false, errors.New("moderation service unavailable")
	}
	return !c.unavailable[itemID], nil
}

func ids(items []Item) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.ID)
	}
	return out
}

func TestVisibleHidesAgeRestrictedForUnverifiedViewer(t *testing.T) {
	filter := NewFilter(&stubChecker{})
	items := []Item{
		{ID: "grow-tips"},
		{ID: "strain-review", AgeRestricted: true},
	}

	visible, err := filter.Visible(context.Background(), Viewer{AgeVerified: false}, items)
	require.NoError(t, err)
	assert.Equal(t, []string{"grow-tips"}, ids(visible))

	visible, err = filter.Visible(context.Background(), Viewer{AgeVerified: true}, items)
	require.NoError(t, err)
	assert.Equal(t, []string{"grow-tips", "strain-review"}, ids(visible))
}

func TestVisibleHidesRegionBlockedItems(t *testing.T) {
	filter := NewFilter(&stubChecker{})
	items := []Item{
		{ID: "legal-everywhere"},
		{ID: "us-only", BlockedRegions: []string{"DE", "FR"}},
	}

	visible, err := filter.Visible(context.Background(), Viewer{AgeVerified: true, Region: "DE"}, items)
	require.NoError(t, err)
	assert.Equal(t, []string{"legal-everywhere"}, ids(visible))

	visible, err = filter.Visible(context.Background(), Viewer{AgeVerified: true, Region: "US-CA"}, items)
	require.NoError(t, err)
	assert.Equal(t, []string{"legal-everywhere", "us-only"}, ids(visible))
}

func TestVisibleDropsUnavailableAndUnconfirmedItems(t *testing.T) {
	checker := &stubChecker{
		unavailable: map[string]bool{"taken-down": true},
		failing:     map[string]bool{"flaky": true},
	}
	filter := NewFilter(checker)
	items := []Item{
		{ID: "fine"},
		{ID: "taken-down"},
		{ID: "flaky"},
		{ID: "also-fine"},
	}

	visible, err := filter.Visible(context.Background(), Viewer{AgeVerified: true}, items)
	require.NoError(t, err)

	// Errors hide the item instead of failing the whole feed.
	assert.Equal(t, []string{"fine", "also-fine"}, ids(visible))
}

func TestVisiblePreservesInputOrder(t *testing.T) {
	filter := NewFilter(&stubChecker{}, WithConcurrency(3))
	items := make([]Item, 0, 20)
	want := make([]string, 0, 20)
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j",
		"k", "l", "m", "n", "o", "p", "q", "r", "s", "t"} {
		items = append(items, Item{ID: id})
		want = append(want, id)
	}

	visible, err := filter.Visible(context.Background(), Viewer{AgeVerified: true}, items)
	require.NoError(t, err)
	assert.Equal(t, want, ids(visible))
}

func TestVisibleSkipsCheckerForAlreadyHiddenItems(t *testing.T) {
	checker := &stubChecker{}
	filter := NewFilter(checker)
	items := []Item{
		{ID: "restricted", AgeRestricted: true},
		{ID: "blocked", BlockedRegions: []string{"US-CA"}},
		{ID: "shown"},
	}

	_, err := filter.Visible(context.Background(), Viewer{AgeVerified: false, Region: "US-CA"}, items)
	require.NoError(t, err)
	assert.Equal(t, 1, checker.calls)
}

func TestVisibleCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	filter := NewFilter(&stubChecker{})
	_, err := filter.Visible(ctx, Viewer{AgeVerified: true}, []Item{{ID: "x"}})
	assert.ErrorIs(t, err, context.Canceled)
}
