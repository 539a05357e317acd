package query

import (
	"fmt"
	"testing"
	"time"

	"github.com/shibuya/kanshi/internal/models"
)

func snapshotFixture(n int) []models.Signal {
	now := time.Now().UTC()
	out := make([]models.Signal, n)
	for i := range out {
		out[i] = models.Signal{
			Source:     []string{"reddit", "hackernews"}[i%2],
			Type:       "post",
			Text:       fmt.Sprintf("signal %d about retention", i),
			Timestamp:  now.Add(-time.Duration(i) * time.Minute),
			Engagement: map[string]float64{"likes": float64(i)},
		}
	}
	return out
}

func TestSearchSnapshot_LimitClamp(t *testing.T) {
	cache := snapshotFixture(250)

	got := SearchSnapshot(models.SignalQueryArgs{Limit: 1000}, cache)
	if len(got) != SnapshotMaxLimit {
		t.Errorf("limit 1000 should clamp to %d, got %d", SnapshotMaxLimit, len(got))
	}

	got = SearchSnapshot(models.SignalQueryArgs{}, cache)
	if len(got) != SnapshotDefaultLimit {
		t.Errorf("unset limit should default to %d, got %d", SnapshotDefaultLimit, len(got))
	}
}

func TestSearchSnapshot_FiltersAndSorts(t *testing.T) {
	cache := snapshotFixture(10)

	got := SearchSnapshot(models.SignalQueryArgs{Sources: []string{"reddit"}}, cache)
	for _, sig := range got {
		if sig.Source != "reddit" {
			t.Fatalf("source filter leaked %q", sig.Source)
		}
	}

	got = SearchSnapshot(models.SignalQueryArgs{Sort: models.SortNewest}, cache)
	for i := 1; i < len(got); i++ {
		if got[i].Timestamp.After(got[i-1].Timestamp) {
			t.Fatal("newest sort violated")
		}
	}

	got = SearchSnapshot(models.SignalQueryArgs{Sort: models.SortEngagement}, cache)
	for i := 1; i < len(got); i++ {
		if models.EngagementScore(got[i].Engagement) > models.EngagementScore(got[i-1].Engagement) {
			t.Fatal("engagement sort violated")
		}
	}
}

func TestSearchSnapshot_TokenQuery(t *testing.T) {
	cache := []models.Signal{
		{Source: "reddit", Type: "post", Text: "pricing gripes", Timestamp: time.Now()},
		{Source: "reddit", Type: "post", Text: "unrelated chatter", Timestamp: time.Now()},
	}
	got := SearchSnapshot(models.SignalQueryArgs{Query: "pricing"}, cache)
	if len(got) != 1 || got[0].Text != "pricing gripes" {
		t.Errorf("unexpected matches: %+v", got)
	}
}
