package query

import (
	"sort"

	"github.com/shibuya/kanshi/internal/models"
)

// Limit clamps for the two query paths. The snapshot ceiling is higher because
// it is bounded by what the caller already holds in memory, not a store scan.
const (
	StoreDefaultLimit = 20
	StoreMaxLimit     = 100

	SnapshotDefaultLimit = 50
	SnapshotMaxLimit     = 200

	RecentDefaultLimit = 20
	RecentMaxLimit     = 50
)

// SearchSnapshot runs the filter/sort contract against a client-held snapshot.
// Limit is clamped to [1, 200] with a default of 50.
func SearchSnapshot(args models.SignalQueryArgs, cache []models.Signal) []models.Signal {
	args.Normalize(SnapshotDefaultLimit, SnapshotMaxLimit)
	filters := Build(args)

	matched := make([]models.Signal, 0, len(cache))
	for i := range cache {
		if filters.Match(&cache[i]) {
			matched = append(matched, cache[i])
		}
	}

	SortSignals(matched, args.Sort)

	if len(matched) > args.Limit {
		matched = matched[:args.Limit]
	}
	return matched
}

// SortSignals orders signals in place by the given sort mode: newest (default),
// oldest, or engagement score descending.
func SortSignals(signals []models.Signal, sortMode string) {
	switch sortMode {
	case models.SortOldest:
		sort.SliceStable(signals, func(i, j int) bool {
			return signals[i].Timestamp.Before(signals[j].Timestamp)
		})
	case models.SortEngagement:
		sort.SliceStable(signals, func(i, j int) bool {
			return models.EngagementScore(signals[i].Engagement) > models.EngagementScore(signals[j].Engagement)
		})
	default:
		sort.SliceStable(signals, func(i, j int) bool {
			return signals[i].Timestamp.After(signals[j].Timestamp)
		})
	}
}
