package models

import "time"

// Sort orders for signal queries.
const (
	SortNewest     = "newest"
	SortOldest     = "oldest"
	SortEngagement = "engagement"
)

// Volume granularities and groupings.
const (
	GranularityDay  = "day"
	GranularityWeek = "week"

	GroupByNone   = "none"
	GroupBySource = "source"
	GroupByType   = "type"
)

// SignalQueryArgs is the loosely-typed argument bag for signal queries, shared
// by the store path and the in-memory snapshot path. All fields are optional.
type SignalQueryArgs struct {
	Query         string   `json:"query,omitempty"`
	Sources       []string `json:"sources,omitempty"`
	Types         []string `json:"types,omitempty"`
	StartDate     string   `json:"startDate,omitempty"`
	EndDate       string   `json:"endDate,omitempty"`
	SinceDays     int      `json:"sinceDays,omitempty"`
	MinEngagement *float64 `json:"minEngagement,omitempty"`
	Limit         int      `json:"limit,omitempty"`
	Sort          string   `json:"sort,omitempty"`
}

// Normalize clamps Limit into [1, maxLimit] (defaultLimit when unset) and
// falls back to newest ordering for unknown sorts.
func (a *SignalQueryArgs) Normalize(defaultLimit, maxLimit int) {
	if a.Limit <= 0 {
		a.Limit = defaultLimit
	}
	if a.Limit > maxLimit {
		a.Limit = maxLimit
	}
	switch a.Sort {
	case SortOldest, SortEngagement:
	default:
		a.Sort = SortNewest
	}
}

// VolumeArgs parameterizes time-bucketed signal counting.
type VolumeArgs struct {
	Granularity string   `json:"granularity,omitempty"`
	StartDate   string   `json:"startDate,omitempty"`
	EndDate     string   `json:"endDate,omitempty"`
	SinceDays   int      `json:"sinceDays,omitempty"`
	Sources     []string `json:"sources,omitempty"`
	Types       []string `json:"types,omitempty"`
	GroupBy     string   `json:"groupBy,omitempty"`
}

// Normalize coerces granularity to day|week and groupBy to source|type|none.
func (a *VolumeArgs) Normalize() {
	if a.Granularity != GranularityWeek {
		a.Granularity = GranularityDay
	}
	switch a.GroupBy {
	case GroupBySource, GroupByType:
	default:
		a.GroupBy = GroupByNone
	}
}

// VolumeBucket is one row of a volume aggregation, ordered by Bucket ascending.
type VolumeBucket struct {
	Bucket string `json:"bucket"`
	Count  int64  `json:"count"`
	Source string `json:"source,omitempty"`
	Type   string `json:"type,omitempty"`
}

// ParseDate parses an ISO date or RFC3339 timestamp. Returns the zero time for
// empty or unparseable input, matching the fail-open filter semantics.
func ParseDate(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}
