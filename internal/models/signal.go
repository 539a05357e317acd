// Package models defines core data structures for signals, knowledge, and chat.
package models

import (
	"math"
	"time"
)

// Signal is one observed item from an external source, in the shape every
// source adapter must emit. Timestamp is event time; CreatedAt is assigned by
// the store on insert. Rows are read-only after insertion: ranking snapshots
// are new rows per run, not updates.
type Signal struct {
	ID           string                 `json:"id,omitempty"`
	Source       string                 `json:"source"`
	Type         string                 `json:"type"`
	AuthorHandle string                 `json:"authorHandle,omitempty"`
	Timestamp    time.Time              `json:"timestamp"`
	URL          string                 `json:"url,omitempty"`
	Text         string                 `json:"text"`
	Engagement   map[string]float64     `json:"engagement,omitempty"`
	Language     string                 `json:"language,omitempty"`
	Tags         []string               `json:"tags,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	RawPayload   map[string]interface{} `json:"rawPayload,omitempty"`
	CreatedAt    time.Time              `json:"createdAt,omitempty"`
}

// engagementCounters are the named counters that contribute to the engagement
// score. Anything else in the engagement map is informational only.
var engagementCounters = []string{"likes", "replies", "views", "upvotes", "score"}

// EngagementScore sums likes, replies, views, upvotes, and score. Missing
// counters count as zero; negative or non-finite values are ignored rather
// than summed. The same definition is mirrored in SQL by the store so that
// stored rows and in-memory snapshots rank identically.
func EngagementScore(engagement map[string]float64) float64 {
	var total float64
	for _, key := range engagementCounters {
		v, ok := engagement[key]
		if !ok || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		total += v
	}
	return total
}
