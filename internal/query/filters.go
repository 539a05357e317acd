// Package query builds signal filters evaluable both as SQL against the store
// and as predicates over an in-memory snapshot, with identical semantics.
package query

import (
	"strings"
	"time"

	"github.com/shibuya/kanshi/internal/models"
)

// EngagementScoreSQL mirrors models.EngagementScore for rows whose engagement
// column holds normalized JSON (finite, non-negative counters only).
const EngagementScoreSQL = `(COALESCE(json_extract(engagement, '$.likes'), 0)
	+ COALESCE(json_extract(engagement, '$.replies'), 0)
	+ COALESCE(json_extract(engagement, '$.views'), 0)
	+ COALESCE(json_extract(engagement, '$.upvotes'), 0)
	+ COALESCE(json_extract(engagement, '$.score'), 0))`

// Filters is a composed predicate set over signals. All predicates are ANDed;
// the free-text tokens OR among themselves.
type Filters struct {
	Tokens        []string
	Sources       []string
	Types         []string
	Since         time.Time
	Start         time.Time
	End           time.Time
	MinEngagement *float64
}

// Build turns a query-argument bag into a Filters value. Free text is split on
// whitespace: one token means "text contains token" (case-insensitive), many
// tokens match ANY token, not all. sinceDays, startDate, and endDate are
// independent bounds and may all apply at once; the most restrictive
// combination wins.
func Build(args models.SignalQueryArgs) *Filters {
	f := &Filters{
		Sources:       cleanList(args.Sources),
		Types:         cleanList(args.Types),
		MinEngagement: args.MinEngagement,
	}
	for _, token := range strings.Fields(args.Query) {
		f.Tokens = append(f.Tokens, asciiLower(token))
	}
	if args.SinceDays > 0 {
		f.Since = time.Now().AddDate(0, 0, -args.SinceDays)
	}
	f.Start = models.ParseDate(args.StartDate)
	f.End = models.ParseDate(args.EndDate)
	return f
}

// BuildVolume builds filters from volume-aggregation arguments.
func BuildVolume(args models.VolumeArgs) *Filters {
	return Build(models.SignalQueryArgs{
		Sources:   args.Sources,
		Types:     args.Types,
		StartDate: args.StartDate,
		EndDate:   args.EndDate,
		SinceDays: args.SinceDays,
	})
}

// Match evaluates the predicate set against one in-memory signal.
func (f *Filters) Match(sig *models.Signal) bool {
	if len(f.Tokens) > 0 {
		text := asciiLower(sig.Text)
		hit := false
		for _, token := range f.Tokens {
			if strings.Contains(text, token) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	if len(f.Sources) > 0 && !contains(f.Sources, sig.Source) {
		return false
	}
	if len(f.Types) > 0 && !contains(f.Types, sig.Type) {
		return false
	}
	if !f.Since.IsZero() && sig.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Start.IsZero() && sig.Timestamp.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() && sig.Timestamp.After(f.End) {
		return false
	}
	if f.MinEngagement != nil && models.EngagementScore(sig.Engagement) < *f.MinEngagement {
		return false
	}
	return true
}

// SQL renders the predicate set as a WHERE fragment (without the keyword) plus
// bind arguments. Returns an empty string when no predicate applies.
func (f *Filters) SQL() (string, []interface{}) {
	var clauses []string
	var args []interface{}

	if len(f.Tokens) > 0 {
		parts := make([]string, len(f.Tokens))
		for i, token := range f.Tokens {
			parts[i] = "instr(lower(text), ?) > 0"
			args = append(args, token)
		}
		clauses = append(clauses, "("+strings.Join(parts, " OR ")+")")
	}
	if len(f.Sources) > 0 {
		clauses = append(clauses, "source IN ("+placeholders(len(f.Sources))+")")
		for _, s := range f.Sources {
			args = append(args, s)
		}
	}
	if len(f.Types) > 0 {
		clauses = append(clauses, "type IN ("+placeholders(len(f.Types))+")")
		for _, t := range f.Types {
			args = append(args, t)
		}
	}
	if !f.Since.IsZero() {
		clauses = append(clauses, "timestamp >= ?")
		args = append(args, f.Since.UTC())
	}
	if !f.Start.IsZero() {
		clauses = append(clauses, "timestamp >= ?")
		args = append(args, f.Start.UTC())
	}
	if !f.End.IsZero() {
		clauses = append(clauses, "timestamp <= ?")
		args = append(args, f.End.UTC())
	}
	if f.MinEngagement != nil {
		clauses = append(clauses, EngagementScoreSQL+" >= ?")
		args = append(args, *f.MinEngagement)
	}
	return strings.Join(clauses, " AND "), args
}

// asciiLower folds A-Z only, mirroring SQLite's lower() so the in-memory and
// SQL paths agree. Non-ASCII letters stay case-sensitive on both paths.
func asciiLower(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return r
	}, s)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func cleanList(in []string) []string {
	var out []string
	for _, v := range in {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}
