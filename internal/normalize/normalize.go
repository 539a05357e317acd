// Package normalize cleans raw adapter signals into their canonical form.
package normalize

import (
	"math"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/shibuya/kanshi/internal/models"
)

// trackingParams are query parameter names stripped during URL
// canonicalization, in addition to any name starting with "utm_".
var trackingParams = map[string]bool{
	"gclid":   true,
	"fbclid":  true,
	"mc_cid":  true,
	"mc_eid":  true,
	"ref":     true,
	"ref_src": true,
	"ref_url": true,
	"igshid":  true,
	"s_cid":   true,
}

// markupPattern decides whether text looks like HTML and needs stripping.
var markupPattern = regexp.MustCompile(`(?is)<[a-z][^>]*>`)

// strippedElements are removed wholesale when stripping markup; their text
// content is boilerplate, not signal.
var strippedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"nav":      true,
	"footer":   true,
	"header":   true,
	"aside":    true,
	"noscript": true,
}

// Signal cleans one raw signal into its canonical form. Returns nil when the
// signal has no visible text after markup stripping and whitespace collapse.
// The function is pure and idempotent: feeding its output back in changes
// nothing.
func Signal(sig models.Signal) *models.Signal {
	text := Whitespace(stripMarkupIfNeeded(sig.Text))
	if text == "" {
		return nil
	}

	out := sig
	out.Text = text
	out.Source = lowerOrUnknown(sig.Source)
	out.Type = lowerOrUnknown(sig.Type)
	if sig.URL != "" {
		out.URL = URL(sig.URL)
	}
	if sig.Timestamp.IsZero() {
		out.Timestamp = time.Now()
	}
	out.Engagement = engagement(sig.Engagement)
	out.Tags = tags(sig.Tags)
	if out.Language == "" {
		out.Language = "en"
	}
	if out.Metadata == nil {
		out.Metadata = map[string]interface{}{}
	}
	if out.RawPayload == nil {
		out.RawPayload = map[string]interface{}{}
	}
	return &out
}

// URL canonicalizes a URL: the fragment is dropped and tracking query
// parameters (utm_* and the fixed set) are removed. Unparseable input is
// returned unchanged, fail-open.
func URL(raw string) string {
	if raw == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Fragment = ""
	u.RawFragment = ""
	q := u.Query()
	for key := range q {
		lower := strings.ToLower(key)
		if strings.HasPrefix(lower, "utm_") || trackingParams[lower] {
			q.Del(key)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Whitespace collapses CRLF to LF, runs of spaces and tabs to one space, and
// three or more consecutive newlines to a single blank line, then trims.
func Whitespace(input string) string {
	s := strings.ReplaceAll(input, "\r\n", "\n")
	s = horizontalWhitespace.ReplaceAllString(s, " ")
	s = blankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

var (
	horizontalWhitespace = regexp.MustCompile(`[ \t]+`)
	blankLines           = regexp.MustCompile(`\n{3,}`)
)

func stripMarkupIfNeeded(input string) string {
	if input == "" || !markupPattern.MatchString(input) {
		return input
	}
	root, err := html.Parse(strings.NewReader(input))
	if err != nil {
		return input
	}
	var b strings.Builder
	collectText(root, &b)
	return b.String()
}

func collectText(n *html.Node, b *strings.Builder) {
	if n.Type == html.ElementNode && strippedElements[n.Data] {
		return
	}
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
}

func lowerOrUnknown(value string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return "unknown"
	}
	return v
}

// engagement keeps only finite, non-negative counters.
func engagement(in map[string]float64) map[string]float64 {
	out := map[string]float64{}
	for key, v := range in {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			continue
		}
		out[key] = v
	}
	return out
}

// tags trims entries, drops empties, and de-duplicates preserving first
// occurrence.
func tags(in []string) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, tag := range in {
		t := strings.TrimSpace(tag)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
