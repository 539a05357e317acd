package sources

import (
	"context"
	"encoding/xml"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/shibuya/kanshi/internal/config"
	"github.com/shibuya/kanshi/internal/models"
)

const productHuntFeedURL = "https://www.producthunt.com/feed"

// ProductHuntClient pulls product launches from the public Atom feed.
type ProductHuntClient struct {
	logger *zap.Logger
}

// NewProductHuntClient returns a Product Hunt adapter.
func NewProductHuntClient(logger *zap.Logger) *ProductHuntClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductHuntClient{logger: logger}
}

// Name returns the adapter name.
func (c *ProductHuntClient) Name() string { return config.SourceProductHunt }

type phFeed struct {
	Entries []phEntry `xml:"entry"`
}

type phEntry struct {
	ID        string `xml:"id"`
	Title     string `xml:"title"`
	Content   string `xml:"content"`
	Published string `xml:"published"`
	Updated   string `xml:"updated"`
	Author    struct {
		Name string `xml:"name"`
	} `xml:"author"`
	Links []phLink `xml:"link"`
}

type phLink struct {
	Rel  string `xml:"rel,attr"`
	Href string `xml:"href,attr"`
}

func (e phEntry) link() string {
	for _, l := range e.Links {
		if l.Rel == "" || l.Rel == "alternate" {
			return l.Href
		}
	}
	if len(e.Links) > 0 {
		return e.Links[0].Href
	}
	return ""
}

// Fetch parses the launch feed into signals. Markup in entry content is left
// intact; normalization strips it downstream.
func (c *ProductHuntClient) Fetch(ctx context.Context, cfg config.SourceConfig) ([]models.Signal, error) {
	feedURL := cfg.FeedURL
	if feedURL == "" {
		feedURL = productHuntFeedURL
	}
	limit := cfg.MaxItems
	if limit <= 0 {
		limit = 20
	}

	client := newHTTPClient(cfg)
	data, err := fetchBytes(ctx, client, feedURL, browserUserAgent)
	if err != nil {
		return nil, fmt.Errorf("fetch product hunt feed: %w", err)
	}

	var feed phFeed
	if err := xml.Unmarshal(data, &feed); err != nil {
		return nil, fmt.Errorf("parse product hunt feed: %w", err)
	}

	entries := feed.Entries
	if len(entries) > limit {
		entries = entries[:limit]
	}

	var results []models.Signal
	for _, entry := range entries {
		timestamp := parseFeedTime(entry.Published, entry.Updated)
		results = append(results, models.Signal{
			Source:       config.SourceProductHunt,
			Type:         "launch",
			AuthorHandle: entry.Author.Name,
			Timestamp:    timestamp,
			URL:          entry.link(),
			Text:         entry.Title + "\n\n" + entry.Content,
			Engagement:   map[string]float64{},
			Tags:         []string{"Tech", "Launch"},
			Metadata:     map[string]interface{}{"feedId": entry.ID},
			RawPayload:   map[string]interface{}{"id": entry.ID, "title": entry.Title},
		})
	}

	c.logger.Debug("fetched product hunt launches", zap.Int("count", len(results)))
	return results, nil
}

// parseFeedTime tries RFC3339 then RFC1123 variants over the given candidates
// and falls back to now.
func parseFeedTime(candidates ...string) time.Time {
	layouts := []string{time.RFC3339, time.RFC1123Z, time.RFC1123, time.RFC822Z, time.RFC822}
	for _, raw := range candidates {
		if raw == "" {
			continue
		}
		for _, layout := range layouts {
			if t, err := time.Parse(layout, raw); err == nil {
				return t.UTC()
			}
		}
	}
	return time.Now().UTC()
}
