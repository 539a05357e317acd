package sources

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/shibuya/kanshi/internal/config"
	"github.com/shibuya/kanshi/internal/models"
)

const appStoreFeedURL = "https://itunes.apple.com/jp/rss/topfreeapplications/limit=25/json"

// AppStoreClient pulls top-chart rankings from the Apple RSS JSON feed.
type AppStoreClient struct {
	logger *zap.Logger
}

// NewAppStoreClient returns an App Store adapter.
func NewAppStoreClient(logger *zap.Logger) *AppStoreClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AppStoreClient{logger: logger}
}

// Name returns the adapter name.
func (c *AppStoreClient) Name() string { return config.SourceAppStore }

// Apple's feed wraps every value in a label object.
type appStoreFeed struct {
	Feed struct {
		Entry []appStoreEntry `json:"entry"`
	} `json:"feed"`
}

type appStoreEntry struct {
	Name struct {
		Label string `json:"label"`
	} `json:"im:name"`
	Artist struct {
		Label string `json:"label"`
	} `json:"im:artist"`
	Summary struct {
		Label string `json:"label"`
	} `json:"summary"`
	Price struct {
		Label string `json:"label"`
	} `json:"im:price"`
	Category struct {
		Attributes struct {
			Label string `json:"label"`
		} `json:"attributes"`
	} `json:"category"`
	ID struct {
		Label string `json:"label"`
	} `json:"id"`
}

// Fetch maps feed entries to ranking signals. Rank is the 1-based feed
// position; the feed carries no timestamps, so entries are stamped now.
func (c *AppStoreClient) Fetch(ctx context.Context, cfg config.SourceConfig) ([]models.Signal, error) {
	feedURL := cfg.FeedURL
	if feedURL == "" {
		feedURL = appStoreFeedURL
	}

	client := newHTTPClient(cfg)
	var feed appStoreFeed
	if err := fetchJSON(ctx, client, feedURL, browserUserAgent, &feed); err != nil {
		return nil, fmt.Errorf("fetch app store feed: %w", err)
	}

	entries := feed.Feed.Entry
	if cfg.MaxItems > 0 && len(entries) > cfg.MaxItems {
		entries = entries[:cfg.MaxItems]
	}

	now := time.Now().UTC()
	var results []models.Signal
	for i, entry := range entries {
		rank := i + 1
		category := entry.Category.Attributes.Label
		tags := []string{"App", "Mobile"}
		if category != "" {
			tags = append(tags, category)
		}
		results = append(results, models.Signal{
			Source:       config.SourceAppStore,
			Type:         "ranking",
			AuthorHandle: entry.Artist.Label,
			Timestamp:    now,
			URL:          entry.ID.Label,
			Text:         fmt.Sprintf("App Store Ranking #%d: %s\n\n%s", rank, entry.Name.Label, entry.Summary.Label),
			Engagement:   map[string]float64{},
			Tags:         tags,
			Metadata: map[string]interface{}{
				"rank":     rank,
				"category": category,
				"price":    entry.Price.Label,
			},
			RawPayload: map[string]interface{}{"name": entry.Name.Label, "id": entry.ID.Label},
		})
	}

	c.logger.Debug("fetched app store rankings", zap.Int("count", len(results)))
	return results, nil
}
