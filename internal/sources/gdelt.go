package sources

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/shibuya/kanshi/internal/config"
	"github.com/shibuya/kanshi/internal/models"
)

const gdeltDocAPI = "https://api.gdeltproject.org/api/v2/doc/doc"

// GDELTClient queries the GDELT DOC 2.0 API for news coverage matching the
// configured query presets.
type GDELTClient struct {
	logger *zap.Logger
}

// NewGDELTClient returns a GDELT adapter.
func NewGDELTClient(logger *zap.Logger) *GDELTClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GDELTClient{logger: logger}
}

// Name returns the adapter name.
func (c *GDELTClient) Name() string { return config.SourceGDELT }

type gdeltResponse struct {
	Articles []gdeltArticle `json:"articles"`
}

type gdeltArticle struct {
	URL            string `json:"url"`
	Title          string `json:"title"`
	Domain         string `json:"domain"`
	Language       string `json:"language"`
	SourceCountry  string `json:"sourcecountry"`
	SeenDate       string `json:"seendate"`
	SocialImageURL string `json:"socialimage"`
}

// Fetch runs each query preset against the DOC API. Per-preset failures are
// logged and skipped.
func (c *GDELTClient) Fetch(ctx context.Context, cfg config.SourceConfig) ([]models.Signal, error) {
	timespan := cfg.Timespan
	if timespan == "" {
		timespan = "1d"
	}
	maxRecords := cfg.MaxItems
	if maxRecords <= 0 {
		maxRecords = 20
	}

	client := newHTTPClient(cfg)
	var results []models.Signal

	for _, preset := range cfg.Queries {
		params := url.Values{}
		params.Set("query", preset.Query)
		params.Set("mode", "ArtList")
		params.Set("format", "json")
		params.Set("timespan", timespan)
		params.Set("maxrecords", fmt.Sprintf("%d", maxRecords))

		var resp gdeltResponse
		reqURL := gdeltDocAPI + "?" + params.Encode()
		if err := fetchJSON(ctx, client, reqURL, botUserAgent, &resp); err != nil {
			c.logger.Warn("gdelt query failed", zap.String("preset", preset.Name), zap.Error(err))
			continue
		}

		for _, article := range resp.Articles {
			results = append(results, models.Signal{
				Source:       config.SourceGDELT,
				Type:         "news",
				AuthorHandle: article.Domain,
				Timestamp:    parseGDELTSeenDate(article.SeenDate),
				URL:          article.URL,
				Text:         article.Title,
				Engagement:   map[string]float64{},
				Tags:         preset.Tags,
				Metadata: map[string]interface{}{
					"preset":        preset.Name,
					"domain":        article.Domain,
					"language":      article.Language,
					"sourceCountry": article.SourceCountry,
				},
				RawPayload: map[string]interface{}{"url": article.URL, "title": article.Title},
			})
		}
	}
	return results, nil
}

// parseGDELTSeenDate handles the API's compact yyyymmddhhmmss form (with or
// without a trailing Z) and falls back to now.
func parseGDELTSeenDate(raw string) time.Time {
	for _, layout := range []string{"20060102150405Z", "20060102150405", time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}
