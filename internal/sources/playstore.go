package sources

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/shibuya/kanshi/internal/config"
	"github.com/shibuya/kanshi/internal/models"
)

const playStoreURL = "https://play.google.com/store/apps/category/APPLICATION?hl=ja"

// PlayStoreClient scrapes app names from the Play Store category page.
// The page is rendered markup without a stable schema, so this is best
// effort; an empty result is not an error.
type PlayStoreClient struct {
	logger *zap.Logger
}

// NewPlayStoreClient returns a Play Store adapter.
func NewPlayStoreClient(logger *zap.Logger) *PlayStoreClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlayStoreClient{logger: logger}
}

// Name returns the adapter name.
func (c *PlayStoreClient) Name() string { return config.SourcePlayStore }

// Fetch scrapes app detail links from the configured category pages and
// emits rankings in document order. Per-page failures are logged and skipped.
func (c *PlayStoreClient) Fetch(ctx context.Context, cfg config.SourceConfig) ([]models.Signal, error) {
	pages := cfg.Pages
	if len(pages) == 0 {
		pages = []string{playStoreURL}
	}
	limit := cfg.MaxItems
	if limit <= 0 {
		limit = 20
	}

	client := newHTTPClient(cfg)
	now := time.Now().UTC()
	var results []models.Signal

	for _, pageURL := range pages {
		data, err := fetchBytes(ctx, client, pageURL, browserUserAgent)
		if err != nil {
			c.logger.Warn("play store fetch failed", zap.String("url", pageURL), zap.Error(err))
			continue
		}

		doc, err := html.Parse(strings.NewReader(string(data)))
		if err != nil {
			c.logger.Warn("play store parse failed", zap.String("url", pageURL), zap.Error(err))
			continue
		}

		apps := collectPlayStoreApps(doc, limit)
		if len(apps) == 0 {
			c.logger.Warn("play store scrape found no apps", zap.String("url", pageURL))
			continue
		}

		category := playStoreCategory(pageURL)
		for i, app := range apps {
			rank := i + 1
			results = append(results, models.Signal{
				Source:     config.SourcePlayStore,
				Type:       "ranking",
				Timestamp:  now,
				URL:        app.url,
				Text:       fmt.Sprintf("Play Store Ranking #%d: %s", rank, app.name),
				Engagement: map[string]float64{},
				Tags:       []string{"App", "Mobile"},
				Metadata:   map[string]interface{}{"rank": rank, "category": category},
				RawPayload: map[string]interface{}{"name": app.name, "url": app.url},
			})
		}
	}
	return results, nil
}

// playStoreCategory pulls the trailing category segment out of a page URL.
func playStoreCategory(pageURL string) string {
	const marker = "/category/"
	idx := strings.Index(pageURL, marker)
	if idx < 0 {
		return ""
	}
	category := pageURL[idx+len(marker):]
	if q := strings.IndexByte(category, '?'); q >= 0 {
		category = category[:q]
	}
	return category
}

type playStoreApp struct {
	name string
	url  string
}

// collectPlayStoreApps walks the DOM for /store/apps/details links, keeping
// the first occurrence of each app id in document order.
func collectPlayStoreApps(doc *html.Node, limit int) []playStoreApp {
	var apps []playStoreApp
	seen := make(map[string]bool)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(apps) >= limit {
			return
		}
		if n.Type == html.ElementNode && n.Data == "a" {
			href := attrValue(n, "href")
			if strings.HasPrefix(href, "/store/apps/details") && !seen[href] {
				name := strings.TrimSpace(nodeText(n))
				if name != "" {
					seen[href] = true
					apps = append(apps, playStoreApp{
						name: name,
						url:  "https://play.google.com" + href,
					})
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return apps
}

func attrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		sb.WriteString(nodeText(child))
	}
	return sb.String()
}
