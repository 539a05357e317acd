package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/shibuya/kanshi/internal/config"
	"github.com/shibuya/kanshi/internal/models"
)

const hnBaseURL = "https://hacker-news.firebaseio.com/v0"

// hnFetchConcurrency bounds parallel item lookups against the Firebase API.
const hnFetchConcurrency = 5

// HackerNewsClient pulls stories (and optionally their top comments) from the
// Hacker News Firebase API.
type HackerNewsClient struct {
	logger *zap.Logger
}

// NewHackerNewsClient returns a Hacker News adapter.
func NewHackerNewsClient(logger *zap.Logger) *HackerNewsClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HackerNewsClient{logger: logger}
}

// Name returns the adapter name.
func (c *HackerNewsClient) Name() string { return config.SourceHackerNews }

type hnItem struct {
	ID          int     `json:"id"`
	Deleted     bool    `json:"deleted"`
	Type        string  `json:"type"`
	By          string  `json:"by"`
	Time        int64   `json:"time"`
	Text        string  `json:"text"`
	Dead        bool    `json:"dead"`
	Parent      int     `json:"parent"`
	Kids        []int   `json:"kids"`
	URL         string  `json:"url"`
	Score       float64 `json:"score"`
	Title       string  `json:"title"`
	Descendants float64 `json:"descendants"`
}

// Fetch pulls the configured listing (showstories by default) and keeps
// stories that are Show HN posts or match the launch keywords. Non-show
// listings are filtered by keyword; showstories keeps everything.
func (c *HackerNewsClient) Fetch(ctx context.Context, cfg config.SourceConfig) ([]models.Signal, error) {
	mode := cfg.Mode
	if mode == "" {
		mode = "showstories"
	}
	limit := cfg.MaxItems
	if limit <= 0 {
		limit = 30
	}
	maxComments := cfg.MaxComments
	if maxComments <= 0 {
		maxComments = 5
	}
	keywords := cfg.Keywords
	if len(keywords) == 0 {
		keywords = []string{"launch", "released", "introducing", "announcing"}
	}

	client := newHTTPClient(cfg)

	var ids []int
	if err := fetchJSON(ctx, client, fmt.Sprintf("%s/%s.json", hnBaseURL, mode), botUserAgent, &ids); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", mode, err)
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}

	stories := c.fetchItems(ctx, client, ids)

	var results []models.Signal
	for _, story := range stories {
		if story == nil || story.Dead || story.Deleted {
			continue
		}
		isShowHN := strings.HasPrefix(story.Title, "Show HN:")
		if mode != "showstories" && !isShowHN && !matchesAnyKeyword(story.Title, keywords) {
			continue
		}

		results = append(results, c.storySignal(story))

		if cfg.FetchComments && len(story.Kids) > 0 {
			kidIDs := story.Kids
			if len(kidIDs) > maxComments {
				kidIDs = kidIDs[:maxComments]
			}
			for _, comment := range c.fetchItems(ctx, client, kidIDs) {
				if comment == nil || comment.Dead || comment.Deleted || comment.Text == "" {
					continue
				}
				results = append(results, c.commentSignal(comment, story))
			}
		}
	}
	return results, nil
}

// fetchItems loads items concurrently, preserving order. Individual failures
// yield nil entries.
func (c *HackerNewsClient) fetchItems(ctx context.Context, client *http.Client, ids []int) []*hnItem {
	items := make([]*hnItem, len(ids))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(hnFetchConcurrency)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			var item hnItem
			if err := fetchJSON(ctx, client, fmt.Sprintf("%s/item/%d.json", hnBaseURL, id), botUserAgent, &item); err != nil {
				c.logger.Warn("hn item fetch failed", zap.Int("id", id), zap.Error(err))
				return nil
			}
			mu.Lock()
			items[i] = &item
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return items
}

func (c *HackerNewsClient) storySignal(item *hnItem) models.Signal {
	var tags []string
	if strings.HasPrefix(item.Title, "Show HN:") {
		tags = []string{"show_hn"}
	}
	metadata := map[string]interface{}{"hnId": item.ID}
	if item.URL != "" {
		metadata["externalUrl"] = item.URL
		if u, err := url.Parse(item.URL); err == nil {
			metadata["domain"] = u.Hostname()
		}
	}
	return models.Signal{
		Source:       config.SourceHackerNews,
		Type:         "story",
		AuthorHandle: item.By,
		Timestamp:    time.Unix(item.Time, 0).UTC(),
		// Canonical URL is the discussion page.
		URL:  fmt.Sprintf("https://news.ycombinator.com/item?id=%d", item.ID),
		Text: item.Title + "\n\n" + item.URL,
		Engagement: map[string]float64{
			"score":   item.Score,
			"upvotes": item.Score,
			"replies": item.Descendants,
		},
		Tags:       tags,
		Metadata:   metadata,
		RawPayload: map[string]interface{}{"id": item.ID, "title": item.Title},
	}
}

func (c *HackerNewsClient) commentSignal(comment, story *hnItem) models.Signal {
	return models.Signal{
		Source:       config.SourceHackerNews,
		Type:         "comment",
		AuthorHandle: comment.By,
		Timestamp:    time.Unix(comment.Time, 0).UTC(),
		URL:          fmt.Sprintf("https://news.ycombinator.com/item?id=%d", comment.ID),
		Text:         comment.Text,
		Engagement:   map[string]float64{},
		Metadata: map[string]interface{}{
			"hnId":       comment.ID,
			"parentId":   comment.Parent,
			"storyId":    story.ID,
			"storyTitle": story.Title,
		},
		RawPayload: map[string]interface{}{"id": comment.ID},
	}
}

func matchesAnyKeyword(text string, keywords []string) bool {
	lowered := strings.ToLower(text)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lowered, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
