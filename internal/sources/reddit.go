package sources

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/shibuya/kanshi/internal/config"
	"github.com/shibuya/kanshi/internal/models"
)

// RedditClient pulls hot posts from configured subreddits through the public
// JSON listing.
type RedditClient struct {
	logger *zap.Logger
}

// NewRedditClient returns a reddit adapter.
func NewRedditClient(logger *zap.Logger) *RedditClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedditClient{logger: logger}
}

// Name returns the adapter name.
func (c *RedditClient) Name() string { return config.SourceReddit }

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Score       float64 `json:"score"`
	NumComments float64 `json:"num_comments"`
	CreatedUTC  float64 `json:"created_utc"`
	Author      string  `json:"author"`
	Permalink   string  `json:"permalink"`
}

// Fetch pulls the hot listing for each configured subreddit. Per-subreddit
// failures are logged and skipped.
func (c *RedditClient) Fetch(ctx context.Context, cfg config.SourceConfig) ([]models.Signal, error) {
	client := newHTTPClient(cfg)
	var results []models.Signal

	for _, subreddit := range cfg.Subreddits {
		c.logger.Debug("fetching reddit hot posts", zap.String("subreddit", subreddit))

		var listing redditListing
		url := fmt.Sprintf("https://www.reddit.com/r/%s/hot.json?limit=10", subreddit)
		if err := fetchJSON(ctx, client, url, browserUserAgent, &listing); err != nil {
			c.logger.Warn("reddit fetch failed", zap.String("subreddit", subreddit), zap.Error(err))
			continue
		}

		for _, child := range listing.Data.Children {
			post := child.Data
			results = append(results, models.Signal{
				Source:       config.SourceReddit,
				Type:         "post",
				AuthorHandle: post.Author,
				Timestamp:    time.Unix(int64(post.CreatedUTC), 0).UTC(),
				URL:          "https://www.reddit.com" + post.Permalink,
				Text:         post.Title + "\n\n" + post.Selftext,
				Engagement: map[string]float64{
					"upvotes": post.Score,
					"score":   post.Score,
					"replies": post.NumComments,
				},
				Metadata: map[string]interface{}{
					"subreddit": subreddit,
					"postId":    post.ID,
				},
				RawPayload: map[string]interface{}{
					"id":        post.ID,
					"title":     post.Title,
					"permalink": post.Permalink,
				},
			})
		}
	}
	return results, nil
}
