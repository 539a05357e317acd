package sources

import (
	"context"
	"encoding/xml"
	"strings"

	"go.uber.org/zap"

	"github.com/shibuya/kanshi/internal/config"
	"github.com/shibuya/kanshi/internal/models"
)

// RSSClient pulls articles from configured RSS 2.0 and Atom feeds.
type RSSClient struct {
	logger *zap.Logger
}

// NewRSSClient returns an RSS adapter.
func NewRSSClient(logger *zap.Logger) *RSSClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RSSClient{logger: logger}
}

// Name returns the adapter name.
func (c *RSSClient) Name() string { return config.SourceRSS }

// rssDocument covers both RSS 2.0 (channel/item) and Atom (entry) in one
// shape; whichever list is populated wins.
type rssDocument struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
	Entries []atomEntry `xml:"entry"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	Author      string `xml:"author"`
}

type atomEntry struct {
	Title   string   `xml:"title"`
	Links   []phLink `xml:"link"`
	Summary string   `xml:"summary"`
	Content string   `xml:"content"`
	Updated string   `xml:"updated"`
	Author  struct {
		Name string `xml:"name"`
	} `xml:"author"`
}

type feedArticle struct {
	title     string
	link      string
	body      string
	published string
	author    string
}

// Fetch reads every configured feed, applying the per-run keyword filters.
// Per-feed failures are logged and skipped.
func (c *RSSClient) Fetch(ctx context.Context, cfg config.SourceConfig) ([]models.Signal, error) {
	maxItems := cfg.MaxItems
	if maxItems <= 0 {
		maxItems = 10
	}

	client := newHTTPClient(cfg)
	var results []models.Signal

	for _, feed := range cfg.Feeds {
		data, err := fetchBytes(ctx, client, feed.URL, botUserAgent)
		if err != nil {
			c.logger.Warn("rss fetch failed", zap.String("publisher", feed.Publisher), zap.Error(err))
			continue
		}

		articles, err := parseFeed(data)
		if err != nil {
			c.logger.Warn("rss parse failed", zap.String("publisher", feed.Publisher), zap.Error(err))
			continue
		}
		if len(articles) > maxItems {
			articles = articles[:maxItems]
		}

		for _, article := range articles {
			combined := article.title + " " + article.body
			if len(cfg.Keywords) > 0 && !matchesAnyKeyword(combined, cfg.Keywords) {
				continue
			}
			if matchesAnyKeyword(combined, cfg.ExcludeKeywords) {
				continue
			}

			author := article.author
			if author == "" {
				author = feed.Publisher
			}
			results = append(results, models.Signal{
				Source:       config.SourceRSS,
				Type:         "post",
				AuthorHandle: author,
				Timestamp:    parseFeedTime(article.published),
				URL:          article.link,
				Text:         article.title + "\n\n" + article.body,
				Engagement:   map[string]float64{},
				Tags:         feed.Tags,
				Metadata:     map[string]interface{}{"publisher": feed.Publisher, "feedUrl": feed.URL},
				RawPayload:   map[string]interface{}{"title": article.title, "link": article.link},
			})
		}
	}
	return results, nil
}

func parseFeed(data []byte) ([]feedArticle, error) {
	var doc rssDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	var articles []feedArticle
	for _, item := range doc.Channel.Items {
		articles = append(articles, feedArticle{
			title:     strings.TrimSpace(item.Title),
			link:      strings.TrimSpace(item.Link),
			body:      item.Description,
			published: item.PubDate,
			author:    item.Author,
		})
	}
	for _, entry := range doc.Entries {
		body := entry.Content
		if body == "" {
			body = entry.Summary
		}
		articles = append(articles, feedArticle{
			title:     strings.TrimSpace(entry.Title),
			link:      atomEntryLink(entry),
			body:      body,
			published: entry.Updated,
			author:    entry.Author.Name,
		})
	}
	return articles, nil
}

func atomEntryLink(entry atomEntry) string {
	for _, l := range entry.Links {
		if l.Rel == "" || l.Rel == "alternate" {
			return l.Href
		}
	}
	if len(entry.Links) > 0 {
		return entry.Links[0].Href
	}
	return ""
}
