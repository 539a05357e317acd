package sources

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/shibuya/kanshi/internal/config"
	"github.com/shibuya/kanshi/internal/models"
)

const ycCompaniesURL = "https://www.ycombinator.com/companies"

// YCClient scrapes the Y Combinator company directory for newly listed
// companies. Like the Play Store adapter this is best effort against
// rendered markup.
type YCClient struct {
	logger *zap.Logger
}

// NewYCClient returns a Y Combinator adapter.
func NewYCClient(logger *zap.Logger) *YCClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &YCClient{logger: logger}
}

// Name returns the adapter name.
func (c *YCClient) Name() string { return config.SourceYC }

// Fetch scrapes company links from the configured directory pages. Per-page
// failures are logged and skipped.
func (c *YCClient) Fetch(ctx context.Context, cfg config.SourceConfig) ([]models.Signal, error) {
	pages := cfg.Pages
	if len(pages) == 0 {
		pages = []string{ycCompaniesURL}
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
			c.logger.Warn("yc fetch failed", zap.String("url", pageURL), zap.Error(err))
			continue
		}

		doc, err := html.Parse(strings.NewReader(string(data)))
		if err != nil {
			c.logger.Warn("yc parse failed", zap.String("url", pageURL), zap.Error(err))
			continue
		}

		companies := collectYCCompanies(doc, limit)
		if len(companies) == 0 {
			c.logger.Warn("yc scrape found no companies", zap.String("url", pageURL))
			continue
		}

		for _, company := range companies {
			text := "New YC Company Detected: " + company.name
			if company.description != "" {
				text += "\n\n" + company.description
			}
			results = append(results, models.Signal{
				Source:       config.SourceYC,
				Type:         "company_update",
				AuthorHandle: "Y Combinator",
				Timestamp:    now,
				URL:          "https://www.ycombinator.com" + company.href,
				Text:         text,
				Engagement:   map[string]float64{},
				Tags:         []string{"Startup"},
				Metadata:     map[string]interface{}{"slug": strings.TrimPrefix(company.href, "/companies/")},
				RawPayload:   map[string]interface{}{"name": company.name, "href": company.href},
			})
		}
	}
	return results, nil
}

type ycCompany struct {
	name        string
	description string
	href        string
}

// collectYCCompanies walks the DOM for /companies/<slug> links, taking the
// first text chunk as the name and the rest as description.
func collectYCCompanies(doc *html.Node, limit int) []ycCompany {
	var companies []ycCompany
	seen := make(map[string]bool)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(companies) >= limit {
			return
		}
		if n.Type == html.ElementNode && n.Data == "a" {
			href := attrValue(n, "href")
			if strings.HasPrefix(href, "/companies/") && href != "/companies/" && !seen[href] {
				name, description := splitCompanyText(nodeText(n))
				if name != "" {
					seen[href] = true
					companies = append(companies, ycCompany{
						name:        name,
						description: description,
						href:        href,
					})
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return companies
}

func splitCompanyText(text string) (name, description string) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", ""
	}
	name = fields[0]
	if len(fields) > 1 {
		description = strings.Join(fields[1:], " ")
	}
	return name, description
}
