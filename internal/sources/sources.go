// Package sources implements the external signal adapters: communities, app
// stores, news feeds, and company trackers. Adapters return raw signals; the
// ingestion pipeline owns normalization and dedup.
package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/shibuya/kanshi/internal/config"
	"github.com/shibuya/kanshi/internal/models"
)

// DataSource fetches signals from one external source.
type DataSource interface {
	Name() string
	Fetch(ctx context.Context, cfg config.SourceConfig) ([]models.Signal, error)
}

const (
	// browserUserAgent is sent to endpoints that reject obvious bots.
	browserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	// botUserAgent identifies us to endpoints that tolerate crawlers.
	botUserAgent = "kanshi/1.0"

	defaultTimeout = 15 * time.Second
)

// All returns every adapter, in the order they run.
func All(logger *zap.Logger) []DataSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return []DataSource{
		NewRedditClient(logger),
		NewProductHuntClient(logger),
		NewAppStoreClient(logger),
		NewPlayStoreClient(logger),
		NewHackerNewsClient(logger),
		NewRSSClient(logger),
		NewYCClient(logger),
		NewGDELTClient(logger),
	}
}

func newHTTPClient(cfg config.SourceConfig) *http.Client {
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &http.Client{Timeout: timeout}
}

func fetchBytes(ctx context.Context, client *http.Client, url, userAgent string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,application/json;q=0.9,*/*;q=0.8")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: unexpected status %d", url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func fetchJSON(ctx context.Context, client *http.Client, url, userAgent string, out interface{}) error {
	data, err := fetchBytes(ctx, client, url, userAgent)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
