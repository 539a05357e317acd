package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shibuya/kanshi/internal/config"
)

func TestProductHuntFetch(t *testing.T) {
	feed := `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>tag:ph,1</id>
    <title>Acme Analytics</title>
    <content type="html">&lt;p&gt;Dashboards for everyone&lt;/p&gt;</content>
    <published>2026-03-02T10:00:00Z</published>
    <author><name>maker</name></author>
    <link rel="alternate" href="https://www.producthunt.com/posts/acme"/>
  </entry>
</feed>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(feed))
	}))
	defer srv.Close()

	c := NewProductHuntClient(nil)
	signals, err := c.Fetch(context.Background(), config.SourceConfig{FeedURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	if len(signals) != 1 {
		t.Fatalf("expected 1 signal, got %d", len(signals))
	}
	sig := signals[0]
	if sig.Type != "launch" || sig.AuthorHandle != "maker" {
		t.Errorf("unexpected signal: %+v", sig)
	}
	if sig.URL != "https://www.producthunt.com/posts/acme" {
		t.Errorf("unexpected url: %q", sig.URL)
	}
	if !strings.HasPrefix(sig.Text, "Acme Analytics\n\n") {
		t.Errorf("unexpected text: %q", sig.Text)
	}
	want := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	if !sig.Timestamp.Equal(want) {
		t.Errorf("expected %v, got %v", want, sig.Timestamp)
	}
}

func TestAppStoreFetch(t *testing.T) {
	feed := `{"feed":{"entry":[
		{"im:name":{"label":"Tune App"},"im:artist":{"label":"Tune Inc"},
		 "summary":{"label":"Listen anywhere"},"im:price":{"label":"Free"},
		 "category":{"attributes":{"label":"Music"}},
		 "id":{"label":"https://apps.apple.com/jp/app/id1"}},
		{"im:name":{"label":"Beat App"},"im:artist":{"label":"Beat Inc"},
		 "summary":{"label":"Make beats"},"im:price":{"label":"Free"},
		 "category":{"attributes":{"label":"Music"}},
		 "id":{"label":"https://apps.apple.com/jp/app/id2"}}
	]}}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(feed))
	}))
	defer srv.Close()

	c := NewAppStoreClient(nil)
	signals, err := c.Fetch(context.Background(), config.SourceConfig{FeedURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	if len(signals) != 2 {
		t.Fatalf("expected 2 signals, got %d", len(signals))
	}
	first := signals[0]
	if first.Type != "ranking" || !strings.Contains(first.Text, "App Store Ranking #1: Tune App") {
		t.Errorf("unexpected first signal: %+v", first)
	}
	if first.Metadata["rank"] != 1 || first.Metadata["category"] != "Music" {
		t.Errorf("unexpected metadata: %+v", first.Metadata)
	}
	if signals[1].Metadata["rank"] != 2 {
		t.Errorf("expected rank 2, got %+v", signals[1].Metadata)
	}
}

func TestAppStoreFetchMaxItems(t *testing.T) {
	feed := `{"feed":{"entry":[
		{"im:name":{"label":"A"},"id":{"label":"u1"}},
		{"im:name":{"label":"B"},"id":{"label":"u2"}},
		{"im:name":{"label":"C"},"id":{"label":"u3"}}
	]}}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(feed))
	}))
	defer srv.Close()

	c := NewAppStoreClient(nil)
	signals, err := c.Fetch(context.Background(), config.SourceConfig{FeedURL: srv.URL, MaxItems: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(signals) != 2 {
		t.Errorf("expected 2 signals, got %d", len(signals))
	}
}

func TestPlayStoreFetch(t *testing.T) {
	page := `<html><body>
		<a href="/store/apps/details?id=com.acme.tune">Tune Player</a>
		<a href="/store/apps/details?id=com.acme.beat">Beat Maker</a>
		<a href="/store/apps/details?id=com.acme.tune">Tune Player</a>
		<a href="/other">ignored</a>
	</body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}))
	defer srv.Close()

	c := NewPlayStoreClient(nil)
	signals, err := c.Fetch(context.Background(), config.SourceConfig{
		Pages: []string{srv.URL + "/store/apps/category/MUSIC_AND_AUDIO"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(signals) != 2 {
		t.Fatalf("expected 2 signals after dedup, got %d", len(signals))
	}
	if signals[0].Text != "Play Store Ranking #1: Tune Player" {
		t.Errorf("unexpected text: %q", signals[0].Text)
	}
	if signals[0].Metadata["category"] != "MUSIC_AND_AUDIO" {
		t.Errorf("unexpected category: %+v", signals[0].Metadata)
	}
}

func TestRSSFetchWithFilters(t *testing.T) {
	feed := `<?xml version="1.0"?>
<rss version="2.0"><channel>
  <item>
    <title>Startup raises seed round</title>
    <link>https://news.example.com/a</link>
    <description>A big raise</description>
    <pubDate>Mon, 02 Mar 2026 09:00:00 +0000</pubDate>
  </item>
  <item>
    <title>Weekly podcast episode 12</title>
    <link>https://news.example.com/b</link>
    <description>listen now</description>
  </item>
</channel></rss>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(feed))
	}))
	defer srv.Close()

	c := NewRSSClient(nil)
	signals, err := c.Fetch(context.Background(), config.SourceConfig{
		ExcludeKeywords: []string{"podcast"},
		Feeds: []config.FeedConfig{
			{Publisher: "Example News", URL: srv.URL, Tags: []string{"news"}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(signals) != 1 {
		t.Fatalf("expected exclusion to drop the podcast item, got %d signals", len(signals))
	}
	sig := signals[0]
	if sig.AuthorHandle != "Example News" {
		t.Errorf("expected publisher fallback author, got %q", sig.AuthorHandle)
	}
	if sig.URL != "https://news.example.com/a" {
		t.Errorf("unexpected url: %q", sig.URL)
	}
	want := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	if !sig.Timestamp.Equal(want) {
		t.Errorf("expected %v, got %v", want, sig.Timestamp)
	}
}

func TestRSSFetchAtom(t *testing.T) {
	feed := `<?xml version="1.0"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <title>Funding announcement</title>
    <link rel="alternate" href="https://blog.example.com/funding"/>
    <summary>Series A closed</summary>
    <updated>2026-03-01T12:00:00Z</updated>
    <author><name>writer</name></author>
  </entry>
</feed>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(feed))
	}))
	defer srv.Close()

	c := NewRSSClient(nil)
	signals, err := c.Fetch(context.Background(), config.SourceConfig{
		Feeds: []config.FeedConfig{{Publisher: "Blog", URL: srv.URL}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(signals) != 1 {
		t.Fatalf("expected 1 signal, got %d", len(signals))
	}
	if signals[0].AuthorHandle != "writer" || signals[0].URL != "https://blog.example.com/funding" {
		t.Errorf("unexpected signal: %+v", signals[0])
	}
}

func TestRSSFetchBadFeedSkipped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewRSSClient(nil)
	signals, err := c.Fetch(context.Background(), config.SourceConfig{
		Feeds: []config.FeedConfig{{Publisher: "Broken", URL: srv.URL}},
	})
	if err != nil {
		t.Fatalf("per-feed failure should not surface: %v", err)
	}
	if len(signals) != 0 {
		t.Errorf("expected no signals, got %d", len(signals))
	}
}

func TestYCFetch(t *testing.T) {
	page := `<html><body>
		<a href="/companies/acme">Acme Builds rockets for cheap</a>
		<a href="/companies/">ignored</a>
		<a href="/companies/zen">Zen Meditation as a service</a>
	</body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}))
	defer srv.Close()

	c := NewYCClient(nil)
	signals, err := c.Fetch(context.Background(), config.SourceConfig{Pages: []string{srv.URL}})
	if err != nil {
		t.Fatal(err)
	}
	if len(signals) != 2 {
		t.Fatalf("expected 2 signals, got %d", len(signals))
	}
	sig := signals[0]
	if sig.Type != "company_update" || sig.AuthorHandle != "Y Combinator" {
		t.Errorf("unexpected signal: %+v", sig)
	}
	if !strings.HasPrefix(sig.Text, "New YC Company Detected: Acme\n\n") {
		t.Errorf("unexpected text: %q", sig.Text)
	}
	if sig.Metadata["slug"] != "acme" {
		t.Errorf("unexpected slug: %+v", sig.Metadata)
	}
}

func TestMatchesAnyKeyword(t *testing.T) {
	if !matchesAnyKeyword("Show HN: Launching my side project", []string{"launch"}) {
		t.Error("expected case-insensitive substring match")
	}
	if matchesAnyKeyword("nothing relevant", []string{"launch", "beta"}) {
		t.Error("expected no match")
	}
	if matchesAnyKeyword("anything", nil) {
		t.Error("empty keyword list should not match")
	}
}

func TestParseGDELTSeenDate(t *testing.T) {
	got := parseGDELTSeenDate("20260302091500Z")
	want := time.Date(2026, 3, 2, 9, 15, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	// Unparseable input falls back to now.
	if fallback := parseGDELTSeenDate("garbage"); time.Since(fallback) > time.Minute {
		t.Errorf("expected fallback near now, got %v", fallback)
	}
}

func TestParseFeedTimeFallback(t *testing.T) {
	if got := parseFeedTime("", "not a date"); time.Since(got) > time.Minute {
		t.Errorf("expected fallback near now, got %v", got)
	}
}

func TestAllRegistersEveryAdapter(t *testing.T) {
	adapters := All(nil)
	if len(adapters) != len(config.SourceNames) {
		t.Fatalf("expected %d adapters, got %d", len(config.SourceNames), len(adapters))
	}
	for i, adapter := range adapters {
		if adapter.Name() != config.SourceNames[i] {
			t.Errorf("adapter %d: expected %q, got %q", i, config.SourceNames[i], adapter.Name())
		}
	}
}
