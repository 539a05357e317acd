package config

// Source adapter names. Adapter registration and per-source config resolution
// key off these.
const (
	SourceReddit      = "reddit"
	SourceProductHunt = "producthunt"
	SourceAppStore    = "appstore"
	SourcePlayStore   = "playstore"
	SourceHackerNews  = "hackernews"
	SourceRSS         = "rss"
	SourceYC          = "yc"
	SourceGDELT       = "gdelt"
)

// SourceNames lists every known adapter name.
var SourceNames = []string{
	SourceReddit,
	SourceProductHunt,
	SourceAppStore,
	SourcePlayStore,
	SourceHackerNews,
	SourceRSS,
	SourceYC,
	SourceGDELT,
}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/kanshi/data/kanshi.db"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "openai"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-large"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 3072
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Agent.Model == "" {
		cfg.Agent.Model = "gpt-4o-mini"
	}
	if cfg.Agent.MaxToolLoops == 0 {
		cfg.Agent.MaxToolLoops = 3
	}
	if cfg.Agent.MaxCitations == 0 {
		cfg.Agent.MaxCitations = 12
	}
	if cfg.Agent.SnippetLength == 0 {
		cfg.Agent.SnippetLength = 240
	}
	if cfg.Ingest.DedupWindowHours == 0 {
		cfg.Ingest.DedupWindowHours = 20
	}
	if cfg.Ingest.Sources == nil {
		cfg.Ingest.Sources = map[string]SourceConfig{}
	}
	for name, def := range defaultSources() {
		if _, ok := cfg.Ingest.Sources[name]; !ok {
			cfg.Ingest.Sources[name] = def
		}
	}
	if cfg.Knowledge.ChunkSize == 0 {
		cfg.Knowledge.ChunkSize = 1000
	}
	if cfg.Knowledge.ChunkOverlap == 0 {
		cfg.Knowledge.ChunkOverlap = 200
	}
	if cfg.Knowledge.Extensions == nil {
		cfg.Knowledge.Extensions = []string{".txt", ".md", ".rst", ".pdf", ".docx", ".odt", ".xlsx"}
	}
}

// defaultSources returns the built-in monitoring presets: startup and product
// launch coverage across communities, stores, and news.
func defaultSources() map[string]SourceConfig {
	return map[string]SourceConfig{
		SourceReddit: {
			Subreddits: []string{
				"startups", "startup", "entrepreneur", "sideproject",
				"saas", "indiehackers", "microsaas", "newproducts",
			},
		},
		SourceProductHunt: {
			FeedURL: "https://www.producthunt.com/feed",
		},
		SourceAppStore: {
			// Top free apps, music category.
			FeedURL:  "http://ax.itunes.apple.com/WebObjects/MZStoreServices.woa/ws/RSS/topfreeapplications/limit=200/genre=6011/json",
			MaxItems: 200,
		},
		SourcePlayStore: {
			Pages:    []string{"https://play.google.com/store/apps/category/MUSIC_AND_AUDIO"},
			MaxItems: 200,
		},
		SourceHackerNews: {
			Mode:          "showstories",
			MaxItems:      30,
			FetchComments: true,
			MaxComments:   5,
			Keywords:      []string{"launch", "introducing", "released", "announcing", "startup", "beta"},
		},
		SourceRSS: {
			MaxItems:        25,
			ExcludeKeywords: []string{"podcast", "webinar", "newsletter"},
			Feeds: []FeedConfig{
				{Publisher: "Y Combinator", URL: "https://blog.ycombinator.com/feed/", Tags: []string{"vc", "yc", "blog"}},
				{Publisher: "Sequoia Capital", URL: "https://www.sequoiacap.com/feed/", Tags: []string{"vc", "sequoia"}},
				{Publisher: "Greylock", URL: "https://greylock.com/feed/", Tags: []string{"vc", "greylock"}},
				{Publisher: "SaaStr", URL: "https://www.saastr.com/feed/", Tags: []string{"saas", "growth"}},
				{Publisher: "TechCrunch Startups", URL: "https://techcrunch.com/category/startups/feed/", Tags: []string{"news", "startups"}},
				{Publisher: "TechCrunch Funding", URL: "https://techcrunch.com/tag/funding/feed/", Tags: []string{"news", "funding"}},
			},
		},
		SourceYC: {
			Pages:    []string{"https://www.ycombinator.com/companies"},
			MaxItems: 20,
		},
		SourceGDELT: {
			MaxItems: 25,
			Timespan: "7d",
			Queries: []QueryPresetConfig{
				{
					Name:  "VC Funding",
					Query: `("raised" OR "funding round" OR "seed round" OR "series a" OR "series b" OR "venture capital")`,
					Tags:  []string{"funding", "vc"},
				},
				{
					Name:  "M&A",
					Query: `("acquired" OR "acquisition" OR "merger")`,
					Tags:  []string{"m&a"},
				},
				{
					Name:  "Product Launches",
					Query: `("launch" OR "launches" OR "announces")`,
					Tags:  []string{"launch"},
				},
			},
		},
	}
}
