// Package main is the Kanshi CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/shibuya/kanshi/internal/agent"
	"github.com/shibuya/kanshi/internal/cli"
	"github.com/shibuya/kanshi/internal/config"
	"github.com/shibuya/kanshi/internal/embedding"
	"github.com/shibuya/kanshi/internal/extract"
	"github.com/shibuya/kanshi/internal/ingest"
	"github.com/shibuya/kanshi/internal/knowledge"
	"github.com/shibuya/kanshi/internal/llm"
	"github.com/shibuya/kanshi/internal/models"
	"github.com/shibuya/kanshi/internal/query"
	"github.com/shibuya/kanshi/internal/server"
	"github.com/shibuya/kanshi/internal/store"
	"github.com/shibuya/kanshi/internal/watcher"
	"github.com/shibuya/kanshi/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kanshi/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used, so that "kanshi server" from the project dir uses the project's
// config (including debug).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	// .env is optional; environment variables win either way.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "sync":
		runSync()
	case "search":
		runSearch()
	case "ask":
		runAsk()
	case "ingest":
		runIngest()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("kanshi version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// Components holds initialized services.
type Components struct {
	Store        *store.SQLiteStore
	Embedder     embedding.Embedder
	Knowledge    *knowledge.Service
	Orchestrator *ingest.Orchestrator
	Agent        *agent.Agent
}

func (c *Components) Close() {
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	st, err := store.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	apiKey := os.Getenv("OPENAI_API_KEY")

	provider := cfg.Embedding.Provider
	if provider == "openai" && apiKey == "" {
		logger.Warn("OPENAI_API_KEY not set, falling back to mock embeddings")
		provider = "mock"
	}
	embedder, err := embedding.New(provider, apiKey, cfg.Embedding.Model, cfg.Embedding.Dimensions, cfg.Embedding.CacheSize)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	kn := knowledge.NewService(st, embedder, logger, cfg.Knowledge.ChunkSize, cfg.Knowledge.ChunkOverlap)
	orch := ingest.NewOrchestrator(cfg.Ingest, st, nil, logger)

	var ag *agent.Agent
	if apiKey != "" {
		client, err := llm.NewOpenAIClient(apiKey, cfg.Agent.Model)
		if err != nil {
			logger.Warn("chat agent unavailable", zap.Error(err))
		} else {
			dispatcher := agent.NewDispatcher(st, kn, orch, logger)
			ag = agent.New(client, dispatcher, st, logger,
				agent.WithMaxToolLoops(cfg.Agent.MaxToolLoops),
				agent.WithCitationLimits(cfg.Agent.MaxCitations, cfg.Agent.SnippetLength),
			)
		}
	} else {
		logger.Warn("OPENAI_API_KEY not set, chat agent disabled")
	}

	return &Components{
		Store:        st,
		Embedder:     embedder,
		Knowledge:    kn,
		Orchestrator: orch,
		Agent:        ag,
	}, nil
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()

	var drop *watcher.DropWatcher
	if len(cfg.Knowledge.DropDirectories) > 0 {
		extractor := extract.NewExtractor()
		kn := components.Knowledge
		drop = watcher.New(cfg.Knowledge.DropDirectories, cfg.Knowledge.Extensions,
			func(ctx context.Context, path string) error {
				text, err := extractor.Extract(path)
				if err != nil {
					return err
				}
				_, err = kn.Ingest(ctx, knowledge.IngestInput{
					Title:    filepath.Base(path),
					Text:     text,
					Source:   "file",
					Metadata: map[string]interface{}{"filename": filepath.Base(path)},
				})
				return err
			},
			logger,
		)
		if err := drop.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start drop watcher", zap.Error(err))
		}
		drop.SyncExisting(watchCtx)
	}

	srv := server.NewServer(
		components.Store,
		components.Knowledge,
		components.Agent,
		components.Orchestrator,
		&cfg.Server,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if drop != nil {
		drop.Stop()
	}
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runSync() {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = run ingestion in process)")
	source := fs.String("source", "", "sync a single source (reddit, producthunt, appstore, playstore, hackernews, rss, yc, gdelt)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *serverURL != "" {
		endpoint := *serverURL + "/api/sync"
		if *source != "" {
			endpoint += "?source=" + url.QueryEscape(*source)
		}
		var resp struct {
			Count   int             `json:"count"`
			Signals []models.Signal `json:"signals"`
			Message string          `json:"message"`
		}
		if err := postJSON(endpoint, nil, &resp); err != nil {
			fmt.Fprintf(os.Stderr, "Sync failed: %v\n", err)
			os.Exit(1)
		}
		if format == cli.OutputJSON {
			writeIndentedJSON(resp)
			return
		}
		fmt.Println(resp.Message)
		return
	}

	components, logger := mustInitialize(*configPath)
	defer components.Close()
	defer logger.Sync()

	result, err := components.Orchestrator.Run(context.Background(), *source)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Sync failed: %v\n", err)
		os.Exit(1)
	}

	if format == cli.OutputJSON {
		writeIndentedJSON(result)
		return
	}
	fmt.Printf("fetched:  %d\ninserted: %d\nskipped:  %d\n", result.Fetched, len(result.Inserted), result.Skipped)
	for name, msg := range result.Errors {
		fmt.Printf("failed:   %s (%s)\n", name, msg)
	}
}

func writeIndentedJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", `server URL (empty = direct storage when server is not running)`)
	sources := fs.String("sources", "", "comma-separated source filter")
	sinceDays := fs.Int("since-days", 0, "look back N days")
	limit := fs.Int("limit", 20, "number of results")
	sort := fs.String("sort", "newest", "sort order: newest, oldest, or engagement")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	qa := models.SignalQueryArgs{
		Query:     strings.TrimSpace(strings.Join(fs.Args(), " ")),
		SinceDays: *sinceDays,
		Limit:     *limit,
		Sort:      *sort,
	}
	if *sources != "" {
		qa.Sources = strings.Split(*sources, ",")
	}

	var signals []models.Signal
	if *serverURL != "" {
		var resp struct {
			Signals []models.Signal `json:"signals"`
		}
		if err := postJSON(*serverURL+"/api/signals/search", qa, &resp); err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
		signals = resp.Signals
	} else {
		components, logger := mustInitialize(*configPath)
		defer components.Close()
		defer logger.Sync()

		qa.Normalize(query.StoreDefaultLimit, query.StoreMaxLimit)
		signals, err = components.Store.QuerySignals(context.Background(), query.Build(qa), qa.Sort, qa.Limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
	}
	if err := cli.WriteSignals(os.Stdout, signals, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = run the agent in process)")
	conversationID := fs.String("conversation", "", "conversation id for persisted history")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" {
		fmt.Println("Usage: kanshi ask [flags] <question>")
		os.Exit(1)
	}

	messages := []models.ChatMessage{{Role: models.RoleUser, Content: question}}

	var reply models.ChatMessage
	if *serverURL != "" {
		body := map[string]interface{}{"conversationId": *conversationID, "messages": messages}
		var resp agent.RunResult
		if err := postJSON(*serverURL+"/api/chat", body, &resp); err != nil {
			fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
			os.Exit(1)
		}
		reply = resp.Message
	} else {
		components, logger := mustInitialize(*configPath)
		defer components.Close()
		defer logger.Sync()

		if components.Agent == nil {
			fmt.Fprintln(os.Stderr, "Chat requires OPENAI_API_KEY")
			os.Exit(1)
		}
		result, err := components.Agent.Run(context.Background(), agent.RunInput{
			ConversationID: *conversationID,
			Messages:       messages,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
			os.Exit(1)
		}
		reply = result.Message
	}
	if err := cli.WriteChatReply(os.Stdout, &reply, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	title := fs.String("title", "", "document title (default: filename)")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: kanshi ingest [flags] <file>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	components, logger := mustInitialize(*configPath)
	defer components.Close()
	defer logger.Sync()

	text, err := extract.NewExtractor().Extract(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Extraction failed: %v\n", err)
		os.Exit(1)
	}
	docTitle := *title
	if docTitle == "" {
		docTitle = filepath.Base(path)
	}
	result, err := components.Knowledge.Ingest(context.Background(), knowledge.IngestInput{
		Title:    docTitle,
		Text:     text,
		Source:   "file",
		Metadata: map[string]interface{}{"filename": filepath.Base(path)},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ingestion failed: %v\n", err)
		os.Exit(1)
	}
	if result.Cached {
		fmt.Printf("Document already ingested: %s\n", result.DocID)
		return
	}
	fmt.Printf("Document ingested: %s (%d chunks)\n", result.DocID, result.Chunks)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", `server URL (empty = direct storage)`)
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	status := map[string]interface{}{}
	if *serverURL != "" {
		resp, err := http.Get(*serverURL + "/api/status")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Fprintf(os.Stderr, "Server returned %d: %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
			fmt.Fprintf(os.Stderr, "Decode failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		components, logger := mustInitialize(*configPath)
		defer components.Close()
		defer logger.Sync()

		ctx := context.Background()
		signals, err := components.Store.CountSignals(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Count signals failed: %v\n", err)
			os.Exit(1)
		}
		docs, err := components.Store.CountDocuments(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Count documents failed: %v\n", err)
			os.Exit(1)
		}
		chunks, err := components.Store.CountChunks(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Count chunks failed: %v\n", err)
			os.Exit(1)
		}
		status["signals"] = signals
		status["documents"] = docs
		status["chunks"] = chunks
		status["disk_usage_bytes"] = components.Store.DiskUsageBytes()
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		for _, key := range []string{"signals", "documents", "chunks", "disk_usage_bytes"} {
			if v, ok := status[key]; ok {
				fmt.Printf("%-18s %v\n", key+":", v)
			}
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func mustInitialize(configPath string) (*Components, *zap.Logger) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	return components, logger
}

func postJSON(endpoint string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	resp, err := http.Post(endpoint, "application/json", reader)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func printUsage() {
	fmt.Println(`kanshi - Consumer and market signal research

Usage:
  kanshi server [flags]            Start the HTTP server
  kanshi sync [flags]              Run signal ingestion
  kanshi search [flags] <query>    Search stored signals
  kanshi ask [flags] <question>    Ask the research agent
  kanshi ingest [flags] <file>     Ingest a knowledge document
  kanshi status [flags]            Show store status
  kanshi version                   Show version
  kanshi help                      Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/kanshi/config.yaml)
  --debug            Enable debug logging

Sync Flags:
  --config string    Config file path (for in-process ingestion)
  --server string    Server URL (default: empty, run in process)
  --source string    Sync a single source
  --output string    Output format: text or json (default: text)

Search Flags:
  --config string      Config file path (for direct storage mode)
  --server string      Server URL (default: http://localhost:8080). Use --server "" for direct storage.
  --sources string     Comma-separated source filter
  --since-days int     Look back N days
  --limit int          Number of results (default: 20)
  --sort string        Sort order: newest, oldest, or engagement
  --output string      Output format: text or json (default: text)

Ask Flags:
  --config string        Config file path (for in-process mode; requires OPENAI_API_KEY)
  --server string        Server URL (default: empty, run in process)
  --conversation string  Conversation id for persisted history
  --output string        Output format: text or json (default: text)

Examples:
  kanshi server
  kanshi sync --source reddit
  kanshi search --sources reddit,hackernews pricing
  kanshi ask "what are people saying about subscription pricing?"
  kanshi ingest --title "Strategy Memo" memo.pdf
  kanshi status --output json`)
}
