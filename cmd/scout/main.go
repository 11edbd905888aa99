package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"scout/internal/config"
	"scout/internal/diff"
	"scout/internal/discover"
	"scout/internal/extract"
	"scout/internal/fetch"
	"scout/internal/llm"
	"scout/internal/pipeline"
	"scout/internal/storage"
	"scout/internal/upsert"
	"scout/internal/websearch"
)

var version = "dev"

var (
	noColor    bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:     "scout",
	Short:   "Evidence-gated company intelligence tracker",
	Version: version,
	Long: `scout discovers, fetches, and extracts company intelligence from public
sources. Every extracted fact is gated on a verbatim evidence quote from the
source text; facts the model cannot quote are rejected.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default: "+config.Path()+")")

	rootCmd.AddCommand(companyCmd)
	rootCmd.AddCommand(companiesCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(peopleCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(changesCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
}

func loadConfig() (config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.Load()
}

func newLogger(level string) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func openStore(cfg config.Config) (*storage.Store, error) {
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	return store, nil
}

// setup loads config and opens storage; the caller owns closing the store.
func setup() (config.Config, *storage.Store, *slog.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	store, err := openStore(cfg)
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	return cfg, store, newLogger(cfg.Log.Level), nil
}

func llmClient(cfg config.Config) *llm.Client {
	return llm.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model)
}

// llmProposer returns the AI discovery tier, or nil when no key is
// configured so discovery runs its deterministic and crawl tiers only.
func llmProposer(client *llm.Client, logger *slog.Logger) discover.URLProposer {
	if !client.Configured() {
		logger.Warn("no OpenAI API key configured, AI discovery and extraction will be skipped")
		return nil
	}
	return client
}

func newDiscoverer(store *storage.Store, logger *slog.Logger, proposer discover.URLProposer) *discover.Discoverer {
	return discover.New(store, logger, proposer)
}

func newSearcher(store *storage.Store, logger *slog.Logger, cfg config.Config) *websearch.Searcher {
	return websearch.New(store, logger, cfg.Search.SerpAPIKey)
}

func newFetcher(store *storage.Store, logger *slog.Logger, cfg config.Config) *fetch.Fetcher {
	return fetch.New(store, logger, cfg.Fetch.RequestsPerSecond)
}

func buildRunner(cfg config.Config, store *storage.Store, logger *slog.Logger) *pipeline.Runner {
	client := llmClient(cfg)
	return pipeline.New(store, logger,
		newDiscoverer(store, logger, llmProposer(client, logger)),
		newSearcher(store, logger, cfg),
		newFetcher(store, logger, cfg),
		extract.New(client),
		upsert.New(store),
		diff.New(store, logger),
	)
}
