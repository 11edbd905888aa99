package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"scout/internal/config"
	"scout/internal/diff"
	"scout/internal/fetch"
	"scout/internal/pipeline"
)

// --- company ---

var companyCmd = &cobra.Command{
	Use:   "company",
	Short: "Manage tracked companies",
}

var companyAddCmd = &cobra.Command{
	Use:   "add <name> <website>",
	Short: "Add a company to track",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, store, logger, err := setup()
		if err != nil {
			return err
		}
		defer store.Close()

		runner := buildRunner(cfg, store, logger)
		id, err := runner.EnsureCompany(cmd.Context(), args[0], args[1])
		if err != nil {
			return fmt.Errorf("adding company: %w", err)
		}

		printSuccess("Tracking %s", args[0])
		printStatus("Company ID", "%s", id)
		return nil
	},
}

func init() {
	companyCmd.AddCommand(companyAddCmd)
}

var companiesCmd = &cobra.Command{
	Use:   "companies",
	Short: "List tracked companies",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		_, store, _, err := setup()
		if err != nil {
			return err
		}
		defer store.Close()

		companies, err := store.ListCompanies(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if len(companies) == 0 {
			fmt.Println("No companies tracked yet. Use 'scout company add'.")
			return nil
		}

		rows := make([][]string, 0, len(companies))
		for _, c := range companies {
			rows = append(rows, []string{shortID(c.ID), c.Name, c.Domain, c.CreatedAt})
		}
		fmt.Println(renderTable([]string{"ID", "Name", "Domain", "Added"}, rows))
		return nil
	},
}

func init() {
	companiesCmd.Flags().Int("limit", 50, "maximum number of companies to list")
}

// --- pipeline stages ---

var discoverCmd = &cobra.Command{
	Use:   "discover <company-id>",
	Short: "Queue deterministic, crawled, and AI-proposed source URLs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, store, logger, err := setup()
		if err != nil {
			return err
		}
		defer store.Close()

		client := llmClient(cfg)
		proposer := llmProposer(client, logger)
		stats, err := newDiscoverer(store, logger, proposer).Discover(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		printSuccess("Discovery complete")
		printStatus("Deterministic", "%d", stats.Deterministic)
		printStatus("Crawled", "%d", stats.Crawled)
		printStatus("AI proposed", "%d", stats.AI)
		printStatus("Queued", "%d", stats.Queued)
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <company-id>",
	Short: "Queue third-party press coverage via web search",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, store, logger, err := setup()
		if err != nil {
			return err
		}
		defer store.Close()

		stats, err := newSearcher(store, logger, cfg).SearchCompany(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		printSuccess("Web search complete")
		printStatus("Queries", "%d", stats.Queries)
		printStatus("Results", "%d", stats.Results)
		printStatus("Queued", "%d", stats.Inserted)
		return nil
	},
}

var fetchCmd = &cobra.Command{
	Use:   "fetch <company-id>",
	Short: "Fetch pending sources and store their clean text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		cfg, store, logger, err := setup()
		if err != nil {
			return err
		}
		defer store.Close()

		results, err := newFetcher(store, logger, cfg).FetchPending(cmd.Context(), args[0], limit)
		if err != nil {
			return err
		}

		byStatus := map[string]int{}
		for _, res := range results {
			byStatus[res.Status]++
		}
		printSuccess("Fetched %d sources", len(results))
		printStatus("Stored", "%d", byStatus[fetch.StatusStored])
		printStatus("Unchanged", "%d", byStatus[fetch.StatusNoChange])
		printStatus("Skipped", "%d", byStatus[fetch.StatusSkipped])
		return nil
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract <company-id>",
	Short: "Extract and persist evidence-backed facts from stored sources",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, store, logger, err := setup()
		if err != nil {
			return err
		}
		defer store.Close()

		runner := buildRunner(cfg, store, logger)
		totals, err := runner.ExtractAll(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		printSuccess("Extraction complete")
		printExtractTotals(totals)
		return nil
	},
}

var diffCmd = &cobra.Command{
	Use:   "diff <company-id>",
	Short: "Detect changes since the last detection run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, store, logger, err := setup()
		if err != nil {
			return err
		}
		defer store.Close()

		counts, err := diff.New(store, logger).Detect(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		printSuccess("Change detection complete")
		printStatus("People", "%d", counts.People)
		printStatus("Events", "%d", counts.Events)
		printStatus("Funding rounds", "%d", counts.FundingRounds)
		printStatus("Total", "%d", counts.Total)
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline over a JSONL seed list",
	Long: `Run discover, search, fetch, extract, and change detection for each
company in a seed file. Each line is a JSON object with company_name and
company_website_url.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		seed, _ := cmd.Flags().GetString("seed")
		limit, _ := cmd.Flags().GetInt("limit")
		if seed == "" {
			return fmt.Errorf("--seed is required")
		}

		cfg, store, logger, err := setup()
		if err != nil {
			return err
		}
		defer store.Close()

		runner := buildRunner(cfg, store, logger)
		reports, err := runner.RunBatch(cmd.Context(), seed, limit)
		if err != nil {
			return err
		}

		printSuccess("Batch complete: %d companies", len(reports))
		for _, report := range reports {
			printStep("company %s", shortID(report.CompanyID))
			printStatus("Queued", "%d", report.Discover.Queued+report.Search.Inserted)
			printStatus("Fetched", "%d", report.Fetched)
			printExtractTotals(report.Extract)
			printStatus("Changes", "%d", report.Changes.Total)
		}
		return nil
	},
}

func init() {
	fetchCmd.Flags().Int("limit", 20, "maximum number of sources to fetch")
	runCmd.Flags().String("seed", "", "JSONL seed file of companies")
	runCmd.Flags().Int("limit", 0, "maximum number of companies to process (0 = all)")
}

func printExtractTotals(totals pipeline.ExtractTotals) {
	printStatus("People", "%d", totals.People)
	printStatus("Events", "%d", totals.Events)
	printStatus("Funding", "%d", totals.Funding)
	printStatus("Evidence", "%d", totals.Evidence)
	if totals.RejectedSteps > 0 {
		printWarning("%d chunks failed and were skipped", totals.RejectedSteps)
	}
}

// --- fact views ---

var peopleCmd = &cobra.Command{
	Use:   "people <company-id>",
	Short: "List known people at a company",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, store, _, err := setup()
		if err != nil {
			return err
		}
		defer store.Close()

		people, err := store.ListPeople(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(people) == 0 {
			fmt.Println("No people recorded yet.")
			return nil
		}

		rows := make([][]string, 0, len(people))
		for _, p := range people {
			linkedin := ""
			if p.LinkedInURL != nil {
				linkedin = *p.LinkedInURL
			}
			rows = append(rows, []string{shortID(p.ID), p.Name, p.Role, linkedin, p.UpdatedAt})
		}
		fmt.Println(renderTable([]string{"ID", "Name", "Role", "LinkedIn", "Updated"}, rows))
		return nil
	},
}

var eventsCmd = &cobra.Command{
	Use:   "events <company-id>",
	Short: "List known events for a company",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, store, _, err := setup()
		if err != nil {
			return err
		}
		defer store.Close()

		events, err := store.ListEvents(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(events) == 0 {
			fmt.Println("No events recorded yet.")
			return nil
		}

		rows := make([][]string, 0, len(events))
		for _, e := range events {
			rows = append(rows, []string{shortID(e.ID), e.Type, e.Date, truncate(e.Title, 60)})
		}
		fmt.Println(renderTable([]string{"ID", "Type", "Date", "Title"}, rows))
		return nil
	},
}

var changesCmd = &cobra.Command{
	Use:   "changes <company-id>",
	Short: "List detected changes for a company",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		_, store, _, err := setup()
		if err != nil {
			return err
		}
		defer store.Close()

		changes, err := store.ListChanges(cmd.Context(), args[0], limit)
		if err != nil {
			return err
		}
		if len(changes) == 0 {
			fmt.Println("No changes detected yet.")
			return nil
		}

		rows := make([][]string, 0, len(changes))
		for _, c := range changes {
			rows = append(rows, []string{
				c.ChangeType, c.ObjectType, shortID(c.ObjectID),
				truncate(c.SourceURL, 50), c.DetectedAt,
			})
		}
		fmt.Println(renderTable([]string{"Change", "Object", "ID", "Source", "Detected"}, rows))
		return nil
	},
}

func init() {
	changesCmd.Flags().Int("limit", 50, "maximum number of changes to list")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write an annotated sample config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.WriteSample()
		if err != nil {
			return err
		}
		printSuccess("Wrote %s", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		printStatus("Config file", "%s", config.Path())
		printStatus("Data dir", "%s", cfg.Storage.DataDir)
		printStatus("OpenAI model", "%s", cfg.OpenAI.Model)
		printStatus("OpenAI key", "%s", maskSecret(cfg.OpenAI.APIKey))
		printStatus("SerpAPI key", "%s", maskSecret(cfg.Search.SerpAPIKey))
		printStatus("Fetch rate", "%.1f req/s", cfg.Fetch.RequestsPerSecond)
		printStatus("Server addr", "%s", cfg.Server.Addr)
		printStatus("Log level", "%s", cfg.Log.Level)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}

func maskSecret(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "..." + s[len(s)-2:]
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
