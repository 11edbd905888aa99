// Package pipeline sequences the per-company intelligence run: discover ->
// web search -> fetch -> extract -> change detection. Every stage boundary
// is a failure-isolation boundary; one company's bad stage never aborts the
// batch, and one chunk's bad extraction never aborts its source.
package pipeline

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"scout/internal/chunk"
	"scout/internal/diff"
	"scout/internal/discover"
	"scout/internal/extract"
	"scout/internal/fetch"
	"scout/internal/normalize"
	"scout/internal/storage"
	"scout/internal/triage"
	"scout/internal/upsert"
	"scout/internal/validate"
	"scout/internal/websearch"
)

const (
	defaultMaxChars       = 2400
	defaultMaxChunks      = 3
	defaultFetchLimit     = 20
	minExtractSourceChars = 500
)

// includeTypes are the source types extraction reads from.
var includeTypes = []string{"about", "ai_discovered", "news", "web_search", "website"}

// Collaborator contracts, narrowed to what the runner calls.
type (
	Discoverer interface {
		Discover(ctx context.Context, companyID string) (discover.Stats, error)
	}
	Searcher interface {
		SearchCompany(ctx context.Context, companyID string) (websearch.Stats, error)
	}
	Fetcher interface {
		FetchPending(ctx context.Context, companyID string, limit int) ([]fetch.Result, error)
	}
	ChunkExtractor interface {
		ExtractChunk(ctx context.Context, companyName, sourceURL, chunkText string) (*extract.Payload, error)
	}
	Persister interface {
		Persist(ctx context.Context, companyID, sourceID, url string, accepted *extract.Payload) (upsert.Counts, error)
	}
	ChangeDetector interface {
		Detect(ctx context.Context, companyID string) (diff.Counts, error)
	}
)

// ExtractTotals accumulates persistence counts across all sources of one
// extraction pass. RejectedSteps counts chunk-level failures that were
// logged and skipped.
type ExtractTotals struct {
	People        int
	Events        int
	Funding       int
	Evidence      int
	RejectedSteps int
}

// Report summarizes one company's full pipeline run.
type Report struct {
	CompanyID string
	Discover  discover.Stats
	Search    websearch.Stats
	Fetched   int
	Extract   ExtractTotals
	Changes   diff.Counts
}

// Runner drives the pipeline for single companies and seed batches.
type Runner struct {
	store      *storage.Store
	logger     *slog.Logger
	discoverer Discoverer
	searcher   Searcher
	fetcher    Fetcher
	extractor  ChunkExtractor
	persister  Persister
	detector   ChangeDetector

	maxChunksPerSource int
	fetchLimit         int
}

// New wires a Runner from its collaborators.
func New(store *storage.Store, logger *slog.Logger, d Discoverer, s Searcher, f Fetcher,
	x ChunkExtractor, p Persister, c ChangeDetector) *Runner {
	return &Runner{
		store:              store,
		logger:             logger,
		discoverer:         d,
		searcher:           s,
		fetcher:            f,
		extractor:          x,
		persister:          p,
		detector:           c,
		maxChunksPerSource: defaultMaxChunks,
		fetchLimit:         defaultFetchLimit,
	}
}

// EnsureCompany upserts a company from its seed row and returns its id.
func (r *Runner) EnsureCompany(ctx context.Context, name, website string) (string, error) {
	return r.store.UpsertCompany(ctx, name, website, normalize.Domain(website))
}

// RunCompany runs every stage for one company. Stage failures are logged
// and skipped; the returned Report reflects whatever each stage managed.
func (r *Runner) RunCompany(ctx context.Context, companyID string) Report {
	report := Report{CompanyID: companyID}
	var err error

	if report.Discover, err = r.discoverer.Discover(ctx, companyID); err != nil {
		r.logger.Warn("discover stage failed", "company_id", companyID, "error", err)
	}

	if report.Search, err = r.searcher.SearchCompany(ctx, companyID); err != nil {
		r.logger.Warn("web search stage failed", "company_id", companyID, "error", err)
	}

	results, err := r.fetcher.FetchPending(ctx, companyID, r.fetchLimit)
	if err != nil {
		r.logger.Warn("fetch stage failed", "company_id", companyID, "error", err)
	}
	for _, res := range results {
		if res.Status == fetch.StatusStored {
			report.Fetched++
		}
	}

	if report.Extract, err = r.ExtractAll(ctx, companyID); err != nil {
		r.logger.Warn("extract stage failed", "company_id", companyID, "error", err)
	}

	if report.Changes, err = r.detector.Detect(ctx, companyID); err != nil {
		r.logger.Warn("diff stage failed", "company_id", companyID, "error", err)
	}

	return report
}

// ExtractAll runs chunk -> triage -> extract -> validate -> persist over all
// stored sources of a company. Chunk-level failures are counted and skipped.
func (r *Runner) ExtractAll(ctx context.Context, companyID string) (ExtractTotals, error) {
	var totals ExtractTotals

	company, err := r.store.GetCompany(ctx, companyID)
	if err != nil {
		return totals, err
	}

	sources, err := r.store.FetchedSources(ctx, companyID, includeTypes, minExtractSourceChars)
	if err != nil {
		return totals, err
	}
	r.logger.Info("extraction pass", "company", company.Name, "sources", len(sources))

	for _, src := range sources {
		chunks := chunk.Split(src.CleanText, defaultMaxChars, r.maxChunksPerSource)
		r.logger.Info("source chunked", "url", src.URL, "type", src.SourceType, "chunks", len(chunks))

		for _, ch := range chunks {
			verdict := triage.Classify(ch.Text)
			r.logger.Info("triage", "url", src.URL, "chunk", ch.Index, "heading", ch.Heading,
				"labels", strings.Join(verdict.Labels, ","), "confidence", verdict.Confidence, "reason", verdict.Reason)
			if !verdict.Relevant() {
				continue
			}

			payload, err := r.extractor.ExtractChunk(ctx, company.Name, src.URL, ch.Text)
			if err != nil {
				r.logger.Warn("extraction failed, skipping chunk", "url", src.URL, "chunk", ch.Index, "error", err)
				totals.RejectedSteps++
				continue
			}

			accepted, stats := validate.Chunk(payload, ch.Text)
			r.logger.Info("validated", "url", src.URL, "chunk", ch.Index,
				"people_ok", stats.PeopleOK, "events_ok", stats.EventsOK, "funding_ok", stats.FundingOK,
				"rejected", stats.Rejected, "reasons", strings.Join(stats.RejectReasons, ","))
			if !stats.Accepted() {
				continue
			}

			counts, err := r.persister.Persist(ctx, companyID, src.ID, src.URL, accepted)
			if err != nil {
				r.logger.Warn("persist failed, skipping chunk", "url", src.URL, "chunk", ch.Index, "error", err)
				totals.RejectedSteps++
				continue
			}

			totals.People += counts.PeopleUpserted
			totals.Events += counts.EventsUpserted
			totals.Funding += counts.FundingUpserted
			totals.Evidence += counts.EvidenceInserted
		}
	}

	return totals, nil
}

// seedRow is one line of a seed list file.
type seedRow struct {
	CompanyName       string `json:"company_name"`
	CompanyWebsiteURL string `json:"company_website_url"`
}

// RunBatch processes up to limit companies from a JSONL seed file, one
// company end-to-end at a time. A company that cannot even be upserted is
// logged and skipped; everything below that is already non-fatal.
func (r *Runner) RunBatch(ctx context.Context, seedPath string, limit int) ([]Report, error) {
	f, err := os.Open(seedPath)
	if err != nil {
		return nil, fmt.Errorf("opening seed file: %w", err)
	}
	defer f.Close()

	var seeds []seedRow
	scanner := bufio.NewScanner(f)
	for scanner.Scan() && (limit <= 0 || len(seeds) < limit) {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var row seedRow
		if err := json.Unmarshal([]byte(line), &row); err != nil {
			return nil, fmt.Errorf("parsing seed line %d: %w", len(seeds)+1, err)
		}
		seeds = append(seeds, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}

	r.logger.Info("batch started", "seed", seedPath, "companies", len(seeds))

	reports := make([]Report, 0, len(seeds))
	for i, seed := range seeds {
		if err := ctx.Err(); err != nil {
			return reports, err
		}

		r.logger.Info("batch company", "index", i+1, "total", len(seeds),
			"name", seed.CompanyName, "website", seed.CompanyWebsiteURL)

		companyID, err := r.EnsureCompany(ctx, seed.CompanyName, seed.CompanyWebsiteURL)
		if err != nil {
			r.logger.Warn("company upsert failed, skipping", "name", seed.CompanyName, "error", err)
			continue
		}

		reports = append(reports, r.RunCompany(ctx, companyID))
	}

	r.logger.Info("batch done", "companies", len(reports))
	return reports, nil
}
