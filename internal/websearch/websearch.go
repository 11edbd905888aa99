// Package websearch queues third-party press coverage about a company by
// running a fixed battery of news-oriented queries against a SerpAPI-backed
// search engine. Results are allowlist-filtered: only established outlets
// make it into the source queue.
package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"scout/internal/storage"
)

const (
	defaultBaseURL = "https://serpapi.com"
	userAgent      = "ScoutBot/0.1 (+evidence-first)"
	defaultTimeout = 25 * time.Second
	perQuery       = 8
)

// allowDomains is the outlet allowlist; a result whose host does not end in
// one of these is dropped regardless of relevance.
var allowDomains = []string{
	"techcrunch.com",
	"crunchbase.com",
	"prnewswire.com",
	"globenewswire.com",
	"businesswire.com",
	"reuters.com",
	"bloomberg.com",
	"forbes.com",
	"venturebeat.com",
	"ft.com",
	"wsj.com",
	"theinformation.com",
}

// queryTemplates cover the event classes triage looks for; %s is the
// company name.
var queryTemplates = []string{
	"%s funding round",
	"%s raised seed series",
	"%s partnership",
	"%s launches product",
	"%s expands to",
}

// Result is one organic search hit.
type Result struct {
	URL     string `json:"link"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// Stats summarizes one search run.
type Stats struct {
	Queries  int
	Results  int
	Inserted int
}

// Searcher queries SerpAPI and queues allowlisted results as web_search
// sources.
type Searcher struct {
	store   *storage.Store
	logger  *slog.Logger
	client  *http.Client
	apiKey  string
	baseURL string
}

// New creates a Searcher. An empty apiKey disables searching: SearchCompany
// becomes a logged no-op so batch runs work without credentials.
func New(store *storage.Store, logger *slog.Logger, apiKey string) *Searcher {
	return &Searcher{
		store:   store,
		logger:  logger,
		client:  &http.Client{Timeout: defaultTimeout},
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
	}
}

// WithBaseURL points the searcher at a different endpoint (used by tests).
func (s *Searcher) WithBaseURL(baseURL string) *Searcher {
	s.baseURL = strings.TrimRight(baseURL, "/")
	return s
}

// SearchCompany runs all query templates for one company and queues new
// allowlisted result URLs. A failing query is logged and skipped; the run
// continues with the remaining templates.
func (s *Searcher) SearchCompany(ctx context.Context, companyID string) (Stats, error) {
	if s.apiKey == "" {
		s.logger.Info("web search disabled, no API key configured")
		return Stats{}, nil
	}

	company, err := s.store.GetCompany(ctx, companyID)
	if err != nil {
		return Stats{}, err
	}

	var stats Stats
	for _, tmpl := range queryTemplates {
		query := fmt.Sprintf(tmpl, company.Name)
		stats.Queries++

		results, err := s.search(ctx, query, perQuery)
		if err != nil {
			s.logger.Warn("search query failed", "query", query, "error", err)
			continue
		}
		stats.Results += len(results)

		inserted := 0
		for _, r := range results {
			u := canonicalize(r.URL)
			if u == "" {
				continue
			}
			// The company's own site is covered by discovery; search is for
			// third-party coverage only.
			if company.Domain != "" && strings.Contains(u, company.Domain) {
				continue
			}
			if !domainAllowed(u) {
				continue
			}

			ok, err := s.store.QueueSource(ctx, companyID, u, "web_search", query)
			if err != nil {
				return stats, err
			}
			if ok {
				inserted++
			}
		}

		stats.Inserted += inserted
		s.logger.Info("search query done", "query", query, "results", len(results), "inserted", inserted)
	}

	return stats, nil
}

func (s *Searcher) search(ctx context.Context, query string, count int) ([]Result, error) {
	params := url.Values{}
	params.Set("engine", "google")
	params.Set("q", query)
	params.Set("num", strconv.Itoa(count))
	params.Set("api_key", s.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}

	var payload struct {
		OrganicResults []Result `json:"organic_results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding results: %w", err)
	}

	results := payload.OrganicResults
	if len(results) > count {
		results = results[:count]
	}

	out := results[:0]
	for _, r := range results {
		if r.URL != "" {
			out = append(out, r)
		}
	}
	return out, nil
}

// canonicalize strips query, fragment, and trailing slash, lowercasing the
// host. Search result URLs often differ only in tracking parameters.
func canonicalize(raw string) string {
	p, err := url.Parse(raw)
	if err != nil || p.Host == "" {
		return ""
	}
	p.Host = strings.ToLower(p.Host)
	p.Path = strings.TrimRight(p.Path, "/")
	p.RawQuery = ""
	p.Fragment = ""
	return p.String()
}

func domainAllowed(rawURL string) bool {
	p, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(p.Host)
	for _, d := range allowDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
