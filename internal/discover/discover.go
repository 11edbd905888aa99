// Package discover builds a company's source queue: deterministic well-known
// paths first, then same-domain links crawled from the homepage, then
// optional model-proposed URLs. Earlier tiers win on URL collisions.
package discover

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"

	"scout/internal/normalize"
	"scout/internal/storage"
)

const (
	userAgent      = "ScoutBot/0.1 (+evidence-first; contact: internal)"
	defaultTimeout = 20 * time.Second
	maxCrawlLinks  = 30
	maxAIProposals = 12
	maxBodyBytes   = 10 << 20
)

var pathKeywords = regexp.MustCompile(`(?i)(about|team|company|press|news|blog|careers|investor|funding)`)

var aboutPaths = []string{"/about", "/team", "/company", "/careers"}
var newsPaths = []string{"/press", "/news", "/blog"}

// Candidate is one proposed source URL with its provenance-derived type.
type Candidate struct {
	URL        string
	SourceType string
}

// Stats summarizes one discovery run.
type Stats struct {
	Deterministic int
	Crawled       int
	AI            int
	Queued        int
}

// URLProposer generates model-suggested URLs; nil disables the AI tier.
type URLProposer interface {
	GenerateJSON(ctx context.Context, prompt string, maxTokens int) (json.RawMessage, error)
}

// Discoverer queues candidate source pages for companies.
type Discoverer struct {
	store    *storage.Store
	logger   *slog.Logger
	client   *http.Client
	proposer URLProposer
}

// New creates a Discoverer. proposer may be nil.
func New(store *storage.Store, logger *slog.Logger, proposer URLProposer) *Discoverer {
	return &Discoverer{
		store:    store,
		logger:   logger,
		client:   &http.Client{Timeout: defaultTimeout},
		proposer: proposer,
	}
}

// Discover assembles and queues candidate URLs for one company. The homepage
// crawl and the AI tier are best-effort; only company lookup and queue
// writes can fail the run.
func (d *Discoverer) Discover(ctx context.Context, companyID string) (Stats, error) {
	company, err := d.store.GetCompany(ctx, companyID)
	if err != nil {
		return Stats{}, err
	}

	domain := normalize.Domain(company.Domain)
	if domain == "" {
		domain = normalize.Domain(company.Website)
	}
	if domain == "" {
		return Stats{}, fmt.Errorf("company %s has no usable domain", companyID)
	}

	base := CanonicalURL(company.Website)
	if base == "" {
		base = "https://" + domain
	}

	det := deterministicPaths(base)

	var crawled []Candidate
	if homepage := d.fetchHomepage(ctx, base); homepage != "" {
		for _, u := range crawlLinks(homepage, base, domain, maxCrawlLinks) {
			crawled = append(crawled, Candidate{URL: u, SourceType: "website"})
		}
	}

	ai := d.proposeURLs(ctx, company.Name, domain)

	// Merge with priority dedupe: deterministic beats crawled beats AI.
	var merged []Candidate
	seen := map[string]bool{}
	for _, tier := range [][]Candidate{det, crawled, ai} {
		for _, c := range tier {
			u := CanonicalURL(c.URL)
			if u == "" || seen[u] {
				continue
			}
			seen[u] = true
			merged = append(merged, Candidate{URL: u, SourceType: c.SourceType})
		}
	}

	stats := Stats{Deterministic: len(det), Crawled: len(crawled), AI: len(ai)}
	for _, c := range merged {
		inserted, err := d.store.QueueSource(ctx, companyID, c.URL, c.SourceType, "")
		if err != nil {
			return stats, err
		}
		if inserted {
			stats.Queued++
		}
	}

	d.logger.Info("discovery finished", "company", company.Name, "domain", domain,
		"deterministic", stats.Deterministic, "crawled", stats.Crawled, "ai", stats.AI, "queued", stats.Queued)
	return stats, nil
}

// deterministicPaths returns the well-known pages every company site is
// probed for, independent of what the homepage links to.
func deterministicPaths(base string) []Candidate {
	out := make([]Candidate, 0, len(aboutPaths)+len(newsPaths))
	for _, p := range aboutPaths {
		out = append(out, Candidate{URL: CanonicalURL(joinPath(base, p)), SourceType: "about"})
	}
	for _, p := range newsPaths {
		out = append(out, Candidate{URL: CanonicalURL(joinPath(base, p)), SourceType: "news"})
	}
	return out
}

func joinPath(base, path string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(path)
	if err != nil {
		return ""
	}
	return baseURL.ResolveReference(ref).String()
}

func (d *Discoverer) fetchHomepage(ctx context.Context, base string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.Info("homepage unreachable", "base", base, "error", err)
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		d.logger.Info("homepage not fetchable", "base", base, "status", resp.StatusCode)
		return ""
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return ""
	}
	return string(body)
}

// crawlLinks extracts same-domain anchors whose path mentions an
// intelligence-relevant keyword, in document order, deduped, capped at max.
func crawlLinks(homepageHTML, base, domain string, max int) []string {
	doc, err := html.Parse(strings.NewReader(homepageHTML))
	if err != nil {
		return nil
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil
	}

	var found []string
	seen := map[string]bool{}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if len(found) >= max {
			return
		}
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				href := strings.TrimSpace(attr.Val)
				if href == "" || strings.HasPrefix(href, "#") ||
					strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "tel:") {
					break
				}

				ref, err := url.Parse(href)
				if err != nil {
					break
				}
				abs := CanonicalURL(baseURL.ResolveReference(ref).String())
				if abs == "" || seen[abs] || !sameDomain(abs, domain) {
					break
				}
				if parsed, err := url.Parse(abs); err != nil || !pathKeywords.MatchString(parsed.Path) {
					break
				}

				seen[abs] = true
				found = append(found, abs)
				break
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return found
}

// proposeURLs asks the model for additional same-domain pages. Any failure
// degrades to an empty tier.
func (d *Discoverer) proposeURLs(ctx context.Context, companyName, domain string) []Candidate {
	if d.proposer == nil {
		return nil
	}

	prompt := fmt.Sprintf(`You are helping discover the best pages for company intelligence.
Company: %s
Domain: %s

Return STRICT JSON:
{
  "urls": [
    {"url": "https://%s/about", "why": "...", "category": "founders_team|funding|news|commercial"}
  ]
}

Rules:
- Only return URLs that belong to the same domain: %s
- Prefer: about/team, press/news/blog, funding/investors, product/solutions
- Provide 8-12 URLs max.`, companyName, domain, domain, domain)

	raw, err := d.proposer.GenerateJSON(ctx, prompt, 600)
	if err != nil {
		d.logger.Info("url proposal unavailable", "domain", domain, "error", err)
		return nil
	}

	var payload struct {
		URLs []struct {
			URL string `json:"url"`
		} `json:"urls"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		d.logger.Info("url proposal malformed", "domain", domain, "error", err)
		return nil
	}

	var out []Candidate
	seen := map[string]bool{}
	for _, item := range payload.URLs {
		u := CanonicalURL(item.URL)
		if u == "" || seen[u] || !sameDomain(u, domain) {
			continue
		}
		seen[u] = true
		out = append(out, Candidate{URL: u, SourceType: "ai_discovered"})
		if len(out) >= maxAIProposals {
			break
		}
	}
	return out
}
