package discover

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"scout/internal/storage"
)

func TestCanonicalURL(t *testing.T) {
	tests := []struct{ in, want string }{
		{"acme.example", "https://acme.example/"},
		{"https://www.acme.example/about/", "https://acme.example/about"},
		{"http://ACME.example/About", "http://acme.example/About"},
		{"https://acme.example/news#latest", "https://acme.example/news"},
		{"https://acme.example/search?q=x", "https://acme.example/search?q=x"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := CanonicalURL(tt.in); got != tt.want {
			t.Errorf("CanonicalURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSameDomain(t *testing.T) {
	if !sameDomain("https://acme.example/about", "acme.example") {
		t.Error("exact host should match")
	}
	if !sameDomain("https://blog.acme.example/post", "acme.example") {
		t.Error("subdomain should match")
	}
	if sameDomain("https://evil.example/acme.example", "acme.example") {
		t.Error("foreign host must not match")
	}
	if sameDomain("https://notacme.example/", "acme.example") {
		t.Error("suffix-overlapping host must not match")
	}
}

func TestCrawlLinks(t *testing.T) {
	page := `<html><body>
		<a href="/about">About</a>
		<a href="/team/">Team</a>
		<a href="/pricing">Pricing</a>
		<a href="https://twitter.com/acme">Twitter</a>
		<a href="#top">Top</a>
		<a href="mailto:hi@acme.example">Mail</a>
		<a href="/about">About again</a>
		<a href="/news/2026/funding-announcement">Funding</a>
	</body></html>`

	links := crawlLinks(page, "https://acme.example/", "acme.example", maxCrawlLinks)
	want := []string{
		"https://acme.example/about",
		"https://acme.example/team",
		"https://acme.example/news/2026/funding-announcement",
	}
	if len(links) != len(want) {
		t.Fatalf("links = %v, want %v", links, want)
	}
	for i := range want {
		if links[i] != want[i] {
			t.Errorf("links[%d] = %q, want %q", i, links[i], want[i])
		}
	}
}

func TestCrawlLinksCap(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("<html><body>")
	for i := 0; i < 50; i++ {
		fmt.Fprintf(&sb, `<a href="/news/item-%d">n</a>`, i)
	}
	sb.WriteString("</body></html>")

	links := crawlLinks(sb.String(), "https://acme.example/", "acme.example", maxCrawlLinks)
	if len(links) != maxCrawlLinks {
		t.Errorf("links = %d, want cap %d", len(links), maxCrawlLinks)
	}
}

func TestDeterministicPaths(t *testing.T) {
	paths := deterministicPaths("https://acme.example/")
	if len(paths) != 7 {
		t.Fatalf("paths = %d, want 7", len(paths))
	}
	byType := map[string]int{}
	for _, c := range paths {
		byType[c.SourceType]++
		if !strings.HasPrefix(c.URL, "https://acme.example/") {
			t.Errorf("unexpected url %q", c.URL)
		}
	}
	if byType["about"] != 4 || byType["news"] != 3 {
		t.Errorf("type counts = %v", byType)
	}
}

type fakeProposer struct {
	reply json.RawMessage
	err   error
}

func (f *fakeProposer) GenerateJSON(ctx context.Context, prompt string, maxTokens int) (json.RawMessage, error) {
	return f.reply, f.err
}

func newTestStore(t *testing.T) (*storage.Store, string) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, ""
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDiscoverQueuesTiersWithPriority(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html><body><a href="/press/launch">Launch</a></body></html>`)
	}))
	defer srv.Close()

	host := strings.TrimPrefix(srv.URL, "http://")
	companyID, err := store.UpsertCompany(ctx, "Acme", srv.URL, host)
	if err != nil {
		t.Fatal(err)
	}

	// The proposer repeats /about (already deterministic), adds one new
	// same-domain page, and tries to smuggle in a foreign domain.
	proposer := &fakeProposer{reply: json.RawMessage(fmt.Sprintf(`{"urls": [
		{"url": "http://%s/about", "why": "team page", "category": "founders_team"},
		{"url": "http://%s/investors", "why": "funding", "category": "funding"},
		{"url": "https://crunchbase.com/org/acme", "why": "funding", "category": "funding"}
	]}`, host, host))}

	stats, err := New(store, discardLogger(), proposer).Discover(ctx, companyID)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if stats.Deterministic != 7 || stats.Crawled != 1 || stats.AI != 2 {
		t.Errorf("stats = %+v", stats)
	}
	// 7 deterministic + 1 crawled + 1 new AI page; the duplicated /about is
	// queued once with its deterministic type.
	if stats.Queued != 9 {
		t.Errorf("queued = %d, want 9", stats.Queued)
	}

	pending, err := store.PendingSources(ctx, companyID, 50)
	if err != nil {
		t.Fatal(err)
	}
	byURL := map[string]string{}
	for _, src := range pending {
		byURL[src.URL] = src.SourceType
	}
	if typ, ok := byURL["http://"+host+"/about"]; !ok || typ != "about" {
		t.Errorf("/about type = %q, want deterministic 'about'", typ)
	}
	if typ := byURL["http://"+host+"/investors"]; typ != "ai_discovered" {
		t.Errorf("/investors type = %q", typ)
	}
	for u := range byURL {
		if strings.Contains(u, "crunchbase") {
			t.Errorf("foreign domain queued: %s", u)
		}
	}
}

func TestDiscoverSurvivesUnreachableHomepageAndProposer(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	companyID, err := store.UpsertCompany(ctx, "Acme", "https://unreachable.invalid", "unreachable.invalid")
	if err != nil {
		t.Fatal(err)
	}

	proposer := &fakeProposer{err: fmt.Errorf("model offline")}
	stats, err := New(store, discardLogger(), proposer).Discover(ctx, companyID)
	if err != nil {
		t.Fatalf("Discover should tolerate unreachable tiers: %v", err)
	}
	if stats.Deterministic != 7 || stats.Crawled != 0 || stats.AI != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.Queued != 7 {
		t.Errorf("queued = %d, want 7", stats.Queued)
	}
}

func TestDiscoverMissingDomainFails(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	companyID, err := store.UpsertCompany(ctx, "Nameless", "", "")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := New(store, discardLogger(), nil).Discover(ctx, companyID); err == nil {
		t.Fatal("expected error for company without a domain")
	}
}
