package websearch

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"scout/internal/storage"
)

func newTestSearcher(t *testing.T, apiKey string) (*Searcher, *storage.Store, string) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	companyID, err := store.UpsertCompany(context.Background(), "Acme", "https://acme.example", "acme.example")
	if err != nil {
		t.Fatalf("seeding company: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store, logger, apiKey), store, companyID
}

func serpReply(urls ...string) string {
	type entry struct {
		Link  string `json:"link"`
		Title string `json:"title"`
	}
	var organic []entry
	for _, u := range urls {
		organic = append(organic, entry{Link: u, Title: "t"})
	}
	b, _ := json.Marshal(map[string]any{"organic_results": organic})
	return string(b)
}

func TestSearchCompanyQueuesAllowlistedResults(t *testing.T) {
	ctx := context.Background()

	var queries atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries.Add(1)
		if got := r.URL.Query().Get("engine"); got != "google" {
			t.Errorf("engine = %q", got)
		}
		if got := r.URL.Query().Get("api_key"); got != "k" {
			t.Errorf("api_key = %q", got)
		}
		io.WriteString(w, serpReply(
			"https://techcrunch.com/2026/01/acme-raises/",
			"https://acme.example/press",
			"https://randomblog.example/acme",
		))
	}))
	defer srv.Close()

	s, store, companyID := newTestSearcher(t, "k")
	s.WithBaseURL(srv.URL)

	stats, err := s.SearchCompany(ctx, companyID)
	if err != nil {
		t.Fatalf("SearchCompany: %v", err)
	}
	if stats.Queries != len(queryTemplates) {
		t.Errorf("queries = %d, want %d", stats.Queries, len(queryTemplates))
	}
	// Each query returns the same three results: one allowlisted, one on the
	// company's own domain, one unknown outlet. Only the first is queued, once.
	if stats.Inserted != 1 {
		t.Errorf("inserted = %d, want 1", stats.Inserted)
	}

	pending, err := store.PendingSources(ctx, companyID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending))
	}
	src := pending[0]
	if src.URL != "https://techcrunch.com/2026/01/acme-raises" {
		t.Errorf("url = %q (trailing slash should be stripped)", src.URL)
	}
	if src.SourceType != "web_search" || src.DiscoveryQuery != "Acme funding round" {
		t.Errorf("source = %+v", src)
	}
}

func TestSearchCompanyWithoutKeyIsNoOp(t *testing.T) {
	ctx := context.Background()
	s, store, companyID := newTestSearcher(t, "")

	stats, err := s.SearchCompany(ctx, companyID)
	if err != nil {
		t.Fatalf("SearchCompany: %v", err)
	}
	if stats != (Stats{}) {
		t.Errorf("stats = %+v, want zero", stats)
	}

	pending, _ := store.PendingSources(ctx, companyID, 10)
	if len(pending) != 0 {
		t.Errorf("pending = %d, want 0", len(pending))
	}
}

func TestSearchCompanyToleratesFailingQueries(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s, _, companyID := newTestSearcher(t, "k")
	s.WithBaseURL(srv.URL)

	stats, err := s.SearchCompany(ctx, companyID)
	if err != nil {
		t.Fatalf("failing queries must not fail the run: %v", err)
	}
	if stats.Queries != len(queryTemplates) || stats.Inserted != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestDomainAllowed(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://techcrunch.com/story", true},
		{"https://www.reuters.com/markets", true},
		{"https://fakereuters.com/markets", false},
		{"https://blog.acme.example/post", false},
	}
	for _, tt := range tests {
		if got := domainAllowed(tt.url); got != tt.want {
			t.Errorf("domainAllowed(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestCanonicalize(t *testing.T) {
	got := canonicalize("https://TechCrunch.com/2026/acme/?utm_source=x#body")
	if got != "https://techcrunch.com/2026/acme" {
		t.Errorf("canonicalize = %q", got)
	}
	if canonicalize("not a url") != "" {
		t.Error("junk input should canonicalize to empty")
	}
}
