// Package fetch pulls queued source URLs, extracts their main text, and
// stores it content-hashed. Fetch failures are per-URL outcomes, never
// batch-level errors: a blocked page is recorded and skipped, not raised.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"scout/internal/normalize"
	"scout/internal/storage"
)

const (
	userAgent      = "ScoutBot/0.1 (+evidence-first; contact: internal)"
	defaultTimeout = 25 * time.Second
	maxRetries     = 2
	maxBodyBytes   = 10 << 20

	// minCleanChars guards against storing cookie walls and parked pages.
	minCleanChars = 500
)

// Outcome of one URL's fetch attempt.
const (
	StatusStored   = "stored"
	StatusNoChange = "nochange"
	StatusSkipped  = "skipped"
)

// StatusError reports a non-success HTTP status, classified so callers can
// separate permanent skips from retry-worthy conditions.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetching %s: HTTP %d", e.URL, e.Status)
}

// Blocked reports an anti-bot, auth, or paywall response.
func (e *StatusError) Blocked() bool {
	return e.Status == http.StatusUnauthorized ||
		e.Status == http.StatusPaymentRequired ||
		e.Status == http.StatusForbidden
}

func (e *StatusError) NotFound() bool {
	return e.Status == http.StatusNotFound || e.Status == http.StatusGone
}

func (e *StatusError) RateLimited() bool {
	return e.Status == http.StatusTooManyRequests
}

// Result is the per-URL outcome of a fetch pass.
type Result struct {
	URL         string
	Status      string
	Reason      string
	ContentHash string
}

// Fetcher downloads queued sources politely: one shared rate limiter across
// all requests, bounded retries, and a hard response size cap.
type Fetcher struct {
	store   *storage.Store
	logger  *slog.Logger
	client  *http.Client
	limiter *rate.Limiter
}

// New creates a Fetcher. requestsPerSecond bounds outbound request rate
// across all hosts; zero or negative selects 1 rps.
func New(store *storage.Store, logger *slog.Logger, requestsPerSecond float64) *Fetcher {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	return &Fetcher{
		store:   store,
		logger:  logger,
		client:  &http.Client{Timeout: defaultTimeout},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}
}

// FetchPending processes up to limit queued sources for a company. Every URL
// yields a Result; the returned error covers storage problems only.
func (f *Fetcher) FetchPending(ctx context.Context, companyID string, limit int) ([]Result, error) {
	pending, err := f.store.PendingSources(ctx, companyID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing pending sources: %w", err)
	}

	results := make([]Result, 0, len(pending))
	for _, src := range pending {
		res, err := f.FetchOne(ctx, companyID, src)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// FetchOne downloads, cleans, and stores a single source. Unfetchable or
// junk pages are stamped as attempted so the pending queue moves on.
func (f *Fetcher) FetchOne(ctx context.Context, companyID string, src storage.Source) (Result, error) {
	body, contentType, err := f.get(ctx, src.URL)
	if err != nil {
		reason := classifyFetchError(err)
		f.logger.Info("skipping source", "url", src.URL, "reason", reason, "error", err)
		if err := f.store.MarkSourceAttempted(ctx, src.ID); err != nil {
			return Result{}, err
		}
		return Result{URL: src.URL, Status: StatusSkipped, Reason: reason}, nil
	}

	var text string
	if isPDF(contentType, src.URL) {
		text, err = pdfText(body)
		if err != nil {
			f.logger.Info("skipping source", "url", src.URL, "reason", "pdf_unreadable", "error", err)
			if err := f.store.MarkSourceAttempted(ctx, src.ID); err != nil {
				return Result{}, err
			}
			return Result{URL: src.URL, Status: StatusSkipped, Reason: "pdf_unreadable"}, nil
		}
	} else {
		text = MainText(string(body))
	}

	if len(text) < minCleanChars {
		f.logger.Info("skipping source", "url", src.URL, "reason", "too_short", "chars", len(text))
		if err := f.store.MarkSourceAttempted(ctx, src.ID); err != nil {
			return Result{}, err
		}
		return Result{URL: src.URL, Status: StatusSkipped, Reason: "too_short"}, nil
	}

	hash := normalize.SHA256Hex(text)

	oldHash, err := f.store.SourceContentHash(ctx, companyID, src.URL)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return Result{}, err
	}
	if oldHash == hash {
		f.logger.Info("source unchanged", "url", src.URL)
		return Result{URL: src.URL, Status: StatusNoChange, ContentHash: hash}, nil
	}

	if err := f.store.StoreFetchedSource(ctx, companyID, src.URL, src.SourceType, hash, text); err != nil {
		return Result{}, err
	}
	f.logger.Info("source stored", "url", src.URL, "hash", hash[:10], "chars", len(text))
	return Result{URL: src.URL, Status: StatusStored, ContentHash: hash}, nil
}

// get performs the HTTP request with rate limiting and bounded retries.
// Rate-limit responses and transport errors are retried with backoff; all
// other non-2xx statuses fail immediately as a *StatusError.
func (f *Fetcher) get(ctx context.Context, url string) ([]byte, string, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, "", err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, "", fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")

		resp, err := f.client.Do(req)
		if err != nil {
			lastErr = err
			if attempt < maxRetries {
				sleepBackoff(ctx, attempt)
				continue
			}
			return nil, "", fmt.Errorf("executing request: %w", lastErr)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			lastErr = &StatusError{URL: url, Status: resp.StatusCode}
			if attempt < maxRetries {
				sleepBackoff(ctx, attempt)
				continue
			}
			return nil, "", lastErr
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			resp.Body.Close()
			return nil, "", &StatusError{URL: url, Status: resp.StatusCode}
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		contentType := resp.Header.Get("Content-Type")
		resp.Body.Close()
		if err != nil {
			return nil, "", fmt.Errorf("reading response body: %w", err)
		}
		return body, contentType, nil
	}
	return nil, "", lastErr
}

func sleepBackoff(ctx context.Context, attempt int) {
	backoff := time.Duration(float64(time.Second) * math.Pow(2, float64(attempt)))
	select {
	case <-ctx.Done():
	case <-time.After(backoff):
	}
}

func classifyFetchError(err error) string {
	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.Blocked():
			return "blocked"
		case se.NotFound():
			return "not_found"
		case se.RateLimited():
			return "rate_limited"
		}
	}
	return "fetch_failed"
}

func isPDF(contentType, url string) bool {
	if strings.Contains(strings.ToLower(contentType), "application/pdf") {
		return true
	}
	return strings.HasSuffix(strings.ToLower(url), ".pdf")
}
