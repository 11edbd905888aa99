package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// QueueSource records a discovered URL for later fetching. Duplicate
// (company_id, url) pairs are ignored; returns true when a new row was inserted.
func (s *Store) QueueSource(ctx context.Context, companyID, url, sourceType, discoveryQuery string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO sources (source_id, company_id, url, source_type, discovery_query)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(company_id, url) DO NOTHING`,
		uuid.New().String(), companyID, url, sourceType, discoveryQuery)
	if err != nil {
		return false, fmt.Errorf("queueing source: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// SourceContentHash returns the stored content hash for (companyID, url).
// ErrNotFound when the source is unknown; empty string when never fetched.
func (s *Store) SourceContentHash(ctx context.Context, companyID, url string) (string, error) {
	var hash sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT content_hash FROM sources WHERE company_id = ? AND url = ?",
		companyID, url).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return hash.String, nil
}

// StoreFetchedSource upserts a fetched source's clean text and content hash,
// stamping fetched_at.
func (s *Store) StoreFetchedSource(ctx context.Context, companyID, url, sourceType, contentHash, cleanText string) error {
	now := FormatTime(time.Now())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sources (source_id, company_id, url, source_type, fetched_at, content_hash, clean_text)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(company_id, url) DO UPDATE SET
			source_type = excluded.source_type,
			fetched_at = excluded.fetched_at,
			content_hash = excluded.content_hash,
			clean_text = excluded.clean_text`,
		uuid.New().String(), companyID, url, sourceType, now, contentHash, cleanText)
	if err != nil {
		return fmt.Errorf("storing fetched source: %w", err)
	}
	return nil
}

// MarkSourceAttempted stamps fetched_at on a source that could not be fetched,
// so the pending queue does not retry it forever.
func (s *Store) MarkSourceAttempted(ctx context.Context, sourceID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE sources SET fetched_at = ? WHERE source_id = ?",
		FormatTime(time.Now()), sourceID)
	return err
}

// PendingSources returns sources queued for a company that have no stored
// text yet, ordered by type then URL for stable batches.
func (s *Store) PendingSources(ctx context.Context, companyID string, limit int) ([]Source, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_id, company_id, url, source_type, discovery_query
		FROM sources
		WHERE company_id = ? AND (clean_text IS NULL OR content_hash IS NULL) AND fetched_at IS NULL
		ORDER BY source_type, url
		LIMIT ?`, companyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Source
	for rows.Next() {
		var src Source
		if err := rows.Scan(&src.ID, &src.CompanyID, &src.URL, &src.SourceType, &src.DiscoveryQuery); err != nil {
			return nil, err
		}
		results = append(results, src)
	}
	return results, rows.Err()
}

// FetchedSources returns sources with stored text of at least minChars,
// restricted to the given source types, newest fetch first.
func (s *Store) FetchedSources(ctx context.Context, companyID string, types []string, minChars int) ([]Source, error) {
	if len(types) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat(",?", len(types)-1)
	query := `
		SELECT source_id, company_id, url, source_type, content_hash, clean_text
		FROM sources
		WHERE company_id = ?
		  AND clean_text IS NOT NULL
		  AND LENGTH(clean_text) >= ?
		  AND source_type IN (?` + placeholders + `)
		ORDER BY fetched_at DESC`

	args := make([]any, 0, len(types)+2)
	args = append(args, companyID, minChars)
	for _, t := range types {
		args = append(args, t)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Source
	for rows.Next() {
		var src Source
		var hash, text sql.NullString
		if err := rows.Scan(&src.ID, &src.CompanyID, &src.URL, &src.SourceType, &hash, &text); err != nil {
			return nil, err
		}
		src.ContentHash = hash.String
		src.CleanText = text.String
		results = append(results, src)
	}
	return results, rows.Err()
}
