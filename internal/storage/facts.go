package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PersonUpsert is the write model for a person sighting. LinkedInURL nil
// means "not seen this time" and never erases a previously stored link.
type PersonUpsert struct {
	CompanyID      string
	Name           string
	NormalizedName string
	Role           string
	LinkedInURL    *string
}

// EventUpsert is the write model for an event sighting. Date is "" when the
// source text carries no date.
type EventUpsert struct {
	CompanyID string
	Type      string
	Date      string
	Title     string
	TitleHash string
	Summary   string
}

// UpsertPersonTx inserts or updates a person on the (company_id,
// normalized_name) natural key. Role is always overwritten with the latest
// sighting; linkedin_url only when the new value is non-null.
func (s *Store) UpsertPersonTx(ctx context.Context, tx *sql.Tx, p PersonUpsert) (string, error) {
	now := FormatTime(time.Now())
	var linkedin sql.NullString
	if p.LinkedInURL != nil {
		linkedin = sql.NullString{String: *p.LinkedInURL, Valid: true}
	}

	var id string
	err := tx.QueryRowContext(ctx, `
		INSERT INTO people (person_id, company_id, name, normalized_name, role, linkedin_url, needs_review, is_final, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, 0, ?, ?)
		ON CONFLICT(company_id, normalized_name) DO UPDATE SET
			role = excluded.role,
			linkedin_url = COALESCE(excluded.linkedin_url, people.linkedin_url),
			updated_at = excluded.updated_at
		RETURNING person_id`,
		uuid.New().String(), p.CompanyID, p.Name, p.NormalizedName, p.Role, linkedin, now, now,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("upserting person: %w", err)
	}
	return id, nil
}

// UpsertEventTx inserts or updates an event on the (company_id, type, date,
// title_hash) natural key. Only the summary is overwritten on conflict.
func (s *Store) UpsertEventTx(ctx context.Context, tx *sql.Tx, e EventUpsert) (string, error) {
	now := FormatTime(time.Now())

	var id string
	err := tx.QueryRowContext(ctx, `
		INSERT INTO events (event_id, company_id, type, date, title, title_hash, summary, needs_review, is_final, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, 0, ?, ?)
		ON CONFLICT(company_id, type, date, title_hash) DO UPDATE SET
			summary = excluded.summary,
			updated_at = excluded.updated_at
		RETURNING event_id`,
		uuid.New().String(), e.CompanyID, e.Type, e.Date, e.Title, e.TitleHash, e.Summary, now, now,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("upserting event: %w", err)
	}
	return id, nil
}

// InsertEvidenceTx appends one evidence row. Evidence is never updated or
// deleted afterward.
func (s *Store) InsertEvidenceTx(ctx context.Context, tx *sql.Tx, ev Evidence) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO evidence (evidence_id, object_type, object_id, field, value, source_id, url, quote, confidence, extractor_version, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), ev.ObjectType, ev.ObjectID, ev.Field, ev.Value,
		ev.SourceID, ev.URL, ev.Quote, ev.Confidence, ev.ExtractorVersion, FormatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("inserting evidence: %w", err)
	}
	return nil
}

// ListPeople returns a company's people ordered by name.
func (s *Store) ListPeople(ctx context.Context, companyID string) ([]Person, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT person_id, company_id, name, normalized_name, role, linkedin_url, needs_review, is_final, created_at, updated_at
		FROM people WHERE company_id = ? ORDER BY name ASC`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPeople(rows)
}

// PeopleCreatedAfter returns people created strictly after the watermark.
func (s *Store) PeopleCreatedAfter(ctx context.Context, companyID, watermark string) ([]Person, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT person_id, company_id, name, normalized_name, role, linkedin_url, needs_review, is_final, created_at, updated_at
		FROM people WHERE company_id = ? AND created_at > ?`, companyID, watermark)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPeople(rows)
}

// PeopleUpdatedAfter returns people updated strictly after the watermark.
func (s *Store) PeopleUpdatedAfter(ctx context.Context, companyID, watermark string) ([]Person, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT person_id, company_id, name, normalized_name, role, linkedin_url, needs_review, is_final, created_at, updated_at
		FROM people WHERE company_id = ? AND updated_at > ?`, companyID, watermark)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPeople(rows)
}

func scanPeople(rows *sql.Rows) ([]Person, error) {
	var results []Person
	for rows.Next() {
		var p Person
		var linkedin sql.NullString
		if err := rows.Scan(&p.ID, &p.CompanyID, &p.Name, &p.NormalizedName, &p.Role,
			&linkedin, &p.NeedsReview, &p.IsFinal, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		if linkedin.Valid {
			p.LinkedInURL = &linkedin.String
		}
		results = append(results, p)
	}
	return results, rows.Err()
}

// ListEvents returns a company's events, newest creation first.
func (s *Store) ListEvents(ctx context.Context, companyID string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, company_id, type, date, title, title_hash, summary, needs_review, is_final, created_at, updated_at
		FROM events WHERE company_id = ? ORDER BY created_at DESC`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

// EventsCreatedAfter returns events created strictly after the watermark.
func (s *Store) EventsCreatedAfter(ctx context.Context, companyID, watermark string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, company_id, type, date, title, title_hash, summary, needs_review, is_final, created_at, updated_at
		FROM events WHERE company_id = ? AND created_at > ?`, companyID, watermark)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	var results []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.CompanyID, &e.Type, &e.Date, &e.Title, &e.TitleHash,
			&e.Summary, &e.NeedsReview, &e.IsFinal, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		results = append(results, e)
	}
	return results, rows.Err()
}

// ListEvidence returns evidence rows for an object, newest first.
func (s *Store) ListEvidence(ctx context.Context, objectType, objectID string, limit int) ([]Evidence, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT evidence_id, object_type, object_id, field, value, source_id, url, quote, confidence, extractor_version, created_at
		FROM evidence
		WHERE object_type = ? AND object_id = ?
		ORDER BY created_at DESC
		LIMIT ?`, objectType, objectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Evidence
	for rows.Next() {
		var ev Evidence
		if err := rows.Scan(&ev.ID, &ev.ObjectType, &ev.ObjectID, &ev.Field, &ev.Value,
			&ev.SourceID, &ev.URL, &ev.Quote, &ev.Confidence, &ev.ExtractorVersion, &ev.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, ev)
	}
	return results, rows.Err()
}

// LatestEvidenceURL returns the URL of the most recent evidence row for an
// object, a heuristic proxy for the most authoritative citation.
// ErrNotFound when the object has no evidence with a URL.
func (s *Store) LatestEvidenceURL(ctx context.Context, objectType, objectID string) (string, error) {
	var url string
	err := s.db.QueryRowContext(ctx, `
		SELECT url FROM evidence
		WHERE object_type = ? AND object_id = ? AND url != ''
		ORDER BY created_at DESC
		LIMIT 1`, objectType, objectID).Scan(&url)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return url, nil
}
