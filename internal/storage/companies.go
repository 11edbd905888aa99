package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// UpsertCompany inserts a company or, when a company with the same non-empty
// domain already exists, refreshes its name and website. Returns the stored
// company id.
func (s *Store) UpsertCompany(ctx context.Context, name, website, domain string) (string, error) {
	now := FormatTime(time.Now())

	if domain != "" {
		var id string
		err := s.db.QueryRowContext(ctx,
			"SELECT company_id FROM companies WHERE domain = ?", domain).Scan(&id)
		switch {
		case err == sql.ErrNoRows:
			// fall through to insert
		case err != nil:
			return "", fmt.Errorf("looking up company by domain: %w", err)
		default:
			_, err = s.db.ExecContext(ctx,
				"UPDATE companies SET name = ?, website = ?, updated_at = ? WHERE company_id = ?",
				name, website, now, id)
			if err != nil {
				return "", fmt.Errorf("updating company: %w", err)
			}
			return id, nil
		}
	}

	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO companies (company_id, name, website, domain, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, name, website, domain, now, now)
	if err != nil {
		return "", fmt.Errorf("inserting company: %w", err)
	}
	return id, nil
}

// GetCompany returns the company with the given id.
func (s *Store) GetCompany(ctx context.Context, id string) (Company, error) {
	var c Company
	err := s.db.QueryRowContext(ctx, `
		SELECT company_id, name, website, domain, created_at, updated_at
		FROM companies WHERE company_id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.Website, &c.Domain, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return Company{}, ErrNotFound
	}
	if err != nil {
		return Company{}, err
	}
	return c, nil
}

// ListCompanies returns companies ordered by name.
func (s *Store) ListCompanies(ctx context.Context, limit int) ([]Company, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT company_id, name, website, domain, created_at, updated_at
		FROM companies ORDER BY name ASC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Company
	for rows.Next() {
		var c Company
		if err := rows.Scan(&c.ID, &c.Name, &c.Website, &c.Domain, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		results = append(results, c)
	}
	return results, rows.Err()
}
