package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ChangeWatermark returns the latest detected_at recorded for a company, or
// Epoch when the change log is empty. Rows at or before the watermark have
// already been considered by a previous detection run.
func (s *Store) ChangeWatermark(ctx context.Context, companyID string) (string, error) {
	var watermark string
	err := s.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(detected_at), ?) FROM changes WHERE company_id = ?",
		Epoch, companyID).Scan(&watermark)
	if err != nil {
		return "", fmt.Errorf("reading change watermark: %w", err)
	}
	return watermark, nil
}

// InsertChange appends a change record. A change identical in (company_id,
// change_type, object_type, object_id, details) to an existing one is a
// no-op; returns true when a new row was inserted.
func (s *Store) InsertChange(ctx context.Context, ch Change) (bool, error) {
	detectedAt := ch.DetectedAt
	if detectedAt == "" {
		detectedAt = FormatTime(time.Now())
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO changes (change_id, company_id, change_type, object_type, object_id, source_url, details, detected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(company_id, change_type, object_type, object_id, details) DO NOTHING`,
		uuid.New().String(), ch.CompanyID, ch.ChangeType, ch.ObjectType, ch.ObjectID,
		ch.SourceURL, ch.Details, detectedAt)
	if err != nil {
		return false, fmt.Errorf("inserting change: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// LastChangeDetails returns the details of the most recent change of the
// given type for an object. ErrNotFound when none has been recorded.
func (s *Store) LastChangeDetails(ctx context.Context, companyID, changeType, objectType, objectID string) (string, error) {
	var details string
	err := s.db.QueryRowContext(ctx, `
		SELECT details FROM changes
		WHERE company_id = ? AND change_type = ? AND object_type = ? AND object_id = ?
		ORDER BY detected_at DESC
		LIMIT 1`, companyID, changeType, objectType, objectID).Scan(&details)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return details, nil
}

// ListChanges returns a company's change log, newest first.
func (s *Store) ListChanges(ctx context.Context, companyID string, limit int) ([]Change, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT change_id, company_id, change_type, object_type, object_id, source_url, details, detected_at
		FROM changes WHERE company_id = ?
		ORDER BY detected_at DESC
		LIMIT ?`, companyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Change
	for rows.Next() {
		var ch Change
		if err := rows.Scan(&ch.ID, &ch.CompanyID, &ch.ChangeType, &ch.ObjectType, &ch.ObjectID,
			&ch.SourceURL, &ch.Details, &ch.DetectedAt); err != nil {
			return nil, err
		}
		results = append(results, ch)
	}
	return results, rows.Err()
}
