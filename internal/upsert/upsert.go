// Package upsert persists validated extraction payloads. Writes are keyed on
// content-derived natural keys so replaying the same source is a no-op for
// facts, while evidence accumulates append-only.
package upsert

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"scout/internal/extract"
	"scout/internal/normalize"
	"scout/internal/storage"
)

// Counts summarizes one persisted payload for logging.
type Counts struct {
	PeopleUpserted   int
	EventsUpserted   int
	FundingUpserted  int
	EvidenceInserted int
}

// Engine writes validated payloads to the store.
type Engine struct {
	store *storage.Store
}

// New creates an Engine over the given store.
func New(store *storage.Store) *Engine {
	return &Engine{store: store}
}

// Persist writes one validated payload inside a single transaction: either
// the whole payload lands or none of it does. Candidates missing required
// fields are skipped silently; validation has already done the rejecting.
func (e *Engine) Persist(ctx context.Context, companyID, sourceID, url string, accepted *extract.Payload) (Counts, error) {
	var counts Counts

	version := accepted.ExtractorVersion
	if version == "" {
		version = "unknown"
	}

	err := e.store.InTx(ctx, func(tx *sql.Tx) error {
		for _, p := range accepted.People {
			name := strings.TrimSpace(p.Name)
			role := strings.TrimSpace(p.Role)
			quote := strings.TrimSpace(p.EvidenceQuote)
			if name == "" || quote == "" {
				continue
			}

			personID, err := e.store.UpsertPersonTx(ctx, tx, storage.PersonUpsert{
				CompanyID:      companyID,
				Name:           name,
				NormalizedName: normalize.PersonName(name),
				Role:           role,
				LinkedInURL:    p.LinkedInURL,
			})
			if err != nil {
				return err
			}
			counts.PeopleUpserted++

			if err := e.store.InsertEvidenceTx(ctx, tx, storage.Evidence{
				ObjectType:       "person",
				ObjectID:         personID,
				Field:            "person.role",
				Value:            role,
				SourceID:         sourceID,
				URL:              url,
				Quote:            quote,
				Confidence:       p.Confidence,
				ExtractorVersion: version,
			}); err != nil {
				return err
			}
			counts.EvidenceInserted++
		}

		for _, ev := range accepted.Events {
			etype := strings.TrimSpace(ev.Type)
			title := strings.TrimSpace(ev.Title)
			summary := strings.TrimSpace(ev.Summary)
			quote := strings.TrimSpace(ev.EvidenceQuote)
			if etype == "" || title == "" || quote == "" {
				continue
			}

			eventID, err := e.store.UpsertEventTx(ctx, tx, storage.EventUpsert{
				CompanyID: companyID,
				Type:      etype,
				Date:      ev.Date,
				Title:     title,
				TitleHash: normalize.TitleHash(title),
				Summary:   summary,
			})
			if err != nil {
				return err
			}
			counts.EventsUpserted++

			if err := e.store.InsertEvidenceTx(ctx, tx, storage.Evidence{
				ObjectType:       "event",
				ObjectID:         eventID,
				Field:            "event.summary",
				Value:            summary,
				SourceID:         sourceID,
				URL:              url,
				Quote:            quote,
				Confidence:       ev.Confidence,
				ExtractorVersion: version,
			}); err != nil {
				return err
			}
			counts.EvidenceInserted++
		}

		// Funding rounds fold into the events table as type=funding; a
		// dedicated funding_rounds table is a later migration.
		for _, fr := range accepted.FundingRounds {
			roundType := strings.TrimSpace(fr.RoundType)
			quote := strings.TrimSpace(fr.EvidenceQuote)
			if roundType == "" || quote == "" {
				continue
			}

			title := strings.ToUpper(roundType) + " round"
			summary := fmt.Sprintf("Round=%s; amount=%s %s; investors=%s",
				roundType, fr.Amount, fr.Currency, strings.Join(fr.Investors, ", "))

			eventID, err := e.store.UpsertEventTx(ctx, tx, storage.EventUpsert{
				CompanyID: companyID,
				Type:      "funding",
				Date:      fr.Date,
				Title:     title,
				TitleHash: normalize.TitleHash(title),
				Summary:   summary,
			})
			if err != nil {
				return err
			}
			counts.FundingUpserted++

			if err := e.store.InsertEvidenceTx(ctx, tx, storage.Evidence{
				ObjectType:       "event",
				ObjectID:         eventID,
				Field:            "funding.round",
				Value:            roundType,
				SourceID:         sourceID,
				URL:              url,
				Quote:            quote,
				Confidence:       fr.Confidence,
				ExtractorVersion: version,
			}); err != nil {
				return err
			}
			counts.EvidenceInserted++
		}

		return nil
	})
	if err != nil {
		return Counts{}, fmt.Errorf("persisting extraction: %w", err)
	}
	return counts, nil
}
