// Package validate is the trust boundary between model output and the
// database. Every candidate fact must carry an evidence quote that appears
// verbatim in the chunk it was extracted from; everything else is dropped,
// never repaired.
package validate

import (
	"strings"

	"scout/internal/extract"
)

// Reject reasons, recorded per dropped candidate.
const (
	ReasonPersonQuoteNotInText     = "person_quote_not_in_text"
	ReasonPersonLinkedInNotInQuote = "person_linkedin_not_in_quote"
	ReasonEventBadType             = "event_bad_type"
	ReasonEventQuoteNotInText      = "event_quote_not_in_text"
	ReasonFundingBadRoundType      = "funding_bad_round_type"
	ReasonFundingQuoteNotInText    = "funding_quote_not_in_text"
	ReasonFundingAmountNotInQuote  = "funding_amount_not_in_quote"
)

// Stats summarizes one chunk's validation pass. Counts feed pipeline logs;
// RejectReasons keeps one tag per dropped candidate in encounter order.
type Stats struct {
	PeopleIn  int
	EventsIn  int
	FundingIn int

	PeopleOK  int
	EventsOK  int
	FundingOK int

	Rejected      int
	RejectReasons []string
}

func (s *Stats) reject(reason string) {
	s.Rejected++
	s.RejectReasons = append(s.RejectReasons, reason)
}

// Accepted reports whether anything survived validation.
func (s Stats) Accepted() bool {
	return s.PeopleOK+s.EventsOK+s.FundingOK > 0
}

func quoteInText(quote, text string) bool {
	if quote == "" || text == "" {
		return false
	}
	return strings.Contains(text, quote)
}

// Chunk filters an extraction payload against the chunk text it came from.
// The returned payload contains only candidates whose evidence survives the
// substring checks; rejected candidates are counted, not fixed.
func Chunk(payload *extract.Payload, chunkText string) (*extract.Payload, Stats) {
	version := payload.ExtractorVersion
	if version == "" {
		version = "unknown"
	}
	accepted := &extract.Payload{
		ExtractorVersion: version,
		People:           []extract.Person{},
		Events:           []extract.Event{},
		FundingRounds:    []extract.FundingRound{},
	}

	stats := Stats{
		PeopleIn:  len(payload.People),
		EventsIn:  len(payload.Events),
		FundingIn: len(payload.FundingRounds),
	}

	for _, p := range payload.People {
		quote := strings.TrimSpace(p.EvidenceQuote)
		if !quoteInText(quote, chunkText) {
			stats.reject(ReasonPersonQuoteNotInText)
			continue
		}

		// A LinkedIn URL the quote itself does not contain is an invention.
		if p.LinkedInURL != nil && *p.LinkedInURL != "" && !strings.Contains(quote, *p.LinkedInURL) {
			stats.reject(ReasonPersonLinkedInNotInQuote)
			continue
		}

		accepted.People = append(accepted.People, p)
		stats.PeopleOK++
	}

	for _, e := range payload.Events {
		et := strings.TrimSpace(e.Type)
		quote := strings.TrimSpace(e.EvidenceQuote)

		if !extract.EventTypes[et] {
			stats.reject(ReasonEventBadType)
			continue
		}
		if !quoteInText(quote, chunkText) {
			stats.reject(ReasonEventQuoteNotInText)
			continue
		}

		accepted.Events = append(accepted.Events, e)
		stats.EventsOK++
	}

	for _, fr := range payload.FundingRounds {
		rt := strings.TrimSpace(fr.RoundType)
		quote := strings.TrimSpace(fr.EvidenceQuote)

		if !extract.RoundTypes[rt] {
			stats.reject(ReasonFundingBadRoundType)
			continue
		}
		if !quoteInText(quote, chunkText) {
			stats.reject(ReasonFundingQuoteNotInText)
			continue
		}

		// An amount the quote does not contain verbatim is an invention,
		// even when it is a unit-converted restatement of a real figure.
		if fr.Amount != "" && !strings.Contains(quote, string(fr.Amount)) {
			stats.reject(ReasonFundingAmountNotInQuote)
			continue
		}

		accepted.FundingRounds = append(accepted.FundingRounds, fr)
		stats.FundingOK++
	}

	return accepted, stats
}
