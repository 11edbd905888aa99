// Package extract turns triaged chunks into structured candidate facts by
// prompting a language model. Output is untrusted until it passes the
// evidence checks in the validate package.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractorVersion is stamped on every payload so stored evidence can be
// traced back to the prompt generation that produced it.
const ExtractorVersion = "v0.1.0"

// defaultMaxTokens bounds the model reply; payloads are small structured
// lists, not prose.
const defaultMaxTokens = 600

// EventTypes is the closed set of event classifications the extractor may
// emit. Anything else is rejected downstream.
var EventTypes = map[string]bool{
	"funding":        true,
	"partnership":    true,
	"product_launch": true,
	"expansion":      true,
	"acquisition":    true,
	"milestone":      true,
	"other":          true,
}

// RoundTypes is the closed set of funding round classifications.
var RoundTypes = map[string]bool{
	"pre_seed": true, "seed": true,
	"series_a": true, "series_b": true, "series_c": true, "series_d": true,
	"series_e": true, "series_f": true, "series_g": true,
	"growth": true, "venture_debt": true, "grant": true, "unknown": true,
}

// Payload is one chunk's worth of candidate facts as returned by the model.
type Payload struct {
	ExtractorVersion string         `json:"extractor_version"`
	People           []Person       `json:"people"`
	Events           []Event        `json:"events"`
	FundingRounds    []FundingRound `json:"funding_rounds"`
}

// Person is a candidate person sighting.
type Person struct {
	Name          string  `json:"name"`
	Role          string  `json:"role"`
	LinkedInURL   *string `json:"linkedin_url"`
	Confidence    float64 `json:"confidence"`
	EvidenceQuote string  `json:"evidence_quote"`
}

// Event is a candidate company event.
type Event struct {
	Type          string  `json:"type"`
	Date          string  `json:"date"`
	Title         string  `json:"title"`
	Summary       string  `json:"summary"`
	Confidence    float64 `json:"confidence"`
	EvidenceQuote string  `json:"evidence_quote"`
}

// Amount holds a funding amount as the model's literal token, whether it
// arrived as a JSON number or a string. No numeric reformatting happens, so
// the validator can compare it verbatim against the evidence quote.
type Amount string

func (a *Amount) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		*a = ""
		return nil
	}
	if len(s) >= 2 && s[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*a = Amount(str)
		return nil
	}
	*a = Amount(s)
	return nil
}

func (a Amount) MarshalJSON() ([]byte, error) {
	if a == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(a))
}

// FundingRound is a candidate funding round.
type FundingRound struct {
	RoundType     string   `json:"round_type"`
	Amount        Amount   `json:"amount"`
	Currency      string   `json:"currency"`
	Date          string   `json:"date"`
	Investors     []string `json:"investors"`
	Confidence    float64  `json:"confidence"`
	EvidenceQuote string   `json:"evidence_quote"`
}

// Error reports a model reply that could not be used as an extraction
// payload. It marks the failure as chunk-local: the pipeline skips the chunk
// and moves on.
type Error struct {
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extract: %s: %v", e.Reason, e.Err)
	}
	return "extract: " + e.Reason
}

func (e *Error) Unwrap() error { return e.Err }

// Generator produces a strict-JSON model reply for a prompt.
type Generator interface {
	GenerateJSON(ctx context.Context, prompt string, maxTokens int) (json.RawMessage, error)
}

// Extractor prompts a model for structured facts about a company.
type Extractor struct {
	gen Generator
}

// New creates an Extractor backed by the given generator.
func New(gen Generator) *Extractor {
	return &Extractor{gen: gen}
}

// ExtractChunk asks the model for people, events, and funding rounds
// explicitly supported by chunkText. Missing sections are normalized to
// empty slices; a reply that is not a JSON object yields an *Error.
func (x *Extractor) ExtractChunk(ctx context.Context, companyName, sourceURL, chunkText string) (*Payload, error) {
	raw, err := x.gen.GenerateJSON(ctx, BuildPrompt(companyName, sourceURL, chunkText), defaultMaxTokens)
	if err != nil {
		return nil, err
	}

	var payload Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, &Error{Reason: "malformed payload", Err: err}
	}

	if payload.ExtractorVersion == "" {
		payload.ExtractorVersion = ExtractorVersion
	}
	if payload.People == nil {
		payload.People = []Person{}
	}
	if payload.Events == nil {
		payload.Events = []Event{}
	}
	if payload.FundingRounds == nil {
		payload.FundingRounds = []FundingRound{}
	}
	return &payload, nil
}

// BuildPrompt renders the extraction prompt for one chunk. The shape block
// and hard rules are the contract the validator later enforces.
func BuildPrompt(companyName, sourceURL, chunkText string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `You are an information extraction system. Extract ONLY what is explicitly supported by the text.
Company: %s
Source URL: %s

Return STRICT JSON ONLY (no markdown, no code fences) in this shape:
{
  "extractor_version": %q,
  "people": [
    {"name": "...", "role": "...", "linkedin_url": null, "confidence": 0.0, "evidence_quote": "..."}
  ],
  "events": [
    {"type": "funding|partnership|product_launch|expansion|acquisition|milestone|other",
      "date": null,
      "title": "...",
      "summary": "...",
      "confidence": 0.0,
      "evidence_quote": "..." }
  ],
  "funding_rounds": [
    {"round_type": "pre_seed|seed|series_a|series_b|series_c|series_d|series_e|series_f|series_g|growth|venture_debt|grant|unknown",
      "amount": null,
      "currency": null,
      "date": null,
      "investors": [],
      "confidence": 0.0,
      "evidence_quote": "..." }
  ]
}

Hard rules:
- evidence_quote MUST be an exact substring from the provided TEXT.
- Do NOT invent LinkedIn URLs. Only include if present verbatim.
- Do NOT invent amounts/dates/investors.
- If nothing is present, return empty arrays.

TEXT:
"""%s"""`, companyName, sourceURL, ExtractorVersion, chunkText)
	return sb.String()
}
