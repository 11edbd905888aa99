// Package triage labels chunks with cheap keyword heuristics before any
// model call is made. Only labeled chunks move on to extraction, so the
// expensive path never sees boilerplate.
package triage

import (
	"fmt"
	"regexp"
	"strings"
)

// Labels a chunk can carry. A chunk may match several at once.
const (
	LabelFoundersTeam    = "founders_team"
	LabelFunding         = "funding"
	LabelCommercialEvent = "commercial_event"
	LabelIrrelevant      = "irrelevant"
)

var foundersKW = []string{
	"founder", "co-founder", "cofounder",
	"leadership", "team", "management",
	"ceo", "cto", "cfo", "chief",
	"board", "executive", "head of",
}

var fundingKW = []string{
	"raised", "funding", "series a", "series b", "series c", "series d",
	"seed round", "seed", "pre-seed",
	"investment", "investor", "valuation", "venture", "vc", "capital",
	"financing", "round led by",
}

// Partnerships, deals, announcements.
var commercialKW = []string{
	"partnership", "partnered", "strategic partner",
	"customers", "client", "contract", "deal",
	"launched", "launch", "release", "released", "announced",
	"expands", "expansion", "opened",
	"acquisition", "acquired", "merger",
}

// Product and value-prop pages; homepages often match these.
var productKW = []string{
	"platform", "product", "solution", "features", "workflow", "dashboard",
	"ai-native", "ai trained", "use cases",
	"pricing", "request a demo", "book a demo", "demo",
	"credit teams", "debt markets", "data extraction", "insights",
}

var noiseKW = []string{
	"cookie", "privacy", "terms", "all rights reserved", "subscribe",
	"newsletter", "sign up", "login",
}

var roleRe = regexp.MustCompile(`(?i)\b(CEO|CTO|CFO|COO|Chief|Founder|Co-?Founder|VP|Vice President|Head of|Managing Director)\b`)

var spaceRe = regexp.MustCompile(`\s+`)

// Result is the triage verdict for one chunk. Reason is a compact summary of
// the signals that fired, kept for debugging and logging only.
type Result struct {
	Labels     []string
	Confidence float64
	Reason     string
}

// Relevant reports whether the chunk carries any label worth extracting from.
func (r Result) Relevant() bool {
	return len(r.Labels) > 0 && !(len(r.Labels) == 1 && r.Labels[0] == LabelIrrelevant)
}

func countKeywords(textLower string, kws []string) int {
	n := 0
	for _, kw := range kws {
		if strings.Contains(textLower, kw) {
			n++
		}
	}
	return n
}

// Classify labels a single chunk. Deterministic: the same text always yields
// the same labels, confidence, and reason. The minimum-length gate counts
// bytes of the whitespace-collapsed text, not runes.
func Classify(chunkText string) Result {
	t := strings.TrimSpace(spaceRe.ReplaceAllString(chunkText, " "))
	tl := strings.ToLower(t)

	if len(t) < 250 {
		return Result{Labels: []string{LabelIrrelevant}, Confidence: 0.9, Reason: "too_short"}
	}

	founders := countKeywords(tl, foundersKW)
	funding := countKeywords(tl, fundingKW)
	commercialBase := countKeywords(tl, commercialKW)
	product := countKeywords(tl, productKW)
	noise := countKeywords(tl, noiseKW)

	roleHits := len(roleRe.FindAllString(t, -1))

	var labels []string
	var reasonParts []string

	if founders >= 2 || roleHits >= 2 {
		labels = append(labels, LabelFoundersTeam)
		reasonParts = append(reasonParts, fmt.Sprintf("founders_kw=%d", founders))
		if roleHits > 0 {
			reasonParts = append(reasonParts, fmt.Sprintf("role_hits=%d", roleHits))
		}
	}

	if funding >= 2 {
		labels = append(labels, LabelFunding)
		reasonParts = append(reasonParts, fmt.Sprintf("funding_kw=%d", funding))
	}

	commercial := commercialBase + product
	if commercial >= 2 {
		labels = append(labels, LabelCommercialEvent)
		reasonParts = append(reasonParts, fmt.Sprintf("commercial_kw=%d", commercialBase))
		reasonParts = append(reasonParts, fmt.Sprintf("product_kw=%d", product))
	}

	if len(labels) == 0 {
		if noise >= 2 {
			return Result{Labels: []string{LabelIrrelevant}, Confidence: 0.85, Reason: fmt.Sprintf("noise_kw=%d", noise)}
		}
		conf := 0.70
		if len(t) > 1200 {
			conf = 0.65
		}
		return Result{Labels: []string{LabelIrrelevant}, Confidence: conf, Reason: "no_signal"}
	}

	signal := founders + funding + commercial + min(roleHits, 3)
	conf := 0.55 + 0.07*float64(signal)
	if conf > 0.95 {
		conf = 0.95
	}
	if conf < 0.60 {
		conf = 0.60
	}

	return Result{Labels: labels, Confidence: conf, Reason: strings.Join(reasonParts, ";")}
}
