package upsert

import (
	"context"
	"strings"
	"testing"

	"scout/internal/extract"
	"scout/internal/storage"
)

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func seedCompany(t *testing.T, store *storage.Store) string {
	t.Helper()
	id, err := store.UpsertCompany(context.Background(), "Acme", "https://acme.example", "acme.example")
	if err != nil {
		t.Fatalf("seeding company: %v", err)
	}
	return id
}

func strptr(s string) *string { return &s }

func TestPersistPeople(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	companyID := seedCompany(t, store)

	payload := &extract.Payload{
		ExtractorVersion: "v0.1.0",
		People: []extract.Person{
			{Name: "Jane Doe", Role: "CEO", Confidence: 0.9, EvidenceQuote: "Jane Doe is the CEO"},
		},
	}

	counts, err := New(store).Persist(ctx, companyID, "src-1", "https://acme.example/about", payload)
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if counts.PeopleUpserted != 1 || counts.EvidenceInserted != 1 {
		t.Errorf("counts = %+v", counts)
	}

	people, err := store.ListPeople(ctx, companyID)
	if err != nil {
		t.Fatalf("ListPeople: %v", err)
	}
	if len(people) != 1 || people[0].Role != "CEO" {
		t.Fatalf("people = %+v", people)
	}

	evidence, err := store.ListEvidence(ctx, "person", people[0].ID, 10)
	if err != nil {
		t.Fatalf("ListEvidence: %v", err)
	}
	if len(evidence) != 1 || evidence[0].Field != "person.role" || evidence[0].Quote != "Jane Doe is the CEO" {
		t.Errorf("evidence = %+v", evidence)
	}
}

// Replaying the same payload must not duplicate facts; only evidence grows.
func TestPersistIdempotentForFacts(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	companyID := seedCompany(t, store)

	payload := &extract.Payload{
		People: []extract.Person{
			{Name: "Jane Doe", Role: "CEO", EvidenceQuote: "Jane Doe is the CEO"},
		},
		Events: []extract.Event{
			{Type: "partnership", Title: "BigCo partnership", Summary: "Partnered with BigCo", EvidenceQuote: "partnered with BigCo"},
		},
	}

	eng := New(store)
	for i := 0; i < 2; i++ {
		if _, err := eng.Persist(ctx, companyID, "src-1", "https://acme.example/news", payload); err != nil {
			t.Fatalf("Persist run %d: %v", i+1, err)
		}
	}

	people, _ := store.ListPeople(ctx, companyID)
	if len(people) != 1 {
		t.Errorf("people rows = %d, want 1", len(people))
	}
	events, _ := store.ListEvents(ctx, companyID)
	if len(events) != 1 {
		t.Errorf("event rows = %d, want 1", len(events))
	}

	evidence, _ := store.ListEvidence(ctx, "person", people[0].ID, 10)
	if len(evidence) != 2 {
		t.Errorf("person evidence rows = %d, want 2 (append-only)", len(evidence))
	}
}

// Accented and plain renderings of one name are the same person.
func TestPersistFoldsPersonIdentity(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	companyID := seedCompany(t, store)
	eng := New(store)

	first := &extract.Payload{People: []extract.Person{
		{Name: "José Álvarez", Role: "CTO", EvidenceQuote: "José Álvarez is CTO"},
	}}
	second := &extract.Payload{People: []extract.Person{
		{Name: "Jose Alvarez", Role: "CTO and Co-Founder", EvidenceQuote: "Jose Alvarez, CTO and Co-Founder"},
	}}

	if _, err := eng.Persist(ctx, companyID, "s1", "u1", first); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.Persist(ctx, companyID, "s2", "u2", second); err != nil {
		t.Fatal(err)
	}

	people, _ := store.ListPeople(ctx, companyID)
	if len(people) != 1 {
		t.Fatalf("people rows = %d, want 1", len(people))
	}
	if people[0].Role != "CTO and Co-Founder" {
		t.Errorf("role = %q, latest sighting should win", people[0].Role)
	}
}

func TestPersistPreservesLinkedIn(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	companyID := seedCompany(t, store)
	eng := New(store)

	withLink := &extract.Payload{People: []extract.Person{
		{Name: "Jane Doe", Role: "CEO", LinkedInURL: strptr("https://linkedin.com/in/janedoe"), EvidenceQuote: "q1"},
	}}
	withoutLink := &extract.Payload{People: []extract.Person{
		{Name: "Jane Doe", Role: "CEO and founder", EvidenceQuote: "q2"},
	}}

	if _, err := eng.Persist(ctx, companyID, "s1", "u1", withLink); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.Persist(ctx, companyID, "s2", "u2", withoutLink); err != nil {
		t.Fatal(err)
	}

	people, _ := store.ListPeople(ctx, companyID)
	if len(people) != 1 || people[0].LinkedInURL == nil {
		t.Fatal("linkedin_url should survive a later sighting without one")
	}
	if *people[0].LinkedInURL != "https://linkedin.com/in/janedoe" {
		t.Errorf("linkedin_url = %q", *people[0].LinkedInURL)
	}
}

func TestPersistSkipsIncompleteCandidates(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	companyID := seedCompany(t, store)

	payload := &extract.Payload{
		People: []extract.Person{
			{Name: "", Role: "CEO", EvidenceQuote: "q"},
			{Name: "Jane Doe", Role: "CEO", EvidenceQuote: ""},
		},
		Events: []extract.Event{
			{Type: "partnership", Title: "", EvidenceQuote: "q"},
		},
		FundingRounds: []extract.FundingRound{
			{RoundType: "", EvidenceQuote: "q"},
		},
	}

	counts, err := New(store).Persist(ctx, companyID, "s", "u", payload)
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if counts.PeopleUpserted != 0 || counts.EventsUpserted != 0 || counts.FundingUpserted != 0 || counts.EvidenceInserted != 0 {
		t.Errorf("counts = %+v, want all zero", counts)
	}
}

func TestPersistFundingAsEvent(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	companyID := seedCompany(t, store)

	payload := &extract.Payload{
		FundingRounds: []extract.FundingRound{
			{RoundType: "seed", Amount: "$5M", Currency: "USD", Investors: []string{"Fund I", "Fund II"},
				Confidence: 0.8, EvidenceQuote: "raised $5M"},
		},
	}

	counts, err := New(store).Persist(ctx, companyID, "s", "https://acme.example/news", payload)
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if counts.FundingUpserted != 1 {
		t.Errorf("counts = %+v", counts)
	}

	events, _ := store.ListEvents(ctx, companyID)
	if len(events) != 1 {
		t.Fatalf("events = %+v", events)
	}
	if events[0].Type != "funding" || events[0].Title != "SEED round" {
		t.Errorf("event = %+v", events[0])
	}
	if !strings.Contains(events[0].Summary, "Round=seed") ||
		!strings.Contains(events[0].Summary, "amount=$5M USD") ||
		!strings.Contains(events[0].Summary, "investors=Fund I, Fund II") {
		t.Errorf("summary = %q", events[0].Summary)
	}

	evidence, _ := store.ListEvidence(ctx, "event", events[0].ID, 10)
	if len(evidence) != 1 || evidence[0].Field != "funding.round" || evidence[0].Value != "seed" {
		t.Errorf("evidence = %+v", evidence)
	}
}
