package leads

import (
	"context"
	"testing"
	"time"
)

func TestResolve_MissIsNotAnError(t *testing.T) {
	r := NewResolver(NewMemoryRepo(), nil)

	res, err := r.Resolve(context.Background(), "+15550000000")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Found {
		t.Fatalf("expected no match")
	}
}

func TestResolve_MatchesPrimaryAndAlternate(t *testing.T) {
	repo := NewMemoryRepo(Lead{
		LeadID:          "lead-1",
		PrimaryNumber:   "+15550001111",
		AlternateNumber: "+15550002222",
		AssignedAgentID: "agent-1",
		CreatedAt:       time.Unix(1690000000, 0).UTC(),
	})
	r := NewResolver(repo, nil)

	for _, number := range []string{"+15550001111", "+15550002222"} {
		res, err := r.Resolve(context.Background(), number)
		if err != nil {
			t.Fatalf("resolve %s: %v", number, err)
		}
		if !res.Found || res.Lead.LeadID != "lead-1" {
			t.Fatalf("expected lead-1 for %s, got %+v", number, res)
		}
		if res.Ambiguous {
			t.Fatalf("single match must not be ambiguous")
		}
	}
}

func TestResolve_AmbiguousMostRecentWins(t *testing.T) {
	repo := NewMemoryRepo(
		Lead{LeadID: "lead-old", PrimaryNumber: "+15550003333", CreatedAt: time.Unix(1600000000, 0).UTC()},
		Lead{LeadID: "lead-new", PrimaryNumber: "+15550003333", CreatedAt: time.Unix(1690000000, 0).UTC()},
	)
	r := NewResolver(repo, nil)

	res, err := r.Resolve(context.Background(), "+15550003333")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !res.Found || !res.Ambiguous {
		t.Fatalf("expected ambiguous match, got %+v", res)
	}
	if res.Lead.LeadID != "lead-new" {
		t.Fatalf("expected most recent lead, got %s", res.Lead.LeadID)
	}
}

func TestResolve_TiesBreakOnLeadID(t *testing.T) {
	created := time.Unix(1690000000, 0).UTC()
	repo := NewMemoryRepo(
		Lead{LeadID: "lead-a", PrimaryNumber: "+15550004444", CreatedAt: created},
		Lead{LeadID: "lead-b", PrimaryNumber: "+15550004444", CreatedAt: created},
	)
	r := NewResolver(repo, nil)

	res, err := r.Resolve(context.Background(), "+15550004444")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Lead.LeadID != "lead-b" {
		t.Fatalf("expected deterministic winner lead-b, got %s", res.Lead.LeadID)
	}
}

func TestResolve_EmptyNumberRejected(t *testing.T) {
	r := NewResolver(NewMemoryRepo(), nil)
	if _, err := r.Resolve(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty number")
	}
}
