package audit

import (
	"context"
	"testing"
)

func TestService_AppendRequiresType(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.Append(context.Background(), Fact{Message: "no type"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestService_AppendFillsIDAndTimestamp(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.SessionInitiated(context.Background(), "sess-1", "u1", "agent", "placed", ""); err != nil {
		t.Fatalf("append: %v", err)
	}

	facts := repo.Facts()
	if len(facts) != 1 {
		t.Fatalf("expected 1 fact")
	}
	f := facts[0]
	if f.ID == "" || f.CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp set: %+v", f)
	}
	if f.Type != FactSessionInitiated || f.ActorUserID != "u1" || f.SessionID != "sess-1" {
		t.Fatalf("unexpected fact: %+v", f)
	}
}

func TestService_LeadResolvedMarksAmbiguity(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.LeadResolved(context.Background(), "sess-1", "lead-1", true, ""); err != nil {
		t.Fatalf("append: %v", err)
	}

	f := repo.Facts()[0]
	if f.Type != FactLeadResolved || f.LeadID != "lead-1" {
		t.Fatalf("unexpected fact: %+v", f)
	}
	if f.Message != "lead resolved (ambiguous match)" {
		t.Fatalf("expected ambiguity recorded, got %q", f.Message)
	}
}
