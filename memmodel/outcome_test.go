package memmodel

import "testing"

func TestAddIsIdempotent(t *testing.T) {
	s := NewOutcomeSet()
	s.Add(Outcome{1, "a"})
	s.Add(Outcome{1, "a"})
	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 after adding the same outcome twice", s.Len())
	}
}

func TestHasDistinguishesOutcomes(t *testing.T) {
	s := NewOutcomeSet()
	s.Add(Outcome{0})
	if !s.Has(Outcome{0}) {
		t.Fatal("expected Has(0) to be true")
	}
	if s.Has(Outcome{1}) {
		t.Fatal("expected Has(1) to be false")
	}
}

func TestContainsRequiresEverySubsetMember(t *testing.T) {
	full := NewOutcomeSet()
	full.Add(Outcome{0})
	full.Add(Outcome{1})

	subset := NewOutcomeSet()
	subset.Add(Outcome{0})
	if !full.Contains(subset) {
		t.Fatal("expected the full set to contain its own subset")
	}

	subset.Add(Outcome{2})
	if full.Contains(subset) {
		t.Fatal("expected Contains to fail once the subset has an outcome the full set lacks")
	}
}

func TestAddAllUnionsInDiscoveryOrder(t *testing.T) {
	a := NewOutcomeSet()
	a.Add(Outcome{0})
	b := NewOutcomeSet()
	b.Add(Outcome{1})
	b.Add(Outcome{0})

	a.AddAll(b)
	if a.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 after union", a.Len())
	}
	if !a.Has(Outcome{1}) {
		t.Fatal("expected the union to include outcomes only present in b")
	}
	if got := a.Outcomes(); got[0][0] != 0 || got[1][0] != 1 {
		t.Fatalf("Outcomes() = %v, want [[0] [1]] in discovery order", got)
	}
}
