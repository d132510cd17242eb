package dedupe

import "testing"

func TestPairCombinations(t *testing.T) {
	tests := []struct {
		name      string
		ids       []string
		wantPairs int
	}{
		{"two ids", []string{"b", "a"}, 1},
		{"three ids", []string{"c", "a", "b"}, 3},
		{"four ids", []string{"d", "c", "b", "a"}, 6},
		{"single id", []string{"a"}, 0},
		{"empty", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pairs := pairCombinations(tt.ids, Candidate{MatchType: MatchTypeEmail})
			if len(pairs) != tt.wantPairs {
				t.Fatalf("pairCombinations yielded %d pairs, want %d", len(pairs), tt.wantPairs)
			}
			for _, p := range pairs {
				if p.ContactID >= p.PossibleDuplicateContactID {
					t.Errorf("pair (%s, %s) not in stable order", p.ContactID, p.PossibleDuplicateContactID)
				}
			}
		})
	}
}

func TestPairCombinationsEmitsOneDirectionOnly(t *testing.T) {
	pairs := pairCombinations([]string{"id-2", "id-1", "id-3"}, Candidate{})
	seen := map[[2]string]bool{}
	for _, p := range pairs {
		key := [2]string{p.ContactID, p.PossibleDuplicateContactID}
		if seen[key] {
			t.Fatalf("duplicate pair %v", key)
		}
		seen[key] = true
		reversed := [2]string{p.PossibleDuplicateContactID, p.ContactID}
		if seen[reversed] {
			t.Fatalf("both directions emitted for %v", key)
		}
	}
}

func TestNameCandidateFirstInitialFilter(t *testing.T) {
	base := namePair{
		aID: "id-a", bID: "id-b",
		aLast: "Smith", bLast: "Smith",
		aCity: "Portland", bCity: "Portland",
	}

	tests := []struct {
		name   string
		aFirst string
		bFirst string
		want   bool
	}{
		{"same initial different names", "Alice", "Amanda", true},
		{"case insensitive initial", "alice", "Amanda", true},
		{"different initials", "Alice", "Bob", false},
		{"empty first name a", "", "Bob", false},
		{"empty first name b", "Alice", "", false},
		{"whitespace only", "   ", "Amanda", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base
			p.aFirst = tt.aFirst
			p.bFirst = tt.bFirst
			candidate, ok := nameCandidate(p)
			if ok != tt.want {
				t.Fatalf("nameCandidate ok = %v, want %v", ok, tt.want)
			}
			if !ok {
				return
			}
			if candidate.MatchType != MatchTypeNameCity {
				t.Errorf("match type = %q, want %q", candidate.MatchType, MatchTypeNameCity)
			}
			if candidate.Score != scoreNameCity {
				t.Errorf("score = %v, want %v", candidate.Score, scoreNameCity)
			}
			if candidate.ContactID != "id-a" || candidate.PossibleDuplicateContactID != "id-b" {
				t.Errorf("pair = (%s, %s), want (id-a, id-b)", candidate.ContactID, candidate.PossibleDuplicateContactID)
			}
		})
	}
}

func TestNameCandidateEvidence(t *testing.T) {
	candidate, ok := nameCandidate(namePair{
		aID: "id-a", bID: "id-b",
		aFirst: "Alice", bFirst: "Amanda",
		aLast: "Smith", bLast: "Smith",
		aCity: "Portland", bCity: "Portland",
		aState: "OR", bState: "OR",
	})
	if !ok {
		t.Fatal("expected candidate")
	}
	a, ok := candidate.Evidence["a"].(map[string]any)
	if !ok {
		t.Fatal("evidence missing side a")
	}
	if a["first_name"] != "Alice" || a["last_name"] != "Smith" || a["city"] != "Portland" {
		t.Errorf("unexpected evidence for side a: %v", a)
	}
	if candidate.Reason != "Same last name and location; first initial match (A)." {
		t.Errorf("unexpected reason %q", candidate.Reason)
	}
}
