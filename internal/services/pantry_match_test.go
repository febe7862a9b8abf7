package services

import (
	"math"
	"testing"

	"github.com/hearthware/homeboard/internal/models"
)

func pantry(names ...string) []*models.PantryRecord {
	out := make([]*models.PantryRecord, 0, len(names))
	for i, n := range names {
		out = append(out, &models.PantryRecord{
			ID:             i + 1,
			Name:           n,
			NormalizedName: NormalizeIngredient(n),
			Status:         models.PantryStatusHave,
		})
	}
	return out
}

func TestPantryMatcherExact(t *testing.T) {
	m := NewPantryMatcher()
	res := m.Match("flour", pantry("Flour", "sugar", "butter"))
	if res.Record == nil || res.Record.NormalizedName != "flour" {
		t.Fatalf("expected exact match on flour, got %+v", res)
	}
	if res.Confidence != 1.0 {
		t.Errorf("exact confidence = %v, want 1.0", res.Confidence)
	}
}

func TestPantryMatcherContainment(t *testing.T) {
	m := NewPantryMatcher()

	// pantry entry is broader than the key
	res := m.Match("garlic", pantry("garlic cloves"))
	if res.Record == nil || res.Confidence != 0.8 {
		t.Fatalf("expected containment match at 0.8, got %+v", res)
	}

	// key is broader than the pantry entry
	res = m.Match("whole wheat flour", pantry("wheat flour"))
	if res.Record == nil || res.Confidence != 0.8 {
		t.Fatalf("expected containment match at 0.8, got %+v", res)
	}
}

func TestPantryMatcherWordOverlap(t *testing.T) {
	m := NewPantryMatcher()
	res := m.Match("chicken breast", pantry("chicken stock"))
	if res.Record == nil || res.Confidence != 0.7 {
		t.Fatalf("expected word-overlap match at 0.7, got %+v", res)
	}
}

func TestPantryMatcherNoMatch(t *testing.T) {
	m := NewPantryMatcher()
	res := m.Match("saffron", pantry("flour", "sugar", "butter"))
	if res.Record != nil || res.Confidence != 0 {
		t.Fatalf("expected no match, got %+v", res)
	}
}

func TestPantryMatcherEmptyInputs(t *testing.T) {
	m := NewPantryMatcher()
	if res := m.Match("", pantry("flour")); res.Record != nil {
		t.Errorf("empty key matched: %+v", res)
	}
	if res := m.Match("flour", nil); res.Record != nil {
		t.Errorf("empty pantry matched: %+v", res)
	}
}

func TestPantryMatcherFuzzyScaling(t *testing.T) {
	// Fixed similarity isolates the fuzzy pass from the blend formula
	sim := func(a, b string) float64 {
		if b == "mayonnaise" {
			return 0.9
		}
		return 0.1
	}
	m := NewPantryMatcherWith(sim, 0.55)
	res := m.Match("mayo spread", pantry("mayonnaise", "mustard"))
	if res.Record == nil || res.Record.NormalizedName != "mayonnaise" {
		t.Fatalf("expected fuzzy match on mayonnaise, got %+v", res)
	}
	if math.Abs(res.Confidence-0.9*0.7) > 1e-9 {
		t.Errorf("fuzzy confidence = %v, want %v", res.Confidence, 0.9*0.7)
	}
}

func TestPantryMatcherFuzzyCutoff(t *testing.T) {
	sim := func(a, b string) float64 { return 0.5 }
	m := NewPantryMatcherWith(sim, 0.55)
	if res := m.Match("qqq", pantry("zzz")); res.Record != nil {
		t.Fatalf("sub-cutoff score matched: %+v", res)
	}
}

func TestPantryMatcherFuzzyTieBreak(t *testing.T) {
	sim := func(a, b string) float64 { return 0.9 }
	m := NewPantryMatcherWith(sim, 0.55)

	// All candidates score the same; smallest key must win regardless of
	// input order
	res1 := m.Match("qqq", pantry("zzz", "aaa", "mmm"))
	res2 := m.Match("qqq", pantry("mmm", "zzz", "aaa"))
	if res1.Record == nil || res1.Record.NormalizedName != "aaa" {
		t.Fatalf("tie break picked %+v, want aaa", res1)
	}
	if res2.Record == nil || res2.Record.NormalizedName != res1.Record.NormalizedName {
		t.Errorf("tie break depends on input order: %+v vs %+v", res1, res2)
	}
}

func TestDefaultSimilarity(t *testing.T) {
	if got := defaultSimilarity("flour", "flour"); got != 1 {
		t.Errorf("identical keys = %v, want 1", got)
	}
	if got := defaultSimilarity("", "flour"); got != 0 {
		t.Errorf("empty key = %v, want 0", got)
	}
	// Shared token plus small edit distance clears the cutoff
	got := defaultSimilarity("chicken stock cube", "chicken stock cubes")
	if got < defaultSimilarityCutoff {
		t.Errorf("near-identical phrases = %v, want >= %v", got, defaultSimilarityCutoff)
	}
	// Unrelated keys stay below it
	got = defaultSimilarity("saffron", "butter")
	if got >= defaultSimilarityCutoff {
		t.Errorf("unrelated keys = %v, want < %v", got, defaultSimilarityCutoff)
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"flour", "flour", 0},
		{"tomato", "tomatoes", 2},
	}
	for _, tt := range tests {
		if got := levenshtein(tt.a, tt.b); got != tt.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
