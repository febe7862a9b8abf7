package services

import (
	"sort"
	"strings"

	"github.com/hearthware/homeboard/internal/models"
)

// Confidence tiers for the structured matching passes. Fuzzy matches score
// below the word-overlap tier so a heuristic hit never outranks a structural
// one.
const (
	confidenceExact     = 1.0
	confidenceContains  = 0.8
	confidenceWordMatch = 0.7

	// Minimum similarity for the fuzzy fallback to report a match at all
	defaultSimilarityCutoff = 0.55
)

// Similarity scores how alike two normalized keys are, in [0, 1]. Pluggable
// so the fuzzy pass can be swapped without touching the orchestrator.
type Similarity func(a, b string) float64

// PantryMatchResult is the outcome of matching one ingredient key against a
// pantry. Record is nil when nothing cleared the cutoff.
type PantryMatchResult struct {
	Record     *models.PantryRecord
	Confidence float64
}

// PantryMatcher resolves normalized ingredient keys against a user's pantry.
// Matching is deterministic: identical inputs always produce identical output,
// with ties broken by the lexicographically smallest pantry key.
type PantryMatcher struct {
	sim    Similarity
	cutoff float64
}

// NewPantryMatcher returns a matcher with the default similarity function
func NewPantryMatcher() *PantryMatcher {
	return &PantryMatcher{sim: defaultSimilarity, cutoff: defaultSimilarityCutoff}
}

// NewPantryMatcherWith returns a matcher using a custom similarity function
func NewPantryMatcherWith(sim Similarity, cutoff float64) *PantryMatcher {
	return &PantryMatcher{sim: sim, cutoff: cutoff}
}

// Match finds the best pantry record for a normalized ingredient key
func (m *PantryMatcher) Match(key string, records []*models.PantryRecord) PantryMatchResult {
	if key == "" || len(records) == 0 {
		return PantryMatchResult{}
	}

	// Sorted view keeps every pass order-independent
	sorted := make([]*models.PantryRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].NormalizedName < sorted[j].NormalizedName
	})

	// Pass 1: exact key
	for _, rec := range sorted {
		if rec.NormalizedName == key {
			return PantryMatchResult{Record: rec, Confidence: confidenceExact}
		}
	}

	// Pass 2: containment ("garlic" vs "garlic clove")
	for _, rec := range sorted {
		if rec.NormalizedName == "" {
			continue
		}
		if strings.Contains(rec.NormalizedName, key) || strings.Contains(key, rec.NormalizedName) {
			return PantryMatchResult{Record: rec, Confidence: confidenceContains}
		}
	}

	// Pass 3: significant word overlap ("chicken breast" vs "chicken")
	keyWords := significantWords(key)
	if len(keyWords) > 0 {
		for _, rec := range sorted {
			for w := range significantWords(rec.NormalizedName) {
				if _, ok := keyWords[w]; ok {
					return PantryMatchResult{Record: rec, Confidence: confidenceWordMatch}
				}
			}
		}
	}

	// Pass 4: fuzzy similarity, best candidate wins; strict > keeps the
	// lexicographically smallest key on ties
	var best *models.PantryRecord
	bestScore := 0.0
	for _, rec := range sorted {
		if score := m.sim(key, rec.NormalizedName); score > bestScore {
			best = rec
			bestScore = score
		}
	}
	if best == nil || bestScore < m.cutoff {
		return PantryMatchResult{}
	}
	// Scale under the word-overlap tier so fuzzy never outranks structure
	return PantryMatchResult{Record: best, Confidence: bestScore * confidenceWordMatch}
}

// significantWords returns the words of a key long enough to carry signal
func significantWords(s string) map[string]struct{} {
	words := make(map[string]struct{})
	for _, w := range strings.Fields(s) {
		if len(w) >= 3 {
			words[w] = struct{}{}
		}
	}
	return words
}

// defaultSimilarity blends token overlap with normalized edit distance
func defaultSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	aWords := significantWords(a)
	bWords := significantWords(b)
	overlap := 0
	for w := range aWords {
		if _, ok := bWords[w]; ok {
			overlap++
		}
	}
	union := len(aWords) + len(bWords) - overlap
	jaccard := 0.0
	if union > 0 {
		jaccard = float64(overlap) / float64(union)
	}

	dist := levenshtein(a, b)
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	edit := 1.0 - float64(dist)/float64(longest)

	// Edit distance dominates for single-word keys, token overlap for phrases
	return 0.4*jaccard + 0.6*edit
}

// levenshtein computes edit distance over runes with a two-row table
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
