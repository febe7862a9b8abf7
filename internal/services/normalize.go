package services

import (
	"strings"
	"unicode"
)

// Quantity/unit words that carry no meaning for matching. Only stripped from
// the front of a name so "garlic cloves" survives while "2 cloves garlic"
// reduces to "garlic".
var unitNoise = map[string]struct{}{
	"cup": {}, "cups": {},
	"tbsp": {}, "tablespoon": {}, "tablespoons": {},
	"tsp": {}, "teaspoon": {}, "teaspoons": {},
	"oz": {}, "ounce": {}, "ounces": {},
	"lb": {}, "lbs": {}, "pound": {}, "pounds": {},
	"g": {}, "gram": {}, "grams": {},
	"kg": {}, "ml": {}, "l": {},
	"liter": {}, "liters": {}, "litre": {}, "litres": {},
	"pinch": {}, "dash": {},
	"can": {}, "cans": {},
	"pkg": {}, "package": {}, "packages": {},
	"clove": {}, "cloves": {},
	"slice": {}, "slices": {},
	"stick": {}, "sticks": {},
	"bunch": {}, "bunches": {},
	"of": {}, "a": {}, "an": {},
}

// Full-key synonym reductions applied after cleanup
var synonyms = map[string]string{
	"scallion":            "green onion",
	"scallions":           "green onion",
	"spring onion":        "green onion",
	"aubergine":           "eggplant",
	"courgette":           "zucchini",
	"garbanzo bean":       "chickpea",
	"garbanzo beans":      "chickpea",
	"powdered sugar":      "confectioners sugar",
	"coriander leaves":    "cilantro",
	"bicarbonate of soda": "baking soda",
}

// NormalizeIngredient canonicalizes a free-text ingredient name into the
// comparison key used for pantry matching, store routing and merge dedup.
// Pure and total: unrecognizable input comes back lower-cased and trimmed.
func NormalizeIngredient(name string) string {
	fallback := strings.ToLower(strings.TrimSpace(name))

	s := fallback
	// Trailing descriptors ("flour, sifted") don't change what gets bought
	if idx := strings.IndexByte(s, ','); idx >= 0 {
		s = s[:idx]
	}

	// Punctuation to spaces, then collapse runs
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '/' || r == ' ' {
			return r
		}
		return ' '
	}, s)
	fields := strings.Fields(s)

	// Strip leading quantity and unit tokens
	for len(fields) > 0 {
		tok := fields[0]
		if isQuantityToken(tok) {
			fields = fields[1:]
			continue
		}
		if _, noise := unitNoise[tok]; noise {
			fields = fields[1:]
			continue
		}
		break
	}

	if len(fields) == 0 {
		return fallback
	}

	key := strings.Join(fields, " ")
	if canonical, ok := synonyms[key]; ok {
		return canonical
	}

	// Reduce a trailing plural on the last word
	fields[len(fields)-1] = singularize(fields[len(fields)-1])
	key = strings.Join(fields, " ")
	if canonical, ok := synonyms[key]; ok {
		return canonical
	}
	return key
}

// isQuantityToken reports whether a token is numeric, a fraction, or a range
func isQuantityToken(tok string) bool {
	if tok == "" {
		return false
	}
	for _, r := range tok {
		switch {
		case unicode.IsDigit(r):
		case r == '/' || r == '.' || r == '-':
		case r == '¼' || r == '½' || r == '¾':
		case r >= '⅐' && r <= '⅞':
		default:
			return false
		}
	}
	return true
}

// singularize strips a trailing plural "s". Guarded so words like "couscous",
// "swiss" and "hummus" come through untouched.
func singularize(word string) string {
	if len(word) < 4 || !strings.HasSuffix(word, "s") {
		return word
	}
	if strings.HasSuffix(word, "ss") || strings.HasSuffix(word, "us") || strings.HasSuffix(word, "is") {
		return word
	}
	if strings.HasSuffix(word, "ies") {
		return word[:len(word)-3] + "y"
	}
	if strings.HasSuffix(word, "oes") {
		return word[:len(word)-2]
	}
	return word[:len(word)-1]
}
