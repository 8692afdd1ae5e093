package voice

import (
	"sort"
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

// ChoiceMatcher maps an utterance onto one of a closed set of choices.
type ChoiceMatcher interface {
	MatchChoice(text string, choices []string) (string, bool)
}

// SubstringMatcher accepts an exact (case-insensitive) answer, otherwise the
// longest choice whose words appear contiguously in the utterance.
// Matching on word boundaries keeps "female" from selecting "Male".
type SubstringMatcher struct{}

func (SubstringMatcher) MatchChoice(text string, choices []string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	for _, choice := range choices {
		if strings.EqualFold(choice, trimmed) {
			return choice, true
		}
	}

	said := tokenize(text)
	if len(said) == 0 {
		return "", false
	}

	ordered := append([]string(nil), choices...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return len(tokenize(ordered[i])) > len(tokenize(ordered[j]))
	})
	for _, choice := range ordered {
		if containsRun(said, tokenize(choice)) {
			return choice, true
		}
	}
	return "", false
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func containsRun(haystack, needle []string) bool {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return false
	}
outer:
	for i := 0; i+len(needle) <= len(haystack); i++ {
		for j := range needle {
			if haystack[i+j] != needle[j] {
				continue outer
			}
		}
		return true
	}
	return false
}

const defaultPhoneticThreshold = 0.80

// PhoneticMatcher falls back to sound-alike matching when SubstringMatcher
// finds nothing, so a recognizer hearing "mail" still selects "Male".
// Candidates must share a Double Metaphone code with the utterance and are
// ranked by Jaro-Winkler similarity.
type PhoneticMatcher struct {
	Threshold float64
}

func (m PhoneticMatcher) MatchChoice(text string, choices []string) (string, bool) {
	if choice, ok := (SubstringMatcher{}).MatchChoice(text, choices); ok {
		return choice, true
	}

	threshold := m.Threshold
	if threshold <= 0 {
		threshold = defaultPhoneticThreshold
	}

	said := tokenize(text)
	saidCodes := metaphoneCodes(said)
	if len(saidCodes) == 0 {
		return "", false
	}

	best, bestScore := "", 0.0
	for _, choice := range choices {
		words := tokenize(choice)
		if !sharesCode(saidCodes, metaphoneCodes(words)) {
			continue
		}
		score := bestPairScore(said, words)
		if score >= threshold && score > bestScore {
			best, bestScore = choice, score
		}
	}
	return best, best != ""
}

func metaphoneCodes(words []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(words)*2)
	for _, w := range words {
		primary, secondary := matchr.DoubleMetaphone(w)
		if primary != "" {
			codes[primary] = struct{}{}
		}
		if secondary != "" {
			codes[secondary] = struct{}{}
		}
	}
	return codes
}

func sharesCode(a, b map[string]struct{}) bool {
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestPairScore compares the choice against every same-length window of the
// utterance and keeps the highest similarity.
func bestPairScore(said, choice []string) float64 {
	target := strings.Join(choice, " ")
	best := 0.0
	for i := 0; i+len(choice) <= len(said); i++ {
		window := strings.Join(said[i:i+len(choice)], " ")
		if s := matchr.JaroWinkler(window, target, false); s > best {
			best = s
		}
	}
	return best
}
