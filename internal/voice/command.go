// Package voice turns recognized speech into form commands.
package voice

import (
	"strings"

	"github.com/rbright/meddoc/internal/catalog"
)

// Kind tags a Command.
type Kind string

const (
	KindNext   Kind = "next"
	KindBack   Kind = "back"
	KindRepeat Kind = "repeat"
	KindField  Kind = "field_value"
	KindChoice Kind = "choice_value"
)

// Command is a classified utterance. Value is set for KindField (the raw
// text) and KindChoice (the canonical choice).
type Command struct {
	Kind  Kind
	Value string
}

// Navigation reports whether c moves between sections rather than filling a field.
func (c Command) Navigation() bool {
	return c.Kind == KindNext || c.Kind == KindBack || c.Kind == KindRepeat
}

func (c Command) String() string {
	if c.Navigation() {
		return string(c.Kind)
	}
	return string(c.Kind) + "(" + c.Value + ")"
}

// Ordered by precedence; the first keyword found anywhere in the utterance wins.
var keywords = []struct {
	words []string
	kind  Kind
}{
	{words: []string{"next", "skip"}, kind: KindNext},
	{words: []string{"back", "previous"}, kind: KindBack},
	{words: []string{"repeat", "again"}, kind: KindRepeat},
}

// Classify interprets text for section. Navigation keywords take precedence
// over answers. It returns false when the utterance carries nothing usable:
// blank text, or a single-choice section whose choices do not match.
func Classify(text string, section catalog.Section, matcher ChoiceMatcher) (Command, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Command{}, false
	}

	lower := strings.ToLower(text)
	for _, kw := range keywords {
		for _, word := range kw.words {
			if strings.Contains(lower, word) {
				return Command{Kind: kw.kind}, true
			}
		}
	}

	if section.Kind == catalog.KindSingleChoice {
		if matcher == nil {
			matcher = SubstringMatcher{}
		}
		choice, ok := matcher.MatchChoice(text, section.Choices)
		if !ok {
			return Command{}, false
		}
		return Command{Kind: KindChoice, Value: choice}, true
	}

	return Command{Kind: KindField, Value: text}, true
}
