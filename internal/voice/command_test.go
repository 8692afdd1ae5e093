package voice

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rbright/meddoc/internal/catalog"
)

var (
	nameSection    = catalog.Section{Index: 0, Prompt: "Name?", Fields: []string{"name"}, Kind: catalog.KindFreeText}
	confirmSection = catalog.Section{
		Index:   1,
		Prompt:  "Confirm?",
		Fields:  []string{"confirm"},
		Kind:    catalog.KindSingleChoice,
		Choices: []string{"Yes", "No"},
	}
)

func TestClassifyNavigationPrecedence(t *testing.T) {
	tests := []struct {
		text string
		want Kind
	}{
		{"NEXT please", KindNext},
		{"skip this one", KindNext},
		{"go back", KindBack},
		{"Previous question", KindBack},
		{"repeat that", KindRepeat},
		{"say it again", KindRepeat},
		{"next, no wait, go back", KindNext},
	}

	for _, section := range []catalog.Section{nameSection, confirmSection} {
		for _, tc := range tests {
			got, ok := Classify(tc.text, section, nil)
			require.True(t, ok, tc.text)
			require.Equal(t, tc.want, got.Kind, "%q in %s", tc.text, section.Kind)
			require.True(t, got.Navigation())
		}
	}
}

func TestClassifyCommandBeatsChoiceNamedLikeCommand(t *testing.T) {
	section := catalog.Section{Kind: catalog.KindSingleChoice, Choices: []string{"Next", "Later"}}

	got, ok := Classify("next", section, nil)
	require.True(t, ok)
	require.Equal(t, Command{Kind: KindNext}, got)
}

func TestClassifyChoice(t *testing.T) {
	got, ok := Classify("I think yes", confirmSection, nil)
	require.True(t, ok)
	require.Equal(t, Command{Kind: KindChoice, Value: "Yes"}, got)
	require.Equal(t, "choice_value(Yes)", got.String())

	got, ok = Classify("NO", confirmSection, nil)
	require.True(t, ok)
	require.Equal(t, Command{Kind: KindChoice, Value: "No"}, got)
}

func TestClassifyChoiceWithoutMatchYieldsNothing(t *testing.T) {
	_, ok := Classify("maybe", confirmSection, nil)
	require.False(t, ok)

	_, ok = Classify("I don't know", confirmSection, nil)
	require.False(t, ok)
}

func TestClassifyFreeText(t *testing.T) {
	got, ok := Classify("  Jane Doe ", nameSection, nil)
	require.True(t, ok)
	require.Equal(t, Command{Kind: KindField, Value: "Jane Doe"}, got)

	got, ok = Classify("maybe", nameSection, nil)
	require.True(t, ok)
	require.Equal(t, Command{Kind: KindField, Value: "maybe"}, got)
}

func TestClassifyBlank(t *testing.T) {
	_, ok := Classify("   ", nameSection, nil)
	require.False(t, ok)
}

type fixedMatcher string

func (m fixedMatcher) MatchChoice(string, []string) (string, bool) { return string(m), m != "" }

func TestClassifyUsesProvidedMatcher(t *testing.T) {
	got, ok := Classify("yep", confirmSection, fixedMatcher("Yes"))
	require.True(t, ok)
	require.Equal(t, "Yes", got.Value)
}
