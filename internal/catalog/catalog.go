// Package catalog defines the ordered, immutable list of intake sections and
// the field registry derived from it.
package catalog

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Kind selects how a section's answer is interpreted.
type Kind string

const (
	KindFreeText     Kind = "free_text"
	KindSingleChoice Kind = "single_choice"
)

// ErrOutOfRange is returned by SectionAt for indices outside [0, Len).
var ErrOutOfRange = errors.New("section index out of range")

// Spec is the construction input for one section.
type Spec struct {
	Title   string   `yaml:"title"`
	Prompt  string   `yaml:"prompt"`
	Fields  []string `yaml:"fields"`
	Kind    Kind     `yaml:"kind"`
	Choices []string `yaml:"choices,omitempty"`
}

// Section is one validated step of the form. Values handed out by a Catalog
// carry their own slice copies.
type Section struct {
	Index   int
	Title   string
	Prompt  string
	Fields  []string
	Kind    Kind
	Choices []string
}

// Has reports whether key is bound to this section.
func (s Section) Has(key string) bool {
	return slices.Contains(s.Fields, key)
}

// Choice returns the canonical spelling of value when it names one of the
// section's choices, ignoring case and surrounding space.
func (s Section) Choice(value string) (string, bool) {
	value = strings.TrimSpace(value)
	for _, choice := range s.Choices {
		if strings.EqualFold(choice, value) {
			return choice, true
		}
	}
	return "", false
}

func (s Section) clone() Section {
	s.Fields = slices.Clone(s.Fields)
	s.Choices = slices.Clone(s.Choices)
	return s
}

// Catalog is safe for concurrent reads; it never changes after New.
type Catalog struct {
	sections []Section
	owners   map[string]int
}

// New validates specs and builds a catalog.
func New(specs []Spec) (*Catalog, error) {
	if len(specs) == 0 {
		return nil, errors.New("catalog: at least one section is required")
	}

	c := &Catalog{
		sections: make([]Section, 0, len(specs)),
		owners:   make(map[string]int),
	}
	for i, spec := range specs {
		section, err := buildSection(i, spec)
		if err != nil {
			return nil, err
		}
		for _, key := range section.Fields {
			if prev, ok := c.owners[key]; ok {
				return nil, fmt.Errorf("catalog: section %d: field %q already bound to section %d", i, key, prev)
			}
			c.owners[key] = i
		}
		c.sections = append(c.sections, section)
	}
	return c, nil
}

// MustNew is New for static catalogs; it panics on invalid input.
func MustNew(specs []Spec) *Catalog {
	c, err := New(specs)
	if err != nil {
		panic(err)
	}
	return c
}

func buildSection(index int, spec Spec) (Section, error) {
	prompt := strings.TrimSpace(spec.Prompt)
	if prompt == "" {
		return Section{}, fmt.Errorf("catalog: section %d: prompt must not be empty", index)
	}
	if len(spec.Fields) == 0 {
		return Section{}, fmt.Errorf("catalog: section %d: at least one field is required", index)
	}

	fields := make([]string, 0, len(spec.Fields))
	for _, key := range spec.Fields {
		key = strings.TrimSpace(key)
		if key == "" {
			return Section{}, fmt.Errorf("catalog: section %d: field key must not be empty", index)
		}
		if slices.Contains(fields, key) {
			return Section{}, fmt.Errorf("catalog: section %d: duplicate field %q", index, key)
		}
		fields = append(fields, key)
	}

	kind := spec.Kind
	if kind == "" {
		kind = KindFreeText
	}

	var choices []string
	switch kind {
	case KindFreeText:
		if len(spec.Choices) > 0 {
			return Section{}, fmt.Errorf("catalog: section %d: free_text sections take no choices", index)
		}
	case KindSingleChoice:
		if len(spec.Choices) == 0 {
			return Section{}, fmt.Errorf("catalog: section %d: single_choice requires choices", index)
		}
		seen := make(map[string]struct{}, len(spec.Choices))
		for _, choice := range spec.Choices {
			choice = strings.TrimSpace(choice)
			if choice == "" {
				return Section{}, fmt.Errorf("catalog: section %d: choice must not be empty", index)
			}
			folded := strings.ToLower(choice)
			if _, dup := seen[folded]; dup {
				return Section{}, fmt.Errorf("catalog: section %d: duplicate choice %q", index, choice)
			}
			seen[folded] = struct{}{}
			choices = append(choices, choice)
		}
	default:
		return Section{}, fmt.Errorf("catalog: section %d: unknown kind %q", index, kind)
	}

	title := strings.TrimSpace(spec.Title)
	if title == "" {
		title = fields[0]
	}

	return Section{
		Index:   index,
		Title:   title,
		Prompt:  prompt,
		Fields:  fields,
		Kind:    kind,
		Choices: choices,
	}, nil
}

func (c *Catalog) Len() int { return len(c.sections) }

func (c *Catalog) SectionAt(i int) (Section, error) {
	if i < 0 || i >= len(c.sections) {
		return Section{}, fmt.Errorf("%w: %d not in [0, %d)", ErrOutOfRange, i, len(c.sections))
	}
	return c.sections[i].clone(), nil
}

// Sections returns every section in order.
func (c *Catalog) Sections() []Section {
	out := make([]Section, len(c.sections))
	for i, s := range c.sections {
		out[i] = s.clone()
	}
	return out
}

// Owner resolves the section a field key is bound to.
func (c *Catalog) Owner(key string) (Section, bool) {
	i, ok := c.owners[key]
	if !ok {
		return Section{}, false
	}
	return c.sections[i].clone(), true
}

// Keys lists all field keys in catalog order.
func (c *Catalog) Keys() []string {
	keys := make([]string, 0, len(c.owners))
	for _, s := range c.sections {
		keys = append(keys, s.Fields...)
	}
	return keys
}
