// Package form holds the field values collected during one intake session.
package form

import (
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/rbright/meddoc/internal/catalog"
)

var (
	ErrUnknownField  = errors.New("unknown field")
	ErrInvalidChoice = errors.New("value is not one of the section choices")
	ErrEmptyValue    = errors.New("value must not be empty")
)

// Value is a field value. The zero Value is unset.
type Value struct {
	text string
	set  bool
}

// Text builds a set value.
func Text(s string) Value { return Value{text: s, set: true} }

func (v Value) IsSet() bool    { return v.set }
func (v Value) String() string { return v.text }

// Store maps field keys to values. It is owned by a single controller and is
// not safe for concurrent mutation; hand Snapshots to other goroutines.
type Store struct {
	catalog *catalog.Catalog
	values  map[string]Value
}

// NewStore creates a store with every catalog key unset.
func NewStore(c *catalog.Catalog) *Store {
	values := make(map[string]Value, len(c.Keys()))
	for _, key := range c.Keys() {
		values[key] = Value{}
	}
	return &Store{catalog: c, values: values}
}

// Set overwrites key. Single-choice fields accept only one of the owning
// section's choices and are stored with the choice's canonical spelling.
func (s *Store) Set(key, value string) (Snapshot, error) {
	section, ok := s.catalog.Owner(key)
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %q", ErrUnknownField, key)
	}

	value = strings.TrimSpace(value)
	if value == "" {
		return Snapshot{}, fmt.Errorf("%w: %q", ErrEmptyValue, key)
	}

	if section.Kind == catalog.KindSingleChoice {
		choice, ok := section.Choice(value)
		if !ok {
			return Snapshot{}, fmt.Errorf("%w: %q for %q (choices: %s)",
				ErrInvalidChoice, value, key, strings.Join(section.Choices, ", "))
		}
		value = choice
	}

	s.values[key] = Text(value)
	return s.Snapshot(), nil
}

// Clear resets key to unset.
func (s *Store) Clear(key string) (Snapshot, error) {
	if _, ok := s.values[key]; !ok {
		return Snapshot{}, fmt.Errorf("%w: %q", ErrUnknownField, key)
	}
	s.values[key] = Value{}
	return s.Snapshot(), nil
}

// Get never fails; unknown and unset keys both read as the zero Value.
func (s *Store) Get(key string) Value {
	return s.values[key]
}

func (s *Store) Snapshot() Snapshot {
	return Snapshot{keys: s.catalog.Keys(), values: maps.Clone(s.values)}
}

// Snapshot is an immutable copy of the store.
type Snapshot struct {
	keys   []string
	values map[string]Value
}

func (s Snapshot) Get(key string) Value { return s.values[key] }

// Keys returns field keys in catalog order.
func (s Snapshot) Keys() []string { return append([]string(nil), s.keys...) }

func (s Snapshot) Len() int { return len(s.keys) }

// Filled counts set values.
func (s Snapshot) Filled() int {
	n := 0
	for _, v := range s.values {
		if v.set {
			n++
		}
	}
	return n
}

// Fields renders the snapshot as a plain document: set values map to their
// text and unset values to nil.
func (s Snapshot) Fields() map[string]any {
	out := make(map[string]any, len(s.keys))
	for _, key := range s.keys {
		if v := s.values[key]; v.set {
			out[key] = v.text
		} else {
			out[key] = nil
		}
	}
	return out
}
