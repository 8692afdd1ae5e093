package form

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rbright/meddoc/internal/catalog"
)

func testCatalog() *catalog.Catalog {
	return catalog.MustNew([]catalog.Spec{
		{Prompt: "Name?", Fields: []string{"first", "last"}},
		{Prompt: "Insured?", Fields: []string{"insurance"}, Kind: catalog.KindSingleChoice, Choices: []string{"Yes", "No"}},
	})
}

func TestNewStoreStartsUnset(t *testing.T) {
	s := NewStore(testCatalog())

	for _, key := range []string{"first", "last", "insurance", "nope"} {
		require.False(t, s.Get(key).IsSet(), key)
	}
	snap := s.Snapshot()
	require.Equal(t, 3, snap.Len())
	require.Zero(t, snap.Filled())
}

func TestSetPreservesOtherKeys(t *testing.T) {
	s := NewStore(testCatalog())

	_, err := s.Set("first", "Jane")
	require.NoError(t, err)
	snap, err := s.Set("last", " Doe ")
	require.NoError(t, err)

	require.Equal(t, "Jane", snap.Get("first").String())
	require.Equal(t, "Doe", snap.Get("last").String())
	require.False(t, snap.Get("insurance").IsSet())
	require.Equal(t, 2, snap.Filled())
}

func TestSetOverwritesUnconditionally(t *testing.T) {
	s := NewStore(testCatalog())

	_, err := s.Set("first", "Jane")
	require.NoError(t, err)
	_, err = s.Set("first", "Janet")
	require.NoError(t, err)

	require.Equal(t, "Janet", s.Get("first").String())
}

func TestSetRejectsUnknownField(t *testing.T) {
	s := NewStore(testCatalog())

	_, err := s.Set("middle", "Q")
	require.True(t, errors.Is(err, ErrUnknownField))
}

func TestSetRejectsEmptyValue(t *testing.T) {
	s := NewStore(testCatalog())

	_, err := s.Set("first", "   ")
	require.True(t, errors.Is(err, ErrEmptyValue))
	require.False(t, s.Get("first").IsSet())
}

func TestSetSingleChoice(t *testing.T) {
	s := NewStore(testCatalog())

	snap, err := s.Set("insurance", "yes")
	require.NoError(t, err)
	require.Equal(t, "Yes", snap.Get("insurance").String())

	_, err = s.Set("insurance", "maybe")
	require.True(t, errors.Is(err, ErrInvalidChoice))
	require.Contains(t, err.Error(), "Yes, No")
	require.Equal(t, "Yes", s.Get("insurance").String())
}

func TestSnapshotIsImmutable(t *testing.T) {
	s := NewStore(testCatalog())
	_, err := s.Set("first", "Jane")
	require.NoError(t, err)

	snap := s.Snapshot()
	_, err = s.Set("first", "Other")
	require.NoError(t, err)

	require.Equal(t, "Jane", snap.Get("first").String())

	keys := snap.Keys()
	keys[0] = "changed"
	require.Equal(t, []string{"first", "last", "insurance"}, snap.Keys())
}

func TestClear(t *testing.T) {
	s := NewStore(testCatalog())
	_, err := s.Set("first", "Jane")
	require.NoError(t, err)

	snap, err := s.Clear("first")
	require.NoError(t, err)
	require.False(t, snap.Get("first").IsSet())

	_, err = s.Clear("ghost")
	require.True(t, errors.Is(err, ErrUnknownField))
}

func TestFieldsRendersUnsetAsNil(t *testing.T) {
	s := NewStore(testCatalog())
	_, err := s.Set("insurance", "No")
	require.NoError(t, err)

	require.Equal(t, map[string]any{
		"first":     nil,
		"last":      nil,
		"insurance": "No",
	}, s.Snapshot().Fields())
}
