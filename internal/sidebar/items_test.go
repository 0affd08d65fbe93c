package sidebar

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_PreservesOrder(t *testing.T) {
	t.Parallel()

	items, err := NewBuilder().
		Add(KindStruct, "B", "second").
		Add(KindMod, "a", "").
		Add(KindStruct, "A", "first").
		Build()
	require.NoError(t, err)

	assert.Equal(t, []Kind{KindStruct, KindMod}, items.Kinds())
	assert.Equal(t, []Entry{{"B", "second"}, {"A", "first"}}, items.Entries(KindStruct))
	assert.Equal(t, 3, items.Len())
}

func TestBuilder_RejectsDuplicates(t *testing.T) {
	t.Parallel()

	_, err := NewBuilder().
		Add(KindStruct, "Arg", "one").
		Add(KindStruct, "Arg", "two").
		Build()
	require.ErrorIs(t, err, ErrDuplicateName)

	var entryErr *EntryError
	require.True(t, errors.As(err, &entryErr))
	assert.Equal(t, KindStruct, entryErr.Kind)
	assert.Equal(t, "Arg", entryErr.Name)
}

func TestBuilder_SameNameDifferentKinds(t *testing.T) {
	t.Parallel()

	items, err := NewBuilder().
		Add(KindMod, "settings", "").
		Add(KindFn, "settings", "").
		Build()
	require.NoError(t, err)
	assert.Equal(t, 2, items.Len())
}

func TestBuilder_RejectsEmptyName(t *testing.T) {
	t.Parallel()

	_, err := NewBuilder().Add(KindFn, "", "nameless").Build()
	require.ErrorIs(t, err, ErrEmptyName)
}

func TestItems_Lookup(t *testing.T) {
	t.Parallel()

	items := ClapArgs()
	e, ok := items.Lookup(KindStruct, "SubCommand")
	require.True(t, ok)
	assert.Equal(t, "The abstract representation of a command line subcommand.", e.Description)

	_, ok = items.Lookup(KindMod, "SubCommand")
	assert.False(t, ok)
	_, ok = items.Lookup(KindEnum, "Anything")
	assert.False(t, ok)
}

func TestItems_EntriesIsCopy(t *testing.T) {
	t.Parallel()

	items := ClapArgs()
	entries := items.Entries(KindStruct)
	entries[0].Name = "Mutated"

	assert.Equal(t, "Arg", items.Entries(KindStruct)[0].Name)
}

func TestItems_NilIsEmpty(t *testing.T) {
	t.Parallel()

	var items *Items
	assert.Nil(t, items.Kinds())
	assert.Nil(t, items.Entries(KindMod))
	assert.Zero(t, items.Len())

	b, err := items.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "{}", string(b))
}

func TestItems_Equal(t *testing.T) {
	t.Parallel()

	a, err := NewBuilder().Add(KindMod, "a", "").Add(KindMod, "b", "").Build()
	require.NoError(t, err)
	b, err := NewBuilder().Add(KindMod, "b", "").Add(KindMod, "a", "").Build()
	require.NoError(t, err)
	c, err := NewBuilder().Add(KindMod, "a", "").Add(KindMod, "b", "").Build()
	require.NoError(t, err)

	assert.False(t, a.Equal(b), "order is significant")
	assert.True(t, a.Equal(c))
}

func TestEntry_JSON(t *testing.T) {
	t.Parallel()

	b, err := Entry{Name: "Arg", Description: `say "hi" & <bye>`}.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `["Arg","say \"hi\" & <bye>"]`, string(b))

	var e Entry
	require.NoError(t, json.Unmarshal(b, &e))
	assert.Equal(t, Entry{Name: "Arg", Description: `say "hi" & <bye>`}, e)
}

func TestEntry_RejectsNonPairs(t *testing.T) {
	t.Parallel()

	for _, data := range []string{`["only"]`, `["a","b","c"]`, `[]`, `"bare"`, `[1,"x"]`, `["x",null,1]`} {
		var e Entry
		err := json.Unmarshal([]byte(data), &e)
		assert.ErrorIs(t, err, ErrMalformedEntry, data)
	}
}

func TestItems_JSONWithinStruct(t *testing.T) {
	t.Parallel()

	type wrapper struct {
		Items *Items `json:"items"`
	}
	b, err := json.Marshal(wrapper{Items: ClapArgs()})
	require.NoError(t, err)

	var got wrapper
	require.NoError(t, json.Unmarshal(b, &got))
	assert.True(t, ClapArgs().Equal(got.Items))
}
